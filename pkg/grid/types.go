package grid

import (
	"fmt"
	"slices"
)

// ViewMode selects how tiles are arranged.
type ViewMode int

const (
	// Grid packs tiles into as many columns as the width allows.
	Grid ViewMode = iota
	// List lays out one full-width row per tile.
	List
	// TextOnly lays out one fixed-height text row per tile.
	TextOnly
)

func (m ViewMode) String() string {
	switch m {
	case Grid:
		return "grid"
	case List:
		return "list"
	case TextOnly:
		return "text"
	default:
		return fmt.Sprintf("ViewMode(%d)", int(m))
	}
}

// ParseViewMode maps a configuration string onto a ViewMode.
func ParseViewMode(s string) (ViewMode, error) {
	switch s {
	case "", "grid":
		return Grid, nil
	case "list":
		return List, nil
	case "text", "textonly", "text-only":
		return TextOnly, nil
	}
	return Grid, fmt.Errorf("grid: unknown view mode %q", s)
}

// Flags are per-tile display bits.
type Flags uint32

const (
	FlagBackFace Flags = 1 << iota
	FlagFoil
	FlagSelected
)

// Has reports whether all bits in f2 are set.
func (f Flags) Has(f2 Flags) bool { return f&f2 == f2 }

// Viewport is the visible window onto the content, in device-independent
// units.
type Viewport struct {
	Width        float64
	Height       float64
	ScrollOffset float64
}

// GridConfig carries the caller supplied layout settings.
type GridConfig struct {
	MinTileWidth  float64
	TileSpacing   float64
	LabelHeight   float64
	AspectRatio   float64
	ListRowHeight float64
	TextRowHeight float64
	ViewMode      ViewMode
}

// TileState is one record supplied by the data source.
type TileState struct {
	ID            string
	PrimaryText   string
	SecondaryText string
	ImageKey      string
	Flags         Flags
}

// GridState is everything needed to lay out one frame. Treat it as
// immutable; build a new one for every change.
type GridState struct {
	Tiles    []TileState
	Config   GridConfig
	Viewport Viewport
}

// Equal compares two states structurally.
func (s GridState) Equal(o GridState) bool {
	return s.Config == o.Config && s.Viewport == o.Viewport && slices.Equal(s.Tiles, o.Tiles)
}

// WithViewport returns a copy of s with the viewport replaced. The tile slice
// is shared, which is safe because states are never mutated.
func (s GridState) WithViewport(v Viewport) GridState {
	s.Viewport = v
	return s
}

// WithTiles returns a copy of s backed by tiles.
func (s GridState) WithTiles(tiles []TileState) GridState {
	s.Tiles = tiles
	return s
}

// WithConfig returns a copy of s with cfg.
func (s GridState) WithConfig(cfg GridConfig) GridState {
	s.Config = cfg
	return s
}

// Rect is an axis aligned rectangle.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Offset translates r by dx, dy.
func (r Rect) Offset(dx, dy float64) Rect {
	r.X += dx
	r.Y += dy
	return r
}

// Right is the x coordinate just past r.
func (r Rect) Right() float64 { return r.X + r.Width }

// Bottom is the y coordinate just past r.
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Intersects reports whether r and o overlap with positive area.
func (r Rect) Intersects(o Rect) bool {
	return r.X < o.Right() && o.X < r.Right() && r.Y < o.Bottom() && o.Y < r.Bottom()
}

// CommandKind tags a Command.
type CommandKind int

const (
	DrawTile CommandKind = iota
	DrawSeparator
)

func (k CommandKind) String() string {
	switch k {
	case DrawTile:
		return "tile"
	case DrawSeparator:
		return "separator"
	default:
		return fmt.Sprintf("CommandKind(%d)", int(k))
	}
}

// Command is one draw instruction. Rect is in content coordinates; subtract
// LayoutResult.ScrollOffset for screen coordinates. Tile and Index are set
// for DrawTile only.
type Command struct {
	Kind  CommandKind
	Rect  Rect
	Tile  TileState
	Index int
}

// LayoutResult is derived from exactly one GridState by Calculate.
type LayoutResult struct {
	Commands           []Command
	ViewMode           ViewMode
	Columns            int
	TileWidth          float64
	RowHeight          float64
	TotalContentHeight float64
	ScrollOffset       float64
	// VisibleStart and VisibleEnd are inclusive tile indices.
	VisibleStart int
	VisibleEnd   int
}

// Equal compares two results structurally.
func (r LayoutResult) Equal(o LayoutResult) bool {
	return r.ViewMode == o.ViewMode &&
		r.Columns == o.Columns &&
		r.TileWidth == o.TileWidth &&
		r.RowHeight == o.RowHeight &&
		r.TotalContentHeight == o.TotalContentHeight &&
		r.ScrollOffset == o.ScrollOffset &&
		r.VisibleStart == o.VisibleStart &&
		r.VisibleEnd == o.VisibleEnd &&
		slices.Equal(r.Commands, o.Commands)
}

// TileCount returns the number of DrawTile commands.
func (r LayoutResult) TileCount() int {
	n := 0
	for _, c := range r.Commands {
		if c.Kind == DrawTile {
			n++
		}
	}
	return n
}
