package grid

import (
	"math"
	"sort"
)

const (
	// FallbackWidth replaces non-positive viewport widths.
	FallbackWidth = 360.0
	// FixedPadding is subtracted from the viewport width before packing.
	FixedPadding = 20.0

	DefaultMinTileWidth  = 100.0
	DefaultTileSpacing   = 8.0
	DefaultLabelHeight   = 24.0
	DefaultAspectRatio   = 1.4
	DefaultListRowHeight = 72.0
	DefaultTextRowHeight = 28.0

	separatorHeight = 1.0
)

// DefaultConfig returns the stock grid settings.
func DefaultConfig() GridConfig {
	return GridConfig{
		MinTileWidth:  DefaultMinTileWidth,
		TileSpacing:   DefaultTileSpacing,
		LabelHeight:   DefaultLabelHeight,
		AspectRatio:   DefaultAspectRatio,
		ListRowHeight: DefaultListRowHeight,
		TextRowHeight: DefaultTextRowHeight,
		ViewMode:      Grid,
	}
}

// Normalize fills zero or invalid fields with defaults. Calculate applies it
// to every input, so callers only need it to inspect effective values.
func (c GridConfig) Normalize() GridConfig {
	if c.MinTileWidth <= 0 {
		c.MinTileWidth = DefaultMinTileWidth
	}
	if c.TileSpacing < 0 {
		c.TileSpacing = 0
	}
	if c.LabelHeight <= 0 {
		c.LabelHeight = DefaultLabelHeight
	}
	if c.AspectRatio <= 0 {
		c.AspectRatio = DefaultAspectRatio
	}
	if c.ListRowHeight <= 0 {
		c.ListRowHeight = DefaultListRowHeight
	}
	if c.TextRowHeight <= 0 {
		c.TextRowHeight = DefaultTextRowHeight
	}
	switch c.ViewMode {
	case Grid, List, TextOnly:
	default:
		c.ViewMode = Grid
	}
	return c
}

// Normalize substitutes the fallback width and clamps scroll and height.
// Infinite height or scroll become the largest finite value.
func (v Viewport) Normalize() Viewport {
	if v.Width <= 0 || math.IsNaN(v.Width) || math.IsInf(v.Width, 0) {
		v.Width = FallbackWidth
	}
	if v.Height < 0 || math.IsNaN(v.Height) {
		v.Height = 0
	}
	if v.ScrollOffset < 0 || math.IsNaN(v.ScrollOffset) {
		v.ScrollOffset = 0
	}
	v.Height = min(v.Height, math.MaxFloat64)
	v.ScrollOffset = min(v.ScrollOffset, math.MaxFloat64)
	return v
}

// ColumnsFor returns the grid column count for a viewport width.
func ColumnsFor(cfg GridConfig, width float64) int {
	cfg = cfg.Normalize()
	cols, _ := packColumns(cfg, Viewport{Width: width}.Normalize().Width)
	return cols
}

// Calculate maps a state snapshot to draw instructions. It is a pure
// function: the same state always yields an equal result.
func Calculate(state GridState) LayoutResult {
	cfg := state.Config.Normalize()
	vp := state.Viewport.Normalize()

	switch cfg.ViewMode {
	case List:
		return calculateList(state.Tiles, cfg, vp)
	case TextOnly:
		return calculateText(state.Tiles, cfg, vp)
	default:
		return calculateGrid(state.Tiles, cfg, vp)
	}
}

func packColumns(cfg GridConfig, width float64) (int, float64) {
	spacing := cfg.TileSpacing
	available := width - FixedPadding
	if floor := cfg.MinTileWidth + 2*spacing; available < floor {
		available = floor
	}
	cols := int(math.Floor((available - spacing) / (cfg.MinTileWidth + spacing)))
	if cols < 1 {
		cols = 1
	}
	tileWidth := (available - spacing*float64(cols+1)) / float64(cols)
	return cols, tileWidth
}

func calculateGrid(tiles []TileState, cfg GridConfig, vp Viewport) LayoutResult {
	cols, tileWidth := packColumns(cfg, vp.Width)
	rowHeight := tileWidth*cfg.AspectRatio + cfg.LabelHeight
	res := LayoutResult{
		ViewMode:     Grid,
		Columns:      cols,
		TileWidth:    tileWidth,
		RowHeight:    rowHeight,
		ScrollOffset: vp.ScrollOffset,
	}
	n := len(tiles)
	if n == 0 {
		return res
	}

	rows := (n + cols - 1) / cols
	res.TotalContentHeight = float64(rows) * rowHeight

	first, last := uniformRows(vp, rowHeight, rows)
	res.VisibleStart = first * cols
	res.VisibleEnd = min((last+1)*cols, n) - 1

	spacing := cfg.TileSpacing
	res.Commands = make([]Command, 0, res.VisibleEnd-res.VisibleStart+1)
	for i := res.VisibleStart; i <= res.VisibleEnd; i++ {
		row, col := i/cols, i%cols
		res.Commands = append(res.Commands, Command{
			Kind: DrawTile,
			Rect: Rect{
				X:      float64(col)*(tileWidth+spacing) + spacing,
				Y:      float64(row) * rowHeight,
				Width:  tileWidth,
				Height: rowHeight,
			},
			Tile:  tiles[i],
			Index: i,
		})
	}
	return res
}

func calculateText(tiles []TileState, cfg GridConfig, vp Viewport) LayoutResult {
	rowHeight := cfg.TextRowHeight
	res := LayoutResult{
		ViewMode:     TextOnly,
		Columns:      1,
		TileWidth:    vp.Width,
		RowHeight:    rowHeight,
		ScrollOffset: vp.ScrollOffset,
	}
	n := len(tiles)
	if n == 0 {
		return res
	}
	res.TotalContentHeight = float64(n) * rowHeight
	res.VisibleStart, res.VisibleEnd = uniformRows(vp, rowHeight, n)

	res.Commands = make([]Command, 0, 2*(res.VisibleEnd-res.VisibleStart+1))
	for i := res.VisibleStart; i <= res.VisibleEnd; i++ {
		rect := Rect{X: 0, Y: float64(i) * rowHeight, Width: vp.Width, Height: rowHeight}
		res.Commands = appendRow(res.Commands, rect, tiles[i], i, n)
	}
	return res
}

func calculateList(tiles []TileState, cfg GridConfig, vp Viewport) LayoutResult {
	res := LayoutResult{
		ViewMode:     List,
		Columns:      1,
		TileWidth:    vp.Width,
		RowHeight:    cfg.ListRowHeight,
		ScrollOffset: vp.ScrollOffset,
	}
	n := len(tiles)
	if n == 0 {
		return res
	}

	// tops[i] is the y of row i; tops[n] is the content height.
	tops := make([]float64, n+1)
	for i, t := range tiles {
		h := cfg.ListRowHeight
		if t.ImageKey == "" {
			h = cfg.LabelHeight
		}
		tops[i+1] = tops[i] + h
	}
	res.TotalContentHeight = tops[n]

	bottom := vp.ScrollOffset + vp.Height
	first := sort.Search(n, func(i int) bool { return tops[i+1] > vp.ScrollOffset })
	last := sort.Search(n, func(i int) bool { return tops[i] >= bottom }) - 1
	first = min(first, n-1)
	last = min(max(last, first), n-1)
	res.VisibleStart, res.VisibleEnd = first, last

	res.Commands = make([]Command, 0, 2*(last-first+1))
	for i := first; i <= last; i++ {
		rect := Rect{X: 0, Y: tops[i], Width: vp.Width, Height: tops[i+1] - tops[i]}
		res.Commands = appendRow(res.Commands, rect, tiles[i], i, n)
	}
	return res
}

func appendRow(cmds []Command, rect Rect, tile TileState, i, n int) []Command {
	cmds = append(cmds, Command{Kind: DrawTile, Rect: rect, Tile: tile, Index: i})
	if i < n-1 {
		cmds = append(cmds, Command{
			Kind: DrawSeparator,
			Rect: Rect{X: 0, Y: rect.Bottom() - separatorHeight, Width: rect.Width, Height: separatorHeight},
		})
	}
	return cmds
}

// uniformRows returns the inclusive range of rows of equal height that
// intersect the viewport. At least one row is always returned and the range
// is clamped to the content.
func uniformRows(vp Viewport, rowHeight float64, rows int) (int, int) {
	// Clamp in float space so the int conversions cannot overflow.
	content := float64(rows) * rowHeight
	top := min(vp.ScrollOffset, content)
	bottom := min(top+vp.Height, content)
	first := int(math.Floor(top / rowHeight))
	last := int(math.Ceil(bottom/rowHeight)) - 1
	first = max(min(first, rows-1), 0)
	last = min(max(last, first), rows-1)
	return first, last
}
