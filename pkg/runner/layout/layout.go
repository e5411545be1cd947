package layout

import (
	"context"
	"io"

	"tableflip.dev/tilegrid/pkg/grid"
	"tableflip.dev/tilegrid/pkg/printers"
)

// Layout computes one frame and prints it.
type Layout struct {
	Tiles    []grid.TileState
	Config   grid.GridConfig
	Viewport grid.Viewport
	// Commands also lists every draw command.
	Commands bool
	JSON     bool
	Out      io.Writer
}

// Report is the JSON form of a layout.
type Report struct {
	Mode               string    `json:"mode"`
	Tiles              int       `json:"tiles"`
	Columns            int       `json:"columns"`
	TileWidth          float64   `json:"tile_width"`
	RowHeight          float64   `json:"row_height"`
	TotalContentHeight float64   `json:"total_content_height"`
	ScrollOffset       float64   `json:"scroll_offset"`
	VisibleStart       int       `json:"visible_start"`
	VisibleEnd         int       `json:"visible_end"`
	Commands           []Command `json:"commands,omitempty"`
}

// Command is the JSON form of a draw command.
type Command struct {
	Kind   string    `json:"kind"`
	Index  int       `json:"index,omitempty"`
	ID     string    `json:"id,omitempty"`
	Rect   grid.Rect `json:"rect"`
	Screen grid.Rect `json:"screen"`
}

// NewReport converts a layout result.
func NewReport(res grid.LayoutResult, tileCount int, withCommands bool) Report {
	r := Report{
		Mode:               res.ViewMode.String(),
		Tiles:              tileCount,
		Columns:            res.Columns,
		TileWidth:          res.TileWidth,
		RowHeight:          res.RowHeight,
		TotalContentHeight: res.TotalContentHeight,
		ScrollOffset:       res.ScrollOffset,
		VisibleStart:       res.VisibleStart,
		VisibleEnd:         res.VisibleEnd,
	}
	if !withCommands {
		return r
	}
	for _, c := range res.Commands {
		cmd := Command{
			Kind:   c.Kind.String(),
			Rect:   c.Rect,
			Screen: c.Rect.Offset(0, -res.ScrollOffset),
		}
		if c.Kind == grid.DrawTile {
			cmd.Index = c.Index
			cmd.ID = c.Tile.ID
		}
		r.Commands = append(r.Commands, cmd)
	}
	return r
}

func (l *Layout) Do(_ context.Context) error {
	res := grid.Calculate(grid.GridState{Tiles: l.Tiles, Config: l.Config, Viewport: l.Viewport})
	pp := printers.PrettyPrint{Out: l.Out}
	if l.JSON {
		return pp.JSON(NewReport(res, len(l.Tiles), l.Commands))
	}
	pp.Title("Layout")
	pp.Layout(res, len(l.Tiles))
	if l.Commands {
		pp.Title("Commands")
		pp.Commands(res)
	}
	return nil
}
