package printers

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/muesli/reflow/truncate"

	"tableflip.dev/tilegrid/pkg/grid"
)

// PrettyPrint writes human readable reports to Out (color.Output when nil).
type PrettyPrint struct {
	Out io.Writer
	// LabelWidth truncates tile labels in command listings.
	LabelWidth uint
}

// Output is the writer reports go to.
func (pp *PrettyPrint) Output() io.Writer {
	if pp.Out != nil {
		return pp.Out
	}
	return color.Output
}

// Title prints a bold, underlined heading.
func (pp *PrettyPrint) Title(title string) {
	t := color.New(color.Bold, color.Underline)
	_, _ = t.Fprintln(pp.Output(), title)
}

// Layout prints the summary of a layout result.
func (pp *PrettyPrint) Layout(res grid.LayoutResult, tileCount int) {
	bold := color.New(color.Bold)
	faint := color.New(color.Faint)

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold.Sprint("mode"), res.ViewMode.String())
	tbl.AddRow(bold.Sprint("tiles"), tileCount)
	tbl.AddRow(bold.Sprint("columns"), res.Columns)
	tbl.AddRow(bold.Sprint("tile width"), fmt.Sprintf("%.2f", res.TileWidth))
	tbl.AddRow(bold.Sprint("row height"), fmt.Sprintf("%.2f", res.RowHeight))
	tbl.AddRow(bold.Sprint("content height"), fmt.Sprintf("%.2f", res.TotalContentHeight))
	tbl.AddRow(bold.Sprint("scroll"), fmt.Sprintf("%.2f", res.ScrollOffset))
	if tileCount == 0 {
		tbl.AddRow(bold.Sprint("visible"), faint.Sprint("none"))
	} else {
		tbl.AddRow(bold.Sprint("visible"), fmt.Sprintf("%d..%d (%d drawn)", res.VisibleStart, res.VisibleEnd, res.TileCount()))
	}
	tbl.RightAlign(0)
	_, _ = fmt.Fprintln(pp.Output(), tbl)
}

// Commands prints one row per draw command.
func (pp *PrettyPrint) Commands(res grid.LayoutResult) {
	if len(res.Commands) == 0 {
		f := color.New(color.Faint, color.Italic)
		_, _ = f.Fprint(pp.Output(), " none\n\n")
		return
	}
	width := pp.LabelWidth
	if width == 0 {
		width = 32
	}
	bold := color.New(color.Bold)
	y := color.New(color.FgHiYellow, color.Faint)
	sep := color.New(color.Faint)

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold.Sprint("#"), bold.Sprint("kind"), bold.Sprint("x"), bold.Sprint("y"), bold.Sprint("w"), bold.Sprint("h"), bold.Sprint("tile"))
	for _, c := range res.Commands {
		r := c.Rect
		switch c.Kind {
		case grid.DrawTile:
			label := truncate.StringWithTail(c.Tile.PrimaryText, width, "…")
			tbl.AddRow(y.Sprint(c.Index), c.Kind.String(),
				fmt.Sprintf("%.1f", r.X), fmt.Sprintf("%.1f", r.Y),
				fmt.Sprintf("%.1f", r.Width), fmt.Sprintf("%.1f", r.Height),
				fmt.Sprintf("%s %s", c.Tile.ID, label))
		default:
			tbl.AddRow("", sep.Sprint(c.Kind.String()),
				sep.Sprintf("%.1f", r.X), sep.Sprintf("%.1f", r.Y),
				sep.Sprintf("%.1f", r.Width), sep.Sprintf("%.1f", r.Height), "")
		}
	}
	tbl.RightAlign(0)
	_, _ = fmt.Fprintln(pp.Output(), tbl)
}
