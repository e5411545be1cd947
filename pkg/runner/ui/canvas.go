package ui

import (
	"bytes"
	"hash/fnv"
	"image"
	_ "image/png"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss/v2"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/reflow/truncate"

	"tableflip.dev/tilegrid/pkg/grid"
)

// Layout units covered by one terminal cell.
const (
	UnitsPerColumn = 8
	UnitsPerRow    = 16
)

const (
	placeholderFg = "#5f5f5f"
	separatorFg   = "#444444"
	labelFg       = "#d0d0d0"
	secondaryFg   = "#808080"
	selectedFg    = "#ffd75f"
)

type cell struct {
	ch   rune
	fg   string
	bg   string
	bold bool
}

// Canvas rasterizes draw calls onto a grid of terminal cells.
type Canvas struct {
	cols, rows int
	cells      []cell
	// swatches memoizes the average color of decoded images by content.
	swatches map[uint64]string
}

// NewCanvas returns a blank canvas of cols by rows cells.
func NewCanvas(cols, rows int) *Canvas {
	c := &Canvas{swatches: make(map[uint64]string)}
	c.Reset(cols, rows)
	return c
}

// Reset clears the canvas and resizes it.
func (c *Canvas) Reset(cols, rows int) {
	c.cols, c.rows = max(cols, 0), max(rows, 0)
	n := c.cols * c.rows
	if cap(c.cells) < n {
		c.cells = make([]cell, n)
	}
	c.cells = c.cells[:n]
	for i := range c.cells {
		c.cells[i] = cell{ch: ' '}
	}
	if len(c.swatches) > 4096 {
		clear(c.swatches)
	}
}

// Size returns the canvas dimensions in cells.
func (c *Canvas) Size() (int, int) { return c.cols, c.rows }

// cellRect converts a rect in layout units to cell bounds, clipped to the
// canvas. ok is false when nothing is left after clipping.
func (c *Canvas) cellRect(r grid.Rect) (x0, y0, x1, y1 int, ok bool) {
	x0 = int(math.Round(r.X / UnitsPerColumn))
	x1 = int(math.Round(r.Right() / UnitsPerColumn))
	y0 = int(math.Round(r.Y / UnitsPerRow))
	y1 = int(math.Round(r.Bottom() / UnitsPerRow))
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	x0, y0 = max(x0, 0), max(y0, 0)
	x1, y1 = min(x1, c.cols), min(y1, c.rows)
	return x0, y0, x1, y1, x0 < x1 && y0 < y1
}

func (c *Canvas) set(x, y int, v cell) {
	if x < 0 || y < 0 || x >= c.cols || y >= c.rows {
		return
	}
	c.cells[y*c.cols+x] = v
}

func (c *Canvas) at(x, y int) cell { return c.cells[y*c.cols+x] }

func (c *Canvas) fill(x0, y0, x1, y1 int, v cell) {
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			c.set(x, y, v)
		}
	}
}

// text writes s at x, y, cut to width cells. Background colors already on
// the canvas are kept.
func (c *Canvas) text(x, y, width int, s, fg string, bold bool) {
	if width <= 0 {
		return
	}
	s = truncate.StringWithTail(s, uint(width), "…")
	i := 0
	for _, r := range s {
		if i >= width {
			break
		}
		if x+i < c.cols && y >= 0 && y < c.rows && x+i >= 0 {
			bg := c.at(x+i, y).bg
			c.set(x+i, y, cell{ch: r, fg: fg, bg: bg, bold: bold})
		}
		i++
	}
}

func (c *Canvas) DrawImage(rect grid.Rect, tile grid.TileState, data []byte) {
	x0, y0, x1, y1, ok := c.cellRect(rect)
	if !ok {
		return
	}
	swatch, decoded := c.swatch(data)
	if !decoded {
		c.DrawPlaceholder(rect, tile)
		return
	}
	c.fill(x0, y0, x1, y1, cell{ch: ' ', bg: swatch})
	c.caption(x0, y1-1, x1-x0, tile)
}

func (c *Canvas) DrawPlaceholder(rect grid.Rect, tile grid.TileState) {
	x0, y0, x1, y1, ok := c.cellRect(rect)
	if !ok {
		return
	}
	c.fill(x0, y0, x1, y1, cell{ch: '░', fg: placeholderFg})
	c.caption(x0, y1-1, x1-x0, tile)
}

func (c *Canvas) DrawLabel(rect grid.Rect, tile grid.TileState) {
	x0, y0, x1, _, ok := c.cellRect(rect)
	if !ok {
		return
	}
	width := x1 - x0
	primary := tileText(tile)
	c.text(x0, y0, width, primary, labelFg, tile.Flags.Has(grid.FlagSelected))
	if tile.SecondaryText == "" {
		return
	}
	used := lipgloss.Width(primary) + 2
	if used < width {
		c.text(x0+used, y0, width-used, tile.SecondaryText, secondaryFg, false)
	}
}

func (c *Canvas) DrawSeparator(rect grid.Rect) {
	x0, y0, x1, _, ok := c.cellRect(rect)
	if !ok {
		return
	}
	c.fill(x0, y0, x1, y0+1, cell{ch: '─', fg: separatorFg})
}

func (c *Canvas) caption(x, y, width int, tile grid.TileState) {
	fg := labelFg
	if tile.Flags.Has(grid.FlagSelected) {
		fg = selectedFg
	}
	c.text(x, y, width, tileText(tile), fg, tile.Flags.Has(grid.FlagSelected))
}

func tileText(tile grid.TileState) string {
	s := tile.PrimaryText
	if s == "" {
		s = tile.ID
	}
	if tile.Flags.Has(grid.FlagFoil) {
		s = "✦ " + s
	}
	return s
}

// swatch returns the hex average color of an encoded image.
func (c *Canvas) swatch(data []byte) (string, bool) {
	if len(data) == 0 {
		return "", false
	}
	h := fnv.New64a()
	_, _ = h.Write(data)
	k := h.Sum64()
	if s, ok := c.swatches[k]; ok {
		return s, true
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", false
	}
	s := AverageColor(img).Hex()
	c.swatches[k] = s
	return s, true
}

// AverageColor blends every pixel of img in linear RGB.
func AverageColor(img image.Image) colorful.Color {
	b := img.Bounds()
	var r, g, bl float64
	n := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			col, ok := colorful.MakeColor(img.At(x, y))
			if !ok {
				continue
			}
			lr, lg, lb := col.LinearRgb()
			r, g, bl = r+lr, g+lg, bl+lb
			n++
		}
	}
	if n == 0 {
		return colorful.Color{}
	}
	return colorful.LinearRgb(r/float64(n), g/float64(n), bl/float64(n)).Clamped()
}

// Render joins the canvas into lines, styling runs of identical cells.
func (c *Canvas) Render() string {
	var sb strings.Builder
	var run strings.Builder
	for y := 0; y < c.rows; y++ {
		if y > 0 {
			sb.WriteByte('\n')
		}
		cur := c.at(0, y)
		flush := func() {
			if run.Len() == 0 {
				return
			}
			sb.WriteString(styleFor(cur).Render(run.String()))
			run.Reset()
		}
		for x := 0; x < c.cols; x++ {
			v := c.at(x, y)
			if v.fg != cur.fg || v.bg != cur.bg || v.bold != cur.bold {
				flush()
				cur = v
			}
			run.WriteRune(v.ch)
		}
		flush()
	}
	return sb.String()
}

// Plain returns the canvas characters without styling.
func (c *Canvas) Plain() string {
	var sb strings.Builder
	for y := 0; y < c.rows; y++ {
		if y > 0 {
			sb.WriteByte('\n')
		}
		for x := 0; x < c.cols; x++ {
			sb.WriteRune(c.at(x, y).ch)
		}
	}
	return sb.String()
}

func styleFor(v cell) lipgloss.Style {
	s := lipgloss.NewStyle()
	if v.fg != "" {
		s = s.Foreground(lipgloss.Color(v.fg))
	}
	if v.bg != "" {
		s = s.Background(lipgloss.Color(v.bg))
	}
	if v.bold {
		s = s.Bold(true)
	}
	return s
}
