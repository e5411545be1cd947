package ui

import (
	"context"
	"image"
	"image/color"
	"strings"
	"testing"

	"tableflip.dev/tilegrid/pkg/fetch"
	"tableflip.dev/tilegrid/pkg/grid"
	"tableflip.dev/tilegrid/pkg/imagecache"
)

func rows(c *Canvas) []string {
	return strings.Split(c.Plain(), "\n")
}

func TestCanvasPlaceholderAndCaption(t *testing.T) {
	c := NewCanvas(10, 4)
	c.DrawPlaceholder(grid.Rect{Width: 40, Height: 32}, grid.TileState{ID: "a", PrimaryText: "abc"})

	got := rows(c)
	want := []string{
		"░░░░░     ",
		"abc░░     ",
		"          ",
		"          ",
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCanvasSeparatorAndLabel(t *testing.T) {
	c := NewCanvas(12, 3)
	c.DrawLabel(grid.Rect{Width: 96, Height: 16}, grid.TileState{ID: "x", PrimaryText: "Alpha", SecondaryText: "beta"})
	c.DrawSeparator(grid.Rect{Y: 16, Width: 96, Height: 1})

	got := rows(c)
	if got[0] != "Alpha  beta " {
		t.Errorf("label row = %q", got[0])
	}
	if got[1] != strings.Repeat("─", 12) {
		t.Errorf("separator row = %q", got[1])
	}
}

func TestCanvasClipsOffscreen(t *testing.T) {
	c := NewCanvas(4, 2)
	c.DrawPlaceholder(grid.Rect{X: -16, Y: -16, Width: 32, Height: 32}, grid.TileState{})
	c.DrawPlaceholder(grid.Rect{Y: 200, Width: 32, Height: 32}, grid.TileState{})

	got := rows(c)
	if got[0] != "░░  " || got[1] != "    " {
		t.Fatalf("clipped = %q", got)
	}
}

func TestCanvasDrawImageUsesSwatch(t *testing.T) {
	key := imagecache.Key{ID: "tile-1"}
	data, err := fetch.SyntheticTransport{}.Fetch(context.Background(), key)
	if err != nil {
		t.Fatal(err)
	}
	c := NewCanvas(4, 2)
	c.DrawImage(grid.Rect{Width: 32, Height: 32}, grid.TileState{ID: "tile-1", PrimaryText: "T"}, data)

	if c.at(0, 0).bg == "" {
		t.Fatal("image cell has no background")
	}
	if c.at(0, 0).ch != ' ' || c.at(0, 1).ch != 'T' {
		t.Fatalf("cells = %q", c.Plain())
	}
	if got := c.at(0, 1).bg; got != c.at(0, 0).bg {
		t.Errorf("caption should keep the swatch, got %q", got)
	}
}

func TestCanvasDrawImageFallsBackOnGarbage(t *testing.T) {
	c := NewCanvas(2, 1)
	c.DrawImage(grid.Rect{Width: 16, Height: 16}, grid.TileState{}, []byte("not an image"))
	if got := c.Plain(); got != "░░" {
		t.Fatalf("plain = %q", got)
	}
}

func TestAverageColor(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: 0xff, A: 0xff})
		}
	}
	if got := AverageColor(img).Hex(); got != "#ff0000" {
		t.Fatalf("average = %s", got)
	}
}

func TestCanvasReset(t *testing.T) {
	c := NewCanvas(2, 1)
	c.DrawSeparator(grid.Rect{Width: 16, Height: 1})
	c.Reset(3, 2)
	if cols, rows := c.Size(); cols != 3 || rows != 2 {
		t.Fatalf("size = %d x %d", cols, rows)
	}
	if got := c.Plain(); got != "   \n   " {
		t.Fatalf("plain = %q", got)
	}
}
