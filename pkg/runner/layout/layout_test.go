package layout

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"tableflip.dev/tilegrid/pkg/grid"
	"tableflip.dev/tilegrid/pkg/tiles"
)

func TestLayoutJSON(t *testing.T) {
	var out bytes.Buffer
	l := Layout{
		Tiles:    tiles.Generate(10),
		Config:   grid.DefaultConfig(),
		Viewport: grid.Viewport{Width: 1000, Height: 500, ScrollOffset: 0},
		Commands: true,
		JSON:     true,
		Out:      &out,
	}
	if err := l.Do(context.Background()); err != nil {
		t.Fatal(err)
	}
	var r Report
	if err := json.Unmarshal(out.Bytes(), &r); err != nil {
		t.Fatalf("decode %q: %v", out.String(), err)
	}
	if r.Mode != "grid" || r.Tiles != 10 || r.Columns != 9 {
		t.Fatalf("report = %+v", r)
	}
	if len(r.Commands) == 0 || r.Commands[0].Kind != "tile" || r.Commands[0].ID != "tile-00000" {
		t.Fatalf("commands = %+v", r.Commands)
	}
}

func TestLayoutScreenRects(t *testing.T) {
	res := grid.Calculate(grid.GridState{
		Tiles:    tiles.Generate(30),
		Config:   grid.GridConfig{ViewMode: grid.TextOnly},
		Viewport: grid.Viewport{Width: 400, Height: 100, ScrollOffset: 56},
	})
	r := NewReport(res, 30, true)
	for _, c := range r.Commands {
		if c.Screen.Y != c.Rect.Y-res.ScrollOffset {
			t.Fatalf("screen rect %+v not translated from %+v", c.Screen, c.Rect)
		}
	}
	if NewReport(res, 30, false).Commands != nil {
		t.Fatal("commands included without asking")
	}
}

func TestLayoutPretty(t *testing.T) {
	var out bytes.Buffer
	l := Layout{
		Tiles:    tiles.Generate(4),
		Config:   grid.GridConfig{ViewMode: grid.List},
		Viewport: grid.Viewport{Width: 600, Height: 300},
		Commands: true,
		Out:      &out,
	}
	if err := l.Do(context.Background()); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Layout", "list", "Commands", "tile-00003", "separator"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}
