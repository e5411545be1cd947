package options

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"tableflip.dev/tilegrid/pkg/grid"
)

func TestWrap(t *testing.T) {
	got := Wrap("  the quick   brown fox ", 10)
	if got != "the quick\nbrown fox" {
		t.Fatalf("Wrap = %q", got)
	}
	if Wrap80("") != "" {
		t.Fatal("empty text should stay empty")
	}
	for _, line := range strings.Split(Wrap80(strings.Repeat("word ", 60)), "\n") {
		if len(line) > 80 {
			t.Fatalf("line too long: %d", len(line))
		}
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("INFO", &buf)
	if !l.Enabled(context.Background(), slog.LevelInfo) || l.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("info level not applied")
	}
	l.Info("hello", "k", "v")
	if !strings.Contains(buf.String(), "msg=hello k=v") {
		t.Fatalf("log = %q", buf.String())
	}
	if NewLogger("chatty", &buf).Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("unknown level should fall back to warn")
	}
}

func TestViewportOptions(t *testing.T) {
	o := ViewportOptions{Width: 10, Height: 20, Scroll: 5}
	if vp := o.Viewport(); vp != (grid.Viewport{Width: 10, Height: 20, ScrollOffset: 5}) {
		t.Fatalf("viewport = %+v", vp)
	}
	if m, err := o.ViewMode(grid.List); err != nil || m != grid.List {
		t.Fatalf("default mode = %v, %v", m, err)
	}
	o.Mode = "text"
	if m, err := o.ViewMode(grid.List); err != nil || m != grid.TextOnly {
		t.Fatalf("mode = %v, %v", m, err)
	}
	o.Mode = "mosaic"
	if _, err := o.ViewMode(grid.Grid); err == nil {
		t.Fatal("unknown mode accepted")
	}
}
