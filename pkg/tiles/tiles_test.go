package tiles

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tableflip.dev/tilegrid/pkg/grid"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFormats(t *testing.T) {
	dir := t.TempDir()
	tests := map[string]struct {
		name string
		body string
	}{
		"yaml mapping": {"a.yaml", `
tiles:
  - id: one
    name: First
    image: img-1
    back: true
  - id: two
    name: Second
`},
		"yaml list": {"b.yml", `
- {id: one, name: First, image: img-1, back: true}
- {id: two, name: Second}
`},
		"json": {"c.json", `{"tiles": [
  {"id": "one", "name": "First", "image": "img-1", "back": true},
  {"id": "two", "name": "Second"}
]}`},
	}
	want := []grid.TileState{
		{ID: "one", PrimaryText: "First", ImageKey: "img-1", Flags: grid.FlagBackFace},
		{ID: "two", PrimaryText: "Second"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := Load(writeFile(t, dir, tc.name, tc.body))
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(want) {
				t.Fatalf("got %d tiles, want %d", len(got), len(want))
			}
			for i := range want {
				if got[i] != want[i] {
					t.Errorf("tile %d = %+v, want %+v", i, got[i], want[i])
				}
			}
		})
	}
}

func TestLoadRejectsBadRecords(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(writeFile(t, dir, "noid.yaml", "- name: nameless\n")); !errors.Is(err, ErrEmptyID) {
		t.Fatalf("err = %v, want ErrEmptyID", err)
	}
	_, err := Load(writeFile(t, dir, "dup.yaml", "- id: a\n- id: a\n"))
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("err = %v, want a duplicate id error", err)
	}
	if _, err := Load(writeFile(t, dir, "scalar.yaml", "hello\n")); err == nil {
		t.Fatal("a scalar document should not parse")
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want not exist", err)
	}
}

func TestLoadEmpty(t *testing.T) {
	got, err := Load(writeFile(t, t.TempDir(), "empty.yaml", "\n"))
	if err != nil || len(got) != 0 {
		t.Fatalf("got %v, %v", got, err)
	}
}

func TestSaveLoad(t *testing.T) {
	for _, name := range []string{"tiles.yaml", "tiles.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			in := Generate(40)
			if err := Save(path, in); err != nil {
				t.Fatal(err)
			}
			out, err := Load(path)
			if err != nil {
				t.Fatal(err)
			}
			if len(out) != len(in) {
				t.Fatalf("got %d tiles, want %d", len(out), len(in))
			}
			for i := range in {
				if in[i] != out[i] {
					t.Fatalf("tile %d = %+v, want %+v", i, out[i], in[i])
				}
			}
		})
	}
}

func TestGenerate(t *testing.T) {
	if Generate(0) != nil {
		t.Fatal("Generate(0) should be empty")
	}
	a, b := Generate(100), Generate(100)
	seen := map[string]bool{}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("tile %d differs between runs", i)
		}
		if seen[a[i].ID] {
			t.Fatalf("duplicate id %s", a[i].ID)
		}
		seen[a[i].ID] = true
	}
	if a[12].ImageKey != "" || a[0].ImageKey == "" {
		t.Error("every thirteenth tile should lack an image")
	}
	if !a[6].Flags.Has(grid.FlagBackFace) || !a[10].Flags.Has(grid.FlagFoil) {
		t.Error("flag pattern not applied")
	}
}

func TestWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "tiles.yaml", "- id: a\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := Watch(ctx, path, 20*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}

	// Allow the watcher to subscribe before writing.
	time.Sleep(50 * time.Millisecond)
	if err := Save(path, Generate(3)); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Err != nil {
				t.Fatalf("reload error: %v", ev.Err)
			}
			if len(ev.Tiles) == 3 {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for a reload")
		}
	}
}

func TestWatchReportsParseErrors(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "tiles.yaml", "- id: a\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := Watch(ctx, path, 20*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	writeFile(t, dir, "tiles.yaml", "- id: a\n- id: a\n")

	select {
	case ev := <-ch:
		if ev.Err == nil {
			t.Fatalf("expected a reload error, got %d tiles", len(ev.Tiles))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a reload")
	}
}

func TestWatchClosesOnCancel(t *testing.T) {
	path := writeFile(t, t.TempDir(), "tiles.yaml", "- id: a\n")
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := Watch(ctx, path, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected the channel to close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}
