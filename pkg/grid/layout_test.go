package grid

import (
	"fmt"
	"math"
	"testing"
)

func makeTiles(n int) []TileState {
	tiles := make([]TileState, n)
	for i := range tiles {
		tiles[i] = TileState{
			ID:          fmt.Sprintf("t%d", i),
			PrimaryText: fmt.Sprintf("Tile %d", i),
			ImageKey:    fmt.Sprintf("img-%d", i),
		}
	}
	return tiles
}

func gridState(n int, vp Viewport, minWidth, spacing float64) GridState {
	cfg := DefaultConfig()
	cfg.MinTileWidth = minWidth
	cfg.TileSpacing = spacing
	return GridState{Tiles: makeTiles(n), Config: cfg, Viewport: vp}
}

func approx(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestCalculateScenarioA(t *testing.T) {
	res := Calculate(gridState(1, Viewport{Width: 360, Height: 800}, 100, 8))
	if res.Columns != 3 {
		t.Fatalf("columns = %d, want 3", res.Columns)
	}
	if !approx(res.TileWidth, 102.66, 0.1) {
		t.Fatalf("tileWidth = %v, want ~102.66", res.TileWidth)
	}
	if len(res.Commands) != 1 || res.Commands[0].Kind != DrawTile {
		t.Fatalf("commands = %+v, want one DrawTile", res.Commands)
	}
	if res.VisibleStart != 0 || res.VisibleEnd != 0 {
		t.Fatalf("visible = %d..%d, want 0..0", res.VisibleStart, res.VisibleEnd)
	}
}

func TestCalculateScenarioB(t *testing.T) {
	res := Calculate(gridState(6, Viewport{Width: 332, Height: 800}, 85, 8))
	if res.Columns != 3 {
		t.Fatalf("columns = %d, want 3", res.Columns)
	}
	if !approx(res.TileWidth, 93.33, 0.1) {
		t.Fatalf("tileWidth = %v, want ~93.33", res.TileWidth)
	}
	if len(res.Commands) != 6 {
		t.Fatalf("got %d commands, want 6", len(res.Commands))
	}
	c0, c3 := res.Commands[0], res.Commands[3]
	if c0.Rect.X != c3.Rect.X {
		t.Errorf("tile 3 x = %v, want tile 0 x %v", c3.Rect.X, c0.Rect.X)
	}
	if c3.Rect.Y != res.RowHeight {
		t.Errorf("tile 3 y = %v, want %v", c3.Rect.Y, res.RowHeight)
	}
	if c0.Rect.X != 8 {
		t.Errorf("tile 0 x = %v, want spacing 8", c0.Rect.X)
	}
}

func TestCalculateFallbackWidthEquivalence(t *testing.T) {
	for _, width := range []float64{0, -1, -500} {
		t.Run(fmt.Sprint(width), func(t *testing.T) {
			got := Calculate(gridState(40, Viewport{Width: width, Height: 600, ScrollOffset: 120}, 100, 8))
			want := Calculate(gridState(40, Viewport{Width: FallbackWidth, Height: 600, ScrollOffset: 120}, 100, 8))
			if got.TileWidth != want.TileWidth {
				t.Errorf("tileWidth = %v, want %v", got.TileWidth, want.TileWidth)
			}
			if len(got.Commands) != len(want.Commands) {
				t.Errorf("commands = %d, want %d", len(got.Commands), len(want.Commands))
			}
			if !got.Equal(want) {
				t.Errorf("results differ:\n got %+v\nwant %+v", got, want)
			}
		})
	}
}

func TestCalculateScrollClampEquivalence(t *testing.T) {
	for _, mode := range []ViewMode{Grid, List, TextOnly} {
		t.Run(mode.String(), func(t *testing.T) {
			neg := gridState(200, Viewport{Width: 800, Height: 600, ScrollOffset: -500}, 100, 8)
			neg.Config.ViewMode = mode
			zero := neg.WithViewport(Viewport{Width: 800, Height: 600})

			got, want := Calculate(neg), Calculate(zero)
			if got.VisibleStart != want.VisibleStart || got.VisibleEnd != want.VisibleEnd {
				t.Errorf("visible = %d..%d, want %d..%d", got.VisibleStart, got.VisibleEnd, want.VisibleStart, want.VisibleEnd)
			}
			if len(got.Commands) != len(want.Commands) {
				t.Errorf("commands = %d, want %d", len(got.Commands), len(want.Commands))
			}
		})
	}
}

func TestCalculateHugeScrollStaysVirtualized(t *testing.T) {
	cases := []struct {
		name   string
		scroll float64
		height float64
	}{
		{"far", 1e6, 800},
		{"huge", 1e300, 800},
		{"max", math.MaxFloat64, 800},
		{"inf", math.Inf(1), 800},
		{"inf height", 1e300, math.Inf(1)},
	}
	for _, mode := range []ViewMode{Grid, List, TextOnly} {
		for _, tc := range cases {
			t.Run(mode.String()+"/"+tc.name, func(t *testing.T) {
				const n = 30
				st := gridState(n, Viewport{Width: 360, Height: tc.height, ScrollOffset: tc.scroll}, 100, 8)
				st.Config.ViewMode = mode
				res := Calculate(st)

				if res.VisibleEnd != n-1 {
					t.Fatalf("visible end = %d, want %d", res.VisibleEnd, n-1)
				}
				if want := n - res.Columns; res.VisibleStart < want {
					t.Fatalf("visible start = %d, want the last row (>= %d)", res.VisibleStart, want)
				}
				if tiles := res.TileCount(); tiles > res.Columns {
					t.Fatalf("drew %d tiles, want at most one row of %d", tiles, res.Columns)
				}
				if math.IsInf(res.ScrollOffset, 0) {
					t.Fatal("scroll offset should stay finite")
				}
			})
		}
	}
}

func TestCalculateInfiniteWidthFallsBack(t *testing.T) {
	got := Calculate(gridState(40, Viewport{Width: math.Inf(1), Height: 600}, 100, 8))
	want := Calculate(gridState(40, Viewport{Width: FallbackWidth, Height: 600}, 100, 8))
	if !got.Equal(want) {
		t.Fatalf("results differ:\n got %+v\nwant %+v", got, want)
	}
	if math.IsInf(got.TileWidth, 0) {
		t.Fatal("tile width is infinite")
	}
}

func TestColumnsMonotonic(t *testing.T) {
	cfg := DefaultConfig()
	for _, tc := range []struct{ minWidth, spacing float64 }{{100, 8}, {85, 8}, {60, 0}, {150, 20}} {
		cfg.MinTileWidth, cfg.TileSpacing = tc.minWidth, tc.spacing
		prev := 0
		for w := -10.0; w <= 4000; w += 7 {
			cols := ColumnsFor(cfg, w)
			if cols < 1 {
				t.Fatalf("min=%v spacing=%v width=%v: columns %d < 1", tc.minWidth, tc.spacing, w, cols)
			}
			// Non-positive widths collapse to the fallback, so only compare
			// strictly positive samples.
			if w > 0 && cols < prev {
				t.Fatalf("min=%v spacing=%v width=%v: columns dropped %d -> %d", tc.minWidth, tc.spacing, w, prev, cols)
			}
			if w > 0 {
				prev = cols
			}
		}
	}
}

func TestCalculateEmpty(t *testing.T) {
	for _, mode := range []ViewMode{Grid, List, TextOnly} {
		st := gridState(0, Viewport{Width: 500, Height: 500}, 100, 8)
		st.Config.ViewMode = mode
		res := Calculate(st)
		if len(res.Commands) != 0 || res.TotalContentHeight != 0 {
			t.Errorf("%s: got %d commands height %v, want none", mode, len(res.Commands), res.TotalContentHeight)
		}
		if res.VisibleStart != 0 || res.VisibleEnd != 0 {
			t.Errorf("%s: visible = %d..%d, want 0..0", mode, res.VisibleStart, res.VisibleEnd)
		}
	}
}

func TestCalculateVirtualizes(t *testing.T) {
	st := gridState(10000, Viewport{Width: 360, Height: 400, ScrollOffset: 5000}, 100, 8)
	res := Calculate(st)
	if res.TileCount() >= 30 {
		t.Fatalf("expected only visible tiles, got %d commands", res.TileCount())
	}
	rows := (10000 + res.Columns - 1) / res.Columns
	if res.TotalContentHeight != float64(rows)*res.RowHeight {
		t.Errorf("height = %v, want %v", res.TotalContentHeight, float64(rows)*res.RowHeight)
	}
	viewTop, viewBottom := 5000.0, 5400.0
	for _, c := range res.Commands {
		if c.Rect.Bottom() <= viewTop || c.Rect.Y >= viewBottom {
			t.Errorf("tile %d at %v..%v outside viewport", c.Index, c.Rect.Y, c.Rect.Bottom())
		}
	}
	if res.Commands[0].Index != res.VisibleStart || res.Commands[len(res.Commands)-1].Index != res.VisibleEnd {
		t.Errorf("commands do not span the visible range %d..%d", res.VisibleStart, res.VisibleEnd)
	}
}

func TestCalculateVisibleRangeInvariants(t *testing.T) {
	for _, mode := range []ViewMode{Grid, List, TextOnly} {
		for _, n := range []int{1, 2, 7, 100} {
			for _, scroll := range []float64{0, 10, 333, 1e6} {
				for _, height := range []float64{0, 1, 250, 5000} {
					st := gridState(n, Viewport{Width: 640, Height: height, ScrollOffset: scroll}, 100, 8)
					st.Config.ViewMode = mode
					res := Calculate(st)
					if res.VisibleStart > res.VisibleEnd || res.VisibleStart < 0 || res.VisibleEnd >= n {
						t.Fatalf("%s n=%d scroll=%v h=%v: bad range %d..%d", mode, n, scroll, height, res.VisibleStart, res.VisibleEnd)
					}
					if mode == Grid && res.TileWidth <= 0 {
						t.Fatalf("tileWidth %v <= 0", res.TileWidth)
					}
				}
			}
		}
	}
}

func TestCalculateTinyWidthKeepsPositiveTiles(t *testing.T) {
	res := Calculate(gridState(3, Viewport{Width: 10, Height: 300}, 100, 8))
	if res.Columns != 1 || res.TileWidth != 100 {
		t.Fatalf("got columns=%d width=%v, want 1 column of 100", res.Columns, res.TileWidth)
	}
}

func TestCalculateListRowHeights(t *testing.T) {
	tiles := makeTiles(4)
	tiles[1].ImageKey = ""
	st := GridState{
		Tiles:    tiles,
		Config:   GridConfig{ViewMode: List},
		Viewport: Viewport{Width: 400, Height: 1000},
	}
	res := Calculate(st)
	if res.TileCount() != 4 {
		t.Fatalf("tiles = %d, want 4", res.TileCount())
	}
	// 3 separators: one under every tile but the last.
	if len(res.Commands) != 7 {
		t.Fatalf("commands = %d, want 7", len(res.Commands))
	}
	want := []float64{0, 72, 96, 168}
	i := 0
	for _, c := range res.Commands {
		if c.Kind != DrawTile {
			continue
		}
		if c.Rect.Y != want[i] {
			t.Errorf("tile %d y = %v, want %v", i, c.Rect.Y, want[i])
		}
		if c.Rect.Width != 400 {
			t.Errorf("tile %d width = %v, want full width", i, c.Rect.Width)
		}
		i++
	}
	if res.TotalContentHeight != 240 {
		t.Errorf("height = %v, want 240", res.TotalContentHeight)
	}
}

func TestCalculateListScrolled(t *testing.T) {
	st := GridState{
		Tiles:    makeTiles(100),
		Config:   GridConfig{ViewMode: List},
		Viewport: Viewport{Width: 400, Height: 144, ScrollOffset: 720},
	}
	res := Calculate(st)
	if res.VisibleStart != 10 || res.VisibleEnd != 11 {
		t.Fatalf("visible = %d..%d, want 10..11", res.VisibleStart, res.VisibleEnd)
	}
}

func TestCalculateTextOnlyFixedRows(t *testing.T) {
	st := GridState{
		Tiles:    makeTiles(1000),
		Config:   GridConfig{ViewMode: TextOnly},
		Viewport: Viewport{Width: 300, Height: 280, ScrollOffset: 28 * 50},
	}
	res := Calculate(st)
	if res.RowHeight != DefaultTextRowHeight {
		t.Fatalf("row height = %v, want %v", res.RowHeight, DefaultTextRowHeight)
	}
	if res.VisibleStart != 50 || res.VisibleEnd != 59 {
		t.Fatalf("visible = %d..%d, want 50..59", res.VisibleStart, res.VisibleEnd)
	}
	if res.TotalContentHeight != 28000 {
		t.Errorf("height = %v, want 28000", res.TotalContentHeight)
	}
}

func TestCalculateDeterministic(t *testing.T) {
	st := gridState(500, Viewport{Width: 1024, Height: 768, ScrollOffset: 900}, 120, 6)
	a, b := Calculate(st), Calculate(st)
	if !a.Equal(b) {
		t.Fatal("Calculate is not deterministic")
	}
}

func TestParseViewMode(t *testing.T) {
	tests := []struct {
		in      string
		want    ViewMode
		wantErr bool
	}{
		{"", Grid, false},
		{"grid", Grid, false},
		{"list", List, false},
		{"text", TextOnly, false},
		{"cards", Grid, true},
	}
	for _, tt := range tests {
		got, err := ParseViewMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseViewMode(%q) = %v, %v", tt.in, got, err)
		}
	}
}
