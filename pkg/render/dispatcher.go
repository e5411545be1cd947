// Package render turns the current layout into draw calls on a Canvas. Each
// frame is drawn from whatever is in the cache right now; misses become
// placeholders plus fetch requests, and nothing here ever waits on one.
package render

import (
	"tableflip.dev/tilegrid/pkg/fetch"
	"tableflip.dev/tilegrid/pkg/grid"
	"tableflip.dev/tilegrid/pkg/imagecache"
)

// Canvas receives draw calls in screen coordinates.
type Canvas interface {
	DrawImage(rect grid.Rect, tile grid.TileState, image []byte)
	DrawPlaceholder(rect grid.Rect, tile grid.TileState)
	DrawLabel(rect grid.Rect, tile grid.TileState)
	DrawSeparator(rect grid.Rect)
}

// Discard is a Canvas that draws nothing. Drawing onto it still requests
// missing images, which makes it useful for warming the cache.
var Discard Canvas = discard{}

type discard struct{}

func (discard) DrawImage(grid.Rect, grid.TileState, []byte) {}
func (discard) DrawPlaceholder(grid.Rect, grid.TileState)   {}
func (discard) DrawLabel(grid.Rect, grid.TileState)         {}
func (discard) DrawSeparator(grid.Rect)                     {}

// LayoutSource provides the layout to draw. *coordinator.Coordinator
// satisfies it.
type LayoutSource interface {
	CurrentLayout() grid.LayoutResult
}

// ImageSource is a non-blocking image lookup. *imagecache.Cache and
// *imagecache.Tiered satisfy it.
type ImageSource interface {
	TryGet(key imagecache.Key) ([]byte, bool)
}

// Requester queues fetches for missing images. *fetch.Scheduler satisfies it.
type Requester interface {
	Request(key imagecache.Key, priority int) *fetch.Ticket
}

// Frame counts what one Draw did.
type Frame struct {
	Tiles      int
	Hits       int
	Misses     int
	Requested  int
	Labels     int
	Separators int
}

// Options configures a Dispatcher.
type Options struct {
	// SmallBelow and LargeFrom pick the size variant from the tile width.
	// Defaults: 120 and 240.
	SmallBelow float64
	LargeFrom  float64
}

// Dispatcher is the Render Dispatcher.
type Dispatcher struct {
	layouts   LayoutSource
	images    ImageSource
	requester Requester
	opts      Options
}

// NewDispatcher wires a dispatcher. requester may be nil, in which case
// misses are drawn as placeholders and nothing is fetched.
func NewDispatcher(layouts LayoutSource, images ImageSource, requester Requester, opts Options) *Dispatcher {
	if opts.SmallBelow <= 0 {
		opts.SmallBelow = 120
	}
	if opts.LargeFrom <= opts.SmallBelow {
		opts.LargeFrom = 2 * opts.SmallBelow
	}
	return &Dispatcher{layouts: layouts, images: images, requester: requester, opts: opts}
}

// Draw renders the current layout onto canvas.
func (d *Dispatcher) Draw(canvas Canvas) Frame {
	layout := d.layouts.CurrentLayout()
	var f Frame

	for _, cmd := range layout.Commands {
		rect := cmd.Rect.Offset(0, -layout.ScrollOffset)
		switch cmd.Kind {
		case grid.DrawSeparator:
			canvas.DrawSeparator(rect)
			f.Separators++
		case grid.DrawTile:
			f.Tiles++
			if layout.ViewMode == grid.TextOnly || cmd.Tile.ImageKey == "" {
				canvas.DrawLabel(rect, cmd.Tile)
				f.Labels++
				continue
			}
			key := d.KeyFor(cmd.Tile, rect.Width)
			if img, ok := d.images.TryGet(key); ok {
				canvas.DrawImage(rect, cmd.Tile, img)
				f.Hits++
				continue
			}
			canvas.DrawPlaceholder(rect, cmd.Tile)
			f.Misses++
			if d.requester != nil {
				d.requester.Request(key, Priority(layout, cmd.Index))
				f.Requested++
			}
		}
	}
	return f
}

// KeyFor maps a tile drawn at width to its cache key.
func (d *Dispatcher) KeyFor(tile grid.TileState, width float64) imagecache.Key {
	size := imagecache.SizeNormal
	switch {
	case width < d.opts.SmallBelow:
		size = imagecache.SizeSmall
	case width >= d.opts.LargeFrom:
		size = imagecache.SizeLarge
	}
	face := imagecache.FaceFront
	if tile.Flags.Has(grid.FlagBackFace) {
		face = imagecache.FaceBack
	}
	return imagecache.Key{ID: tile.ImageKey, Size: size, Face: face}
}

// Priority ranks a visible tile for fetching: the first visible tile gets the
// highest value and the last gets zero.
func Priority(layout grid.LayoutResult, index int) int {
	return max(layout.VisibleEnd-index, 0)
}
