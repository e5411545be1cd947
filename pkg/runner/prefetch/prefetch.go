package prefetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"tableflip.dev/tilegrid/pkg/config"
	"tableflip.dev/tilegrid/pkg/fetch"
	"tableflip.dev/tilegrid/pkg/grid"
	"tableflip.dev/tilegrid/pkg/imagecache"
	"tableflip.dev/tilegrid/pkg/pipeline"
	"tableflip.dev/tilegrid/pkg/printers"
	"tableflip.dev/tilegrid/pkg/render"
)

// ErrTimeout is returned when a page does not finish loading in time.
var ErrTimeout = errors.New("prefetch: timed out waiting for images")

const pollInterval = 10 * time.Millisecond

// Prefetch scrolls through Pages viewports, drawing each one until every
// visible image is cached.
type Prefetch struct {
	Config   *config.Config
	Tiles    []grid.TileState
	Mode     grid.ViewMode
	Viewport grid.Viewport
	// Pages is the number of viewport heights to walk. Zero walks the whole
	// content.
	Pages int
	// Timeout bounds each page.
	Timeout time.Duration
	// Transport overrides the transport derived from Config.
	Transport fetch.Transport
	JSON      bool
	Logger    *slog.Logger
	Out       io.Writer
}

// Page is what one viewport needed.
type Page struct {
	ScrollOffset float64 `json:"scroll_offset"`
	VisibleStart int     `json:"visible_start"`
	VisibleEnd   int     `json:"visible_end"`
	Missing      int     `json:"missing"`
	Elapsed      string  `json:"elapsed"`
}

// Result is the JSON form of a prefetch run.
type Result struct {
	Pages []Page                 `json:"pages"`
	Fetch fetch.Stats            `json:"fetch"`
	Cache imagecache.TieredStats `json:"cache"`
}

func (p *Prefetch) Do(ctx context.Context) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pipe, err := pipeline.Open(ctx, p.Config, pipeline.Options{Logger: logger, Transport: p.Transport})
	if err != nil {
		return err
	}
	defer pipe.Close()

	var res Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pipe.Run(gctx)
	})
	g.Go(func() error {
		defer cancel()
		pages, err := p.walk(gctx, pipe, logger)
		res.Pages = pages
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}
	res.Fetch = pipe.Scheduler.Stats()
	res.Cache = pipe.Store.Stats()
	return p.print(res)
}

func (p *Prefetch) walk(ctx context.Context, pipe *pipeline.Pipeline, logger *slog.Logger) ([]Page, error) {
	vp := p.Viewport.Normalize()
	if vp.Height <= 0 {
		return nil, errors.New("prefetch: viewport height must be positive")
	}
	var pages []Page
	for i := 0; p.Pages <= 0 || i < p.Pages; i++ {
		vp.ScrollOffset = float64(i) * vp.Height
		start := time.Now()
		pipe.Publish(p.Tiles, vp, p.Mode)
		if err := pipe.Coordinator.Sync(ctx); err != nil {
			return pages, err
		}
		layout := pipe.Coordinator.CurrentLayout()
		page := Page{
			ScrollOffset: layout.ScrollOffset,
			VisibleStart: layout.VisibleStart,
			VisibleEnd:   layout.VisibleEnd,
		}

		timeout := p.Timeout
		if timeout <= 0 {
			timeout = time.Minute
		}
		deadline := time.Now().Add(timeout)
		for draws := 0; ; draws++ {
			f := pipe.Dispatcher.Draw(render.Discard)
			if draws == 0 {
				page.Missing = f.Misses
			}
			if f.Misses == 0 {
				break
			}
			if time.Now().After(deadline) {
				return pages, fmt.Errorf("%w: page %d still missing %d", ErrTimeout, i, f.Misses)
			}
			select {
			case <-ctx.Done():
				return pages, ctx.Err()
			case <-pipe.Coordinator.Updates():
			case <-time.After(pollInterval):
			}
		}
		page.Elapsed = time.Since(start).Round(time.Millisecond).String()
		pages = append(pages, page)
		logger.Info("page cached", "page", i, "visible_start", page.VisibleStart, "visible_end", page.VisibleEnd)

		if len(p.Tiles) == 0 || layout.VisibleEnd >= len(p.Tiles)-1 {
			break
		}
	}
	return pages, nil
}

func (p *Prefetch) print(res Result) error {
	pp := printers.PrettyPrint{Out: p.Out}
	if p.JSON {
		return pp.JSON(res)
	}
	missing := 0
	for _, pg := range res.Pages {
		missing += pg.Missing
	}
	pp.Title("Prefetch")
	_, _ = fmt.Fprintf(pp.Output(), "%s pages, %s images were missing\n\n",
		humanize.Comma(int64(len(res.Pages))), humanize.Comma(int64(missing)))
	pp.Title("Fetch")
	pp.FetchStats(res.Fetch)
	pp.Title("Cache")
	pp.CacheStats(res.Cache)
	return nil
}
