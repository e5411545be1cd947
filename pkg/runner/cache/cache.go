package cache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"tableflip.dev/tilegrid/pkg/config"
	"tableflip.dev/tilegrid/pkg/imagecache"
	"tableflip.dev/tilegrid/pkg/pipeline"
	"tableflip.dev/tilegrid/pkg/printers"
)

// Action selects what Cache does to the persisted tier.
type Action string

const (
	Stats Action = "stats"
	Clear Action = "clear"
	Sweep Action = "sweep"
)

// Cache inspects or maintains the image cache named by Config.
type Cache struct {
	Config *config.Config
	Action Action
	JSON   bool
	Logger *slog.Logger
	Out    io.Writer
	// Now defaults to time.Now.
	Now func() time.Time
}

// Result is the JSON form of a cache command.
type Result struct {
	Action  Action                 `json:"action"`
	Backend string                 `json:"backend"`
	Path    string                 `json:"path,omitempty"`
	Removed int                    `json:"removed,omitempty"`
	Stats   imagecache.TieredStats `json:"stats"`
}

func (c *Cache) Do(ctx context.Context) error {
	store, closer, err := pipeline.OpenStore(ctx, c.Config, c.Logger, nil)
	if err != nil {
		return err
	}
	defer closer.Close()

	res := Result{Action: c.Action, Backend: c.Config.CacheBackend}
	if c.Config.CacheBackend != config.BackendMemory {
		res.Path = c.Config.CachePath
	}
	switch c.Action {
	case "", Stats:
		res.Action = Stats
	case Clear:
		before := store.Stats()
		res.Removed = before.Memory.Count
		if before.Disk != nil {
			res.Removed += before.Disk.Count
		}
		if err := store.Clear(); err != nil {
			return err
		}
	case Sweep:
		now := time.Now
		if c.Now != nil {
			now = c.Now
		}
		res.Removed = store.Sweep(now())
	default:
		return fmt.Errorf("cache: unknown action %q", c.Action)
	}
	res.Stats = store.Stats()

	pp := printers.PrettyPrint{Out: c.Out}
	if c.JSON {
		return pp.JSON(res)
	}
	pp.Title(fmt.Sprintf("Cache (%s)", res.Backend))
	if res.Path != "" {
		faint := color.New(color.Faint)
		_, _ = faint.Fprintln(pp.Output(), res.Path)
	}
	if res.Action != Stats {
		_, _ = fmt.Fprintf(pp.Output(), "%s: removed %s entries\n", res.Action, humanize.Comma(int64(res.Removed)))
	}
	pp.CacheStats(res.Stats)
	return nil
}
