// Package pipeline assembles the cache tiers, fetch scheduler, coordinator
// and render dispatcher from a resolved configuration, and runs their
// background loops as one group.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"tableflip.dev/tilegrid/pkg/config"
	"tableflip.dev/tilegrid/pkg/coordinator"
	"tableflip.dev/tilegrid/pkg/fetch"
	"tableflip.dev/tilegrid/pkg/grid"
	"tableflip.dev/tilegrid/pkg/imagecache"
	"tableflip.dev/tilegrid/pkg/render"
	"tableflip.dev/tilegrid/pkg/tiles"
)

// SQLiteFile is the database name used under cache_path by the sqlite
// backend.
const SQLiteFile = "images.db"

// Pipeline is one running host: everything between the tile source and a
// Canvas.
type Pipeline struct {
	Config      *config.Config
	Store       *imagecache.Tiered
	Scheduler   *fetch.Scheduler
	Coordinator *coordinator.Coordinator
	Dispatcher  *render.Dispatcher

	log    *slog.Logger
	closer io.Closer
}

// Options tweaks Open.
type Options struct {
	Logger *slog.Logger
	// Transport overrides the transport derived from the config.
	Transport fetch.Transport
	// OnStorageError receives persistence failures from either tier.
	OnStorageError func(error)
}

// Open builds a pipeline. Call Run to start its loops and Close when done.
func Open(ctx context.Context, cfg *config.Config, opts Options) (*Pipeline, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	store, closer, err := OpenStore(ctx, cfg, logger, opts.OnStorageError)
	if err != nil {
		return nil, err
	}
	transport := opts.Transport
	if transport == nil {
		if transport, err = NewTransport(cfg); err != nil {
			_ = closer.Close()
			return nil, err
		}
	}

	p := &Pipeline{
		Config:      cfg,
		Store:       store,
		Coordinator: coordinator.New(coordinator.Options{Logger: logger}),
		log:         logger,
		closer:      closer,
	}
	p.Scheduler = fetch.New(transport, fetch.Options{
		Interval: cfg.FetchInterval,
		Store:    store,
		Logger:   logger,
		OnResolved: func(t *fetch.Ticket) {
			p.Coordinator.ImageReady(t.Generation())
		},
	})
	p.Coordinator.OnGeneration(p.Scheduler.Cancel)
	p.Dispatcher = render.NewDispatcher(p.Coordinator, store, p.Scheduler, render.Options{})
	return p, nil
}

// Run drives the scheduler and the retention sweeps until ctx ends.
func (p *Pipeline) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.Scheduler.Run(ctx)
	})
	g.Go(func() error {
		return p.Store.Memory.RunMaintenance(ctx, p.Config.SweepInterval)
	})
	if p.Store.Disk != nil {
		g.Go(func() error {
			return p.Store.Disk.RunMaintenance(ctx, p.Config.SweepInterval)
		})
	}
	return g.Wait()
}

// Publish lays out tiles in viewport with the configured grid settings.
func (p *Pipeline) Publish(t []grid.TileState, viewport grid.Viewport, mode grid.ViewMode) {
	cfg := p.Config.Grid
	cfg.ViewMode = mode
	p.Coordinator.Publish(grid.GridState{Tiles: t, Config: cfg, Viewport: viewport})
}

// Close releases the persisted tier.
func (p *Pipeline) Close() error {
	return p.closer.Close()
}

// OpenStore opens the memory tier and, unless the backend is "memory", the
// persisted tier selected by cfg.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger, onError func(error)) (*imagecache.Tiered, io.Closer, error) {
	store := &imagecache.Tiered{
		Memory: imagecache.New(imagecache.NewMemoryBackend(), imagecache.Options{
			Name:         "memory",
			CeilingBytes: cfg.MemoryCeilingBytes,
			Retention:    cfg.CacheRetention,
			OnError:      onError,
			Logger:       logger,
		}),
	}

	var (
		backend imagecache.Backend
		closer  io.Closer = nopCloser{}
	)
	switch cfg.CacheBackend {
	case config.BackendMemory:
		return store, closer, nil
	case config.BackendSQLite:
		db, err := imagecache.OpenSQLiteBackend(filepath.Join(cfg.CachePath, SQLiteFile))
		if err != nil {
			return nil, nil, err
		}
		db.OnError = onError
		backend, closer = db, db
	case config.BackendDiskv:
		d, err := imagecache.NewDiskBackend(cfg.CachePath)
		if err != nil {
			return nil, nil, err
		}
		backend = d
	default:
		return nil, nil, fmt.Errorf("pipeline: unknown cache backend %q", cfg.CacheBackend)
	}

	disk, err := imagecache.Open(ctx, backend, imagecache.Options{
		Name:         "disk",
		CeilingBytes: cfg.CacheCeilingBytes,
		Retention:    cfg.CacheRetention,
		OnError:      onError,
		Logger:       logger,
	})
	if err != nil {
		return nil, nil, errors.Join(err, closer.Close())
	}
	store.Disk = disk
	return store, closer, nil
}

// NewTransport returns an HTTP transport for cfg.ImageURL, or generated
// images when no URL is configured.
func NewTransport(cfg *config.Config) (fetch.Transport, error) {
	if cfg.ImageURL == "" {
		return fetch.SyntheticTransport{}, nil
	}
	return fetch.NewHTTPTransport(fetch.HTTPConfig{URLTemplate: cfg.ImageURL})
}

// LoadTiles reads cfg.TilesPath, or generates count synthetic tiles when no
// path is configured.
func LoadTiles(cfg *config.Config, count int) ([]grid.TileState, error) {
	if cfg.TilesPath == "" {
		return tiles.Generate(count), nil
	}
	return tiles.Load(cfg.TilesPath)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
