// Package mcp exposes the tile pipeline to Model Context Protocol clients.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tableflip.dev/tilegrid/pkg/grid"
	"tableflip.dev/tilegrid/pkg/imagecache"
	"tableflip.dev/tilegrid/pkg/pipeline"
	"tableflip.dev/tilegrid/pkg/render"
	"tableflip.dev/tilegrid/pkg/runner/layout"
)

// ErrTimeout is returned when a warm request does not finish in time.
var ErrTimeout = errors.New("images still loading")

// Service answers tool calls against one running pipeline.
type Service struct {
	pipe *pipeline.Pipeline

	mu    sync.RWMutex
	tiles []grid.TileState
}

// NewService wraps pipe, serving t.
func NewService(pipe *pipeline.Pipeline, t []grid.TileState) *Service {
	return &Service{pipe: pipe, tiles: t}
}

// SetTiles replaces the served tiles.
func (s *Service) SetTiles(t []grid.TileState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiles = t
}

func (s *Service) snapshot() []grid.TileState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tiles
}

// ViewArgs select a viewport and mode.
type ViewArgs struct {
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Scroll   float64 `json:"scroll"`
	Mode     string  `json:"mode"`
	Commands bool    `json:"commands"`
}

func (a ViewArgs) resolve(def grid.ViewMode) (grid.Viewport, grid.ViewMode, error) {
	mode := def
	if a.Mode != "" {
		var err error
		if mode, err = grid.ParseViewMode(a.Mode); err != nil {
			return grid.Viewport{}, mode, err
		}
	}
	return grid.Viewport{Width: a.Width, Height: a.Height, ScrollOffset: a.Scroll}, mode, nil
}

// Layout computes a layout without touching the pipeline.
func (s *Service) Layout(args ViewArgs) (layout.Report, error) {
	vp, mode, err := args.resolve(s.pipe.Config.Grid.ViewMode)
	if err != nil {
		return layout.Report{}, err
	}
	cfg := s.pipe.Config.Grid
	cfg.ViewMode = mode
	t := s.snapshot()
	res := grid.Calculate(grid.GridState{Tiles: t, Config: cfg, Viewport: vp})
	return layout.NewReport(res, len(t), args.Commands), nil
}

// CacheStats reports both cache tiers.
func (s *Service) CacheStats() imagecache.TieredStats {
	return s.pipe.Store.Stats()
}

// WarmResult reports a warm request.
type WarmResult struct {
	VisibleStart int    `json:"visible_start"`
	VisibleEnd   int    `json:"visible_end"`
	Missing      int    `json:"missing"`
	Elapsed      string `json:"elapsed"`
}

// Warm publishes a viewport and waits until every visible image is cached.
func (s *Service) Warm(ctx context.Context, args ViewArgs, timeout time.Duration) (WarmResult, error) {
	vp, mode, err := args.resolve(s.pipe.Config.Grid.ViewMode)
	if err != nil {
		return WarmResult{}, err
	}
	start := time.Now()
	s.pipe.Publish(s.snapshot(), vp, mode)
	if err := s.pipe.Coordinator.Sync(ctx); err != nil {
		return WarmResult{}, err
	}
	l := s.pipe.Coordinator.CurrentLayout()
	res := WarmResult{VisibleStart: l.VisibleStart, VisibleEnd: l.VisibleEnd}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for draws := 0; ; draws++ {
		f := s.pipe.Dispatcher.Draw(render.Discard)
		if draws == 0 {
			res.Missing = f.Misses
		}
		if f.Misses == 0 {
			break
		}
		select {
		case <-ctx.Done():
			return res, fmt.Errorf("%w: %d missing", ErrTimeout, f.Misses)
		case <-s.pipe.Coordinator.Updates():
		case <-time.After(10 * time.Millisecond):
		}
	}
	res.Elapsed = time.Since(start).Round(time.Millisecond).String()
	return res, nil
}

// TileInfo is one tile as reported to clients.
type TileInfo struct {
	Index    int    `json:"index"`
	ID       string `json:"id"`
	Name     string `json:"name"`
	Subtitle string `json:"subtitle,omitempty"`
	Image    string `json:"image,omitempty"`
	BackFace bool   `json:"back_face,omitempty"`
	Foil     bool   `json:"foil,omitempty"`
	Selected bool   `json:"selected,omitempty"`
}

// Tiles returns up to limit tiles starting at offset, and the total count.
func (s *Service) Tiles(offset, limit int) ([]TileInfo, int) {
	t := s.snapshot()
	offset = min(max(offset, 0), len(t))
	if limit <= 0 {
		limit = 50
	}
	end := min(offset+limit, len(t))
	out := make([]TileInfo, 0, end-offset)
	for i := offset; i < end; i++ {
		tile := t[i]
		out = append(out, TileInfo{
			Index:    i,
			ID:       tile.ID,
			Name:     tile.PrimaryText,
			Subtitle: tile.SecondaryText,
			Image:    tile.ImageKey,
			BackFace: tile.Flags.Has(grid.FlagBackFace),
			Foil:     tile.Flags.Has(grid.FlagFoil),
			Selected: tile.Flags.Has(grid.FlagSelected),
		})
	}
	return out, len(t)
}
