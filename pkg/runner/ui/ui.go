package ui

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/mattn/go-isatty"
	"golang.org/x/sync/errgroup"

	"tableflip.dev/tilegrid/pkg/config"
	"tableflip.dev/tilegrid/pkg/grid"
	"tableflip.dev/tilegrid/pkg/pipeline"
	"tableflip.dev/tilegrid/pkg/tiles"
)

// ErrNoTerminal is returned when stdout is not a terminal.
var ErrNoTerminal = errors.New("ui: stdout is not a terminal")

type UI struct {
	Config *config.Config
	Tiles  []grid.TileState
	Mode   grid.ViewMode
	Logger *slog.Logger
	// WatchDelay throttles reloads of a watched tiles file.
	WatchDelay time.Duration
}

func (u *UI) Do(ctx context.Context) error {
	fd := os.Stdout.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return ErrNoTerminal
	}
	logger := u.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p, err := pipeline.Open(ctx, u.Config, pipeline.Options{
		Logger: logger,
		OnStorageError: func(err error) {
			logger.Warn("cache write failed", "error", err)
		},
	})
	if err != nil {
		return err
	}
	defer p.Close()

	var watch <-chan tiles.Event
	if u.Config.TilesPath != "" {
		delay := u.WatchDelay
		if delay <= 0 {
			delay = tiles.DefaultWatchDelay
		}
		if watch, err = tiles.Watch(ctx, u.Config.TilesPath, delay, logger); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.Run(gctx)
	})
	g.Go(func() error {
		defer cancel()
		prog := tea.NewProgram(New(gctx, p, u.Tiles, u.Mode, watch), tea.WithAltScreen(), tea.WithContext(gctx))
		_, err := prog.Run()
		if errors.Is(err, tea.ErrProgramKilled) && gctx.Err() != nil {
			return nil
		}
		return err
	})
	return g.Wait()
}
