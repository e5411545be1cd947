package tiles

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"tableflip.dev/tilegrid/pkg/grid"
)

// DefaultWatchDelay is how long Watch waits for a burst of writes to settle.
const DefaultWatchDelay = 100 * time.Millisecond

// Event carries a reload of the watched file. Err is set when the file could
// not be read or parsed; Tiles is then nil and the previous set stays valid.
type Event struct {
	Tiles []grid.TileState
	Err   error
}

// Watch reloads path whenever it changes and streams the results until ctx
// is cancelled. The parent directory is watched so editors that replace the
// file on save are seen too. Callers should drain the channel; events that
// find it full are dropped and the next reload supersedes them.
func Watch(ctx context.Context, path string, delay time.Duration, logger *slog.Logger) (<-chan Event, error) {
	if delay <= 0 {
		delay = DefaultWatchDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("tiles: resolve %s: %w", path, err)
	}
	dir := filepath.Dir(abs)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("tiles: create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("tiles: watch %s: %w", dir, err)
	}

	events := make(chan Event, 4)
	send := func(ev Event) {
		select {
		case events <- ev:
		default:
		}
	}
	reload := func() {
		if _, err := os.Stat(abs); err != nil {
			// Mid-replace; the create that follows schedules another reload.
			return
		}
		tiles, err := Load(abs)
		if err != nil {
			logger.Warn("tile reload failed", "path", abs, "error", err)
			send(Event{Err: err})
			return
		}
		send(Event{Tiles: tiles})
	}

	// The throttle only signals; reloads happen on the watch goroutine so
	// nothing sends on events after it is closed.
	fire := make(chan struct{}, 1)
	signal := func() {
		select {
		case fire <- struct{}{}:
		default:
		}
	}

	go func() {
		throttle := newThrottle(delay)
		defer close(events)
		defer throttle.Stop()
		defer func() {
			if err := watcher.Close(); err != nil {
				logger.Warn("tile watcher close", "error", err)
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case <-fire:
				reload()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("tile watcher", "error", err)
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(evt.Name) != abs {
					continue
				}
				if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				throttle.Trigger(signal)
			}
		}
	}()

	return events, nil
}

// throttle runs the latest triggered function once per quiet period so a
// burst of writes produces a single reload.
type throttle struct {
	mu      sync.Mutex
	timer   *time.Timer
	delay   time.Duration
	stopped bool
}

func newThrottle(delay time.Duration) *throttle {
	return &throttle{delay: delay}
}

func (t *throttle) Trigger(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.timer != nil {
		return
	}
	t.timer = time.AfterFunc(t.delay, func() {
		t.mu.Lock()
		t.timer = nil
		stopped := t.stopped
		t.mu.Unlock()
		if !stopped {
			fn()
		}
	})
}

func (t *throttle) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
