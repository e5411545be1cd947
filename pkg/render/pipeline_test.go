package render

import (
	"context"
	"fmt"
	"testing"
	"time"

	"tableflip.dev/tilegrid/pkg/coordinator"
	"tableflip.dev/tilegrid/pkg/fetch"
	"tableflip.dev/tilegrid/pkg/grid"
	"tableflip.dev/tilegrid/pkg/imagecache"
)

// pipeline wires the pieces the way a host does.
type pipeline struct {
	coord     *coordinator.Coordinator
	scheduler *fetch.Scheduler
	cache     *imagecache.Cache
	dispatch  *Dispatcher
}

func newPipeline(t *testing.T, transport fetch.Transport) *pipeline {
	t.Helper()
	p := &pipeline{
		coord: coordinator.New(coordinator.Options{}),
		cache: imagecache.New(imagecache.NewMemoryBackend(), imagecache.Options{CeilingBytes: 1 << 20}),
	}
	p.scheduler = fetch.New(transport, fetch.Options{
		Interval:   time.Millisecond,
		Store:      p.cache,
		OnResolved: func(tk *fetch.Ticket) { p.coord.ImageReady(tk.Generation()) },
	})
	p.coord.OnGeneration(p.scheduler.Cancel)
	p.dispatch = NewDispatcher(p.coord, p.cache, p.scheduler, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.scheduler.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return p
}

func (p *pipeline) publish(t *testing.T, state grid.GridState) {
	t.Helper()
	p.coord.Publish(state)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.coord.Sync(ctx); err != nil {
		t.Fatal(err)
	}
	for {
		select {
		case <-p.coord.Updates():
		default:
			return
		}
	}
}

func tilesState(n int, scroll float64) grid.GridState {
	tiles := make([]grid.TileState, n)
	for i := range tiles {
		tiles[i] = grid.TileState{ID: fmt.Sprintf("t%d", i), ImageKey: fmt.Sprintf("img-%d", i)}
	}
	return grid.GridState{
		Tiles:    tiles,
		Config:   grid.DefaultConfig(),
		Viewport: grid.Viewport{Width: 360, Height: 300, ScrollOffset: scroll},
	}
}

func TestPipelineLoadsVisibleImages(t *testing.T) {
	p := newPipeline(t, fetch.TransportFunc(func(_ context.Context, k imagecache.Key) ([]byte, error) {
		return []byte(k.ID), nil
	}))
	p.publish(t, tilesState(30, 0))

	first := p.dispatch.Draw(&recordingCanvas{})
	if first.Hits != 0 || first.Requested != first.Tiles {
		t.Fatalf("first frame = %+v", first)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case u := <-p.coord.Updates():
			if u.Reason != coordinator.ImageUpdated {
				continue
			}
			if f := p.dispatch.Draw(&recordingCanvas{}); f.Hits == f.Tiles {
				return
			}
		case <-deadline:
			t.Fatalf("images never arrived; cache %+v", p.cache.Stats())
		}
	}
}

func TestPipelineDropsStaleGeneration(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan imagecache.Key, 64)
	p := newPipeline(t, fetch.TransportFunc(func(ctx context.Context, k imagecache.Key) ([]byte, error) {
		entered <- k
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return []byte(k.ID), nil
	}))
	p.publish(t, tilesState(300, 0))
	p.dispatch.Draw(&recordingCanvas{})

	var stale imagecache.Key
	select {
	case stale = <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("no fetch started")
	}

	// Scroll far away: the generation advances while the fetch is in flight.
	p.publish(t, tilesState(300, 10000))
	if p.coord.Generation() != 1 {
		t.Fatalf("generation = %d, want 1", p.coord.Generation())
	}
	close(release)

	deadline := time.Now().Add(2 * time.Second)
	for p.scheduler.Stats().Outstanding > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("scheduler never settled: %+v", p.scheduler.Stats())
		}
		time.Sleep(time.Millisecond)
	}
	if p.cache.Contains(stale) {
		t.Fatalf("stale image %s was cached", stale)
	}
	select {
	case u := <-p.coord.Updates():
		t.Fatalf("stale result raised %+v", u)
	case <-time.After(20 * time.Millisecond):
	}
}
