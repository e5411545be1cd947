// Package coordinator owns the current grid state, recomputes layout off the
// caller's goroutine and publishes each result with a single pointer swap.
//
// Readers call CurrentLayout on every frame. It is one atomic load and never
// waits for a computation or a lock.
package coordinator

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"tableflip.dev/tilegrid/pkg/grid"
)

// Reason says why an Update was raised.
type Reason int

const (
	// LayoutUpdated means a new LayoutResult is current.
	LayoutUpdated Reason = iota
	// ImageUpdated means an image for the current generation arrived.
	ImageUpdated
)

func (r Reason) String() string {
	switch r {
	case LayoutUpdated:
		return "layout"
	case ImageUpdated:
		return "image"
	default:
		return "unknown"
	}
}

// Update tells the host to redraw.
type Update struct {
	Generation uint64
	Reason     Reason
}

// Snapshot is one published result together with the input it came from.
type Snapshot struct {
	State      grid.GridState
	Layout     grid.LayoutResult
	Generation uint64

	ready bool
}

// Stats are coordinator counters.
type Stats struct {
	Published  uint64
	Skipped    uint64
	Computed   uint64
	Superseded uint64
	Generation uint64
}

// Options configures a Coordinator.
type Options struct {
	// Calculate maps a state to a layout. Defaults to grid.Calculate.
	Calculate func(grid.GridState) grid.LayoutResult
	Logger    *slog.Logger
}

// Coordinator is the Snapshot/Concurrency Coordinator.
type Coordinator struct {
	calc func(grid.GridState) grid.LayoutResult
	log  *slog.Logger

	current atomic.Pointer[Snapshot]
	updates chan Update

	// mu guards the fields below. CurrentLayout never takes it.
	mu        sync.Mutex
	latest    *grid.GridState
	pending   *grid.GridState
	seq       uint64
	computing bool
	idle      chan struct{}
	hooks     []func(uint64)

	published, skipped, computed, superseded atomic.Uint64
}

// New returns an idle coordinator with an empty layout.
func New(opts Options) *Coordinator {
	calc := opts.Calculate
	if calc == nil {
		calc = grid.Calculate
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Coordinator{
		calc:    calc,
		log:     logger.With("component", "coordinator"),
		updates: make(chan Update, 1),
		idle:    make(chan struct{}),
	}
	close(c.idle)
	c.current.Store(&Snapshot{})
	return c
}

// Publish hands a new state to the coordinator. It returns immediately; the
// layout is computed on a background goroutine. A newer Publish supersedes
// any computation still running for an older one. Publishing a state equal
// to the last published one does nothing.
func (c *Coordinator) Publish(state grid.GridState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.latest != nil && c.latest.Equal(state) {
		c.skipped.Add(1)
		return
	}
	c.latest = &state
	c.pending = &state
	c.seq++
	c.published.Add(1)

	if !c.computing {
		c.computing = true
		c.idle = make(chan struct{})
		go c.loop()
	}
}

// CurrentLayout returns the most recently published layout.
func (c *Coordinator) CurrentLayout() grid.LayoutResult {
	return c.current.Load().Layout
}

// Current returns the most recently published snapshot.
func (c *Coordinator) Current() Snapshot {
	return *c.current.Load()
}

// Generation returns the current generation.
func (c *Coordinator) Generation() uint64 {
	return c.current.Load().Generation
}

// Updates delivers redraw notifications. The channel holds at most one
// pending update; a newer one replaces an unread older one.
func (c *Coordinator) Updates() <-chan Update {
	return c.updates
}

// OnGeneration registers fn to run each time the generation advances, before
// the layout that caused it becomes visible to readers. Hooks run on the
// coordinator's goroutine in generation order.
func (c *Coordinator) OnGeneration(fn func(generation uint64)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, fn)
}

// ImageReady raises an image update if generation is still current. Results
// from superseded generations are ignored.
func (c *Coordinator) ImageReady(generation uint64) {
	if generation != c.Generation() {
		return
	}
	c.notify(Update{Generation: generation, Reason: ImageUpdated})
}

// Sync blocks until no computation is pending or ctx ends.
func (c *Coordinator) Sync(ctx context.Context) error {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ready reports whether any layout has been published yet.
func (c *Coordinator) Ready() bool {
	return c.current.Load().ready
}

// Stats returns current counters.
func (c *Coordinator) Stats() Stats {
	return Stats{
		Published:  c.published.Load(),
		Skipped:    c.skipped.Load(),
		Computed:   c.computed.Load(),
		Superseded: c.superseded.Load(),
		Generation: c.Generation(),
	}
}

func (c *Coordinator) loop() {
	for {
		c.mu.Lock()
		if c.pending == nil {
			c.computing = false
			close(c.idle)
			c.mu.Unlock()
			return
		}
		state, seq := *c.pending, c.seq
		c.pending = nil
		c.mu.Unlock()

		layout := c.calc(state)
		c.computed.Add(1)

		c.mu.Lock()
		if seq != c.seq {
			c.mu.Unlock()
			c.superseded.Add(1)
			continue
		}
		hooks := slices.Clone(c.hooks)
		c.mu.Unlock()

		prev := c.current.Load()
		next := &Snapshot{State: state, Layout: layout, Generation: prev.Generation, ready: true}
		advanced := windowChanged(prev, next)
		if advanced {
			next.Generation++
			for _, fn := range hooks {
				fn(next.Generation)
			}
			c.log.Debug("generation advanced", "generation", next.Generation,
				"visible_start", layout.VisibleStart, "visible_end", layout.VisibleEnd)
		}
		c.current.Store(next)
		c.notify(Update{Generation: next.Generation, Reason: LayoutUpdated})
	}
}

// windowChanged reports whether next shows a different set of tiles than
// prev. The very first layout establishes generation zero.
func windowChanged(prev, next *Snapshot) bool {
	if !prev.ready {
		return false
	}
	if prev.Layout.VisibleStart != next.Layout.VisibleStart ||
		prev.Layout.VisibleEnd != next.Layout.VisibleEnd ||
		prev.Layout.Columns != next.Layout.Columns {
		return true
	}
	return !slices.Equal(prev.State.Tiles, next.State.Tiles)
}

func (c *Coordinator) notify(u Update) {
	select {
	case c.updates <- u:
		return
	default:
	}
	// Replace the unread update with the newer one.
	select {
	case <-c.updates:
	default:
	}
	select {
	case c.updates <- u:
	default:
	}
}
