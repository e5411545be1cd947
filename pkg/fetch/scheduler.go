// Package fetch serializes outbound image requests behind a minimum
// inter-request interval and collapses concurrent requests for the same key
// into a single ticket.
package fetch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/btree"

	"tableflip.dev/tilegrid/pkg/imagecache"
)

// DefaultInterval is the minimum spacing between network calls.
const DefaultInterval = 120 * time.Millisecond

// Transport fetches raw image bytes.
type Transport interface {
	Fetch(ctx context.Context, key imagecache.Key) ([]byte, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, key imagecache.Key) ([]byte, error)

func (f TransportFunc) Fetch(ctx context.Context, key imagecache.Key) ([]byte, error) {
	return f(ctx, key)
}

// Store is where fetched bytes land. Both *imagecache.Cache and
// *imagecache.Tiered satisfy it.
type Store interface {
	TryGet(key imagecache.Key) ([]byte, bool)
	Put(key imagecache.Key, data []byte) error
}

// Options configures a Scheduler.
type Options struct {
	// Interval between successive network calls. Zero means DefaultInterval.
	Interval time.Duration
	// Store receives successful results and is consulted before the
	// network. Optional.
	Store Store
	// OnResolved is called after a live ticket resolves with bytes.
	OnResolved func(*Ticket)
	Logger     *slog.Logger
}

// Stats are scheduler counters.
type Stats struct {
	Outstanding  int    `json:"outstanding"`
	Queued       int    `json:"queued"`
	NetworkCalls uint64 `json:"network_calls"`
	StoreHits    uint64 `json:"store_hits"`
	Failures     uint64 `json:"failures"`
	Discarded    uint64 `json:"discarded"`
	Generation   uint64 `json:"generation"`
}

// Scheduler is the rate-limited fetch queue. Create it with New and drive it
// with Run.
type Scheduler struct {
	transport Transport
	opts      Options
	log       *slog.Logger

	// mu guards the ticket table and queue. It is never held during a
	// network call or a store write.
	mu         sync.Mutex
	table      map[imagecache.Key]*Ticket
	queue      *btree.BTreeG[*Ticket]
	seq        uint64
	generation uint64

	wake    chan struct{}
	running atomic.Bool

	networkCalls, storeHits, failures, discarded atomic.Uint64
}

func lessQueued(a, b *Ticket) bool {
	if a.priority != b.priority {
		return a.priority > b.priority
	}
	return a.seq < b.seq
}

// New returns a scheduler issuing calls through transport.
func New(transport Transport, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		transport: transport,
		opts:      opts,
		log:       logger.With("component", "fetch"),
		table:     make(map[imagecache.Key]*Ticket),
		queue:     btree.NewG[*Ticket](16, lessQueued),
		wake:      make(chan struct{}, 1),
	}
}

// Request returns the ticket for key, creating and queueing one if none is
// outstanding. Higher priorities are issued first; equal priorities go in
// submission order. Request never blocks on the network.
func (s *Scheduler) Request(key imagecache.Key, priority int) *Ticket {
	key = key.Normalize()

	s.mu.Lock()
	if t, ok := s.table[key]; ok {
		t.listeners.Add(1)
		if t.cancelled.Load() {
			// Still wanted after all: keep its place and its in-flight call.
			t.generation.Store(s.generation)
			t.cancelled.Store(false)
		}
		if t.queued && priority > t.priority {
			s.queue.Delete(t)
			t.priority = priority
			s.queue.ReplaceOrInsert(t)
		}
		s.mu.Unlock()
		return t
	}

	t := newTicket(key, s.generation)
	t.listeners.Store(1)
	s.seq++
	t.priority, t.seq, t.queued = priority, s.seq, true
	s.table[key] = t
	s.queue.ReplaceOrInsert(t)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return t
}

// Cancel advances the scheduler to generation and marks every outstanding
// ticket from an older generation cancelled. Queued cancelled tickets are
// dropped without a network call; in-flight ones have their result
// discarded on arrival.
func (s *Scheduler) Cancel(generation uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if generation <= s.generation {
		return
	}
	s.generation = generation
	for _, t := range s.table {
		if t.generation.Load() < generation {
			t.cancelled.Store(true)
		}
	}
}

// Generation returns the generation new tickets are stamped with.
func (s *Scheduler) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Stats returns current counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	st := Stats{Outstanding: len(s.table), Queued: s.queue.Len(), Generation: s.generation}
	s.mu.Unlock()
	st.NetworkCalls = s.networkCalls.Load()
	st.StoreHits = s.storeHits.Load()
	st.Failures = s.failures.Load()
	st.Discarded = s.discarded.Load()
	return st
}

// Run processes the queue until ctx is done. Tickets still outstanding at
// that point resolve with ErrStopped.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("fetch: scheduler already running")
	}
	defer s.running.Store(false)
	defer s.drain()

	var lastCall time.Time
	for {
		if ctx.Err() != nil {
			return nil
		}
		t, ok := s.next(ctx)
		if !ok {
			return nil
		}
		if s.dropIfCancelled(t) {
			continue
		}
		if s.opts.Store != nil {
			if data, hit := s.opts.Store.TryGet(t.key); hit {
				s.storeHits.Add(1)
				s.finish(t, data, nil, true)
				continue
			}
		}

		if !lastCall.IsZero() {
			if wait := s.opts.Interval - time.Since(lastCall); wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-ctx.Done():
					timer.Stop()
					s.finish(t, nil, ErrStopped, false)
					return nil
				case <-timer.C:
				}
			}
		}
		// The wait may have outlived the ticket's generation.
		if s.dropIfCancelled(t) {
			continue
		}

		lastCall = time.Now()
		s.networkCalls.Add(1)
		data, err := s.transport.Fetch(ctx, t.key)
		s.finish(t, data, err, false)
	}
}

// next pops the highest priority ticket, waiting for one if the queue is
// empty.
func (s *Scheduler) next(ctx context.Context) (*Ticket, bool) {
	for {
		s.mu.Lock()
		t, ok := s.queue.DeleteMin()
		if ok {
			t.queued = false
		}
		s.mu.Unlock()
		if ok {
			return t, true
		}
		select {
		case <-ctx.Done():
			return nil, false
		case <-s.wake:
		}
	}
}

func (s *Scheduler) dropIfCancelled(t *Ticket) bool {
	s.mu.Lock()
	if !t.cancelled.Load() {
		s.mu.Unlock()
		return false
	}
	s.removeLocked(t)
	s.mu.Unlock()
	s.discarded.Add(1)
	t.resolve(nil, ErrCancelled)
	return true
}

func (s *Scheduler) finish(t *Ticket, data []byte, err error, fromStore bool) {
	s.mu.Lock()
	s.removeLocked(t)
	cancelled := t.cancelled.Load()
	s.mu.Unlock()

	switch {
	case err != nil:
		s.failures.Add(1)
		s.log.Debug("fetch failed", "key", t.key.String(), "error", err)
		t.resolve(nil, err)
		return
	case cancelled:
		s.discarded.Add(1)
		s.log.Debug("discarding stale result", "key", t.key.String(), "generation", t.Generation())
		t.resolve(nil, ErrCancelled)
		return
	}

	if !fromStore && s.opts.Store != nil {
		if perr := s.opts.Store.Put(t.key, data); perr != nil {
			// The bytes still reach every listener.
			s.log.Warn("cache write failed", "key", t.key.String(), "error", perr)
		}
	}
	t.resolve(data, nil)
	if s.opts.OnResolved != nil {
		s.opts.OnResolved(t)
	}
}

func (s *Scheduler) removeLocked(t *Ticket) {
	if cur, ok := s.table[t.key]; ok && cur == t {
		delete(s.table, t.key)
	}
	if t.queued {
		s.queue.Delete(t)
		t.queued = false
	}
}

func (s *Scheduler) drain() {
	s.mu.Lock()
	pending := make([]*Ticket, 0, len(s.table))
	for _, t := range s.table {
		pending = append(pending, t)
	}
	s.table = make(map[imagecache.Key]*Ticket)
	s.queue.Clear(false)
	s.mu.Unlock()
	for _, t := range pending {
		t.resolve(nil, ErrStopped)
	}
}
