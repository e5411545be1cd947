package fetch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"tableflip.dev/tilegrid/pkg/imagecache"
)

var (
	// ErrCancelled resolves tickets whose generation was superseded before
	// their bytes arrived.
	ErrCancelled = errors.New("fetch: request cancelled by a newer generation")
	// ErrStopped resolves tickets still queued when the scheduler stops.
	ErrStopped = errors.New("fetch: scheduler stopped")
)

// Ticket is one logical request for a key. Every caller asking for the same
// key while the ticket is outstanding gets the same Ticket back.
type Ticket struct {
	key imagecache.Key

	generation atomic.Uint64
	cancelled  atomic.Bool
	listeners  atomic.Int32

	// Guarded by the scheduler's table lock.
	priority int
	seq      uint64
	queued   bool

	once sync.Once
	done chan struct{}
	data []byte
	err  error
}

func newTicket(key imagecache.Key, generation uint64) *Ticket {
	t := &Ticket{key: key, done: make(chan struct{})}
	t.generation.Store(generation)
	return t
}

// Key is the image this ticket fetches.
func (t *Ticket) Key() imagecache.Key { return t.key }

// Generation is the scheduler generation the ticket is live for.
func (t *Ticket) Generation() uint64 { return t.generation.Load() }

// Cancelled reports whether a newer generation has superseded the ticket.
func (t *Ticket) Cancelled() bool { return t.cancelled.Load() }

// Listeners is the number of Request calls served by this ticket.
func (t *Ticket) Listeners() int { return int(t.listeners.Load()) }

// Done is closed once the ticket resolves.
func (t *Ticket) Done() <-chan struct{} { return t.done }

// Result returns the outcome. It is only meaningful after Done is closed.
func (t *Ticket) Result() ([]byte, error) {
	select {
	case <-t.done:
		return t.data, t.err
	default:
		return nil, errors.New("fetch: ticket unresolved")
	}
}

// Wait blocks until the ticket resolves or ctx ends.
func (t *Ticket) Wait(ctx context.Context) ([]byte, error) {
	select {
	case <-t.done:
		return t.data, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *Ticket) resolve(data []byte, err error) {
	t.once.Do(func() {
		t.data, t.err = data, err
		close(t.done)
	})
}
