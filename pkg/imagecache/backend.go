package imagecache

import (
	"errors"
	"io/fs"
	"sync"
)

var (
	// ErrNotFound is returned by backends for missing keys.
	ErrNotFound = errors.New("imagecache: not found")
	// ErrCorrupt marks a stored blob whose framing does not check out.
	ErrCorrupt = errors.New("imagecache: corrupt entry")
	// ErrTooLarge is returned by Put for entries bigger than the ceiling.
	ErrTooLarge = errors.New("imagecache: entry exceeds cache ceiling")
)

// Backend is the persistence boundary of a Cache: keyed blob storage plus a
// scan for rebuilding the index. *diskv.Diskv satisfies it.
type Backend interface {
	Read(key string) ([]byte, error)
	Write(key string, val []byte) error
	Erase(key string) error
	EraseAll() error
	Keys(cancel <-chan struct{}) <-chan string
}

func isMissing(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}

// MemoryBackend keeps blobs in a map. It backs the in-memory tier.
type MemoryBackend struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{blobs: make(map[string][]byte)}
}

func (m *MemoryBackend) Read(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	val, ok := m.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return val, nil
}

func (m *MemoryBackend) Write(key string, val []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = val
	return nil
}

func (m *MemoryBackend) Erase(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[key]; !ok {
		return ErrNotFound
	}
	delete(m.blobs, key)
	return nil
}

func (m *MemoryBackend) EraseAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs = make(map[string][]byte)
	return nil
}

func (m *MemoryBackend) Keys(cancel <-chan struct{}) <-chan string {
	m.mu.RLock()
	keys := make([]string, 0, len(m.blobs))
	for k := range m.blobs {
		keys = append(keys, k)
	}
	m.mu.RUnlock()
	return streamKeys(keys, cancel)
}

func streamKeys(keys []string, cancel <-chan struct{}) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		for _, k := range keys {
			select {
			case ch <- k:
			case <-cancel:
				return
			}
		}
	}()
	return ch
}
