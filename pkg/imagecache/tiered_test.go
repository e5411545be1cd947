package imagecache

import (
	"errors"
	"sync/atomic"
	"testing"
)

type failingBackend struct {
	*MemoryBackend
	writes atomic.Int32
}

var errDiskFull = errors.New("disk full")

func (f *failingBackend) Write(string, []byte) error {
	f.writes.Add(1)
	return errDiskFull
}

func TestTieredDiskFailureStillServesFromMemory(t *testing.T) {
	var reported []error
	disk := New(&failingBackend{MemoryBackend: NewMemoryBackend()}, Options{
		Name:         "disk",
		CeilingBytes: 1 << 20,
		OnError:      func(err error) { reported = append(reported, err) },
	})
	tiers := &Tiered{Memory: New(NewMemoryBackend(), Options{Name: "memory", CeilingBytes: 1 << 20}), Disk: disk}

	if err := tiers.Put(key("a"), []byte("img")); err != nil {
		t.Fatalf("put should succeed through the memory tier: %v", err)
	}
	got, ok := tiers.TryGet(key("a"))
	if !ok || string(got) != "img" {
		t.Fatalf("TryGet = %q, %v", got, ok)
	}
	if len(reported) != 1 || !errors.Is(reported[0], errDiskFull) {
		t.Fatalf("reported = %v, want one disk full error", reported)
	}
	if disk.Contains(key("a")) {
		t.Fatal("failed write must not be indexed")
	}
}

func TestTieredPromotesDiskHits(t *testing.T) {
	memory := New(NewMemoryBackend(), Options{Name: "memory", CeilingBytes: 1 << 20})
	disk := New(NewMemoryBackend(), Options{Name: "disk", CeilingBytes: 1 << 20})
	if err := disk.Put(key("a"), []byte("from disk")); err != nil {
		t.Fatalf("seed disk: %v", err)
	}
	tiers := &Tiered{Memory: memory, Disk: disk}

	if _, ok := tiers.TryGet(key("a")); !ok {
		t.Fatal("expected disk hit")
	}
	if !memory.Contains(key("a")) {
		t.Fatal("disk hit was not promoted to memory")
	}
	st := tiers.Stats()
	if st.Disk == nil || st.Disk.Hits != 1 || st.Memory.Count != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestTieredLargeEntrySkipsMemory(t *testing.T) {
	memory := New(NewMemoryBackend(), Options{CeilingBytes: 4})
	disk := New(NewMemoryBackend(), Options{CeilingBytes: 1 << 10})
	tiers := &Tiered{Memory: memory, Disk: disk}
	if err := tiers.Put(key("big"), blob(16, 'b')); err != nil {
		t.Fatalf("put: %v", err)
	}
	if memory.Contains(key("big")) || !disk.Contains(key("big")) {
		t.Fatal("oversized entry should only land on disk")
	}
	if err := tiers.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if disk.Stats().Count != 0 {
		t.Fatal("clear left disk entries")
	}
}
