package imagecache

import (
	"errors"
	"time"
)

// Tiered puts an in-memory cache in front of a persisted one. Put always
// lands in memory so freshly fetched bytes are usable even when the disk
// write fails; disk failures go to the disk cache's OnError.
type Tiered struct {
	Memory *Cache
	Disk   *Cache
}

// TieredStats reports both tiers.
type TieredStats struct {
	Memory Stats  `json:"memory"`
	Disk   *Stats `json:"disk,omitempty"`
}

// TryGet checks memory, then disk. Disk hits are promoted into memory.
func (t *Tiered) TryGet(key Key) ([]byte, bool) {
	if data, ok := t.Memory.TryGet(key); ok {
		return data, true
	}
	if t.Disk == nil {
		return nil, false
	}
	data, ok := t.Disk.TryGet(key)
	if !ok {
		return nil, false
	}
	if err := t.Memory.Put(key, data); err != nil {
		t.Memory.log.Debug("promotion skipped", "key", key.String(), "error", err)
	}
	return data, true
}

// Put writes to memory and then to disk. It only fails when neither tier
// accepted the entry.
func (t *Tiered) Put(key Key, data []byte) error {
	memErr := t.Memory.Put(key, data)
	if t.Disk == nil {
		return memErr
	}
	diskErr := t.Disk.Put(key, data)
	if memErr != nil && diskErr != nil {
		return errors.Join(memErr, diskErr)
	}
	return nil
}

// Sweep applies the retention policy to both tiers.
func (t *Tiered) Sweep(now time.Time) int {
	n := t.Memory.Sweep(now)
	if t.Disk != nil {
		n += t.Disk.Sweep(now)
	}
	return n
}

// Clear empties both tiers.
func (t *Tiered) Clear() error {
	err := t.Memory.Clear()
	if t.Disk != nil {
		err = errors.Join(err, t.Disk.Clear())
	}
	return err
}

// Stats reports both tiers.
func (t *Tiered) Stats() TieredStats {
	s := TieredStats{Memory: t.Memory.Stats()}
	if t.Disk != nil {
		ds := t.Disk.Stats()
		s.Disk = &ds
	}
	return s
}
