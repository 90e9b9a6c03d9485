package quota

import (
	"context"
	"sync"
	"time"
)

// Counter is an atomic per-identity usage counter.
//
// TryIncrement must check and increment in one atomic step: when the
// stored period predates period, the count restarts at 1; otherwise it is
// incremented only if it is below limit. A negative limit never rejects.
// It returns the count after the increment and whether the increment
// happened.
type Counter interface {
	TryIncrement(ctx context.Context, identity string, period time.Time, limit int) (int, bool, error)

	// Decrement gives back one slot in period. It is a no-op when the
	// stored record belongs to another period or is already zero.
	Decrement(ctx context.Context, identity string, period time.Time) error

	// Usage returns the count for period, zero when the stored record is
	// from an earlier period or absent.
	Usage(ctx context.Context, identity string, period time.Time) (int, error)

	// Purge deletes records whose period started before the cutoff.
	Purge(ctx context.Context, before time.Time) (int64, error)
}

// MemoryCounter is a process-local Counter. Each identity has its own
// lock, so identities never contend with each other.
type MemoryCounter struct {
	entries sync.Map // identity -> *usageEntry
}

type usageEntry struct {
	mu      sync.Mutex
	period  time.Time
	count   int
	removed bool // set by Purge; writers must load a fresh entry
}

// NewMemoryCounter creates an empty MemoryCounter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{}
}

// lock returns the live entry for identity with its mutex held.
func (m *MemoryCounter) lock(identity string) *usageEntry {
	for {
		v, _ := m.entries.LoadOrStore(identity, &usageEntry{})
		e := v.(*usageEntry)
		e.mu.Lock()
		if !e.removed {
			return e
		}
		e.mu.Unlock()
	}
}

func (m *MemoryCounter) TryIncrement(ctx context.Context, identity string, period time.Time, limit int) (int, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	e := m.lock(identity)
	defer e.mu.Unlock()

	if e.period.Before(period) {
		e.period = period
		e.count = 0
	}
	if limit >= 0 && e.count >= limit {
		return e.count, false, nil
	}
	e.count++
	return e.count, true, nil
}

func (m *MemoryCounter) Decrement(ctx context.Context, identity string, period time.Time) error {
	v, ok := m.entries.Load(identity)
	if !ok {
		return nil
	}
	e := v.(*usageEntry)
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.removed && e.period.Equal(period) && e.count > 0 {
		e.count--
	}
	return nil
}

func (m *MemoryCounter) Usage(ctx context.Context, identity string, period time.Time) (int, error) {
	v, ok := m.entries.Load(identity)
	if !ok {
		return 0, nil
	}
	e := v.(*usageEntry)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.removed || !e.period.Equal(period) {
		return 0, nil
	}
	return e.count, nil
}

func (m *MemoryCounter) Purge(ctx context.Context, before time.Time) (int64, error) {
	var purged int64
	m.entries.Range(func(key, v any) bool {
		e := v.(*usageEntry)
		e.mu.Lock()
		if e.period.Before(before) {
			e.removed = true
			m.entries.Delete(key)
			purged++
		}
		e.mu.Unlock()
		return true
	})
	return purged, nil
}
