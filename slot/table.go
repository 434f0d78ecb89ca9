// Package slot holds the current processor per source.
//
// Table is a copy-on-write map. Writers build a new map under one mutex and
// publish it with an atomic pointer swap; readers load the pointer and never
// lock. A reader therefore sees either the map before a write or the map
// after it, never a partial update.
//
// Thread-safety:
//   - Get, Len, Keys: lock free, safe from any goroutine (frame delivery)
//   - Set, Clear, Reset: serialized on one mutex; no user code runs while held
package slot

import (
	"cmp"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
)

// Table maps keys to values with atomic snapshot reads.
// The zero value is ready to use.
type Table[K cmp.Ordered, V any] struct {
	mu   sync.Mutex
	snap atomic.Pointer[map[K]V]
	gen  atomic.Uint64
}

func (t *Table[K, V]) load() map[K]V {
	if p := t.snap.Load(); p != nil {
		return *p
	}
	return nil
}

// Get returns the value stored for k.
func (t *Table[K, V]) Get(k K) (V, bool) {
	v, ok := t.load()[k]
	return v, ok
}

// Len returns the number of occupied slots.
func (t *Table[K, V]) Len() int {
	return len(t.load())
}

// Keys returns occupied keys in ascending order.
func (t *Table[K, V]) Keys() []K {
	m := t.load()
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Generation increments on every mutation. Useful to detect that a slot
// changed between two reads.
func (t *Table[K, V]) Generation() uint64 {
	return t.gen.Load()
}

// Set stores v for k, returning the replaced value if there was one.
func (t *Table[K, V]) Set(k K, v V) (prev V, replaced bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	old := t.load()
	prev, replaced = old[k]
	next := make(map[K]V, len(old)+1)
	for key, val := range old {
		next[key] = val
	}
	next[k] = v
	t.publish(next)
	return prev, replaced
}

// Clear empties the slot for k. Clearing an empty slot is a no-op and does
// not publish a new snapshot.
func (t *Table[K, V]) Clear(k K) (prev V, cleared bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	old := t.load()
	prev, cleared = old[k]
	if !cleared {
		return prev, false
	}
	next := make(map[K]V, len(old))
	for key, val := range old {
		if key != k {
			next[key] = val
		}
	}
	t.publish(next)
	return prev, true
}

// Reset empties every slot and returns what was stored.
func (t *Table[K, V]) Reset() map[K]V {
	t.mu.Lock()
	defer t.mu.Unlock()

	old := t.load()
	if len(old) == 0 {
		return map[K]V{}
	}
	t.publish(map[K]V{})
	return maps.Clone(old)
}

func (t *Table[K, V]) publish(next map[K]V) {
	t.snap.Store(&next)
	t.gen.Add(1)
}
