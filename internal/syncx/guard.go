// Package syncx provides small generic concurrency helpers.
package syncx

import (
	"cmp"
	"slices"
	"sync"
)

// Value guards a value that one goroutine replaces and many read.
type Value[T any] struct {
	mu sync.RWMutex
	v  T
}

// NewValue creates a guarded value.
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{v: initial}
}

// Load returns a copy of the value.
func (x *Value[T]) Load() T {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.v
}

// Store replaces the value.
func (x *Value[T]) Store(v T) {
	x.mu.Lock()
	x.v = v
	x.mu.Unlock()
}

// Swap replaces the value and returns the previous one.
func (x *Value[T]) Swap(v T) T {
	x.mu.Lock()
	defer x.mu.Unlock()
	old := x.v
	x.v = v
	return old
}

// Map is a guarded map with ordered keys. When clone is set, values are
// cloned on the way in and out so callers never share memory with the map.
type Map[K cmp.Ordered, V any] struct {
	mu    sync.RWMutex
	m     map[K]V
	clone func(V) V
}

// NewMap creates an empty map. clone may be nil for plain value types.
func NewMap[K cmp.Ordered, V any](clone func(V) V) *Map[K, V] {
	if clone == nil {
		clone = func(v V) V { return v }
	}
	return &Map[K, V]{m: make(map[K]V), clone: clone}
}

// Load returns the value stored under k.
func (m *Map[K, V]) Load(k K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.m[k]
	if !ok {
		return v, false
	}
	return m.clone(v), true
}

// Store sets the value under k.
func (m *Map[K, V]) Store(k K, v V) {
	v = m.clone(v)
	m.mu.Lock()
	m.m[k] = v
	m.mu.Unlock()
}

// Delete removes k and reports whether it was present.
func (m *Map[K, V]) Delete(k K) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.m[k]
	delete(m.m, k)
	return ok
}

// Len returns the number of entries.
func (m *Map[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.m)
}

// Values returns all values ordered by key.
func (m *Map[K, V]) Values() []V {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]K, 0, len(m.m))
	for k := range m.m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]V, len(keys))
	for i, k := range keys {
		out[i] = m.clone(m.m[k])
	}
	return out
}
