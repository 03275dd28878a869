// Package weakmap provides a map keyed by object identity that does not keep
// its keys alive. An entry disappears once its key has been collected.
package weakmap

import (
	"runtime"
	"sync"
	"weak"
)

// Map associates values with pointers without retaining the pointees.
// It is safe for concurrent use.
type Map[K any, V any] struct {
	mu sync.Mutex
	m  map[weak.Pointer[K]]V
}

// New creates an empty Map.
func New[K any, V any]() *Map[K, V] {
	return &Map[K, V]{m: make(map[weak.Pointer[K]]V)}
}

// Set associates v with key. A nil key is ignored.
func (m *Map[K, V]) Set(key *K, v V) {
	if key == nil {
		return
	}
	wp := weak.Make(key)

	m.mu.Lock()
	_, exists := m.m[wp]
	m.m[wp] = v
	m.mu.Unlock()

	if !exists {
		runtime.AddCleanup(key, m.remove, wp)
	}
}

// Get returns the value associated with key.
func (m *Map[K, V]) Get(key *K) (V, bool) {
	var zero V
	if key == nil {
		return zero, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.m[weak.Make(key)]
	return v, ok
}

// Delete removes the entry for key.
func (m *Map[K, V]) Delete(key *K) {
	if key == nil {
		return
	}
	m.remove(weak.Make(key))
}

// Len returns the number of live entries.
func (m *Map[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.m)
}

func (m *Map[K, V]) remove(wp weak.Pointer[K]) {
	m.mu.Lock()
	delete(m.m, wp)
	m.mu.Unlock()
}
