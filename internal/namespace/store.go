// Package namespace holds the persistent symbol table shared by the reload
// engine, the REPL and the web surface.
package namespace

import (
	"sort"
	"sync"

	"github.com/dop251/goja"

	"github.com/itsmostafa/funpad/internal/script"
	"github.com/itsmostafa/funpad/internal/weakmap"
)

// Entry is one name of the namespace.
type Entry struct {
	Name  string
	Value goja.Value

	// Kind and Preview are computed when the entry is written and again on
	// Refresh, so listing the namespace never needs the runtime.
	Kind    string
	Preview string

	// Cycle is the reload cycle that wrote the entry; -1 for REPL writes.
	Cycle int
}

// Store maps names to values across reload cycles. Entries are only ever
// added or overwritten: a definition removed from the watched file stays.
//
// Writers (Merge, Set, Refresh) must hold the script runtime because describing a
// value may call into the VM. Readers may run on any goroutine.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Entry

	sources *weakmap.Map[goja.Object, string]
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		entries: make(map[string]Entry),
		sources: weakmap.New[goja.Object, string](),
	}
}

// Get returns the value bound to name.
func (s *Store) Get(name string) (goja.Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[name]
	if !ok {
		return nil, false
	}
	return e.Value, true
}

// Lookup returns the full entry for name.
func (s *Store) Lookup(name string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[name]
	return e, ok
}

// Set binds a single name, as the REPL does.
func (s *Store) Set(name string, v goja.Value) {
	e := describe(name, v, -1)

	s.mu.Lock()
	s.entries[name] = e
	s.mu.Unlock()
}

// Merge writes every accepted pair of a reload cycle. Names absent from
// accepted are left untouched.
func (s *Store) Merge(cycle int, accepted map[string]goja.Value) {
	if len(accepted) == 0 {
		return
	}

	described := make([]Entry, 0, len(accepted))
	for name, v := range accepted {
		described = append(described, describe(name, v, cycle))
	}

	// Each pair is written under the lock on its own so readers see either
	// the old or the new binding of a name, never a torn one.
	for _, e := range described {
		s.mu.Lock()
		s.entries[e.Name] = e
		s.mu.Unlock()
	}
}

// Refresh recomputes kind and preview of every entry from the current state
// of its value. Objects mutated after they were written (by main or the
// shell) are listed as they are now.
func (s *Store) Refresh() {
	current := s.Snapshot()
	for _, e := range current {
		kind, preview := safeDescribe(e.Value)
		if kind == e.Kind && preview == e.Preview {
			continue
		}
		s.mu.Lock()
		if cur, ok := s.entries[e.Name]; ok && sameValue(cur.Value, e.Value) {
			cur.Kind, cur.Preview = kind, preview
			s.entries[e.Name] = cur
		}
		s.mu.Unlock()
	}
}

// Len returns the number of names.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Names returns all names in sorted order.
func (s *Store) Names() []string {
	s.mu.RLock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	s.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Snapshot returns a copy of all entries sorted by name.
func (s *Store) Snapshot() []Entry {
	s.mu.RLock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RecordSource remembers the source text that produced v without keeping v
// alive. Values that are not objects have no identity and are ignored.
func (s *Store) RecordSource(v goja.Value, text string) {
	if obj, ok := v.(*goja.Object); ok {
		s.sources.Set(obj, text)
	}
}

// PriorSource returns the source text last recorded for v.
func (s *Store) PriorSource(v goja.Value) (string, bool) {
	obj, ok := v.(*goja.Object)
	if !ok {
		return "", false
	}
	return s.sources.Get(obj)
}

func describe(name string, v goja.Value, cycle int) Entry {
	kind, preview := safeDescribe(v)
	return Entry{Name: name, Value: v, Kind: kind, Preview: preview, Cycle: cycle}
}

// safeDescribe survives getters and proxies that throw while the value is
// exported.
func safeDescribe(v goja.Value) (kind, preview string) {
	defer func() {
		if r := recover(); r != nil {
			kind, preview = "object", "[unavailable]"
		}
	}()
	return script.Describe(v)
}

// sameValue compares by identity. goja strings may be slices, so == on the
// interfaces is not safe.
func sameValue(a, b goja.Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.SameAs(b)
}
