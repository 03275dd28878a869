package namespace

import (
	"sync"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eval(t *testing.T, vm *goja.Runtime, code string) goja.Value {
	t.Helper()
	v, err := vm.RunString(code)
	require.NoError(t, err)
	return v
}

func TestStore_MergeAndLookup(t *testing.T) {
	vm := goja.New()
	s := New()

	s.Merge(1, map[string]goja.Value{
		"x": vm.ToValue(1),
		"f": eval(t, vm, "(function f() { return 1; })"),
	})

	v, ok := s.Get("x")
	require.True(t, ok)
	assert.Equal(t, int64(1), v.Export())

	e, ok := s.Lookup("f")
	require.True(t, ok)
	assert.Equal(t, "function", e.Kind)
	assert.Equal(t, "[Function: f]", e.Preview)
	assert.Equal(t, 1, e.Cycle)

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestStore_MergeNeverDeletes(t *testing.T) {
	vm := goja.New()
	s := New()

	s.Merge(1, map[string]goja.Value{"a": vm.ToValue(1), "b": vm.ToValue(2)})
	s.Merge(2, map[string]goja.Value{"b": vm.ToValue(3)})
	s.Merge(3, nil)

	assert.Equal(t, []string{"a", "b"}, s.Names())
	e, _ := s.Lookup("a")
	assert.Equal(t, 1, e.Cycle)
	e, _ = s.Lookup("b")
	assert.Equal(t, 2, e.Cycle)
	assert.Equal(t, int64(3), e.Value.Export())
}

func TestStore_Set(t *testing.T) {
	vm := goja.New()
	s := New()

	s.Set("answer", vm.ToValue(42))

	e, ok := s.Lookup("answer")
	require.True(t, ok)
	assert.Equal(t, -1, e.Cycle)
	assert.Equal(t, "number", e.Kind)
	assert.Equal(t, "42", e.Preview)
}

func TestStore_Snapshot(t *testing.T) {
	vm := goja.New()
	s := New()
	s.Set("zeta", vm.ToValue("z"))
	s.Set("alpha", vm.ToValue("a"))

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "alpha", snap[0].Name)
	assert.Equal(t, "zeta", snap[1].Name)

	s.Set("beta", vm.ToValue("b"))
	assert.Len(t, snap, 2, "snapshot is a copy")
	assert.Equal(t, 3, s.Len())
}

func TestStore_Sources(t *testing.T) {
	vm := goja.New()
	s := New()

	fn := eval(t, vm, "(function f() {})")
	s.RecordSource(fn, "function f() {}")

	src, ok := s.PriorSource(fn)
	require.True(t, ok)
	assert.Equal(t, "function f() {}", src)

	other := eval(t, vm, "(function f() {})")
	_, ok = s.PriorSource(other)
	assert.False(t, ok, "sources are tracked per object")

	// Primitives cannot be tracked.
	s.RecordSource(vm.ToValue(1), "x = 1")
	_, ok = s.PriorSource(vm.ToValue(1))
	assert.False(t, ok)
}

func TestStore_ConcurrentReaders(t *testing.T) {
	vm := goja.New()
	s := New()
	values := make([]goja.Value, 50)
	for i := range values {
		values[i] = vm.ToValue(i)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				for _, e := range s.Snapshot() {
					if e.Name != "n" {
						continue
					}
					// Preview was computed from the same value.
					assert.Equal(t, e.Preview, e.Value.String())
				}
			}
		}()
	}

	for i, v := range values {
		s.Merge(i, map[string]goja.Value{"n": v})
	}
	close(stop)
	wg.Wait()
}

func TestStore_RefreshFollowsMutation(t *testing.T) {
	vm := goja.New()
	s := New()

	state, err := vm.RunString("({n: 0})")
	require.NoError(t, err)
	s.Merge(0, map[string]goja.Value{"state": state, "x": vm.ToValue(1)})

	e, _ := s.Lookup("state")
	assert.Equal(t, `{"n":0}`, e.Preview)

	require.NoError(t, state.(*goja.Object).Set("n", 3))

	e, _ = s.Lookup("state")
	assert.Equal(t, `{"n":0}`, e.Preview, "listing does not touch the runtime")

	s.Refresh()
	e, _ = s.Lookup("state")
	assert.Equal(t, `{"n":3}`, e.Preview)
	assert.Equal(t, "object", e.Kind)
	assert.Equal(t, 0, e.Cycle, "refresh keeps the writing cycle")

	x, _ := s.Lookup("x")
	assert.Equal(t, "1", x.Preview)
}

func TestStore_ThrowingGetterDoesNotPanic(t *testing.T) {
	vm := goja.New()
	s := New()

	v := eval(t, vm, "({ get boom() { throw new Error('no'); } })")
	assert.NotPanics(t, func() {
		s.Merge(1, map[string]goja.Value{"odd": v})
		s.Refresh()
	})
	e, ok := s.Lookup("odd")
	require.True(t, ok)
	assert.NotEmpty(t, e.Preview)
}
