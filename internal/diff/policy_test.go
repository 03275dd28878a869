package diff

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const load = "funpad.user.scratch_2"

func TestPolicy_Decide(t *testing.T) {
	vm := goja.New()
	fnOld, err := vm.RunString("(function f() { return 1; })")
	require.NoError(t, err)
	fnNew, err := vm.RunString("(function f() { return 1; })")
	require.NoError(t, err)

	tests := []struct {
		name string
		c    Candidate
		want Verdict
	}{
		{
			name: "reserved name",
			c:    Candidate{Name: "__hidden", New: vm.ToValue(1), Origin: load + ".__hidden"},
			want: RejectedReserved,
		},
		{
			name: "reserved main-like name",
			c:    Candidate{Name: "__main", New: fnNew, NewSource: "function __main() {}", Origin: load + ".__main"},
			want: RejectedReserved,
		},
		{
			name: "new symbol",
			c:    Candidate{Name: "f", New: fnNew, NewSource: "function f() { return 1; }", Origin: load + ".f"},
			want: Accepted,
		},
		{
			name: "foreign origin",
			c:    Candidate{Name: "g", New: fnNew, NewSource: "g = other", Origin: "funpad.user.scratch_1.f"},
			want: RejectedForeign,
		},
		{
			name: "no origin",
			c:    Candidate{Name: "max", New: fnNew, NewSource: "max = Math.max"},
			want: RejectedForeign,
		},
		{
			name: "prefix of another load is foreign",
			c:    Candidate{Name: "f", New: fnNew, NewSource: "function f() {}", Origin: "funpad.user.scratch_21.f"},
			want: RejectedForeign,
		},
		{
			name: "unchanged source",
			c: Candidate{
				Name: "f", New: fnNew, NewSource: "function f() { return 1; }", Origin: load + ".f",
				Old: fnOld, OldSource: "function f() { return 1; }",
			},
			want: RejectedUnchanged,
		},
		{
			name: "changed source",
			c: Candidate{
				Name: "f", New: fnNew, NewSource: "function f() { return 2; }", Origin: load + ".f",
				Old: fnOld, OldSource: "function f() { return 1; }",
			},
			want: Accepted,
		},
		{
			name: "main with unchanged source",
			c: Candidate{
				Name: EntryPoint, New: fnNew, NewSource: "function main() {}", Origin: load + ".main",
				Old: fnOld, OldSource: "function main() {}",
			},
			want: Accepted,
		},
		{
			name: "old value without recorded source",
			c: Candidate{
				Name: "f", New: fnNew, NewSource: "function f() { return 1; }", Origin: load + ".f",
				Old: fnOld,
			},
			want: Accepted,
		},
		{
			name: "equal plain data",
			c:    Candidate{Name: "x", New: vm.ToValue(5), Old: vm.ToValue(5), Origin: load + ".x"},
			want: RejectedUnchanged,
		},
		{
			name: "different plain data",
			c:    Candidate{Name: "x", New: vm.ToValue(6), Old: vm.ToValue(5), Origin: load + ".x"},
			want: Accepted,
		},
		{
			name: "plain data first seen",
			c:    Candidate{Name: "x", New: vm.ToValue("s"), Origin: load + ".x"},
			want: Accepted,
		},
	}

	p := NewPolicy(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Decide(load, tt.c)
			assert.Equal(t, tt.want, got, "got %s", got)
			assert.Equal(t, tt.want == Accepted, p.Accept(load, tt.c))
		})
	}
}

// panicky is a goja.Value whose comparison blows up.
type panicky struct{ goja.Value }

func (panicky) SameAs(goja.Value) bool { panic("uncomparable") }

func TestPolicy_ComparisonFailureIsAChange(t *testing.T) {
	vm := goja.New()
	var logs bytes.Buffer
	p := NewPolicy(slog.New(slog.NewTextHandler(&logs, nil)))

	c := Candidate{Name: "x", New: panicky{vm.ToValue(1)}, Old: vm.ToValue(1), Origin: load + ".x"}

	assert.Equal(t, Accepted, p.Decide(load, c))
	assert.Contains(t, logs.String(), "comparison failed")
}

func TestVerdict_String(t *testing.T) {
	assert.Equal(t, "accepted", Accepted.String())
	assert.Equal(t, "reserved", RejectedReserved.String())
	assert.Equal(t, "foreign", RejectedForeign.String())
	assert.Equal(t, "unchanged", RejectedUnchanged.String())
	assert.Equal(t, "verdict(9)", Verdict(9).String())
}
