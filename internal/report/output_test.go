package report

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/itsmostafa/funpad/internal/loader"
	"github.com/itsmostafa/funpad/internal/reload"
)

func TestFormatCycle(t *testing.T) {
	tests := []struct {
		name    string
		cycle   reload.Cycle
		want    []string
		notWant []string
	}{
		{
			name: "accepted symbols and result",
			cycle: reload.Cycle{
				Seq: 1, Load: "funpad.user.scratch_1", Duration: 1500 * time.Microsecond,
				Accepted: []string{"f", "main"}, MainInvoked: true, MainResult: "2",
			},
			want: []string{"RELOAD 1", "funpad.user.scratch_1", "1.5ms", "New locals:", "f", "main", "Executing main...", "2"},
		},
		{
			name: "nothing changed, main returned nothing",
			cycle: reload.Cycle{
				Seq: 2, Load: "funpad.user.scratch_2",
				Unchanged: []string{"counter"}, MainInvoked: true,
			},
			want: []string{"No changes", "Kept:", "counter", "Executing main...", "Done"},
		},
		{
			name: "load error",
			cycle: reload.Cycle{
				Seq: 3,
				Err: &loader.LoadError{Path: "scratch.js", Cause: errors.New("Line 2:5 Unexpected token")},
			},
			want:    []string{"Load failed", "scratch.js", "Unexpected token"},
			notWant: []string{"Executing main"},
		},
		{
			name: "main raised",
			cycle: reload.Cycle{
				Seq: 4, Accepted: []string{"main"}, MainInvoked: true,
				Err: &reload.EntryPointError{Name: "main", Cause: errors.New("boom")},
			},
			want: []string{"Executing main...", "failed", "main raised", "boom"},
		},
		{
			name:    "no main",
			cycle:   reload.Cycle{Seq: 5, Accepted: []string{"x"}},
			want:    []string{"New locals:", "x"},
			notWant: []string{"Executing main"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			FormatCycle(&buf, tt.cycle)
			out := buf.String()
			for _, s := range tt.want {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.notWant {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestPrinter_Report(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.Report(reload.Cycle{Seq: 7, Accepted: []string{"a"}})
	assert.Contains(t, buf.String(), "RELOAD 7")
}

func TestFormatHeader(t *testing.T) {
	var buf bytes.Buffer
	FormatHeader(&buf, Header{Path: "scratch.js", Session: "abc", WebAddr: "127.0.0.1:8080", Version: "dev"})

	out := buf.String()
	for _, s := range []string{"funpad", "dev", "abc", "scratch.js", "http://127.0.0.1:8080"} {
		assert.Contains(t, out, s)
	}

	buf.Reset()
	FormatHeader(&buf, Header{Path: "scratch.js", Session: "abc", Version: "dev"})
	assert.False(t, strings.Contains(buf.String(), "http://"))
}

func TestFormatError_Nil(t *testing.T) {
	var buf bytes.Buffer
	FormatError(&buf, "title", nil)
	assert.Empty(t, buf.String())
}
