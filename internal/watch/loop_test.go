package watch

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsmostafa/funpad/internal/reload"
)

type fakeNotifier struct {
	changed chan struct{}
	errs    chan error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{changed: make(chan struct{}), errs: make(chan error, 1)}
}

func (n *fakeNotifier) Changed() <-chan struct{} { return n.changed }
func (n *fakeNotifier) Errors() <-chan error     { return n.errs }
func (n *fakeNotifier) Close() error {
	close(n.changed)
	return nil
}

type recordingRunner struct {
	mu   sync.Mutex
	seqs []int
	ran  chan int
}

func newRecordingRunner() *recordingRunner {
	return &recordingRunner{ran: make(chan int, 16)}
}

func (r *recordingRunner) RunOnce(_ context.Context, seq int) reload.Cycle {
	r.mu.Lock()
	r.seqs = append(r.seqs, seq)
	r.mu.Unlock()
	r.ran <- seq

	c := reload.Cycle{Seq: seq}
	if seq == 1 {
		c.Err = errors.New("cycle failed")
	}
	return c
}

func (r *recordingRunner) Seqs() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.seqs...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func waitRun(t *testing.T, r *recordingRunner, want int) {
	t.Helper()
	select {
	case got := <-r.ran:
		assert.Equal(t, want, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("cycle %d never ran", want)
	}
}

func TestLoop_RunsInitialCycleAndOnePerChange(t *testing.T) {
	runner := newRecordingRunner()
	notifier := newFakeNotifier()
	loop := NewLoop(runner, notifier, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	waitRun(t, runner, 0)

	notifier.changed <- struct{}{}
	waitRun(t, runner, 1)

	// A failed cycle does not stop the loop.
	notifier.errs <- errors.New("watch hiccup")
	notifier.changed <- struct{}{}
	waitRun(t, runner, 2)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
	assert.Equal(t, []int{0, 1, 2}, runner.Seqs())
}

func TestLoop_StopsWhenNotifierCloses(t *testing.T) {
	runner := newRecordingRunner()
	notifier := newFakeNotifier()
	loop := NewLoop(runner, notifier, quietLogger())

	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background()) }()

	waitRun(t, runner, 0)
	require.NoError(t, notifier.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrNotifierClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
}
