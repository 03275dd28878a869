// Package watch drives reload cycles from file-change notifications.
package watch

import (
	"context"
	"errors"
	"log/slog"

	"github.com/itsmostafa/funpad/internal/reload"
)

// ErrNotifierClosed is returned by Loop.Run when its notifier stops.
var ErrNotifierClosed = errors.New("watch: notifier closed")

// Runner performs one reload cycle.
type Runner interface {
	RunOnce(ctx context.Context, seq int) reload.Cycle
}

// Loop runs cycle 0 at start and one more cycle per change notification.
type Loop struct {
	runner   Runner
	notifier Notifier
	logger   *slog.Logger
}

// NewLoop creates a Loop.
func NewLoop(runner Runner, notifier Notifier, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{runner: runner, notifier: notifier, logger: logger}
}

// Run blocks until ctx is cancelled or the notifier closes. Cycle failures
// are reported by the runner and never end the loop.
func (l *Loop) Run(ctx context.Context) error {
	seq := 0
	l.logger.Info("watch loop starting")
	l.runner.RunOnce(ctx, seq)

	errs := l.notifier.Errors()
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("watch loop stopping: context cancelled")
			return ctx.Err()

		case _, ok := <-l.notifier.Changed():
			if !ok {
				l.logger.Info("watch loop stopping: notifier closed")
				return ErrNotifierClosed
			}
			seq++
			l.logger.Debug("change detected", "seq", seq)
			l.runner.RunOnce(ctx, seq)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			l.logger.Error("watch error", "error", err)
		}
	}
}
