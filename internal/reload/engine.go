// Package reload runs reload cycles: load the watched file, diff its symbols
// against the namespace, merge what changed and invoke main.
package reload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"

	"github.com/itsmostafa/funpad/internal/diff"
	"github.com/itsmostafa/funpad/internal/loader"
	"github.com/itsmostafa/funpad/internal/namespace"
	"github.com/itsmostafa/funpad/internal/script"
)

// State is the engine state.
type State int32

const (
	Idle State = iota
	Reloading
)

func (s State) String() string {
	if s == Reloading {
		return "reloading"
	}
	return "idle"
}

// Options configures an Engine.
type Options struct {
	// Path is the watched file or directory
	Path string

	Runtime *script.Runtime
	Store   *namespace.Store

	// Loader defaults to loader.New()
	Loader *loader.Loader

	// Policy defaults to diff.NewPolicy(Logger)
	Policy *diff.Policy

	// Logger defaults to slog.Default()
	Logger *slog.Logger

	Reporters []Reporter
}

// Engine performs reload cycles one at a time.
type Engine struct {
	path    string
	runtime *script.Runtime
	store   *namespace.Store
	loader  *loader.Loader
	policy  *diff.Policy
	logger  *slog.Logger

	reportersMu sync.RWMutex
	reporters   []Reporter

	mu     sync.Mutex // one cycle at a time
	state  atomic.Int32
	loads  atomic.Int64
	cycles atomic.Int64
}

// New creates an Engine.
func New(opts Options) (*Engine, error) {
	if opts.Path == "" {
		return nil, errors.New("new engine: path is empty")
	}
	if opts.Runtime == nil {
		return nil, errors.New("new engine: runtime is nil")
	}
	if opts.Store == nil {
		return nil, errors.New("new engine: store is nil")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Loader == nil {
		opts.Loader = loader.New()
	}
	if opts.Policy == nil {
		opts.Policy = diff.NewPolicy(opts.Logger)
	}

	return &Engine{
		path:      opts.Path,
		runtime:   opts.Runtime,
		store:     opts.Store,
		loader:    opts.Loader,
		policy:    opts.Policy,
		logger:    opts.Logger,
		reporters: append([]Reporter(nil), opts.Reporters...),
	}, nil
}

// AddReporter registers r for every following cycle.
func (e *Engine) AddReporter(r Reporter) {
	e.reportersMu.Lock()
	defer e.reportersMu.Unlock()
	e.reporters = append(e.reporters, r)
}

// State returns whether a cycle is running.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Cycles returns the number of completed cycles.
func (e *Engine) Cycles() int {
	return int(e.cycles.Load())
}

// Path returns the watched path.
func (e *Engine) Path() string {
	return e.path
}

// RunOnce performs one reload cycle. It never panics and never returns an
// error: failures are recorded in the returned Cycle and reported. A load
// failure leaves the namespace as it was.
func (e *Engine) RunOnce(ctx context.Context, seq int) (cycle Cycle) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.Store(int32(Reloading))
	defer e.state.Store(int32(Idle))

	cycle = Cycle{Seq: seq, Path: e.path, StartedAt: time.Now()}
	defer func() {
		cycle.Duration = time.Since(cycle.StartedAt)
		e.cycles.Add(1)
		e.report(cycle)
	}()

	if err := ctx.Err(); err != nil {
		cycle.Err = err
		return cycle
	}

	_ = e.runtime.Do(func(vm *goja.Runtime) error {
		defer func() {
			if r := recover(); r != nil {
				cycle.Err = fmt.Errorf("reload cycle %d panicked: %v", seq, r)
				e.logger.Error("reload panicked", "seq", seq, "panic", r)
			}
		}()
		e.runCycle(vm, &cycle)
		e.store.Refresh()
		return nil
	})

	return cycle
}

func (e *Engine) runCycle(vm *goja.Runtime, c *Cycle) {
	load, err := e.loader.Load(vm, e.path, int(e.loads.Add(1)))
	if err != nil {
		c.Err = err
		e.logger.Error("reload failed", "seq", c.Seq, "path", e.path, "error", err)
		return
	}
	c.Load = load.Name
	c.Path = load.Path

	accepted := make(map[string]goja.Value)
	var unchanged []loader.Symbol
	for _, sym := range load.Symbols {
		cand := diff.Candidate{
			Name:      sym.Name,
			New:       sym.Value,
			NewSource: sym.Source,
			Origin:    sym.Origin,
		}
		if old, ok := e.store.Get(sym.Name); ok {
			cand.Old = old
			cand.OldSource, _ = e.store.PriorSource(old)
		}

		verdict := e.policy.Decide(load.Name, cand)
		e.logger.Debug("symbol diffed", "load", load.Name, "name", sym.Name, "verdict", verdict.String())

		switch verdict {
		case diff.Accepted:
			accepted[sym.Name] = sym.Value
			c.Accepted = append(c.Accepted, sym.Name)
			if sym.Source != "" {
				e.store.RecordSource(sym.Value, sym.Source)
			}
		case diff.RejectedUnchanged:
			unchanged = append(unchanged, sym)
			c.Unchanged = append(c.Unchanged, sym.Name)
		default:
			c.Rejected = append(c.Rejected, sym.Name)
		}
	}

	e.store.Merge(c.Seq, accepted)
	for _, name := range c.Accepted {
		if err := vm.Set(name, accepted[name]); err != nil {
			e.logger.Warn("failed to publish symbol", "name", name, "error", err)
		}
	}

	// Code from this load must see the values the namespace kept, not the
	// copies it just built for unchanged declarations.
	for _, sym := range unchanged {
		kept, ok := e.store.Get(sym.Name)
		if !ok || kept.SameAs(sym.Value) {
			continue
		}
		if err := load.Rebind(sym.Name, kept); err != nil {
			e.logger.Warn("failed to rebind unchanged symbol", "name", sym.Name, "error", err)
		}
	}

	e.invokeMain(c)
}

func (e *Engine) invokeMain(c *Cycle) {
	v, ok := e.store.Get(diff.EntryPoint)
	if !ok {
		return
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		e.logger.Warn("entry point is not callable", "name", diff.EntryPoint)
		return
	}

	c.MainInvoked = true
	res, err := fn(goja.Undefined())
	if err != nil {
		c.Err = &EntryPointError{Name: diff.EntryPoint, Cause: err}
		e.logger.Error("entry point failed", "seq", c.Seq, "error", err)
		return
	}
	if !script.IsEmpty(res) {
		c.MainResult = script.FormatValue(res)
	}
}

func (e *Engine) report(c Cycle) {
	e.reportersMu.RLock()
	reporters := append([]Reporter(nil), e.reporters...)
	e.reportersMu.RUnlock()

	for _, r := range reporters {
		r.Report(c)
	}
}
