// Package script hosts the JavaScript runtime that funpad executes the watched
// file and REPL input in.
//
// A single goja runtime backs the whole session. goja runtimes are not safe for
// concurrent use, so the reload engine and the REPL take turns through
// Runtime.Do; readers that only need names and previews use the namespace
// store instead and never touch the VM.
package script

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dop251/goja"
)

// Options configures a Runtime.
type Options struct {
	// Output receives print() and console.log() output (default: os.Stdout)
	Output io.Writer

	// FS is exposed to scripts as the 'fs' object. Nil disables it.
	FS *FSModule
}

// Runtime owns the shared goja VM.
type Runtime struct {
	mu  sync.Mutex
	vm  *goja.Runtime
	out io.Writer
}

// New creates a runtime with the funpad builtins installed.
func New(opts Options) (*Runtime, error) {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	vm := goja.New()
	if err := setupBuiltins(vm, opts.Output); err != nil {
		return nil, fmt.Errorf("failed to setup environment: %w", err)
	}
	if opts.FS != nil {
		if err := SetupFSModule(vm, opts.FS); err != nil {
			return nil, fmt.Errorf("failed to setup fs module: %w", err)
		}
	}

	return &Runtime{vm: vm, out: opts.Output}, nil
}

// Do runs fn with exclusive access to the VM.
func (r *Runtime) Do(fn func(vm *goja.Runtime) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(r.vm)
}

// Output returns the writer print() output goes to.
func (r *Runtime) Output() io.Writer {
	return r.out
}
