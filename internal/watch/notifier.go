package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a burst of file events is collected before a
// single change is signalled.
const DefaultDebounce = 250 * time.Millisecond

// Notifier reports that the watched path changed. Changes that arrive while
// the previous one has not been consumed are coalesced.
type Notifier interface {
	Changed() <-chan struct{}
	Errors() <-chan error
	Close() error
}

// FSNotifier is a Notifier backed by fsnotify.
//
// A watched file is observed through its parent directory, since most editors
// save by replacing the file, which would drop a watch on the file itself.
type FSNotifier struct {
	watcher  *fsnotify.Watcher
	file     string // set when a single file is watched
	ignore   map[string]bool
	debounce time.Duration

	changed chan struct{}
	errs    chan error

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewFSNotifier starts watching path. Events on the ignore paths never signal
// a change; funpad's own output files go there. Failing to establish the
// watch is returned as an error; nothing is retried.
func NewFSNotifier(path string, debounce time.Duration, ignore ...string) (*FSNotifier, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve watch path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat watch path: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	n := &FSNotifier{
		watcher:  w,
		debounce: debounce,
		ignore:   make(map[string]bool, len(ignore)),
		changed:  make(chan struct{}, 1),
		errs:     make(chan error, 8),
		done:     make(chan struct{}),
	}

	for _, p := range ignore {
		if p == "" {
			continue
		}
		if a, err := filepath.Abs(p); err == nil {
			n.ignore[a] = true
		}
	}

	dir := abs
	if !info.IsDir() {
		dir = filepath.Dir(abs)
		n.file = abs
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	n.wg.Add(1)
	go n.run()
	return n, nil
}

// Changed delivers one value per (debounced) change.
func (n *FSNotifier) Changed() <-chan struct{} {
	return n.changed
}

// Errors delivers watcher errors. It is never closed.
func (n *FSNotifier) Errors() <-chan error {
	return n.errs
}

// Close stops watching and closes Changed. It is idempotent.
func (n *FSNotifier) Close() error {
	var err error
	n.closeOnce.Do(func() {
		close(n.done)
		err = n.watcher.Close()
		n.wg.Wait()
		close(n.changed)
	})
	return err
}

func (n *FSNotifier) run() {
	defer n.wg.Done()

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-n.done:
			return

		case ev, ok := <-n.watcher.Events:
			if !ok {
				return
			}
			if !n.relevant(ev) {
				continue
			}
			if n.debounce <= 0 {
				n.signal()
				continue
			}
			if timer == nil {
				timer = time.NewTimer(n.debounce)
			} else {
				timer.Reset(n.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			n.signal()

		case err, ok := <-n.watcher.Errors:
			if !ok {
				return
			}
			select {
			case n.errs <- err:
			default:
			}
		}
	}
}

func (n *FSNotifier) relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	name := filepath.Clean(ev.Name)
	if n.ignore[name] {
		return false
	}
	if n.file == "" {
		return true
	}
	return name == n.file
}

func (n *FSNotifier) signal() {
	select {
	case n.changed <- struct{}{}:
	default:
	}
}
