package reload

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/itsmostafa/funpad/internal/loader"
)

// Outcome classifies a finished cycle.
type Outcome string

const (
	OutcomeOK         Outcome = "ok"
	OutcomeLoadError  Outcome = "load_error"
	OutcomeEntryError Outcome = "entry_point_error"
	OutcomeError      Outcome = "error"
)

// EntryPointError reports a failing main invocation. The merge of the cycle
// has already happened when it is raised.
type EntryPointError struct {
	Name  string
	Cause error
}

func (e *EntryPointError) Error() string {
	var ex *goja.Exception
	if errors.As(e.Cause, &ex) {
		return fmt.Sprintf("%s: %s", e.Name, strings.TrimRight(ex.String(), "\n"))
	}
	return fmt.Sprintf("%s: %v", e.Name, e.Cause)
}

func (e *EntryPointError) Unwrap() error {
	return e.Cause
}

// Cycle is the record of one reload cycle.
type Cycle struct {
	Seq       int
	Load      string
	Path      string
	StartedAt time.Time
	Duration  time.Duration

	// Accepted names were merged, Unchanged names kept their namespace
	// value, Rejected names were reserved or foreign.
	Accepted  []string
	Unchanged []string
	Rejected  []string

	MainInvoked bool
	// MainResult is the formatted return value of main, empty when main
	// returned nothing worth showing.
	MainResult string

	Err error
}

// Outcome classifies c.
func (c Cycle) Outcome() Outcome {
	var loadErr *loader.LoadError
	var entryErr *EntryPointError
	switch {
	case c.Err == nil:
		return OutcomeOK
	case errors.As(c.Err, &loadErr):
		return OutcomeLoadError
	case errors.As(c.Err, &entryErr):
		return OutcomeEntryError
	default:
		return OutcomeError
	}
}

// Reporter receives every finished cycle.
type Reporter interface {
	Report(Cycle)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Cycle)

// Report calls f(c).
func (f ReporterFunc) Report(c Cycle) {
	f(c)
}
