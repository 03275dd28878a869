// Package diff decides which symbols of a fresh load replace what the
// namespace already holds.
//
// Every load builds brand-new objects, even for code that did not change, so
// identity is useless as a change signal. The policy compares declaration
// source text instead and falls back to value equality for plain data.
package diff

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/dop251/goja"
)

// ReservedPrefix marks names that are never merged.
const ReservedPrefix = "__"

// EntryPoint is the name invoked after every reload.
const EntryPoint = "main"

// Verdict is the outcome of comparing one symbol.
type Verdict int

const (
	Accepted Verdict = iota
	RejectedReserved
	RejectedForeign
	RejectedUnchanged
)

func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case RejectedReserved:
		return "reserved"
	case RejectedForeign:
		return "foreign"
	case RejectedUnchanged:
		return "unchanged"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// Candidate is one symbol of the current load next to what the namespace
// holds under the same name.
type Candidate struct {
	Name string

	New       goja.Value
	NewSource string

	// Origin is the declaring context of New ("<load>.<name>").
	Origin string

	// Old is nil when the namespace has no such name.
	Old       goja.Value
	OldSource string
}

// Policy implements the should-reload rules.
type Policy struct {
	Logger *slog.Logger
}

// NewPolicy creates a Policy logging to logger (slog.Default() if nil).
func NewPolicy(logger *slog.Logger) *Policy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Policy{Logger: logger}
}

// Accept reports whether c should replace the namespace binding.
func (p *Policy) Accept(load string, c Candidate) bool {
	return p.Decide(load, c) == Accepted
}

// Decide applies the rules in order:
//  1. reserved names are rejected;
//  2. values with source text must come from load, and main always passes;
//  3. identical source text to the previous value is unchanged;
//  4. equal values are unchanged;
//  5. everything else is accepted.
func (p *Policy) Decide(load string, c Candidate) Verdict {
	if strings.HasPrefix(c.Name, ReservedPrefix) {
		return RejectedReserved
	}

	if c.NewSource != "" {
		if !strings.HasPrefix(c.Origin, load+".") {
			return RejectedForeign
		}
		if c.Name == EntryPoint {
			return Accepted
		}
		if c.Old != nil && c.OldSource != "" {
			p.Logger.Debug("comparing source", "name", c.Name, "old", c.OldSource, "new", c.NewSource)
			if c.OldSource == c.NewSource {
				return RejectedUnchanged
			}
		}
	}

	if p.same(c) {
		return RejectedUnchanged
	}
	return Accepted
}

// same compares by value. A comparison that blows up counts as a change.
func (p *Policy) same(c Candidate) (equal bool) {
	if c.Old == nil || c.New == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			p.Logger.Warn("comparison failed, treating symbol as changed", "name", c.Name, "panic", r)
			equal = false
		}
	}()
	return c.New.SameAs(c.Old)
}
