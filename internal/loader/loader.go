// Package loader turns the watched file into a Load: one fresh, uniquely named
// execution of its top-level code.
//
// Every call produces a new load identity (BaseName + "_" + seq). The file body
// runs inside its own function scope, so two loads never share bindings, and
// every object a load creates is recorded as "<identity>.<name>" in a weak
// origin table. The differ uses that origin to tell values made by the current
// load apart from stale or foreign ones.
package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dop251/goja"

	"github.com/itsmostafa/funpad/internal/script"
	"github.com/itsmostafa/funpad/internal/weakmap"
)

// DefaultBaseName prefixes every load identity.
const DefaultBaseName = "funpad.user.scratch"

// DefaultEntry is the file loaded when the watched path is a directory.
const DefaultEntry = "scratch.js"

// LoadError reports a watched file that could not be read, parsed or run.
type LoadError struct {
	Path  string
	Cause error
}

func (e *LoadError) Error() string {
	var ex *goja.Exception
	if errors.As(e.Cause, &ex) {
		return fmt.Sprintf("load %s: %s", e.Path, strings.TrimRight(ex.String(), "\n"))
	}
	return fmt.Sprintf("load %s: %v", e.Path, e.Cause)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// Symbol is one top-level binding produced by a load.
type Symbol struct {
	Name  string
	Value goja.Value

	// Source is the declaration text for object values; empty for plain data.
	Source string

	// Origin is the declaring context of the value: the identity of the
	// load that created it plus ".<name>". Empty for aliases of values no
	// load created.
	Origin string

	Kind script.DeclKind
}

// Load is the result of executing the watched file once.
type Load struct {
	Name    string
	Seq     int
	Path    string
	Symbols []Symbol

	vm     *goja.Runtime
	rebind goja.Callable
}

// Symbol returns the named symbol of the load.
func (l *Load) Symbol(name string) (Symbol, bool) {
	for _, s := range l.Symbols {
		if s.Name == name {
			return s, true
		}
	}
	return Symbol{}, false
}

// Rebind points the load-local binding name at v, so that code from this
// load sees v from now on. The caller must hold the runtime.
func (l *Load) Rebind(name string, v goja.Value) error {
	if l.rebind == nil {
		return fmt.Errorf("rebind %s: load %s has no bindings", name, l.Name)
	}
	ok, err := l.rebind(goja.Undefined(), l.vm.ToValue(name), v)
	if err != nil {
		return fmt.Errorf("rebind %s: %w", name, err)
	}
	if !ok.ToBoolean() {
		return fmt.Errorf("rebind %s: not a binding of load %s", name, l.Name)
	}
	return nil
}

// Loader produces loads of one file.
type Loader struct {
	// BaseName prefixes load identities (default: DefaultBaseName)
	BaseName string

	// Entry is the file name loaded from a watched directory (default: DefaultEntry)
	Entry string

	origins *weakmap.Map[goja.Object, string]
}

// New creates a Loader with default settings.
func New() *Loader {
	return &Loader{
		BaseName: DefaultBaseName,
		Entry:    DefaultEntry,
		origins:  weakmap.New[goja.Object, string](),
	}
}

// Identity returns the load identity for seq.
func (l *Loader) Identity(seq int) string {
	return l.BaseName + "_" + strconv.Itoa(seq)
}

// Resolve maps the watched path to the file that is loaded.
func (l *Loader) Resolve(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		path = filepath.Join(path, l.Entry)
		if _, err := os.Stat(path); err != nil {
			return "", err
		}
	}
	return path, nil
}

// OriginOf returns the declaring context recorded for v, or "" if none.
func (l *Loader) OriginOf(v goja.Value) string {
	obj, ok := v.(*goja.Object)
	if !ok {
		return ""
	}
	origin, _ := l.origins.Get(obj)
	return origin
}

// Load executes the file at path as load number seq. The caller must hold
// the runtime vm belongs to.
func (l *Loader) Load(vm *goja.Runtime, path string, seq int) (*Load, error) {
	file, err := l.Resolve(path)
	if err != nil {
		return nil, &LoadError{Path: path, Cause: err}
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, &LoadError{Path: file, Cause: err}
	}
	src := string(data)
	name := l.Identity(seq)

	prog, err := script.Parse(file, src)
	if err != nil {
		return nil, &LoadError{Path: file, Cause: err}
	}
	scan := script.ScanProgram(prog, src)

	wrapped := wrap(script.RewriteLexical(prog, src, "let"), scan.Declarations)
	fnVal, err := vm.RunScript(file, wrapped)
	if err != nil {
		return nil, &LoadError{Path: file, Cause: err}
	}
	body, ok := goja.AssertFunction(fnVal)
	if !ok {
		return nil, &LoadError{Path: file, Cause: errors.New("load wrapper is not callable")}
	}
	res, err := body(goja.Undefined())
	if err != nil {
		return nil, &LoadError{Path: file, Cause: err}
	}

	exports := res.ToObject(vm)
	valuesFn, _ := goja.AssertFunction(exports.Get("values"))
	rebindFn, _ := goja.AssertFunction(exports.Get("rebind"))
	if valuesFn == nil || rebindFn == nil {
		return nil, &LoadError{Path: file, Cause: errors.New("load wrapper returned no bindings")}
	}
	valuesRes, err := valuesFn(goja.Undefined())
	if err != nil {
		return nil, &LoadError{Path: file, Cause: err}
	}
	values := valuesRes.ToObject(vm)

	load := &Load{Name: name, Seq: seq, Path: file, vm: vm, rebind: rebindFn}
	for _, d := range scan.Declarations {
		v := values.Get(d.Name)
		sym := Symbol{Name: d.Name, Value: v, Kind: d.Kind}

		obj, isObj := v.(*goja.Object)
		if !isObj {
			sym.Origin = name + "." + d.Name
			load.Symbols = append(load.Symbols, sym)
			continue
		}

		sym.Source = d.Source
		sym.Origin = l.OriginOf(obj)
		if sym.Origin == "" && !d.Alias {
			sym.Origin = name + "." + d.Name
			l.origins.Set(obj, sym.Origin)
		}
		load.Symbols = append(load.Symbols, sym)
	}

	return load, nil
}

// wrap places src in a function scope that returns accessors for its
// top-level bindings. The prefix stays on the first line so that line numbers
// in diagnostics match the file.
func wrap(src string, decls []script.Declaration) string {
	var b strings.Builder
	b.WriteString("(function () {")
	b.WriteString(src)
	b.WriteString("\n;return {\n  values: function () { return {")
	for i, d := range decls {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %s", strconv.Quote(d.Name), d.Name)
	}
	b.WriteString("}; },\n  rebind: function (__name, __value) {\n    switch (__name) {\n")
	for _, d := range decls {
		fmt.Fprintf(&b, "    case %s: %s = __value; return true;\n", strconv.Quote(d.Name), d.Name)
	}
	b.WriteString("    }\n    return false;\n  }\n};\n})")
	return b.String()
}
