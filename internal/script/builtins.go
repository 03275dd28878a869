package script

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"

	"github.com/dop251/goja"
)

// setupBuiltins installs print, console and re into the global scope.
func setupBuiltins(vm *goja.Runtime, out io.Writer) error {
	printFunc := func(call goja.FunctionCall) goja.Value {
		args := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			args[i] = arg.String()
		}
		fmt.Fprintln(out, strings.Join(args, " "))
		return goja.Undefined()
	}
	if err := vm.Set("print", printFunc); err != nil {
		return fmt.Errorf("failed to set print: %w", err)
	}

	console := vm.NewObject()
	for _, name := range []string{"log", "info", "warn", "error"} {
		if err := console.Set(name, printFunc); err != nil {
			return fmt.Errorf("failed to set console.%s: %w", name, err)
		}
	}
	if err := vm.Set("console", console); err != nil {
		return fmt.Errorf("failed to set console: %w", err)
	}

	if err := setupRegexModule(vm, NewRegexModule()); err != nil {
		return fmt.Errorf("failed to setup regex module: %w", err)
	}

	return nil
}

// RegexModule provides Go regular expressions to scripts as the 're' object.
// Compiled patterns are cached since live-coded main functions tend to run
// the same patterns on every reload.
type RegexModule struct {
	mu    sync.Mutex
	cache map[string]*regexp.Regexp
}

// NewRegexModule creates a RegexModule with an empty pattern cache.
func NewRegexModule() *RegexModule {
	return &RegexModule{cache: make(map[string]*regexp.Regexp)}
}

func (m *RegexModule) compile(pattern string) (*regexp.Regexp, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if re, ok := m.cache[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	m.cache[pattern] = re
	return re, nil
}

// FindAll finds all matches of pattern in text.
func (m *RegexModule) FindAll(pattern, text string) ([]string, error) {
	re, err := m.compile(pattern)
	if err != nil {
		return nil, err
	}
	return re.FindAllString(text, -1), nil
}

// Search finds the first match of pattern in text.
func (m *RegexModule) Search(pattern, text string) (string, error) {
	re, err := m.compile(pattern)
	if err != nil {
		return "", err
	}
	return re.FindString(text), nil
}

// Test reports whether text contains a match of pattern.
func (m *RegexModule) Test(pattern, text string) (bool, error) {
	re, err := m.compile(pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(text), nil
}

// Split splits text by pattern into at most n parts (n < 0 means all).
func (m *RegexModule) Split(pattern, text string, n int) ([]string, error) {
	re, err := m.compile(pattern)
	if err != nil {
		return nil, err
	}
	return re.Split(text, n), nil
}

// Replace replaces matches of pattern in text with repl.
func (m *RegexModule) Replace(pattern, text, repl string) (string, error) {
	re, err := m.compile(pattern)
	if err != nil {
		return "", err
	}
	return re.ReplaceAllString(text, repl), nil
}

func setupRegexModule(vm *goja.Runtime, mod *RegexModule) error {
	re := vm.NewObject()

	twoArgs := func(name string, call goja.FunctionCall) (string, string) {
		if len(call.Arguments) < 2 {
			panic(vm.NewTypeError(fmt.Sprintf("re.%s requires 2 arguments: pattern, text", name)))
		}
		return call.Arguments[0].String(), call.Arguments[1].String()
	}

	funcs := map[string]func(goja.FunctionCall) goja.Value{
		"findAll": func(call goja.FunctionCall) goja.Value {
			pattern, text := twoArgs("findAll", call)
			matches, err := mod.FindAll(pattern, text)
			if err != nil {
				panic(vm.NewGoError(err))
			}
			return vm.ToValue(matches)
		},
		"search": func(call goja.FunctionCall) goja.Value {
			pattern, text := twoArgs("search", call)
			match, err := mod.Search(pattern, text)
			if err != nil {
				panic(vm.NewGoError(err))
			}
			return vm.ToValue(match)
		},
		"test": func(call goja.FunctionCall) goja.Value {
			pattern, text := twoArgs("test", call)
			ok, err := mod.Test(pattern, text)
			if err != nil {
				panic(vm.NewGoError(err))
			}
			return vm.ToValue(ok)
		},
		"split": func(call goja.FunctionCall) goja.Value {
			pattern, text := twoArgs("split", call)
			n := -1
			if len(call.Arguments) >= 3 {
				n = int(call.Arguments[2].ToInteger())
			}
			parts, err := mod.Split(pattern, text, n)
			if err != nil {
				panic(vm.NewGoError(err))
			}
			return vm.ToValue(parts)
		},
		"replace": func(call goja.FunctionCall) goja.Value {
			if len(call.Arguments) < 3 {
				panic(vm.NewTypeError("re.replace requires 3 arguments: pattern, text, replacement"))
			}
			result, err := mod.Replace(call.Arguments[0].String(), call.Arguments[1].String(), call.Arguments[2].String())
			if err != nil {
				panic(vm.NewGoError(err))
			}
			return vm.ToValue(result)
		},
	}

	for name, fn := range funcs {
		if err := re.Set(name, fn); err != nil {
			return err
		}
	}

	return vm.Set("re", re)
}
