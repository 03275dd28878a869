package script

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dop251/goja"
)

// ErrOutsideRoot is returned when a script path escapes the FSModule root.
var ErrOutsideRoot = errors.New("path is outside the watched directory")

// FSModule gives scripts read access to files next to the watched file.
// Paths are resolved relative to Root and may not leave it.
type FSModule struct {
	// Root is the directory scripts see as "."
	Root string

	// MaxFileSize caps fs.read; longer files are truncated (default: 1MB)
	MaxFileSize int64

	// ExcludeDirs are directory names hidden from fs.list and fs.glob
	ExcludeDirs []string
}

// NewFSModule creates an FSModule rooted at root.
func NewFSModule(root string) *FSModule {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &FSModule{
		Root:        root,
		MaxFileSize: 1024 * 1024,
		ExcludeDirs: []string{".git", "node_modules", "vendor"},
	}
}

func (f *FSModule) resolve(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(f.Root, path)
	}
	path = filepath.Clean(path)

	rel, err := filepath.Rel(f.Root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", path, ErrOutsideRoot)
	}
	return path, nil
}

// List returns the entries of a directory as {name, isDir, size} records.
func (f *FSModule) List(path string) ([]map[string]any, error) {
	resolved, err := f.resolve(path)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		return nil, err
	}

	result := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() && slices.Contains(f.ExcludeDirs, entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		result = append(result, map[string]any{
			"name":  entry.Name(),
			"isDir": entry.IsDir(),
			"size":  info.Size(),
		})
	}
	return result, nil
}

// Read returns the contents of a file, truncated to MaxFileSize.
func (f *FSModule) Read(path string) (string, error) {
	resolved, err := f.resolve(path)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s: is a directory", path)
	}

	content, err := os.ReadFile(resolved)
	if err != nil {
		return "", err
	}
	if f.MaxFileSize > 0 && int64(len(content)) > f.MaxFileSize {
		return string(content[:f.MaxFileSize]) + "\n... [truncated]", nil
	}
	return string(content), nil
}

// Glob returns Root-relative paths matching pattern.
func (f *FSModule) Glob(pattern string) ([]string, error) {
	if !filepath.IsAbs(pattern) {
		pattern = filepath.Join(f.Root, pattern)
	}

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}

	result := make([]string, 0, len(matches))
	for _, match := range matches {
		rel, err := filepath.Rel(f.Root, match)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		if f.excluded(rel) {
			continue
		}
		result = append(result, rel)
	}
	return result, nil
}

// Exists reports whether path exists under Root.
func (f *FSModule) Exists(path string) bool {
	resolved, err := f.resolve(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(resolved)
	return err == nil
}

func (f *FSModule) excluded(rel string) bool {
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if slices.Contains(f.ExcludeDirs, part) {
			return true
		}
	}
	return false
}

// SetupFSModule adds the 'fs' object to the VM.
func SetupFSModule(vm *goja.Runtime, mod *FSModule) error {
	fs := vm.NewObject()

	pathArg := func(name string, call goja.FunctionCall) string {
		if len(call.Arguments) < 1 {
			panic(vm.NewTypeError(fmt.Sprintf("fs.%s requires 1 argument: path", name)))
		}
		return call.Arguments[0].String()
	}

	// fs.list(path = ".") -> [{name, isDir, size}]
	list := func(call goja.FunctionCall) goja.Value {
		path := "."
		if len(call.Arguments) > 0 {
			path = call.Arguments[0].String()
		}
		result, err := mod.List(path)
		if err != nil {
			panic(vm.NewGoError(err))
		}
		return vm.ToValue(result)
	}
	if err := fs.Set("list", list); err != nil {
		return err
	}

	read := func(call goja.FunctionCall) goja.Value {
		content, err := mod.Read(pathArg("read", call))
		if err != nil {
			panic(vm.NewGoError(err))
		}
		return vm.ToValue(content)
	}
	if err := fs.Set("read", read); err != nil {
		return err
	}

	glob := func(call goja.FunctionCall) goja.Value {
		matches, err := mod.Glob(pathArg("glob", call))
		if err != nil {
			panic(vm.NewGoError(err))
		}
		return vm.ToValue(matches)
	}
	if err := fs.Set("glob", glob); err != nil {
		return err
	}

	exists := func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(mod.Exists(pathArg("exists", call)))
	}
	if err := fs.Set("exists", exists); err != nil {
		return err
	}

	return vm.Set("fs", fs)
}
