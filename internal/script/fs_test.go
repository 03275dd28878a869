package script

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFSModule_List(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "file1.txt"), "content1")
	writeFile(t, filepath.Join(dir, "scratch.js"), "var a = 1;")
	writeFile(t, filepath.Join(dir, ".git", "HEAD"), "ref")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "subdir"), 0o755))

	fs := NewFSModule(dir)
	result, err := fs.List(".")
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, entry := range result {
		names[entry["name"].(string)] = true
	}
	assert.Equal(t, map[string]bool{"file1.txt": true, "scratch.js": true, "subdir": true}, names)
}

func TestFSModule_Read(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "data.txt"), "hello world")

	fs := NewFSModule(dir)

	content, err := fs.Read("data.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello world", content)

	_, err = fs.Read(".")
	assert.Error(t, err)

	_, err = fs.Read("missing.txt")
	assert.Error(t, err)
}

func TestFSModule_ReadTruncates(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "big.txt"), strings.Repeat("x", 100))

	fs := NewFSModule(dir)
	fs.MaxFileSize = 10

	content, err := fs.Read("big.txt")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(content, strings.Repeat("x", 10)+"\n"))
	assert.Contains(t, content, "[truncated]")
}

func TestFSModule_OutsideRoot(t *testing.T) {
	dir := t.TempDir()
	fs := NewFSModule(filepath.Join(dir, "root"))
	writeFile(t, filepath.Join(dir, "secret.txt"), "s")

	_, err := fs.Read("../secret.txt")
	assert.ErrorIs(t, err, ErrOutsideRoot)

	_, err = fs.List("..")
	assert.ErrorIs(t, err, ErrOutsideRoot)

	assert.False(t, fs.Exists("../secret.txt"))
}

func TestFSModule_Glob(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.js"), "")
	writeFile(t, filepath.Join(dir, "b.js"), "")
	writeFile(t, filepath.Join(dir, "c.txt"), "")
	writeFile(t, filepath.Join(dir, "node_modules", "d.js"), "")

	fs := NewFSModule(dir)

	matches, err := fs.Glob("*.js")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.js", "b.js"}, matches)

	matches, err = fs.Glob("*/*.js")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFSModule_Script(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "notes.txt"), "line one")

	rt, err := New(Options{Output: &strings.Builder{}, FS: NewFSModule(dir)})
	require.NoError(t, err)

	var got []any
	err = rt.Do(func(vm *goja.Runtime) error {
		v, err := vm.RunString(`[fs.read("notes.txt"), fs.exists("notes.txt"), fs.exists("nope"), fs.list().length]`)
		if err != nil {
			return err
		}
		got = v.Export().([]any)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"line one", true, false, int64(1)}, got)
}
