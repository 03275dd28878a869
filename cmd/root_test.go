package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsmostafa/funpad/internal/config"
	"github.com/itsmostafa/funpad/internal/version"
)

// newTestCommand returns a command with the root flags, parsed from args.
func newTestCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "funpad"}
	cmd.Flags().AddFlagSet(rootCmd.Flags())
	require.NoError(t, cmd.ParseFlags(args))
	t.Cleanup(func() {
		rootCmd.Flags().VisitAll(func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
		configFile = ""
	})
	return cmd
}

func TestResolveConfig_Layers(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "funpad.yaml"), []byte("port: 9000\nentry: play.js\nhistory: h.db\n"), 0o644))

	cmd := newTestCommand(t, "--entry", "other.js", "--debounce", "1s")
	cfg, err := resolveConfig(cmd, []string{dir})
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.Path)
	assert.Equal(t, 9000, cfg.Port, "from the config file")
	assert.Equal(t, "h.db", cfg.History, "from the config file")
	assert.Equal(t, "other.js", cfg.Entry, "flags win over the file")
	assert.Equal(t, time.Second, cfg.Debounce)
}

func TestResolveConfig_EnvAndFlags(t *testing.T) {
	t.Setenv("FUNPAD_PORT", "7000")
	dir := t.TempDir()

	cmd := newTestCommand(t, "--no-web")
	cfg, err := resolveConfig(cmd, []string{dir})
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Port)
	assert.True(t, cfg.NoWeb)

	cmd = newTestCommand(t, "--port", "7100")
	cfg, err = resolveConfig(cmd, []string{dir})
	require.NoError(t, err)
	assert.Equal(t, 7100, cfg.Port)
}

func TestResolveConfig_ExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("path: "+dir+"\nno_repl: true\n"), 0o644))

	cmd := newTestCommand(t, "--config", path)
	cfg, err := resolveConfig(cmd, nil)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.Path)
	assert.True(t, cfg.NoREPL)
}

func TestResolveConfig_Invalid(t *testing.T) {
	cmd := newTestCommand(t, "--entry", "")
	_, err := resolveConfig(cmd, []string{t.TempDir()})
	assert.Error(t, err)
}

func TestScriptRoot(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "scratch.js")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	root, err := scriptRoot(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, root)

	root, err = scriptRoot(file)
	require.NoError(t, err)
	assert.Equal(t, dir, root)

	_, err = scriptRoot(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)
	assert.Contains(t, out.String(), "funpad "+version.String())
}

func TestOwnFiles(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ShellHistory = "hist"
	cfg.History = "funpad.db"

	assert.Equal(t, []string{"funpad.db", "funpad.db-journal", "funpad.db-wal", "funpad.db-shm", "hist"}, ownFiles(cfg))

	cfg.History = ""
	cfg.ShellHistory = ""
	assert.Empty(t, ownFiles(cfg))
}
