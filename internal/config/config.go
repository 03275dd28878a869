// Package config holds funpad's runtime settings.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/itsmostafa/funpad/internal/loader"
	"github.com/itsmostafa/funpad/internal/watch"
)

// FileName is the config file looked up next to the watched path.
const FileName = "funpad.yaml"

// Config holds configuration for a funpad session.
type Config struct {
	// Path is the watched file or directory (default: ".")
	Path string `yaml:"path"`

	// Entry is the file loaded when Path is a directory (default: "scratch.js")
	Entry string `yaml:"entry"`

	// Host and Port of the web surface (default: 127.0.0.1:8080)
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// NoWeb disables the web surface
	NoWeb bool `yaml:"no_web"`

	// NoREPL disables the interactive shell; funpad then only watches
	NoREPL bool `yaml:"no_repl"`

	// History is the SQLite journal path; empty disables journaling
	History string `yaml:"history"`

	// Debounce coalesces bursts of file events (default: 250ms)
	Debounce time.Duration `yaml:"debounce"`

	// ShellHistory is the REPL's line history file (default: ~/.funpad_history)
	ShellHistory string `yaml:"shell_history"`

	Verbose bool `yaml:"verbose"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	cfg := Config{
		Path:     ".",
		Entry:    loader.DefaultEntry,
		Host:     "127.0.0.1",
		Port:     8080,
		Debounce: watch.DefaultDebounce,
	}
	if home, err := os.UserHomeDir(); err == nil {
		cfg.ShellHistory = filepath.Join(home, ".funpad_history")
	}
	return cfg
}

// ApplyEnv overrides host and port from FUNPAD_HOST and FUNPAD_PORT.
func (c *Config) ApplyEnv() error {
	if host := os.Getenv("FUNPAD_HOST"); host != "" {
		c.Host = host
	}
	if port := os.Getenv("FUNPAD_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid FUNPAD_PORT %q: %w", port, err)
		}
		c.Port = p
	}
	return nil
}

// Load reads the YAML file at path over c. Fields absent from the file keep
// their current values.
func (c *Config) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Discover returns the funpad.yaml that belongs to the watched path, or ""
// when there is none.
func Discover(watched string) string {
	dir := watched
	if info, err := os.Stat(watched); err == nil && !info.IsDir() {
		dir = filepath.Dir(watched)
	}
	candidate := filepath.Join(dir, FileName)
	if _, err := os.Stat(candidate); err != nil {
		return ""
	}
	return candidate
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	var errs []error
	if c.Path == "" {
		errs = append(errs, errors.New("path is empty"))
	}
	if c.Entry == "" {
		errs = append(errs, errors.New("entry is empty"))
	}
	if !c.NoWeb && (c.Port < 0 || c.Port > 65535) {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.Debounce < 0 {
		errs = append(errs, fmt.Errorf("debounce %s is negative", c.Debounce))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Addr is the web surface listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
