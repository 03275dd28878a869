package cmd

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/itsmostafa/funpad/internal/config"
	"github.com/itsmostafa/funpad/internal/version"
)

var (
	configFile string
	host       string
	port       int
	noWeb      bool
	noREPL     bool
	entry      string
	history    string
	debounce   time.Duration
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "funpad [path]",
	Short: "Live-reload a JavaScript scratch file into a persistent session",
	Long: `funpad watches a scratch file, reloads it on every change and merges only the
definitions that changed into a namespace shared with an interactive shell and
a read-only web view. A function named main is re-run after every reload.

When path is a directory, its scratch.js (or --entry) is loaded.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd, args)
		if err != nil {
			return err
		}
		return run(cmd.Context(), cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	rootCmd.Version = version.Version
	rootCmd.SetVersionTemplate(fmt.Sprintf("funpad %s\n", version.String()))

	defaults := config.DefaultConfig()

	// Web flags with env var fallback
	defaultHost := defaults.Host
	if envHost := os.Getenv("FUNPAD_HOST"); envHost != "" {
		defaultHost = envHost
	}
	defaultPort := defaults.Port
	if envPort, err := strconv.Atoi(os.Getenv("FUNPAD_PORT")); err == nil {
		defaultPort = envPort
	}

	flags := rootCmd.Flags()
	flags.StringVar(&configFile, "config", "", "Config file (default: funpad.yaml next to the watched path)")
	flags.StringVar(&host, "host", defaultHost, "Web server host")
	flags.IntVarP(&port, "port", "p", defaultPort, "Web server port")
	flags.BoolVar(&noWeb, "no-web", false, "Disable the web server")
	flags.BoolVar(&noREPL, "no-repl", false, "Only watch and reload, without the interactive shell")
	flags.StringVar(&entry, "entry", defaults.Entry, "File loaded when the watched path is a directory")
	flags.StringVar(&history, "history", "", "Record reload cycles in this SQLite database")
	flags.DurationVar(&debounce, "debounce", defaults.Debounce, "Quiet period before a burst of file events triggers a reload")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log diff decisions and other debug output")
}

// resolveConfig layers defaults, the config file, the environment and the
// flags the user set, in that order.
func resolveConfig(cmd *cobra.Command, args []string) (config.Config, error) {
	cfg := config.DefaultConfig()
	if len(args) > 0 {
		cfg.Path = args[0]
	}

	path := configFile
	if path == "" {
		path = config.Discover(cfg.Path)
	}
	if path != "" {
		if err := cfg.Load(path); err != nil {
			return cfg, err
		}
		if len(args) > 0 {
			cfg.Path = args[0]
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Host = host
	}
	if flags.Changed("port") {
		cfg.Port = port
	}
	if flags.Changed("no-web") {
		cfg.NoWeb = noWeb
	}
	if flags.Changed("no-repl") {
		cfg.NoREPL = noREPL
	}
	if flags.Changed("entry") {
		cfg.Entry = entry
	}
	if flags.Changed("history") {
		cfg.History = history
	}
	if flags.Changed("debounce") {
		cfg.Debounce = debounce
	}
	if flags.Changed("verbose") {
		cfg.Verbose = verbose
	}

	return cfg, cfg.Validate()
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
