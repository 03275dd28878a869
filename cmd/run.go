package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"

	"github.com/itsmostafa/funpad/internal/config"
	"github.com/itsmostafa/funpad/internal/journal"
	"github.com/itsmostafa/funpad/internal/loader"
	"github.com/itsmostafa/funpad/internal/namespace"
	"github.com/itsmostafa/funpad/internal/reload"
	"github.com/itsmostafa/funpad/internal/repl"
	"github.com/itsmostafa/funpad/internal/report"
	"github.com/itsmostafa/funpad/internal/script"
	"github.com/itsmostafa/funpad/internal/version"
	"github.com/itsmostafa/funpad/internal/watch"
	"github.com/itsmostafa/funpad/internal/web"
)

// run wires a session together: the watch loop in the background, the web
// surface beside it and the shell in the foreground.
func run(ctx context.Context, cfg config.Config, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	session := uuid.New().String()
	logger = logger.With("session", session)

	root, err := scriptRoot(cfg.Path)
	if err != nil {
		return err
	}
	rt, err := script.New(script.Options{Output: stdout, FS: script.NewFSModule(root)})
	if err != nil {
		return err
	}
	store := namespace.New()

	ld := loader.New()
	ld.Entry = cfg.Entry

	engine, err := reload.New(reload.Options{
		Path:      cfg.Path,
		Runtime:   rt,
		Store:     store,
		Loader:    ld,
		Logger:    logger,
		Reporters: []reload.Reporter{report.NewPrinter(stdout)},
	})
	if err != nil {
		return err
	}

	// Not being able to watch the path is the one fatal condition.
	notifier, err := watch.NewFSNotifier(cfg.Path, cfg.Debounce, ownFiles(cfg)...)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", cfg.Path, err)
	}
	defer notifier.Close()

	var hist web.History
	if cfg.History != "" {
		j, err := journal.Open(cfg.History, session, logger)
		if err != nil {
			return err
		}
		defer j.Close()
		engine.AddReporter(j)
		hist = j
	}

	webAddr := ""
	if !cfg.NoWeb {
		srv, err := web.New(web.Options{
			Session: session,
			Version: version.Version,
			Store:   store,
			Status:  engine,
			History: hist,
			Logger:  logger,
		})
		if err != nil {
			return err
		}
		webAddr, err = srv.Start(cfg.Addr())
		if err != nil {
			return err
		}
		defer func() {
			if err := srv.Shutdown(context.Background()); err != nil {
				logger.Warn("web server shutdown failed", "error", err)
			}
		}()
		engine.AddReporter(srv.Events())
	}

	report.FormatHeader(stdout, report.Header{
		Path:    cfg.Path,
		Session: session,
		WebAddr: webAddr,
		Version: version.Version,
	})

	loopCtx, cancelLoop := context.WithCancel(ctx)
	defer cancelLoop()
	loopErr := make(chan error, 1)
	go func() {
		loopErr <- watch.NewLoop(engine, notifier, logger).Run(loopCtx)
	}()

	if cfg.NoREPL {
		return ignoreCancel(<-loopErr)
	}

	shell, err := repl.New(repl.Options{
		Runtime:     rt,
		Store:       store,
		Output:      stdout,
		HistoryPath: cfg.ShellHistory,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	if err := shell.Run(ctx); err != nil {
		return err
	}

	cancelLoop()
	return ignoreCancel(<-loopErr)
}

// scriptRoot is the directory the fs builtin is confined to.
func scriptRoot(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return path, nil
	}
	return filepath.Dir(path), nil
}

// ownFiles lists the files funpad itself writes. When they live in the
// watched directory, writing them must not count as an edit.
func ownFiles(cfg config.Config) []string {
	var files []string
	if cfg.History != "" {
		files = append(files, cfg.History)
		for _, suffix := range []string{"-journal", "-wal", "-shm"} {
			files = append(files, cfg.History+suffix)
		}
	}
	if cfg.ShellHistory != "" {
		files = append(files, cfg.ShellHistory)
	}
	return files
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
