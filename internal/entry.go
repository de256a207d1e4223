// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/coreseekdev/textcase/internal/apperr"
	"github.com/coreseekdev/textcase/internal/docservice"
	"github.com/coreseekdev/textcase/internal/editor"
	"github.com/coreseekdev/textcase/internal/index"
	"github.com/coreseekdev/textcase/internal/mcpserver"
	"github.com/coreseekdev/textcase/internal/project"
	"github.com/coreseekdev/textcase/internal/storage"
)

// App holds the components wired for one command invocation.
type App struct {
	Config  *Config
	Logger  *slog.Logger
	Root    string
	Store   *storage.FS
	Service *docservice.Service
	Editor  *editor.Editor

	db *index.DB
}

// Open builds the application for the project containing the configured root
// directory. Outside an initialized project the service only supports
// creating the root module, and no link index is opened.
func Open(ctx context.Context, opts ...Option) (*App, error) {
	a := &application{root: ".", logOut: os.Stderr}
	for _, opt := range opts {
		opt(a)
	}

	if a.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := a.config

	level := cfg.LogLevel
	if a.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(a.logOut, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	initialized := true
	root, err := project.FindRoot(a.root)
	if errors.Is(err, apperr.ErrConfig) {
		initialized = false
		root, err = filepath.Abs(a.root)
	}
	if err != nil {
		return nil, err
	}

	logger.Debug("Configuration loaded",
		slog.String("root", root),
		slog.Bool("initialized", initialized),
		slog.String("index_path", cfg.Index(root)),
		slog.String("log_level", level.String()))

	store, err := storage.NewFS(root)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	app := &App{
		Config: cfg,
		Logger: logger,
		Root:   root,
		Store:  store,
		Editor: editor.New(cfg.Editor, cfg.DirectEdit, logger),
	}

	var links index.LinkIndex
	if initialized {
		dbPath := cfg.Index(root)
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create index dir: %w", err)
		}
		app.db, err = index.Open(dbPath)
		if err != nil {
			return nil, fmt.Errorf("init index: %w", err)
		}
		links = app.db
	}

	app.Service, err = docservice.New(store, links, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

// Close releases the link index.
func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

// ServeMCP serves the MCP tools on stdio while a watcher keeps the link index
// current. It returns when stdin closes, ctx is cancelled or a signal arrives.
func (a *App) ServeMCP(ctx context.Context, version string) error {
	if a.db == nil {
		return fmt.Errorf("%w: project not initialized", apperr.ErrConfig)
	}
	logger := a.Logger

	if err := a.Service.Sync(); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	srv := mcpserver.New(a.Service, version)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return index.Watch(gCtx, a.db, a.Store, a.Service.Project(), a.Root, logger, func(kind, path string) {
			logger.Debug("index updated", slog.String("kind", kind), slog.String("path", path))
		})
	})

	g.Go(func() error {
		defer cancel()
		logger.Info("MCP server starting", slog.String("root", a.Root))
		if err := srv.ServeStdio(); err != nil {
			return fmt.Errorf("MCP server error: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("MCP server stopped")
	return nil
}
