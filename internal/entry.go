// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/api"
	"github.com/starford/ansuz/internal/embedding"
	"github.com/starford/ansuz/internal/filestore"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/mcpserver"
	"github.com/starford/ansuz/internal/reconcile"
	"github.com/starford/ansuz/internal/recordservice"
	"github.com/starford/ansuz/internal/search"
	"github.com/starford/ansuz/internal/sse"
	"github.com/starford/ansuz/internal/vector"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger. In MCP mode stdout carries the
	// protocol, so logs go to stderr.
	logOut := os.Stdout
	if app.mcpMode {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("vector_path", cfg.Vector.Path),
		slog.String("embedding_provider", cfg.Embedding.Provider),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure vault directory exists.
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return fmt.Errorf("create vault dir: %w", err)
	}

	// Initialize file store.
	files, err := filestore.New(cfg.Vault.Path, logger)
	if err != nil {
		return fmt.Errorf("init filestore: %w", err)
	}

	// Initialize SQLite metadata index.
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	// Build the embedding provider.
	embedder := app.embedder
	if embedder == nil {
		switch cfg.Embedding.Provider {
		case EmbeddingProviderOpenAI:
			embedder = embedding.NewOpenAI(cfg.Embedding.APIKey, cfg.Embedding.Model)
		default:
			embedder = embedding.NewStatic(cfg.Vector.Dimension)
		}
	}

	// Initialize vector index with the provider's dimension.
	vec, err := vector.Open(cfg.Vector.Path, embedder.Dimension())
	if err != nil {
		return fmt.Errorf("init vector index: %w", err)
	}
	defer vec.Close()

	// Core services.
	records := recordservice.New(files, db, vec, embedder, logger)
	searcher := search.New(files, db, vec, embedder, logger)
	reconciler := reconcile.New(files, db, vec, embedder, logger)

	// Initial reconciliation pass.
	if stats, err := reconciler.Run(ctx); err != nil {
		logger.Warn("initial reconcile failed", slog.String("error", err.Error()))
	} else {
		logger.Info("initial reconcile complete",
			slog.Int("scanned", stats.Scanned),
			slog.Int("added", stats.Added),
			slog.Int("updated", stats.Updated),
			slog.Int("deleted", stats.Deleted))
	}

	if app.mcpMode {
		logger.Info("Starting MCP server on stdio")
		return mcpserver.New(records, searcher).ServeStdio()
	}

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	// Build API router.
	apiRouter := api.NewRouter(records, searcher, reconciler.Run, broker,
		cfg.Auth.AuthEnabled(), cfg.Auth.Token, files.Root())

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Scheduled reconciliation passes.
	var sched *cron.Cron
	if cfg.Reconcile.Schedule != "" {
		sched = cron.New()
		_, err := sched.AddFunc(cfg.Reconcile.Schedule, func() {
			if _, err := reconciler.Run(gCtx); err != nil {
				logger.Warn("scheduled reconcile failed", slog.String("error", err.Error()))
			}
		})
		if err != nil {
			return fmt.Errorf("reconcile schedule: %w", err)
		}
		sched.Start()
		defer sched.Stop()
	}

	// Start file watcher with SSE index refresh callback.
	g.Go(func() error {
		return reconcile.Watch(gCtx, reconciler, cfg.Vault.Path, cfg.Reconcile.Debounce, logger, func(stats reconcile.Stats) {
			if stats.Added+stats.Updated+stats.Deleted > 0 {
				broker.Publish(sse.Event{Type: "index.updated", Data: stats})
			}
		})
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
