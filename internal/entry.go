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
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/oakheim/inkwell/internal/api"
	"github.com/oakheim/inkwell/internal/event"
	"github.com/oakheim/inkwell/internal/queue"
	"github.com/oakheim/inkwell/internal/storage"
	"github.com/oakheim/inkwell/internal/store"
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

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("data_path", cfg.Data.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure data root exists.
	if err := os.MkdirAll(cfg.Data.Path, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// Storage primitives: document store, path layout, lock manager.
	fs, err := storage.NewFS(cfg.Data.Path, logger)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	var layout storage.Layout
	locks := storage.NewKeyedLock()

	// Resource stores over the shared page index.
	index := store.NewIndex(fs)
	notebooks := store.NewNotebookStore(fs, locks, index, logger)
	pages := store.NewPageStore(fs, locks, index, logger)
	strokes := store.NewStrokeStore(fs, locks, index, logger)

	// Event broker.
	broker := event.NewBroker()
	defer broker.Close()

	// Transcription job queue.
	transcriber := app.transcriber
	if transcriber == nil {
		if cfg.Transcriber.URL != "" {
			transcriber = queue.NewHTTPTranscriber(cfg.Transcriber.URL)
		} else {
			logger.Warn("no transcriber configured; transcription jobs will fail")
			transcriber = queue.TranscriberFunc(func(context.Context, string) (string, error) {
				return "", fmt.Errorf("no transcription provider configured")
			})
		}
	}
	jobs := queue.New(fs, locks, pages, transcriber, broker, queue.Options{
		MaxRetries:      cfg.Queue.MaxRetries,
		BackoffUnit:     cfg.Queue.BackoffUnit(),
		CleanupInterval: cfg.Queue.CleanupInterval(),
		FailedMaxAge:    cfg.Queue.FailedMaxAge(),
	}, logger)
	if err := jobs.Init(); err != nil {
		return fmt.Errorf("init queue: %w", err)
	}
	defer jobs.Stop()

	// Build API handler and router.
	handler := api.NewHandler(fs, notebooks, pages, strokes, jobs)
	apiRouter := api.NewRouter(handler, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
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

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the pending job directory for externally dropped job files.
	g.Go(func() error {
		pendingDir := filepath.Join(cfg.Data.Path, layout.PendingDir())
		if err := queue.Watch(gCtx, jobs, pendingDir, logger); err != nil {
			logger.Warn("queue watcher failed", slog.String("error", err.Error()))
		}
		return nil
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
