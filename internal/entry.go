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
	"golang.org/x/sync/errgroup"

	"github.com/starford/codex/internal/api"
	"github.com/starford/codex/internal/ingest"
	"github.com/starford/codex/internal/mcpserver"
	"github.com/starford/codex/internal/retrieval"
	"github.com/starford/codex/internal/sse"
)

// Run starts the HTTP server, the SSE broker, and the directory watcher.
func Run(ctx context.Context, opts ...Option) error {
	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	rt, err := setup(ctx, os.Stdout, broker.ObserveIngest, opts...)
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg, logger := rt.cfg, rt.logger

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_driver", cfg.Store.Driver),
		slog.String("watch_dir", cfg.Ingest.WatchDir),
		slog.Bool("watch", cfg.Ingest.Watch),
		slog.String("log_level", cfg.App.LogLevel.String()))

	apiRouter := api.NewRouter(rt.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	api.MountHealth(r, rt.svc)

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Ingest.Watch {
		g.Go(func() error {
			watchDir(gCtx, rt, logger)
			return nil
		})
	}

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
		defer signal.Stop(quit)

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

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// watchDir syncs the watch directory once, then ingests changes until ctx
// is done. Failures are logged; the server keeps running without the watcher.
func watchDir(ctx context.Context, rt *runtime, logger *slog.Logger) {
	in := rt.svc.Ingestor()
	dir := rt.cfg.Ingest.WatchDir

	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Warn("watch dir unavailable", slog.String("dir", dir), slog.String("error", err.Error()))
		return
	}
	results, err := in.SyncDir(ctx, dir)
	if err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	} else {
		logger.Info("initial sync done", slog.String("dir", dir), slog.Int("items", len(results)))
	}

	if err := in.Watch(ctx, dir, nil); err != nil {
		logger.Error("watcher stopped", slog.String("error", err.Error()))
	}
}

// IngestDir ingests every allow-listed file under dir and prints one status
// line per file. It fails if any file failed for a reason other than
// validation.
func IngestDir(ctx context.Context, dir string, opts ...Option) error {
	rt, err := setup(ctx, os.Stderr, nil, opts...)
	if err != nil {
		return err
	}
	defer rt.Close()

	results, err := rt.svc.Ingestor().SyncDir(ctx, dir)
	if err != nil {
		return err
	}

	failed := 0
	for _, res := range results {
		if _, ok := res.(ingest.Failed); ok {
			failed++
		}
		fmt.Fprintln(rt.out, ingest.NewReport(res).Line())
	}
	if failed > 0 {
		return fmt.Errorf("ingest: %d of %d items failed", failed, len(results))
	}
	return nil
}

// Search prints the grounding block for query followed by its footnotes.
func Search(ctx context.Context, query string, k int, opts ...Option) error {
	rt, err := setup(ctx, os.Stderr, nil, opts...)
	if err != nil {
		return err
	}
	defer rt.Close()

	g, err := rt.svc.Ground(ctx, query, k)
	if err != nil {
		return err
	}
	printGrounding(rt, g)
	return nil
}

func printGrounding(rt *runtime, g retrieval.Grounding) {
	if g.Context == "" {
		fmt.Fprintln(rt.out, "no matching chunks")
		return
	}
	fmt.Fprintln(rt.out, g.Context)
	fmt.Fprintln(rt.out)
	for _, f := range g.Footnotes {
		fmt.Fprintln(rt.out, f)
	}
}

// Ask prints the answer to question. Without an answer it prints the
// nearest chunks or a no-answer notice.
func Ask(ctx context.Context, question string, opts ...Option) error {
	rt, err := setup(ctx, os.Stderr, nil, opts...)
	if err != nil {
		return err
	}
	defer rt.Close()

	ans, err := rt.svc.Ask(ctx, question)
	if err != nil {
		return err
	}
	if ans.Text == "" {
		fmt.Fprintln(rt.out, "No answer found.")
		return nil
	}
	fmt.Fprintln(rt.out, ans.Text)
	return nil
}

// ServeMCP serves the MCP tools over stdio. Logs go to stderr so stdout
// carries only the protocol.
func ServeMCP(ctx context.Context, opts ...Option) error {
	rt, err := setup(ctx, os.Stderr, nil, opts...)
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.logger.Info("MCP server starting on stdio")
	return mcpserver.New(rt.svc).ServeStdio()
}
