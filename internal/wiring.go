package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/starford/codex/internal/assistant"
	"github.com/starford/codex/internal/chunker"
	"github.com/starford/codex/internal/corpus"
	"github.com/starford/codex/internal/index"
	"github.com/starford/codex/internal/ingest"
	"github.com/starford/codex/internal/pgindex"
	"github.com/starford/codex/internal/retrieval"
	"github.com/starford/codex/internal/source"
)

// runtime holds the components shared by every command.
type runtime struct {
	cfg    *Config
	out    io.Writer
	logger *slog.Logger
	store  index.Store
	svc    *corpus.Service
}

func (rt *runtime) Close() error {
	return rt.store.Close()
}

// setup applies opts and builds the runtime. defaultLog is used when no
// log output was configured.
func setup(ctx context.Context, defaultLog io.Writer, observer func(ingest.Result), opts ...Option) (*runtime, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.out == nil {
		app.out = os.Stdout
	}
	if app.logOut == nil {
		app.logOut = defaultLog
	}
	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(app.logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	fetcher := source.NewHTTPFetcher(
		source.WithTimeout(cfg.Fetch.Timeout),
		source.WithRateLimit(cfg.Fetch.RatePerSecond, cfg.Fetch.Burst),
		source.WithMaxBytes(cfg.Ingest.MaxBytes),
	)

	ingestOpts := []ingest.Option{
		ingest.WithFetcher(fetcher),
		ingest.WithChunker(chunker.New(chunker.WithSize(cfg.Ingest.ChunkSize))),
		ingest.WithPolicy(ingest.NewPolicy(cfg.Ingest.Extensions, cfg.Ingest.MaxBytes)),
		ingest.WithWorkers(cfg.Ingest.Workers),
		ingest.WithLogger(logger),
	}
	if observer != nil {
		ingestOpts = append(ingestOpts, ingest.WithObserver(observer))
	}
	in := ingest.New(store, ingestOpts...)

	asst := assistant.New(cfg.Assistant.Options())
	if !asst.Enabled() {
		logger.Info("assistant disabled, answers fall back to chunk previews")
	}

	svc := corpus.NewService(store, in, retrieval.New(store, retrieval.WithK(cfg.Retrieval.K)), asst, logger)

	return &runtime{cfg: cfg, out: app.out, logger: logger, store: store, svc: svc}, nil
}

func openStore(ctx context.Context, cfg StoreConfig) (index.Store, error) {
	switch cfg.Driver {
	case DriverPostgres:
		return pgindex.Open(ctx, cfg.Postgres.DSN, pgindex.Options{
			MaxConns:    cfg.Postgres.MaxConns,
			IdleTimeout: cfg.Postgres.IdleTimeout,
		})
	default:
		return index.Open(cfg.SQLite.Path)
	}
}
