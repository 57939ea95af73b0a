// Package ingest turns uploaded, fetched, or on-disk items into stored,
// deduplicated, chunked documents.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/starford/codex/internal/apperr"
	"github.com/starford/codex/internal/checksum"
	"github.com/starford/codex/internal/chunker"
	"github.com/starford/codex/internal/models"
	"github.com/starford/codex/internal/parser"
	"github.com/starford/codex/internal/source"
)

// Store is the subset of the document store used by ingestion.
type Store interface {
	FindByHash(ctx context.Context, hash string) (*models.Document, error)
	InsertDocumentWithChunks(ctx context.Context, doc models.Document, chunks []models.Chunk) (string, bool, error)
}

// Item is one candidate document. Data holds inline bytes; otherwise Ref
// (a URL or path) is resolved through the fetcher. Size is the declared
// size and may be zero when unknown.
type Item struct {
	Name   string
	Source string
	Title  string
	Size   int64
	Ref    string
	Data   []byte
}

// Ingestor validates, fetches, decodes, deduplicates and chunks items.
type Ingestor struct {
	store     Store
	fetcher   source.Fetcher
	chunker   *chunker.Chunker
	policy    Policy
	workers   int
	logger    *slog.Logger
	observers []func(Result)
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithFetcher sets the fetcher used for items that carry a Ref.
func WithFetcher(f source.Fetcher) Option {
	return func(in *Ingestor) { in.fetcher = f }
}

// WithChunker sets the chunker.
func WithChunker(c *chunker.Chunker) Option {
	return func(in *Ingestor) { in.chunker = c }
}

// WithPolicy sets the allow-list and size ceiling.
func WithPolicy(p Policy) Option {
	return func(in *Ingestor) { in.policy = p }
}

// WithWorkers bounds batch concurrency.
func WithWorkers(n int) Option {
	return func(in *Ingestor) {
		if n > 0 {
			in.workers = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(in *Ingestor) { in.logger = l }
}

// WithObserver registers fn to be called with every result.
func WithObserver(fn func(Result)) Option {
	return func(in *Ingestor) { in.observers = append(in.observers, fn) }
}

// New creates an Ingestor over store.
func New(store Store, opts ...Option) *Ingestor {
	in := &Ingestor{
		store:   store,
		chunker: chunker.New(),
		policy:  DefaultPolicy(),
		workers: 4,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(in)
	}
	return in
}

// Policy returns the configured policy.
func (in *Ingestor) Policy() Policy { return in.policy }

// Ingest processes one item with the configured fetcher.
func (in *Ingestor) Ingest(ctx context.Context, item Item) Result {
	return in.ingest(ctx, in.fetcher, item)
}

// IngestBatch processes items concurrently and returns results in input order.
// A failing item never affects its siblings.
func (in *Ingestor) IngestBatch(ctx context.Context, items []Item) []Result {
	return in.IngestBatchWith(ctx, in.fetcher, items)
}

// IngestBatchWith is IngestBatch with an explicit fetcher for Ref items.
func (in *Ingestor) IngestBatchWith(ctx context.Context, f source.Fetcher, items []Item) []Result {
	results := make([]Result, len(items))

	var g errgroup.Group
	g.SetLimit(in.workers)
	for i, item := range items {
		g.Go(func() error {
			results[i] = in.ingest(ctx, f, item)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (in *Ingestor) ingest(ctx context.Context, f source.Fetcher, item Item) Result {
	name := itemName(item)
	res := in.process(ctx, f, name, item)
	in.record(res)
	return res
}

func (in *Ingestor) process(ctx context.Context, f source.Fetcher, name string, item Item) Result {
	if err := in.policy.CheckName(name); err != nil {
		return Rejected{Name: name, Reason: err.Error(), Err: err}
	}
	if err := in.policy.CheckSize(item.Size); err != nil {
		return Rejected{Name: name, Reason: err.Error(), Err: err}
	}

	data := item.Data
	if data == nil {
		if item.Ref == "" {
			err := rejection("no content")
			return Rejected{Name: name, Reason: err.Error(), Err: err}
		}
		if f == nil {
			err := &source.TransportError{Status: "no fetcher configured"}
			return Rejected{Name: name, Reason: err.Status, Err: err}
		}
		fetched, err := f.Fetch(ctx, item.Ref)
		if err != nil {
			return fetchFailure(name, err)
		}
		data = fetched
	}
	if err := in.policy.CheckSize(int64(len(data))); err != nil {
		return Rejected{Name: name, Reason: err.Error(), Err: err}
	}

	content := Decode(data)
	title := item.Title
	if title == "" {
		title = defaultTitle(name, content)
	}
	src := item.Source
	if src == "" {
		src = item.Ref
	}
	if src == "" {
		src = name
	}

	acc, err := in.upsert(ctx, src, title, content)
	if err != nil {
		return Failed{Name: name, Err: err}
	}
	acc.Name = name
	return acc
}

// upsert stores content unless a document with the same hash exists.
func (in *Ingestor) upsert(ctx context.Context, src, title, content string) (Accepted, error) {
	hash := checksum.SumString(content)

	existing, err := in.store.FindByHash(ctx, hash)
	switch {
	case err == nil:
		return Accepted{ID: existing.ID}, nil
	case !errors.Is(err, apperr.ErrNotFound):
		return Accepted{}, fmt.Errorf("ingest: find by hash: %w", err)
	}

	docID := uuid.NewString()
	parts := in.chunker.Split(content)
	chunks := make([]models.Chunk, len(parts))
	for i, p := range parts {
		chunks[i] = models.Chunk{ID: uuid.NewString(), DocumentID: docID, Seq: i, Text: p}
	}

	id, created, err := in.store.InsertDocumentWithChunks(ctx, models.Document{
		ID:          docID,
		Source:      src,
		Title:       title,
		Content:     content,
		ContentHash: hash,
	}, chunks)
	if err != nil {
		return Accepted{}, fmt.Errorf("ingest: insert: %w", err)
	}
	if !created {
		return Accepted{ID: id}, nil
	}
	return Accepted{ID: id, Created: true, ChunkCount: len(chunks)}, nil
}

func (in *Ingestor) record(res Result) {
	switch v := res.(type) {
	case Accepted:
		in.logger.Info("ingest: accepted",
			slog.String("name", v.Name),
			slog.String("id", v.ID),
			slog.Bool("created", v.Created),
			slog.Int("chunks", v.ChunkCount))
	case Rejected:
		in.logger.Info("ingest: rejected", slog.String("name", v.Name), slog.String("reason", v.Reason))
	case Failed:
		in.logger.Error("ingest: failed", slog.String("name", v.Name), slog.String("error", errMessage(v.Err)))
	}
	for _, fn := range in.observers {
		fn(res)
	}
}

func fetchFailure(name string, err error) Result {
	var te *source.TransportError
	switch {
	case errors.As(err, &te):
		return Rejected{Name: name, Reason: te.Status, Err: te}
	case errors.Is(err, apperr.ErrValidationRejected):
		return Rejected{Name: name, Reason: "too large", Err: err}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Failed{Name: name, Err: err}
	default:
		return Rejected{Name: name, Reason: err.Error(), Err: &source.TransportError{Status: "fetch failed", Err: err}}
	}
}

// itemName returns the item's name, or the last element of its Ref.
func itemName(item Item) string {
	if item.Name != "" {
		return item.Name
	}
	if item.Ref != "" {
		p := item.Ref
		if u, err := url.Parse(item.Ref); err == nil && u.Scheme != "" {
			p = u.Path
		}
		if base := path.Base(filepath.ToSlash(p)); base != "." && base != "/" {
			return base
		}
	}
	return "upload"
}

// defaultTitle is the Markdown title for .md files, otherwise the base name.
func defaultTitle(name, content string) string {
	if strings.EqualFold(filepath.Ext(name), ".md") {
		if t := parser.Title([]byte(content)); t != "" {
			return t
		}
	}
	return filepath.Base(name)
}
