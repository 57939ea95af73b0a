package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/codex/internal/source"
)

// SyncDir ingests every allow-listed file under root. Each file's source is
// its absolute path. Per-file outcomes are returned in walk order.
func (in *Ingestor) SyncDir(ctx context.Context, root string) ([]Result, error) {
	dir, err := source.NewDir(root)
	if err != nil {
		return nil, fmt.Errorf("ingest: sync: %w", err)
	}
	files, err := dir.List(in.policy.Allowed)
	if err != nil {
		return nil, fmt.Errorf("ingest: sync: %w", err)
	}

	in.logger.Info("ingest: sync started", slog.String("root", dir.Root()), slog.Int("files", len(files)))

	results := in.IngestBatchWith(ctx, dir, fileItems(files))

	var created, existing, skipped int
	for _, r := range results {
		switch v := r.(type) {
		case Accepted:
			if v.Created {
				created++
			} else {
				existing++
			}
		default:
			skipped++
		}
	}
	in.logger.Info("ingest: sync complete",
		slog.Int("created", created),
		slog.Int("existing", existing),
		slog.Int("skipped", skipped))
	return results, nil
}

func fileItems(files []source.FileMeta) []Item {
	items := make([]Item, len(files))
	for i, f := range files {
		items[i] = Item{Name: f.Path, Source: f.Abs, Size: f.Size, Ref: f.Abs}
	}
	return items
}
