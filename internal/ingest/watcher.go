package ingest

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/codex/internal/source"
)

// settleDelay is how long a path must stay quiet before it is ingested.
// Editors and copies emit several writes per file; ingesting each would
// store every partial version as its own document.
var settleDelay = 300 * time.Millisecond

// Watch ingests files created or written under root until ctx is cancelled.
// New subdirectories are watched as they appear and their files ingested.
// cb, if non-nil, receives every result.
func (in *Ingestor) Watch(ctx context.Context, root string, cb func(Result)) error {
	dir, err := source.NewDir(root)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, dir.Root()); err != nil {
		return err
	}

	in.logger.Info("watcher: started", slog.String("root", dir.Root()))

	pending := make(map[string]struct{})
	var settleTimer *time.Timer
	var settleCh <-chan time.Time

	schedule := func(p string) {
		pending[p] = struct{}{}
		if settleTimer == nil {
			settleTimer = time.NewTimer(settleDelay)
			settleCh = settleTimer.C
		} else {
			settleTimer.Reset(settleDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if settleTimer != nil {
				settleTimer.Stop()
			}
			in.logger.Info("watcher: stopped")
			return nil

		case <-settleCh:
			items := settledItems(dir, pending)
			pending = make(map[string]struct{})
			for _, r := range in.IngestBatchWith(ctx, dir, items) {
				if cb != nil {
					cb(r)
				}
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if isHidden(info.Name()) {
						continue
					}
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						in.logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
						continue
					}
					in.logger.Debug("watcher: watching new dir", slog.String("path", ev.Name))
					// Files may have landed before the watch was added.
					_ = filepath.WalkDir(ev.Name, func(p string, d fs.DirEntry, err error) error {
						if err == nil && d.Type().IsRegular() && in.policy.Allowed(d.Name()) {
							schedule(p)
						}
						return nil
					})
					continue
				}
			}

			if in.policy.Allowed(filepath.Base(ev.Name)) {
				schedule(ev.Name)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			in.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// settledItems turns pending paths that still exist into items, sorted by path.
func settledItems(dir *source.Dir, pending map[string]struct{}) []Item {
	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	files := make([]source.FileMeta, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		rel, err := filepath.Rel(dir.Root(), p)
		if err != nil {
			continue
		}
		files = append(files, source.FileMeta{Path: rel, Abs: p, Size: info.Size(), ModTime: info.ModTime()})
	}
	return fileItems(files)
}

// addDirsRecursive adds root and all its non-hidden subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		return w.Add(p)
	})
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
