package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileMeta describes a file found under a Dir.
type FileMeta struct {
	Path    string // relative to the root
	Abs     string
	Size    int64
	ModTime time.Time
}

// Dir reads files under a fixed root directory.
type Dir struct {
	root string
}

// NewDir creates a Dir rooted at root. The directory must already exist.
func NewDir(root string) (*Dir, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("source: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("source: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source: root is not a directory: %s", abs)
	}
	return &Dir{root: abs}, nil
}

// Root returns the absolute root path.
func (d *Dir) Root() string { return d.root }

// safePath resolves a path against the root and rejects any result that
// escapes it. Absolute paths are accepted when they already lie under root.
func (d *Dir) safePath(p string) (string, error) {
	if p == "" {
		return d.root, nil
	}
	cleaned := filepath.Clean(p)
	if !filepath.IsAbs(cleaned) {
		cleaned = filepath.Join(d.root, cleaned)
	}
	abs, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("source: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, d.root+string(os.PathSeparator)) && abs != d.root {
		return "", fmt.Errorf("source: path escapes root: %s", p)
	}
	return abs, nil
}

// List walks the root and returns every regular file whose name passes keep.
// A nil keep accepts all files. Hidden directories are skipped.
func (d *Dir) List(keep func(name string) bool) ([]FileMeta, error) {
	var out []FileMeta
	err := filepath.WalkDir(d.root, func(p string, e fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if e.IsDir() {
			if p != d.root && strings.HasPrefix(e.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !e.Type().IsRegular() || (keep != nil && !keep(e.Name())) {
			return nil
		}
		info, err := e.Info()
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(d.root, p)
		out = append(out, FileMeta{
			Path:    rel,
			Abs:     p,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("source: list: %w", err)
	}
	return out, nil
}

// Read returns the raw bytes of a file under the root.
func (d *Dir) Read(path string) ([]byte, error) {
	abs, err := d.safePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("source: read %s: %w", path, err)
	}
	return data, nil
}

// Fetch implements Fetcher. Failures are reported as *TransportError.
func (d *Dir) Fetch(_ context.Context, path string) ([]byte, error) {
	data, err := d.Read(path)
	switch {
	case err == nil:
		return data, nil
	case errors.Is(err, fs.ErrNotExist):
		return nil, &TransportError{Status: "not found", Err: err}
	default:
		return nil, &TransportError{Status: "read failed", Err: err}
	}
}
