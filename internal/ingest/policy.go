package ingest

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/starford/codex/internal/apperr"
)

// DefaultExtensions is the allow-list of text-bearing file extensions.
var DefaultExtensions = []string{"md", "txt", "js", "ts", "json", "sql", "csv", "psql", "log", "ini", "conf"}

// DefaultMaxBytes is the size ceiling for a single item.
const DefaultMaxBytes int64 = 50 << 20

// Policy decides which items may be ingested.
type Policy struct {
	exts     map[string]struct{}
	maxBytes int64
}

// NewPolicy builds a Policy. Extensions are matched case-insensitively and
// may be given with or without a leading dot. Empty inputs use the defaults.
func NewPolicy(exts []string, maxBytes int64) Policy {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	p := Policy{exts: make(map[string]struct{}, len(exts)), maxBytes: maxBytes}
	for _, e := range exts {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e != "" {
			p.exts[e] = struct{}{}
		}
	}
	return p
}

// DefaultPolicy returns the default allow-list and a 50 MiB ceiling.
func DefaultPolicy() Policy {
	return NewPolicy(nil, 0)
}

// MaxBytes returns the size ceiling.
func (p Policy) MaxBytes() int64 { return p.maxBytes }

// Allowed reports whether name carries an allow-listed extension.
func (p Policy) Allowed(name string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" {
		return false
	}
	_, ok := p.exts[ext]
	return ok
}

// CheckName rejects names outside the allow-list.
func (p Policy) CheckName(name string) error {
	if !p.Allowed(name) {
		return rejection("blocked extension")
	}
	return nil
}

// CheckSize rejects sizes over the ceiling.
func (p Policy) CheckSize(size int64) error {
	if size > p.maxBytes {
		return rejection(fmt.Sprintf("too large (%d bytes)", size))
	}
	return nil
}

// rejectionError carries the human-readable reason of a validation failure.
type rejectionError struct{ reason string }

func (e *rejectionError) Error() string { return e.reason }

func (e *rejectionError) Unwrap() error { return apperr.ErrValidationRejected }

func rejection(reason string) error { return &rejectionError{reason: reason} }
