// Package chunker splits document text into bounded, contiguous segments.
package chunker

import "unicode/utf8"

// DefaultSize is the default number of characters per chunk.
const DefaultSize = 1200

// Chunker splits text into segments of at most size characters.
type Chunker struct {
	size int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithSize sets the maximum segment length in characters.
// Non-positive values are ignored.
func WithSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.size = size
		}
	}
}

// New creates a Chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{size: DefaultSize}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Size returns the configured maximum segment length.
func (c *Chunker) Size() int {
	return c.size
}

// Split splits content using the configured size.
func (c *Chunker) Split(content string) []string {
	return Split(content, c.size)
}

// Split cuts content into contiguous segments of at most maxSize runes.
// Segments neither overlap nor leave gaps, so joining them reproduces
// content byte for byte. Empty content yields no segments.
// A non-positive maxSize falls back to DefaultSize.
func Split(content string, maxSize int) []string {
	if maxSize <= 0 {
		maxSize = DefaultSize
	}
	if content == "" {
		return nil
	}

	out := make([]string, 0, utf8.RuneCountInString(content)/maxSize+1)
	start, n := 0, 0
	for i := range content {
		if n == maxSize {
			out = append(out, content[start:i])
			start, n = i, 0
		}
		n++
	}
	return append(out, content[start:])
}
