// Package source resolves document references (URLs or paths) to bytes.
package source

import (
	"context"
	"fmt"
)

// Fetcher resolves a reference to the raw bytes it names.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, ref string) ([]byte, error)

// Fetch calls f(ctx, ref).
func (f FetcherFunc) Fetch(ctx context.Context, ref string) ([]byte, error) {
	return f(ctx, ref)
}

// TransportError reports that a byte source could not deliver content.
// Status is a short human-readable label such as "http 404" or "not found";
// Code carries the HTTP status when there is one.
type TransportError struct {
	Status string
	Code   int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return e.Status
	}
	return fmt.Sprintf("%s: %v", e.Status, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
