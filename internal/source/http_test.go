package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/codex/internal/apperr"
)

func TestHTTPFetcher_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# Notes\nbody"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(AllowLoopback())
	data, err := f.Fetch(context.Background(), srv.URL+"/notes.md")
	require.NoError(t, err)
	assert.Equal(t, "# Notes\nbody", string(data))
}

func TestHTTPFetcher_StatusIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(AllowLoopback()).Fetch(context.Background(), srv.URL)
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 404, te.Code)
	assert.Equal(t, "http 404", te.Error())
}

func TestHTTPFetcher_BodyCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(AllowLoopback(), WithMaxBytes(32)).Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, apperr.ErrValidationRejected)
}

func TestHTTPFetcher_BlocksLoopback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("request should not reach the server")
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher().Fetch(context.Background(), srv.URL)
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "blocked host", te.Status)
}

func TestHTTPFetcher_RejectsScheme(t *testing.T) {
	_, err := NewHTTPFetcher().Fetch(context.Background(), "ftp://example.com/a.txt")
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Contains(t, te.Status, "unsupported scheme")
}

func TestHTTPFetcher_RedirectCap(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+"/again", http.StatusFound)
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(AllowLoopback()).Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, errTooManyRedirects)
}

func TestHTTPFetcher_RateLimitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(AllowLoopback(), WithRateLimit(0.01, 1))
	_, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = f.Fetch(ctx, srv.URL)
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "throttled", te.Status)
}
