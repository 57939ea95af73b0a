package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/starford/codex/internal/apperr"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultMaxBytes = 50 << 20
	maxRedirects    = 5
)

var errTooManyRedirects = fmt.Errorf("too many redirects (max %d)", maxRedirects)

// HTTPFetcher downloads documents over http and https.
type HTTPFetcher struct {
	client        *http.Client
	limiter       *rate.Limiter
	maxBytes      int64
	allowLoopback bool
}

// HTTPOption configures an HTTPFetcher.
type HTTPOption func(*HTTPFetcher)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(f *HTTPFetcher) {
		if d > 0 {
			f.client.Timeout = d
		}
	}
}

// WithRateLimit throttles outgoing requests to perSecond with the given burst.
// A non-positive rate disables throttling.
func WithRateLimit(perSecond float64, burst int) HTTPOption {
	return func(f *HTTPFetcher) {
		if perSecond <= 0 {
			f.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithMaxBytes caps the accepted body size.
func WithMaxBytes(n int64) HTTPOption {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

// WithTransport replaces the HTTP round tripper.
func WithTransport(rt http.RoundTripper) HTTPOption {
	return func(f *HTTPFetcher) { f.client.Transport = rt }
}

// AllowLoopback permits loopback targets. Intended for local testing.
func AllowLoopback() HTTPOption {
	return func(f *HTTPFetcher) { f.allowLoopback = true }
}

// NewHTTPFetcher creates a fetcher with a 30s timeout and a 50 MiB body cap.
func NewHTTPFetcher(opts ...HTTPOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client:   &http.Client{Timeout: defaultTimeout},
		maxBytes: defaultMaxBytes,
	}
	f.client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return errTooManyRedirects
		}
		return f.checkHost(req.URL.Hostname())
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fetch downloads rawURL. Non-2xx responses and network failures are
// reported as *TransportError; a body over the cap wraps
// apperr.ErrValidationRejected.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, &TransportError{Status: "invalid url", Err: err}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, &TransportError{Status: "unsupported scheme " + parsed.Scheme}
	}
	if err := f.checkHost(parsed.Hostname()); err != nil {
		return nil, &TransportError{Status: "blocked host", Err: err}
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Status: "throttled", Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &TransportError{Status: "invalid request", Err: err}
	}
	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &TransportError{Status: "timeout", Err: err}
		}
		return nil, &TransportError{Status: "download failed", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{Status: fmt.Sprintf("http %d", resp.StatusCode), Code: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, &TransportError{Status: "read body failed", Code: resp.StatusCode, Err: err}
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("source: %w: body exceeds %d bytes", apperr.ErrValidationRejected, f.maxBytes)
	}
	return data, nil
}

// checkHost rejects loopback and cloud metadata addresses.
func (f *HTTPFetcher) checkHost(host string) error {
	if host == "metadata.google.internal" {
		return fmt.Errorf("blocked host: %s", host)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		ips, lookupErr := net.LookupIP(host)
		if lookupErr != nil || len(ips) == 0 {
			return nil //nolint:nilerr // let http.Client handle DNS failures
		}
		ip = ips[0]
	}

	if ip.IsLoopback() && !f.allowLoopback {
		return fmt.Errorf("blocked host: loopback address %s", host)
	}
	if ip.Equal(net.ParseIP("169.254.169.254")) {
		return fmt.Errorf("blocked host: cloud metadata address %s", host)
	}
	return nil
}
