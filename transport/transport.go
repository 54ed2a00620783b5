// Package transport fetches raw bytes for a URL. It is the network
// collaborator of the image pipeline and the feed client.
package transport

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"

	"github.com/IvanBrykalov/thumbcache/photoerr"
)

// Fetcher returns the body found at a URL. Failures are
// *photoerr.NetworkError.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, rawURL string) ([]byte, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	return f(ctx, rawURL)
}

const (
	// DefaultMaxBodyBytes caps a single response. Feed thumbnails are tens
	// of KiB; the feed itself a few hundred.
	DefaultMaxBodyBytes = 16 << 20
	// DefaultTimeout bounds a whole request when the caller's context has
	// no deadline.
	DefaultTimeout = 30 * time.Second
	// DefaultUserAgent is sent with every request.
	DefaultUserAgent = "thumbcache/1.0"
)

// Options configures an HTTP fetcher. Zero values are safe.
type Options struct {
	// Client is the underlying client; nil uses a client with DefaultTimeout.
	Client *http.Client
	// MaxBodyBytes caps response size (0 => DefaultMaxBodyBytes).
	MaxBodyBytes int64
	// UserAgent overrides DefaultUserAgent.
	UserAgent string
	// RateLimit enables per-host limiting when RPS > 0.
	RateLimit *RateLimiters
	Logger    log.Logger
}

// HTTP is a Fetcher over net/http.
type HTTP struct {
	client  *http.Client
	maxBody int64
	ua      string
	limits  *RateLimiters
	logger  log.Logger
}

var _ Fetcher = (*HTTP)(nil)

// NewHTTP builds an HTTP fetcher.
func NewHTTP(opt Options) *HTTP {
	if opt.Client == nil {
		opt.Client = &http.Client{Timeout: DefaultTimeout}
	}
	if opt.MaxBodyBytes <= 0 {
		opt.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opt.UserAgent == "" {
		opt.UserAgent = DefaultUserAgent
	}
	if opt.Logger == nil {
		opt.Logger = log.NewNopLogger()
	}
	if opt.RateLimit != nil && opt.RateLimit.RPS <= 0 {
		opt.RateLimit = nil
	}
	return &HTTP{
		client:  opt.Client,
		maxBody: opt.MaxBodyBytes,
		ua:      opt.UserAgent,
		limits:  opt.RateLimit,
		logger:  log.With(opt.Logger, "component", "transport"),
	}
}

// Fetch performs a GET and returns the body of a 2xx response.
func (t *HTTP) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, photoerr.Network(rawURL, 0, errors.Wrap(err, "parsing URL"))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, photoerr.Network(rawURL, 0, errors.Errorf("unsupported scheme %q", u.Scheme))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, photoerr.Network(rawURL, 0, err)
	}
	req.Header.Set("User-Agent", t.ua)

	client := t.client
	if t.limits != nil {
		rt := client.Transport
		if rt == nil {
			rt = http.DefaultTransport
		}
		limited := *client
		limited.Transport = t.limits.RoundTripper(rt, u.Host)
		client = &limited
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, photoerr.Network(rawURL, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		level.Debug(t.logger).Log("msg", "non-2xx response", "url", rawURL, "status", resp.StatusCode)
		return nil, photoerr.Network(rawURL, resp.StatusCode, nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBody+1))
	if err != nil {
		return nil, photoerr.Network(rawURL, 0, errors.Wrap(err, "reading body"))
	}
	if int64(len(body)) > t.maxBody {
		return nil, photoerr.Network(rawURL, 0, errors.Errorf("body exceeds %d bytes", t.maxBody))
	}
	if t.limits != nil {
		t.limits.Recover(u.Host)
	}
	return body, nil
}
