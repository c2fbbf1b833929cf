package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofrs/flock"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/ryanm101/romcatalog/internal/logging"
	"github.com/ryanm101/romcatalog/internal/metrics"
	"github.com/ryanm101/romcatalog/internal/tracing"
)

const (
	defaultTimeout   = 30 * time.Second
	maxDocumentBytes = 16 << 20
	lockRetryDelay   = 50 * time.Millisecond
)

// TokenSource supplies the authentication token for a request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// URLFunc builds a request URL. token is empty for clients without a
// TokenSource.
type URLFunc func(token string) string

// CallFunc performs one remote operation with an acquired limiter slot.
type CallFunc func(ctx context.Context, token string) error

// FetchFunc downloads the raw detail document for a cache miss.
type FetchFunc func(ctx context.Context) ([]byte, error)

// Client performs throttled requests against one provider family and keeps
// its detail documents in a DiskCache.
type Client struct {
	provider string
	limiter  *Limiter
	cache    *DiskCache
	tokens   TokenSource
	http     *http.Client
	logger   *slog.Logger
	group    singleflight.Group
	maxBytes int64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for GET requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d}
		}
	}
}

// WithTokenSource makes every request obtain a token first.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a Client for provider. limiter is shared with every
// other client of the same provider family; cache may be nil for clients
// that never cache detail documents.
func NewClient(provider string, limiter *Limiter, cache *DiskCache, opts ...Option) *Client {
	c := &Client{
		provider: provider,
		limiter:  limiter,
		cache:    cache,
		http:     &http.Client{Timeout: defaultTimeout},
		maxBytes: maxDocumentBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.limiter == nil {
		c.limiter = NewLimiter(DefaultConcurrency)
	}
	c.logger = logging.OrDiscard(c.logger).With("provider", provider)
	return c
}

// Provider returns the provider name used in logs, metrics and errors.
func (c *Client) Provider() string {
	return c.provider
}

// Cache returns the client's disk cache.
func (c *Client) Cache() *DiskCache {
	return c.cache
}

// Logger returns the client's logger.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}

// HTTPClient returns the underlying HTTP client.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// Call runs fn holding a limiter slot. The context is checked on entry and
// again after the token is obtained, immediately before fn runs. Token
// failures are returned unchanged.
func (c *Client) Call(ctx context.Context, op string, fn CallFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ctx, span := tracing.StartSpan(ctx, "catalog."+op,
		trace.WithAttributes(attribute.String("catalog.provider", c.provider)))
	start := time.Now()

	err := c.call(ctx, fn)

	status := "ok"
	switch {
	case err == nil:
	case ctx.Err() != nil:
		status = "cancelled"
	default:
		status = "error"
	}
	metrics.ObserveRequest(c.provider, op, status, start)
	tracing.EndSpan(span, err)
	return err
}

func (c *Client) call(ctx context.Context, fn CallFunc) error {
	if err := c.limiter.Acquire(ctx); err != nil {
		return err
	}
	defer c.limiter.Release()

	var token string
	if c.tokens != nil {
		t, err := c.tokens.Token(ctx)
		if err != nil {
			return err
		}
		token = t
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, token)
}

// Get issues one throttled GET and returns the response body. Transport
// failures and non-2xx responses match ErrNetwork.
func (c *Client) Get(ctx context.Context, op string, urlFor URLFunc) ([]byte, error) {
	var body []byte
	err := c.Call(ctx, op, func(ctx context.Context, token string) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlFor(token), nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("User-Agent", "romcatalog")

		resp, err := c.http.Do(req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return NetworkError(c.provider, op, 0, err)
		}
		defer func() { _ = resp.Body.Close() }()

		trace.SpanFromContext(ctx).SetAttributes(semconv.HTTPResponseStatusCode(resp.StatusCode))
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			return NetworkError(c.provider, op, resp.StatusCode, fmt.Errorf("unexpected status: %s", resp.Status))
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return NetworkError(c.provider, op, resp.StatusCode, fmt.Errorf("read body: %w", err))
		}
		if int64(len(body)) > c.maxBytes {
			return NetworkError(c.provider, op, resp.StatusCode, fmt.Errorf("response exceeds %d bytes", c.maxBytes))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// EnsureDetailCached returns the local path of the detail document for id,
// downloading it with a GET to urlFor when it is missing or stale.
func (c *Client) EnsureDetailCached(ctx context.Context, id string, urlFor URLFunc) (string, error) {
	return c.EnsureCached(ctx, id, func(ctx context.Context) ([]byte, error) {
		return c.Get(ctx, "detail", urlFor)
	})
}

// EnsureCached returns the local path of the detail document for id. A
// document younger than the freshness window is returned without calling
// fetch. Otherwise fetch runs and its result replaces the cached copy.
// Concurrent calls for the same id share one fetch, and a lock file next
// to the document serializes fetches across processes. The shared fetch
// is detached from the caller that started it and bounded by the request
// timeout, so one caller giving up never fails the others.
func (c *Client) EnsureCached(ctx context.Context, id string, fetch FetchFunc) (string, error) {
	if c.cache == nil {
		return "", errors.New("client has no cache")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	doc, fresh, err := c.cache.Lookup(id)
	if err != nil {
		return "", err
	}
	if fresh {
		metrics.CacheLookups.WithLabelValues(c.provider, "hit").Inc()
		return doc.LocalPath, nil
	}
	if doc.FetchedAt.IsZero() {
		metrics.CacheLookups.WithLabelValues(c.provider, "miss").Inc()
	} else {
		metrics.CacheLookups.WithLabelValues(c.provider, "stale").Inc()
	}

	ch := c.group.DoChan(id, func() (any, error) {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.downloadTimeout())
		defer cancel()
		return c.download(dctx, id, fetch)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// downloadTimeout bounds a detached download including its limiter and
// lock waits.
func (c *Client) downloadTimeout() time.Duration {
	if c.http != nil && c.http.Timeout > 0 {
		return 2 * c.http.Timeout
	}
	return 2 * defaultTimeout
}

func (c *Client) download(ctx context.Context, id string, fetch FetchFunc) (string, error) {
	lockPath, err := c.cache.lockPath(id)
	if err != nil {
		return "", err
	}
	if err := ensureDir(lockPath); err != nil {
		return "", err
	}

	lock := flock.New(lockPath)
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return "", fmt.Errorf("lock cache entry %s: %w", id, err)
	}
	if !locked {
		return "", fmt.Errorf("lock cache entry %s: not acquired", id)
	}
	defer func() { _ = lock.Unlock() }()

	// Another process may have written it while we waited.
	if doc, fresh, err := c.cache.Lookup(id); err == nil && fresh {
		return doc.LocalPath, nil
	}

	data, err := fetch(ctx)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	doc, err := c.cache.Store(id, data)
	if err != nil {
		return "", err
	}
	c.logger.Debug("detail document cached", "remote_id", id, "path", doc.LocalPath, "bytes", len(data))
	return doc.LocalPath, nil
}
