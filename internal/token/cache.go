// Package token caches provider authentication tokens with a fixed validity
// window and a single-flight refresh.
package token

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ryanm101/romcatalog/internal/logging"
	"github.com/ryanm101/romcatalog/internal/metrics"
	"github.com/ryanm101/romcatalog/internal/tracing"
)

// State is the lifecycle state of a Cache.
type State int32

const (
	StateInvalid State = iota
	StateRefreshing
	StateValid
)

func (s State) String() string {
	switch s {
	case StateRefreshing:
		return "refreshing"
	case StateValid:
		return "valid"
	default:
		return "invalid"
	}
}

// Fetcher obtains a fresh token from the provider.
type Fetcher interface {
	FetchToken(ctx context.Context) (string, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) (string, error)

func (f FetcherFunc) FetchToken(ctx context.Context) (string, error) { return f(ctx) }

type issued struct {
	value    string
	issuedAt time.Time
}

// Cache holds one provider's token. The zero value is not usable; use New.
type Cache struct {
	provider string
	window   time.Duration
	fetcher  Fetcher
	logger   *slog.Logger
	now      func() time.Time

	current atomic.Pointer[issued]
	state   atomic.Int32
	slot    chan struct{}
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger used for refresh events.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a Cache for provider whose tokens are valid for window after
// they are issued.
func New(provider string, window time.Duration, fetcher Fetcher, opts ...Option) *Cache {
	c := &Cache{
		provider: provider,
		window:   window,
		fetcher:  fetcher,
		now:      time.Now,
		slot:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrDiscard(c.logger).With("provider", provider)
	return c
}

// State returns the current lifecycle state.
func (c *Cache) State() State {
	s := State(c.state.Load())
	if s == StateValid && !c.valid(c.current.Load()) {
		return StateInvalid
	}
	return s
}

// Token returns a valid token, fetching a new one if the cached token is
// missing or expired. At most one fetch runs at a time; callers that arrive
// during a fetch wait for it and reuse its result. A fetch failure is
// returned as *AuthError and is not retried.
func (c *Cache) Token(ctx context.Context) (string, error) {
	if t := c.current.Load(); c.valid(t) {
		return t.value, nil
	}

	select {
	case c.slot <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-c.slot }()

	if t := c.current.Load(); c.valid(t) {
		return t.value, nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	return c.refresh(ctx)
}

// Invalidate drops the cached token, e.g. after the provider rejected it.
func (c *Cache) Invalidate() {
	c.current.Store(nil)
	c.state.Store(int32(StateInvalid))
}

func (c *Cache) refresh(ctx context.Context) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "token.refresh")
	c.state.Store(int32(StateRefreshing))

	value, err := c.fetcher.FetchToken(ctx)
	if err == nil && value == "" {
		err = errEmptyToken
	}
	if err != nil {
		c.current.Store(nil)
		c.state.Store(int32(StateInvalid))
		metrics.TokenRefreshes.WithLabelValues(c.provider, "error").Inc()
		c.logger.Warn("token refresh failed", "error", err)
		tracing.EndSpan(span, err)
		return "", &AuthError{Provider: c.provider, Err: err}
	}

	c.current.Store(&issued{value: value, issuedAt: c.now()})
	c.state.Store(int32(StateValid))
	metrics.TokenRefreshes.WithLabelValues(c.provider, "ok").Inc()
	c.logger.Debug("token refreshed", "valid_for", c.window)
	tracing.EndSpan(span, nil)
	return value, nil
}

func (c *Cache) valid(t *issued) bool {
	return t != nil && c.now().Sub(t.issuedAt) < c.window
}
