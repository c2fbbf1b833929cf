package token

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanm101/romcatalog/internal/metrics"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestCache_SingleFlight(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	fetcher := FetcherFunc(func(ctx context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "session-1", nil
	})
	clock := newFakeClock()
	c := New("test", 9*time.Minute+30*time.Second, fetcher, WithClock(clock.Now))

	const n = 20
	var wg sync.WaitGroup
	results := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Token(context.Background())
		}(i)
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "session-1", results[i])
	}
	assert.Equal(t, StateValid, c.State())
}

func TestCache_Expiry(t *testing.T) {
	var calls atomic.Int32
	fetcher := FetcherFunc(func(ctx context.Context) (string, error) {
		n := calls.Add(1)
		if n == 1 {
			return "first", nil
		}
		return "second", nil
	})
	clock := newFakeClock()
	window := 9*time.Minute + 30*time.Second
	c := New("test", window, fetcher, WithClock(clock.Now))

	tok, err := c.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", tok)

	clock.Advance(window - time.Second)
	tok, err = c.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", tok)
	assert.Equal(t, int32(1), calls.Load())

	clock.Advance(time.Second)
	assert.Equal(t, StateInvalid, c.State())
	tok, err = c.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "second", tok)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCache_FailureLeavesInvalid(t *testing.T) {
	boom := errors.New("login rejected")
	var calls atomic.Int32
	fetcher := FetcherFunc(func(ctx context.Context) (string, error) {
		if calls.Add(1) == 1 {
			return "", boom
		}
		return "recovered", nil
	})
	c := New("test-failure", time.Minute, fetcher)
	before := testutil.ToFloat64(metrics.TokenRefreshes.WithLabelValues("test-failure", "error"))

	_, err := c.Token(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuth)
	assert.ErrorIs(t, err, boom)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "test-failure", authErr.Provider)
	assert.Equal(t, StateInvalid, c.State())
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.TokenRefreshes.WithLabelValues("test-failure", "error")))

	// Not retried internally; the next caller triggers a new fetch.
	assert.Equal(t, int32(1), calls.Load())
	tok, err := c.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "recovered", tok)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCache_EmptyTokenIsFailure(t *testing.T) {
	c := New("test", time.Minute, FetcherFunc(func(ctx context.Context) (string, error) {
		return "", nil
	}))

	_, err := c.Token(context.Background())
	assert.ErrorIs(t, err, ErrAuth)
	assert.Equal(t, StateInvalid, c.State())
}

func TestCache_CancelWhileWaitingForSlot(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	fetcher := FetcherFunc(func(ctx context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "tok", nil
	})
	c := New("test", time.Minute, fetcher)

	done := make(chan error, 1)
	go func() {
		_, err := c.Token(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return c.State() == StateRefreshing }, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Token(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	require.NoError(t, <-done)

	// The slot was released: invalidating forces exactly one more fetch.
	c.Invalidate()
	_, err = c.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCache_CancelDuringFetchReleasesSlot(t *testing.T) {
	var calls atomic.Int32
	fetcher := FetcherFunc(func(ctx context.Context) (string, error) {
		if calls.Add(1) == 1 {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return "tok", nil
	})
	c := New("test", time.Minute, fetcher)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Token(ctx)
		done <- err
	}()
	require.Eventually(t, func() bool { return c.State() == StateRefreshing }, time.Second, time.Millisecond)
	cancel()

	err := <-done
	assert.ErrorIs(t, err, ErrAuth)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateInvalid, c.State())

	tok, err := c.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "invalid", StateInvalid.String())
	assert.Equal(t, "refreshing", StateRefreshing.String())
	assert.Equal(t, "valid", StateValid.String())
}
