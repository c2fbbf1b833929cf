package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTokens struct {
	token string
	err   error
	calls atomic.Int32
}

func (s *staticTokens) Token(ctx context.Context) (string, error) {
	s.calls.Add(1)
	return s.token, s.err
}

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestClient_Get(t *testing.T) {
	srv, hits := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "abc", r.URL.Query().Get("sessionid"))
		fmt.Fprint(w, "<Data/>")
	})
	tokens := &staticTokens{token: "abc"}
	c := NewClient("test", NewLimiter(1), nil, WithTokenSource(tokens))

	body, err := c.Get(context.Background(), "search", func(token string) string {
		return srv.URL + "/search?sessionid=" + token
	})
	require.NoError(t, err)
	assert.Equal(t, "<Data/>", string(body))
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, int32(1), tokens.calls.Load())
}

func TestClient_GetStatusError(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	})
	c := NewClient("test", nil, nil)

	_, err := c.Get(context.Background(), "search", func(string) string { return srv.URL })
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusServiceUnavailable, reqErr.Status)
	assert.Equal(t, "search", reqErr.Op)
	assert.Equal(t, "test", reqErr.Provider)
}

func TestClient_GetTransportError(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})
	url := srv.URL
	srv.Close()

	c := NewClient("test", nil, nil, WithTimeout(time.Second))
	_, err := c.Get(context.Background(), "search", func(string) string { return url })
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestClient_TokenFailureSkipsRequest(t *testing.T) {
	srv, hits := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})
	authErr := errors.New("auth failed")
	c := NewClient("test", nil, nil, WithTokenSource(&staticTokens{err: authErr}))

	_, err := c.Get(context.Background(), "search", func(string) string { return srv.URL })
	assert.ErrorIs(t, err, authErr)
	assert.Equal(t, int32(0), hits.Load())
}

func TestClient_CancelledBeforeRequest(t *testing.T) {
	srv, hits := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})
	c := NewClient("test", nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Get(ctx, "search", func(string) string { return srv.URL })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), hits.Load())
}

func TestClient_LimiterBoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
	})
	c := NewClient("test", NewLimiter(2), nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Get(context.Background(), "search", func(string) string { return srv.URL })
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.GreaterOrEqual(t, peak.Load(), int32(1))
}

func TestClient_EnsureDetailCached(t *testing.T) {
	srv, hits := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "<Data><Game><id>%s</id></Game></Data>", r.URL.Query().Get("id"))
	})
	cache := NewDiskCache(t.TempDir(), "gamesdb", DefaultFreshness)
	c := NewClient("gamesdb", nil, cache)
	urlFor := func(string) string { return srv.URL + "/GetGame.php?id=12" }

	// Absent: exactly one request.
	path, err := c.EnsureDetailCached(context.Background(), "12", urlFor)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<id>12</id>")

	// Fresh: no request.
	path2, err := c.EnsureDetailCached(context.Background(), "12", urlFor)
	require.NoError(t, err)
	assert.Equal(t, path, path2)
	assert.Equal(t, int32(1), hits.Load())

	// Stale: exactly one more request.
	old := time.Now().Add(-8 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))
	_, err = c.EnsureDetailCached(context.Background(), "12", urlFor)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestClient_EnsureDetailCachedCollapsesConcurrentFetches(t *testing.T) {
	release := make(chan struct{})
	srv, hits := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		fmt.Fprint(w, "<Data/>")
	})
	c := NewClient("gamesdb", NewLimiter(5), NewDiskCache(t.TempDir(), "gamesdb", 0))
	urlFor := func(string) string { return srv.URL }

	const n = 10
	var wg sync.WaitGroup
	paths := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := c.EnsureDetailCached(context.Background(), "55", urlFor)
			assert.NoError(t, err)
			paths[i] = p
		}(i)
	}
	require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), hits.Load())
	for _, p := range paths {
		assert.Equal(t, paths[0], p)
	}
}

func TestClient_EnsureDetailCachedFailureWritesNothing(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	})
	root := t.TempDir()
	c := NewClient("gamesdb", nil, NewDiskCache(root, "gamesdb", 0))

	_, err := c.EnsureDetailCached(context.Background(), "3", func(string) string { return srv.URL })
	assert.ErrorIs(t, err, ErrNetwork)

	entries, err := os.ReadDir(filepath.Join(root, "gamesdb", "3"))
	require.NoError(t, err)
	for _, e := range entries {
		assert.True(t, strings.HasSuffix(e.Name(), ".lock"), "unexpected file %s", e.Name())
	}
}

func TestClient_EnsureCachedCustomFetch(t *testing.T) {
	c := NewClient("igdb", nil, NewDiskCache(t.TempDir(), "igdb", 0))
	var calls int
	fetch := func(ctx context.Context) ([]byte, error) {
		calls++
		return []byte(`{"id":1}`), nil
	}

	path, err := c.EnsureCached(context.Background(), "1", fetch)
	require.NoError(t, err)
	_, err = c.EnsureCached(context.Background(), "1", fetch)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1}`, string(data))
}

func TestClient_EnsureCachedWithoutCache(t *testing.T) {
	c := NewClient("test", nil, nil)
	_, err := c.EnsureCached(context.Background(), "1", func(context.Context) ([]byte, error) { return nil, nil })
	assert.Error(t, err)
}

func TestClient_GetRejectsOversizedBody(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<Data><Game/></Data>")
	})
	c := NewClient("test", nil, nil)
	c.maxBytes = 8

	_, err := c.Get(context.Background(), "detail", func(string) string { return srv.URL })
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Contains(t, err.Error(), "exceeds 8 bytes")
}

func TestClient_GetBodyAtLimit(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<Data/>")
	})
	c := NewClient("test", nil, nil)
	c.maxBytes = int64(len("<Data/>"))

	body, err := c.Get(context.Background(), "detail", func(string) string { return srv.URL })
	require.NoError(t, err)
	assert.Equal(t, "<Data/>", string(body))
}

func TestClient_EnsureDetailCachedOversizedWritesNothing(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, strings.Repeat("x", 64))
	})
	cache := NewDiskCache(t.TempDir(), "gamesdb", 0)
	c := NewClient("gamesdb", nil, cache)
	c.maxBytes = 32

	_, err := c.EnsureDetailCached(context.Background(), "9", func(string) string { return srv.URL })
	assert.ErrorIs(t, err, ErrNetwork)

	doc, fresh, err := cache.Lookup("9")
	require.NoError(t, err)
	assert.False(t, fresh)
	assert.True(t, doc.FetchedAt.IsZero())
}

func TestClient_EnsureDetailCachedSurvivesCancelledLeader(t *testing.T) {
	release := make(chan struct{})
	srv, hits := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		fmt.Fprint(w, "<Data><Game><id>42</id></Game></Data>")
	})
	c := NewClient("gamesdb", NewLimiter(5), NewDiskCache(t.TempDir(), "gamesdb", 0))
	urlFor := func(string) string { return srv.URL }

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := c.EnsureDetailCached(leaderCtx, "42", urlFor)
		leaderErr <- err
	}()
	require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, time.Millisecond)

	type result struct {
		path string
		err  error
	}
	follower := make(chan result, 1)
	go func() {
		p, err := c.EnsureDetailCached(context.Background(), "42", urlFor)
		follower <- result{p, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelLeader()
	assert.ErrorIs(t, <-leaderErr, context.Canceled)

	close(release)
	res := <-follower
	require.NoError(t, res.err)
	data, err := os.ReadFile(res.path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<id>42</id>")
	assert.Equal(t, int32(1), hits.Load())
}
