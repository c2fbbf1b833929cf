// Package gamesdb is the TheGamesDB catalog: title search, cached game and
// platform documents, and their image lists.
package gamesdb

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/ryanm101/romcatalog/internal/catalog"
)

// DefaultBaseURL is the legacy XML API root.
const DefaultBaseURL = "https://legacy.thegamesdb.net/api/"

// Provider names, also the cache directory names.
const (
	ProviderName         = "gamesdb"
	PlatformProviderName = "gamesdb-platform"
)

// Client talks to TheGamesDB. Game and platform documents go through
// separate catalog clients so they cache under separate directories; both
// should share one limiter.
type Client struct {
	baseURL   string
	games     *catalog.Client
	platforms *catalog.Client
}

// New returns a Client rooted at baseURL (DefaultBaseURL when empty).
func New(baseURL string, games, platforms *catalog.Client) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Client{baseURL: baseURL, games: games, platforms: platforms}
}

// Search returns candidates for name in the catalog's relevance order.
// platform is the catalog platform name and may be empty. A response that
// is not a valid search document yields no candidates rather than an error.
func (c *Client) Search(ctx context.Context, name, platform string) ([]catalog.SearchResult, error) {
	q := url.Values{}
	q.Set("name", name)
	if platform != "" {
		q.Set("platform", platform)
	}
	endpoint := c.baseURL + "GetGamesList.php?" + q.Encode()

	body, err := c.games.Get(ctx, "search", func(string) string { return endpoint })
	if err != nil {
		return nil, err
	}

	results, err := parseSearch(body)
	if err != nil {
		c.games.Logger().Warn("unparsable search response", "query", name, "platform", platform, "error", err)
		return nil, nil
	}
	return results, nil
}

// EnsureGameCached returns the local path of the GetGame.php document for id.
func (c *Client) EnsureGameCached(ctx context.Context, id string) (string, error) {
	endpoint := c.baseURL + "GetGame.php?id=" + url.QueryEscape(id)
	return c.games.EnsureDetailCached(ctx, id, func(string) string { return endpoint })
}

// EnsurePlatformCached returns the local path of the GetPlatform.php
// document for the catalog platform id.
func (c *Client) EnsurePlatformCached(ctx context.Context, id int) (string, error) {
	sid := strconv.Itoa(id)
	endpoint := c.baseURL + "GetPlatform.php?id=" + sid
	return c.platforms.EnsureDetailCached(ctx, sid, func(string) string { return endpoint })
}
