// Package emumovies is the authenticated media catalog. A login yields a
// session id that every media search must carry.
package emumovies

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ryanm101/romcatalog/internal/catalog"
	"github.com/ryanm101/romcatalog/internal/library"
	"github.com/ryanm101/romcatalog/internal/token"
)

const (
	// DefaultBaseURL is the media API root.
	DefaultBaseURL = "https://api.gamesdbase.com/"
	// ProviderName is used for logs, metrics and the token cache.
	ProviderName = "emumovies"
	// DefaultTokenTTL is how long a session id is reused.
	DefaultTokenTTL = 9*time.Minute + 30*time.Second

	product = "romcatalog"
)

// methods are the media kinds queried for a title, in order.
var methods = []struct {
	name     string
	category library.ImageCategory
}{
	{"Box", library.ImagePrimary},
	{"Cabinet", library.ImageCabinet},
	{"Snap", library.ImageScreenshot},
	{"Banner", library.ImageBanner},
	{"Logos", library.ImageLogo},
}

type resultsXML struct {
	XMLName xml.Name    `xml:"Results"`
	Results []resultXML `xml:"Result"`
}

type resultXML struct {
	Success  string `xml:"Success,attr"`
	Session  string `xml:"Session,attr"`
	Message  string `xml:"MSG,attr"`
	Found    string `xml:"Found,attr"`
	FileName string `xml:"FileName,attr"`
	URL      string `xml:"URL,attr"`
}

func normalizeBase(baseURL string) string {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return baseURL
}

// Login fetches session ids with a username and password. It implements
// token.Fetcher.
type Login struct {
	baseURL  string
	username string
	password string
	http     *http.Client
}

// NewLogin returns a Login against baseURL. hc may be nil.
func NewLogin(baseURL, username, password string, hc *http.Client) *Login {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Login{
		baseURL:  normalizeBase(baseURL),
		username: username,
		password: password,
		http:     hc,
	}
}

// FetchToken logs in and returns the session id.
func (l *Login) FetchToken(ctx context.Context) (string, error) {
	if l.username == "" || l.password == "" {
		return "", errors.New("emumovies credentials are not configured")
	}

	q := url.Values{}
	q.Set("user", l.username)
	q.Set("api", l.password)
	q.Set("product", product)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"Login.aspx?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build login request: %w", err)
	}
	resp, err := l.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("login request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login: unexpected status: %s", resp.Status)
	}

	var res resultsXML
	if err := xml.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&res); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	for _, r := range res.Results {
		if strings.EqualFold(r.Success, "true") && r.Session != "" {
			return r.Session, nil
		}
		if r.Message != "" {
			return "", fmt.Errorf("login rejected: %s", r.Message)
		}
	}
	return "", errors.New("login rejected")
}

// Sessions drops a session id the service no longer accepts.
type Sessions interface {
	Invalidate()
}

// Client searches the media catalog. Its catalog client must carry a
// token source backed by Login.
type Client struct {
	baseURL  string
	api      *catalog.Client
	sessions Sessions
}

// New returns a Client rooted at baseURL (DefaultBaseURL when empty).
// sessions is the token cache behind api; it may be nil.
func New(baseURL string, api *catalog.Client, sessions Sessions) *Client {
	return &Client{baseURL: normalizeBase(baseURL), api: api, sessions: sessions}
}

func rejected(err error) bool {
	var reqErr *catalog.RequestError
	if !errors.As(err, &reqErr) {
		return false
	}
	return reqErr.Status == http.StatusUnauthorized || reqErr.Status == http.StatusForbidden
}

// search runs one media query. A session the service rejects is dropped
// and the query retried once with a fresh login.
func (c *Client) search(ctx context.Context, name, platform, method string) ([]byte, error) {
	urlFor := func(token string) string {
		q := url.Values{}
		q.Set("search", name)
		q.Set("platform", platform)
		q.Set("method", method)
		q.Set("sessionid", token)
		return c.baseURL + "Search.aspx?" + q.Encode()
	}

	body, err := c.api.Get(ctx, "media", urlFor)
	if err == nil || !rejected(err) || c.sessions == nil {
		return body, err
	}

	c.api.Logger().Info("session rejected, logging in again", "method", method)
	c.sessions.Invalidate()
	body, err = c.api.Get(ctx, "media", urlFor)
	if rejected(err) {
		return nil, &token.AuthError{Provider: ProviderName, Err: err}
	}
	return body, err
}

// Media returns the image candidates for a title on a media platform, one
// search per media kind. A kind whose response cannot be decoded is
// skipped. Network and authentication failures are returned; a session
// still rejected after a fresh login matches token.ErrAuth.
func (c *Client) Media(ctx context.Context, name, platform string) ([]library.ImageRef, error) {
	var refs []library.ImageRef
	for _, m := range methods {
		body, err := c.search(ctx, name, platform, m.name)
		if err != nil {
			return nil, err
		}

		var res resultsXML
		if err := xml.Unmarshal(body, &res); err != nil {
			c.api.Logger().Warn("unparsable media response", "query", name, "method", m.name, "error", err)
			continue
		}
		for _, r := range res.Results {
			if r.URL == "" || strings.EqualFold(r.Found, "false") {
				continue
			}
			refs = append(refs, library.ImageRef{
				Category: m.category,
				URL:      r.URL,
				Provider: library.ProviderEmuMovies,
			})
		}
	}
	return refs, nil
}
