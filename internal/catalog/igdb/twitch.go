package igdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTokenURL is the Twitch OAuth endpoint issuing IGDB app tokens.
const DefaultTokenURL = "https://id.twitch.tv/oauth2/token"

// DefaultTokenTTL bounds how long an app token is reused. Twitch issues
// tokens valid for weeks; a day keeps revocations short-lived.
const DefaultTokenTTL = 24 * time.Hour

// Twitch fetches app access tokens with the client credentials grant. It
// implements token.Fetcher.
type Twitch struct {
	tokenURL     string
	clientID     string
	clientSecret string
	http         *http.Client
}

// NewTwitch returns a Twitch fetcher. An empty tokenURL uses
// DefaultTokenURL and a nil hc a client with a 30s timeout.
func NewTwitch(tokenURL, clientID, clientSecret string, hc *http.Client) *Twitch {
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Twitch{tokenURL: tokenURL, clientID: clientID, clientSecret: clientSecret, http: hc}
}

// FetchToken requests a new app access token.
func (t *Twitch) FetchToken(ctx context.Context) (string, error) {
	if t.clientID == "" || t.clientSecret == "" {
		return "", errors.New("IGDB Client ID and Secret are required")
	}

	vals := url.Values{}
	vals.Set("client_id", t.clientID)
	vals.Set("client_secret", t.clientSecret)
	vals.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.tokenURL, strings.NewReader(vals.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.http.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status: %s", resp.Status)
	}

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	return result.AccessToken, nil
}
