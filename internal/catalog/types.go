// Package catalog implements the throttled, cache-backed access layer for
// remote game catalogs.
package catalog

import "time"

// SearchResult is one candidate returned by a catalog search, in the
// catalog's relevance order.
type SearchResult struct {
	RemoteID    string `json:"remote_id"`
	Title       string `json:"title"`
	ReleaseYear int    `json:"release_year,omitempty"` // 0 when unknown
}

// CachedDocument describes a detail document on disk. FetchedAt is the
// file's modification time.
type CachedDocument struct {
	RemoteID  string
	LocalPath string
	FetchedAt time.Time
}

// Document is the provider-neutral set of raw fields a metadata provider
// extracted for one title. Values keep the provider's vocabulary; the
// merger maps ratings and genres.
type Document struct {
	Provider    string
	RemoteID    string
	Title       string
	ReleaseDate string
	Overview    string
	Rating      string
	Genres      []string
	Developer   string
	Publisher   string
	Players     string
}
