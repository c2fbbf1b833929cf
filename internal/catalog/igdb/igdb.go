// Package igdb is an alternative game catalog backed by the IGDB API.
// Detail records are flattened to JSON and cached like any other detail
// document.
package igdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	igdbapi "github.com/Henry-Sarabia/igdb/v2"

	"github.com/ryanm101/romcatalog/internal/catalog"
	"github.com/ryanm101/romcatalog/internal/library"
	"github.com/ryanm101/romcatalog/internal/token"
)

// ProviderName is used for logs, metrics and the cache directory.
const ProviderName = "igdb"

const (
	searchLimit  = 10
	imageBaseURL = "https://images.igdb.com/igdb/image/upload/"
)

// record is the cached form of one game.
type record struct {
	ID          int                `json:"id"`
	Name        string             `json:"name"`
	Summary     string             `json:"summary,omitempty"`
	ReleaseDate string             `json:"release_date,omitempty"`
	Genres      []string           `json:"genres,omitempty"`
	Developers  []string           `json:"developers,omitempty"`
	Publishers  []string           `json:"publishers,omitempty"`
	Images      []library.ImageRef `json:"images,omitempty"`
}

// Provider searches IGDB and caches game records. Requests go through the
// catalog client's limiter and token source.
type Provider struct {
	clientID string
	api      *catalog.Client
}

// New returns a Provider. api must carry a token source fed by Twitch.
func New(clientID string, api *catalog.Client) *Provider {
	return &Provider{clientID: clientID, api: api}
}

func (p *Provider) client(token string) *igdbapi.Client {
	return igdbapi.NewClient(p.clientID, token, p.api.HTTPClient())
}

// Search returns candidates for name in IGDB's relevance order.
func (p *Provider) Search(ctx context.Context, name string) ([]catalog.SearchResult, error) {
	var games []*igdbapi.Game
	err := p.api.Call(ctx, "search", func(ctx context.Context, token string) error {
		var err error
		games, err = p.client(token).Games.Search(
			name,
			igdbapi.SetFields("id", "name", "first_release_date"),
			igdbapi.SetLimit(searchLimit),
		)
		return err
	})
	if errors.Is(err, igdbapi.ErrNoResults) {
		return nil, nil
	}
	if err != nil {
		return nil, p.wrap("search", err)
	}

	results := make([]catalog.SearchResult, 0, len(games))
	for _, g := range games {
		res := catalog.SearchResult{RemoteID: strconv.Itoa(g.ID), Title: g.Name}
		if g.FirstReleaseDate != 0 {
			res.ReleaseYear = time.Unix(int64(g.FirstReleaseDate), 0).UTC().Year()
		}
		results = append(results, res)
	}
	return results, nil
}

// EnsureGameCached returns the local path of the cached record for id.
func (p *Provider) EnsureGameCached(ctx context.Context, id string) (string, error) {
	numericID, err := strconv.Atoi(id)
	if err != nil {
		return "", fmt.Errorf("invalid IGDB ID: %s", id)
	}
	return p.api.EnsureCached(ctx, id, func(ctx context.Context) ([]byte, error) {
		var rec *record
		err := p.api.Call(ctx, "detail", func(ctx context.Context, token string) error {
			var err error
			rec, err = p.fetchRecord(p.client(token), numericID)
			return err
		})
		if err != nil {
			return nil, p.wrap("detail", err)
		}
		return json.Marshal(rec)
	})
}

func (p *Provider) fetchRecord(c *igdbapi.Client, id int) (*record, error) {
	g, err := c.Games.Get(id, igdbapi.SetFields(
		"id", "name", "summary", "first_release_date", "genres",
		"involved_companies", "cover", "screenshots", "artworks",
	))
	if err != nil {
		return nil, err
	}

	rec := &record{ID: g.ID, Name: g.Name, Summary: g.Summary}
	if g.FirstReleaseDate != 0 {
		rec.ReleaseDate = time.Unix(int64(g.FirstReleaseDate), 0).UTC().Format("2006-01-02")
	}

	if len(g.Genres) > 0 {
		genres, err := c.Genres.List(g.Genres, igdbapi.SetFields("name"))
		if err != nil && !errors.Is(err, igdbapi.ErrNoResults) {
			return nil, err
		}
		for _, genre := range genres {
			rec.Genres = append(rec.Genres, genre.Name)
		}
	}

	if len(g.InvolvedCompanies) > 0 {
		if err := p.fetchCompanies(c, g.InvolvedCompanies, rec); err != nil {
			return nil, err
		}
	}

	if g.Cover != 0 {
		cover, err := c.Covers.Get(g.Cover, igdbapi.SetFields("image_id", "width", "height"))
		if err != nil && !errors.Is(err, igdbapi.ErrNoResults) {
			return nil, err
		}
		if cover != nil {
			rec.addImage(library.ImagePrimary, cover.Image, "cover_big")
		}
	}

	if len(g.Screenshots) > 0 {
		shots, err := c.Screenshots.List(g.Screenshots, igdbapi.SetFields("image_id", "width", "height"))
		if err != nil && !errors.Is(err, igdbapi.ErrNoResults) {
			return nil, err
		}
		for _, s := range shots {
			rec.addImage(library.ImageScreenshot, s.Image, "screenshot_big")
		}
	}

	if len(g.Artworks) > 0 {
		arts, err := c.Artworks.List(g.Artworks, igdbapi.SetFields("image_id", "width", "height"))
		if err != nil && !errors.Is(err, igdbapi.ErrNoResults) {
			return nil, err
		}
		for _, a := range arts {
			rec.addImage(library.ImageBackdrop, a.Image, "1080p")
		}
	}

	return rec, nil
}

func (p *Provider) fetchCompanies(c *igdbapi.Client, ids []int, rec *record) error {
	involved, err := c.InvolvedCompanies.List(ids, igdbapi.SetFields("company", "developer", "publisher"))
	if errors.Is(err, igdbapi.ErrNoResults) {
		return nil
	}
	if err != nil {
		return err
	}

	companyIDs := make([]int, 0, len(involved))
	for _, ic := range involved {
		companyIDs = append(companyIDs, ic.Company)
	}
	companies, err := c.Companies.List(companyIDs, igdbapi.SetFields("id", "name"))
	if err != nil && !errors.Is(err, igdbapi.ErrNoResults) {
		return err
	}
	names := make(map[int]string, len(companies))
	for _, co := range companies {
		names[co.ID] = co.Name
	}

	for _, ic := range involved {
		name := names[ic.Company]
		if name == "" {
			continue
		}
		if ic.Developer {
			rec.Developers = append(rec.Developers, name)
		}
		if ic.Publisher {
			rec.Publishers = append(rec.Publishers, name)
		}
	}
	return nil
}

func (r *record) addImage(category library.ImageCategory, img igdbapi.Image, size string) {
	if img.ImageID == "" {
		return
	}
	r.Images = append(r.Images, library.ImageRef{
		Category: category,
		Width:    img.Width,
		Height:   img.Height,
		URL:      imageURL(img.ImageID, size),
		Provider: library.ProviderIGDB,
	})
}

func imageURL(imageID, size string) string {
	return imageBaseURL + "t_" + size + "/" + imageID + ".jpg"
}

// wrap maps library errors onto catalog errors. Token failures and context
// errors pass through.
func (p *Provider) wrap(op string, err error) error {
	switch {
	case errors.Is(err, igdbapi.ErrNoResults):
		return catalog.ErrNoData
	case errors.Is(err, token.ErrAuth), errors.Is(err, catalog.ErrNetwork),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return catalog.NetworkError(ProviderName, op, 0, err)
}

// LoadGame reads a cached record.
func LoadGame(path string) (*catalog.Document, error) {
	rec, err := loadRecord(path)
	if err != nil {
		return nil, err
	}

	doc := &catalog.Document{
		Provider:    ProviderName,
		RemoteID:    strconv.Itoa(rec.ID),
		Title:       rec.Name,
		ReleaseDate: rec.ReleaseDate,
		Overview:    rec.Summary,
		Genres:      rec.Genres,
	}
	if len(rec.Developers) > 0 {
		doc.Developer = rec.Developers[0]
	}
	if len(rec.Publishers) > 0 {
		doc.Publisher = rec.Publishers[0]
	}
	return doc, nil
}

// ExtractImagesFile lists the images stored in a cached record.
func ExtractImagesFile(path string) ([]library.ImageRef, error) {
	rec, err := loadRecord(path)
	if err != nil {
		return nil, err
	}
	return rec.Images, nil
}

func loadRecord(path string) (*record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read igdb record: %w", err)
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, catalog.ParseError(ProviderName, "load game", err)
	}
	if rec.ID == 0 {
		return nil, catalog.ErrNoData
	}
	return &rec, nil
}
