package refresh

import (
	"context"

	"github.com/ryanm101/romcatalog/internal/catalog"
	"github.com/ryanm101/romcatalog/internal/catalog/gamesdb"
	"github.com/ryanm101/romcatalog/internal/catalog/igdb"
	"github.com/ryanm101/romcatalog/internal/library"
	"github.com/ryanm101/romcatalog/internal/platform"
)

// GamesDBCatalog adapts a TheGamesDB client to GameCatalog.
type GamesDBCatalog struct {
	client *gamesdb.Client
}

// NewGamesDBCatalog wraps c.
func NewGamesDBCatalog(c *gamesdb.Client) *GamesDBCatalog {
	return &GamesDBCatalog{client: c}
}

func (c *GamesDBCatalog) Name() string        { return gamesdb.ProviderName }
func (c *GamesDBCatalog) ExternalKey() string { return library.ProviderGamesDB }

// Search uses the platform display name as the catalog platform hint.
func (c *GamesDBCatalog) Search(ctx context.Context, name string, def platform.Definition) ([]catalog.SearchResult, error) {
	return c.client.Search(ctx, name, def.DisplayName)
}

func (c *GamesDBCatalog) EnsureGameCached(ctx context.Context, id string) (string, error) {
	return c.client.EnsureGameCached(ctx, id)
}

func (c *GamesDBCatalog) LoadGame(path string) (*catalog.Document, error) {
	return gamesdb.LoadGame(path)
}

func (c *GamesDBCatalog) ExtractImages(path string) ([]library.ImageRef, error) {
	return gamesdb.ExtractImagesFile(path, gamesdb.KindGame)
}

// IGDBCatalog adapts the IGDB provider to GameCatalog.
type IGDBCatalog struct {
	provider *igdb.Provider
}

// NewIGDBCatalog wraps p.
func NewIGDBCatalog(p *igdb.Provider) *IGDBCatalog {
	return &IGDBCatalog{provider: p}
}

func (c *IGDBCatalog) Name() string        { return igdb.ProviderName }
func (c *IGDBCatalog) ExternalKey() string { return library.ProviderIGDB }

// Search ignores the platform; IGDB search is global.
func (c *IGDBCatalog) Search(ctx context.Context, name string, _ platform.Definition) ([]catalog.SearchResult, error) {
	return c.provider.Search(ctx, name)
}

func (c *IGDBCatalog) EnsureGameCached(ctx context.Context, id string) (string, error) {
	return c.provider.EnsureGameCached(ctx, id)
}

func (c *IGDBCatalog) LoadGame(path string) (*catalog.Document, error) {
	return igdb.LoadGame(path)
}

func (c *IGDBCatalog) ExtractImages(path string) ([]library.ImageRef, error) {
	return igdb.ExtractImagesFile(path)
}
