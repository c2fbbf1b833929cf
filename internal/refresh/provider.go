// Package refresh runs metadata providers over library entities and
// records the outcome of each refresh.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/ryanm101/romcatalog/internal/catalog"
	"github.com/ryanm101/romcatalog/internal/library"
	"github.com/ryanm101/romcatalog/internal/logging"
	"github.com/ryanm101/romcatalog/internal/match"
	"github.com/ryanm101/romcatalog/internal/platform"
)

// GamelistProviderName identifies documents built from gamelist.xml entries.
const GamelistProviderName = "gamelist"

// Provider produces a metadata document for a game. A provider with
// nothing to offer returns an error matching catalog.ErrNoData.
type Provider interface {
	Name() string
	FetchGame(ctx context.Context, g *library.GameEntity) (*catalog.Document, error)
}

// RootLocator finds the configured platform root above a path.
type RootLocator interface {
	PlatformRootOf(path string) (string, bool)
}

// LocalProvider reads EmulationStation gamelist.xml files next to the game
// or in a directory above it, up to the platform root.
type LocalProvider struct {
	roots RootLocator
}

// NewLocalProvider returns a LocalProvider. roots may be nil, in which case
// the search stops one directory above the game.
func NewLocalProvider(roots RootLocator) *LocalProvider {
	return &LocalProvider{roots: roots}
}

func (p *LocalProvider) Name() string { return GamelistProviderName }

// FetchGame builds a document from the nearest gamelist entry.
func (p *LocalProvider) FetchGame(ctx context.Context, g *library.GameEntity) (*catalog.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entry, source, err := library.FindGamelistEntry(g, p.stopDir(g))
	switch {
	case errors.Is(err, library.ErrMalformedGamelist):
		return nil, catalog.ParseError(GamelistProviderName, "load "+source, err)
	case err != nil:
		return nil, fmt.Errorf("%s: read %s: %w", GamelistProviderName, source, err)
	}
	if entry == nil {
		return nil, fmt.Errorf("%s: no entry for %s: %w", GamelistProviderName, g.Path, catalog.ErrNoData)
	}

	return &catalog.Document{
		Provider:    GamelistProviderName,
		RemoteID:    entry.ID,
		Title:       entry.Name,
		ReleaseDate: entry.ReleaseDate,
		Overview:    strings.TrimSpace(entry.Desc),
		Genres:      splitGenres(entry.Genre),
		Developer:   entry.Developer,
		Publisher:   entry.Publisher,
		Players:     entry.Players,
	}, nil
}

func (p *LocalProvider) stopDir(g *library.GameEntity) string {
	if p.roots != nil {
		if root, ok := p.roots.PlatformRootOf(g.Path); ok {
			return root
		}
	}
	dir := filepath.Dir(filepath.Clean(g.Path))
	if g.IsMultiPart() {
		dir = filepath.Clean(g.Path)
	}
	return filepath.Dir(dir)
}

// splitGenres splits gamelist genre strings such as "Action, Platform".
func splitGenres(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' }) {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// GameCatalog is a remote game catalog with cached detail documents.
type GameCatalog interface {
	// Name is the provider name documents carry.
	Name() string
	// ExternalKey is the entity external id key for this catalog.
	ExternalKey() string
	Search(ctx context.Context, name string, def platform.Definition) ([]catalog.SearchResult, error)
	EnsureGameCached(ctx context.Context, id string) (string, error)
	LoadGame(path string) (*catalog.Document, error)
	ExtractImages(path string) ([]library.ImageRef, error)
}

// RemoteProvider identifies games in a remote catalog by name and year.
type RemoteProvider struct {
	catalog   GameCatalog
	platforms *platform.Catalog
	logger    *slog.Logger
}

// NewRemoteProvider returns a provider backed by c. logger may be nil.
func NewRemoteProvider(c GameCatalog, platforms *platform.Catalog, logger *slog.Logger) *RemoteProvider {
	return &RemoteProvider{catalog: c, platforms: platforms, logger: logging.OrDiscard(logger)}
}

func (p *RemoteProvider) Name() string { return p.catalog.Name() }

// Catalog returns the underlying catalog.
func (p *RemoteProvider) Catalog() GameCatalog { return p.catalog }

// FetchGame resolves the game's remote id, by external id when the entity
// already has one and by search otherwise, and loads its cached document.
func (p *RemoteProvider) FetchGame(ctx context.Context, g *library.GameEntity) (*catalog.Document, error) {
	id, err := p.Identify(ctx, g)
	if err != nil {
		return nil, err
	}

	path, err := p.catalog.EnsureGameCached(ctx, id)
	if err != nil {
		return nil, err
	}
	return p.catalog.LoadGame(path)
}

// Identify returns the remote id for g.
func (p *RemoteProvider) Identify(ctx context.Context, g *library.GameEntity) (string, error) {
	if id := g.ExternalID(p.catalog.ExternalKey()); id != "" {
		return id, nil
	}

	var def platform.Definition
	if p.platforms != nil {
		def, _ = p.platforms.Get(g.PlatformID)
	}

	year := match.QueryYear(g.Name, g.ProductionYear)
	query := strings.TrimSpace(match.CleanQueryName(g.Name))
	results, err := p.catalog.Search(ctx, query, def)
	if err != nil {
		return "", err
	}

	id, ok := match.Match(g.Name, year, results)
	if !ok {
		p.logger.Debug("no catalog match", "provider", p.catalog.Name(), "name", g.Name, "year", year, "candidates", len(results))
		return "", fmt.Errorf("%s: no match for %q: %w", p.catalog.Name(), g.Name, catalog.ErrNoData)
	}
	return id, nil
}
