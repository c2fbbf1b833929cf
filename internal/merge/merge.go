// Package merge applies catalog documents onto library entities. Locked
// fields are never written; every other field the document carries is
// overwritten, so the last provider run wins.
package merge

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ryanm101/romcatalog/internal/catalog"
	"github.com/ryanm101/romcatalog/internal/library"
	"github.com/ryanm101/romcatalog/internal/logging"
)

// externalKeys maps document providers to entity external id keys.
// Providers without a key (local gamelists) record no external id.
var externalKeys = map[string]string{
	"gamesdb":          library.ProviderGamesDB,
	"gamesdb-platform": library.ProviderGamesDB,
	"igdb":             library.ProviderIGDB,
}

// Merger applies documents to entities.
type Merger struct {
	logger *slog.Logger
}

// New returns a Merger. logger may be nil.
func New(logger *slog.Logger) *Merger {
	return &Merger{logger: logging.OrDiscard(logger)}
}

// MergeGame writes the fields of doc onto g. A malformed player count
// aborts the merge with a *FieldError before anything is written.
func (m *Merger) MergeGame(g *library.GameEntity, doc *catalog.Document) error {
	if doc == nil {
		return nil
	}
	locked := g.LockedFields

	players := 0
	if !locked.Has(library.FieldPlayers) {
		n, err := parsePlayers(doc.Players)
		if err != nil {
			return &FieldError{Field: library.FieldPlayers, Value: doc.Players, Provider: doc.Provider, Err: err}
		}
		players = n
	}

	if title := strings.TrimSpace(doc.Title); title != "" && !locked.Has(library.FieldName) {
		g.Name = title
	}

	if year, date, ok := releaseDate(doc.ReleaseDate); ok {
		if !locked.Has(library.FieldYear) {
			g.ProductionYear = year
		}
		if !date.IsZero() && !locked.Has(library.FieldPremiereDate) {
			g.PremiereDate = date
		}
	}

	if doc.Overview != "" && !locked.Has(library.FieldOverview) {
		g.Overview = doc.Overview
	}

	if doc.Rating != "" && !locked.Has(library.FieldOfficialRating) {
		if r, ok := Rating(doc.Rating); ok {
			g.OfficialRating = r
		} else {
			m.logger.Debug("unknown rating dropped", "provider", doc.Provider, "rating", doc.Rating)
		}
	}

	if len(doc.Genres) > 0 && !locked.Has(library.FieldGenres) {
		var mapped []string
		for _, raw := range doc.Genres {
			genre, ok := Genre(raw)
			if !ok {
				m.logger.Debug("unknown genre dropped", "provider", doc.Provider, "genre", raw)
				continue
			}
			mapped = appendUnique(mapped, genre)
		}
		if len(mapped) > 0 {
			g.Genres = mapped
		}
	}

	if !locked.Has(library.FieldStudios) {
		var studios []string
		studios = appendUnique(studios, doc.Developer)
		studios = appendUnique(studios, doc.Publisher)
		if len(studios) > 0 {
			g.Studios = studios
		}
	}

	if players > 0 {
		g.PlayersSupported = players
	}

	if key, ok := externalKeys[doc.Provider]; ok && doc.RemoteID != "" && !locked.Has(library.FieldExternalIDs) {
		g.SetExternalID(key, doc.RemoteID)
	}
	return nil
}

// MergePlatform writes name, overview, year and external id onto p.
func (m *Merger) MergePlatform(p *library.PlatformEntity, doc *catalog.Document) error {
	if doc == nil {
		return nil
	}
	locked := p.LockedFields

	if title := strings.TrimSpace(doc.Title); title != "" && !locked.Has(library.FieldName) {
		p.Name = title
	}
	if doc.Overview != "" && !locked.Has(library.FieldOverview) {
		p.Overview = doc.Overview
	}
	if year, _, ok := releaseDate(doc.ReleaseDate); ok && !locked.Has(library.FieldYear) {
		p.ProductionYear = year
	}
	if key, ok := externalKeys[doc.Provider]; ok && doc.RemoteID != "" && !locked.Has(library.FieldExternalIDs) {
		p.SetExternalID(key, doc.RemoteID)
	}
	return nil
}

// parsePlayers reads a player count. "4+" is 4 and a range "1-2" is its
// upper bound. An empty value is 0.
func parsePlayers(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	s = strings.TrimSuffix(s, "+")
	// EmulationStation gamelists write ranges such as "1-4" in <players>.
	if i := strings.LastIndex(s, "-"); i > 0 {
		s = s[i+1:]
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.New("negative player count")
	}
	return n, nil
}

// releaseDate returns the year and, when the value carries more than a
// year, the full date.
func releaseDate(raw string) (int, time.Time, bool) {
	t, ok := catalog.ParseDate(raw)
	if !ok {
		return 0, time.Time{}, false
	}
	if len(strings.TrimSpace(raw)) == 4 {
		return t.Year(), time.Time{}, true
	}
	return t.Year(), t, true
}

func appendUnique(list []string, v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return list
	}
	for _, existing := range list {
		if strings.EqualFold(existing, v) {
			return list
		}
	}
	return append(list, v)
}
