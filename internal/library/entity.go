// Package library turns scanned paths into game and platform entities.
package library

import (
	"strings"
	"time"
)

// Field names a mergeable metadata field. Locked fields are never
// overwritten by automatic metadata refreshes.
type Field string

const (
	FieldName           Field = "Name"
	FieldYear           Field = "ProductionYear"
	FieldPremiereDate   Field = "PremiereDate"
	FieldOverview       Field = "Overview"
	FieldOfficialRating Field = "OfficialRating"
	FieldGenres         Field = "Genres"
	FieldStudios        Field = "Studios"
	FieldPlayers        Field = "PlayersSupported"
	FieldExternalIDs    Field = "ExternalIds"
)

// External id keys.
const (
	ProviderGamesDB   = "GamesDb"
	ProviderIGDB      = "Igdb"
	ProviderEmuMovies = "EmuMovies"
)

// FieldSet is a set of locked fields, populated by the host's editor.
type FieldSet map[Field]struct{}

// NewFieldSet returns a set holding fields.
func NewFieldSet(fields ...Field) FieldSet {
	s := make(FieldSet, len(fields))
	for _, f := range fields {
		s[f] = struct{}{}
	}
	return s
}

// Has reports whether f is in the set. A nil set holds nothing.
func (s FieldSet) Has(f Field) bool {
	_, ok := s[f]
	return ok
}

// ImageCategory classifies a remote image.
type ImageCategory string

const (
	ImagePrimary    ImageCategory = "Primary"
	ImageBoxRear    ImageCategory = "BoxRear"
	ImageBanner     ImageCategory = "Banner"
	ImageLogo       ImageCategory = "Logo"
	ImageBackdrop   ImageCategory = "Backdrop"
	ImageScreenshot ImageCategory = "Screenshot"
	ImageCabinet    ImageCategory = "Cabinet"
)

// ImageRef points at a remote image candidate.
type ImageRef struct {
	Category ImageCategory `json:"category"`
	Width    int           `json:"width,omitempty"`
	Height   int           `json:"height,omitempty"`
	URL      string        `json:"url"`
	Provider string        `json:"provider,omitempty"`
}

// GameEntity is one logical title in the library. Multi-disc games are a
// single entity whose MultiPartFiles lists every disc.
type GameEntity struct {
	Path             string
	Name             string
	PlatformID       string
	ProductionYear   int       // 0 when unknown
	PremiereDate     time.Time // zero when unknown
	Overview         string
	OfficialRating   string
	Genres           []string
	Studios          []string
	PlayersSupported int // 0 when unknown
	ExternalIDs      map[string]string
	LockedFields     FieldSet
	MultiPartFiles   []string
	Images           map[ImageCategory][]ImageRef
}

// NewGameEntity creates an entity with initialized maps.
func NewGameEntity(path, name, platformID string) *GameEntity {
	return &GameEntity{
		Path:        path,
		Name:        name,
		PlatformID:  platformID,
		ExternalIDs: make(map[string]string),
		Images:      make(map[ImageCategory][]ImageRef),
	}
}

// IsMultiPart reports whether the entity spans several files.
func (g *GameEntity) IsMultiPart() bool {
	return len(g.MultiPartFiles) > 1
}

// ExternalID returns the id recorded for a provider.
func (g *GameEntity) ExternalID(provider string) string {
	return g.ExternalIDs[provider]
}

// SetExternalID records a provider id.
func (g *GameEntity) SetExternalID(provider, id string) {
	if g.ExternalIDs == nil {
		g.ExternalIDs = make(map[string]string)
	}
	g.ExternalIDs[provider] = id
}

// AddGenre appends genre unless an equal (case-insensitive) one exists.
func (g *GameEntity) AddGenre(genre string) {
	g.Genres = addUnique(g.Genres, genre)
}

// AddStudio appends studio unless an equal (case-insensitive) one exists.
func (g *GameEntity) AddStudio(studio string) {
	g.Studios = addUnique(g.Studios, studio)
}

// SetImages replaces the candidates stored for each category in refs.
func (g *GameEntity) SetImages(refs []ImageRef) {
	g.Images = GroupImages(refs)
}

// PlatformEntity is the folder-level entity for a configured platform root.
type PlatformEntity struct {
	Path           string
	Name           string
	PlatformID     string
	Overview       string
	ProductionYear int
	ExternalIDs    map[string]string
	LockedFields   FieldSet
	Images         map[ImageCategory][]ImageRef
}

// NewPlatformEntity creates a platform entity with initialized maps.
func NewPlatformEntity(path, name, platformID string) *PlatformEntity {
	return &PlatformEntity{
		Path:        path,
		Name:        name,
		PlatformID:  platformID,
		ExternalIDs: make(map[string]string),
		Images:      make(map[ImageCategory][]ImageRef),
	}
}

// SetExternalID records a provider id.
func (p *PlatformEntity) SetExternalID(provider, id string) {
	if p.ExternalIDs == nil {
		p.ExternalIDs = make(map[string]string)
	}
	p.ExternalIDs[provider] = id
}

// GroupImages buckets refs by category keeping document order.
func GroupImages(refs []ImageRef) map[ImageCategory][]ImageRef {
	out := make(map[ImageCategory][]ImageRef)
	for _, r := range refs {
		out[r.Category] = append(out[r.Category], r)
	}
	return out
}

func addUnique(list []string, v string) []string {
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

// SetImages replaces the candidates stored for each category in refs.
func (p *PlatformEntity) SetImages(refs []ImageRef) {
	p.Images = GroupImages(refs)
}
