// Package platform holds the static platform table and classifies library
// paths against it.
package platform

import (
	"embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed platforms.yaml
var defaultsFS embed.FS

// Definition describes one gaming platform.
type Definition struct {
	ID            string   `yaml:"id"`
	DisplayName   string   `yaml:"name"`
	PathAliases   []string `yaml:"aliases"`
	Extensions    []string `yaml:"extensions"`
	GamesDBID     int      `yaml:"gamesdb_id"`     // 0 when the catalog has no entry
	MediaPlatform string   `yaml:"media_platform"` // EmuMovies system name
	BulkFolder    bool     `yaml:"bulk_folder"`    // one archive per title, no per-game directory
}

type tableFile struct {
	Platforms []Definition `yaml:"platforms"`
}

// Catalog is the immutable, indexed platform table.
type Catalog struct {
	defs      []Definition
	byID      map[string]int
	byAlias   map[string]string
	byGamesDB map[int]string
}

// LoadCatalog loads the embedded platform table and merges the optional
// user file at overridePath on top of it. Definitions in the override
// replace built-in ones with the same id; new ids are appended.
func LoadCatalog(overridePath string) (*Catalog, error) {
	data, err := defaultsFS.ReadFile("platforms.yaml")
	if err != nil {
		return nil, fmt.Errorf("read embedded platforms: %w", err)
	}
	var base tableFile
	if err := yaml.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("parse embedded platforms: %w", err)
	}

	defs := base.Platforms
	if overridePath != "" {
		override, err := loadTableFile(overridePath)
		if err != nil {
			return nil, err
		}
		defs = mergeDefinitions(defs, override.Platforms)
	}

	return NewCatalog(defs)
}

func loadTableFile(path string) (*tableFile, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read platforms file: %w", err)
	}
	var tf tableFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse platforms file %s: %w", path, err)
	}
	return &tf, nil
}

// mergeDefinitions merges source into dest (source takes precedence).
func mergeDefinitions(dest, source []Definition) []Definition {
	out := append([]Definition(nil), dest...)
	index := make(map[string]int, len(out))
	for i, d := range out {
		index[d.ID] = i
	}
	for _, d := range source {
		if i, ok := index[d.ID]; ok {
			out[i] = d
			continue
		}
		index[d.ID] = len(out)
		out = append(out, d)
	}
	return out
}

// NewCatalog indexes defs. Ids and aliases must be unique.
func NewCatalog(defs []Definition) (*Catalog, error) {
	c := &Catalog{
		byID:      make(map[string]int, len(defs)),
		byAlias:   make(map[string]string),
		byGamesDB: make(map[int]string),
	}
	for _, d := range defs {
		d = normalizeDefinition(d)
		if d.ID == "" {
			return nil, fmt.Errorf("platform definition without id (%q)", d.DisplayName)
		}
		if _, dup := c.byID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate platform id %q", d.ID)
		}
		c.byID[d.ID] = len(c.defs)
		c.defs = append(c.defs, d)

		for _, alias := range d.PathAliases {
			if owner, taken := c.byAlias[alias]; taken && owner != d.ID {
				return nil, fmt.Errorf("alias %q claimed by both %q and %q", alias, owner, d.ID)
			}
			c.byAlias[alias] = d.ID
		}
		if d.GamesDBID != 0 {
			if _, taken := c.byGamesDB[d.GamesDBID]; !taken {
				c.byGamesDB[d.GamesDBID] = d.ID
			}
		}
	}
	return c, nil
}

func normalizeDefinition(d Definition) Definition {
	d.ID = strings.TrimSpace(d.ID)
	if d.DisplayName == "" {
		d.DisplayName = d.ID
	}

	aliases := make([]string, 0, len(d.PathAliases)+1)
	seen := make(map[string]bool)
	for _, a := range append([]string{d.ID}, d.PathAliases...) {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		aliases = append(aliases, a)
	}
	d.PathAliases = aliases

	exts := make([]string, 0, len(d.Extensions))
	for _, e := range d.Extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts = append(exts, e)
	}
	d.Extensions = exts
	return d
}

// WithAliases returns a new catalog with extra path aliases attached to
// existing platforms. Unknown platform ids are an error.
func (c *Catalog) WithAliases(extra map[string][]string) (*Catalog, error) {
	if len(extra) == 0 {
		return c, nil
	}
	defs := c.All()
	ids := make([]string, 0, len(extra))
	for id := range extra {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		i, ok := c.byID[id]
		if !ok {
			return nil, fmt.Errorf("alias mapping for unknown platform %q", id)
		}
		defs[i].PathAliases = append(defs[i].PathAliases, extra[id]...)
	}
	return NewCatalog(defs)
}

// Get returns the definition for id.
func (c *Catalog) Get(id string) (Definition, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Definition{}, false
	}
	return c.defs[i], true
}

// ByGamesDBID returns the platform mapped to a TheGamesDB platform id.
func (c *Catalog) ByGamesDBID(gamesDBID int) (Definition, bool) {
	id, ok := c.byGamesDB[gamesDBID]
	if !ok {
		return Definition{}, false
	}
	return c.Get(id)
}

// All returns a copy of every definition in table order.
func (c *Catalog) All() []Definition {
	out := make([]Definition, len(c.defs))
	for i, d := range c.defs {
		d.PathAliases = append([]string(nil), d.PathAliases...)
		d.Extensions = append([]string(nil), d.Extensions...)
		out[i] = d
	}
	return out
}

// Len returns the number of platforms.
func (c *Catalog) Len() int {
	return len(c.defs)
}

func (c *Catalog) platformForAlias(segment string) (string, bool) {
	id, ok := c.byAlias[strings.ToLower(segment)]
	return id, ok
}
