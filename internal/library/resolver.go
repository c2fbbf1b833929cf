package library

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ryanm101/romcatalog/internal/match"
	"github.com/ryanm101/romcatalog/internal/platform"
)

// archiveExtensions are the single-file formats accepted for bulk folders.
var archiveExtensions = map[string]bool{
	".zip": true,
	".7z":  true,
}

// NameLookup maps an archive base name to a display name.
type NameLookup interface {
	LookupName(baseName string) (string, bool)
}

// BiosDetector recognizes firmware files that are not playable titles.
type BiosDetector interface {
	IsBios(path string) bool
}

// ResolverOptions configures a Resolver.
type ResolverOptions struct {
	CollectionRoot string            // top-level folder, never an entity
	PlatformRoots  map[string]string // folder path -> platform id
	Names          NameLookup        // optional
	Bios           BiosDetector      // optional
}

// Resolver builds library entities from scanned paths.
type Resolver struct {
	classifier     *platform.Classifier
	collectionRoot string
	roots          map[string]string
	names          NameLookup
	bios           BiosDetector
}

// NewResolver creates a Resolver.
func NewResolver(classifier *platform.Classifier, opts ResolverOptions) *Resolver {
	roots := make(map[string]string, len(opts.PlatformRoots))
	for path, id := range opts.PlatformRoots {
		roots[cleanPath(path)] = id
	}
	r := &Resolver{
		classifier: classifier,
		roots:      roots,
		names:      opts.Names,
		bios:       opts.Bios,
	}
	if opts.CollectionRoot != "" {
		r.collectionRoot = cleanPath(opts.CollectionRoot)
	}
	return r
}

// Classifier returns the platform classifier.
func (r *Resolver) Classifier() *platform.Classifier {
	return r.classifier
}

// IsPlatformRoot reports whether dir is a configured platform root.
func (r *Resolver) IsPlatformRoot(dir string) bool {
	_, ok := r.roots[cleanPath(dir)]
	return ok
}

// ResolveDirectory builds the game entity for a directory below a platform
// folder. children are the directory's files, as base names or full paths.
// One playable file gives a single-file entity; several give a multi-part
// entity listing all of them in the given order.
func (r *Resolver) ResolveDirectory(dir string, children []string) (*GameEntity, bool) {
	dir = cleanPath(dir)
	if r.isReserved(dir) {
		return nil, false
	}
	platformID, ok := r.platformBelow(dir)
	if !ok {
		return nil, false
	}

	var files []string
	for _, child := range children {
		if !filepath.IsAbs(child) && filepath.Dir(child) == "." {
			child = filepath.Join(dir, child)
		}
		if !r.classifier.HasValidExtension(platformID, child) {
			continue
		}
		if r.isBios(child) {
			continue
		}
		files = append(files, child)
	}
	if len(files) == 0 {
		return nil, false
	}

	name := filepath.Base(dir)
	g := NewGameEntity(files[0], name, platformID)
	g.ProductionYear = match.ExtractYear(name)
	if len(files) > 1 {
		g.Path = dir
		g.MultiPartFiles = files
	}
	return g, true
}

// ResolveFile builds a game entity straight from an archive on a bulk
// folder platform, where titles have no directory of their own. The name
// comes from the name lookup and falls back to the file name.
func (r *Resolver) ResolveFile(path string) (*GameEntity, bool) {
	path = cleanPath(path)
	platformID, ok := r.platformBelow(path)
	if !ok {
		return nil, false
	}
	def, ok := r.classifier.Definition(platformID)
	if !ok || !def.BulkFolder {
		return nil, false
	}
	ext := strings.ToLower(filepath.Ext(path))
	if !archiveExtensions[ext] {
		return nil, false
	}
	if r.isBios(path) {
		return nil, false
	}

	base := filepath.Base(path)
	base = base[:len(base)-len(ext)]
	name := base
	if r.names != nil {
		if n, ok := r.names.LookupName(base); ok && n != "" {
			name = n
		}
	}

	g := NewGameEntity(path, name, platformID)
	g.ProductionYear = match.ExtractYear(name)
	return g, true
}

// ResolvePlatformFolder builds the platform entity for a configured
// platform root. Any other folder, including the collection root, yields
// nothing.
func (r *Resolver) ResolvePlatformFolder(dir string) (*PlatformEntity, bool) {
	dir = cleanPath(dir)
	if dir == r.collectionRoot {
		return nil, false
	}
	platformID, ok := r.roots[dir]
	if !ok {
		return nil, false
	}

	name := filepath.Base(dir)
	def, known := r.classifier.Definition(platformID)
	if known && def.DisplayName != "" {
		name = def.DisplayName
	}
	p := NewPlatformEntity(dir, name, platformID)
	if known && def.GamesDBID != 0 {
		p.SetExternalID(ProviderGamesDB, strconv.Itoa(def.GamesDBID))
	}
	return p, true
}

// PlatformOf returns the platform of path: the configured root containing
// it, else the first alias segment.
func (r *Resolver) PlatformOf(path string) (string, bool) {
	path = cleanPath(path)
	if id, _, ok := r.rootFor(path); ok {
		return id, true
	}
	return r.classifier.Classify(path)
}

// PlatformRootOf returns the configured root containing path.
func (r *Resolver) PlatformRootOf(path string) (string, bool) {
	_, root, ok := r.rootFor(cleanPath(path))
	return root, ok
}

// platformBelow returns the platform for a path strictly inside a platform
// folder.
func (r *Resolver) platformBelow(path string) (string, bool) {
	if id, root, ok := r.rootFor(path); ok {
		return id, root != path
	}
	id, depth, ok := r.classifier.Locate(path)
	if !ok || depth < 1 {
		return "", false
	}
	return id, true
}

func (r *Resolver) rootFor(path string) (id, root string, ok bool) {
	for candidate := path; ; {
		if id, found := r.roots[candidate]; found {
			return id, candidate, true
		}
		parent := filepath.Dir(candidate)
		if parent == candidate {
			return "", "", false
		}
		candidate = parent
	}
}

func (r *Resolver) isReserved(dir string) bool {
	if r.collectionRoot != "" && dir == r.collectionRoot {
		return true
	}
	_, ok := r.roots[dir]
	return ok
}

func (r *Resolver) isBios(path string) bool {
	return r.bios != nil && r.bios.IsBios(path)
}

func cleanPath(p string) string {
	return filepath.Clean(filepath.FromSlash(p))
}

// IsBulkFolder reports whether path belongs to a bulk folder platform.
func (r *Resolver) IsBulkFolder(path string) bool {
	id, ok := r.PlatformOf(path)
	if !ok {
		return false
	}
	def, ok := r.classifier.Definition(id)
	return ok && def.BulkFolder
}
