package platform

import (
	"path/filepath"
	"slices"
	"strings"
)

// Classifier maps library paths to platform ids.
type Classifier struct {
	catalog *Catalog
}

// NewClassifier creates a classifier over catalog.
func NewClassifier(catalog *Catalog) *Classifier {
	return &Classifier{catalog: catalog}
}

// Catalog exposes the underlying platform table.
func (c *Classifier) Catalog() *Catalog {
	return c.catalog
}

// Classify returns the platform of the first path segment that matches a
// platform alias. A miss means the path is not a game path.
func (c *Classifier) Classify(path string) (string, bool) {
	id, _, ok := c.Locate(path)
	return id, ok
}

// Locate is Classify plus the number of path segments that follow the
// matching alias segment; depth 0 means path is the platform folder itself.
func (c *Classifier) Locate(path string) (id string, depth int, ok bool) {
	segments := splitPath(path)
	for i, segment := range segments {
		if pid, found := c.catalog.platformForAlias(segment); found {
			return pid, len(segments) - i - 1, true
		}
	}
	return "", 0, false
}

// Definition returns the platform definition for id.
func (c *Classifier) Definition(platformID string) (Definition, bool) {
	return c.catalog.Get(platformID)
}

// ValidExtensions returns the configured extensions for a platform, or an
// empty list for unknown ids.
func (c *Classifier) ValidExtensions(platformID string) []string {
	def, ok := c.catalog.Get(platformID)
	if !ok {
		return []string{}
	}
	return slices.Clone(def.Extensions)
}

// HasValidExtension reports whether path carries one of the platform's
// extensions.
func (c *Classifier) HasValidExtension(platformID, path string) bool {
	def, ok := c.catalog.Get(platformID)
	if !ok {
		return false
	}
	return slices.Contains(def.Extensions, strings.ToLower(filepath.Ext(path)))
}

// splitPath splits on the host separator; forward slashes are always
// treated as separators.
func splitPath(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == filepath.Separator
	})
}
