package dat

import (
	"path/filepath"
	"strings"
)

// ArcadeIndex answers name and BIOS lookups for arcade ROM sets keyed by
// the set's short name (the archive base name).
type ArcadeIndex struct {
	names map[string]string
	bios  map[string]bool
}

// NewArcadeIndex indexes the machines of a parsed DAT.
func NewArcadeIndex(f *File) *ArcadeIndex {
	idx := &ArcadeIndex{
		names: make(map[string]string),
		bios:  make(map[string]bool),
	}
	if f == nil {
		return idx
	}
	for _, m := range f.Machines {
		key := strings.ToLower(strings.TrimSpace(m.Name))
		if key == "" {
			continue
		}
		if m.Description != "" {
			idx.names[key] = strings.TrimSpace(m.Description)
		}
		if isYes(m.IsBIOS) || isYes(m.IsDevice) {
			idx.bios[key] = true
		}
	}
	return idx
}

// LoadArcadeIndex parses the DAT at path. An empty path yields an empty
// index, so every lookup misses.
func LoadArcadeIndex(path string) (*ArcadeIndex, error) {
	if path == "" {
		return NewArcadeIndex(nil), nil
	}
	f, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	return NewArcadeIndex(f), nil
}

// LookupName returns the display name for a set, matched case-insensitively.
func (a *ArcadeIndex) LookupName(baseName string) (string, bool) {
	name, ok := a.names[strings.ToLower(baseName)]
	return name, ok
}

// IsBios reports whether the file at path is a BIOS or device set rather
// than a playable title.
func (a *ArcadeIndex) IsBios(path string) bool {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return a.bios[strings.ToLower(base)]
}

// Len returns the number of named sets.
func (a *ArcadeIndex) Len() int {
	return len(a.names)
}

func isYes(v string) bool {
	return strings.EqualFold(strings.TrimSpace(v), "yes")
}
