package library

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// GamelistFile is the EmulationStation metadata file name.
const GamelistFile = "gamelist.xml"

// ErrMalformedGamelist is matched when a gamelist.xml cannot be decoded.
var ErrMalformedGamelist = errors.New("malformed gamelist")

// GamelistGame represents a single game entry in EmulationStation's gamelist.xml.
type GamelistGame struct {
	XMLName     xml.Name `xml:"game"`
	ID          string   `xml:"id,attr,omitempty"`
	Path        string   `xml:"path"`
	Name        string   `xml:"name"`
	Desc        string   `xml:"desc,omitempty"`
	Image       string   `xml:"image,omitempty"`
	Rating      string   `xml:"rating,omitempty"`
	ReleaseDate string   `xml:"releasedate,omitempty"`
	Developer   string   `xml:"developer,omitempty"`
	Publisher   string   `xml:"publisher,omitempty"`
	Genre       string   `xml:"genre,omitempty"`
	Players     string   `xml:"players,omitempty"`
}

// GamelistXML represents the root gamelist.xml structure.
type GamelistXML struct {
	XMLName xml.Name       `xml:"gameList"`
	Games   []GamelistGame `xml:"game"`
}

// Gamelist is a loaded gamelist.xml with entry paths resolved against its
// directory.
type Gamelist struct {
	Dir    string
	byPath map[string]*GamelistGame
}

// LoadGamelist reads and indexes a gamelist.xml.
func LoadGamelist(path string) (*Gamelist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc GamelistXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w: %w", path, ErrMalformedGamelist, err)
	}

	gl := &Gamelist{
		Dir:    filepath.Dir(path),
		byPath: make(map[string]*GamelistGame, len(doc.Games)),
	}
	for i := range doc.Games {
		g := &doc.Games[i]
		if strings.TrimSpace(g.Path) == "" {
			continue
		}
		gl.byPath[gl.resolve(g.Path)] = g
	}
	return gl, nil
}

// Find returns the entry whose path refers to target.
func (gl *Gamelist) Find(target string) (*GamelistGame, bool) {
	g, ok := gl.byPath[cleanPath(target)]
	return g, ok
}

// Len returns the number of indexed entries.
func (gl *Gamelist) Len() int {
	return len(gl.byPath)
}

func (gl *Gamelist) resolve(entryPath string) string {
	p := filepath.FromSlash(strings.TrimSpace(entryPath))
	if !filepath.IsAbs(p) {
		p = filepath.Join(gl.Dir, p)
	}
	return filepath.Clean(p)
}

// FindGamelistEntry looks for the entity's entry in the gamelist.xml files
// from the entity's own directory up to stopDir, nearest first. A missing
// gamelist is not an error.
func FindGamelistEntry(g *GameEntity, stopDir string) (*GamelistGame, string, error) {
	targets := []string{cleanPath(g.Path)}
	for _, f := range g.MultiPartFiles {
		targets = append(targets, cleanPath(f))
	}

	dir := filepath.Dir(targets[0])
	if len(g.MultiPartFiles) > 1 {
		dir = cleanPath(g.Path)
	}
	stop := ""
	if stopDir != "" {
		stop = cleanPath(stopDir)
	}

	for {
		path := filepath.Join(dir, GamelistFile)
		gl, err := LoadGamelist(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, path, err
		default:
			for _, t := range targets {
				if entry, ok := gl.Find(t); ok {
					return entry, path, nil
				}
			}
		}

		if dir == stop {
			return nil, "", nil
		}
		parent := filepath.Dir(dir)
		if parent == dir || (stop != "" && !isWithin(stop, dir)) {
			return nil, "", nil
		}
		dir = parent
	}
}

func isWithin(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
