package library

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ryanm101/romcatalog/internal/logging"
)

// ScanResult holds the entities found under a collection root.
type ScanResult struct {
	Platforms   []*PlatformEntity
	Games       []*GameEntity
	DirsVisited int
	Unreadable  int // directories that could not be listed
}

// Scanner walks a collection root and resolves entities.
type Scanner struct {
	resolver *Resolver
	logger   *slog.Logger
}

// NewScanner creates a scanner. logger may be nil.
func NewScanner(resolver *Resolver, logger *slog.Logger) *Scanner {
	return &Scanner{resolver: resolver, logger: logging.OrDiscard(logger)}
}

// Walk visits every directory under root. Configured platform roots become
// platform entities; a directory holding playable files becomes one game
// entity and is not descended into; archives on bulk folder platforms
// become one entity each. Hidden directories are skipped. The context is
// checked once per directory.
func (s *Scanner) Walk(ctx context.Context, root string) (*ScanResult, error) {
	root = cleanPath(root)
	res := &ScanResult{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			s.logger.Warn("skipping unreadable path", "path", path, "error", err)
			res.Unreadable++
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return fs.SkipDir
		}
		res.DirsVisited++

		if p, ok := s.resolver.ResolvePlatformFolder(path); ok {
			res.Platforms = append(res.Platforms, p)
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			s.logger.Warn("skipping unreadable directory", "path", path, "error", err)
			res.Unreadable++
			return fs.SkipDir
		}
		var files []string
		for _, e := range entries {
			if e.Type().IsRegular() {
				files = append(files, e.Name())
			}
		}

		if s.resolver.IsBulkFolder(path) {
			for _, f := range files {
				if g, ok := s.resolver.ResolveFile(filepath.Join(path, f)); ok {
					res.Games = append(res.Games, g)
				}
			}
			return nil
		}

		if g, ok := s.resolver.ResolveDirectory(path, files); ok {
			res.Games = append(res.Games, g)
			return fs.SkipDir
		}
		return nil
	})
	if err != nil {
		return res, err
	}

	s.logger.Info("scan complete",
		"root", root,
		"platforms", len(res.Platforms),
		"games", len(res.Games),
		"dirs", res.DirsVisited,
	)
	return res, nil
}
