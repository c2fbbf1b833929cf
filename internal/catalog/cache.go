package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultFreshness is how long a cached detail document is reused before
// it is fetched again.
const DefaultFreshness = 7 * 24 * time.Hour

const detailFile = "detail"

// DiskCache stores one detail document per remote id at
// <root>/<provider>/<remote-id>/detail. Freshness comes from the file's
// modification time; there is no separate index.
type DiskCache struct {
	root      string
	provider  string
	freshness time.Duration
	now       func() time.Time
}

// NewDiskCache returns a cache for provider under root. A non-positive
// freshness uses DefaultFreshness.
func NewDiskCache(root, provider string, freshness time.Duration) *DiskCache {
	if freshness <= 0 {
		freshness = DefaultFreshness
	}
	return &DiskCache{root: root, provider: provider, freshness: freshness, now: time.Now}
}

// Provider returns the provider directory name.
func (c *DiskCache) Provider() string {
	return c.provider
}

// Freshness returns the reuse window.
func (c *DiskCache) Freshness() time.Duration {
	return c.freshness
}

// Path returns where the document for id lives.
func (c *DiskCache) Path(id string) (string, error) {
	if err := validateID(id); err != nil {
		return "", err
	}
	return filepath.Join(c.root, c.provider, id, detailFile), nil
}

// Lookup reports the cached document for id and whether it is still fresh.
// A missing file is not an error.
func (c *DiskCache) Lookup(id string) (CachedDocument, bool, error) {
	path, err := c.Path(id)
	if err != nil {
		return CachedDocument{}, false, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return CachedDocument{RemoteID: id, LocalPath: path}, false, nil
		}
		return CachedDocument{}, false, fmt.Errorf("stat cache file: %w", err)
	}
	doc := CachedDocument{RemoteID: id, LocalPath: path, FetchedAt: info.ModTime()}
	return doc, c.now().Sub(doc.FetchedAt) < c.freshness, nil
}

// Store writes data as the document for id, replacing any previous copy.
// The write goes through a temp file in the same directory so readers never
// see a partial document.
func (c *DiskCache) Store(id string, data []byte) (CachedDocument, error) {
	path, err := c.Path(id)
	if err != nil {
		return CachedDocument{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return CachedDocument{}, fmt.Errorf("create cache dir: %w", err)
	}
	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return CachedDocument{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return CachedDocument{}, fmt.Errorf("stat cache file: %w", err)
	}
	return CachedDocument{RemoteID: id, LocalPath: path, FetchedAt: info.ModTime()}, nil
}

func (c *DiskCache) lockPath(id string) (string, error) {
	path, err := c.Path(id)
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(path), "."+detailFile+".lock"), nil
}

func validateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("empty remote id")
	}
	if id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("invalid remote id %q", id)
	}
	return nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "detail-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	return nil
}
