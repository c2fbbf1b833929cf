package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskCache_Path(t *testing.T) {
	c := NewDiskCache("/cache", "gamesdb", 0)

	p, err := c.Path("1234")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/cache", "gamesdb", "1234", "detail"), p)
	assert.Equal(t, DefaultFreshness, c.Freshness())

	for _, bad := range []string{"", " ", "..", "a/b", `a\b`} {
		_, err := c.Path(bad)
		assert.Error(t, err, "id %q", bad)
	}
}

func TestDiskCache_LookupAndStore(t *testing.T) {
	c := NewDiskCache(t.TempDir(), "gamesdb", DefaultFreshness)

	doc, fresh, err := c.Lookup("42")
	require.NoError(t, err)
	assert.False(t, fresh)
	assert.True(t, doc.FetchedAt.IsZero())

	stored, err := c.Store("42", []byte("<Data/>"))
	require.NoError(t, err)
	assert.Equal(t, doc.LocalPath, stored.LocalPath)

	data, err := os.ReadFile(stored.LocalPath)
	require.NoError(t, err)
	assert.Equal(t, "<Data/>", string(data))

	doc, fresh, err = c.Lookup("42")
	require.NoError(t, err)
	assert.True(t, fresh)
	assert.Equal(t, "42", doc.RemoteID)
	assert.False(t, doc.FetchedAt.IsZero())
}

func TestDiskCache_FreshnessFromModTime(t *testing.T) {
	c := NewDiskCache(t.TempDir(), "gamesdb", DefaultFreshness)
	doc, err := c.Store("7", []byte("x"))
	require.NoError(t, err)

	almost := time.Now().Add(-DefaultFreshness + time.Hour)
	require.NoError(t, os.Chtimes(doc.LocalPath, almost, almost))
	_, fresh, err := c.Lookup("7")
	require.NoError(t, err)
	assert.True(t, fresh)

	old := time.Now().Add(-DefaultFreshness - time.Hour)
	require.NoError(t, os.Chtimes(doc.LocalPath, old, old))
	got, fresh, err := c.Lookup("7")
	require.NoError(t, err)
	assert.False(t, fresh)
	assert.WithinDuration(t, old, got.FetchedAt, time.Second)
}

func TestDiskCache_StoreLeavesNoTempFiles(t *testing.T) {
	root := t.TempDir()
	c := NewDiskCache(root, "gamesdb", 0)

	_, err := c.Store("9", []byte("first"))
	require.NoError(t, err)
	doc, err := c.Store("9", []byte("second"))
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Dir(doc.LocalPath))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "detail", entries[0].Name())

	data, err := os.ReadFile(doc.LocalPath)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}
