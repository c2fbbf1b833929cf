package gamesdb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanm101/romcatalog/internal/catalog"
)

func TestLoadGame(t *testing.T) {
	doc, err := LoadGame("testdata/game.xml")
	require.NoError(t, err)

	assert.Equal(t, &catalog.Document{
		Provider:    ProviderName,
		RemoteID:    "140",
		Title:       "Sonic the Hedgehog",
		ReleaseDate: "06/23/1991",
		Overview:    "Sonic races through Green Hill Zone.",
		Rating:      "E - Everyone",
		Genres:      []string{"Platform", "Action"},
		Developer:   "Sonic Team",
		Publisher:   "Sega",
		Players:     "1",
	}, doc)
}

func TestLoadGame_NoRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "detail")
	require.NoError(t, os.WriteFile(path, []byte(`<Data></Data>`), 0o644))

	_, err := LoadGame(path)
	assert.ErrorIs(t, err, catalog.ErrNoData)
}

func TestLoadGame_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "detail")
	require.NoError(t, os.WriteFile(path, []byte(`<Data><Game><id>1</id>`), 0o644))

	_, err := LoadGame(path)
	assert.ErrorIs(t, err, catalog.ErrParse)
}

func TestLoadGame_Missing(t *testing.T) {
	_, err := LoadGame(filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, catalog.ErrParse)
}

func TestLoadPlatform(t *testing.T) {
	doc, err := LoadPlatform("testdata/platform.xml")
	require.NoError(t, err)

	assert.Equal(t, PlatformProviderName, doc.Provider)
	assert.Equal(t, "18", doc.RemoteID)
	assert.Equal(t, "Sega Genesis", doc.Title)
	assert.Equal(t, "The Sega Genesis is a 16-bit console.", doc.Overview)
	assert.Equal(t, "Sega", doc.Developer)
}
