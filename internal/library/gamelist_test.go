package library

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const platformGamelist = `<?xml version="1.0"?>
<gameList>
  <game id="1">
    <path>./Super Metroid (1994)/Super Metroid.sfc</path>
    <name>Super Metroid</name>
    <desc>Samus returns.</desc>
    <releasedate>19940319T000000</releasedate>
    <developer>Nintendo R&amp;D1</developer>
    <publisher>Nintendo</publisher>
    <genre>Action</genre>
    <players>1</players>
  </game>
  <game>
    <path></path>
    <name>Broken</name>
  </game>
</gameList>`

func TestLoadGamelist(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, GamelistFile)
	require.NoError(t, os.WriteFile(path, []byte(platformGamelist), 0o644))

	gl, err := LoadGamelist(path)
	require.NoError(t, err)
	assert.Equal(t, 1, gl.Len())

	entry, ok := gl.Find(filepath.Join(dir, "Super Metroid (1994)", "Super Metroid.sfc"))
	require.True(t, ok)
	assert.Equal(t, "Super Metroid", entry.Name)
	assert.Equal(t, "Nintendo R&D1", entry.Developer)

	_, ok = gl.Find(filepath.Join(dir, "Other.sfc"))
	assert.False(t, ok)
}

func TestLoadGamelist_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), GamelistFile)
	require.NoError(t, os.WriteFile(path, []byte("<gameList><game>"), 0o644))

	_, err := LoadGamelist(path)
	assert.ErrorIs(t, err, ErrMalformedGamelist)
}

func TestLoadGamelist_Unreadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), GamelistFile)
	require.NoError(t, os.Mkdir(path, 0o755))

	_, err := LoadGamelist(path)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMalformedGamelist)
}

func TestFindGamelistEntry_PlatformRoot(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "Super Metroid (1994)/Super Metroid.sfc")
	require.NoError(t, os.WriteFile(filepath.Join(root, GamelistFile), []byte(platformGamelist), 0o644))

	g := NewGameEntity(filepath.Join(root, "Super Metroid (1994)", "Super Metroid.sfc"), "Super Metroid (1994)", "snes")
	entry, source, err := FindGamelistEntry(g, root)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "Super Metroid", entry.Name)
	assert.Equal(t, filepath.Join(root, GamelistFile), source)
}

func TestFindGamelistEntry_NearestWins(t *testing.T) {
	root := t.TempDir()
	gameDir := filepath.Join(root, "Zelda")
	writeFiles(t, root, "Zelda/zelda.sfc")

	local := `<gameList><game><path>./zelda.sfc</path><name>Local Zelda</name></game></gameList>`
	outer := `<gameList><game><path>./Zelda/zelda.sfc</path><name>Outer Zelda</name></game></gameList>`
	require.NoError(t, os.WriteFile(filepath.Join(gameDir, GamelistFile), []byte(local), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, GamelistFile), []byte(outer), 0o644))

	g := NewGameEntity(filepath.Join(gameDir, "zelda.sfc"), "Zelda", "snes")
	entry, _, err := FindGamelistEntry(g, root)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "Local Zelda", entry.Name)
}

func TestFindGamelistEntry_MultiPartByFolder(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "FF7/disc1.cue", "FF7/disc2.cue")
	gl := `<gameList><game><path>./FF7</path><name>Final Fantasy VII</name></game></gameList>`
	require.NoError(t, os.WriteFile(filepath.Join(root, GamelistFile), []byte(gl), 0o644))

	g := NewGameEntity(filepath.Join(root, "FF7"), "FF7", "psx")
	g.MultiPartFiles = []string{filepath.Join(root, "FF7", "disc1.cue"), filepath.Join(root, "FF7", "disc2.cue")}

	entry, _, err := FindGamelistEntry(g, root)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "Final Fantasy VII", entry.Name)
}

func TestFindGamelistEntry_None(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "Zelda/zelda.sfc")

	g := NewGameEntity(filepath.Join(root, "Zelda", "zelda.sfc"), "Zelda", "snes")
	entry, source, err := FindGamelistEntry(g, root)
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.Empty(t, source)
}
