package library

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	}
}

func TestScanner_Walk(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root,
		"snes/Super Metroid (1994)/Super Metroid.sfc",
		"snes/Super Metroid (1994)/saves/metroid.sfc",
		"snes/Docs/readme.txt",
		"snes/RPG/Chrono Trigger/chrono.smc",
		"psx/Final Fantasy VII/FF7 (Disc 1).cue",
		"psx/Final Fantasy VII/FF7 (Disc 2).cue",
		"mame/sf2.zip",
		"mame/neogeo.zip",
		"mame/pacman.zip",
		"snes/.hidden/secret.sfc",
	)

	r := NewResolver(testClassifier(t), ResolverOptions{
		CollectionRoot: root,
		PlatformRoots: map[string]string{
			filepath.Join(root, "snes"): "snes",
			filepath.Join(root, "psx"):  "psx",
			filepath.Join(root, "mame"): "arcade",
		},
		Names: fakeNames{"sf2": "Street Fighter II"},
		Bios:  fakeBios{"neogeo": true},
	})

	res, err := NewScanner(r, nil).Walk(context.Background(), root)
	require.NoError(t, err)

	var platforms []string
	for _, p := range res.Platforms {
		platforms = append(platforms, p.PlatformID)
	}
	sort.Strings(platforms)
	assert.Equal(t, []string{"arcade", "psx", "snes"}, platforms)

	names := map[string]*GameEntity{}
	for _, g := range res.Games {
		names[g.Name] = g
	}
	require.Len(t, names, 5, "games: %v", names)

	assert.Contains(t, names, "Super Metroid (1994)")
	assert.Contains(t, names, "Chrono Trigger")
	assert.Contains(t, names, "Street Fighter II")
	assert.Contains(t, names, "pacman")

	ff7 := names["Final Fantasy VII"]
	require.NotNil(t, ff7)
	assert.Len(t, ff7.MultiPartFiles, 2)

	// The game directory is not descended into.
	assert.Equal(t, filepath.Join(root, "snes", "Super Metroid (1994)", "Super Metroid.sfc"), names["Super Metroid (1994)"].Path)
}

func TestScanner_WalkCancelled(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "snes/Zelda/zelda.sfc")
	r := NewResolver(testClassifier(t), ResolverOptions{CollectionRoot: root})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewScanner(r, nil).Walk(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScanner_WalkMissingRoot(t *testing.T) {
	r := NewResolver(testClassifier(t), ResolverOptions{})
	_, err := NewScanner(r, nil).Walk(context.Background(), filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}
