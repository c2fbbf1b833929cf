package merge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanm101/romcatalog/internal/catalog"
	"github.com/ryanm101/romcatalog/internal/library"
)

func sonicDoc() *catalog.Document {
	return &catalog.Document{
		Provider:    "gamesdb",
		RemoteID:    "140",
		Title:       "Sonic the Hedgehog",
		ReleaseDate: "06/23/1991",
		Overview:    "Sonic races through Green Hill Zone.",
		Rating:      "E - Everyone",
		Genres:      []string{"Platform", "Action", "Bogus"},
		Developer:   "Sonic Team",
		Publisher:   "Sega",
		Players:     "4+",
	}
}

func TestMergeGame(t *testing.T) {
	g := library.NewGameEntity("/roms/genesis/sonic", "sonic", "genesis")

	require.NoError(t, New(nil).MergeGame(g, sonicDoc()))

	assert.Equal(t, "Sonic the Hedgehog", g.Name)
	assert.Equal(t, 1991, g.ProductionYear)
	assert.True(t, time.Date(1991, 6, 23, 0, 0, 0, 0, time.UTC).Equal(g.PremiereDate))
	assert.Equal(t, "Sonic races through Green Hill Zone.", g.Overview)
	assert.Equal(t, "E", g.OfficialRating)
	assert.Equal(t, []string{"Platformer", "Action"}, g.Genres)
	assert.Equal(t, []string{"Sonic Team", "Sega"}, g.Studios)
	assert.Equal(t, 4, g.PlayersSupported)
	assert.Equal(t, "140", g.ExternalID(library.ProviderGamesDB))
}

func TestMergeGame_LastWriterWins(t *testing.T) {
	g := library.NewGameEntity("/roms/genesis/sonic", "sonic", "genesis")
	m := New(nil)

	local := &catalog.Document{Provider: "gamelist", Title: "Sonic (local)", Overview: "local text", Players: "1"}
	require.NoError(t, m.MergeGame(g, local))
	require.NoError(t, m.MergeGame(g, sonicDoc()))

	assert.Equal(t, "Sonic the Hedgehog", g.Name)
	assert.Equal(t, "Sonic races through Green Hill Zone.", g.Overview)
	assert.Equal(t, 4, g.PlayersSupported)
	assert.Empty(t, g.ExternalID("gamelist"))
}

func TestMergeGame_AbsentFieldsKeepValues(t *testing.T) {
	g := library.NewGameEntity("/roms/genesis/sonic", "Sonic", "genesis")
	g.Overview = "kept"
	g.ProductionYear = 1991
	g.Genres = []string{"Platformer"}

	require.NoError(t, New(nil).MergeGame(g, &catalog.Document{Provider: "gamesdb", RemoteID: "1"}))

	assert.Equal(t, "Sonic", g.Name)
	assert.Equal(t, "kept", g.Overview)
	assert.Equal(t, 1991, g.ProductionYear)
	assert.Equal(t, []string{"Platformer"}, g.Genres)
}

func TestMergeGame_UnknownRatingAndGenresDropped(t *testing.T) {
	g := library.NewGameEntity("/p", "n", "nes")
	g.OfficialRating = "T"
	g.Genres = []string{"Puzzle"}

	doc := &catalog.Document{Provider: "gamesdb", Rating: "RP - Rating Pending", Genres: []string{"Unknown", "Mystery"}}
	require.NoError(t, New(nil).MergeGame(g, doc))

	assert.Equal(t, "T", g.OfficialRating)
	assert.Equal(t, []string{"Puzzle"}, g.Genres)
}

func TestMergeGame_YearOnlyDate(t *testing.T) {
	g := library.NewGameEntity("/p", "n", "nes")
	require.NoError(t, New(nil).MergeGame(g, &catalog.Document{Provider: "igdb", ReleaseDate: "1988"}))

	assert.Equal(t, 1988, g.ProductionYear)
	assert.True(t, g.PremiereDate.IsZero())
}

func TestMergeGame_MalformedPlayersIsFatal(t *testing.T) {
	g := library.NewGameEntity("/p", "original", "nes")
	doc := sonicDoc()
	doc.Players = "lots"

	err := New(nil).MergeGame(g, doc)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedField)

	var fieldErr *FieldError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, library.FieldPlayers, fieldErr.Field)
	assert.Equal(t, "lots", fieldErr.Value)
	assert.Equal(t, "gamesdb", fieldErr.Provider)

	// Nothing was written.
	assert.Equal(t, "original", g.Name)
	assert.Empty(t, g.ExternalIDs)
}

func TestMergeGame_LockedPlayersSkipsParse(t *testing.T) {
	g := library.NewGameEntity("/p", "n", "nes")
	g.LockedFields = library.NewFieldSet(library.FieldPlayers)
	doc := sonicDoc()
	doc.Players = "lots"

	require.NoError(t, New(nil).MergeGame(g, doc))
	assert.Equal(t, 0, g.PlayersSupported)
}

// Every locked field keeps its value whatever the document holds.
func TestMergeGame_LockedFieldsNeverChange(t *testing.T) {
	fields := []library.Field{
		library.FieldName, library.FieldYear, library.FieldPremiereDate,
		library.FieldOverview, library.FieldOfficialRating, library.FieldGenres,
		library.FieldStudios, library.FieldPlayers, library.FieldExternalIDs,
	}
	docs := []*catalog.Document{
		sonicDoc(),
		{Provider: "igdb", RemoteID: "9", Title: "Other", ReleaseDate: "2001-02-03", Overview: "x",
			Rating: "M", Genres: []string{"Shooter"}, Developer: "D", Publisher: "P", Players: "1-2"},
		{Provider: "gamesdb", RemoteID: "3", Title: "Y", ReleaseDate: "1980", Rating: "AO - Adult Only", Players: "2"},
	}

	base := func() *library.GameEntity {
		g := library.NewGameEntity("/p", "Locked Name", "nes")
		g.ProductionYear = 1970
		g.PremiereDate = time.Date(1970, 1, 2, 0, 0, 0, 0, time.UTC)
		g.Overview = "locked overview"
		g.OfficialRating = "EC"
		g.Genres = []string{"Music"}
		g.Studios = []string{"Studio"}
		g.PlayersSupported = 8
		g.SetExternalID(library.ProviderGamesDB, "locked")
		g.SetExternalID(library.ProviderIGDB, "locked")
		return g
	}

	for _, field := range fields {
		for _, doc := range docs {
			g := base()
			g.LockedFields = library.NewFieldSet(field)
			want := base()

			require.NoError(t, New(nil).MergeGame(g, doc))

			switch field {
			case library.FieldName:
				assert.Equal(t, want.Name, g.Name)
			case library.FieldYear:
				assert.Equal(t, want.ProductionYear, g.ProductionYear)
			case library.FieldPremiereDate:
				assert.Equal(t, want.PremiereDate, g.PremiereDate)
			case library.FieldOverview:
				assert.Equal(t, want.Overview, g.Overview)
			case library.FieldOfficialRating:
				assert.Equal(t, want.OfficialRating, g.OfficialRating)
			case library.FieldGenres:
				assert.Equal(t, want.Genres, g.Genres)
			case library.FieldStudios:
				assert.Equal(t, want.Studios, g.Studios)
			case library.FieldPlayers:
				assert.Equal(t, want.PlayersSupported, g.PlayersSupported)
			case library.FieldExternalIDs:
				assert.Equal(t, want.ExternalIDs, g.ExternalIDs)
			}
		}
	}
}

func TestMergePlatform(t *testing.T) {
	p := library.NewPlatformEntity("/roms/genesis", "genesis", "genesis")
	doc := &catalog.Document{Provider: "gamesdb-platform", RemoteID: "18", Title: "Sega Genesis", Overview: "16-bit", ReleaseDate: "1988"}

	require.NoError(t, New(nil).MergePlatform(p, doc))
	assert.Equal(t, "Sega Genesis", p.Name)
	assert.Equal(t, "16-bit", p.Overview)
	assert.Equal(t, 1988, p.ProductionYear)
	assert.Equal(t, "18", p.ExternalIDs[library.ProviderGamesDB])

	locked := library.NewPlatformEntity("/roms/genesis", "My Genesis", "genesis")
	locked.LockedFields = library.NewFieldSet(library.FieldName, library.FieldOverview)
	locked.Overview = "mine"
	require.NoError(t, New(nil).MergePlatform(locked, doc))
	assert.Equal(t, "My Genesis", locked.Name)
	assert.Equal(t, "mine", locked.Overview)
}

func TestParsePlayers(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"", 0, false},
		{"1", 1, false},
		{"4+", 4, false},
		{" 2 ", 2, false},
		{"1-2", 2, false},
		{"1 - 4", 4, false},
		{"two", 0, true},
		{"4++", 0, true},
	}
	for _, tt := range tests {
		got, err := parsePlayers(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestTables(t *testing.T) {
	r, ok := Rating(" M - Mature ")
	assert.True(t, ok)
	assert.Equal(t, "M", r)
	_, ok = Rating("RP - Rating Pending")
	assert.False(t, ok)

	g, ok := Genre("Role-Playing (RPG)")
	assert.True(t, ok)
	assert.Equal(t, "RPG", g)
	_, ok = Genre("Indie")
	assert.False(t, ok)
}
