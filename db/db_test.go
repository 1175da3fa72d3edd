package db_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/soundcheck-live/soundcheck/data"
	"github.com/soundcheck-live/soundcheck/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func open(t *testing.T) *db.DB {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "soundcheck.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestArtistRoundTrip(t *testing.T) {
	ctx := context.Background()
	d := open(t)

	in := &data.Artist{
		ID:            "K8vZ917GSz7",
		Name:          "Fontaines D.C.",
		ImageURL:      "https://img.example/fontaines.jpg",
		CatalogID:     "35II1FZUlVBeWVBFGtZbfK",
		Popularity:    71,
		UpcomingShows: 4,
		Genres:        []string{"post-punk", "rock"},
	}
	_, err := d.UpsertArtist(ctx, in)
	require.NoError(t, err)

	got, err := d.GetArtist(ctx, "K8vZ917GSz7")
	require.NoError(t, err)
	assert.Equal(t, "Fontaines D.C.", got.Name)
	assert.Equal(t, "35II1FZUlVBeWVBFGtZbfK", got.CatalogID)
	assert.Equal(t, []string{"post-punk", "rock"}, got.Genres)
	assert.False(t, got.HasTracks())
}

func TestGetArtistNotFound(t *testing.T) {
	d := open(t)

	_, err := d.GetArtist(context.Background(), "nope")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestUpsertArtistPreservesTracks(t *testing.T) {
	ctx := context.Background()
	d := open(t)

	artist := &data.Artist{ID: "K8vZ917GSz7", Name: "Fontaines D.C."}
	_, err := d.UpsertArtist(ctx, artist)
	require.NoError(t, err)

	snapshot, err := data.EncodeTracks([]data.Track{
		{ID: "t1", Name: "Starburster"},
		{ID: "t2", Name: "Jackie Down the Line"},
	})
	require.NoError(t, err)
	require.NoError(t, d.SetArtistTracks(ctx, "K8vZ917GSz7", snapshot, time.Now()))

	// A later metadata refresh must not clobber the stored snapshot.
	_, err = d.UpsertArtist(ctx, &data.Artist{ID: "K8vZ917GSz7", Name: "Fontaines D.C.", Popularity: 75})
	require.NoError(t, err)

	got, err := d.GetArtist(ctx, "K8vZ917GSz7")
	require.NoError(t, err)
	assert.Equal(t, int64(75), got.Popularity)
	assert.True(t, got.HasTracks())
	tracks, err := got.Tracks()
	require.NoError(t, err)
	assert.Len(t, tracks, 2)
}

func TestInsertArtistOnlyKeepsExistingRow(t *testing.T) {
	ctx := context.Background()
	d := open(t)

	_, err := d.UpsertArtist(ctx, &data.Artist{ID: "K8vZ917GSz7", Name: "Fontaines D.C.", Popularity: 71})
	require.NoError(t, err)

	got, err := d.InsertArtistOnly(ctx, &data.Artist{ID: "K8vZ917GSz7", Name: "renamed", Popularity: 1})
	require.NoError(t, err)
	assert.Equal(t, "Fontaines D.C.", got.Name)
	assert.Equal(t, int64(71), got.Popularity)
}

func TestSetArtistTracksUnknownArtist(t *testing.T) {
	d := open(t)

	err := d.SetArtistTracks(context.Background(), "nope", []byte(`[]`), time.Now())
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestShowRoundTrip(t *testing.T) {
	ctx := context.Background()
	d := open(t)

	in := &data.Show{
		ID:        "vvG1HZ9plrV8GK",
		Name:      "Fontaines D.C. at the Fox",
		ArtistID:  "K8vZ917GSz7",
		VenueID:   "KovZpZAEdntA",
		Date:      sql.NullTime{Time: time.Date(2026, 9, 12, 20, 0, 0, 0, time.UTC), Valid: true},
		TicketURL: "https://tix.example/vvG1HZ9plrV8GK",
		GenreIDs:  []string{"KnvZfZ7vAvv"},
	}
	_, err := d.UpsertShow(ctx, in)
	require.NoError(t, err)

	got, err := d.GetShow(ctx, "vvG1HZ9plrV8GK")
	require.NoError(t, err)
	assert.Equal(t, "K8vZ917GSz7", got.ArtistID)
	assert.Equal(t, []string{"KnvZfZ7vAvv"}, got.GenreIDs)
	assert.True(t, got.Date.Valid)
}

func TestGetShowsForArtistOrdersUndatedLast(t *testing.T) {
	ctx := context.Background()
	d := open(t)

	later := sql.NullTime{Time: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), Valid: true}
	sooner := sql.NullTime{Time: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), Valid: true}

	for _, show := range []*data.Show{
		{ID: "s-undated", ArtistID: "a1", Name: "undated"},
		{ID: "s-later", ArtistID: "a1", Name: "later", Date: later},
		{ID: "s-sooner", ArtistID: "a1", Name: "sooner", Date: sooner},
	} {
		_, err := d.UpsertShow(ctx, show)
		require.NoError(t, err)
	}

	shows, err := d.GetShowsForArtist(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, shows, 3)
	assert.Equal(t, "s-sooner", shows[0].ID)
	assert.Equal(t, "s-later", shows[1].ID)
	assert.Equal(t, "s-undated", shows[2].ID)
}

func TestGenreRankOrdering(t *testing.T) {
	ctx := context.Background()
	d := open(t)

	for _, genre := range []*data.Genre{
		{ID: "g-rock", Name: "rock"},
		{ID: "g-pop", Name: "pop"},
		{ID: "g-zydeco", Name: "zydeco"},
	} {
		require.NoError(t, d.UpsertGenre(ctx, genre))
	}
	require.NoError(t, d.SetGenreRank(ctx, "Pop", 1))
	require.NoError(t, d.SetGenreRank(ctx, "Rock", 2))

	genres, err := d.GetGenres(ctx, []string{"g-rock", "g-pop", "g-zydeco"})
	require.NoError(t, err)
	require.Len(t, genres, 3)
	assert.Equal(t, "pop", genres[0].Name)
	assert.Equal(t, "rock", genres[1].Name)
	assert.Equal(t, "zydeco", genres[2].Name)
	assert.Zero(t, genres[2].Rank)
}

func TestGetArtistsToFetchTracks(t *testing.T) {
	ctx := context.Background()
	d := open(t)

	_, err := d.UpsertArtist(ctx, &data.Artist{ID: "a-no-catalog", Name: "no catalog"})
	require.NoError(t, err)
	_, err = d.UpsertArtist(ctx, &data.Artist{ID: "a-pending", Name: "pending", CatalogID: "c1"})
	require.NoError(t, err)
	_, err = d.UpsertArtist(ctx, &data.Artist{ID: "a-done", Name: "done", CatalogID: "c2"})
	require.NoError(t, err)
	require.NoError(t, d.SetArtistTracks(ctx, "a-done", []byte(`[]`), time.Now()))

	ids, err := d.GetArtistsToFetchTracks(10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a-pending"}, ids)
}

func TestUpsertVenueReplaces(t *testing.T) {
	ctx := context.Background()
	d := open(t)

	_, err := d.UpsertVenue(ctx, &data.Venue{ID: "KovZpZAEdntA", Name: "Fox Theater", City: "Oakland", State: "CA"})
	require.NoError(t, err)
	got, err := d.UpsertVenue(ctx, &data.Venue{ID: "KovZpZAEdntA", Name: "Fox Theater", City: "Oakland", State: "California"})
	require.NoError(t, err)
	assert.Equal(t, "California", got.State)

	kept, err := d.InsertVenueOnly(ctx, &data.Venue{ID: "KovZpZAEdntA", Name: "other"})
	require.NoError(t, err)
	assert.Equal(t, "Fox Theater", kept.Name)
}
