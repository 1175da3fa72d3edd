package db

import (
	"context"
	"fmt"
	"time"

	"github.com/soundcheck-live/soundcheck/data"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// artistColumns are the columns a metadata refresh may replace. The track
// snapshot columns are excluded: only SetArtistTracks writes those.
var artistColumns = []string{
	"name", "image_url", "catalog_id", "popularity", "upcoming_shows", "updated_at",
}

// GetArtist, given a ticketing id, returns the artist with its genre names
// loaded from artist_genres.
func (db *DB) GetArtist(ctx context.Context, id string) (*data.Artist, error) {
	if id == "" {
		return nil, fmt.Errorf("no artist id")
	}

	var artist data.Artist
	if err := db.ro.
		Table("artists").
		Where("id = ?", id).
		First(&artist).
		Error; err != nil {
		return nil, fmt.Errorf("error getting artist '%s': %w", id, mapErr(err))
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("canceled: %w", err)
	}

	var genres []string
	if err := db.ro.
		Table("artist_genres").
		Where("artist_id = ?", id).
		Order("genre_name asc").
		Pluck("genre_name", &genres).
		Error; err != nil {
		return nil, fmt.Errorf("error getting genres for artist '%s': %w", id, mapErr(err))
	}
	artist.Genres = genres

	return &artist, nil
}

// UpsertArtist, given an Artist, writes it into the artists and artist_genres
// tables, replacing an existing row's metadata. The stored track snapshot, if
// any, is left alone. It returns the row as persisted.
func (db *DB) UpsertArtist(ctx context.Context, artist *data.Artist) (*data.Artist, error) {
	if artist.ID == "" {
		return nil, fmt.Errorf("no artist id")
	}
	defer db.hold()()

	err := db.rw.Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns(artistColumns),
			}).
			Create(artist).
			Error; err != nil {
			return fmt.Errorf("error upserting artist '%s': %w", artist.ID, mapErr(err))
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("canceled: %w", err)
		}
		return insertArtistGenres(tx, artist)
	})
	if err != nil {
		return nil, err
	}

	persisted, err := db.GetArtist(ctx, artist.ID)
	if err != nil {
		return artist, nil
	}
	return persisted, nil
}

// InsertArtistOnly writes the artist only if no row with its id exists,
// leaving any existing row untouched. It returns the stored row, which is the
// preexisting one when the insert was a no-op.
func (db *DB) InsertArtistOnly(ctx context.Context, artist *data.Artist) (*data.Artist, error) {
	if artist.ID == "" {
		return nil, fmt.Errorf("no artist id")
	}
	defer db.hold()()

	err := db.rw.Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(artist).
			Error; err != nil {
			return fmt.Errorf("error inserting artist '%s': %w", artist.ID, mapErr(err))
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("canceled: %w", err)
		}
		return insertArtistGenres(tx, artist)
	})
	if err != nil {
		return nil, err
	}

	persisted, err := db.GetArtist(ctx, artist.ID)
	if err != nil {
		return artist, nil
	}
	return persisted, nil
}

func insertArtistGenres(tx *gorm.DB, artist *data.Artist) error {
	for _, genre := range artist.Genres {
		if genre == "" {
			return fmt.Errorf("no genre name")
		}
		if err := tx.
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&data.ArtistGenre{ArtistID: artist.ID, GenreName: genre}).
			Error; err != nil {
			return fmt.Errorf("error inserting genre '%s' for artist '%s': %w", genre, artist.ID, mapErr(err))
		}
	}
	return nil
}

// SetArtistTracks stores a complete track-catalog snapshot for the artist in
// a single statement, stamping tracks_updated_at. Snapshots are replaced
// whole; there is no partial update.
func (db *DB) SetArtistTracks(ctx context.Context, id string, tracksJSON []byte, fetchedAt time.Time) error {
	if id == "" {
		return fmt.Errorf("no artist id")
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("canceled: %w", err)
	}
	defer db.hold()()

	res := db.rw.
		Table("artists").
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"tracks_json":       tracksJSON,
			"tracks_updated_at": fetchedAt,
		})
	if err := res.Error; err != nil {
		return fmt.Errorf("error storing tracks for artist '%s': %w", id, mapErr(err))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("error storing tracks for artist '%s': %w", id, ErrNotFound)
	}
	return nil
}

// GetArtistsToSync returns ids of artists whose records haven't been
// refreshed since the cutoff, oldest first.
func (db *DB) GetArtistsToSync(cutoff time.Time, limit int) ([]string, error) {
	var ids []string
	q := db.ro.
		Table("artists").
		Where("updated_at < ?", cutoff).
		Order("updated_at asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("error listing artists to sync: %w", err)
	}
	return ids, nil
}

// GetArtistsToFetchTracks returns ids of artists that have a catalog id but
// no stored track snapshot yet.
func (db *DB) GetArtistsToFetchTracks(limit int) ([]string, error) {
	var ids []string
	q := db.ro.
		Table("artists").
		Where("catalog_id != ''").
		Where("tracks_updated_at is null").
		Order("popularity desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("error listing artists to fetch tracks for: %w", err)
	}
	return ids, nil
}
