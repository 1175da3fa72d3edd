package db

import (
	"context"
	"fmt"
	"time"

	"github.com/soundcheck-live/soundcheck/data"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var showColumns = []string{
	"name", "artist_id", "venue_id", "date", "image_url", "ticket_url", "updated_at",
}

// GetShow, given a ticketing id, returns the show with its genre ids loaded
// from show_genres.
func (db *DB) GetShow(ctx context.Context, id string) (*data.Show, error) {
	if id == "" {
		return nil, fmt.Errorf("no show id")
	}

	var show data.Show
	if err := db.ro.
		Table("shows").
		Where("id = ?", id).
		First(&show).
		Error; err != nil {
		return nil, fmt.Errorf("error getting show '%s': %w", id, mapErr(err))
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("canceled: %w", err)
	}

	var genreIDs []string
	if err := db.ro.
		Table("show_genres").
		Where("show_id = ?", id).
		Order("genre_id asc").
		Pluck("genre_id", &genreIDs).
		Error; err != nil {
		return nil, fmt.Errorf("error getting genres for show '%s': %w", id, mapErr(err))
	}
	show.GenreIDs = genreIDs

	return &show, nil
}

// UpsertShow, given a Show, writes it into the shows and show_genres tables,
// replacing an existing row. It returns the row as persisted.
func (db *DB) UpsertShow(ctx context.Context, show *data.Show) (*data.Show, error) {
	if show.ID == "" {
		return nil, fmt.Errorf("no show id")
	}
	defer db.hold()()

	err := db.rw.Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns(showColumns),
			}).
			Create(show).
			Error; err != nil {
			return fmt.Errorf("error upserting show '%s': %w", show.ID, mapErr(err))
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("canceled: %w", err)
		}
		return insertShowGenres(tx, show)
	})
	if err != nil {
		return nil, err
	}

	persisted, err := db.GetShow(ctx, show.ID)
	if err != nil {
		return show, nil
	}
	return persisted, nil
}

// InsertShowOnly writes the show only if no row with its id exists, leaving
// any existing row untouched. It returns the stored row.
func (db *DB) InsertShowOnly(ctx context.Context, show *data.Show) (*data.Show, error) {
	if show.ID == "" {
		return nil, fmt.Errorf("no show id")
	}
	defer db.hold()()

	err := db.rw.Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(show).
			Error; err != nil {
			return fmt.Errorf("error inserting show '%s': %w", show.ID, mapErr(err))
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("canceled: %w", err)
		}
		return insertShowGenres(tx, show)
	})
	if err != nil {
		return nil, err
	}

	persisted, err := db.GetShow(ctx, show.ID)
	if err != nil {
		return show, nil
	}
	return persisted, nil
}

func insertShowGenres(tx *gorm.DB, show *data.Show) error {
	for _, genreID := range show.GenreIDs {
		if genreID == "" {
			return fmt.Errorf("no genre id")
		}
		if err := tx.
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&data.ShowGenre{ShowID: show.ID, GenreID: genreID}).
			Error; err != nil {
			return fmt.Errorf("error inserting genre '%s' for show '%s': %w", genreID, show.ID, mapErr(err))
		}
	}
	return nil
}

// GetShowsForArtist returns the artist's shows, soonest first, with undated
// shows last.
func (db *DB) GetShowsForArtist(ctx context.Context, artistID string) ([]data.Show, error) {
	if artistID == "" {
		return nil, fmt.Errorf("no artist id")
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("canceled: %w", err)
	}

	var shows []data.Show
	if err := db.ro.
		Table("shows").
		Where("artist_id = ?", artistID).
		Order("date is null, date asc").
		Find(&shows).
		Error; err != nil {
		return nil, fmt.Errorf("error getting shows for artist '%s': %w", artistID, mapErr(err))
	}
	return shows, nil
}

// GetShowsToSync returns ids of shows whose records haven't been refreshed
// since the cutoff, oldest first.
func (db *DB) GetShowsToSync(cutoff time.Time, limit int) ([]string, error) {
	var ids []string
	q := db.ro.
		Table("shows").
		Where("updated_at < ?", cutoff).
		Order("updated_at asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("error listing shows to sync: %w", err)
	}
	return ids, nil
}
