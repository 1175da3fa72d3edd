package db

import (
	"context"
	"fmt"

	"github.com/soundcheck-live/soundcheck/data"
	"gorm.io/gorm/clause"
)

// UpsertGenre records a genre id+name pair seen in a ticketing payload. The
// chart rank, if already imported, is left alone.
func (db *DB) UpsertGenre(ctx context.Context, genre *data.Genre) error {
	if genre.ID == "" {
		return fmt.Errorf("no genre id")
	}
	if genre.Name == "" {
		return fmt.Errorf("no genre name")
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("canceled: %w", err)
	}
	defer db.hold()()

	if err := db.rw.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
		}).
		Create(genre).
		Error; err != nil {
		return fmt.Errorf("error upserting genre '%s': %w", genre.Name, mapErr(err))
	}
	return nil
}

// SetGenreRank stamps a chart rank onto the genre with the given name. Genres
// the chart names but the ticketing service hasn't are skipped, since rows
// are keyed by ticketing id.
func (db *DB) SetGenreRank(ctx context.Context, name string, rank int64) error {
	if name == "" {
		return fmt.Errorf("no genre name")
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("canceled: %w", err)
	}
	defer db.hold()()

	if err := db.rw.
		Table("genres").
		Where("name = ? collate nocase", name).
		Update("rank", rank).
		Error; err != nil {
		return fmt.Errorf("error ranking genre '%s': %w", name, mapErr(err))
	}
	return nil
}

// GetGenres returns the genres with the given ids, ranked genres first in
// chart order, then unranked genres alphabetically. Unknown ids are omitted.
func (db *DB) GetGenres(ctx context.Context, ids []string) ([]data.Genre, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("canceled: %w", err)
	}

	var genres []data.Genre
	if err := db.ro.
		Table("genres").
		Where("id in ?", ids).
		Order("rank = 0, rank asc, name asc").
		Find(&genres).
		Error; err != nil {
		return nil, fmt.Errorf("error getting %d genres: %w", len(ids), mapErr(err))
	}
	return genres, nil
}
