package db

import (
	"context"
	"fmt"

	"github.com/soundcheck-live/soundcheck/data"
	"gorm.io/gorm/clause"
)

var venueColumns = []string{"name", "city", "state", "updated_at"}

func (db *DB) GetVenue(ctx context.Context, id string) (*data.Venue, error) {
	if id == "" {
		return nil, fmt.Errorf("no venue id")
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("canceled: %w", err)
	}

	var venue data.Venue
	if err := db.ro.
		Table("venues").
		Where("id = ?", id).
		First(&venue).
		Error; err != nil {
		return nil, fmt.Errorf("error getting venue '%s': %w", id, mapErr(err))
	}
	return &venue, nil
}

// UpsertVenue writes the venue, replacing an existing row. It returns the row
// as persisted.
func (db *DB) UpsertVenue(ctx context.Context, venue *data.Venue) (*data.Venue, error) {
	if venue.ID == "" {
		return nil, fmt.Errorf("no venue id")
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("canceled: %w", err)
	}
	defer db.hold()()

	if err := db.rw.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(venueColumns),
		}).
		Create(venue).
		Error; err != nil {
		return nil, fmt.Errorf("error upserting venue '%s': %w", venue.ID, mapErr(err))
	}

	persisted, err := db.GetVenue(ctx, venue.ID)
	if err != nil {
		return venue, nil
	}
	return persisted, nil
}

// InsertVenueOnly writes the venue only if no row with its id exists, leaving
// any existing row untouched. It returns the stored row.
func (db *DB) InsertVenueOnly(ctx context.Context, venue *data.Venue) (*data.Venue, error) {
	if venue.ID == "" {
		return nil, fmt.Errorf("no venue id")
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("canceled: %w", err)
	}
	defer db.hold()()

	if err := db.rw.
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(venue).
		Error; err != nil {
		return nil, fmt.Errorf("error inserting venue '%s': %w", venue.ID, mapErr(err))
	}

	persisted, err := db.GetVenue(ctx, venue.ID)
	if err != nil {
		return venue, nil
	}
	return persisted, nil
}
