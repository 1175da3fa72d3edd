package db

import (
	"fmt"
	"time"
)

func (db *DB) CountArtistsKnown() (int, error) {
	var count int64
	if err := db.ro.
		Table("artists").
		Count(&count).
		Error; err != nil {
		return 0, fmt.Errorf("error counting artists: %w", err)
	}
	return int(count), nil
}

func (db *DB) CountArtistsWithCatalogID() (int, error) {
	var count int64
	if err := db.ro.
		Table("artists").
		Where("catalog_id != ''").
		Count(&count).
		Error; err != nil {
		return 0, fmt.Errorf("error counting artists with catalog ids: %w", err)
	}
	return int(count), nil
}

func (db *DB) CountArtistsWithTracks() (int, error) {
	var count int64
	if err := db.ro.
		Table("artists").
		Where("tracks_updated_at is not null").
		Count(&count).
		Error; err != nil {
		return 0, fmt.Errorf("error counting artists with tracks: %w", err)
	}
	return int(count), nil
}

func (db *DB) CountArtistsFreshSince(cutoff time.Time) (int, error) {
	var count int64
	if err := db.ro.
		Table("artists").
		Where("updated_at >= ?", cutoff).
		Count(&count).
		Error; err != nil {
		return 0, fmt.Errorf("error counting fresh artists: %w", err)
	}
	return int(count), nil
}

func (db *DB) CountShowsKnown() (int, error) {
	var count int64
	if err := db.ro.
		Table("shows").
		Count(&count).
		Error; err != nil {
		return 0, fmt.Errorf("error counting shows: %w", err)
	}
	return int(count), nil
}

func (db *DB) CountShowsDated() (int, error) {
	var count int64
	if err := db.ro.
		Table("shows").
		Where("date is not null").
		Count(&count).
		Error; err != nil {
		return 0, fmt.Errorf("error counting dated shows: %w", err)
	}
	return int(count), nil
}

func (db *DB) CountShowsFreshSince(cutoff time.Time) (int, error) {
	var count int64
	if err := db.ro.
		Table("shows").
		Where("updated_at >= ?", cutoff).
		Count(&count).
		Error; err != nil {
		return 0, fmt.Errorf("error counting fresh shows: %w", err)
	}
	return int(count), nil
}

func (db *DB) CountVenuesKnown() (int, error) {
	var count int64
	if err := db.ro.
		Table("venues").
		Count(&count).
		Error; err != nil {
		return 0, fmt.Errorf("error counting venues: %w", err)
	}
	return int(count), nil
}

func (db *DB) CountGenresKnown() (int, error) {
	var count int64
	if err := db.ro.
		Table("genres").
		Count(&count).
		Error; err != nil {
		return 0, fmt.Errorf("error counting genres: %w", err)
	}
	return int(count), nil
}

func (db *DB) CountGenresRanked() (int, error) {
	var count int64
	if err := db.ro.
		Table("genres").
		Where("rank > 0").
		Count(&count).
		Error; err != nil {
		return 0, fmt.Errorf("error counting ranked genres: %w", err)
	}
	return int(count), nil
}
