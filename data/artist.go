package data

import (
	"database/sql"
	"time"
)

// Artists hold the performers we track, keyed by the ticketing service's
// stable attraction id.
//
// Artists have many genres via the association table artist_genres.
type Artist struct {
	// like "K8vZ917GSz7"
	ID string `json:"id"`

	Name     string `json:"name"`
	ImageURL string `json:"imageUrl"`

	// CatalogID is the artist's id on the external music-catalog service,
	// like "4Z8W4fKeB5YxbusRsdQVPb". Empty until resolved.
	CatalogID string `json:"catalogId,omitempty"`

	Popularity    int64 `json:"popularity"`
	UpcomingShows int64 `json:"upcomingShows"`

	Genres []string `gorm:"-" json:"genres,omitempty"`

	// TracksJSON is the denormalized track-catalog snapshot: a JSON array of
	// Track written in one operation, or empty. Never partially written.
	TracksJSON      []byte       `json:"-"`
	TracksUpdatedAt sql.NullTime `json:"-"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// HasTracks reports whether a complete track-catalog snapshot is stored.
func (a *Artist) HasTracks() bool { return len(a.TracksJSON) > 0 }

// Tracks decodes the stored snapshot. An absent snapshot decodes to nil.
func (a *Artist) Tracks() ([]Track, error) {
	if !a.HasTracks() {
		return nil, nil
	}
	return DecodeTracks(a.TracksJSON)
}
