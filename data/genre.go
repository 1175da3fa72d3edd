package data

import "time"

// Genres map the ticketing service's opaque genre ids to display names.
//
// Rows are created two ways: upserted on sight when a show's classification
// payload carries an id+name pair, and enriched with a popularity rank by the
// genre-chart importer.
type Genre struct {
	// like "KnvZfZ7vAvv"
	ID string `json:"id"`

	// like "rock"
	Name string `json:"name"`

	// Rank orders genres by chart popularity; 0 means unranked.
	Rank int64 `json:"rank,omitempty"`

	UpdatedAt time.Time `json:"updatedAt"`
}
