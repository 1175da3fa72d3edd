package data

import (
	"database/sql"
	"time"
)

// Shows are upcoming events fetched from the ticketing service.
//
// Artist and venue references are foreign identities resolved by the store at
// read time. Shows have many genre ids via the association table show_genres.
type Show struct {
	// like "vvG1HZ9plrV8GK"
	ID string `json:"id"`

	Name string `json:"name"`

	ArtistID string `json:"artistId"`
	VenueID  string `json:"venueId"`

	// Date is absent while the ticketing service hasn't scheduled the event;
	// display layers render absent dates as "TBD".
	Date sql.NullTime `json:"-"`

	ImageURL  string `json:"imageUrl"`
	TicketURL string `json:"ticketUrl"`

	GenreIDs []string `gorm:"-" json:"genreIds,omitempty"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// DisplayDate renders the show date for presentation, or "TBD" when the
// ticketing service hasn't scheduled the event.
func (s *Show) DisplayDate() string {
	if !s.Date.Valid {
		return "TBD"
	}
	return s.Date.Time.Format("Jan 2, 2006")
}
