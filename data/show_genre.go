package data

// A ShowGenre represents a many-to-many relationship between shows and the
// ticketing service's genre ids.
type ShowGenre struct {
	ShowID  string
	GenreID string
}
