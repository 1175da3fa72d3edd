package data

// An ArtistGenre represents a many-to-many relationship between artists and
// genre names reported by the ticketing service.
type ArtistGenre struct {
	ArtistID  string
	GenreName string
}
