package ticketing

import (
	"database/sql"
	"time"

	"github.com/soundcheck-live/soundcheck/data"
)

type idName struct {
	ID   string
	Name string
}

type image struct {
	URL    string
	Width  int64
	Height int64
}

type classification struct {
	Primary  bool
	Segment  idName
	Genre    idName
	SubGenre idName `json:"subGenre"`
}

type attraction struct {
	ID              string
	Name            string
	Images          []image
	Classifications []classification
	UpcomingEvents  struct {
		Total int64 `json:"_total"`
	} `json:"upcomingEvents"`
}

type venue struct {
	ID   string
	Name string
	City struct {
		Name string
	}
	State struct {
		Name      string
		StateCode string `json:"stateCode"`
	}
}

type event struct {
	ID     string
	Name   string
	URL    string
	Images []image
	Dates  struct {
		Start struct {
			LocalDate string `json:"localDate"`
			DateTime  string `json:"dateTime"`
			DateTBD   bool   `json:"dateTBD"`
			DateTBA   bool   `json:"dateTBA"`
		}
	}
	Classifications []classification
	Embedded        struct {
		Venues      []venue
		Attractions []attraction
	} `json:"_embedded"`
}

type eventSearchPage struct {
	Embedded struct {
		Events []event
	} `json:"_embedded"`
	Page struct {
		Size          int
		TotalElements int64 `json:"totalElements"`
		TotalPages    int   `json:"totalPages"`
		Number        int
	}
}

func (a attraction) normalize() data.Artist {
	return data.Artist{
		ID:            a.ID,
		Name:          a.Name,
		ImageURL:      widestImage(a.Images),
		UpcomingShows: a.UpcomingEvents.Total,
		Genres:        genreNames(a.Classifications),
	}
}

func (v venue) normalize() data.Venue {
	return data.Venue{
		ID:    v.ID,
		Name:  v.Name,
		City:  v.City.Name,
		State: v.State.StateCode,
	}
}

func (e event) normalize() Event {
	show := data.Show{
		ID:        e.ID,
		Name:      e.Name,
		Date:      startDate(e),
		ImageURL:  widestImage(e.Images),
		TicketURL: e.URL,
	}

	var genres []data.Genre
	for _, pair := range genrePairs(e.Classifications) {
		show.GenreIDs = append(show.GenreIDs, pair.ID)
		genres = append(genres, data.Genre{ID: pair.ID, Name: pair.Name})
	}

	normalized := Event{Show: show, Genres: genres}

	if len(e.Embedded.Venues) > 0 {
		venue := e.Embedded.Venues[0].normalize()
		normalized.Venue = &venue
		normalized.Show.VenueID = venue.ID
	}
	if len(e.Embedded.Attractions) > 0 {
		artist := e.Embedded.Attractions[0].normalize()
		normalized.Artist = &artist
		normalized.Show.ArtistID = artist.ID
	}

	return normalized
}

// startDate collapses the service's many ways of not having a date yet into
// an absent date. The dateTime field is UTC when present; a bare localDate
// (common for far-future events) is better than nothing.
func startDate(e event) sql.NullTime {
	start := e.Dates.Start
	if start.DateTBD || start.DateTBA {
		return sql.NullTime{}
	}
	if start.DateTime != "" {
		if parsed, err := time.Parse(time.RFC3339, start.DateTime); err == nil {
			return sql.NullTime{Time: parsed, Valid: true}
		}
	}
	if start.LocalDate != "" {
		if parsed, err := time.Parse("2006-01-02", start.LocalDate); err == nil {
			return sql.NullTime{Time: parsed, Valid: true}
		}
	}
	return sql.NullTime{}
}

// genrePairs extracts usable genre id+name pairs from classifications. The
// service pads payloads with "Undefined" placeholder nodes; those are
// dropped, as are segment nodes ("Music"), which are too broad to be useful.
func genrePairs(classifications []classification) []idName {
	var pairs []idName
	seen := map[string]bool{}
	for _, c := range classifications {
		for _, node := range []idName{c.Genre, c.SubGenre} {
			if node.ID == "" || node.Name == "" || node.Name == "Undefined" {
				continue
			}
			if seen[node.ID] {
				continue
			}
			seen[node.ID] = true
			pairs = append(pairs, node)
		}
	}
	return pairs
}

func genreNames(classifications []classification) []string {
	var names []string
	for _, pair := range genrePairs(classifications) {
		names = append(names, pair.Name)
	}
	return names
}

func widestImage(images []image) string {
	var imageURL string
	var maxSize int64
	for _, image := range images {
		if image.Width > maxSize {
			imageURL = image.URL
			maxSize = image.Width
		}
	}
	return imageURL
}
