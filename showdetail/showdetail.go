// Package showdetail assembles everything the show page needs: the show and
// its artist, venue, and genres through the freshness-gated syncer, the
// track catalog through the cache, and the live setlist session. Partial
// availability is the normal case, not an error: whatever loaded is served,
// and what didn't is marked as loading or failed on the view.
package showdetail

import (
	"context"
	"errors"
	"fmt"

	"github.com/soundcheck-live/soundcheck/data"
	"github.com/soundcheck-live/soundcheck/db"
	"github.com/soundcheck-live/soundcheck/logging"
	"github.com/soundcheck-live/soundcheck/setlist"
	"github.com/soundcheck-live/soundcheck/ticketing"
	"github.com/soundcheck-live/soundcheck/trackcache"
)

// Shows is the freshness-gated read surface. The syncer implements it.
type Shows interface {
	ShowIfStale(ctx context.Context, id string) (*data.Show, error)
	ArtistIfStale(ctx context.Context, id string) (*data.Artist, error)
}

// Tracks is the catalog read surface. The track cache implements it.
type Tracks interface {
	Tracks(ctx context.Context, artistID, catalogID string, opts trackcache.Options) (*trackcache.Result, error)
}

// Lookups resolve the show's satellite rows. *db.DB implements it.
type Lookups interface {
	GetVenue(ctx context.Context, id string) (*data.Venue, error)
	GetGenres(ctx context.Context, ids []string) ([]data.Genre, error)
	GetShowsForArtist(ctx context.Context, artistID string) ([]data.Show, error)
}

// Conn reports whether the live event stream is up. The hub implements it.
type Conn interface {
	Connected() bool
}

type Aggregator struct {
	shows  Shows
	tracks Tracks
	engine *setlist.Engine
	conn   Conn
	store  Lookups
}

func New(shows Shows, tracks Tracks, engine *setlist.Engine, conn Conn, store Lookups) *Aggregator {
	return &Aggregator{
		shows:  shows,
		tracks: tracks,
		engine: engine,
		conn:   conn,
		store:  store,
	}
}

type Loading struct {
	Show   bool `json:"show"`
	Tracks bool `json:"tracks"`
}

type Errs struct {
	Show   string `json:"show,omitempty"`
	Tracks string `json:"tracks,omitempty"`
}

// View is one show page's worth of state. Any field but Setlist and
// Connected may be missing; Loading and Errs say why.
type View struct {
	Show   *data.Show   `json:"show,omitempty"`
	Artist *data.Artist `json:"artist,omitempty"`
	Venue  *data.Venue  `json:"venue,omitempty"`
	Genres []string     `json:"genres,omitempty"`

	Setlist         []data.SetlistEntry `json:"setlist"`
	AvailableTracks []data.Track        `json:"availableTracks"`
	InitialSongs    []data.Track        `json:"initialSongs,omitempty"`

	// Date is the display form of the show date; "TBD" until scheduled.
	Date string `json:"date"`

	Connected bool    `json:"connected"`
	Loading   Loading `json:"loading"`
	Errs      Errs    `json:"errors"`
}

// View assembles the show page. Every sub-fetch degrades independently; the
// only hard failure is an unusable show id.
func (agg *Aggregator) View(ctx context.Context, showID string) (*View, error) {
	if showID == "" {
		return nil, fmt.Errorf("no show id")
	}

	view := &View{
		Setlist:         []data.SetlistEntry{},
		AvailableTracks: []data.Track{},
		Date:            "TBD",
		Connected:       agg.conn.Connected(),
	}
	session := agg.engine.Session(showID)

	show, err := agg.shows.ShowIfStale(ctx, showID)
	if err != nil {
		logging.Warn().Err(err).Str("show", showID).Msg("show unavailable, rendering partial view")
		view.Errs.Show = showErr(err)
	} else {
		view.Show = show
		view.Date = show.DisplayDate()
		agg.fillSatellites(ctx, view, session, show)
	}

	view.Setlist = session.Entries()
	view.AvailableTracks = session.AvailableTracks()
	return view, nil
}

func (agg *Aggregator) fillSatellites(ctx context.Context, view *View, session *setlist.Session, show *data.Show) {
	if show.ArtistID != "" {
		artist, err := agg.shows.ArtistIfStale(ctx, show.ArtistID)
		if err != nil {
			logging.Warn().Err(err).Str("artist", show.ArtistID).Msg("artist unavailable")
		} else {
			view.Artist = artist
		}
	}

	if show.VenueID != "" {
		venue, err := agg.store.GetVenue(ctx, show.VenueID)
		if err != nil {
			if !errors.Is(err, db.ErrNotFound) {
				logging.Warn().Err(err).Str("venue", show.VenueID).Msg("venue unavailable")
			}
		} else {
			view.Venue = venue
		}
	}

	if len(show.GenreIDs) > 0 {
		genres, err := agg.store.GetGenres(ctx, show.GenreIDs)
		if err != nil {
			logging.Warn().Err(err).Str("show", show.ID).Msg("genres unavailable")
		}
		for _, genre := range genres {
			view.Genres = append(view.Genres, genre.Name)
		}
	}

	if view.Artist == nil {
		return
	}
	res, err := agg.tracks.Tracks(ctx, view.Artist.ID, view.Artist.CatalogID, trackcache.Options{
		Immediate:        false,
		PrioritizeStored: true,
	})
	if err != nil {
		logging.Warn().Err(err).Str("artist", view.Artist.ID).Msg("tracks unavailable")
		view.Errs.Tracks = "track catalog unavailable"
		return
	}
	view.Loading.Tracks = res.Pending
	if len(res.Tracks) > 0 {
		session.SetCatalog(res.Tracks)
		view.InitialSongs = res.InitialSongs()
	}
}

// Session returns the show's voting session with its track catalog
// installed, resolving show, artist, and stored tracks as needed. Mutations
// go through here so a vote on a cold process still validates against the
// catalog.
func (agg *Aggregator) Session(ctx context.Context, showID string) (*setlist.Session, error) {
	if showID == "" {
		return nil, fmt.Errorf("no show id")
	}

	session := agg.engine.Session(showID)
	if session.HasCatalog() {
		return session, nil
	}

	show, err := agg.shows.ShowIfStale(ctx, showID)
	if err != nil {
		return nil, fmt.Errorf("error loading show '%s': %w", showID, err)
	}
	if show.ArtistID == "" {
		return session, nil
	}

	artist, err := agg.shows.ArtistIfStale(ctx, show.ArtistID)
	if err != nil {
		logging.Warn().Err(err).Str("artist", show.ArtistID).Msg("artist unavailable, session stays catalogless")
		return session, nil
	}

	res, err := agg.tracks.Tracks(ctx, artist.ID, artist.CatalogID, trackcache.DefaultOptions())
	if err != nil {
		logging.Warn().Err(err).Str("artist", artist.ID).Msg("tracks unavailable, session stays catalogless")
		return session, nil
	}
	if len(res.Tracks) > 0 {
		session.SetCatalog(res.Tracks)
	}
	return session, nil
}

// ArtistShows lists the artist's stored shows, soonest first with undated
// shows last. It reads the store only; refreshing happens on the show pages
// themselves.
func (agg *Aggregator) ArtistShows(ctx context.Context, artistID string) ([]data.Show, error) {
	if artistID == "" {
		return nil, fmt.Errorf("no artist id")
	}
	return agg.store.GetShowsForArtist(ctx, artistID)
}

// LoadTracks triggers track population for the show's artist without
// waiting for it.
func (agg *Aggregator) LoadTracks(ctx context.Context, showID string) error {
	if showID == "" {
		return fmt.Errorf("no show id")
	}

	show, err := agg.shows.ShowIfStale(ctx, showID)
	if err != nil {
		return fmt.Errorf("error loading show '%s': %w", showID, err)
	}
	if show.ArtistID == "" {
		return fmt.Errorf("show '%s' has no artist", showID)
	}

	artist, err := agg.shows.ArtistIfStale(ctx, show.ArtistID)
	if err != nil {
		return fmt.Errorf("error loading artist '%s': %w", show.ArtistID, err)
	}

	_, err = agg.tracks.Tracks(ctx, artist.ID, artist.CatalogID, trackcache.Options{
		Immediate:        false,
		PrioritizeStored: true,
	})
	return err
}

// Title is "Artist at Venue" when both resolved, the show's own name
// otherwise.
func (v *View) Title() string {
	switch {
	case v.Artist != nil && v.Venue != nil:
		return fmt.Sprintf("%s at %s", v.Artist.Name, v.Venue.Name)
	case v.Show != nil:
		return v.Show.Name
	default:
		return "Soundcheck"
	}
}

// Description is the share-card blurb for the show page.
func (v *View) Description() string {
	if v.Show == nil {
		return "Vote on the setlist for an upcoming show."
	}

	where := ""
	if v.Venue != nil {
		where = fmt.Sprintf(" at %s", v.Venue.Name)
		if v.Venue.City != "" {
			where += fmt.Sprintf(" in %s", v.Venue.City)
			if v.Venue.State != "" {
				where += fmt.Sprintf(", %s", v.Venue.State)
			}
		}
	}

	who := v.Show.Name
	if v.Artist != nil {
		who = v.Artist.Name
	}
	return fmt.Sprintf("Help build the setlist for %s%s on %s.", who, where, v.Date)
}

func showErr(err error) string {
	if errors.Is(err, db.ErrNotFound) || errors.Is(err, ticketing.ErrNotFound) {
		return "not found"
	}
	return "unavailable"
}

// NotFound reports whether the view failed because the show doesn't exist
// anywhere, as opposed to a degraded fetch.
func (v *View) NotFound() bool {
	return v.Show == nil && v.Errs.Show == "not found"
}
