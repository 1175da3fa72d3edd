// Package syncer keeps stored artists, shows, and venues aligned with the
// ticketing and catalog sources.
//
// Reads go through a staleness gate: ArtistIfStale and ShowIfStale serve the
// stored record while it is fresh and refetch it when it isn't, preferring a
// stale record over a failed refresh. Writes go through an ordered chain of
// strategies (upsert, then insert-only when the store denies updates, then
// serve unpersisted) so a locked-down or broken store never takes down the
// read path.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/soundcheck-live/soundcheck/catalog"
	"github.com/soundcheck-live/soundcheck/data"
	"github.com/soundcheck-live/soundcheck/db"
	"github.com/soundcheck-live/soundcheck/logging"
	"github.com/soundcheck-live/soundcheck/metrics"
	"github.com/soundcheck-live/soundcheck/ticketing"
)

// Store is the persistence surface the syncer writes through. *db.DB
// implements it.
type Store interface {
	GetArtist(ctx context.Context, id string) (*data.Artist, error)
	UpsertArtist(ctx context.Context, artist *data.Artist) (*data.Artist, error)
	InsertArtistOnly(ctx context.Context, artist *data.Artist) (*data.Artist, error)
	SetArtistTracks(ctx context.Context, id string, tracksJSON []byte, fetchedAt time.Time) error

	GetShow(ctx context.Context, id string) (*data.Show, error)
	UpsertShow(ctx context.Context, show *data.Show) (*data.Show, error)
	InsertShowOnly(ctx context.Context, show *data.Show) (*data.Show, error)

	UpsertVenue(ctx context.Context, venue *data.Venue) (*data.Venue, error)
	InsertVenueOnly(ctx context.Context, venue *data.Venue) (*data.Venue, error)

	UpsertGenre(ctx context.Context, genre *data.Genre) error
}

// Ticketing is the slice of the ticketing client the syncer uses.
type Ticketing interface {
	FetchAttraction(ctx context.Context, id string) (*data.Artist, error)
	FetchEvent(ctx context.Context, id string) (*ticketing.Event, error)
}

// Catalog is the slice of the music-catalog client the syncer uses.
type Catalog interface {
	ResolveArtist(ctx context.Context, name string) (*data.Artist, error)
	FetchArtistTracks(ctx context.Context, catalogID string) ([]data.Track, error)
}

// A Spawner runs work after the triggering call has returned. Failures are
// the spawner's to log; nothing flows back to the caller.
type Spawner interface {
	Do(name string, run func(context.Context) error) bool
}

type Options struct {
	// ArtistTTL and ShowTTL are the freshness windows. Zero means the
	// defaults: a week for artists, a day for shows.
	ArtistTTL time.Duration
	ShowTTL   time.Duration

	// Now is a clock hook for tests.
	Now func() time.Time
}

type Syncer struct {
	store Store
	tick  Ticketing
	cat   Catalog
	tasks Spawner

	artistTTL time.Duration
	showTTL   time.Duration
	now       func() time.Time
}

func New(store Store, tick Ticketing, cat Catalog, tasks Spawner, opts Options) *Syncer {
	if opts.ArtistTTL <= 0 {
		opts.ArtistTTL = 7 * 24 * time.Hour
	}
	if opts.ShowTTL <= 0 {
		opts.ShowTTL = 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Syncer{
		store:     store,
		tick:      tick,
		cat:       cat,
		tasks:     tasks,
		artistTTL: opts.ArtistTTL,
		showTTL:   opts.ShowTTL,
		now:       opts.Now,
	}
}

// SyncArtist persists the artist through the write chain, resolving its
// catalog id first when it doesn't have one. If the persisted record has a
// catalog id but no stored track snapshot, track population is triggered in
// the background; the caller doesn't wait for it.
func (s *Syncer) SyncArtist(ctx context.Context, artist data.Artist) (*data.Artist, error) {
	if artist.ID == "" {
		return nil, fmt.Errorf("no artist id")
	}

	artist.UpdatedAt = s.now()
	s.resolveCatalog(ctx, &artist)

	persisted := persist(ctx, "artist", &artist, []writeStrategy[*data.Artist]{
		{name: "upsert", write: s.store.UpsertArtist},
		{name: "insert_only", gate: isPermissionDenied, write: s.store.InsertArtistOnly},
	})

	if persisted.CatalogID != "" && !persisted.HasTracks() {
		s.spawnPopulate(persisted.ID, persisted.CatalogID)
	}
	return persisted, nil
}

// SyncShow persists the show through the write chain.
func (s *Syncer) SyncShow(ctx context.Context, show data.Show) (*data.Show, error) {
	if show.ID == "" {
		return nil, fmt.Errorf("no show id")
	}

	show.UpdatedAt = s.now()
	persisted := persist(ctx, "show", &show, []writeStrategy[*data.Show]{
		{name: "upsert", write: s.store.UpsertShow},
		{name: "insert_only", gate: isPermissionDenied, write: s.store.InsertShowOnly},
	})
	return persisted, nil
}

// SyncEvent persists everything a normalized event carries: its genres,
// venue, and headline artist, then the show itself. Failures on the
// satellites degrade to logs; the show is what the caller gets back.
func (s *Syncer) SyncEvent(ctx context.Context, ev *ticketing.Event) (*data.Show, error) {
	if ev == nil {
		return nil, fmt.Errorf("no event")
	}

	for i := range ev.Genres {
		if err := s.store.UpsertGenre(ctx, &ev.Genres[i]); err != nil {
			logging.Warn().Err(err).Str("genre", ev.Genres[i].ID).Msg("genre write failed")
		}
	}

	if ev.Venue != nil && ev.Venue.ID != "" {
		venue := *ev.Venue
		persist(ctx, "venue", &venue, []writeStrategy[*data.Venue]{
			{name: "upsert", write: s.store.UpsertVenue},
			{name: "insert_only", gate: isPermissionDenied, write: s.store.InsertVenueOnly},
		})
	}

	if ev.Artist != nil && ev.Artist.ID != "" {
		if _, err := s.SyncArtist(ctx, *ev.Artist); err != nil {
			logging.Warn().Err(err).Str("artist", ev.Artist.ID).Msg("artist sync failed")
		}
	}

	return s.SyncShow(ctx, ev.Show)
}

// ArtistIfStale returns the stored artist while it is fresh, refetching it
// from the ticketing source otherwise. A stale stored record beats a failed
// refresh. An artist is only fresh when it is young enough AND already
// carries a track snapshot; a snapshotless artist is re-synced on every read
// so catalog resolution and population get another chance.
func (s *Syncer) ArtistIfStale(ctx context.Context, id string) (*data.Artist, error) {
	if id == "" {
		return nil, fmt.Errorf("no artist id")
	}

	stored, err := s.store.GetArtist(ctx, id)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		logging.Warn().Err(err).Str("artist", id).Msg("artist read failed, refetching")
		stored = nil
	}
	if stored != nil && s.freshArtist(stored) {
		return stored, nil
	}

	fetched, err := s.fetchAttraction(ctx, id)
	if err != nil {
		if stored != nil {
			logging.Warn().Err(err).Str("artist", id).Msg("refresh failed, serving stale artist")
			return stored, nil
		}
		return nil, fmt.Errorf("error refreshing artist '%s': %w", id, err)
	}
	return s.SyncArtist(ctx, *fetched)
}

// ShowIfStale returns the stored show while it is fresh, refetching the full
// event otherwise. A stale stored record beats a failed refresh.
func (s *Syncer) ShowIfStale(ctx context.Context, id string) (*data.Show, error) {
	if id == "" {
		return nil, fmt.Errorf("no show id")
	}

	stored, err := s.store.GetShow(ctx, id)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		logging.Warn().Err(err).Str("show", id).Msg("show read failed, refetching")
		stored = nil
	}
	if stored != nil && s.now().Sub(stored.UpdatedAt) < s.showTTL {
		return stored, nil
	}

	ev, err := s.fetchEvent(ctx, id)
	if err != nil {
		if stored != nil {
			logging.Warn().Err(err).Str("show", id).Msg("refresh failed, serving stale show")
			return stored, nil
		}
		return nil, fmt.Errorf("error refreshing show '%s': %w", id, err)
	}
	return s.SyncEvent(ctx, ev)
}

// PopulateTracks fetches the artist's track catalog and stores it as one
// whole snapshot. An empty catalog is not written, so the absent snapshot
// keeps marking the artist as needing population. The fetched tracks are
// returned even when the store write fails: data in hand is served, not
// discarded.
func (s *Syncer) PopulateTracks(ctx context.Context, artistID, catalogID string) ([]data.Track, error) {
	if artistID == "" || catalogID == "" {
		return nil, fmt.Errorf("track population needs an artist and catalog id")
	}

	start := time.Now()
	tracks, err := s.cat.FetchArtistTracks(ctx, catalogID)
	metrics.ExternalFetches.WithLabelValues("catalog", "artist_tracks").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("error fetching tracks for artist '%s': %w", artistID, err)
	}
	if len(tracks) == 0 {
		logging.Info().Str("artist", artistID).Msg("catalog has no tracks, not writing a snapshot")
		return nil, nil
	}

	snapshot, err := data.EncodeTracks(tracks)
	if err != nil {
		logging.Error().Err(err).Str("artist", artistID).Msg("snapshot encode failed, serving tracks unpersisted")
		return tracks, nil
	}
	if err := s.store.SetArtistTracks(ctx, artistID, snapshot, s.now()); err != nil {
		logging.Error().Err(err).Str("artist", artistID).Msg("snapshot write failed, serving tracks unpersisted")
		return tracks, nil
	}
	return tracks, nil
}

func (s *Syncer) spawnPopulate(artistID, catalogID string) {
	name := fmt.Sprintf("populate-tracks %s", artistID)
	s.tasks.Do(name, func(ctx context.Context) error {
		// A snapshot may have landed between enqueue and run.
		if artist, err := s.store.GetArtist(ctx, artistID); err == nil && artist.HasTracks() {
			return nil
		}
		_, err := s.PopulateTracks(ctx, artistID, catalogID)
		return err
	})
}

// resolveCatalog fills in the artist's catalog identity by name search when
// it's missing. Resolution failures degrade to logs; the artist syncs
// without a catalog id and resolution is retried on the next refresh.
func (s *Syncer) resolveCatalog(ctx context.Context, artist *data.Artist) {
	if artist.CatalogID != "" || artist.Name == "" {
		return
	}

	start := time.Now()
	resolved, err := s.cat.ResolveArtist(ctx, artist.Name)
	metrics.ExternalFetches.WithLabelValues("catalog", "resolve_artist").Observe(time.Since(start).Seconds())
	if errors.Is(err, catalog.ErrNoMatch) {
		logging.Debug().Str("artist", artist.ID).Str("name", artist.Name).Msg("no catalog match")
		return
	}
	if err != nil {
		logging.Warn().Err(err).Str("artist", artist.ID).Msg("catalog resolution failed")
		return
	}

	artist.CatalogID = resolved.CatalogID
	artist.Popularity = resolved.Popularity
	if artist.ImageURL == "" {
		artist.ImageURL = resolved.ImageURL
	}
	artist.Genres = mergeGenres(artist.Genres, resolved.Genres)
}

func (s *Syncer) fetchAttraction(ctx context.Context, id string) (*data.Artist, error) {
	start := time.Now()
	fetched, err := s.tick.FetchAttraction(ctx, id)
	metrics.ExternalFetches.WithLabelValues("ticketing", "attraction").Observe(time.Since(start).Seconds())
	return fetched, err
}

func (s *Syncer) fetchEvent(ctx context.Context, id string) (*ticketing.Event, error) {
	start := time.Now()
	fetched, err := s.tick.FetchEvent(ctx, id)
	metrics.ExternalFetches.WithLabelValues("ticketing", "event").Observe(time.Since(start).Seconds())
	return fetched, err
}

func (s *Syncer) freshArtist(a *data.Artist) bool {
	return s.now().Sub(a.UpdatedAt) < s.artistTTL && a.HasTracks()
}

func isPermissionDenied(prev error) bool {
	return errors.Is(prev, db.ErrPermissionDenied)
}

// mergeGenres appends catalog genres the ticketing source didn't already
// name, comparing case-insensitively.
func mergeGenres(have, more []string) []string {
	seen := make(map[string]bool, len(have))
	for _, g := range have {
		seen[normalizeGenre(g)] = true
	}
	for _, g := range more {
		if g == "" || seen[normalizeGenre(g)] {
			continue
		}
		seen[normalizeGenre(g)] = true
		have = append(have, g)
	}
	return have
}

func normalizeGenre(g string) string {
	return strings.ToLower(strings.TrimSpace(g))
}
