// Package trackcache is the read path for artist track catalogs. The stored
// snapshot is authoritative: when one exists the external catalog source is
// not consulted at all, which is what keeps repeat page loads from hammering
// the catalog API. When no snapshot exists yet, the cache either fetches
// inline or triggers a background population, per the caller's options.
package trackcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/soundcheck-live/soundcheck/data"
	"github.com/soundcheck-live/soundcheck/db"
	"github.com/soundcheck-live/soundcheck/logging"
	"github.com/soundcheck-live/soundcheck/metrics"
)

// initialSongCount is how many tracks InitialSongs suggests as setlist
// starters.
const initialSongCount = 5

// Store is the snapshot read surface. *db.DB implements it.
type Store interface {
	GetArtist(ctx context.Context, id string) (*data.Artist, error)
}

// A Populator fetches an artist's catalog and stores the snapshot. The
// syncer implements it.
type Populator interface {
	PopulateTracks(ctx context.Context, artistID, catalogID string) ([]data.Track, error)
}

// A Spawner runs population in the background for deferred reads.
type Spawner interface {
	Do(name string, run func(context.Context) error) bool
}

type Cache struct {
	store Store
	pop   Populator
	tasks Spawner
}

func New(store Store, pop Populator, tasks Spawner) *Cache {
	return &Cache{store: store, pop: pop, tasks: tasks}
}

type Options struct {
	// Immediate performs the external fetch inside this call when no
	// snapshot is stored. When false, the fetch is triggered in the
	// background instead and the result reports Pending.
	Immediate bool

	// PrioritizeStored serves the stored snapshot when one exists, without
	// consulting the external source. Turning it off forces a fresh fetch,
	// falling back to the stored snapshot if the fetch fails.
	PrioritizeStored bool
}

// DefaultOptions is the ordinary read path: stored snapshot first, inline
// fetch when there isn't one.
func DefaultOptions() Options {
	return Options{Immediate: true, PrioritizeStored: true}
}

type Result struct {
	Tracks []data.Track `json:"tracks"`

	// Stored reports the tracks came from the persisted snapshot rather
	// than a fetch performed by this call.
	Stored bool `json:"stored"`

	// Pending reports that no tracks are available yet but a background
	// population has been triggered.
	Pending bool `json:"pending"`

	// FetchedAt is when the snapshot was taken, or when this call fetched.
	FetchedAt time.Time `json:"fetchedAt"`
}

// InitialSongs returns up to five tracks to seed song suggestions, in the
// catalog's order (the catalog source lists an artist's top tracks first).
func (r *Result) InitialSongs() []data.Track {
	if len(r.Tracks) <= initialSongCount {
		return r.Tracks
	}
	return r.Tracks[:initialSongCount]
}

// Tracks returns the artist's track catalog per the options. An artist with
// no catalog id yields an empty result: there is nothing to fetch against
// until a sync resolves one.
func (c *Cache) Tracks(ctx context.Context, artistID, catalogID string, opts Options) (*Result, error) {
	if artistID == "" {
		return nil, fmt.Errorf("no artist id")
	}

	if opts.PrioritizeStored {
		if res := c.stored(ctx, artistID); res != nil {
			metrics.SnapshotReads.WithLabelValues("hit").Inc()
			return res, nil
		}
		metrics.SnapshotReads.WithLabelValues("miss").Inc()
	}

	if catalogID == "" {
		return &Result{}, nil
	}

	if !opts.Immediate {
		queued := c.tasks.Do("populate-tracks "+artistID, func(ctx context.Context) error {
			_, err := c.pop.PopulateTracks(ctx, artistID, catalogID)
			return err
		})
		return &Result{Pending: queued}, nil
	}

	tracks, err := c.pop.PopulateTracks(ctx, artistID, catalogID)
	if err != nil {
		if !opts.PrioritizeStored {
			// Forced-refresh path: the stored snapshot is better than an
			// error.
			if res := c.stored(ctx, artistID); res != nil {
				logging.Warn().Err(err).Str("artist", artistID).Msg("refetch failed, serving stored snapshot")
				return res, nil
			}
		}
		return nil, fmt.Errorf("error fetching tracks for artist '%s': %w", artistID, err)
	}
	return &Result{Tracks: tracks, FetchedAt: time.Now()}, nil
}

// Refetch forces a fresh external fetch and snapshot rewrite, falling back
// to the stored snapshot when the fetch fails.
func (c *Cache) Refetch(ctx context.Context, artistID, catalogID string) (*Result, error) {
	return c.Tracks(ctx, artistID, catalogID, Options{Immediate: true, PrioritizeStored: false})
}

// stored returns the persisted snapshot, or nil when there isn't a usable
// one. Store failures degrade to a miss.
func (c *Cache) stored(ctx context.Context, artistID string) *Result {
	artist, err := c.store.GetArtist(ctx, artistID)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			logging.Warn().Err(err).Str("artist", artistID).Msg("snapshot read failed")
		}
		return nil
	}
	if !artist.HasTracks() {
		return nil
	}

	tracks, err := artist.Tracks()
	if err != nil || len(tracks) == 0 {
		if err != nil {
			logging.Error().Err(err).Str("artist", artistID).Msg("stored snapshot is corrupt")
		}
		return nil
	}

	res := &Result{Tracks: tracks, Stored: true}
	if artist.TracksUpdatedAt.Valid {
		res.FetchedAt = artist.TracksUpdatedAt.Time
	}
	return res
}

// AvailableTracks returns the tracks whose songs are not yet on the setlist,
// preserving the catalog's order.
func AvailableTracks(stored []data.Track, setlist []data.SetlistEntry) []data.Track {
	taken := make(map[string]bool, len(setlist))
	for _, entry := range setlist {
		taken[entry.Song.ID] = true
	}

	available := make([]data.Track, 0, len(stored))
	for _, track := range stored {
		if !taken[track.ID] {
			available = append(available, track)
		}
	}
	return available
}
