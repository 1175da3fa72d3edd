package syncer_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundcheck-live/soundcheck/catalog"
	"github.com/soundcheck-live/soundcheck/data"
	"github.com/soundcheck-live/soundcheck/db"
	"github.com/soundcheck-live/soundcheck/syncer"
	"github.com/soundcheck-live/soundcheck/ticketing"
)

type fakeStore struct {
	mu      sync.Mutex
	artists map[string]data.Artist
	shows   map[string]data.Show
	venues  map[string]data.Venue
	genres  map[string]data.Genre

	upsertErr    error
	insertErr    error
	setTracksErr error

	upserts    int
	inserts    int
	trackSets  int
	artistGets int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		artists: map[string]data.Artist{},
		shows:   map[string]data.Show{},
		venues:  map[string]data.Venue{},
		genres:  map[string]data.Genre{},
	}
}

func (f *fakeStore) GetArtist(ctx context.Context, id string) (*data.Artist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.artistGets++
	a, ok := f.artists[id]
	if !ok {
		return nil, fmt.Errorf("error getting artist '%s': %w", id, db.ErrNotFound)
	}
	return &a, nil
}

func (f *fakeStore) UpsertArtist(ctx context.Context, artist *data.Artist) (*data.Artist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	incoming := *artist
	if existing, ok := f.artists[artist.ID]; ok {
		// Metadata refreshes leave the snapshot columns alone, same as the
		// real store.
		incoming.TracksJSON = existing.TracksJSON
		incoming.TracksUpdatedAt = existing.TracksUpdatedAt
	}
	f.artists[artist.ID] = incoming
	return &incoming, nil
}

func (f *fakeStore) InsertArtistOnly(ctx context.Context, artist *data.Artist) (*data.Artist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	if existing, ok := f.artists[artist.ID]; ok {
		return &existing, nil
	}
	f.artists[artist.ID] = *artist
	a := *artist
	return &a, nil
}

func (f *fakeStore) SetArtistTracks(ctx context.Context, id string, tracksJSON []byte, fetchedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trackSets++
	if f.setTracksErr != nil {
		return f.setTracksErr
	}
	a, ok := f.artists[id]
	if !ok {
		return fmt.Errorf("error storing tracks for artist '%s': %w", id, db.ErrNotFound)
	}
	a.TracksJSON = tracksJSON
	a.TracksUpdatedAt.Time, a.TracksUpdatedAt.Valid = fetchedAt, true
	f.artists[id] = a
	return nil
}

func (f *fakeStore) GetShow(ctx context.Context, id string) (*data.Show, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.shows[id]
	if !ok {
		return nil, fmt.Errorf("error getting show '%s': %w", id, db.ErrNotFound)
	}
	return &s, nil
}

func (f *fakeStore) UpsertShow(ctx context.Context, show *data.Show) (*data.Show, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	f.shows[show.ID] = *show
	s := *show
	return &s, nil
}

func (f *fakeStore) InsertShowOnly(ctx context.Context, show *data.Show) (*data.Show, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	if existing, ok := f.shows[show.ID]; ok {
		return &existing, nil
	}
	f.shows[show.ID] = *show
	s := *show
	return &s, nil
}

func (f *fakeStore) UpsertVenue(ctx context.Context, venue *data.Venue) (*data.Venue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	f.venues[venue.ID] = *venue
	v := *venue
	return &v, nil
}

func (f *fakeStore) InsertVenueOnly(ctx context.Context, venue *data.Venue) (*data.Venue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	f.venues[venue.ID] = *venue
	v := *venue
	return &v, nil
}

func (f *fakeStore) UpsertGenre(ctx context.Context, genre *data.Genre) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.genres[genre.ID] = *genre
	return nil
}

type fakeTicketing struct {
	artists map[string]*data.Artist
	events  map[string]*ticketing.Event
	err     error

	attractionCalls int
	eventCalls      int
}

func (f *fakeTicketing) FetchAttraction(ctx context.Context, id string) (*data.Artist, error) {
	f.attractionCalls++
	if f.err != nil {
		return nil, f.err
	}
	a, ok := f.artists[id]
	if !ok {
		return nil, ticketing.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (f *fakeTicketing) FetchEvent(ctx context.Context, id string) (*ticketing.Event, error) {
	f.eventCalls++
	if f.err != nil {
		return nil, f.err
	}
	ev, ok := f.events[id]
	if !ok {
		return nil, ticketing.ErrNotFound
	}
	copied := *ev
	return &copied, nil
}

type fakeCatalog struct {
	resolved map[string]*data.Artist // keyed by name
	tracks   map[string][]data.Track // keyed by catalog id

	resolveErr error
	tracksErr  error

	resolveCalls int
	tracksCalls  int
}

func (f *fakeCatalog) ResolveArtist(ctx context.Context, name string) (*data.Artist, error) {
	f.resolveCalls++
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	a, ok := f.resolved[name]
	if !ok {
		return nil, catalog.ErrNoMatch
	}
	copied := *a
	return &copied, nil
}

func (f *fakeCatalog) FetchArtistTracks(ctx context.Context, catalogID string) ([]data.Track, error) {
	f.tracksCalls++
	if f.tracksErr != nil {
		return nil, f.tracksErr
	}
	return f.tracks[catalogID], nil
}

// fakeSpawner records jobs; RunAll executes them when the test decides.
type fakeSpawner struct {
	names []string
	jobs  []func(context.Context) error
}

func (f *fakeSpawner) Do(name string, run func(context.Context) error) bool {
	f.names = append(f.names, name)
	f.jobs = append(f.jobs, run)
	return true
}

func (f *fakeSpawner) RunAll(ctx context.Context) {
	jobs := f.jobs
	f.jobs = nil
	for _, run := range jobs {
		_ = run(ctx)
	}
}

var testNow = time.Date(2026, time.March, 14, 20, 0, 0, 0, time.UTC)

func newSyncer(store *fakeStore, tick *fakeTicketing, cat *fakeCatalog, spawn *fakeSpawner) *syncer.Syncer {
	return syncer.New(store, tick, cat, spawn, syncer.Options{
		Now: func() time.Time { return testNow },
	})
}

func snapshotFor(t *testing.T, tracks ...data.Track) []byte {
	t.Helper()
	snapshot, err := data.EncodeTracks(tracks)
	require.NoError(t, err)
	return snapshot
}

func TestSyncArtistUpserts(t *testing.T) {
	store := newFakeStore()
	spawn := &fakeSpawner{}
	s := newSyncer(store, &fakeTicketing{}, &fakeCatalog{}, spawn)

	persisted, err := s.SyncArtist(context.Background(), data.Artist{ID: "a1", Name: "Wilco", CatalogID: "cat1"})
	require.NoError(t, err)

	assert.Equal(t, "Wilco", persisted.Name)
	assert.Equal(t, testNow, persisted.UpdatedAt)
	assert.Equal(t, 1, store.upserts)
	assert.Zero(t, store.inserts, "insert-only must not run after a successful upsert")
	assert.Contains(t, store.artists, "a1")
}

func TestSyncArtistRetriesInsertOnlyOnPermissionDenied(t *testing.T) {
	store := newFakeStore()
	store.upsertErr = fmt.Errorf("error upserting artist 'a1': %w", db.ErrPermissionDenied)
	s := newSyncer(store, &fakeTicketing{}, &fakeCatalog{}, &fakeSpawner{})

	persisted, err := s.SyncArtist(context.Background(), data.Artist{ID: "a1", Name: "Wilco"})
	require.NoError(t, err)

	assert.Equal(t, 1, store.upserts)
	assert.Equal(t, 1, store.inserts, "permission denied gets exactly one insert-only retry")
	assert.Equal(t, "Wilco", persisted.Name)
	assert.Contains(t, store.artists, "a1")
}

func TestSyncArtistServesUnpersistedWhenEveryWriteFails(t *testing.T) {
	store := newFakeStore()
	store.upsertErr = fmt.Errorf("error upserting artist 'a1': %w", db.ErrPermissionDenied)
	store.insertErr = errors.New("disk full")
	s := newSyncer(store, &fakeTicketing{}, &fakeCatalog{}, &fakeSpawner{})

	persisted, err := s.SyncArtist(context.Background(), data.Artist{ID: "a1", Name: "Wilco"})
	require.NoError(t, err, "a failed write must not fail the read path")

	assert.Equal(t, "Wilco", persisted.Name)
	assert.Empty(t, store.artists)
}

func TestSyncArtistSkipsInsertOnlyForOtherFailures(t *testing.T) {
	store := newFakeStore()
	store.upsertErr = errors.New("database is locked")
	s := newSyncer(store, &fakeTicketing{}, &fakeCatalog{}, &fakeSpawner{})

	persisted, err := s.SyncArtist(context.Background(), data.Artist{ID: "a1", Name: "Wilco"})
	require.NoError(t, err)

	assert.Zero(t, store.inserts, "insert-only is only for permission denials")
	assert.Equal(t, "Wilco", persisted.Name)
}

func TestSyncArtistResolvesCatalogIdentity(t *testing.T) {
	store := newFakeStore()
	cat := &fakeCatalog{resolved: map[string]*data.Artist{
		"Wilco": {CatalogID: "cat1", Popularity: 70, ImageURL: "https://img/wilco.jpg", Genres: []string{"alt-country", "Rock"}},
	}}
	s := newSyncer(store, &fakeTicketing{}, cat, &fakeSpawner{})

	persisted, err := s.SyncArtist(context.Background(), data.Artist{ID: "a1", Name: "Wilco", Genres: []string{"rock"}})
	require.NoError(t, err)

	assert.Equal(t, "cat1", persisted.CatalogID)
	assert.Equal(t, int64(70), persisted.Popularity)
	assert.Equal(t, "https://img/wilco.jpg", persisted.ImageURL)
	assert.Equal(t, []string{"rock", "alt-country"}, persisted.Genres, "merge keeps order and drops case-insensitive duplicates")
}

func TestSyncArtistSurvivesResolutionFailure(t *testing.T) {
	store := newFakeStore()
	cat := &fakeCatalog{resolveErr: errors.New("upstream 500")}
	s := newSyncer(store, &fakeTicketing{}, cat, &fakeSpawner{})

	persisted, err := s.SyncArtist(context.Background(), data.Artist{ID: "a1", Name: "Wilco"})
	require.NoError(t, err)
	assert.Empty(t, persisted.CatalogID)
	assert.Contains(t, store.artists, "a1")
}

func TestSyncArtistTriggersPopulationInBackground(t *testing.T) {
	store := newFakeStore()
	cat := &fakeCatalog{tracks: map[string][]data.Track{
		"cat1": {{ID: "t1", Name: "Jesus, Etc."}},
	}}
	spawn := &fakeSpawner{}
	s := newSyncer(store, &fakeTicketing{}, cat, spawn)

	_, err := s.SyncArtist(context.Background(), data.Artist{ID: "a1", Name: "Wilco", CatalogID: "cat1"})
	require.NoError(t, err)

	assert.Zero(t, cat.tracksCalls, "the sync call itself must not fetch tracks")
	require.Len(t, spawn.jobs, 1)

	spawn.RunAll(context.Background())
	assert.Equal(t, 1, cat.tracksCalls)
	assert.Equal(t, 1, store.trackSets)
	assert.True(t, store.artists["a1"].HasTracks())
}

func TestPopulationJobSkipsWhenSnapshotLanded(t *testing.T) {
	store := newFakeStore()
	store.artists["a1"] = data.Artist{ID: "a1", CatalogID: "cat1"}
	cat := &fakeCatalog{tracks: map[string][]data.Track{"cat1": {{ID: "t1"}}}}
	spawn := &fakeSpawner{}
	s := newSyncer(store, &fakeTicketing{}, cat, spawn)

	_, err := s.SyncArtist(context.Background(), data.Artist{ID: "a1", CatalogID: "cat1"})
	require.NoError(t, err)
	require.Len(t, spawn.jobs, 1)

	// Someone else populates before the job runs.
	a := store.artists["a1"]
	a.TracksJSON = snapshotFor(t, data.Track{ID: "t0"})
	store.artists["a1"] = a

	spawn.RunAll(context.Background())
	assert.Zero(t, cat.tracksCalls, "a landed snapshot makes the job a no-op")
}

func TestSyncArtistDoesNotTriggerPopulationWithSnapshot(t *testing.T) {
	store := newFakeStore()
	store.artists["a1"] = data.Artist{ID: "a1", CatalogID: "cat1", TracksJSON: snapshotFor(t, data.Track{ID: "t1"})}
	spawn := &fakeSpawner{}
	s := newSyncer(store, &fakeTicketing{}, &fakeCatalog{}, spawn)

	persisted, err := s.SyncArtist(context.Background(), data.Artist{ID: "a1", CatalogID: "cat1"})
	require.NoError(t, err)
	require.True(t, persisted.HasTracks())
	assert.Empty(t, spawn.jobs)
}

func TestPopulateTracksDoesNotWriteEmptySnapshots(t *testing.T) {
	store := newFakeStore()
	store.artists["a1"] = data.Artist{ID: "a1", CatalogID: "cat1"}
	cat := &fakeCatalog{tracks: map[string][]data.Track{}}
	s := newSyncer(store, &fakeTicketing{}, cat, &fakeSpawner{})

	tracks, err := s.PopulateTracks(context.Background(), "a1", "cat1")
	require.NoError(t, err)
	assert.Empty(t, tracks)
	assert.Zero(t, store.trackSets, "an empty catalog result must not be written")
}

func TestPopulateTracksServesFetchedOnWriteFailure(t *testing.T) {
	store := newFakeStore()
	store.setTracksErr = errors.New("readonly database")
	cat := &fakeCatalog{tracks: map[string][]data.Track{"cat1": {{ID: "t1", Name: "Misunderstood"}}}}
	s := newSyncer(store, &fakeTicketing{}, cat, &fakeSpawner{})

	tracks, err := s.PopulateTracks(context.Background(), "a1", "cat1")
	require.NoError(t, err, "the fetched tracks are served even when the write fails")
	require.Len(t, tracks, 1)
	assert.Equal(t, "Misunderstood", tracks[0].Name)
}

func TestPopulateTracksPropagatesFetchFailure(t *testing.T) {
	cat := &fakeCatalog{tracksErr: errors.New("upstream 503")}
	s := newSyncer(newFakeStore(), &fakeTicketing{}, cat, &fakeSpawner{})

	_, err := s.PopulateTracks(context.Background(), "a1", "cat1")
	assert.Error(t, err)
}

func TestArtistIfStaleServesFreshRecord(t *testing.T) {
	store := newFakeStore()
	store.artists["a1"] = data.Artist{
		ID:         "a1",
		CatalogID:  "cat1",
		TracksJSON: snapshotFor(t, data.Track{ID: "t1"}),
		UpdatedAt:  testNow.Add(-time.Hour),
	}
	tick := &fakeTicketing{}
	s := newSyncer(store, tick, &fakeCatalog{}, &fakeSpawner{})

	got, err := s.ArtistIfStale(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "a1", got.ID)
	assert.Zero(t, tick.attractionCalls, "a fresh artist must not hit the ticketing source")
}

func TestArtistIfStaleRefetchesOldRecords(t *testing.T) {
	store := newFakeStore()
	store.artists["a1"] = data.Artist{
		ID:         "a1",
		Name:       "Old Name",
		CatalogID:  "cat1",
		TracksJSON: snapshotFor(t, data.Track{ID: "t1"}),
		UpdatedAt:  testNow.Add(-10 * 24 * time.Hour),
	}
	tick := &fakeTicketing{artists: map[string]*data.Artist{
		"a1": {ID: "a1", Name: "New Name"},
	}}
	s := newSyncer(store, tick, &fakeCatalog{}, &fakeSpawner{})

	got, err := s.ArtistIfStale(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, 1, tick.attractionCalls)
	assert.Equal(t, "New Name", got.Name)
	assert.Equal(t, testNow, got.UpdatedAt)
}

func TestArtistWithoutSnapshotIsNeverFresh(t *testing.T) {
	store := newFakeStore()
	store.artists["a1"] = data.Artist{ID: "a1", UpdatedAt: testNow.Add(-time.Minute)}
	tick := &fakeTicketing{artists: map[string]*data.Artist{"a1": {ID: "a1", Name: "Wilco"}}}
	s := newSyncer(store, tick, &fakeCatalog{}, &fakeSpawner{})

	_, err := s.ArtistIfStale(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, 1, tick.attractionCalls, "a minute-old artist with no snapshot still refreshes")
}

func TestArtistIfStaleServesStaleOverBroken(t *testing.T) {
	store := newFakeStore()
	store.artists["a1"] = data.Artist{ID: "a1", Name: "Wilco", UpdatedAt: testNow.Add(-30 * 24 * time.Hour)}
	tick := &fakeTicketing{err: errors.New("upstream down")}
	s := newSyncer(store, tick, &fakeCatalog{}, &fakeSpawner{})

	got, err := s.ArtistIfStale(context.Background(), "a1")
	require.NoError(t, err, "a stale record beats a failed refresh")
	assert.Equal(t, "Wilco", got.Name)
}

func TestArtistIfStaleErrorsWhenNothingIsAvailable(t *testing.T) {
	tick := &fakeTicketing{}
	s := newSyncer(newFakeStore(), tick, &fakeCatalog{}, &fakeSpawner{})

	_, err := s.ArtistIfStale(context.Background(), "missing")
	assert.ErrorIs(t, err, ticketing.ErrNotFound)
}

func TestShowIfStaleServesFreshRecord(t *testing.T) {
	store := newFakeStore()
	store.shows["s1"] = data.Show{ID: "s1", UpdatedAt: testNow.Add(-time.Hour)}
	tick := &fakeTicketing{}
	s := newSyncer(store, tick, &fakeCatalog{}, &fakeSpawner{})

	got, err := s.ShowIfStale(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID)
	assert.Zero(t, tick.eventCalls)
}

func TestShowIfStaleRefetchesTheWholeEvent(t *testing.T) {
	store := newFakeStore()
	store.shows["s1"] = data.Show{ID: "s1", Name: "Old", UpdatedAt: testNow.Add(-48 * time.Hour)}
	tick := &fakeTicketing{events: map[string]*ticketing.Event{
		"s1": {
			Show:   data.Show{ID: "s1", Name: "Wilco at the Ryman", ArtistID: "a1", VenueID: "v1", GenreIDs: []string{"g1"}},
			Artist: &data.Artist{ID: "a1", Name: "Wilco"},
			Venue:  &data.Venue{ID: "v1", Name: "Ryman Auditorium"},
			Genres: []data.Genre{{ID: "g1", Name: "Rock"}},
		},
	}}
	s := newSyncer(store, tick, &fakeCatalog{}, &fakeSpawner{})

	got, err := s.ShowIfStale(context.Background(), "s1")
	require.NoError(t, err)

	assert.Equal(t, "Wilco at the Ryman", got.Name)
	assert.Contains(t, store.artists, "a1", "the event's artist is synced alongside the show")
	assert.Contains(t, store.venues, "v1", "the event's venue is synced alongside the show")
	assert.Contains(t, store.genres, "g1", "the event's genres are synced alongside the show")
}

func TestShowIfStaleServesStaleOverBroken(t *testing.T) {
	store := newFakeStore()
	store.shows["s1"] = data.Show{ID: "s1", Name: "Wilco at the Ryman", UpdatedAt: testNow.Add(-72 * time.Hour)}
	tick := &fakeTicketing{err: errors.New("upstream down")}
	s := newSyncer(store, tick, &fakeCatalog{}, &fakeSpawner{})

	got, err := s.ShowIfStale(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "Wilco at the Ryman", got.Name)
}

func TestSyncRejectsEmptyIDs(t *testing.T) {
	s := newSyncer(newFakeStore(), &fakeTicketing{}, &fakeCatalog{}, &fakeSpawner{})

	_, err := s.SyncArtist(context.Background(), data.Artist{})
	assert.Error(t, err)
	_, err = s.SyncShow(context.Background(), data.Show{})
	assert.Error(t, err)
	_, err = s.ArtistIfStale(context.Background(), "")
	assert.Error(t, err)
	_, err = s.ShowIfStale(context.Background(), "")
	assert.Error(t, err)
}
