// Package setlist is the collaborative voting engine. Each show has one
// Session holding the proposed songs and their votes, guarded by a single
// mutex: correctness before parallelism at this scale.
//
// Sessions validate against the artist's stored track catalog, enforce the
// anonymous vote quota through an injected ledger, and emit an event for
// every accepted mutation. Event delivery is at-least-once and unordered;
// events carry the absolute vote count so consumers converge regardless.
package setlist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/soundcheck-live/soundcheck/auth"
	"github.com/soundcheck-live/soundcheck/data"
	"github.com/soundcheck-live/soundcheck/logging"
	"github.com/soundcheck-live/soundcheck/metrics"
	"github.com/soundcheck-live/soundcheck/trackcache"
)

var (
	// ErrNoTrackSelected means the add carried no track id. Callers treat
	// it as a silent no-op.
	ErrNoTrackSelected = errors.New("no track selected")

	// ErrUnknownTrack means the track isn't in the artist's catalog.
	ErrUnknownTrack = errors.New("track not in the artist's catalog")

	// ErrUnknownSong means the vote targets a song that isn't on the
	// setlist.
	ErrUnknownSong = errors.New("song not on the setlist")

	// ErrQuotaExceeded means the anonymous participant has spent their
	// vote allowance for this show. Logging in lifts the limit.
	ErrQuotaExceeded = errors.New("anonymous vote quota exceeded")
)

const (
	EventSongAdded = "song_added"
	EventVoteCast  = "vote_cast"
)

// An Event describes one accepted setlist mutation. Votes is the absolute
// count after the mutation, not a delta.
type Event struct {
	Type     string     `json:"type"`
	ShowID   string     `json:"showId"`
	Song     data.Track `json:"song"`
	Votes    int64      `json:"votes"`
	Position int        `json:"position"`
	At       time.Time  `json:"at"`
}

// A Publisher fans accepted mutations out to live listeners. Publish
// failures are logged and swallowed: the vote stands whether or not anyone
// hears about it.
type Publisher interface {
	Publish(ev Event) error
}

// A Quota spends one vote from an anonymous session's allowance, reporting
// false when the allowance is exhausted.
type Quota interface {
	Spend(ctx context.Context, showID, sessionID string) (bool, error)
}

// A Recorder persists accepted mutations outside the process. Failures are
// logged and swallowed.
type Recorder interface {
	RecordAdd(ctx context.Context, showID string, entry data.SetlistEntry) error
	RecordVote(ctx context.Context, showID string, entry data.SetlistEntry) error
}

type nopQuota struct{}

func (nopQuota) Spend(context.Context, string, string) (bool, error) { return true, nil }

type nopPublisher struct{}

func (nopPublisher) Publish(Event) error { return nil }

type nopRecorder struct{}

func (nopRecorder) RecordAdd(context.Context, string, data.SetlistEntry) error  { return nil }
func (nopRecorder) RecordVote(context.Context, string, data.SetlistEntry) error { return nil }

type Engine struct {
	mu       sync.Mutex
	sessions map[string]*Session

	quota    Quota
	pub      Publisher
	rec      Recorder
	loginURL string
	now      func() time.Time
}

// New creates the engine. quota, pub, and rec may each be nil: a nil quota
// means anonymous votes are unlimited, and a nil pub or rec keeps mutations in
// memory only.
func New(quota Quota, pub Publisher, rec Recorder, loginURL string) *Engine {
	if quota == nil {
		quota = nopQuota{}
	}
	if pub == nil {
		pub = nopPublisher{}
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Engine{
		sessions: map[string]*Session{},
		quota:    quota,
		pub:      pub,
		rec:      rec,
		loginURL: loginURL,
		now:      time.Now,
	}
}

// LoginURL is where quota-limited participants go to lift the limit.
func (e *Engine) LoginURL() string { return e.loginURL }

// Session returns the show's voting session, creating an empty one on first
// touch. Sessions live for the engine's lifetime.
func (e *Engine) Session(showID string) *Session {
	e.mu.Lock()
	defer e.mu.Unlock()

	if s, ok := e.sessions[showID]; ok {
		return s
	}
	s := &Session{
		eng:     e,
		showID:  showID,
		index:   map[string]int{},
		present: map[string]int{},
	}
	e.sessions[showID] = s
	return s
}

// A Session is one show's setlist state. All methods are safe for concurrent
// use; a single mutex serializes mutations.
type Session struct {
	mu     sync.Mutex
	eng    *Engine
	showID string

	// catalog is the artist's stored track snapshot; index maps track id
	// to its catalog position.
	catalog    []data.Track
	index      map[string]int
	catalogVer int

	// entries is insertion-ordered and append-only; present maps song id
	// to its entry index.
	entries []data.SetlistEntry
	present map[string]int

	// availability memo, valid for one (catalog version, setlist length)
	// pair. The setlist only grows, so its length is a sound version.
	memo        []data.Track
	memoVer     int
	memoEntries int
	memoValid   bool
}

// SetCatalog installs the artist's track catalog. Setting the same catalog
// again is a no-op, so read paths can call it on every request.
func (s *Session) SetCatalog(tracks []data.Track) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sameCatalog(s.catalog, tracks) {
		return
	}

	s.catalog = make([]data.Track, len(tracks))
	copy(s.catalog, tracks)
	s.index = make(map[string]int, len(tracks))
	for i, track := range s.catalog {
		s.index[track.ID] = i
	}
	s.catalogVer++
	s.memoValid = false
}

// HasCatalog reports whether a track catalog has been installed.
func (s *Session) HasCatalog() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.catalog) > 0
}

// AddSong proposes a catalog track for the setlist. Adding a song that is
// already proposed returns the existing entry unchanged; its votes are never
// reset.
func (s *Session) AddSong(ctx context.Context, trackID string) (data.SetlistEntry, error) {
	if trackID == "" {
		return data.SetlistEntry{}, ErrNoTrackSelected
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.present[trackID]; ok {
		return s.entries[i], nil
	}

	ci, ok := s.index[trackID]
	if !ok {
		return data.SetlistEntry{}, fmt.Errorf("error adding song '%s': %w", trackID, ErrUnknownTrack)
	}

	entry := data.SetlistEntry{
		Song:     s.catalog[ci],
		Votes:    0,
		Position: len(s.entries),
	}
	s.entries = append(s.entries, entry)
	s.present[trackID] = entry.Position
	s.memoValid = false

	metrics.SongsAdded.Inc()
	s.eng.emit(ctx, EventSongAdded, s.showID, entry)
	if err := s.eng.rec.RecordAdd(ctx, s.showID, entry); err != nil {
		logging.Warn().Err(err).Str("show", s.showID).Msg("recorder add failed")
	}
	return entry, nil
}

// Vote casts one vote for a song already on the setlist. Anonymous
// participants spend from their per-show allowance first; when the ledger
// itself is broken the vote is allowed rather than blocked.
func (s *Session) Vote(ctx context.Context, p auth.Participant, songID string) (data.SetlistEntry, error) {
	if songID == "" {
		metrics.VotesRejected.WithLabelValues("unknown_song").Inc()
		return data.SetlistEntry{}, fmt.Errorf("error voting: %w", ErrUnknownSong)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.present[songID]
	if !ok {
		metrics.VotesRejected.WithLabelValues("unknown_song").Inc()
		return data.SetlistEntry{}, fmt.Errorf("error voting for '%s': %w", songID, ErrUnknownSong)
	}

	if !p.Authenticated {
		allowed, err := s.eng.quota.Spend(ctx, s.showID, p.ID)
		if err != nil {
			logging.Error().Err(err).Str("show", s.showID).Msg("quota ledger failed, allowing vote")
		} else if !allowed {
			metrics.VotesRejected.WithLabelValues("quota").Inc()
			return s.entries[i], ErrQuotaExceeded
		}
	}

	s.entries[i].Votes++
	entry := s.entries[i]

	metrics.VotesCast.WithLabelValues(participantClass(p)).Inc()
	s.eng.emit(ctx, EventVoteCast, s.showID, entry)
	if err := s.eng.rec.RecordVote(ctx, s.showID, entry); err != nil {
		logging.Warn().Err(err).Str("show", s.showID).Msg("recorder vote failed")
	}
	return entry, nil
}

// Entries returns the setlist in insertion order.
func (s *Session) Entries() []data.SetlistEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]data.SetlistEntry, len(s.entries))
	copy(entries, s.entries)
	return entries
}

// AvailableTracks returns the catalog tracks not yet proposed, in catalog
// order. The computation is memoized on the (catalog, setlist) pair.
func (s *Session) AvailableTracks() []data.Track {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.memoValid && s.memoVer == s.catalogVer && s.memoEntries == len(s.entries) {
		return s.memo
	}

	s.memo = trackcache.AvailableTracks(s.catalog, s.entries)
	s.memoVer = s.catalogVer
	s.memoEntries = len(s.entries)
	s.memoValid = true
	return s.memo
}

func (e *Engine) emit(ctx context.Context, eventType, showID string, entry data.SetlistEntry) {
	ev := Event{
		Type:     eventType,
		ShowID:   showID,
		Song:     entry.Song,
		Votes:    entry.Votes,
		Position: entry.Position,
		At:       e.now(),
	}
	if err := e.pub.Publish(ev); err != nil {
		logging.Warn().Err(err).Str("show", showID).Str("type", eventType).Msg("event publish failed")
	}
}

func participantClass(p auth.Participant) string {
	if p.Authenticated {
		return "authenticated"
	}
	return "anonymous"
}

func sameCatalog(a, b []data.Track) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}
