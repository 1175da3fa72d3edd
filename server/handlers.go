package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/soundcheck-live/soundcheck/auth"
	"github.com/soundcheck-live/soundcheck/db"
	"github.com/soundcheck-live/soundcheck/logging"
	"github.com/soundcheck-live/soundcheck/setlist"
	"github.com/soundcheck-live/soundcheck/ticketing"
	"github.com/soundcheck-live/soundcheck/trackcache"
)

func (s *Server) handleShowView(w http.ResponseWriter, r *http.Request) {
	view, err := s.agg.View(r.Context(), chi.URLParam(r, "showID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "no show id")
		return
	}

	// The view renders whatever loaded; only a show that exists nowhere
	// is a 404, and even then the body carries the live session state.
	status := http.StatusOK
	if view.NotFound() {
		status = http.StatusNotFound
	}
	writeJSON(w, status, view)
}

func (s *Server) handleLoadTracks(w http.ResponseWriter, r *http.Request) {
	showID := chi.URLParam(r, "showID")
	if err := s.agg.LoadTracks(r.Context(), showID); err != nil {
		writeError(w, showStatus(err), "cannot load tracks for this show")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "loading"})
}

func (s *Server) handleArtistTracks(w http.ResponseWriter, r *http.Request) {
	opts := trackcache.DefaultOptions()
	var ok bool
	if opts.Immediate, ok = boolParam(w, r, "immediate", opts.Immediate); !ok {
		return
	}
	if opts.PrioritizeStored, ok = boolParam(w, r, "prioritize_stored", opts.PrioritizeStored); !ok {
		return
	}

	res, err := s.cache.Tracks(r.Context(), chi.URLParam(r, "artistID"), r.URL.Query().Get("catalog_id"), opts)
	if err != nil {
		writeError(w, http.StatusBadGateway, "track catalog unavailable")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRefetchTracks(w http.ResponseWriter, r *http.Request) {
	res, err := s.cache.Refetch(r.Context(), chi.URLParam(r, "artistID"), r.URL.Query().Get("catalog_id"))
	if err != nil {
		writeError(w, http.StatusBadGateway, "track catalog unavailable")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleArtistShows(w http.ResponseWriter, r *http.Request) {
	shows, err := s.agg.ArtistShows(r.Context(), chi.URLParam(r, "artistID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "error listing shows")
		return
	}
	writeJSON(w, http.StatusOK, shows)
}

type addSongRequest struct {
	TrackID string `json:"trackId"`
}

func (s *Server) handleAddSong(w http.ResponseWriter, r *http.Request) {
	var req addSongRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	session, err := s.agg.Session(r.Context(), chi.URLParam(r, "showID"))
	if err != nil {
		writeError(w, showStatus(err), "show unavailable")
		return
	}

	entry, err := session.AddSong(r.Context(), req.TrackID)
	switch {
	case errors.Is(err, setlist.ErrNoTrackSelected):
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, setlist.ErrUnknownTrack):
		writeError(w, http.StatusUnprocessableEntity, "track is not in the artist's catalog")
	case err != nil:
		writeError(w, http.StatusInternalServerError, "error adding song")
	default:
		writeJSON(w, http.StatusCreated, entry)
	}
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	session, err := s.agg.Session(r.Context(), chi.URLParam(r, "showID"))
	if err != nil {
		writeError(w, showStatus(err), "show unavailable")
		return
	}

	p := auth.FromContext(r.Context())
	entry, err := session.Vote(r.Context(), p, chi.URLParam(r, "songID"))
	switch {
	case errors.Is(err, setlist.ErrQuotaExceeded):
		writeJSON(w, http.StatusForbidden, map[string]string{
			"error":    "vote limit reached, log in to keep voting",
			"loginUrl": s.auth.LoginURL(),
		})
	case errors.Is(err, setlist.ErrUnknownSong):
		writeError(w, http.StatusUnprocessableEntity, "song is not on the setlist")
	case err != nil:
		writeError(w, http.StatusInternalServerError, "error voting")
	default:
		writeJSON(w, http.StatusOK, entry)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	s.hub.HandleWS(w, r, chi.URLParam(r, "showID"))
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// showStatus maps a show resolution failure to a response code: unknown
// shows are 404, a broken upstream is 502.
func showStatus(err error) int {
	if errors.Is(err, db.ErrNotFound) || errors.Is(err, ticketing.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusBadGateway
}

func boolParam(w http.ResponseWriter, r *http.Request, name string, def bool) (bool, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, name+" must be a boolean")
		return false, false
	}
	return v, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug().Err(err).Msg("error encoding response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
