// Package server is the HTTP surface: the show-page aggregate, the track
// cache, setlist mutations, the websocket event stream, and the operational
// endpoints.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/soundcheck-live/soundcheck/auth"
	"github.com/soundcheck-live/soundcheck/logging"
	"github.com/soundcheck-live/soundcheck/metrics"
	"github.com/soundcheck-live/soundcheck/realtime"
	"github.com/soundcheck-live/soundcheck/showdetail"
	"github.com/soundcheck-live/soundcheck/trackcache"
)

type Server struct {
	addr     string
	shutdown time.Duration
	agg      *showdetail.Aggregator
	cache    *trackcache.Cache
	hub      *realtime.Hub
	auth     auth.Provider
}

// New creates the server. shutdown bounds how long Serve waits for in-flight
// requests once its context is canceled; zero means 10 seconds.
func New(addr string, shutdown time.Duration, agg *showdetail.Aggregator, cache *trackcache.Cache, hub *realtime.Hub, authp auth.Provider) *Server {
	if shutdown <= 0 {
		shutdown = 10 * time.Second
	}
	return &Server{
		addr:     addr,
		shutdown: shutdown,
		agg:      agg,
		cache:    cache,
		hub:      hub,
		auth:     authp,
	}
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.auth.Middleware)

		r.Route("/shows/{showID}", func(r chi.Router) {
			r.Get("/", s.handleShowView)
			r.Post("/tracks", s.handleLoadTracks)
			r.Get("/ws", s.handleWS)
			r.Post("/setlist", s.handleAddSong)
			r.Post("/setlist/{songID}/votes", s.handleVote)
		})

		r.Route("/artists/{artistID}", func(r chi.Router) {
			r.Get("/tracks", s.handleArtistTracks)
			r.Post("/tracks/refetch", s.handleRefetchTracks)
			r.Get("/shows", s.handleArtistShows)
		})
	})

	return r
}

// Serve runs the server until ctx is cancelled, then drains in-flight
// requests. Hijacked websocket connections are not drained here; the hub
// closes them when it stops.
func (s *Server) Serve(ctx context.Context) error {
	srv := http.Server{
		Addr:              s.addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logging.Info().Str("addr", s.addr).Msg("http server listening")

	errs := make(chan error)
	go func() { errs <- srv.ListenAndServe() }()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errs; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return ctx.Err()
	}
}

func (s *Server) String() string { return "http-server" }

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		metrics.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(ww.Status())).Inc()
		logging.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("remote", r.RemoteAddr).
			Msg("request")
	})
}
