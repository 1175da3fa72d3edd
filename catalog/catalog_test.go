package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/soundcheck-live/soundcheck/limiter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	return &Client{
		clientID:     "id",
		clientSecret: "secret",
		baseURL:      srv.URL,
		authURL:      srv.URL + "/api/token",
		lim:          limiter.New(filepath.Join(t.TempDir(), "next-req"), 0),
		breaker:      newBreaker(),
	}
}

func serveToken(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"access_token": "tok", "token_type": "Bearer", "expires_in": 3600}`)
}

func TestFetchArtistTracks(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/token":
			serveToken(w)
		case "/v1/artists/4Z8W4fKeB5YxbusRsdQVPb/top-tracks":
			gotAuth = r.Header.Get("Authorization")
			fmt.Fprint(w, `{"tracks": [
				{"id": "t1", "name": "Karma Police", "album": {"id": "al1", "name": "OK Computer"}, "duration_ms": 264000, "preview_url": "https://p.example/t1", "popularity": 81},
				{"id": "t2", "name": "Reckoner", "album": {"id": "al2", "name": "In Rainbows"}, "duration_ms": 290000, "popularity": 74}
			]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cat := testClient(t, srv)
	tracks, err := cat.FetchArtistTracks(context.Background(), "4Z8W4fKeB5YxbusRsdQVPb")
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok", gotAuth)
	require.Len(t, tracks, 2)
	assert.Equal(t, "Karma Police", tracks[0].Name)
	assert.Equal(t, "OK Computer", tracks[0].AlbumName)
	assert.Equal(t, int64(264000), tracks[0].DurationMS)
	assert.Equal(t, "https://p.example/t1", tracks[0].PreviewURL)
	assert.Empty(t, tracks[1].PreviewURL)
}

func TestFetchArtistTracksEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/token" {
			serveToken(w)
			return
		}
		fmt.Fprint(w, `{"tracks": []}`)
	}))
	defer srv.Close()

	cat := testClient(t, srv)
	tracks, err := cat.FetchArtistTracks(context.Background(), "whoever")
	require.NoError(t, err)
	assert.Empty(t, tracks)
}

func TestResolveArtistPrefersExactMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/token" {
			serveToken(w)
			return
		}
		assert.Equal(t, `artist:"Low"`, r.URL.Query().Get("query"))
		fmt.Fprint(w, `{"artists": {"items": [
			{"id": "c-lowroar", "name": "Low Roar", "popularity": 60, "images": []},
			{"id": "c-low", "name": "low", "popularity": 55, "genres": ["slowcore"], "images": [
				{"height": 64, "width": 64, "url": "https://img.example/small"},
				{"height": 640, "width": 640, "url": "https://img.example/big"}
			]}
		]}}`)
	}))
	defer srv.Close()

	cat := testClient(t, srv)
	artist, err := cat.ResolveArtist(context.Background(), "Low")
	require.NoError(t, err)

	assert.Equal(t, "c-low", artist.CatalogID)
	assert.Equal(t, "https://img.example/big", artist.ImageURL)
	assert.Equal(t, []string{"slowcore"}, artist.Genres)
}

func TestResolveArtistNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/token" {
			serveToken(w)
			return
		}
		fmt.Fprint(w, `{"artists": {"items": []}}`)
	}))
	defer srv.Close()

	cat := testClient(t, srv)
	_, err := cat.ResolveArtist(context.Background(), "nobody anyone has heard of")
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestGetRetriesAfterRateLimit(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/token" {
			serveToken(w)
			return
		}
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"tracks": []}`)
	}))
	defer srv.Close()

	cat := testClient(t, srv)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := cat.FetchArtistTracks(ctx, "whoever")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/token" {
			serveToken(w)
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cat := testClient(t, srv)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := cat.FetchArtistTracks(ctx, "whoever")
		require.Error(t, err)
	}

	_, err := cat.FetchArtistTracks(ctx, "whoever")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}
