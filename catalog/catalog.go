// Package catalog is a client for the music-catalog service, which we use to
// resolve artists and fetch their track catalogs.
//
// The service rate limits aggressively. Requests flow through a persistent
// limiter that honors Retry-After cooldowns across restarts, and through a
// circuit breaker so that a catalog outage degrades reads instead of hanging
// them.
package catalog

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"github.com/soundcheck-live/soundcheck/data"
	"github.com/soundcheck-live/soundcheck/limiter"
	"github.com/soundcheck-live/soundcheck/logging"
	"github.com/soundcheck-live/soundcheck/request"
)

const nextReqFilename = "catalog-next-req"

// ErrNoMatch means an artist search returned nothing usable.
var ErrNoMatch = fmt.Errorf("no matching artist")

// New creates a catalog client with the given OAuth client credentials.
func New(clientID, clientSecret string) *Client {
	lim := limiter.New(nextReqFilename, time.Second/10)
	if err := lim.Load(); err != nil {
		logging.Warn().Err(err).Msg("ignoring persisted catalog cooldown")
	}
	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		baseURL:      "https://api.spotify.com",
		authURL:      "https://accounts.spotify.com/api/token",
		lim:          lim,
		breaker:      newBreaker(),
		delay:        time.Second / 10,
	}
}

type Client struct {
	mu sync.Mutex

	clientID     string
	clientSecret string

	baseURL string
	authURL string

	lim     *limiter.Limiter
	breaker *gobreaker.CircuitBreaker[*http.Response]
	delay   time.Duration

	accessToken string
	expiresAt   time.Time
}

func newBreaker() *gobreaker.CircuitBreaker[*http.Response] {
	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "catalog-api",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})
}

// ResolveArtist searches the catalog for an artist by name. It prefers an
// exact (case-insensitive) name match and falls back to the service's top
// hit. The returned artist carries the catalog id, image, popularity, and
// genre names; the caller keys it however it likes.
func (cat *Client) ResolveArtist(ctx context.Context, name string) (*data.Artist, error) {
	if name == "" {
		return nil, fmt.Errorf("no artist name")
	}

	query := url.Values{}
	query.Add("query", fmt.Sprintf(`artist:"%s"`, name))
	query.Add("type", "artist")
	query.Add("limit", "10")

	resp, err := cat.get(ctx, "/v1/search", query)
	if err != nil {
		return nil, err
	}

	defer resp.Close()
	var results artistSearchResults
	dec := json.NewDecoder(resp)
	if err := dec.Decode(&results); err != nil {
		return nil, fmt.Errorf("artist search decode error: %w", err)
	}

	items := results.Artists.Items
	if len(items) == 0 {
		return nil, fmt.Errorf("error resolving artist '%s': %w", name, ErrNoMatch)
	}

	best := items[0]
	for _, item := range items {
		if strings.EqualFold(item.Name, name) {
			best = item
			break
		}
	}

	var imageURL string
	var maxSize int64
	for _, image := range best.Images {
		if image.Width > maxSize {
			imageURL = image.URL
			maxSize = image.Width
		}
	}

	return &data.Artist{
		CatalogID:  best.ID,
		Name:       best.Name,
		ImageURL:   imageURL,
		Popularity: best.Popularity,
		Genres:     best.Genres,
	}, nil
}

type artistSearchResults struct {
	Artists struct {
		Items []struct {
			ID     string
			Name   string
			Genres []string
			Images []struct {
				Height int64
				Width  int64
				URL    string
			}
			Popularity int64
		}
	}
}

// FetchArtistTracks returns the artist's current top tracks from the catalog.
// An artist the service knows but has no tracks for decodes to an empty
// slice, not an error.
func (cat *Client) FetchArtistTracks(ctx context.Context, catalogID string) ([]data.Track, error) {
	if catalogID == "" {
		return nil, fmt.Errorf("no catalog id")
	}

	resp, err := cat.get(ctx, fmt.Sprintf("/v1/artists/%s/top-tracks", catalogID), nil)
	if err != nil {
		return nil, err
	}

	defer resp.Close()
	var results topTracksResults
	dec := json.NewDecoder(resp)
	if err := dec.Decode(&results); err != nil {
		return nil, fmt.Errorf("top tracks decode error: %w", err)
	}

	tracks := make([]data.Track, len(results.Tracks))
	for i, track := range results.Tracks {
		tracks[i] = data.Track{
			ID:         track.ID,
			Name:       track.Name,
			AlbumName:  track.Album.Name,
			DurationMS: track.DurationMS,
			PreviewURL: track.PreviewURL,
			Popularity: track.Popularity,
		}
	}

	return tracks, nil
}

type topTracksResults struct {
	Tracks []struct {
		ID   string
		Name string

		Album struct {
			ID   string
			Name string
		}

		DurationMS int64  `json:"duration_ms"`
		PreviewURL string `json:"preview_url"`
		Popularity int64
	}
}

func (cat *Client) get(ctx context.Context, path string, query url.Values) (io.ReadCloser, error) {
	cat.mu.Lock()
	defer cat.mu.Unlock()

retry:
	if err := cat.lim.Wait(ctx); err != nil {
		return nil, err
	}

	u, err := url.Parse(cat.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("request error: %w", err)
	}
	u.RawQuery = query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("request error: %w", err)
	}

	token, err := cat.token(ctx)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", token)

	resp, err := cat.breaker.Execute(func() (*http.Response, error) {
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request error: %w", err)
		}
		if resp.StatusCode >= 500 {
			err := request.Error(resp)
			resp.Body.Close()
			return nil, fmt.Errorf("fetch error: %w", err)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		cat.delay = 2 * cat.delay
		retryAfter := resp.Header.Get("Retry-After")
		resp.Body.Close()
		if err := cat.lim.SetNextAt(retryAfter); err != nil {
			return nil, err
		}
		logging.Warn().
			Str("retry_after", retryAfter).
			Msg("catalog rate limited")
		goto retry
	}
	if err := request.Error(resp); err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch error: %w", err)
	}

	cat.lim.DelayBy(cat.delay)

	return resp.Body, nil
}

type tokenResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (cat *Client) token(ctx context.Context) (string, error) {
	if cat.accessToken == "" || cat.expiresAt.Before(time.Now().Add(time.Second)) {
		if err := cat.fetchToken(ctx); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("Bearer %s", cat.accessToken), nil
}

func (cat *Client) fetchToken(ctx context.Context) error {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cat.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("token request error: %w", err)
	}
	up := fmt.Sprintf("%s:%s", cat.clientID, cat.clientSecret)
	credential := base64.StdEncoding.EncodeToString([]byte(up))
	req.Header.Set("Authorization", fmt.Sprintf("Basic %s", credential))
	req.Header.Set("Content-type", "application/x-www-form-urlencoded")

	requestAt := time.Now()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("token request error: %w", err)
	}
	defer resp.Body.Close()
	if err := request.Error(resp); err != nil {
		return fmt.Errorf("token fetch error: %w", err)
	}

	var result tokenResult
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&result); err != nil {
		return fmt.Errorf("token decode error: %w", err)
	}

	cat.accessToken = result.AccessToken
	cat.expiresAt = requestAt.Add(time.Duration(result.ExpiresIn) * time.Second)

	return nil
}
