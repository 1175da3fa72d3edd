// Package ticketing is a client for the ticketing service's discovery API: the
// source of truth for attractions (artists), events (shows), and venues.
//
// The wire format is deeply nested and almost everything in it is optional.
// Raw payloads never leave this package: fetches normalize into data types at
// the boundary, picking the widest image, folding classification pairs into
// genres, and collapsing TBA/TBD dates into an absent date.
package ticketing

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	json "github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"github.com/soundcheck-live/soundcheck/data"
	"github.com/soundcheck-live/soundcheck/logging"
	"github.com/soundcheck-live/soundcheck/request"
	"golang.org/x/time/rate"
)

// ErrNotFound means the service has no record with the requested id.
var ErrNotFound = fmt.Errorf("not found")

// New creates a discovery client with the given API key.
func New(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: "https://app.ticketmaster.com/discovery/v2",
		lim:     rate.NewLimiter(rate.Limit(5), 5),
		breaker: newBreaker(),
	}
}

type Client struct {
	apiKey  string
	baseURL string
	lim     *rate.Limiter
	breaker *gobreaker.CircuitBreaker[*http.Response]
}

func newBreaker() *gobreaker.CircuitBreaker[*http.Response] {
	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "ticketing-api",
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

// An Event is a normalized event payload: the show plus whatever the service
// embedded alongside it. Venue and Artist are nil when the payload embedded
// neither.
type Event struct {
	Show   data.Show
	Venue  *data.Venue
	Artist *data.Artist
	Genres []data.Genre
}

// FetchAttraction returns the artist behind the given attraction id, with its
// genre names, widest image, and upcoming-show count.
func (tick *Client) FetchAttraction(ctx context.Context, id string) (*data.Artist, error) {
	if id == "" {
		return nil, fmt.Errorf("no attraction id")
	}

	resp, err := tick.get(ctx, fmt.Sprintf("/attractions/%s.json", id), nil)
	if err != nil {
		return nil, fmt.Errorf("error fetching attraction '%s': %w", id, err)
	}

	defer resp.Close()
	var wire attraction
	dec := json.NewDecoder(resp)
	if err := dec.Decode(&wire); err != nil {
		return nil, fmt.Errorf("attraction decode error: %w", err)
	}

	artist := wire.normalize()
	return &artist, nil
}

// FetchEvent returns the show with the given event id, along with the venue,
// headline attraction, and genres embedded in the payload.
func (tick *Client) FetchEvent(ctx context.Context, id string) (*Event, error) {
	if id == "" {
		return nil, fmt.Errorf("no event id")
	}

	resp, err := tick.get(ctx, fmt.Sprintf("/events/%s.json", id), nil)
	if err != nil {
		return nil, fmt.Errorf("error fetching event '%s': %w", id, err)
	}

	defer resp.Close()
	var wire event
	dec := json.NewDecoder(resp)
	if err := dec.Decode(&wire); err != nil {
		return nil, fmt.Errorf("event decode error: %w", err)
	}

	normalized := wire.normalize()
	return &normalized, nil
}

// SearchOptions narrow an event search. Zero values are omitted from the
// query.
type SearchOptions struct {
	Keyword   string
	City      string
	StateCode string

	// PageSize defaults to 50; Pages caps how many result pages to walk
	// and defaults to 1.
	PageSize int
	Pages    int
}

// SearchEvents walks the event search endpoint page by page, returning
// normalized events.
func (tick *Client) SearchEvents(ctx context.Context, opts SearchOptions) ([]Event, error) {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	pages := opts.Pages
	if pages <= 0 {
		pages = 1
	}

	var events []Event
	for page := 0; page < pages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		query := url.Values{}
		query.Add("size", fmt.Sprintf("%d", pageSize))
		query.Add("page", fmt.Sprintf("%d", page))
		if opts.Keyword != "" {
			query.Add("keyword", opts.Keyword)
		}
		if opts.City != "" {
			query.Add("city", opts.City)
		}
		if opts.StateCode != "" {
			query.Add("stateCode", opts.StateCode)
		}

		resp, err := tick.get(ctx, "/events.json", query)
		if err != nil {
			return nil, fmt.Errorf("error searching events (page %d): %w", page, err)
		}

		var wire eventSearchPage
		dec := json.NewDecoder(resp)
		err = dec.Decode(&wire)
		resp.Close()
		if err != nil {
			return nil, fmt.Errorf("event search decode error: %w", err)
		}

		for _, item := range wire.Embedded.Events {
			events = append(events, item.normalize())
		}

		if len(wire.Embedded.Events) < pageSize {
			break
		}
	}

	return events, nil
}

func (tick *Client) get(ctx context.Context, path string, query url.Values) (io.ReadCloser, error) {
retry:
	if err := tick.lim.Wait(ctx); err != nil {
		return nil, err
	}

	u, err := url.Parse(tick.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("request error: %w", err)
	}
	if query == nil {
		query = url.Values{}
	}
	query.Set("apikey", tick.apiKey)
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("request error: %w", err)
	}

	resp, err := tick.breaker.Execute(func() (*http.Response, error) {
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

	switch resp.StatusCode {
	case http.StatusNotFound:
		resp.Body.Close()
		return nil, ErrNotFound
	case http.StatusTooManyRequests:
		retryAfter := time.Second
		if header := resp.Header.Get("Retry-After"); header != "" {
			if parsed, err := time.ParseDuration(header + "s"); err == nil {
				retryAfter = parsed + time.Second
			}
		}
		resp.Body.Close()
		logging.Warn().
			Dur("retry_after", retryAfter).
			Msg("ticketing rate limited")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryAfter):
		}
		goto retry
	}

	if err := request.Error(resp); err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch error: %w", err)
	}

	return resp.Body, nil
}
