package request

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
)

const userAgent = "soundcheck/1.0 (+https://github.com/soundcheck-live/soundcheck)"

// Get does an HTTP GET on the given URL, identifying as soundcheck, and
// returns the response body once the status has been checked. The caller
// closes the body.
func Get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error building request for '%s': %w", url, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching '%s': %w", url, err)
	}

	if err := Error(resp); err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status from '%s': %w", url, err)
	}

	return resp.Body, nil
}

// Error checks the given http response for an error code, and, if one is
// present, reads the body and returns a friendly error.
func Error(resp *http.Response) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bs, err := httputil.DumpResponse(resp, true)
		if err != nil {
			return fmt.Errorf("http status code %d; error decoding body: %w", resp.StatusCode, err)
		} else {
			return fmt.Errorf("http status code %d:\n%s", resp.StatusCode, string(bs))
		}
	}
	return nil
}
