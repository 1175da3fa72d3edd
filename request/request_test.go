package request

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetReturnsBody(t *testing.T) {
	t.Parallel()

	agent := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent <- r.Header.Get("User-Agent")
		io.WriteString(w, "hello")
	}))
	defer srv.Close()

	body, err := Get(context.Background(), srv.URL)
	require.NoError(t, err)
	defer body.Close()

	bs, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(bs))
	assert.Equal(t, userAgent, <-agent)
}

func TestGetRejectsErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http status code 502")
}
