package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundcheck-live/soundcheck/auth"
)

// resolve runs a request through the middleware and returns the participant
// it resolved plus the response (for any minted cookies).
func resolve(t *testing.T, s *auth.Sessions, mutate func(*http.Request)) (auth.Participant, *http.Response) {
	t.Helper()

	var got auth.Participant
	handler := s.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = auth.FromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if mutate != nil {
		mutate(r)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	return got, w.Result()
}

func TestFirstVisitMintsAnonymousSession(t *testing.T) {
	s := auth.NewSessions("secret", "/login")

	p, resp := resolve(t, s, nil)
	assert.False(t, p.Authenticated)
	assert.NotEmpty(t, p.ID)

	cookies := resp.Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "soundcheck_session", cookies[0].Name)
	assert.Equal(t, p.ID, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
}

func TestReturningSessionIsStable(t *testing.T) {
	s := auth.NewSessions("secret", "/login")

	p, resp := resolve(t, s, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "soundcheck_session", Value: "session-1"})
	})
	assert.Equal(t, "session-1", p.ID)
	assert.False(t, p.Authenticated)
	assert.Empty(t, resp.Cookies(), "no new cookie for a returning session")
}

func TestBearerTokenAuthenticates(t *testing.T) {
	s := auth.NewSessions("secret", "/login")
	token, err := s.Token("user-42", time.Hour)
	require.NoError(t, err)

	p, _ := resolve(t, s, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	assert.True(t, p.Authenticated)
	assert.Equal(t, "user-42", p.ID)
}

func TestTokenCookieAuthenticates(t *testing.T) {
	s := auth.NewSessions("secret", "/login")
	token, err := s.Token("user-42", time.Hour)
	require.NoError(t, err)

	p, _ := resolve(t, s, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "soundcheck_token", Value: token})
	})
	assert.True(t, p.Authenticated)
	assert.Equal(t, "user-42", p.ID)
}

func TestBadTokensFallBackToAnonymous(t *testing.T) {
	s := auth.NewSessions("secret", "/login")

	expired, err := s.Token("user-42", -time.Hour)
	require.NoError(t, err)

	other := auth.NewSessions("other-secret", "/login")
	forged, err := other.Token("user-42", time.Hour)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":   expired,
		"forged":    forged,
		"gibberish": "not-a-token",
	} {
		p, _ := resolve(t, s, func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+token)
		})
		assert.False(t, p.Authenticated, "%s token must not authenticate", name)
		assert.NotEmpty(t, p.ID, "%s token still gets an anonymous session", name)
	}
}

func TestNoSecretMeansEveryoneIsAnonymous(t *testing.T) {
	signer := auth.NewSessions("secret", "/login")
	token, err := signer.Token("user-42", time.Hour)
	require.NoError(t, err)

	s := auth.NewSessions("", "/login")
	p, _ := resolve(t, s, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	assert.False(t, p.Authenticated)
}

func TestLoginURL(t *testing.T) {
	assert.Equal(t, "/login", auth.NewSessions("secret", "").LoginURL())
	assert.Equal(t, "https://id.example.com/login", auth.NewSessions("secret", "https://id.example.com/login").LoginURL())
}
