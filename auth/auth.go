// Package auth resolves who is making a request. Authenticated participants
// arrive with a signed bearer token minted by the external login service;
// everyone else gets a stable anonymous session id via cookie, which is what
// the vote quota is keyed on.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/soundcheck-live/soundcheck/logging"
)

const (
	sessionCookie = "soundcheck_session"
	tokenCookie   = "soundcheck_token"
)

type Participant struct {
	// ID is the stable identity: the token subject for authenticated
	// participants, the session cookie value for anonymous ones.
	ID            string
	Authenticated bool
}

// A Provider resolves request participants and knows where to send them to
// log in.
type Provider interface {
	Middleware(next http.Handler) http.Handler
	LoginURL() string
}

type Sessions struct {
	secret   []byte
	loginURL string
}

func NewSessions(secret, loginURL string) *Sessions {
	if secret == "" {
		logging.Warn().Msg("no jwt secret configured, treating all participants as anonymous")
	}
	if loginURL == "" {
		loginURL = "/login"
	}
	return &Sessions{secret: []byte(secret), loginURL: loginURL}
}

func (s *Sessions) LoginURL() string { return s.loginURL }

// Middleware resolves the request's participant and stores it on the
// context. Requests with no identity at all get an anonymous session cookie
// minted on the spot.
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, minted := s.participant(r)
		if minted != nil {
			http.SetCookie(w, minted)
		}
		next.ServeHTTP(w, r.WithContext(withParticipant(r.Context(), p)))
	})
}

func (s *Sessions) participant(r *http.Request) (Participant, *http.Cookie) {
	if subject, ok := s.verify(bearerToken(r)); ok {
		return Participant{ID: subject, Authenticated: true}, nil
	}

	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return Participant{ID: c.Value}, nil
	}

	cookie := &http.Cookie{
		Name:     sessionCookie,
		Value:    uuid.NewString(),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return Participant{ID: cookie.Value}, cookie
}

func (s *Sessions) verify(raw string) (string, bool) {
	if raw == "" || len(s.secret) == 0 {
		return "", false
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return "", false
	}
	return claims.Subject, true
}

// Token mints a signed token for the subject, mostly useful for tests and
// local development; real tokens come from the login service.
func (s *Sessions) Token(subject string, ttl time.Duration) (string, error) {
	if len(s.secret) == 0 {
		return "", fmt.Errorf("no jwt secret configured")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("error signing token for '%s': %w", subject, err)
	}
	return token, nil
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if c, err := r.Cookie(tokenCookie); err == nil {
		return c.Value
	}
	return ""
}

type ctxKey struct{}

func withParticipant(ctx context.Context, p Participant) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext returns the participant resolved by Middleware, or the zero
// Participant when the middleware didn't run.
func FromContext(ctx context.Context) Participant {
	p, _ := ctx.Value(ctxKey{}).(Participant)
	return p
}
