// Package auth holds the admin session token for the lifetime of the
// process and injects it into outgoing requests.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Common auth errors.
var (
	ErrNotLoggedIn    = errors.New("not logged in")
	ErrSessionExpired = errors.New("session expired")
	ErrMalformedToken = errors.New("malformed session token")
)

// Claims is the identity carried by the admin token. The signature is
// checked by the backend; the client only reads it.
type Claims struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Session is the process-wide login state. The zero value is logged out.
type Session struct {
	now    func() time.Time
	token  string
	claims *Claims
	mu     sync.RWMutex
}

// NewSession returns a logged-out session.
func NewSession() *Session {
	return &Session{now: time.Now}
}

// SetClock overrides the time source used for expiry checks.
func (s *Session) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *Session) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

// Login installs token. Tokens that do not parse or have already expired
// are refused and leave the session unchanged.
func (s *Session) Login(token string) error {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if expired(claims, s.clock()) {
		return ErrSessionExpired
	}
	s.token = token
	s.claims = claims
	return nil
}

// Logout drops the token.
func (s *Session) Logout() {
	s.mu.Lock()
	s.token = ""
	s.claims = nil
	s.mu.Unlock()
}

// Token returns the bearer token, or an error when there is none or it
// has expired since login.
func (s *Session) Token() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == "" {
		return "", ErrNotLoggedIn
	}
	if expired(s.claims, s.clock()) {
		return "", ErrSessionExpired
	}
	return s.token, nil
}

// Claims returns a copy of the identity in the token.
func (s *Session) Claims() (Claims, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.claims == nil {
		return Claims{}, false
	}
	return *s.claims, true
}

// LoggedIn reports whether a usable token is installed.
func (s *Session) LoggedIn() bool {
	_, err := s.Token()
	return err == nil
}

func expired(c *Claims, now time.Time) bool {
	if c == nil || c.ExpiresAt == nil {
		return false
	}
	return !now.Before(c.ExpiresAt.Time)
}

type sessionKey struct{}

// WithSession attaches s to ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session stored in ctx, if any.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}

// Transport adds the session's bearer token to every request. Requests
// without a usable token go out unauthenticated; the public wizard
// endpoints need none.
type Transport struct {
	Session *Session
	Base    http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.Session == nil {
		return base.RoundTrip(req)
	}
	token, err := t.Session.Token()
	if err != nil {
		return base.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+token)
	return base.RoundTrip(r)
}

// CloseIdleConnections forwards to the base transport.
func (t *Transport) CloseIdleConnections() {
	type closeIdler interface{ CloseIdleConnections() }
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if ci, ok := base.(closeIdler); ok {
		ci.CloseIdleConnections()
	}
}
