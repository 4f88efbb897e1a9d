package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := Claims{
		UserID: "u1",
		Email:  "admin@greonxpert.com",
		Role:   "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return tok
}

func TestSession_LoginLogout(t *testing.T) {
	s := NewSession()
	_, err := s.Token()
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	tok := signed(t, time.Now().Add(time.Hour))
	require.NoError(t, s.Login(tok))

	got, err := s.Token()
	require.NoError(t, err)
	assert.Equal(t, tok, got)

	c, ok := s.Claims()
	require.True(t, ok)
	assert.Equal(t, "admin@greonxpert.com", c.Email)
	assert.Equal(t, "admin", c.Role)

	s.Logout()
	assert.False(t, s.LoggedIn())
	_, ok = s.Claims()
	assert.False(t, ok)
}

func TestSession_RejectsExpired(t *testing.T) {
	s := NewSession()
	assert.ErrorIs(t, s.Login(signed(t, time.Now().Add(-time.Minute))), ErrSessionExpired)
	assert.False(t, s.LoggedIn())
}

func TestSession_ExpiresAfterLogin(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	s := NewSession()
	s.SetClock(func() time.Time { return now })

	require.NoError(t, s.Login(signed(t, now.Add(time.Minute))))
	assert.True(t, s.LoggedIn())

	now = now.Add(2 * time.Minute)
	_, err := s.Token()
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestSession_Malformed(t *testing.T) {
	assert.ErrorIs(t, NewSession().Login("not-a-jwt"), ErrMalformedToken)
}

func TestTransport_InjectsBearer(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
	}))
	defer srv.Close()

	s := NewSession()
	client := &http.Client{Transport: &Transport{Session: s}}

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	tok := signed(t, time.Now().Add(time.Hour))
	require.NoError(t, s.Login(tok))
	resp, err = client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, []string{"", "Bearer " + tok}, seen)
}

func TestContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
	s := NewSession()
	assert.Same(t, s, FromContext(WithSession(context.Background(), s)))
}
