package api

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, claims jwt.RegisteredClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
	require.NoError(t, err)
	return token
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)

	assert.True(t, tokenExpiry(signed(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)})).Equal(exp))
	assert.True(t, tokenExpiry(signed(t, jwt.RegisteredClaims{Subject: "u"})).IsZero())
	assert.True(t, tokenExpiry("opaque-token").IsZero())
}

func TestSessionCached(t *testing.T) {
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &Session{now: func() time.Time { return now }}

	_, ok := s.cached()
	assert.False(t, ok, "no token yet")

	s.token, s.expiry = "t", now.Add(time.Hour)
	token, ok := s.cached()
	assert.True(t, ok)
	assert.Equal(t, "t", token)

	s.expiry = now.Add(expirySkew / 2)
	_, ok = s.cached()
	assert.False(t, ok, "inside refresh skew")

	s.expiry = time.Time{}
	_, ok = s.cached()
	assert.True(t, ok, "tokens without exp never expire")

	s.invalidate("other")
	_, ok = s.cached()
	assert.True(t, ok, "invalidating a stale token keeps the current one")

	s.invalidate("t")
	_, ok = s.cached()
	assert.False(t, ok)
}

func TestFormatExpiry(t *testing.T) {
	assert.Equal(t, "never", formatExpiry(time.Time{}))
	assert.Equal(t, "2030-01-02T03:04:05Z", formatExpiry(time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)))
}
