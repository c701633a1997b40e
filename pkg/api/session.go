package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

// expirySkew refreshes a token slightly before its exp claim.
const expirySkew = 30 * time.Second

// Session holds the credentials of one backend and the bearer token obtained
// from them. The token is fetched lazily on the first authorized call and
// reused until the backend rejects it or its exp claim passes.
type Session struct {
	c        *Client
	username string
	password string

	mu     sync.Mutex
	token  string
	expiry time.Time

	flight     singleflight.Group
	logins     atomic.Int64
	now        func() time.Time
	skewWarned sync.Once
}

func newSession(c *Client, username, password string) *Session {
	return &Session{
		c:        c,
		username: username,
		password: password,
		now:      time.Now,
	}
}

// Username returns the login identifier of the session.
func (s *Session) Username() string {
	return s.username
}

// Logins returns how many login requests the session has issued.
func (s *Session) Logins() int64 {
	return s.logins.Load()
}

// AuthHeader returns the Authorization header value, logging in on first use.
func (s *Session) AuthHeader(ctx context.Context) (string, error) {
	token, err := s.Token(ctx)
	if err != nil {
		return "", err
	}
	return "Bearer " + token, nil
}

// Login obtains a token unless a valid one is cached. Callers use it to
// fail fast on bad credentials before starting a workflow.
func (s *Session) Login(ctx context.Context) error {
	_, err := s.Token(ctx)
	return err
}

// Token returns the cached bearer token, logging in when there is none.
// Concurrent callers share one login request.
func (s *Session) Token(ctx context.Context) (string, error) {
	if token, ok := s.cached(); ok {
		return token, nil
	}
	v, err, _ := s.flight.Do("login", func() (any, error) {
		if token, ok := s.cached(); ok {
			return token, nil
		}
		token, expiry, err := s.login(ctx)
		if err != nil {
			return "", err
		}
		s.mu.Lock()
		s.token, s.expiry = token, expiry
		s.mu.Unlock()
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *Session) cached() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return "", false
	}
	if !s.expiry.IsZero() && !s.now().Add(expirySkew).Before(s.expiry) {
		return "", false
	}
	return s.token, true
}

// invalidate drops token if it is still the cached one, so that concurrent
// 401s on the same token cause a single re-login.
func (s *Session) invalidate(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == token {
		s.token = ""
		s.expiry = time.Time{}
	}
}

func (s *Session) login(ctx context.Context) (string, time.Time, error) {
	s.logins.Add(1)
	r := newRequest(http.MethodPost, useradmV1+"/auth/login", http.StatusOK)
	r.basic, r.basicUser, r.basicPass = true, s.username, s.password
	r.text = true

	var body string
	if _, err := s.c.do(ctx, r, &body); err != nil {
		return "", time.Time{}, fmt.Errorf("%w: user %s at %s: %w", ErrLoginFailed, s.username, s.c.baseURL, err)
	}
	token := strings.TrimSpace(body)
	if token == "" {
		return "", time.Time{}, fmt.Errorf("%w: user %s at %s: empty token", ErrLoginFailed, s.username, s.c.baseURL)
	}
	expiry := tokenExpiry(token)
	if !expiry.IsZero() && !s.now().Add(expirySkew).Before(expiry) {
		// A fresh token that already looks expired means the local clock is
		// off; keep it until the backend answers 401.
		s.skewWarned.Do(func() {
			s.c.log.Warnf("Token for %s expires %s, which the local clock (%s) already considers past; check the clock. Reusing the token until it is rejected",
				s.username, formatExpiry(expiry), formatExpiry(s.now()))
		})
		expiry = time.Time{}
	}
	s.c.log.Debugf("URL: '%s', user %s, authenticated (token expires %s)", s.c.baseURL, s.username, formatExpiry(expiry))
	return token, expiry, nil
}

// tokenExpiry reads the exp claim of a JWT without verifying its signature.
// Opaque tokens and tokens without exp yield the zero time.
func tokenExpiry(token string) time.Time {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

func formatExpiry(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.UTC().Format(time.RFC3339)
}

// IsLoginError reports whether err came from a failed login.
func IsLoginError(err error) bool {
	return errors.Is(err, ErrLoginFailed)
}
