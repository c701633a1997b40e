package api_test

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mender-qa/mgmtctl/internal/testutil"
	"github.com/mender-qa/mgmtctl/pkg/api"
)

func TestSession_SingleLoginForManyCalls(t *testing.T) {
	b := testutil.NewBackend(t)
	b.TokenTTL = time.Hour
	c, _ := newClient(t, b)

	for i := 0; i < 5; i++ {
		_, err := c.DevAuth.Count(context.Background(), "")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, b.Logins())
	assert.EqualValues(t, 1, c.Session().Logins())
}

func TestSession_ConcurrentCallersShareLogin(t *testing.T) {
	b := testutil.NewBackend(t)
	c, _ := newClient(t, b)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.DevAuth.Count(context.Background(), "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, b.Logins())
}

func TestSession_LoginFailure(t *testing.T) {
	b := testutil.NewBackend(t)
	logger, hook := testutil.NewLogger()
	c, err := api.New(api.Config{
		ServerURL: b.URL(),
		Username:  b.Username,
		Password:  "wrong",
		Logger:    logger,
	})
	require.NoError(t, err)

	_, err = c.DevAuth.Count(context.Background(), "")
	require.Error(t, err)
	assert.True(t, api.IsLoginError(err))
	assert.True(t, api.IsUnauthorized(err))
	assert.Contains(t, err.Error(), b.Username)
	assert.Len(t, testutil.Warnings(hook), 1)
	assert.Empty(t, b.RequestsTo(http.MethodGet, countPath))
}

func TestSession_EmptyTokenIsLoginFailure(t *testing.T) {
	b := testutil.NewBackend(t)
	b.Override(http.MethodPost, loginPath, http.StatusOK, "")
	c, _ := newClient(t, b)

	err := c.Session().Login(context.Background())
	require.Error(t, err)
	assert.True(t, api.IsLoginError(err))
	assert.Contains(t, err.Error(), "empty token")
}

func TestSession_ReloginOnRejectedToken(t *testing.T) {
	b := testutil.NewBackend(t)
	c, hook := newClient(t, b)

	_, err := c.DevAuth.Count(context.Background(), "")
	require.NoError(t, err)
	b.RevokeTokens()

	_, err = c.DevAuth.Count(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 2, b.Logins())
	assert.Len(t, b.RequestsTo(http.MethodGet, countPath), 3)
	assert.Empty(t, testutil.Warnings(hook))
}

func TestSession_ReplaysOnlyOnce(t *testing.T) {
	b := testutil.NewBackend(t)
	c, hook := newClient(t, b)
	require.NoError(t, c.Session().Login(context.Background()))
	b.Override(http.MethodGet, countPath, http.StatusUnauthorized, `{"error":"nope"}`)

	_, err := c.DevAuth.Count(context.Background(), "")
	require.Error(t, err)
	assert.True(t, api.IsUnauthorized(err))
	assert.Equal(t, 2, b.Logins())
	assert.Len(t, b.RequestsTo(http.MethodGet, countPath), 2)
	assert.Len(t, testutil.Warnings(hook), 1)
}

func TestSession_KeepsTokenIssuedInsideRefreshWindow(t *testing.T) {
	b := testutil.NewBackend(t)
	// Shorter than the refresh skew: the token looks expired on arrival.
	b.TokenTTL = 10 * time.Second
	c, hook := newClient(t, b)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := c.DevAuth.Count(ctx, "")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, b.Logins())
	assert.Len(t, clockWarnings(hook), 1)

	b.RevokeTokens()
	_, err := c.DevAuth.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, b.Logins())
	assert.Len(t, clockWarnings(hook), 1, "the clock warning is logged once per session")
}

func clockWarnings(hook *test.Hook) []string {
	var out []string
	for _, w := range testutil.Warnings(hook) {
		if strings.Contains(w, "local clock") {
			out = append(out, w)
		}
	}
	return out
}
