// Package testutil provides an in-process fake of the device-management
// backend for unit tests. It serves the subset of the management API the
// client uses, records every request and can inject failures per route.
package testutil

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mender-qa/mgmtctl/pkg/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	DefaultUsername = "admin@example.com"
	DefaultPassword = "secret-password"

	apiRoot = "/api/management"
)

var signingKey = []byte("fake-backend-signing-key")

// Request is one call received by the fake backend.
type Request struct {
	Method string
	Path   string
	Query  string
	Body   []byte
	Auth   string
}

type override struct {
	status int
	body   string
	once   bool
}

// Backend is a fake management API backed by in-memory state.
type Backend struct {
	Username string
	Password string
	// TokenTTL sets the exp claim of issued tokens; zero issues tokens
	// without exp.
	TokenTTL time.Duration

	Server *httptest.Server
	Engine *gin.Engine

	mu          sync.Mutex
	requests    []Request
	logins      int
	tokens      map[string]bool
	overrides   map[string][]override
	devices     []*model.Device
	groups      map[string]string
	filters     []model.Filter
	deployments []*fakeDeployment
	artifacts   []model.Artifact
	settings    model.UserSettings
	users       []model.User
	maxDevices  int
	storage     int64
	purged      map[string]bool
	revoked     []string
	logs        map[string]string
	removed     []string
	after       func(Request)
}

type fakeDeployment struct {
	model.Deployment
	Devices  []string `json:"-"`
	FilterID string   `json:"-"`
}

// NewBackend starts a fake backend and stops it when the test ends.
func NewBackend(t *testing.T) *Backend {
	t.Helper()
	b := &Backend{
		Username:  DefaultUsername,
		Password:  DefaultPassword,
		tokens:    map[string]bool{},
		overrides: map[string][]override{},
		groups:    map[string]string{},
		settings:  model.UserSettings{},
		purged:    map[string]bool{},
		logs:      map[string]string{},
	}
	b.Engine = b.routes()
	b.Server = httptest.NewServer(b.Engine)
	t.Cleanup(b.Server.Close)
	return b
}

// URL returns the root URL of the backend.
func (b *Backend) URL() string {
	return b.Server.URL
}

func (b *Backend) routes() *gin.Engine {
	r := gin.New()
	r.Use(b.record, b.inject)

	r.POST(apiRoot+"/v1/useradm/auth/login", b.login)

	api := r.Group(apiRoot, b.authorize)

	api.GET("/v1/useradm/settings", b.getSettings)
	api.POST("/v1/useradm/settings", b.postSettings)
	api.GET("/v1/useradm/users", b.listUsers)
	api.POST("/v1/useradm/users", b.createUser)
	api.GET("/v1/useradm/users/:id", b.getUser)
	api.PUT("/v1/useradm/users/:id", b.updateUser)
	api.DELETE("/v1/useradm/users/:id", b.deleteUser)

	api.GET("/v2/devauth/devices", b.listDevices)
	api.POST("/v2/devauth/devices", b.preauthorize)
	api.GET("/v2/devauth/devices/count", b.countDevices)
	api.GET("/v2/devauth/devices/:id", b.getDevice)
	api.DELETE("/v2/devauth/devices/:id", b.deleteDevice)
	api.DELETE("/v2/devauth/devices/:id/auth/:aid", b.deleteAuthSet)
	api.GET("/v2/devauth/devices/:id/auth/:aid/status", b.authSetStatus)
	api.PUT("/v2/devauth/devices/:id/auth/:aid/status", b.setAuthSetStatus)
	api.GET("/v2/devauth/limits/max_devices", b.maxDevicesLimit)
	api.DELETE("/v2/devauth/tokens/:id", b.revokeToken)

	api.GET("/v1/inventory/devices", b.listInventory)
	api.GET("/v1/inventory/devices/:id", b.getInventoryDevice)
	api.DELETE("/v1/inventory/devices/:id", b.deleteInventoryDevice)
	api.GET("/v1/inventory/devices/:id/group", b.deviceGroup)
	api.PUT("/v1/inventory/devices/:id/group", b.assignGroup)
	api.DELETE("/v1/inventory/devices/:id/group/:name", b.unassignGroup)
	api.GET("/v1/inventory/groups", b.listGroups)
	api.GET("/v1/inventory/groups/:name/devices", b.groupDevices)

	api.GET("/v2/inventory/filters", b.listFilters)
	api.POST("/v2/inventory/filters", b.createFilter)
	api.GET("/v2/inventory/filters/:id", b.getFilter)
	api.DELETE("/v2/inventory/filters/:id", b.deleteFilter)

	api.GET("/v1/deployments/deployments", b.listDeployments)
	api.POST("/v1/deployments/deployments", b.createDeployment)
	api.GET("/v1/deployments/deployments/releases", b.listReleases)
	api.DELETE("/v1/deployments/deployments/devices/:id", b.removeDeploymentDevice)
	api.POST("/v1/deployments/deployments/group/:name", b.createGroupDeployment)
	api.GET("/v1/deployments/deployments/:id", b.getDeployment)
	api.PUT("/v1/deployments/deployments/:id/status", b.setDeploymentStatus)
	api.GET("/v1/deployments/deployments/:id/statistics", b.deploymentStatistics)
	api.GET("/v1/deployments/deployments/:id/devices", b.deploymentDeviceList)
	api.GET("/v1/deployments/deployments/:id/devices/:device/log", b.deploymentDeviceLog)
	api.GET("/v1/deployments/limits/storage", b.storageLimit)
	api.GET("/v1/deployments/artifacts", b.listArtifacts)
	api.POST("/v1/deployments/artifacts", b.uploadArtifact)
	api.GET("/v1/deployments/artifacts/:id", b.getArtifact)
	api.PUT("/v1/deployments/artifacts/:id", b.updateArtifact)
	api.DELETE("/v1/deployments/artifacts/:id", b.deleteArtifact)
	api.GET("/v1/deployments/artifacts/:id/download", b.artifactDownload)
	api.POST("/v2/deployments/deployments", b.createFilterDeployment)
	return r
}

func (b *Backend) record(c *gin.Context) {
	var body []byte
	if c.Request.Body != nil {
		body, _ = io.ReadAll(c.Request.Body)
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
	}
	b.mu.Lock()
	b.requests = append(b.requests, Request{
		Method: c.Request.Method,
		Path:   c.Request.URL.Path,
		Query:  c.Request.URL.RawQuery,
		Body:   body,
		Auth:   c.GetHeader("Authorization"),
	})
	after := b.after
	b.mu.Unlock()
	c.Next()
	if after != nil {
		after(Request{Method: c.Request.Method, Path: c.Request.URL.Path, Query: c.Request.URL.RawQuery, Body: body})
	}
}

// AfterRequest registers fn to run after every handled call, outside the
// backend lock. Tests use it to change state between calls.
func (b *Backend) AfterRequest(fn func(Request)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.after = fn
}

func (b *Backend) inject(c *gin.Context) {
	key := c.Request.Method + " " + c.Request.URL.Path
	b.mu.Lock()
	queue := b.overrides[key]
	if len(queue) == 0 {
		b.mu.Unlock()
		c.Next()
		return
	}
	o := queue[0]
	if o.once {
		b.overrides[key] = queue[1:]
	}
	b.mu.Unlock()
	c.Data(o.status, "application/json", []byte(o.body))
	c.Abort()
}

// Override makes every call to method+path answer status and body.
func (b *Backend) Override(method, path string, status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.overrides[method+" "+path] = []override{{status: status, body: body}}
}

// FailOnce makes the next call to method+path answer status and body.
func (b *Backend) FailOnce(method, path string, status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := method + " " + path
	b.overrides[key] = append(b.overrides[key], override{status: status, body: body, once: true})
}

// ClearOverrides removes every injected response.
func (b *Backend) ClearOverrides() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.overrides = map[string][]override{}
}

// Requests returns the calls received so far.
func (b *Backend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Request(nil), b.requests...)
}

// RequestsTo returns the calls received for method+path.
func (b *Backend) RequestsTo(method, path string) []Request {
	var out []Request
	for _, r := range b.Requests() {
		if r.Method == method && r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// Logins returns how many successful and failed login calls were received.
func (b *Backend) Logins() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.logins
}

// RevokeTokens invalidates every issued token; the next authorized call
// gets 401.
func (b *Backend) RevokeTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = map[string]bool{}
}

func (b *Backend) login(c *gin.Context) {
	b.mu.Lock()
	b.logins++
	b.mu.Unlock()

	user, pass, ok := c.Request.BasicAuth()
	if !ok || user != b.Username || pass != b.Password {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	claims := jwt.RegisteredClaims{
		ID:       uuid.NewString(),
		Subject:  user,
		IssuedAt: jwt.NewNumericDate(time.Now()),
	}
	if b.TokenTTL != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(b.TokenTTL))
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	b.mu.Lock()
	b.tokens[token] = true
	b.mu.Unlock()
	c.Data(http.StatusOK, "application/jwt", []byte(token))
}

func (b *Backend) authorize(c *gin.Context) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	b.mu.Lock()
	ok := b.tokens[token]
	b.mu.Unlock()
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token invalid"})
		return
	}
	c.Next()
}

// paging reads page/per_page the way the backend does: page defaults to 1,
// per_page to 20.
func paging(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	perPage, err := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if err != nil || perPage < 1 {
		perPage = 20
	}
	return page, perPage
}

func pageOf[T any](items []T, page, perPage int) []T {
	start := (page - 1) * perPage
	if start >= len(items) {
		return []T{}
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	return append([]T{}, items[start:end]...)
}

func location(c *gin.Context, id string) {
	c.Header("Location", fmt.Sprintf("%s/%s", c.Request.URL.Path, id))
}
