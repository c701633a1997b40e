// Package api is a typed client for the device-management REST API:
// user administration, device authentication, inventory, inventory filters
// and deployments. Every call goes through one call layer that checks the
// expected status code and turns any failure into an *Error.
package api

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mender-qa/mgmtctl/pkg/util"
	"github.com/mender-qa/mgmtctl/pkg/version"
)

const (
	defaultTimeout = 60 * time.Second

	useradmV1     = "/api/management/v1/useradm"
	devauthV2     = "/api/management/v2/devauth"
	inventoryV1   = "/api/management/v1/inventory"
	inventoryV2   = "/api/management/v2/inventory"
	deploymentsV1 = "/api/management/v1/deployments"
	deploymentsV2 = "/api/management/v2/deployments"
)

// Config describes one backend connection.
type Config struct {
	// ServerURL is the backend root, e.g. https://hosted.example.com.
	// A missing scheme defaults to https.
	ServerURL string
	Username  string
	Password  string

	// InsecureSkipVerify disables TLS certificate checks (test environments
	// with self-signed certificates).
	InsecureSkipVerify bool
	// Timeout bounds each HTTP request. Zero selects the default; a negative
	// value disables the timeout.
	Timeout time.Duration

	// HTTPClient overrides the HTTP client; InsecureSkipVerify and Timeout
	// are ignored when it is set.
	HTTPClient *http.Client
	// Logger receives call warnings; defaults to util.Logger.
	Logger logrus.FieldLogger
}

// Validate checks that the connection can be attempted.
func (c Config) Validate() error {
	v := &util.ValidationBuilder{}
	v.Require("username", c.Username)
	v.Require("password", c.Password)
	v.Require("url", c.ServerURL)
	return v.Build()
}

// Client is an explicit, per-backend API client. It owns the session and
// exposes one service per REST resource.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        logrus.FieldLogger
	userAgent  string
	session    *Session

	Users       *UserService
	DevAuth     *DevAuthService
	Inventory   *InventoryService
	Filters     *FilterService
	Deployments *DeploymentService
}

// New builds a client. No network call is made until the first request.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base, err := NormalizeServerURL(cfg.ServerURL)
	if err != nil {
		return nil, err
	}

	c := &Client{
		baseURL:    base,
		httpClient: cfg.HTTPClient,
		log:        cfg.Logger,
		userAgent:  version.UserAgent(),
	}
	if c.httpClient == nil {
		c.httpClient = newHTTPClient(cfg)
	}
	if c.log == nil {
		c.log = util.Logger
	}
	c.session = newSession(c, cfg.Username, cfg.Password)

	c.Users = &UserService{c: c}
	c.DevAuth = &DevAuthService{c: c}
	c.Inventory = &InventoryService{c: c}
	c.Filters = &FilterService{c: c}
	c.Deployments = &DeploymentService{c: c}
	return c, nil
}

// BaseURL returns the normalized server URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Session returns the authentication session of the client.
func (c *Client) Session() *Session {
	return c.session
}

func newHTTPClient(cfg Config) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	timeout := cfg.Timeout
	switch {
	case timeout == 0:
		timeout = defaultTimeout
	case timeout < 0:
		timeout = 0
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

// NormalizeServerURL trims the URL, defaults the scheme to https and strips
// trailing slashes so paths can be appended directly.
func NormalizeServerURL(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", util.NewValidationError("url is required")
	}
	if !strings.Contains(value, "://") {
		value = "https://" + value
	}
	u, err := url.Parse(value)
	if err != nil {
		return "", util.NewValidationError(fmt.Sprintf("invalid url %q: %v", raw, err))
	}
	if u.Host == "" {
		return "", util.NewValidationError(fmt.Sprintf("invalid url %q: host is empty", raw))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", util.NewValidationError(fmt.Sprintf("invalid url %q: unsupported scheme %q", raw, u.Scheme))
	}
	u.RawQuery = ""
	u.Fragment = ""
	return strings.TrimRight(u.String(), "/"), nil
}

// requireID rejects empty identifiers before they end up in a URL path.
func requireID(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is empty", util.ErrInvalidArgument, name)
	}
	return nil
}

func pathJoin(prefix string, segments ...string) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}
