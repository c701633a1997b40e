package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrLoginFailed is returned when the basic-auth login does not yield a token.
var ErrLoginFailed = errors.New("login failed")

// ErrPageLimit is returned when a listing keeps returning non-empty pages
// past the configured page bound.
var ErrPageLimit = errors.New("page limit reached")

// Kind classifies a failed call.
type Kind int

const (
	// KindUnexpectedStatus is a success-class status other than the expected one.
	KindUnexpectedStatus Kind = iota
	KindNotFound
	KindUnauthorized
	KindClient
	KindServer
	// KindMalformed means the expected status came with a body that is not valid JSON.
	KindMalformed
	// KindTransport covers connection, TLS and timeout failures.
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindUnexpectedStatus:
		return "unexpected status"
	case KindNotFound:
		return "not found"
	case KindUnauthorized:
		return "unauthorized"
	case KindClient:
		return "client error"
	case KindServer:
		return "server error"
	case KindMalformed:
		return "malformed response"
	case KindTransport:
		return "transport error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the single failure type of the call layer. Callers never see a
// bare transport error; it is carried in Err.
type Error struct {
	Kind       Kind
	Method     string
	URL        string
	StatusCode int
	Expected   int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindTransport:
		return fmt.Sprintf("%s %s: %s: %v", e.Method, e.URL, e.Kind, e.Err)
	case KindMalformed:
		return fmt.Sprintf("%s %s: %s: %v", e.Method, e.URL, e.Kind, e.Err)
	}
	msg := fmt.Sprintf("%s %s: %s: status %d (expected %d)", e.Method, e.URL, e.Kind, e.StatusCode, e.Expected)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindUnauthorized
	case status >= 500:
		return KindServer
	case status >= 400:
		return KindClient
	default:
		return KindUnexpectedStatus
	}
}

// KindOf returns the kind of err, or false when err is not a call error.
func KindOf(err error) (Kind, bool) {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return 0, false
	}
	return apiErr.Kind, true
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindNotFound
}

// IsServerError reports whether err is a 5xx from the backend.
func IsServerError(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindServer
}

// IsMalformed reports whether err is an undecodable response body.
func IsMalformed(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindMalformed
}

// IsUnauthorized reports whether err is a 401/403 from the backend.
func IsUnauthorized(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindUnauthorized
}
