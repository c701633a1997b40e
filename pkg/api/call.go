package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/google/go-querystring/query"
	"github.com/sirupsen/logrus"
)

const (
	maxResponseBody = 64 << 20
	maxLoggedBody   = 2048
)

// request describes one call. body is pre-encoded so the call can be
// replayed after a re-login.
type request struct {
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
	expect      int

	// basicUser/basicPass switch the call to basic auth (login only).
	basicUser string
	basicPass string
	basic     bool

	// text returns the raw body into a *string instead of decoding JSON.
	text bool
}

func newRequest(method, path string, expect int) *request {
	return &request{method: method, path: path, expect: expect}
}

func (r *request) withJSON(v any) (*request, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %s %s body: %w", r.method, r.path, err)
	}
	r.body = b
	r.contentType = "application/json"
	return r, nil
}

// withQuery encodes a struct with `url` tags as the query string.
func (r *request) withQuery(opts any) (*request, error) {
	v, err := query.Values(opts)
	if err != nil {
		return nil, fmt.Errorf("encoding %s %s query: %w", r.method, r.path, err)
	}
	r.query = v
	return r, nil
}

func (r *request) url(base string) string {
	u := base + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}
	return u
}

// do performs the call. A status other than r.expect, a transport failure or
// an undecodable body produces exactly one warning and an *Error. A 401 on an
// authorized call triggers one re-login and one replay.
func (c *Client) do(ctx context.Context, r *request, out any) (http.Header, error) {
	target := r.url(c.baseURL)
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, r.method, target, bytes.NewReader(r.body))
		if err != nil {
			return nil, c.transportError(r, target, err)
		}
		if r.body != nil {
			req.Header.Set("Content-Type", r.contentType)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.userAgent)

		var token string
		if r.basic {
			req.SetBasicAuth(r.basicUser, r.basicPass)
		} else {
			token, err = c.session.Token(ctx)
			if err != nil {
				return nil, err
			}
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, c.transportError(r, target, err)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		resp.Body.Close()
		if err != nil {
			return nil, c.transportError(r, target, err)
		}

		if resp.StatusCode == http.StatusUnauthorized && token != "" && attempt == 0 && r.expect != http.StatusUnauthorized {
			c.log.Debugf("Call: %s %s. Token rejected, logging in again", r.method, target)
			c.session.invalidate(token)
			continue
		}

		if resp.StatusCode != r.expect {
			c.log.WithFields(logrus.Fields{
				"method": r.method,
				"status": resp.StatusCode,
			}).Warnf("Call: %s %s. Status code: %d. Content of the response: %s",
				r.method, target, resp.StatusCode, truncate(body, maxLoggedBody))
			return resp.Header, &Error{
				Kind:       kindForStatus(resp.StatusCode),
				Method:     r.method,
				URL:        target,
				StatusCode: resp.StatusCode,
				Expected:   r.expect,
				Body:       truncate(body, maxLoggedBody),
			}
		}

		if err := decodeBody(body, r.text, out); err != nil {
			c.log.WithField("method", r.method).Warnf("Call: %s %s. Cannot decode response: %v", r.method, target, err)
			return resp.Header, &Error{
				Kind:       KindMalformed,
				Method:     r.method,
				URL:        target,
				StatusCode: resp.StatusCode,
				Expected:   r.expect,
				Body:       truncate(body, maxLoggedBody),
				Err:        err,
			}
		}
		return resp.Header, nil
	}
}

func (c *Client) transportError(r *request, target string, err error) error {
	c.log.WithField("method", r.method).Warnf("Call: %s %s. Request failed: %v", r.method, target, err)
	return &Error{
		Kind:     KindTransport,
		Method:   r.method,
		URL:      target,
		Expected: r.expect,
		Err:      err,
	}
}

// decodeBody leaves out at its zero value when the body is empty.
func decodeBody(body []byte, text bool, out any) error {
	if out == nil {
		return nil
	}
	if text {
		s, ok := out.(*string)
		if !ok {
			return fmt.Errorf("text response needs *string, got %T", out)
		}
		*s = string(body)
		return nil
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// getJSON issues a GET expecting 200 and decodes the body into out.
func (c *Client) getJSON(ctx context.Context, path string, opts any, out any) error {
	r := newRequest(http.MethodGet, path, http.StatusOK)
	if opts != nil {
		var err error
		if r, err = r.withQuery(opts); err != nil {
			return err
		}
	}
	_, err := c.do(ctx, r, out)
	return err
}

// sendJSON issues a mutating call with an optional JSON body.
func (c *Client) sendJSON(ctx context.Context, method, path string, expect int, in, out any) (http.Header, error) {
	r := newRequest(method, path, expect)
	if in != nil {
		var err error
		if r, err = r.withJSON(in); err != nil {
			return nil, err
		}
	}
	return c.do(ctx, r, out)
}
