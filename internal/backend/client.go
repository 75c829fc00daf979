package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultTimeout = 10 * time.Second

// AuthContext carries the credentials attached to every outbound call: the
// resolved bearer token and the raw inbound Cookie header, which is forwarded
// verbatim so device/session cookies reach the backend unmodified.
type AuthContext struct {
	AccessToken  string
	CookieHeader string
}

// Response is a parsed backend reply. Body holds the raw JSON so proxy
// handlers can forward it without re-encoding.
type Response struct {
	StatusCode int
	Body       []byte
}

// Decode unmarshals the response body into out.
func (r *Response) Decode(out any) error {
	if err := json.Unmarshal(r.Body, out); err != nil {
		return &TransportError{Err: fmt.Errorf("decode backend response: %w", err)}
	}
	return nil
}

// Client issues authenticated calls to the booking backend. It performs no
// caching and no retries: a hold or booking call is not safe to repeat
// without idempotency keys, so retry policy stays with the caller.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *logrus.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Do issues one call to the backend. On non-2xx it returns a *Error built
// from the structured {"detail": ...} body (falling back to the status
// phrase), on transport failure a *TransportError. A 401 from the backend is
// reported as ErrUnauthenticated so callers can distinguish a stale token
// from a business rejection.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body any, auth AuthContext) (*Response, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &TransportError{Err: fmt.Errorf("marshal request body: %w", err)}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("create request: %w", err)}
	}

	if auth.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+auth.AccessToken)
	}
	if auth.CookieHeader != "" {
		req.Header.Set("Cookie", auth.CookieHeader)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"method": method,
			"path":   path,
		}).Warn("backend call failed at transport level")
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("read backend response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: %s", ErrUnauthenticated, errorDetail(data, resp.Status))
		}
		return nil, &Error{
			StatusCode: resp.StatusCode,
			Detail:     errorDetail(data, resp.Status),
		}
	}

	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}

// Get is a convenience wrapper for GET-shaped calls, which callers may
// safely retry themselves.
func (c *Client) Get(ctx context.Context, path string, query url.Values, auth AuthContext) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, query, nil, auth)
}

// errorDetail pulls a human-readable reason out of a failure body. The
// backend reports {"detail": ...}, some older endpoints {"error": ...};
// anything unparseable falls back to the transport status phrase.
func errorDetail(data []byte, statusPhrase string) string {
	var body struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Detail != "" {
			return body.Detail
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return statusPhrase
}
