// Package external holds the plumbing shared by the third-party data
// adapters: the error taxonomy and a JSON HTTP client with per-call timeouts.
package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

var (
	ErrUpstreamTimeout = errors.New("upstream timeout")
	ErrNotFound        = errors.New("not found")
	ErrNotConfigured   = errors.New("not configured")
	ErrUpstream        = errors.New("upstream failure")
	ErrInvalidInput    = errors.New("invalid input")
)

// Error pairs a taxonomy kind with the message shown to API clients.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func NotFound(msg string) error      { return &Error{Kind: ErrNotFound, Message: msg} }
func InvalidInput(msg string) error  { return &Error{Kind: ErrInvalidInput, Message: msg} }
func NotConfigured(msg string) error { return &Error{Kind: ErrNotConfigured, Message: msg} }

// Message returns the client-facing message of err, or fallback when err
// carries none.
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}

// Wrap turns err into an upstream failure with msg unless it already carries
// a taxonomy kind.
func Wrap(err error, msg string) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: ErrUpstream, Message: msg, Err: err}
}

// StatusError is returned for a non-2xx upstream response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream responded %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrUpstream }

// StatusCode returns the upstream status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

type Client struct {
	http    *http.Client
	service string
	timeout time.Duration

	// OnCall, when set, is told about every upstream request and its outcome.
	OnCall func(service string, err error)
}

// NewClient returns a client whose calls are bounded by timeout. A nil
// httpClient uses a dedicated default client.
func NewClient(httpClient *http.Client, service string, timeout time.Duration) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{http: httpClient, service: service, timeout: timeout}
}

func (c *Client) Service() string { return c.service }

// GetJSON issues a GET to rawURL with query and decodes the JSON answer.
func (c *Client) GetJSON(ctx context.Context, rawURL string, query url.Values, dst any) error {
	if len(query) > 0 {
		rawURL += "?" + query.Encode()
	}
	return c.do(ctx, http.MethodGet, rawURL, nil, nil, dst)
}

// PostJSON sends body as JSON and decodes the JSON answer.
func (c *Client) PostJSON(ctx context.Context, rawURL string, headers http.Header, body, dst any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", c.service, err)
	}
	return c.do(ctx, http.MethodPost, rawURL, headers, bytes.NewReader(payload), dst)
}

func (c *Client) do(ctx context.Context, method, rawURL string, headers http.Header, body io.Reader, dst any) (err error) {
	defer func() {
		if c.OnCall != nil {
			c.OnCall(c.service, err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", c.service, err)
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return c.classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return c.classify(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *Client) classify(err error) error {
	if isTimeout(err) {
		return &Error{Kind: ErrUpstreamTimeout, Message: c.service + " timeout", Err: err}
	}
	return &Error{Kind: ErrUpstream, Message: c.service + " unavailable", Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
