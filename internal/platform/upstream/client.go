// Package upstream is the shared JSON-over-HTTP plumbing for the four backing
// services (login, management, scheduling, reports).
package upstream

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

	"github.com/rs/zerolog"
)

// maxErrorBody caps how much of an error response is read for its detail.
const maxErrorBody = 64 << 10

// Observer receives one call per completed upstream request. status is 0
// when the request failed before a response arrived.
type Observer interface {
	ObserveUpstream(service, method string, status int, elapsed time.Duration)
}

type requestIDKey struct{}

// ContextWithRequestID attaches the inbound request ID so it is forwarded to
// the backing service as X-Request-ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Client talks to one backing service.
type Client struct {
	service    string
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     zerolog.Logger
	observer   Observer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client (tests, custom transports).
// hc is used as is: WithTimeout does not apply to it.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// New creates a client for service rooted at baseURL.
func New(service, baseURL string, opts ...Option) *Client {
	c := &Client{
		service: service,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: 15 * time.Second,
		logger:  zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	return c
}

func (c *Client) Service() string { return c.service }

// Do performs a JSON request. body, when non-nil, is encoded as the request
// body; out, when non-nil, receives the decoded 2xx response. Non-2xx
// responses are returned as *Error.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, token string, body, out any) error {
	resp, err := c.send(ctx, method, path, query, token, body, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil || resp.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s %s: decode response: %w", c.service, method, path, err)
	}
	return nil
}

// Get is Do with GET and no body.
func (c *Client) Get(ctx context.Context, path string, query url.Values, token string, out any) error {
	return c.Do(ctx, http.MethodGet, path, query, token, nil, out)
}

// Stream issues a GET and hands back the open 2xx response. The caller must
// close the body.
func (c *Client) Stream(ctx context.Context, path, token, accept string) (*http.Response, error) {
	return c.send(ctx, http.MethodGet, path, nil, token, nil, accept)
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, token string, body any, accept string) (*http.Response, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s %s %s: encode request: %w", c.service, method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("%s %s %s: build request: %w", c.service, method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if id := requestIDFrom(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.observe(method, 0, elapsed)
		c.logger.Warn().Err(err).
			Str("service", c.service).
			Str("method", method).
			Str("path", path).
			Dur("duration", elapsed).
			Msg("upstream request failed")
		return nil, fmt.Errorf("%s %s %s: %w: %w", c.service, method, path, ErrUnavailable, err)
	}

	c.observe(method, resp.StatusCode, elapsed)
	c.logger.Debug().
		Str("service", c.service).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", elapsed).
		Msg("upstream request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &Error{Service: c.service, Status: resp.StatusCode, Detail: decodeDetail(data)}
	}
	return resp, nil
}

func (c *Client) observe(method string, status int, elapsed time.Duration) {
	if c.observer != nil {
		c.observer.ObserveUpstream(c.service, method, status, elapsed)
	}
}

// Ping probes the service's /health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.Get(ctx, "/health", nil, "", nil)
}
