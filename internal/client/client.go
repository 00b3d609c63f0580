// ABOUTME: HTTP client for the assistant service streaming and health endpoints
// ABOUTME: Opening a stream fails with TransportError on connection errors or non-2xx status

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Default endpoint paths
const (
	DefaultStreamPath = "/chat/stream"
	DefaultHealthPath = "/health"
)

// maxErrorBody bounds how much of a failed response is read for diagnostics
const maxErrorBody = 4096

// TransportError reports a failure to establish a stream: the connection
// could not be made or the service answered with a non-success status.
type TransportError struct {
	Op         string
	StatusCode int // zero when no response was received
	Detail     string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		if e.Detail != "" {
			return fmt.Sprintf("%s: service returned status %d: %s", e.Op, e.StatusCode, e.Detail)
		}
		return fmt.Sprintf("%s: service returned status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Client talks to the assistant service over HTTP
type Client struct {
	baseURL    string
	streamPath string
	healthPath string
	http       *http.Client
	logger     *slog.Logger

	openTimeout time.Duration
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithStreamPath overrides the streaming endpoint path.
func WithStreamPath(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.streamPath = path
		}
	}
}

// WithHealthPath overrides the health endpoint path.
func WithHealthPath(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.healthPath = path
		}
	}
}

// WithOpenTimeout bounds how long to wait for response headers. It does not
// limit how long the body may keep streaming. It applies to the HTTP client
// given with WithHTTPClient regardless of option order, as long as that
// client's transport is an *http.Transport (or nil).
func WithOpenTimeout(d time.Duration) Option {
	return func(c *Client) { c.openTimeout = d }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a new client for the service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		streamPath: DefaultStreamPath,
		healthPath: DefaultHealthPath,
		http:       &http.Client{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "client")
	if c.openTimeout > 0 {
		c.http = withHeaderTimeout(c.http, c.openTimeout, c.logger)
	}
	return c
}

// withHeaderTimeout returns a copy of hc whose transport waits at most d for
// response headers. The caller's client and transport are left untouched.
func withHeaderTimeout(hc *http.Client, d time.Duration, logger *slog.Logger) *http.Client {
	base := hc.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	transport, ok := base.(*http.Transport)
	if !ok {
		logger.Warn("open timeout ignored for custom round tripper", "transport", fmt.Sprintf("%T", base))
		return hc
	}

	transport = transport.Clone()
	transport.ResponseHeaderTimeout = d
	out := *hc
	out.Transport = transport
	return &out
}

// BaseURL returns the service base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// streamRequest is the JSON body sent to the streaming endpoint.
type streamRequest struct {
	Message string `json:"message"`
}

// OpenStream sends prompt to the streaming endpoint and returns the response
// body once a success status has been received.
func (c *Client) OpenStream(ctx context.Context, prompt string) (io.ReadCloser, error) {
	body, err := json.Marshal(streamRequest{Message: prompt})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.streamPath, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Op: "open stream", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "open stream", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, c.errorFromResponse("open stream", resp)
	}

	c.logger.Debug("stream opened", "status", resp.StatusCode, "content_type", resp.Header.Get("Content-Type"))
	return resp.Body, nil
}

// HealthStatus is the service's health report
type HealthStatus struct {
	Status         string `json:"status"`
	Timestamp      string `json:"timestamp"`
	Version        string `json:"version"`
	AutogenVersion string `json:"autogen_version"`
	ModelStatus    string `json:"model_status"`
}

// Healthy reports whether the service considers itself healthy.
func (h *HealthStatus) Healthy() bool {
	return h.Status == "healthy"
}

// Health queries the health endpoint.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+c.healthPath, nil)
	if err != nil {
		return nil, &TransportError{Op: "health check", Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "health check", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.errorFromResponse("health check", resp)
	}

	var status HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("parsing health response: %w", err)
	}
	return &status, nil
}

// errorFromResponse extracts an error message from non-2xx responses.
func (c *Client) errorFromResponse(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	te := &TransportError{Op: op, StatusCode: resp.StatusCode}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var errResp struct {
			Detail string `json:"detail"`
			Error  string `json:"error"`
		}
		if json.Unmarshal(body, &errResp) == nil {
			te.Detail = errResp.Detail
			if te.Detail == "" {
				te.Detail = errResp.Error
			}
		}
	}
	if te.Detail == "" {
		te.Detail = strings.TrimSpace(string(body))
	}

	c.logger.Warn("service returned error status", "op", op, "status", resp.StatusCode)
	return te
}
