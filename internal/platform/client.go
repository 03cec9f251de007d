// Package platform is the REST client for the English-center backend.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/campus/internal/errors"
	"github.com/felixgeelhaar/campus/internal/log"
)

// DefaultTimeout bounds every request so callers never wait indefinitely.
const DefaultTimeout = 5 * time.Second

// RequestIDHeader carries a per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// TokenSource supplies the access token attached as the bearer credential.
type TokenSource interface {
	Token() string
}

// Client is the backend API client
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	tokens TokenSource
	logger *log.Logger

	mu             sync.RWMutex
	onUnauthorized func()
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.HTTPClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.HTTPClient = hc
		}
	}
}

// WithTokenSource sets where the bearer token comes from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithUnauthorizedHandler installs the global 401 hook.
func WithUnauthorizedHandler(fn func()) Option {
	return func(c *Client) {
		c.onUnauthorized = fn
	}
}

// NewClient creates a new API client
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = log.OrDefault(c.logger).WithComponent("platform")
	return c
}

// SetUnauthorizedHandler installs the global 401 hook after construction.
// The session controller and the client depend on each other, so one side
// is always wired late.
func (c *Client) SetUnauthorizedHandler(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

func (c *Client) unauthorizedHandler() func() {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.onUnauthorized
}

// requestOptions tunes a single call.
type requestOptions struct {
	// bearer overrides the token source when set.
	bearer string
	// anonymous calls never trigger the 401 hook.
	anonymous bool
}

// doRequest performs an HTTP request with authentication
func (c *Client) doRequest(ctx context.Context, method, path string, body any, ro requestOptions) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeBadRequest, "failed to marshal request body", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeBadRequest, "failed to create request", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)

	bearer := ro.bearer
	if bearer == "" && c.tokens != nil {
		bearer = c.tokens.Token()
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "path", path, "request_id", requestID, "error", err)
		return nil, classifyTransportError(ctx, err)
	}
	c.logger.Debug("request completed",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration", time.Since(start),
	)

	if resp.StatusCode == http.StatusUnauthorized && !ro.anonymous {
		if hook := c.unauthorizedHandler(); hook != nil {
			c.logger.Info("backend rejected the session", "path", path, "request_id", requestID)
			hook()
		}
	}

	return resp, nil
}

func classifyTransportError(ctx context.Context, err error) error {
	var netErr net.Error
	switch {
	case stderrors.Is(err, context.DeadlineExceeded),
		ctx.Err() == context.DeadlineExceeded,
		stderrors.As(err, &netErr) && netErr.Timeout():
		return errors.NewTimeoutError(err)
	default:
		return errors.NewNetworkError(err)
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// parseResponse parses the response body into the target struct
func parseResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return statusError(resp.StatusCode, backendMessage(body))
	}

	if target == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		if err == io.EOF {
			return nil
		}
		return errors.Wrap(errors.ErrCodeDecodeResponse, "failed to decode response", err)
	}
	return nil
}

// backendMessage extracts {error|message} from a JSON body, falling back to
// the trimmed raw body.
func backendMessage(body []byte) string {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		if errResp.Message != "" {
			return errResp.Message
		}
		if errResp.Error != "" {
			return errResp.Error
		}
	}
	return strings.TrimSpace(string(body))
}

func statusError(status int, msg string) error {
	switch {
	case status == http.StatusUnauthorized:
		if msg == "" {
			msg = "Unauthorized"
		}
		return errors.New(errors.ErrCodeUnauthorized, msg)
	case status == http.StatusBadGateway,
		status == http.StatusServiceUnavailable,
		status == http.StatusGatewayTimeout:
		return errors.New(errors.ErrCodeServiceUnavailable, "Service unavailable").
			WithSuggestion("The backend is temporarily unreachable; try again shortly")
	case status >= 500:
		cause := fmt.Errorf("status %d", status)
		if msg != "" {
			cause = fmt.Errorf("status %d: %s", status, msg)
		}
		return errors.Wrap(errors.ErrCodeServerError, "Server error", cause)
	default:
		if msg == "" {
			msg = fmt.Sprintf("request failed with status %d", status)
		}
		return errors.New(errors.ErrCodeBadRequest, msg)
	}
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	return errors.HasCode(err, errors.ErrCodeUnauthorized)
}
