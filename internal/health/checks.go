package health

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/felixgeelhaar/campus/internal/contract"
	"github.com/felixgeelhaar/campus/internal/platform"
	"github.com/felixgeelhaar/campus/internal/token"
	"github.com/felixgeelhaar/campus/internal/tokenstore"
)

// BackendChecker probes the backend's /health endpoint.
type BackendChecker struct {
	client  *http.Client
	baseURL string
}

// NewBackendChecker creates a checker for the backend at baseURL.
func NewBackendChecker(client *http.Client, baseURL string) *BackendChecker {
	if client == nil {
		client = http.DefaultClient
	}
	return &BackendChecker{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

// Name returns "backend".
func (c *BackendChecker) Name() string { return "backend" }

// Check reports unhealthy when the backend cannot be reached and degraded
// when it answers but is not serving.
func (c *BackendChecker) Check(ctx context.Context) *Result {
	url := c.baseURL + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Unhealthy(fmt.Sprintf("invalid backend URL: %v", err))
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return Unhealthy("backend unreachable").
			WithDetail("url", c.baseURL).
			WithDetail("error", err.Error())
	}
	defer resp.Body.Close()
	latency := time.Since(start)

	switch {
	case resp.StatusCode == http.StatusOK:
		return Healthy("backend is serving").WithDetail("url", c.baseURL).WithLatency(latency)
	case resp.StatusCode == http.StatusServiceUnavailable:
		return Degraded("backend is shutting down or overloaded").WithDetail("url", c.baseURL).WithLatency(latency)
	default:
		return Unhealthy(fmt.Sprintf("backend health answered %d", resp.StatusCode)).
			WithDetail("url", c.baseURL).WithLatency(latency)
	}
}

// ContractChecker compares the client's endpoints with the contract the
// backend publishes.
type ContractChecker struct {
	client  *http.Client
	baseURL string
}

// NewContractChecker creates a checker for the contract served at baseURL.
func NewContractChecker(client *http.Client, baseURL string) *ContractChecker {
	return &ContractChecker{client: client, baseURL: baseURL}
}

// Name returns "contract".
func (c *ContractChecker) Name() string { return "contract" }

// Check is degraded when no contract is published, unhealthy when it
// disagrees with the client.
func (c *ContractChecker) Check(ctx context.Context) *Result {
	doc, err := contract.Fetch(ctx, c.client, c.baseURL)
	if err != nil {
		return Degraded("backend publishes no usable contract").WithDetail("error", err.Error())
	}
	findings := doc.Check(platform.Endpoints)
	if len(findings) > 0 {
		r := Unhealthy(fmt.Sprintf("%d of %d client endpoints disagree with the contract",
			len(findings), len(platform.Endpoints)))
		for _, f := range findings {
			r.WithDetail(f.Method+" "+f.Path, f.Message)
		}
		return r
	}
	return Healthy(fmt.Sprintf("all %d client endpoints match", len(platform.Endpoints))).
		WithDetail("version", doc.Version())
}

// StoreChecker verifies the token store can persist credentials.
type StoreChecker struct {
	store tokenstore.Store
	dir   string
}

// NewStoreChecker creates a checker for store. dir is where a file store
// writes; it is empty for the memory store.
func NewStoreChecker(store tokenstore.Store, dir string) *StoreChecker {
	return &StoreChecker{store: store, dir: dir}
}

// Name returns "token-store".
func (c *StoreChecker) Name() string { return "token-store" }

// Check is degraded for the memory store, since sessions end with the
// process, and unhealthy when the file store's directory is not writable.
func (c *StoreChecker) Check(ctx context.Context) *Result {
	if c.dir == "" {
		return Degraded("memory store keeps the session for one command only").
			WithDetail("backend", c.store.Name())
	}

	if err := os.MkdirAll(c.dir, 0o700); err != nil {
		return Unhealthy("cannot create the credentials directory").
			WithDetail("dir", c.dir).
			WithDetail("error", err.Error())
	}
	probe, err := os.CreateTemp(c.dir, ".probe-*")
	if err != nil {
		return Unhealthy("credentials directory is not writable").
			WithDetail("dir", c.dir).
			WithDetail("error", err.Error())
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)

	return Healthy("credentials are persisted").
		WithDetail("backend", c.store.Name()).
		WithDetail("dir", c.dir)
}

// SessionChecker inspects the stored access and refresh tokens.
type SessionChecker struct {
	store     tokenstore.Store
	validator *token.Validator
}

// NewSessionChecker creates a checker for the session held in store.
func NewSessionChecker(store tokenstore.Store, validator *token.Validator) *SessionChecker {
	if validator == nil {
		validator = token.NewValidator()
	}
	return &SessionChecker{store: store, validator: validator}
}

// Name returns "session".
func (c *SessionChecker) Name() string { return "session" }

// Check never reports unhealthy: a missing or expired session is a normal
// state, so it is degraded with a hint.
func (c *SessionChecker) Check(ctx context.Context) *Result {
	access, _ := c.store.Get(tokenstore.KeyAccessToken)
	_, hasRefresh := c.store.Get(tokenstore.KeyRefreshToken)

	if access == "" {
		if hasRefresh {
			return Degraded("access token missing; run 'campus auth refresh'")
		}
		return Degraded("not signed in")
	}

	remaining, ok := c.validator.Remaining(access)
	if !ok {
		if hasRefresh {
			return Degraded("access token expired; run 'campus auth refresh'").
				WithDetail("token", token.Fingerprint(access))
		}
		return Degraded("access token expired; sign in again").
			WithDetail("token", token.Fingerprint(access))
	}

	r := Healthy(fmt.Sprintf("signed in, token valid for %s", remaining.Round(time.Second))).
		WithDetail("role", token.Role(access).String()).
		WithDetail("token", token.Fingerprint(access))
	if !hasRefresh {
		r.WithDetail("refresh", "none stored")
	}
	return r
}
