// Package ha provides the Home Assistant REST client used for entity state
// reads and switch/valve service calls.
package ha

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// EntityState is the subset of a Home Assistant state object the scheduler needs.
type EntityState struct {
	EntityID    string `json:"entity_id"`
	State       string `json:"state"`
	LastChanged string `json:"last_changed"`
}

// Client is the surface the scheduler consumes. Implemented by the HTTP
// client below and by the Fake in tests.
type Client interface {
	// GetEntityState returns the current state of an entity, or an error
	// when the entity is unavailable or the platform is unreachable.
	GetEntityState(ctx context.Context, entityID string) (*EntityState, error)
	// TurnOn and TurnOff call the entity domain's turn_on/turn_off service.
	TurnOn(ctx context.Context, entityID string) error
	TurnOff(ctx context.Context, entityID string) error
	// IsReachable is a cheap connectivity probe.
	IsReachable(ctx context.Context) bool
	// ListEntities returns all entities, optionally filtered by domain prefix.
	// Used only by the configuration API.
	ListEntities(ctx context.Context, domain string) ([]EntityState, error)
}

// ErrUnavailable is returned when the platform cannot answer for an entity.
var ErrUnavailable = errors.New("ha: entity unavailable")

// HTTPClient talks to the Home Assistant core REST API, usually through the
// supervisor proxy. All calls are bounded by short timeouts and guarded by a
// circuit breaker so a dead platform is detected cheaply.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
	probe   *http.Client
	breaker *gobreaker.CircuitBreaker
}

// Config holds HTTP client configuration.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// NewHTTPClient creates a client for the given API base URL and bearer token.
func NewHTTPClient(cfg Config) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client:  &http.Client{Timeout: timeout},
		probe:   &http.Client{Timeout: 2 * time.Second},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:     "ha-core",
			Timeout:  15 * time.Second,
			Interval: 60 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Printf("HA breaker %s: %s -> %s", name, from, to)
			},
		}),
	}
}

// GetEntityState implements Client.
func (c *HTTPClient) GetEntityState(ctx context.Context, entityID string) (*EntityState, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := c.newRequest(ctx, http.MethodGet, "/states/"+entityID, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch state for %s: %w", entityID, err)
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrUnavailable, entityID)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("state %s: status %d", entityID, resp.StatusCode)
		}
		var state EntityState
		if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
			return nil, fmt.Errorf("decode state %s: %w", entityID, err)
		}
		return &state, nil
	})
	if err != nil {
		return nil, err
	}
	return out.(*EntityState), nil
}

// TurnOn implements Client.
func (c *HTTPClient) TurnOn(ctx context.Context, entityID string) error {
	return c.callService(ctx, entityID, "turn_on")
}

// TurnOff implements Client.
func (c *HTTPClient) TurnOff(ctx context.Context, entityID string) error {
	return c.callService(ctx, entityID, "turn_off")
}

// callService posts to /services/{domain}/{service} with the entity as data.
// The domain is the entity ID prefix, matching how Home Assistant routes
// switch.*, valve.* and light.* service calls.
func (c *HTTPClient) callService(ctx context.Context, entityID, service string) error {
	domain := entityID
	if i := strings.IndexByte(entityID, '.'); i > 0 {
		domain = entityID[:i]
	}
	body, _ := json.Marshal(map[string]string{"entity_id": entityID})

	_, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := c.newRequest(ctx, http.MethodPost, "/services/"+domain+"/"+service, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("call %s.%s for %s: %w", domain, service, entityID, err)
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("call %s.%s for %s: status %d", domain, service, entityID, resp.StatusCode)
		}
		return nil, nil
	})
	return err
}

// IsReachable implements Client. A tripped breaker reads as unreachable
// without touching the network.
func (c *HTTPClient) IsReachable(ctx context.Context) bool {
	if c.breaker.State() == gobreaker.StateOpen {
		return false
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/", nil)
	if err != nil {
		return false
	}
	resp, err := c.probe.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ListEntities implements Client.
func (c *HTTPClient) ListEntities(ctx context.Context, domain string) ([]EntityState, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/states", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch entities: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch entities: status %d", resp.StatusCode)
	}
	var all []EntityState
	if err := json.NewDecoder(resp.Body).Decode(&all); err != nil {
		return nil, fmt.Errorf("decode entities: %w", err)
	}
	if domain == "" {
		return all, nil
	}
	prefix := domain + "."
	filtered := all[:0]
	for _, e := range all {
		if strings.HasPrefix(e.EntityID, prefix) {
			filtered = append(filtered, e)
		}
	}
	return filtered, nil
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body *bytes.Reader) (*http.Request, error) {
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	}
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}
