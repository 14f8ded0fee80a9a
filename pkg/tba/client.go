// Package tba is a minimal client for The Blue Alliance API v3, covering the
// season event list, event rosters, and team records.
package tba

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/frc-county-map/internal/apperr"
	"github.com/sells-group/frc-county-map/internal/fetcher"
)

const defaultBaseURL = "https://www.thebluealliance.com/api/v3"

// Endpoint labels passed to an Observer.
const (
	EndpointEvents     = "events"
	EndpointEventTeams = "event_teams"
	EndpointTeam       = "team"
)

// Request outcomes passed to an Observer.
const (
	OutcomeOK     = "ok"
	OutcomeCached = "cached"
	OutcomeError  = "error"
)

// Client fetches FRC events and teams.
type Client interface {
	Events(ctx context.Context, year int) ([]Event, error)
	EventTeamKeys(ctx context.Context, eventKey string) ([]string, error)
	Team(ctx context.Context, teamKey string) (*Team, error)
}

// Event is the simple event model.
type Event struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	EventCode string `json:"event_code"`
	EventType int    `json:"event_type"`
	City      string `json:"city"`
	StateProv string `json:"state_prov"`
	Country   string `json:"country"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Year      int    `json:"year"`
}

// Team is the full team model. Address fields are optional and often empty.
type Team struct {
	Key        string `json:"key"`
	TeamNumber int    `json:"team_number"`
	Nickname   string `json:"nickname"`
	Name       string `json:"name"`
	City       string `json:"city"`
	StateProv  string `json:"state_prov"`
	Country    string `json:"country"`
	PostalCode string `json:"postal_code"`
	RookieYear int    `json:"rookie_year"`
}

// DisplayName returns the nickname, falling back to the sponsor name.
func (t Team) DisplayName() string {
	if t.Nickname != "" {
		return t.Nickname
	}
	return t.Name
}

// Cache stores raw response bodies keyed by request path.
type Cache interface {
	GetCachedResponse(ctx context.Context, key string) ([]byte, error)
	SetCachedResponse(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

// Observer is notified once per request with its endpoint and outcome.
type Observer func(endpoint, outcome string)

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithDelay spaces network requests at least d apart. Zero disables spacing.
func WithDelay(d time.Duration) Option {
	return func(c *httpClient) {
		if d <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithCache serves repeated requests from cache for ttl.
func WithCache(cache Cache, ttl time.Duration) Option {
	return func(c *httpClient) {
		c.cache = cache
		c.cacheTTL = ttl
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) {
		c.userAgent = ua
	}
}

// WithObserver registers a per-request callback, typically a metrics counter.
func WithObserver(o Observer) Option {
	return func(c *httpClient) {
		c.observe = o
	}
}

type httpClient struct {
	apiKey    string
	baseURL   string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
	cache     Cache
	cacheTTL  time.Duration
	observe   Observer
}

// NewClient creates a TBA client. Requests are spaced 200ms apart unless
// WithDelay says otherwise.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:    apiKey,
		baseURL:   defaultBaseURL,
		userAgent: "frc-county-map/1.0",
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
		observe: func(string, string) {},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Events(ctx context.Context, year int) ([]Event, error) {
	events, err := get[[]Event](ctx, c, EndpointEvents, fmt.Sprintf("/events/%d/simple", year))
	if err != nil {
		return nil, err
	}
	return *events, nil
}

func (c *httpClient) EventTeamKeys(ctx context.Context, eventKey string) ([]string, error) {
	keys, err := get[[]string](ctx, c, EndpointEventTeams, "/event/"+url.PathEscape(eventKey)+"/teams/keys")
	if err != nil {
		return nil, err
	}
	return *keys, nil
}

func (c *httpClient) Team(ctx context.Context, teamKey string) (*Team, error) {
	return get[Team](ctx, c, EndpointTeam, "/team/"+url.PathEscape(teamKey))
}

// get performs one GET and decodes the body as T, consulting the cache
// first. Every failure is a ProviderError carrying the path and, when
// available, the status code.
func get[T any](ctx context.Context, c *httpClient, endpoint, path string) (*T, error) {
	if c.cache != nil {
		data, err := c.cache.GetCachedResponse(ctx, path)
		if err != nil {
			zap.L().Warn("tba: cache read failed", zap.String("path", path), zap.Error(err))
		} else if data != nil {
			if out, err := fetcher.DecodeJSONObject[T](bytes.NewReader(data)); err == nil {
				c.observe(endpoint, OutcomeCached)
				return out, nil
			}
			zap.L().Warn("tba: discarding undecodable cache entry", zap.String("path", path))
		}
	}

	data, status, err := c.fetch(ctx, path)
	if err != nil {
		c.observe(endpoint, OutcomeError)
		return nil, apperr.NewProviderError(err, path, status)
	}
	out, err := fetcher.DecodeJSONObject[T](bytes.NewReader(data))
	if err != nil {
		c.observe(endpoint, OutcomeError)
		return nil, apperr.NewProviderError(eris.Wrapf(err, "tba: decode %s", path), path, status)
	}
	c.observe(endpoint, OutcomeOK)

	if c.cache != nil && c.cacheTTL > 0 {
		if err := c.cache.SetCachedResponse(ctx, path, data, c.cacheTTL); err != nil {
			zap.L().Warn("tba: cache write failed", zap.String("path", path), zap.Error(err))
		}
	}
	return out, nil
}

func (c *httpClient) fetch(ctx context.Context, path string) ([]byte, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, eris.Wrap(err, "tba: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, 0, eris.Wrap(err, "tba: create request")
	}
	req.Header.Set("X-TBA-Auth-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, eris.Wrapf(err, "tba: GET %s", path)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, eris.Wrapf(err, "tba: read %s", path)
	}

	zap.L().Debug("tba: request",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, eris.Errorf("tba: unexpected status %d for %s: %s", resp.StatusCode, path, truncate(string(body), 200))
	}
	return body, resp.StatusCode, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
