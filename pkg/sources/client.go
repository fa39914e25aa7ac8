// Package sources holds the external data-provider clients the fetcher
// draws metric partials from. Every provider shares the same HTTP wrapper:
// a per-provider rate limiter plus a failure-count circuit breaker, so a
// misbehaving upstream is backed off without affecting the others.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/assetlab-io/assetx/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client is a rate-limited, circuit-broken HTTP JSON client for one provider.
type Client struct {
	name    string
	client  *http.Client
	limiter *rate.Limiter
	headers map[string]string
	logger  *zap.Logger

	// circuit-breaker
	mu       sync.Mutex
	failures int
	openedAt time.Time

	breakerThreshold int
	breakerCooldown  time.Duration
}

// Opts is the set of options for a new provider Client.
type Opts struct {
	Name            string
	Timeout         time.Duration
	RPS             float64
	Burst           int
	BreakerFailures int
	BreakerCooldown time.Duration
	Headers         map[string]string
	HTTPClient      *http.Client
}

// NewClient creates a provider client with the given options.
func NewClient(logger *zap.Logger, o Opts) *Client {
	if o.RPS <= 0 {
		o.RPS = 2
	}
	if o.Burst <= 0 {
		o.Burst = 4
	}
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	if o.BreakerFailures <= 0 {
		o.BreakerFailures = 3
	}
	if o.BreakerCooldown <= 0 {
		o.BreakerCooldown = 30 * time.Second
	}

	client := o.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: o.Timeout}
	} else if client.Timeout == 0 {
		client.Timeout = o.Timeout
	}

	return &Client{
		name:             o.Name,
		client:           client,
		limiter:          rate.NewLimiter(rate.Limit(o.RPS), o.Burst),
		headers:          o.Headers,
		logger:           logger,
		breakerThreshold: o.BreakerFailures,
		breakerCooldown:  o.BreakerCooldown,
	}
}

// Name returns the provider name for logging and metrics labels.
func (c *Client) Name() string {
	return c.name
}

// isOpen reports whether the breaker is currently open.
func (c *Client) isOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.openedAt.IsZero() {
		return false
	}
	if time.Since(c.openedAt) > c.breakerCooldown {
		c.openedAt = time.Time{}
		c.failures = 0
		return false
	}
	return true
}

// noteFailure records a failure and opens the breaker past the threshold.
func (c *Client) noteFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
	if c.failures >= c.breakerThreshold {
		c.openedAt = time.Now()
		c.logger.Warn("Provider circuit breaker opened",
			zap.String("provider", c.name),
			zap.Int("failures", c.failures),
			zap.Duration("cooldown", c.breakerCooldown))
	}
}

// noteSuccess resets the failure count.
func (c *Client) noteSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = 0
	c.openedAt = time.Time{}
}

// GetJSON performs a rate-limited GET and decodes the response body into a
// generic JSON document.
func (c *Client) GetJSON(ctx context.Context, url string) (map[string]any, error) {
	var doc map[string]any
	if err := c.get(ctx, url, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// GetJSONList performs a rate-limited GET against an endpoint returning a
// top-level JSON array.
func (c *Client) GetJSONList(ctx context.Context, url string) ([]map[string]any, error) {
	var docs []map[string]any
	if err := c.get(ctx, url, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *Client) get(ctx context.Context, url string, out any) error {
	if c.isOpen() {
		return fmt.Errorf("%s: circuit breaker open", c.name)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: rate limit wait: %w", c.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", c.name, err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.noteFailure()
		return fmt.Errorf("%s: %w", c.name, err)
	}
	defer func() { _ = utils.DrainAndClose(resp.Body) }()

	if resp.StatusCode != http.StatusOK {
		c.noteFailure()
		return fmt.Errorf("%s: unexpected status %d for %s", c.name, resp.StatusCode, url)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.noteFailure()
		return fmt.Errorf("%s: decode response: %w", c.name, err)
	}

	c.noteSuccess()
	return nil
}
