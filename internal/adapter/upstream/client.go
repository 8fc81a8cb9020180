package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sm8ta/f1_dashboard_cache/internal/core/domain"
	"github.com/sm8ta/f1_dashboard_cache/internal/core/ports"
)

// MaxRetries is the number of attempts made after the first one.
const MaxRetries = 3

const (
	defaultNetworkBackoff = 2 * time.Second
	maxBodyBytes          = 32 << 20
	maxErrorMessage       = 256
	userAgent             = "f1-dashboard-cache/1.0"
)

var defaultRateLimitBackoff = []time.Duration{time.Second, 3 * time.Second, 8 * time.Second}

// UpstreamError is returned once a provider answered with a non-2xx status or
// could not be reached after all retries. Status is zero for transport failures.
type UpstreamError struct {
	Provider domain.Provider
	Endpoint string
	Status   int
	Message  string
}

func (e *UpstreamError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s %s: transport failure: %s", e.Provider, e.Endpoint, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Provider, e.Endpoint, e.Status, e.Message)
}

type Limiter interface {
	Acquire(ctx context.Context) error
}

type Provider struct {
	BaseURL string
	Limiter Limiter
}

type Option func(*Client)

// WithBackoff replaces the 429 schedule and the transport failure delay.
func WithBackoff(rateLimited []time.Duration, network time.Duration) Option {
	return func(c *Client) {
		c.rateLimitBackoff = rateLimited
		c.networkBackoff = network
	}
}

// WithSleep replaces the context-aware sleep, used by tests to record waits.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		c.sleep = sleep
	}
}

type Client struct {
	http      *http.Client
	providers map[domain.Provider]Provider
	logger    ports.LoggerPort
	metrics   ports.MetricsPort

	rateLimitBackoff []time.Duration
	networkBackoff   time.Duration
	sleep            func(ctx context.Context, d time.Duration) error
}

func NewClient(
	httpClient *http.Client,
	providers map[domain.Provider]Provider,
	logger ports.LoggerPort,
	metrics ports.MetricsPort,
	opts ...Option,
) *Client {
	c := &Client{
		http:             httpClient,
		providers:        providers,
		logger:           logger,
		metrics:          metrics,
		rateLimitBackoff: defaultRateLimitBackoff,
		networkBackoff:   defaultNetworkBackoff,
		sleep:            sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchResource issues a rate limited GET and returns the JSON body verbatim.
func (c *Client) FetchResource(ctx context.Context, provider domain.Provider, endpoint string, params url.Values) (json.RawMessage, error) {
	const op = "upstream.FetchResource"

	p, ok := c.providers[provider]
	if !ok {
		return nil, fmt.Errorf("%s: unknown provider %q", op, provider)
	}

	target := strings.TrimRight(p.BaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if err := p.Limiter.Acquire(ctx); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		body, status, err := c.get(ctx, target)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%s: %w", op, ctx.Err())
			}
			c.count(provider, "transport_error")
			lastErr = &UpstreamError{Provider: provider, Endpoint: endpoint, Message: err.Error()}
			if attempt == MaxRetries {
				break
			}
			c.logger.Warn("Upstream transport failure, retrying", map[string]interface{}{
				"provider": provider,
				"endpoint": endpoint,
				"attempt":  attempt + 1,
				"error":    err.Error(),
			})
			if err := c.sleep(ctx, c.networkBackoff); err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}

		case status == http.StatusTooManyRequests:
			c.count(provider, "rate_limited")
			lastErr = &UpstreamError{Provider: provider, Endpoint: endpoint, Status: status, Message: "rate limited by provider"}
			if attempt == MaxRetries {
				break
			}
			wait := c.rateLimitWait(attempt)
			c.logger.Warn("Upstream rate limited, backing off", map[string]interface{}{
				"provider": provider,
				"endpoint": endpoint,
				"attempt":  attempt + 1,
				"wait_ms":  wait.Milliseconds(),
			})
			if err := c.sleep(ctx, wait); err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}

		case status < 200 || status >= 300:
			c.count(provider, "status_"+strconv.Itoa(status))
			return nil, &UpstreamError{Provider: provider, Endpoint: endpoint, Status: status, Message: truncate(string(body))}

		default:
			if !json.Valid(body) {
				c.count(provider, "invalid_json")
				return nil, &UpstreamError{Provider: provider, Endpoint: endpoint, Status: status, Message: "response is not valid JSON"}
			}
			c.count(provider, "ok")
			return json.RawMessage(body), nil
		}
	}

	c.logger.Error("Upstream retries exhausted", map[string]interface{}{
		"provider": provider,
		"endpoint": endpoint,
		"error":    lastErr.Error(),
	})
	return nil, lastErr
}

func (c *Client) get(ctx context.Context, target string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

func (c *Client) rateLimitWait(attempt int) time.Duration {
	if len(c.rateLimitBackoff) == 0 {
		return c.networkBackoff
	}
	if attempt >= len(c.rateLimitBackoff) {
		return c.rateLimitBackoff[len(c.rateLimitBackoff)-1]
	}
	return c.rateLimitBackoff[attempt]
}

func (c *Client) count(provider domain.Provider, outcome string) {
	c.metrics.IncrementCounter(ports.MetricUpstreamRequestsTotal, map[string]string{
		"provider": string(provider),
		"outcome":  outcome,
	})
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxErrorMessage {
		return s[:maxErrorMessage]
	}
	return s
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ ports.Upstream = (*Client)(nil)
