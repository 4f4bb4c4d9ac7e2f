// Package upstream talks to offset-paginated REST event APIs. A Client
// handles transport concerns (user agent, headers, retries, rate limit
// budget) and a Source maps one upstream onto the aggregator's Source
// contract: count probe, page fetch and single-item lookup.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/event-aggregator/pkg/event"
	"github.com/Sternrassler/event-aggregator/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for upstream requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_upstream_requests_total",
		Help: "Total upstream requests by source and status",
	}, []string{"source", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "events_upstream_request_duration_seconds",
		Help:    "Upstream request duration in seconds by source",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"source"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_upstream_errors_total",
		Help: "Total upstream errors by source and class",
	}, []string{"source", "class"})
)

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 16 << 20

// ClientConfig holds the client configuration.
type ClientConfig struct {
	// Source identifies the upstream in logs, metrics and errors.
	Source event.SourceID

	// BaseURL is prepended to every request path.
	BaseURL string

	// UserAgent is sent with every request.
	UserAgent string

	// Headers are static request headers (e.g., Authorization).
	Headers map[string]string

	// Timeout bounds a single HTTP attempt. Zero means 30s.
	Timeout time.Duration

	// Retry controls retries of server, rate limit and network failures.
	Retry RetryConfig

	// RateLimiter gates requests on the upstream's advertised budget. Optional.
	RateLimiter *ratelimit.Tracker

	// HTTPClient overrides the transport. Optional.
	HTTPClient *http.Client
}

// Client performs JSON GET requests against one upstream.
type Client struct {
	httpClient  *http.Client
	baseURL     *url.URL
	source      event.SourceID
	userAgent   string
	headers     map[string]string
	retry       RetryConfig
	rateLimiter *ratelimit.Tracker
	logger      zerolog.Logger
}

// NewClient creates a new upstream client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Source == "" {
		return nil, fmt.Errorf("source id is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https (got %q)", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	retry := cfg.Retry
	if retry.MaxAttempts == 0 {
		retry = DefaultRetryConfig()
	}

	return &Client{
		httpClient:  httpClient,
		baseURL:     base,
		source:      cfg.Source,
		userAgent:   cfg.UserAgent,
		headers:     cfg.Headers,
		retry:       retry,
		rateLimiter: cfg.RateLimiter,
		logger: log.With().
			Str("component", "upstream-client").
			Str("source", string(cfg.Source)).
			Logger(),
	}, nil
}

// Source returns the upstream id this client talks to.
func (c *Client) Source() event.SourceID {
	return c.source
}

// GetJSON performs a GET request for path with params and returns the body
// of a 2xx response. Failures are returned as *Error (possibly wrapped in
// ErrRetryExhausted).
func (c *Client) GetJSON(ctx context.Context, path string, params url.Values) ([]byte, error) {
	target := c.resolve(path, params)
	source := string(c.source)

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(source).Observe(time.Since(startTime).Seconds())
	}()

	var body []byte
	err := retryWithBackoff(ctx, c.logger, source, c.retry, func() error {
		var err error
		body, err = c.do(ctx, target)
		return err
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// do executes a single attempt.
func (c *Client) do(ctx context.Context, target string) ([]byte, error) {
	source := string(c.source)

	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			if errors.Is(err, ratelimit.ErrBudgetExhausted) {
				requestsTotal.WithLabelValues(source, "rate_limited").Inc()
				errorsTotal.WithLabelValues(source, string(ErrorClassClient)).Inc()
				// Retrying before the window resets cannot succeed.
				return nil, &Error{Source: c.source, Class: ErrorClassClient, Message: "request blocked by rate limiter", Err: err}
			}
			c.logger.Warn().Err(err).Msg("Rate limit check failed")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &Error{Source: c.source, Class: ErrorClassClient, Message: "create request", Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	c.logger.Debug().Str("url", target).Msg("Executing upstream request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		errorsTotal.WithLabelValues(source, string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(source, "network_error").Inc()
		c.logger.Warn().Err(err).Str("url", target).Msg("HTTP request failed")
		return nil, &Error{Source: c.source, Class: ErrorClassNetwork, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(source, strconv.Itoa(resp.StatusCode)).Inc()

	if c.rateLimiter != nil {
		if err := c.rateLimiter.UpdateFromHeaders(ctx, resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
		}
	}

	if class := classifyStatus(resp.StatusCode); class != "" {
		errorsTotal.WithLabelValues(source, string(class)).Inc()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn().
			Str("url", target).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Upstream request error")
		msg := resp.Status
		if s := strings.TrimSpace(string(snippet)); s != "" {
			msg += ": " + s
		}
		return nil, &Error{Source: c.source, StatusCode: resp.StatusCode, Class: class, Message: msg}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		errorsTotal.WithLabelValues(source, string(ErrorClassNetwork)).Inc()
		return nil, &Error{Source: c.source, StatusCode: resp.StatusCode, Class: ErrorClassNetwork, Message: "read body", Err: err}
	}
	return body, nil
}

// resolve joins path and params onto the base URL.
func (c *Client) resolve(path string, params url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
