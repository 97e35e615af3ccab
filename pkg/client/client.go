// Package client provides the HTTP fetcher used to read the starred
// repositories listing, with bounded retry, optional proxying and an
// optional page cache.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/github-star-export/pkg/cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for fetch operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "star_export_requests_total",
		Help: "Total listing requests by status",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "star_export_request_duration_seconds",
		Help:    "Listing fetch duration in seconds, retries included",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "star_export_errors_total",
		Help: "Total request errors by class",
	}, []string{"class"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "star_export_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "star_export_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 4, 8, 16, 30},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "star_export_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// DefaultUserAgent identifies the exporter when no User-Agent is configured.
const DefaultUserAgent = "github-star-export/0.1.0"

// PageCache is the subset of cache.Manager the client uses.
type PageCache interface {
	Get(ctx context.Context, key cache.CacheKey) (*cache.CacheEntry, error)
	Set(ctx context.Context, key cache.CacheKey, entry *cache.CacheEntry) error
	UpdateTTL(ctx context.Context, key cache.CacheKey, newExpires time.Time) error
	FallbackTTL() time.Duration
}

// Config holds the client configuration.
type Config struct {
	// UserAgent header sent with every request.
	UserAgent string

	// ProxyURL routes every request through the given proxy when set,
	// e.g. "http://127.0.0.1:7890".
	ProxyURL string

	// Timeout bounds a single HTTP request (not the retries around it).
	Timeout time.Duration

	// Retry is the retry policy applied to every fetch.
	Retry RetryPolicy

	// Cache stores fetched pages. Nil disables caching.
	Cache PageCache
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		UserAgent: DefaultUserAgent,
		Timeout:   30 * time.Second,
		Retry:     DefaultRetryPolicy(),
	}
}

// Response is a fetched page.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// FromCache is set when the body came from the page cache.
	FromCache bool
}

// Client fetches listing pages.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if err := cfg.Retry.Validate(); err != nil {
		return nil, fmt.Errorf("retry policy: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	if cfg.ProxyURL != "" {
		proxy, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		if proxy.Scheme == "" || proxy.Host == "" {
			return nil, fmt.Errorf("proxy url must include scheme and host (got %q)", cfg.ProxyURL)
		}
		transport.Proxy = http.ProxyURL(proxy)
	}

	logger := log.With().Str("component", "fetcher").Logger()
	if cfg.ProxyURL != "" {
		logger.Debug().Str("proxy", cfg.ProxyURL).Msg("Using proxy")
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		config: cfg,
		logger: logger,
	}, nil
}

// Fetch issues a GET for rawURL with query merged into its query string.
// Transient failures are retried according to the retry policy. Any
// status >= 400 that is not retried, or is still failing after the last
// retry, is returned as a *RequestError.
func (c *Client) Fetch(ctx context.Context, rawURL string, query url.Values) (*Response, error) {
	u, err := buildURL(rawURL, query)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassInvalid)).Inc()
		return nil, &RequestError{URL: rawURL, ErrorClass: ErrorClassInvalid, Err: err}
	}
	target := u.String()

	startTime := time.Now()
	defer func() {
		requestDuration.Observe(time.Since(startTime).Seconds())
	}()

	var (
		key    cache.CacheKey
		cached *cache.CacheEntry
	)
	if c.config.Cache != nil {
		key = cache.KeyFor(u)
		cached, err = c.config.Cache.Get(ctx, key)
		if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("url", target).Msg("Cache get error")
		}
		if cached != nil && !cache.ShouldMakeConditionalRequest(cached) {
			c.logger.Debug().Str("url", target).Msg("Serving page from cache")
			requestsTotal.WithLabelValues("cache").Inc()
			return entryToResponse(cached), nil
		}
	}

	var resp *Response
	err = retryWithBackoff(ctx, c.logger, c.config.Retry, http.MethodGet, func(attempt int) error {
		var attemptErr error
		resp, attemptErr = c.do(ctx, target, cached, attempt)
		return attemptErr
	})
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusNotModified && cached != nil:
		c.logger.Debug().Str("url", target).Msg("304 Not Modified - using cache")
		cache.NotModifiedResponses.Inc()
		if expires := resp.Header.Get("Expires"); expires != "" {
			if newExpires, err := http.ParseTime(expires); err == nil {
				if err := c.config.Cache.UpdateTTL(ctx, key, newExpires); err != nil {
					c.logger.Warn().Err(err).Msg("Failed to update cache TTL")
				}
			}
		}
		return entryToResponse(cached), nil

	case resp.StatusCode == http.StatusOK && c.config.Cache != nil:
		entry := cache.NewEntry(resp.StatusCode, resp.Header, resp.Body, c.config.Cache.FallbackTTL())
		if err := c.config.Cache.Set(ctx, key, entry); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache page")
		} else {
			c.logger.Debug().Str("url", target).Dur("ttl", entry.TTL()).Msg("Cached page")
		}
	}

	return resp, nil
}

// do performs a single HTTP attempt.
func (c *Client) do(ctx context.Context, target string, cached *cache.CacheEntry, attempt int) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &RequestError{URL: target, ErrorClass: ErrorClassInvalid, Attempts: attempt, Err: err}
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "text/html")
	if cached != nil {
		cache.AddConditionalHeaders(req, cached)
		cache.ConditionalRequestsSent.Inc()
	}

	c.logger.Debug().
		Str("url", target).
		Int("attempt", attempt).
		Msg("Executing request")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues("network_error").Inc()
		return nil, &RequestError{
			URL:        target,
			ErrorClass: ErrorClassNetwork,
			Attempts:   attempt,
			Err:        err,
			transient:  ctx.Err() == nil,
		}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues("network_error").Inc()
		return nil, &RequestError{
			URL:        target,
			StatusCode: httpResp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Attempts:   attempt,
			Err:        fmt.Errorf("read body: %w", err),
			transient:  ctx.Err() == nil,
		}
	}

	requestsTotal.WithLabelValues(strconv.Itoa(httpResp.StatusCode)).Inc()

	if httpResp.StatusCode >= 400 {
		errClass := classifyStatus(httpResp.StatusCode)
		errorsTotal.WithLabelValues(string(errClass)).Inc()

		c.logger.Warn().
			Str("url", target).
			Int("status", httpResp.StatusCode).
			Str("error_class", string(errClass)).
			Int("attempt", attempt).
			Msg("Request error")

		return nil, &RequestError{
			URL:        target,
			StatusCode: httpResp.StatusCode,
			ErrorClass: errClass,
			Attempts:   attempt,
			Err:        errors.New(httpResp.Status),
			transient:  c.config.Retry.IsRetryableStatus(httpResp.StatusCode),
		}
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header.Clone(),
		Body:       body,
	}, nil
}

// buildURL parses rawURL and merges query into it. Values in query replace
// those already present.
func buildURL(rawURL string, query url.Values) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("url %q has no host", rawURL)
	}

	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			q[k] = append([]string(nil), vs...)
		}
		u.RawQuery = q.Encode()
	}
	return u, nil
}

func entryToResponse(entry *cache.CacheEntry) *Response {
	return &Response{
		StatusCode: entry.StatusCode,
		Header:     entry.Headers.Clone(),
		Body:       entry.Body,
		FromCache:  true,
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Policy returns the retry policy in use.
func (c *Client) Policy() RetryPolicy {
	return c.config.Retry
}
