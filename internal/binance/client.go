// Package binance implements the Binance USD-M futures API adapter used by
// the fetch stage. It provides a rate-limited HTTP client with retry on
// transient failures and the paginated per-metric fetch operation.
//
// The adapter talks to the public market-data endpoints only; no API key is
// required. Requests are executed strictly sequentially by the caller, so
// the client holds no mutable state beyond its limiter.
package binance

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	apperrors "github.com/menglong24/Binance-Data-Analysis/internal/errors"
)

const (
	// Binance USD-M futures API base URL.
	defaultBaseURL = "https://fapi.binance.com"

	pingEndpoint = "/fapi/v1/ping"

	// Request configuration
	defaultTimeout = 30 * time.Second
	userAgent      = "futuresdata/1.0"

	// Rate limiting: the public endpoints weigh 1 per call against a
	// 2400/min budget; a handful of requests per second stays far under it.
	defaultRequestsPerSecond = 4
	defaultBurst             = 1

	// Retry configuration
	defaultInitialRetryDelay = 500 * time.Millisecond
	defaultMaxRetryDelay     = 30 * time.Second
	retryMultiplier          = 2.0
	retryJitter              = 0.5
)

// Config holds client construction parameters. The zero value selects the
// production defaults; tests override BaseURL and shrink the retry delays.
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	InitialRetryDelay time.Duration
	MaxRetryDelay     time.Duration
	MaxRetryElapsed   time.Duration
}

// Client is the Binance futures market-data client.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	logger     *slog.Logger

	initialRetryDelay time.Duration
	maxRetryDelay     time.Duration
	maxRetryElapsed   time.Duration
}

// NewClient creates a client with the given configuration. A nil logger
// falls back to slog.Default().
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = defaultRequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultBurst
	}
	if cfg.InitialRetryDelay <= 0 {
		cfg.InitialRetryDelay = defaultInitialRetryDelay
	}
	if cfg.MaxRetryDelay <= 0 {
		cfg.MaxRetryDelay = defaultMaxRetryDelay
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter:           rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		baseURL:           cfg.BaseURL,
		logger:            logger.With(slog.String("component", "binance_client")),
		initialRetryDelay: cfg.InitialRetryDelay,
		maxRetryDelay:     cfg.MaxRetryDelay,
		maxRetryElapsed:   cfg.MaxRetryElapsed,
	}
}

// Ping performs a lightweight connectivity check against /fapi/v1/ping.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.get(ctx, pingEndpoint, nil); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// get performs a rate-limited GET with retry on transient failures and
// returns the response body. Client errors (4xx other than 429) are
// permanent; network failures, 429 and 5xx are retried with exponential
// backoff until the context is cancelled or the backoff gives up.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	const op = "binance.get"

	requestURL := c.baseURL + path
	if len(params) > 0 {
		requestURL += "?" + params.Encode()
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initialRetryDelay
	bo.MaxInterval = c.maxRetryDelay
	bo.Multiplier = retryMultiplier
	bo.RandomizationFactor = retryJitter
	bo.MaxElapsedTime = c.maxRetryElapsed

	var body []byte

	operation := func() error {
		// Every attempt pays the limiter, retries included.
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(fmt.Errorf("rate limit wait failed: %w", err))
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err) // retryable
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
			if retryAfter > 0 {
				c.logger.Warn("rate limited by upstream, waiting", "retry_after", retryAfter)
				select {
				case <-time.After(retryAfter):
				case <-ctx.Done():
					return backoff.Permanent(ctx.Err())
				}
			}
			return fmt.Errorf("rate limited (status 429)") // retryable
		}

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err) // retryable
		}

		if resp.StatusCode >= 500 {
			return fmt.Errorf("server error %d: %s", resp.StatusCode, truncate(respBody, 200))
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(apperrors.Upstream(op, nil,
				"client error %d from %s: %s", resp.StatusCode, path, truncate(respBody, 200)))
		}

		body = respBody
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		if apperrors.KindOf(err) != "" {
			return nil, err
		}
		return nil, apperrors.Upstream(op, err, "GET %s", path)
	}

	return body, nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := time.Parse(time.RFC1123, header); err == nil {
		return time.Until(t)
	}
	return 0
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
