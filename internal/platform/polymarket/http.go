// Package polymarket implements REST and WebSocket clients for the Polymarket
// Gamma and CLOB APIs.
package polymarket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/polyquery/polymarket-mcp/internal/domain"
)

// Options configure shared HTTP behaviour for the REST clients.
type Options struct {
	// Timeout is the per-request deadline. Zero means DefaultTimeout.
	Timeout time.Duration

	// RetryBase and RetryMaxAttempts bound the exponential backoff applied
	// to HTTP 429 responses: attempt n sleeps RetryBase * 2^(n-1). Zero
	// values mean DefaultRetryBase / DefaultRetryMaxAttempts.
	RetryBase        time.Duration
	RetryMaxAttempts int

	// Limiter, when non-nil, is consulted before every outbound request so
	// the upstream rate limit is respected proactively rather than only
	// reacting to 429s. LimitPerSec caps requests per second per API.
	Limiter     domain.RateLimiter
	LimitPerSec int

	Logger *slog.Logger
}

const (
	DefaultTimeout          = 30 * time.Second
	DefaultRetryBase        = time.Second
	DefaultRetryMaxAttempts = 3
)

// core carries the HTTP client, retry policy, and rate limiting shared by the
// Gamma and CLOB clients.
type core struct {
	httpClient  *http.Client
	retryBase   time.Duration
	maxAttempts int
	limiter     domain.RateLimiter
	limitPerSec int
	limitKey    string
	logger      *slog.Logger
}

func newCore(opts Options, limitKey string) core {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	base := opts.RetryBase
	if base <= 0 {
		base = DefaultRetryBase
	}
	attempts := opts.RetryMaxAttempts
	if attempts < 1 {
		attempts = DefaultRetryMaxAttempts
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return core{
		httpClient:  &http.Client{Timeout: timeout},
		retryBase:   base,
		maxAttempts: attempts,
		limiter:     opts.Limiter,
		limitPerSec: opts.LimitPerSec,
		limitKey:    limitKey,
		logger:      logger.With(slog.String("component", "polymarket/"+limitKey)),
	}
}

// get sends a GET request, applying rate limiting, 429 retry with backoff, and
// domain error mapping. It returns the raw response body.
func (c *core) get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := c.waitLimiter(ctx); err != nil {
			return nil, err
		}

		body, err := c.doOnce(ctx, url, headers)
		if err == nil {
			return body, nil
		}
		lastErr = err

		// Only 429 is retried; timeouts and other failures surface
		// immediately.
		if !errors.Is(err, domain.ErrRateLimited) || attempt == c.maxAttempts {
			return nil, err
		}

		delay := c.retryBase << (attempt - 1)
		c.logger.WarnContext(ctx, "rate limited by upstream, backing off",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, lastErr
}

// doOnce performs a single request/response exchange.
func (c *core) doOnce(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, mapTransportErr(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", mapTransportErr(err))
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	return body, nil
}

func (c *core) waitLimiter(ctx context.Context) error {
	if c.limiter == nil || c.limitPerSec <= 0 {
		return nil
	}
	if err := c.limiter.Wait(ctx, c.limitKey, c.limitPerSec, time.Second); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

// checkHTTPStatus maps non-2xx status codes to domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}

// mapTransportErr converts deadline and net timeouts into domain.ErrTimeout so
// callers can distinguish a slow upstream from other transport failures.
func mapTransportErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	return fmt.Errorf("http request: %w", err)
}
