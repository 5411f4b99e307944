package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBase = "https://api.twitter.com"

	// User timeline: 1500 req/15min por app → 60% → 1/s.
	timelineRatePerSec = 1

	defaultPageSize = 100
	maxRetries      = 3
	baseRetryWait   = time.Second
)

// Client lee timelines de la API v2 de X/Twitter con bearer token.
type Client struct {
	http      *http.Client
	base      string
	bearer    string
	limiter   *rate.Limiter
	retryWait time.Duration
	pageSize  int

	mu      sync.Mutex
	userIDs map[string]string // username → user id
}

// NewClient crea un Client. Si baseURL está vacío usa producción.
func NewClient(baseURL, bearerToken string) *Client {
	if baseURL == "" {
		baseURL = defaultBase
	}
	return &Client{
		http:      &http.Client{Timeout: 15 * time.Second},
		base:      strings.TrimRight(baseURL, "/"),
		bearer:    bearerToken,
		limiter:   rate.NewLimiter(timelineRatePerSec, 5),
		retryWait: baseRetryWait,
		pageSize:  defaultPageSize,
		userIDs:   make(map[string]string),
	}
}

// WithoutLimits disables rate limiting and shortens retry backoff. Tests only.
func (c *Client) WithoutLimits() *Client {
	c.limiter = rate.NewLimiter(rate.Inf, 1)
	c.retryWait = time.Millisecond
	return c
}

// WithPageSize overrides max_results (5-100).
func (c *Client) WithPageSize(n int) *Client {
	c.pageSize = min(max(n, 5), 100)
	return c
}

// statusError is a non-retryable HTTP status.
type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Body)
}

// get hace un GET autenticado con rate limiting y retries.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.base + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("new request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.bearer)

		resp, err := c.http.Do(req)
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			slog.Warn("twitter: rate limited by API", "attempt", attempt+1, "reset", resp.Header.Get("x-rate-limit-reset"))
			c.sleep(ctx, attempt)
			continue
		}
		if resp.StatusCode >= 500 {
			if attempt == maxRetries {
				return fmt.Errorf("server error %d after %d retries", resp.StatusCode, maxRetries)
			}
			c.sleep(ctx, attempt)
			continue
		}
		if resp.StatusCode >= 400 {
			return &statusError{Status: resp.StatusCode, Body: string(body)}
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep espera con backoff exponencial, respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * c.retryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
