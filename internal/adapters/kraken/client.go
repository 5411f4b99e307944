package kraken

import (
	"context"
	"encoding/base64"
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

	"github.com/alejandrodnm/signalbot/internal/domain"
)

const (
	defaultBase = "https://api.kraken.com"

	// Rate limits al 60% de los límites documentados.
	// Público: ~1 req/s por IP.
	publicRatePerSec = 0.6
	// Privado: contador de 15 con decaimiento 0.33/s (tier starter) → ~0.2/s sostenido.
	privateRatePerSec = 0.2
	privateBurst      = 9

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Client es el HTTP client de Kraken con rate limiting, retries y firma de
// las llamadas privadas.
type Client struct {
	http           *http.Client
	base           string
	apiKey         string
	secret         []byte
	publicLimiter  *rate.Limiter
	privateLimiter *rate.Limiter
	retryWait      time.Duration

	nonceMu   sync.Mutex
	lastNonce int64
	now       func() time.Time
}

// NewClient crea un Client. apiSecret es el secreto base64 tal como lo
// entrega Kraken. Si baseURL está vacío usa producción.
func NewClient(baseURL, apiKey, apiSecret string) (*Client, error) {
	if baseURL == "" {
		baseURL = defaultBase
	}
	secret, err := base64.StdEncoding.DecodeString(apiSecret)
	if err != nil {
		return nil, fmt.Errorf("kraken.NewClient: decode api secret: %w", err)
	}
	return &Client{
		http:           &http.Client{Timeout: 15 * time.Second},
		base:           strings.TrimRight(baseURL, "/"),
		apiKey:         apiKey,
		secret:         secret,
		publicLimiter:  rate.NewLimiter(publicRatePerSec, 3),
		privateLimiter: rate.NewLimiter(privateRatePerSec, privateBurst),
		retryWait:      baseRetryWait,
		now:            time.Now,
	}, nil
}

// WithoutLimits disables rate limiting and shortens retry backoff. Tests only.
func (c *Client) WithoutLimits() *Client {
	c.publicLimiter = rate.NewLimiter(rate.Inf, 1)
	c.privateLimiter = rate.NewLimiter(rate.Inf, 1)
	c.retryWait = time.Millisecond
	return c
}

// public hace un GET a /0/public/<method>.
func (c *Client) public(ctx context.Context, method string, query url.Values, out any) error {
	endpoint := c.base + "/0/public/" + method
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	return c.doWithRetry(ctx, c.publicLimiter, method, maxRetries, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}, out)
}

// private hace un POST firmado a /0/private/<method>. El nonce y la firma se
// regeneran en cada intento.
func (c *Client) private(ctx context.Context, method string, form url.Values, retries int, out any) error {
	if c.apiKey == "" || len(c.secret) == 0 {
		return fmt.Errorf("kraken %s: missing API credentials", method)
	}
	path := "/0/private/" + method
	return c.doWithRetry(ctx, c.privateLimiter, method, retries, func() (*http.Request, error) {
		body := url.Values{}
		for k, v := range form {
			body[k] = v
		}
		nonce := c.nextNonce()
		body.Set("nonce", fmt.Sprint(nonce))
		encoded := body.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("API-Key", c.apiKey)
		req.Header.Set("API-Sign", Sign(c.secret, path, nonce, encoded))
		return req, nil
	}, out)
}

// doWithRetry ejecuta la request con backoff exponencial y desempaqueta el
// sobre {"error": [...], "result": ...} de Kraken. Un error no vacío en el
// sobre es un *domain.VenueRequestError y no se reintenta.
func (c *Client) doWithRetry(ctx context.Context, limiter *rate.Limiter, op string, retries int, build func() (*http.Request, error), out any) error {
	for attempt := 0; attempt <= retries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := build()
		if err != nil {
			return fmt.Errorf("kraken %s: new request: %w", op, err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			if attempt == retries {
				return fmt.Errorf("kraken %s: request failed after %d retries: %w", op, retries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			slog.Warn("kraken: rate limited by API", "op", op, "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}
		if resp.StatusCode >= 500 {
			if attempt == retries {
				return fmt.Errorf("kraken %s: server error %d after %d retries", op, resp.StatusCode, retries)
			}
			c.sleep(ctx, attempt)
			continue
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("kraken %s: client error %d: %s", op, resp.StatusCode, string(body))
		}

		var env envelope
		if err := json.Unmarshal(body, &env); err != nil {
			return fmt.Errorf("kraken %s: decode response: %w", op, err)
		}
		if len(env.Error) > 0 {
			return &domain.VenueRequestError{Op: op, Messages: env.Error}
		}
		if out != nil && len(env.Result) > 0 {
			if err := json.Unmarshal(env.Result, out); err != nil {
				return fmt.Errorf("kraken %s: decode result: %w", op, err)
			}
		}
		return nil
	}
	return fmt.Errorf("kraken %s: exhausted %d retries", op, retries)
}

// sleep espera con backoff exponencial, respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * c.retryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
