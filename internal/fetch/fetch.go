// Package fetch implements the resilient HTTP client used by source
// ingestion. It layers per-origin spacing, jittered retry with backoff,
// Retry-After handling, and a per-origin circuit breaker on top of a
// Colly-based getter, and decodes bodies using the declared charset.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/licitawatch/licitawatch/internal/clock"
	"github.com/licitawatch/licitawatch/internal/metrics"
)

// ErrUnavailable signals that a URL could not be fetched this cycle.
// Callers treat it as a normal skip, never as a fatal pipeline error.
var ErrUnavailable = errors.New("fetch: source unavailable")

// Request describes one fetch.
type Request struct {
	URL     string
	Method  string
	Headers http.Header
}

// Response carries the fetched content. Body is decoded to UTF-8;
// Raw preserves the bytes as received for archival.
type Response struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Raw        []byte
	Duration   time.Duration
}

// Getter performs a single HTTP round trip. A non-nil error means the
// transport failed; HTTP-level failures come back as a Response with
// its status code set.
type Getter interface {
	Get(ctx context.Context, req Request) (Response, error)
}

// Config tunes client behavior.
type Config struct {
	MaxRetries       int           // retries after the first attempt
	BaseDelay        time.Duration // backoff base
	MaxDelay         time.Duration // backoff cap
	MinInterval      time.Duration // spacing between requests to one origin
	FailureThreshold int           // consecutive failures before the breaker opens
	Cooldown         time.Duration // breaker open duration
	IdentityPool     []string      // rotated client-identity headers
}

func (c Config) withDefaults() Config {
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 500 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.MinInterval <= 0 {
		c.MinInterval = time.Second
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 5 * time.Minute
	}
	if len(c.IdentityPool) == 0 {
		c.IdentityPool = defaultIdentityPool
	}
	return c
}

var defaultIdentityPool = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
}

// Client is the resilient fetch client. Safe for concurrent use; each
// origin's state is serialized by its own tracker so origins never
// block each other.
type Client struct {
	cfg     Config
	getter  Getter
	origins *originSet
	clock   clock.Clock
	logger  *zap.Logger
}

// New builds a Client around the given getter.
func New(getter Getter, cfg Config, clk clock.Clock, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.System{}
	}
	cfg = cfg.withDefaults()
	return &Client{
		cfg:     cfg,
		getter:  getter,
		origins: newOriginSet(cfg),
		clock:   clk,
		logger:  logger,
	}
}

// Fetch retrieves url, retrying transient failures with jittered backoff.
// All failure modes collapse into ErrUnavailable after the breaker and
// retry budget are exhausted.
func (c *Client) Fetch(ctx context.Context, req Request) (Response, error) {
	origin, err := originOf(req.URL)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	tracker := c.origins.get(origin)

	if !tracker.admit(c.clock.Now()) {
		metrics.IncFetchRefused(origin)
		c.logger.Debug("origin in cooldown, refusing fetch",
			zap.String("origin", origin), zap.String("url", req.URL))
		return Response{}, fmt.Errorf("%w: origin %s cooling down", ErrUnavailable, origin)
	}

	for attempt := 0; ; attempt++ {
		if err := tracker.waitTurn(ctx); err != nil {
			return Response{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		resp, err := c.attempt(ctx, req)
		if err != nil {
			// Transport failure: timeout, refused connection, DNS.
			opened := tracker.recordFailure(c.clock.Now())
			metrics.IncFetchFailure(origin, "transport")
			c.logger.Debug("fetch transport error",
				zap.String("url", req.URL), zap.Int("attempt", attempt), zap.Error(err))
			if opened || attempt >= c.cfg.MaxRetries || ctx.Err() != nil {
				return Response{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
			if !c.pause(ctx, c.backoff(attempt)) {
				return Response{}, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			}
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
			opened := tracker.recordFailure(c.clock.Now())
			metrics.IncFetchFailure(origin, "throttled")
			if opened || attempt >= c.cfg.MaxRetries {
				return Response{}, fmt.Errorf("%w: HTTP %d from %s", ErrUnavailable, resp.StatusCode, origin)
			}
			delay := retryAfter(resp.Headers, c.clock.Now())
			if delay <= 0 {
				delay = c.backoff(attempt)
			}
			if !c.pause(ctx, delay) {
				return Response{}, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			}

		case resp.StatusCode >= 500:
			opened := tracker.recordFailure(c.clock.Now())
			metrics.IncFetchFailure(origin, "server_error")
			if opened || attempt >= c.cfg.MaxRetries {
				return Response{}, fmt.Errorf("%w: HTTP %d from %s", ErrUnavailable, resp.StatusCode, origin)
			}
			if !c.pause(ctx, c.backoff(attempt)) {
				return Response{}, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			}

		case resp.StatusCode >= 400:
			// Client errors are not transient; no retry.
			tracker.recordFailure(c.clock.Now())
			metrics.IncFetchFailure(origin, "client_error")
			return Response{}, fmt.Errorf("%w: HTTP %d from %s", ErrUnavailable, resp.StatusCode, req.URL)

		default:
			tracker.recordSuccess()
			metrics.IncFetchSuccess(origin)
			resp.Raw = resp.Body
			resp.Body = decodeBody(resp.Body, resp.Headers.Get("Content-Type"))
			return resp, nil
		}
	}
}

func (c *Client) attempt(ctx context.Context, req Request) (Response, error) {
	headers := http.Header{}
	for k, vs := range req.Headers {
		for _, v := range vs {
			headers.Add(k, v)
		}
	}
	headers.Set("User-Agent", c.pickIdentity())
	return c.getter.Get(ctx, Request{URL: req.URL, Method: req.Method, Headers: headers})
}

// backoff computes base·2^attempt jittered by U(0.5,1.5), capped at MaxDelay.
func (c *Client) backoff(attempt int) time.Duration {
	exp := float64(c.cfg.BaseDelay) * math.Pow(2, float64(attempt))
	if exp > float64(c.cfg.MaxDelay) {
		exp = float64(c.cfg.MaxDelay)
	}
	half := time.Duration(exp / 2)
	delay := half + randomJitter(time.Duration(exp))
	if delay > c.cfg.MaxDelay {
		delay = c.cfg.MaxDelay
	}
	return delay
}

func (c *Client) pause(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return true
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (c *Client) pickIdentity() string {
	pool := c.cfg.IdentityPool
	idx := randomIndex(len(pool))
	return pool[idx]
}

// retryAfter parses a Retry-After header, accepting both delta-seconds
// and HTTP-date forms. Returns 0 when absent or unparseable.
func retryAfter(h http.Header, now time.Time) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		d := t.Sub(now)
		if d > 0 {
			return d
		}
	}
	return 0
}

func originOf(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("url %q has no host", raw)
	}
	return host, nil
}
