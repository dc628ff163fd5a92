package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

// GetterConfig controls the Colly-backed getter.
type GetterConfig struct {
	Timeout       time.Duration
	RespectRobots bool
}

// CollyGetter performs single HTTP round trips through a Colly collector.
// Retry, spacing, and breaker logic live in Client; this type only moves
// bytes.
type CollyGetter struct {
	cfg           GetterConfig
	transport     http.RoundTripper
	baseCollector *colly.Collector
}

// NewCollyGetter builds a CollyGetter.
func NewCollyGetter(cfg GetterConfig) *CollyGetter {
	c := colly.NewCollector(colly.Async(false))
	transport := newHTTPTransport()
	c.WithTransport(transport)
	return &CollyGetter{
		cfg:           cfg,
		transport:     transport,
		baseCollector: c,
	}
}

// Get executes one request and returns whatever the server said, HTTP
// errors included. A non-nil error means the transport itself failed.
func (g *CollyGetter) Get(ctx context.Context, req Request) (Response, error) {
	var (
		result   Response
		gotHTTP  bool
		fetchErr error
	)
	start := time.Now()

	collector := g.baseCollector.Clone()
	collector.IgnoreRobotsTxt = !g.cfg.RespectRobots
	collector.AllowURLRevisit = true
	timeout := g.cfg.Timeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	collector.SetRequestTimeout(timeout)

	collector.OnRequest(func(r *colly.Request) {
		for key, values := range req.Headers {
			for _, v := range values {
				r.Headers.Set(key, v)
			}
		}
	})

	collector.OnResponse(func(r *colly.Response) {
		result = Response{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    cloneHeader(r.Headers),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
		gotHTTP = true
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			// The server answered, just not with 2xx. Surface the status
			// so the client can apply its retry policy.
			result = Response{
				URL:        req.URL,
				StatusCode: r.StatusCode,
				Headers:    cloneHeader(r.Headers),
				Body:       append([]byte(nil), r.Body...),
				Duration:   time.Since(start),
			}
			gotHTTP = true
			return
		}
		fetchErr = err
	})

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	done := make(chan error, 1)
	go func() {
		done <- collector.Request(method, req.URL, nil, nil, nil)
	}()

	select {
	case <-ctx.Done():
		return Response{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if gotHTTP {
			return result, nil
		}
		if fetchErr != nil {
			return Response{}, fmt.Errorf("fetch %s: %w", req.URL, fetchErr)
		}
		if err != nil {
			return Response{}, fmt.Errorf("fetch %s: %w", req.URL, err)
		}
		return Response{}, fmt.Errorf("fetch %s: no response", req.URL)
	}
}

func cloneHeader(h *http.Header) http.Header {
	if h == nil {
		return http.Header{}
	}
	return h.Clone()
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
