package fetch

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// originTracker owns all per-origin state: request spacing, the
// consecutive-failure counter, and the breaker cooldown deadline.
// One tracker exists per origin; trackers never interact.
type originTracker struct {
	mu        sync.Mutex
	limiter   *rate.Limiter
	failures  int
	coolUntil time.Time

	threshold int
	cooldown  time.Duration
}

func newOriginTracker(cfg Config) *originTracker {
	interval := rate.Every(cfg.MinInterval)
	return &originTracker{
		limiter:   rate.NewLimiter(interval, 1),
		threshold: cfg.FailureThreshold,
		cooldown:  cfg.Cooldown,
	}
}

// admit reports whether the origin accepts requests right now. While the
// breaker is open no network attempt may be made.
func (t *originTracker) admit(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return now.After(t.coolUntil) || now.Equal(t.coolUntil)
}

// waitTurn blocks until the origin's minimum inter-request spacing allows
// another request, or the context finishes.
func (t *originTracker) waitTurn(ctx context.Context) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("origin spacing wait: %w", err)
	}
	return nil
}

// recordFailure bumps the consecutive-failure counter and reports true
// when it just opened the breaker.
func (t *originTracker) recordFailure(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures++
	if t.failures >= t.threshold {
		t.coolUntil = now.Add(t.cooldown)
		t.failures = 0
		return true
	}
	return false
}

// recordSuccess resets the consecutive-failure counter.
func (t *originTracker) recordSuccess() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures = 0
}

// originSet lazily creates one tracker per origin.
type originSet struct {
	mu       sync.Mutex
	trackers map[string]*originTracker
	cfg      Config
}

func newOriginSet(cfg Config) *originSet {
	return &originSet{
		trackers: make(map[string]*originTracker),
		cfg:      cfg,
	}
}

func (s *originSet) get(origin string) *originTracker {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trackers[origin]
	if !ok {
		t = newOriginTracker(s.cfg)
		s.trackers[origin] = t
	}
	return t
}

// randomJitter returns a uniform duration in [0, limit).
func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

// randomIndex returns a uniform index in [0, n).
func randomIndex(n int) int {
	if n <= 1 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}
