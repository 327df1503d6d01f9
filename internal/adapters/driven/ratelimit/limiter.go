// Package ratelimit throttles outbound requests to embedding and generation services.
package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBackoff is used when a 429 response carries no usable Retry-After.
const DefaultBackoff = 10 * time.Second

// Limiter is a token bucket with an extra backoff window set by 429 responses.
// A nil *Limiter never blocks.
type Limiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
}

// New creates a limiter allowing requestsPerSecond with the given burst.
// A non-positive rate disables throttling but keeps 429 backoff.
func New(requestsPerSecond float64, burst int) *Limiter {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(limit, burst)}
}

// Wait blocks until a request may be sent or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return ctx.Err()
	}

	l.mu.Lock()
	retryAt := l.retryAt
	l.mu.Unlock()

	if d := time.Until(retryAt); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return l.limiter.Wait(ctx)
}

// Backoff delays all requests until retryAfter has elapsed.
func (l *Limiter) Backoff(retryAfter time.Duration) {
	if l == nil {
		return
	}
	if retryAfter <= 0 {
		retryAfter = DefaultBackoff
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if until := time.Now().Add(retryAfter); until.After(l.retryAt) {
		l.retryAt = until
	}
}

// Observe records a backoff when resp is a 429.
func (l *Limiter) Observe(resp *http.Response) {
	if resp == nil || resp.StatusCode != http.StatusTooManyRequests {
		return
	}
	l.Backoff(RetryAfter(resp.Header.Get("Retry-After")))
}

// RetryAfter parses a Retry-After header given in seconds or as an HTTP date.
// It returns zero when the header is missing or unparseable.
func RetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
