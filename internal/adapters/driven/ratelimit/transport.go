package ratelimit

import (
	"net/http"
	"time"
)

// Transport applies a Limiter to every request sent through it, so SDK
// clients that accept an *http.Client are throttled without knowing about it.
type Transport struct {
	Limiter *Limiter

	// Base sends the request. Nil means http.DefaultTransport.
	Base http.RoundTripper
}

// RoundTrip waits for the limiter, sends req and records any 429 backoff.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.Limiter.Wait(req.Context()); err != nil {
		if req.Body != nil {
			req.Body.Close()
		}
		return nil, err
	}

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	t.Limiter.Observe(resp)
	return resp, nil
}

// NewClient returns an HTTP client limited to requestsPerSecond that backs
// off after 429 replies. A zero timeout leaves requests bounded only by
// their context.
func NewClient(requestsPerSecond float64, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: &Transport{Limiter: New(requestsPerSecond, 1)},
	}
}
