package githubapi

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type rateLimiter struct {
	mu        sync.Mutex
	remaining int
	resetTime time.Time
}

// waitIfNeeded blocks until the last seen rate-limit window resets when it is
// exhausted, or until ctx ends.
func (r *rateLimiter) waitIfNeeded(ctx context.Context) error {
	r.mu.Lock()
	var wait time.Duration
	if r.remaining == 0 && !r.resetTime.IsZero() {
		if until := time.Until(r.resetTime); until > 0 {
			wait = until + time.Second
		}
	}
	r.mu.Unlock()

	return sleepContext(ctx, wait)
}

func (r *rateLimiter) updateFromHeaders(headers http.Header) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if remaining := headers.Get("x-ratelimit-remaining"); remaining != "" {
		if value, err := strconv.Atoi(remaining); err == nil {
			r.remaining = value
		}
	}
	if reset := headers.Get("x-ratelimit-reset"); reset != "" {
		if seconds, err := strconv.ParseInt(reset, 10, 64); err == nil {
			r.resetTime = time.Unix(seconds, 0)
		}
	}
}

// RateLimitedTransport bounds concurrency, honors GitHub's rate-limit headers
// and, when Pacer is set, spaces requests client-side.
type RateLimitedTransport struct {
	Base      http.RoundTripper
	Limiter   *rateLimiter
	Semaphore chan struct{}
	Pacer     *rate.Limiter
}

func (t *RateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	select {
	case t.Semaphore <- struct{}{}:
	case <-req.Context().Done():
		return nil, req.Context().Err()
	}
	defer func() { <-t.Semaphore }()

	if t.Pacer != nil {
		if err := t.Pacer.Wait(req.Context()); err != nil {
			return nil, err
		}
	}

	if err := t.Limiter.waitIfNeeded(req.Context()); err != nil {
		return nil, err
	}
	resp, err := t.Base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	t.Limiter.updateFromHeaders(resp.Header)

	// Requests with a body that cannot be replayed are returned as-is.
	if shouldRetryRateLimit(resp) && (req.Body == nil || req.GetBody != nil) {
		retry := req
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return resp, nil
			}
			retry = req.Clone(req.Context())
			retry.Body = body
		}
		_ = resp.Body.Close()
		if err := sleepContext(req.Context(), retryDelay(resp)); err != nil {
			return nil, err
		}
		if err := t.Limiter.waitIfNeeded(req.Context()); err != nil {
			return nil, err
		}
		resp, err = t.Base.RoundTrip(retry)
		if err != nil {
			return nil, err
		}
		t.Limiter.updateFromHeaders(resp.Header)
	}

	return resp, nil
}

// newPacer converts an hourly budget into a token bucket; 0 disables pacing.
func newPacer(requestsPerHour int) *rate.Limiter {
	if requestsPerHour <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(float64(requestsPerHour)/3600), 10)
}

func shouldRetryRateLimit(resp *http.Response) bool {
	if resp.StatusCode != http.StatusForbidden && resp.StatusCode != http.StatusTooManyRequests {
		return false
	}
	if resp.Header.Get("x-ratelimit-remaining") == "0" {
		return true
	}
	if resp.Header.Get("Retry-After") != "" {
		return true
	}
	return false
}

// retryDelay reads Retry-After, falling back to the rate-limit reset time.
func retryDelay(resp *http.Response) time.Duration {
	if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
		if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	if reset := resp.Header.Get("x-ratelimit-reset"); reset != "" {
		if seconds, err := strconv.ParseInt(reset, 10, 64); err == nil {
			if until := time.Until(time.Unix(seconds, 0)); until > 0 {
				return until + time.Second
			}
		}
	}
	return 0
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
