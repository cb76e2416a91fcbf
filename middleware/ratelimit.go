package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/guahanweb/mcp-server-platform/kernel"
)

// RateLimitError reports that a tool call was rejected by RateLimit.
// ResetAt is when the current window closes and the count resets.
type RateLimitError struct {
	Tool    string
	Count   int
	Max     int
	ResetAt time.Time
}

// Error is the exact message surfaced to callers inside the JSON-RPC
// internal-error envelope; the count/reset details stay on the struct
// for logging.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("Rate limit exceeded for tool %s", e.Tool)
}

type window struct {
	count   int
	resetAt time.Time
}

// RateLimitKeyFunc derives the bucket key for a call. The default
// buckets by tool name alone; this hook exists for callers who want to
// additionally key by session or user.
type RateLimitKeyFunc func(req kernel.ToolCallRequest) string

// ByTool is the default RateLimitKeyFunc: one bucket per tool key.
func ByTool(req kernel.ToolCallRequest) string { return req.ToolKey }

// RateLimiter is a fixed-window limiter: at most maxCalls may occur
// per key within each window, which opens at the first call after the
// previous window expired and lasts windowMs. Calls on both sides of a
// reset are counted separately, so a windowMs-wide span straddling a
// reset can hold up to 2*maxCalls calls. The (maxCalls+1)-th call
// inside a window fails; once windowMs elapses since the window
// opened, the next call succeeds and reopens the window.
type RateLimiter struct {
	mu       sync.Mutex
	maxCalls int
	window   time.Duration
	keyFunc  RateLimitKeyFunc
	windows  map[string]*window
	nowFunc  func() time.Time
}

// RateLimiterOption configures a RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithKeyFunc overrides the default per-tool bucketing.
func WithKeyFunc(f RateLimitKeyFunc) RateLimiterOption {
	return func(r *RateLimiter) { r.keyFunc = f }
}

// NewRateLimiter builds a RateLimiter allowing maxCalls per windowMs
// milliseconds, keyed by tool name unless overridden.
func NewRateLimiter(maxCalls int, windowMs int, opts ...RateLimiterOption) *RateLimiter {
	r := &RateLimiter{
		maxCalls: maxCalls,
		window:   time.Duration(windowMs) * time.Millisecond,
		keyFunc:  ByTool,
		windows:  make(map[string]*window),
		nowFunc:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RateLimit returns the kernel.Middleware enforcing this limiter.
func (r *RateLimiter) RateLimit() kernel.Middleware {
	return func(next kernel.Next) kernel.Next {
		return func(ctx context.Context, req kernel.ToolCallRequest) (any, error) {
			if err := r.allow(req); err != nil {
				return nil, err
			}
			return next(ctx, req)
		}
	}
}

func (r *RateLimiter) allow(req kernel.ToolCallRequest) error {
	key := r.keyFunc(req)
	now := r.nowFunc()

	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{count: 0, resetAt: now.Add(r.window)}
		r.windows[key] = w
	}

	if w.count >= r.maxCalls {
		return &RateLimitError{Tool: key, Count: w.count, Max: r.maxCalls, ResetAt: w.resetAt}
	}
	w.count++
	return nil
}
