package middleware

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/guahanweb/mcp-server-platform/kernel"
)

// AdaptiveLimiter applies an AIMD-style adaptive token bucket in front
// of tool execution, estimating each call's cost from its argument
// payload and backing off when a handler itself reports exhaustion via
// ErrCapacityExceeded. It complements the fixed-window RateLimiter
// with a self-tuning budget for tools that front an external
// rate-limited dependency; unlike the fixed window it never hard-fails
// a call that fits inside the current budget, it only slows the caller
// down via WaitN. The budget is process-local: coordinating it across
// a cluster would require a replicated map service, and no external
// stream or session backend is assumed here.
type AdaptiveLimiter struct {
	mu sync.Mutex

	limiter *rate.Limiter

	currentTPM   float64
	minTPM       float64
	maxTPM       float64
	recoveryRate float64

	costFunc func(req kernel.ToolCallRequest) int
}

// ErrCapacityExceeded should be returned (or wrapped) by a handler to
// signal the adaptive limiter it hit an external rate limit and should
// back off.
type ErrCapacityExceeded struct{}

func (ErrCapacityExceeded) Error() string { return "adaptive limiter: capacity exceeded" }

// DefaultCost estimates a call's weight from its argument count: a
// cheap heuristic with a non-zero floor, for requests with no natural
// token count.
func DefaultCost(req kernel.ToolCallRequest) int {
	if len(req.Args) == 0 {
		return 1
	}
	return len(req.Args)
}

// NewAdaptiveLimiter builds an AdaptiveLimiter with an initial and
// maximum calls-per-minute budget.
func NewAdaptiveLimiter(initialCPM, maxCPM float64) *AdaptiveLimiter {
	if initialCPM <= 0 {
		initialCPM = 600
	}
	if maxCPM <= 0 || maxCPM < initialCPM {
		maxCPM = initialCPM
	}
	minCPM := initialCPM * 0.1
	if minCPM < 1 {
		minCPM = 1
	}
	recoveryRate := initialCPM * 0.05
	if recoveryRate < 1 {
		recoveryRate = 1
	}
	return &AdaptiveLimiter{
		limiter:      rate.NewLimiter(rate.Limit(initialCPM/60.0), int(initialCPM)),
		currentTPM:   initialCPM,
		minTPM:       minCPM,
		maxTPM:       maxCPM,
		recoveryRate: recoveryRate,
		costFunc:     DefaultCost,
	}
}

// WithCostFunc overrides how a call's weight is estimated.
func (l *AdaptiveLimiter) WithCostFunc(f func(req kernel.ToolCallRequest) int) *AdaptiveLimiter {
	l.costFunc = f
	return l
}

// Adaptive returns the kernel.Middleware enforcing this limiter.
func (l *AdaptiveLimiter) Adaptive() kernel.Middleware {
	return func(next kernel.Next) kernel.Next {
		return func(ctx context.Context, req kernel.ToolCallRequest) (any, error) {
			cost := l.costFunc(req)
			if err := l.limiter.WaitN(ctx, cost); err != nil {
				return nil, err
			}
			result, err := next(ctx, req)
			l.observe(err)
			return result, err
		}
	}
}

func (l *AdaptiveLimiter) observe(err error) {
	if err == nil {
		l.probe()
		return
	}
	if _, ok := err.(ErrCapacityExceeded); ok {
		l.backoff()
	}
}

func (l *AdaptiveLimiter) backoff() {
	l.mu.Lock()
	defer l.mu.Unlock()
	newTPM := l.currentTPM * 0.5
	if newTPM < l.minTPM {
		newTPM = l.minTPM
	}
	if newTPM == l.currentTPM {
		return
	}
	l.currentTPM = newTPM
	l.limiter.SetLimit(rate.Limit(newTPM / 60.0))
	l.limiter.SetBurst(int(newTPM))
}

func (l *AdaptiveLimiter) probe() {
	l.mu.Lock()
	defer l.mu.Unlock()
	newTPM := l.currentTPM + l.recoveryRate
	if newTPM > l.maxTPM {
		newTPM = l.maxTPM
	}
	if newTPM == l.currentTPM {
		return
	}
	l.currentTPM = newTPM
	l.limiter.SetLimit(rate.Limit(newTPM / 60.0))
	l.limiter.SetBurst(int(newTPM))
}
