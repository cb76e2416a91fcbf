// Package middleware implements the ordered hook pipeline the kernel
// wraps around tool execution: request/response logging,
// argument validation, and rate limiting, composed the same way
// net/http middleware composes.
package middleware

import (
	"context"

	"github.com/guahanweb/mcp-server-platform/kernel"
)

// Chain composes mw left-to-right so the first Middleware is
// outermost: Chain(a, b, c)(next) == a(b(c(next))).
func Chain(mw ...kernel.Middleware) kernel.Middleware {
	return func(next kernel.Next) kernel.Next {
		for i := len(mw) - 1; i >= 0; i-- {
			next = mw[i](next)
		}
		return next
	}
}

// Func adapts a plain beforeToolCall/afterToolCall/onError hook
// triple into a kernel.Middleware. Any of the three may be nil.
func Func(before func(ctx context.Context, req kernel.ToolCallRequest) error,
	after func(ctx context.Context, req kernel.ToolCallRequest, result any),
	onError func(ctx context.Context, req kernel.ToolCallRequest, err error) error,
) kernel.Middleware {
	return func(next kernel.Next) kernel.Next {
		return func(ctx context.Context, req kernel.ToolCallRequest) (any, error) {
			if before != nil {
				if err := before(ctx, req); err != nil {
					if onError != nil {
						err = onError(ctx, req, err)
					}
					return nil, err
				}
			}
			result, err := next(ctx, req)
			if err != nil {
				if onError != nil {
					err = onError(ctx, req, err)
				}
				return nil, err
			}
			if after != nil {
				after(ctx, req, result)
			}
			return result, nil
		}
	}
}
