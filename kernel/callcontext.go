package kernel

import (
	"context"

	"github.com/guahanweb/mcp-server-platform/plugin"
)

// requestContextKey is an unexported context key type so no other
// package can collide with it. Carrying the request state in the
// context rather than a mutable field on the kernel makes the
// invariant "concurrent requests cannot observe each other's request
// context" hold by construction instead of by discipline.
type requestContextKey struct{}

// WithRequestContext returns a derived context carrying rc. Transports
// call this once per inbound request, before invoking Dispatch.
func WithRequestContext(ctx context.Context, rc plugin.RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// RequestContextFromContext retrieves the RequestContext attached by
// WithRequestContext, if any.
func RequestContextFromContext(ctx context.Context) (plugin.RequestContext, bool) {
	rc, ok := ctx.Value(requestContextKey{}).(plugin.RequestContext)
	return rc, ok
}
