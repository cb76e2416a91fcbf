package middleware

import (
	"context"
	"time"

	"github.com/guahanweb/mcp-server-platform/kernel"
	"github.com/guahanweb/mcp-server-platform/telemetry"
)

// Logging logs every tool call's start, completion, and duration
// through logger, and emits a "middleware.tool_call" span via tracer.
func Logging(logger telemetry.Logger, tracer telemetry.Tracer) kernel.Middleware {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}
	return func(next kernel.Next) kernel.Next {
		return func(ctx context.Context, req kernel.ToolCallRequest) (any, error) {
			ctx, span := tracer.Start(ctx, "middleware.tool_call")
			defer span.End()

			start := time.Now()
			logger.Info(ctx, "tool call started", "tool", req.ToolKey)

			result, err := next(ctx, req)

			elapsed := time.Since(start)
			if err != nil {
				span.RecordError(err)
				logger.Error(ctx, "tool call failed", "tool", req.ToolKey, "elapsed_ms", elapsed.Milliseconds(), "err", err)
				return nil, err
			}
			logger.Info(ctx, "tool call completed", "tool", req.ToolKey, "elapsed_ms", elapsed.Milliseconds())
			return result, nil
		}
	}
}
