package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"io"

	"github.com/guahanweb/mcp-server-platform/telemetry"
)

// StdioServer speaks newline-delimited JSON-RPC over an arbitrary
// io.Reader/io.Writer pair, the shape every MCP stdio client expects:
// one JSON object per line in, one JSON object per line out.
type StdioServer struct {
	dispatcher Dispatcher
	logger     telemetry.Logger
}

// NewStdioServer builds a StdioServer dispatching through d.
func NewStdioServer(d Dispatcher, logger telemetry.Logger) *StdioServer {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &StdioServer{dispatcher: d, logger: logger}
}

// Serve reads one JSON-RPC request per line from r and writes one
// response per line to w, until ctx is canceled or r returns EOF.
func (s *StdioServer) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	enc := json.NewEncoder(w)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		resp := HandleMessage(ctx, s.dispatcher, line)
		if err := enc.Encode(resp); err != nil {
			s.logger.Error(ctx, "stdio: failed to write response", "err", err)
			return err
		}
	}
	return scanner.Err()
}
