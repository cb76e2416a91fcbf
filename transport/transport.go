// Package transport adapts the wire-level JSON-RPC protocol to the
// kernel's Dispatch entry point across stdio, HTTP, and WebSocket.
package transport

import (
	"context"
	"encoding/json"

	"github.com/guahanweb/mcp-server-platform/jsonrpc"
	"github.com/guahanweb/mcp-server-platform/kernel"
)

// Dispatcher is the subset of *kernel.Kernel every transport depends
// on, kept narrow so transports can be tested against a fake.
type Dispatcher interface {
	Dispatch(ctx context.Context, req jsonrpc.Request) *jsonrpc.Response
}

// decodeRequest parses one JSON-RPC request, returning an error
// Response immediately when the payload is not valid JSON-RPC: a
// parse error for invalid JSON, an invalid-request error for a wrong
// version or a missing method. Malformed input never reaches the
// kernel.
func decodeRequest(raw []byte) (jsonrpc.Request, *jsonrpc.Response) {
	var req jsonrpc.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return jsonrpc.Request{}, jsonrpc.NewError(nil, jsonrpc.CodeParseError, "invalid JSON", err.Error())
	}
	if req.JSONRPC != jsonrpc.Version {
		return jsonrpc.Request{}, jsonrpc.NewError(req.ID, jsonrpc.CodeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
	}
	if req.Method == "" {
		return jsonrpc.Request{}, jsonrpc.NewError(req.ID, jsonrpc.CodeInvalidRequest, "method is required", nil)
	}
	return req, nil
}

// HandleMessage decodes raw, dispatches it through d, and always
// returns a Response (never nil) ready to serialize back to the
// caller.
func HandleMessage(ctx context.Context, d Dispatcher, raw []byte) *jsonrpc.Response {
	req, errResp := decodeRequest(raw)
	if errResp != nil {
		return errResp
	}
	return d.Dispatch(harvestParams(ctx, req), req)
}

// envelopeFields are the request-context fields a caller may carry
// inside the JSON-RPC params rather than transport headers: the user
// message always travels here, and stdio callers (which have no
// headers) also put their ids here, so every transport normalises
// requests into the same shape.
type envelopeFields struct {
	Message    string `json:"message"`
	SessionID  string `json:"sessionId"`
	UserID     string `json:"userId"`
	WorkflowID string `json:"workflowId"`
}

// harvestParams fills any request-context fields the transport did not
// already populate (e.g. from HTTP headers) with the matching fields
// found in the params object. Transport-provided values win.
func harvestParams(ctx context.Context, req jsonrpc.Request) context.Context {
	if len(req.Params) == 0 {
		return ctx
	}
	var fields envelopeFields
	if err := json.Unmarshal(req.Params, &fields); err != nil {
		return ctx
	}
	if fields == (envelopeFields{}) {
		return ctx
	}
	rc, _ := kernel.RequestContextFromContext(ctx)
	if rc.Message == "" {
		rc.Message = fields.Message
	}
	if rc.SessionID == "" {
		rc.SessionID = fields.SessionID
	}
	if rc.UserID == "" {
		rc.UserID = fields.UserID
	}
	if rc.CurrentWorkflow == "" {
		rc.CurrentWorkflow = fields.WorkflowID
	}
	return kernel.WithRequestContext(ctx, rc)
}
