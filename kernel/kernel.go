// Package kernel implements the server kernel: the single dispatch
// point that turns a decoded JSON-RPC request into a plugin-backed
// response, wrapping tools/call in the middleware pipeline.
package kernel

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/guahanweb/mcp-server-platform/jsonrpc"
	"github.com/guahanweb/mcp-server-platform/plugin"
	"github.com/guahanweb/mcp-server-platform/telemetry"
)

type (
	// ToolCallRequest is the unit of work middleware wraps.
	ToolCallRequest struct {
		ToolKey string
		Args    map[string]any
		Call    plugin.CallContext
	}

	// Next is the continuation a Middleware wraps. Calling it invokes
	// the rest of the pipeline (and, at the innermost layer, the tool
	// handler itself).
	Next func(ctx context.Context, req ToolCallRequest) (any, error)

	// Middleware wraps a Next into a new Next, the same shape as a
	// net/http middleware: ordered beforeToolCall/afterToolCall/onError
	// hooks composed around a single call.
	Middleware func(next Next) Next

	// Orchestrator is the narrow seam the kernel depends on to route a
	// user message through workflow intent detection before dispatch,
	// so the resolved tool sees the correct current workflow. Kept
	// minimal so the kernel package never imports the orchestrator
	// package directly.
	Orchestrator interface {
		ProcessMessage(ctx context.Context, message, sessionID, userID, userName string) (workflowID string, err error)
	}

	// Config configures a Kernel via functional options; there is no
	// config-file parser in core, options compose in application code.
	Config struct {
		host         *plugin.Host
		validator    *plugin.SchemaValidator
		middleware   []Middleware
		logger       telemetry.Logger
		tracer       telemetry.Tracer
		metrics      telemetry.Metrics
		orchestrator Orchestrator

		// ExtendMiddlewareToResourcesAndPrompts opts resources/read and
		// prompts/get into the same middleware pipeline tools/call
		// always uses. Off by default, the pipeline wraps tool
		// execution only; deployments that want request-scoped
		// logging/rate-limiting/validation around resource and prompt
		// handlers too can flip it on.
		ExtendMiddlewareToResourcesAndPrompts bool
	}

	// Option mutates a Config during construction.
	Option func(*Config)

	// Kernel is the sealed, immutable-after-construction dispatch core.
	Kernel struct {
		cfg Config
	}
)

// WithMiddleware appends mw to the tools/call pipeline, outermost
// first: the first Middleware passed wraps every later one.
func WithMiddleware(mw ...Middleware) Option {
	return func(c *Config) { c.middleware = append(c.middleware, mw...) }
}

// WithValidator installs the schema validator tools/call arguments are
// checked against before the handler runs.
func WithValidator(v *plugin.SchemaValidator) Option {
	return func(c *Config) { c.validator = v }
}

// WithLogger installs the kernel's structured logger.
func WithLogger(l telemetry.Logger) Option {
	return func(c *Config) { c.logger = l }
}

// WithTracer installs the kernel's span tracer.
func WithTracer(t telemetry.Tracer) Option {
	return func(c *Config) { c.tracer = t }
}

// WithMetrics installs the kernel's metrics recorder.
func WithMetrics(m telemetry.Metrics) Option {
	return func(c *Config) { c.metrics = m }
}

// WithExtendedMiddlewareScope flips ExtendMiddlewareToResourcesAndPrompts on.
func WithExtendedMiddlewareScope() Option {
	return func(c *Config) { c.ExtendMiddlewareToResourcesAndPrompts = true }
}

// WithOrchestrator wires an Orchestrator into the kernel: every
// dispatch whose RequestContext carries a non-empty Message is routed
// through it first, and its resolved workflow id is threaded into the
// RequestContext's CurrentWorkflow before the tool handler runs.
func WithOrchestrator(o Orchestrator) Option {
	return func(c *Config) { c.orchestrator = o }
}

// New builds a Kernel bound to host.
func New(host *plugin.Host, opts ...Option) *Kernel {
	cfg := Config{
		host:      host,
		validator: plugin.NewSchemaValidator(),
		logger:    telemetry.NewNoopLogger(),
		tracer:    telemetry.NewNoopTracer(),
		metrics:   telemetry.NewNoopMetrics(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Kernel{cfg: cfg}
}

// Dispatch is the single entry point every transport calls: decode the
// method, run it, encode the result or error as a JSON-RPC Response.
func (k *Kernel) Dispatch(ctx context.Context, req jsonrpc.Request) *jsonrpc.Response {
	ctx, span := k.cfg.tracer.Start(ctx, "kernel.dispatch")
	defer span.End()
	span.AddEvent("dispatch", "method", req.Method)

	ctx, orchErr := k.routeThroughOrchestrator(ctx)
	if orchErr != nil {
		span.RecordError(orchErr)
		return errorResponse(req.ID, orchErr)
	}

	var (
		result any
		err    error
	)
	switch req.Method {
	case "tools/list":
		result, err = k.listTools()
	case "tools/call":
		result, err = k.callTool(ctx, req.Params)
	case "resources/list":
		result, err = k.listResources()
	case "resources/read":
		result, err = k.readResource(ctx, req.Params)
	case "prompts/list":
		result, err = k.listPrompts()
	case "prompts/get":
		result, err = k.getPrompt(ctx, req.Params)
	default:
		err = notFound(jsonrpc.CodeMethodNotFound, ErrMethodNotFound, req.Method)
	}

	if err != nil {
		span.RecordError(err)
		return errorResponse(req.ID, err)
	}
	return jsonrpc.NewResult(req.ID, result)
}

// routeThroughOrchestrator runs the inbound message through the
// configured Orchestrator, if any, and returns a context carrying the
// resolved workflow id as the RequestContext's CurrentWorkflow. A
// no-op when no orchestrator is wired or the request carries no user
// message.
func (k *Kernel) routeThroughOrchestrator(ctx context.Context) (context.Context, error) {
	if k.cfg.orchestrator == nil {
		return ctx, nil
	}
	rc, ok := RequestContextFromContext(ctx)
	if !ok || rc.Message == "" {
		return ctx, nil
	}
	workflowID, err := k.cfg.orchestrator.ProcessMessage(ctx, rc.Message, rc.SessionID, rc.UserID, rc.UserName)
	if err != nil {
		return ctx, newError(jsonrpc.CodeInternalError, err)
	}
	rc.CurrentWorkflow = workflowID
	return WithRequestContext(ctx, rc), nil
}

func errorResponse(id any, err error) *jsonrpc.Response {
	if kerr, ok := err.(*Error); ok {
		return jsonrpc.NewError(id, kerr.Code, kerr.Msg, nil)
	}
	return jsonrpc.NewError(id, jsonrpc.CodeInternalError, err.Error(), nil)
}

// --- tools ---

type toolDescriptor struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	InputSchema plugin.Schema `json:"inputSchema"`
}

type toolsListResult struct {
	Tools []toolDescriptor `json:"tools"`
}

func (k *Kernel) listTools() (any, error) {
	tools := k.cfg.host.Tools()
	out := make([]toolDescriptor, 0, len(tools))
	for _, t := range tools {
		out = append(out, toolDescriptor{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}
	return toolsListResult{Tools: out}, nil
}

type toolCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

func (k *Kernel) callTool(ctx context.Context, raw json.RawMessage) (any, error) {
	var params toolCallParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, newError(jsonrpc.CodeInvalidParams, fmt.Errorf("%w: %v", ErrInvalidParams, err))
	}

	tool, ok := k.cfg.host.Tool(params.Name)
	if !ok {
		return nil, notFound(jsonrpc.CodeMethodNotFound, ErrToolNotFound, params.Name)
	}

	if err := k.cfg.validator.Validate(params.Name, tool.InputSchema, params.Arguments); err != nil {
		return nil, newError(jsonrpc.CodeInvalidParams, err)
	}

	rc, hasRC := RequestContextFromContext(ctx)
	call := k.cfg.host.NewCallContext(nil, rc, hasRC)

	chain := k.buildChain(tool)
	result, err := chain(ctx, ToolCallRequest{ToolKey: params.Name, Args: params.Arguments, Call: call})
	if err != nil {
		return nil, err
	}
	return toolCallResult{Content: []contentBlock{renderContent(result)}}, nil
}

// contentBlock is one entry of a tools/call result's content array.
// Only the "text" type is produced by this kernel.
type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type toolCallResult struct {
	Content []contentBlock `json:"content"`
}

// renderContent turns a handler's return value into a text content
// block: strings pass through verbatim, everything else is
// JSON-rendered.
func renderContent(result any) contentBlock {
	if s, ok := result.(string); ok {
		return contentBlock{Type: "text", Text: s}
	}
	b, err := json.Marshal(result)
	if err != nil {
		return contentBlock{Type: "text", Text: fmt.Sprintf("%v", result)}
	}
	return contentBlock{Type: "text", Text: string(b)}
}

func (k *Kernel) buildChain(tool plugin.Tool) Next {
	next := func(ctx context.Context, req ToolCallRequest) (any, error) {
		return tool.Handler(ctx, req.Args, req.Call)
	}
	for i := len(k.cfg.middleware) - 1; i >= 0; i-- {
		next = k.cfg.middleware[i](next)
	}
	return next
}

// --- resources ---

type resourceDescriptor struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MimeType    string `json:"mimeType"`
}

type resourcesListResult struct {
	Resources []resourceDescriptor `json:"resources"`
}

func (k *Kernel) listResources() (any, error) {
	resources := k.cfg.host.Resources()
	out := make([]resourceDescriptor, 0, len(resources))
	for _, r := range resources {
		out = append(out, resourceDescriptor{URI: r.URI, Name: r.Name, Description: r.Description, MimeType: r.MimeType})
	}
	return resourcesListResult{Resources: out}, nil
}

type resourceReadParams struct {
	URI string `json:"uri"`
}

// resourceContent is one entry of a resources/read result, combining
// the resource's uri with its handler's rendered payload.
type resourceContent struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

type resourceReadResult struct {
	Contents []resourceContent `json:"contents"`
}

func (k *Kernel) readResource(ctx context.Context, raw json.RawMessage) (any, error) {
	var params resourceReadParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, newError(jsonrpc.CodeInvalidParams, fmt.Errorf("%w: %v", ErrInvalidParams, err))
	}
	res, ok := k.cfg.host.Resource(params.URI)
	if !ok {
		return nil, notFound(jsonrpc.CodeInvalidRequest, ErrResourceNotFound, params.URI)
	}

	rc, hasRC := RequestContextFromContext(ctx)
	call := k.cfg.host.NewCallContext(nil, rc, hasRC)

	run := func(ctx context.Context) (any, error) {
		payload, err := res.Handler(ctx, call)
		if err != nil {
			return nil, err
		}
		return resourceReadResult{Contents: []resourceContent{{URI: res.URI, MimeType: payload.MimeType, Text: payload.Text}}}, nil
	}
	if !k.cfg.ExtendMiddlewareToResourcesAndPrompts || len(k.cfg.middleware) == 0 {
		return run(ctx)
	}
	next := func(ctx context.Context, _ ToolCallRequest) (any, error) { return run(ctx) }
	for i := len(k.cfg.middleware) - 1; i >= 0; i-- {
		next = k.cfg.middleware[i](next)
	}
	return next(ctx, ToolCallRequest{ToolKey: params.URI, Call: call})
}

// --- prompts ---

type promptDescriptor struct {
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	Arguments   []plugin.PromptArgument `json:"arguments"`
}

type promptsListResult struct {
	Prompts []promptDescriptor `json:"prompts"`
}

func (k *Kernel) listPrompts() (any, error) {
	prompts := k.cfg.host.Prompts()
	out := make([]promptDescriptor, 0, len(prompts))
	for _, p := range prompts {
		out = append(out, promptDescriptor{Name: p.Name, Description: p.Description, Arguments: p.Arguments})
	}
	return promptsListResult{Prompts: out}, nil
}

type promptGetParams struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments"`
}

// promptGetResult is the prompts/get success envelope: the prompt's
// description plus its rendered messages.
type promptGetResult struct {
	Description string                 `json:"description"`
	Messages    []plugin.PromptMessage `json:"messages"`
}

func (k *Kernel) getPrompt(ctx context.Context, raw json.RawMessage) (any, error) {
	var params promptGetParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, newError(jsonrpc.CodeInvalidParams, fmt.Errorf("%w: %v", ErrInvalidParams, err))
	}
	p, ok := k.cfg.host.Prompt(params.Name)
	if !ok {
		return nil, notFound(jsonrpc.CodeInvalidRequest, ErrPromptNotFound, params.Name)
	}

	rc, hasRC := RequestContextFromContext(ctx)
	call := k.cfg.host.NewCallContext(nil, rc, hasRC)

	run := func(ctx context.Context) (any, error) {
		rendered, err := p.Handler(ctx, params.Arguments, call)
		if err != nil {
			return nil, err
		}
		return promptGetResult{Description: p.Description, Messages: rendered.Messages}, nil
	}
	if !k.cfg.ExtendMiddlewareToResourcesAndPrompts || len(k.cfg.middleware) == 0 {
		return run(ctx)
	}
	next := func(ctx context.Context, _ ToolCallRequest) (any, error) { return run(ctx) }
	for i := len(k.cfg.middleware) - 1; i >= 0; i-- {
		next = k.cfg.middleware[i](next)
	}
	return next(ctx, ToolCallRequest{ToolKey: params.Name, Call: call})
}
