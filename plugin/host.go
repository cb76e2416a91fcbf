package plugin

import (
	"context"
	"sync"

	"github.com/guahanweb/mcp-server-platform/telemetry"
)

type (
	// Host mediates between plugins and the kernel. It owns the
	// tool/resource/prompt registries and drives the plugin lifecycle
	// (register -> initialize -> serve -> shutdown).
	Host struct {
		mu sync.RWMutex

		logger telemetry.Logger

		plugins     map[string]Plugin
		pluginOrder []string

		tools     map[string]Tool
		resources map[string]Resource
		prompts   map[string]Prompt

		// workflowStates is a process-local scratch cache keyed by
		// workflow id, entirely separate from the orchestrator's
		// per-session canonical state. It is NOT authoritative; the
		// orchestrator's session-bound WorkflowContext/WorkflowState is.
		workflowStates map[string]map[string]any
	}
)

// NewHost builds an empty Host. A nil logger falls back to a noop
// logger.
func NewHost(logger telemetry.Logger) *Host {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Host{
		logger:         logger,
		plugins:        make(map[string]Plugin),
		tools:          make(map[string]Tool),
		resources:      make(map[string]Resource),
		prompts:        make(map[string]Prompt),
		workflowStates: make(map[string]map[string]any),
	}
}

// Register validates the plugin's metadata, drives Initialize through a
// sealed registration context, and retains the plugin for shutdown.
func (h *Host) Register(ctx context.Context, p Plugin, config map[string]any) error {
	if p == nil {
		return newError("register", "plugin is nil")
	}
	meta := p.Metadata()
	if meta.ID == "" {
		return newError("register", "plugin metadata.id is required")
	}

	h.mu.Lock()
	if _, exists := h.plugins[meta.ID]; exists {
		h.mu.Unlock()
		return newError("register", "plugin id %q already registered", meta.ID)
	}
	// Reserve the id immediately so concurrent registrations cannot race
	// past this check before Initialize runs.
	h.plugins[meta.ID] = p
	h.pluginOrder = append(h.pluginOrder, meta.ID)
	h.mu.Unlock()

	reg := &registrationContext{
		host:     h,
		pluginID: meta.ID,
		logger:   telemetry.NewPrefixLogger(meta.ID, h.logger),
		config:   config,
	}
	if err := p.Initialize(ctx, reg); err != nil {
		h.mu.Lock()
		delete(h.plugins, meta.ID)
		h.pluginOrder = removeString(h.pluginOrder, meta.ID)
		for _, key := range reg.toolKeys {
			delete(h.tools, key)
		}
		for _, uri := range reg.resourceURIs {
			delete(h.resources, uri)
		}
		for _, key := range reg.promptKeys {
			delete(h.prompts, key)
		}
		h.mu.Unlock()
		return newError("register", "plugin %q initialize failed: %v", meta.ID, err)
	}
	reg.seal()
	return nil
}

// Shutdown calls every registered plugin's optional Shutdown hook in
// reverse registration order, logging but not propagating individual
// failures, then clears every registry so the Host returns to its
// pre-registration state.
func (h *Host) Shutdown(ctx context.Context) {
	h.mu.RLock()
	order := append([]string(nil), h.pluginOrder...)
	h.mu.RUnlock()

	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		h.mu.RLock()
		p := h.plugins[id]
		h.mu.RUnlock()
		if p == nil {
			continue
		}
		if sd, ok := p.(Shutdowner); ok {
			if err := sd.Shutdown(ctx); err != nil {
				h.logger.Error(ctx, "plugin shutdown failed", "plugin", id, "err", err)
			}
		}
	}

	h.mu.Lock()
	h.plugins = make(map[string]Plugin)
	h.pluginOrder = nil
	h.tools = make(map[string]Tool)
	h.resources = make(map[string]Resource)
	h.prompts = make(map[string]Prompt)
	h.workflowStates = make(map[string]map[string]any)
	h.mu.Unlock()
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

// Tools returns a snapshot of all registered tools. Each snapshot
// entry's Name is the namespaced "{pluginId}:{name}" registry key, the
// only form the kernel ever exposes.
func (h *Host) Tools() []Tool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Tool, 0, len(h.tools))
	for key, t := range h.tools {
		t.Name = key
		out = append(out, t)
	}
	return out
}

// Tool looks up a tool by its namespaced "{pluginId}:{name}" key.
func (h *Host) Tool(key string) (Tool, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	t, ok := h.tools[key]
	return t, ok
}

// Resources returns a snapshot of all registered resources.
func (h *Host) Resources() []Resource {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Resource, 0, len(h.resources))
	for _, r := range h.resources {
		out = append(out, r)
	}
	return out
}

// Resource looks up a resource by its bare uri.
func (h *Host) Resource(uri string) (Resource, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.resources[uri]
	return r, ok
}

// Prompts returns a snapshot of all registered prompts, each with its
// Name rewritten to the namespaced "{pluginId}:{name}" registry key.
func (h *Host) Prompts() []Prompt {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Prompt, 0, len(h.prompts))
	for key, p := range h.prompts {
		p.Name = key
		out = append(out, p)
	}
	return out
}

// Prompt looks up a prompt by its namespaced "{pluginId}:{name}" key.
func (h *Host) Prompt(key string) (Prompt, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.prompts[key]
	return p, ok
}

// GetWorkflowState returns the host-local scratch state for workflowID.
func (h *Host) GetWorkflowState(workflowID string) (map[string]any, bool) {
	if workflowID == "" {
		return nil, false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.workflowStates[workflowID]
	return s, ok
}

// SetWorkflowState replaces the host-local scratch state for workflowID.
// Reserved for kernel internals: not exposed to plugins
// directly, only through CallContext.UpdateWorkflowState which the
// kernel wires to this method for the request's current workflow.
func (h *Host) SetWorkflowState(workflowID string, state map[string]any) {
	if workflowID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.workflowStates[workflowID] = state
}

// NewCallContext builds the short-lived CallContext handed to a
// handler for exactly the duration of one dispatch.
func (h *Host) NewCallContext(logger telemetry.Logger, reqCtx RequestContext, hasReqCtx bool) CallContext {
	if logger == nil {
		logger = h.logger
	}
	return &callContext{
		host:      h,
		logger:    logger,
		reqCtx:    reqCtx,
		hasReqCtx: hasReqCtx,
	}
}

type callContext struct {
	host      *Host
	logger    telemetry.Logger
	reqCtx    RequestContext
	hasReqCtx bool
}

func (c *callContext) Logger() Logger { return c.logger }

func (c *callContext) RequestContext() (RequestContext, bool) {
	return c.reqCtx, c.hasReqCtx
}

func (c *callContext) GetWorkflowState() (map[string]any, bool) {
	if !c.hasReqCtx || c.reqCtx.CurrentWorkflow == "" {
		return nil, false
	}
	return c.host.GetWorkflowState(c.reqCtx.CurrentWorkflow)
}

func (c *callContext) UpdateWorkflowState(state map[string]any) {
	if !c.hasReqCtx || c.reqCtx.CurrentWorkflow == "" {
		return
	}
	c.host.SetWorkflowState(c.reqCtx.CurrentWorkflow, state)
}
