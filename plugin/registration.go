package plugin

import "github.com/guahanweb/mcp-server-platform/telemetry"

// registrationContext is the concrete RegistrationContext handed to a
// plugin's Initialize. It is valid only for the duration of that call;
// seal() is invoked immediately after Initialize returns, and every
// Register* call past that point fails.
type registrationContext struct {
	host     *Host
	pluginID string
	logger   telemetry.Logger
	config   map[string]any

	// Registered keys, so a failed Initialize can be rolled back
	// without guessing which registry entries it had produced.
	toolKeys     []string
	resourceURIs []string
	promptKeys   []string

	sealed bool
}

func (r *registrationContext) seal() { r.sealed = true }

func (r *registrationContext) RegisterTool(tool Tool) error {
	if r.sealed {
		return newError("register_tool", "registration context for %q is sealed", r.pluginID)
	}
	if tool.Name == "" {
		return newError("register_tool", "tool name is required")
	}
	if tool.Handler == nil {
		return newError("register_tool", "tool %q has no handler", tool.Name)
	}
	if err := validateSchema(tool.InputSchema); err != nil {
		return newError("register_tool", "tool %q: %v", tool.Name, err)
	}

	key := r.pluginID + ":" + tool.Name
	r.host.mu.Lock()
	defer r.host.mu.Unlock()
	if _, exists := r.host.tools[key]; exists {
		return newError("register_tool", "tool %q already registered", key)
	}
	r.host.tools[key] = tool
	r.toolKeys = append(r.toolKeys, key)
	return nil
}

func (r *registrationContext) RegisterResource(resource Resource) error {
	if r.sealed {
		return newError("register_resource", "registration context for %q is sealed", r.pluginID)
	}
	if resource.URI == "" {
		return newError("register_resource", "resource uri is required")
	}
	if resource.Handler == nil {
		return newError("register_resource", "resource %q has no handler", resource.URI)
	}

	r.host.mu.Lock()
	defer r.host.mu.Unlock()
	if _, exists := r.host.resources[resource.URI]; exists {
		return newError("register_resource", "resource uri %q already registered", resource.URI)
	}
	r.host.resources[resource.URI] = resource
	r.resourceURIs = append(r.resourceURIs, resource.URI)
	return nil
}

func (r *registrationContext) RegisterPrompt(prompt Prompt) error {
	if r.sealed {
		return newError("register_prompt", "registration context for %q is sealed", r.pluginID)
	}
	if prompt.Name == "" {
		return newError("register_prompt", "prompt name is required")
	}
	if prompt.Handler == nil {
		return newError("register_prompt", "prompt %q has no handler", prompt.Name)
	}

	key := r.pluginID + ":" + prompt.Name
	r.host.mu.Lock()
	defer r.host.mu.Unlock()
	if _, exists := r.host.prompts[key]; exists {
		return newError("register_prompt", "prompt %q already registered", key)
	}
	r.host.prompts[key] = prompt
	r.promptKeys = append(r.promptKeys, key)
	return nil
}

func (r *registrationContext) Logger() Logger { return r.logger }

func (r *registrationContext) Config() map[string]any { return r.config }

// validateSchema rejects malformed input schemas synchronously at
// registration time rather than failing every subsequent tools/call.
func validateSchema(s Schema) error {
	if s.Type == "" {
		return nil
	}
	if s.Type != "object" {
		return newError("validate_schema", "inputSchema.type must be \"object\", got %q", s.Type)
	}
	for _, req := range s.Required {
		if _, ok := s.Properties[req]; !ok {
			return newError("validate_schema", "required field %q has no matching property", req)
		}
	}
	return nil
}
