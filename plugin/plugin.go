// Package plugin defines the plugin capability set and the data model
// for tools, resources, and prompts.
package plugin

import "context"

type (
	// Metadata identifies a plugin. ID is the unique primary key and the
	// tool-name/prompt-name namespace prefix.
	Metadata struct {
		ID           string
		Name         string
		Version      string
		Description  string
		Author       string
		License      string
		Repository   string
		Keywords     []string
		Category     string
		Homepage     string
		Dependencies []string
	}

	// Schema is a JSON-Schema object describing a tool's input.
	Schema struct {
		Type                 string         `json:"type"`
		Properties           map[string]any `json:"properties"`
		Required             []string       `json:"required"`
		AdditionalProperties bool           `json:"additionalProperties"`
	}

	// Handler is the capability every tool exposes: given decoded
	// arguments and a call context, produce a result or fail.
	Handler func(ctx context.Context, params map[string]any, call CallContext) (any, error)

	// Tool is a named, schema-described operation exposed via
	// tools/call. The registry key is "{pluginId}:{name}".
	Tool struct {
		Name        string
		Description string
		InputSchema Schema
		Handler     Handler
	}

	// ResourceHandler produces a resource's payload.
	ResourceHandler func(ctx context.Context, call CallContext) (ResourcePayload, error)

	// ResourcePayload is the content returned by a Resource's handler.
	ResourcePayload struct {
		MimeType string
		Text     string
	}

	// Resource is a uri-addressed read-only payload exposed via
	// resources/read. Resources are keyed by their bare uri, globally
	// unique across plugins.
	Resource struct {
		URI         string
		Name        string
		Description string
		MimeType    string
		Handler     ResourceHandler
	}

	// PromptArgument describes one argument a Prompt accepts. It is
	// serialized as-is into prompts/list responses.
	PromptArgument struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Required    bool   `json:"required,omitempty"`
	}

	// PromptMessage is one chat message produced by a Prompt,
	// serialized as-is into prompts/get responses.
	PromptMessage struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	// PromptResult is the rendered output of a Prompt's handler.
	PromptResult struct {
		Messages []PromptMessage
	}

	// PromptHandler renders a Prompt given its arguments.
	PromptHandler func(ctx context.Context, args map[string]string, call CallContext) (PromptResult, error)

	// Prompt is a named, argument-taking generator of chat messages,
	// keyed as "{pluginId}:{name}".
	Prompt struct {
		Name        string
		Description string
		Arguments   []PromptArgument
		Handler     PromptHandler
	}

	// Plugin is the capability set the Host drives through its
	// lifecycle: register -> initialize -> serve -> shutdown. Shutdown
	// is optional; implementations that have no cleanup to do simply
	// omit it by not asserting the Shutdowner interface.
	Plugin interface {
		Metadata() Metadata
		Initialize(ctx context.Context, reg RegistrationContext) error
	}

	// Shutdowner is implemented by plugins that need to release
	// resources on host shutdown.
	Shutdowner interface {
		Shutdown(ctx context.Context) error
	}

	// RegistrationContext is the short-lived object the Host exposes to
	// a plugin during Initialize. It is sealed once Initialize returns;
	// further registration attempts fail.
	RegistrationContext interface {
		RegisterTool(tool Tool) error
		RegisterResource(resource Resource) error
		RegisterPrompt(prompt Prompt) error
		Logger() Logger
		Config() map[string]any
	}

	// Logger is re-exported so plugin authors do not need to import
	// telemetry directly; it has the identical shape.
	Logger interface {
		Debug(ctx context.Context, msg string, keyvals ...any)
		Info(ctx context.Context, msg string, keyvals ...any)
		Warn(ctx context.Context, msg string, keyvals ...any)
		Error(ctx context.Context, msg string, keyvals ...any)
	}

	// RequestContext is the per-call request metadata a handler may
	// observe. Handlers must treat the value returned by
	// CallContext.RequestContext as immutable.
	RequestContext struct {
		SessionID       string
		UserID          string
		UserName        string
		CurrentWorkflow string
		Message         string
		Timestamp       int64
		Metadata        map[string]any
	}

	// CallContext is handed to every tool/resource/prompt handler. It
	// provides the namespaced logger, request metadata, and workflow
	// state accessors. CallContext values must not be retained past the
	// handler call.
	CallContext interface {
		Logger() Logger
		RequestContext() (RequestContext, bool)
		GetWorkflowState() (map[string]any, bool)
		UpdateWorkflowState(state map[string]any)
	}
)
