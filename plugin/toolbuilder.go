package plugin

// ToolBuilder assembles a Tool's JSON-Schema input description
// incrementally instead of requiring plugin authors to hand-write
// Schema.Properties maps. It is a thin convenience layer over the same
// Tool/Schema types RegisterTool accepts directly.
type ToolBuilder struct {
	name        string
	description string
	properties  map[string]any
	required    []string
	handler     Handler
}

// NewTool starts building a tool named name.
func NewTool(name, description string) *ToolBuilder {
	return &ToolBuilder{
		name:        name,
		description: description,
		properties:  make(map[string]any),
	}
}

func (b *ToolBuilder) param(name string, required bool, def map[string]any) *ToolBuilder {
	b.properties[name] = def
	if required {
		b.required = append(b.required, name)
	}
	return b
}

// StringParam adds a string-typed property.
func (b *ToolBuilder) StringParam(name, description string, required bool) *ToolBuilder {
	return b.param(name, required, map[string]any{
		"type":        "string",
		"description": description,
	})
}

// EnumParam adds a string-typed property constrained to values.
func (b *ToolBuilder) EnumParam(name, description string, values []string, required bool) *ToolBuilder {
	return b.param(name, required, map[string]any{
		"type":        "string",
		"description": description,
		"enum":        values,
	})
}

// NumberParam adds a number-typed property with an inclusive [min, max]
// range.
func (b *ToolBuilder) NumberParam(name, description string, min, max float64, required bool) *ToolBuilder {
	return b.param(name, required, map[string]any{
		"type":        "number",
		"description": description,
		"minimum":     min,
		"maximum":     max,
	})
}

// BooleanParam adds a boolean-typed property.
func (b *ToolBuilder) BooleanParam(name, description string, required bool) *ToolBuilder {
	return b.param(name, required, map[string]any{
		"type":        "boolean",
		"description": description,
	})
}

// ArrayParam adds an array-typed property whose items match itemSchema
// (e.g. map[string]any{"type": "string"}).
func (b *ToolBuilder) ArrayParam(name, description string, itemSchema map[string]any, required bool) *ToolBuilder {
	return b.param(name, required, map[string]any{
		"type":        "array",
		"description": description,
		"items":       itemSchema,
	})
}

// ObjectParam adds a nested-object-typed property described by its own
// properties/required pair.
func (b *ToolBuilder) ObjectParam(name, description string, properties map[string]any, required []string, requiredParam bool) *ToolBuilder {
	return b.param(name, requiredParam, map[string]any{
		"type":        "object",
		"description": description,
		"properties":  properties,
		"required":    required,
	})
}

// Handle sets the tool's handler. Build panics if this was never
// called, since a handler-less tool can never satisfy a tools/call.
func (b *ToolBuilder) Handle(h Handler) *ToolBuilder {
	b.handler = h
	return b
}

// Build assembles the final Tool. It panics on a missing handler so
// the mistake surfaces at plugin-init time, not on the first call.
func (b *ToolBuilder) Build() Tool {
	if b.handler == nil {
		panic("plugin: tool " + b.name + " built without a handler")
	}
	return Tool{
		Name:        b.name,
		Description: b.description,
		InputSchema: Schema{
			Type:                 "object",
			Properties:           b.properties,
			Required:             b.required,
			AdditionalProperties: false,
		},
		Handler: b.handler,
	}
}
