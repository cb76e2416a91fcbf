package plugin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolBuilderAssemblesSchema(t *testing.T) {
	t.Parallel()

	tool := NewTool("forecast", "get a weather forecast").
		StringParam("city", "city name", true).
		NumberParam("days", "forecast length", 1, 14, false).
		EnumParam("unit", "temperature unit", []string{"c", "f"}, false).
		Handle(func(_ context.Context, params map[string]any, _ CallContext) (any, error) {
			return params["city"], nil
		}).
		Build()

	assert.Equal(t, "forecast", tool.Name)
	assert.Equal(t, "object", tool.InputSchema.Type)
	assert.ElementsMatch(t, []string{"city"}, tool.InputSchema.Required)
	assert.Contains(t, tool.InputSchema.Properties, "days")
	assert.Contains(t, tool.InputSchema.Properties, "unit")
}

func TestToolBuilderPanicsWithoutHandler(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		NewTool("broken", "no handler").Build()
	})
}

func TestToolBuilderHandlerInvokable(t *testing.T) {
	t.Parallel()

	tool := NewTool("echo", "").
		StringParam("msg", "", true).
		Handle(func(_ context.Context, params map[string]any, _ CallContext) (any, error) {
			return params["msg"], nil
		}).
		Build()

	result, err := tool.Handler(context.Background(), map[string]any{"msg": "hi"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "hi", result)
}
