package plugin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlugin struct {
	id          string
	onInit      func(reg RegistrationContext) error
	shutdownErr error
	shutdownHit *bool
}

func (p *fakePlugin) Metadata() Metadata { return Metadata{ID: p.id} }

func (p *fakePlugin) Initialize(_ context.Context, reg RegistrationContext) error {
	if p.onInit != nil {
		return p.onInit(reg)
	}
	return nil
}

func (p *fakePlugin) Shutdown(context.Context) error {
	if p.shutdownHit != nil {
		*p.shutdownHit = true
	}
	return p.shutdownErr
}

func echoTool(name string) Tool {
	return Tool{
		Name: name,
		Handler: func(_ context.Context, params map[string]any, _ CallContext) (any, error) {
			return params, nil
		},
	}
}

func TestRegisterAndListTools(t *testing.T) {
	t.Parallel()

	h := NewHost(nil)
	p := &fakePlugin{
		id: "echo",
		onInit: func(reg RegistrationContext) error {
			return reg.RegisterTool(echoTool("say"))
		},
	}
	require.NoError(t, h.Register(context.Background(), p, nil))

	tool, ok := h.Tool("echo:say")
	require.True(t, ok)
	assert.Equal(t, "say", tool.Name)

	tools := h.Tools()
	require.Len(t, tools, 1)
	assert.Equal(t, "echo:say", tools[0].Name, "snapshot names carry the plugin-id namespace")
}

func TestFailedInitializeRollsBackAllRegistrations(t *testing.T) {
	t.Parallel()

	h := NewHost(nil)
	p := &fakePlugin{
		id: "broken",
		onInit: func(reg RegistrationContext) error {
			if err := reg.RegisterTool(echoTool("say")); err != nil {
				return err
			}
			if err := reg.RegisterResource(Resource{
				URI: "broken://data",
				Handler: func(context.Context, CallContext) (ResourcePayload, error) {
					return ResourcePayload{}, nil
				},
			}); err != nil {
				return err
			}
			return assert.AnError
		},
	}
	require.Error(t, h.Register(context.Background(), p, nil))

	assert.Empty(t, h.Tools())
	assert.Empty(t, h.Resources())
	_, ok := h.Resource("broken://data")
	assert.False(t, ok)

	// The failed id is free for reuse.
	ok2 := &fakePlugin{id: "broken"}
	require.NoError(t, h.Register(context.Background(), ok2, nil))
}

func TestRegisterDuplicatePluginIDFails(t *testing.T) {
	t.Parallel()

	h := NewHost(nil)
	p1 := &fakePlugin{id: "dup"}
	p2 := &fakePlugin{id: "dup"}
	require.NoError(t, h.Register(context.Background(), p1, nil))
	err := h.Register(context.Background(), p2, nil)
	require.Error(t, err)
}

func TestRegistrationContextSealedAfterInitialize(t *testing.T) {
	t.Parallel()

	h := NewHost(nil)
	var captured RegistrationContext
	p := &fakePlugin{
		id: "sealed",
		onInit: func(reg RegistrationContext) error {
			captured = reg
			return reg.RegisterTool(echoTool("first"))
		},
	}
	require.NoError(t, h.Register(context.Background(), p, nil))

	err := captured.RegisterTool(echoTool("second"))
	require.Error(t, err)
	assert.Len(t, h.Tools(), 1)
}

func TestDuplicateToolKeyRejected(t *testing.T) {
	t.Parallel()

	h := NewHost(nil)
	p := &fakePlugin{
		id: "dup-tool",
		onInit: func(reg RegistrationContext) error {
			if err := reg.RegisterTool(echoTool("say")); err != nil {
				return err
			}
			return reg.RegisterTool(echoTool("say"))
		},
	}
	err := h.Register(context.Background(), p, nil)
	require.Error(t, err)
}

func TestShutdownDrainsInReverseOrderAndResetsRegistries(t *testing.T) {
	t.Parallel()

	h := NewHost(nil)
	var p1Shut, p2Shut bool
	makePlugin := func(id string, hit *bool) *fakePlugin {
		return &fakePlugin{
			id:          id,
			shutdownHit: hit,
			onInit: func(reg RegistrationContext) error {
				return reg.RegisterTool(echoTool(id))
			},
		}
	}
	p1, p2 := makePlugin("p1", &p1Shut), makePlugin("p2", &p2Shut)

	require.NoError(t, h.Register(context.Background(), p1, nil))
	require.NoError(t, h.Register(context.Background(), p2, nil))
	require.Len(t, h.Tools(), 2)

	h.Shutdown(context.Background())
	assert.True(t, p1Shut)
	assert.True(t, p2Shut)
	assert.Empty(t, h.Tools())
	assert.Empty(t, h.Resources())
	assert.Empty(t, h.Prompts())
}

func TestWorkflowStateRoundTrip(t *testing.T) {
	t.Parallel()

	h := NewHost(nil)
	call := h.NewCallContext(nil, RequestContext{CurrentWorkflow: "wf-1"}, true)

	_, ok := call.GetWorkflowState()
	assert.False(t, ok)

	call.UpdateWorkflowState(map[string]any{"step": 2})
	state, ok := call.GetWorkflowState()
	require.True(t, ok)
	assert.Equal(t, 2, state["step"])
}
