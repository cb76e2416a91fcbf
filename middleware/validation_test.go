package middleware

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guahanweb/mcp-server-platform/kernel"
)

func TestRuleSetGlobalRuleAppliesToEveryTool(t *testing.T) {
	t.Parallel()

	rs := NewRuleSet()
	rs.For("").Add(Required("city"))
	mw := rs.Validation()(noopNext)

	_, err := mw(context.Background(), kernel.ToolCallRequest{ToolKey: "any:tool", Args: map[string]any{}})
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Failures, 1)
	assert.Equal(t, "city", verr.Failures[0].Field)
}

func TestFieldRules(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		rule Rule
		args map[string]any
		ok   bool
	}{
		{"min length passes", MinLength("name", 3), map[string]any{"name": "Aria"}, true},
		{"min length fails", MinLength("name", 3), map[string]any{"name": "Al"}, false},
		{"max length fails", MaxLength("name", 4), map[string]any{"name": "Aurelia"}, false},
		{"min passes on int", Min("days", 1), map[string]any{"days": 3}, true},
		{"min fails", Min("days", 1), map[string]any{"days": 0.5}, false},
		{"max fails", Max("days", 14), map[string]any{"days": float64(30)}, false},
		{"email passes", Email("to"), map[string]any{"to": "jane@example.com"}, true},
		{"email fails", Email("to"), map[string]any{"to": "not-an-email"}, false},
		{"url passes", URL("link"), map[string]any{"link": "https://example.com/x"}, true},
		{"url fails", URL("link"), map[string]any{"link": "ftp://example.com"}, false},
		{"one of passes", OneOf("unit", "c", "f"), map[string]any{"unit": "c"}, true},
		{"one of fails", OneOf("unit", "c", "f"), map[string]any{"unit": "k"}, false},
		{"pattern fails", Pattern("code", regexp.MustCompile(`^[A-Z]{3}$`)), map[string]any{"code": "abc"}, false},
		{"type check fails", IsNumber("days"), map[string]any{"days": "three"}, false},
		{"bool check passes", IsBoolean("dryRun"), map[string]any{"dryRun": true}, true},
		{"absent field passes", Email("to"), map[string]any{}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			failures := tc.rule(tc.args)
			if tc.ok {
				assert.Empty(t, failures)
			} else {
				assert.NotEmpty(t, failures)
			}
		})
	}
}

func TestRequireArgumentsRejectsNilArgs(t *testing.T) {
	t.Parallel()

	mw := RequireArguments()(noopNext)

	_, err := mw(context.Background(), kernel.ToolCallRequest{ToolKey: "any:tool"})
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = mw(context.Background(), kernel.ToolCallRequest{ToolKey: "any:tool", Args: map[string]any{}})
	require.NoError(t, err, "an empty object is still an object")
}

func TestRuleSetScopedRuleOnlyAppliesToItsTool(t *testing.T) {
	t.Parallel()

	rs := NewRuleSet()
	rs.For("weather:forecast").Add(Required("city"))
	mw := rs.Validation()(noopNext)

	_, err := mw(context.Background(), kernel.ToolCallRequest{ToolKey: "other:tool", Args: map[string]any{}})
	require.NoError(t, err)

	_, err = mw(context.Background(), kernel.ToolCallRequest{ToolKey: "weather:forecast", Args: map[string]any{}})
	require.Error(t, err)
}
