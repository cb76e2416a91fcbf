package middleware

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/guahanweb/mcp-server-platform/kernel"
)

type (
	// FieldFailure describes one failed custom validation rule. It is
	// distinct from JSON-Schema validation (handled by the kernel via
	// plugin.SchemaValidator before the pipeline ever runs); this is for
	// business rules schema cannot express, e.g. "endDate must be after
	// startDate".
	FieldFailure struct {
		Field   string
		Value   any
		Message string
	}

	// Rule inspects a tool call's decoded arguments and reports zero or
	// more FieldFailures.
	Rule func(args map[string]any) []FieldFailure

	// ValidationError aggregates every FieldFailure a Rule set produced
	// for one call.
	ValidationError struct {
		Failures []FieldFailure
	}
)

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// RequireArguments is the built-in shape check run before any tool
// executes: the call's arguments must be a present, non-nil mapping.
// A JSON array or scalar in the arguments field never reaches this
// point (the kernel rejects it as invalid params when decoding), so
// the nil check is the only case left to guard.
func RequireArguments() kernel.Middleware {
	return func(next kernel.Next) kernel.Next {
		return func(ctx context.Context, req kernel.ToolCallRequest) (any, error) {
			if req.Args == nil {
				return nil, &ValidationError{Failures: []FieldFailure{{
					Field:   "arguments",
					Message: "must be an object",
				}}}
			}
			return next(ctx, req)
		}
	}
}

// RuleSet is a fluent builder for composing Rules into one
// middleware.
type RuleSet struct {
	rules map[string][]Rule // toolKey -> rules; "" applies to every tool
}

// NewRuleSet builds an empty RuleSet.
func NewRuleSet() *RuleSet {
	return &RuleSet{rules: make(map[string][]Rule)}
}

// For scopes subsequent Add calls to a specific tool key. An empty
// toolKey applies to every tool.
func (rs *RuleSet) For(toolKey string) *ruleScope {
	return &ruleScope{rs: rs, toolKey: toolKey}
}

type ruleScope struct {
	rs      *RuleSet
	toolKey string
}

// Add appends rule to this scope's tool key.
func (s *ruleScope) Add(rule Rule) *ruleScope {
	s.rs.rules[s.toolKey] = append(s.rs.rules[s.toolKey], rule)
	return s
}

// Required builds a Rule requiring field to be present and non-empty.
func Required(field string) Rule {
	return func(args map[string]any) []FieldFailure {
		v, ok := args[field]
		if !ok || v == nil || v == "" {
			return []FieldFailure{{Field: field, Value: v, Message: "is required"}}
		}
		return nil
	}
}

// fieldRule builds a Rule that applies check to field's value when the
// field is present. Absent or nil fields pass; pair with Required to
// make a field mandatory.
func fieldRule(field string, check func(v any) (string, bool)) Rule {
	return func(args map[string]any) []FieldFailure {
		v, ok := args[field]
		if !ok || v == nil {
			return nil
		}
		if msg, ok := check(v); !ok {
			return []FieldFailure{{Field: field, Value: v, Message: msg}}
		}
		return nil
	}
}

// IsString builds a Rule requiring field, when present, to be a string.
func IsString(field string) Rule {
	return fieldRule(field, func(v any) (string, bool) {
		_, ok := v.(string)
		return "must be a string", ok
	})
}

// IsNumber builds a Rule requiring field, when present, to be a number.
func IsNumber(field string) Rule {
	return fieldRule(field, func(v any) (string, bool) {
		_, ok := asFloat(v)
		return "must be a number", ok
	})
}

// IsBoolean builds a Rule requiring field, when present, to be a
// boolean.
func IsBoolean(field string) Rule {
	return fieldRule(field, func(v any) (string, bool) {
		_, ok := v.(bool)
		return "must be a boolean", ok
	})
}

// MinLength builds a Rule requiring the string field to be at least n
// characters long.
func MinLength(field string, n int) Rule {
	return fieldRule(field, func(v any) (string, bool) {
		s, ok := v.(string)
		return fmt.Sprintf("must be at least %d characters", n), ok && len(s) >= n
	})
}

// MaxLength builds a Rule requiring the string field to be at most n
// characters long.
func MaxLength(field string, n int) Rule {
	return fieldRule(field, func(v any) (string, bool) {
		s, ok := v.(string)
		return fmt.Sprintf("must be at most %d characters", n), ok && len(s) <= n
	})
}

// Min builds a Rule requiring the numeric field to be >= bound.
func Min(field string, bound float64) Rule {
	return fieldRule(field, func(v any) (string, bool) {
		f, ok := asFloat(v)
		return fmt.Sprintf("must be at least %v", bound), ok && f >= bound
	})
}

// Max builds a Rule requiring the numeric field to be <= bound.
func Max(field string, bound float64) Rule {
	return fieldRule(field, func(v any) (string, bool) {
		f, ok := asFloat(v)
		return fmt.Sprintf("must be at most %v", bound), ok && f <= bound
	})
}

// Email builds a Rule requiring the string field to look like an email
// address.
func Email(field string) Rule {
	return fieldRule(field, func(v any) (string, bool) {
		s, ok := v.(string)
		return "must be a valid email address", ok && emailFieldPattern.MatchString(s)
	})
}

// URL builds a Rule requiring the string field to be an http(s) url.
func URL(field string) Rule {
	return fieldRule(field, func(v any) (string, bool) {
		s, ok := v.(string)
		if !ok {
			return "must be a valid url", false
		}
		u, err := url.Parse(s)
		valid := err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
		return "must be a valid url", valid
	})
}

// OneOf builds a Rule requiring field to equal one of allowed.
func OneOf(field string, allowed ...any) Rule {
	return fieldRule(field, func(v any) (string, bool) {
		for _, a := range allowed {
			if v == a {
				return "", true
			}
		}
		return fmt.Sprintf("must be one of %v", allowed), false
	})
}

// Pattern builds a Rule requiring the string field to match re.
func Pattern(field string, re *regexp.Regexp) Rule {
	return fieldRule(field, func(v any) (string, bool) {
		s, ok := v.(string)
		return fmt.Sprintf("must match %s", re.String()), ok && re.MatchString(s)
	})
}

// asFloat normalizes the numeric shapes a decoded arguments map can
// hold: wire-decoded JSON numbers arrive as float64, hand-built test
// arguments often as int.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

var emailFieldPattern = regexp.MustCompile(`^[\w.+-]+@[\w-]+\.[\w.-]+$`)

// Validation builds the middleware that runs every Rule registered
// for the called tool (plus every "" global rule) and fails the call
// with a *ValidationError if any rule reports a failure.
func (rs *RuleSet) Validation() kernel.Middleware {
	return func(next kernel.Next) kernel.Next {
		return func(ctx context.Context, req kernel.ToolCallRequest) (any, error) {
			var failures []FieldFailure
			for _, rule := range rs.rules[""] {
				failures = append(failures, rule(req.Args)...)
			}
			for _, rule := range rs.rules[req.ToolKey] {
				failures = append(failures, rule(req.Args)...)
			}
			if len(failures) > 0 {
				return nil, &ValidationError{Failures: failures}
			}
			return next(ctx, req)
		}
	}
}
