// Package orchestrator coordinates sessions, registered workflows, and
// intent detection: given an inbound message it decides which workflow
// a session is in, whether to switch, and exposes progress/checkpoint
// operations against that workflow.
package orchestrator

import (
	"context"
	"errors"

	"github.com/guahanweb/mcp-server-platform/intent"
	"github.com/guahanweb/mcp-server-platform/session"
)

// Sentinel errors.
var (
	ErrWorkflowNotFound = errors.New("orchestrator: workflow not found")
	ErrSessionNotFound  = errors.New("orchestrator: session not found")
	ErrNoActiveWorkflow = errors.New("orchestrator: session has no active workflow")
)

type (
	// Workflow is a named, stateful conversation flow a session can be
	// placed into. Step advances the flow given the current state and an
	// inbound message, returning the next state and a human-readable
	// response.
	Workflow struct {
		ID          string
		Name        string
		Description string

		// Triggers are the phrases the intent Detector matches inbound
		// messages against to select this workflow.
		Triggers []string

		// Capabilities lists the tools this workflow exposes once
		// active; copied onto WorkflowContext.Tools on switch.
		Capabilities []string

		// Category groups related workflows for
		// WorkflowRegistry.ByCategory.
		Category string

		// RequiredContext names the session/global context keys this
		// workflow expects to be populated before it runs.
		RequiredContext []string

		// ExitSignals are phrases, beyond intent.DefaultExitPhrases,
		// that also end this workflow early.
		ExitSignals []string

		// Tags are free-form labels for discovery/filtering.
		Tags []string

		InitialState string
		Step         WorkflowStepFunc
	}

	// WorkflowStepFunc advances a workflow by one turn.
	WorkflowStepFunc func(ctx context.Context, state map[string]any, message string) (StepResult, error)

	// StepResult is what a WorkflowStepFunc produces.
	StepResult struct {
		State     map[string]any
		Response  string
		Progress  float64
		Completed bool
	}

	// ProcessResult is what ProcessMessage returns: the saved session,
	// the intent verdict, whether the active workflow changed, and the
	// active workflow's step output when one ran.
	ProcessResult struct {
		Session         session.Session
		Intent          intent.Analysis
		WorkflowChanged bool
		Response        string
		Progress        float64
		Completed       bool
	}
)
