package orchestrator

import (
	"context"
)

// KernelAdapter satisfies kernel.Orchestrator's narrow ProcessMessage
// seam by projecting Orchestrator.ProcessMessage down to just the
// resolved workflow id, which is all the kernel needs to thread into a
// tool's call context. ProcessMessage auto-creates a session when
// sessionID is unknown or empty, so this adapter never fails dispatch
// on account of session state.
type KernelAdapter struct {
	*Orchestrator
}

// ProcessMessage implements the kernel.Orchestrator interface.
func (a KernelAdapter) ProcessMessage(ctx context.Context, message, sessionID, userID, userName string) (string, error) {
	result, err := a.Orchestrator.ProcessMessage(ctx, message, sessionID, userID, userName)
	if err != nil {
		return "", err
	}
	return result.Session.ActiveWorkflow, nil
}
