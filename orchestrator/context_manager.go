package orchestrator

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/guahanweb/mcp-server-platform/session"
)

// ContextLoader builds and enriches a workflow's context from an
// external source, e.g. a content service that knows what a half-built
// character sheet looks like. Loaders are registered per workflow id;
// SwitchContext delegates to a registered loader instead of building
// the skeletal default.
type ContextLoader interface {
	LoadContext(ctx context.Context, workflowID, sessionID string, entities map[string]any) (session.WorkflowContext, error)
	HydrateContext(ctx context.Context, wc session.WorkflowContext, entities map[string]any) (session.WorkflowContext, error)
}

// ContextManager mutates a session's active WorkflowContext in place:
// switching it to a new workflow, tracking step progress, and taking
// checkpoints. Persistence is the caller's responsibility via
// session.Store, since WorkflowContext lives embedded in
// session.Session.
type ContextManager struct {
	mu      sync.RWMutex
	loaders map[string]ContextLoader
}

// NewContextManager builds a ContextManager with no loaders registered.
func NewContextManager() *ContextManager {
	return &ContextManager{loaders: make(map[string]ContextLoader)}
}

// RegisterLoader installs loader for workflowID, replacing any earlier
// registration.
func (c *ContextManager) RegisterLoader(workflowID string, loader ContextLoader) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaders[workflowID] = loader
}

func (c *ContextManager) loader(workflowID string) (ContextLoader, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	l, ok := c.loaders[workflowID]
	return l, ok
}

// SwitchContext moves sess onto workflowID, or clears its active
// workflow entirely when workflowID is empty. A loader registered for
// workflowID builds the fresh WorkflowContext; otherwise a skeletal one
// is seeded with capabilities as its exposed tools and initData as its
// starting step data, with empty history and checkpoints. Either way
// workflowID is pushed onto the session's MRU recentWorkflows.
func (c *ContextManager) SwitchContext(ctx context.Context, sess *session.Session, workflowID string, capabilities []string, initData map[string]any) error {
	if workflowID == "" {
		sess.ActiveWorkflow = ""
		sess.WorkflowContext = nil
		sess.CurrentContext = "general"
		return nil
	}
	// Re-switching to the already-active workflow is a no-op: the live
	// context, its checkpoints, and the MRU list (which already has this
	// workflow at the front) all stay as they are.
	if sess.ActiveWorkflow == workflowID && sess.WorkflowContext != nil {
		return nil
	}
	if initData == nil {
		initData = map[string]any{}
	}

	if loader, ok := c.loader(workflowID); ok {
		wc, err := loader.LoadContext(ctx, workflowID, sess.ID, initData)
		if err != nil {
			return err
		}
		sess.WorkflowContext = &wc
	} else {
		now := time.Now().UTC()
		sess.WorkflowContext = &session.WorkflowContext{
			WorkflowID:   workflowID,
			HydratedData: map[string]any{},
			Tools:        capabilities,
			History:      []session.HistoryEntry{},
			Checkpoints:  []session.Checkpoint{},
			State: session.WorkflowState{
				WorkflowID:  workflowID,
				CurrentStep: "initial",
				Data:        initData,
				Metadata: session.WorkflowStateMetadata{
					StartedAt:    now,
					LastModified: now,
				},
				Checkpoints: []session.Checkpoint{},
			},
		}
	}
	sess.ActiveWorkflow = workflowID
	sess.CurrentContext = workflowID
	sess.GlobalContext.AddRecentWorkflow(workflowID)
	return nil
}

// UpdateProgress advances sess's active workflow to step at
// percentage completion, stamping lastModified and recording a
// progress_update history entry.
func (c *ContextManager) UpdateProgress(sess *session.Session, step string, percentage float64) error {
	wc := sess.WorkflowContext
	if wc == nil {
		return ErrNoActiveWorkflow
	}
	now := time.Now().UTC()
	wc.State.CurrentStep = step
	wc.State.Metadata.CompletionPercentage = percentage
	wc.State.Metadata.LastModified = now
	wc.History = append(wc.History, session.HistoryEntry{
		Action:    "progress_update",
		Details:   map[string]any{"step": step, "percentage": percentage},
		Timestamp: now,
	})
	return nil
}

// AddCheckpoint snapshots sess's active workflow state under a
// "checkpoint_{epochMillis}" id, appending it to the owned Checkpoints
// slice and mirroring that same slice onto State.Checkpoints so the
// two stay equal in length by construction, and records a
// checkpoint_added history entry.
func (c *ContextManager) AddCheckpoint(sess *session.Session, description string, data map[string]any) (session.Checkpoint, error) {
	wc := sess.WorkflowContext
	if wc == nil {
		return session.Checkpoint{}, ErrNoActiveWorkflow
	}
	if data == nil {
		data = map[string]any{}
	}
	now := time.Now().UTC()
	cp := session.Checkpoint{
		ID:          "checkpoint_" + strconv.FormatInt(now.UnixMilli(), 10),
		Timestamp:   now,
		Step:        wc.State.CurrentStep,
		Description: description,
		Data:        data,
	}
	wc.Checkpoints = append(wc.Checkpoints, cp)
	wc.State.Checkpoints = wc.Checkpoints
	wc.History = append(wc.History, session.HistoryEntry{
		Action:    "checkpoint_added",
		Details:   map[string]any{"checkpointId": cp.ID, "description": description},
		Timestamp: now,
	})
	return cp, nil
}
