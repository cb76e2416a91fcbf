// Package session defines the UserSession/WorkflowContext data model
// and the pluggable Store interface the orchestrator persists them
// through.
package session

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors a Store implementation should return so callers can
// branch with errors.Is regardless of backend.
var (
	ErrNotFound = errors.New("session: not found")
)

// maxRecentWorkflows caps GlobalContext.RecentWorkflows: the MRU list
// is deduplicated, most-recent-first, and never longer than this.
const maxRecentWorkflows = 10

type (
	// Session is one user's durable conversational record.
	Session struct {
		ID                  string
		UserID              string
		UserName            string
		ActiveWorkflow      string
		CurrentContext      string
		GlobalContext       GlobalContext
		WorkflowContext     *WorkflowContext
		ConversationHistory []ConversationEntry
		CreatedAt           time.Time
		UpdatedAt           time.Time
		Metadata            map[string]any
	}

	// GlobalContext holds cross-workflow session state: at minimum the
	// MRU list of workflows the session has visited.
	GlobalContext struct {
		RecentWorkflows []string
	}

	// ConversationEntry is one turn of the session's transcript.
	// Entries are append-only and strictly ordered by Timestamp.
	ConversationEntry struct {
		Role      string
		Content   string
		Timestamp time.Time
	}

	// WorkflowContext is the session's active workflow's live state
	// plus its own bookkeeping: hydrated data, exposed tools, a
	// history of context-level actions, and checkpoints. Checkpoints is
	// the single owned collection; State.Checkpoints is a view over the
	// same slice, keeping the two lengths equal by construction rather
	// than by convention.
	WorkflowContext struct {
		WorkflowID   string
		HydratedData map[string]any
		Tools        []string
		History      []HistoryEntry
		Checkpoints  []Checkpoint
		State        WorkflowState
	}

	// HistoryEntry records one action taken against a WorkflowContext,
	// e.g. "checkpoint_added" or "progress_update".
	HistoryEntry struct {
		Action    string
		Details   map[string]any
		Timestamp time.Time
	}

	// WorkflowState is the workflow's own step-by-step progress record.
	WorkflowState struct {
		WorkflowID  string
		CurrentStep string
		Data        map[string]any
		Metadata    WorkflowStateMetadata
		Checkpoints []Checkpoint
	}

	// WorkflowStateMetadata tracks a WorkflowState's timing and
	// completion bookkeeping.
	WorkflowStateMetadata struct {
		StartedAt            time.Time
		LastModified         time.Time
		CompletionPercentage float64
		IsDraft              bool
		Tags                 []string
	}

	// Checkpoint is a named, restorable snapshot of a WorkflowState at
	// a point in time. ID follows the
	// "checkpoint_{epochMillis}" format.
	Checkpoint struct {
		ID          string
		Timestamp   time.Time
		Step        string
		Description string
		Data        map[string]any
	}

	// Store persists sessions. Implementations must be safe for
	// concurrent use.
	Store interface {
		CreateSession(ctx context.Context, sessionID, userID, userName string, createdAt time.Time) (Session, error)
		LoadSession(ctx context.Context, sessionID string) (Session, error)
		SaveSession(ctx context.Context, sess Session) (Session, error)
		DeleteSession(ctx context.Context, sessionID string) (bool, error)

		// Cleanup removes every session whose UpdatedAt predates
		// olderThan, returning the count removed.
		Cleanup(ctx context.Context, olderThan time.Time) (int, error)

		// Count reports the number of sessions currently held, for
		// health reporting.
		Count(ctx context.Context) (int, error)
	}
)

// AddRecentWorkflow pushes workflowID to the front of
// g.RecentWorkflows, removing any earlier occurrence and capping the
// list at maxRecentWorkflows entries.
func (g *GlobalContext) AddRecentWorkflow(workflowID string) {
	if workflowID == "" {
		return
	}
	filtered := make([]string, 0, len(g.RecentWorkflows)+1)
	filtered = append(filtered, workflowID)
	for _, id := range g.RecentWorkflows {
		if id != workflowID {
			filtered = append(filtered, id)
		}
	}
	if len(filtered) > maxRecentWorkflows {
		filtered = filtered[:maxRecentWorkflows]
	}
	g.RecentWorkflows = filtered
}
