package orchestrator

import (
	"context"
	"time"

	"github.com/guahanweb/mcp-server-platform/intent"
	"github.com/guahanweb/mcp-server-platform/session"
	"github.com/guahanweb/mcp-server-platform/telemetry"
)

// IntentDetector is the pluggable analysis seam: anything that can
// turn a message plus the session's current workflow into an
// intent.Analysis. The rule-based intent.Detector is the default;
// deployments may substitute their own.
type IntentDetector interface {
	Detect(in intent.DetectInput) intent.Analysis
}

// Orchestrator is the facade plugins and transports talk to: it
// combines the SessionManager, WorkflowRegistry, ContextManager, and
// an IntentDetector into a single ProcessMessage entry point.
type Orchestrator struct {
	Sessions  *SessionManager
	Workflows *WorkflowRegistry
	Contexts  *ContextManager
	Detector  IntentDetector

	startedAt time.Time
	logger    telemetry.Logger
}

// New builds an Orchestrator over store, with no workflows registered.
func New(store session.Store, logger telemetry.Logger) *Orchestrator {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Orchestrator{
		Sessions:  NewSessionManager(store),
		Workflows: NewWorkflowRegistry(),
		Contexts:  NewContextManager(),
		Detector:  intent.NewDetector(),
		startedAt: time.Now().UTC(),
		logger:    logger,
	}
}

// ProcessMessage is the orchestrator's single entry point: resolve or
// create the session, append message to its history, run intent
// detection, and switch or exit the active workflow when warranted
// before stepping it forward.
func (o *Orchestrator) ProcessMessage(ctx context.Context, message, sessionID, userID, userName string) (ProcessResult, error) {
	sess, err := o.Sessions.GetOrCreateSession(ctx, sessionID, userID, userName)
	if err != nil {
		return ProcessResult{}, err
	}

	sess.ConversationHistory = append(sess.ConversationHistory, session.ConversationEntry{
		Role:      "user",
		Content:   message,
		Timestamp: time.Now().UTC(),
	})

	analysis := o.Detector.Detect(intent.DetectInput{
		Message:        message,
		Rules:          o.intentRules(),
		ActiveWorkflow: sess.ActiveWorkflow,
		ExitPhrases:    o.exitSignalsFor(sess.ActiveWorkflow),
	})

	workflowChanged := false
	switch {
	case analysis.ShouldSwitchWorkflow && len(analysis.Intents) > 0 && analysis.Intents[0].Name == "exit_workflow":
		if sess.ActiveWorkflow != "" {
			if err := o.Contexts.SwitchContext(ctx, &sess, "", nil, nil); err != nil {
				return ProcessResult{}, err
			}
			workflowChanged = true
		}
	case analysis.ShouldSwitchWorkflow && analysis.TargetWorkflow != "" && analysis.TargetWorkflow != sess.ActiveWorkflow:
		wf, ok := o.Workflows.Get(analysis.TargetWorkflow)
		if !ok {
			return ProcessResult{}, ErrWorkflowNotFound
		}
		if err := o.Contexts.SwitchContext(ctx, &sess, wf.ID, wf.Capabilities, analysis.ExtractedData); err != nil {
			return ProcessResult{}, err
		}
		workflowChanged = true
		o.logger.Info(ctx, "workflow switched", "session", sess.ID, "workflow", wf.ID, "confidence", analysis.Confidence)
	}

	result := ProcessResult{Session: sess, Intent: analysis, WorkflowChanged: workflowChanged}

	if sess.ActiveWorkflow != "" {
		wf, ok := o.Workflows.Get(sess.ActiveWorkflow)
		if !ok {
			return ProcessResult{}, ErrWorkflowNotFound
		}
		stepResult, err := wf.Step(ctx, sess.WorkflowContext.State.Data, message)
		if err != nil {
			return ProcessResult{}, err
		}
		sess.WorkflowContext.State.Data = stepResult.State
		if err := o.Contexts.UpdateProgress(&sess, sess.WorkflowContext.State.CurrentStep, stepResult.Progress*100); err != nil {
			return ProcessResult{}, err
		}
		result.Response = stepResult.Response
		result.Progress = stepResult.Progress
		result.Completed = stepResult.Completed
		if stepResult.Completed {
			if err := o.Contexts.SwitchContext(ctx, &sess, "", nil, nil); err != nil {
				return ProcessResult{}, err
			}
		}
	}

	saved, err := o.Sessions.UpdateSession(ctx, sess)
	if err != nil {
		return ProcessResult{}, err
	}
	result.Session = saved
	return result, nil
}

// SwitchWorkflow forces sessionID onto targetWorkflow (or clears its
// active workflow when empty), bypassing intent detection.
func (o *Orchestrator) SwitchWorkflow(ctx context.Context, sessionID, targetWorkflow string, initData map[string]any) (session.Session, error) {
	sess, err := o.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return session.Session{}, err
	}
	var capabilities []string
	if targetWorkflow != "" {
		wf, ok := o.Workflows.Get(targetWorkflow)
		if !ok {
			return session.Session{}, ErrWorkflowNotFound
		}
		capabilities = wf.Capabilities
	}
	if err := o.Contexts.SwitchContext(ctx, &sess, targetWorkflow, capabilities, initData); err != nil {
		return session.Session{}, err
	}
	return o.Sessions.UpdateSession(ctx, sess)
}

// UpdateWorkflowProgress advances sessionID's active workflow to step
// at percentage completion.
func (o *Orchestrator) UpdateWorkflowProgress(ctx context.Context, sessionID, step string, percentage float64) (session.Session, error) {
	sess, err := o.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return session.Session{}, err
	}
	if err := o.Contexts.UpdateProgress(&sess, step, percentage); err != nil {
		return session.Session{}, err
	}
	return o.Sessions.UpdateSession(ctx, sess)
}

// AddWorkflowCheckpoint snapshots sessionID's active workflow state.
func (o *Orchestrator) AddWorkflowCheckpoint(ctx context.Context, sessionID, description string, data map[string]any) (session.Checkpoint, error) {
	sess, err := o.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return session.Checkpoint{}, err
	}
	cp, err := o.Contexts.AddCheckpoint(&sess, description, data)
	if err != nil {
		return session.Checkpoint{}, err
	}
	if _, err := o.Sessions.UpdateSession(ctx, sess); err != nil {
		return session.Checkpoint{}, err
	}
	return cp, nil
}

// SessionStats summarizes a session for GetSessionStats.
type SessionStats struct {
	SessionID       string
	ActiveWorkflow  string
	MessageCount    int
	RecentWorkflows []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// GetSessionStats reports a summary of sessionID's state.
func (o *Orchestrator) GetSessionStats(ctx context.Context, sessionID string) (SessionStats, error) {
	sess, err := o.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return SessionStats{}, err
	}
	return SessionStats{
		SessionID:       sess.ID,
		ActiveWorkflow:  sess.ActiveWorkflow,
		MessageCount:    len(sess.ConversationHistory),
		RecentWorkflows: sess.GlobalContext.RecentWorkflows,
		CreatedAt:       sess.CreatedAt,
		UpdatedAt:       sess.UpdatedAt,
	}, nil
}

// CleanupExpiredSessions removes sessions idle longer than timeout.
func (o *Orchestrator) CleanupExpiredSessions(ctx context.Context, timeout time.Duration) (int, error) {
	return o.Sessions.Cleanup(ctx, timeout)
}

// HealthStatus reports per-component liveness plus aggregate counters.
type HealthStatus struct {
	Healthy             bool
	Components          map[string]bool
	ActiveSessions      int
	RegisteredWorkflows int
	UptimeSeconds       float64
}

// HealthCheck reports the orchestrator's liveness: per-component
// presence plus active-sessions/registered-workflows/uptime.
func (o *Orchestrator) HealthCheck(ctx context.Context) HealthStatus {
	components := map[string]bool{
		"sessions":  o.Sessions != nil,
		"workflows": o.Workflows != nil,
		"contexts":  o.Contexts != nil,
		"detector":  o.Detector != nil,
	}
	healthy := true
	for _, ok := range components {
		if !ok {
			healthy = false
		}
	}
	activeSessions := 0
	if o.Sessions != nil {
		if n, err := o.Sessions.Count(ctx); err == nil {
			activeSessions = n
		}
	}
	registered := 0
	if o.Workflows != nil {
		registered = o.Workflows.Size()
	}
	return HealthStatus{
		Healthy:             healthy,
		Components:          components,
		ActiveSessions:      activeSessions,
		RegisteredWorkflows: registered,
		UptimeSeconds:       time.Since(o.startedAt).Seconds(),
	}
}

// intentRules projects every registered Workflow's Triggers into
// intent.Rules so the Detector always sees the live registry rather
// than a separately maintained copy.
func (o *Orchestrator) intentRules() []intent.Rule {
	workflows := o.Workflows.List()
	rules := make([]intent.Rule, 0, len(workflows))
	for _, wf := range workflows {
		triggers := make([]intent.Trigger, 0, len(wf.Triggers))
		for _, t := range wf.Triggers {
			triggers = append(triggers, intent.Trigger(t))
		}
		rules = append(rules, intent.Rule{WorkflowID: wf.ID, Triggers: triggers})
	}
	return rules
}

// exitSignalsFor returns the active workflow's own ExitSignals, on top
// of intent.DefaultExitPhrases which the Detector always checks.
func (o *Orchestrator) exitSignalsFor(activeWorkflowID string) []string {
	if activeWorkflowID == "" {
		return nil
	}
	wf, ok := o.Workflows.Get(activeWorkflowID)
	if !ok {
		return nil
	}
	return wf.ExitSignals
}
