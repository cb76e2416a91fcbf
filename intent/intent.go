// Package intent implements the rule-based intent detector the
// orchestrator consults to decide whether an incoming message should
// switch the session's active workflow, exit it, or leave it alone.
package intent

import (
	"regexp"
	"strings"
)

type (
	// Trigger is one phrase a Rule matches against. Matching is
	// case-insensitive.
	Trigger string

	// Rule maps a set of Triggers to a WorkflowID. The trigger with the
	// highest confidence across all Rules wins; on a tie the earlier one
	// is kept. The threshold plays no part in this choice.
	Rule struct {
		WorkflowID string
		Triggers   []Trigger
	}

	// Intent is one named interpretation of a message, with the
	// confidence the detector assigned it.
	Intent struct {
		Name       string
		Confidence float64
		Parameters map[string]any
	}

	// Entity is a span of the message recognized as a typed value:
	// an email address, a number, or a url.
	Entity struct {
		Type       string
		Value      string
		Confidence float64
		StartIndex int
		EndIndex   int
	}

	// DetectInput bundles everything Detect needs to classify a
	// message: the candidate rules (derived from the registered
	// workflows), the session's currently active workflow (empty if
	// none), and any workflow-specific exit phrases to recognize in
	// addition to the default set.
	DetectInput struct {
		Message        string
		Rules          []Rule
		ActiveWorkflow string
		ExitPhrases    []string
	}

	// Analysis is the detector's verdict on one message.
	Analysis struct {
		Confidence           float64
		Intents              []Intent
		Entities             []Entity
		ShouldSwitchWorkflow bool
		TargetWorkflow       string
		ExtractedData        map[string]any
	}

	// Detector scores a message against a candidate rule set.
	Detector struct {
		threshold float64
	}
)

// DefaultThreshold is the confidence a fuzzy trigger match must exceed
// to trigger a workflow switch. Exact and substring matches switch
// regardless of it.
const DefaultThreshold = 0.7

// DefaultExitPhrases are recognized as ending the active workflow
// regardless of which workflow it is. The lowercased message is
// checked against this set before trigger matching runs.
var DefaultExitPhrases = []string{"done", "finished", "complete", "exit", "stop", "end session", "quit"}

// NewDetector builds a Detector using DefaultThreshold.
func NewDetector() *Detector {
	return &Detector{threshold: DefaultThreshold}
}

// WithThreshold overrides the switch threshold.
func (d *Detector) WithThreshold(t float64) *Detector {
	d.threshold = t
	return d
}

// Threshold returns the detector's configured switch threshold.
func (d *Detector) Threshold() float64 { return d.threshold }

// Detect classifies in.Message against in.Rules, in order:
//
//  1. lowercase the message;
//  2. if a workflow is active and the message contains an exit
//     phrase, report an "exit_workflow" intent;
//  3. otherwise score every trigger in in.Rules and, if any matches,
//     report a "switch_workflow" intent targeting the best match's
//     workflow, with entities and workflow-specific fields extracted
//     into ExtractedData; ShouldSwitchWorkflow is set for an exact or
//     substring match, and for a fuzzy match only when its confidence
//     exceeds the threshold;
//  4. otherwise report a low-confidence "continue_current" intent.
func (d *Detector) Detect(in DetectInput) Analysis {
	lowerMsg := strings.ToLower(strings.TrimSpace(in.Message))
	if lowerMsg == "" {
		return Analysis{Confidence: 0.1, Intents: []Intent{{Name: "continue_current", Confidence: 0.1}}}
	}

	if in.ActiveWorkflow != "" && containsAny(lowerMsg, exitPhrases(in.ExitPhrases)) {
		return Analysis{
			Confidence:           0.9,
			Intents:              []Intent{{Name: "exit_workflow", Confidence: 0.9}},
			Entities:             extractEntities(in.Message),
			ShouldSwitchWorkflow: true,
			ExtractedData:        map[string]any{"reason": "user_requested"},
		}
	}

	if match, ok := d.bestTriggerMatch(lowerMsg, in.Rules); ok {
		// An exact or full-substring match means the user uttered the
		// trigger phrase verbatim, which warrants a switch on its own;
		// the threshold gates only the looser fuzzy evidence, whose
		// fixed 0.6 never clears the default cutoff.
		shouldSwitch := match.kind != matchFuzzy || match.confidence > d.threshold
		return Analysis{
			Confidence: match.confidence,
			Intents: []Intent{{
				Name:       "switch_workflow",
				Confidence: match.confidence,
				Parameters: map[string]any{"trigger": match.trigger, "workflowId": match.workflowID},
			}},
			Entities:             extractEntities(in.Message),
			ShouldSwitchWorkflow: shouldSwitch,
			TargetWorkflow:       match.workflowID,
			ExtractedData:        extractWorkflowFields(match.workflowID, in.Message),
		}
	}

	return Analysis{
		Confidence: 0.1,
		Intents:    []Intent{{Name: "continue_current", Confidence: 0.1}},
		Entities:   extractEntities(in.Message),
	}
}

func exitPhrases(extra []string) []string {
	phrases := make([]string, 0, len(DefaultExitPhrases)+len(extra))
	phrases = append(phrases, DefaultExitPhrases...)
	phrases = append(phrases, extra...)
	return phrases
}

func containsAny(lowerMsg string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(lowerMsg, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

type matchKind int

const (
	matchExact matchKind = iota
	matchSubstring
	matchFuzzy
)

type triggerMatch struct {
	workflowID string
	trigger    string
	confidence float64
	kind       matchKind
}

// bestTriggerMatch scores every trigger in every rule and returns the
// highest-confidence match, or ok=false if none produced any
// confidence at all.
//
// Confidence for a single trigger is computed as:
//   - exact match (message == trigger, case-insensitive): 1.0
//   - substring match (trigger appears inside message):
//     (len(trigger) / len(message)) * 0.8
//   - fuzzy match (every word of trigger appears somewhere in message,
//     in any order): 0.6
//   - otherwise: 0
func (d *Detector) bestTriggerMatch(lowerMsg string, rules []Rule) (triggerMatch, bool) {
	var best triggerMatch
	found := false
	for _, rule := range rules {
		for _, trig := range rule.Triggers {
			conf, kind := score(lowerMsg, strings.ToLower(string(trig)))
			if conf <= 0 {
				continue
			}
			if !found || conf > best.confidence {
				best = triggerMatch{workflowID: rule.WorkflowID, trigger: string(trig), confidence: conf, kind: kind}
				found = true
			}
		}
	}
	return best, found
}

func score(message, trigger string) (float64, matchKind) {
	if trigger == "" {
		return 0, matchFuzzy
	}
	if message == trigger {
		return 1.0, matchExact
	}
	if strings.Contains(message, trigger) {
		return (float64(len(trigger)) / float64(len(message))) * 0.8, matchSubstring
	}
	if fuzzyContains(message, trigger) {
		return 0.6, matchFuzzy
	}
	return 0, matchFuzzy
}

// fuzzyContains reports whether every whitespace-separated word of
// trigger appears somewhere in message, regardless of order.
func fuzzyContains(message, trigger string) bool {
	words := strings.Fields(trigger)
	if len(words) == 0 {
		return false
	}
	for _, w := range words {
		if !strings.Contains(message, w) {
			return false
		}
	}
	return true
}

var (
	emailEntityPattern  = regexp.MustCompile(`[\w.+-]+@[\w-]+\.[\w.-]+`)
	urlEntityPattern    = regexp.MustCompile(`https?://\S+`)
	numberEntityPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

	characterNamePattern = regexp.MustCompile(`\b(?i:character|person|called|named)\s+([A-Z][\w'-]*(?:\s+[A-Z][\w'-]*)*)`)
	storyTopicPattern    = regexp.MustCompile(`(?i)\b(?:about|involving|featuring)\s+(.+?)(?:[.!?]|$)`)
)

// extractEntities recognizes emails, urls, and numbers in message.
func extractEntities(message string) []Entity {
	var out []Entity
	for _, loc := range emailEntityPattern.FindAllStringIndex(message, -1) {
		out = append(out, Entity{Type: "email", Value: message[loc[0]:loc[1]], Confidence: 1.0, StartIndex: loc[0], EndIndex: loc[1]})
	}
	for _, loc := range urlEntityPattern.FindAllStringIndex(message, -1) {
		out = append(out, Entity{Type: "url", Value: message[loc[0]:loc[1]], Confidence: 1.0, StartIndex: loc[0], EndIndex: loc[1]})
	}
	for _, loc := range numberEntityPattern.FindAllStringIndex(message, -1) {
		out = append(out, Entity{Type: "number", Value: message[loc[0]:loc[1]], Confidence: 1.0, StartIndex: loc[0], EndIndex: loc[1]})
	}
	return out
}

// extractWorkflowFields pulls workflow-specific fields out of message
// when workflowID names a matching domain: a character name following
// "character/person/called/named" for character workflows, a story
// topic following "about/involving/featuring" for story workflows.
func extractWorkflowFields(workflowID, message string) map[string]any {
	lowerID := strings.ToLower(workflowID)
	data := map[string]any{}
	if strings.Contains(lowerID, "character") {
		if m := characterNamePattern.FindStringSubmatch(message); m != nil {
			data["characterName"] = strings.TrimSpace(m[1])
		}
	}
	if strings.Contains(lowerID, "story") {
		if m := storyTopicPattern.FindStringSubmatch(message); m != nil {
			data["storyTopic"] = strings.TrimSpace(m[1])
		}
	}
	return data
}
