package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExactMatchIsFullConfidence(t *testing.T) {
	t.Parallel()

	d := NewDetector()
	rules := []Rule{{WorkflowID: "booking", Triggers: []Trigger{"book a flight"}}}
	a := d.Detect(DetectInput{Message: "book a flight", Rules: rules})
	require.Equal(t, "booking", a.TargetWorkflow)
	assert.Equal(t, 1.0, a.Confidence)
	assert.True(t, a.ShouldSwitchWorkflow)
}

func TestSubstringMatchScalesWithLength(t *testing.T) {
	t.Parallel()

	d := NewDetector()
	rules := []Rule{{WorkflowID: "booking", Triggers: []Trigger{"book a flight"}}}
	message := "please book a flight for me today"
	a := d.Detect(DetectInput{Message: message, Rules: rules})
	expected := (float64(len("book a flight")) / float64(len(message))) * 0.8
	assert.InDelta(t, expected, a.Confidence, 0.0001)
	assert.True(t, a.ShouldSwitchWorkflow, "uttering the whole trigger phrase warrants a switch")
}

func TestFullTriggerPhraseInsideLongerMessageSwitches(t *testing.T) {
	t.Parallel()

	d := NewDetector()
	rules := []Rule{{WorkflowID: "character-creation", Triggers: []Trigger{"create character"}}}
	a := d.Detect(DetectInput{Message: "please create character", Rules: rules})
	assert.True(t, a.ShouldSwitchWorkflow)
	assert.Equal(t, "character-creation", a.TargetWorkflow)
}

func TestFuzzyMatchIsFixedConfidence(t *testing.T) {
	t.Parallel()

	d := NewDetector()
	rules := []Rule{{WorkflowID: "booking", Triggers: []Trigger{"flight book"}}}
	a := d.Detect(DetectInput{Message: "I would like to book a flight please", Rules: rules})
	assert.Equal(t, 0.6, a.Confidence)
	assert.False(t, a.ShouldSwitchWorkflow, "fuzzy evidence alone never clears the default threshold")
}

func TestNoMatchReturnsContinueCurrent(t *testing.T) {
	t.Parallel()

	d := NewDetector()
	rules := []Rule{{WorkflowID: "booking", Triggers: []Trigger{"book a flight"}}}
	a := d.Detect(DetectInput{Message: "what's the weather", Rules: rules})
	require.Len(t, a.Intents, 1)
	assert.Equal(t, "continue_current", a.Intents[0].Name)
	assert.False(t, a.ShouldSwitchWorkflow)
}

func TestFuzzySwitchRespectsThreshold(t *testing.T) {
	t.Parallel()

	rules := []Rule{{WorkflowID: "booking", Triggers: []Trigger{"flight book"}}}
	msg := "I want to book my next flight"

	def := NewDetector().Detect(DetectInput{Message: msg, Rules: rules})
	assert.False(t, def.ShouldSwitchWorkflow)

	loose := NewDetector().WithThreshold(0.5).Detect(DetectInput{Message: msg, Rules: rules})
	assert.True(t, loose.ShouldSwitchWorkflow)
}

func TestHighestConfidenceMatchWins(t *testing.T) {
	t.Parallel()

	d := NewDetector()
	rules := []Rule{
		{WorkflowID: "weak", Triggers: []Trigger{"flight book"}},
		{WorkflowID: "strong", Triggers: []Trigger{"book a flight"}},
	}
	a := d.Detect(DetectInput{Message: "book a flight", Rules: rules})
	assert.Equal(t, "strong", a.TargetWorkflow)
}

func TestExitPhraseOnlyAppliesWithActiveWorkflow(t *testing.T) {
	t.Parallel()

	d := NewDetector()
	a := d.Detect(DetectInput{Message: "I'm done", ActiveWorkflow: "booking"})
	require.Len(t, a.Intents, 1)
	assert.Equal(t, "exit_workflow", a.Intents[0].Name)
	assert.True(t, a.ShouldSwitchWorkflow)
	assert.Equal(t, "user_requested", a.ExtractedData["reason"])

	noActive := d.Detect(DetectInput{Message: "I'm done"})
	assert.NotEqual(t, "exit_workflow", noActive.Intents[0].Name)
}

func TestWorkflowSpecificExitSignalsAugmentDefaults(t *testing.T) {
	t.Parallel()

	d := NewDetector()
	a := d.Detect(DetectInput{Message: "cancel please", ActiveWorkflow: "booking", ExitPhrases: []string{"cancel"}})
	assert.Equal(t, "exit_workflow", a.Intents[0].Name)
}

func TestEntityExtractionFindsEmailNumberAndURL(t *testing.T) {
	t.Parallel()

	d := NewDetector()
	a := d.Detect(DetectInput{Message: "reach me at jane@example.com or visit https://example.com, I am 29"})

	types := map[string]bool{}
	for _, e := range a.Entities {
		types[e.Type] = true
	}
	assert.True(t, types["email"])
	assert.True(t, types["url"])
	assert.True(t, types["number"])
}

func TestWorkflowFieldExtractionForCharacterAndStoryWorkflows(t *testing.T) {
	t.Parallel()

	d := NewDetector()
	rules := []Rule{{WorkflowID: "character-builder", Triggers: []Trigger{"new character"}}}
	a := d.Detect(DetectInput{Message: "new character called Aria Stormwind", Rules: rules})
	assert.Equal(t, "Aria Stormwind", a.ExtractedData["characterName"])

	storyRules := []Rule{{WorkflowID: "story-writer", Triggers: []Trigger{"write a story"}}}
	b := d.Detect(DetectInput{Message: "write a story about a dragon who learns to fly", Rules: storyRules})
	assert.Equal(t, "a dragon who learns to fly", b.ExtractedData["storyTopic"])
}
