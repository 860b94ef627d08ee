package classify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifySalesTranscript(t *testing.T) {
	transcript := strings.Join([]string{
		"Alice: Thanks for joining the demo today.",
		"Bob: Happy to walk through pricing once we cover the proposal.",
		"Alice: Who is the decision maker on your side?",
	}, "\n")

	result := Classify(transcript, "Acme renewal call")

	assert.Equal(t, TypeSales, result.MeetingType)
	// pricing(3) + proposal(3) + decision maker(3) + demo(2) + renewal(2) = 13
	assert.Equal(t, 87, result.Confidence)
	assert.NotEmpty(t, result.Signals)
}

func TestClassifyStandupTranscript(t *testing.T) {
	transcript := strings.Join([]string{
		"Dana: Yesterday I finished the migration ticket.",
		"Dana: Today I am picking up the deploy, no blockers.",
	}, "\n")

	result := Classify(transcript, "Daily standup")

	assert.Equal(t, TypeStandup, result.MeetingType)
	assert.Greater(t, result.Confidence, 50)
}

func TestClassifyNoSignalsDefaultsToGeneral(t *testing.T) {
	result := Classify("We talked about the weather and lunch.", "Chat")

	assert.Equal(t, TypeGeneral, result.MeetingType)
	assert.Zero(t, result.Confidence)
	assert.Empty(t, result.Signals)
}

func TestClassifyConfidenceIsCapped(t *testing.T) {
	// Far more than enough weighted hits to exceed the scaling anchor.
	transcript := strings.Repeat("pricing proposal contract purchase decision maker ", 5)

	result := Classify(transcript, "")

	assert.Equal(t, TypeSales, result.MeetingType)
	assert.Equal(t, 100, result.Confidence)
}

func TestClassifyOccurrenceCap(t *testing.T) {
	// 10 repeats of a single weight-3 keyword count as 3 occurrences.
	transcript := strings.Repeat("roadmap ", 10)

	result := Classify(transcript, "")

	assert.Equal(t, TypePlanning, result.MeetingType)
	// capped: 3 occurrences x weight 3 = 9 -> 60
	assert.Equal(t, 60, result.Confidence)
}

func TestClassifyIsDeterministic(t *testing.T) {
	transcript := "Let's review the roadmap and the sprint planning backlog, deadline is Friday."

	first := Classify(transcript, "Planning sync")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Classify(transcript, "Planning sync"))
	}
}

func TestDetectToneCasual(t *testing.T) {
	text := "yeah so we're gonna ship it, cool, no worries you guys"

	result := Classify(text, "")

	assert.Equal(t, ToneCasual, result.Tone)
}

func TestDetectToneFormal(t *testing.T) {
	text := "Per our discussion, I would like to proceed. Kind regards. Thank you for your time."

	result := Classify(text, "")

	assert.Equal(t, ToneFormal, result.Tone)
}

func TestDetectToneNeutralWithinMargin(t *testing.T) {
	// Two casual hits against zero formal hits stays inside the margin.
	result := Classify("yeah that is cool", "")

	assert.Equal(t, ToneNeutral, result.Tone)
}
