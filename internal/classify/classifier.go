// Package classify infers meeting category and tone from transcript and
// topic text using weighted keyword scoring. Everything here is pure and
// deterministic: identical input always yields identical output.
package classify

import (
	"fmt"
	"math"
	"strings"
)

// occurrenceCap stops repeated filler words from running away with the
// score: at most this many occurrences of one keyword count.
const occurrenceCap = 3

// highConfidenceScore is the empirically chosen score treated as full
// confidence. It is a scaling anchor, not a ceiling.
const highConfidenceScore = 15

// toneMargin is how far casual must outnumber formal hits (or the
// reverse) before the tone leaves neutral.
const toneMargin = 2

// Result is the classification outcome.
type Result struct {
	MeetingType string   `json:"meeting_type"`
	Confidence  int      `json:"confidence"`
	Tone        string   `json:"tone"`
	Signals     []string `json:"signals,omitempty"`
}

// Classify scores the concatenated topic and transcript against the rule
// table and picks the highest-scoring category, defaulting to general on
// a zero tie. Tone is decided independently.
func Classify(transcript, topic string) Result {
	text := strings.ToLower(topic + "\n" + transcript)

	best := TypeGeneral
	bestScore := 0
	var signals []string

	for _, rule := range Rules {
		score, matched := scoreCategory(text, rule)
		if score > bestScore {
			best = rule.Type
			bestScore = score
			signals = matched
		}
	}

	confidence := 0
	if bestScore > 0 {
		confidence = int(math.Round(float64(bestScore) / highConfidenceScore * 100))
		if confidence > 100 {
			confidence = 100
		}
	}

	return Result{
		MeetingType: best,
		Confidence:  confidence,
		Tone:        detectTone(text),
		Signals:     signals,
	}
}

// scoreCategory sums capped occurrences times group weight and records
// which keywords fired.
func scoreCategory(text string, rule CategoryRule) (int, []string) {
	score := 0
	var matched []string
	for _, group := range rule.Groups {
		for _, keyword := range group.Keywords {
			n := strings.Count(text, keyword)
			if n == 0 {
				continue
			}
			if n > occurrenceCap {
				n = occurrenceCap
			}
			score += n * group.Weight
			matched = append(matched, fmt.Sprintf("%s x%d", keyword, n))
		}
	}
	return score, matched
}

// detectTone counts formal-register and casual-register phrase hits.
// Casual wins when it leads by more than toneMargin, formal under the
// symmetric condition, otherwise neutral.
func detectTone(text string) string {
	formal := countHits(text, formalPhrases)
	casual := countHits(text, casualPhrases)

	switch {
	case casual-formal > toneMargin:
		return ToneCasual
	case formal-casual > toneMargin:
		return ToneFormal
	default:
		return ToneNeutral
	}
}

func countHits(text string, phrases []string) int {
	hits := 0
	for _, phrase := range phrases {
		hits += strings.Count(text, phrase)
	}
	return hits
}
