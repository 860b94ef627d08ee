// Package score grades a generated follow-up draft along four structural
// dimensions. It is rule-based and deterministic: no model call, no
// randomness, so scoring runs are reproducible.
package score

import (
	"regexp"
	"strings"

	"meetdraft/internal/model"
)

const dimensionMax = 25

// Subject length bounds, in characters.
const (
	subjectMinLen = 10
	subjectMaxLen = 78
)

// Body word-count bounds. 50-300 words is the ideal range for a
// follow-up email.
const (
	bodyShortWords = 20
	bodyMinWords   = 50
	bodyMaxWords   = 300
)

const maxActionItems = 5

// Input is the draft content under evaluation.
type Input struct {
	Subject     string
	Body        string
	ActionItems []model.ActionItem
}

// Result is the scoring outcome. Overall is the unweighted sum of the
// four 0-25 dimensions.
type Result struct {
	Overall     int
	Breakdown   model.ScoreBreakdown
	Issues      []string
	Suggestions []string
}

var genericSubjects = []string{
	"follow-up", "follow up", "great meeting you", "nice talking",
	"touching base", "checking in", "quick update", "meeting recap",
}

var genericFillers = []string{
	"i hope this email finds you well", "just wanted to", "touch base",
	"per my last email", "it was great", "as discussed", "circle back",
	"don't hesitate to reach out",
}

var (
	specificityRe = regexp.MustCompile(`(?i)\d|proposal|deadline|contract|demo|q[1-4]\b`)
	greetingRe    = regexp.MustCompile(`(?i)^\s*(hi|hello|hey|dear|good (morning|afternoon|evening))\b`)
	ctaRe         = regexp.MustCompile(`(?i)\?|let me know|please |could you|would you|feel free`)
	nextStepRe    = regexp.MustCompile(`(?i)next step|we will|we'll|i will|i'll|by (monday|tuesday|wednesday|thursday|friday|next week|end of)`)
)

// Score grades a draft against the transcript it was generated from.
func Score(draft Input, transcript string) Result {
	var res Result

	transcriptWords := significantWordSet(transcript)

	res.Breakdown.Subject = scoreSubject(draft.Subject, transcriptWords, &res)
	res.Breakdown.Body = scoreBody(draft.Body, transcript, &res)
	res.Breakdown.ActionItems = scoreActionItems(draft.ActionItems, &res)
	res.Breakdown.Structure = scoreStructure(draft.Body, &res)

	res.Overall = res.Breakdown.Subject + res.Breakdown.Body +
		res.Breakdown.ActionItems + res.Breakdown.Structure
	return res
}

func scoreSubject(subject string, transcriptWords map[string]bool, res *Result) int {
	s := dimensionMax
	trimmed := strings.TrimSpace(subject)
	lower := strings.ToLower(trimmed)

	if len(trimmed) < subjectMinLen {
		s -= 6
		res.Issues = append(res.Issues, "Subject is too short")
	} else if len(trimmed) > subjectMaxLen {
		s -= 4
		res.Issues = append(res.Issues, "Subject is too long")
	}

	for _, generic := range genericSubjects {
		if strings.Contains(lower, generic) {
			s -= 5
			res.Issues = append(res.Issues, "Subject uses a generic phrase: "+generic)
			res.Suggestions = append(res.Suggestions, "Mention a concrete topic from the meeting in the subject")
			break
		}
	}

	shared := false
	for w := range significantWordSet(lower) {
		if transcriptWords[w] {
			shared = true
			break
		}
	}
	if !shared {
		s -= 5
		res.Issues = append(res.Issues, "Subject shares no words with the transcript")
	}

	if specificityRe.MatchString(trimmed) {
		s += 3
	}

	return clamp(s)
}

func scoreBody(body, transcript string, res *Result) int {
	s := dimensionMax
	wc := len(strings.Fields(body))

	switch {
	case wc < bodyShortWords:
		s -= 10
		res.Issues = append(res.Issues, "Body is too short")
		res.Suggestions = append(res.Suggestions, "Expand the body to cover what was discussed and agreed")
	case wc < bodyMinWords:
		s -= 5
		res.Issues = append(res.Issues, "Body is shorter than ideal")
	case wc > bodyMaxWords:
		s -= 5
		res.Issues = append(res.Issues, "Body is longer than ideal")
	}

	lower := strings.ToLower(body)
	for _, filler := range genericFillers {
		if strings.Contains(lower, filler) {
			s -= 3
			res.Issues = append(res.Issues, "Body uses filler: "+filler)
		}
	}

	if countTranscriptReferences(body, transcript) < 2 {
		s -= 6
		res.Issues = append(res.Issues, "Body barely references the meeting content")
		res.Suggestions = append(res.Suggestions, "Quote specific points, numbers or names from the meeting")
	}

	return clamp(s)
}

func scoreActionItems(items []model.ActionItem, res *Result) int {
	// No extracted items is legitimate for some meetings; partial credit.
	if len(items) == 0 {
		res.Suggestions = append(res.Suggestions, "Add action items if any commitments were made")
		return 10
	}

	s := dimensionMax
	if len(items) > maxActionItems {
		s -= 5
		res.Issues = append(res.Issues, "Too many action items")
	}

	for _, item := range items {
		if strings.TrimSpace(item.Owner) == "" {
			s -= 3
			res.Issues = append(res.Issues, "Action item without an owner: "+item.Task)
		}
		if strings.TrimSpace(item.Deadline) == "" {
			s -= 2
			res.Suggestions = append(res.Suggestions, "Add a deadline to: "+item.Task)
		}
		if len(strings.TrimSpace(item.Task)) < 10 {
			s -= 3
			res.Issues = append(res.Issues, "Action item task is too vague")
		}
	}

	return clamp(s)
}

func scoreStructure(body string, res *Result) int {
	s := dimensionMax

	if !greetingRe.MatchString(body) {
		s -= 7
		res.Issues = append(res.Issues, "Body has no greeting")
	}
	if !ctaRe.MatchString(body) {
		s -= 6
		res.Issues = append(res.Issues, "Body has no call to action")
	}
	if !nextStepRe.MatchString(body) {
		s -= 6
		res.Issues = append(res.Issues, "Body does not mention next steps")
	}
	if !strings.Contains(strings.TrimSpace(body), "\n\n") && len(strings.Fields(body)) > 100 {
		s -= 6
		res.Issues = append(res.Issues, "Body is a single wall of text")
		res.Suggestions = append(res.Suggestions, "Break the body into paragraphs")
	}

	return clamp(s)
}

// countTranscriptReferences counts body sentences that share at least two
// significant words with some transcript sentence.
func countTranscriptReferences(body, transcript string) int {
	transcriptSentences := splitSentences(transcript)
	sentenceWords := make([]map[string]bool, 0, len(transcriptSentences))
	for _, s := range transcriptSentences {
		sentenceWords = append(sentenceWords, significantWordSet(s))
	}

	refs := 0
	for _, sentence := range splitSentences(body) {
		words := significantWordSet(sentence)
		for _, tw := range sentenceWords {
			shared := 0
			for w := range words {
				if tw[w] {
					shared++
					if shared >= 2 {
						break
					}
				}
			}
			if shared >= 2 {
				refs++
				break
			}
		}
	}
	return refs
}

var sentenceSplitRe = regexp.MustCompile(`[.!?\n]+`)

func splitSentences(text string) []string {
	parts := sentenceSplitRe.Split(text, -1)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// stopWords are common words excluded from significance checks.
var stopWords = map[string]bool{
	"about": true, "after": true, "again": true, "could": true,
	"every": true, "going": true, "have": true, "just": true,
	"like": true, "really": true, "that": true, "their": true,
	"there": true, "these": true, "they": true, "thing": true,
	"think": true, "this": true, "want": true, "well": true,
	"were": true, "what": true, "when": true, "where": true,
	"which": true, "will": true, "with": true, "would": true,
	"your": true, "meeting": true, "today": true, "thanks": true,
}

var wordRe = regexp.MustCompile(`[a-zA-Z']+`)

func significantWordSet(text string) map[string]bool {
	words := wordRe.FindAllString(strings.ToLower(text), -1)
	set := make(map[string]bool, len(words))
	for _, w := range words {
		if len(w) >= 4 && !stopWords[w] {
			set[w] = true
		}
	}
	return set
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > dimensionMax {
		return dimensionMax
	}
	return v
}
