// Package transcript turns captions-style transcript files into
// speaker-attributed segments and downloads them from the platform.
package transcript

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"

	"meetdraft/internal/model"
)

// mergeGapMs bounds fragmentation from the platform's captioning
// granularity: consecutive same-speaker cues closer than this are one
// segment.
const mergeGapMs = 2000

// maxSpeakerLen guards against treating a long sentence with a colon as a
// speaker label.
const maxSpeakerLen = 64

const unknownSpeaker = "Unknown"

var (
	timeRangeRe = regexp.MustCompile(`^(\d{1,2}:)?(\d{1,2}):(\d{1,2})[.,](\d{1,3})\s*-->\s*((\d{1,2}:)?(\d{1,2}):(\d{1,2})[.,](\d{1,3}))`)
	cueNumberRe = regexp.MustCompile(`^\d+$`)
	markupTagRe = regexp.MustCompile(`<[^>]*>`)
)

// ParseResult is the structured form of one transcript file.
type ParseResult struct {
	FullText  string
	Segments  []model.SpeakerSegment
	WordCount int
}

// Parse scans a captions-style transcript (WEBVTT header, cue number
// lines, `start --> end` time ranges, text lines optionally prefixed
// with "Speaker Name: "). It tolerates missing speaker labels, malformed
// timestamps and empty cues, and never fails.
func Parse(raw string) ParseResult {
	var segments []model.SpeakerSegment

	var (
		inCue   bool
		startMs int64
		endMs   int64
		lines   []string
	)

	closeCue := func() {
		if !inCue {
			return
		}
		inCue = false
		seg, ok := buildSegment(startMs, endMs, lines)
		lines = nil
		if ok {
			segments = append(segments, seg)
		}
	}

	scanner := bufio.NewScanner(strings.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if strings.Contains(line, "-->") {
			closeCue()
			inCue = true
			startMs, endMs = 0, 0
			// Malformed time ranges still open a cue, with zero offsets.
			if m := timeRangeRe.FindStringSubmatch(line); m != nil {
				startMs = timestampMs(m[1], m[2], m[3], m[4])
				endMs = timestampMs(m[6], m[7], m[8], m[9])
			}
			continue
		}

		if !inCue || line == "" || cueNumberRe.MatchString(line) {
			continue
		}
		if strings.HasPrefix(line, "WEBVTT") || strings.HasPrefix(line, "NOTE") {
			continue
		}

		line = markupTagRe.ReplaceAllString(line, "")
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	closeCue()

	merged := mergeSegments(segments)
	fullText := joinSegments(merged)

	return ParseResult{
		FullText:  fullText,
		Segments:  merged,
		WordCount: len(strings.Fields(fullText)),
	}
}

// buildSegment attributes the accumulated cue text to a speaker via the
// "Name: " prefix on the first line. Empty cues are skipped.
func buildSegment(startMs, endMs int64, lines []string) (model.SpeakerSegment, bool) {
	if len(lines) == 0 {
		return model.SpeakerSegment{}, false
	}

	speaker := unknownSpeaker
	first := lines[0]
	if name, rest, ok := strings.Cut(first, ": "); ok &&
		name != "" && len(name) <= maxSpeakerLen {
		speaker = name
		lines = append([]string{rest}, lines[1:]...)
	}

	text := strings.TrimSpace(strings.Join(lines, " "))
	if text == "" {
		return model.SpeakerSegment{}, false
	}

	return model.SpeakerSegment{
		Speaker: speaker,
		StartMs: startMs,
		EndMs:   endMs,
		Text:    text,
	}, true
}

// timestampMs converts a captured timestamp to milliseconds. The hour
// group is optional; malformed pieces fall back to zero.
func timestampMs(hourGroup, minStr, secStr, msStr string) int64 {
	var hours int64
	if hourGroup != "" {
		hours = parseInt(strings.TrimSuffix(hourGroup, ":"))
	}
	minutes := parseInt(minStr)
	seconds := parseInt(secStr)

	// Pad/truncate the fractional part to exactly milliseconds.
	for len(msStr) < 3 {
		msStr += "0"
	}
	millis := parseInt(msStr[:3])

	return ((hours*60+minutes)*60+seconds)*1000 + millis
}

func parseInt(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// mergeSegments folds consecutive segments from the same speaker whose
// gap is under mergeGapMs into one.
func mergeSegments(in []model.SpeakerSegment) []model.SpeakerSegment {
	if len(in) == 0 {
		return nil
	}

	out := []model.SpeakerSegment{in[0]}
	for _, seg := range in[1:] {
		last := &out[len(out)-1]
		if seg.Speaker == last.Speaker && seg.StartMs-last.EndMs < mergeGapMs {
			last.Text += " " + seg.Text
			last.EndMs = seg.EndMs
			continue
		}
		out = append(out, seg)
	}
	return out
}

// joinSegments renders "Speaker: text" paragraphs separated by blank
// lines.
func joinSegments(segments []model.SpeakerSegment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		parts = append(parts, seg.Speaker+": "+seg.Text)
	}
	return strings.Join(parts, "\n\n")
}
