package model

import (
	"time"

	"github.com/google/uuid"
)

// Transcript fetch statuses.
const (
	TranscriptStatusPending  = "pending"
	TranscriptStatusFetching = "fetching"
	TranscriptStatusReady    = "ready"
	TranscriptStatusFailed   = "failed"
)

// SpeakerSegment is one speaker-attributed span of the transcript.
// Offsets are milliseconds from the start of the recording. Segments are
// chronological and consecutive same-speaker segments closer than the
// parser's merge gap have already been merged.
type SpeakerSegment struct {
	Speaker string `json:"speaker"`
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
	Text    string `json:"text"`
}

// Transcript is the parsed textual record of one meeting (1:1, removed
// with its meeting).
type Transcript struct {
	ID            uuid.UUID        `json:"id"`
	MeetingID     uuid.UUID        `json:"meeting_id"`
	FullText      string           `json:"full_text"`
	RawText       string           `json:"-"`
	Segments      []SpeakerSegment `json:"segments"`
	WordCount     int              `json:"word_count"`
	Status        string           `json:"status"`
	FetchAttempts int              `json:"fetch_attempts"`
	LastError     *string          `json:"last_error,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}
