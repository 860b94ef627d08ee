package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Draft statuses.
const (
	DraftStatusPending    = "pending"
	DraftStatusGenerating = "generating"
	DraftStatusGenerated  = "generated"
	DraftStatusSent       = "sent"
	DraftStatusFailed     = "failed"
)

// ActionItem is one commitment extracted from the meeting.
type ActionItem struct {
	Owner    string `json:"owner,omitempty"`
	Task     string `json:"task"`
	Deadline string `json:"deadline,omitempty"`
}

// ScoreBreakdown is the per-dimension quality score, each 0-25.
type ScoreBreakdown struct {
	Subject     int `json:"subject"`
	Body        int `json:"body"`
	ActionItems int `json:"action_items"`
	Structure   int `json:"structure"`
}

// Draft is one follow-up-email generation result for a meeting. Failed
// generations persist too, carrying the error and the exhausted retry
// count; they are data, not silence.
type Draft struct {
	ID               uuid.UUID      `json:"id"`
	MeetingID        uuid.UUID      `json:"meeting_id"`
	TranscriptID     uuid.UUID      `json:"transcript_id"`
	Subject          string         `json:"subject"`
	Body             string         `json:"body"`
	Status           string         `json:"status"`
	Model            string         `json:"model"`
	PromptTokens     int            `json:"prompt_tokens"`
	CompletionTokens int            `json:"completion_tokens"`
	CostUSD          float64        `json:"cost_usd"`
	StartedAt        time.Time      `json:"started_at"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
	QualityScore     int            `json:"quality_score"`
	ScoreBreakdown   ScoreBreakdown `json:"score_breakdown"`
	MeetingType      string         `json:"meeting_type"`
	Tone             string         `json:"tone"`
	ActionItems      []ActionItem   `json:"action_items"`
	KeyPoints        []string       `json:"key_points"`
	ErrorMessage     *string        `json:"error_message,omitempty"`
	RetryCount       int            `json:"retry_count"`
	CreatedAt        time.Time      `json:"created_at"`
}

// BodyWithActionItems returns the email body with the action items
// appended as a formatted block, the shape handed to the mail sender.
func (d *Draft) BodyWithActionItems() string {
	if len(d.ActionItems) == 0 {
		return d.Body
	}
	var b strings.Builder
	b.WriteString(d.Body)
	b.WriteString("\n\nAction items:\n")
	for _, item := range d.ActionItems {
		line := "- " + item.Task
		if item.Owner != "" {
			line = fmt.Sprintf("- %s: %s", item.Owner, item.Task)
		}
		if item.Deadline != "" {
			line += " (by " + item.Deadline + ")"
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
