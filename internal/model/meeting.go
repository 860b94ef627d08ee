package model

import (
	"time"

	"github.com/google/uuid"
)

// Meeting statuses. Forward-only except for the terminal failed state.
const (
	MeetingStatusPending    = "pending"
	MeetingStatusProcessing = "processing"
	MeetingStatusReady      = "ready"
	MeetingStatusCompleted  = "completed"
	MeetingStatusFailed     = "failed"
)

// meetingStatusRank orders the non-failed statuses so that a redelivered
// stale event can never move a meeting backwards.
var meetingStatusRank = map[string]int{
	MeetingStatusPending:    0,
	MeetingStatusProcessing: 1,
	MeetingStatusReady:      2,
	MeetingStatusCompleted:  3,
}

// MeetingStatusAtLeast reports whether current already is at or past next.
// The failed status sits outside the ladder: it is reachable from anywhere
// and nothing outranks it.
func MeetingStatusAtLeast(current, next string) bool {
	if current == MeetingStatusFailed {
		return next != MeetingStatusFailed
	}
	if next == MeetingStatusFailed {
		return false
	}
	return meetingStatusRank[current] >= meetingStatusRank[next]
}

// MergeMeeting folds the fields of an incoming event's meeting view into
// the stored meeting. Events may arrive out of order or be redelivered, so
// the merge keeps "better" data: populated fields are never replaced with
// empty ones and the status never moves backwards.
func MergeMeeting(existing, incoming Meeting) Meeting {
	merged := existing

	if incoming.HostEmail != "" {
		merged.HostEmail = incoming.HostEmail
	}
	if incoming.Topic != "" {
		merged.Topic = incoming.Topic
	}
	if merged.StartTime == nil && incoming.StartTime != nil {
		merged.StartTime = incoming.StartTime
	}
	if merged.EndTime == nil && incoming.EndTime != nil {
		merged.EndTime = incoming.EndTime
	}
	if merged.DurationMinutes == 0 && incoming.DurationMinutes > 0 {
		merged.DurationMinutes = incoming.DurationMinutes
	}
	if len(incoming.Participants) > len(merged.Participants) {
		merged.Participants = incoming.Participants
	}
	if incoming.RecordingURL != "" {
		merged.RecordingURL = incoming.RecordingURL
	}
	if incoming.TranscriptURL != "" {
		merged.TranscriptURL = incoming.TranscriptURL
	}
	if incoming.DownloadToken != "" {
		merged.DownloadToken = incoming.DownloadToken
	}
	if incoming.Status != "" && !MeetingStatusAtLeast(merged.Status, incoming.Status) {
		merged.Status = incoming.Status
	}

	return merged
}

// Participant is one attendee as reported by the platform.
type Participant struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Meeting is the normalized, upserted representation of one external
// meeting across every event that references it. ExternalID is the
// platform meeting identifier and is unique.
type Meeting struct {
	ID              uuid.UUID     `json:"id"`
	ExternalID      string        `json:"external_id"`
	HostEmail       string        `json:"host_email"`
	Topic           string        `json:"topic"`
	StartTime       *time.Time    `json:"start_time,omitempty"`
	EndTime         *time.Time    `json:"end_time,omitempty"`
	DurationMinutes int           `json:"duration_minutes"`
	Participants    []Participant `json:"participants"`
	Status          string        `json:"status"`
	RecordingURL    string        `json:"recording_url,omitempty"`
	TranscriptURL   string        `json:"transcript_url,omitempty"`
	DownloadToken   string        `json:"-"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}
