package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event statuses. An event only moves forward:
// received -> processing -> processed | failed.
const (
	EventStatusReceived   = "received"
	EventStatusProcessing = "processing"
	EventStatusProcessed  = "processed"
	EventStatusFailed     = "failed"
)

// Event kinds emitted by the meeting platform.
const (
	EventMeetingEnded        = "meeting.ended"
	EventRecordingCompleted  = "recording.completed"
	EventTranscriptCompleted = "recording.transcript_completed"
	EventURLValidation       = "endpoint.url_validation"
)

// RawEvent is the durable record of one inbound webhook notification.
// EventID is the platform's globally unique identifier and serves as the
// idempotency key; the row is never deleted.
type RawEvent struct {
	ID           uuid.UUID       `json:"id"`
	EventID      string          `json:"event_id"`
	EventKind    string          `json:"event_kind"`
	Payload      json.RawMessage `json:"payload"`
	Status       string          `json:"status"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	ReceivedAt   time.Time       `json:"received_at"`
	ProcessedAt  *time.Time      `json:"processed_at,omitempty"`
}
