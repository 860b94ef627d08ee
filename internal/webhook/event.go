// Package webhook defines the inbound meeting-platform event envelope.
package webhook

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"meetdraft/internal/model"
)

// Recording file types we care about.
const (
	FileTypeTranscript = "TRANSCRIPT"
	FileStatusDone     = "completed"
)

// RecordingFile describes one downloadable artifact of a recording.
type RecordingFile struct {
	ID          string `json:"id"`
	FileType    string `json:"file_type"`
	Status      string `json:"status"`
	DownloadURL string `json:"download_url"`
}

// EventObject is the nested meeting/recording description.
type EventObject struct {
	ID             string          `json:"id"`
	UUID           string          `json:"uuid"`
	HostEmail      string          `json:"host_email"`
	Topic          string          `json:"topic"`
	StartTime      *time.Time      `json:"start_time,omitempty"`
	EndTime        *time.Time      `json:"end_time,omitempty"`
	Duration       int             `json:"duration"`
	Participants   []Participant   `json:"participants,omitempty"`
	RecordingFiles []RecordingFile `json:"recording_files,omitempty"`
	DownloadToken  string          `json:"download_token,omitempty"`
}

// Participant is one attendee entry in the envelope.
type Participant struct {
	UserName string `json:"user_name"`
	Email    string `json:"email,omitempty"`
}

// Envelope is the JSON body of one webhook notification. The download
// token may sit at the root or inside the object depending on the event
// kind; Token() resolves both.
type Envelope struct {
	Event         string  `json:"event"`
	EventID       string  `json:"event_id"`
	EventTS       int64   `json:"event_ts"`
	DownloadToken string  `json:"download_token,omitempty"`
	Payload       Payload `json:"payload"`

	raw []byte
}

// Payload wraps the event object.
type Payload struct {
	AccountID string      `json:"account_id"`
	Object    EventObject `json:"object"`
}

// Decode parses an envelope and validates the mandatory identifiers.
func Decode(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode event envelope: %w", err)
	}
	env.raw = body

	if env.Event == "" {
		return nil, fmt.Errorf("event envelope is missing the event kind")
	}
	// Validation challenges carry no event id; everything else must.
	if env.EventID == "" && env.Event != model.EventURLValidation {
		return nil, fmt.Errorf("event envelope is missing the event id")
	}
	return &env, nil
}

// Raw returns the original body for audit storage.
func (e *Envelope) Raw() json.RawMessage {
	return json.RawMessage(e.raw)
}

// ExternalMeetingID returns the platform meeting identifier, preferring
// the stable numeric id over the per-occurrence uuid.
func (e *Envelope) ExternalMeetingID() string {
	if e.Payload.Object.ID != "" {
		return e.Payload.Object.ID
	}
	return e.Payload.Object.UUID
}

// Token returns the transcript download credential, wherever it appeared.
func (e *Envelope) Token() string {
	if e.DownloadToken != "" {
		return e.DownloadToken
	}
	return e.Payload.Object.DownloadToken
}

// TranscriptFile returns the completed transcript artifact, if the
// recording carries one. Some recordings genuinely lack it.
func (e *Envelope) TranscriptFile() (RecordingFile, bool) {
	for _, f := range e.Payload.Object.RecordingFiles {
		if strings.EqualFold(f.FileType, FileTypeTranscript) &&
			strings.EqualFold(f.Status, FileStatusDone) &&
			f.DownloadURL != "" {
			return f, true
		}
	}
	return RecordingFile{}, false
}

// RecordingURL returns the first non-transcript artifact URL, used as the
// meeting's recording pointer.
func (e *Envelope) RecordingURL() string {
	for _, f := range e.Payload.Object.RecordingFiles {
		if !strings.EqualFold(f.FileType, FileTypeTranscript) && f.DownloadURL != "" {
			return f.DownloadURL
		}
	}
	return ""
}

// MeetingView maps the envelope onto the fields it contributes to the
// stored meeting. Status is left empty; the state machine decides it.
func (e *Envelope) MeetingView() model.Meeting {
	obj := e.Payload.Object

	var participants []model.Participant
	for _, p := range obj.Participants {
		if p.UserName == "" && p.Email == "" {
			continue
		}
		participants = append(participants, model.Participant{
			Name:  p.UserName,
			Email: p.Email,
		})
	}

	m := model.Meeting{
		ExternalID:      e.ExternalMeetingID(),
		HostEmail:       obj.HostEmail,
		Topic:           obj.Topic,
		StartTime:       obj.StartTime,
		EndTime:         obj.EndTime,
		DurationMinutes: obj.Duration,
		Participants:    participants,
		RecordingURL:    e.RecordingURL(),
		DownloadToken:   e.Token(),
	}
	if f, ok := e.TranscriptFile(); ok {
		m.TranscriptURL = f.DownloadURL
	}
	return m
}
