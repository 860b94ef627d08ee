package repository

import (
	"context"
	"errors"

	"meetdraft/internal/model"

	"github.com/google/uuid"
)

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Repository defines data access for the pipeline entities. Two
// implementations exist: PostgreSQL and in-memory (no-DB mode and tests).
type Repository interface {
	// InsertEvent stores a new raw event. Inserting an event whose
	// event_id already exists is a no-op; the stored row wins.
	InsertEvent(ctx context.Context, ev *model.RawEvent) error

	// GetEventByEventID retrieves a raw event by its external identifier.
	GetEventByEventID(ctx context.Context, eventID string) (*model.RawEvent, error)

	// ClaimEvent atomically moves an event from received (or failed, for
	// operator reprocessing) to processing. Returns false if the event
	// was not claimable.
	ClaimEvent(ctx context.Context, eventID string) (bool, error)

	// FinishEvent records the terminal status of an event.
	FinishEvent(ctx context.Context, eventID, status string, errMsg *string) error

	// GetMeetingByID retrieves a meeting by primary key.
	GetMeetingByID(ctx context.Context, id uuid.UUID) (*model.Meeting, error)

	// GetMeetingByExternalID retrieves a meeting by platform identifier.
	GetMeetingByExternalID(ctx context.Context, externalID string) (*model.Meeting, error)

	// UpsertMeeting creates the meeting on first reference or merges the
	// incoming fields into the stored row (monotonic status, no
	// clobbering of better data by stale redeliveries). Returns the
	// stored state after the merge and whether the row was created.
	UpsertMeeting(ctx context.Context, incoming *model.Meeting) (*model.Meeting, bool, error)

	// TryClaimProcessing moves the meeting to processing unless it
	// already is. Guards the expensive stages (download, generation)
	// against concurrent runs for the same meeting.
	TryClaimProcessing(ctx context.Context, meetingID uuid.UUID) (bool, error)

	// SetMeetingStatus advances the meeting status. Transitions that
	// would move the status backwards are silently dropped; failed is
	// terminal and reachable from any state.
	SetMeetingStatus(ctx context.Context, meetingID uuid.UUID, status string) error

	// GetTranscriptByMeetingID retrieves the meeting's transcript.
	GetTranscriptByMeetingID(ctx context.Context, meetingID uuid.UUID) (*model.Transcript, error)

	// SaveTranscript inserts or updates the single transcript row for
	// the meeting (lookup-or-insert, never duplicated).
	SaveTranscript(ctx context.Context, t *model.Transcript) (*model.Transcript, error)

	// CreateDraft stores a new draft row.
	CreateDraft(ctx context.Context, d *model.Draft) error

	// UpdateDraft rewrites a draft row by primary key.
	UpdateDraft(ctx context.Context, d *model.Draft) error

	// GetCurrentDraft returns the newest non-failed draft for the
	// meeting, or ErrNotFound.
	GetCurrentDraft(ctx context.Context, meetingID uuid.UUID) (*model.Draft, error)
}
