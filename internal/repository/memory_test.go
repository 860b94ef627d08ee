package repository

import (
	"context"
	"testing"

	"meetdraft/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimEventTransitions(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	ev := &model.RawEvent{ID: uuid.New(), EventID: "ev-1", EventKind: model.EventMeetingEnded, Status: model.EventStatusReceived}
	require.NoError(t, repo.InsertEvent(ctx, ev))

	claimed, err := repo.ClaimEvent(ctx, "ev-1")
	require.NoError(t, err)
	assert.True(t, claimed)

	// Mid-flight events cannot be claimed again.
	claimed, err = repo.ClaimEvent(ctx, "ev-1")
	require.NoError(t, err)
	assert.False(t, claimed)

	// A failed event is reclaimable for another attempt.
	require.NoError(t, repo.FinishEvent(ctx, "ev-1", model.EventStatusFailed, nil))
	claimed, err = repo.ClaimEvent(ctx, "ev-1")
	require.NoError(t, err)
	assert.True(t, claimed)

	// A processed event never is.
	require.NoError(t, repo.FinishEvent(ctx, "ev-1", model.EventStatusProcessed, nil))
	claimed, err = repo.ClaimEvent(ctx, "ev-1")
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestInsertEventIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	first := &model.RawEvent{ID: uuid.New(), EventID: "ev-1", Status: model.EventStatusReceived}
	require.NoError(t, repo.InsertEvent(ctx, first))
	require.NoError(t, repo.FinishEvent(ctx, "ev-1", model.EventStatusProcessed, nil))

	// Redelivery must not reset the stored status.
	dup := &model.RawEvent{ID: uuid.New(), EventID: "ev-1", Status: model.EventStatusReceived}
	require.NoError(t, repo.InsertEvent(ctx, dup))

	stored, err := repo.GetEventByEventID(ctx, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, model.EventStatusProcessed, stored.Status)
	assert.Equal(t, first.ID, stored.ID)
}

func TestUpsertMeetingCreateThenMerge(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	created, wasCreated, err := repo.UpsertMeeting(ctx, &model.Meeting{ExternalID: "987", Topic: "Q3 planning"})
	require.NoError(t, err)
	assert.True(t, wasCreated)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, model.MeetingStatusPending, created.Status)

	merged, wasCreated, err := repo.UpsertMeeting(ctx, &model.Meeting{ExternalID: "987", HostEmail: "host@example.com"})
	require.NoError(t, err)
	assert.False(t, wasCreated)
	assert.Equal(t, created.ID, merged.ID)
	assert.Equal(t, "Q3 planning", merged.Topic)
	assert.Equal(t, "host@example.com", merged.HostEmail)
}

func TestSetMeetingStatusNeverRegresses(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	m, _, err := repo.UpsertMeeting(ctx, &model.Meeting{ExternalID: "987"})
	require.NoError(t, err)

	require.NoError(t, repo.SetMeetingStatus(ctx, m.ID, model.MeetingStatusReady))
	require.NoError(t, repo.SetMeetingStatus(ctx, m.ID, model.MeetingStatusPending))

	got, err := repo.GetMeetingByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MeetingStatusReady, got.Status)
}

func TestTryClaimProcessingIsExclusive(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	m, _, err := repo.UpsertMeeting(ctx, &model.Meeting{ExternalID: "987"})
	require.NoError(t, err)

	claimed, err := repo.TryClaimProcessing(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = repo.TryClaimProcessing(ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestSaveTranscriptUpsertsByMeeting(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	meetingID := uuid.New()

	first, err := repo.SaveTranscript(ctx, &model.Transcript{MeetingID: meetingID, Status: model.TranscriptStatusFetching})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, first.ID)

	second, err := repo.SaveTranscript(ctx, &model.Transcript{MeetingID: meetingID, Status: model.TranscriptStatusReady, FullText: "text"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "one transcript row per meeting")

	got, err := repo.GetTranscriptByMeetingID(ctx, meetingID)
	require.NoError(t, err)
	assert.Equal(t, model.TranscriptStatusReady, got.Status)
	assert.Equal(t, "text", got.FullText)
}

func TestGetCurrentDraftSkipsFailed(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	meetingID := uuid.New()

	generated := &model.Draft{ID: uuid.New(), MeetingID: meetingID, Status: model.DraftStatusGenerated}
	require.NoError(t, repo.CreateDraft(ctx, generated))
	failed := &model.Draft{ID: uuid.New(), MeetingID: meetingID, Status: model.DraftStatusFailed}
	require.NoError(t, repo.CreateDraft(ctx, failed))

	got, err := repo.GetCurrentDraft(ctx, meetingID)
	require.NoError(t, err)
	assert.Equal(t, generated.ID, got.ID)

	_, err = repo.GetCurrentDraft(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
