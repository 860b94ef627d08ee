package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"meetdraft/internal/model"
	"meetdraft/internal/repository"
	"meetdraft/internal/retry"
	"meetdraft/internal/transcript"
	"meetdraft/internal/webhook"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleVTT = `WEBVTT

1
00:00:01.000 --> 00:00:03.000
Alice: We agreed the proposal ships by Friday.

2
00:00:04.000 --> 00:00:06.000
Bob: I will send the pricing contract.
`

// scriptedFetcher fails a fixed number of times before serving content.
type scriptedFetcher struct {
	failures int
	err      error
	content  string
	calls    int
}

func (f *scriptedFetcher) Fetch(_ context.Context, _, _ string) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", f.err
	}
	return f.content, nil
}

// stubGenerator records invocations and returns a canned draft. With a
// repo it also persists the draft, like the real generator; with err it
// reports a persistence failure instead.
type stubGenerator struct {
	repo   repository.Repository
	calls  int
	status string
	err    error
}

func (g *stubGenerator) Generate(ctx context.Context, meeting *model.Meeting, t *model.Transcript) (*model.Draft, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	status := g.status
	if status == "" {
		status = model.DraftStatusGenerated
	}
	draft := &model.Draft{
		ID:        uuid.New(),
		MeetingID: meeting.ID,
		Status:    status,
	}
	if g.repo != nil {
		if err := g.repo.CreateDraft(ctx, draft); err != nil {
			return nil, err
		}
	}
	return draft, nil
}

func noSleep(_ context.Context, _ time.Duration) error { return nil }

func newTestHandler(repo repository.Repository, fetcher TranscriptFetcher, generator DraftGenerator) *Handler {
	return &Handler{
		repo:      repo,
		fetcher:   fetcher,
		generator: generator,
		policy:    retry.DefaultPolicy(),
		sleep:     noSleep,
		log:       zerolog.Nop(),
	}
}

func decode(t *testing.T, body string) *webhook.Envelope {
	t.Helper()
	env, err := webhook.Decode([]byte(body))
	require.NoError(t, err)
	return env
}

func meetingEndedBody(eventID string) string {
	return fmt.Sprintf(`{
		"event": "meeting.ended",
		"event_id": %q,
		"payload": {"object": {
			"id": "987654321",
			"host_email": "host@example.com",
			"topic": "Q3 planning",
			"duration": 45
		}}
	}`, eventID)
}

func transcriptCompletedBody(eventID, token string) string {
	return fmt.Sprintf(`{
		"event": "recording.transcript_completed",
		"event_id": %q,
		"download_token": %q,
		"payload": {"object": {
			"id": "987654321",
			"topic": "Q3 planning",
			"recording_files": [
				{"id": "f1", "file_type": "TRANSCRIPT", "status": "completed", "download_url": "https://platform.example.com/rec/f1"}
			]
		}}
	}`, eventID, token)
}

func recordingCompletedBody(eventID string, withTranscript bool) string {
	files := `[{"id": "f1", "file_type": "MP4", "status": "completed", "download_url": "https://platform.example.com/rec/f1"}]`
	if withTranscript {
		files = `[{"id": "f2", "file_type": "TRANSCRIPT", "status": "completed", "download_url": "https://platform.example.com/rec/f2"}]`
	}
	return fmt.Sprintf(`{
		"event": "recording.completed",
		"event_id": %q,
		"payload": {"object": {"id": "987654321", "recording_files": %s}}
	}`, eventID, files)
}

func TestHandleTranscriptCompletedEndToEnd(t *testing.T) {
	repo := repository.NewMemoryRepository()
	fetcher := &scriptedFetcher{content: sampleVTT}
	generator := &stubGenerator{}
	h := newTestHandler(repo, fetcher, generator)

	outcome, err := h.Handle(context.Background(), NewRun(), decode(t, transcriptCompletedBody("ev-1", "tok")))
	require.NoError(t, err)

	assert.Equal(t, ActionCreated, outcome.Action)
	require.NotEqual(t, uuid.Nil, outcome.MeetingID)
	assert.Equal(t, 1, fetcher.calls)
	assert.Equal(t, 1, generator.calls)

	meeting, err := repo.GetMeetingByID(context.Background(), outcome.MeetingID)
	require.NoError(t, err)
	assert.Equal(t, model.MeetingStatusCompleted, meeting.Status)

	tr, err := repo.GetTranscriptByMeetingID(context.Background(), outcome.MeetingID)
	require.NoError(t, err)
	assert.Equal(t, model.TranscriptStatusReady, tr.Status)
	assert.Equal(t, 1, tr.FetchAttempts)
	assert.Contains(t, tr.FullText, "Alice:")

	ev, err := repo.GetEventByEventID(context.Background(), "ev-1")
	require.NoError(t, err)
	assert.Equal(t, model.EventStatusProcessed, ev.Status)
}

func TestHandleRedeliveredEventIsSkipped(t *testing.T) {
	repo := repository.NewMemoryRepository()
	fetcher := &scriptedFetcher{content: sampleVTT}
	generator := &stubGenerator{}
	h := newTestHandler(repo, fetcher, generator)

	body := transcriptCompletedBody("ev-dup", "tok")
	first, err := h.Handle(context.Background(), NewRun(), decode(t, body))
	require.NoError(t, err)
	require.Equal(t, ActionCreated, first.Action)

	second, err := h.Handle(context.Background(), NewRun(), decode(t, body))
	require.NoError(t, err)

	assert.Equal(t, ActionSkipped, second.Action)
	assert.Equal(t, 1, fetcher.calls, "replay must not download again")
	assert.Equal(t, 1, generator.calls, "replay must not generate again")
}

func TestHandleOutOfOrderMeetingEndedDoesNotRegress(t *testing.T) {
	repo := repository.NewMemoryRepository()
	generator := &stubGenerator{}
	h := newTestHandler(repo, &scriptedFetcher{content: sampleVTT}, generator)

	outcome, err := h.Handle(context.Background(), NewRun(), decode(t, transcriptCompletedBody("ev-a", "tok")))
	require.NoError(t, err)

	// The meeting.ended notification for the same meeting arrives late.
	late, err := h.Handle(context.Background(), NewRun(), decode(t, meetingEndedBody("ev-b")))
	require.NoError(t, err)
	assert.Equal(t, ActionUpdated, late.Action)
	assert.Equal(t, outcome.MeetingID, late.MeetingID)

	meeting, err := repo.GetMeetingByID(context.Background(), outcome.MeetingID)
	require.NoError(t, err)
	assert.Equal(t, model.MeetingStatusCompleted, meeting.Status, "stale event must not move the meeting backwards")
	assert.Equal(t, "host@example.com", meeting.HostEmail, "late event still contributes missing fields")
	assert.Equal(t, 45, meeting.DurationMinutes)
}

func TestHandleMeetingEndedCreatesPendingMeeting(t *testing.T) {
	repo := repository.NewMemoryRepository()
	h := newTestHandler(repo, &scriptedFetcher{}, &stubGenerator{})

	outcome, err := h.Handle(context.Background(), NewRun(), decode(t, meetingEndedBody("ev-1")))
	require.NoError(t, err)

	assert.Equal(t, ActionCreated, outcome.Action)
	meeting, err := repo.GetMeetingByID(context.Background(), outcome.MeetingID)
	require.NoError(t, err)
	assert.Equal(t, model.MeetingStatusPending, meeting.Status)
}

func TestHandleUnknownEventKindIsAcknowledged(t *testing.T) {
	repo := repository.NewMemoryRepository()
	h := newTestHandler(repo, &scriptedFetcher{}, &stubGenerator{})

	outcome, err := h.Handle(context.Background(), NewRun(), decode(t, `{"event": "meeting.updated", "event_id": "ev-x", "payload": {}}`))
	require.NoError(t, err)

	assert.Equal(t, ActionSkipped, outcome.Action)
	ev, err := repo.GetEventByEventID(context.Background(), "ev-x")
	require.NoError(t, err)
	assert.Equal(t, model.EventStatusProcessed, ev.Status)
}

func TestHandleMissingMeetingIdentifierFails(t *testing.T) {
	repo := repository.NewMemoryRepository()
	h := newTestHandler(repo, &scriptedFetcher{}, &stubGenerator{})

	outcome, err := h.Handle(context.Background(), NewRun(), decode(t, `{"event": "meeting.ended", "event_id": "ev-bad", "payload": {"object": {}}}`))
	require.Error(t, err)

	assert.Equal(t, ActionFailed, outcome.Action)
	ev, repoErr := repo.GetEventByEventID(context.Background(), "ev-bad")
	require.NoError(t, repoErr)
	assert.Equal(t, model.EventStatusFailed, ev.Status)
	require.NotNil(t, ev.ErrorMessage)
}

func TestHandleTranscriptEventWithoutCredentialFails(t *testing.T) {
	repo := repository.NewMemoryRepository()
	fetcher := &scriptedFetcher{content: sampleVTT}
	h := newTestHandler(repo, fetcher, &stubGenerator{})

	outcome, err := h.Handle(context.Background(), NewRun(), decode(t, transcriptCompletedBody("ev-nt", "")))
	require.Error(t, err)

	assert.Equal(t, ActionFailed, outcome.Action)
	assert.Zero(t, fetcher.calls)

	meeting, repoErr := repo.GetMeetingByID(context.Background(), outcome.MeetingID)
	require.NoError(t, repoErr)
	assert.Equal(t, model.MeetingStatusFailed, meeting.Status)
}

func TestHandleRecordingWithoutTranscriptMarksReady(t *testing.T) {
	repo := repository.NewMemoryRepository()
	fetcher := &scriptedFetcher{content: sampleVTT}
	generator := &stubGenerator{}
	h := newTestHandler(repo, fetcher, generator)

	outcome, err := h.Handle(context.Background(), NewRun(), decode(t, recordingCompletedBody("ev-r", false)))
	require.NoError(t, err)

	meeting, repoErr := repo.GetMeetingByID(context.Background(), outcome.MeetingID)
	require.NoError(t, repoErr)
	assert.Equal(t, model.MeetingStatusReady, meeting.Status)
	assert.Zero(t, fetcher.calls)
	assert.Zero(t, generator.calls)
}

func TestHandleRecordingWithTranscriptButNoTokenMarksReady(t *testing.T) {
	repo := repository.NewMemoryRepository()
	fetcher := &scriptedFetcher{content: sampleVTT}
	h := newTestHandler(repo, fetcher, &stubGenerator{})

	// recording.completed may legitimately omit the credential.
	outcome, err := h.Handle(context.Background(), NewRun(), decode(t, recordingCompletedBody("ev-r2", true)))
	require.NoError(t, err)

	meeting, repoErr := repo.GetMeetingByID(context.Background(), outcome.MeetingID)
	require.NoError(t, repoErr)
	assert.Equal(t, model.MeetingStatusReady, meeting.Status)
	assert.Zero(t, fetcher.calls)
}

func TestHandleDownloadExhaustionFailsMeeting(t *testing.T) {
	repo := repository.NewMemoryRepository()
	fetcher := &scriptedFetcher{
		failures: 10,
		err:      &transcript.StatusError{StatusCode: 502},
	}
	generator := &stubGenerator{}
	h := newTestHandler(repo, fetcher, generator)

	outcome, err := h.Handle(context.Background(), NewRun(), decode(t, transcriptCompletedBody("ev-dl", "tok")))
	require.Error(t, err)

	assert.Equal(t, ActionFailed, outcome.Action)
	assert.Equal(t, 3, fetcher.calls)
	assert.Zero(t, generator.calls)
	assert.Contains(t, err.Error(), "exhausted 3 attempts")

	meeting, repoErr := repo.GetMeetingByID(context.Background(), outcome.MeetingID)
	require.NoError(t, repoErr)
	assert.Equal(t, model.MeetingStatusFailed, meeting.Status)

	tr, repoErr := repo.GetTranscriptByMeetingID(context.Background(), outcome.MeetingID)
	require.NoError(t, repoErr)
	assert.Equal(t, model.TranscriptStatusFailed, tr.Status)
	assert.Equal(t, 3, tr.FetchAttempts)
	require.NotNil(t, tr.LastError)
}

func TestHandleNonRetryableDownloadFailureStopsImmediately(t *testing.T) {
	repo := repository.NewMemoryRepository()
	fetcher := &scriptedFetcher{
		failures: 10,
		err:      &transcript.StatusError{StatusCode: 404},
	}
	h := newTestHandler(repo, fetcher, &stubGenerator{})

	_, err := h.Handle(context.Background(), NewRun(), decode(t, transcriptCompletedBody("ev-404", "tok")))
	require.Error(t, err)

	assert.Equal(t, 1, fetcher.calls)
	assert.Contains(t, err.Error(), "non-retryable")
	assert.NotContains(t, err.Error(), "exhausted")
}

func TestHandleFailedGenerationLeavesMeetingReady(t *testing.T) {
	repo := repository.NewMemoryRepository()
	generator := &stubGenerator{status: model.DraftStatusFailed}
	h := newTestHandler(repo, &scriptedFetcher{content: sampleVTT}, generator)

	outcome, err := h.Handle(context.Background(), NewRun(), decode(t, transcriptCompletedBody("ev-g", "tok")))
	require.NoError(t, err)

	meeting, repoErr := repo.GetMeetingByID(context.Background(), outcome.MeetingID)
	require.NoError(t, repoErr)
	assert.Equal(t, model.MeetingStatusReady, meeting.Status,
		"the transcript is intact, only the draft failed")

	ev, repoErr := repo.GetEventByEventID(context.Background(), "ev-g")
	require.NoError(t, repoErr)
	assert.Equal(t, model.EventStatusProcessed, ev.Status)
}

func TestHandleEmptyTranscriptFileIsNotRetried(t *testing.T) {
	repo := repository.NewMemoryRepository()
	fetcher := &scriptedFetcher{content: "   \n"}
	h := newTestHandler(repo, fetcher, &stubGenerator{})

	_, err := h.Handle(context.Background(), NewRun(), decode(t, transcriptCompletedBody("ev-e", "tok")))
	require.Error(t, err)

	assert.Equal(t, 1, fetcher.calls)
}

func TestRegenerate(t *testing.T) {
	repo := repository.NewMemoryRepository()
	generator := &stubGenerator{}
	h := newTestHandler(repo, &scriptedFetcher{content: sampleVTT}, generator)

	outcome, err := h.Handle(context.Background(), NewRun(), decode(t, transcriptCompletedBody("ev-reg", "tok")))
	require.NoError(t, err)
	require.Equal(t, 1, generator.calls)

	draft, err := h.Regenerate(context.Background(), NewRun(), outcome.MeetingID)
	require.NoError(t, err)

	assert.Equal(t, model.DraftStatusGenerated, draft.Status)
	assert.Equal(t, 2, generator.calls)

	meeting, repoErr := repo.GetMeetingByID(context.Background(), outcome.MeetingID)
	require.NoError(t, repoErr)
	assert.Equal(t, model.MeetingStatusCompleted, meeting.Status)
}

func TestRegenerateWithoutTranscript(t *testing.T) {
	repo := repository.NewMemoryRepository()
	h := newTestHandler(repo, &scriptedFetcher{}, &stubGenerator{})

	outcome, err := h.Handle(context.Background(), NewRun(), decode(t, meetingEndedBody("ev-m")))
	require.NoError(t, err)

	_, err = h.Regenerate(context.Background(), NewRun(), outcome.MeetingID)
	assert.ErrorIs(t, err, ErrNoTranscript)
}

func TestRegenerateBusyMeeting(t *testing.T) {
	repo := repository.NewMemoryRepository()
	generator := &stubGenerator{}
	h := newTestHandler(repo, &scriptedFetcher{content: sampleVTT}, generator)

	outcome, err := h.Handle(context.Background(), NewRun(), decode(t, transcriptCompletedBody("ev-b", "tok")))
	require.NoError(t, err)

	// Simulate an in-flight pipeline holding the claim.
	claimed, err := repo.TryClaimProcessing(context.Background(), outcome.MeetingID)
	require.NoError(t, err)
	require.True(t, claimed)

	_, err = h.Regenerate(context.Background(), NewRun(), outcome.MeetingID)
	assert.ErrorIs(t, err, ErrBusy)
}

func TestRegenerateFailureReleasesClaim(t *testing.T) {
	repo := repository.NewMemoryRepository()
	generator := &stubGenerator{repo: repo}
	h := newTestHandler(repo, &scriptedFetcher{content: sampleVTT}, generator)

	outcome, err := h.Handle(context.Background(), NewRun(), decode(t, transcriptCompletedBody("ev-rc", "tok")))
	require.NoError(t, err)

	broken := newTestHandler(repo, &scriptedFetcher{content: sampleVTT},
		&stubGenerator{err: errors.New("draft table unavailable")})
	_, err = broken.Regenerate(context.Background(), NewRun(), outcome.MeetingID)
	require.Error(t, err)

	meeting, repoErr := repo.GetMeetingByID(context.Background(), outcome.MeetingID)
	require.NoError(t, repoErr)
	assert.Equal(t, model.MeetingStatusCompleted, meeting.Status,
		"a failed regeneration must not leave the meeting claimed")

	// A later regeneration against the released meeting succeeds.
	draft, err := h.Regenerate(context.Background(), NewRun(), outcome.MeetingID)
	require.NoError(t, err)
	assert.Equal(t, model.DraftStatusGenerated, draft.Status)
}

func TestRegenerateFailureWithoutPriorDraftReturnsReady(t *testing.T) {
	repo := repository.NewMemoryRepository()
	h := newTestHandler(repo, &scriptedFetcher{content: sampleVTT},
		&stubGenerator{status: model.DraftStatusFailed})

	outcome, err := h.Handle(context.Background(), NewRun(), decode(t, transcriptCompletedBody("ev-rn", "tok")))
	require.NoError(t, err)

	broken := newTestHandler(repo, &scriptedFetcher{content: sampleVTT},
		&stubGenerator{err: errors.New("draft table unavailable")})
	_, err = broken.Regenerate(context.Background(), NewRun(), outcome.MeetingID)
	require.Error(t, err)

	meeting, repoErr := repo.GetMeetingByID(context.Background(), outcome.MeetingID)
	require.NoError(t, repoErr)
	assert.Equal(t, model.MeetingStatusReady, meeting.Status)
}

func TestRegenerateFailedDraftKeepsCompleted(t *testing.T) {
	repo := repository.NewMemoryRepository()
	h := newTestHandler(repo, &scriptedFetcher{content: sampleVTT}, &stubGenerator{repo: repo})

	outcome, err := h.Handle(context.Background(), NewRun(), decode(t, transcriptCompletedBody("ev-rk", "tok")))
	require.NoError(t, err)

	failing := newTestHandler(repo, &scriptedFetcher{content: sampleVTT},
		&stubGenerator{repo: repo, status: model.DraftStatusFailed})
	draft, err := failing.Regenerate(context.Background(), NewRun(), outcome.MeetingID)
	require.NoError(t, err)
	assert.Equal(t, model.DraftStatusFailed, draft.Status)

	meeting, repoErr := repo.GetMeetingByID(context.Background(), outcome.MeetingID)
	require.NoError(t, repoErr)
	assert.Equal(t, model.MeetingStatusCompleted, meeting.Status,
		"the previous generated draft is still served, the meeting stays completed")

	current, repoErr := repo.GetCurrentDraft(context.Background(), outcome.MeetingID)
	require.NoError(t, repoErr)
	assert.Equal(t, model.DraftStatusGenerated, current.Status)
}

func TestRegenerateUnknownMeeting(t *testing.T) {
	h := newTestHandler(repository.NewMemoryRepository(), &scriptedFetcher{}, &stubGenerator{})

	_, err := h.Regenerate(context.Background(), NewRun(), uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
