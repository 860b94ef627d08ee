package pipeline

import (
	"context"
	"errors"
	"fmt"

	"meetdraft/internal/model"
	"meetdraft/internal/repository"

	"github.com/google/uuid"
)

// ErrNoTranscript is returned when regeneration is requested for a
// meeting without a ready transcript.
var ErrNoTranscript = errors.New("meeting has no ready transcript")

// ErrBusy is returned when the meeting's expensive stages are already
// running.
var ErrBusy = errors.New("meeting is already being processed")

// Regenerate re-runs draft generation for a meeting whose transcript is
// already stored. It claims the meeting like any other expensive stage,
// so it cannot race an in-flight pipeline.
func (h *Handler) Regenerate(ctx context.Context, run *Run, meetingID uuid.UUID) (*model.Draft, error) {
	meeting, err := h.repo.GetMeetingByID(ctx, meetingID)
	if err != nil {
		return nil, err
	}

	t, err := h.repo.GetTranscriptByMeetingID(ctx, meetingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoTranscript
		}
		return nil, err
	}
	if t.Status != model.TranscriptStatusReady {
		return nil, ErrNoTranscript
	}

	claimed, err := h.repo.TryClaimProcessing(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrBusy
	}

	stop := run.Stage("generate")
	draft, err := h.generator.Generate(ctx, meeting, t)
	stop()
	if err != nil {
		// Release the claim: the transcript and any previous draft are
		// intact, only this run's bookkeeping failed. Leaving the
		// meeting in processing would block every later regeneration.
		if statusErr := h.repo.SetMeetingStatus(ctx, meetingID, h.settledStatus(ctx, meetingID)); statusErr != nil {
			h.log.Error().Err(statusErr).Str("meeting_id", meetingID.String()).Msg("failed to release meeting claim")
		}
		return nil, fmt.Errorf("regeneration failed: %w", err)
	}

	status := model.MeetingStatusReady
	if draft.Status == model.DraftStatusGenerated {
		status = model.MeetingStatusCompleted
	} else if _, derr := h.repo.GetCurrentDraft(ctx, meetingID); derr == nil {
		// A failed run does not invalidate the previous usable draft.
		status = model.MeetingStatusCompleted
	}
	if err := h.repo.SetMeetingStatus(ctx, meetingID, status); err != nil {
		return nil, err
	}
	return draft, nil
}

// settledStatus is the terminal status for a meeting whose transcript is
// stored: completed when a usable draft exists, ready otherwise.
func (h *Handler) settledStatus(ctx context.Context, meetingID uuid.UUID) string {
	if _, err := h.repo.GetCurrentDraft(ctx, meetingID); err == nil {
		return model.MeetingStatusCompleted
	}
	return model.MeetingStatusReady
}
