// Package pipeline drives a meeting through its lifecycle: it claims
// inbound events idempotently, upserts the meeting, fetches and parses
// the transcript, and hands over to the draft generator.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"meetdraft/internal/metrics"
	"meetdraft/internal/model"
	"meetdraft/internal/repository"
	"meetdraft/internal/retry"
	"meetdraft/internal/transcript"
	"meetdraft/internal/webhook"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Outcome actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionSkipped = "skipped"
	ActionFailed  = "failed"
)

// Outcome is the result of handling one event.
type Outcome struct {
	Action    string    `json:"action"`
	MeetingID uuid.UUID `json:"meeting_id,omitempty"`
}

// TranscriptFetcher downloads a transcript artifact.
type TranscriptFetcher interface {
	Fetch(ctx context.Context, url, token string) (string, error)
}

// DraftGenerator produces the follow-up draft for a meeting.
type DraftGenerator interface {
	Generate(ctx context.Context, meeting *model.Meeting, t *model.Transcript) (*model.Draft, error)
}

// Handler is the event ingestion state machine.
type Handler struct {
	repo      repository.Repository
	fetcher   TranscriptFetcher
	generator DraftGenerator
	policy    retry.Policy
	sleep     retry.Sleeper
	log       zerolog.Logger
}

// NewHandler wires the state machine.
func NewHandler(repo repository.Repository, fetcher TranscriptFetcher, generator DraftGenerator, log zerolog.Logger) *Handler {
	return &Handler{
		repo:      repo,
		fetcher:   fetcher,
		generator: generator,
		policy:    retry.DefaultPolicy(),
		sleep:     retry.SleepWithContext,
		log:       log,
	}
}

// Handle processes one inbound event. Redelivered events that already
// reached a terminal state are skipped without side effects; a crash
// mid-handling leaves the event visible as processing, reprocessable by
// an operator after it is reset to failed.
func (h *Handler) Handle(ctx context.Context, run *Run, env *webhook.Envelope) (Outcome, error) {
	log := h.log.With().
		Str("run_id", run.ID.String()).
		Str("event_id", env.EventID).
		Str("event_kind", env.Event).
		Logger()

	ev := &model.RawEvent{
		ID:         uuid.New(),
		EventID:    env.EventID,
		EventKind:  env.Event,
		Payload:    env.Raw(),
		Status:     model.EventStatusReceived,
		ReceivedAt: time.Now().UTC(),
	}
	if err := h.repo.InsertEvent(ctx, ev); err != nil {
		return Outcome{Action: ActionFailed}, fmt.Errorf("failed to record event: %w", err)
	}

	claimed, err := h.repo.ClaimEvent(ctx, env.EventID)
	if err != nil {
		return Outcome{Action: ActionFailed}, fmt.Errorf("failed to claim event: %w", err)
	}
	if !claimed {
		// Already processed, or another invocation is mid-flight.
		log.Info().Msg("event not claimable, skipping")
		metrics.EventsTotal.WithLabelValues(env.Event, ActionSkipped).Inc()
		return Outcome{Action: ActionSkipped}, nil
	}

	outcome, handleErr := h.route(ctx, run, log, env)
	if handleErr != nil {
		msg := handleErr.Error()
		if err := h.repo.FinishEvent(ctx, env.EventID, model.EventStatusFailed, &msg); err != nil {
			log.Error().Err(err).Msg("failed to record event failure")
		}
		if outcome.MeetingID != uuid.Nil {
			if err := h.repo.SetMeetingStatus(ctx, outcome.MeetingID, model.MeetingStatusFailed); err != nil {
				log.Error().Err(err).Msg("failed to mark meeting failed")
			}
		}
		log.Error().Err(handleErr).Msg("event handling failed")
		metrics.EventsTotal.WithLabelValues(env.Event, ActionFailed).Inc()
		outcome.Action = ActionFailed
		return outcome, handleErr
	}

	if err := h.repo.FinishEvent(ctx, env.EventID, model.EventStatusProcessed, nil); err != nil {
		// The work itself is durable; a lagging status flag beats
		// losing it.
		log.Error().Err(err).Msg("failed to mark event processed")
	}
	metrics.EventsTotal.WithLabelValues(env.Event, outcome.Action).Inc()
	log.Info().Str("action", outcome.Action).Msg("event handled")
	return outcome, nil
}

// route dispatches by event kind.
func (h *Handler) route(ctx context.Context, run *Run, log zerolog.Logger, env *webhook.Envelope) (Outcome, error) {
	switch env.Event {
	case model.EventMeetingEnded:
		return h.handleMeetingEnded(ctx, env)
	case model.EventRecordingCompleted:
		return h.handleRecordingReady(ctx, run, log, env, false)
	case model.EventTranscriptCompleted:
		return h.handleRecordingReady(ctx, run, log, env, true)
	default:
		// Unknown notification kinds must not jam the queue.
		log.Info().Msg("unrecognized event kind, acknowledging")
		return Outcome{Action: ActionSkipped}, nil
	}
}

// handleMeetingEnded upserts the meeting with end time, duration and
// participants. Without recording info the meeting stays pending.
func (h *Handler) handleMeetingEnded(ctx context.Context, env *webhook.Envelope) (Outcome, error) {
	if env.ExternalMeetingID() == "" {
		return Outcome{}, fmt.Errorf("event %s is missing the meeting identifier", env.EventID)
	}

	view := env.MeetingView()
	meeting, created, err := h.repo.UpsertMeeting(ctx, &view)
	if err != nil {
		return Outcome{}, err
	}

	action := ActionUpdated
	if created {
		action = ActionCreated
	}
	return Outcome{Action: action, MeetingID: meeting.ID}, nil
}

// handleRecordingReady upserts recording pointers and, when a transcript
// artifact plus credential are present, runs the download-and-generate
// stage. transcriptMandatory distinguishes recording.completed (token
// optional) from recording.transcript_completed (token contractually
// required).
func (h *Handler) handleRecordingReady(ctx context.Context, run *Run, log zerolog.Logger, env *webhook.Envelope, transcriptMandatory bool) (Outcome, error) {
	if env.ExternalMeetingID() == "" {
		return Outcome{}, fmt.Errorf("event %s is missing the meeting identifier", env.EventID)
	}

	view := env.MeetingView()
	meeting, created, err := h.repo.UpsertMeeting(ctx, &view)
	if err != nil {
		return Outcome{}, err
	}

	action := ActionUpdated
	if created {
		action = ActionCreated
	}
	outcome := Outcome{Action: action, MeetingID: meeting.ID}

	file, hasTranscript := env.TranscriptFile()
	token := env.Token()

	if !hasTranscript {
		// Some recordings genuinely lack a transcript; the meeting is
		// ready as-is.
		if err := h.repo.SetMeetingStatus(ctx, meeting.ID, model.MeetingStatusReady); err != nil {
			return outcome, err
		}
		return outcome, nil
	}

	if token == "" {
		if transcriptMandatory {
			return outcome, fmt.Errorf("transcript event %s carries no download credential", env.EventID)
		}
		if err := h.repo.SetMeetingStatus(ctx, meeting.ID, model.MeetingStatusReady); err != nil {
			return outcome, err
		}
		return outcome, nil
	}

	if err := h.processTranscript(ctx, run, log, meeting, file.DownloadURL, token); err != nil {
		return outcome, err
	}
	return outcome, nil
}

// processTranscript claims the meeting, downloads and parses the
// transcript, and runs draft generation. The claim is what keeps two
// redelivered events from running the expensive stages concurrently.
func (h *Handler) processTranscript(ctx context.Context, run *Run, log zerolog.Logger, meeting *model.Meeting, url, token string) error {
	claimed, err := h.repo.TryClaimProcessing(ctx, meeting.ID)
	if err != nil {
		return err
	}
	if !claimed {
		log.Info().Str("meeting_id", meeting.ID.String()).Msg("meeting already being processed, skipping expensive stages")
		return nil
	}

	t, err := h.fetchAndParse(ctx, run, meeting, url, token)
	if err != nil {
		if statusErr := h.repo.SetMeetingStatus(ctx, meeting.ID, model.MeetingStatusFailed); statusErr != nil {
			log.Error().Err(statusErr).Msg("failed to mark meeting failed")
		}
		return err
	}

	// The meeting stays in processing until generation finishes, so a
	// racing redelivered event cannot start a second generation.
	stop := run.Stage("generate")
	draft, err := h.generator.Generate(ctx, meeting, t)
	stop()
	if err != nil {
		return err
	}

	status := model.MeetingStatusReady
	if draft.Status == model.DraftStatusGenerated {
		status = model.MeetingStatusCompleted
	}
	// A failed draft leaves the meeting ready: the transcript is intact
	// and the draft row carries the error for the operator.
	return h.repo.SetMeetingStatus(ctx, meeting.ID, status)
}

// fetchAndParse downloads the transcript with bounded retries and stores
// the parsed result. The transcript row records every attempt.
func (h *Handler) fetchAndParse(ctx context.Context, run *Run, meeting *model.Meeting, url, token string) (*model.Transcript, error) {
	t := &model.Transcript{
		MeetingID: meeting.ID,
		RawText:   "",
		Status:    model.TranscriptStatusFetching,
	}
	if existing, err := h.repo.GetTranscriptByMeetingID(ctx, meeting.ID); err == nil {
		if existing.Status == model.TranscriptStatusReady {
			return existing, nil
		}
		t = existing
		t.Status = model.TranscriptStatusFetching
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if _, err := h.repo.SaveTranscript(ctx, t); err != nil {
		return nil, err
	}

	stop := run.Stage("download")
	raw, fetchErr := h.fetchWithRetry(ctx, t, url, token)
	stop()
	if fetchErr != nil {
		msg := fetchErr.Error()
		t.Status = model.TranscriptStatusFailed
		t.LastError = &msg
		if _, err := h.repo.SaveTranscript(ctx, t); err != nil {
			return nil, err
		}
		return nil, fetchErr
	}

	stop = run.Stage("parse")
	parsed := transcript.Parse(raw)
	stop()

	t.RawText = raw
	t.FullText = parsed.FullText
	t.Segments = parsed.Segments
	t.WordCount = parsed.WordCount
	t.Status = model.TranscriptStatusReady
	t.LastError = nil

	saved, err := h.repo.SaveTranscript(ctx, t)
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (h *Handler) fetchWithRetry(ctx context.Context, t *model.Transcript, url, token string) (string, error) {
	loop := retry.NewLoop(h.policy)
	for {
		ok, err := loop.Next(ctx, h.sleep)
		if err != nil {
			return "", err
		}
		if !ok {
			// Stopping before the budget is spent means the last
			// failure was not worth retrying.
			if loop.Attempt() < h.policy.MaxAttempts {
				return "", fmt.Errorf("transcript download failed on attempt %d with a non-retryable error: %w", loop.Attempt(), loop.LastErr())
			}
			return "", fmt.Errorf("transcript download exhausted %d attempts: %w", loop.Attempt(), loop.LastErr())
		}

		t.FetchAttempts++
		raw, err := h.fetcher.Fetch(ctx, url, token)
		if err == nil {
			if strings.TrimSpace(raw) == "" {
				// An empty file is not worth retrying.
				loop.Failure(fmt.Errorf("transcript file is empty"), false)
				continue
			}
			loop.Success()
			return raw, nil
		}
		loop.Failure(err, transcript.RetryableFetchError(err))
	}
}
