package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"meetdraft/internal/classify"
	"meetdraft/internal/metrics"
	"meetdraft/internal/model"
	"meetdraft/internal/repository"
	"meetdraft/internal/retry"
	"meetdraft/internal/score"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Caller is the bounded generation call the orchestrator depends on.
type Caller interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (*Completion, error)
}

// modelPricing maps model names to USD cost per one million input and
// output tokens.
var modelPricing = map[string][2]float64{
	"gpt-4o-mini": {0.15, 0.60},
	"gpt-4o":      {2.50, 10.00},
}

// Generator assembles the context, calls the generation API with retry,
// scores the result and persists a terminal draft. The caller always
// gets a definite outcome: the returned draft is either generated or
// failed, never missing.
type Generator struct {
	caller Caller
	repo   repository.Repository
	model  string
	policy retry.Policy
	sleep  retry.Sleeper
	log    zerolog.Logger
}

// NewGenerator creates a generator with the default retry policy.
func NewGenerator(caller Caller, repo repository.Repository, modelName string, log zerolog.Logger) *Generator {
	return &Generator{
		caller: caller,
		repo:   repo,
		model:  modelName,
		policy: retry.DefaultPolicy(),
		sleep:  retry.SleepWithContext,
		log:    log,
	}
}

// Generate produces the follow-up draft for one meeting and transcript.
// The error return covers persistence failures only; a generation
// failure is reported through the draft's failed status.
func (g *Generator) Generate(ctx context.Context, meeting *model.Meeting, t *model.Transcript) (*model.Draft, error) {
	now := time.Now().UTC()
	draft := &model.Draft{
		ID:           uuid.New(),
		MeetingID:    meeting.ID,
		TranscriptID: t.ID,
		Status:       model.DraftStatusGenerating,
		Model:        g.model,
		StartedAt:    now,
		CreatedAt:    now,
	}

	// Empty transcript: fail fast, no API call spent.
	if strings.TrimSpace(t.FullText) == "" {
		return g.finishFailed(ctx, draft, 0, fmt.Errorf("transcript is empty"), false)
	}

	classification := classify.Classify(t.FullText, meeting.Topic)
	draft.MeetingType = classification.MeetingType
	draft.Tone = classification.Tone

	if err := g.repo.CreateDraft(ctx, draft); err != nil {
		return nil, fmt.Errorf("failed to persist draft: %w", err)
	}

	systemPrompt, userPrompt := BuildPrompt(meeting, t.FullText, classification)

	completion, attempts, err := g.callWithRetry(ctx, systemPrompt, userPrompt)
	if err != nil {
		return g.finishFailed(ctx, draft, attempts, err, true)
	}

	parsed, err := ParseDraftResponse(completion.Content)
	if err != nil {
		return g.finishFailed(ctx, draft, attempts, err, true)
	}

	quality := score.Score(score.Input{
		Subject:     parsed.Subject,
		Body:        parsed.Body,
		ActionItems: parsed.ActionItems,
	}, t.FullText)

	completedAt := time.Now().UTC()
	draft.Subject = parsed.Subject
	draft.Body = parsed.Body
	draft.ActionItems = parsed.ActionItems
	draft.KeyPoints = parsed.KeyPoints
	draft.Status = model.DraftStatusGenerated
	draft.PromptTokens = completion.PromptTokens
	draft.CompletionTokens = completion.CompletionTokens
	draft.CostUSD = cost(g.model, completion.PromptTokens, completion.CompletionTokens)
	draft.CompletedAt = &completedAt
	draft.QualityScore = quality.Overall
	draft.ScoreBreakdown = quality.Breakdown
	draft.RetryCount = attempts - 1

	if err := g.repo.UpdateDraft(ctx, draft); err != nil {
		return nil, fmt.Errorf("failed to persist generated draft: %w", err)
	}

	metrics.DraftsTotal.WithLabelValues(draft.Status).Inc()
	metrics.GenerationTokens.WithLabelValues("input").Observe(float64(completion.PromptTokens))
	metrics.GenerationTokens.WithLabelValues("output").Observe(float64(completion.CompletionTokens))

	g.log.Info().
		Str("meeting_id", meeting.ID.String()).
		Str("draft_id", draft.ID.String()).
		Int("quality_score", draft.QualityScore).
		Int("attempts", attempts).
		Msg("draft generated")

	return draft, nil
}

// cost computes the USD cost of one call from the pricing table. Unknown
// models cost zero rather than guessing.
func cost(modelName string, promptTokens, completionTokens int) float64 {
	pricing, ok := modelPricing[modelName]
	if !ok {
		return 0
	}
	return float64(promptTokens)/1e6*pricing[0] + float64(completionTokens)/1e6*pricing[1]
}

// callWithRetry drives the retry state machine around the bounded call.
// It returns the number of attempts made alongside the outcome.
func (g *Generator) callWithRetry(ctx context.Context, systemPrompt, userPrompt string) (*Completion, int, error) {
	loop := retry.NewLoop(g.policy)

	for {
		ok, err := loop.Next(ctx, g.sleep)
		if err != nil {
			return nil, loop.Attempt(), err
		}
		if !ok {
			return nil, loop.Attempt(), loop.LastErr()
		}

		completion, err := g.caller.Complete(ctx, systemPrompt, userPrompt)
		if err == nil {
			loop.Success()
			return completion, loop.Attempt(), nil
		}

		retryable := IsRetryable(err)
		g.log.Warn().
			Err(err).
			Int("attempt", loop.Attempt()).
			Bool("retryable", retryable).
			Msg("generation attempt failed")
		loop.Failure(err, retryable)
	}
}

// finishFailed persists (or updates) the terminal failed draft. Failures
// are data, not silence.
func (g *Generator) finishFailed(ctx context.Context, draft *model.Draft, attempts int, cause error, rowExists bool) (*model.Draft, error) {
	completedAt := time.Now().UTC()
	msg := cause.Error()
	draft.Status = model.DraftStatusFailed
	draft.ErrorMessage = &msg
	draft.CompletedAt = &completedAt
	if attempts > 0 {
		draft.RetryCount = attempts - 1
	}

	var err error
	if rowExists {
		err = g.repo.UpdateDraft(ctx, draft)
	} else {
		err = g.repo.CreateDraft(ctx, draft)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to persist failed draft: %w", err)
	}

	metrics.DraftsTotal.WithLabelValues(draft.Status).Inc()
	g.log.Error().
		Err(cause).
		Str("draft_id", draft.ID.String()).
		Int("attempts", attempts).
		Msg("draft generation failed")

	return draft, nil
}
