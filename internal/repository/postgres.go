package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"meetdraft/internal/model"

	"github.com/google/uuid"
)

type postgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repository backed by the given pool.
func NewPostgresRepository(db *sql.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) InsertEvent(ctx context.Context, ev *model.RawEvent) error {
	query := `
		INSERT INTO raw_events (id, event_id, event_kind, payload, status, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id) DO NOTHING
	`

	payload := ev.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}

	_, err := r.db.ExecContext(ctx, query,
		ev.ID, ev.EventID, ev.EventKind, []byte(payload), ev.Status, ev.ReceivedAt)
	if err != nil {
		return fmt.Errorf("failed to insert raw event: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetEventByEventID(ctx context.Context, eventID string) (*model.RawEvent, error) {
	query := `
		SELECT id, event_id, event_kind, payload, status, error_message, received_at, processed_at
		FROM raw_events
		WHERE event_id = $1
	`

	var ev model.RawEvent
	var payload []byte

	err := r.db.QueryRowContext(ctx, query, eventID).Scan(
		&ev.ID,
		&ev.EventID,
		&ev.EventKind,
		&payload,
		&ev.Status,
		&ev.ErrorMessage,
		&ev.ReceivedAt,
		&ev.ProcessedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get raw event: %w", err)
	}

	ev.Payload = json.RawMessage(payload)
	return &ev, nil
}

func (r *postgresRepository) ClaimEvent(ctx context.Context, eventID string) (bool, error) {
	query := `
		UPDATE raw_events
		SET status = $1
		WHERE event_id = $2 AND status IN ($3, $4)
	`

	res, err := r.db.ExecContext(ctx, query,
		model.EventStatusProcessing, eventID, model.EventStatusReceived, model.EventStatusFailed)
	if err != nil {
		return false, fmt.Errorf("failed to claim event: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read claim result: %w", err)
	}
	return n > 0, nil
}

func (r *postgresRepository) FinishEvent(ctx context.Context, eventID, status string, errMsg *string) error {
	query := `
		UPDATE raw_events
		SET status = $1, error_message = $2, processed_at = $3
		WHERE event_id = $4
	`

	_, err := r.db.ExecContext(ctx, query, status, errMsg, time.Now().UTC(), eventID)
	if err != nil {
		return fmt.Errorf("failed to finish event: %w", err)
	}
	return nil
}

const meetingColumns = `
	id, external_id, host_email, topic, start_time, end_time, duration_minutes,
	participants, status, recording_url, transcript_url, download_token,
	created_at, updated_at
`

func scanMeeting(row *sql.Row) (*model.Meeting, error) {
	var m model.Meeting
	var participants []byte

	err := row.Scan(
		&m.ID,
		&m.ExternalID,
		&m.HostEmail,
		&m.Topic,
		&m.StartTime,
		&m.EndTime,
		&m.DurationMinutes,
		&participants,
		&m.Status,
		&m.RecordingURL,
		&m.TranscriptURL,
		&m.DownloadToken,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan meeting: %w", err)
	}

	if len(participants) > 0 {
		if err := json.Unmarshal(participants, &m.Participants); err != nil {
			return nil, fmt.Errorf("failed to unmarshal participants: %w", err)
		}
	}
	return &m, nil
}

func (r *postgresRepository) GetMeetingByID(ctx context.Context, id uuid.UUID) (*model.Meeting, error) {
	query := `SELECT ` + meetingColumns + ` FROM meetings WHERE id = $1`
	return scanMeeting(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresRepository) GetMeetingByExternalID(ctx context.Context, externalID string) (*model.Meeting, error) {
	query := `SELECT ` + meetingColumns + ` FROM meetings WHERE external_id = $1`
	return scanMeeting(r.db.QueryRowContext(ctx, query, externalID))
}

func (r *postgresRepository) UpsertMeeting(ctx context.Context, incoming *model.Meeting) (*model.Meeting, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin upsert: %w", err)
	}
	defer tx.Rollback()

	// Lock the row for the merge so concurrent redeliveries serialize.
	query := `SELECT ` + meetingColumns + ` FROM meetings WHERE external_id = $1 FOR UPDATE`
	existing, err := scanMeeting(tx.QueryRowContext(ctx, query, incoming.ExternalID))
	if err != nil && err != ErrNotFound {
		return nil, false, err
	}

	now := time.Now().UTC()

	if existing == nil {
		m := *incoming
		if m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
		if m.Status == "" {
			m.Status = model.MeetingStatusPending
		}
		m.CreatedAt = now
		m.UpdatedAt = now

		participants, err := json.Marshal(participantsOrEmpty(m.Participants))
		if err != nil {
			return nil, false, fmt.Errorf("failed to marshal participants: %w", err)
		}

		insert := `
			INSERT INTO meetings (` + meetingColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`
		if _, err := tx.ExecContext(ctx, insert,
			m.ID, m.ExternalID, m.HostEmail, m.Topic, m.StartTime, m.EndTime,
			m.DurationMinutes, participants, m.Status, m.RecordingURL,
			m.TranscriptURL, m.DownloadToken, m.CreatedAt, m.UpdatedAt,
		); err != nil {
			return nil, false, fmt.Errorf("failed to insert meeting: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, false, fmt.Errorf("failed to commit meeting insert: %w", err)
		}
		return &m, true, nil
	}

	merged := model.MergeMeeting(*existing, *incoming)
	merged.UpdatedAt = now

	participants, err := json.Marshal(participantsOrEmpty(merged.Participants))
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal participants: %w", err)
	}

	update := `
		UPDATE meetings
		SET host_email = $1, topic = $2, start_time = $3, end_time = $4,
			duration_minutes = $5, participants = $6, status = $7,
			recording_url = $8, transcript_url = $9, download_token = $10,
			updated_at = $11
		WHERE id = $12
	`
	if _, err := tx.ExecContext(ctx, update,
		merged.HostEmail, merged.Topic, merged.StartTime, merged.EndTime,
		merged.DurationMinutes, participants, merged.Status,
		merged.RecordingURL, merged.TranscriptURL, merged.DownloadToken,
		merged.UpdatedAt, merged.ID,
	); err != nil {
		return nil, false, fmt.Errorf("failed to update meeting: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit meeting update: %w", err)
	}
	return &merged, false, nil
}

func (r *postgresRepository) TryClaimProcessing(ctx context.Context, meetingID uuid.UUID) (bool, error) {
	query := `
		UPDATE meetings
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status <> $1
	`

	res, err := r.db.ExecContext(ctx, query, model.MeetingStatusProcessing, time.Now().UTC(), meetingID)
	if err != nil {
		return false, fmt.Errorf("failed to claim meeting: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read meeting claim result: %w", err)
	}
	return n > 0, nil
}

func (r *postgresRepository) SetMeetingStatus(ctx context.Context, meetingID uuid.UUID, status string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin status update: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM meetings WHERE id = $1 FOR UPDATE`, meetingID).Scan(&current)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read meeting status: %w", err)
	}

	if model.MeetingStatusAtLeast(current, status) {
		// Stale transition, keep the stored status.
		return tx.Commit()
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE meetings SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), meetingID,
	); err != nil {
		return fmt.Errorf("failed to update meeting status: %w", err)
	}
	return tx.Commit()
}

func (r *postgresRepository) GetTranscriptByMeetingID(ctx context.Context, meetingID uuid.UUID) (*model.Transcript, error) {
	query := `
		SELECT id, meeting_id, full_text, raw_text, segments, word_count,
			status, fetch_attempts, last_error, created_at, updated_at
		FROM transcripts
		WHERE meeting_id = $1
	`

	var t model.Transcript
	var segments []byte

	err := r.db.QueryRowContext(ctx, query, meetingID).Scan(
		&t.ID,
		&t.MeetingID,
		&t.FullText,
		&t.RawText,
		&segments,
		&t.WordCount,
		&t.Status,
		&t.FetchAttempts,
		&t.LastError,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transcript: %w", err)
	}

	if len(segments) > 0 {
		if err := json.Unmarshal(segments, &t.Segments); err != nil {
			return nil, fmt.Errorf("failed to unmarshal segments: %w", err)
		}
	}
	return &t, nil
}

func (r *postgresRepository) SaveTranscript(ctx context.Context, t *model.Transcript) (*model.Transcript, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	segments := t.Segments
	if segments == nil {
		segments = []model.SpeakerSegment{}
	}
	segmentsJSON, err := json.Marshal(segments)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal segments: %w", err)
	}

	query := `
		INSERT INTO transcripts (
			id, meeting_id, full_text, raw_text, segments, word_count,
			status, fetch_attempts, last_error, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (meeting_id) DO UPDATE SET
			full_text = EXCLUDED.full_text,
			raw_text = EXCLUDED.raw_text,
			segments = EXCLUDED.segments,
			word_count = EXCLUDED.word_count,
			status = EXCLUDED.status,
			fetch_attempts = EXCLUDED.fetch_attempts,
			last_error = EXCLUDED.last_error,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`

	err = r.db.QueryRowContext(ctx, query,
		t.ID, t.MeetingID, t.FullText, t.RawText, segmentsJSON, t.WordCount,
		t.Status, t.FetchAttempts, t.LastError, t.CreatedAt, t.UpdatedAt,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save transcript: %w", err)
	}
	return t, nil
}

func (r *postgresRepository) CreateDraft(ctx context.Context, d *model.Draft) error {
	actionItems, breakdown, keyPoints, err := marshalDraftJSON(d)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO drafts (
			id, meeting_id, transcript_id, subject, body, status, model,
			prompt_tokens, completion_tokens, cost_usd, started_at, completed_at,
			quality_score, score_breakdown, meeting_type, tone, action_items,
			key_points, error_message, retry_count, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21
		)
	`

	_, err = r.db.ExecContext(ctx, query,
		d.ID, d.MeetingID, d.TranscriptID, d.Subject, d.Body, d.Status, d.Model,
		d.PromptTokens, d.CompletionTokens, d.CostUSD, d.StartedAt, d.CompletedAt,
		d.QualityScore, breakdown, d.MeetingType, d.Tone, actionItems,
		keyPoints, d.ErrorMessage, d.RetryCount, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create draft: %w", err)
	}
	return nil
}

func (r *postgresRepository) UpdateDraft(ctx context.Context, d *model.Draft) error {
	actionItems, breakdown, keyPoints, err := marshalDraftJSON(d)
	if err != nil {
		return err
	}

	query := `
		UPDATE drafts
		SET subject = $1, body = $2, status = $3, model = $4,
			prompt_tokens = $5, completion_tokens = $6, cost_usd = $7,
			completed_at = $8, quality_score = $9, score_breakdown = $10,
			meeting_type = $11, tone = $12, action_items = $13,
			key_points = $14, error_message = $15, retry_count = $16
		WHERE id = $17
	`

	_, err = r.db.ExecContext(ctx, query,
		d.Subject, d.Body, d.Status, d.Model,
		d.PromptTokens, d.CompletionTokens, d.CostUSD,
		d.CompletedAt, d.QualityScore, breakdown,
		d.MeetingType, d.Tone, actionItems,
		keyPoints, d.ErrorMessage, d.RetryCount, d.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update draft: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetCurrentDraft(ctx context.Context, meetingID uuid.UUID) (*model.Draft, error) {
	query := `
		SELECT id, meeting_id, transcript_id, subject, body, status, model,
			prompt_tokens, completion_tokens, cost_usd, started_at, completed_at,
			quality_score, score_breakdown, meeting_type, tone, action_items,
			key_points, error_message, retry_count, created_at
		FROM drafts
		WHERE meeting_id = $1 AND status <> $2
		ORDER BY created_at DESC
		LIMIT 1
	`

	var d model.Draft
	var actionItems, breakdown, keyPoints []byte

	err := r.db.QueryRowContext(ctx, query, meetingID, model.DraftStatusFailed).Scan(
		&d.ID,
		&d.MeetingID,
		&d.TranscriptID,
		&d.Subject,
		&d.Body,
		&d.Status,
		&d.Model,
		&d.PromptTokens,
		&d.CompletionTokens,
		&d.CostUSD,
		&d.StartedAt,
		&d.CompletedAt,
		&d.QualityScore,
		&breakdown,
		&d.MeetingType,
		&d.Tone,
		&actionItems,
		&keyPoints,
		&d.ErrorMessage,
		&d.RetryCount,
		&d.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current draft: %w", err)
	}

	if len(breakdown) > 0 {
		if err := json.Unmarshal(breakdown, &d.ScoreBreakdown); err != nil {
			return nil, fmt.Errorf("failed to unmarshal score breakdown: %w", err)
		}
	}
	if len(actionItems) > 0 {
		if err := json.Unmarshal(actionItems, &d.ActionItems); err != nil {
			return nil, fmt.Errorf("failed to unmarshal action items: %w", err)
		}
	}
	if len(keyPoints) > 0 {
		if err := json.Unmarshal(keyPoints, &d.KeyPoints); err != nil {
			return nil, fmt.Errorf("failed to unmarshal key points: %w", err)
		}
	}
	return &d, nil
}

func marshalDraftJSON(d *model.Draft) (actionItems, breakdown, keyPoints []byte, err error) {
	items := d.ActionItems
	if items == nil {
		items = []model.ActionItem{}
	}
	actionItems, err = json.Marshal(items)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal action items: %w", err)
	}

	breakdown, err = json.Marshal(d.ScoreBreakdown)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal score breakdown: %w", err)
	}

	points := d.KeyPoints
	if points == nil {
		points = []string{}
	}
	keyPoints, err = json.Marshal(points)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal key points: %w", err)
	}
	return actionItems, breakdown, keyPoints, nil
}

func participantsOrEmpty(p []model.Participant) []model.Participant {
	if p == nil {
		return []model.Participant{}
	}
	return p
}
