// Package db owns the PostgreSQL connection and schema bootstrap.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// DB is the shared connection pool, set by Init.
var DB *sql.DB

const schema = `
CREATE TABLE IF NOT EXISTS raw_events (
	id UUID PRIMARY KEY,
	event_id TEXT NOT NULL UNIQUE,
	event_kind TEXT NOT NULL,
	payload JSONB NOT NULL DEFAULT '{}',
	status TEXT NOT NULL DEFAULT 'received',
	error_message TEXT,
	received_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	processed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS meetings (
	id UUID PRIMARY KEY,
	external_id TEXT NOT NULL UNIQUE,
	host_email TEXT NOT NULL DEFAULT '',
	topic TEXT NOT NULL DEFAULT '',
	start_time TIMESTAMPTZ,
	end_time TIMESTAMPTZ,
	duration_minutes INT NOT NULL DEFAULT 0,
	participants JSONB NOT NULL DEFAULT '[]',
	status TEXT NOT NULL DEFAULT 'pending',
	recording_url TEXT NOT NULL DEFAULT '',
	transcript_url TEXT NOT NULL DEFAULT '',
	download_token TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS transcripts (
	id UUID PRIMARY KEY,
	meeting_id UUID NOT NULL UNIQUE REFERENCES meetings(id) ON DELETE CASCADE,
	full_text TEXT NOT NULL DEFAULT '',
	raw_text TEXT NOT NULL DEFAULT '',
	segments JSONB NOT NULL DEFAULT '[]',
	word_count INT NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'pending',
	fetch_attempts INT NOT NULL DEFAULT 0,
	last_error TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS drafts (
	id UUID PRIMARY KEY,
	meeting_id UUID NOT NULL REFERENCES meetings(id) ON DELETE CASCADE,
	transcript_id UUID,
	subject TEXT NOT NULL DEFAULT '',
	body TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'pending',
	model TEXT NOT NULL DEFAULT '',
	prompt_tokens INT NOT NULL DEFAULT 0,
	completion_tokens INT NOT NULL DEFAULT 0,
	cost_usd NUMERIC(10,6) NOT NULL DEFAULT 0,
	started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ,
	quality_score INT NOT NULL DEFAULT 0,
	score_breakdown JSONB NOT NULL DEFAULT '{}',
	meeting_type TEXT NOT NULL DEFAULT '',
	tone TEXT NOT NULL DEFAULT '',
	action_items JSONB NOT NULL DEFAULT '[]',
	key_points JSONB NOT NULL DEFAULT '[]',
	error_message TEXT,
	retry_count INT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_drafts_meeting_id ON drafts(meeting_id);
`

// Init opens the connection pool and applies the schema. The caller keeps
// using the package-level DB afterwards.
func Init(databaseURL string, timeout time.Duration) error {
	pool, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	pool.SetMaxOpenConns(25)
	pool.SetMaxIdleConns(5)
	pool.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := pool.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	DB = pool
	return nil
}
