package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/apex/log"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		uid           TEXT PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		full_name     TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL DEFAULT '',
		role          TEXT NOT NULL DEFAULT 'citizen',
		reports_count INTEGER NOT NULL DEFAULT 0,
		votes_count   INTEGER NOT NULL DEFAULT 0,
		profile       JSONB NOT NULL DEFAULT '{}',
		preferences   JSONB NOT NULL DEFAULT '{}',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS reports (
		id                   TEXT PRIMARY KEY,
		title                TEXT NOT NULL,
		description          TEXT NOT NULL,
		report_type          TEXT NOT NULL,
		original_report_type TEXT,
		location_lat         DOUBLE PRECISION NOT NULL,
		location_lng         DOUBLE PRECISION NOT NULL,
		location_address     TEXT NOT NULL DEFAULT '',
		image_url            TEXT NOT NULL DEFAULT '',
		additional_info      TEXT NOT NULL DEFAULT '',
		user_id              TEXT NOT NULL,
		status               TEXT NOT NULL,
		upvotes              INTEGER NOT NULL DEFAULT 0 CHECK (upvotes >= 0),
		downvotes            INTEGER NOT NULL DEFAULT 0 CHECK (downvotes >= 0),
		ai_analysis          JSONB,
		expert_review        JSONB,
		created_at           TIMESTAMPTZ NOT NULL,
		updated_at           TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports (created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS report_votes (
		id         TEXT PRIMARY KEY,
		report_id  TEXT NOT NULL REFERENCES reports(id),
		user_id    TEXT NOT NULL,
		vote_type  TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_report_votes_report_user ON report_votes (report_id, user_id)`,
	`CREATE TABLE IF NOT EXISTS report_comments (
		id         TEXT PRIMARY KEY,
		report_id  TEXT NOT NULL REFERENCES reports(id),
		user_id    TEXT NOT NULL,
		text       TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS report_analyses (
		id                TEXT PRIMARY KEY,
		report_id         TEXT NOT NULL REFERENCES reports(id),
		image_analysis    JSONB,
		ai_analysis       JSONB NOT NULL,
		feasibility_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		impact_score      DOUBLE PRECISION NOT NULL DEFAULT 0,
		recommendations   JSONB NOT NULL DEFAULT '[]',
		analyzed_by       TEXT NOT NULL,
		analyzed_at       TIMESTAMPTZ NOT NULL,
		status            TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS voting_sessions (
		id                 TEXT PRIMARY KEY,
		title              TEXT NOT NULL,
		description        TEXT NOT NULL DEFAULT '',
		report_ids         TEXT[] NOT NULL,
		voting_type        TEXT NOT NULL,
		start_date         TIMESTAMPTZ NOT NULL,
		end_date           TIMESTAMPTZ NOT NULL,
		min_votes_required INTEGER NOT NULL,
		status             TEXT NOT NULL,
		total_votes        INTEGER NOT NULL DEFAULT 0,
		support_votes      INTEGER NOT NULL DEFAULT 0,
		oppose_votes       INTEGER NOT NULL DEFAULT 0,
		abstain_votes      INTEGER NOT NULL DEFAULT 0,
		created_by         TEXT NOT NULL,
		created_at         TIMESTAMPTZ NOT NULL,
		completed_at       TIMESTAMPTZ,
		closed_by          TEXT NOT NULL DEFAULT '',
		closed_at          TIMESTAMPTZ,
		closure_reason     TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS session_votes (
		id         TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES voting_sessions(id),
		user_id    TEXT NOT NULL,
		vote       TEXT NOT NULL,
		report_id  TEXT NOT NULL DEFAULT '',
		voted_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS partners (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		type          TEXT NOT NULL,
		description   TEXT NOT NULL DEFAULT '',
		contributions TEXT[] NOT NULL DEFAULT '{}',
		logo_url      TEXT NOT NULL DEFAULT '',
		website       TEXT NOT NULL DEFAULT '',
		created_by    TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		report_id  TEXT,
		session_id TEXT,
		title      TEXT NOT NULL,
		message    TEXT NOT NULL,
		is_read    BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS processed_messages (
		message_id   TEXT PRIMARY KEY,
		processed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS outbox_messages (
		id             TEXT PRIMARY KEY,
		routing_key    TEXT NOT NULL,
		aggregate_type TEXT NOT NULL DEFAULT '',
		aggregate_id   TEXT NOT NULL DEFAULT '',
		payload        JSONB NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		claimed_at     TIMESTAMPTZ,
		published_at   TIMESTAMPTZ,
		retry_count    INTEGER NOT NULL DEFAULT 0,
		last_error     TEXT,
		status         TEXT NOT NULL DEFAULT 'pending'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox_messages (status, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_aggregate ON outbox_messages (aggregate_type, aggregate_id, created_at)`,
}

// Migrate creates every table the postgres stores use. It is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	log.Infof("migrate: applied %d statements", len(schema))
	return nil
}

// NewPostgresStores wires every postgres repository onto one pool.
func NewPostgresStores(db *sql.DB) Stores {
	return Stores{
		Reports:       NewReportRepository(db),
		Votes:         NewVoteRepository(db),
		Comments:      NewCommentRepository(db),
		Users:         NewUserRepository(db),
		Sessions:      NewSessionRepository(db),
		Partners:      NewPartnerRepository(db),
		Analyses:      NewAnalysisRepository(db),
		Notifications: NewNotificationRepository(db),
		Outbox:        NewOutboxRepository(db),
	}
}
