package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
)

type OutboxRepository struct {
	db *sql.DB
}

func NewOutboxRepository(db *sql.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) Append(ctx context.Context, entry OutboxEntry) error {
	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO outbox_messages (id, routing_key, aggregate_type, aggregate_id, payload, status)
		VALUES ($1, $2, $3, $4, $5, 'pending')
	`
	_, err = r.db.ExecContext(ctx, query,
		uuid.NewString(), entry.RoutingKey, entry.AggregateType, entry.AggregateID, payload)
	return err
}

// Claim flips the selected rows to relaying in the same statement that locks
// them, so a second relay never sees a claimed row until its lease runs out.
func (r *OutboxRepository) Claim(ctx context.Context, limit int, lease time.Duration) ([]OutboxMessage, error) {
	query := `
		UPDATE outbox_messages
		SET status = 'relaying', claimed_at = NOW()
		WHERE id IN (
			SELECT id FROM outbox_messages
			WHERE status = 'pending'
			   OR (status = 'relaying' AND claimed_at < $2)
			ORDER BY created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, routing_key, aggregate_type, aggregate_id, payload,
		          created_at, claimed_at, retry_count, last_error
	`
	rows, err := r.db.QueryContext(ctx, query, limit, time.Now().Add(-lease))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claimed []OutboxMessage
	for rows.Next() {
		m := OutboxMessage{Status: OutboxRelaying}
		var claimedAt sql.NullTime
		var lastError sql.NullString
		if err := rows.Scan(
			&m.ID,
			&m.RoutingKey,
			&m.AggregateType,
			&m.AggregateID,
			&m.Payload,
			&m.CreatedAt,
			&claimedAt,
			&m.RetryCount,
			&lastError,
		); err != nil {
			return nil, err
		}
		if claimedAt.Valid {
			m.ClaimedAt = &claimedAt.Time
		}
		if lastError.Valid {
			m.LastError = &lastError.String
		}
		claimed = append(claimed, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// RETURNING does not keep the subquery order
	sort.SliceStable(claimed, func(i, j int) bool {
		return claimed[i].CreatedAt.Before(claimed[j].CreatedAt)
	})
	return claimed, nil
}

func (r *OutboxRepository) MarkAsPublished(ctx context.Context, id string) error {
	query := `
		UPDATE outbox_messages
		SET status = 'published', published_at = NOW(), claimed_at = NULL
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

func (r *OutboxRepository) MarkAsFailed(ctx context.Context, id string, errMsg string) error {
	query := `
		UPDATE outbox_messages
		SET retry_count = retry_count + 1, last_error = $2, claimed_at = NULL,
		    status = CASE WHEN retry_count + 1 >= $3 THEN 'failed' ELSE 'pending' END
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, errMsg, MaxOutboxRetries)
	return err
}

func (r *OutboxRepository) DeletePublished(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `
		DELETE FROM outbox_messages
		WHERE status = 'published' AND published_at < $1
	`
	result, err := r.db.ExecContext(ctx, query, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *OutboxRepository) Stats(ctx context.Context) (map[string]int, error) {
	query := `
		SELECT status, COUNT(*)
		FROM outbox_messages
		GROUP BY status
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}
