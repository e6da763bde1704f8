package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"greencity/internal/model"

	"github.com/lib/pq"
)

const sessionColumns = `id, title, description, report_ids, voting_type, start_date, end_date,
	min_votes_required, status, total_votes, support_votes, oppose_votes, abstain_votes,
	created_by, created_at, completed_at, closed_by, closed_at, closure_reason`

type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, s *model.VotingSession) error {
	query := `
		INSERT INTO voting_sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	_, err := r.db.ExecContext(ctx, query,
		s.ID,
		s.Title,
		s.Description,
		pq.Array(s.ReportIDs),
		s.VotingType,
		s.StartDate,
		s.EndDate,
		s.MinVotesRequired,
		s.Status,
		s.TotalVotes,
		s.SupportVotes,
		s.OpposeVotes,
		s.AbstainVotes,
		s.CreatedBy,
		s.CreatedAt,
		s.CompletedAt,
		s.ClosedBy,
		s.ClosedAt,
		s.ClosureReason,
	)
	return err
}

func (r *SessionRepository) FindByID(ctx context.Context, id string) (*model.VotingSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM voting_sessions WHERE id = $1`
	s, err := scanSession(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.NotFound("Voting session not found")
		}
		return nil, err
	}
	return s, nil
}

func (r *SessionRepository) List(ctx context.Context, filter model.SessionFilter) ([]model.VotingSession, int, error) {
	var conds []string
	var args []interface{}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.VotingType != "" {
		args = append(args, filter.VotingType)
		conds = append(conds, fmt.Sprintf("voting_type = $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM voting_sessions`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + sessionColumns + ` FROM voting_sessions` + where + ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, filter.Limit, model.Offset(filter.Page, filter.Limit))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	sessions := []model.VotingSession{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, 0, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, total, rows.Err()
}

func (r *SessionRepository) FindVote(ctx context.Context, sessionID, userID string) (*model.SessionVote, error) {
	query := `
		SELECT id, session_id, user_id, vote, report_id, voted_at
		FROM session_votes
		WHERE session_id = $1 AND user_id = $2
		LIMIT 1
	`
	v := &model.SessionVote{}
	err := r.db.QueryRowContext(ctx, query, sessionID, userID).Scan(
		&v.ID, &v.SessionID, &v.UserID, &v.Vote, &v.ReportID, &v.VotedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return v, nil
}

func (r *SessionRepository) CreateVote(ctx context.Context, v *model.SessionVote) error {
	query := `
		INSERT INTO session_votes (id, session_id, user_id, vote, report_id, voted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query, v.ID, v.SessionID, v.UserID, v.Vote, v.ReportID, v.VotedAt)
	return err
}

func (r *SessionRepository) ListVotes(ctx context.Context, sessionID string) ([]model.SessionVote, error) {
	query := `
		SELECT id, session_id, user_id, vote, report_id, voted_at
		FROM session_votes
		WHERE session_id = $1
		ORDER BY voted_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	votes := []model.SessionVote{}
	for rows.Next() {
		var v model.SessionVote
		if err := rows.Scan(&v.ID, &v.SessionID, &v.UserID, &v.Vote, &v.ReportID, &v.VotedAt); err != nil {
			return nil, err
		}
		votes = append(votes, v)
	}
	return votes, rows.Err()
}

var tallyColumns = map[model.BallotChoice]string{
	model.BallotSupport: "support_votes",
	model.BallotOppose:  "oppose_votes",
	model.BallotAbstain: "abstain_votes",
}

func (r *SessionRepository) IncrementTally(ctx context.Context, sessionID string, choice model.BallotChoice) error {
	column, ok := tallyColumns[choice]
	if !ok {
		return model.Invalid("Invalid vote")
	}
	query := fmt.Sprintf(
		`UPDATE voting_sessions SET total_votes = total_votes + 1, %s = %s + 1 WHERE id = $1`,
		column, column)
	result, err := r.db.ExecContext(ctx, query, sessionID)
	if err != nil {
		return err
	}
	return expectRow(result, "Voting session not found")
}

func (r *SessionRepository) Complete(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `
		UPDATE voting_sessions SET status = 'completed', completed_at = $1
		WHERE id = $2 AND status = 'active'
	`
	result, err := r.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

func (r *SessionRepository) Close(ctx context.Context, id string, status model.SessionStatus, by, reason string, at time.Time) (bool, error) {
	query := `
		UPDATE voting_sessions
		SET status = $1, closed_by = $2, closed_at = $3, closure_reason = $4
		WHERE id = $5 AND status = 'active'
	`
	result, err := r.db.ExecContext(ctx, query, status, by, at, reason, id)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

func scanSession(row rowScanner) (*model.VotingSession, error) {
	s := &model.VotingSession{}
	var completedAt, closedAt sql.NullTime
	var reportIDs pq.StringArray

	err := row.Scan(
		&s.ID,
		&s.Title,
		&s.Description,
		&reportIDs,
		&s.VotingType,
		&s.StartDate,
		&s.EndDate,
		&s.MinVotesRequired,
		&s.Status,
		&s.TotalVotes,
		&s.SupportVotes,
		&s.OpposeVotes,
		&s.AbstainVotes,
		&s.CreatedBy,
		&s.CreatedAt,
		&completedAt,
		&s.ClosedBy,
		&closedAt,
		&s.ClosureReason,
	)
	if err != nil {
		return nil, err
	}

	s.ReportIDs = stringSlice(reportIDs)
	if completedAt.Valid {
		s.CompletedAt = &completedAt.Time
	}
	if closedAt.Valid {
		s.ClosedAt = &closedAt.Time
	}
	return s, nil
}
