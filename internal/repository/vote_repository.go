package repository

import (
	"context"
	"database/sql"
	"errors"

	"greencity/internal/model"
)

type VoteRepository struct {
	db *sql.DB
}

func NewVoteRepository(db *sql.DB) *VoteRepository {
	return &VoteRepository{db: db}
}

func (r *VoteRepository) FindVote(ctx context.Context, reportID, userID string) (*model.ReportVote, error) {
	query := `
		SELECT id, report_id, user_id, vote_type, created_at
		FROM report_votes
		WHERE report_id = $1 AND user_id = $2
		LIMIT 1
	`
	vote := &model.ReportVote{}
	err := r.db.QueryRowContext(ctx, query, reportID, userID).Scan(
		&vote.ID,
		&vote.ReportID,
		&vote.UserID,
		&vote.VoteType,
		&vote.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return vote, nil
}

func (r *VoteRepository) CreateVote(ctx context.Context, vote *model.ReportVote) error {
	query := `
		INSERT INTO report_votes (id, report_id, user_id, vote_type, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query,
		vote.ID,
		vote.ReportID,
		vote.UserID,
		vote.VoteType,
		vote.CreatedAt,
	)
	return err
}

func (r *VoteRepository) ListVotes(ctx context.Context, reportID string) ([]model.ReportVote, error) {
	query := `
		SELECT id, report_id, user_id, vote_type, created_at
		FROM report_votes
		WHERE report_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	votes := []model.ReportVote{}
	for rows.Next() {
		var v model.ReportVote
		if err := rows.Scan(&v.ID, &v.ReportID, &v.UserID, &v.VoteType, &v.CreatedAt); err != nil {
			return nil, err
		}
		votes = append(votes, v)
	}
	return votes, rows.Err()
}

type CommentRepository struct {
	db *sql.DB
}

func NewCommentRepository(db *sql.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

func (r *CommentRepository) CreateComment(ctx context.Context, comment *model.Comment) error {
	query := `
		INSERT INTO report_comments (id, report_id, user_id, text, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query,
		comment.ID,
		comment.ReportID,
		comment.UserID,
		comment.Text,
		comment.CreatedAt,
	)
	return err
}

func (r *CommentRepository) ListComments(ctx context.Context, reportID string) ([]model.Comment, error) {
	query := `
		SELECT id, report_id, user_id, text, created_at
		FROM report_comments
		WHERE report_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := []model.Comment{}
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.ReportID, &c.UserID, &c.Text, &c.CreatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}
