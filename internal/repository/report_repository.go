package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"greencity/internal/model"

	_ "github.com/lib/pq"
)

const reportColumns = `id, title, description, report_type, original_report_type,
	location_lat, location_lng, location_address, image_url, additional_info,
	user_id, status, upvotes, downvotes, ai_analysis, expert_review, created_at, updated_at`

type ReportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

func (r *ReportRepository) Create(ctx context.Context, report *model.Report) error {
	analysis, err := nullableJSON(report.AIAnalysis)
	if err != nil {
		return err
	}
	review, err := nullableJSON(report.ExpertReview)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO reports (` + reportColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err = r.db.ExecContext(ctx, query,
		report.ID,
		report.Title,
		report.Description,
		report.ReportType,
		nullString(string(report.OriginalReportType)),
		report.Location.Lat,
		report.Location.Lng,
		report.Location.Address,
		report.ImageURL,
		report.AdditionalInfo,
		report.UserID,
		report.Status,
		report.Upvotes,
		report.Downvotes,
		analysis,
		review,
		report.CreatedAt,
		report.UpdatedAt,
	)
	return err
}

func (r *ReportRepository) FindByID(ctx context.Context, id string) (*model.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`
	report, err := scanReport(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.NotFound("Report not found")
		}
		return nil, err
	}
	return report, nil
}

func (r *ReportRepository) List(ctx context.Context, filter model.ReportFilter) ([]model.Report, int, error) {
	where, args := reportWhere(filter)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + reportColumns + ` FROM reports` + where + ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, filter.Limit, model.Offset(filter.Page, filter.Limit))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	reports := []model.Report{}
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, 0, err
		}
		reports = append(reports, *report)
	}
	return reports, total, rows.Err()
}

func reportWhere(filter model.ReportFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.ReportType != "" {
		args = append(args, filter.ReportType)
		conds = append(conds, fmt.Sprintf("report_type = $%d", len(args)))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *ReportRepository) UpdateStatus(ctx context.Context, id string, status model.ReportStatus, review *model.ExpertReview) error {
	var (
		result sql.Result
		err    error
	)
	if review != nil {
		data, jerr := json.Marshal(review)
		if jerr != nil {
			return jerr
		}
		result, err = r.db.ExecContext(ctx,
			`UPDATE reports SET status = $1, expert_review = $2, updated_at = NOW() WHERE id = $3`,
			status, data, id)
	} else {
		result, err = r.db.ExecContext(ctx,
			`UPDATE reports SET status = $1, updated_at = NOW() WHERE id = $2`,
			status, id)
	}
	if err != nil {
		return err
	}
	return expectRow(result, "Report not found")
}

func (r *ReportRepository) IncrementVote(ctx context.Context, id string, voteType model.VoteType) error {
	query := `UPDATE reports SET upvotes = upvotes + 1, updated_at = NOW() WHERE id = $1`
	if voteType == model.VoteDownvote {
		query = `UPDATE reports SET downvotes = downvotes + 1, updated_at = NOW() WHERE id = $1`
	}
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return expectRow(result, "Report not found")
}

func (r *ReportRepository) ApplyEnrichment(ctx context.Context, id string, analysis *model.Analysis, override *model.ReportType) error {
	data, err := json.Marshal(analysis)
	if err != nil {
		return err
	}
	var category sql.NullString
	if override != nil {
		category = nullString(string(*override))
	}

	// SET expressions see the old row, so original_report_type keeps the
	// user's choice.
	query := `
		UPDATE reports
		SET ai_analysis = $1,
		    original_report_type = CASE WHEN $2::text IS NULL THEN original_report_type ELSE report_type END,
		    report_type = COALESCE($2::text, report_type),
		    status = CASE WHEN status = 'pending_analysis' THEN 'pending_review' ELSE status END,
		    updated_at = NOW()
		WHERE id = $3
	`
	result, err := r.db.ExecContext(ctx, query, data, category, id)
	if err != nil {
		return err
	}
	return expectRow(result, "Report not found")
}

func (r *ReportRepository) AdvanceFromAnalysis(ctx context.Context, id string) error {
	query := `
		UPDATE reports SET status = 'pending_review', updated_at = NOW()
		WHERE id = $1 AND status = 'pending_analysis'
	`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

func (r *ReportRepository) SetAnalysisSummary(ctx context.Context, id string, summary *model.Analysis) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE reports SET ai_analysis = $1, updated_at = NOW() WHERE id = $2`, data, id)
	if err != nil {
		return err
	}
	return expectRow(result, "Report not found")
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(row rowScanner) (*model.Report, error) {
	report := &model.Report{}
	var original sql.NullString
	var analysis, review []byte

	err := row.Scan(
		&report.ID,
		&report.Title,
		&report.Description,
		&report.ReportType,
		&original,
		&report.Location.Lat,
		&report.Location.Lng,
		&report.Location.Address,
		&report.ImageURL,
		&report.AdditionalInfo,
		&report.UserID,
		&report.Status,
		&report.Upvotes,
		&report.Downvotes,
		&analysis,
		&review,
		&report.CreatedAt,
		&report.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if original.Valid {
		report.OriginalReportType = model.ReportType(original.String)
	}
	if len(analysis) > 0 {
		report.AIAnalysis = &model.Analysis{}
		if err := json.Unmarshal(analysis, report.AIAnalysis); err != nil {
			return nil, fmt.Errorf("decode ai_analysis: %w", err)
		}
	}
	if len(review) > 0 {
		report.ExpertReview = &model.ExpertReview{}
		if err := json.Unmarshal(review, report.ExpertReview); err != nil {
			return nil, fmt.Errorf("decode expert_review: %w", err)
		}
	}
	return report, nil
}
