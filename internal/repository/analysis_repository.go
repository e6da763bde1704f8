package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"greencity/internal/model"
)

type AnalysisRepository struct {
	db *sql.DB
}

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

func (r *AnalysisRepository) Create(ctx context.Context, rec *model.AnalysisRecord) error {
	image, err := nullableJSON(rec.ImageAnalysis)
	if err != nil {
		return err
	}
	analysis, err := json.Marshal(rec.AIAnalysis)
	if err != nil {
		return err
	}
	recs, err := json.Marshal(rec.Recommendations)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO report_analyses (id, report_id, image_analysis, ai_analysis, feasibility_score,
			impact_score, recommendations, analyzed_by, analyzed_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.db.ExecContext(ctx, query,
		rec.ID,
		rec.ReportID,
		image,
		analysis,
		rec.FeasibilityScore,
		rec.ImpactScore,
		recs,
		rec.AnalyzedBy,
		rec.AnalyzedAt,
		rec.Status,
	)
	return err
}

func (r *AnalysisRepository) Latest(ctx context.Context, reportID string) (*model.AnalysisRecord, error) {
	query := `
		SELECT id, report_id, image_analysis, ai_analysis, feasibility_score, impact_score,
			recommendations, analyzed_by, analyzed_at, status
		FROM report_analyses
		WHERE report_id = $1
		ORDER BY analyzed_at DESC
		LIMIT 1
	`
	rec := &model.AnalysisRecord{}
	var image, analysis, recs []byte
	err := r.db.QueryRowContext(ctx, query, reportID).Scan(
		&rec.ID,
		&rec.ReportID,
		&image,
		&analysis,
		&rec.FeasibilityScore,
		&rec.ImpactScore,
		&recs,
		&rec.AnalyzedBy,
		&rec.AnalyzedAt,
		&rec.Status,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.NotFound("No analysis found for this report")
		}
		return nil, err
	}

	if len(image) > 0 {
		rec.ImageAnalysis = &model.ImageAnalysis{}
		if err := json.Unmarshal(image, rec.ImageAnalysis); err != nil {
			return nil, fmt.Errorf("decode image_analysis: %w", err)
		}
	}
	if err := json.Unmarshal(analysis, &rec.AIAnalysis); err != nil {
		return nil, fmt.Errorf("decode ai_analysis: %w", err)
	}
	if err := json.Unmarshal(recs, &rec.Recommendations); err != nil {
		return nil, fmt.Errorf("decode recommendations: %w", err)
	}
	return rec, nil
}
