package service

import (
	"context"
	"errors"
	"time"

	"greencity/internal/ai"
	"greencity/internal/model"
	"greencity/internal/repository"

	"github.com/apex/log"
	"github.com/google/uuid"
)

const maxBatchAnalyze = 10

const (
	analysisCompleted = "completed"
	analysisFallback  = "fallback"
)

type Analyzer interface {
	Analyze(ctx context.Context, in ai.Input) ai.Result
}

// AnalysisService runs on-demand analyses requested by reviewers. Unlike
// background enrichment it never changes a report's status or type.
type AnalysisService struct {
	reports  repository.ReportStore
	analyses repository.AnalysisStore
	analyzer Analyzer
	now      func() time.Time
}

func NewAnalysisService(stores repository.Stores, analyzer Analyzer) *AnalysisService {
	return &AnalysisService{
		reports:  stores.Reports,
		analyses: stores.Analyses,
		analyzer: analyzer,
		now:      time.Now,
	}
}

func (s *AnalysisService) Analyze(ctx context.Context, analyzerID string, req *model.AnalyzeRequest) (*model.AnalysisRecord, error) {
	if req.ReportID == "" || req.ReportType == "" || req.Location == nil {
		return nil, model.Invalid("Missing required fields")
	}
	if !req.ReportType.Valid() {
		return nil, model.Invalid("Invalid report type")
	}
	if _, err := s.reports.FindByID(ctx, req.ReportID); err != nil {
		return nil, err
	}

	res := s.analyzer.Analyze(ctx, ai.Input{
		ReportType:  req.ReportType,
		Location:    *req.Location,
		Description: req.Description,
		ImageURL:    req.ImageURL,
	})

	now := s.now()
	status := analysisCompleted
	if res.Fallback() {
		status = analysisFallback
	}
	record := &model.AnalysisRecord{
		ID:               uuid.NewString(),
		ReportID:         req.ReportID,
		ImageAnalysis:    res.Image,
		AIAnalysis:       res.Analysis,
		FeasibilityScore: res.Analysis.FeasibilityScore,
		ImpactScore:      res.Analysis.ImpactScore,
		Recommendations:  res.Analysis.Recommendations,
		AnalyzedBy:       analyzerID,
		AnalyzedAt:       now,
		Status:           status,
	}
	if err := s.analyses.Create(ctx, record); err != nil {
		return nil, err
	}
	if err := s.reports.SetAnalysisSummary(ctx, req.ReportID, res.Analysis.Brief(now)); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *AnalysisService) GetAnalysis(ctx context.Context, reportID string) (*model.AnalysisRecord, error) {
	if reportID == "" {
		return nil, model.Invalid("Report ID is required")
	}
	record, err := s.analyses.Latest(ctx, reportID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, model.NotFound("No analysis found for this report")
	}
	return record, err
}

// BatchAnalyze refreshes the summary of each report in turn. A failure on
// one report is reported in its result and does not stop the rest.
func (s *AnalysisService) BatchAnalyze(ctx context.Context, req *model.BatchAnalyzeRequest) ([]model.BatchResult, error) {
	if req.ReportIDs == nil {
		return nil, model.Invalid("Report IDs array is required")
	}
	if len(req.ReportIDs) > maxBatchAnalyze {
		return nil, model.Invalid("Cannot analyze more than 10 reports at once")
	}

	results := make([]model.BatchResult, 0, len(req.ReportIDs))
	for _, id := range req.ReportIDs {
		results = append(results, s.analyzeOne(ctx, id))
	}
	return results, nil
}

func (s *AnalysisService) analyzeOne(ctx context.Context, reportID string) model.BatchResult {
	report, err := s.reports.FindByID(ctx, reportID)
	if errors.Is(err, model.ErrNotFound) {
		return model.BatchResult{ReportID: reportID, Error: "Report not found"}
	}
	if err != nil {
		log.WithError(err).WithField("report", reportID).Error("analysis: load report")
		return model.BatchResult{ReportID: reportID, Error: "Analysis failed"}
	}

	res := s.analyzer.Analyze(ctx, ai.Input{
		ReportType:  report.ReportType,
		Location:    report.Location,
		Description: report.Description,
		ImageURL:    report.ImageURL,
	})
	if err := s.reports.SetAnalysisSummary(ctx, reportID, res.Analysis.Brief(s.now())); err != nil {
		log.WithError(err).WithField("report", reportID).Error("analysis: store summary")
		return model.BatchResult{ReportID: reportID, Error: "Analysis failed"}
	}
	return model.BatchResult{ReportID: reportID, Success: true}
}
