package service

import (
	"context"
	"strings"
	"time"

	"greencity/internal/messaging"
	"greencity/internal/metrics"
	"greencity/internal/model"
	"greencity/internal/repository"

	"github.com/apex/log"
	"github.com/google/uuid"
	geojson "github.com/paulmach/go.geojson"
)

const (
	defaultReportTitle = "New Report"
	defaultPage        = 1
	defaultReportLimit = 10
)

// Enqueuer schedules background enrichment of a stored report.
type Enqueuer interface {
	Enqueue(ctx context.Context, reportID string)
}

type ReportService struct {
	reports  repository.ReportStore
	votes    repository.VoteStore
	comments repository.CommentStore
	users    repository.UserStore
	events   messaging.Publisher
	enricher Enqueuer
	now      func() time.Time
}

func NewReportService(stores repository.Stores, events messaging.Publisher, enricher Enqueuer) *ReportService {
	return &ReportService{
		reports:  stores.Reports,
		votes:    stores.Votes,
		comments: stores.Comments,
		users:    stores.Users,
		events:   events,
		enricher: enricher,
		now:      time.Now,
	}
}

func (s *ReportService) publish(ctx context.Context, routingKey string, event interface{}) {
	if err := s.events.Publish(ctx, routingKey, event); err != nil {
		log.WithError(err).WithField("routing_key", routingKey).Warn("report: publish event")
	}
}

// Persists a new report at pending_analysis and hands it to enrichment.
func (s *ReportService) CreateReport(ctx context.Context, caller model.Identity, req *model.CreateReportRequest) (*model.Report, error) {
	if strings.TrimSpace(req.Description) == "" || req.Location == nil || req.ReportType == "" {
		return nil, model.Invalid("Missing required fields")
	}
	if !req.ReportType.Valid() {
		return nil, model.Invalid("Invalid report type")
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = defaultReportTitle
	}

	now := s.now()
	report := &model.Report{
		ID:             uuid.NewString(),
		Title:          title,
		Description:    req.Description,
		ReportType:     req.ReportType,
		Location:       *req.Location,
		ImageURL:       req.ImageURL,
		AdditionalInfo: req.AdditionalInfo,
		UserID:         caller.UID,
		Status:         model.StatusPendingAnalysis,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.reports.Create(ctx, report); err != nil {
		return nil, err
	}

	if err := s.users.RecordReport(ctx, caller); err != nil {
		log.WithError(err).WithField("user", caller.UID).Error("report: record report on profile")
	}

	s.enricher.Enqueue(ctx, report.ID)

	s.publish(ctx, messaging.RoutingKeyReportCreated, messaging.ReportCreatedMessage{
		ReportID:    report.ID,
		ReportTitle: report.Title,
		ReportType:  string(report.ReportType),
		ReporterID:  report.UserID,
		Timestamp:   now.Unix(),
	})

	return report, nil
}

// Returns one page of reports, newest first.
func (s *ReportService) ListReports(ctx context.Context, filter model.ReportFilter) (*model.ReportListResponse, error) {
	if filter.Page < 1 {
		filter.Page = defaultPage
	}
	if filter.Limit < 1 {
		filter.Limit = defaultReportLimit
	}

	reports, total, err := s.reports.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if reports == nil {
		reports = []model.Report{}
	}

	return &model.ReportListResponse{
		Reports:    reports,
		Pagination: model.NewPagination(filter.Page, filter.Limit, total),
	}, nil
}

func (s *ReportService) GetReport(ctx context.Context, id string) (*model.ReportDetail, error) {
	report, err := s.reports.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	votes, err := s.votes.ListVotes(ctx, id)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.ListComments(ctx, id)
	if err != nil {
		return nil, err
	}
	if votes == nil {
		votes = []model.ReportVote{}
	}
	if comments == nil {
		comments = []model.Comment{}
	}

	return &model.ReportDetail{Report: *report, Votes: votes, Comments: comments}, nil
}

// Moves a report along the review lifecycle. Backward moves and moves out
// of a terminal status are conflicts.
func (s *ReportService) UpdateStatus(ctx context.Context, reviewerID, id string, req *model.UpdateStatusRequest) error {
	if req.Status == "" {
		return model.Invalid("Report ID and status are required")
	}
	if !req.Status.Reviewable() {
		return model.Invalid("Invalid status")
	}

	report, err := s.reports.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !report.Status.CanTransitionTo(req.Status) {
		return model.Conflict("Cannot change status from %s to %s", report.Status, req.Status)
	}

	var review *model.ExpertReview
	if req.ExpertReview != nil {
		r := *req.ExpertReview
		r.ReviewedBy = reviewerID
		r.ReviewedAt = s.now()
		review = &r
	}

	if err := s.reports.UpdateStatus(ctx, id, req.Status, review); err != nil {
		return err
	}

	s.publish(ctx, messaging.RoutingKeyStatusUpdate, messaging.StatusUpdateMessage{
		ReportID:    report.ID,
		ReportTitle: report.Title,
		OldStatus:   string(report.Status),
		NewStatus:   string(req.Status),
		ReporterID:  report.UserID,
		ReviewerID:  reviewerID,
		Timestamp:   s.now().Unix(),
	})
	return nil
}

// Records one vote per user per report.
func (s *ReportService) Vote(ctx context.Context, voterID string, req *model.VoteRequest) error {
	if req.ReportID == "" || req.VoteType == "" {
		return model.Invalid("Report ID and vote type are required")
	}
	if !req.VoteType.Valid() {
		return model.Invalid("Invalid vote type")
	}

	report, err := s.reports.FindByID(ctx, req.ReportID)
	if err != nil {
		return err
	}

	existing, err := s.votes.FindVote(ctx, req.ReportID, voterID)
	if err != nil {
		return err
	}
	if existing != nil {
		return model.Conflict("User has already voted on this report")
	}

	vote := &model.ReportVote{
		ID:        uuid.NewString(),
		ReportID:  req.ReportID,
		UserID:    voterID,
		VoteType:  req.VoteType,
		CreatedAt: s.now(),
	}
	if err := s.votes.CreateVote(ctx, vote); err != nil {
		return err
	}
	if err := s.reports.IncrementVote(ctx, req.ReportID, req.VoteType); err != nil {
		return err
	}
	if err := s.users.IncrementVotesCount(ctx, voterID); err != nil {
		log.WithError(err).WithField("user", voterID).Error("report: increment votes count")
	}
	metrics.VotesTotal.WithLabelValues("report", string(req.VoteType)).Inc()

	s.publish(ctx, messaging.RoutingKeyVoteReceived, messaging.VoteReceivedMessage{
		ReportID:    report.ID,
		ReportTitle: report.Title,
		ReporterID:  report.UserID,
		VoterID:     voterID,
		VoteType:    string(req.VoteType),
		Timestamp:   vote.CreatedAt.Unix(),
	})
	return nil
}

func (s *ReportService) AddComment(ctx context.Context, userID, reportID string, req *model.CommentRequest) (*model.Comment, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, model.Invalid("Comment text is required")
	}
	if _, err := s.reports.FindByID(ctx, reportID); err != nil {
		return nil, err
	}

	comment := &model.Comment{
		ID:        uuid.NewString(),
		ReportID:  reportID,
		UserID:    userID,
		Text:      text,
		CreatedAt: s.now(),
	}
	if err := s.comments.CreateComment(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// Map renders every matching report as a GeoJSON point.
func (s *ReportService) Map(ctx context.Context, filter model.ReportFilter) (*geojson.FeatureCollection, error) {
	filter.Page, filter.Limit = 0, 0
	reports, _, err := s.reports.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	fc := geojson.NewFeatureCollection()
	for _, r := range reports {
		f := geojson.NewPointFeature([]float64{r.Location.Lng, r.Location.Lat})
		f.ID = r.ID
		f.SetProperty("title", r.Title)
		f.SetProperty("reportType", r.ReportType)
		f.SetProperty("status", r.Status)
		f.SetProperty("upvotes", r.Upvotes)
		f.SetProperty("downvotes", r.Downvotes)
		if r.Location.Address != "" {
			f.SetProperty("address", r.Location.Address)
		}
		if r.AIAnalysis != nil {
			f.SetProperty("feasibilityScore", r.AIAnalysis.FeasibilityScore)
		}
		fc.AddFeature(f)
	}
	return fc, nil
}
