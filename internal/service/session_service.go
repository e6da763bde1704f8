package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"greencity/internal/messaging"
	"greencity/internal/metrics"
	"greencity/internal/model"
	"greencity/internal/repository"

	"github.com/apex/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	defaultSessionLimit = 10
	maxLookupFanOut     = 8

	closeReasonThreshold = "threshold"
	closeReasonClosed    = "closed"
)

type SessionService struct {
	sessions repository.SessionStore
	reports  repository.ReportStore
	events   messaging.Publisher
	now      func() time.Time
}

func NewSessionService(stores repository.Stores, events messaging.Publisher) *SessionService {
	return &SessionService{
		sessions: stores.Sessions,
		reports:  stores.Reports,
		events:   events,
		now:      time.Now,
	}
}

// loadReports fetches reports in parallel. Missing ids come back as nil
// entries at the same index.
func (s *SessionService) loadReports(ctx context.Context, ids []string) ([]*model.Report, error) {
	out := make([]*model.Report, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxLookupFanOut)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			report, err := s.reports.FindByID(gctx, id)
			if errors.Is(err, model.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			out[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Opens a session over approved reports. Unknown or unapproved reports are
// listed back to the caller.
func (s *SessionService) CreateSession(ctx context.Context, creatorID string, req *model.CreateSessionRequest) (*model.VotingSession, error) {
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Description) == "" || req.ReportIDs == nil {
		return nil, model.Invalid("Missing required fields")
	}
	if len(req.ReportIDs) == 0 {
		return nil, model.Invalid("At least one report must be included")
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		return nil, model.Invalid("Start and end dates are required")
	}
	if req.EndDate.Before(req.StartDate) {
		return nil, model.Invalid("End date must not be before start date")
	}

	reports, err := s.loadReports(ctx, req.ReportIDs)
	if err != nil {
		return nil, err
	}
	invalid := []string{}
	for i, r := range reports {
		if r == nil || r.Status != model.StatusApproved {
			invalid = append(invalid, req.ReportIDs[i])
		}
	}
	if len(invalid) > 0 {
		return nil, &model.KindError{
			Kind:    model.ErrValidation,
			Message: "Some reports are invalid or not approved",
			Details: map[string]interface{}{"invalidReports": invalid},
		}
	}

	votingType := req.VotingType
	if votingType == "" {
		votingType = model.DefaultVotingType
	}
	minVotes := model.DefaultMinVotesRequired
	if req.MinVotesRequired != nil {
		if *req.MinVotesRequired < 1 {
			return nil, model.Invalid("minVotesRequired must be at least 1")
		}
		minVotes = *req.MinVotesRequired
	}

	session := &model.VotingSession{
		ID:               uuid.NewString(),
		Title:            req.Title,
		Description:      req.Description,
		ReportIDs:        append([]string(nil), req.ReportIDs...),
		VotingType:       votingType,
		StartDate:        req.StartDate,
		EndDate:          req.EndDate,
		MinVotesRequired: minVotes,
		Status:           model.SessionActive,
		CreatedBy:        creatorID,
		CreatedAt:        s.now(),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Returns sessions with their member reports and the caller's ballot.
func (s *SessionService) ListSessions(ctx context.Context, callerID string, filter model.SessionFilter) (*model.SessionListResponse, error) {
	if filter.Page < 1 {
		filter.Page = defaultPage
	}
	if filter.Limit < 1 {
		filter.Limit = defaultSessionLimit
	}

	sessions, total, err := s.sessions.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	views := make([]model.SessionView, 0, len(sessions))
	for _, session := range sessions {
		loaded, err := s.loadReports(ctx, session.ReportIDs)
		if err != nil {
			return nil, err
		}
		view := model.SessionView{VotingSession: session, Reports: []model.Report{}}
		for _, r := range loaded {
			if r != nil {
				view.Reports = append(view.Reports, *r)
			}
		}

		vote, err := s.sessions.FindVote(ctx, session.ID, callerID)
		if err != nil {
			return nil, err
		}
		if vote != nil {
			choice := vote.Vote
			view.UserHasVoted = true
			view.UserVote = &choice
		}
		views = append(views, view)
	}

	return &model.SessionListResponse{
		Sessions:   views,
		Pagination: model.NewPagination(filter.Page, filter.Limit, total),
	}, nil
}

// Casts one ballot and completes the session once the threshold is met.
func (s *SessionService) Vote(ctx context.Context, voterID string, req *model.SessionVoteRequest) (*model.SessionVoteResponse, error) {
	if req.SessionID == "" || req.Vote == "" {
		return nil, model.Invalid("Session ID and vote are required")
	}
	if !req.Vote.Valid() {
		return nil, model.Invalid("Invalid vote type")
	}

	session, err := s.sessions.FindByID(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != model.SessionActive {
		return nil, model.Invalid("Voting session is not active")
	}
	now := s.now()
	if !session.Open(now) {
		return nil, model.Invalid("Voting is not currently open")
	}

	existing, err := s.sessions.FindVote(ctx, session.ID, voterID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, model.Conflict("User has already voted in this session")
	}
	if req.ReportID != "" && !session.HasReport(req.ReportID) {
		return nil, model.Invalid("Report ID is not part of this voting session")
	}

	vote := &model.SessionVote{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		UserID:    voterID,
		Vote:      req.Vote,
		ReportID:  req.ReportID,
		VotedAt:   now,
	}
	if err := s.sessions.CreateVote(ctx, vote); err != nil {
		return nil, err
	}
	if err := s.sessions.IncrementTally(ctx, session.ID, req.Vote); err != nil {
		return nil, err
	}
	metrics.VotesTotal.WithLabelValues("session", string(req.Vote)).Inc()

	updated, err := s.sessions.FindByID(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	status := model.SessionActive
	if updated.TotalVotes >= updated.MinVotesRequired {
		status = model.SessionCompleted
		completed, err := s.sessions.Complete(ctx, session.ID, s.now())
		if err != nil {
			return nil, err
		}
		if completed {
			metrics.SessionsCompletedTotal.WithLabelValues(closeReasonThreshold).Inc()
			s.publishCompleted(ctx, updated, model.SessionCompleted, closeReasonThreshold)
		}
	}

	return &model.SessionVoteResponse{
		Message:       "Vote recorded successfully",
		SessionStatus: status,
	}, nil
}

func (s *SessionService) publishCompleted(ctx context.Context, session *model.VotingSession, status model.SessionStatus, reason string) {
	err := s.events.Publish(ctx, messaging.RoutingKeySessionCompleted, messaging.SessionCompletedMessage{
		SessionID:    session.ID,
		SessionTitle: session.Title,
		CreatedBy:    session.CreatedBy,
		Status:       string(status),
		TotalVotes:   session.TotalVotes,
		Reason:       reason,
		Timestamp:    s.now().Unix(),
	})
	if err != nil {
		log.WithError(err).WithField("session", session.ID).Warn("session: publish event")
	}
}

func (s *SessionService) GetResults(ctx context.Context, sessionID string) (*model.SessionResults, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	votes, err := s.sessions.ListVotes(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if votes == nil {
		votes = []model.SessionVote{}
	}

	results := &model.SessionResults{
		Session:         *session,
		TotalVotes:      len(votes),
		ReportBreakdown: map[string]model.VoteBreakdown{},
		Votes:           votes,
	}
	for _, v := range votes {
		results.VoteBreakdown.Add(v.Vote)
	}

	if len(session.ReportIDs) > 1 {
		for _, id := range session.ReportIDs {
			b := model.VoteBreakdown{}
			for _, v := range votes {
				if v.ReportID == id {
					b.Total++
					b.Add(v.Vote)
				}
			}
			results.ReportBreakdown[id] = b
		}
	}
	return results, nil
}

// Ends an active session by hand.
func (s *SessionService) CloseSession(ctx context.Context, closerID, sessionID string, req *model.CloseSessionRequest) error {
	if req.Status != model.SessionCompleted && req.Status != model.SessionCancelled {
		return model.Invalid("Invalid status")
	}

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return err
	}

	closed, err := s.sessions.Close(ctx, sessionID, req.Status, closerID, req.Reason, s.now())
	if err != nil {
		return err
	}
	if !closed {
		return model.Conflict("Voting session is not active")
	}

	metrics.SessionsCompletedTotal.WithLabelValues(closeReasonClosed).Inc()
	s.publishCompleted(ctx, session, req.Status, closeReasonClosed)
	return nil
}
