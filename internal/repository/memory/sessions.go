package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"greencity/internal/model"
)

type Sessions struct {
	mu    sync.RWMutex
	items map[string]*model.VotingSession
	votes []model.SessionVote
}

func copySession(s *model.VotingSession) model.VotingSession {
	out := *s
	out.ReportIDs = cloneStrings(s.ReportIDs)
	return out
}

func (s *Sessions) Create(_ context.Context, session *model.VotingSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[session.ID]; ok {
		return model.Conflict("Voting session already exists")
	}
	c := copySession(session)
	s.items[session.ID] = &c
	return nil
}

func (s *Sessions) FindByID(_ context.Context, id string) (*model.VotingSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.items[id]
	if !ok {
		return nil, model.NotFound("Voting session not found")
	}
	out := copySession(session)
	return &out, nil
}

func (s *Sessions) List(_ context.Context, filter model.SessionFilter) ([]model.VotingSession, int, error) {
	s.mu.RLock()
	matches := []model.VotingSession{}
	for _, session := range s.items {
		if filter.Status != "" && session.Status != filter.Status {
			continue
		}
		if filter.VotingType != "" && session.VotingType != filter.VotingType {
			continue
		}
		matches = append(matches, copySession(session))
	}
	s.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	return page(matches, filter.Page, filter.Limit), len(matches), nil
}

func (s *Sessions) FindVote(_ context.Context, sessionID, userID string) (*model.SessionVote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.votes {
		if v.SessionID == sessionID && v.UserID == userID {
			out := v
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Sessions) CreateVote(_ context.Context, vote *model.SessionVote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votes = append(s.votes, *vote)
	return nil
}

func (s *Sessions) ListVotes(_ context.Context, sessionID string) ([]model.SessionVote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	votes := []model.SessionVote{}
	for _, v := range s.votes {
		if v.SessionID == sessionID {
			votes = append(votes, v)
		}
	}
	return votes, nil
}

func (s *Sessions) IncrementTally(_ context.Context, sessionID string, choice model.BallotChoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.items[sessionID]
	if !ok {
		return model.NotFound("Voting session not found")
	}
	switch choice {
	case model.BallotSupport:
		session.SupportVotes++
	case model.BallotOppose:
		session.OpposeVotes++
	case model.BallotAbstain:
		session.AbstainVotes++
	default:
		return model.Invalid("Invalid vote")
	}
	session.TotalVotes++
	return nil
}

func (s *Sessions) Complete(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.items[id]
	if !ok || session.Status != model.SessionActive {
		return false, nil
	}
	session.Status = model.SessionCompleted
	session.CompletedAt = &at
	return true, nil
}

func (s *Sessions) Close(_ context.Context, id string, status model.SessionStatus, by, reason string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.items[id]
	if !ok || session.Status != model.SessionActive {
		return false, nil
	}
	session.Status = status
	session.ClosedBy = by
	session.ClosedAt = &at
	session.ClosureReason = reason
	return true, nil
}

type Partners struct {
	mu    sync.RWMutex
	items []model.Partner
}

func (s *Partners) Create(_ context.Context, partner *model.Partner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := *partner
	p.Contributions = cloneStrings(partner.Contributions)
	s.items = append(s.items, p)
	return nil
}

func (s *Partners) List(_ context.Context) ([]model.Partner, error) {
	s.mu.RLock()
	partners := append([]model.Partner{}, s.items...)
	s.mu.RUnlock()

	sort.SliceStable(partners, func(i, j int) bool {
		return partners[i].Name < partners[j].Name
	})
	return partners, nil
}

type Analyses struct {
	mu    sync.RWMutex
	items []model.AnalysisRecord
}

func (s *Analyses) Create(_ context.Context, record *model.AnalysisRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := *record
	rec.Recommendations = cloneStrings(record.Recommendations)
	s.items = append(s.items, rec)
	return nil
}

func (s *Analyses) Latest(_ context.Context, reportID string) (*model.AnalysisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *model.AnalysisRecord
	for i := range s.items {
		rec := &s.items[i]
		if rec.ReportID != reportID {
			continue
		}
		if latest == nil || !rec.AnalyzedAt.Before(latest.AnalyzedAt) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, model.NotFound("No analysis found for this report")
	}
	out := *latest
	return &out, nil
}
