// Package memory holds process-local implementations of the repository
// interfaces. It backs development runs and service tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"greencity/internal/model"
	"greencity/internal/repository"
)

func New() repository.Stores {
	reports := &Reports{items: map[string]*model.Report{}}
	return repository.Stores{
		Reports:       reports,
		Votes:         &Votes{},
		Comments:      &Comments{},
		Users:         &Users{items: map[string]*model.User{}},
		Sessions:      &Sessions{items: map[string]*model.VotingSession{}},
		Partners:      &Partners{},
		Analyses:      &Analyses{},
		Notifications: &Notifications{processed: map[string]bool{}},
		Outbox:        &Outbox{},
	}
}

func page[T any](items []T, pageNum, limit int) []T {
	if limit <= 0 {
		return items
	}
	start := model.Offset(pageNum, limit)
	if start >= len(items) {
		return []T{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// cloneStrings copies xs. The copy is never nil so it encodes as [].
func cloneStrings(xs []string) []string {
	return append([]string{}, xs...)
}

type Reports struct {
	mu    sync.RWMutex
	items map[string]*model.Report
}

func copyReport(r *model.Report) model.Report {
	out := *r
	if r.AIAnalysis != nil {
		a := *r.AIAnalysis
		a.Recommendations = cloneStrings(r.AIAnalysis.Recommendations)
		a.NativeSpecies = cloneStrings(r.AIAnalysis.NativeSpecies)
		out.AIAnalysis = &a
	}
	if r.ExpertReview != nil {
		review := *r.ExpertReview
		out.ExpertReview = &review
	}
	return out
}

func (s *Reports) Create(_ context.Context, report *model.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[report.ID]; ok {
		return model.Conflict("Report already exists")
	}
	r := copyReport(report)
	s.items[report.ID] = &r
	return nil
}

func (s *Reports) FindByID(_ context.Context, id string) (*model.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.items[id]
	if !ok {
		return nil, model.NotFound("Report not found")
	}
	out := copyReport(r)
	return &out, nil
}

func (s *Reports) List(_ context.Context, filter model.ReportFilter) ([]model.Report, int, error) {
	s.mu.RLock()
	matches := []model.Report{}
	for _, r := range s.items {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.ReportType != "" && r.ReportType != filter.ReportType {
			continue
		}
		if filter.UserID != "" && r.UserID != filter.UserID {
			continue
		}
		matches = append(matches, copyReport(r))
	}
	s.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	return page(matches, filter.Page, filter.Limit), len(matches), nil
}

func (s *Reports) update(id string, fn func(r *model.Report)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.items[id]
	if !ok {
		return model.NotFound("Report not found")
	}
	fn(r)
	r.UpdatedAt = time.Now()
	return nil
}

func (s *Reports) UpdateStatus(_ context.Context, id string, status model.ReportStatus, review *model.ExpertReview) error {
	return s.update(id, func(r *model.Report) {
		r.Status = status
		if review != nil {
			rv := *review
			r.ExpertReview = &rv
		}
	})
}

func (s *Reports) IncrementVote(_ context.Context, id string, voteType model.VoteType) error {
	return s.update(id, func(r *model.Report) {
		if voteType == model.VoteDownvote {
			r.Downvotes++
		} else {
			r.Upvotes++
		}
	})
}

func (s *Reports) ApplyEnrichment(_ context.Context, id string, analysis *model.Analysis, override *model.ReportType) error {
	return s.update(id, func(r *model.Report) {
		a := *analysis
		r.AIAnalysis = &a
		if override != nil {
			r.OriginalReportType = r.ReportType
			r.ReportType = *override
		}
		if r.Status == model.StatusPendingAnalysis {
			r.Status = model.StatusPendingReview
		}
	})
}

func (s *Reports) AdvanceFromAnalysis(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.items[id]; ok && r.Status == model.StatusPendingAnalysis {
		r.Status = model.StatusPendingReview
		r.UpdatedAt = time.Now()
	}
	return nil
}

func (s *Reports) SetAnalysisSummary(_ context.Context, id string, summary *model.Analysis) error {
	return s.update(id, func(r *model.Report) {
		a := *summary
		r.AIAnalysis = &a
	})
}

type Votes struct {
	mu    sync.RWMutex
	items []model.ReportVote
}

func (s *Votes) FindVote(_ context.Context, reportID, userID string) (*model.ReportVote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.items {
		if v.ReportID == reportID && v.UserID == userID {
			out := v
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Votes) CreateVote(_ context.Context, vote *model.ReportVote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, *vote)
	return nil
}

func (s *Votes) ListVotes(_ context.Context, reportID string) ([]model.ReportVote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	votes := []model.ReportVote{}
	for _, v := range s.items {
		if v.ReportID == reportID {
			votes = append(votes, v)
		}
	}
	return votes, nil
}

type Comments struct {
	mu    sync.RWMutex
	items []model.Comment
}

func (s *Comments) CreateComment(_ context.Context, comment *model.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, *comment)
	return nil
}

func (s *Comments) ListComments(_ context.Context, reportID string) ([]model.Comment, error) {
	s.mu.RLock()
	comments := []model.Comment{}
	for _, c := range s.items {
		if c.ReportID == reportID {
			comments = append(comments, c)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].CreatedAt.After(comments[j].CreatedAt)
	})
	return comments, nil
}

type Users struct {
	mu    sync.RWMutex
	items map[string]*model.User
}

func (s *Users) emailTaken(email string) bool {
	for _, u := range s.items {
		if strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func (s *Users) Create(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[user.UID]; ok || s.emailTaken(user.Email) {
		return model.Conflict("User already exists")
	}
	u := *user
	s.items[user.UID] = &u
	return nil
}

func (s *Users) FindByID(_ context.Context, uid string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.items[uid]
	if !ok {
		return nil, model.NotFound("User not found")
	}
	out := *u
	return &out, nil
}

func (s *Users) FindByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.items {
		if strings.EqualFold(u.Email, email) {
			out := *u
			return &out, nil
		}
	}
	return nil, model.NotFound("User not found")
}

func (s *Users) RecordReport(_ context.Context, identity model.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if u, ok := s.items[identity.UID]; ok {
		u.ReportsCount++
		u.UpdatedAt = now
		return nil
	}
	name := identity.Name
	if name == "" {
		name = identity.Email
	}
	s.items[identity.UID] = &model.User{
		UID:          identity.UID,
		Email:        identity.Email,
		FullName:     name,
		Role:         model.RoleCitizen,
		ReportsCount: 1,
		Preferences:  model.DefaultPreferences(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return nil
}

func (s *Users) IncrementVotesCount(_ context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.items[uid]; ok {
		u.VotesCount++
		u.UpdatedAt = time.Now()
	}
	return nil
}

func (s *Users) UpdateProfile(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.items[user.UID]
	if !ok {
		return model.NotFound("User not found")
	}
	u.FullName = user.FullName
	u.Profile = user.Profile
	u.Preferences = user.Preferences
	u.UpdatedAt = user.UpdatedAt
	return nil
}

func (s *Users) UpdateRole(_ context.Context, uid string, role model.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.items[uid]
	if !ok {
		return model.NotFound("User not found")
	}
	u.Role = role
	u.UpdatedAt = time.Now()
	return nil
}

func (s *Users) List(_ context.Context, filter model.UserFilter) ([]model.User, int, error) {
	search := strings.ToLower(filter.Search)
	s.mu.RLock()
	matches := []model.User{}
	for _, u := range s.items {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(u.FullName), search) &&
			!strings.Contains(strings.ToLower(u.Email), search) {
			continue
		}
		matches = append(matches, *u)
	}
	s.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	return page(matches, filter.Page, filter.Limit), len(matches), nil
}

func (s *Users) Delete(_ context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[uid]; !ok {
		return model.NotFound("User not found")
	}
	delete(s.items, uid)
	return nil
}
