package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"greencity/config"
	"greencity/internal/ai"
	"greencity/internal/auth"
	"greencity/internal/messaging"
	"greencity/internal/model"
	"greencity/internal/repository"
	"greencity/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type publishedEvent struct {
	key   string
	event interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, key string, event interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{key, event})
	return nil
}

func (p *recordingPublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.key)
	}
	return out
}

type recordingEnqueuer struct {
	ids []string
}

func (e *recordingEnqueuer) Enqueue(_ context.Context, id string) {
	e.ids = append(e.ids, id)
}

func assertKind(t *testing.T, err error, kind error, message string) {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, kind)
	if message != "" {
		assert.EqualError(t, err, message)
	}
}

func seedReport(t *testing.T, stores repository.Stores, id string, status model.ReportStatus) {
	t.Helper()
	require.NoError(t, stores.Reports.Create(context.Background(), &model.Report{
		ID:         id,
		Title:      "Report " + id,
		ReportType: model.ReportTypeUnusedSpace,
		Status:     status,
		UserID:     "owner",
		CreatedAt:  time.Now(),
	}))
}

func TestReportService_Create(t *testing.T) {
	ctx := context.Background()
	stores := memory.New()
	events := &recordingPublisher{}
	enqueuer := &recordingEnqueuer{}
	svc := NewReportService(stores, events, enqueuer)

	caller := model.Identity{UID: "u1", Email: "ana@example.com", Name: "Ana"}
	report, err := svc.CreateReport(ctx, caller, &model.CreateReportRequest{
		Description: "Bare strip along the canal",
		Location:    &model.Location{Lat: -6.2, Lng: 106.8},
		ReportType:  model.ReportTypeUnusedSpace,
	})
	require.NoError(t, err)

	assert.Equal(t, "New Report", report.Title)
	assert.Equal(t, model.StatusPendingAnalysis, report.Status)
	assert.Zero(t, report.Upvotes)
	assert.Equal(t, []string{report.ID}, enqueuer.ids)
	assert.Equal(t, []string{messaging.RoutingKeyReportCreated}, events.keys())

	profile, err := stores.Users.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, model.RoleCitizen, profile.Role)
	assert.Equal(t, 1, profile.ReportsCount)
}

func TestReportService_CreateValidation(t *testing.T) {
	testCases := []struct {
		name    string
		req     model.CreateReportRequest
		message string
	}{
		{
			name:    "missing description",
			req:     model.CreateReportRequest{Location: &model.Location{}, ReportType: model.ReportTypeTreeLoss},
			message: "Missing required fields",
		},
		{
			name:    "missing location",
			req:     model.CreateReportRequest{Description: "x", ReportType: model.ReportTypeTreeLoss},
			message: "Missing required fields",
		},
		{
			name:    "unknown type",
			req:     model.CreateReportRequest{Description: "x", Location: &model.Location{}, ReportType: "pothole"},
			message: "Invalid report type",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			stores := memory.New()
			enqueuer := &recordingEnqueuer{}
			svc := NewReportService(stores, &recordingPublisher{}, enqueuer)
			_, err := svc.CreateReport(ctx, model.Identity{UID: "u1"}, &tc.req)
			assertKind(t, err, model.ErrValidation, tc.message)
			assert.Empty(t, enqueuer.ids)

			reports, total, err := stores.Reports.List(ctx, model.ReportFilter{Page: 1, Limit: 10})
			require.NoError(t, err)
			assert.Empty(t, reports)
			assert.Zero(t, total)
			_, err = stores.Users.FindByID(ctx, "u1")
			assert.ErrorIs(t, err, model.ErrNotFound)
		})
	}
}

func TestReportService_UpdateStatus(t *testing.T) {
	testCases := []struct {
		name    string
		from    model.ReportStatus
		to      model.ReportStatus
		wantErr error
	}{
		{name: "review starts", from: model.StatusPendingReview, to: model.StatusUnderReview},
		{name: "approve", from: model.StatusUnderReview, to: model.StatusApproved},
		{name: "reject early", from: model.StatusPendingReview, to: model.StatusRejected},
		{name: "implement approved", from: model.StatusApproved, to: model.StatusImplemented},
		{name: "implement after review", from: model.StatusUnderReview, to: model.StatusImplemented},
		{name: "backwards", from: model.StatusApproved, to: model.StatusUnderReview, wantErr: model.ErrConflict},
		{name: "approve before analysis", from: model.StatusPendingAnalysis, to: model.StatusApproved, wantErr: model.ErrConflict},
		{name: "skip review", from: model.StatusPendingReview, to: model.StatusImplemented, wantErr: model.ErrConflict},
		{name: "out of terminal", from: model.StatusRejected, to: model.StatusApproved, wantErr: model.ErrConflict},
		{name: "not reviewable", from: model.StatusPendingReview, to: model.StatusPendingAnalysis, wantErr: model.ErrValidation},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			stores := memory.New()
			seedReport(t, stores, "r1", tc.from)
			events := &recordingPublisher{}
			svc := NewReportService(stores, events, &recordingEnqueuer{})

			err := svc.UpdateStatus(ctx, "expert", "r1", &model.UpdateStatusRequest{
				Status:       tc.to,
				ExpertReview: &model.ExpertReview{Note: "checked"},
			})
			report, findErr := stores.Reports.FindByID(ctx, "r1")
			require.NoError(t, findErr)

			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Equal(t, tc.from, report.Status)
				assert.Empty(t, events.events)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.to, report.Status)
			require.NotNil(t, report.ExpertReview)
			assert.Equal(t, "expert", report.ExpertReview.ReviewedBy)

			require.Len(t, events.events, 1)
			msg := events.events[0].event.(messaging.StatusUpdateMessage)
			assert.Equal(t, string(tc.from), msg.OldStatus)
			assert.Equal(t, "owner", msg.ReporterID)
		})
	}
}

func TestReportService_UpdateStatusUnknownReport(t *testing.T) {
	svc := NewReportService(memory.New(), &recordingPublisher{}, &recordingEnqueuer{})
	err := svc.UpdateStatus(context.Background(), "expert", "nope", &model.UpdateStatusRequest{Status: model.StatusApproved})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestReportService_Vote(t *testing.T) {
	ctx := context.Background()
	stores := memory.New()
	seedReport(t, stores, "r1", model.StatusPendingReview)
	require.NoError(t, stores.Users.RecordReport(ctx, model.Identity{UID: "voter"}))
	events := &recordingPublisher{}
	svc := NewReportService(stores, events, &recordingEnqueuer{})

	req := &model.VoteRequest{ReportID: "r1", VoteType: model.VoteUpvote}
	require.NoError(t, svc.Vote(ctx, "voter", req))
	assertKind(t, svc.Vote(ctx, "voter", req), model.ErrConflict, "User has already voted on this report")
	assert.ErrorIs(t, svc.Vote(ctx, "voter", &model.VoteRequest{ReportID: "missing", VoteType: model.VoteUpvote}), model.ErrNotFound)
	assertKind(t, svc.Vote(ctx, "voter", &model.VoteRequest{ReportID: "r1", VoteType: "meh"}), model.ErrValidation, "Invalid vote type")

	report, err := stores.Reports.FindByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Upvotes)
	assert.Equal(t, 0, report.Downvotes)

	voter, err := stores.Users.FindByID(ctx, "voter")
	require.NoError(t, err)
	assert.Equal(t, 1, voter.VotesCount)
	assert.Equal(t, []string{messaging.RoutingKeyVoteReceived}, events.keys())
}

func TestReportService_GetAndComment(t *testing.T) {
	ctx := context.Background()
	stores := memory.New()
	seedReport(t, stores, "r1", model.StatusPendingReview)
	svc := NewReportService(stores, &recordingPublisher{}, &recordingEnqueuer{})

	_, err := svc.AddComment(ctx, "u1", "r1", &model.CommentRequest{Text: "  "})
	assertKind(t, err, model.ErrValidation, "Comment text is required")
	_, err = svc.AddComment(ctx, "u1", "missing", &model.CommentRequest{Text: "hi"})
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = svc.AddComment(ctx, "u1", "r1", &model.CommentRequest{Text: "Seen it too"})
	require.NoError(t, err)

	detail, err := svc.GetReport(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, detail.Votes)
	require.Len(t, detail.Comments, 1)
	assert.Equal(t, "Seen it too", detail.Comments[0].Text)

	_, err = svc.GetReport(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestReportService_ListAndMap(t *testing.T) {
	ctx := context.Background()
	stores := memory.New()
	seedReport(t, stores, "r1", model.StatusApproved)
	seedReport(t, stores, "r2", model.StatusPendingReview)
	svc := NewReportService(stores, &recordingPublisher{}, &recordingEnqueuer{})

	list, err := svc.ListReports(ctx, model.ReportFilter{Status: model.StatusApproved})
	require.NoError(t, err)
	assert.Equal(t, model.Pagination{Page: 1, Limit: 10, Total: 1, Pages: 1}, list.Pagination)

	fc, err := svc.Map(ctx, model.ReportFilter{})
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)
	for _, f := range fc.Features {
		assert.True(t, f.Geometry.IsPoint())
		assert.NotEmpty(t, f.Properties["status"])
	}
}

func newSessionFixture(t *testing.T) (repository.Stores, *recordingPublisher, *SessionService) {
	t.Helper()
	stores := memory.New()
	seedReport(t, stores, "a1", model.StatusApproved)
	seedReport(t, stores, "a2", model.StatusApproved)
	seedReport(t, stores, "p1", model.StatusPendingReview)
	events := &recordingPublisher{}
	return stores, events, NewSessionService(stores, events)
}

func openSession(t *testing.T, svc *SessionService, reportIDs []string, minVotes int) *model.VotingSession {
	t.Helper()
	now := time.Now()
	session, err := svc.CreateSession(context.Background(), "authority", &model.CreateSessionRequest{
		Title:            "Canal greening",
		Description:      "Pick the next site",
		ReportIDs:        reportIDs,
		StartDate:        now.Add(-time.Hour),
		EndDate:          now.Add(time.Hour),
		MinVotesRequired: &minVotes,
	})
	require.NoError(t, err)
	return session
}

func TestSessionService_CreateRejectsInvalidReports(t *testing.T) {
	_, _, svc := newSessionFixture(t)
	now := time.Now()

	_, err := svc.CreateSession(context.Background(), "authority", &model.CreateSessionRequest{
		Title:       "Canal greening",
		Description: "Pick the next site",
		ReportIDs:   []string{"a1", "p1", "ghost", "a2"},
		StartDate:   now,
		EndDate:     now.Add(time.Hour),
	})
	assertKind(t, err, model.ErrValidation, "Some reports are invalid or not approved")

	var kindErr *model.KindError
	require.True(t, errors.As(err, &kindErr))
	assert.Equal(t, []string{"p1", "ghost"}, kindErr.Details["invalidReports"])
}

func TestSessionService_CreateValidation(t *testing.T) {
	_, _, svc := newSessionFixture(t)
	ctx := context.Background()

	_, err := svc.CreateSession(ctx, "authority", &model.CreateSessionRequest{Title: "t", Description: "d"})
	assertKind(t, err, model.ErrValidation, "Missing required fields")

	_, err = svc.CreateSession(ctx, "authority", &model.CreateSessionRequest{Title: "t", Description: "d", ReportIDs: []string{}})
	assertKind(t, err, model.ErrValidation, "At least one report must be included")
}

func TestSessionService_CreateDefaults(t *testing.T) {
	_, _, svc := newSessionFixture(t)
	now := time.Now()
	session, err := svc.CreateSession(context.Background(), "authority", &model.CreateSessionRequest{
		Title: "t", Description: "d", ReportIDs: []string{"a1"}, StartDate: now, EndDate: now.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, model.SessionActive, session.Status)
	assert.Equal(t, model.DefaultVotingType, session.VotingType)
	assert.Equal(t, model.DefaultMinVotesRequired, session.MinVotesRequired)
	assert.Zero(t, session.TotalVotes)
}

func TestSessionService_VoteCompletesAtThreshold(t *testing.T) {
	ctx := context.Background()
	stores, events, svc := newSessionFixture(t)
	session := openSession(t, svc, []string{"a1", "a2"}, 2)

	resp, err := svc.Vote(ctx, "u1", &model.SessionVoteRequest{SessionID: session.ID, Vote: model.BallotSupport, ReportID: "a1"})
	require.NoError(t, err)
	assert.Equal(t, model.SessionActive, resp.SessionStatus)

	_, err = svc.Vote(ctx, "u1", &model.SessionVoteRequest{SessionID: session.ID, Vote: model.BallotOppose})
	assertKind(t, err, model.ErrConflict, "User has already voted in this session")

	resp, err = svc.Vote(ctx, "u2", &model.SessionVoteRequest{SessionID: session.ID, Vote: model.BallotOppose, ReportID: "a2"})
	require.NoError(t, err)
	assert.Equal(t, model.SessionCompleted, resp.SessionStatus)
	assert.Equal(t, "Vote recorded successfully", resp.Message)

	stored, err := stores.Sessions.FindByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionCompleted, stored.Status)
	assert.Equal(t, 2, stored.TotalVotes)
	assert.NotNil(t, stored.CompletedAt)

	require.Equal(t, []string{messaging.RoutingKeySessionCompleted}, events.keys())
	msg := events.events[0].event.(messaging.SessionCompletedMessage)
	assert.Equal(t, "threshold", msg.Reason)
	assert.Equal(t, "authority", msg.CreatedBy)

	_, err = svc.Vote(ctx, "u3", &model.SessionVoteRequest{SessionID: session.ID, Vote: model.BallotSupport})
	assertKind(t, err, model.ErrValidation, "Voting session is not active")
}

func TestSessionService_VoteValidation(t *testing.T) {
	ctx := context.Background()
	stores, _, svc := newSessionFixture(t)
	session := openSession(t, svc, []string{"a1"}, 5)

	future := &model.VotingSession{
		ID: "later", Title: "later", ReportIDs: []string{"a1"}, Status: model.SessionActive,
		StartDate: time.Now().Add(time.Hour), EndDate: time.Now().Add(2 * time.Hour), MinVotesRequired: 1,
	}
	require.NoError(t, stores.Sessions.Create(ctx, future))

	testCases := []struct {
		name    string
		req     model.SessionVoteRequest
		kind    error
		message string
	}{
		{"missing vote", model.SessionVoteRequest{SessionID: session.ID}, model.ErrValidation, "Session ID and vote are required"},
		{"bad vote", model.SessionVoteRequest{SessionID: session.ID, Vote: "maybe"}, model.ErrValidation, "Invalid vote type"},
		{"unknown session", model.SessionVoteRequest{SessionID: "ghost", Vote: model.BallotSupport}, model.ErrNotFound, ""},
		{"not open yet", model.SessionVoteRequest{SessionID: "later", Vote: model.BallotSupport}, model.ErrValidation, "Voting is not currently open"},
		{"foreign report", model.SessionVoteRequest{SessionID: session.ID, Vote: model.BallotSupport, ReportID: "a2"}, model.ErrValidation, "Report ID is not part of this voting session"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Vote(ctx, "u1", &tc.req)
			assertKind(t, err, tc.kind, tc.message)
		})
	}
}

func TestSessionService_ListShowsCallerBallot(t *testing.T) {
	ctx := context.Background()
	_, _, svc := newSessionFixture(t)
	session := openSession(t, svc, []string{"a1", "a2"}, 10)
	_, err := svc.Vote(ctx, "u1", &model.SessionVoteRequest{SessionID: session.ID, Vote: model.BallotAbstain})
	require.NoError(t, err)

	list, err := svc.ListSessions(ctx, "u1", model.SessionFilter{})
	require.NoError(t, err)
	require.Len(t, list.Sessions, 1)
	view := list.Sessions[0]
	assert.Len(t, view.Reports, 2)
	assert.True(t, view.UserHasVoted)
	require.NotNil(t, view.UserVote)
	assert.Equal(t, model.BallotAbstain, *view.UserVote)

	list, err = svc.ListSessions(ctx, "u2", model.SessionFilter{})
	require.NoError(t, err)
	assert.False(t, list.Sessions[0].UserHasVoted)
	assert.Nil(t, list.Sessions[0].UserVote)
}

func TestSessionService_Results(t *testing.T) {
	ctx := context.Background()
	_, _, svc := newSessionFixture(t)

	multi := openSession(t, svc, []string{"a1", "a2"}, 10)
	for uid, req := range map[string]model.SessionVoteRequest{
		"u1": {SessionID: multi.ID, Vote: model.BallotSupport, ReportID: "a1"},
		"u2": {SessionID: multi.ID, Vote: model.BallotOppose, ReportID: "a1"},
		"u3": {SessionID: multi.ID, Vote: model.BallotSupport},
	} {
		req := req
		_, err := svc.Vote(ctx, uid, &req)
		require.NoError(t, err)
	}

	results, err := svc.GetResults(ctx, multi.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, results.TotalVotes)
	assert.Equal(t, model.VoteBreakdown{Support: 2, Oppose: 1}, results.VoteBreakdown)
	assert.Equal(t, model.VoteBreakdown{Total: 2, Support: 1, Oppose: 1}, results.ReportBreakdown["a1"])
	assert.Equal(t, model.VoteBreakdown{}, results.ReportBreakdown["a2"])

	single := openSession(t, svc, []string{"a1"}, 10)
	results, err = svc.GetResults(ctx, single.ID)
	require.NoError(t, err)
	assert.Empty(t, results.ReportBreakdown)
	assert.Empty(t, results.Votes)
}

func TestSessionService_Close(t *testing.T) {
	ctx := context.Background()
	stores, events, svc := newSessionFixture(t)
	session := openSession(t, svc, []string{"a1"}, 10)

	assertKind(t, svc.CloseSession(ctx, "authority", session.ID, &model.CloseSessionRequest{Status: model.SessionActive}), model.ErrValidation, "Invalid status")
	assert.ErrorIs(t, svc.CloseSession(ctx, "authority", "ghost", &model.CloseSessionRequest{Status: model.SessionCancelled}), model.ErrNotFound)

	require.NoError(t, svc.CloseSession(ctx, "authority", session.ID, &model.CloseSessionRequest{Status: model.SessionCancelled, Reason: "flooded"}))
	stored, err := stores.Sessions.FindByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionCancelled, stored.Status)
	assert.Equal(t, "authority", stored.ClosedBy)
	assert.Equal(t, "flooded", stored.ClosureReason)
	assert.NotNil(t, stored.ClosedAt)

	err = svc.CloseSession(ctx, "authority", session.ID, &model.CloseSessionRequest{Status: model.SessionCompleted})
	assertKind(t, err, model.ErrConflict, "Voting session is not active")

	require.Equal(t, []string{messaging.RoutingKeySessionCompleted}, events.keys())
	assert.Equal(t, "closed", events.events[0].event.(messaging.SessionCompletedMessage).Reason)
}

func newUserService(allowPrivileged bool) (repository.Stores, *auth.TokenService, *UserService) {
	stores := memory.New()
	tokens := auth.NewTokenService(config.JWTConfig{Secret: "test-secret"})
	return stores, tokens, NewUserService(stores.Users, tokens, allowPrivileged)
}

func TestUserService_Register(t *testing.T) {
	testCases := []struct {
		name            string
		req             model.RegisterRequest
		allowPrivileged bool
		kind            error
		message         string
	}{
		{name: "citizen by default", req: model.RegisterRequest{Email: "Ana@Example.com", Password: "longenough", FullName: "Ana"}},
		{name: "privileged allowed", req: model.RegisterRequest{Email: "e@x.io", Password: "longenough", FullName: "E", Role: model.RoleExpert}, allowPrivileged: true},
		{name: "privileged refused", req: model.RegisterRequest{Email: "e@x.io", Password: "longenough", FullName: "E", Role: model.RoleAuthority}, kind: model.ErrForbidden},
		{name: "missing name", req: model.RegisterRequest{Email: "e@x.io", Password: "longenough"}, kind: model.ErrValidation, message: "Email, password, and full name are required"},
		{name: "bad role", req: model.RegisterRequest{Email: "e@x.io", Password: "longenough", FullName: "E", Role: "mayor"}, kind: model.ErrValidation, message: "Invalid role"},
		{name: "bad email", req: model.RegisterRequest{Email: "nope", Password: "longenough", FullName: "E"}, kind: model.ErrValidation, message: "Invalid email format"},
		{name: "short password", req: model.RegisterRequest{Email: "e@x.io", Password: "short", FullName: "E"}, kind: model.ErrValidation, message: "Password must be at least 8 characters long"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, tokens, svc := newUserService(tc.allowPrivileged)
			resp, err := svc.Register(context.Background(), &tc.req)
			if tc.kind != nil {
				assertKind(t, err, tc.kind, tc.message)
				return
			}
			require.NoError(t, err)

			identity, err := tokens.Verify(resp.Token)
			require.NoError(t, err)
			assert.Equal(t, resp.User.UID, identity.UID)
			assert.NotEmpty(t, resp.User.PasswordHash)
		})
	}
}

func TestUserService_RegisterDuplicateAndLogin(t *testing.T) {
	ctx := context.Background()
	_, _, svc := newUserService(false)
	req := &model.RegisterRequest{Email: "ana@example.com", Password: "longenough", FullName: "Ana"}

	_, err := svc.Register(ctx, req)
	require.NoError(t, err)
	_, err = svc.Register(ctx, req)
	assertKind(t, err, model.ErrConflict, "Email already exists")

	resp, err := svc.Login(ctx, &model.LoginRequest{Email: "ANA@example.com", Password: "longenough"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)

	_, err = svc.Login(ctx, &model.LoginRequest{Email: "ana@example.com", Password: "wrong-pass"})
	assertKind(t, err, model.ErrUnauthenticated, "Invalid credentials")
	_, err = svc.Login(ctx, &model.LoginRequest{Email: "who@example.com", Password: "longenough"})
	assertKind(t, err, model.ErrUnauthenticated, "Invalid credentials")
	_, err = svc.Login(ctx, &model.LoginRequest{Email: "ana@example.com"})
	assertKind(t, err, model.ErrValidation, "Email and password are required")
}

func TestUserService_ProfileAndRole(t *testing.T) {
	ctx := context.Background()
	stores, _, svc := newUserService(false)
	require.NoError(t, stores.Users.RecordReport(ctx, model.Identity{UID: "u1", Email: "u1@example.com"}))

	_, err := svc.GetProfile(ctx, "ghost")
	assertKind(t, err, model.ErrNotFound, "User profile not found")

	name := "Budi"
	updated, err := svc.UpdateProfile(ctx, "u1", &model.UpdateProfileRequest{
		FullName: &name,
		Profile:  &model.UserProfileDetails{Bio: "gardener"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Budi", updated.FullName)
	assert.Equal(t, "gardener", updated.Profile.Bio)
	assert.Equal(t, model.DefaultPreferences(), updated.Preferences)

	assertKind(t, svc.UpdateRole(ctx, &model.UpdateRoleRequest{TargetUserID: "u1"}), model.ErrValidation, "Target user ID and new role are required")
	assertKind(t, svc.UpdateRole(ctx, &model.UpdateRoleRequest{TargetUserID: "u1", NewRole: "mayor"}), model.ErrValidation, "Invalid role")
	assert.ErrorIs(t, svc.UpdateRole(ctx, &model.UpdateRoleRequest{TargetUserID: "ghost", NewRole: model.RoleExpert}), model.ErrNotFound)
	require.NoError(t, svc.UpdateRole(ctx, &model.UpdateRoleRequest{TargetUserID: "u1", NewRole: model.RoleExpert}))

	list, err := svc.ListUsers(ctx, model.UserFilter{Role: model.RoleExpert})
	require.NoError(t, err)
	require.Len(t, list.Users, 1)
	assert.Equal(t, 20, list.Pagination.Limit)
}

func TestUserService_Delete(t *testing.T) {
	ctx := context.Background()
	stores, _, svc := newUserService(false)
	for _, uid := range []string{"self", "other", "boss"} {
		require.NoError(t, stores.Users.RecordReport(ctx, model.Identity{UID: uid}))
	}
	require.NoError(t, stores.Users.UpdateRole(ctx, "boss", model.RoleAuthority))

	assert.ErrorIs(t, svc.DeleteUser(ctx, "self", "other"), model.ErrForbidden)
	require.NoError(t, svc.DeleteUser(ctx, "self", "self"))
	require.NoError(t, svc.DeleteUser(ctx, "boss", "other"))
	assertKind(t, svc.DeleteUser(ctx, "boss", "other"), model.ErrNotFound, "User profile not found")
}

func TestPartnerService(t *testing.T) {
	ctx := context.Background()
	svc := NewPartnerService(memory.New().Partners)

	_, err := svc.CreatePartner(ctx, "boss", &model.CreatePartnerRequest{Name: "Tree Fund"})
	assertKind(t, err, model.ErrValidation, "Name and type are required")
	_, err = svc.CreatePartner(ctx, "boss", &model.CreatePartnerRequest{Name: "Tree Fund", Type: "club"})
	assert.ErrorIs(t, err, model.ErrValidation)

	for _, name := range []string{"Zeta Corp", "Alpha NGO"} {
		_, err := svc.CreatePartner(ctx, "boss", &model.CreatePartnerRequest{Name: name, Type: model.PartnerNGO})
		require.NoError(t, err)
	}
	partners, err := svc.ListPartners(ctx)
	require.NoError(t, err)
	require.Len(t, partners, 2)
	assert.Equal(t, "Alpha NGO", partners[0].Name)
	assert.NotNil(t, partners[0].Contributions)
}

func analyzerReplying(reply string, err error) *ai.Analyzer {
	return ai.NewAnalyzer(ai.TextGeneratorFunc(func(context.Context, string) (string, error) {
		return reply, err
	}), nil)
}

func TestAnalysisService_Analyze(t *testing.T) {
	ctx := context.Background()
	stores := memory.New()
	seedReport(t, stores, "r1", model.StatusPendingReview)
	svc := NewAnalysisService(stores, analyzerReplying(
		`{"feasibilityScore":81,"cooling_impact":"High","recommendations":["a","b","c","d"]}`, nil))

	_, err := svc.Analyze(ctx, "expert", &model.AnalyzeRequest{ReportID: "r1"})
	assertKind(t, err, model.ErrValidation, "Missing required fields")
	_, err = svc.GetAnalysis(ctx, "r1")
	assertKind(t, err, model.ErrNotFound, "No analysis found for this report")

	record, err := svc.Analyze(ctx, "expert", &model.AnalyzeRequest{
		ReportID: "r1", ReportType: model.ReportTypeUnusedSpace, Location: &model.Location{Lat: 1, Lng: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, 81.0, record.FeasibilityScore)
	assert.Equal(t, 90.0, record.ImpactScore)
	assert.Equal(t, "completed", record.Status)

	latest, err := svc.GetAnalysis(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, record.ID, latest.ID)

	report, err := stores.Reports.FindByID(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, report.AIAnalysis)
	assert.Equal(t, []string{"a", "b", "c"}, report.AIAnalysis.Recommendations)
	assert.Equal(t, model.StatusPendingReview, report.Status)
}

func TestAnalysisService_Batch(t *testing.T) {
	ctx := context.Background()
	stores := memory.New()
	seedReport(t, stores, "r1", model.StatusApproved)
	seedReport(t, stores, "r2", model.StatusApproved)
	svc := NewAnalysisService(stores, analyzerReplying("", errors.New("quota")))

	_, err := svc.BatchAnalyze(ctx, &model.BatchAnalyzeRequest{})
	assertKind(t, err, model.ErrValidation, "Report IDs array is required")
	_, err = svc.BatchAnalyze(ctx, &model.BatchAnalyzeRequest{ReportIDs: make([]string, 11)})
	assertKind(t, err, model.ErrValidation, "Cannot analyze more than 10 reports at once")

	results, err := svc.BatchAnalyze(ctx, &model.BatchAnalyzeRequest{ReportIDs: []string{"r1", "ghost", "r2"}})
	require.NoError(t, err)
	assert.Equal(t, []model.BatchResult{
		{ReportID: "r1", Success: true},
		{ReportID: "ghost", Error: "Report not found"},
		{ReportID: "r2", Success: true},
	}, results)

	report, err := stores.Reports.FindByID(ctx, "r2")
	require.NoError(t, err)
	assert.Equal(t, 50.0, report.AIAnalysis.FeasibilityScore)
	_, err = svc.GetAnalysis(ctx, "r2")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestNotificationService(t *testing.T) {
	ctx := context.Background()
	stores := memory.New()
	hub := messaging.NewSSEHub()
	go hub.Run()
	defer hub.Stop()
	svc := NewNotificationService(stores.Notifications, hub)

	for i, id := range []string{"n1", "n2"} {
		require.NoError(t, stores.Notifications.Create(ctx, &model.Notification{
			ID: id, UserID: "u1", Title: "t", CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
		}))
	}

	list, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, list.UnreadCount)
	assert.Equal(t, "n2", list.Notifications[0].ID)

	assert.ErrorIs(t, svc.MarkAsRead(ctx, "u2", "n1"), model.ErrNotFound)
	require.NoError(t, svc.MarkAsRead(ctx, "u1", "n1"))
	list, err = svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, list.UnreadCount)

	require.NoError(t, svc.MarkAllAsRead(ctx, "u1"))
	list, err = svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, list.UnreadCount)

	client := svc.Subscribe("u1")
	assert.Eventually(t, func() bool { return hub.ClientCount("u1") == 1 }, time.Second, 10*time.Millisecond)
	svc.Unsubscribe(client)
	_, open := <-client.Channel
	assert.False(t, open)
}
