package repository

import (
	"context"
	"encoding/json"
	"time"

	"greencity/internal/model"
)

// Stores groups every repository the services need. Both the postgres and
// the in-memory backends fill all of it.
type Stores struct {
	Reports       ReportStore
	Votes         VoteStore
	Comments      CommentStore
	Users         UserStore
	Sessions      SessionStore
	Partners      PartnerStore
	Analyses      AnalysisStore
	Notifications NotificationStore
	Outbox        OutboxStore
}

// Lookups return an error wrapping model.ErrNotFound when nothing matches.
type ReportStore interface {
	Create(ctx context.Context, report *model.Report) error
	FindByID(ctx context.Context, id string) (*model.Report, error)
	// List returns one page newest first and the total for the filter.
	// A zero Limit returns every match.
	List(ctx context.Context, filter model.ReportFilter) ([]model.Report, int, error)
	UpdateStatus(ctx context.Context, id string, status model.ReportStatus, review *model.ExpertReview) error
	IncrementVote(ctx context.Context, id string, voteType model.VoteType) error
	// ApplyEnrichment stores the analysis, applies an optional category
	// override and moves pending_analysis to pending_review.
	ApplyEnrichment(ctx context.Context, id string, analysis *model.Analysis, override *model.ReportType) error
	// AdvanceFromAnalysis moves pending_analysis to pending_review and
	// leaves any other status alone.
	AdvanceFromAnalysis(ctx context.Context, id string) error
	SetAnalysisSummary(ctx context.Context, id string, summary *model.Analysis) error
}

type VoteStore interface {
	// FindVote returns nil, nil when the user has not voted.
	FindVote(ctx context.Context, reportID, userID string) (*model.ReportVote, error)
	CreateVote(ctx context.Context, vote *model.ReportVote) error
	ListVotes(ctx context.Context, reportID string) ([]model.ReportVote, error)
}

type CommentStore interface {
	CreateComment(ctx context.Context, comment *model.Comment) error
	// ListComments returns newest first.
	ListComments(ctx context.Context, reportID string) ([]model.Comment, error)
}

type UserStore interface {
	// Create fails with model.ErrConflict when the email is taken.
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, uid string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// RecordReport increments reportsCount, creating a citizen profile from
	// the identity when none exists.
	RecordReport(ctx context.Context, identity model.Identity) error
	IncrementVotesCount(ctx context.Context, uid string) error
	UpdateProfile(ctx context.Context, user *model.User) error
	UpdateRole(ctx context.Context, uid string, role model.Role) error
	List(ctx context.Context, filter model.UserFilter) ([]model.User, int, error)
	Delete(ctx context.Context, uid string) error
}

type SessionStore interface {
	Create(ctx context.Context, session *model.VotingSession) error
	FindByID(ctx context.Context, id string) (*model.VotingSession, error)
	List(ctx context.Context, filter model.SessionFilter) ([]model.VotingSession, int, error)
	FindVote(ctx context.Context, sessionID, userID string) (*model.SessionVote, error)
	CreateVote(ctx context.Context, vote *model.SessionVote) error
	ListVotes(ctx context.Context, sessionID string) ([]model.SessionVote, error)
	// IncrementTally bumps totalVotes and the counter for choice.
	IncrementTally(ctx context.Context, sessionID string, choice model.BallotChoice) error
	// Complete moves an active session to completed. It reports false when
	// the session was no longer active.
	Complete(ctx context.Context, id string, at time.Time) (bool, error)
	// Close ends an active session with status, stamping closedBy/closedAt.
	Close(ctx context.Context, id string, status model.SessionStatus, by, reason string, at time.Time) (bool, error)
}

type PartnerStore interface {
	Create(ctx context.Context, partner *model.Partner) error
	// List returns partners ordered by name.
	List(ctx context.Context) ([]model.Partner, error)
}

type AnalysisStore interface {
	Create(ctx context.Context, record *model.AnalysisRecord) error
	Latest(ctx context.Context, reportID string) (*model.AnalysisRecord, error)
}

type NotificationStore interface {
	Create(ctx context.Context, notification *model.Notification) error
	ListByUser(ctx context.Context, userID string, limit int) ([]model.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkAsRead(ctx context.Context, id, userID string) error
	MarkAllAsRead(ctx context.Context, userID string) error
	// MarkProcessed records a delivered event id. It reports false when the
	// id was already recorded.
	MarkProcessed(ctx context.Context, messageID string) (bool, error)
}

// OutboxEntry is one domain event waiting to be relayed. AggregateType and
// AggregateID name the report or session the event belongs to.
type OutboxEntry struct {
	RoutingKey    string
	AggregateType string
	AggregateID   string
	Payload       interface{}
}

type OutboxMessage struct {
	ID            string          `json:"id"`
	RoutingKey    string          `json:"routing_key"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"created_at"`
	ClaimedAt     *time.Time      `json:"claimed_at,omitempty"`
	PublishedAt   *time.Time      `json:"published_at,omitempty"`
	RetryCount    int             `json:"retry_count"`
	LastError     *string         `json:"last_error,omitempty"`
	Status        string          `json:"status"`
}

const (
	OutboxPending   = "pending"
	OutboxRelaying  = "relaying"
	OutboxPublished = "published"
	OutboxFailed    = "failed"

	// MaxOutboxRetries is how many failed relays a message gets before it is
	// parked as failed.
	MaxOutboxRetries = 5
)

type OutboxStore interface {
	Append(ctx context.Context, entry OutboxEntry) error
	// Claim moves up to limit messages to relaying, oldest first, and returns
	// them. Relaying messages whose claim is older than lease are taken over.
	Claim(ctx context.Context, limit int, lease time.Duration) ([]OutboxMessage, error)
	MarkAsPublished(ctx context.Context, id string) error
	// MarkAsFailed releases the claim and counts a retry.
	MarkAsFailed(ctx context.Context, id string, errMsg string) error
	DeletePublished(ctx context.Context, olderThan time.Duration) (int64, error)
	Stats(ctx context.Context) (map[string]int, error)
}
