package messaging

import (
	"context"

	"greencity/internal/repository"
)

const (
	ExchangeName = "greencity.events"
	QueueName    = "greencity.notifications"

	RoutingKeyReportCreated    = "report.created"
	RoutingKeyStatusUpdate     = "report.status.updated"
	RoutingKeyVoteReceived     = "report.vote.received"
	RoutingKeyReportAnalyzed   = "report.analyzed"
	RoutingKeySessionCompleted = "session.completed"
)

// RoutingKeys lists every event the service emits.
var RoutingKeys = []string{
	RoutingKeyReportCreated,
	RoutingKeyStatusUpdate,
	RoutingKeyVoteReceived,
	RoutingKeyReportAnalyzed,
	RoutingKeySessionCompleted,
}

type ReportCreatedMessage struct {
	ReportID    string `json:"report_id"`
	ReportTitle string `json:"report_title"`
	ReportType  string `json:"report_type"`
	ReporterID  string `json:"reporter_id"`
	Timestamp   int64  `json:"timestamp"`
}

type StatusUpdateMessage struct {
	ReportID    string `json:"report_id"`
	ReportTitle string `json:"report_title"`
	OldStatus   string `json:"old_status"`
	NewStatus   string `json:"new_status"`
	ReporterID  string `json:"reporter_id"`
	ReviewerID  string `json:"reviewer_id"`
	Timestamp   int64  `json:"timestamp"`
}

type VoteReceivedMessage struct {
	ReportID    string `json:"report_id"`
	ReportTitle string `json:"report_title"`
	ReporterID  string `json:"reporter_id"`
	VoterID     string `json:"voter_id"`
	VoteType    string `json:"vote_type"`
	Timestamp   int64  `json:"timestamp"`
}

type ReportAnalyzedMessage struct {
	ReportID           string  `json:"report_id"`
	ReportTitle        string  `json:"report_title"`
	ReporterID         string  `json:"reporter_id"`
	ReportType         string  `json:"report_type"`
	OriginalReportType string  `json:"original_report_type,omitempty"`
	FeasibilityScore   float64 `json:"feasibility_score"`
	Fallback           bool    `json:"fallback"`
	Timestamp          int64   `json:"timestamp"`
}

type SessionCompletedMessage struct {
	SessionID    string `json:"session_id"`
	SessionTitle string `json:"session_title"`
	CreatedBy    string `json:"created_by"`
	Status       string `json:"status"`
	TotalVotes   int    `json:"total_votes"`
	// Reason is "threshold" for automatic completion or "closed".
	Reason    string `json:"reason"`
	Timestamp int64  `json:"timestamp"`
}

// Delivery is a broker-neutral view of one event.
type Delivery struct {
	MessageID  string
	RoutingKey string
	Body       []byte
}

// Publisher emits domain events. Implementations marshal the event as JSON.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event interface{}) error
}

// Handler consumes one delivered event.
type Handler interface {
	Handle(ctx context.Context, d Delivery) error
}

// OutboxPublisher stores events in the outbox table; the OutboxWorker relays
// them to the broker.
type OutboxPublisher struct {
	outbox repository.OutboxStore
}

func NewOutboxPublisher(outbox repository.OutboxStore) *OutboxPublisher {
	return &OutboxPublisher{outbox: outbox}
}

func (p *OutboxPublisher) Publish(ctx context.Context, routingKey string, event interface{}) error {
	aggregateType, aggregateID := aggregateOf(event)
	return p.outbox.Append(ctx, repository.OutboxEntry{
		RoutingKey:    routingKey,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Payload:       event,
	})
}

const (
	AggregateReport  = "report"
	AggregateSession = "session"
)

// aggregateOf names the report or session an event belongs to.
func aggregateOf(event interface{}) (string, string) {
	switch e := event.(type) {
	case ReportCreatedMessage:
		return AggregateReport, e.ReportID
	case StatusUpdateMessage:
		return AggregateReport, e.ReportID
	case VoteReceivedMessage:
		return AggregateReport, e.ReportID
	case ReportAnalyzedMessage:
		return AggregateReport, e.ReportID
	case SessionCompletedMessage:
		return AggregateSession, e.SessionID
	}
	return "", ""
}
