package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"greencity/internal/metrics"
	"greencity/internal/model"
	"greencity/internal/repository"

	"github.com/apex/log"
	"github.com/avast/retry-go"
	"github.com/google/uuid"
)

const (
	maxRetryAttempts = 3
	initialDelay     = 1 * time.Second
	maxDelay         = 30 * time.Second
)

// Dispatcher turns domain events into stored notifications and pushes them
// to connected SSE clients. It is the single consumer behind both the
// RabbitMQ consumer and the in-process bus.
type Dispatcher struct {
	notifications repository.NotificationStore
	hub           *SSEHub
	attempts      uint
	delay         time.Duration
	now           func() time.Time
}

func NewDispatcher(notifications repository.NotificationStore, hub *SSEHub) *Dispatcher {
	return &Dispatcher{
		notifications: notifications,
		hub:           hub,
		attempts:      maxRetryAttempts,
		delay:         initialDelay,
		now:           time.Now,
	}
}

// Handle processes one delivery at most once per message id. Handler
// failures are retried with backoff; the final error is returned so the
// transport can dead-letter the message.
func (d *Dispatcher) Handle(ctx context.Context, msg Delivery) error {
	handler, ok := d.handlerFor(msg.RoutingKey)
	if !ok {
		metrics.EventsHandledTotal.WithLabelValues(msg.RoutingKey, "unknown").Inc()
		return fmt.Errorf("unknown routing key %q", msg.RoutingKey)
	}

	logger := log.WithFields(log.Fields{"routing_key": msg.RoutingKey, "message_id": msg.MessageID})

	if msg.MessageID != "" {
		first, err := d.notifications.MarkProcessed(ctx, msg.MessageID)
		if err != nil {
			logger.WithError(err).Warn("events: idempotency check failed")
		} else if !first {
			logger.Info("events: already processed")
			metrics.EventsHandledTotal.WithLabelValues(msg.RoutingKey, "duplicate").Inc()
			return nil
		}
	}

	err := retry.Do(
		func() error {
			return handler(ctx, msg.Body)
		},
		retry.Attempts(d.attempts),
		retry.Delay(d.delay),
		retry.MaxDelay(maxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.WithError(err).Warnf("events: retry %d", n+1)
		}),
	)
	if err != nil {
		logger.WithError(err).Error("events: handler failed")
		metrics.EventsHandledTotal.WithLabelValues(msg.RoutingKey, metrics.ResultError).Inc()
		return err
	}

	metrics.EventsHandledTotal.WithLabelValues(msg.RoutingKey, metrics.ResultSuccess).Inc()
	return nil
}

func (d *Dispatcher) handlerFor(routingKey string) (func(context.Context, []byte) error, bool) {
	switch routingKey {
	case RoutingKeyReportCreated:
		return d.handleReportCreated, true
	case RoutingKeyStatusUpdate:
		return d.handleStatusUpdate, true
	case RoutingKeyVoteReceived:
		return d.handleVoteReceived, true
	case RoutingKeyReportAnalyzed:
		return d.handleReportAnalyzed, true
	case RoutingKeySessionCompleted:
		return d.handleSessionCompleted, true
	}
	return nil, false
}

// decode logs and swallows malformed payloads; retrying cannot fix them.
func decode(body []byte, v interface{}, event string) bool {
	if err := json.Unmarshal(body, v); err != nil {
		log.WithError(err).Warnf("%s: bad json", event)
		return false
	}
	return true
}

func (d *Dispatcher) notify(ctx context.Context, n *model.Notification) error {
	n.ID = uuid.NewString()
	n.CreatedAt = d.now()
	if err := d.notifications.Create(ctx, n); err != nil {
		return err
	}
	if d.hub != nil {
		d.hub.SendToUser(n)
	}
	return nil
}

func (d *Dispatcher) handleReportCreated(_ context.Context, body []byte) error {
	var msg ReportCreatedMessage
	if !decode(body, &msg, "report_created") {
		return nil
	}
	log.WithFields(log.Fields{
		"report": msg.ReportID,
		"type":   msg.ReportType,
		"user":   msg.ReporterID,
	}).Info("report_created")
	return nil
}

func (d *Dispatcher) handleStatusUpdate(ctx context.Context, body []byte) error {
	var msg StatusUpdateMessage
	if !decode(body, &msg, "status_update") || msg.ReporterID == "" {
		return nil
	}
	return d.notify(ctx, &model.Notification{
		UserID:   msg.ReporterID,
		ReportID: msg.ReportID,
		Title:    "Report status updated",
		Message:  fmt.Sprintf("Your report %q is now %s", msg.ReportTitle, msg.NewStatus),
	})
}

func (d *Dispatcher) handleVoteReceived(ctx context.Context, body []byte) error {
	var msg VoteReceivedMessage
	if !decode(body, &msg, "vote") {
		return nil
	}
	// skip self votes
	if msg.ReporterID == "" || msg.ReporterID == msg.VoterID {
		return nil
	}
	return d.notify(ctx, &model.Notification{
		UserID:   msg.ReporterID,
		ReportID: msg.ReportID,
		Title:    "Your report received an " + msg.VoteType,
		Message:  fmt.Sprintf("Someone gave your report %q an %s", msg.ReportTitle, msg.VoteType),
	})
}

func (d *Dispatcher) handleReportAnalyzed(ctx context.Context, body []byte) error {
	var msg ReportAnalyzedMessage
	if !decode(body, &msg, "report_analyzed") || msg.ReporterID == "" {
		return nil
	}
	text := fmt.Sprintf("Your report %q was analyzed with a feasibility score of %.0f", msg.ReportTitle, msg.FeasibilityScore)
	if msg.Fallback {
		text = fmt.Sprintf("Automatic analysis of your report %q was unavailable; it will be reviewed manually", msg.ReportTitle)
	} else if msg.OriginalReportType != "" {
		text += fmt.Sprintf(" and recategorized from %s to %s", msg.OriginalReportType, msg.ReportType)
	}
	return d.notify(ctx, &model.Notification{
		UserID:   msg.ReporterID,
		ReportID: msg.ReportID,
		Title:    "Report analysis complete",
		Message:  text,
	})
}

func (d *Dispatcher) handleSessionCompleted(ctx context.Context, body []byte) error {
	var msg SessionCompletedMessage
	if !decode(body, &msg, "session_completed") || msg.CreatedBy == "" {
		return nil
	}
	return d.notify(ctx, &model.Notification{
		UserID:    msg.CreatedBy,
		SessionID: msg.SessionID,
		Title:     "Voting session " + msg.Status,
		Message:   fmt.Sprintf("Voting session %q is %s with %d votes", msg.SessionTitle, msg.Status, msg.TotalVotes),
	})
}
