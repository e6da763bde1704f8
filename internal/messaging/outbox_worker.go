package messaging

import (
	"context"
	"sync"
	"time"

	"greencity/internal/metrics"
	"greencity/internal/repository"

	"github.com/apex/log"
)

const (
	workerInterval     = 1 * time.Second
	batchSize          = 50
	claimLease         = 2 * time.Minute
	cleanupInterval    = 1 * time.Hour
	publishedRetention = 24 * time.Hour
)

// RawPublisher sends an encoded payload under a fixed message id.
type RawPublisher interface {
	PublishRaw(ctx context.Context, messageID, routingKey string, body []byte) error
}

// OutboxWorker relays pending outbox rows to the broker.
type OutboxWorker struct {
	outbox    repository.OutboxStore
	publisher RawPublisher
	done      chan struct{}
	wg        sync.WaitGroup
}

func NewOutboxWorker(outbox repository.OutboxStore, publisher RawPublisher) *OutboxWorker {
	return &OutboxWorker{
		outbox:    outbox,
		publisher: publisher,
		done:      make(chan struct{}),
	}
}

func (w *OutboxWorker) Start() {
	w.wg.Add(2)
	go w.processLoop()
	go w.cleanupLoop()
	log.Info("outbox: started")
}

func (w *OutboxWorker) processLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(workerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.processPending(context.Background())
		}
	}
}

// processPending publishes one batch. The outbox row id doubles as the
// message id so consumers can drop duplicates after a partial failure.
func (w *OutboxWorker) processPending(ctx context.Context) {
	messages, err := w.outbox.Claim(ctx, batchSize, claimLease)
	if err != nil {
		log.WithError(err).Error("outbox: claim")
		return
	}

	for _, msg := range messages {
		if err := w.publisher.PublishRaw(ctx, msg.ID, msg.RoutingKey, msg.Payload); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"id":        msg.ID,
				"aggregate": msg.AggregateType + "/" + msg.AggregateID,
			}).Warn("outbox: publish")
			metrics.OutboxRelayTotal.WithLabelValues(metrics.ResultError).Inc()
			if err := w.outbox.MarkAsFailed(ctx, msg.ID, err.Error()); err != nil {
				log.WithError(err).WithField("id", msg.ID).Error("outbox: mark failed")
			}
			continue
		}

		metrics.OutboxRelayTotal.WithLabelValues(metrics.ResultSuccess).Inc()
		if err := w.outbox.MarkAsPublished(ctx, msg.ID); err != nil {
			log.WithError(err).WithField("id", msg.ID).Error("outbox: mark published")
		}
	}
}

func (w *OutboxWorker) cleanupLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			deleted, err := w.outbox.DeletePublished(context.Background(), publishedRetention)
			if err != nil {
				log.WithError(err).Error("outbox: cleanup")
			} else if deleted > 0 {
				log.Infof("outbox: cleaned %d old messages", deleted)
			}
		}
	}
}

func (w *OutboxWorker) Stop() {
	close(w.done)
	w.wg.Wait()
	log.Info("outbox: stopped")
}

func (w *OutboxWorker) Stats(ctx context.Context) (map[string]int, error) {
	return w.outbox.Stats(ctx)
}
