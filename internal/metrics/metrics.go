package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	ResultSuccess  = "success"
	ResultFallback = "fallback"
	ResultError    = "error"
)

var (
	once sync.Once

	// EnrichmentTotal counts enrichment runs by outcome.
	EnrichmentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "greencity",
		Subsystem: "enrichment",
		Name:      "runs_total",
		Help:      "Total number of report enrichment runs, labeled by result.",
	}, []string{"result"})

	EnrichmentDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "greencity",
		Subsystem: "enrichment",
		Name:      "duration_seconds",
		Help:      "Time spent enriching one report, including image tagging.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	})

	// EnrichmentQueueDropped counts tasks rejected because the queue was full.
	EnrichmentQueueDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "greencity",
		Subsystem: "enrichment",
		Name:      "queue_dropped_total",
		Help:      "Total number of enrichment tasks dropped on a full queue.",
	})

	VotesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "greencity",
		Name:      "votes_total",
		Help:      "Total number of recorded votes, labeled by kind (report or session) and choice.",
	}, []string{"kind", "choice"})

	SessionsCompletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "greencity",
		Subsystem: "voting",
		Name:      "sessions_closed_total",
		Help:      "Total number of voting sessions that left the active state, labeled by reason.",
	}, []string{"reason"})

	OutboxRelayTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "greencity",
		Subsystem: "outbox",
		Name:      "relay_total",
		Help:      "Total number of outbox relay attempts, labeled by result.",
	}, []string{"result"})

	EventsHandledTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "greencity",
		Subsystem: "events",
		Name:      "handled_total",
		Help:      "Total number of domain events handled by the dispatcher, labeled by routing key and result.",
	}, []string{"routing_key", "result"})
)

// Register registers the service metrics with the default registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			EnrichmentTotal,
			EnrichmentDurationSeconds,
			EnrichmentQueueDropped,
			VotesTotal,
			SessionsCompletedTotal,
			OutboxRelayTotal,
			EventsHandledTotal,
		)
	})
}
