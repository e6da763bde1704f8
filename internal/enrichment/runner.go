// Package enrichment runs AI analysis for newly created reports in the
// background.
package enrichment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"greencity/config"
	"greencity/internal/ai"
	"greencity/internal/messaging"
	"greencity/internal/metrics"
	"greencity/internal/model"
	"greencity/internal/repository"

	"github.com/apex/log"
	"github.com/avast/retry-go"
)

const retryDelay = 2 * time.Second

type Analyzer interface {
	Analyze(ctx context.Context, in ai.Input) ai.Result
}

// Runner owns the enrichment task queue. Every report handed to it leaves
// pending_analysis, whether or not the analysis succeeds.
type Runner struct {
	reports  repository.ReportStore
	analyzer Analyzer
	events   messaging.Publisher
	queue    chan string
	workers  int
	attempts uint
	delay    time.Duration
	done     chan struct{}
	wg       sync.WaitGroup
}

func NewRunner(reports repository.ReportStore, analyzer Analyzer, events messaging.Publisher, cfg config.EnrichmentConfig) *Runner {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = 100
	}
	return &Runner{
		reports:  reports,
		analyzer: analyzer,
		events:   events,
		queue:    make(chan string, size),
		workers:  workers,
		attempts: uint(attempts),
		delay:    retryDelay,
		done:     make(chan struct{}),
	}
}

// Enqueue schedules a report without blocking. On a full queue the report
// is moved straight to pending_review with no analysis.
func (r *Runner) Enqueue(ctx context.Context, reportID string) {
	select {
	case r.queue <- reportID:
	default:
		metrics.EnrichmentQueueDropped.Inc()
		log.WithField("report", reportID).Warn("enrichment: queue full, skipping analysis")
		if err := r.reports.AdvanceFromAnalysis(ctx, reportID); err != nil {
			log.WithError(err).WithField("report", reportID).Error("enrichment: advance")
		}
	}
}

func (r *Runner) Start() {
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.work()
	}
	log.Infof("enrichment: started %d workers", r.workers)
}

func (r *Runner) work() {
	defer r.wg.Done()
	for {
		select {
		case <-r.done:
			return
		case id := <-r.queue:
			if err := r.Process(context.Background(), id); err != nil {
				log.WithError(err).WithField("report", id).Error("enrichment: task failed")
			}
		}
	}
}

// Stop waits for in-flight tasks and advances anything still queued.
func (r *Runner) Stop() {
	close(r.done)
	r.wg.Wait()
	for {
		select {
		case id := <-r.queue:
			if err := r.reports.AdvanceFromAnalysis(context.Background(), id); err != nil {
				log.WithError(err).WithField("report", id).Error("enrichment: advance")
			}
		default:
			log.Info("enrichment: stopped")
			return
		}
	}
}

// Process analyzes one report and stores the result. Provider failures are
// absorbed into the fallback analysis; only storage errors are returned.
func (r *Runner) Process(ctx context.Context, reportID string) error {
	start := time.Now()
	defer func() {
		metrics.EnrichmentDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	report, err := r.reports.FindByID(ctx, reportID)
	if err != nil {
		metrics.EnrichmentTotal.WithLabelValues(metrics.ResultError).Inc()
		return fmt.Errorf("load report: %w", err)
	}

	in := ai.Input{
		ReportType:  report.ReportType,
		Location:    report.Location,
		Description: report.Description,
		ImageURL:    report.ImageURL,
	}

	var res ai.Result
	err = retry.Do(
		func() error {
			res = r.analyzer.Analyze(ctx, in)
			if res.Fallback() {
				return fmt.Errorf("analysis outcome %s", res.Outcome)
			}
			return nil
		},
		retry.Attempts(r.attempts),
		retry.Delay(r.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.WithError(err).WithField("report", reportID).Warnf("enrichment: retry %d", n+1)
		}),
	)
	if err != nil {
		log.WithError(err).WithField("report", reportID).Warn("enrichment: using fallback analysis")
	}

	var override *model.ReportType
	suggested := res.Analysis.SuggestedCategory
	if !res.Fallback() && suggested.Valid() && suggested != report.ReportType {
		override = &suggested
	}

	if err := r.reports.ApplyEnrichment(ctx, reportID, &res.Analysis, override); err != nil {
		metrics.EnrichmentTotal.WithLabelValues(metrics.ResultError).Inc()
		if advErr := r.reports.AdvanceFromAnalysis(ctx, reportID); advErr != nil {
			log.WithError(advErr).WithField("report", reportID).Error("enrichment: advance")
		}
		return fmt.Errorf("apply enrichment: %w", err)
	}

	result := metrics.ResultSuccess
	if res.Fallback() {
		result = metrics.ResultFallback
	}
	metrics.EnrichmentTotal.WithLabelValues(result).Inc()

	msg := messaging.ReportAnalyzedMessage{
		ReportID:         report.ID,
		ReportTitle:      report.Title,
		ReporterID:       report.UserID,
		ReportType:       string(report.ReportType),
		FeasibilityScore: res.Analysis.FeasibilityScore,
		Fallback:         res.Fallback(),
		Timestamp:        time.Now().Unix(),
	}
	if override != nil {
		msg.ReportType = string(*override)
		msg.OriginalReportType = string(report.ReportType)
	}
	if err := r.events.Publish(ctx, messaging.RoutingKeyReportAnalyzed, msg); err != nil {
		log.WithError(err).WithField("report", reportID).Warn("enrichment: publish report.analyzed")
	}

	log.WithFields(log.Fields{
		"report":  reportID,
		"outcome": res.Outcome.String(),
		"score":   res.Analysis.FeasibilityScore,
	}).Info("enrichment: done")
	return nil
}
