package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"greencity/config"
	"greencity/internal/ai"
	"greencity/internal/auth"
	"greencity/internal/enrichment"
	"greencity/internal/handler"
	"greencity/internal/messaging"
	"greencity/internal/metrics"
	"greencity/internal/repository"
	"greencity/internal/repository/memory"
	"greencity/internal/service"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and background workers",
	RunE:  runServe,
}

// eventPipeline is the publisher services use plus whatever has to be
// stopped on shutdown, in order.
type eventPipeline struct {
	publisher messaging.Publisher
	stops     []func()
}

func (p *eventPipeline) stop() {
	for _, stop := range p.stops {
		stop()
	}
}

// newEventPipeline picks how events travel. Postgres with a broker relays
// through the outbox table, memory storage with a broker publishes
// directly, and without a broker events are dispatched in-process.
func newEventPipeline(cfg *config.Config, stores repository.Stores, dispatcher *messaging.Dispatcher) (*eventPipeline, error) {
	if !cfg.RabbitMQ.Enabled() {
		bus := messaging.NewLocalBus(dispatcher, 0)
		bus.Start()
		log.Info("events: dispatching in-process")
		return &eventPipeline{publisher: bus, stops: []func(){bus.Stop}}, nil
	}

	rmq, err := messaging.NewRabbitMQ(cfg.RabbitMQ)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	log.Info("Connected to RabbitMQ")

	consumer := messaging.NewConsumer(rmq, dispatcher)
	consumer.Start()
	pipeline := &eventPipeline{publisher: rmq}

	if cfg.Storage.Driver == config.StoragePostgres {
		worker := messaging.NewOutboxWorker(stores.Outbox, rmq)
		worker.Start()
		pipeline.publisher = messaging.NewOutboxPublisher(stores.Outbox)
		pipeline.stops = append(pipeline.stops, worker.Stop)
	}
	pipeline.stops = append(pipeline.stops, consumer.Stop, rmq.Close)
	return pipeline, nil
}

func newAnalyzer(cfg config.AIConfig) *ai.Analyzer {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second

	var text ai.TextGenerator
	if cfg.GeminiAPIKey != "" {
		text = ai.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.RequestsPerSecond, timeout)
	} else {
		log.Warn("ai: no Gemini key, every analysis will use the fallback")
	}

	var images ai.ImageTagger
	if cfg.VisionAPIKey != "" {
		images = ai.NewVisionClient(cfg.VisionAPIKey, timeout)
	}
	return ai.NewAnalyzer(text, images)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	metrics.Register()

	var (
		stores repository.Stores
		db     *sql.DB
	)
	if cfg.Storage.Driver == config.StoragePostgres {
		db, err = openDB(cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := repository.Migrate(cmd.Context(), db); err != nil {
			return err
		}
		stores = repository.NewPostgresStores(db)
	} else {
		log.Warn("storage: using in-memory store, data is lost on restart")
		stores = memory.New()
	}

	sseHub := messaging.NewSSEHub()
	go sseHub.Run()
	defer sseHub.Stop()

	dispatcher := messaging.NewDispatcher(stores.Notifications, sseHub)
	events, err := newEventPipeline(cfg, stores, dispatcher)
	if err != nil {
		return err
	}
	defer events.stop()

	analyzer := newAnalyzer(cfg.AI)
	runner := enrichment.NewRunner(stores.Reports, analyzer, events.publisher, cfg.Enrichment)
	runner.Start()
	defer runner.Stop()

	tokens := auth.NewTokenService(cfg.JWT)
	middleware := auth.NewMiddleware(tokens, stores.Users)

	handlers := handler.Handlers{
		Reports:       handler.NewReportHandler(service.NewReportService(stores, events.publisher, runner)),
		AI:            handler.NewAIHandler(service.NewAnalysisService(stores, analyzer)),
		Sessions:      handler.NewSessionHandler(service.NewSessionService(stores, events.publisher)),
		Users:         handler.NewUserHandler(service.NewUserService(stores.Users, tokens, cfg.Auth.AllowPrivilegedSignup)),
		Partners:      handler.NewPartnerHandler(service.NewPartnerService(stores.Partners)),
		Notifications: handler.NewNotificationHandler(service.NewNotificationService(stores.Notifications, sseHub)),
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: handler.NewRouter(cfg.Server, middleware, handlers),
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("greencity starting on %s", srv.Addr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// SSE streams end when the hub closes their channels
	sseHub.Stop()
	return srv.Shutdown(shutdownCtx)
}
