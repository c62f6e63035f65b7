package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/benvon/smart-tutor/internal/bootstrap"
	"github.com/benvon/smart-tutor/internal/config"
	"github.com/benvon/smart-tutor/internal/database"
	"github.com/benvon/smart-tutor/internal/logger"
	"github.com/benvon/smart-tutor/internal/queue"
	"github.com/benvon/smart-tutor/internal/services/integrity"
	"github.com/benvon/smart-tutor/internal/telemetry"
	"github.com/benvon/smart-tutor/internal/workers"
)

const serviceName = "smart-tutor-worker"

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.RabbitMQURL == "" {
		log.Fatalf("RABBITMQ_URL is required for the worker")
	}

	debugMode := cfg.WorkerDebugMode || *debugFlag

	zapLogger, err := logger.New(logger.Options{Service: serviceName, Debug: debugMode})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync(zapLogger)
	}()

	zapLogger.Info("starting_worker",
		zap.Bool("debug_mode", debugMode),
		zap.Int("prefetch", cfg.RabbitMQPrefetch),
		zap.Float64("rps", cfg.WorkerRPS),
		zap.Duration("stale_session_after", cfg.StaleSessionAfter),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OTELEnabled && cfg.OTELEndpoint != "" {
		tp, err := telemetry.InitTracer(ctx, telemetry.Options{
			ServiceName: serviceName,
			Endpoint:    cfg.OTELEndpoint,
		})
		if err != nil {
			zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		} else {
			defer func() {
				if err := telemetry.Shutdown(context.Background(), tp); err != nil {
					zapLogger.Warn("failed_to_shutdown_otel_tracer", zap.Error(err))
				}
			}()
		}
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()

	jobQueue, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq", zap.Error(err))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()

	sessions := database.NewSessionRepository(db)
	processor := workers.NewProcessor(
		sessions,
		database.NewConversationRepository(db),
		integrity.NewMockAnchorer(cfg.ContractAddress, zapLogger),
		jobQueue,
		rate.NewLimiter(rate.Limit(cfg.WorkerRPS), max(1, cfg.RabbitMQPrefetch)),
		zapLogger,
	)

	// The reaper only ends sessions; the pipeline and models are never called.
	pipeline, err := bootstrap.Pipeline(cfg, nil, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_build_response_pipeline", zap.Error(err))
	}
	tutorService := bootstrap.TutorService(db, cfg, pipeline, nil, jobQueue, zapLogger)
	reaper := workers.NewSessionReaper(tutorService, cfg.StaleSessionAfter, cfg.ReaperInterval, zapLogger)
	sweeper := queue.NewDeadLetterSweeper(jobQueue, cfg.DLQSweepInterval, cfg.DLQRetention, zapLogger)

	msgs, errs, err := jobQueue.Consume(ctx, cfg.RabbitMQPrefetch)
	if err != nil {
		zapLogger.Fatal("failed_to_start_consuming", zap.Error(err))
	}
	zapLogger.Info("worker_started")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := processor.Run(gctx, msgs, errs); err != nil {
			return err
		}
		// The broker closed the delivery channel; stop so the orchestrator restarts us.
		return errors.New("message channel closed")
	})
	g.Go(func() error { return reaper.Start(gctx) })
	g.Go(func() error { return sweeper.Start(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		zapLogger.Error("worker_stopped_with_error", zap.Error(err))
	}
	zapLogger.Info("worker_stopped")
}
