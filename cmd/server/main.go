package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/benvon/smart-tutor/internal/bootstrap"
	"github.com/benvon/smart-tutor/internal/config"
	"github.com/benvon/smart-tutor/internal/database"
	"github.com/benvon/smart-tutor/internal/logger"
	"github.com/benvon/smart-tutor/internal/middleware"
	"github.com/benvon/smart-tutor/internal/queue"
	"github.com/benvon/smart-tutor/internal/services/auth"
	"github.com/benvon/smart-tutor/internal/services/oidc"
	"github.com/benvon/smart-tutor/internal/telemetry"
)

// Set with -ldflags "-X main.version=... -X main.commit=... -X main.buildTime=...".
var (
	version   = "dev"
	commit    = ""
	buildTime = ""
)

const serviceName = "smart-tutor-api"

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug mode for model API logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Fatalf("Invalid server configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.New(logger.Options{Service: serviceName, Debug: debugMode})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		// Sync fails on stderr in containers; nothing useful to do about it.
		_ = logger.Sync(zapLogger)
	}()

	zapLogger.Info("starting_server",
		zap.String("version", version),
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.Bool("redis_enabled", cfg.RedisURL != ""),
		zap.Bool("queue_enabled", cfg.RabbitMQURL != ""),
		zap.Bool("blockchain_enabled", cfg.BlockchainEnabled),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	tracingEnabled := false
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else {
			tp, err := telemetry.InitTracer(context.Background(), telemetry.Options{
				ServiceName:    serviceName,
				ServiceVersion: version,
				Endpoint:       cfg.OTELEndpoint,
			})
			if err != nil {
				zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
			} else {
				tracingEnabled = true
				zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
				defer func() {
					shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer shutdownCancel()
					if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
						zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
					}
				}()
			}
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
	zapLogger.Info("connected_to_database")

	// Redis is optional: without it rate limits are counted per process.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = middleware.ConnectRedis(context.Background(), cfg.RedisURL)
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
			}
		}()
		zapLogger.Info("connected_to_redis")
	}

	// RabbitMQ is optional: without it summaries are still written when a
	// session ends, but nothing is anchored.
	var jobQueue *queue.RabbitMQQueue
	if cfg.RabbitMQURL != "" {
		jobQueue = connectQueue(cfg.RabbitMQURL, zapLogger)
		defer func() {
			if err := jobQueue.Close(); err != nil {
				zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
			}
		}()
	}

	httpClient := &http.Client{Timeout: cfg.ModelCallTimeout + 5*time.Second}

	pipeline, err := bootstrap.Pipeline(cfg, httpClient, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_build_response_pipeline", zap.Error(err))
	}
	dispatcher := bootstrap.Dispatcher(cfg, httpClient, debugMode, zapLogger)

	var jobs queue.Enqueuer
	if jobQueue != nil {
		jobs = jobQueue
	}
	tutorService := bootstrap.TutorService(db, cfg, pipeline, dispatcher, jobs, zapLogger)

	users := database.NewUserRepository(db)
	authService, err := auth.NewService(users, auth.Config{
		Secret:     cfg.JWTSecret,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	}, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_create_auth_service", zap.Error(err))
	}
	oidcProvider := oidc.NewProvider(database.NewOIDCConfigRepository(db), httpClient)

	reloadCtx, reloadCancel := context.WithCancel(context.Background())
	defer reloadCancel()

	store, err := middleware.NewLimiterStore(redisClient)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limit_store", zap.Error(err))
	}
	ratelimitRepo := database.NewRatelimitConfigRepository(db)
	limits := make(map[string]*middleware.RateLimitReloader, len(database.RatelimitKeys))
	for _, key := range database.RatelimitKeys {
		limits[key] = middleware.NewRateLimitReloader(reloadCtx, store, ratelimitRepo, key, zapLogger, time.Minute)
		go limits[key].Start(reloadCtx)
	}

	corsReloader := middleware.NewCORSReloader(reloadCtx, database.NewCorsConfigRepository(db), cfg.FrontendURL, zapLogger)

	health := newHealthChecker(db, redisClient, jobQueue)

	router := newRouter(routerDeps{
		cfg:            cfg,
		logger:         zapLogger,
		tracingEnabled: tracingEnabled,
		tutor:          tutorService,
		accounts:       authService,
		tokens:         authService,
		users:          users,
		activity:       database.NewUserActivityRepository(db),
		sso:            oidcProvider,
		health:         health,
		limits:         limits,
	})
	// CORS wraps the router so preflights for any path are answered before routing.
	handler := corsReloader.Handler(router)
	go corsReloader.Start(reloadCtx, time.Minute)

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        handler,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   cfg.ModelCallTimeout + 30*time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	reloadCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}
	zapLogger.Info("server_exited")
}

// connectQueue retries with exponential back-off to ride out broker startup.
func connectQueue(url string, zapLogger *zap.Logger) *queue.RabbitMQQueue {
	const maxRetries = 10
	const initialDelay = 2 * time.Second

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		q, err := queue.NewRabbitMQQueue(url, zapLogger)
		if err == nil {
			zapLogger.Info("connected_to_rabbitmq")
			return q
		}
		lastErr = err
		delay := min(initialDelay*time.Duration(1<<uint(attempt)), 30*time.Second)
		zapLogger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Duration("retry_delay", delay),
			zap.Error(err),
		)
		time.Sleep(delay)
	}
	zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries",
		zap.Int("max_retries", maxRetries),
		zap.Error(lastErr),
	)
	return nil
}
