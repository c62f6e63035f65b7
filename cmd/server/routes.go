package main

import (
	"context"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"

	"github.com/benvon/smart-tutor/api/openapi"
	"github.com/benvon/smart-tutor/internal/config"
	"github.com/benvon/smart-tutor/internal/database"
	"github.com/benvon/smart-tutor/internal/handlers"
	"github.com/benvon/smart-tutor/internal/middleware"
	"github.com/benvon/smart-tutor/internal/models"
	"github.com/benvon/smart-tutor/internal/queue"
)

// tutorAPI is everything the REST handlers need from the tutoring service.
type tutorAPI interface {
	handlers.ProfileService
	handlers.SessionService
	handlers.AssessmentService
	handlers.ModelService
	handlers.DashboardService
	handlers.IntegrityService
}

type routerDeps struct {
	cfg            *config.Config
	logger         *zap.Logger
	tracingEnabled bool

	tutor    tutorAPI
	accounts handlers.AccountService
	tokens   middleware.AccessTokenParser
	users    middleware.UserLoader
	activity database.UserActivityRepositoryInterface
	sso      handlers.SSOProvider
	health   *handlers.HealthChecker
	limits   map[string]*middleware.RateLimitReloader
}

// newRouter mounts every route. Middleware registered first runs first.
func newRouter(d routerDeps) *mux.Router {
	r := mux.NewRouter()

	if d.tracingEnabled {
		r.Use(otelmux.Middleware(serviceName))
	}
	r.Use(middleware.SecurityHeaders(d.cfg.EnableHSTS))
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)
	// Leave room for a model call inside the request budget.
	r.Use(middleware.Timeout(d.cfg.ModelCallTimeout + 15*time.Second))
	r.Use(middleware.ErrorHandler(d.logger))
	r.Use(middleware.Audit(d.logger))
	r.Use(middleware.Logging(d.logger))

	d.health.RegisterRoutes(r)
	handlers.NewOpenAPIHandler(d.cfg.OpenAPIPath, openapi.Spec).RegisterRoutes(r)

	api := r.PathPrefix("/api/v1").Subrouter()

	authHandler := handlers.NewAuthHandler(d.accounts, d.sso, d.logger)
	publicAuth := api.PathPrefix("/auth").Subrouter()
	publicAuth.Use(d.limits[database.RatelimitKeyAuth].Middleware)
	authHandler.RegisterPublicRoutes(publicAuth)

	protected := api.NewRoute().Subrouter()
	protected.Use(middleware.Auth(d.tokens, d.users, d.logger))
	protected.Use(middleware.ActivityTracking(d.activity, d.logger))
	protected.Use(d.limits[database.RatelimitKeyDefault].Middleware)

	authHandler.RegisterRoutes(protected.PathPrefix("/auth").Subrouter())
	handlers.NewProfileHandler(d.tutor, d.logger).RegisterRoutes(protected)
	handlers.NewSessionHandler(d.tutor, d.logger).RegisterRoutes(
		protected.PathPrefix("/sessions").Subrouter(),
		d.limits[database.RatelimitKeyAsk].Middleware,
	)
	handlers.NewAssessmentHandler(d.tutor, d.logger).RegisterRoutes(protected.PathPrefix("/assessments").Subrouter())
	handlers.NewModelHandler(d.tutor, d.logger).RegisterRoutes(
		protected.PathPrefix("/models").Subrouter(),
		middleware.RequireRole(models.RoleAdmin, models.RoleTeacher),
	)
	handlers.NewDashboardHandler(d.tutor, d.logger).RegisterRoutes(protected.PathPrefix("/dashboard").Subrouter())
	handlers.NewIntegrityHandler(d.tutor, d.logger).RegisterRoutes(protected.PathPrefix("/integrity").Subrouter())

	return r
}

// newHealthChecker probes the dependencies that are configured. redis and
// jobs may be nil.
func newHealthChecker(db *database.DB, redisClient *redis.Client, jobs *queue.RabbitMQQueue) *handlers.HealthChecker {
	h := handlers.NewHealthChecker(handlers.BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	})
	h.AddCheck("database", db.PingContext)
	if redisClient != nil {
		h.AddCheck("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	if jobs != nil {
		h.AddCheck("queue", jobs.HealthCheck)
	}
	return h
}
