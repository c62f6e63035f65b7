package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"go.uber.org/zap"

	"github.com/benvon/smart-tutor/internal/models"
	"github.com/benvon/smart-tutor/internal/request"
)

// RatelimitConfigStore reads and seeds rate limit rows.
type RatelimitConfigStore interface {
	Get(ctx context.Context, key string) (*models.RatelimitConfig, error)
	Set(ctx context.Context, c *models.RatelimitConfig) error
}

// RateLimitReloader limits one route group with a rate read from the
// database and refreshed periodically. Groups share a store; counters are
// kept apart by prefixing the limit key with the group key.
type RateLimitReloader struct {
	key         string
	store       limiter.Store
	repo        RatelimitConfigStore
	defaultRate string
	log         *zap.Logger
	interval    time.Duration

	mu      sync.RWMutex
	current *stdlibmw.Middleware
	rate    string
}

// NewRateLimitReloader creates a reloader for key and loads its rate once.
func NewRateLimitReloader(ctx context.Context, store limiter.Store, repo RatelimitConfigStore, key string, log *zap.Logger, reloadInterval time.Duration) *RateLimitReloader {
	if log == nil {
		log = zap.NewNop()
	}
	defaultRate, ok := DefaultRates[key]
	if !ok {
		defaultRate = defaultRatelimitRate
	}
	r := &RateLimitReloader{
		key:         key,
		store:       store,
		repo:        repo,
		defaultRate: defaultRate,
		log:         log,
		interval:    reloadInterval,
	}
	r.Load(ctx)
	return r
}

// Middleware wraps next with the currently loaded limit. It matches
// mux.MiddlewareFunc.
func (r *RateLimitReloader) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.mu.RLock()
		mw := r.current
		r.mu.RUnlock()
		if mw == nil {
			next.ServeHTTP(w, req)
			return
		}
		mw.Handler(next).ServeHTTP(w, req)
	})
}

// Rate returns the formatted rate in effect.
func (r *RateLimitReloader) Rate() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rate
}

// Start runs the reload loop until ctx is cancelled.
func (r *RateLimitReloader) Start(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Load(ctx)
		}
	}
}

// Load reads the configured rate, seeding the default when none exists.
// An unparsable rate keeps the default.
func (r *RateLimitReloader) Load(ctx context.Context) {
	rateStr := r.defaultRate
	if r.repo != nil {
		cfg, err := r.repo.Get(ctx, r.key)
		switch {
		case err != nil:
			r.log.Warn("failed_to_load_ratelimit_config_from_db_using_default",
				zap.String("key", r.key),
				zap.Error(err),
				zap.String("default_rate", r.defaultRate),
			)
		case cfg != nil && cfg.Rate != "":
			rateStr = cfg.Rate
		default:
			if err := r.repo.Set(ctx, &models.RatelimitConfig{ConfigKey: r.key, Rate: r.defaultRate}); err != nil {
				r.log.Error("failed_to_save_default_ratelimit_config",
					zap.String("key", r.key),
					zap.Error(err),
				)
			}
		}
	}

	rate, err := limiter.NewRateFromFormatted(rateStr)
	if err != nil {
		r.log.Error("failed_to_parse_rate_limit_using_default",
			zap.String("key", r.key),
			zap.Error(err),
			zap.String("rate_str", rateStr),
		)
		rateStr = r.defaultRate
		if rate, err = limiter.NewRateFromFormatted(rateStr); err != nil {
			r.log.Error("failed_to_parse_default_rate_limit", zap.Error(err))
			return
		}
	}

	instance := limiter.New(r.store, rate)
	mw := stdlibmw.NewMiddleware(instance,
		stdlibmw.WithKeyGetter(r.limitKey),
		stdlibmw.WithLimitReachedHandler(func(w http.ResponseWriter, req *http.Request) {
			WriteError(w, req, http.StatusTooManyRequests, "Rate limit exceeded")
		}),
		stdlibmw.WithErrorHandler(func(w http.ResponseWriter, req *http.Request, err error) {
			r.log.Error("rate_limit_store_error", zap.String("key", r.key), zap.Error(err))
			WriteError(w, req, http.StatusInternalServerError, "Rate limiter unavailable")
		}),
	)

	r.mu.Lock()
	changed := r.rate != rateStr
	r.current = mw
	r.rate = rateStr
	r.mu.Unlock()
	if changed {
		r.log.Info("ratelimit_loaded", zap.String("key", r.key), zap.String("rate", rateStr))
	}
}

// limitKey counts authenticated callers by user and everyone else by IP.
func (r *RateLimitReloader) limitKey(req *http.Request) string {
	if user := request.UserFromContext(req); user != nil {
		return r.key + ":user:" + user.ID.String()
	}
	return r.key + ":ip:" + request.ClientIP(req)
}
