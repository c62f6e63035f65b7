package middleware

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/benvon/smart-tutor/internal/database"
	"github.com/benvon/smart-tutor/internal/models"
)

// localDevOrigin is allowed when neither the database nor FRONTEND_URL
// name an origin.
const localDevOrigin = "http://localhost:3000"

// CorsConfigStore reads the CORS row.
type CorsConfigStore interface {
	Get(ctx context.Context) (*models.CorsConfig, error)
}

// corsPolicy is the resolved browser origin policy.
type corsPolicy struct {
	origins     []string
	credentials bool
	maxAge      int
}

func (p corsPolicy) equal(o corsPolicy) bool {
	return p.credentials == o.credentials && p.maxAge == o.maxAge && slices.Equal(p.origins, o.origins)
}

func (p corsPolicy) build() *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins:   p.origins,
		AllowCredentials: p.credentials,
		MaxAge:           p.maxAge,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"X-Ratelimit-Limit", "X-Ratelimit-Remaining", "X-Ratelimit-Reset"},
	})
}

// CORSReloader applies the CORS row to every request and picks up edits
// made with the configure CLI without a restart.
type CORSReloader struct {
	repo     CorsConfigStore
	fallback string
	log      *zap.Logger

	policy  atomic.Pointer[corsPolicy]
	handler atomic.Pointer[cors.Cors]
}

// NewCORSReloader loads the initial policy. fallback is the FRONTEND_URL
// origin list used while no row is stored.
func NewCORSReloader(ctx context.Context, repo CorsConfigStore, fallback string, log *zap.Logger) *CORSReloader {
	if log == nil {
		log = zap.NewNop()
	}
	r := &CORSReloader{
		repo:     repo,
		fallback: strings.TrimSpace(fallback),
		log:      log,
	}
	r.Reload(ctx)
	return r
}

// Handler wraps next with the current policy.
func (r *CORSReloader) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.handler.Load().Handler(next).ServeHTTP(w, req)
	})
}

// Start reloads every interval until ctx is cancelled.
func (r *CORSReloader) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Reload(ctx)
		}
	}
}

// Reload reads the stored row. A read failure keeps the fallback policy
// with credentials allowed.
func (r *CORSReloader) Reload(ctx context.Context) {
	p := r.resolve(ctx)
	if old := r.policy.Load(); old != nil && old.equal(p) {
		return
	}
	r.handler.Store(p.build())
	r.policy.Store(&p)
	r.log.Info("cors_policy_loaded",
		zap.Strings("origins", p.origins),
		zap.Bool("allow_credentials", p.credentials),
		zap.Int("max_age", p.maxAge),
	)
}

func (r *CORSReloader) resolve(ctx context.Context) corsPolicy {
	var cfg *models.CorsConfig
	var err error
	if r.repo != nil {
		cfg, err = r.repo.Get(ctx)
	}
	if err != nil && !database.IsNotFound(err) {
		r.log.Warn("failed_to_load_cors_config_using_fallback", zap.Error(err))
	}

	p := corsPolicy{origins: models.SplitOrigins(r.fallback), credentials: true, maxAge: models.DefaultCorsMaxAge}
	if err == nil && cfg != nil {
		p = corsPolicy{origins: cfg.Origins(), credentials: cfg.AllowCredentials, maxAge: cfg.MaxAge}
	}
	if len(p.origins) == 0 {
		p.origins = []string{localDevOrigin}
	}
	return p
}
