package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/benvon/smart-tutor/internal/models"
)

// Runtime settings tables. Both are edited with the configure CLI and
// polled by the server.

const corsRowKey = "default"

// Rate limit keys, one per route group.
const (
	RatelimitKeyDefault = "default"
	RatelimitKeyAuth    = "auth"
	RatelimitKeyAsk     = "ask"
)

// RatelimitKeys lists the keys the server reads.
var RatelimitKeys = []string{RatelimitKeyDefault, RatelimitKeyAuth, RatelimitKeyAsk}

type CorsConfigRepository struct {
	db *DB
}

func NewCorsConfigRepository(db *DB) *CorsConfigRepository {
	return &CorsConfigRepository{db: db}
}

// Get returns the CORS row, or nil, nil when none is stored.
func (r *CorsConfigRepository) Get(ctx context.Context) (*models.CorsConfig, error) {
	c := &models.CorsConfig{}
	err := r.db.QueryRowContext(ctx, `
		SELECT config_key, allowed_origins, allow_credentials, max_age, created_at, updated_at
		FROM cors_config WHERE config_key = $1
	`, corsRowKey).Scan(&c.ConfigKey, &c.AllowedOrigins, &c.AllowCredentials, &c.MaxAge, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cors config: %w", err)
	}
	return c, nil
}

// Set validates c and stores it as the CORS row. Origins are saved in
// normalized form and c is updated to match.
func (r *CorsConfigRepository) Set(ctx context.Context, c *models.CorsConfig) error {
	origins, err := ValidateOrigins(c.AllowedOrigins)
	if err != nil {
		return err
	}
	if c.MaxAge < 0 {
		return fmt.Errorf("max_age cannot be negative")
	}
	c.ConfigKey = corsRowKey
	c.AllowedOrigins = strings.Join(origins, ",")
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO cors_config (config_key, allowed_origins, allow_credentials, max_age, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (config_key) DO UPDATE SET
			allowed_origins = EXCLUDED.allowed_origins,
			allow_credentials = EXCLUDED.allow_credentials,
			max_age = EXCLUDED.max_age,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at, updated_at
	`, c.ConfigKey, c.AllowedOrigins, c.AllowCredentials, c.MaxAge).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving cors config: %w", err)
	}
	return nil
}

// ValidateOrigins splits raw and checks that each entry is "*" or an
// http(s) origin without a path.
func ValidateOrigins(raw string) ([]string, error) {
	origins := models.SplitOrigins(raw)
	if len(origins) == 0 {
		return nil, fmt.Errorf("allowed_origins cannot be empty")
	}
	for _, o := range origins {
		if o == "*" {
			continue
		}
		u, err := url.Parse(o)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" || (u.Path != "" && u.Path != "/") {
			return nil, fmt.Errorf("invalid origin %q", o)
		}
	}
	return origins, nil
}

type RatelimitConfigRepository struct {
	db *DB
}

func NewRatelimitConfigRepository(db *DB) *RatelimitConfigRepository {
	return &RatelimitConfigRepository{db: db}
}

const ratelimitColumns = `config_key, rate, created_at, updated_at`

func scanRatelimit(s interface{ Scan(...any) error }) (*models.RatelimitConfig, error) {
	c := &models.RatelimitConfig{}
	if err := s.Scan(&c.ConfigKey, &c.Rate, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns the rate for key, or nil, nil when none is stored.
func (r *RatelimitConfigRepository) Get(ctx context.Context, key string) (*models.RatelimitConfig, error) {
	c, err := scanRatelimit(r.db.QueryRowContext(ctx,
		`SELECT `+ratelimitColumns+` FROM ratelimit_config WHERE config_key = $1`, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading rate limit %s: %w", key, err)
	}
	return c, nil
}

// List returns every stored rate ordered by key.
func (r *RatelimitConfigRepository) List(ctx context.Context) ([]*models.RatelimitConfig, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+ratelimitColumns+` FROM ratelimit_config ORDER BY config_key`)
	if err != nil {
		return nil, fmt.Errorf("listing rate limits: %w", err)
	}
	defer closeRows(rows)

	var out []*models.RatelimitConfig
	for rows.Next() {
		c, err := scanRatelimit(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning rate limit: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing rate limits: %w", err)
	}
	return out, nil
}

// Set stores the rate for c.ConfigKey. An empty key means the default
// group; any other key must be one of RatelimitKeys.
func (r *RatelimitConfigRepository) Set(ctx context.Context, c *models.RatelimitConfig) error {
	key := strings.TrimSpace(c.ConfigKey)
	if key == "" {
		key = RatelimitKeyDefault
	}
	if !slices.Contains(RatelimitKeys, key) {
		return fmt.Errorf("unknown rate limit key %q", key)
	}
	rate := strings.TrimSpace(c.Rate)
	if rate == "" {
		return fmt.Errorf("rate cannot be empty")
	}
	saved, err := scanRatelimit(r.db.QueryRowContext(ctx, `
		INSERT INTO ratelimit_config (config_key, rate, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (config_key) DO UPDATE SET
			rate = EXCLUDED.rate,
			updated_at = EXCLUDED.updated_at
		RETURNING `+ratelimitColumns, key, rate))
	if err != nil {
		return fmt.Errorf("saving rate limit %s: %w", key, err)
	}
	*c = *saved
	return nil
}
