package database

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/smart-tutor/internal/models"
)

const oidcColumns = `id, provider, issuer, domain, client_id, client_secret, redirect_uri, jwks_url, created_at, updated_at`

// OIDCConfigRepository handles SSO provider configuration
type OIDCConfigRepository struct {
	db *DB
}

// NewOIDCConfigRepository creates a new OIDC config repository
func NewOIDCConfigRepository(db *DB) *OIDCConfigRepository {
	return &OIDCConfigRepository{db: db}
}

func scanOIDCConfig(s scanner) (*models.OIDCConfig, error) {
	c := &models.OIDCConfig{}
	err := s.Scan(
		&c.ID,
		&c.Provider,
		&c.Issuer,
		&c.Domain,
		&c.ClientID,
		&c.ClientSecret,
		&c.RedirectURI,
		&c.JWKSUrl,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

// Upsert creates or replaces the configuration for c.Provider.
func (r *OIDCConfigRepository) Upsert(ctx context.Context, c *models.OIDCConfig) error {
	now := time.Now()
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO oidc_config (`+oidcColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (provider) DO UPDATE SET
			issuer = EXCLUDED.issuer,
			domain = EXCLUDED.domain,
			client_id = EXCLUDED.client_id,
			client_secret = EXCLUDED.client_secret,
			redirect_uri = EXCLUDED.redirect_uri,
			jwks_url = EXCLUDED.jwks_url,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at
	`,
		c.ID,
		c.Provider,
		c.Issuer,
		c.Domain,
		c.ClientID,
		c.ClientSecret,
		c.RedirectURI,
		c.JWKSUrl,
		now,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert OIDC config: %w", err)
	}
	return nil
}

// GetByProvider retrieves the configuration for a provider name
func (r *OIDCConfigRepository) GetByProvider(ctx context.Context, provider string) (*models.OIDCConfig, error) {
	c, err := scanOIDCConfig(r.db.QueryRowContext(ctx,
		`SELECT `+oidcColumns+` FROM oidc_config WHERE provider = $1`, provider))
	if err != nil {
		return nil, classify("get OIDC config for provider "+provider, err)
	}
	return c, nil
}

// GetAll retrieves all SSO configurations ordered by provider
func (r *OIDCConfigRepository) GetAll(ctx context.Context) ([]*models.OIDCConfig, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+oidcColumns+` FROM oidc_config ORDER BY provider`)
	if err != nil {
		return nil, fmt.Errorf("failed to query OIDC configs: %w", err)
	}
	defer closeRows(rows)

	var configs []*models.OIDCConfig
	for rows.Next() {
		c, err := scanOIDCConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan OIDC config: %w", err)
		}
		configs = append(configs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating OIDC configs: %w", err)
	}
	return configs, nil
}

// Delete removes the configuration for a provider
func (r *OIDCConfigRepository) Delete(ctx context.Context, provider string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM oidc_config WHERE provider = $1`, provider)
	if err != nil {
		return fmt.Errorf("failed to delete OIDC config: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("OIDC config for provider %s %w", provider, ErrNotFound)
	}
	return nil
}
