package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/benvon/smart-tutor/internal/models"
)

const modelColumns = `id, name, model_type, description, api_endpoint, api_key_required, default_parameters,
	is_active, created_at, updated_at`

// ModelRepository handles the AI model registry
type ModelRepository struct {
	db *DB
}

// NewModelRepository creates a new model repository
func NewModelRepository(db *DB) *ModelRepository {
	return &ModelRepository{db: db}
}

func scanModel(s scanner) (*models.AIModel, error) {
	m := &models.AIModel{}
	var params []byte
	err := s.Scan(
		&m.ID,
		&m.Name,
		&m.ModelType,
		&m.Description,
		&m.APIEndpoint,
		&m.APIKeyRequired,
		&params,
		&m.IsActive,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := fromJSONB(params, &m.DefaultParameters); err != nil {
		return nil, err
	}
	return m, nil
}

// Create registers a model. Names are unique.
func (r *ModelRepository) Create(ctx context.Context, m *models.AIModel) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	params, err := toJSONB(m.DefaultParameters, "{}")
	if err != nil {
		return err
	}
	now := time.Now()
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO ai_models (`+modelColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING created_at, updated_at
	`,
		m.ID,
		m.Name,
		m.ModelType,
		m.Description,
		m.APIEndpoint,
		m.APIKeyRequired,
		params,
		m.IsActive,
		now,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return classify("create model", err)
	}
	return nil
}

// GetByID retrieves a model by ID
func (r *ModelRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AIModel, error) {
	m, err := scanModel(r.db.QueryRowContext(ctx, `SELECT `+modelColumns+` FROM ai_models WHERE id = $1`, id))
	if err != nil {
		return nil, classify("get model", err)
	}
	return m, nil
}

// GetByName retrieves a model by its unique name
func (r *ModelRepository) GetByName(ctx context.Context, name string) (*models.AIModel, error) {
	m, err := scanModel(r.db.QueryRowContext(ctx, `SELECT `+modelColumns+` FROM ai_models WHERE name = $1`, name))
	if err != nil {
		return nil, classify("get model by name", err)
	}
	return m, nil
}

// List returns registered models ordered by name, optionally only the
// active ones.
func (r *ModelRepository) List(ctx context.Context, activeOnly bool) ([]*models.AIModel, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+modelColumns+`
		FROM ai_models
		WHERE is_active OR NOT $1
		ORDER BY name
	`, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	defer closeRows(rows)

	out := []*models.AIModel{}
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan model: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating models: %w", err)
	}
	return out, nil
}

// SetActive enables or disables a model by name
func (r *ModelRepository) SetActive(ctx context.Context, name string, active bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE ai_models SET is_active = $2, updated_at = $3 WHERE name = $1`, name, active, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update model: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("model %s %w", name, ErrNotFound)
	}
	return nil
}

const preferenceColumns = `id, user_id, model_id, api_key, custom_parameters, is_default, created_at, updated_at`

// PreferenceRepository handles per-user model overrides
type PreferenceRepository struct {
	db *DB
}

// NewPreferenceRepository creates a new preference repository
func NewPreferenceRepository(db *DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

func scanPreference(s scanner) (*models.UserModelPreference, error) {
	p := &models.UserModelPreference{}
	var params []byte
	err := s.Scan(
		&p.ID,
		&p.UserID,
		&p.ModelID,
		&p.APIKey,
		&params,
		&p.IsDefault,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := fromJSONB(params, &p.CustomParameters); err != nil {
		return nil, err
	}
	return p, nil
}

// Get retrieves the user's preference for a model
func (r *PreferenceRepository) Get(ctx context.Context, userID, modelID uuid.UUID) (*models.UserModelPreference, error) {
	p, err := scanPreference(r.db.QueryRowContext(ctx, `
		SELECT `+preferenceColumns+`
		FROM user_model_preferences
		WHERE user_id = $1 AND model_id = $2
	`, userID, modelID))
	if err != nil {
		return nil, classify("get model preference", err)
	}
	return p, nil
}

// GetDefault retrieves the user's default preference
func (r *PreferenceRepository) GetDefault(ctx context.Context, userID uuid.UUID) (*models.UserModelPreference, error) {
	p, err := scanPreference(r.db.QueryRowContext(ctx, `
		SELECT `+preferenceColumns+`
		FROM user_model_preferences
		WHERE user_id = $1 AND is_default
	`, userID))
	if err != nil {
		return nil, classify("get default model preference", err)
	}
	return p, nil
}

// Upsert stores a preference. A nil APIKey keeps the stored key. Setting
// IsDefault clears the flag on the user's other preferences in the same
// transaction.
func (r *PreferenceRepository) Upsert(ctx context.Context, p *models.UserModelPreference) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	params, err := toJSONB(p.CustomParameters, "{}")
	if err != nil {
		return err
	}
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if p.IsDefault {
			if err := clearDefault(ctx, tx, p.UserID, p.ModelID); err != nil {
				return err
			}
		}
		now := time.Now()
		err := tx.QueryRowContext(ctx, `
			INSERT INTO user_model_preferences (`+preferenceColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
			ON CONFLICT (user_id, model_id) DO UPDATE SET
				api_key = COALESCE(EXCLUDED.api_key, user_model_preferences.api_key),
				custom_parameters = EXCLUDED.custom_parameters,
				is_default = EXCLUDED.is_default,
				updated_at = EXCLUDED.updated_at
			RETURNING id, api_key, created_at, updated_at
		`, p.ID, p.UserID, p.ModelID, p.APIKey, params, p.IsDefault, now,
		).Scan(&p.ID, &p.APIKey, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return classify("upsert model preference", err)
		}
		return nil
	})
}

// SetDefault makes modelID the user's only default, creating an empty
// preference when none exists.
func (r *PreferenceRepository) SetDefault(ctx context.Context, userID, modelID uuid.UUID) (*models.UserModelPreference, error) {
	var out *models.UserModelPreference
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := clearDefault(ctx, tx, userID, modelID); err != nil {
			return err
		}
		now := time.Now()
		p, err := scanPreference(tx.QueryRowContext(ctx, `
			INSERT INTO user_model_preferences (id, user_id, model_id, custom_parameters, is_default, created_at, updated_at)
			VALUES ($1, $2, $3, '{}', TRUE, $4, $4)
			ON CONFLICT (user_id, model_id) DO UPDATE SET
				is_default = TRUE,
				updated_at = EXCLUDED.updated_at
			RETURNING `+preferenceColumns,
			uuid.New(), userID, modelID, now))
		if err != nil {
			return classify("set default model", err)
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func clearDefault(ctx context.Context, tx *sql.Tx, userID, keep uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE user_model_preferences
		SET is_default = FALSE, updated_at = $3
		WHERE user_id = $1 AND model_id <> $2 AND is_default
	`, userID, keep, time.Now())
	if err != nil {
		return fmt.Errorf("failed to clear default model: %w", err)
	}
	return nil
}
