package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/benvon/smart-tutor/internal/models"
)

// UserActivityRepository tracks when users last called the API
type UserActivityRepository struct {
	db *DB
}

// NewUserActivityRepository creates a new user activity repository
func NewUserActivityRepository(db *DB) *UserActivityRepository {
	return &UserActivityRepository{db: db}
}

// GetByUserID retrieves user activity by user ID
func (r *UserActivityRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.UserActivity, error) {
	a := &models.UserActivity{}
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, last_api_interaction, created_at, updated_at
		FROM user_activity
		WHERE user_id = $1
	`, userID).Scan(&a.UserID, &a.LastAPIInteraction, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, classify("get user activity", err)
	}
	return a, nil
}

// UpdateLastInteraction records an API call by the user
func (r *UserActivityRepository) UpdateLastInteraction(ctx context.Context, userID uuid.UUID) error {
	now := time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_activity (user_id, last_api_interaction, created_at, updated_at)
		VALUES ($1, $2, $2, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET last_api_interaction = EXCLUDED.last_api_interaction,
		    updated_at = EXCLUDED.updated_at
	`, userID, now)
	if err != nil {
		return fmt.Errorf("failed to update last interaction: %w", err)
	}
	return nil
}
