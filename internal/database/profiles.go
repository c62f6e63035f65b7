package database

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/benvon/smart-tutor/internal/models"
)

// ProfileRepository handles learning profile persistence
type ProfileRepository struct {
	db *DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// GetByUserID retrieves a user's learning profile
func (r *ProfileRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.LearningProfile, error) {
	p := &models.LearningProfile{}
	var subjects []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, learning_style, skill_level, response_time_preference,
		       preferred_subjects, learning_goals, created_at, updated_at
		FROM learning_profiles
		WHERE user_id = $1
	`, userID).Scan(
		&p.UserID,
		&p.LearningStyle,
		&p.SkillLevel,
		&p.ResponseTimePreference,
		&subjects,
		&p.LearningGoals,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, classify("get learning profile", err)
	}
	if err := fromJSONB(subjects, &p.PreferredSubjects); err != nil {
		return nil, err
	}
	if p.PreferredSubjects == nil {
		p.PreferredSubjects = []string{}
	}
	return p, nil
}

// Upsert creates or replaces a user's learning profile
func (r *ProfileRepository) Upsert(ctx context.Context, p *models.LearningProfile) error {
	return upsertProfile(ctx, r.db, p)
}

func upsertProfile(ctx context.Context, q queryRower, p *models.LearningProfile) error {
	subjects, err := toJSONB(p.PreferredSubjects, "[]")
	if err != nil {
		return err
	}
	now := time.Now()
	err = q.QueryRowContext(ctx, `
		INSERT INTO learning_profiles (user_id, learning_style, skill_level, response_time_preference,
		                               preferred_subjects, learning_goals, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			learning_style = EXCLUDED.learning_style,
			skill_level = EXCLUDED.skill_level,
			response_time_preference = EXCLUDED.response_time_preference,
			preferred_subjects = EXCLUDED.preferred_subjects,
			learning_goals = EXCLUDED.learning_goals,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at, updated_at
	`,
		p.UserID,
		string(p.LearningStyle),
		p.SkillLevel,
		p.ResponseTimePreference,
		subjects,
		p.LearningGoals,
		now,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return classify("upsert learning profile", err)
	}
	return nil
}
