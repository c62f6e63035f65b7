package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/benvon/smart-tutor/internal/models"
)

const assessmentColumns = `id, user_id, session_id, subject, topic, questions, answers, score, max_score,
	feedback, created_at, completed_at`

// AssessmentRepository handles assessment persistence
type AssessmentRepository struct {
	db *DB
}

// NewAssessmentRepository creates a new assessment repository
func NewAssessmentRepository(db *DB) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

func scanAssessment(s scanner) (*models.Assessment, error) {
	a := &models.Assessment{}
	var questions, answers []byte
	err := s.Scan(
		&a.ID,
		&a.UserID,
		&a.SessionID,
		&a.Subject,
		&a.Topic,
		&questions,
		&answers,
		&a.Score,
		&a.MaxScore,
		&a.Feedback,
		&a.CreatedAt,
		&a.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := fromJSONB(questions, &a.Questions); err != nil {
		return nil, err
	}
	if err := fromJSONB(answers, &a.Answers); err != nil {
		return nil, err
	}
	return a, nil
}

// Create stores a generated assessment
func (r *AssessmentRepository) Create(ctx context.Context, a *models.Assessment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.MaxScore == 0 {
		a.MaxScore = models.MaxAssessmentScore
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	questions, err := toJSONB(a.Questions, "[]")
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO assessments (id, user_id, session_id, subject, topic, questions, max_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, a.ID, a.UserID, a.SessionID, a.Subject, a.Topic, questions, a.MaxScore, a.CreatedAt)
	if err != nil {
		return classify("create assessment", err)
	}
	return nil
}

// GetByID retrieves an assessment by ID
func (r *AssessmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Assessment, error) {
	a, err := scanAssessment(r.db.QueryRowContext(ctx,
		`SELECT `+assessmentColumns+` FROM assessments WHERE id = $1`, id))
	if err != nil {
		return nil, classify("get assessment", err)
	}
	return a, nil
}

// ListByUser returns the user's assessments, newest first.
func (r *AssessmentRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Assessment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+assessmentColumns+`
		FROM assessments WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	defer closeRows(rows)

	out := []*models.Assessment{}
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assessment: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assessments: %w", err)
	}
	return out, nil
}

// Complete stores answers and the score for an open assessment. It
// reports false when the assessment was already completed.
func (r *AssessmentRepository) Complete(ctx context.Context, a *models.Assessment) (bool, error) {
	answers, err := toJSONB(a.Answers, "{}")
	if err != nil {
		return false, err
	}
	result, err := r.db.ExecContext(ctx, `
		UPDATE assessments
		SET answers = $2, score = $3, feedback = $4, completed_at = $5
		WHERE id = $1 AND completed_at IS NULL
	`, a.ID, answers, a.Score, a.Feedback, a.CompletedAt)
	if err != nil {
		return false, fmt.Errorf("failed to complete assessment: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}
