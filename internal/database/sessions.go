package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/benvon/smart-tutor/internal/models"
)

const sessionColumns = `id, user_id, subject, topic, difficulty_level, learning_objectives, summary,
	start_time, end_time, blockchain_tx_hash`

// SessionRepository handles learning session persistence
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func scanSession(s scanner) (*models.LearningSession, error) {
	ls := &models.LearningSession{}
	err := s.Scan(
		&ls.ID,
		&ls.UserID,
		&ls.Subject,
		&ls.Topic,
		&ls.DifficultyLevel,
		&ls.LearningObjectives,
		&ls.Summary,
		&ls.StartTime,
		&ls.EndTime,
		&ls.BlockchainTxHash,
	)
	return ls, err
}

// Create starts a new session
func (r *SessionRepository) Create(ctx context.Context, s *models.LearningSession) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.DifficultyLevel == 0 {
		s.DifficultyLevel = models.DefaultDifficulty
	}
	if s.StartTime.IsZero() {
		s.StartTime = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO learning_sessions (id, user_id, subject, topic, difficulty_level, learning_objectives, start_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, s.ID, s.UserID, s.Subject, s.Topic, s.DifficultyLevel, s.LearningObjectives, s.StartTime)
	if err != nil {
		return classify("create session", err)
	}
	return nil
}

// GetByID retrieves a session by ID
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.LearningSession, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM learning_sessions WHERE id = $1`, id))
	if err != nil {
		return nil, classify("get session", err)
	}
	return s, nil
}

// ListByUser returns a page of the user's sessions, newest first, and the
// total count.
func (r *SessionRepository) ListByUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*models.LearningSession, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM learning_sessions WHERE user_id = $1`, userID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count sessions: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sessionColumns+`
		FROM learning_sessions
		WHERE user_id = $1
		ORDER BY start_time DESC
		LIMIT $2 OFFSET $3
	`, userID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer closeRows(rows)

	sessions := []*models.LearningSession{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating sessions: %w", err)
	}
	return sessions, total, nil
}

// End closes an active session and stores its summary. It reports false
// when the session had already ended.
func (r *SessionRepository) End(ctx context.Context, id uuid.UUID, endTime time.Time, summary string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE learning_sessions
		SET end_time = $2, summary = $3
		WHERE id = $1 AND end_time IS NULL
	`, id, endTime, summary)
	if err != nil {
		return false, fmt.Errorf("failed to end session: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// SetSummary stores a summary for a session that has none.
func (r *SessionRepository) SetSummary(ctx context.Context, id uuid.UUID, summary string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE learning_sessions SET summary = $2 WHERE id = $1 AND summary IS NULL`, id, summary)
	if err != nil {
		return fmt.Errorf("failed to set session summary: %w", err)
	}
	return nil
}

// SetAnchor records the anchoring transaction for a session
func (r *SessionRepository) SetAnchor(ctx context.Context, id uuid.UUID, txHash string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE learning_sessions SET blockchain_tx_hash = $2 WHERE id = $1`, id, txHash)
	if err != nil {
		return fmt.Errorf("failed to set session anchor: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("session %w", ErrNotFound)
	}
	return nil
}

// ListStaleActive returns active sessions whose owner has not called the
// API since cutoff.
func (r *SessionRepository) ListStaleActive(ctx context.Context, cutoff time.Time, limit int) ([]*models.LearningSession, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+prefixed("s", sessionColumns)+`
		FROM learning_sessions s
		LEFT JOIN user_activity a ON a.user_id = s.user_id
		WHERE s.end_time IS NULL
		  AND COALESCE(a.last_api_interaction, s.start_time) < $1
		ORDER BY s.start_time
		LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale sessions: %w", err)
	}
	defer closeRows(rows)

	var sessions []*models.LearningSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stale sessions: %w", err)
	}
	return sessions, nil
}
