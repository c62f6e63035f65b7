package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/benvon/smart-tutor/internal/models"
)

const conversationColumns = `id, session_id, user_id, user_message, ai_response, sentiment_score, topics,
	engagement_score, model_used, generation_fallback_reason, content_hash, timestamp`

// ConversationRepository persists tutoring turns. Rows are insert-only.
type ConversationRepository struct {
	db *DB
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(db *DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func scanConversation(s scanner) (*models.Conversation, error) {
	c := &models.Conversation{}
	var topics []byte
	err := s.Scan(
		&c.ID,
		&c.SessionID,
		&c.UserID,
		&c.UserMessage,
		&c.AIResponse,
		&c.SentimentScore,
		&topics,
		&c.EngagementScore,
		&c.ModelUsed,
		&c.GenerationFallbackReason,
		&c.ContentHash,
		&c.Timestamp,
	)
	if err != nil {
		return nil, err
	}
	if err := fromJSONB(topics, &c.Topics); err != nil {
		return nil, err
	}
	if c.Topics == nil {
		c.Topics = []string{}
	}
	return c, nil
}

// Create inserts a conversation turn
func (r *ConversationRepository) Create(ctx context.Context, c *models.Conversation) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	topics, err := toJSONB(c.Topics, "[]")
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO conversations (`+conversationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		c.ID,
		c.SessionID,
		c.UserID,
		c.UserMessage,
		c.AIResponse,
		c.SentimentScore,
		topics,
		c.EngagementScore,
		c.ModelUsed,
		c.GenerationFallbackReason,
		c.ContentHash,
		c.Timestamp,
	)
	if err != nil {
		return classify("create conversation", err)
	}
	return nil
}

// GetByID retrieves a conversation by ID
func (r *ConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	c, err := scanConversation(r.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id))
	if err != nil {
		return nil, classify("get conversation", err)
	}
	return c, nil
}

// ListBySession returns a session's turns, oldest first.
func (r *ConversationRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.Conversation, error) {
	return r.list(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations WHERE session_id = $1
		ORDER BY timestamp, id
	`, sessionID)
}

// RecentBySession returns the last n turns of a session, oldest first.
func (r *ConversationRepository) RecentBySession(ctx context.Context, sessionID uuid.UUID, n int) ([]models.Conversation, error) {
	return r.list(ctx, `
		SELECT `+conversationColumns+` FROM (
			SELECT `+conversationColumns+`
			FROM conversations WHERE session_id = $1
			ORDER BY timestamp DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY timestamp, id
	`, sessionID, n)
}

func (r *ConversationRepository) list(ctx context.Context, query string, args ...any) ([]models.Conversation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer closeRows(rows)

	out := []models.Conversation{}
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversations: %w", err)
	}
	return out, nil
}
