package tutor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benvon/smart-tutor/internal/database"
	"github.com/benvon/smart-tutor/internal/logger"
	"github.com/benvon/smart-tutor/internal/models"
	"github.com/benvon/smart-tutor/internal/nlp"
	"github.com/benvon/smart-tutor/internal/queue"
	"github.com/benvon/smart-tutor/internal/services/ai"
	"github.com/benvon/smart-tutor/internal/services/integrity"
)

// AskInput is one tutoring turn request
type AskInput struct {
	UserID    uuid.UUID
	SessionID uuid.UUID
	Message   string
	// ModelID selects a model for this turn only.
	ModelID *uuid.UUID
}

// Ask runs the response pipeline for one message and persists the turn.
func (s *Service) Ask(ctx context.Context, in AskInput) (*models.Conversation, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return nil, invalid("message is required")
	}

	session, err := s.deps.Sessions.GetByID(ctx, in.SessionID)
	if err != nil {
		return nil, notFound("session", err)
	}
	if err := owned(session.UserID, in.UserID); err != nil {
		return nil, err
	}
	if !session.Active() {
		return nil, ErrSessionEnded
	}

	profile, err := s.loadProfile(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	recent, err := s.deps.Conversations.RecentBySession(ctx, in.SessionID, nlp.HistoryWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation history: %w", err)
	}
	history := make([]nlp.Turn, 0, len(recent))
	for _, c := range recent {
		history = append(history, c.Turn())
	}

	model, err := s.resolveModel(ctx, in.UserID, in.ModelID)
	if err != nil {
		return nil, err
	}

	resp := s.deps.Pipeline.Respond(ctx, nlp.Input{
		Message: message,
		Profile: profile.Pipeline(),
		History: history,
		Model:   model,
	})

	conv := &models.Conversation{
		ID:              uuid.New(),
		SessionID:       in.SessionID,
		UserID:          in.UserID,
		UserMessage:     message,
		AIResponse:      resp.Text,
		SentimentScore:  resp.Sentiment,
		Topics:          resp.Topics,
		EngagementScore: resp.Engagement,
		// Postgres keeps microseconds; the hash must survive a reload.
		Timestamp: s.now().UTC().Truncate(time.Microsecond),
	}
	if conv.Topics == nil {
		conv.Topics = []string{}
	}
	if resp.ModelUsed != "" {
		conv.ModelUsed = &resp.ModelUsed
	}
	if resp.FallbackReason != "" {
		conv.GenerationFallbackReason = &resp.FallbackReason
	}
	conv.ContentHash, err = ConversationHash(conv)
	if err != nil {
		return nil, err
	}

	if err := s.deps.Conversations.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to save conversation: %w", err)
	}

	s.logger.Info("conversation_created",
		zap.String("conversation_id", conv.ID.String()),
		zap.String("session_id", conv.SessionID.String()),
		zap.String("message_preview", logger.SanitizeString(message, 80)),
		zap.Strings("topics", conv.Topics),
		zap.String("model_used", resp.ModelUsed),
		zap.String("fallback_reason", resp.FallbackReason),
	)

	if s.cfg.BlockchainEnabled {
		s.enqueue(ctx, queue.NewIntegrityAnchorJob(in.UserID, in.SessionID, conv.ID, conv.ContentHash))
	}
	return conv, nil
}

// ConversationHash is the content hash stored with a conversation.
func ConversationHash(c *models.Conversation) (string, error) {
	h, err := integrity.Hash(integrity.ConversationContent{
		UserID:      c.UserID,
		SessionID:   c.SessionID,
		UserMessage: c.UserMessage,
		AIResponse:  c.AIResponse,
		Timestamp:   c.Timestamp.UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to hash conversation: %w", err)
	}
	return h, nil
}

// loadProfile returns the stored profile, or defaults when the learner has
// none yet.
func (s *Service) loadProfile(ctx context.Context, userID uuid.UUID) (*models.LearningProfile, error) {
	p, err := s.deps.Profiles.GetByUserID(ctx, userID)
	if err != nil {
		if database.IsNotFound(err) {
			return models.NewLearningProfile(userID), nil
		}
		return nil, fmt.Errorf("failed to load learning profile: %w", err)
	}
	return p, nil
}

// resolveModel picks the model for a turn: the explicit model, then the
// learner's default, then the configured system default. Inactive models
// are skipped. A nil generator means the styled fallback answers.
func (s *Service) resolveModel(ctx context.Context, userID uuid.UUID, explicit *uuid.UUID) (nlp.Generator, error) {
	if s.deps.Binder == nil || s.deps.Models == nil {
		return nil, nil
	}

	if explicit != nil {
		m, err := s.deps.Models.GetByID(ctx, *explicit)
		if err != nil {
			return nil, notFound("model", err)
		}
		if m.IsActive {
			return s.bind(ctx, userID, m, nil)
		}
		s.logger.Debug("inactive_model_ignored", zap.String("model", m.Name))
	}

	if s.deps.Preferences != nil {
		pref, err := s.deps.Preferences.GetDefault(ctx, userID)
		switch {
		case err == nil:
			m, err := s.deps.Models.GetByID(ctx, pref.ModelID)
			if err != nil && !database.IsNotFound(err) {
				return nil, fmt.Errorf("failed to load default model: %w", err)
			}
			if err == nil && m.IsActive {
				return s.bind(ctx, userID, m, pref)
			}
		case !database.IsNotFound(err):
			return nil, fmt.Errorf("failed to load default model preference: %w", err)
		}
	}

	if s.cfg.DefaultModelName == "" {
		return nil, nil
	}
	m, err := s.deps.Models.GetByName(ctx, s.cfg.DefaultModelName)
	if err != nil {
		if database.IsNotFound(err) {
			s.logger.Warn("default_model_not_registered", zap.String("model", s.cfg.DefaultModelName))
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load system default model: %w", err)
	}
	if !m.IsActive {
		return nil, nil
	}
	return s.bind(ctx, userID, m, nil)
}

// bind attaches the learner's preference for m, looking it up when the
// caller does not already hold it.
func (s *Service) bind(ctx context.Context, userID uuid.UUID, m *models.AIModel, pref *models.UserModelPreference) (nlp.Generator, error) {
	if pref == nil && s.deps.Preferences != nil {
		p, err := s.deps.Preferences.Get(ctx, userID, m.ID)
		if err != nil && !database.IsNotFound(err) {
			return nil, fmt.Errorf("failed to load model preference: %w", err)
		}
		pref = p
	}
	return s.deps.Binder.Bind(Descriptor(m), Preference(pref)), nil
}

// Descriptor converts a registered model to the dispatcher's view. Unknown
// kinds pass through so the dispatcher reports them.
func Descriptor(m *models.AIModel) ai.Descriptor {
	kind, err := ai.ParseKind(m.ModelType)
	if err != nil {
		kind = ai.Kind(m.ModelType)
	}
	d := ai.Descriptor{
		Name:              m.Name,
		Kind:              kind,
		RequiresKey:       m.APIKeyRequired,
		DefaultParameters: m.DefaultParameters,
	}
	if m.APIEndpoint != nil {
		d.Endpoint = *m.APIEndpoint
	}
	return d
}

// Preference converts a stored preference to the dispatcher's view.
func Preference(p *models.UserModelPreference) *ai.Preference {
	if p == nil {
		return nil
	}
	out := &ai.Preference{CustomParameters: p.CustomParameters, IsDefault: p.IsDefault}
	if p.APIKey != nil {
		out.APIKey = *p.APIKey
	}
	return out
}
