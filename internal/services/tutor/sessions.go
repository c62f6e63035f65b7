package tutor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benvon/smart-tutor/internal/models"
	"github.com/benvon/smart-tutor/internal/nlp"
	"github.com/benvon/smart-tutor/internal/queue"
	"github.com/benvon/smart-tutor/internal/services/integrity"
)

// Session list paging bounds.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// NoInteractionsSummary is the summary of a session without conversations.
const NoInteractionsSummary = "No interactions recorded."

// StartSessionInput opens a learning session
type StartSessionInput struct {
	UserID             uuid.UUID
	Subject            string
	Topic              *string
	DifficultyLevel    int
	LearningObjectives *string
}

// StartSession opens a new learning session.
func (s *Service) StartSession(ctx context.Context, in StartSessionInput) (*models.LearningSession, error) {
	subject := strings.TrimSpace(in.Subject)
	if subject == "" {
		return nil, invalid("subject is required")
	}
	difficulty := in.DifficultyLevel
	if difficulty == 0 {
		difficulty = models.DefaultDifficulty
	}
	if difficulty < nlp.MinLevel || difficulty > nlp.MaxLevel {
		return nil, invalid("difficulty_level must be between %d and %d", nlp.MinLevel, nlp.MaxLevel)
	}

	session := &models.LearningSession{
		ID:                 uuid.New(),
		UserID:             in.UserID,
		Subject:            subject,
		Topic:              trimmedOrNil(in.Topic),
		DifficultyLevel:    difficulty,
		LearningObjectives: trimmedOrNil(in.LearningObjectives),
		StartTime:          s.now().UTC(),
	}
	if err := s.deps.Sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	s.logger.Info("session_started",
		zap.String("session_id", session.ID.String()),
		zap.String("subject", session.Subject),
	)
	return session, nil
}

// ListSessions returns one page of the user's sessions, newest first, and
// the total count.
func (s *Service) ListSessions(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*models.LearningSession, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	sessions, total, err := s.deps.Sessions.ListByUser(ctx, userID, page, pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sessions: %w", err)
	}
	if sessions == nil {
		sessions = []*models.LearningSession{}
	}
	return sessions, total, nil
}

// GetSession returns a session owned by userID with its conversations.
func (s *Service) GetSession(ctx context.Context, userID, sessionID uuid.UUID) (*models.LearningSession, error) {
	session, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	convs, err := s.deps.Conversations.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	if convs == nil {
		convs = []models.Conversation{}
	}
	session.Conversations = convs
	return session, nil
}

// EndSession closes a session, stores its summary and queues the
// finalisation job.
func (s *Service) EndSession(ctx context.Context, userID, sessionID uuid.UUID) (*models.LearningSession, error) {
	session, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Active() {
		return nil, ErrSessionEnded
	}
	if err := s.end(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// EndStaleSessions ends up to limit active sessions whose owners have been
// inactive since cutoff. It returns how many were ended.
func (s *Service) EndStaleSessions(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	stale, err := s.deps.Sessions.ListStaleActive(ctx, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale sessions: %w", err)
	}
	ended := 0
	for _, session := range stale {
		if err := ctx.Err(); err != nil {
			return ended, err
		}
		if err := s.end(ctx, session); err != nil {
			if errors.Is(err, ErrSessionEnded) {
				continue
			}
			return ended, err
		}
		ended++
	}
	return ended, nil
}

func (s *Service) end(ctx context.Context, session *models.LearningSession) error {
	convs, err := s.deps.Conversations.ListBySession(ctx, session.ID)
	if err != nil {
		return fmt.Errorf("failed to list conversations: %w", err)
	}
	summary := SummarizeSession(convs)
	endTime := s.now().UTC()

	ok, err := s.deps.Sessions.End(ctx, session.ID, endTime, summary)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	if !ok {
		return ErrSessionEnded
	}
	session.EndTime = &endTime
	session.Summary = &summary
	session.Conversations = convs

	s.logger.Info("session_ended",
		zap.String("session_id", session.ID.String()),
		zap.Int("interactions", len(convs)),
	)
	s.enqueue(ctx, queue.NewSessionSummaryJob(session.UserID, session.ID))
	return nil
}

func (s *Service) ownedSession(ctx context.Context, userID, sessionID uuid.UUID) (*models.LearningSession, error) {
	session, err := s.deps.Sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, notFound("session", err)
	}
	if err := owned(session.UserID, userID); err != nil {
		return nil, err
	}
	return session, nil
}

// SessionTopics returns the sorted, de-duplicated topics of convs.
func SessionTopics(convs []models.Conversation) []string {
	seen := make(map[string]struct{})
	topics := []string{}
	for _, c := range convs {
		for _, t := range c.Topics {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			topics = append(topics, t)
		}
	}
	sort.Strings(topics)
	return topics
}

// SummarizeSession renders the stored summary of a session.
func SummarizeSession(convs []models.Conversation) string {
	if len(convs) == 0 {
		return NoInteractionsSummary
	}
	return fmt.Sprintf("Session covered the following topics: %s. Total of %d interactions.",
		strings.Join(SessionTopics(convs), ", "), len(convs))
}

// SessionHash is the content hash anchored for an ended session.
func SessionHash(session *models.LearningSession, convs []models.Conversation) (string, error) {
	summary := SummarizeSession(convs)
	if session.Summary != nil {
		summary = *session.Summary
	}
	h, err := integrity.Hash(integrity.SessionContent{
		SessionID: session.ID,
		Topics:    SessionTopics(convs),
		Summary:   summary,
	})
	if err != nil {
		return "", fmt.Errorf("failed to hash session: %w", err)
	}
	return h, nil
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
