package database

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/benvon/smart-tutor/internal/models"
)

// UserRepositoryInterface is the user store used by auth and handlers.
type UserRepositoryInterface interface {
	CreateWithProfile(ctx context.Context, user *models.User) (*models.LearningProfile, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByProviderID(ctx context.Context, providerID string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
}

// ProfileRepositoryInterface is the learning profile store.
type ProfileRepositoryInterface interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.LearningProfile, error)
	Upsert(ctx context.Context, p *models.LearningProfile) error
}

// SessionRepositoryInterface is the learning session store.
type SessionRepositoryInterface interface {
	Create(ctx context.Context, s *models.LearningSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.LearningSession, error)
	ListByUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*models.LearningSession, int, error)
	End(ctx context.Context, id uuid.UUID, endTime time.Time, summary string) (bool, error)
	SetSummary(ctx context.Context, id uuid.UUID, summary string) error
	SetAnchor(ctx context.Context, id uuid.UUID, txHash string) error
	ListStaleActive(ctx context.Context, cutoff time.Time, limit int) ([]*models.LearningSession, error)
}

// ConversationRepositoryInterface is the insert-only conversation store.
type ConversationRepositoryInterface interface {
	Create(ctx context.Context, c *models.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.Conversation, error)
	RecentBySession(ctx context.Context, sessionID uuid.UUID, n int) ([]models.Conversation, error)
}

// AssessmentRepositoryInterface is the assessment store.
type AssessmentRepositoryInterface interface {
	Create(ctx context.Context, a *models.Assessment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Assessment, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Assessment, error)
	Complete(ctx context.Context, a *models.Assessment) (bool, error)
}

// ModelRepositoryInterface is the AI model registry.
type ModelRepositoryInterface interface {
	Create(ctx context.Context, m *models.AIModel) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.AIModel, error)
	GetByName(ctx context.Context, name string) (*models.AIModel, error)
	List(ctx context.Context, activeOnly bool) ([]*models.AIModel, error)
}

// PreferenceRepositoryInterface is the per-user model override store.
type PreferenceRepositoryInterface interface {
	Get(ctx context.Context, userID, modelID uuid.UUID) (*models.UserModelPreference, error)
	GetDefault(ctx context.Context, userID uuid.UUID) (*models.UserModelPreference, error)
	Upsert(ctx context.Context, p *models.UserModelPreference) error
	SetDefault(ctx context.Context, userID, modelID uuid.UUID) (*models.UserModelPreference, error)
}

// StatsRepositoryInterface runs dashboard aggregates.
type StatsRepositoryInterface interface {
	SessionCounts(ctx context.Context, userID uuid.UUID) (int, int, error)
	ConversationAverages(ctx context.Context, userID uuid.UUID) (int, float64, float64, error)
	TopTopics(ctx context.Context, userID uuid.UUID, limit int) ([]models.TopicCount, error)
	AssessmentSummary(ctx context.Context, userID uuid.UUID) (int, *float64, error)
	SubjectProgress(ctx context.Context, userID uuid.UUID) ([]models.SubjectProgress, error)
	EngagementBySubject(ctx context.Context, userID uuid.UUID) ([]models.SubjectEngagement, error)
	TopicEngagement(ctx context.Context, userID uuid.UUID) ([]models.TopicEngagement, error)
	RecentTopicLists(ctx context.Context, userID uuid.UUID, n int) ([][]string, error)
}

// UserActivityRepositoryInterface records API activity.
type UserActivityRepositoryInterface interface {
	UpdateLastInteraction(ctx context.Context, userID uuid.UUID) error
}

// Ensure concrete types implement the interfaces
var (
	_ UserRepositoryInterface         = (*UserRepository)(nil)
	_ ProfileRepositoryInterface      = (*ProfileRepository)(nil)
	_ SessionRepositoryInterface      = (*SessionRepository)(nil)
	_ ConversationRepositoryInterface = (*ConversationRepository)(nil)
	_ AssessmentRepositoryInterface   = (*AssessmentRepository)(nil)
	_ ModelRepositoryInterface        = (*ModelRepository)(nil)
	_ PreferenceRepositoryInterface   = (*PreferenceRepository)(nil)
	_ StatsRepositoryInterface        = (*StatsRepository)(nil)
	_ UserActivityRepositoryInterface = (*UserActivityRepository)(nil)
)
