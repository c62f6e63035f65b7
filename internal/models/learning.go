package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/benvon/smart-tutor/internal/nlp"
)

// LearningProfile holds a user's personalization settings
type LearningProfile struct {
	UserID                 uuid.UUID         `json:"user_id"`
	LearningStyle          nlp.LearningStyle `json:"learning_style"`
	SkillLevel             int               `json:"skill_level"`
	ResponseTimePreference int               `json:"response_time_preference"`
	PreferredSubjects      []string          `json:"preferred_subjects"`
	LearningGoals          string            `json:"learning_goals,omitempty"`
	CreatedAt              time.Time         `json:"created_at"`
	UpdatedAt              time.Time         `json:"updated_at"`
}

// NewLearningProfile returns the default profile created at registration.
func NewLearningProfile(userID uuid.UUID) *LearningProfile {
	d := nlp.DefaultProfile()
	return &LearningProfile{
		UserID:                 userID,
		SkillLevel:             d.SkillLevel,
		ResponseTimePreference: d.ResponseTimePreference,
		PreferredSubjects:      []string{},
	}
}

// Pipeline converts the stored profile to the pipeline's view.
func (p *LearningProfile) Pipeline() nlp.Profile {
	if p == nil {
		return nlp.DefaultProfile()
	}
	return nlp.Profile{
		LearningStyle:          p.LearningStyle,
		SkillLevel:             p.SkillLevel,
		ResponseTimePreference: p.ResponseTimePreference,
		PreferredSubjects:      p.PreferredSubjects,
	}.Normalized()
}

// DefaultDifficulty is the session difficulty when none is given.
const DefaultDifficulty = 5

// LearningSession is a bounded tutoring session on one subject
type LearningSession struct {
	ID                 uuid.UUID      `json:"id"`
	UserID             uuid.UUID      `json:"user_id"`
	Subject            string         `json:"subject"`
	Topic              *string        `json:"topic,omitempty"`
	DifficultyLevel    int            `json:"difficulty_level"`
	LearningObjectives *string        `json:"learning_objectives,omitempty"`
	Summary            *string        `json:"summary,omitempty"`
	StartTime          time.Time      `json:"start_time"`
	EndTime            *time.Time     `json:"end_time,omitempty"`
	BlockchainTxHash   *string        `json:"blockchain_tx_hash,omitempty"`
	Conversations      []Conversation `json:"conversations,omitempty"`
}

// Active reports whether the session has not been ended.
func (s *LearningSession) Active() bool {
	return s.EndTime == nil
}

// Conversation is one persisted tutoring turn. Rows are never updated.
type Conversation struct {
	ID                       uuid.UUID `json:"id"`
	SessionID                uuid.UUID `json:"session_id"`
	UserID                   uuid.UUID `json:"user_id"`
	UserMessage              string    `json:"user_message"`
	AIResponse               string    `json:"ai_response"`
	SentimentScore           float64   `json:"sentiment_score"`
	Topics                   []string  `json:"topics"`
	EngagementScore          float64   `json:"engagement_score"`
	ModelUsed                *string   `json:"model_used,omitempty"`
	GenerationFallbackReason *string   `json:"generation_fallback_reason,omitempty"`
	ContentHash              string    `json:"content_hash"`
	Timestamp                time.Time `json:"timestamp"`
}

// Turn converts the row to the pipeline's history view.
func (c Conversation) Turn() nlp.Turn {
	return nlp.Turn{UserMessage: c.UserMessage, AIResponse: c.AIResponse}
}

// MaxAssessmentScore is the score ceiling for assessments.
const MaxAssessmentScore = 10

// AssessmentQuestion is one open-ended question.
type AssessmentQuestion struct {
	ID       int    `json:"id"`
	Topic    string `json:"topic"`
	Question string `json:"question"`
	Type     string `json:"type"`
}

// Assessment is a generated set of questions and, once submitted, the
// learner's answers and score
type Assessment struct {
	ID          uuid.UUID            `json:"id"`
	UserID      uuid.UUID            `json:"user_id"`
	SessionID   *uuid.UUID           `json:"session_id,omitempty"`
	Subject     string               `json:"subject"`
	Topic       string               `json:"topic"`
	Questions   []AssessmentQuestion `json:"questions"`
	Answers     map[string]string    `json:"answers,omitempty"`
	Score       *int                 `json:"score,omitempty"`
	MaxScore    int                  `json:"max_score"`
	Feedback    *string              `json:"feedback,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	CompletedAt *time.Time           `json:"completed_at,omitempty"`
}

// Completed reports whether answers have been submitted.
func (a *Assessment) Completed() bool {
	return a.CompletedAt != nil
}
