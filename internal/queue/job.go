package queue

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeSessionSummary finalises an ended session: summary backfill
	// and anchoring of the session hash.
	JobTypeSessionSummary JobType = "session_summary"
	// JobTypeIntegrityAnchor anchors one conversation's content hash.
	JobTypeIntegrityAnchor JobType = "integrity_anchor"
)

// DefaultMaxRetries is the retry budget for new jobs.
const DefaultMaxRetries = 3

// retryBase is the first retry delay; each retry doubles it.
const retryBase = 5 * time.Second

// Job represents a job in the queue
type Job struct {
	ID             uuid.UUID      `json:"id"`
	Type           JobType        `json:"type"`
	UserID         uuid.UUID      `json:"user_id"`
	SessionID      *uuid.UUID     `json:"session_id,omitempty"`
	ConversationID *uuid.UUID     `json:"conversation_id,omitempty"`
	NotBefore      *time.Time     `json:"not_before,omitempty"` // nil = immediate
	NotAfter       *time.Time     `json:"not_after,omitempty"`  // nil = no expiration
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	RetryCount     int            `json:"retry_count"`
	MaxRetries     int            `json:"max_retries"`
}

// NewJob creates a new job
func NewJob(jobType JobType, userID uuid.UUID) *Job {
	return &Job{
		ID:         uuid.New(),
		Type:       jobType,
		UserID:     userID,
		Metadata:   make(map[string]any),
		CreatedAt:  time.Now(),
		MaxRetries: DefaultMaxRetries,
	}
}

// NewSessionSummaryJob creates a job that finalises an ended session.
func NewSessionSummaryJob(userID, sessionID uuid.UUID) *Job {
	j := NewJob(JobTypeSessionSummary, userID)
	j.SessionID = &sessionID
	return j
}

// NewIntegrityAnchorJob creates a job that anchors a conversation hash.
func NewIntegrityAnchorJob(userID, sessionID, conversationID uuid.UUID, contentHash string) *Job {
	j := NewJob(JobTypeIntegrityAnchor, userID)
	j.SessionID = &sessionID
	j.ConversationID = &conversationID
	j.Metadata["content_hash"] = contentHash
	return j
}

// Validate checks that the job carries the ids its type needs.
func (j *Job) Validate() error {
	switch j.Type {
	case JobTypeSessionSummary:
		if j.SessionID == nil {
			return errors.New("session_summary job requires session_id")
		}
	case JobTypeIntegrityAnchor:
		if j.ConversationID == nil {
			return errors.New("integrity_anchor job requires conversation_id")
		}
	default:
		return fmt.Errorf("unknown job type %q", j.Type)
	}
	return nil
}

// MetadataString returns a string metadata value, or "".
func (j *Job) MetadataString(key string) string {
	s, _ := j.Metadata[key].(string)
	return s
}

// ShouldProcess checks if the job should be processed now
func (j *Job) ShouldProcess() bool {
	now := time.Now()
	if j.NotBefore != nil && now.Before(*j.NotBefore) {
		return false
	}
	return j.NotAfter == nil || !now.After(*j.NotAfter)
}

// IsExpired checks if the job has expired
func (j *Job) IsExpired() bool {
	return j.NotAfter != nil && time.Now().After(*j.NotAfter)
}

// CanRetry checks if the job can be retried
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// IncrementRetry bumps the retry count and schedules the next attempt
// with exponential back-off.
func (j *Job) IncrementRetry() {
	j.RetryCount++
	next := time.Now().Add(j.RetryDelay())
	j.NotBefore = &next
}

// RetryDelay is the back-off before the current retry attempt.
func (j *Job) RetryDelay() time.Duration {
	if j.RetryCount <= 0 {
		return 0
	}
	return retryBase << (j.RetryCount - 1)
}
