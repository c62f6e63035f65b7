// Package tutor implements the tutoring use-cases: sessions, tutoring turns,
// assessments, the learner dashboard and per-user model selection.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benvon/smart-tutor/internal/database"
	"github.com/benvon/smart-tutor/internal/nlp"
	"github.com/benvon/smart-tutor/internal/queue"
	"github.com/benvon/smart-tutor/internal/services/ai"
)

var (
	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the record belongs to another user.
	ErrForbidden = errors.New("forbidden")
	// ErrSessionEnded is returned when a session has already ended.
	ErrSessionEnded = errors.New("session has already ended")
	// ErrAssessmentCompleted is returned on a second submission.
	ErrAssessmentCompleted = errors.New("assessment already completed")
	// ErrInvalidInput is returned for requests that fail domain checks.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict is returned when a unique name is already taken.
	ErrConflict = errors.New("already exists")
)

// Binder turns a registered model and a learner's preference into a
// generator for the response pipeline.
type Binder interface {
	Bind(desc ai.Descriptor, pref *ai.Preference) nlp.Generator
}

// Deps are the stores and collaborators the service runs on. Jobs may be
// nil, in which case background work is skipped.
type Deps struct {
	Profiles      database.ProfileRepositoryInterface
	Sessions      database.SessionRepositoryInterface
	Conversations database.ConversationRepositoryInterface
	Assessments   database.AssessmentRepositoryInterface
	Models        database.ModelRepositoryInterface
	Preferences   database.PreferenceRepositoryInterface
	Stats         database.StatsRepositoryInterface
	Pipeline      *nlp.Orchestrator
	Binder        Binder
	Jobs          queue.Enqueuer
	Logger        *zap.Logger
}

// Config holds tutoring behaviour switches
type Config struct {
	// DefaultModelName is used when the learner selected no model.
	DefaultModelName string
	// BlockchainEnabled enqueues anchoring jobs for new conversations.
	BlockchainEnabled bool
}

// Service implements the tutoring use-cases
type Service struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a tutoring service.
func NewService(deps Deps, cfg Config) *Service {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if deps.Pipeline == nil {
		deps.Pipeline = nlp.NewOrchestrator(nil, nil, nlp.WithOrchestratorLogger(log))
	}
	return &Service{deps: deps, cfg: cfg, logger: log, now: time.Now}
}

// Pipeline returns the response orchestrator the service runs.
func (s *Service) Pipeline() *nlp.Orchestrator {
	return s.deps.Pipeline
}

// notFound maps repository not-found errors onto ErrNotFound.
func notFound(what string, err error) error {
	if database.IsNotFound(err) {
		return fmt.Errorf("%s %w", what, ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}

// enqueue publishes a job when a queue is configured. Failures are logged:
// the request that triggered the job has already been committed.
func (s *Service) enqueue(ctx context.Context, job *queue.Job) {
	if s.deps.Jobs == nil {
		s.logger.Debug("job_skipped_no_queue", zap.String("job_type", string(job.Type)))
		return
	}
	if err := s.deps.Jobs.Enqueue(ctx, job); err != nil {
		s.logger.Warn("job_enqueue_failed",
			zap.String("job_type", string(job.Type)),
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func owned(owner, caller uuid.UUID) error {
	if owner != caller {
		return ErrForbidden
	}
	return nil
}
