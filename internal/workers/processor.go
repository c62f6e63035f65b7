// Package workers runs the background jobs queued by the tutor service.
package workers

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/benvon/smart-tutor/internal/database"
	"github.com/benvon/smart-tutor/internal/models"
	"github.com/benvon/smart-tutor/internal/queue"
	"github.com/benvon/smart-tutor/internal/services/integrity"
	"github.com/benvon/smart-tutor/internal/services/tutor"
)

// SessionStore is the slice of the session repository the worker writes.
type SessionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.LearningSession, error)
	SetSummary(ctx context.Context, id uuid.UUID, summary string) error
	SetAnchor(ctx context.Context, id uuid.UUID, txHash string) error
}

// ConversationStore is the slice of the conversation repository the worker reads.
type ConversationStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.Conversation, error)
}

// errPermanent marks failures a retry cannot fix.
var errPermanent = errors.New("permanent job failure")

// Processor finalises sessions and anchors content hashes.
type Processor struct {
	sessions      SessionStore
	conversations ConversationStore
	anchorer      integrity.Anchorer
	requeue       queue.Enqueuer
	limiter       *rate.Limiter
	logger        *zap.Logger
}

// NewProcessor creates a processor. requeue may be nil, in which case
// retries are redelivered by the broker immediately. A nil limiter does
// not throttle.
func NewProcessor(
	sessions SessionStore,
	conversations ConversationStore,
	anchorer integrity.Anchorer,
	requeue queue.Enqueuer,
	limiter *rate.Limiter,
	logger *zap.Logger,
) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		sessions:      sessions,
		conversations: conversations,
		anchorer:      anchorer,
		requeue:       requeue,
		limiter:       limiter,
		logger:        logger,
	}
}

// Run processes messages until ctx is cancelled or msgs is closed.
func (p *Processor) Run(ctx context.Context, msgs <-chan queue.Message, errs <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			p.logger.Error("queue_error", zap.Error(err))
		case msg, ok := <-msgs:
			if !ok {
				p.logger.Info("message_channel_closed")
				return nil
			}
			if p.limiter != nil {
				if err := p.limiter.Wait(ctx); err != nil {
					// Leave the message for the next consumer.
					_ = msg.Nack(true)
					return err
				}
			}
			if err := p.ProcessJob(ctx, msg); err != nil {
				job := msg.GetJob()
				p.logger.Error("job_failed",
					zap.String("job_id", job.ID.String()),
					zap.String("job_type", string(job.Type)),
					zap.Int("retry_count", job.RetryCount),
					zap.Error(err),
				)
			}
		}
	}
}

// ProcessJob runs one job and settles its message.
func (p *Processor) ProcessJob(ctx context.Context, msg queue.Message) error {
	job := msg.GetJob()

	if job.IsExpired() {
		p.logger.Info("job_expired", zap.String("job_id", job.ID.String()))
		return msg.Ack()
	}
	if !job.ShouldProcess() {
		if err := msg.Nack(true); err != nil {
			return fmt.Errorf("failed to requeue early job: %w", err)
		}
		return nil
	}

	var err error
	switch job.Type {
	case queue.JobTypeSessionSummary:
		err = p.finaliseSession(ctx, job)
	case queue.JobTypeIntegrityAnchor:
		err = p.anchorConversation(ctx, job)
	default:
		err = fmt.Errorf("%w: unknown job type %q", errPermanent, job.Type)
	}
	if err != nil {
		return p.handleJobError(ctx, msg, job, err)
	}
	if ackErr := msg.Ack(); ackErr != nil {
		return fmt.Errorf("failed to ack job: %w", ackErr)
	}
	return nil
}

// finaliseSession backfills a missing summary and anchors the session hash.
func (p *Processor) finaliseSession(ctx context.Context, job *queue.Job) error {
	if job.SessionID == nil {
		return fmt.Errorf("%w: session_id is required", errPermanent)
	}
	session, err := p.sessions.GetByID(ctx, *job.SessionID)
	if err != nil {
		if database.IsNotFound(err) {
			return fmt.Errorf("%w: session %s not found", errPermanent, job.SessionID)
		}
		return fmt.Errorf("failed to get session: %w", err)
	}
	if session.UserID != job.UserID {
		return fmt.Errorf("%w: session does not belong to user", errPermanent)
	}
	if session.BlockchainTxHash != nil {
		p.logger.Debug("session_already_anchored", zap.String("session_id", session.ID.String()))
		return nil
	}

	convs, err := p.conversations.ListBySession(ctx, session.ID)
	if err != nil {
		return fmt.Errorf("failed to list conversations: %w", err)
	}
	if session.Summary == nil {
		summary := tutor.SummarizeSession(convs)
		if err := p.sessions.SetSummary(ctx, session.ID, summary); err != nil {
			return err
		}
		session.Summary = &summary
	}

	hash, err := tutor.SessionHash(session, convs)
	if err != nil {
		return fmt.Errorf("%w: %v", errPermanent, err)
	}
	tx, err := p.anchorer.Anchor(ctx, hash)
	if err != nil {
		return fmt.Errorf("failed to anchor session: %w", err)
	}
	if err := p.sessions.SetAnchor(ctx, session.ID, tx); err != nil {
		return err
	}
	p.logger.Info("session_anchored",
		zap.String("session_id", session.ID.String()),
		zap.String("tx_hash", tx),
		zap.Int("interactions", len(convs)),
	)
	return nil
}

// anchorConversation anchors a conversation hash after checking it still
// matches the stored content.
func (p *Processor) anchorConversation(ctx context.Context, job *queue.Job) error {
	if job.ConversationID == nil {
		return fmt.Errorf("%w: conversation_id is required", errPermanent)
	}
	conv, err := p.conversations.GetByID(ctx, *job.ConversationID)
	if err != nil {
		if database.IsNotFound(err) {
			return fmt.Errorf("%w: conversation %s not found", errPermanent, job.ConversationID)
		}
		return fmt.Errorf("failed to get conversation: %w", err)
	}
	hash := job.MetadataString("content_hash")
	if hash == "" {
		hash = conv.ContentHash
	}
	if hash != conv.ContentHash {
		return fmt.Errorf("%w: content hash mismatch for conversation %s", errPermanent, conv.ID)
	}

	tx, err := p.anchorer.Anchor(ctx, hash)
	if err != nil {
		return fmt.Errorf("failed to anchor conversation: %w", err)
	}
	p.logger.Info("conversation_anchored",
		zap.String("conversation_id", conv.ID.String()),
		zap.String("session_id", conv.SessionID.String()),
		zap.String("tx_hash", tx),
	)
	return nil
}

// handleJobError retries transient failures with back-off and dead-letters
// the rest.
func (p *Processor) handleJobError(ctx context.Context, msg queue.Message, job *queue.Job, err error) error {
	if errors.Is(err, errPermanent) || !job.CanRetry() {
		if nackErr := msg.Nack(false); nackErr != nil {
			p.logger.Warn("failed_to_dead_letter_job", zap.String("job_id", job.ID.String()), zap.Error(nackErr))
		}
		return fmt.Errorf("job dead-lettered: %w", err)
	}

	job.IncrementRetry()
	if p.requeue != nil {
		enqueueErr := p.requeue.Enqueue(ctx, job)
		if enqueueErr == nil {
			if ackErr := msg.Ack(); ackErr != nil {
				p.logger.Warn("failed_to_ack_requeued_job", zap.String("job_id", job.ID.String()), zap.Error(ackErr))
			}
			return fmt.Errorf("job will retry in %s: %w", job.RetryDelay(), err)
		}
		p.logger.Warn("failed_to_reenqueue_job", zap.String("job_id", job.ID.String()), zap.Error(enqueueErr))
	}
	if nackErr := msg.Nack(true); nackErr != nil {
		p.logger.Warn("failed_to_requeue_job", zap.String("job_id", job.ID.String()), zap.Error(nackErr))
	}
	return fmt.Errorf("job will retry (attempt %d/%d): %w", job.RetryCount, job.MaxRetries, err)
}
