package tutor

import (
	"context"

	"github.com/google/uuid"
)

// Verification is the result of re-hashing a stored conversation
type Verification struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	StoredHash     string    `json:"stored_hash"`
	ComputedHash   string    `json:"computed_hash"`
	Valid          bool      `json:"valid"`
}

// SessionAnchor reports the ledger transaction recorded for a session
type SessionAnchor struct {
	SessionID uuid.UUID `json:"session_id"`
	Anchored  bool      `json:"anchored"`
	TxHash    *string   `json:"blockchain_tx_hash,omitempty"`
	Summary   *string   `json:"summary,omitempty"`
}

// VerifyConversation recomputes a conversation's content hash and compares
// it with the stored one.
func (s *Service) VerifyConversation(ctx context.Context, userID, id uuid.UUID) (*Verification, error) {
	c, err := s.deps.Conversations.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("conversation", err)
	}
	if err := owned(c.UserID, userID); err != nil {
		return nil, err
	}
	computed, err := ConversationHash(c)
	if err != nil {
		return nil, err
	}
	return &Verification{
		ConversationID: c.ID,
		StoredHash:     c.ContentHash,
		ComputedHash:   computed,
		Valid:          computed == c.ContentHash,
	}, nil
}

// SessionAnchorOf returns the anchoring state of a session.
func (s *Service) SessionAnchorOf(ctx context.Context, userID, sessionID uuid.UUID) (*SessionAnchor, error) {
	session, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	return &SessionAnchor{
		SessionID: session.ID,
		Anchored:  session.BlockchainTxHash != nil,
		TxHash:    session.BlockchainTxHash,
		Summary:   session.Summary,
	}, nil
}
