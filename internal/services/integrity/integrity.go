// Package integrity computes content hashes for tutoring records and
// anchors them with a mock ledger transaction.
package integrity

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultContractAddress is used when no contract address is configured.
const DefaultContractAddress = "0x0000000000000000000000000000000000000000"

// Hash returns the hex sha256 of v's canonical JSON encoding: object keys
// sorted at every level, no insignificant whitespace.
func Hash(v any) (string, error) {
	canonical, err := Canonical(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Canonical re-encodes v so that equal content always yields equal bytes
// regardless of map iteration or struct field order.
func Canonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode content: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("failed to normalise content: %w", err)
	}
	out, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("failed to encode canonical content: %w", err)
	}
	return out, nil
}

// Verify reports whether v hashes to expected.
func Verify(v any, expected string) (bool, error) {
	got, err := Hash(v)
	if err != nil {
		return false, err
	}
	return got == expected, nil
}

// ConversationContent is the hashed view of a conversation turn.
type ConversationContent struct {
	UserID      uuid.UUID `json:"user_id"`
	SessionID   uuid.UUID `json:"session_id"`
	UserMessage string    `json:"user_message"`
	AIResponse  string    `json:"ai_response"`
	Timestamp   time.Time `json:"timestamp"`
}

// SessionContent is the hashed view of an ended session.
type SessionContent struct {
	SessionID uuid.UUID `json:"session_id"`
	Topics    []string  `json:"topics"`
	Summary   string    `json:"summary"`
}

// Anchorer records a content hash on a ledger and returns its transaction id.
type Anchorer interface {
	Anchor(ctx context.Context, contentHash string) (string, error)
}

// MockAnchorer derives a deterministic transaction id instead of talking
// to a chain.
type MockAnchorer struct {
	contract string
	logger   *zap.Logger
}

// NewMockAnchorer creates a mock anchorer bound to a contract address.
func NewMockAnchorer(contractAddress string, logger *zap.Logger) *MockAnchorer {
	if contractAddress == "" {
		contractAddress = DefaultContractAddress
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MockAnchorer{contract: contractAddress, logger: logger}
}

// Anchor returns "0x" + sha256(contentHash + contract address).
func (m *MockAnchorer) Anchor(ctx context.Context, contentHash string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if contentHash == "" {
		return "", fmt.Errorf("content hash is required")
	}
	sum := sha256.Sum256([]byte(contentHash + m.contract))
	tx := "0x" + hex.EncodeToString(sum[:])
	m.logger.Debug("integrity_anchor_recorded",
		zap.String("content_hash", contentHash),
		zap.String("tx_hash", tx),
	)
	return tx, nil
}
