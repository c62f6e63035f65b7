package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/benvon/smart-tutor/internal/services/tutor"
)

// IntegrityService verifies stored content against its hash
type IntegrityService interface {
	VerifyConversation(ctx context.Context, userID, id uuid.UUID) (*tutor.Verification, error)
	SessionAnchorOf(ctx context.Context, userID, sessionID uuid.UUID) (*tutor.SessionAnchor, error)
}

// IntegrityHandler handles content verification requests
type IntegrityHandler struct {
	svc    IntegrityService
	logger *zap.Logger
}

// NewIntegrityHandler creates a new integrity handler
func NewIntegrityHandler(svc IntegrityService, logger *zap.Logger) *IntegrityHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntegrityHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers integrity routes. The router should already
// have the /integrity prefix.
func (h *IntegrityHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/verify/conversations/{id}", h.VerifyConversation).Methods("POST")
	r.HandleFunc("/sessions/{id}", h.SessionAnchor).Methods("GET")
}

// VerifyConversation recomputes a conversation hash
func (h *IntegrityHandler) VerifyConversation(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	id, ok := pathID(w, r, "conversation")
	if !ok {
		return
	}
	v, err := h.svc.VerifyConversation(r.Context(), user.ID, id)
	if err != nil {
		respondServiceError(w, h.logger, "failed_to_verify_conversation", err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

// SessionAnchor returns the anchoring state of a session
func (h *IntegrityHandler) SessionAnchor(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	id, ok := pathID(w, r, "session")
	if !ok {
		return
	}
	a, err := h.svc.SessionAnchorOf(r.Context(), user.ID, id)
	if err != nil {
		respondServiceError(w, h.logger, "failed_to_get_session_anchor", err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}
