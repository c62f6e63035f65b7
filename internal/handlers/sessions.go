package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/benvon/smart-tutor/internal/models"
	"github.com/benvon/smart-tutor/internal/services/tutor"
	"github.com/benvon/smart-tutor/internal/validation"
)

// MaxMessageLength bounds a single tutoring message
const MaxMessageLength = 10000

// SessionService runs learning sessions and tutoring turns
type SessionService interface {
	StartSession(ctx context.Context, in tutor.StartSessionInput) (*models.LearningSession, error)
	ListSessions(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*models.LearningSession, int, error)
	GetSession(ctx context.Context, userID, sessionID uuid.UUID) (*models.LearningSession, error)
	EndSession(ctx context.Context, userID, sessionID uuid.UUID) (*models.LearningSession, error)
	Ask(ctx context.Context, in tutor.AskInput) (*models.Conversation, error)
}

// SessionHandler handles session and conversation requests
type SessionHandler struct {
	svc    SessionService
	logger *zap.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(svc SessionService, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers session routes. The router should already have
// the /sessions prefix. askMiddleware wraps only the tutoring route, which
// is the expensive one.
func (h *SessionHandler) RegisterRoutes(r *mux.Router, askMiddleware ...mux.MiddlewareFunc) {
	r.HandleFunc("", h.StartSession).Methods("POST")
	r.HandleFunc("", h.ListSessions).Methods("GET")
	r.HandleFunc("/{id}", h.GetSession).Methods("GET")
	r.HandleFunc("/{id}/end", h.EndSession).Methods("POST")

	var ask http.Handler = http.HandlerFunc(h.Ask)
	for i := len(askMiddleware) - 1; i >= 0; i-- {
		ask = askMiddleware[i](ask)
	}
	r.Handle("/{id}/ask", ask).Methods("POST")
}

// StartSessionRequest opens a session
type StartSessionRequest struct {
	Subject            string  `json:"subject" validate:"required,max=100"`
	Topic              *string `json:"topic,omitempty" validate:"omitempty,max=200"`
	DifficultyLevel    int     `json:"difficulty_level,omitempty" validate:"omitempty,min=1,max=10"`
	LearningObjectives *string `json:"learning_objectives,omitempty" validate:"omitempty,max=2000"`
}

// AskRequest is one tutoring turn
type AskRequest struct {
	Message string     `json:"message" validate:"required"`
	ModelID *uuid.UUID `json:"model_id,omitempty"`
}

// ListSessionsResponse represents the paginated response for listing sessions
type ListSessionsResponse struct {
	Sessions   []*models.LearningSession `json:"sessions"`
	Page       int                       `json:"page"`
	PageSize   int                       `json:"page_size"`
	Total      int                       `json:"total"`
	TotalPages int                       `json:"total_pages"`
}

// StartSession opens a new learning session
func (h *SessionHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	var req StartSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := h.svc.StartSession(r.Context(), tutor.StartSessionInput{
		UserID:             user.ID,
		Subject:            validation.SanitizeText(req.Subject),
		Topic:              req.Topic,
		DifficultyLevel:    req.DifficultyLevel,
		LearningObjectives: req.LearningObjectives,
	})
	if err != nil {
		respondServiceError(w, h.logger, "failed_to_start_session", err)
		return
	}
	respondJSON(w, http.StatusCreated, session)
}

// ListSessions lists the caller's sessions, newest first
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	page := queryInt(r, "page", 1)
	pageSize := min(queryInt(r, "page_size", tutor.DefaultPageSize), tutor.MaxPageSize)

	sessions, total, err := h.svc.ListSessions(r.Context(), user.ID, page, pageSize)
	if err != nil {
		respondServiceError(w, h.logger, "failed_to_list_sessions", err)
		return
	}

	totalPages := (total + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}
	respondJSON(w, http.StatusOK, ListSessionsResponse{
		Sessions:   sessions,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
	})
}

// GetSession returns a session with its conversations
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	id, ok := pathID(w, r, "session")
	if !ok {
		return
	}
	session, err := h.svc.GetSession(r.Context(), user.ID, id)
	if err != nil {
		respondServiceError(w, h.logger, "failed_to_get_session", err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// EndSession closes a session and stores its summary
func (h *SessionHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	id, ok := pathID(w, r, "session")
	if !ok {
		return
	}
	session, err := h.svc.EndSession(r.Context(), user.ID, id)
	if err != nil {
		respondServiceError(w, h.logger, "failed_to_end_session", err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// Ask runs one tutoring turn and returns the stored conversation
func (h *SessionHandler) Ask(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	id, ok := pathID(w, r, "session")
	if !ok {
		return
	}
	var req AskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	message := validation.SanitizeText(req.Message)
	if message == "" {
		respondError(w, http.StatusBadRequest, "Message is required and cannot be empty after sanitization")
		return
	}
	if len(message) > MaxMessageLength {
		respondError(w, http.StatusBadRequest, "Message exceeds maximum length")
		return
	}

	conv, err := h.svc.Ask(r.Context(), tutor.AskInput{
		UserID:    user.ID,
		SessionID: id,
		Message:   message,
		ModelID:   req.ModelID,
	})
	if err != nil {
		respondServiceError(w, h.logger, "failed_to_answer_question", err)
		return
	}
	respondJSON(w, http.StatusCreated, conv)
}
