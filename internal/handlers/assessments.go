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

// AssessmentService generates and grades assessments
type AssessmentService interface {
	GenerateAssessment(ctx context.Context, in tutor.GenerateAssessmentInput) (*models.Assessment, error)
	SubmitAssessment(ctx context.Context, userID, id uuid.UUID, answers map[string]string) (*models.Assessment, error)
	GetAssessment(ctx context.Context, userID, id uuid.UUID) (*models.Assessment, error)
	ListAssessments(ctx context.Context, userID uuid.UUID) ([]*models.Assessment, error)
}

// AssessmentHandler handles assessment requests
type AssessmentHandler struct {
	svc    AssessmentService
	logger *zap.Logger
}

// NewAssessmentHandler creates a new assessment handler
func NewAssessmentHandler(svc AssessmentService, logger *zap.Logger) *AssessmentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssessmentHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers assessment routes. The router should already
// have the /assessments prefix.
func (h *AssessmentHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.GenerateAssessment).Methods("POST")
	r.HandleFunc("", h.ListAssessments).Methods("GET")
	r.HandleFunc("/{id}", h.GetAssessment).Methods("GET")
	r.HandleFunc("/{id}/submit", h.SubmitAssessment).Methods("POST")
}

// GenerateAssessmentRequest asks for questions on a topic or on the topics
// of a session
type GenerateAssessmentRequest struct {
	Subject   string     `json:"subject" validate:"required,max=100"`
	Topic     string     `json:"topic,omitempty" validate:"max=200"`
	SessionID *uuid.UUID `json:"session_id,omitempty"`
}

// SubmitAssessmentRequest maps question IDs to answers
type SubmitAssessmentRequest struct {
	Answers map[string]string `json:"answers" validate:"required,max=50,dive,max=10000"`
}

// GenerateAssessment creates open-ended questions
func (h *AssessmentHandler) GenerateAssessment(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	var req GenerateAssessmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	a, err := h.svc.GenerateAssessment(r.Context(), tutor.GenerateAssessmentInput{
		UserID:    user.ID,
		Subject:   validation.SanitizeText(req.Subject),
		Topic:     validation.SanitizeText(req.Topic),
		SessionID: req.SessionID,
	})
	if err != nil {
		respondServiceError(w, h.logger, "failed_to_generate_assessment", err)
		return
	}
	respondJSON(w, http.StatusCreated, a)
}

// ListAssessments lists the caller's assessments
func (h *AssessmentHandler) ListAssessments(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	list, err := h.svc.ListAssessments(r.Context(), user.ID)
	if err != nil {
		respondServiceError(w, h.logger, "failed_to_list_assessments", err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// GetAssessment returns one assessment
func (h *AssessmentHandler) GetAssessment(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	id, ok := pathID(w, r, "assessment")
	if !ok {
		return
	}
	a, err := h.svc.GetAssessment(r.Context(), user.ID, id)
	if err != nil {
		respondServiceError(w, h.logger, "failed_to_get_assessment", err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

// SubmitAssessment grades the answers
func (h *AssessmentHandler) SubmitAssessment(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	id, ok := pathID(w, r, "assessment")
	if !ok {
		return
	}
	var req SubmitAssessmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	answers := make(map[string]string, len(req.Answers))
	for k, v := range req.Answers {
		answers[k] = validation.SanitizeText(v)
	}
	a, err := h.svc.SubmitAssessment(r.Context(), user.ID, id, answers)
	if err != nil {
		respondServiceError(w, h.logger, "failed_to_submit_assessment", err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}
