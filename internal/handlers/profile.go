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

// ProfileService reads and updates learning profiles
type ProfileService interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.LearningProfile, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, upd tutor.ProfileUpdate) (*models.LearningProfile, error)
	DetectLearningStyle(ctx context.Context, userID uuid.UUID, text string, apply bool) (*tutor.StyleDetection, error)
}

// ProfileHandler handles the learner profile and style detection
type ProfileHandler struct {
	svc    ProfileService
	logger *zap.Logger
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(svc ProfileService, logger *zap.Logger) *ProfileHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers profile routes on the /api/v1 router
func (h *ProfileHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/profile", h.GetProfile).Methods("GET")
	r.HandleFunc("/profile", h.UpdateProfile).Methods("PUT")
	r.HandleFunc("/tutor/learning-style", h.DetectLearningStyle).Methods("POST")
}

// UpdateProfileRequest changes only the fields present
type UpdateProfileRequest struct {
	LearningStyle          *string  `json:"learning_style,omitempty" validate:"omitempty,learning_style"`
	SkillLevel             *int     `json:"skill_level,omitempty" validate:"omitempty,min=1,max=10"`
	ResponseTimePreference *int     `json:"response_time_preference,omitempty" validate:"omitempty,min=1,max=10"`
	PreferredSubjects      []string `json:"preferred_subjects,omitempty" validate:"omitempty,max=20,dive,max=100"`
	LearningGoals          *string  `json:"learning_goals,omitempty" validate:"omitempty,max=2000"`
}

// LearningStyleRequest is text to classify
type LearningStyleRequest struct {
	Text          string `json:"text" validate:"required,max=10000"`
	UpdateProfile bool   `json:"update_profile"`
}

// GetProfile returns the caller's learning profile
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	p, err := h.svc.GetProfile(r.Context(), user.ID)
	if err != nil {
		respondServiceError(w, h.logger, "failed_to_get_profile", err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// UpdateProfile applies a partial profile update
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	var req UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.LearningGoals != nil {
		goals := validation.SanitizeText(*req.LearningGoals)
		req.LearningGoals = &goals
	}
	p, err := h.svc.UpdateProfile(r.Context(), user.ID, tutor.ProfileUpdate{
		LearningStyle:          req.LearningStyle,
		SkillLevel:             req.SkillLevel,
		ResponseTimePreference: req.ResponseTimePreference,
		PreferredSubjects:      req.PreferredSubjects,
		LearningGoals:          req.LearningGoals,
	})
	if err != nil {
		respondServiceError(w, h.logger, "failed_to_update_profile", err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// DetectLearningStyle classifies text and optionally stores the result
func (h *ProfileHandler) DetectLearningStyle(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	var req LearningStyleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	text := validation.SanitizeText(req.Text)
	if text == "" {
		respondError(w, http.StatusBadRequest, "Text is required and cannot be empty after sanitization")
		return
	}
	res, err := h.svc.DetectLearningStyle(r.Context(), user.ID, text, req.UpdateProfile)
	if err != nil {
		respondServiceError(w, h.logger, "failed_to_detect_learning_style", err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}
