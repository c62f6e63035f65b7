package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/benvon/smart-tutor/internal/models"
	"github.com/benvon/smart-tutor/internal/services/tutor"
)

// ModelService manages the model registry and per-user preferences
type ModelService interface {
	ListModels(ctx context.Context) ([]*models.AIModel, error)
	RegisterModel(ctx context.Context, in tutor.RegisterModelInput) (*models.AIModel, error)
	GetPreference(ctx context.Context, userID, modelID uuid.UUID) (*tutor.PreferenceView, error)
	PutPreference(ctx context.Context, userID, modelID uuid.UUID, in tutor.PreferenceInput) (*tutor.PreferenceView, error)
	SetDefaultModel(ctx context.Context, userID, modelID uuid.UUID) (*tutor.PreferenceView, error)
}

// ModelHandler handles model registry requests
type ModelHandler struct {
	svc    ModelService
	logger *zap.Logger
}

// NewModelHandler creates a new model handler
func NewModelHandler(svc ModelService, logger *zap.Logger) *ModelHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers model routes. The router should already have
// the /models prefix. adminOnly gates registration.
func (h *ModelHandler) RegisterRoutes(r *mux.Router, adminOnly mux.MiddlewareFunc) {
	r.HandleFunc("", h.ListModels).Methods("GET")
	r.Handle("", adminOnly(http.HandlerFunc(h.RegisterModel))).Methods("POST")
	r.HandleFunc("/{id}/preference", h.GetPreference).Methods("GET")
	r.HandleFunc("/{id}/preference", h.PutPreference).Methods("PUT")
	r.HandleFunc("/{id}/default", h.SetDefault).Methods("POST")
}

// RegisterModelRequest adds a model backend
type RegisterModelRequest struct {
	Name              string         `json:"name" validate:"required,max=100"`
	ModelType         string         `json:"model_type" validate:"required,model_kind"`
	Description       *string        `json:"description,omitempty" validate:"omitempty,max=1000"`
	APIEndpoint       *string        `json:"api_endpoint,omitempty" validate:"omitempty,url,max=500"`
	APIKeyRequired    bool           `json:"api_key_required"`
	DefaultParameters map[string]any `json:"default_parameters,omitempty"`
}

// PreferenceRequest sets the caller's overrides for one model. api_key is
// write-only.
type PreferenceRequest struct {
	APIKey           *string        `json:"api_key,omitempty" validate:"omitempty,max=512"`
	CustomParameters map[string]any `json:"custom_parameters,omitempty"`
	IsDefault        bool           `json:"is_default"`
}

// ListModels lists active models
func (h *ModelHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListModels(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, "failed_to_list_models", err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// RegisterModel adds a model to the registry
func (h *ModelHandler) RegisterModel(w http.ResponseWriter, r *http.Request) {
	var req RegisterModelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	m, err := h.svc.RegisterModel(r.Context(), tutor.RegisterModelInput{
		Name:              req.Name,
		ModelType:         req.ModelType,
		Description:       req.Description,
		APIEndpoint:       req.APIEndpoint,
		APIKeyRequired:    req.APIKeyRequired,
		DefaultParameters: req.DefaultParameters,
	})
	if err != nil {
		respondServiceError(w, h.logger, "failed_to_register_model", err)
		return
	}
	respondJSON(w, http.StatusCreated, m)
}

// GetPreference returns the caller's preference for a model
func (h *ModelHandler) GetPreference(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	id, ok := pathID(w, r, "model")
	if !ok {
		return
	}
	v, err := h.svc.GetPreference(r.Context(), user.ID, id)
	if err != nil {
		respondServiceError(w, h.logger, "failed_to_get_model_preference", err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

// PutPreference stores the caller's preference for a model
func (h *ModelHandler) PutPreference(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	id, ok := pathID(w, r, "model")
	if !ok {
		return
	}
	var req PreferenceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	v, err := h.svc.PutPreference(r.Context(), user.ID, id, tutor.PreferenceInput{
		APIKey:           req.APIKey,
		CustomParameters: req.CustomParameters,
		IsDefault:        req.IsDefault,
	})
	if err != nil {
		respondServiceError(w, h.logger, "failed_to_save_model_preference", err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

// SetDefault makes a model the caller's default
func (h *ModelHandler) SetDefault(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	id, ok := pathID(w, r, "model")
	if !ok {
		return
	}
	v, err := h.svc.SetDefaultModel(r.Context(), user.ID, id)
	if err != nil {
		respondServiceError(w, h.logger, "failed_to_set_default_model", err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}
