package tutor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benvon/smart-tutor/internal/database"
	"github.com/benvon/smart-tutor/internal/models"
	"github.com/benvon/smart-tutor/internal/services/ai"
)

// RegisterModelInput registers a model backend
type RegisterModelInput struct {
	Name              string
	ModelType         string
	Description       *string
	APIEndpoint       *string
	APIKeyRequired    bool
	DefaultParameters map[string]any
}

// PreferenceInput changes a learner's preference for one model. A nil
// APIKey keeps the stored key; an empty one clears it.
type PreferenceInput struct {
	APIKey           *string
	CustomParameters map[string]any
	IsDefault        bool
}

// PreferenceView is a preference as shown to its owner. The key is masked.
type PreferenceView struct {
	ModelID          uuid.UUID      `json:"model_id"`
	ModelName        string         `json:"model_name"`
	HasAPIKey        bool           `json:"has_api_key"`
	MaskedAPIKey     string         `json:"api_key,omitempty"`
	CustomParameters map[string]any `json:"custom_parameters"`
	IsDefault        bool           `json:"is_default"`
	UpdatedAt        *time.Time     `json:"updated_at,omitempty"`
}

// ListModels returns the active models.
func (s *Service) ListModels(ctx context.Context) ([]*models.AIModel, error) {
	list, err := s.deps.Models.List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	if list == nil {
		list = []*models.AIModel{}
	}
	return list, nil
}

// RegisterModel adds an active model to the registry.
func (s *Service) RegisterModel(ctx context.Context, in RegisterModelInput) (*models.AIModel, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("name is required")
	}
	kind, err := ai.ParseKind(in.ModelType)
	if err != nil {
		return nil, invalid("%v", err)
	}
	endpoint := trimmedOrNil(in.APIEndpoint)
	if kind == ai.KindCustom && endpoint == nil {
		return nil, invalid("api_endpoint is required for custom models")
	}

	m := &models.AIModel{
		ID:                uuid.New(),
		Name:              name,
		ModelType:         string(kind),
		Description:       trimmedOrNil(in.Description),
		APIEndpoint:       endpoint,
		APIKeyRequired:    in.APIKeyRequired,
		DefaultParameters: in.DefaultParameters,
		IsActive:          true,
	}
	if m.DefaultParameters == nil {
		m.DefaultParameters = map[string]any{}
	}
	if err := s.deps.Models.Create(ctx, m); err != nil {
		if errors.Is(err, database.ErrConflict) {
			return nil, fmt.Errorf("model %q %w", name, ErrConflict)
		}
		return nil, fmt.Errorf("failed to register model: %w", err)
	}
	s.logger.Info("model_registered", zap.String("model", m.Name), zap.String("kind", m.ModelType))
	return m, nil
}

// GetPreference returns the learner's preference for a model. A model
// without a stored preference yields an empty view.
func (s *Service) GetPreference(ctx context.Context, userID, modelID uuid.UUID) (*PreferenceView, error) {
	m, err := s.deps.Models.GetByID(ctx, modelID)
	if err != nil {
		return nil, notFound("model", err)
	}
	p, err := s.deps.Preferences.Get(ctx, userID, modelID)
	if err != nil {
		if database.IsNotFound(err) {
			return &PreferenceView{ModelID: m.ID, ModelName: m.Name, CustomParameters: map[string]any{}}, nil
		}
		return nil, fmt.Errorf("failed to get model preference: %w", err)
	}
	return preferenceView(m, p), nil
}

// PutPreference stores the learner's preference for an active model.
func (s *Service) PutPreference(ctx context.Context, userID, modelID uuid.UUID, in PreferenceInput) (*PreferenceView, error) {
	m, err := s.activeModel(ctx, modelID)
	if err != nil {
		return nil, err
	}
	p := &models.UserModelPreference{
		UserID:           userID,
		ModelID:          modelID,
		CustomParameters: in.CustomParameters,
		IsDefault:        in.IsDefault,
	}
	if p.CustomParameters == nil {
		p.CustomParameters = map[string]any{}
	}
	if in.APIKey != nil {
		key := strings.TrimSpace(*in.APIKey)
		p.APIKey = &key
	}
	if err := s.deps.Preferences.Upsert(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save model preference: %w", err)
	}
	s.logger.Info("model_preference_saved",
		zap.String("user_id", userID.String()),
		zap.String("model", m.Name),
		zap.Bool("is_default", p.IsDefault),
	)
	return preferenceView(m, p), nil
}

// SetDefaultModel makes an active model the learner's only default.
func (s *Service) SetDefaultModel(ctx context.Context, userID, modelID uuid.UUID) (*PreferenceView, error) {
	m, err := s.activeModel(ctx, modelID)
	if err != nil {
		return nil, err
	}
	p, err := s.deps.Preferences.SetDefault(ctx, userID, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to set default model: %w", err)
	}
	return preferenceView(m, p), nil
}

func (s *Service) activeModel(ctx context.Context, modelID uuid.UUID) (*models.AIModel, error) {
	m, err := s.deps.Models.GetByID(ctx, modelID)
	if err != nil {
		return nil, notFound("model", err)
	}
	if !m.IsActive {
		return nil, invalid("model %q is not active", m.Name)
	}
	return m, nil
}

func preferenceView(m *models.AIModel, p *models.UserModelPreference) *PreferenceView {
	v := &PreferenceView{
		ModelID:          m.ID,
		ModelName:        m.Name,
		CustomParameters: p.CustomParameters,
		IsDefault:        p.IsDefault,
	}
	if v.CustomParameters == nil {
		v.CustomParameters = map[string]any{}
	}
	if p.APIKey != nil && *p.APIKey != "" {
		v.HasAPIKey = true
		v.MaskedAPIKey = ai.MaskAPIKey(*p.APIKey)
	}
	if !p.UpdatedAt.IsZero() {
		t := p.UpdatedAt
		v.UpdatedAt = &t
	}
	return v
}
