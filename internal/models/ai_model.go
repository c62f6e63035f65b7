package models

import (
	"time"

	"github.com/google/uuid"
)

// AIModel is a registered model backend
type AIModel struct {
	ID                uuid.UUID      `json:"id"`
	Name              string         `json:"name"`
	ModelType         string         `json:"model_type"`
	Description       *string        `json:"description,omitempty"`
	APIEndpoint       *string        `json:"api_endpoint,omitempty"`
	APIKeyRequired    bool           `json:"api_key_required"`
	DefaultParameters map[string]any `json:"default_parameters,omitempty"`
	IsActive          bool           `json:"is_active"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// UserModelPreference is a user's override for one model. APIKey is never
// serialized; handlers expose a masked form.
type UserModelPreference struct {
	ID               uuid.UUID      `json:"id"`
	UserID           uuid.UUID      `json:"user_id"`
	ModelID          uuid.UUID      `json:"model_id"`
	APIKey           *string        `json:"-"`
	CustomParameters map[string]any `json:"custom_parameters,omitempty"`
	IsDefault        bool           `json:"is_default"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}
