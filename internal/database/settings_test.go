package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/benvon/smart-tutor/internal/models"
)

func TestValidateOrigins(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		wantErr bool
	}{
		{raw: "*"},
		{raw: "https://tutor.example.com, http://localhost:3000"},
		{raw: "https://tutor.example.com/"},
		{raw: "", wantErr: true},
		{raw: "tutor.example.com", wantErr: true},
		{raw: "ftp://files.example.com", wantErr: true},
		{raw: "https://tutor.example.com/app", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			_, err := ValidateOrigins(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateOrigins(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
		})
	}
}

// The rejections below happen before any query, so no database is needed.
func TestSettingsSetRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	limits := NewRatelimitConfigRepository(nil)
	assert.ErrorContains(t, limits.Set(ctx, &models.RatelimitConfig{ConfigKey: "reports", Rate: "5-S"}), "unknown rate limit key")
	assert.ErrorContains(t, limits.Set(ctx, &models.RatelimitConfig{ConfigKey: RatelimitKeyAsk, Rate: "  "}), "rate cannot be empty")

	cors := NewCorsConfigRepository(nil)
	assert.ErrorContains(t, cors.Set(ctx, &models.CorsConfig{AllowedOrigins: "tutor.example.com"}), "invalid origin")
	assert.ErrorContains(t, cors.Set(ctx, &models.CorsConfig{AllowedOrigins: "*", MaxAge: -1}), "max_age")
}
