package tutor

import (
	"context"
	"errors"
	"fmt"

	"github.com/benvon/smart-tutor/internal/services/ai"
)

func ptr(s string) *string { return &s }

// DefaultCatalog is the starter set of models installed by SeedModels.
// The BERT entry answers from the knowledge base and needs no key.
var DefaultCatalog = []RegisterModelInput{
	{
		Name:              "GPT-3.5 Turbo",
		ModelType:         string(ai.KindGPT),
		Description:       ptr("OpenAI chat model for general explanations and tutoring."),
		APIKeyRequired:    true,
		DefaultParameters: map[string]any{"model": ai.DefaultGPTModel, "max_tokens": 500, "temperature": 0.7},
	},
	{
		Name:              "Claude 2",
		ModelType:         string(ai.KindClaude),
		Description:       ptr("Anthropic model for careful, detailed explanations."),
		APIKeyRequired:    true,
		DefaultParameters: map[string]any{"model": ai.DefaultClaudeModel, "max_tokens_to_sample": 500, "temperature": 0.7},
	},
	{
		Name:              "BERT Q&A",
		ModelType:         string(ai.KindBERT),
		Description:       ptr("Extractive question answering over the knowledge base."),
		DefaultParameters: map[string]any{},
	},
	{
		Name:              "Llama 2",
		ModelType:         string(ai.KindLlama),
		Description:       ptr("Open chat model served from an OpenAI-compatible endpoint."),
		APIKeyRequired:    true,
		DefaultParameters: map[string]any{"model": ai.DefaultLlamaModel, "max_tokens": 500, "temperature": 0.7},
	},
}

// SeedModels registers every catalog entry whose name is not taken yet and
// returns the names it added. Rerunning it is harmless.
func (s *Service) SeedModels(ctx context.Context, catalog []RegisterModelInput) ([]string, error) {
	var added []string
	for _, in := range catalog {
		m, err := s.RegisterModel(ctx, in)
		if errors.Is(err, ErrConflict) {
			continue
		}
		if err != nil {
			return added, fmt.Errorf("seeding %s: %w", in.Name, err)
		}
		added = append(added, m.Name)
	}
	return added, nil
}
