package tutor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benvon/smart-tutor/internal/services/ai"
)

func TestSeedModels(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(Config{})
	f.addModel("Claude 2", ai.KindClaude, false)

	added, err := f.svc.SeedModels(ctx, DefaultCatalog)
	require.NoError(t, err)
	assert.Equal(t, []string{"GPT-3.5 Turbo", "BERT Q&A", "Llama 2"}, added)
	assert.Len(t, f.models.rows, len(DefaultCatalog))

	again, err := f.svc.SeedModels(ctx, DefaultCatalog)
	require.NoError(t, err)
	assert.Empty(t, again)

	_, err = f.svc.SeedModels(ctx, []RegisterModelInput{{Name: "broken", ModelType: "markov"}})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDefaultCatalogIsValid(t *testing.T) {
	t.Parallel()

	for _, in := range DefaultCatalog {
		kind, err := ai.ParseKind(in.ModelType)
		require.NoError(t, err, in.Name)
		assert.NotEqual(t, ai.KindCustom, kind, "custom models need an endpoint")
		assert.Equal(t, kind != ai.KindBERT, in.APIKeyRequired, in.Name)
	}
}
