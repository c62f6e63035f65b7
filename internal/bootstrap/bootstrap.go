// Package bootstrap assembles the response pipeline and tutoring service
// from configuration. The server, worker and MCP binaries share it.
package bootstrap

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/benvon/smart-tutor/internal/config"
	"github.com/benvon/smart-tutor/internal/database"
	"github.com/benvon/smart-tutor/internal/nlp"
	"github.com/benvon/smart-tutor/internal/queue"
	"github.com/benvon/smart-tutor/internal/services/ai"
	"github.com/benvon/smart-tutor/internal/services/inference"
	"github.com/benvon/smart-tutor/internal/services/tutor"
)

// inferenceOptions points an inference client at url with the shared
// token and rate.
func inferenceOptions(cfg *config.Config, url string, httpClient *http.Client) inference.Options {
	return inference.Options{
		URL:        url,
		Token:      cfg.InferenceAPIToken,
		RPS:        cfg.InferenceRPS,
		Burst:      max(1, int(cfg.InferenceRPS)),
		HTTPClient: httpClient,
	}
}

// Pipeline builds the orchestrator: knowledge base, extractor with the
// lemma dictionary (unless disabled) and optional sentiment model.
func Pipeline(cfg *config.Config, httpClient *http.Client, logger *zap.Logger) (*nlp.Orchestrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	kb, err := nlp.LoadKnowledgeBase(cfg.KnowledgeBasePath)
	if err != nil {
		return nil, err
	}

	opts := []nlp.ExtractorOption{nlp.WithExtractorLogger(logger)}
	if cfg.UseDictionaryLemmatizer {
		lem, err := nlp.NewDictionaryLemmatizer()
		if err != nil {
			return nil, err
		}
		opts = append(opts, nlp.WithLemmatizer(lem))
	}
	if sc := inference.NewSentimentClient(inferenceOptions(cfg, cfg.SentimentAPIURL, httpClient)); sc != nil {
		opts = append(opts, nlp.WithSentimentClassifier(sc))
		logger.Info("sentiment_model_enabled", zap.String("url", cfg.SentimentAPIURL))
	}

	logger.Info("knowledge_base_loaded",
		zap.String("source", kb.Source()),
		zap.Int("subjects", len(kb.Subjects())),
		zap.Int("topics", kb.TopicCount()),
	)
	return nlp.NewOrchestrator(nlp.NewExtractor(opts...), kb, nlp.WithOrchestratorLogger(logger)), nil
}

// Dispatcher builds the model dispatcher with the system keys and the
// optional QA model behind the bert kind.
func Dispatcher(cfg *config.Config, httpClient *http.Client, debug bool, logger *zap.Logger) *ai.Dispatcher {
	aiCfg := ai.Config{
		Keys: ai.SystemKeys{
			OpenAI:    cfg.OpenAIKey,
			Anthropic: cfg.AnthropicKey,
			Llama:     cfg.LlamaKey,
			Gemini:    cfg.GeminiKey,
			Custom:    cfg.CustomModelKey,
		},
		LlamaBaseURL: cfg.LlamaBaseURL,
		Timeout:      cfg.ModelCallTimeout,
		HTTPClient:   httpClient,
		Logger:       logger,
		DebugMode:    debug,
	}
	if qa := inference.NewQAClient(inferenceOptions(cfg, cfg.QAAPIURL, httpClient)); qa != nil {
		aiCfg.QA = qa
	}
	return ai.NewDispatcher(aiCfg)
}

// TutorService wires the tutoring service onto the Postgres repositories.
// jobs may be nil.
func TutorService(db *database.DB, cfg *config.Config, pipeline *nlp.Orchestrator, binder tutor.Binder, jobs queue.Enqueuer, logger *zap.Logger) *tutor.Service {
	return tutor.NewService(tutor.Deps{
		Profiles:      database.NewProfileRepository(db),
		Sessions:      database.NewSessionRepository(db),
		Conversations: database.NewConversationRepository(db),
		Assessments:   database.NewAssessmentRepository(db),
		Models:        database.NewModelRepository(db),
		Preferences:   database.NewPreferenceRepository(db),
		Stats:         database.NewStatsRepository(db),
		Pipeline:      pipeline,
		Binder:        binder,
		Jobs:          jobs,
		Logger:        logger,
	}, tutor.Config{
		DefaultModelName:  cfg.DefaultModelName,
		BlockchainEnabled: cfg.BlockchainEnabled,
	})
}
