package nlp

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Fallback reasons recorded when the styled generator produced the text.
const (
	FallbackNoModel       = "no_model_selected"
	FallbackEmptyResponse = "empty_response"
)

// HistoryWindow is the number of prior turns handed to models.
const HistoryWindow = 5

// Prompt is everything a model-backed generator may use.
type Prompt struct {
	Message      string
	Profile      Profile
	History      []Turn
	Topics       []string
	RelevantInfo RelevantInfo
}

// Generation is the outcome of one model attempt. A non-empty
// FailureReason means the attempt failed and Text must be ignored.
type Generation struct {
	Text          string
	Model         string
	FailureReason string
}

// Generator produces a response with an external model. Implementations
// report failure through Generation.FailureReason and never panic or
// return partial text on failure.
type Generator interface {
	Generate(ctx context.Context, p Prompt) Generation
}

// StyleAdapterFunc renders the deterministic fallback response.
type StyleAdapterFunc func(info RelevantInfo, style LearningStyle, skillLevel, verbosity int) string

// Input is one tutoring turn.
type Input struct {
	Message string
	Profile Profile
	History []Turn
	// Model is the selected model bound to the learner's preference, or nil
	// when no model is selected.
	Model Generator
}

// Response is the final text plus the features persisted with the turn.
type Response struct {
	Text       string   `json:"text"`
	Topics     []string `json:"topics"`
	Sentiment  float64  `json:"sentiment_score"`
	Engagement float64  `json:"engagement_score"`
	// ModelUsed is set only when the model produced the text.
	ModelUsed string `json:"model_used,omitempty"`
	// FallbackReason explains why the styled generator was used instead of
	// the model. It is empty when the model answered.
	FallbackReason string `json:"generation_fallback_reason,omitempty"`
}

// Orchestrator sequences extraction, knowledge lookup, model generation and
// the style-adapted fallback.
type Orchestrator struct {
	extractor *Extractor
	knowledge *KnowledgeBase
	adapt     StyleAdapterFunc
	logger    *zap.Logger
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithStyleAdapter replaces the fallback renderer.
func WithStyleAdapter(fn StyleAdapterFunc) OrchestratorOption {
	return func(o *Orchestrator) {
		if fn != nil {
			o.adapt = fn
		}
	}
}

// WithOrchestratorLogger sets the logger.
func WithOrchestratorLogger(l *zap.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewOrchestrator creates an orchestrator over an extractor and an
// immutable knowledge base.
func NewOrchestrator(extractor *Extractor, knowledge *KnowledgeBase, opts ...OrchestratorOption) *Orchestrator {
	if extractor == nil {
		extractor = NewExtractor()
	}
	if knowledge == nil {
		knowledge = DefaultKnowledgeBase()
	}
	o := &Orchestrator{
		extractor: extractor,
		knowledge: knowledge,
		adapt:     Adapt,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Extractor returns the orchestrator's feature extractor.
func (o *Orchestrator) Extractor() *Extractor {
	return o.extractor
}

// Knowledge returns the orchestrator's knowledge base.
func (o *Orchestrator) Knowledge() *KnowledgeBase {
	return o.knowledge
}

// Respond produces the response for one turn. Features are always
// computed. When a model is selected and answers, its text is returned
// unstyled. Otherwise the style adapter runs exactly once. The returned
// text is never empty.
func (o *Orchestrator) Respond(ctx context.Context, in Input) Response {
	profile := in.Profile.Normalized()
	features := o.extractor.Extract(ctx, in.Message)
	info := o.knowledge.Lookup(in.Message, features.Topics)

	resp := Response{
		Topics:     features.Topics,
		Sentiment:  features.Sentiment,
		Engagement: features.Engagement,
	}

	reason := FallbackNoModel
	if in.Model != nil {
		gen := in.Model.Generate(ctx, Prompt{
			Message:      in.Message,
			Profile:      profile,
			History:      RecentTurns(in.History, HistoryWindow),
			Topics:       features.Topics,
			RelevantInfo: info,
		})
		switch {
		case gen.FailureReason != "":
			reason = gen.FailureReason
		case strings.TrimSpace(gen.Text) == "":
			reason = FallbackEmptyResponse
		default:
			resp.Text = gen.Text
			resp.ModelUsed = gen.Model
			return resp
		}
		o.logger.Info("model_generation_fell_back",
			zap.String("model", gen.Model),
			zap.String("reason", reason),
		)
	}

	resp.Text = o.adapt(info, profile.LearningStyle, profile.SkillLevel, profile.ResponseTimePreference)
	resp.FallbackReason = reason
	return resp
}
