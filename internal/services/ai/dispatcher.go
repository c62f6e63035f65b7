package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/benvon/smart-tutor/internal/nlp"
)

const (
	// DefaultTimeout bounds a single model call.
	DefaultTimeout = 30 * time.Second

	tracerName = "github.com/benvon/smart-tutor/internal/services/ai"
)

// SystemKeys are the operator-provided API keys used when a learner has
// not supplied their own.
type SystemKeys struct {
	OpenAI    string
	Anthropic string
	Llama     string
	Gemini    string
	Custom    string
}

func (k SystemKeys) forKind(kind Kind) string {
	switch kind {
	case KindGPT:
		return k.OpenAI
	case KindClaude:
		return k.Anthropic
	case KindLlama:
		return k.Llama
	case KindGemini:
		return k.Gemini
	case KindCustom:
		return k.Custom
	default:
		return ""
	}
}

// Config configures a Dispatcher.
type Config struct {
	Keys SystemKeys
	// LlamaBaseURL is the OpenAI-compatible base URL used for llama models
	// without an explicit endpoint.
	LlamaBaseURL string
	Timeout      time.Duration
	HTTPClient   *http.Client
	// QA backs the bert variant. Nil disables it.
	QA        QuestionAnswerer
	Logger    *zap.Logger
	DebugMode bool
}

// Dispatcher routes a request to the provider for its model kind. It holds
// no per-request state and never retries.
type Dispatcher struct {
	keys    SystemKeys
	timeout time.Duration
	logger  *zap.Logger
	debug   bool
	tracer  trace.Tracer

	gpt    provider
	llama  provider
	claude provider
	custom provider
	bert   provider
	gemini provider
}

// NewDispatcher builds a dispatcher with one provider per kind.
func NewDispatcher(cfg Config) *Dispatcher {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		keys:    cfg.Keys,
		timeout: timeout,
		logger:  logger,
		debug:   cfg.DebugMode,
		tracer:  otel.Tracer(tracerName),
		gpt:     newGPTProvider(httpClient),
		llama:   newLlamaProvider(httpClient, cfg.LlamaBaseURL),
		claude:  &claudeProvider{http: httpClient},
		custom:  &customProvider{http: httpClient},
		bert:    &bertProvider{qa: cfg.QA},
		gemini:  &geminiProvider{http: httpClient},
	}
}

func (d *Dispatcher) providerFor(kind Kind) provider {
	switch kind {
	case KindGPT:
		return d.gpt
	case KindLlama:
		return d.llama
	case KindClaude:
		return d.claude
	case KindCustom:
		return d.custom
	case KindBERT:
		return d.bert
	case KindGemini:
		return d.gemini
	default:
		return nil
	}
}

// Dispatch runs one generation attempt. Failures never escape as errors:
// they are logged and reported through Result.FailureReason.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Result {
	desc := req.Descriptor
	res := Result{Model: desc.Name}

	ctx, span := d.tracer.Start(ctx, "ai.dispatch/"+string(desc.Kind),
		trace.WithAttributes(
			attribute.String("ai.model", desc.Name),
			attribute.String("ai.kind", string(desc.Kind)),
		))
	defer span.End()

	text, err := d.dispatch(ctx, req)
	if err != nil {
		var se *StageError
		if !errors.As(err, &se) {
			se = stageErr(StageCall, ReasonRequestFailed, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, se.Reason)
		d.logger.Warn("model_dispatch_failed",
			zap.String("provider", string(desc.Kind)),
			zap.String("model", desc.Name),
			zap.String("stage", se.Stage),
			zap.String("reason", se.Reason),
			zap.String("error", TruncateString(stripControl(err.Error()), MaxLoggedErrorLength)),
		)
		res.FailureReason = se.Reason
		return res
	}

	res.Text = text
	return res
}

func (d *Dispatcher) dispatch(ctx context.Context, req Request) (string, error) {
	desc := req.Descriptor
	p := d.providerFor(desc.Kind)
	if p == nil {
		return "", stageErr(StageSelectKey, ReasonUnsupportedModelKind, fmt.Errorf("model kind %q", desc.Kind))
	}

	apiKey := d.selectKey(req)
	if apiKey == "" && desc.RequiresKey {
		return "", stageErr(StageSelectKey, ReasonMissingAPIKey, fmt.Errorf("no key configured for %s", desc.Kind))
	}

	var custom map[string]any
	if req.Preference != nil {
		custom = req.Preference.CustomParameters
	}
	params := mergeParams(p.defaults(), desc.DefaultParameters, custom)

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if d.debug {
		d.logger.Debug("llm_api_request",
			zap.String("provider", string(desc.Kind)),
			zap.String("model", desc.Name),
			zap.String("api_key", MaskAPIKey(apiKey)),
			zap.Int("history_turns", len(nlp.RecentTurns(req.History, nlp.HistoryWindow))),
			zap.String("prompt_preview", SanitizePrompt(req.Message, false)),
		)
	}

	start := time.Now()
	text, err := p.generate(ctx, call{
		apiKey:   apiKey,
		endpoint: strings.TrimSpace(desc.Endpoint),
		params:   params,
		req:      req,
	})
	latency := time.Since(start)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", stageErr(StageParse, ReasonEmptyResponse, errors.New("provider returned no text"))
	}

	if d.debug {
		d.logger.Debug("llm_api_response",
			zap.String("provider", string(desc.Kind)),
			zap.String("model", desc.Name),
			zap.Int("response_length", len(text)),
			zap.String("response_preview", SanitizePrompt(text, true)),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}
	return text, nil
}

// selectKey prefers the learner's key over the system key for the kind.
func (d *Dispatcher) selectKey(req Request) string {
	if req.Preference != nil && strings.TrimSpace(req.Preference.APIKey) != "" {
		return strings.TrimSpace(req.Preference.APIKey)
	}
	return d.keys.forKind(req.Descriptor.Kind)
}

// Bind returns a generator for one model and preference, suitable for the
// response orchestrator.
func (d *Dispatcher) Bind(desc Descriptor, pref *Preference) nlp.Generator {
	return &boundModel{dispatcher: d, descriptor: desc, preference: pref}
}

type boundModel struct {
	dispatcher *Dispatcher
	descriptor Descriptor
	preference *Preference
}

func (b *boundModel) Generate(ctx context.Context, p nlp.Prompt) nlp.Generation {
	res := b.dispatcher.Dispatch(ctx, Request{
		Descriptor:   b.descriptor,
		Preference:   b.preference,
		Message:      p.Message,
		Profile:      p.Profile,
		History:      p.History,
		RelevantInfo: p.RelevantInfo,
	})
	return nlp.Generation{Text: res.Text, Model: res.Model, FailureReason: res.FailureReason}
}
