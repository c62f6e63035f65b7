package ai

import (
	"context"
	"errors"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const (
	// DefaultOpenAIBaseURL is the default OpenAI API base URL
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultGPTModel is the baseline model for the gpt kind
	DefaultGPTModel = "gpt-3.5-turbo"
	// DefaultLlamaModel is the baseline model for the llama kind
	DefaultLlamaModel = "llama-2-7b-chat"

	chatCompletionsPath = "/chat/completions"
)

// openAIProvider talks to the OpenAI chat completions API or any
// compatible server. It serves both the gpt and llama kinds.
type openAIProvider struct {
	k            Kind
	http         *http.Client
	defaultModel string
	// fallbackBaseURL is used when the descriptor has no endpoint. Empty
	// means the endpoint is mandatory.
	fallbackBaseURL string
}

func newGPTProvider(httpClient *http.Client) *openAIProvider {
	return &openAIProvider{
		k:               KindGPT,
		http:            httpClient,
		defaultModel:    DefaultGPTModel,
		fallbackBaseURL: DefaultOpenAIBaseURL,
	}
}

func newLlamaProvider(httpClient *http.Client, baseURL string) *openAIProvider {
	return &openAIProvider{
		k:               KindLlama,
		http:            httpClient,
		defaultModel:    DefaultLlamaModel,
		fallbackBaseURL: strings.TrimSpace(baseURL),
	}
}

func (p *openAIProvider) kind() Kind { return p.k }

func (p *openAIProvider) defaults() map[string]any {
	return map[string]any{
		"model":       p.defaultModel,
		"max_tokens":  500,
		"temperature": 0.7,
	}
}

// baseURL accepts either an API base or a full chat completions URL.
func (p *openAIProvider) baseURL(endpoint string) string {
	if endpoint == "" {
		endpoint = p.fallbackBaseURL
	}
	endpoint = strings.TrimRight(endpoint, "/")
	return strings.TrimSuffix(endpoint, chatCompletionsPath)
}

func (p *openAIProvider) generate(ctx context.Context, c call) (string, error) {
	baseURL := p.baseURL(c.endpoint)
	if baseURL == "" {
		return "", stageErr(StageBuildRequest, ReasonMissingEndpoint, errors.New("no base URL configured"))
	}

	opts := []option.RequestOption{
		option.WithBaseURL(baseURL + "/"),
		option.WithHTTPClient(p.http),
		option.WithMaxRetries(0),
	}
	if c.apiKey != "" {
		opts = append(opts, option.WithAPIKey(c.apiKey))
	}
	client := openai.NewClient(opts...)

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(paramString(c.params, "model", p.defaultModel)),
		Messages: chatMessages(c.req),
	}
	if v, ok := paramInt(c.params, "max_tokens"); ok {
		params.MaxTokens = openai.Int(v)
	}
	if v, ok := paramFloat(c.params, "temperature"); ok {
		params.Temperature = openai.Float(v)
	}

	// Remaining parameters are passed through verbatim.
	extra := without(c.params, "model", "max_tokens", "temperature", "messages")
	reqOpts := make([]option.RequestOption, 0, len(extra))
	for _, k := range slices.Sorted(maps.Keys(extra)) {
		reqOpts = append(reqOpts, option.WithJSONSet(k, extra[k]))
	}

	resp, err := client.Chat.Completions.New(ctx, params, reqOpts...)
	if err != nil {
		return "", callErr(err)
	}
	if len(resp.Choices) == 0 {
		return "", stageErr(StageParse, ReasonMalformedResponse, errors.New("no choices in response"))
	}
	return resp.Choices[0].Message.Content, nil
}

// chatMessages builds the personalization system message, the question
// with recent history, and the relevant information when there is any.
func chatMessages(req Request) []openai.ChatCompletionMessageParamUnion {
	user := historyLines(req.History, "User", "AI") + "\n\nUser question: " + req.Message
	msgs := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt(req.Profile)),
		openai.UserMessage(user),
	}
	if !req.RelevantInfo.Empty() {
		msgs = append(msgs, openai.SystemMessage("Relevant information: "+req.RelevantInfo.Context()))
	}
	return msgs
}
