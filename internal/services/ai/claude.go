package ai

import (
	"context"
	"errors"
	"net/http"
)

const (
	// DefaultClaudeEndpoint is the Anthropic text completions endpoint
	DefaultClaudeEndpoint = "https://api.anthropic.com/v1/complete"
	// DefaultClaudeModel is the baseline model for the claude kind
	DefaultClaudeModel = "claude-2.0"
	anthropicVersion   = "2023-06-01"
)

type claudeProvider struct {
	http *http.Client
}

func (p *claudeProvider) kind() Kind { return KindClaude }

func (p *claudeProvider) defaults() map[string]any {
	return map[string]any{
		"model":                DefaultClaudeModel,
		"max_tokens_to_sample": 500,
		"temperature":          0.7,
	}
}

func (p *claudeProvider) generate(ctx context.Context, c call) (string, error) {
	endpoint := c.endpoint
	if endpoint == "" {
		endpoint = DefaultClaudeEndpoint
	}

	prompt := historyLines(c.req.History, "Human", "Assistant") +
		"\n\nHuman: " + c.req.Message + "\n\nAssistant:"
	if !c.req.RelevantInfo.Empty() {
		prompt = "Relevant information: " + c.req.RelevantInfo.Context() + "\n\n" + prompt
	}
	payload := mergeParams(map[string]any{"prompt": prompt}, c.params)

	headers := map[string]string{"anthropic-version": anthropicVersion}
	if c.apiKey != "" {
		headers["x-api-key"] = c.apiKey
	}

	var out struct {
		Completion *string `json:"completion"`
	}
	if err := postJSON(ctx, p.http, endpoint, headers, payload, &out); err != nil {
		return "", err
	}
	if out.Completion == nil {
		return "", stageErr(StageParse, ReasonMalformedResponse, errors.New("response has no completion field"))
	}
	return *out.Completion, nil
}
