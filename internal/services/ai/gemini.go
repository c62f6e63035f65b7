package ai

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

// DefaultGeminiModel is the baseline model for the gemini kind
const DefaultGeminiModel = "gemini-1.5-flash"

type geminiProvider struct {
	http *http.Client
}

func (p *geminiProvider) kind() Kind { return KindGemini }

func (p *geminiProvider) defaults() map[string]any {
	return map[string]any{
		"model":             DefaultGeminiModel,
		"max_output_tokens": 500,
		"temperature":       0.7,
	}
}

func (p *geminiProvider) generate(ctx context.Context, c call) (string, error) {
	cfg := &genai.ClientConfig{
		APIKey:     c.apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: p.http,
	}
	if c.endpoint != "" {
		cfg.HTTPOptions.BaseURL = c.endpoint
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return "", stageErr(StageBuildRequest, ReasonRequestFailed, fmt.Errorf("failed to create GenAI client: %w", err))
	}

	instruction := systemPrompt(c.req.Profile)
	if !c.req.RelevantInfo.Empty() {
		instruction += "\n\nRelevant information: " + c.req.RelevantInfo.Context()
	}
	gc := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(instruction, genai.RoleUser),
	}
	if v, ok := paramFloat(c.params, "temperature"); ok {
		t := float32(v)
		gc.Temperature = &t
	}
	if v, ok := paramInt(c.params, "max_output_tokens"); ok {
		gc.MaxOutputTokens = int32(v)
	}

	user := historyLines(c.req.History, "User", "AI") + "\n\nUser question: " + c.req.Message
	contents := []*genai.Content{genai.NewContentFromText(user, genai.RoleUser)}

	resp, err := client.Models.GenerateContent(ctx, paramString(c.params, "model", DefaultGeminiModel), contents, gc)
	if err != nil {
		return "", callErr(err)
	}
	return resp.Text(), nil
}
