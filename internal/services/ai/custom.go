package ai

import (
	"context"
	"errors"
	"net/http"

	"github.com/benvon/smart-tutor/internal/nlp"
)

type customProvider struct {
	http *http.Client
}

func (p *customProvider) kind() Kind { return KindCustom }

func (p *customProvider) defaults() map[string]any { return nil }

func (p *customProvider) generate(ctx context.Context, c call) (string, error) {
	if c.endpoint == "" {
		return "", stageErr(StageBuildRequest, ReasonMissingEndpoint, errors.New("custom models need an endpoint"))
	}

	history := nlp.RecentTurns(c.req.History, nlp.HistoryWindow)
	if history == nil {
		history = []nlp.Turn{}
	}
	payload := mergeParams(c.params, map[string]any{
		"message":              c.req.Message,
		"user_profile":         c.req.Profile,
		"conversation_history": history,
	})
	if !c.req.RelevantInfo.Empty() {
		payload["relevant_info"] = c.req.RelevantInfo.Map()
	}

	var headers map[string]string
	if c.req.Descriptor.RequiresKey && c.apiKey != "" {
		headers = map[string]string{"Authorization": "Bearer " + c.apiKey}
	}

	var out struct {
		Response *string `json:"response"`
	}
	if err := postJSON(ctx, p.http, c.endpoint, headers, payload, &out); err != nil {
		return "", err
	}
	if out.Response == nil {
		return "", stageErr(StageParse, ReasonMalformedResponse, errors.New("response has no response field"))
	}
	return *out.Response, nil
}
