package ai

import (
	"context"
	"errors"
)

// QuestionAnswerer is an extractive question-answering model.
type QuestionAnswerer interface {
	Answer(ctx context.Context, question, context string) (string, error)
}

// bertProvider answers from the relevant knowledge only.
type bertProvider struct {
	qa QuestionAnswerer
}

func (p *bertProvider) kind() Kind { return KindBERT }

func (p *bertProvider) defaults() map[string]any { return nil }

func (p *bertProvider) generate(ctx context.Context, c call) (string, error) {
	if p.qa == nil {
		return "", stageErr(StageBuildRequest, ReasonNoQACapability, errors.New("no question answering model configured"))
	}
	if c.req.RelevantInfo.Empty() {
		return "", stageErr(StageBuildRequest, ReasonNoContext, errors.New("no relevant information to answer from"))
	}
	answer, err := p.qa.Answer(ctx, c.req.Message, c.req.RelevantInfo.Context())
	if err != nil {
		return "", callErr(err)
	}
	return answer, nil
}
