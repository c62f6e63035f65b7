package inference

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyAnswer is returned when the QA model found no answer span.
var ErrEmptyAnswer = errors.New("qa model returned an empty answer")

// QAClient calls an extractive question-answering endpoint.
type QAClient struct {
	c *client
}

// NewQAClient returns nil when no URL is configured.
func NewQAClient(opts Options) *QAClient {
	if strings.TrimSpace(opts.URL) == "" {
		return nil
	}
	return &QAClient{c: newClient(opts)}
}

// Answer extracts the answer to question from passage.
func (q *QAClient) Answer(ctx context.Context, question, passage string) (string, error) {
	payload := map[string]any{
		"inputs": map[string]string{"question": question, "context": passage},
	}
	var out struct {
		Answer string  `json:"answer"`
		Score  float64 `json:"score"`
	}
	if err := q.c.post(ctx, payload, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.Answer) == "" {
		return "", ErrEmptyAnswer
	}
	return out.Answer, nil
}
