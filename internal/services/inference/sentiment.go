package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/benvon/smart-tutor/internal/nlp"
)

// ErrNoLabels is returned when the classifier answered with no labels.
var ErrNoLabels = errors.New("classifier returned no labels")

// SentimentClient calls a text-classification endpoint.
type SentimentClient struct {
	c *client
}

// NewSentimentClient returns nil when no URL is configured, so callers can
// pass the result straight to nlp.WithSentimentClassifier.
func NewSentimentClient(opts Options) *SentimentClient {
	if strings.TrimSpace(opts.URL) == "" {
		return nil
	}
	return &SentimentClient{c: newClient(opts)}
}

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classify returns the highest-scoring label, upper-cased, and its score.
func (s *SentimentClient) Classify(ctx context.Context, text string) (string, float64, error) {
	var raw json.RawMessage
	if err := s.c.post(ctx, map[string]any{"inputs": text}, &raw); err != nil {
		return "", 0, err
	}
	labels, err := decodeLabels(raw)
	if err != nil {
		return "", 0, err
	}

	best := labels[0]
	for _, l := range labels[1:] {
		if l.Score > best.Score {
			best = l
		}
	}
	return normalizeLabel(best.Label), best.Score, nil
}

// decodeLabels accepts both [[{label, score}]] and [{label, score}].
func decodeLabels(raw json.RawMessage) ([]labelScore, error) {
	var nested [][]labelScore
	if err := json.Unmarshal(raw, &nested); err == nil {
		if len(nested) == 0 || len(nested[0]) == 0 {
			return nil, ErrNoLabels
		}
		return nested[0], nil
	}
	var flat []labelScore
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("failed to decode labels: %w", err)
	}
	if len(flat) == 0 {
		return nil, ErrNoLabels
	}
	return flat, nil
}

// normalizeLabel maps common label spellings onto the pipeline's labels.
func normalizeLabel(label string) string {
	switch l := strings.ToUpper(strings.TrimSpace(label)); l {
	case "POS", "LABEL_1":
		return nlp.LabelPositive
	case "NEG", "LABEL_0":
		return nlp.LabelNegative
	default:
		return l
	}
}
