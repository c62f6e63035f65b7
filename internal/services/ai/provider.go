package ai

import (
	"context"

	"github.com/benvon/smart-tutor/internal/nlp"
)

// Descriptor describes a registered model.
type Descriptor struct {
	Name              string         `json:"name"`
	Kind              Kind           `json:"model_type"`
	Endpoint          string         `json:"api_endpoint,omitempty"`
	RequiresKey       bool           `json:"api_key_required"`
	DefaultParameters map[string]any `json:"default_parameters,omitempty"`
}

// Preference is a learner's override for one model.
type Preference struct {
	APIKey           string         `json:"-"`
	CustomParameters map[string]any `json:"custom_parameters,omitempty"`
	IsDefault        bool           `json:"is_default"`
}

// Request is one dispatch attempt.
type Request struct {
	Descriptor   Descriptor
	Preference   *Preference
	Message      string
	Profile      nlp.Profile
	History      []nlp.Turn
	RelevantInfo nlp.RelevantInfo
}

// Result is the outcome of Dispatch. FailureReason is empty on success.
type Result struct {
	Text          string
	Model         string
	FailureReason string
}

// OK reports whether the model produced usable text.
func (r Result) OK() bool {
	return r.FailureReason == ""
}

// call is the fully resolved input handed to a provider.
type call struct {
	apiKey   string
	endpoint string
	params   map[string]any
	req      Request
}

// provider is implemented once per Kind. It returns the generated text or
// a *StageError describing which step failed.
type provider interface {
	kind() Kind
	// defaults are the baseline parameters, lowest precedence.
	defaults() map[string]any
	generate(ctx context.Context, c call) (string, error)
}
