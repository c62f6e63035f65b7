package ai

import (
	"fmt"
	"strings"
)

// Kind identifies a model backend family.
type Kind string

const (
	KindGPT    Kind = "gpt"
	KindBERT   Kind = "bert"
	KindLlama  Kind = "llama"
	KindClaude Kind = "claude"
	KindCustom Kind = "custom"
	KindGemini Kind = "gemini"
)

// Kinds lists every supported backend.
var Kinds = []Kind{KindGPT, KindBERT, KindLlama, KindClaude, KindCustom, KindGemini}

// Valid reports whether k is a supported backend.
func (k Kind) Valid() bool {
	switch k {
	case KindGPT, KindBERT, KindLlama, KindClaude, KindCustom, KindGemini:
		return true
	}
	return false
}

// ParseKind normalises a stored model_type value.
func ParseKind(raw string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(raw)))
	if !k.Valid() {
		return "", fmt.Errorf("unsupported model kind %q", raw)
	}
	return k, nil
}
