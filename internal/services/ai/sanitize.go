package ai

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxPreviewLength is the maximum length for prompt previews in logs
	MaxPreviewLength = 200
	// MaxLoggedErrorLength bounds provider error text in logs
	MaxLoggedErrorLength = 300
	// RedactedValue replaces sensitive data
	RedactedValue = "[REDACTED]"
)

// MaskAPIKey hides all but the edges of an API key. Keys of eight
// characters or fewer are fully redacted.
func MaskAPIKey(apiKey string) string {
	if apiKey == "" {
		return ""
	}
	if len(apiKey) <= 8 {
		return RedactedValue
	}
	return apiKey[:4] + RedactedValue + apiKey[len(apiKey)-4:]
}

// SanitizePrompt creates a safe preview of prompt or response text for
// logging.
func SanitizePrompt(prompt string, fullLog bool) string {
	maxLen := MaxPreviewLength
	if fullLog {
		maxLen = 10000
	}
	return TruncateString(stripControl(prompt), maxLen)
}

// TruncateString shortens s to at most maxLen runes, marking the cut.
func TruncateString(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen]) + "..."
}

func stripControl(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsPrint(r) || r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
