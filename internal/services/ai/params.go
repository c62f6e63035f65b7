package ai

import (
	"fmt"
	"maps"
	"strings"

	"github.com/benvon/smart-tutor/internal/nlp"
)

// mergeParams layers parameter maps; later layers win.
func mergeParams(layers ...map[string]any) map[string]any {
	out := make(map[string]any)
	for _, layer := range layers {
		maps.Copy(out, layer)
	}
	return out
}

func paramString(params map[string]any, key, def string) string {
	if s, ok := params[key].(string); ok && s != "" {
		return s
	}
	return def
}

// paramFloat accepts any JSON number form.
func paramFloat(params map[string]any, key string) (float64, bool) {
	switch v := params[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	}
	return 0, false
}

func paramInt(params map[string]any, key string) (int64, bool) {
	f, ok := paramFloat(params, key)
	if !ok {
		return 0, false
	}
	return int64(f), true
}

// without returns params minus the named keys.
func without(params map[string]any, keys ...string) map[string]any {
	out := maps.Clone(params)
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// systemPrompt is the personalization instruction shared by chat-style
// providers.
func systemPrompt(p nlp.Profile) string {
	subjects := "various subjects"
	if len(p.PreferredSubjects) > 0 {
		subjects = strings.Join(p.PreferredSubjects, ", ")
	}
	style := string(p.LearningStyle)
	if style == "" {
		style = "unknown"
	}
	return fmt.Sprintf("You are an educational AI assistant helping a user with %s. "+
		"The user's learning style is %s. Their skill level is %d/10.",
		subjects, style, p.SkillLevel)
}

// historyLines renders prior turns with the given speaker labels.
func historyLines(history []nlp.Turn, userLabel, aiLabel string) string {
	var b strings.Builder
	for _, t := range nlp.RecentTurns(history, nlp.HistoryWindow) {
		fmt.Fprintf(&b, "%s: %s\n%s: %s\n", userLabel, t.UserMessage, aiLabel, t.AIResponse)
	}
	return b.String()
}
