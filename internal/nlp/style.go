package nlp

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const paragraphBreak = "\n\n"

// Fixed texts of the style adapter.
const (
	BasicsPrefix     = "Let's start with the basics:\n\n"
	Encouragement    = "\n\nDon't worry if this seems challenging at first. We'll take it one step at a time."
	AdvancedPrefix   = "Given your advanced understanding, here's a detailed explanation:\n\n"
	DeeperDive       = "\n\nFor a deeper dive into this topic, you might want to explore the underlying principles and advanced applications."
	ConciseNotice    = "(I've provided a concise answer. Let me know if you'd like more details.)"
	DetailedInsights = "\n\nSince you prefer detailed explanations, here are some additional insights:\n\n" +
		"- The concepts we've discussed connect to broader themes in this field\n" +
		"- Understanding these principles will help you tackle more advanced topics\n" +
		"- Consider exploring related concepts to deepen your knowledge"
	conciseParagraphs = 3
	keyPointLimit     = 3
)

// Adapt renders relevant information for a learner. Style framing, skill
// adjustment and verbosity adjustment run in that order, each on the full
// output of the previous stage. The result is deterministic and never empty.
func Adapt(info RelevantInfo, style LearningStyle, skillLevel, verbosity int) string {
	text := RenderStyle(info, style)
	text = AdjustForSkill(text, skillLevel)
	return AdjustForVerbosity(text, verbosity)
}

// RenderStyle frames info using the template for style. With no info it
// returns the style's fixed clarifying question.
func RenderStyle(info RelevantInfo, style LearningStyle) string {
	switch style {
	case StyleVisual:
		return renderVisual(info)
	case StyleAuditory:
		return renderAuditory(info)
	case StyleReadingWriting:
		return renderReadingWriting(info)
	case StyleKinesthetic:
		return renderKinesthetic(info)
	default:
		return renderDefault(info)
	}
}

func renderVisual(info RelevantInfo) string {
	var b strings.Builder
	b.WriteString("Let me show you visually:\n\n")
	for _, s := range info {
		fmt.Fprintf(&b, "## %s\n\n", capitalize(s.Name))
		for _, t := range s.Topics {
			fmt.Fprintf(&b, "### %s\n%s\n\n", capitalize(t.Name), t.Explanation)
			b.WriteString("I would recommend looking at diagrams or videos about this topic. Visualizing the concepts will help you understand them better.\n\n")
		}
	}
	if info.Empty() {
		b.WriteString("I don't have specific visual information on this topic yet. Would you like me to find some diagrams or visual explanations for you?")
	}
	return b.String()
}

func renderAuditory(info RelevantInfo) string {
	var b strings.Builder
	b.WriteString("Let me explain this to you:\n\n")
	for _, s := range info {
		fmt.Fprintf(&b, "About %s:\n\n", s.Name)
		for _, t := range s.Topics {
			fmt.Fprintf(&b, "When we talk about %s, here's what it means:\n%s\n\n", t.Name, t.Explanation)
			b.WriteString("Try saying this out loud to yourself to remember it better. Discussing this with others would also help reinforce your understanding.\n\n")
		}
	}
	if info.Empty() {
		b.WriteString("I don't have specific information on this topic yet. Would you like me to explain the basic concepts verbally?")
	}
	return b.String()
}

func renderReadingWriting(info RelevantInfo) string {
	var b strings.Builder
	b.WriteString("Here's a detailed explanation:\n\n")
	for _, s := range info {
		fmt.Fprintf(&b, "# %s\n\n", capitalize(s.Name))
		for _, t := range s.Topics {
			fmt.Fprintf(&b, "## %s\n%s\n\n", capitalize(t.Name), t.Explanation)
			b.WriteString("Key points to note:\n")
			for _, point := range keyPoints(t.Explanation) {
				fmt.Fprintf(&b, "- %s.\n", point)
			}
			b.WriteString("\nTry writing these points down in your own words to better understand and remember them.\n\n")
		}
	}
	if info.Empty() {
		b.WriteString("I don't have specific textual information on this topic yet. Would you like me to provide some reading materials or written explanations?")
	}
	return b.String()
}

func renderKinesthetic(info RelevantInfo) string {
	var b strings.Builder
	b.WriteString("Let's learn by doing:\n\n")
	for _, s := range info {
		fmt.Fprintf(&b, "For %s, here are some hands-on activities:\n\n", s.Name)
		for _, t := range s.Topics {
			fmt.Fprintf(&b, "To understand %s:\n%s\n\n", t.Name, t.Explanation)
			b.WriteString("Try this practical exercise:\n")
			for _, activity := range practiceActivities(s.Name) {
				fmt.Fprintf(&b, "- %s\n", activity)
			}
			b.WriteString("\nLearning by doing will help you internalize these concepts better.\n\n")
		}
	}
	if info.Empty() {
		b.WriteString("I don't have specific hands-on activities for this topic yet. Would you like me to suggest some practical exercises or projects?")
	}
	return b.String()
}

func renderDefault(info RelevantInfo) string {
	var b strings.Builder
	b.WriteString("Here's what I know about this topic:\n\n")
	for _, s := range info {
		fmt.Fprintf(&b, "## %s\n\n", capitalize(s.Name))
		for _, t := range s.Topics {
			fmt.Fprintf(&b, "### %s\n%s\n\n", capitalize(t.Name), t.Explanation)
		}
	}
	if info.Empty() {
		b.WriteString("I don't have specific information on this topic yet. Could you provide more details about what you'd like to learn?")
	}
	return b.String()
}

// keyPoints returns the non-blank sentences among the first three
// period-separated pieces of an explanation.
func keyPoints(explanation string) []string {
	pieces := strings.Split(explanation, ".")
	if len(pieces) > keyPointLimit {
		pieces = pieces[:keyPointLimit]
	}
	points := make([]string, 0, len(pieces))
	for _, p := range pieces {
		if p = strings.TrimSpace(p); p != "" {
			points = append(points, p)
		}
	}
	return points
}

func practiceActivities(subject string) [2]string {
	s := strings.ToLower(subject)
	switch {
	case strings.Contains(s, "math"):
		return [2]string{
			"Work through some example problems step by step",
			"Create your own problems and solve them",
		}
	case strings.Contains(s, "science"):
		return [2]string{
			"Design a simple experiment to demonstrate this concept",
			"Build a model that represents this idea",
		}
	case strings.Contains(s, "programming"):
		return [2]string{
			"Write a small program that implements this concept",
			"Debug and modify existing code to see how it works",
		}
	default:
		return [2]string{
			"Create a project that applies this knowledge",
			"Teach this concept to someone else using examples",
		}
	}
}

// AdjustForSkill frames text for beginners (level 3 and below) or advanced
// learners (level 8 and above). Levels 4 through 7 pass through unchanged.
func AdjustForSkill(text string, level int) string {
	switch {
	case level <= 3:
		return BasicsPrefix + strings.ReplaceAll(text, "complex", "step-by-step") + Encouragement
	case level >= 8:
		return AdvancedPrefix + text + DeeperDive
	default:
		return text
	}
}

// AdjustForVerbosity shortens text for learners who want quick answers
// (preference 3 and below) and extends it for those who want detail
// (8 and above).
func AdjustForVerbosity(text string, preference int) string {
	switch {
	case preference <= 3:
		paragraphs := strings.Split(text, paragraphBreak)
		if len(paragraphs) <= conciseParagraphs {
			return text
		}
		return strings.Join(paragraphs[:conciseParagraphs], paragraphBreak) + paragraphBreak + ConciseNotice
	case preference >= 8:
		return text + DetailedInsights
	default:
		return text
	}
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
