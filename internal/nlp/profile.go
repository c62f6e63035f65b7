// Package nlp implements the personalized response pipeline: feature
// extraction, knowledge lookup, style adaptation and the orchestrator that
// sequences them around an optional model-backed generator.
package nlp

import (
	"fmt"
	"strings"
)

// LearningStyle is a coarse pedagogical preference used to select a
// response-framing template.
type LearningStyle string

const (
	StyleUnset          LearningStyle = ""
	StyleVisual         LearningStyle = "visual"
	StyleAuditory       LearningStyle = "auditory"
	StyleReadingWriting LearningStyle = "reading_writing"
	StyleKinesthetic    LearningStyle = "kinesthetic"
)

// LearningStyles lists the recognised styles in detection tie-break order.
var LearningStyles = []LearningStyle{
	StyleVisual,
	StyleAuditory,
	StyleReadingWriting,
	StyleKinesthetic,
}

// Valid reports whether s is a recognised style or unset.
func (s LearningStyle) Valid() bool {
	switch s {
	case StyleUnset, StyleVisual, StyleAuditory, StyleReadingWriting, StyleKinesthetic:
		return true
	}
	return false
}

// ParseLearningStyle normalises user input into a LearningStyle.
func ParseLearningStyle(raw string) (LearningStyle, error) {
	s := LearningStyle(strings.ToLower(strings.TrimSpace(raw)))
	if s == "reading/writing" || s == "reading-writing" {
		s = StyleReadingWriting
	}
	if !s.Valid() {
		return StyleUnset, fmt.Errorf("unknown learning style %q", raw)
	}
	return s, nil
}

const (
	MinLevel = 1
	MaxLevel = 10

	DefaultSkillLevel             = 5
	DefaultResponseTimePreference = 5
)

// Profile is the read-only view of a learner the pipeline personalizes for.
type Profile struct {
	LearningStyle          LearningStyle `json:"learning_style"`
	SkillLevel             int           `json:"skill_level"`
	ResponseTimePreference int           `json:"response_time_preference"`
	PreferredSubjects      []string      `json:"preferred_subjects"`
}

// DefaultProfile returns the profile used for learners that have not set
// any preferences.
func DefaultProfile() Profile {
	return Profile{
		SkillLevel:             DefaultSkillLevel,
		ResponseTimePreference: DefaultResponseTimePreference,
	}
}

// Normalized returns a copy with zero levels replaced by defaults and the
// remaining levels clamped to [MinLevel, MaxLevel].
func (p Profile) Normalized() Profile {
	out := p
	out.SkillLevel = clampLevel(p.SkillLevel, DefaultSkillLevel)
	out.ResponseTimePreference = clampLevel(p.ResponseTimePreference, DefaultResponseTimePreference)
	if !out.LearningStyle.Valid() {
		out.LearningStyle = StyleUnset
	}
	return out
}

func clampLevel(v, def int) int {
	switch {
	case v == 0:
		return def
	case v < MinLevel:
		return MinLevel
	case v > MaxLevel:
		return MaxLevel
	}
	return v
}

// Turn is one prior exchange in a conversation.
type Turn struct {
	UserMessage string `json:"user_message"`
	AIResponse  string `json:"ai_response"`
}

// RecentTurns returns at most n of the latest turns, oldest first.
func RecentTurns(history []Turn, n int) []Turn {
	if n <= 0 || len(history) == 0 {
		return nil
	}
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
