package nlp

import (
	"math"
	"testing"
)

func TestExtractor_DetectLearningStyle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		text           string
		want           LearningStyle
		wantConfidence float64
	}{
		{name: "visual", text: "I like to see diagrams and pictures", want: StyleVisual, wantConfidence: 1},
		{name: "auditory", text: "Could you tell me? I listen best when we discuss things", want: StyleAuditory, wantConfidence: 1},
		{name: "reading writing", text: "I read books and write notes", want: StyleReadingWriting, wantConfidence: 1},
		{name: "kinesthetic keeps stop words", text: "I want to do it, practice and experiment", want: StyleKinesthetic, wantConfidence: 1},
		{name: "mixed picks highest", text: "show me a diagram, then let me try it", want: StyleVisual, wantConfidence: 2.0 / 3.0},
		{name: "tie goes to earlier style", text: "see and hear", want: StyleVisual, wantConfidence: 0.5},
		{name: "no indicators", text: "calculus is neat", want: StyleReadingWriting, wantConfidence: 0},
		{name: "empty", text: "", want: StyleReadingWriting, wantConfidence: 0},
	}

	e := NewExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, scores := e.DetectLearningStyle(tt.text)
			if got != tt.want {
				t.Errorf("DetectLearningStyle(%q) = %q, want %q (scores %v)", tt.text, got, tt.want, scores)
			}
			if c := scores.Confidence(got); math.Abs(c-tt.wantConfidence) > 1e-9 {
				t.Errorf("confidence = %v, want %v", c, tt.wantConfidence)
			}
		})
	}
}

func TestParseLearningStyle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    LearningStyle
		wantErr bool
	}{
		{in: "visual", want: StyleVisual},
		{in: " Kinesthetic ", want: StyleKinesthetic},
		{in: "reading/writing", want: StyleReadingWriting},
		{in: "reading-writing", want: StyleReadingWriting},
		{in: "", want: StyleUnset},
		{in: "telepathic", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseLearningStyle(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseLearningStyle(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseLearningStyle(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestProfile_Normalized(t *testing.T) {
	t.Parallel()

	got := Profile{LearningStyle: "bogus", SkillLevel: -3, ResponseTimePreference: 0}.Normalized()
	if got.LearningStyle != StyleUnset || got.SkillLevel != MinLevel || got.ResponseTimePreference != DefaultResponseTimePreference {
		t.Errorf("unexpected normalized profile %+v", got)
	}
	got = Profile{SkillLevel: 11, ResponseTimePreference: 7}.Normalized()
	if got.SkillLevel != MaxLevel || got.ResponseTimePreference != 7 {
		t.Errorf("unexpected normalized profile %+v", got)
	}
}

func TestRecentTurns(t *testing.T) {
	t.Parallel()

	history := []Turn{{UserMessage: "1"}, {UserMessage: "2"}, {UserMessage: "3"}}
	if got := RecentTurns(history, 2); len(got) != 2 || got[0].UserMessage != "2" {
		t.Errorf("RecentTurns(2) = %+v", got)
	}
	if got := RecentTurns(history, 5); len(got) != 3 {
		t.Errorf("RecentTurns(5) = %+v", got)
	}
	if got := RecentTurns(history, 0); got != nil {
		t.Errorf("RecentTurns(0) = %+v", got)
	}
}
