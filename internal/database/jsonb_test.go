package database

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestToJSONB(t *testing.T) {
	t.Parallel()

	var nilTopics []string
	var nilParams map[string]any
	tests := []struct {
		name  string
		v     any
		empty string
		want  string
	}{
		{name: "nil slice", v: nilTopics, empty: "[]", want: "[]"},
		{name: "nil map", v: nilParams, empty: "{}", want: "{}"},
		{name: "topics", v: []string{"calculus", "derivative"}, empty: "[]", want: `["calculus","derivative"]`},
		{name: "params sorted", v: map[string]any{"temperature": 0.2, "model": "gpt-4"}, empty: "{}", want: `{"model":"gpt-4","temperature":0.2}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := toJSONB(tt.v, tt.empty)
			if err != nil {
				t.Fatalf("toJSONB: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("toJSONB = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFromJSONB(t *testing.T) {
	t.Parallel()

	answers := map[string]string{"keep": "me"}
	if err := fromJSONB(nil, &answers); err != nil {
		t.Fatalf("fromJSONB(nil): %v", err)
	}
	if err := fromJSONB([]byte("null"), &answers); err != nil {
		t.Fatalf("fromJSONB(null): %v", err)
	}
	if diff := cmp.Diff(map[string]string{"keep": "me"}, answers); diff != "" {
		t.Errorf("NULL changed destination (-want +got):\n%s", diff)
	}

	var topics []string
	if err := fromJSONB([]byte(`["a","b"]`), &topics); err != nil {
		t.Fatalf("fromJSONB: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b"}, topics); diff != "" {
		t.Errorf("topics mismatch (-want +got):\n%s", diff)
	}

	if err := fromJSONB([]byte(`{`), &topics); err == nil {
		t.Error("fromJSONB accepted malformed JSON")
	}
}
