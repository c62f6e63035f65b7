package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benvon/smart-tutor/internal/nlp"
)

func callTool(t *testing.T, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	s := New(nlp.NewOrchestrator(nil, nil), "test", nil)
	tool := s.GetTool(name)
	require.NotNil(t, tool, "tool %s not registered", name)

	result, err := tool.Handler(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return tc.Text
}

func TestToolsRegistered(t *testing.T) {
	t.Parallel()

	s := New(nlp.NewOrchestrator(nil, nil), "test", nil)
	tools := s.ListTools()
	for _, name := range []string{ToolAskTutor, ToolExtractFeatures, ToolDetectLearningStyle} {
		assert.Contains(t, tools, name)
	}
	assert.Len(t, tools, 3)
}

func TestAskTutor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		args      map[string]any
		wantError string
		wantText  string
	}{
		{
			name:     "knowledge base hit",
			args:     map[string]any{"message": "Can you explain calculus?", "learning_style": "reading_writing", "skill_level": float64(8)},
			wantText: "Calculus is the mathematical study of continuous change.",
		},
		{
			name:     "subjects as any slice",
			args:     map[string]any{"message": "What is algebra?", "subjects": []any{"math"}},
			wantText: "Algebra",
		},
		{name: "missing message", args: map[string]any{}, wantError: "message is required"},
		{name: "blank message", args: map[string]any{"message": "   "}, wantError: "cannot be empty"},
		{name: "too long", args: map[string]any{"message": strings.Repeat("a", MaxMessageLength+1)}, wantError: "exceeds"},
		{name: "unknown style", args: map[string]any{"message": "hi", "learning_style": "telepathic"}, wantError: "unknown learning style"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := callTool(t, ToolAskTutor, tt.args)
			text := toolText(t, result)
			if tt.wantError != "" {
				assert.True(t, result.IsError)
				assert.Contains(t, text, tt.wantError)
				return
			}
			assert.False(t, result.IsError)
			assert.Contains(t, text, tt.wantText)

			resp, ok := result.StructuredContent.(nlp.Response)
			require.True(t, ok, "expected nlp.Response, got %T", result.StructuredContent)
			assert.Equal(t, text, resp.Text)
			assert.Empty(t, resp.ModelUsed)
		})
	}
}

func TestExtractFeatures(t *testing.T) {
	t.Parallel()

	result := callTool(t, ToolExtractFeatures, map[string]any{"text": "This calculus example is great, can you explain more?"})
	require.False(t, result.IsError)

	var features nlp.Features
	require.NoError(t, json.Unmarshal([]byte(toolText(t, result)), &features))
	assert.Contains(t, features.Topics, "calculus")
	assert.Greater(t, features.Sentiment, 0.0)
	assert.GreaterOrEqual(t, features.Engagement, 0.0)
	assert.LessOrEqual(t, features.Engagement, 1.0)

	bad := callTool(t, ToolExtractFeatures, map[string]any{"text": 42})
	assert.True(t, bad.IsError)
}

func TestDetectLearningStyle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want nlp.LearningStyle
	}{
		{text: "I like to see a diagram or a picture", want: nlp.StyleVisual},
		{text: "I learn when I practice and experiment", want: nlp.StyleKinesthetic},
		{text: "no indicators here", want: nlp.StyleReadingWriting},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()

			result := callTool(t, ToolDetectLearningStyle, map[string]any{"text": tt.text})
			require.False(t, result.IsError)

			var got StyleResult
			require.NoError(t, json.Unmarshal([]byte(toolText(t, result)), &got))
			assert.Equal(t, tt.want, got.Style)
			assert.GreaterOrEqual(t, got.Confidence, 0.0)
			assert.LessOrEqual(t, got.Confidence, 1.0)
		})
	}
}
