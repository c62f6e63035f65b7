// Package mcpserver exposes the tutoring pipeline as MCP tools. It needs
// no database: answers come from the knowledge base and the styled
// fallback generator.
package mcpserver

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/benvon/smart-tutor/internal/nlp"
)

// MaxMessageLength caps tool text inputs, matching the HTTP ask endpoint.
const MaxMessageLength = 4000

// Tool names.
const (
	ToolAskTutor            = "ask_tutor"
	ToolExtractFeatures     = "extract_features"
	ToolDetectLearningStyle = "detect_learning_style"
)

// StyleResult is the detect_learning_style payload.
type StyleResult struct {
	Style      nlp.LearningStyle `json:"learning_style"`
	Confidence float64           `json:"confidence"`
	Scores     nlp.StyleScores   `json:"scores"`
}

// New registers the tutoring tools on a fresh MCP server.
func New(pipeline *nlp.Orchestrator, version string, logger *zap.Logger) *server.MCPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &toolHandlers{pipeline: pipeline, logger: logger}

	s := server.NewMCPServer(
		"smart-tutor",
		version,
		server.WithToolCapabilities(false),
		server.WithInstructions("Smart Tutor: personalised explanations from a curated knowledge base, plus learner text analysis."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool(ToolAskTutor,
			mcp.WithDescription("Answer a learner's question using the knowledge base, framed for their learning style, skill level and verbosity."),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithString("message", mcp.Description("The learner's question"), mcp.Required(), mcp.MaxLength(MaxMessageLength)),
			mcp.WithString("learning_style", mcp.Description("Learning style"),
				mcp.Enum(styleNames()...)),
			mcp.WithNumber("skill_level", mcp.Description("Skill level 1-10 (default 5)"), mcp.Min(nlp.MinLevel), mcp.Max(nlp.MaxLevel)),
			mcp.WithNumber("verbosity", mcp.Description("Response length preference 1-10 (default 5)"), mcp.Min(nlp.MinLevel), mcp.Max(nlp.MaxLevel)),
			mcp.WithArray("subjects", mcp.Description("Preferred subjects"), mcp.WithStringItems()),
		),
		h.askTutor,
	)

	s.AddTool(
		mcp.NewTool(ToolExtractFeatures,
			mcp.WithDescription("Extract topics, sentiment and engagement from a piece of learner text."),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithString("text", mcp.Description("Text to analyse"), mcp.Required(), mcp.MaxLength(MaxMessageLength)),
		),
		h.extractFeatures,
	)

	s.AddTool(
		mcp.NewTool(ToolDetectLearningStyle,
			mcp.WithDescription("Guess a learner's style from a self-description."),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithString("text", mcp.Description("Self-description"), mcp.Required(), mcp.MaxLength(MaxMessageLength)),
		),
		h.detectLearningStyle,
	)

	return s
}

type toolHandlers struct {
	pipeline *nlp.Orchestrator
	logger   *zap.Logger
}

func requireText(req mcp.CallToolRequest, key string) (string, *mcp.CallToolResult) {
	text, err := req.RequireString(key)
	if err != nil {
		return "", mcp.NewToolResultError(key + " is required")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", mcp.NewToolResultError(key + " cannot be empty")
	}
	if len(text) > MaxMessageLength {
		return "", mcp.NewToolResultErrorf("%s exceeds %d characters", key, MaxMessageLength)
	}
	return text, nil
}

func (h *toolHandlers) askTutor(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message, bad := requireText(req, "message")
	if bad != nil {
		return bad, nil
	}
	style, err := nlp.ParseLearningStyle(req.GetString("learning_style", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	profile := nlp.Profile{
		LearningStyle:          style,
		SkillLevel:             req.GetInt("skill_level", 0),
		ResponseTimePreference: req.GetInt("verbosity", 0),
		PreferredSubjects:      req.GetStringSlice("subjects", nil),
	}
	resp := h.pipeline.Respond(ctx, nlp.Input{Message: message, Profile: profile})
	h.logger.Debug("mcp_ask_tutor",
		zap.Strings("topics", resp.Topics),
		zap.String("learning_style", string(style)),
	)
	return mcp.NewToolResultStructured(resp, resp.Text), nil
}

func (h *toolHandlers) extractFeatures(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, bad := requireText(req, "text")
	if bad != nil {
		return bad, nil
	}
	return mcp.NewToolResultJSON(h.pipeline.Extractor().Extract(ctx, text))
}

func (h *toolHandlers) detectLearningStyle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, bad := requireText(req, "text")
	if bad != nil {
		return bad, nil
	}
	style, scores := h.pipeline.Extractor().DetectLearningStyle(text)
	return mcp.NewToolResultJSON(StyleResult{
		Style:      style,
		Confidence: scores.Confidence(style),
		Scores:     scores,
	})
}

func styleNames() []string {
	names := make([]string, 0, len(nlp.LearningStyles))
	for _, s := range nlp.LearningStyles {
		names = append(names, string(s))
	}
	return names
}
