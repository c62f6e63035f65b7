package tutor

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benvon/smart-tutor/internal/models"
	"github.com/benvon/smart-tutor/internal/nlp"
)

// ProfileUpdate is a partial profile change. Nil fields are kept.
type ProfileUpdate struct {
	LearningStyle          *string
	SkillLevel             *int
	ResponseTimePreference *int
	PreferredSubjects      []string
	LearningGoals          *string
}

// StyleDetection is the outcome of learning-style detection
type StyleDetection struct {
	LearningStyle nlp.LearningStyle `json:"learning_style"`
	Scores        map[string]int    `json:"scores"`
	Confidence    float64           `json:"confidence"`
	Applied       bool              `json:"profile_updated"`
}

// GetProfile returns the learner's profile, or the defaults when none has
// been stored.
func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (*models.LearningProfile, error) {
	return s.loadProfile(ctx, userID)
}

// UpdateProfile applies a partial update and stores the result.
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, upd ProfileUpdate) (*models.LearningProfile, error) {
	p, err := s.loadProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if upd.LearningStyle != nil {
		style, err := nlp.ParseLearningStyle(*upd.LearningStyle)
		if err != nil {
			return nil, invalid("%v", err)
		}
		p.LearningStyle = style
	}
	if upd.SkillLevel != nil {
		if err := checkLevel("skill_level", *upd.SkillLevel); err != nil {
			return nil, err
		}
		p.SkillLevel = *upd.SkillLevel
	}
	if upd.ResponseTimePreference != nil {
		if err := checkLevel("response_time_preference", *upd.ResponseTimePreference); err != nil {
			return nil, err
		}
		p.ResponseTimePreference = *upd.ResponseTimePreference
	}
	if upd.PreferredSubjects != nil {
		p.PreferredSubjects = cleanSubjects(upd.PreferredSubjects)
	}
	if upd.LearningGoals != nil {
		p.LearningGoals = strings.TrimSpace(*upd.LearningGoals)
	}

	if err := s.deps.Profiles.Upsert(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save learning profile: %w", err)
	}
	s.logger.Info("learning_profile_updated", zap.String("user_id", userID.String()))
	return p, nil
}

// DetectLearningStyle guesses the learner's style from text and, when
// apply is set, stores it on the profile.
func (s *Service) DetectLearningStyle(ctx context.Context, userID uuid.UUID, text string, apply bool) (*StyleDetection, error) {
	if strings.TrimSpace(text) == "" {
		return nil, invalid("text is required")
	}
	style, scores := s.deps.Pipeline.Extractor().DetectLearningStyle(text)
	out := &StyleDetection{
		LearningStyle: style,
		Scores:        make(map[string]int, len(scores)),
		Confidence:    scores.Confidence(style),
	}
	for k, v := range scores {
		out.Scores[string(k)] = v
	}

	if apply {
		raw := string(style)
		if _, err := s.UpdateProfile(ctx, userID, ProfileUpdate{LearningStyle: &raw}); err != nil {
			return nil, err
		}
		out.Applied = true
	}
	return out, nil
}

func checkLevel(field string, v int) error {
	if v < nlp.MinLevel || v > nlp.MaxLevel {
		return invalid("%s must be between %d and %d", field, nlp.MinLevel, nlp.MaxLevel)
	}
	return nil
}

func cleanSubjects(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
