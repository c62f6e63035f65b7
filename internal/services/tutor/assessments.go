package tutor

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benvon/smart-tutor/internal/models"
)

// MaxAssessmentQuestions caps the questions generated per assessment.
const MaxAssessmentQuestions = 5

// QuestionTypeOpenEnded is the only generated question type.
const QuestionTypeOpenEnded = "open_ended"

// Per-answer scores.
const (
	scoreEmpty       = 2
	scoreShort       = 5
	scoreDetailed    = 8
	topicBonus       = 2
	detailedMinWords = 20
)

// GenerateAssessmentInput requests a new assessment
type GenerateAssessmentInput struct {
	UserID    uuid.UUID
	Subject   string
	Topic     string
	SessionID *uuid.UUID
}

// GenerateAssessment builds open-ended questions from the session's topics,
// or from the given topic when the session has none.
func (s *Service) GenerateAssessment(ctx context.Context, in GenerateAssessmentInput) (*models.Assessment, error) {
	subject := strings.TrimSpace(in.Subject)
	topic := strings.TrimSpace(in.Topic)
	if subject == "" {
		return nil, invalid("subject is required")
	}

	var topics []string
	if in.SessionID != nil {
		if _, err := s.ownedSession(ctx, in.UserID, *in.SessionID); err != nil {
			return nil, err
		}
		convs, err := s.deps.Conversations.ListBySession(ctx, *in.SessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to list conversations: %w", err)
		}
		topics = SessionTopics(convs)
	}
	if len(topics) == 0 {
		if topic == "" {
			return nil, invalid("topic is required when the session has no topics")
		}
		topics = []string{topic}
	}
	if topic == "" {
		topic = topics[0]
	}

	a := &models.Assessment{
		ID:        uuid.New(),
		UserID:    in.UserID,
		SessionID: in.SessionID,
		Subject:   subject,
		Topic:     topic,
		Questions: Questions(topics),
		Answers:   map[string]string{},
		MaxScore:  models.MaxAssessmentScore,
		CreatedAt: s.now().UTC(),
	}
	if err := s.deps.Assessments.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to create assessment: %w", err)
	}
	s.logger.Info("assessment_generated",
		zap.String("assessment_id", a.ID.String()),
		zap.Int("questions", len(a.Questions)),
	)
	return a, nil
}

// Questions returns one open-ended question per topic, at most
// MaxAssessmentQuestions.
func Questions(topics []string) []models.AssessmentQuestion {
	if len(topics) > MaxAssessmentQuestions {
		topics = topics[:MaxAssessmentQuestions]
	}
	out := make([]models.AssessmentQuestion, 0, len(topics))
	for i, t := range topics {
		out = append(out, models.AssessmentQuestion{
			ID:       i + 1,
			Topic:    t,
			Question: fmt.Sprintf("Explain the concept of %s in your own words.", t),
			Type:     QuestionTypeOpenEnded,
		})
	}
	return out
}

// SubmitAssessment scores the answers, keyed by question id, and completes
// the assessment.
func (s *Service) SubmitAssessment(ctx context.Context, userID, id uuid.UUID, answers map[string]string) (*models.Assessment, error) {
	a, err := s.GetAssessment(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if a.Completed() {
		return nil, ErrAssessmentCompleted
	}

	score := Score(a.Questions, answers)
	feedback := Feedback(score, a.Topic)
	completedAt := s.now().UTC()

	a.Answers = answers
	if a.Answers == nil {
		a.Answers = map[string]string{}
	}
	a.Score = &score
	a.MaxScore = models.MaxAssessmentScore
	a.Feedback = &feedback
	a.CompletedAt = &completedAt

	ok, err := s.deps.Assessments.Complete(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("failed to complete assessment: %w", err)
	}
	if !ok {
		return nil, ErrAssessmentCompleted
	}
	s.logger.Info("assessment_completed",
		zap.String("assessment_id", a.ID.String()),
		zap.Int("score", score),
	)
	return a, nil
}

// GetAssessment returns an assessment owned by userID.
func (s *Service) GetAssessment(ctx context.Context, userID, id uuid.UUID) (*models.Assessment, error) {
	a, err := s.deps.Assessments.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("assessment", err)
	}
	if err := owned(a.UserID, userID); err != nil {
		return nil, err
	}
	return a, nil
}

// ListAssessments returns the user's assessments, newest first.
func (s *Service) ListAssessments(ctx context.Context, userID uuid.UUID) ([]*models.Assessment, error) {
	list, err := s.deps.Assessments.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	if list == nil {
		list = []*models.Assessment{}
	}
	return list, nil
}

// Score is the rounded mean of the per-question scores. A missing answer
// scores as an empty one.
func Score(questions []models.AssessmentQuestion, answers map[string]string) int {
	if len(questions) == 0 {
		return 0
	}
	total := 0
	for _, q := range questions {
		total += answerScore(answers[strconv.Itoa(q.ID)], q.Topic)
	}
	return int(math.Round(float64(total) / float64(len(questions))))
}

func answerScore(answer, topic string) int {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return scoreEmpty
	}
	score := scoreDetailed
	if len(strings.Fields(answer)) < detailedMinWords {
		score = scoreShort
	}
	if topic != "" && strings.Contains(strings.ToLower(answer), strings.ToLower(topic)) {
		score += topicBonus
	}
	return min(score, models.MaxAssessmentScore)
}

// Feedback returns the feedback text for a score band.
func Feedback(score int, topic string) string {
	switch {
	case score >= 8:
		return fmt.Sprintf("Excellent work! You show a strong understanding of %s.", topic)
	case score >= 5:
		return fmt.Sprintf("Good understanding of %s. Add more detail and examples to strengthen your answers.", topic)
	default:
		return fmt.Sprintf("Keep practicing. Review %s and try explaining it in your own words.", topic)
	}
}
