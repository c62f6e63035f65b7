package tutor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/benvon/smart-tutor/internal/models"
	"github.com/benvon/smart-tutor/internal/nlp"
)

// Dashboard and insight tuning.
const (
	TopTopicsLimit         = 5
	RecentConversations    = 10
	InsightTopicLimit      = 3
	LowEngagementCeiling   = 0.3
	HighEngagementFloor    = 0.7
	progressTimestampStyle = time.RFC3339
)

var styleRecommendations = map[nlp.LearningStyle]string{
	nlp.StyleVisual:         "Try using diagrams and visual aids to enhance your learning experience.",
	nlp.StyleAuditory:       "Consider using voice interactions more frequently for better learning outcomes.",
	nlp.StyleReadingWriting: "Taking notes during your learning sessions may help you retain information better.",
	nlp.StyleKinesthetic:    "Try practical exercises and hands-on activities to reinforce your learning.",
}

// Dashboard aggregates the learner's activity. The read queries run
// concurrently.
func (s *Service) Dashboard(ctx context.Context, userID uuid.UUID) (*models.DashboardStats, error) {
	stats := &models.DashboardStats{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		total, active, err := s.deps.Stats.SessionCounts(gctx, userID)
		if err != nil {
			return err
		}
		stats.TotalSessions, stats.ActiveSessions = total, active
		return nil
	})
	g.Go(func() error {
		count, sentiment, engagement, err := s.deps.Stats.ConversationAverages(gctx, userID)
		if err != nil {
			return err
		}
		stats.TotalConversations, stats.AvgSentiment, stats.AvgEngagement = count, sentiment, engagement
		return nil
	})
	g.Go(func() error {
		topics, err := s.deps.Stats.TopTopics(gctx, userID, TopTopicsLimit)
		if err != nil {
			return err
		}
		stats.TopTopics = topics
		return nil
	})
	g.Go(func() error {
		completed, avg, err := s.deps.Stats.AssessmentSummary(gctx, userID)
		if err != nil {
			return err
		}
		stats.CompletedAssessments, stats.AvgAssessmentScore = completed, avg
		return nil
	})
	g.Go(func() error {
		progress, err := s.deps.Stats.SubjectProgress(gctx, userID)
		if err != nil {
			return err
		}
		stats.SubjectProgress = progress
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to build dashboard: %w", err)
	}
	if stats.TopTopics == nil {
		stats.TopTopics = []models.TopicCount{}
	}
	if stats.SubjectProgress == nil {
		stats.SubjectProgress = []models.SubjectProgress{}
	}
	return stats, nil
}

// Progress lists completed assessments with percentages and engagement per
// subject.
func (s *Service) Progress(ctx context.Context, userID uuid.UUID) (*models.Progress, error) {
	var (
		assessments []*models.Assessment
		engagement  []models.SubjectEngagement
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		assessments, err = s.deps.Assessments.ListByUser(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		engagement, err = s.deps.Stats.EngagementBySubject(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to build progress: %w", err)
	}

	out := &models.Progress{
		Assessments:         []models.AssessmentResult{},
		EngagementBySubject: engagement,
	}
	if out.EngagementBySubject == nil {
		out.EngagementBySubject = []models.SubjectEngagement{}
	}
	for _, a := range assessments {
		if !a.Completed() || a.Score == nil {
			continue
		}
		maxScore := a.MaxScore
		if maxScore <= 0 {
			maxScore = models.MaxAssessmentScore
		}
		out.Assessments = append(out.Assessments, models.AssessmentResult{
			ID:          a.ID,
			Subject:     a.Subject,
			Topic:       a.Topic,
			Score:       *a.Score,
			MaxScore:    maxScore,
			Percentage:  float64(*a.Score) / float64(maxScore) * 100,
			CompletedAt: a.CompletedAt.UTC().Format(progressTimestampStyle),
		})
	}
	return out, nil
}

// Insights returns recent topics and personalised recommendations.
func (s *Service) Insights(ctx context.Context, userID uuid.UUID) (*models.Insights, error) {
	var (
		profile *models.LearningProfile
		recent  [][]string
		topics  []models.TopicEngagement
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		profile, err = s.loadProfile(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = s.deps.Stats.RecentTopicLists(gctx, userID, RecentConversations)
		return err
	})
	g.Go(func() error {
		var err error
		topics, err = s.deps.Stats.TopicEngagement(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to build insights: %w", err)
	}

	return &models.Insights{
		LearningStyle:   string(profile.LearningStyle),
		RecentTopics:    recentTopics(recent),
		Recommendations: Recommendations(profile.LearningStyle, topics),
	}, nil
}

// recentTopics flattens topic lists, newest first, keeping first sightings.
func recentTopics(lists [][]string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, topics := range lists {
		for _, t := range topics {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// Recommendations builds the learning-style and engagement advice.
func Recommendations(style nlp.LearningStyle, topics []models.TopicEngagement) []string {
	out := []string{}
	if rec, ok := styleRecommendations[style]; ok {
		out = append(out, rec)
	}

	var low, high []models.TopicEngagement
	for _, t := range topics {
		switch {
		case t.AvgEngagement < LowEngagementCeiling:
			low = append(low, t)
		case t.AvgEngagement > HighEngagementFloor:
			high = append(high, t)
		}
	}
	sort.SliceStable(low, func(i, j int) bool { return low[i].AvgEngagement < low[j].AvgEngagement })
	sort.SliceStable(high, func(i, j int) bool { return high[i].AvgEngagement > high[j].AvgEngagement })

	if len(low) > 0 {
		out = append(out, fmt.Sprintf(
			"You seem less engaged with topics like %s. Consider trying a different learning approach for these topics.",
			joinTopics(low)))
	}
	if len(high) > 0 {
		out = append(out, fmt.Sprintf(
			"You show high engagement with topics like %s. Consider exploring more advanced content in these areas.",
			joinTopics(high)))
	}
	return out
}

func joinTopics(topics []models.TopicEngagement) string {
	if len(topics) > InsightTopicLimit {
		topics = topics[:InsightTopicLimit]
	}
	names := make([]string, len(topics))
	for i, t := range topics {
		names[i] = t.Topic
	}
	return strings.Join(names, ", ")
}
