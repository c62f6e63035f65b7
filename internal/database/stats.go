package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/benvon/smart-tutor/internal/models"
)

// StatsRepository runs the read-only aggregate queries behind the
// dashboard. Each method is independent so callers can run them
// concurrently.
type StatsRepository struct {
	db *DB
}

// NewStatsRepository creates a new stats repository
func NewStatsRepository(db *DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// SessionCounts returns the user's total and active session counts.
func (r *StatsRepository) SessionCounts(ctx context.Context, userID uuid.UUID) (total, active int, err error) {
	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE end_time IS NULL)
		FROM learning_sessions WHERE user_id = $1
	`, userID).Scan(&total, &active)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return total, active, nil
}

// ConversationAverages returns the conversation count and mean sentiment
// and engagement. Averages are zero when there are no conversations.
func (r *StatsRepository) ConversationAverages(ctx context.Context, userID uuid.UUID) (count int, sentiment, engagement float64, err error) {
	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(AVG(sentiment_score), 0), COALESCE(AVG(engagement_score), 0)
		FROM conversations WHERE user_id = $1
	`, userID).Scan(&count, &sentiment, &engagement)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to aggregate conversations: %w", err)
	}
	return count, sentiment, engagement, nil
}

// TopTopics returns the user's most discussed topics. Ties are broken
// alphabetically.
func (r *StatsRepository) TopTopics(ctx context.Context, userID uuid.UUID, limit int) ([]models.TopicCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.topic, COUNT(*) AS n
		FROM conversations c, jsonb_array_elements_text(c.topics) AS t(topic)
		WHERE c.user_id = $1
		GROUP BY t.topic
		ORDER BY n DESC, t.topic
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top topics: %w", err)
	}
	defer closeRows(rows)

	out := []models.TopicCount{}
	for rows.Next() {
		var tc models.TopicCount
		if err := rows.Scan(&tc.Topic, &tc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan topic count: %w", err)
		}
		out = append(out, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating topics: %w", err)
	}
	return out, nil
}

// AssessmentSummary returns the completed assessment count and mean score.
func (r *StatsRepository) AssessmentSummary(ctx context.Context, userID uuid.UUID) (completed int, avgScore *float64, err error) {
	var avg sql.NullFloat64
	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), AVG(score)
		FROM assessments WHERE user_id = $1 AND completed_at IS NOT NULL
	`, userID).Scan(&completed, &avg)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to aggregate assessments: %w", err)
	}
	if avg.Valid {
		avgScore = &avg.Float64
	}
	return completed, avgScore, nil
}

// SubjectProgress returns per-subject session counts and assessment
// averages, ordered by subject.
func (r *StatsRepository) SubjectProgress(ctx context.Context, userID uuid.UUID) ([]models.SubjectProgress, error) {
	rows, err := r.db.QueryContext(ctx, `
		WITH s AS (
			SELECT subject, COUNT(*) AS sessions
			FROM learning_sessions WHERE user_id = $1
			GROUP BY subject
		), a AS (
			SELECT subject, COUNT(*) AS assessments, AVG(score) AS avg_score
			FROM assessments WHERE user_id = $1 AND completed_at IS NOT NULL
			GROUP BY subject
		)
		SELECT COALESCE(s.subject, a.subject), COALESCE(s.sessions, 0), a.avg_score, COALESCE(a.assessments, 0)
		FROM s FULL OUTER JOIN a ON a.subject = s.subject
		ORDER BY 1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query subject progress: %w", err)
	}
	defer closeRows(rows)

	out := []models.SubjectProgress{}
	for rows.Next() {
		var sp models.SubjectProgress
		var avg sql.NullFloat64
		if err := rows.Scan(&sp.Subject, &sp.SessionCount, &avg, &sp.AssessmentCount); err != nil {
			return nil, fmt.Errorf("failed to scan subject progress: %w", err)
		}
		if avg.Valid {
			v := avg.Float64
			sp.AvgAssessment = &v
		}
		out = append(out, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subject progress: %w", err)
	}
	return out, nil
}

// EngagementBySubject aggregates conversation features through the
// sessions' subjects.
func (r *StatsRepository) EngagementBySubject(ctx context.Context, userID uuid.UUID) ([]models.SubjectEngagement, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.subject, AVG(c.engagement_score), AVG(c.sentiment_score), COUNT(*)
		FROM conversations c
		JOIN learning_sessions s ON s.id = c.session_id
		WHERE c.user_id = $1
		GROUP BY s.subject
		ORDER BY s.subject
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query engagement by subject: %w", err)
	}
	defer closeRows(rows)

	out := []models.SubjectEngagement{}
	for rows.Next() {
		var se models.SubjectEngagement
		if err := rows.Scan(&se.Subject, &se.AvgEngagement, &se.AvgSentiment, &se.ConversationCount); err != nil {
			return nil, fmt.Errorf("failed to scan subject engagement: %w", err)
		}
		out = append(out, se)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subject engagement: %w", err)
	}
	return out, nil
}

// TopicEngagement returns the mean engagement for each topic the user
// discussed, ordered by topic.
func (r *StatsRepository) TopicEngagement(ctx context.Context, userID uuid.UUID) ([]models.TopicEngagement, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.topic, AVG(c.engagement_score), COUNT(*)
		FROM conversations c, jsonb_array_elements_text(c.topics) AS t(topic)
		WHERE c.user_id = $1
		GROUP BY t.topic
		ORDER BY t.topic
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query topic engagement: %w", err)
	}
	defer closeRows(rows)

	out := []models.TopicEngagement{}
	for rows.Next() {
		var te models.TopicEngagement
		if err := rows.Scan(&te.Topic, &te.AvgEngagement, &te.Count); err != nil {
			return nil, fmt.Errorf("failed to scan topic engagement: %w", err)
		}
		out = append(out, te)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating topic engagement: %w", err)
	}
	return out, nil
}

// RecentTopicLists returns the topic lists of the user's last n
// conversations, newest first.
func (r *StatsRepository) RecentTopicLists(ctx context.Context, userID uuid.UUID, n int) ([][]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT topics FROM conversations
		WHERE user_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`, userID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent topics: %w", err)
	}
	defer closeRows(rows)

	var out [][]string
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan topics: %w", err)
		}
		var topics []string
		if err := fromJSONB(raw, &topics); err != nil {
			return nil, err
		}
		out = append(out, topics)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recent topics: %w", err)
	}
	return out, nil
}
