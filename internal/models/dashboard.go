package models

import "github.com/google/uuid"

// TopicCount is a topic and how often it was discussed.
type TopicCount struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

// SubjectProgress summarises activity for one subject.
type SubjectProgress struct {
	Subject         string   `json:"subject"`
	SessionCount    int      `json:"session_count"`
	AvgAssessment   *float64 `json:"avg_assessment_score,omitempty"`
	AssessmentCount int      `json:"assessment_count"`
}

// DashboardStats is the learner dashboard overview
type DashboardStats struct {
	TotalSessions        int               `json:"total_sessions"`
	ActiveSessions       int               `json:"active_sessions"`
	TotalConversations   int               `json:"total_conversations"`
	AvgSentiment         float64           `json:"avg_sentiment"`
	AvgEngagement        float64           `json:"avg_engagement"`
	TopTopics            []TopicCount      `json:"top_topics"`
	CompletedAssessments int               `json:"completed_assessments"`
	AvgAssessmentScore   *float64          `json:"avg_assessment_score,omitempty"`
	SubjectProgress      []SubjectProgress `json:"subject_progress"`
}

// AssessmentResult is a completed assessment with its percentage score
type AssessmentResult struct {
	ID          uuid.UUID `json:"id"`
	Subject     string    `json:"subject"`
	Topic       string    `json:"topic"`
	Score       int       `json:"score"`
	MaxScore    int       `json:"max_score"`
	Percentage  float64   `json:"percentage"`
	CompletedAt string    `json:"completed_at"`
}

// SubjectEngagement aggregates conversation features per subject
type SubjectEngagement struct {
	Subject           string  `json:"subject"`
	AvgEngagement     float64 `json:"avg_engagement"`
	AvgSentiment      float64 `json:"avg_sentiment"`
	ConversationCount int     `json:"conversation_count"`
}

// Progress is the learner progress report
type Progress struct {
	Assessments         []AssessmentResult  `json:"assessments"`
	EngagementBySubject []SubjectEngagement `json:"engagement_by_subject"`
}

// TopicEngagement is the average engagement for a topic.
type TopicEngagement struct {
	Topic         string  `json:"topic"`
	AvgEngagement float64 `json:"avg_engagement"`
	Count         int     `json:"count"`
}

// Insights are personalised learning recommendations
type Insights struct {
	LearningStyle   string   `json:"learning_style"`
	RecentTopics    []string `json:"recent_topics"`
	Recommendations []string `json:"recommendations"`
}
