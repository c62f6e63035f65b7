package tutor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/benvon/smart-tutor/internal/database"
	"github.com/benvon/smart-tutor/internal/models"
	"github.com/benvon/smart-tutor/internal/nlp"
	"github.com/benvon/smart-tutor/internal/queue"
	"github.com/benvon/smart-tutor/internal/services/ai"
)

func missing(what string) error {
	return fmt.Errorf("%s %w", what, database.ErrNotFound)
}

type memProfiles struct {
	mu   sync.Mutex
	rows map[uuid.UUID]models.LearningProfile
}

func (m *memProfiles) GetByUserID(_ context.Context, userID uuid.UUID) (*models.LearningProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[userID]
	if !ok {
		return nil, missing("profile")
	}
	return &p, nil
}

func (m *memProfiles) Upsert(_ context.Context, p *models.LearningProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows == nil {
		m.rows = map[uuid.UUID]models.LearningProfile{}
	}
	m.rows[p.UserID] = *p
	return nil
}

type memSessions struct {
	mu    sync.Mutex
	rows  map[uuid.UUID]models.LearningSession
	stale []uuid.UUID
}

func (m *memSessions) Create(_ context.Context, s *models.LearningSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows == nil {
		m.rows = map[uuid.UUID]models.LearningSession{}
	}
	m.rows[s.ID] = *s
	return nil
}

func (m *memSessions) GetByID(_ context.Context, id uuid.UUID) (*models.LearningSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok {
		return nil, missing("session")
	}
	return &s, nil
}

func (m *memSessions) ListByUser(_ context.Context, userID uuid.UUID, page, pageSize int) ([]*models.LearningSession, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*models.LearningSession
	for _, s := range m.rows {
		if s.UserID == userID {
			s := s
			all = append(all, &s)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].StartTime.After(all[j].StartTime) })
	start := (page - 1) * pageSize
	if start >= len(all) {
		return nil, len(all), nil
	}
	end := min(start+pageSize, len(all))
	return all[start:end], len(all), nil
}

func (m *memSessions) End(_ context.Context, id uuid.UUID, endTime time.Time, summary string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok || s.EndTime != nil {
		return false, nil
	}
	s.EndTime = &endTime
	s.Summary = &summary
	m.rows[id] = s
	return true, nil
}

func (m *memSessions) SetSummary(_ context.Context, id uuid.UUID, summary string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.rows[id]
	if s.Summary == nil {
		s.Summary = &summary
	}
	m.rows[id] = s
	return nil
}

func (m *memSessions) SetAnchor(_ context.Context, id uuid.UUID, txHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok {
		return missing("session")
	}
	s.BlockchainTxHash = &txHash
	m.rows[id] = s
	return nil
}

func (m *memSessions) ListStaleActive(_ context.Context, _ time.Time, limit int) ([]*models.LearningSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.LearningSession
	for _, id := range m.stale {
		s := m.rows[id]
		if s.EndTime == nil && len(out) < limit {
			out = append(out, &s)
		}
	}
	return out, nil
}

type memConversations struct {
	mu   sync.Mutex
	rows []models.Conversation
}

func (m *memConversations) Create(_ context.Context, c *models.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, *c)
	return nil
}

func (m *memConversations) GetByID(_ context.Context, id uuid.UUID) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.rows {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, missing("conversation")
}

func (m *memConversations) ListBySession(_ context.Context, sessionID uuid.UUID) ([]models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Conversation
	for _, c := range m.rows {
		if c.SessionID == sessionID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memConversations) RecentBySession(ctx context.Context, sessionID uuid.UUID, n int) ([]models.Conversation, error) {
	all, _ := m.ListBySession(ctx, sessionID)
	if len(all) > n {
		all = all[len(all)-n:]
	}
	return all, nil
}

type memAssessments struct {
	mu   sync.Mutex
	rows map[uuid.UUID]models.Assessment
}

func (m *memAssessments) Create(_ context.Context, a *models.Assessment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows == nil {
		m.rows = map[uuid.UUID]models.Assessment{}
	}
	m.rows[a.ID] = *a
	return nil
}

func (m *memAssessments) GetByID(_ context.Context, id uuid.UUID) (*models.Assessment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return nil, missing("assessment")
	}
	return &a, nil
}

func (m *memAssessments) ListByUser(_ context.Context, userID uuid.UUID) ([]*models.Assessment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Assessment
	for _, a := range m.rows {
		if a.UserID == userID {
			a := a
			out = append(out, &a)
		}
	}
	return out, nil
}

func (m *memAssessments) Complete(_ context.Context, a *models.Assessment) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.rows[a.ID]
	if !ok || cur.CompletedAt != nil {
		return false, nil
	}
	m.rows[a.ID] = *a
	return true, nil
}

type memModels struct {
	mu   sync.Mutex
	rows []models.AIModel
}

func (m *memModels) Create(_ context.Context, am *models.AIModel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.Name == am.Name {
			return fmt.Errorf("failed to create model: %w", database.ErrConflict)
		}
	}
	m.rows = append(m.rows, *am)
	return nil
}

func (m *memModels) GetByID(_ context.Context, id uuid.UUID) (*models.AIModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, missing("model")
}

func (m *memModels) GetByName(_ context.Context, name string) (*models.AIModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.Name == name {
			return &r, nil
		}
	}
	return nil, missing("model")
}

func (m *memModels) List(_ context.Context, activeOnly bool) ([]*models.AIModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.AIModel
	for _, r := range m.rows {
		if activeOnly && !r.IsActive {
			continue
		}
		r := r
		out = append(out, &r)
	}
	return out, nil
}

type memPreferences struct {
	mu   sync.Mutex
	rows []models.UserModelPreference
}

func (m *memPreferences) find(userID, modelID uuid.UUID) int {
	for i, p := range m.rows {
		if p.UserID == userID && p.ModelID == modelID {
			return i
		}
	}
	return -1
}

func (m *memPreferences) Get(_ context.Context, userID, modelID uuid.UUID) (*models.UserModelPreference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.find(userID, modelID); i >= 0 {
		p := m.rows[i]
		return &p, nil
	}
	return nil, missing("preference")
}

func (m *memPreferences) GetDefault(_ context.Context, userID uuid.UUID) (*models.UserModelPreference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.rows {
		if p.UserID == userID && p.IsDefault {
			return &p, nil
		}
	}
	return nil, missing("preference")
}

func (m *memPreferences) Upsert(_ context.Context, p *models.UserModelPreference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.IsDefault {
		m.clearDefault(p.UserID)
	}
	p.UpdatedAt = time.Now()
	if i := m.find(p.UserID, p.ModelID); i >= 0 {
		if p.APIKey == nil {
			p.APIKey = m.rows[i].APIKey
		}
		m.rows[i] = *p
		return nil
	}
	m.rows = append(m.rows, *p)
	return nil
}

func (m *memPreferences) SetDefault(_ context.Context, userID, modelID uuid.UUID) (*models.UserModelPreference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearDefault(userID)
	i := m.find(userID, modelID)
	if i < 0 {
		m.rows = append(m.rows, models.UserModelPreference{ID: uuid.New(), UserID: userID, ModelID: modelID})
		i = len(m.rows) - 1
	}
	m.rows[i].IsDefault = true
	p := m.rows[i]
	return &p, nil
}

func (m *memPreferences) clearDefault(userID uuid.UUID) {
	for i := range m.rows {
		if m.rows[i].UserID == userID {
			m.rows[i].IsDefault = false
		}
	}
}

type fakeStats struct {
	topicEngagement []models.TopicEngagement
	recent          [][]string
	err             error
}

func (f *fakeStats) SessionCounts(context.Context, uuid.UUID) (int, int, error) {
	return 3, 1, f.err
}

func (f *fakeStats) ConversationAverages(context.Context, uuid.UUID) (int, float64, float64, error) {
	return 7, 0.25, 0.5, nil
}

func (f *fakeStats) TopTopics(_ context.Context, _ uuid.UUID, limit int) ([]models.TopicCount, error) {
	return []models.TopicCount{{Topic: "calculus", Count: limit}}, nil
}

func (f *fakeStats) AssessmentSummary(context.Context, uuid.UUID) (int, *float64, error) {
	avg := 7.5
	return 2, &avg, nil
}

func (f *fakeStats) SubjectProgress(context.Context, uuid.UUID) ([]models.SubjectProgress, error) {
	return nil, nil
}

func (f *fakeStats) EngagementBySubject(context.Context, uuid.UUID) ([]models.SubjectEngagement, error) {
	return []models.SubjectEngagement{{Subject: "math", AvgEngagement: 0.4, AvgSentiment: 0.1, ConversationCount: 4}}, nil
}

func (f *fakeStats) TopicEngagement(context.Context, uuid.UUID) ([]models.TopicEngagement, error) {
	return f.topicEngagement, nil
}

func (f *fakeStats) RecentTopicLists(context.Context, uuid.UUID, int) ([][]string, error) {
	return f.recent, nil
}

type recordingQueue struct {
	mu   sync.Mutex
	jobs []*queue.Job
}

func (q *recordingQueue) Enqueue(_ context.Context, job *queue.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *recordingQueue) types() []queue.JobType {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]queue.JobType, len(q.jobs))
	for i, j := range q.jobs {
		out[i] = j.Type
	}
	return out
}

// fakeBinder records what was bound and answers with a fixed generation.
type fakeBinder struct {
	mu    sync.Mutex
	bound []ai.Descriptor
	prefs []*ai.Preference
	gen   nlp.Generation
}

func (b *fakeBinder) Bind(desc ai.Descriptor, pref *ai.Preference) nlp.Generator {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bound = append(b.bound, desc)
	b.prefs = append(b.prefs, pref)
	return generatorFunc(func(context.Context, nlp.Prompt) nlp.Generation {
		g := b.gen
		if g.Model == "" {
			g.Model = desc.Name
		}
		return g
	})
}

type generatorFunc func(ctx context.Context, p nlp.Prompt) nlp.Generation

func (f generatorFunc) Generate(ctx context.Context, p nlp.Prompt) nlp.Generation {
	return f(ctx, p)
}

type fixture struct {
	svc      *Service
	profiles *memProfiles
	sessions *memSessions
	convs    *memConversations
	assess   *memAssessments
	models   *memModels
	prefs    *memPreferences
	stats    *fakeStats
	jobs     *recordingQueue
	binder   *fakeBinder
	now      time.Time
}

func newFixture(cfg Config) *fixture {
	f := &fixture{
		profiles: &memProfiles{},
		sessions: &memSessions{},
		convs:    &memConversations{},
		assess:   &memAssessments{},
		models:   &memModels{},
		prefs:    &memPreferences{},
		stats:    &fakeStats{},
		jobs:     &recordingQueue{},
		binder:   &fakeBinder{},
		now:      time.Date(2026, 3, 14, 9, 26, 53, 589793238, time.UTC),
	}
	f.svc = NewService(Deps{
		Profiles:      f.profiles,
		Sessions:      f.sessions,
		Conversations: f.convs,
		Assessments:   f.assess,
		Models:        f.models,
		Preferences:   f.prefs,
		Stats:         f.stats,
		Binder:        f.binder,
		Jobs:          f.jobs,
	}, cfg)
	f.svc.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) addModel(name string, kind ai.Kind, active bool) *models.AIModel {
	m := models.AIModel{ID: uuid.New(), Name: name, ModelType: string(kind), IsActive: active}
	f.models.rows = append(f.models.rows, m)
	return &m
}
