package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/benvon/smart-tutor/internal/models"
	"github.com/benvon/smart-tutor/internal/request"
	"github.com/benvon/smart-tutor/internal/services/auth"
	"github.com/benvon/smart-tutor/internal/services/oidc"
	"github.com/benvon/smart-tutor/internal/services/tutor"
)

// fakeTutor implements every service interface the handlers depend on. err
// is returned from every call when set.
type fakeTutor struct {
	err error

	startIn   tutor.StartSessionInput
	askIn     tutor.AskInput
	page      int
	pageSize  int
	updIn     tutor.ProfileUpdate
	applied   bool
	answers   map[string]string
	genIn     tutor.GenerateAssessmentInput
	modelIn   tutor.RegisterModelInput
	prefIn    tutor.PreferenceInput
	calledFor uuid.UUID
}

func (f *fakeTutor) StartSession(_ context.Context, in tutor.StartSessionInput) (*models.LearningSession, error) {
	f.startIn = in
	if f.err != nil {
		return nil, f.err
	}
	return &models.LearningSession{ID: uuid.New(), UserID: in.UserID, Subject: in.Subject, DifficultyLevel: 5}, nil
}

func (f *fakeTutor) ListSessions(_ context.Context, userID uuid.UUID, page, pageSize int) ([]*models.LearningSession, int, error) {
	f.calledFor, f.page, f.pageSize = userID, page, pageSize
	if f.err != nil {
		return nil, 0, f.err
	}
	return []*models.LearningSession{{ID: uuid.New(), UserID: userID, Subject: "math"}}, 41, nil
}

func (f *fakeTutor) GetSession(_ context.Context, userID, id uuid.UUID) (*models.LearningSession, error) {
	f.calledFor = userID
	if f.err != nil {
		return nil, f.err
	}
	return &models.LearningSession{ID: id, UserID: userID, Subject: "math"}, nil
}

func (f *fakeTutor) EndSession(ctx context.Context, userID, id uuid.UUID) (*models.LearningSession, error) {
	return f.GetSession(ctx, userID, id)
}

func (f *fakeTutor) Ask(_ context.Context, in tutor.AskInput) (*models.Conversation, error) {
	f.askIn = in
	if f.err != nil {
		return nil, f.err
	}
	return &models.Conversation{
		ID:          uuid.New(),
		SessionID:   in.SessionID,
		UserID:      in.UserID,
		UserMessage: in.Message,
		AIResponse:  "Calculus studies change.",
		Topics:      []string{"calculus"},
	}, nil
}

func (f *fakeTutor) GetProfile(_ context.Context, userID uuid.UUID) (*models.LearningProfile, error) {
	f.calledFor = userID
	if f.err != nil {
		return nil, f.err
	}
	return models.NewLearningProfile(userID), nil
}

func (f *fakeTutor) UpdateProfile(_ context.Context, userID uuid.UUID, upd tutor.ProfileUpdate) (*models.LearningProfile, error) {
	f.updIn = upd
	if f.err != nil {
		return nil, f.err
	}
	return models.NewLearningProfile(userID), nil
}

func (f *fakeTutor) DetectLearningStyle(_ context.Context, _ uuid.UUID, _ string, apply bool) (*tutor.StyleDetection, error) {
	f.applied = apply
	if f.err != nil {
		return nil, f.err
	}
	return &tutor.StyleDetection{LearningStyle: "visual", Scores: map[string]int{"visual": 2}, Confidence: 1, Applied: apply}, nil
}

func (f *fakeTutor) GenerateAssessment(_ context.Context, in tutor.GenerateAssessmentInput) (*models.Assessment, error) {
	f.genIn = in
	if f.err != nil {
		return nil, f.err
	}
	return &models.Assessment{ID: uuid.New(), UserID: in.UserID, Subject: in.Subject, Topic: in.Topic}, nil
}

func (f *fakeTutor) SubmitAssessment(_ context.Context, userID, id uuid.UUID, answers map[string]string) (*models.Assessment, error) {
	f.answers = answers
	if f.err != nil {
		return nil, f.err
	}
	return &models.Assessment{ID: id, UserID: userID}, nil
}

func (f *fakeTutor) GetAssessment(_ context.Context, userID, id uuid.UUID) (*models.Assessment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Assessment{ID: id, UserID: userID}, nil
}

func (f *fakeTutor) ListAssessments(_ context.Context, _ uuid.UUID) ([]*models.Assessment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []*models.Assessment{}, nil
}

func (f *fakeTutor) ListModels(context.Context) ([]*models.AIModel, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []*models.AIModel{{ID: uuid.New(), Name: "gpt-4o-mini", ModelType: "gpt", IsActive: true}}, nil
}

func (f *fakeTutor) RegisterModel(_ context.Context, in tutor.RegisterModelInput) (*models.AIModel, error) {
	f.modelIn = in
	if f.err != nil {
		return nil, f.err
	}
	return &models.AIModel{ID: uuid.New(), Name: in.Name, ModelType: in.ModelType, IsActive: true}, nil
}

func (f *fakeTutor) GetPreference(_ context.Context, _, modelID uuid.UUID) (*tutor.PreferenceView, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &tutor.PreferenceView{ModelID: modelID, HasAPIKey: true, MaskedAPIKey: "sk-t[REDACTED]cdef"}, nil
}

func (f *fakeTutor) PutPreference(_ context.Context, _, modelID uuid.UUID, in tutor.PreferenceInput) (*tutor.PreferenceView, error) {
	f.prefIn = in
	if f.err != nil {
		return nil, f.err
	}
	return &tutor.PreferenceView{ModelID: modelID, IsDefault: in.IsDefault}, nil
}

func (f *fakeTutor) SetDefaultModel(_ context.Context, _, modelID uuid.UUID) (*tutor.PreferenceView, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &tutor.PreferenceView{ModelID: modelID, IsDefault: true}, nil
}

func (f *fakeTutor) Dashboard(_ context.Context, userID uuid.UUID) (*models.DashboardStats, error) {
	f.calledFor = userID
	if f.err != nil {
		return nil, f.err
	}
	return &models.DashboardStats{}, nil
}

func (f *fakeTutor) Progress(_ context.Context, userID uuid.UUID) (*models.Progress, error) {
	f.calledFor = userID
	if f.err != nil {
		return nil, f.err
	}
	return &models.Progress{}, nil
}

func (f *fakeTutor) Insights(_ context.Context, userID uuid.UUID) (*models.Insights, error) {
	f.calledFor = userID
	if f.err != nil {
		return nil, f.err
	}
	return &models.Insights{}, nil
}

func (f *fakeTutor) VerifyConversation(_ context.Context, _, id uuid.UUID) (*tutor.Verification, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &tutor.Verification{ConversationID: id, StoredHash: "ab", ComputedHash: "ab", Valid: true}, nil
}

func (f *fakeTutor) SessionAnchorOf(_ context.Context, _, id uuid.UUID) (*tutor.SessionAnchor, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &tutor.SessionAnchor{SessionID: id}, nil
}

// fakeAccounts implements AccountService
type fakeAccounts struct {
	err     error
	ssoSeen *models.JWTClaims
	login   string
}

func (f *fakeAccounts) Register(_ context.Context, in auth.RegisterInput) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.User{ID: uuid.New(), Email: in.Email, Username: in.Username, Role: models.RoleStudent}, nil
}

func (f *fakeAccounts) Login(_ context.Context, login, _ string) (*models.User, *models.TokenPair, error) {
	f.login = login
	if f.err != nil {
		return nil, nil, f.err
	}
	return &models.User{ID: uuid.New(), Email: login}, &models.TokenPair{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer", ExpiresIn: 3600}, nil
}

func (f *fakeAccounts) Refresh(context.Context, string) (*models.TokenPair, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.TokenPair{AccessToken: "a2", TokenType: "Bearer", ExpiresIn: 3600}, nil
}

func (f *fakeAccounts) SSOLogin(_ context.Context, claims *models.JWTClaims) (*models.User, *models.TokenPair, error) {
	f.ssoSeen = claims
	if f.err != nil {
		return nil, nil, f.err
	}
	return &models.User{ID: uuid.New(), Email: claims.Email}, &models.TokenPair{AccessToken: "a"}, nil
}

// fakeSSO implements SSOProvider
type fakeSSO struct {
	err      error
	provider string
	state    string
}

func (f *fakeSSO) GetLoginConfig(_ context.Context, provider, state string) (*oidc.LoginConfig, error) {
	f.provider, f.state = provider, state
	if f.err != nil {
		return nil, f.err
	}
	return &oidc.LoginConfig{ClientID: "client", AuthURL: "https://idp.example.com/authorize?state=" + state}, nil
}

func (f *fakeSSO) Authenticate(_ context.Context, provider, _ string) (*models.JWTClaims, error) {
	f.provider = provider
	if f.err != nil {
		return nil, f.err
	}
	return &models.JWTClaims{Sub: "idp|42", Email: "sso@example.com"}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

// serve routes req through a fresh router as user (nil for anonymous).
func serve(t *testing.T, register func(*mux.Router), req *http.Request, user *models.User) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	r := mux.NewRouter()
	register(r)
	if user != nil {
		req = req.WithContext(request.WithUser(req.Context(), user))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func testUser() *models.User {
	return &models.User{ID: uuid.New(), Email: "learner@example.com", Role: models.RoleStudent}
}
