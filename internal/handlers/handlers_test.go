package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benvon/smart-tutor/internal/database"
	"github.com/benvon/smart-tutor/internal/middleware"
	"github.com/benvon/smart-tutor/internal/models"
	"github.com/benvon/smart-tutor/internal/services/auth"
	"github.com/benvon/smart-tutor/internal/services/tutor"
)

func sessionRoutes(f *fakeTutor, askMW ...mux.MiddlewareFunc) func(*mux.Router) {
	return func(r *mux.Router) {
		NewSessionHandler(f, nil).RegisterRoutes(r.PathPrefix("/api/v1/sessions").Subrouter(), askMW...)
	}
}

func TestSessionHandler_Ask(t *testing.T) {
	t.Parallel()

	sessionID := uuid.New()
	modelID := uuid.New()

	tests := []struct {
		name       string
		path       string
		body       any
		serviceErr error
		wantStatus int
		check      func(*testing.T, *fakeTutor, envelope)
	}{
		{
			name:       "answers and stores the turn",
			path:       "/api/v1/sessions/" + sessionID.String() + "/ask",
			body:       map[string]any{"message": "  What is calculus?\x00 ", "model_id": modelID},
			wantStatus: http.StatusCreated,
			check: func(t *testing.T, f *fakeTutor, env envelope) {
				assert.Equal(t, "What is calculus?", f.askIn.Message)
				assert.Equal(t, sessionID, f.askIn.SessionID)
				require.NotNil(t, f.askIn.ModelID)
				assert.Equal(t, modelID, *f.askIn.ModelID)
				var conv models.Conversation
				require.NoError(t, json.Unmarshal(env.Data, &conv))
				assert.Equal(t, []string{"calculus"}, conv.Topics)
			},
		},
		{
			name:       "invalid session id",
			path:       "/api/v1/sessions/not-a-uuid/ask",
			body:       map[string]any{"message": "hi"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing message",
			path:       "/api/v1/sessions/" + sessionID.String() + "/ask",
			body:       map[string]any{},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "whitespace message",
			path:       "/api/v1/sessions/" + sessionID.String() + "/ask",
			body:       map[string]any{"message": "   "},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "message too long",
			path:       "/api/v1/sessions/" + sessionID.String() + "/ask",
			body:       map[string]any{"message": strings.Repeat("a", MaxMessageLength+1)},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "ended session",
			path:       "/api/v1/sessions/" + sessionID.String() + "/ask",
			body:       map[string]any{"message": "hi"},
			serviceErr: tutor.ErrSessionEnded,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "someone else's session",
			path:       "/api/v1/sessions/" + sessionID.String() + "/ask",
			body:       map[string]any{"message": "hi"},
			serviceErr: tutor.ErrForbidden,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "unknown session",
			path:       "/api/v1/sessions/" + sessionID.String() + "/ask",
			body:       map[string]any{"message": "hi"},
			serviceErr: fmt.Errorf("session %w", tutor.ErrNotFound),
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "internal errors are not leaked",
			path:       "/api/v1/sessions/" + sessionID.String() + "/ask",
			body:       map[string]any{"message": "hi"},
			serviceErr: errors.New("pq: connection reset by peer"),
			wantStatus: http.StatusInternalServerError,
			check: func(t *testing.T, _ *fakeTutor, env envelope) {
				assert.NotContains(t, env.Message, "pq:")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := &fakeTutor{err: tt.serviceErr}
			w, env := serve(t, sessionRoutes(f), newTestRequest(http.MethodPost, tt.path, tt.body), testUser())

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantStatus < 300, env.Success)
			if tt.check != nil {
				tt.check(t, f, env)
			}
		})
	}
}

func TestSessionHandler_AskMiddlewareOnlyWrapsAsk(t *testing.T) {
	t.Parallel()

	blocked := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			respondError(w, http.StatusTooManyRequests, "slow down")
		})
	}
	f := &fakeTutor{}
	user := testUser()
	id := uuid.New().String()

	w, _ := serve(t, sessionRoutes(f, blocked), newTestRequest(http.MethodPost, "/api/v1/sessions/"+id+"/ask", map[string]string{"message": "hi"}), user)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w, _ = serve(t, sessionRoutes(f, blocked), newTestRequest(http.MethodGet, "/api/v1/sessions/"+id, nil), user)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSessionHandler_StartAndList(t *testing.T) {
	t.Parallel()

	f := &fakeTutor{}
	user := testUser()

	w, _ := serve(t, sessionRoutes(f), newTestRequest(http.MethodPost, "/api/v1/sessions", map[string]any{
		"subject":          "math",
		"topic":            "calculus",
		"difficulty_level": 7,
	}), user)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, user.ID, f.startIn.UserID)
	assert.Equal(t, 7, f.startIn.DifficultyLevel)

	w, _ = serve(t, sessionRoutes(f), newTestRequest(http.MethodPost, "/api/v1/sessions", map[string]any{
		"subject":          "math",
		"difficulty_level": 11,
	}), user)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := serve(t, sessionRoutes(f), newTestRequest(http.MethodGet, "/api/v1/sessions?page=2&page_size=500", nil), user)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, f.page)
	assert.Equal(t, tutor.MaxPageSize, f.pageSize)
	var list ListSessionsResponse
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, 41, list.Total)
	assert.Equal(t, 1, list.TotalPages)
}

func TestHandlers_RequireUser(t *testing.T) {
	t.Parallel()

	f := &fakeTutor{}
	routes := func(r *mux.Router) {
		api := r.PathPrefix("/api/v1").Subrouter()
		NewProfileHandler(f, nil).RegisterRoutes(api)
		NewDashboardHandler(f, nil).RegisterRoutes(api.PathPrefix("/dashboard").Subrouter())
		NewAssessmentHandler(f, nil).RegisterRoutes(api.PathPrefix("/assessments").Subrouter())
		NewIntegrityHandler(f, nil).RegisterRoutes(api.PathPrefix("/integrity").Subrouter())
	}
	for _, path := range []string{"/api/v1/profile", "/api/v1/dashboard", "/api/v1/dashboard/insights", "/api/v1/assessments"} {
		w, env := serve(t, routes, newTestRequest(http.MethodGet, path, nil), nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
		assert.False(t, env.Success, path)
	}
}

func TestProfileHandler(t *testing.T) {
	t.Parallel()

	routes := func(f *fakeTutor) func(*mux.Router) {
		return func(r *mux.Router) { NewProfileHandler(f, nil).RegisterRoutes(r.PathPrefix("/api/v1").Subrouter()) }
	}

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
		check      func(*testing.T, *fakeTutor)
	}{
		{
			name:       "update accepts reading/writing spelling",
			method:     http.MethodPut,
			path:       "/api/v1/profile",
			body:       map[string]any{"learning_style": "reading/writing", "skill_level": 3},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, f *fakeTutor) {
				require.NotNil(t, f.updIn.LearningStyle)
				assert.Equal(t, "reading/writing", *f.updIn.LearningStyle)
				assert.Equal(t, 3, *f.updIn.SkillLevel)
			},
		},
		{
			name:       "unknown style rejected",
			method:     http.MethodPut,
			path:       "/api/v1/profile",
			body:       map[string]any{"learning_style": "telepathic"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "skill level out of range",
			method:     http.MethodPut,
			path:       "/api/v1/profile",
			body:       map[string]any{"skill_level": 0},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "style detection applies when asked",
			method:     http.MethodPost,
			path:       "/api/v1/tutor/learning-style",
			body:       map[string]any{"text": "I like diagrams", "update_profile": true},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, f *fakeTutor) {
				assert.True(t, f.applied)
			},
		},
		{
			name:       "style detection needs text",
			method:     http.MethodPost,
			path:       "/api/v1/tutor/learning-style",
			body:       map[string]any{"text": ""},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := &fakeTutor{}
			w, _ := serve(t, routes(f), newTestRequest(tt.method, tt.path, tt.body), testUser())
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.check != nil {
				tt.check(t, f)
			}
		})
	}
}

func TestAssessmentHandler(t *testing.T) {
	t.Parallel()

	routes := func(f *fakeTutor) func(*mux.Router) {
		return func(r *mux.Router) {
			NewAssessmentHandler(f, nil).RegisterRoutes(r.PathPrefix("/api/v1/assessments").Subrouter())
		}
	}
	id := uuid.New().String()

	t.Run("generate", func(t *testing.T) {
		t.Parallel()
		f := &fakeTutor{}
		w, _ := serve(t, routes(f), newTestRequest(http.MethodPost, "/api/v1/assessments", map[string]any{"subject": "math", "topic": "algebra"}), testUser())
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "algebra", f.genIn.Topic)
	})

	t.Run("generate without topic or session", func(t *testing.T) {
		t.Parallel()
		f := &fakeTutor{err: fmt.Errorf("%w: topic or session_id is required", tutor.ErrInvalidInput)}
		w, env := serve(t, routes(f), newTestRequest(http.MethodPost, "/api/v1/assessments", map[string]any{"subject": "math"}), testUser())
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, env.Message, "topic or session_id")
	})

	t.Run("submit sanitizes answers", func(t *testing.T) {
		t.Parallel()
		f := &fakeTutor{}
		w, _ := serve(t, routes(f), newTestRequest(http.MethodPost, "/api/v1/assessments/"+id+"/submit", map[string]any{
			"answers": map[string]string{"1": " derivatives\x07 measure change "},
		}), testUser())
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "derivatives measure change", f.answers["1"])
	})

	t.Run("submit twice", func(t *testing.T) {
		t.Parallel()
		f := &fakeTutor{err: tutor.ErrAssessmentCompleted}
		w, _ := serve(t, routes(f), newTestRequest(http.MethodPost, "/api/v1/assessments/"+id+"/submit", map[string]any{
			"answers": map[string]string{"1": "x"},
		}), testUser())
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("submit without answers", func(t *testing.T) {
		t.Parallel()
		f := &fakeTutor{}
		w, _ := serve(t, routes(f), newTestRequest(http.MethodPost, "/api/v1/assessments/"+id+"/submit", map[string]any{}), testUser())
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestModelHandler(t *testing.T) {
	t.Parallel()

	routes := func(f *fakeTutor) func(*mux.Router) {
		return func(r *mux.Router) {
			NewModelHandler(f, nil).RegisterRoutes(r.PathPrefix("/api/v1/models").Subrouter(), middleware.RequireRole(models.RoleAdmin))
		}
	}
	admin := &models.User{ID: uuid.New(), Role: models.RoleAdmin}
	modelID := uuid.New().String()

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		user       *models.User
		serviceErr error
		wantStatus int
	}{
		{name: "list", method: http.MethodGet, path: "/api/v1/models", user: testUser(), wantStatus: http.StatusOK},
		{name: "register as student", method: http.MethodPost, path: "/api/v1/models", user: testUser(),
			body: map[string]any{"name": "tutor-gpt", "model_type": "gpt"}, wantStatus: http.StatusForbidden},
		{name: "register as admin", method: http.MethodPost, path: "/api/v1/models", user: admin,
			body: map[string]any{"name": "tutor-gpt", "model_type": "gpt"}, wantStatus: http.StatusCreated},
		{name: "register unknown kind", method: http.MethodPost, path: "/api/v1/models", user: admin,
			body: map[string]any{"name": "x", "model_type": "palm"}, wantStatus: http.StatusBadRequest},
		{name: "register bad endpoint", method: http.MethodPost, path: "/api/v1/models", user: admin,
			body: map[string]any{"name": "x", "model_type": "custom", "api_endpoint": "not a url"}, wantStatus: http.StatusBadRequest},
		{name: "register duplicate", method: http.MethodPost, path: "/api/v1/models", user: admin,
			body: map[string]any{"name": "tutor-gpt", "model_type": "gpt"}, serviceErr: tutor.ErrConflict, wantStatus: http.StatusConflict},
		{name: "get preference", method: http.MethodGet, path: "/api/v1/models/" + modelID + "/preference", user: testUser(), wantStatus: http.StatusOK},
		{name: "put preference", method: http.MethodPut, path: "/api/v1/models/" + modelID + "/preference", user: testUser(),
			body: map[string]any{"api_key": "sk-test", "is_default": true}, wantStatus: http.StatusOK},
		{name: "set default", method: http.MethodPost, path: "/api/v1/models/" + modelID + "/default", user: testUser(), wantStatus: http.StatusOK},
		{name: "set default on missing model", method: http.MethodPost, path: "/api/v1/models/" + modelID + "/default", user: testUser(),
			serviceErr: tutor.ErrNotFound, wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := &fakeTutor{err: tt.serviceErr}
			w, _ := serve(t, routes(f), newTestRequest(tt.method, tt.path, tt.body), tt.user)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestModelHandler_PreferenceKeyIsMasked(t *testing.T) {
	t.Parallel()

	f := &fakeTutor{}
	routes := func(r *mux.Router) {
		NewModelHandler(f, nil).RegisterRoutes(r.PathPrefix("/api/v1/models").Subrouter(), middleware.RequireRole(models.RoleAdmin))
	}
	w, env := serve(t, routes, newTestRequest(http.MethodGet, "/api/v1/models/"+uuid.NewString()+"/preference", nil), testUser())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), "[REDACTED]")
}

func TestDashboardAndIntegrityHandlers(t *testing.T) {
	t.Parallel()

	f := &fakeTutor{}
	user := testUser()
	routes := func(r *mux.Router) {
		api := r.PathPrefix("/api/v1").Subrouter()
		NewDashboardHandler(f, nil).RegisterRoutes(api.PathPrefix("/dashboard").Subrouter())
		NewIntegrityHandler(f, nil).RegisterRoutes(api.PathPrefix("/integrity").Subrouter())
	}

	for _, path := range []string{"/api/v1/dashboard", "/api/v1/dashboard/progress", "/api/v1/dashboard/insights"} {
		w, _ := serve(t, routes, newTestRequest(http.MethodGet, path, nil), user)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, user.ID, f.calledFor, path)
	}

	convID := uuid.New()
	w, env := serve(t, routes, newTestRequest(http.MethodPost, "/api/v1/integrity/verify/conversations/"+convID.String(), nil), user)
	require.Equal(t, http.StatusOK, w.Code)
	var v tutor.Verification
	require.NoError(t, json.Unmarshal(env.Data, &v))
	assert.True(t, v.Valid)
	assert.Equal(t, convID, v.ConversationID)

	w, _ = serve(t, routes, newTestRequest(http.MethodGet, "/api/v1/integrity/sessions/"+uuid.NewString(), nil), user)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthHandler(t *testing.T) {
	t.Parallel()

	routes := func(acc *fakeAccounts, sso SSOProvider) func(*mux.Router) {
		return func(r *mux.Router) {
			h := NewAuthHandler(acc, sso, nil)
			sub := r.PathPrefix("/api/v1/auth").Subrouter()
			h.RegisterPublicRoutes(sub)
			h.RegisterRoutes(sub)
		}
	}

	tests := []struct {
		name       string
		accErr     error
		sso        SSOProvider
		method     string
		path       string
		body       any
		user       *models.User
		wantStatus int
	}{
		{name: "register", method: http.MethodPost, path: "/api/v1/auth/register",
			body: map[string]any{"email": "a@example.com", "username": "alice", "password": "correct-horse"}, wantStatus: http.StatusCreated},
		{name: "register invalid email", method: http.MethodPost, path: "/api/v1/auth/register",
			body: map[string]any{"email": "nope", "username": "alice", "password": "correct-horse"}, wantStatus: http.StatusBadRequest},
		{name: "register taken", accErr: auth.ErrUserExists, method: http.MethodPost, path: "/api/v1/auth/register",
			body: map[string]any{"email": "a@example.com", "username": "alice", "password": "correct-horse"}, wantStatus: http.StatusConflict},
		{name: "login", method: http.MethodPost, path: "/api/v1/auth/login",
			body: map[string]any{"login": "alice", "password": "correct-horse"}, wantStatus: http.StatusOK},
		{name: "login with email field", method: http.MethodPost, path: "/api/v1/auth/login",
			body: map[string]any{"email": "a@example.com", "password": "correct-horse"}, wantStatus: http.StatusOK},
		{name: "login missing identity", method: http.MethodPost, path: "/api/v1/auth/login",
			body: map[string]any{"password": "correct-horse"}, wantStatus: http.StatusBadRequest},
		{name: "login wrong password", accErr: auth.ErrInvalidCredentials, method: http.MethodPost, path: "/api/v1/auth/login",
			body: map[string]any{"login": "alice", "password": "wrong-horse"}, wantStatus: http.StatusUnauthorized},
		{name: "refresh", method: http.MethodPost, path: "/api/v1/auth/refresh",
			body: map[string]any{"refresh_token": "r"}, wantStatus: http.StatusOK},
		{name: "refresh invalid", accErr: auth.ErrInvalidToken, method: http.MethodPost, path: "/api/v1/auth/refresh",
			body: map[string]any{"refresh_token": "r"}, wantStatus: http.StatusUnauthorized},
		{name: "me", method: http.MethodGet, path: "/api/v1/auth/me", user: testUser(), wantStatus: http.StatusOK},
		{name: "me anonymous", method: http.MethodGet, path: "/api/v1/auth/me", wantStatus: http.StatusUnauthorized},
		{name: "sso disabled", method: http.MethodGet, path: "/api/v1/auth/oidc/login", wantStatus: http.StatusNotFound},
		{name: "sso login", sso: &fakeSSO{}, method: http.MethodGet, path: "/api/v1/auth/oidc/login", wantStatus: http.StatusOK},
		{name: "sso provider missing", sso: &fakeSSO{err: fmt.Errorf("get: %w", database.ErrNotFound)}, method: http.MethodGet,
			path: "/api/v1/auth/oidc/login?provider=okta", wantStatus: http.StatusNotFound},
		{name: "sso callback", sso: &fakeSSO{}, method: http.MethodPost, path: "/api/v1/auth/oidc/callback",
			body: map[string]any{"code": "abc"}, wantStatus: http.StatusOK},
		{name: "sso callback rejected", sso: &fakeSSO{err: errors.New("bad signature")}, method: http.MethodPost,
			path: "/api/v1/auth/oidc/callback", body: map[string]any{"code": "abc"}, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			acc := &fakeAccounts{err: tt.accErr}
			w, _ := serve(t, routes(acc, tt.sso), newTestRequest(tt.method, tt.path, tt.body), tt.user)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestAuthHandler_OIDCLoginDefaults(t *testing.T) {
	t.Parallel()

	sso := &fakeSSO{}
	routes := func(r *mux.Router) {
		NewAuthHandler(&fakeAccounts{}, sso, nil).RegisterPublicRoutes(r.PathPrefix("/api/v1/auth").Subrouter())
	}
	w, env := serve(t, routes, newTestRequest(http.MethodGet, "/api/v1/auth/oidc/login", nil), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, DefaultOIDCProvider, sso.provider)
	_, err := uuid.Parse(sso.state)
	assert.NoError(t, err, "generated state should be a uuid")
	assert.Contains(t, string(env.Data), sso.state)
}

func TestDecodeJSON_BodyTooLarge(t *testing.T) {
	t.Parallel()

	f := &fakeTutor{}
	routes := func(r *mux.Router) {
		sub := r.PathPrefix("/api/v1/sessions").Subrouter()
		sub.Use(middleware.MaxRequestSize(64))
		NewSessionHandler(f, nil).RegisterRoutes(sub)
	}
	body := bytes.NewReader([]byte(`{"subject":"` + strings.Repeat("x", 200) + `"}`))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", body)
	// Unknown length, so the limit is hit while decoding.
	req.ContentLength = -1
	w, _ := serve(t, routes, req, testUser())
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
