package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/benvon/smart-tutor/internal/models"
	"github.com/benvon/smart-tutor/internal/request"
)

func TestLogging(t *testing.T) {
	t.Parallel()

	learner := &models.User{ID: uuid.New()}
	tests := []struct {
		name      string
		method    string
		path      string
		status    int
		authAs    *models.User
		wantLevel zapcore.Level
		wantRoute string
		wantUser  bool
	}{
		{name: "authenticated ask", method: http.MethodPost, path: "/api/v1/sessions/" + uuid.NewString() + "/ask", status: http.StatusCreated, authAs: learner, wantLevel: zapcore.InfoLevel, wantRoute: "/api/v1/sessions/{id}/ask", wantUser: true},
		{name: "anonymous 404", method: http.MethodGet, path: "/api/v1/sessions/x/ask", status: http.StatusNotFound, wantLevel: zapcore.InfoLevel, wantRoute: "/api/v1/sessions/{id}/ask"},
		{name: "server error", method: http.MethodGet, path: "/api/v1/dashboard", status: http.StatusInternalServerError, wantLevel: zapcore.ErrorLevel, wantRoute: "/api/v1/dashboard"},
		{name: "health probe", method: http.MethodGet, path: "/healthz", status: http.StatusOK, wantLevel: zapcore.DebugLevel, wantRoute: "/healthz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zapcore.DebugLevel)
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.authAs != nil {
					// Mimic Auth attaching the user further in.
					_ = request.WithUser(r.Context(), tt.authAs)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("ok"))
			})

			router := mux.NewRouter()
			router.Use(Logging(zap.New(core)))
			router.Handle("/api/v1/sessions/{id}/ask", handler)
			router.Handle("/api/v1/dashboard", handler)
			router.Handle("/healthz", handler)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.status, w.Code)

			require.Equal(t, 1, logs.Len())
			entry := logs.All()[0]
			assert.Equal(t, "http_request", entry.Message)
			assert.Equal(t, tt.wantLevel, entry.Level)

			fields := entry.ContextMap()
			assert.Equal(t, int64(tt.status), fields["status_code"])
			assert.Equal(t, int64(2), fields["bytes"])
			assert.Equal(t, tt.wantRoute, fields["route"])
			if tt.wantUser {
				assert.Equal(t, learner.ID.String(), fields["user_id"])
			} else {
				assert.NotContains(t, fields, "user_id")
			}
		})
	}
}

func TestAudit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status    int
		wantEvent string
	}{
		{http.StatusOK, ""},
		{http.StatusNotFound, ""},
		{http.StatusUnauthorized, "authentication_failed"},
		{http.StatusForbidden, "authorization_denied"},
		{http.StatusTooManyRequests, "rate_limit_violation"},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zapcore.InfoLevel)
			h := Audit(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			req := httptest.NewRequest(http.MethodGet, "/api/v1/models", nil)
			req.RemoteAddr = "192.0.2.4:5555"
			h.ServeHTTP(httptest.NewRecorder(), req)

			if tt.wantEvent == "" {
				assert.Zero(t, logs.Len())
				return
			}
			require.Equal(t, 1, logs.Len())
			fields := logs.All()[0].ContextMap()
			assert.Equal(t, tt.wantEvent, fields["event"])
			assert.Equal(t, "192.0.2.4", fields["ip"])
		})
	}
}
