package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/benvon/smart-tutor/internal/models"
	"github.com/benvon/smart-tutor/internal/request"
)

func TestErrorHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
		wantJSON   bool
		wantLogs   int
	}{
		{
			name: "no panic",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusCreated)
			},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "panic with string",
			handler:    func(http.ResponseWriter, *http.Request) { panic("boom") },
			wantStatus: http.StatusInternalServerError,
			wantJSON:   true,
			wantLogs:   1,
		},
		{
			name: "runtime panic",
			handler: func(http.ResponseWriter, *http.Request) {
				var m map[string]string
				m["key"] = "value"
			},
			wantStatus: http.StatusInternalServerError,
			wantJSON:   true,
			wantLogs:   1,
		},
		{
			name: "panic after response started",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusAccepted)
				panic("late")
			},
			wantStatus: http.StatusAccepted,
			wantLogs:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zapcore.InfoLevel)
			user := &models.User{ID: uuid.New()}
			req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
			req = req.WithContext(request.WithUser(req.Context(), user))
			w := httptest.NewRecorder()

			ErrorHandler(zap.New(core))(tt.handler).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			require.Equal(t, tt.wantLogs, logs.Len())
			if tt.wantLogs > 0 {
				ctx := logs.All()[0].ContextMap()
				assert.Equal(t, user.ID.String(), ctx["user_id"])
				assert.Equal(t, "/api/v1/sessions", ctx["path"])
			}
			if !tt.wantJSON {
				return
			}
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			var body ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.False(t, body.Success)
			assert.Equal(t, "Internal Server Error", body.Error)
			assert.Equal(t, "An unexpected error occurred", body.Message)
			assert.Equal(t, "/api/v1/sessions", body.Path)
			assert.NotEmpty(t, body.Timestamp)
		})
	}
}

func TestErrorHandlerReraisesAbort(t *testing.T) {
	t.Parallel()

	h := ErrorHandler(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestStatusRecorder(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	rec := newStatusRecorder(w)
	assert.Equal(t, http.StatusOK, rec.status)

	_, _ = rec.Write([]byte("hello"))
	rec.WriteHeader(http.StatusTeapot)

	assert.True(t, rec.wroteHeader)
	assert.Equal(t, http.StatusOK, rec.status)
	assert.Equal(t, 5, rec.bytes)
	assert.Same(t, w, rec.Unwrap())
}
