package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	logpkg "github.com/benvon/smart-tutor/internal/logger"
	"github.com/benvon/smart-tutor/internal/request"
)

// quietPaths are probed constantly and log at debug level.
var quietPaths = map[string]bool{
	"/healthz": true,
	"/version": true,
}

// Logging writes one http_request entry per request. It also attaches a
// request.Info so the user authenticated further in is reported here.
func Logging(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx, info := request.WithInfo(r.Context())
			rec := newStatusRecorder(w)

			next.ServeHTTP(rec, r.WithContext(ctx))

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", logpkg.SanitizePath(r.URL.Path)),
				zap.Int("status_code", rec.status),
				zap.Int("bytes", rec.bytes),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			}
			if route := mux.CurrentRoute(r); route != nil {
				if tmpl, err := route.GetPathTemplate(); err == nil {
					fields = append(fields, zap.String("route", tmpl))
				}
			}
			if info.UserID != uuid.Nil {
				fields = append(fields, zap.String("user_id", info.UserID.String()))
			}
			if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
				fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
			}
			logger.Log(requestLevel(r.URL.Path, rec.status), "http_request", fields...)
		})
	}
}

func requestLevel(path string, status int) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case quietPaths[path] && status < http.StatusBadRequest:
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}
