package middleware

import (
	"net/http"

	"go.uber.org/zap"

	logpkg "github.com/benvon/smart-tutor/internal/logger"
	"github.com/benvon/smart-tutor/internal/request"
)

// auditEvents names the statuses worth a security log line.
var auditEvents = map[int]string{
	http.StatusUnauthorized:    "authentication_failed",
	http.StatusForbidden:       "authorization_denied",
	http.StatusTooManyRequests: "rate_limit_violation",
}

// Audit logs failed authentication, denied authorization and rate limit
// violations with the caller's address.
func Audit(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)

			event, ok := auditEvents[rec.status]
			if !ok {
				return
			}
			logger.Warn("security_event",
				zap.String("event", event),
				zap.Int("status_code", rec.status),
				zap.String("method", r.Method),
				zap.String("path", logpkg.SanitizePath(r.URL.Path)),
				zap.String("ip", logpkg.SanitizeString(request.ClientIP(r), logpkg.MaxGeneralStringLength)),
			)
		})
	}
}
