package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/benvon/smart-tutor/internal/database"
)

// ActivityTracking records the last API interaction of authenticated
// users. A failed write never fails the request.
func ActivityTracking(activityRepo database.UserActivityRepositoryInterface, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user := UserFromContext(r); user != nil {
				if err := activityRepo.UpdateLastInteraction(r.Context(), user.ID); err != nil {
					logger.Warn("failed_to_update_user_activity",
						zap.String("user_id", user.ID.String()),
						zap.Error(err),
					)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
