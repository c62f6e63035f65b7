package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/benvon/smart-tutor/internal/database"
	"github.com/benvon/smart-tutor/internal/models"
	"github.com/benvon/smart-tutor/internal/request"
)

// AccessTokenParser validates a local access token and returns its claims.
type AccessTokenParser interface {
	ParseAccessToken(token string) (*models.TokenClaims, error)
}

// UserLoader loads the user named by a token subject.
type UserLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// UserFromContext extracts the user from the request context
func UserFromContext(r *http.Request) *models.User {
	return request.UserFromContext(r)
}

// Auth accepts only local access tokens. The user is reloaded on every
// request so role changes and deletions take effect immediately.
func Auth(tokens AccessTokenParser, users UserLoader, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				WriteError(w, r, http.StatusUnauthorized, "Missing Authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
				WriteError(w, r, http.StatusUnauthorized, "Invalid Authorization header format")
				return
			}

			claims, err := tokens.ParseAccessToken(strings.TrimSpace(parts[1]))
			if err != nil {
				logger.Debug("token_verification_failed", zap.Error(err))
				WriteError(w, r, http.StatusUnauthorized, "Invalid or expired token")
				return
			}
			userID, err := uuid.Parse(claims.Sub)
			if err != nil {
				WriteError(w, r, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			ctx := r.Context()
			user, err := users.GetByID(ctx, userID)
			if err != nil {
				if database.IsNotFound(err) {
					WriteError(w, r, http.StatusUnauthorized, "User no longer exists")
					return
				}
				logger.Error("failed_to_load_user",
					zap.String("user_id", userID.String()),
					zap.Error(err),
				)
				WriteError(w, r, http.StatusInternalServerError, "Database error")
				return
			}

			next.ServeHTTP(w, r.WithContext(request.WithUser(ctx, user)))
		})
	}
}

// RequireRole rejects authenticated users whose role is not listed.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r)
			if user == nil {
				WriteError(w, r, http.StatusUnauthorized, "Authentication required")
				return
			}
			for _, role := range roles {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			WriteError(w, r, http.StatusForbidden, "Insufficient permissions")
		})
	}
}
