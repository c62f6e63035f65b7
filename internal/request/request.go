// Package request carries per-request values between middleware and
// handlers.
package request

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/benvon/smart-tutor/internal/models"
)

type contextKey int

const (
	userKey contextKey = iota
	infoKey
)

// Info is filled in as a request travels inward so that outer middleware,
// which only sees the original request, can report who made it.
type Info struct {
	UserID uuid.UUID
}

// WithInfo attaches an empty Info to ctx.
func WithInfo(ctx context.Context) (context.Context, *Info) {
	info := &Info{}
	return context.WithValue(ctx, infoKey, info), info
}

// WithUser returns a context with the user attached. It also records the
// user on the request's Info, if any.
func WithUser(ctx context.Context, user *models.User) context.Context {
	if info, ok := ctx.Value(infoKey).(*Info); ok && user != nil {
		info.UserID = user.ID
	}
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the authenticated user, or nil.
func UserFromContext(r *http.Request) *models.User {
	u, _ := r.Context().Value(userKey).(*models.User)
	return u
}

// ClientIP returns the caller's address without a port. The first
// X-Forwarded-For entry wins, then X-Real-IP, then the peer address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
