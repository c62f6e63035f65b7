package request

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/benvon/smart-tutor/internal/models"
)

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "forwarded chain", headers: map[string]string{"X-Forwarded-For": " 203.0.113.7 , 10.0.0.2"}, want: "203.0.113.7"},
		{name: "forwarded wins over real ip", headers: map[string]string{"X-Forwarded-For": "203.0.113.7", "X-Real-IP": "198.51.100.1"}, want: "203.0.113.7"},
		{name: "empty forwarded entry", headers: map[string]string{"X-Forwarded-For": " ,10.0.0.2", "X-Real-IP": "198.51.100.1"}, want: "198.51.100.1"},
		{name: "peer port stripped", remote: "192.0.2.10:54321", want: "192.0.2.10"},
		{name: "ipv6 peer", remote: "[2001:db8::1]:443", want: "2001:db8::1"},
		{name: "peer without port", remote: "192.0.2.10", want: "192.0.2.10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest("GET", "/api/v1/sessions", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(r))
		})
	}
}

func TestUserContext(t *testing.T) {
	t.Parallel()

	learner := &models.User{ID: uuid.New(), Email: "learner@example.com"}

	ctx, info := WithInfo(context.Background())
	ctx = WithUser(ctx, learner)
	r := httptest.NewRequest("GET", "/", nil).WithContext(ctx)

	assert.Same(t, learner, UserFromContext(r))
	assert.Equal(t, learner.ID, info.UserID)

	bare := httptest.NewRequest("GET", "/", nil)
	assert.Nil(t, UserFromContext(bare))

	// Without an Info the user is still attached.
	r = bare.WithContext(WithUser(context.Background(), learner))
	assert.Same(t, learner, UserFromContext(r))

	// A nil user leaves the Info empty.
	ctx, info = WithInfo(context.Background())
	_ = WithUser(ctx, nil)
	assert.Equal(t, uuid.Nil, info.UserID)
}
