package middleware

import (
	"encoding/json"
	"net/http"
	"time"
)

// DefaultRequestTimeout applies when Timeout is given a non-positive value.
const DefaultRequestTimeout = 30 * time.Second

// Timeout cancels the request context after d and answers 503 with the
// error envelope if the handler has not responded by then. Routes that
// call models need d above the model call timeout.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	if d <= 0 {
		d = DefaultRequestTimeout
	}
	body, _ := json.Marshal(ErrorResponse{
		Error:   http.StatusText(http.StatusServiceUnavailable),
		Message: "Request timed out",
	})
	return func(next http.Handler) http.Handler {
		th := http.TimeoutHandler(next, d, string(body))
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			th.ServeHTTP(jsonDefaultWriter{w}, r)
		})
	}
}

// jsonDefaultWriter labels responses that set no Content-Type as JSON.
// http.TimeoutHandler writes its body without one.
type jsonDefaultWriter struct {
	http.ResponseWriter
}

func (w jsonDefaultWriter) WriteHeader(code int) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.ResponseWriter.WriteHeader(code)
}
