package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	logpkg "github.com/benvon/smart-tutor/internal/logger"
)

// ErrorResponse is the JSON body of every error the middleware writes. It
// matches the envelope the handlers use.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Path      string `json:"path,omitempty"`
}

// WriteError writes the error envelope. r may be nil.
func WriteError(w http.ResponseWriter, r *http.Request, status int, message string) {
	body := ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if r != nil {
		body.Path = logpkg.SanitizePath(r.URL.Path)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// statusRecorder remembers the status and size of a response.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (rw *statusRecorder) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// ErrorHandler recovers handler panics into a 500 envelope. A panic after
// the response has started is only logged. http.ErrAbortHandler is
// re-raised so net/http can abort the connection.
func ErrorHandler(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := newStatusRecorder(w)
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				if err, ok := p.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(p)
				}

				fields := []zap.Field{
					zap.String("panic", fmt.Sprint(p)),
					zap.String("method", r.Method),
					zap.String("path", logpkg.SanitizePath(r.URL.Path)),
					zap.Bool("response_started", rec.wroteHeader),
					zap.Stack("stack"),
				}
				if user := UserFromContext(r); user != nil {
					fields = append(fields, zap.String("user_id", user.ID.String()))
				}
				logger.Error("panic_recovered", fields...)

				if !rec.wroteHeader {
					WriteError(w, r, http.StatusInternalServerError, "An unexpected error occurred")
				}
			}()

			next.ServeHTTP(rec, r)
		})
	}
}
