package middleware

import (
	"fmt"
	"net/http"
)

// DefaultMaxRequestSize bounds request bodies. Tutoring payloads are small
// JSON documents.
const DefaultMaxRequestSize int64 = 1 << 20

// MaxRequestSize rejects declared bodies over maxBytes with 413 and caps
// undeclared ones so that reading past the limit fails.
func MaxRequestSize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxRequestSize
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				WriteError(w, r, http.StatusRequestEntityTooLarge,
					fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytes))
				return
			}
			if r.Body != nil && r.Body != http.NoBody {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
