package middleware

import (
	"mime"
	"net/http"
)

// ContentType requires a JSON Content-Type on POST, PUT and PATCH requests
// that carry a body. Action endpoints such as ending a session are posted
// without one.
func ContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !hasBodyMethod(r.Method) || r.ContentLength == 0 {
			next.ServeHTTP(w, r)
			return
		}

		contentType := r.Header.Get("Content-Type")
		if contentType == "" {
			WriteError(w, r, http.StatusBadRequest, "Content-Type header is required")
			return
		}
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err != nil || mediaType != "application/json" {
			WriteError(w, r, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func hasBodyMethod(method string) bool {
	return method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch
}
