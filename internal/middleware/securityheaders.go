package middleware

import (
	"net/http"
	"strings"
)

// hstsValue pins HTTPS for a year.
const hstsValue = "max-age=31536000; includeSubDomains; preload"

// apiHeaders suit a JSON-only API that is never framed or rendered.
var apiHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "strict-origin-when-cross-origin"},
	{"Permissions-Policy", "camera=(), microphone=(), geolocation=()"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Cross-Origin-Resource-Policy", "same-site"},
}

// SecurityHeaders sets the API's security headers. Responses under /api/
// carry learner data and are marked no-store. HSTS is only sent when
// enabled and the request arrived over HTTPS, directly or through a
// proxy that says so.
func SecurityHeaders(enableHSTS bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, kv := range apiHeaders {
				h.Set(kv[0], kv[1])
			}
			if strings.HasPrefix(r.URL.Path, "/api/") {
				h.Set("Cache-Control", "no-store")
			}
			if enableHSTS && isHTTPS(r) {
				h.Set("Strict-Transport-Security", hstsValue)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isHTTPS(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
