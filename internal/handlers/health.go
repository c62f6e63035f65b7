package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	logpkg "github.com/benvon/smart-tutor/internal/logger"
)

// CheckFunc reports whether one dependency is reachable
type CheckFunc func(ctx context.Context) error

type namedCheck struct {
	name  string
	check CheckFunc
}

// BuildInfo is reported by /version
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
}

// HealthChecker handles health check requests
type HealthChecker struct {
	checks  []namedCheck
	build   BuildInfo
	timeout time.Duration
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(build BuildInfo) *HealthChecker {
	return &HealthChecker{build: build, timeout: 5 * time.Second}
}

// AddCheck registers a dependency probed in extended mode. Optional
// dependencies that are not configured are simply not added.
func (h *HealthChecker) AddCheck(name string, check CheckFunc) *HealthChecker {
	h.checks = append(h.checks, namedCheck{name: name, check: check})
	return h
}

// RegisterRoutes registers /healthz and /version
func (h *HealthChecker) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/version", h.Version).Methods("GET")
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Version   string            `json:"version,omitempty"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthCheck handles the /healthz endpoint. ?extended=true (or the older
// ?mode=extended) probes every registered dependency.
func (h *HealthChecker) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   h.build.Version,
	}

	statusCode := http.StatusOK
	if extendedMode(r) {
		checks := make(map[string]string, len(h.checks))
		for _, c := range h.checks {
			if err := h.run(r.Context(), c.check); err != nil {
				response.Status = "unhealthy"
				checks[c.name] = "unhealthy: " + logpkg.SanitizeString(err.Error(), maxErrorMessageLength)
				continue
			}
			checks[c.name] = "healthy"
		}
		response.Checks = checks
		if response.Status == "unhealthy" {
			statusCode = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

// Version reports build information
func (h *HealthChecker) Version(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.build)
}

func (h *HealthChecker) run(ctx context.Context, check CheckFunc) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	return check(ctx)
}

func extendedMode(r *http.Request) bool {
	q := r.URL.Query()
	if q.Get("mode") == "extended" {
		return true
	}
	extended, _ := strconv.ParseBool(q.Get("extended"))
	return extended
}
