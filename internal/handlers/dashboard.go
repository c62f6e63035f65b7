package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/benvon/smart-tutor/internal/models"
)

// DashboardService computes learner statistics
type DashboardService interface {
	Dashboard(ctx context.Context, userID uuid.UUID) (*models.DashboardStats, error)
	Progress(ctx context.Context, userID uuid.UUID) (*models.Progress, error)
	Insights(ctx context.Context, userID uuid.UUID) (*models.Insights, error)
}

// DashboardHandler handles dashboard requests
type DashboardHandler struct {
	svc    DashboardService
	logger *zap.Logger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(svc DashboardService, logger *zap.Logger) *DashboardHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers dashboard routes. The router should already
// have the /dashboard prefix.
func (h *DashboardHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.Dashboard).Methods("GET")
	r.HandleFunc("/progress", h.Progress).Methods("GET")
	r.HandleFunc("/insights", h.Insights).Methods("GET")
}

// Dashboard returns session, conversation and assessment totals
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	serveForUser(w, r, h.logger, "failed_to_load_dashboard", h.svc.Dashboard)
}

// Progress returns assessment percentages and engagement by subject
func (h *DashboardHandler) Progress(w http.ResponseWriter, r *http.Request) {
	serveForUser(w, r, h.logger, "failed_to_load_progress", h.svc.Progress)
}

// Insights returns learning-style and engagement recommendations
func (h *DashboardHandler) Insights(w http.ResponseWriter, r *http.Request) {
	serveForUser(w, r, h.logger, "failed_to_load_insights", h.svc.Insights)
}

// serveForUser answers a read-only request scoped to the caller.
func serveForUser[T any](w http.ResponseWriter, r *http.Request, logger *zap.Logger, event string, load func(context.Context, uuid.UUID) (T, error)) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	v, err := load(r.Context(), user.ID)
	if err != nil {
		respondServiceError(w, logger, event, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}
