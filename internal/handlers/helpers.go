package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	logpkg "github.com/benvon/smart-tutor/internal/logger"
	"github.com/benvon/smart-tutor/internal/middleware"
	"github.com/benvon/smart-tutor/internal/models"
	"github.com/benvon/smart-tutor/internal/services/tutor"
	"github.com/benvon/smart-tutor/internal/validation"
)

// maxErrorMessageLength bounds messages echoed back to clients.
const maxErrorMessageLength = 200

// dataEnvelope wraps every successful response.
type dataEnvelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(dataEnvelope{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// respondError writes the shared error envelope. The message is stripped of
// control characters and truncated.
func respondError(w http.ResponseWriter, status int, message string) {
	middleware.WriteError(w, nil, status, logpkg.SanitizeString(message, maxErrorMessageLength))
}

// currentUser returns the authenticated user or writes a 401.
func currentUser(w http.ResponseWriter, r *http.Request) *models.User {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondError(w, http.StatusUnauthorized, "User not found in context")
	}
	return user
}

// pathID parses the {id} route variable or writes a 400.
func pathID(w http.ResponseWriter, r *http.Request, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s ID", what))
		return uuid.Nil, false
	}
	return id, true
}

// decodeJSON decodes and validates a request body, writing the error
// response itself when it fails.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			respondError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytesErr.Limit))
			return false
		}
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := validation.Validate.Struct(dst); err != nil {
		respondError(w, http.StatusBadRequest, "Validation failed: "+validation.FieldErrors(err))
		return false
	}
	return true
}

// queryInt reads a positive integer query parameter, returning def when
// absent or malformed.
func queryInt(r *http.Request, name string, def int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			return parsed
		}
	}
	return def
}

// respondServiceError maps tutor errors onto status codes. Internal error
// text is logged, never returned.
func respondServiceError(w http.ResponseWriter, logger *zap.Logger, event string, err error) {
	switch {
	case errors.Is(err, tutor.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, tutor.ErrForbidden):
		respondError(w, http.StatusForbidden, "Access denied")
	case errors.Is(err, tutor.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, tutor.ErrSessionEnded),
		errors.Is(err, tutor.ErrAssessmentCompleted),
		errors.Is(err, tutor.ErrConflict):
		respondError(w, http.StatusConflict, err.Error())
	default:
		logger.Error(event, zap.Error(err))
		respondError(w, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
