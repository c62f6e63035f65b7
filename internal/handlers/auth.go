package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/benvon/smart-tutor/internal/database"
	"github.com/benvon/smart-tutor/internal/models"
	"github.com/benvon/smart-tutor/internal/services/auth"
	"github.com/benvon/smart-tutor/internal/services/oidc"
	"github.com/benvon/smart-tutor/internal/validation"
)

// DefaultOIDCProvider names the oidc_config row used when the request does
// not name one.
const DefaultOIDCProvider = "default"

// AccountService is the local account and token service
type AccountService interface {
	Register(ctx context.Context, in auth.RegisterInput) (*models.User, error)
	Login(ctx context.Context, login, password string) (*models.User, *models.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	SSOLogin(ctx context.Context, claims *models.JWTClaims) (*models.User, *models.TokenPair, error)
}

// SSOProvider runs the optional OIDC code flow
type SSOProvider interface {
	GetLoginConfig(ctx context.Context, providerName, state string) (*oidc.LoginConfig, error)
	Authenticate(ctx context.Context, providerName, code string) (*models.JWTClaims, error)
}

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	accounts AccountService
	sso      SSOProvider
	logger   *zap.Logger
}

// NewAuthHandler creates a new auth handler. sso may be nil, which
// disables the SSO routes.
func NewAuthHandler(accounts AccountService, sso SSOProvider, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{accounts: accounts, sso: sso, logger: logger}
}

// RegisterPublicRoutes registers the routes that issue tokens. The router
// should already have the /api/v1/auth prefix.
func (h *AuthHandler) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/login", h.Login).Methods("POST")
	r.HandleFunc("/refresh", h.Refresh).Methods("POST")
	r.HandleFunc("/oidc/login", h.GetOIDCLogin).Methods("GET")
	r.HandleFunc("/oidc/callback", h.OIDCCallback).Methods("POST")
}

// RegisterRoutes registers the authenticated auth routes
func (h *AuthHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/me", h.GetMe).Methods("GET")
}

// RegisterRequest is a new local account
type RegisterRequest struct {
	Email    string  `json:"email" validate:"required,email,max=255"`
	Username string  `json:"username" validate:"required,min=3,max=50"`
	Password string  `json:"password" validate:"required,min=8,max=128"`
	Name     *string `json:"name,omitempty" validate:"omitempty,max=255"`
}

// LoginRequest accepts a username or an email as login
type LoginRequest struct {
	Login    string `json:"login" validate:"max=255"`
	Email    string `json:"email" validate:"max=255"`
	Password string `json:"password" validate:"required,max=128"`
}

// RefreshRequest carries a refresh token
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// OIDCCallbackRequest carries the authorization code from the provider redirect
type OIDCCallbackRequest struct {
	Provider string `json:"provider,omitempty"`
	Code     string `json:"code" validate:"required"`
}

// LoginResponse is returned by login and the SSO callback
type LoginResponse struct {
	User *models.User `json:"user"`
	*models.TokenPair
}

// Register creates a local account
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.accounts.Register(r.Context(), auth.RegisterInput{
		Email:    req.Email,
		Username: validation.SanitizeText(req.Username),
		Password: req.Password,
		Name:     req.Name,
	})
	switch {
	case errors.Is(err, auth.ErrUserExists):
		respondError(w, http.StatusConflict, "Email or username already registered")
		return
	case errors.Is(err, auth.ErrWeakPassword):
		respondError(w, http.StatusBadRequest, "Password too short")
		return
	case err != nil:
		h.logger.Error("failed_to_register_user", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to register user")
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

// Login checks credentials and issues tokens
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	login := req.Login
	if login == "" {
		login = req.Email
	}
	if login == "" {
		respondError(w, http.StatusBadRequest, "login or email is required")
		return
	}
	user, pair, err := h.accounts.Login(r.Context(), login, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			respondError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		h.logger.Error("failed_to_login", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to log in")
		return
	}
	respondJSON(w, http.StatusOK, LoginResponse{User: user, TokenPair: pair})
}

// Refresh issues a new access token
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	pair, err := h.accounts.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			respondError(w, http.StatusUnauthorized, "Invalid or expired refresh token")
			return
		}
		h.logger.Error("failed_to_refresh_token", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to refresh token")
		return
	}
	respondJSON(w, http.StatusOK, pair)
}

// GetOIDCLogin returns OIDC configuration for frontend
func (h *AuthHandler) GetOIDCLogin(w http.ResponseWriter, r *http.Request) {
	if h.sso == nil {
		respondError(w, http.StatusNotFound, "SSO is not configured")
		return
	}
	provider := r.URL.Query().Get("provider")
	if provider == "" {
		provider = DefaultOIDCProvider
	}
	state := r.URL.Query().Get("state")
	if state == "" {
		state = uuid.NewString()
	}

	loginConfig, err := h.sso.GetLoginConfig(r.Context(), provider, state)
	if err != nil {
		if database.IsNotFound(err) {
			respondError(w, http.StatusNotFound, "SSO provider not configured")
			return
		}
		h.logger.Error("failed_to_get_oidc_config", zap.String("provider", provider), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to get OIDC configuration")
		return
	}

	respondJSON(w, http.StatusOK, loginConfig)
}

// OIDCCallback exchanges the authorization code and issues local tokens
func (h *AuthHandler) OIDCCallback(w http.ResponseWriter, r *http.Request) {
	if h.sso == nil {
		respondError(w, http.StatusNotFound, "SSO is not configured")
		return
	}
	var req OIDCCallbackRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	provider := req.Provider
	if provider == "" {
		provider = DefaultOIDCProvider
	}

	ctx := r.Context()
	claims, err := h.sso.Authenticate(ctx, provider, req.Code)
	if err != nil {
		if database.IsNotFound(err) {
			respondError(w, http.StatusNotFound, "SSO provider not configured")
			return
		}
		h.logger.Warn("oidc_authentication_failed", zap.String("provider", provider), zap.Error(err))
		respondError(w, http.StatusUnauthorized, "SSO authentication failed")
		return
	}
	user, pair, err := h.accounts.SSOLogin(ctx, claims)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			respondError(w, http.StatusUnauthorized, "SSO authentication failed")
			return
		}
		h.logger.Error("failed_to_complete_sso_login", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to complete SSO login")
		return
	}
	respondJSON(w, http.StatusOK, LoginResponse{User: user, TokenPair: pair})
}

// GetMe returns current user information
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	respondJSON(w, http.StatusOK, user)
}
