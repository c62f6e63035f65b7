// Package auth implements local accounts and the access and refresh tokens
// the API accepts.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/benvon/smart-tutor/internal/database"
	"github.com/benvon/smart-tutor/internal/logger"
	"github.com/benvon/smart-tutor/internal/models"
)

// Token issuer and default lifetimes.
const (
	Issuer            = "smart-tutor"
	DefaultAccessTTL  = time.Hour
	DefaultRefreshTTL = 30 * 24 * time.Hour
	MinPasswordLength = 8
)

var (
	// ErrInvalidCredentials is returned for an unknown user or wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is returned for malformed, expired or misused tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrUserExists is returned when email or username is taken.
	ErrUserExists = errors.New("user already exists")
	// ErrWeakPassword is returned for passwords below MinPasswordLength.
	ErrWeakPassword = errors.New("password too short")
)

// UserStore is the subset of the user repository auth needs
type UserStore interface {
	CreateWithProfile(ctx context.Context, user *models.User) (*models.LearningProfile, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByProviderID(ctx context.Context, providerID string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
}

// Config holds token settings
type Config struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

// Service registers users, checks passwords and issues tokens
type Service struct {
	users  UserStore
	key    []byte
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates an auth service. The secret must be non-empty.
func NewService(users UserStore, cfg Config, log *zap.Logger) (*Service, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("token secret is required")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{users: users, key: []byte(cfg.Secret), cfg: cfg, logger: log, now: time.Now}, nil
}

// RegisterInput is a new local account
type RegisterInput struct {
	Email    string
	Username string
	Password string
	Name     *string
}

// Register creates a local account with a default learning profile.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if len(in.Password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	hashStr := string(hash)
	user := &models.User{
		ID:           uuid.New(),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		Username:     strings.TrimSpace(in.Username),
		PasswordHash: &hashStr,
		Name:         in.Name,
		Role:         models.RoleStudent,
	}
	if _, err := s.users.CreateWithProfile(ctx, user); err != nil {
		if errors.Is(err, database.ErrConflict) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to register user: %w", err)
	}
	s.logger.Info("user_registered", zap.String("user_id", logger.SanitizeUserID(user.ID.String())))
	return user, nil
}

// Login checks a username-or-email and password and issues tokens.
func (s *Service) Login(ctx context.Context, login, password string) (*models.User, *models.TokenPair, error) {
	login = strings.TrimSpace(login)
	var (
		user *models.User
		err  error
	)
	if strings.Contains(login, "@") {
		user, err = s.users.GetByEmail(ctx, strings.ToLower(login))
	} else {
		user, err = s.users.GetByUsername(ctx, login)
	}
	if err != nil {
		if database.IsNotFound(err) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user.PasswordHash == nil {
		return nil, nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.IssueTokens(user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Refresh exchanges a refresh token for a new access token. The user is
// reloaded so role changes take effect.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	claims, err := s.parse(refreshToken, models.TokenUseRefresh)
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(claims.Sub)
	if err != nil {
		return nil, ErrInvalidToken
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	access, err := s.sign(user, models.TokenUseAccess, s.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}
	return &models.TokenPair{
		AccessToken: access,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.cfg.AccessTTL.Seconds()),
	}, nil
}

// SSOLogin finds or creates the local user for verified provider claims
// and issues tokens. An existing local account with the same email is
// linked to the provider subject.
func (s *Service) SSOLogin(ctx context.Context, claims *models.JWTClaims) (*models.User, *models.TokenPair, error) {
	user, err := s.users.GetByProviderID(ctx, claims.Sub)
	switch {
	case err == nil:
	case database.IsNotFound(err):
		user, err = s.linkOrCreate(ctx, claims)
		if err != nil {
			return nil, nil, err
		}
	default:
		return nil, nil, fmt.Errorf("failed to load user: %w", err)
	}

	pair, err := s.IssueTokens(user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

func (s *Service) linkOrCreate(ctx context.Context, claims *models.JWTClaims) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(claims.Email))
	if email == "" {
		return nil, fmt.Errorf("provider did not supply an email: %w", ErrInvalidToken)
	}
	sub := claims.Sub

	existing, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		existing.ProviderID = &sub
		existing.EmailVerified = true
		if err := s.users.Update(ctx, existing); err != nil {
			return nil, fmt.Errorf("failed to link user: %w", err)
		}
		return existing, nil
	}
	if !database.IsNotFound(err) {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	user := &models.User{
		ID:            uuid.New(),
		Email:         email,
		Username:      usernameFromEmail(email, sub),
		ProviderID:    &sub,
		Role:          models.RoleStudent,
		EmailVerified: true,
	}
	if claims.Name != "" {
		name := claims.Name
		user.Name = &name
	}
	if _, err := s.users.CreateWithProfile(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create SSO user: %w", err)
	}
	s.logger.Info("sso_user_created", zap.String("user_id", logger.SanitizeUserID(user.ID.String())))
	return user, nil
}

// usernameFromEmail derives a unique-enough username from the mailbox
// and the provider subject.
func usernameFromEmail(email, sub string) string {
	local, _, _ := strings.Cut(email, "@")
	suffix := sub
	if len(suffix) > 8 {
		suffix = suffix[len(suffix)-8:]
	}
	return local + "-" + suffix
}

// IssueTokens signs a fresh access and refresh token pair.
func (s *Service) IssueTokens(user *models.User) (*models.TokenPair, error) {
	access, err := s.sign(user, models.TokenUseAccess, s.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sign(user, models.TokenUseRefresh, s.cfg.RefreshTTL)
	if err != nil {
		return nil, err
	}
	return &models.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.cfg.AccessTTL.Seconds()),
	}, nil
}

// ParseAccessToken validates an access token and returns its claims.
func (s *Service) ParseAccessToken(token string) (*models.TokenClaims, error) {
	return s.parse(token, models.TokenUseAccess)
}

func (s *Service) sign(user *models.User, use models.TokenUse, ttl time.Duration) (string, error) {
	now := s.now()
	tok, err := jwt.NewBuilder().
		Issuer(Issuer).
		Subject(user.ID.String()).
		IssuedAt(now).
		Expiration(now.Add(ttl)).
		Claim("email", user.Email).
		Claim("role", string(user.Role)).
		Claim("token_use", string(use)).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build token: %w", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, s.key))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return string(signed), nil
}

func (s *Service) parse(token string, want models.TokenUse) (*models.TokenClaims, error) {
	tok, err := jwt.Parse([]byte(token),
		jwt.WithKey(jwa.HS256, s.key),
		jwt.WithValidate(true),
		jwt.WithIssuer(Issuer),
		jwt.WithClock(jwt.ClockFunc(s.now)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims := &models.TokenClaims{
		Sub:      tok.Subject(),
		Email:    stringClaim(tok, "email"),
		Role:     models.Role(stringClaim(tok, "role")),
		TokenUse: models.TokenUse(stringClaim(tok, "token_use")),
		Exp:      tok.Expiration().Unix(),
		Iat:      tok.IssuedAt().Unix(),
	}
	if claims.TokenUse != want {
		return nil, fmt.Errorf("%w: expected %s token", ErrInvalidToken, want)
	}
	return claims, nil
}

func stringClaim(tok jwt.Token, name string) string {
	v, ok := tok.Get(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
