package models

// TokenUse distinguishes access from refresh tokens.
type TokenUse string

const (
	TokenUseAccess  TokenUse = "access"
	TokenUseRefresh TokenUse = "refresh"
)

// TokenClaims are the claims carried by locally issued tokens.
type TokenClaims struct {
	Sub      string   `json:"sub"` // user ID
	Email    string   `json:"email"`
	Role     Role     `json:"role"`
	TokenUse TokenUse `json:"token_use"`
	Exp      int64    `json:"exp"`
	Iat      int64    `json:"iat"`
}

// JWTClaims represents the claims extracted from an identity provider's
// ID token
type JWTClaims struct {
	Sub   string `json:"sub"`   // Subject (user ID from provider)
	Email string `json:"email"` // User email
	Name  string `json:"name"`  // User name
	Exp   int64  `json:"exp"`   // Expiration time
	Iat   int64  `json:"iat"`   // Issued at
	Iss   string `json:"iss"`   // Issuer
	Aud   string `json:"aud"`   // Audience
}

// TokenPair is returned by login and SSO callbacks.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}
