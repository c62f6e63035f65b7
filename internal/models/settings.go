package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Runtime settings stored in the database and edited with the configure CLI.

// DefaultCorsMaxAge is the preflight cache lifetime, in seconds, used when
// no CORS row exists.
const DefaultCorsMaxAge = 86400

// OIDCConfig describes one external identity provider.
type OIDCConfig struct {
	ID       uuid.UUID `json:"id"`
	Provider string    `json:"provider"`
	Issuer   string    `json:"issuer"`
	// Domain is a hosted login domain, used by Cognito user pools.
	Domain       *string   `json:"domain,omitempty"`
	ClientID     string    `json:"client_id"`
	ClientSecret *string   `json:"client_secret,omitempty"`
	RedirectURI  string    `json:"redirect_uri"`
	JWKSUrl      *string   `json:"jwks_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IssuerBase is the issuer without a trailing slash.
func (c *OIDCConfig) IssuerBase() string {
	return strings.TrimSuffix(c.Issuer, "/")
}

func (c *OIDCConfig) DiscoveryURL() string {
	return c.IssuerBase() + "/.well-known/openid-configuration"
}

// JWKSEndpoint returns the configured JWKS URL, or the conventional one
// under the issuer.
func (c *OIDCConfig) JWKSEndpoint() string {
	if c.JWKSUrl != nil && *c.JWKSUrl != "" {
		return *c.JWKSUrl
	}
	return c.IssuerBase() + "/.well-known/jwks.json"
}

// LoginDomain returns the https base of a Cognito hosted domain. Other
// providers log in through the issuer.
func (c *OIDCConfig) LoginDomain() (string, bool) {
	if c.Domain == nil || *c.Domain == "" || !strings.Contains(c.Issuer, "cognito-idp.") {
		return "", false
	}
	base := *c.Domain
	if !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	return strings.TrimSuffix(base, "/"), true
}

// CorsConfig is the single row of browser origin policy.
type CorsConfig struct {
	ConfigKey string `json:"config_key"`
	// AllowedOrigins is comma separated.
	AllowedOrigins   string    `json:"allowed_origins"`
	AllowCredentials bool      `json:"allow_credentials"`
	MaxAge           int       `json:"max_age"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (c *CorsConfig) Origins() []string {
	return SplitOrigins(c.AllowedOrigins)
}

// SplitOrigins splits a comma-separated origin list, trimming entries and
// dropping blanks and duplicates.
func SplitOrigins(raw string) []string {
	var out []string
	seen := make(map[string]bool)
	for p := range strings.SplitSeq(raw, ",") {
		s := strings.TrimSpace(p)
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// RatelimitConfig is the rate for one route group, in limiter notation
// such as "5-S" or "100-M".
type RatelimitConfig struct {
	ConfigKey string    `json:"config_key"`
	Rate      string    `json:"rate"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
