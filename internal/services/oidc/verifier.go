package oidc

import (
	"context"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/benvon/smart-tutor/internal/models"
)

// Verifier checks ID tokens from one provider.
type Verifier struct {
	keys     *KeyCache
	issuer   string
	audience string
}

// NewVerifier creates a verifier. An empty audience skips the aud check.
func NewVerifier(keys *KeyCache, issuer, audience string) *Verifier {
	return &Verifier{keys: keys, issuer: issuer, audience: audience}
}

// Verify checks signature, expiry, issuer and audience, then extracts the
// identity claims. A token that fails against the cached keys is retried
// once against a freshly fetched set in case the provider rotated keys.
func (v *Verifier) Verify(ctx context.Context, tokenString, jwksURL string) (*models.JWTClaims, error) {
	keys, err := v.keys.Get(ctx, jwksURL)
	if err != nil {
		return nil, err
	}
	token, err := v.parse(tokenString, keys)
	if err != nil {
		fresh, refreshed, rerr := v.keys.Refresh(ctx, jwksURL)
		if rerr != nil || !refreshed {
			return nil, fmt.Errorf("verifying ID token: %w", err)
		}
		if token, err = v.parse(tokenString, fresh); err != nil {
			return nil, fmt.Errorf("verifying ID token: %w", err)
		}
	}

	claims := &models.JWTClaims{
		Sub:   token.Subject(),
		Iss:   token.Issuer(),
		Exp:   token.Expiration().Unix(),
		Iat:   token.IssuedAt().Unix(),
		Email: stringClaim(token, "email"),
		Name:  stringClaim(token, "name"),
	}
	if aud := token.Audience(); len(aud) > 0 {
		claims.Aud = aud[0]
	}
	if claims.Sub == "" {
		return nil, fmt.Errorf("token missing subject claim")
	}
	return claims, nil
}

func (v *Verifier) parse(tokenString string, keys jwk.Set) (jwt.Token, error) {
	opts := []jwt.ParseOption{
		jwt.WithKeySet(keys),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.issuer),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	return jwt.Parse([]byte(tokenString), opts...)
}

func stringClaim(token jwt.Token, name string) string {
	v, ok := token.Get(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
