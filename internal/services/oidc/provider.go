// Package oidc implements optional single sign-on against providers
// configured in the oidc_config table.
package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/benvon/smart-tutor/internal/models"
)

// ErrMissingIDToken is returned when the token response has no id_token.
var ErrMissingIDToken = errors.New("token response did not include an id_token")

// Scopes requested from every provider.
var Scopes = []string{"openid", "email", "profile"}

// ConfigStore loads provider configuration
type ConfigStore interface {
	GetByProvider(ctx context.Context, provider string) (*models.OIDCConfig, error)
}

// Endpoints are the provider URLs used for one login flow.
type Endpoints struct {
	Authorization string
	Token         string
	JWKS          string
}

// Provider resolves provider configuration and runs the code flow
type Provider struct {
	repo ConfigStore
	http *http.Client
	keys *KeyCache
}

// NewProvider creates a new SSO provider manager. A nil httpClient uses a
// client with a short timeout.
func NewProvider(repo ConfigStore, httpClient *http.Client) *Provider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Provider{repo: repo, http: httpClient, keys: NewKeyCache(httpClient)}
}

// LoginConfig contains what a frontend needs to start the SSO redirect
type LoginConfig struct {
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	ClientID              string `json:"client_id"`
	RedirectURI           string `json:"redirect_uri"`
	Scope                 string `json:"scope"`
	AuthURL               string `json:"auth_url,omitempty"`
}

// GetLoginConfig returns the login configuration for a provider. When
// state is non-empty the full authorization URL is included.
func (p *Provider) GetLoginConfig(ctx context.Context, providerName, state string) (*LoginConfig, error) {
	cfg, err := p.repo.GetByProvider(ctx, providerName)
	if err != nil {
		return nil, fmt.Errorf("failed to get OIDC config: %w", err)
	}
	ep := p.Endpoints(ctx, cfg)
	lc := &LoginConfig{
		AuthorizationEndpoint: ep.Authorization,
		TokenEndpoint:         ep.Token,
		ClientID:              cfg.ClientID,
		RedirectURI:           cfg.RedirectURI,
		Scope:                 strings.Join(Scopes, " "),
	}
	if state != "" {
		lc.AuthURL = oauthConfig(cfg, ep).AuthCodeURL(state)
	}
	return lc, nil
}

// Authenticate exchanges an authorization code and verifies the returned
// ID token.
func (p *Provider) Authenticate(ctx context.Context, providerName, code string) (*models.JWTClaims, error) {
	cfg, err := p.repo.GetByProvider(ctx, providerName)
	if err != nil {
		return nil, fmt.Errorf("failed to get OIDC config: %w", err)
	}
	ep := p.Endpoints(ctx, cfg)

	token, err := oauthConfig(cfg, ep).Exchange(context.WithValue(ctx, oauth2.HTTPClient, p.http), code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	idToken, _ := token.Extra("id_token").(string)
	if idToken == "" {
		return nil, ErrMissingIDToken
	}

	claims, err := NewVerifier(p.keys, cfg.Issuer, cfg.ClientID).Verify(ctx, idToken, ep.JWKS)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// oauthConfig is the authorization code flow for one provider. Public
// clients have no secret.
func oauthConfig(cfg *models.OIDCConfig, ep Endpoints) *oauth2.Config {
	secret := ""
	if cfg.ClientSecret != nil {
		secret = *cfg.ClientSecret
	}
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: secret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       Scopes,
		Endpoint:     oauth2.Endpoint{AuthURL: ep.Authorization, TokenURL: ep.Token},
	}
}

type discoveryDocument struct {
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	JWKSURI               string `json:"jwks_uri"`
}

// Endpoints resolves provider URLs from the discovery document, falling
// back to conventional paths under the issuer. A Cognito custom domain
// overrides the authorization and token endpoints, and a configured
// JWKS URL overrides discovery.
func (p *Provider) Endpoints(ctx context.Context, cfg *models.OIDCConfig) Endpoints {
	issuer := cfg.IssuerBase()
	ep := Endpoints{
		Authorization: issuer + "/oauth2/authorize",
		Token:         issuer + "/oauth2/token",
		JWKS:          cfg.JWKSEndpoint(),
	}

	if doc, err := p.discover(ctx, cfg.DiscoveryURL()); err == nil {
		if doc.AuthorizationEndpoint != "" {
			ep.Authorization = doc.AuthorizationEndpoint
		}
		if doc.TokenEndpoint != "" {
			ep.Token = doc.TokenEndpoint
		}
		if doc.JWKSURI != "" {
			ep.JWKS = doc.JWKSURI
		}
	}

	if base, ok := cfg.LoginDomain(); ok {
		ep.Authorization = base + "/oauth2/authorize"
		ep.Token = base + "/oauth2/token"
	}
	if cfg.JWKSUrl != nil && *cfg.JWKSUrl != "" {
		ep.JWKS = *cfg.JWKSUrl
	}
	return ep
}

func (p *Provider) discover(ctx context.Context, discoveryURL string) (*discoveryDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, discoveryURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discovery returned status %d", resp.StatusCode)
	}
	doc := &discoveryDocument{}
	if err := json.NewDecoder(resp.Body).Decode(doc); err != nil {
		return nil, err
	}
	return doc, nil
}
