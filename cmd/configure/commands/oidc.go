package commands

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/benvon/smart-tutor/internal/database"
	"github.com/benvon/smart-tutor/internal/models"
)

// NewOIDCCmd manages OIDC providers used for single sign-on.
func NewOIDCCmd(s *settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "oidc",
		Short: "Manage OIDC providers",
		Long:  "Create, list, delete and test OIDC providers. Provider names are free-form identifiers such as 'cognito' or 'okta'.",
	}
	cmd.AddCommand(newOIDCSetCmd(s), newOIDCListCmd(s), newOIDCDeleteCmd(s), newOIDCTestCmd(s))
	return cmd
}

type oidcFlags struct {
	issuer, domain, clientID, clientSecret, redirectURI, jwksURL string
}

// config validates the flags and builds the stored row for provider.
func (f oidcFlags) config(provider string) (*models.OIDCConfig, error) {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		return nil, fmt.Errorf("provider name cannot be empty")
	}
	if f.issuer == "" || f.clientID == "" || f.redirectURI == "" {
		return nil, fmt.Errorf("required flags: --issuer, --client-id, --redirect-uri (--client-secret is optional for public clients)")
	}
	issuer := strings.TrimRight(f.issuer, "/")
	if u, err := url.Parse(issuer); err != nil || u.Scheme != "https" && u.Scheme != "http" || u.Host == "" {
		return nil, fmt.Errorf("--issuer must be an absolute http(s) URL")
	}
	c := &models.OIDCConfig{
		ID:          uuid.New(),
		Provider:    provider,
		Issuer:      issuer,
		ClientID:    f.clientID,
		RedirectURI: f.redirectURI,
		JWKSUrl:     &f.jwksURL,
	}
	jwks := c.JWKSEndpoint()
	c.JWKSUrl = &jwks
	if f.domain != "" {
		c.Domain = &f.domain
	}
	if f.clientSecret != "" {
		c.ClientSecret = &f.clientSecret
	}
	return c, nil
}

func newOIDCSetCmd(s *settings) *cobra.Command {
	var f oidcFlags
	cmd := &cobra.Command{
		Use:   "set <provider-name>",
		Short: "Create or replace an OIDC provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := f.config(args[0])
			if err != nil {
				return err
			}
			return s.withDB(cmd.Context(), func(ctx context.Context, db *database.DB) error {
				if err := database.NewOIDCConfigRepository(db).Upsert(ctx, c); err != nil {
					return fmt.Errorf("failed to save OIDC config: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved OIDC configuration for provider: %s\n", c.Provider)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.issuer, "issuer", "", "OIDC issuer URL (required)")
	cmd.Flags().StringVar(&f.domain, "domain", "", "OAuth2 domain, e.g. a Cognito custom domain")
	cmd.Flags().StringVar(&f.clientID, "client-id", "", "OAuth2 client ID (required)")
	cmd.Flags().StringVar(&f.clientSecret, "client-secret", "", "OAuth2 client secret")
	cmd.Flags().StringVar(&f.redirectURI, "redirect-uri", "", "OAuth2 redirect URI (required)")
	cmd.Flags().StringVar(&f.jwksURL, "jwks-url", "", "JWKS URL (default <issuer>/.well-known/jwks.json)")
	return cmd
}

func newOIDCListCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List OIDC providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return s.withDB(cmd.Context(), func(ctx context.Context, db *database.DB) error {
				configs, err := database.NewOIDCConfigRepository(db).GetAll(ctx)
				if err != nil {
					return fmt.Errorf("failed to list OIDC configs: %w", err)
				}
				printOIDC(cmd, configs)
				return nil
			})
		},
	}
}

func printOIDC(cmd *cobra.Command, configs []*models.OIDCConfig) {
	out := cmd.OutOrStdout()
	if len(configs) == 0 {
		fmt.Fprintln(out, "No OIDC providers configured.")
		return
	}
	fmt.Fprintln(out, "OIDC providers:")
	for _, c := range configs {
		fmt.Fprintf(out, "  %s\n    Issuer: %s\n    Client ID: %s\n    Redirect URI: %s\n", c.Provider, c.Issuer, c.ClientID, c.RedirectURI)
		if c.Domain != nil {
			fmt.Fprintf(out, "    Domain: %s\n", *c.Domain)
		}
		if c.JWKSUrl != nil {
			fmt.Fprintf(out, "    JWKS URL: %s\n", *c.JWKSUrl)
		}
		fmt.Fprintf(out, "    Public client: %v\n", c.ClientSecret == nil)
	}
}

func newOIDCDeleteCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <provider-name>",
		Short: "Delete an OIDC provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.withDB(cmd.Context(), func(ctx context.Context, db *database.DB) error {
				if err := database.NewOIDCConfigRepository(db).Delete(ctx, args[0]); err != nil {
					if database.IsNotFound(err) {
						return fmt.Errorf("provider %q is not configured", args[0])
					}
					return fmt.Errorf("failed to delete OIDC config: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted OIDC provider: %s\n", args[0])
				return nil
			})
		},
	}
}
