package commands

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/benvon/smart-tutor/internal/database"
	"github.com/benvon/smart-tutor/internal/models"
)

func newOIDCTestCmd(s *settings) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "test <provider-name>",
		Short: "Check that a provider's discovery and JWKS endpoints respond",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.withDB(cmd.Context(), func(ctx context.Context, db *database.DB) error {
				c, err := database.NewOIDCConfigRepository(db).GetByProvider(ctx, args[0])
				if err != nil {
					return fmt.Errorf("failed to get OIDC config: %w", err)
				}
				return probeOIDC(ctx, &http.Client{Timeout: timeout}, c, cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Per-request timeout")
	return cmd
}

// probeOIDC fetches the discovery document and the JWKS.
func probeOIDC(ctx context.Context, client *http.Client, c *models.OIDCConfig, out io.Writer) error {
	fmt.Fprintf(out, "Testing OIDC configuration for provider: %s\n", c.Provider)
	fmt.Fprintf(out, "Issuer: %s\n", c.Issuer)

	discoveryURL := c.DiscoveryURL()
	fmt.Fprintf(out, "\nTesting discovery endpoint: %s\n", discoveryURL)
	if err := expectOK(ctx, client, discoveryURL); err != nil {
		return fmt.Errorf("discovery endpoint: %w", err)
	}
	fmt.Fprintln(out, "✓ Discovery endpoint is accessible")

	jwksURL := c.JWKSEndpoint()
	fmt.Fprintf(out, "\nTesting JWKS endpoint: %s\n", jwksURL)
	if err := expectOK(ctx, client, jwksURL); err != nil {
		return fmt.Errorf("JWKS endpoint: %w", err)
	}
	fmt.Fprintln(out, "✓ JWKS endpoint is accessible")

	fmt.Fprintln(out, "\n✓ OIDC configuration test passed")
	return nil
}

func expectOK(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("returned status %d", resp.StatusCode)
	}
	return nil
}
