package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/benvon/smart-tutor/internal/database"
	"github.com/benvon/smart-tutor/internal/models"
)

// NewCorsCmd creates the cors configuration command with list and set subcommands.
func NewCorsCmd(s *settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cors",
		Short: "Manage CORS configuration",
		Long:  "List or update CORS allowed origins and options. The server picks changes up without a restart.",
	}
	cmd.AddCommand(newCorsListCmd(s), newCorsSetCmd(s))
	return cmd
}

func newCorsListCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List current CORS configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return s.withDB(cmd.Context(), func(ctx context.Context, db *database.DB) error {
				c, err := database.NewCorsConfigRepository(db).Get(ctx)
				if err != nil {
					return fmt.Errorf("get cors config: %w", err)
				}
				printCors(cmd, c)
				return nil
			})
		},
	}
}

func printCors(cmd *cobra.Command, c *models.CorsConfig) {
	out := cmd.OutOrStdout()
	if c == nil {
		fmt.Fprintln(out, "No CORS configuration in database. Use 'cors set' to add one.")
		return
	}
	fmt.Fprintln(out, "CORS configuration:")
	fmt.Fprintf(out, "  Allowed origins: %s\n", c.AllowedOrigins)
	fmt.Fprintf(out, "  Allow credentials: %v\n", c.AllowCredentials)
	fmt.Fprintf(out, "  Max-Age: %d\n", c.MaxAge)
}

func newCorsSetCmd(s *settings) *cobra.Command {
	var origins string
	var allowCreds bool
	var maxAge int
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set CORS configuration",
		Long:  "Replace the CORS allowed origins (comma-separated http(s) origins or *).",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			origins = strings.TrimSpace(origins)
			if _, err := database.ValidateOrigins(origins); err != nil {
				return fmt.Errorf("--origins: %w", err)
			}
			if maxAge < 0 {
				return fmt.Errorf("--max-age cannot be negative")
			}
			return s.withDB(cmd.Context(), func(ctx context.Context, db *database.DB) error {
				c := &models.CorsConfig{
					AllowedOrigins:   origins,
					AllowCredentials: allowCreds,
					MaxAge:           maxAge,
				}
				if err := database.NewCorsConfigRepository(db).Set(ctx, c); err != nil {
					return fmt.Errorf("set cors config: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "CORS configuration updated.")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&origins, "origins", "", "Comma-separated allowed origins (required)")
	cmd.Flags().BoolVar(&allowCreds, "allow-credentials", true, "Allow credentials")
	cmd.Flags().IntVar(&maxAge, "max-age", 86400, "Access-Control-Max-Age (seconds)")
	return cmd
}
