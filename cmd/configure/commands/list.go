package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/benvon/smart-tutor/internal/database"
)

// NewListCmd prints every stored runtime setting in one go.
func NewListCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show all stored configuration",
		Long:  "Show models, rate limits, CORS and OIDC providers stored in the database.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return s.withDB(cmd.Context(), func(ctx context.Context, db *database.DB) error {
				aiModels, err := database.NewModelRepository(db).List(ctx, false)
				if err != nil {
					return fmt.Errorf("list models: %w", err)
				}
				limits, err := database.NewRatelimitConfigRepository(db).List(ctx)
				if err != nil {
					return fmt.Errorf("list ratelimit config: %w", err)
				}
				cors, err := database.NewCorsConfigRepository(db).Get(ctx)
				if err != nil {
					return fmt.Errorf("get cors config: %w", err)
				}
				providers, err := database.NewOIDCConfigRepository(db).GetAll(ctx)
				if err != nil {
					return fmt.Errorf("list OIDC configs: %w", err)
				}

				printModels(cmd, aiModels)
				fmt.Fprintln(cmd.OutOrStdout())
				printRatelimits(cmd, limits)
				fmt.Fprintln(cmd.OutOrStdout())
				printCors(cmd, cors)
				fmt.Fprintln(cmd.OutOrStdout())
				printOIDC(cmd, providers)
				return nil
			})
		},
	}
}
