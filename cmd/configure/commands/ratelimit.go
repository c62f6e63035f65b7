package commands

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/benvon/smart-tutor/internal/database"
	"github.com/benvon/smart-tutor/internal/middleware"
	"github.com/benvon/smart-tutor/internal/models"
)

// NewRatelimitCmd creates the ratelimit configuration command with list and set subcommands.
func NewRatelimitCmd(s *settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratelimit",
		Short: "Manage rate limit configuration",
		Long: "List or update per-group rate limits (e.g. 5-S, 100-M). Keys: " +
			strings.Join(database.RatelimitKeys, ", ") + ".",
	}
	cmd.AddCommand(newRatelimitListCmd(s), newRatelimitSetCmd(s))
	return cmd
}

func newRatelimitListCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List current rate limit configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return s.withDB(cmd.Context(), func(ctx context.Context, db *database.DB) error {
				rows, err := database.NewRatelimitConfigRepository(db).List(ctx)
				if err != nil {
					return fmt.Errorf("list ratelimit config: %w", err)
				}
				printRatelimits(cmd, rows)
				return nil
			})
		},
	}
}

func printRatelimits(cmd *cobra.Command, rows []*models.RatelimitConfig) {
	out := cmd.OutOrStdout()
	if len(rows) == 0 {
		fmt.Fprintln(out, "No rate limits in database. The server uses its built-in defaults.")
		return
	}
	fmt.Fprintln(out, "Rate limits:")
	for _, r := range rows {
		fmt.Fprintf(out, "  %-8s %s\n", r.ConfigKey, r.Rate)
	}
}

// parseRatelimit checks key and rate before anything touches the database.
func parseRatelimit(key, rate string) (*models.RatelimitConfig, error) {
	key = strings.TrimSpace(key)
	if !slices.Contains(database.RatelimitKeys, key) {
		return nil, fmt.Errorf("--key must be one of %s", strings.Join(database.RatelimitKeys, ", "))
	}
	rate = strings.TrimSpace(rate)
	if rate == "" {
		return nil, fmt.Errorf("--rate is required (e.g. 5-S, 100-M)")
	}
	if err := middleware.ValidateRate(rate); err != nil {
		return nil, err
	}
	return &models.RatelimitConfig{ConfigKey: key, Rate: rate}, nil
}

func newRatelimitSetCmd(s *settings) *cobra.Command {
	var key, rate string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set a rate limit",
		Long:  "Update one route group's rate (e.g. 5-S, 100-M, 1000-H). The server reloads it within a minute.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := parseRatelimit(key, rate)
			if err != nil {
				return err
			}
			return s.withDB(cmd.Context(), func(ctx context.Context, db *database.DB) error {
				if err := database.NewRatelimitConfigRepository(db).Set(ctx, c); err != nil {
					return fmt.Errorf("set ratelimit config: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rate limit %s set to %s.\n", c.ConfigKey, c.Rate)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&key, "key", database.RatelimitKeyDefault, "Route group")
	cmd.Flags().StringVar(&rate, "rate", "", "Rate in limiter format (required)")
	return cmd
}
