package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/benvon/smart-tutor/internal/database"
	"github.com/benvon/smart-tutor/internal/models"
	"github.com/benvon/smart-tutor/internal/services/ai"
	"github.com/benvon/smart-tutor/internal/services/tutor"
)

// NewModelsCmd manages the AI model registry.
func NewModelsCmd(s *settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Manage registered AI models",
	}
	cmd.AddCommand(newModelsListCmd(s), newModelsAddCmd(s), newModelsSeedCmd(s), newModelsActivateCmd(s, true), newModelsActivateCmd(s, false))
	return cmd
}

func newModelsListCmd(s *settings) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return s.withDB(cmd.Context(), func(ctx context.Context, db *database.DB) error {
				list, err := database.NewModelRepository(db).List(ctx, !all)
				if err != nil {
					return fmt.Errorf("list models: %w", err)
				}
				printModels(cmd, list)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include inactive models")
	return cmd
}

func printModels(cmd *cobra.Command, list []*models.AIModel) {
	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "No models registered.")
		return
	}
	fmt.Fprintln(out, "Models:")
	for _, m := range list {
		state := "active"
		if !m.IsActive {
			state = "inactive"
		}
		fmt.Fprintf(out, "  %-20s %-8s %s\n", m.Name, m.ModelType, state)
		if m.APIEndpoint != nil {
			fmt.Fprintf(out, "    Endpoint: %s\n", *m.APIEndpoint)
		}
	}
}

type modelFlags struct {
	name, kind, description, endpoint, params string
	keyRequired                               bool
}

func (f modelFlags) input() (tutor.RegisterModelInput, error) {
	if _, err := ai.ParseKind(f.kind); err != nil {
		return tutor.RegisterModelInput{}, fmt.Errorf("--type: %w", err)
	}
	in := tutor.RegisterModelInput{
		Name:           f.name,
		ModelType:      f.kind,
		APIKeyRequired: f.keyRequired,
	}
	if d := strings.TrimSpace(f.description); d != "" {
		in.Description = &d
	}
	if e := strings.TrimSpace(f.endpoint); e != "" {
		in.APIEndpoint = &e
	}
	if f.params != "" {
		if err := json.Unmarshal([]byte(f.params), &in.DefaultParameters); err != nil {
			return tutor.RegisterModelInput{}, fmt.Errorf("--params must be a JSON object: %w", err)
		}
	}
	return in, nil
}

func newModelsAddCmd(s *settings) *cobra.Command {
	var f modelFlags
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f.name = args[0]
			in, err := f.input()
			if err != nil {
				return err
			}
			return s.withDB(cmd.Context(), func(ctx context.Context, db *database.DB) error {
				svc := tutor.NewService(tutor.Deps{Models: database.NewModelRepository(db)}, tutor.Config{})
				m, err := svc.RegisterModel(ctx, in)
				if err != nil {
					return fmt.Errorf("register model: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered model %s (%s) with id %s\n", m.Name, m.ModelType, m.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.kind, "type", "", "Model kind: "+strings.Join(kindNames(), ", ")+" (required)")
	cmd.Flags().StringVar(&f.description, "description", "", "Description shown to learners")
	cmd.Flags().StringVar(&f.endpoint, "endpoint", "", "API endpoint (required for custom models)")
	cmd.Flags().StringVar(&f.params, "params", "", "Default parameters as a JSON object")
	cmd.Flags().BoolVar(&f.keyRequired, "key-required", true, "Whether callers must supply an API key")
	return cmd
}

func newModelsSeedCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Install the starter model catalog, skipping names already registered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return s.withDB(cmd.Context(), func(ctx context.Context, db *database.DB) error {
				svc := tutor.NewService(tutor.Deps{Models: database.NewModelRepository(db)}, tutor.Config{})
				added, err := svc.SeedModels(ctx, tutor.DefaultCatalog)
				out := cmd.OutOrStdout()
				for _, name := range added {
					fmt.Fprintf(out, "Registered %s\n", name)
				}
				if err != nil {
					return err
				}
				if len(added) == 0 {
					fmt.Fprintln(out, "All catalog models are already registered.")
				}
				return nil
			})
		},
	}
}

func newModelsActivateCmd(s *settings, active bool) *cobra.Command {
	use, short := "disable <name>", "Deactivate a model"
	if active {
		use, short = "enable <name>", "Reactivate a model"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.withDB(cmd.Context(), func(ctx context.Context, db *database.DB) error {
				if err := database.NewModelRepository(db).SetActive(ctx, args[0], active); err != nil {
					return fmt.Errorf("update model: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Model %s active=%v\n", args[0], active)
				return nil
			})
		},
	}
}

func kindNames() []string {
	names := make([]string, 0, len(ai.Kinds))
	for _, k := range ai.Kinds {
		names = append(names, string(k))
	}
	return names
}
