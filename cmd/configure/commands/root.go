// Package commands implements the smart-tutor-configure CLI.
package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/benvon/smart-tutor/internal/database"
)

// settingsFileName is looked up in the home directory without extension.
const settingsFileName = ".smart-tutor"

// settings resolves CLI options from flags, the environment and an
// optional YAML file, in that order of precedence.
type settings struct {
	v          *viper.Viper
	configFile string
	home       func() (string, error)
}

func newSettings() *settings {
	v := viper.New()
	_ = v.BindEnv("database_url", "DATABASE_URL")
	return &settings{v: v, home: os.UserHomeDir}
}

func (s *settings) read() error {
	if s.configFile != "" {
		s.v.SetConfigFile(s.configFile)
	} else {
		home, err := s.home()
		if err != nil {
			return nil
		}
		s.v.SetConfigName(settingsFileName)
		s.v.SetConfigType("yaml")
		s.v.AddConfigPath(home)
	}
	if err := s.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading settings: %w", err)
	}
	return nil
}

func (s *settings) databaseURL() (string, error) {
	if err := s.read(); err != nil {
		return "", err
	}
	dsn := strings.TrimSpace(s.v.GetString("database_url"))
	if dsn == "" {
		return "", errors.New("database URL is required: use --database-url, DATABASE_URL or database_url in ~/" + settingsFileName + ".yaml")
	}
	return dsn, nil
}

// withDB opens the database for the duration of fn.
func (s *settings) withDB(ctx context.Context, fn func(ctx context.Context, db *database.DB) error) error {
	dsn, err := s.databaseURL()
	if err != nil {
		return err
	}
	db, err := database.New(dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}()
	return fn(ctx, db)
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(newSettings())
}

func newRootCmd(s *settings) *cobra.Command {
	root := &cobra.Command{
		Use:           "smart-tutor-configure",
		Short:         "Configuration tool for the Smart Tutor API",
		Long:          "Manage models, rate limits, CORS, OIDC providers, the knowledge base and schema migrations.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("database-url", "", "Postgres DSN (overrides DATABASE_URL)")
	root.PersistentFlags().StringVar(&s.configFile, "config", "", "Settings file (default ~/"+settingsFileName+".yaml)")
	_ = s.v.BindPFlag("database_url", root.PersistentFlags().Lookup("database-url"))

	root.AddCommand(
		NewListCmd(s),
		NewOIDCCmd(s),
		NewCorsCmd(s),
		NewRatelimitCmd(s),
		NewModelsCmd(s),
		NewKnowledgeCmd(),
		NewMigrateCmd(s),
	)
	return root
}

// NewMigrateCmd applies pending schema migrations.
func NewMigrateCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return s.withDB(cmd.Context(), func(ctx context.Context, db *database.DB) error {
				applied, err := db.Migrate(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(applied) == 0 {
					fmt.Fprintln(out, "Database is up to date.")
					return nil
				}
				for _, name := range applied {
					fmt.Fprintf(out, "Applied %s\n", name)
				}
				return nil
			})
		},
	}
}
