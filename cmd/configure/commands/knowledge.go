package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/benvon/smart-tutor/internal/nlp"
)

// NewKnowledgeCmd groups knowledge base utilities. None of them need a database.
func NewKnowledgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "knowledge",
		Short: "Inspect knowledge base files",
	}
	cmd.AddCommand(newKnowledgeValidateCmd())
	return cmd
}

func newKnowledgeValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [path]",
		Short: "Parse a knowledge base file and summarise it",
		Long:  "Parse a YAML or JSON knowledge base the way the server does at startup. Without a path the built-in base is shown.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
				// The server falls back to the built-in base for a missing file.
				if _, err := os.Stat(path); err != nil {
					return err
				}
			}
			kb, err := nlp.LoadKnowledgeBase(path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Knowledge base %s: %d subjects, %d topics\n", kb.Source(), len(kb.Subjects()), kb.TopicCount())
			for _, s := range kb.Subjects() {
				fmt.Fprintf(out, "  %s (%d topics)\n", s.Name, len(s.Topics))
			}
			return nil
		},
	}
}
