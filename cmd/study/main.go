package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/studyforge/internal/cli"
	"github.com/cloo-solutions/studyforge/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "study",
		Short: "Study CLI - turn documents into flashcards, quizzes and plans",
		Long: `study talks to a studyd server to upload documents, search them and
generate study artifacts.

Environment variables:
  STUDYFORGE_API_URL   API base URL (default: http://localhost:8080)`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.AddCmd())
	rootCmd.AddCommand(client.GetCmd())
	rootCmd.AddCommand(client.SearchCmd())
	rootCmd.AddCommand(client.GenerateCmd())
	rootCmd.AddCommand(client.ArtifactsCmd())
	rootCmd.AddCommand(client.ConfigCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
