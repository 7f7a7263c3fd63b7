package client

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/cloo-solutions/studyforge/internal/cli"
	"github.com/spf13/cobra"
)

// GenerateRequest is the body of POST /documents/{id}/artifacts.
type GenerateRequest struct {
	Kind        string   `json:"kind"`
	NumItems    int      `json:"num_items,omitempty"`
	TopicFilter string   `json:"topic_filter,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Question    string   `json:"question,omitempty"`
	Difficulty  string   `json:"difficulty,omitempty"`
}

// GenerateCmd creates the generate command.
func GenerateCmd() *cobra.Command {
	var (
		kind        cli.KindValue
		numItems    int
		topic       string
		question    string
		difficulty  string
		temperature float64
	)

	cmd := &cobra.Command{
		Use:   "generate <document_id>",
		Short: "Generate flashcards, a quiz, a plan or a chat answer",
		Long: `Generate a study artifact from a ready document.

Examples:
  study generate 3f1c... --kind flashcards -n 10
  study generate 3f1c... --kind quiz --difficulty hard
  study generate 3f1c... --kind chat_answer -q "What does the TLB cache?"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			req := GenerateRequest{
				Kind:        kind.String(),
				NumItems:    numItems,
				TopicFilter: topic,
				Question:    question,
				Difficulty:  difficulty,
			}
			if cmd.Flags().Changed("temperature") {
				req.Temperature = &temperature
			}

			resp, err := api.Post(cmd.Context(), "/documents/"+url.PathEscape(args[0])+"/artifacts", req)
			if err != nil {
				return fmt.Errorf("generation failed: %w", err)
			}

			var artifact Artifact
			if err := json.Unmarshal(resp.Data, &artifact); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			out := cmd.OutOrStdout()
			if outputJSON {
				return writeJSON(out, artifact)
			}
			printArtifactSummary(cmd, artifact)
			return writeJSON(out, artifact.Payload)
		},
	}

	cli.AddKindFlag(cmd, &kind)
	cmd.Flags().IntVarP(&numItems, "num", "n", 0, "Number of items (0 selects the kind's default)")
	cmd.Flags().StringVar(&topic, "topic", "", "Restrict context to a topic")
	cmd.Flags().StringVarP(&question, "question", "q", "", "Question for chat_answer")
	cmd.Flags().StringVar(&difficulty, "difficulty", "", "Quiz difficulty (easy, medium, hard; default medium)")
	cmd.Flags().Float64Var(&temperature, "temperature", 0, "Sampling temperature for non-deterministic kinds")

	return cmd
}

func printArtifactSummary(cmd *cobra.Command, a Artifact) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s (%d items)\n", a.Kind, a.ID, a.ItemCount)
	fmt.Fprintf(out, "Provider: %s %s, temperature %.1f, retries %d\n",
		a.Metadata.Provider, a.Metadata.Model, a.Metadata.Temperature, a.Metadata.RetryCount)
	if a.Metadata.Difficulty != "" {
		fmt.Fprintf(out, "Quiz difficulty %s\n", a.Metadata.Difficulty)
	}
}
