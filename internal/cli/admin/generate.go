package admin

import (
	"github.com/cloo-solutions/studyforge/internal/cli"
	"github.com/cloo-solutions/studyforge/internal/domain"
	"github.com/cloo-solutions/studyforge/internal/service"
	"github.com/spf13/cobra"
)

// GenerateCmd returns the generate command
func GenerateCmd() *cobra.Command {
	var kind cli.KindValue

	cmd := &cobra.Command{
		Use:   "generate <document-id>",
		Short: "Generate a study artifact for a ready document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			input := generateInput(cmd, args[0], kind.Kind())

			a, err := newApp(ctx, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			artifact, err := a.generator.Create(ctx, input)
			if err != nil {
				return err
			}
			return printJSON(cmd, artifact)
		},
	}

	cli.AddKindFlag(cmd, &kind)
	cmd.Flags().IntP("num", "n", 0, "Number of items (0 selects the kind's default)")
	cmd.Flags().String("topic", "", "Restrict context to a topic")
	cmd.Flags().StringP("question", "q", "", "Question for chat_answer")
	cmd.Flags().String("difficulty", "", "Quiz difficulty (easy, medium, hard; default medium)")
	cmd.Flags().Float64("temperature", 0, "Sampling temperature for non-deterministic kinds")

	return cmd
}

func generateInput(cmd *cobra.Command, documentID string, kind domain.ArtifactKind) service.GenerateInput {
	input := service.GenerateInput{DocumentID: documentID, Kind: kind}
	input.NumItems, _ = cmd.Flags().GetInt("num")
	input.TopicFilter, _ = cmd.Flags().GetString("topic")
	input.Question, _ = cmd.Flags().GetString("question")
	input.Difficulty, _ = cmd.Flags().GetString("difficulty")
	if cmd.Flags().Changed("temperature") {
		t, _ := cmd.Flags().GetFloat64("temperature")
		input.Temperature = &t
	}
	return input
}
