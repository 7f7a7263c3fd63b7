package client

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

// ArtifactsCmd creates the artifacts command group.
func ArtifactsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artifacts",
		Short: "List, show and answer generated artifacts",
		Long: `List, show and answer generated artifacts.

Examples:
  study artifacts list 3f1c... --kind quiz
  study artifacts answer 9a2e... --question 0 --selected 2
  study artifacts upcoming 7b4d... --days 14`,
	}
	cmd.AddCommand(artifactsListCmd())
	cmd.AddCommand(artifactsGetCmd())
	cmd.AddCommand(artifactsAnswerCmd())
	cmd.AddCommand(artifactsUpcomingCmd())
	return cmd
}

func artifactsListCmd() *cobra.Command {
	var (
		kind   string
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "list <document_id>",
		Short: "List a document's artifacts, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			q := url.Values{}
			if kind != "" {
				q.Set("kind", kind)
			}
			if limit > 0 {
				q.Set("limit", fmt.Sprint(limit))
			}
			if cursor != "" {
				q.Set("cursor", cursor)
			}
			path := "/documents/" + url.PathEscape(args[0]) + "/artifacts"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}

			resp, err := api.Get(cmd.Context(), path)
			if err != nil {
				return fmt.Errorf("failed to list artifacts: %w", err)
			}
			var list ArtifactList
			if err := json.Unmarshal(resp.Data, &list); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			out := cmd.OutOrStdout()
			if outputJSON {
				return writeJSON(out, list)
			}
			if len(list.Items) == 0 {
				fmt.Fprintln(out, "No artifacts.")
				return nil
			}
			for _, a := range list.Items {
				fmt.Fprintf(out, "%s  %-11s  %3d items  %s  %s\n", a.ID, a.Kind, a.ItemCount, a.Metadata.Provider, a.CreatedAt)
			}
			if list.HasMore {
				fmt.Fprintf(out, "\nMore results: --cursor %s\n", list.Cursor)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Filter by artifact kind")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of artifacts")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from a previous listing")

	return cmd
}

func artifactsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <artifact_id>",
		Short: "Show one artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Get(cmd.Context(), "/artifacts/"+url.PathEscape(args[0]))
			if err != nil {
				return fmt.Errorf("failed to get artifact: %w", err)
			}
			var artifact Artifact
			if err := json.Unmarshal(resp.Data, &artifact); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			if outputJSON {
				return writeJSON(cmd.OutOrStdout(), artifact)
			}
			printArtifactSummary(cmd, artifact)
			return writeJSON(cmd.OutOrStdout(), artifact.Payload)
		},
	}
}

func artifactsAnswerCmd() *cobra.Command {
	var (
		question int
		selected int
	)

	cmd := &cobra.Command{
		Use:   "answer <quiz_id>",
		Short: "Check an answer to a quiz question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Post(cmd.Context(), "/artifacts/"+url.PathEscape(args[0])+"/answers", map[string]int{
				"question_index": question,
				"selected":       selected,
			})
			if err != nil {
				return fmt.Errorf("failed to check answer: %w", err)
			}
			var result struct {
				Correct bool `json:"correct"`
			}
			if err := json.Unmarshal(resp.Data, &result); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			out := cmd.OutOrStdout()
			if outputJSON {
				return writeJSON(out, result)
			}
			if result.Correct {
				fmt.Fprintln(out, "Correct.")
			} else {
				fmt.Fprintln(out, "Incorrect.")
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&question, "question", 0, "Zero-based question index")
	cmd.Flags().IntVar(&selected, "selected", 0, "Zero-based option index")
	_ = cmd.MarkFlagRequired("selected")

	return cmd
}

func artifactsUpcomingCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "upcoming <plan_id>",
		Short: "Show revisions of a plan due in the next days",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			path := "/artifacts/" + url.PathEscape(args[0]) + "/upcoming"
			if days > 0 {
				path += "?days=" + fmt.Sprint(days)
			}
			resp, err := api.Get(cmd.Context(), path)
			if err != nil {
				return fmt.Errorf("failed to get upcoming revisions: %w", err)
			}
			var upcoming UpcomingRevisions
			if err := json.Unmarshal(resp.Data, &upcoming); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			out := cmd.OutOrStdout()
			if outputJSON {
				return writeJSON(out, upcoming)
			}
			if len(upcoming.Items) == 0 {
				fmt.Fprintf(out, "No revisions due between %s and %s.\n", upcoming.From, upcoming.To)
				return nil
			}
			for _, t := range upcoming.Items {
				label := "revision"
				if t.First {
					label = "first"
				}
				fmt.Fprintf(out, "%s  %-8s  %-6s  %s\n", t.Date, label, t.Difficulty, t.Topic)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&days, "days", "d", 0, "Days to look ahead (default 7)")

	return cmd
}
