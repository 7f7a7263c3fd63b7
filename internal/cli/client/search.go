package client

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

// SearchCmd creates the search command.
func SearchCmd() *cobra.Command {
	var (
		k        int
		maxChars int
	)

	cmd := &cobra.Command{
		Use:   "search <document_id> <query>",
		Short: "Search one document",
		Long:  "Returns the segments of a document most similar to the query.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			q := url.Values{"q": {args[1]}}
			if k > 0 {
				q.Set("k", fmt.Sprint(k))
			}
			if maxChars > 0 {
				q.Set("max_chars", fmt.Sprint(maxChars))
			}

			resp, err := api.Get(cmd.Context(), "/documents/"+url.PathEscape(args[0])+"/search?"+q.Encode())
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}

			var searchResp SearchResponse
			if err := json.Unmarshal(resp.Data, &searchResp); err != nil {
				return fmt.Errorf("failed to parse search results: %w", err)
			}

			out := cmd.OutOrStdout()
			if outputJSON {
				return writeJSON(out, searchResp)
			}
			if len(searchResp.Results) == 0 {
				fmt.Fprintln(out, "No results found.")
				return nil
			}

			fmt.Fprintf(out, "Found %d segments (%d chars):\n\n", len(searchResp.Results), searchResp.TotalChars)
			for i, hit := range searchResp.Results {
				fmt.Fprintf(out, "%d. [%d] (%.2f) %s\n", i+1, hit.Segment.SequenceIndex, hit.Score, truncate(hit.Segment.Text, 100))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&k, "top", "k", 0, "Number of segments to retrieve")
	cmd.Flags().IntVar(&maxChars, "max-chars", 0, "Context character budget")

	return cmd
}
