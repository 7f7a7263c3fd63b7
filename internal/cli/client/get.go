package client

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

// GetCmd creates the get command. Without an ID it lists documents.
func GetCmd() *cobra.Command {
	var (
		segments bool
		status   string
		limit    int
		cursor   string
	)

	cmd := &cobra.Command{
		Use:     "get [document_id]",
		Short:   "Show a document, or list documents",
		Aliases: []string{"ls"},
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				q := url.Values{}
				if status != "" {
					q.Set("status", status)
				}
				if cursor != "" {
					q.Set("cursor", cursor)
				}
				if limit > 0 {
					q.Set("limit", fmt.Sprint(limit))
				}
				path := "/documents"
				if len(q) > 0 {
					path += "?" + q.Encode()
				}
				resp, err := api.Get(cmd.Context(), path)
				if err != nil {
					return fmt.Errorf("failed to list documents: %w", err)
				}
				var list DocumentList
				if err := json.Unmarshal(resp.Data, &list); err != nil {
					return fmt.Errorf("failed to parse response: %w", err)
				}
				if outputJSON {
					return writeJSON(out, list)
				}
				if len(list.Items) == 0 {
					fmt.Fprintln(out, "No documents.")
					return nil
				}
				for _, d := range list.Items {
					fmt.Fprintf(out, "%s  %-9s  %s\n", d.ID, d.Status, d.Name)
				}
				if list.HasMore {
					fmt.Fprintf(out, "\nMore results: --cursor %s\n", list.Cursor)
				}
				return nil
			}

			id := url.PathEscape(args[0])
			if segments {
				resp, err := api.Get(cmd.Context(), "/documents/"+id+"/segments")
				if err != nil {
					return fmt.Errorf("failed to get segments: %w", err)
				}
				var segs []Segment
				if err := json.Unmarshal(resp.Data, &segs); err != nil {
					return fmt.Errorf("failed to parse response: %w", err)
				}
				if outputJSON {
					return writeJSON(out, segs)
				}
				for _, s := range segs {
					fmt.Fprintf(out, "[%d] p.%d %s: %s\n", s.SequenceIndex, s.PageNumber, s.Label, truncate(s.Text, 80))
				}
				return nil
			}

			resp, err := api.Get(cmd.Context(), "/documents/"+id)
			if err != nil {
				return fmt.Errorf("failed to get document: %w", err)
			}
			var doc Document
			if err := json.Unmarshal(resp.Data, &doc); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}
			if outputJSON {
				return writeJSON(out, doc)
			}
			fmt.Fprintf(out, "ID:      %s\n", doc.ID)
			fmt.Fprintf(out, "Name:    %s\n", doc.Name)
			fmt.Fprintf(out, "Size:    %d bytes\n", doc.SizeBytes)
			fmt.Fprintf(out, "Status:  %s\n", doc.Status)
			if doc.FailureReason != "" {
				fmt.Fprintf(out, "Reason:  %s\n", doc.FailureReason)
			}
			fmt.Fprintf(out, "Created: %s\n", doc.CreatedAt)
			return nil
		},
	}

	cmd.Flags().BoolVar(&segments, "segments", false, "Show the document's segments")
	cmd.Flags().StringVar(&status, "status", "", "Filter the list by status")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of documents to list")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from a previous listing")

	return cmd
}
