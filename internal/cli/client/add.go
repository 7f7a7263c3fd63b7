package client

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// CreateDocumentRequest is the JSON body used when text comes from stdin.
type CreateDocumentRequest struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// AddCmd creates the add command.
func AddCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "add [file]",
		Short: "Upload a plain text document",
		Long: `Upload a plain text or markdown document for segmentation and indexing.

Examples:
  # Upload a file
  study add lecture-notes.md

  # Upload from stdin
  pbpaste | study add --name "week 3"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			var resp *APIResponse
			if len(args) == 1 {
				resp, err = api.UploadDocument(cmd.Context(), args[0], name, nil)
			} else {
				if name == "" {
					return fmt.Errorf("--name is required when reading from stdin")
				}
				var text []byte
				text, err = io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
				resp, err = api.Post(cmd.Context(), "/documents", CreateDocumentRequest{Name: name, Text: string(text)})
			}
			if err != nil {
				return fmt.Errorf("failed to add document: %w", err)
			}

			var doc Document
			if err := json.Unmarshal(resp.Data, &doc); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			out := cmd.OutOrStdout()
			if outputJSON {
				return writeJSON(out, doc)
			}
			fmt.Fprintf(out, "Added %s (%s)\n", doc.Name, doc.ID)
			fmt.Fprintf(out, "Status: %s\n", doc.Status)
			if doc.FailureReason != "" {
				fmt.Fprintf(out, "Reason: %s\n", doc.FailureReason)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Document name (default: file name)")

	return cmd
}
