package admin

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cloo-solutions/studyforge/internal/domain"
	"github.com/cloo-solutions/studyforge/internal/service"
	"github.com/spf13/cobra"
)

// IngestCmd returns the ingest command
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Ingest a plain text document",
		Long: `Segment a plain text file and queue it for indexing.

With --index the pending index jobs are processed before the command exits,
so the document is ready for search and generation without a running server.`,
		Args: cobra.ExactArgs(1),
		RunE: runIngest,
	}

	cmd.Flags().String("name", "", "Document name (default: file name)")
	cmd.Flags().Bool("index", false, "Process pending index jobs before exiting")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := args[0]

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	name, _ := cmd.Flags().GetString("name")
	if name == "" {
		name = filepath.Base(path)
	}

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	a, err := newApp(ctx, appOptions{migrate: !noMigrate})
	if err != nil {
		return err
	}
	defer a.Close()

	doc, err := a.documentSvc.Ingest(ctx, service.IngestInput{Name: name, Text: string(data)})
	if err != nil {
		return err
	}

	if index, _ := cmd.Flags().GetBool("index"); index && doc.Status == domain.DocumentStatusSegmented {
		if err := a.indexWorker.ProcessJobs(ctx); err != nil {
			return err
		}
		doc, err = a.documentSvc.Get(ctx, doc.ID)
		if err != nil {
			return err
		}
	}

	return printJSON(cmd, doc)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
