package admin

import (
	"fmt"

	"github.com/spf13/cobra"
)

// IndexCmd returns the index command group
func IndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the vector index",
	}
	cmd.AddCommand(indexPersistCmd())
	cmd.AddCommand(indexProcessCmd())
	return cmd
}

func indexPersistCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "persist",
		Short: "Rebuild the index from the database and write a fresh snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.index.Persist(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "snapshot written: %d records, %d dimensions\n", a.index.Len(), a.index.Dimensions())
			return nil
		},
	}
}

func indexProcessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process",
		Short: "Process pending index jobs once and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			return a.indexWorker.ProcessJobs(ctx)
		},
	}
}
