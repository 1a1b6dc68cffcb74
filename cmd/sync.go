package cmd

import (
	"fmt"

	"post-search/domain"

	"github.com/spf13/cobra"
)

func newSyncCmd(opts *rootOptions) *cobra.Command {
	var full, incremental, dryRun bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one synchronization and print its report",
		Long: `Run one synchronization from the source store to the search index.

Examples:
  post-search sync --incremental           # From the stored cursor (default)
  post-search sync --full                  # Compare checksums, remove orphans
  post-search sync --full --dry-run        # Count changes without writing`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := buildApp(ctx, opts)
			if err != nil {
				return err
			}
			defer app.Close()

			syncer := app.Sync
			if dryRun {
				syncer = app.DryRunSync
			}

			var report *domain.SyncReport
			var runErr error
			if full {
				report, runErr = syncer.SyncFull(ctx)
			} else {
				report, runErr = syncer.SyncIncrementalFromStore(ctx)
			}
			if report == nil {
				return runErr
			}

			if err := renderReport(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if runErr != nil {
				return fmt.Errorf("sync %s: %w", report.Status, runErr)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "compare every source record with the index and delete orphans")
	cmd.Flags().BoolVar(&incremental, "incremental", false, "sync changes after the stored cursor (default)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "map and count without writing to the index or the cursor store")
	cmd.MarkFlagsMutuallyExclusive("full", "incremental")
	return cmd
}
