package cmd

import (
	"github.com/spf13/cobra"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show source and index document counts and the sync cursor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := buildApp(ctx, opts)
			if err != nil {
				return err
			}
			defer app.Close()

			status, err := app.Sync.Status(ctx)
			if err != nil {
				return err
			}
			health := app.Health.Check(ctx)
			return renderStatus(cmd.OutOrStdout(), status, health.Index, health.Source)
		},
	}
}
