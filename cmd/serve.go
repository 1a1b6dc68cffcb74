package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"post-search/bootstrap"

	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run the background sync jobs",
		Long: `Serve the search API, run the incremental sync loop and the popularity
recompute job, and consume post events from Redis Streams when enabled.
Stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return bootstrap.Run(ctx, opts.bootstrapOptions())
		},
	}
}
