// Package cmd contains the post-search CLI commands.
package cmd

import (
	"context"

	"post-search/bootstrap"
	"post-search/config"
	"post-search/logger"

	"github.com/spf13/cobra"
)

var version = "dev"

// rootOptions are the flags shared by every command.
type rootOptions struct {
	memory  bool
	seed    string
	verbose bool
}

func (o *rootOptions) bootstrapOptions() bootstrap.Options {
	return bootstrap.Options{Memory: o.memory, SeedFile: o.seed}
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "post-search",
		Short: "Blog post search index synchronizer and query API",
		Long: `post-search keeps a search index in sync with the canonical post store
and serves search, autocomplete and popular-term queries over HTTP.

Example usage:
  post-search serve                          # API, sync loop and event consumer
  post-search serve --memory --seed posts.json
  post-search sync --full                    # Full sync with orphan removal
  post-search sync --incremental --dry-run   # Report what would change
  post-search status                         # Source and index counts`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVar(&opts.memory, "memory", false, "run every store in process, without external services")
	rootCmd.PersistentFlags().StringVar(&opts.seed, "seed", "", "JSON file of posts loaded into the in-memory source (with --memory)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "write service logs to stdout")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newSyncCmd(opts),
		newStatusCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

// buildApp loads the configuration and connects the stores for a one-shot command.
func buildApp(ctx context.Context, opts *rootOptions) (*bootstrap.App, error) {
	if opts.verbose {
		logger.Init()
	}
	cfg, err := config.Load(config.LoadOptions{Memory: opts.memory})
	if err != nil {
		return nil, err
	}
	return bootstrap.Build(ctx, cfg, opts.bootstrapOptions())
}
