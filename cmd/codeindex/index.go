package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/codeindex/internal/indexer"
)

func newIndexCmd(opts *rootOptions) *cobra.Command {
	var (
		collection string
		hybrid     bool
		noProgress bool
		noIgnore   bool
		noRedact   bool
		watch      bool
		debounce   time.Duration
		include    []string
		exclude    []string
	)
	cmd := &cobra.Command{
		Use:   "index <dir>",
		Short: "Chunk, embed and store a source tree",
		Long: `Walk dir, split every text file into overlapping line windows, embed the
windows and upsert them into a collection. Re-indexing overwrites chunks
with the same path and line range. Patterns in .gitignore and
.codeindexignore at the root of dir are excluded unless --no-ignore is set.

Credentials matched by the gitleaks rules are replaced with [REDACTED:rule]
markers before anything is embedded. A .gitleaks.toml allowlist at the root
of dir is honored; --no-redact turns redaction off.

With --watch the command keeps running after the first pass and re-indexes
files as they change, deleting the chunks of removed files, until it is
interrupted.

Without --collection the name is derived from the absolute path of dir.

Examples:
  codeindex index .
  codeindex index ~/src/api --hybrid --collection api
  codeindex index . --include '**/*.go' --exclude '**/*_test.go'
  codeindex index . --watch`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts, true)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			if collection == "" {
				if collection, err = indexer.CollectionName(args[0], hybrid); err != nil {
					return err
				}
			}
			ixOpts := indexer.OptionsFromConfig(a.cfg.Indexer)
			if cmd.Flags().Changed("include") {
				ixOpts.Include = include
			}
			if cmd.Flags().Changed("exclude") {
				ixOpts.Exclude = exclude
			}
			if noRedact {
				ixOpts.RedactSecrets = false
			}
			if noIgnore {
				ixOpts.IgnoreFiles = nil
			}
			if !noProgress {
				ixOpts.Progress = cmd.ErrOrStderr()
			}

			ix, err := indexer.New(a.store, a.embedder, ixOpts, a.logger.Named("indexer").Underlying())
			if err != nil {
				return err
			}
			stats, err := ix.Index(ctx, args[0], collection, hybrid)
			if err != nil {
				return err
			}

			if err := printIndexStats(cmd, opts.jsonOutput, collection, stats); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "watching %s for changes (Ctrl+C to stop)\n", args[0])
			return ix.Watch(ctx, args[0], collection, hybrid, indexer.WatchOptions{
				Debounce: debounce,
				OnSync: func(res indexer.SyncResult) {
					if res.Err != nil || opts.jsonOutput {
						return
					}
					fmt.Fprintf(cmd.OutOrStdout(), "re-indexed %d paths (%d chunks, %d removed)\n",
						len(res.Paths), res.Stats.Chunks, res.Removed)
				},
			})
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "target collection (default derived from dir)")
	cmd.Flags().BoolVar(&hybrid, "hybrid", false, "store sparse vectors for hybrid search")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the progress bar")
	cmd.Flags().BoolVar(&noRedact, "no-redact", false, "index content without secret redaction")
	cmd.Flags().BoolVar(&noIgnore, "no-ignore", false, "do not read indexer.ignore_files from dir")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep re-indexing files as they change")
	cmd.Flags().DurationVar(&debounce, "debounce", indexer.DefaultDebounce, "quiet period before re-indexing in --watch mode")
	cmd.Flags().StringSliceVar(&include, "include", nil, "glob patterns to index (replaces indexer.include)")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "glob patterns to skip (replaces indexer.exclude)")
	return cmd
}

func printIndexStats(cmd *cobra.Command, jsonOutput bool, collection string, stats indexer.Stats) error {
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{"collection": collection, "stats": stats})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "indexed %d files into %s (%d chunks, %d skipped)\n",
		stats.Files, collection, stats.Chunks, stats.Skipped)
	if stats.Redacted > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "redacted %d secrets\n", stats.Redacted)
	}
	return nil
}
