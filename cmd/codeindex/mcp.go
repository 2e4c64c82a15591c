package main

import (
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/codeindex/internal/indexer"
	"github.com/fyrsmithlabs/codeindex/internal/mcp"
)

func newMCPCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the index and search tools over MCP on stdio",
		Long: `Run a Model Context Protocol server on stdin/stdout so coding agents can
index directories and search them. Tools: index_codebase, search_code,
list_collections and clear_index. Logs go to stderr.

Indexing uses the indexer section of the config file, including ignore files
and secret redaction.

Example client configuration:
  {"command": "codeindex", "args": ["mcp"]}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts, true)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			ix, err := indexer.New(a.store, a.embedder, indexer.OptionsFromConfig(a.cfg.Indexer), a.logger.Named("indexer").Underlying())
			if err != nil {
				return err
			}
			srv, err := mcp.NewServer(&mcp.Config{
				Name:    "codeindex",
				Version: version,
				Logger:  a.logger.Named("mcp").Underlying(),
			}, a.store, a.embedder, ix)
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}
}
