package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
	jsonOutput bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "codeindex",
		Short: "Index source code into a vector database and search it",
		Long: `codeindex chunks source files, embeds them and stores the chunks in Qdrant
(REST or gRPC) or an embedded chromem database. Collections can be searched
densely or with hybrid dense plus lexical matching, from the command line,
over HTTP or through MCP tools.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, gitCommit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file path (default ~/.config/codeindex/config.yaml)")
	flags.StringVar(&opts.logLevel, "log-level", "", "override logging.level (trace, debug, info, warn, error)")
	flags.BoolVar(&opts.jsonOutput, "json", false, "print results as JSON")

	cmd.AddCommand(
		newCollectionsCmd(opts),
		newIndexCmd(opts),
		newSearchCmd(opts),
		newQueryCmd(opts),
		newDeleteCmd(opts),
		newServeCmd(opts),
		newMCPCmd(opts),
	)
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
