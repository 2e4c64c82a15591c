package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/codeindex/internal/vectorstore"
)

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var (
		collection string
		hybrid     bool
		rerank     string
		filter     string
		topK       int
	)
	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Search a collection with natural language",
		Long: `Embed text and return the closest chunks. With --hybrid the dense results
are fused with a lexical match on text (see --rerank).

Filters use the expression grammar shared by every backend, for example
fileExtension == ".go", relativePath in ["a.go", "b.go"] or startLine >= 100.

Examples:
  codeindex search "parse the config file" --collection code_chunks_1a2b3c4d
  codeindex search "login handler" --collection api --hybrid --rerank lexical_boost
  codeindex search "retry" --collection api --filter 'fileExtension == ".go"'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireCollection(collection); err != nil {
				return err
			}
			strategy, err := vectorstore.ParseRerankStrategy(rerank)
			if err != nil {
				return err
			}
			text := strings.Join(args, " ")

			ctx := cmd.Context()
			a, err := newApp(ctx, opts, true)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			vector, err := a.embedder.EmbedQuery(ctx, text)
			if err != nil {
				return err
			}

			var results []vectorstore.VectorSearchResult
			if hybrid {
				hits, err := a.store.HybridSearch(ctx, collection, []vectorstore.HybridSearchRequest{
					vectorstore.DenseRequest(vector, topK),
					vectorstore.LexicalRequest(text, topK),
				}, vectorstore.HybridSearchOptions{Limit: topK, FilterExpr: filter, Rerank: strategy})
				if err != nil {
					return err
				}
				for _, h := range hits {
					results = append(results, vectorstore.VectorSearchResult{Document: h.Document, Score: h.Score})
				}
			} else {
				results, err = a.store.Search(ctx, collection, vector, vectorstore.SearchOptions{TopK: topK, FilterExpr: filter})
				if err != nil {
					return err
				}
			}

			if opts.jsonOutput {
				if results == nil {
					results = []vectorstore.VectorSearchResult{}
				}
				return printJSON(cmd.OutOrStdout(), results)
			}
			printResults(cmd.OutOrStdout(), results)
			return nil
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "collection to search (required)")
	cmd.Flags().BoolVar(&hybrid, "hybrid", false, "fuse dense results with lexical matching")
	cmd.Flags().StringVar(&rerank, "rerank", string(vectorstore.RerankMajorityOverlap), "hybrid rerank strategy: majority_overlap, lexical_boost or none")
	cmd.Flags().StringVar(&filter, "filter", "", "filter expression")
	cmd.Flags().IntVar(&topK, "top-k", vectorstore.DefaultTopK, "number of results")
	return cmd
}

// printResults writes one header line per hit followed by the first lines of
// the chunk, indented.
func printResults(w io.Writer, results []vectorstore.VectorSearchResult) {
	const previewLines = 3
	for _, r := range results {
		d := r.Document
		fmt.Fprintf(w, "%.4f  %s:%d-%d\n", r.Score, d.RelativePath, d.StartLine, d.EndLine)
		lines := strings.Split(d.Content, "\n")
		if len(lines) > previewLines {
			lines = append(lines[:previewLines], "...")
		}
		for _, line := range lines {
			fmt.Fprintf(w, "    %s\n", line)
		}
	}
}

func newQueryCmd(opts *rootOptions) *cobra.Command {
	var (
		collection string
		filter     string
		fields     []string
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "query",
		Short: "List documents matching a filter",
		Long: `Scroll a collection without a query vector and print the matching rows as
JSON. Every row carries its original document id.

Examples:
  codeindex query --collection api --filter 'relativePath == "main.go"' --fields content,startLine`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireCollection(collection); err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, opts, false)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			rows, err := a.store.Query(ctx, collection, filter, fields, limit)
			if err != nil {
				return err
			}
			if rows == nil {
				rows = []map[string]any{}
			}
			return printJSON(cmd.OutOrStdout(), rows)
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "collection to query (required)")
	cmd.Flags().StringVar(&filter, "filter", "", "filter expression")
	cmd.Flags().StringSliceVar(&fields, "fields", []string{"relativePath", "startLine", "endLine"}, "payload fields to return")
	cmd.Flags().IntVar(&limit, "limit", vectorstore.DefaultQueryLimit, "maximum number of rows")
	return cmd
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	var collection string
	cmd := &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete documents by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireCollection(collection); err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, opts, false)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			if err := a.store.Delete(ctx, collection, args); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d documents from %s\n", len(args), collection)
			return nil
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "collection to delete from (required)")
	return cmd
}
