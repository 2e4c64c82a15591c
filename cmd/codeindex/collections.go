package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCollectionsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collections",
		Short: "Manage vector collections",
	}
	cmd.AddCommand(
		newCollectionsListCmd(opts),
		newCollectionsCreateCmd(opts),
		newCollectionsDropCmd(opts),
		newCollectionsExistsCmd(opts),
	)
	return cmd
}

func newCollectionsListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts, false)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			names, err := a.store.ListCollections(ctx)
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				if names == nil {
					names = []string{}
				}
				return printJSON(cmd.OutOrStdout(), names)
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newCollectionsCreateCmd(opts *rootOptions) *cobra.Command {
	var (
		dimension int
		hybrid    bool
	)
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a collection",
		Long: `Create a dense or hybrid collection. Without --dimension the embedding
provider's dimension is used. Creating an existing collection is a no-op.

Examples:
  codeindex collections create code_chunks --dimension 384
  codeindex collections create hybrid_chunks --hybrid`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts, dimension == 0)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			if dimension == 0 {
				dimension = a.embedder.Dimension()
			}
			if hybrid {
				err = a.store.CreateHybridCollection(ctx, args[0], dimension)
			} else {
				err = a.store.CreateCollection(ctx, args[0], dimension)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "collection %s ready (dimension %d, hybrid %t)\n", args[0], dimension, hybrid)
			return nil
		},
	}
	cmd.Flags().IntVar(&dimension, "dimension", 0, "vector dimension (default: embedding provider's)")
	cmd.Flags().BoolVar(&hybrid, "hybrid", false, "create a dense plus sparse collection")
	return cmd
}

func newCollectionsDropCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "drop <name>",
		Short: "Drop a collection and all its documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts, false)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			if err := a.store.DropCollection(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "collection %s dropped\n", args[0])
			return nil
		},
	}
}

func newCollectionsExistsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "exists <name>",
		Short: "Print whether a collection exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts, false)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			exists, err := a.store.HasCollection(ctx, args[0])
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]any{"name": args[0], "exists": exists})
			}
			fmt.Fprintln(cmd.OutOrStdout(), exists)
			return nil
		},
	}
}
