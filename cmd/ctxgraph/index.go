package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/ctxgraph/internal/engine"
)

func newIndexCmd(a *app) *cobra.Command {
	var opts struct {
		tests, vendor, docs, skipEmbedding bool
	}

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Index a project incrementally",
		Long: `Parse Go sources and markdown docs under the project root into entities and
relationships. Unchanged files are skipped; removed files are pruned.
The optional path overrides --root.`,
		Args: cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return a.overrideRoot(args[0])
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := a.openEngine()
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			var indexOpts engine.IndexOptions
			if cmd.Flags().Changed("tests") {
				indexOpts.IncludeTests = &opts.tests
			}
			if cmd.Flags().Changed("vendor") {
				indexOpts.IncludeVendor = &opts.vendor
			}
			if cmd.Flags().Changed("docs") {
				indexOpts.IncludeDocs = &opts.docs
			}
			if cmd.Flags().Changed("skip-embedding") {
				indexOpts.SkipEmbedding = &opts.skipEmbedding
			}

			stats, err := eng.Index(cmd.Context(), indexOpts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			heading.Fprintf(out, "Indexed %s\n", eng.Root())
			fmt.Fprintf(out, "  files:         %d indexed, %d skipped, %d failed, %d removed\n",
				stats.FilesIndexed, stats.FilesSkipped, stats.FilesFailed, stats.FilesRemoved)
			fmt.Fprintf(out, "  entities:      %d\n", stats.EntitiesStored)
			fmt.Fprintf(out, "  relationships: %d (%d references resolved, %d unresolved)\n",
				stats.RelationshipsCreated, stats.ReferencesResolved, stats.ReferencesUnresolved)
			fmt.Fprintf(out, "  embeddings:    %d\n", stats.EmbeddingsGenerated)
			fmt.Fprintf(out, "  duration:      %s\n", stats.Duration.Round(time.Millisecond))
			for _, msg := range stats.ErrorMessages {
				warning.Fprintf(out, "  ! %s\n", msg)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.tests, "tests", true, "index *_test.go files")
	cmd.Flags().BoolVar(&opts.vendor, "vendor", false, "index vendor/ directories")
	cmd.Flags().BoolVar(&opts.docs, "docs", true, "index markdown files")
	cmd.Flags().BoolVar(&opts.skipEmbedding, "skip-embedding", false, "do not generate embeddings")
	return cmd
}
