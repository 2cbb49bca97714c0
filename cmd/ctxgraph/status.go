package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/ctxgraph/internal/engine"
	"github.com/dshills/ctxgraph/internal/storage"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show index statistics for the project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := a.openEngine()
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			out := cmd.OutOrStdout()
			status, err := eng.Status(cmd.Context())
			if errors.Is(err, engine.ErrNotIndexed) {
				warning.Fprintf(out, "%s is not indexed; run ctxgraph index\n", eng.Root())
				return nil
			}
			if err != nil {
				return err
			}

			p := status.Project
			heading.Fprintf(out, "%s\n", p.RootPath)
			fmt.Fprintf(out, "  module:        %s (go %s)\n", p.ModuleName, p.GoVersion)
			fmt.Fprintf(out, "  index version: %s\n", p.IndexVersion)
			fmt.Fprintf(out, "  last indexed:  %s\n", p.LastIndexedAt.Format(time.RFC3339))
			fmt.Fprintf(out, "  files:         %d\n", status.FilesCount)
			fmt.Fprintf(out, "  entities:      %d\n", status.EntitiesCount)
			fmt.Fprintf(out, "  relationships: %d\n", status.RelationshipsCount)
			fmt.Fprintf(out, "  embeddings:    %d (%s)\n", status.EmbeddingsCount, eng.Embedder().Provider())
			fmt.Fprintf(out, "  size:          %.2f MB\n", status.IndexSizeMB)
			fmt.Fprintf(out, "  storage:       %s driver, vector extension %t\n", storage.DriverName, storage.VectorExtensionAvailable)
			return nil
		},
	}
}
