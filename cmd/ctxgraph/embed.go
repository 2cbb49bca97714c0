package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/ctxgraph/internal/embedder"
	"github.com/dshills/ctxgraph/internal/storage"
)

func newEmbedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "embed <text> [text...]",
		Short: "Embed texts with the configured provider and print pairwise similarity",
		Long: `embed checks the embedding configuration: it embeds each argument with the
configured provider and prints the cosine similarity of every pair.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			emb, err := embedder.New(a.cfg.Embedding)
			if err != nil {
				return err
			}
			defer func() { _ = emb.Close() }()

			resp, err := emb.GenerateBatch(cmd.Context(), embedder.BatchEmbeddingRequest{Texts: args})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			heading.Fprintf(out, "%s/%s", emb.Provider(), emb.Model())
			fmt.Fprintf(out, " dimension %d\n", emb.Dimension())
			for i, e := range resp.Embeddings {
				name.Fprintf(out, "[%d]", i)
				fmt.Fprintf(out, " %s ", firstLine(args[i]))
				dim.Fprintf(out, "(%d values)\n", len(e.Vector))
			}
			for i := 0; i < len(resp.Embeddings); i++ {
				for j := i + 1; j < len(resp.Embeddings); j++ {
					sim := storage.CosineSimilarity(resp.Embeddings[i].Vector, resp.Embeddings[j].Vector)
					fmt.Fprintf(out, "  [%d] ~ [%d]  %.4f\n", i, j, sim)
				}
			}
			return nil
		},
	}
}
