package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/ctxgraph/internal/graph"
	"github.com/dshills/ctxgraph/pkg/types"
)

func newGraphCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Query the relationship graph",
	}
	cmd.AddCommand(newNeighborsCmd(a), newPathsCmd(a), newGraphStatsCmd(a))
	return cmd
}

func newNeighborsCmd(a *app) *cobra.Command {
	var (
		depth     int
		direction string
		relTypes  []string
		minWeight float64
		limit     int
		jsonOut   bool
	)

	cmd := &cobra.Command{
		Use:   "neighbors <entity>",
		Short: "List entities within a few hops of an entity",
		Long:  "The entity may be an id, a qualified name or a plain name.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := types.Direction(strings.ToLower(direction))
			switch dir {
			case types.DirectionOut, types.DirectionIn, types.DirectionBoth:
			default:
				return fmt.Errorf("unknown direction %q: want out, in or both", direction)
			}

			eng, err := a.openEngine()
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			result, err := eng.Neighborhood(cmd.Context(), args[0], graph.NeighborhoodOptions{
				MaxDepth:          depth,
				Direction:         dir,
				RelationshipTypes: relTypes,
				MinWeight:         minWeight,
				Limit:             limit,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, result)
			}

			heading.Fprintf(out, "%s", result.Center.ID)
			fmt.Fprintf(out, " [%s]\n", result.Center.Type)
			for _, e := range result.Entities {
				fmt.Fprintf(out, "  %d  ", result.Neighborhood.Depths[e.ID])
				name.Fprintf(out, "%s", e.ID)
				fmt.Fprintf(out, " [%s]\n", e.Type)
			}
			if len(result.Entities) == 0 {
				fmt.Fprintln(out, "  (no neighbors)")
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&depth, "depth", "d", 1, "maximum hops")
	cmd.Flags().StringVar(&direction, "direction", "both", "edge direction: out, in, both")
	cmd.Flags().StringSliceVar(&relTypes, "rel", nil, "only follow these relationship types")
	cmd.Flags().Float64Var(&minWeight, "min-weight", 0, "ignore edges lighter than this")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum entities (0 for all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON")
	return cmd
}

func newPathsCmd(a *app) *cobra.Command {
	var (
		maxDepth int
		limit    int
		relTypes []string
		jsonOut  bool
	)

	cmd := &cobra.Command{
		Use:   "paths <from> <to>",
		Short: "Find directed paths between two entities",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.openEngine()
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			paths, err := eng.Paths(cmd.Context(), args[0], args[1], graph.PathOptions{
				MaxDepth:          maxDepth,
				Limit:             limit,
				RelationshipTypes: relTypes,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, paths)
			}
			if len(paths) == 0 {
				fmt.Fprintln(out, "No path found.")
				return nil
			}
			for i, p := range paths {
				dim.Fprintf(out, "%d. length %d, weight %.2f\n", i+1, p.Length, p.TotalWeight)
				fmt.Fprintf(out, "   %s\n", formatPath(p))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&maxDepth, "depth", "d", graph.DefaultPathDepth, "maximum hops")
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "maximum paths")
	cmd.Flags().StringSliceVar(&relTypes, "rel", nil, "only follow these relationship types")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON")
	return cmd
}

// formatPath renders a path as a -[TYPE]-> b -[TYPE]-> c
func formatPath(p *types.Path) string {
	var b strings.Builder
	for i, id := range p.EntityIDs {
		if i > 0 {
			fmt.Fprintf(&b, " -[%s]-> ", p.Relationships[i-1].Type)
		}
		b.WriteString(id)
	}
	return b.String()
}

func newGraphStatsCmd(a *app) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the relationship graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := a.openEngine()
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			stats, err := eng.GraphStats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, stats)
			}

			fmt.Fprintf(out, "entities:             %d\n", stats.EntityCount)
			fmt.Fprintf(out, "relationships:        %d\n", stats.RelationshipCount)
			fmt.Fprintf(out, "average degree:       %.2f\n", stats.AverageDegree)
			fmt.Fprintf(out, "connected components: %d\n", stats.ConnectedComponents)

			relTypes := make([]string, 0, len(stats.RelationshipTypes))
			for t := range stats.RelationshipTypes {
				relTypes = append(relTypes, t)
			}
			sort.Strings(relTypes)
			for _, t := range relTypes {
				fmt.Fprintf(out, "  %-12s %d\n", t, stats.RelationshipTypes[t])
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON")
	return cmd
}
