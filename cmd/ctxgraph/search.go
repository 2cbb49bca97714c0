package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/ctxgraph/internal/assembler"
	"github.com/dshills/ctxgraph/internal/searcher"
	"github.com/dshills/ctxgraph/pkg/types"
)

// searchFlags are shared by search and context
type searchFlags struct {
	limit       int
	strategies  []string
	entityTypes []string
	minScore    float64
	graphDepth  int
	noRerank    bool
	noCache     bool
	jsonOut     bool
}

func (f *searchFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.limit, "limit", "n", 0, "maximum results (default from config)")
	cmd.Flags().StringSliceVarP(&f.strategies, "strategy", "s", nil, "strategies: keyword, semantic, graph, structural, hybrid")
	cmd.Flags().StringSliceVarP(&f.entityTypes, "type", "t", nil, "only return these entity types")
	cmd.Flags().Float64Var(&f.minScore, "min-score", 0, "drop fused scores below this value")
	cmd.Flags().IntVar(&f.graphDepth, "graph-depth", 0, "hops expanded around mentioned entities")
	cmd.Flags().BoolVar(&f.noRerank, "no-rerank", false, "skip the configured reranker")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "bypass the response cache")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "print JSON")
}

func (f *searchFlags) request(query string) (searcher.SearchRequest, error) {
	req := searcher.SearchRequest{
		Query:      query,
		Limit:      f.limit,
		MinScore:   f.minScore,
		GraphDepth: f.graphDepth,
		UseCache:   !f.noCache,
		SkipRerank: f.noRerank,
	}
	if req.Limit < 0 || req.Limit > searcher.MaxLimit {
		return req, fmt.Errorf("--limit must be between 1 and %d", searcher.MaxLimit)
	}
	for _, s := range f.strategies {
		st := types.Strategy(strings.ToLower(s))
		if !st.Valid() {
			return req, fmt.Errorf("unknown strategy %q", s)
		}
		req.Strategies = append(req.Strategies, st)
	}
	for _, t := range f.entityTypes {
		req.EntityTypes = append(req.EntityTypes, types.ParseEntityType(t))
	}
	return req, nil
}

func newSearchCmd(a *app) *cobra.Command {
	var flags searchFlags

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(strings.Join(args, " "))
			if err != nil {
				return err
			}

			eng, err := a.openEngine()
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			resp, err := eng.Search(cmd.Context(), req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if flags.jsonOut {
				return writeJSON(out, resp)
			}

			dim.Fprintf(out, "intent=%s keywords=%s (%s)\n",
				resp.Parsed.Intent, strings.Join(resp.Parsed.Keywords, ","), resp.Duration.Round(time.Microsecond))
			for _, report := range resp.Strategies {
				if report.Error != "" {
					warning.Fprintf(out, "strategy %s failed: %s\n", report.Strategy, report.Error)
				}
			}
			if len(resp.Results) == 0 {
				fmt.Fprintln(out, "No results.")
				return nil
			}
			for i, r := range resp.Results {
				e := r.Entity
				fmt.Fprintf(out, "%2d. ", i+1)
				name.Fprintf(out, "%s", e.Name)
				fmt.Fprintf(out, " [%s] %.4f", e.Type, r.Score)
				if e.FilePath != "" {
					dim.Fprintf(out, "  %s:%d", e.FilePath, e.StartLine)
				}
				fmt.Fprintln(out)
				if e.Summary != "" {
					fmt.Fprintf(out, "    %s\n", firstLine(e.Summary))
				}
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newContextCmd(a *app) *cobra.Command {
	var (
		flags     searchFlags
		maxTokens int
		format    string
		group     bool
		noSources bool
	)

	cmd := &cobra.Command{
		Use:   "context <query>",
		Short: "Assemble token-budgeted context for a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(strings.Join(args, " "))
			if err != nil {
				return err
			}

			eng, err := a.openEngine()
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			opts := eng.AssembleOptions()
			if maxTokens > 0 {
				opts.MaxTokens = maxTokens
			}
			if format != "" {
				opts.Format = assembler.ParseFormat(format)
				if string(opts.Format) != strings.ToLower(format) {
					return fmt.Errorf("unknown format %q", format)
				}
			}
			if cmd.Flags().Changed("group") {
				opts.GroupByCategory = group
			}
			if noSources {
				opts.IncludeSources = false
			}

			result, err := eng.Context(cmd.Context(), req, opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if flags.jsonOut {
				return writeJSON(out, result.Context)
			}
			fmt.Fprint(out, result.Context.Text)
			dim.Fprintf(cmd.ErrOrStderr(), "%d tokens, %d sources, truncated=%t\n",
				result.Context.TokenCount, len(result.Context.Sources), result.Context.Truncated)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "token budget (default from config)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "output format: structured, xml, plain")
	cmd.Flags().BoolVar(&group, "group", false, "group entities by category")
	cmd.Flags().BoolVar(&noSources, "no-sources", false, "omit the sources list")
	return cmd
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
