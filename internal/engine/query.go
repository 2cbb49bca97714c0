package engine

import (
	"context"

	"github.com/dshills/ctxgraph/internal/assembler"
	"github.com/dshills/ctxgraph/internal/graph"
	"github.com/dshills/ctxgraph/internal/searcher"
	"github.com/dshills/ctxgraph/pkg/types"
)

// Search runs a multi-strategy search. Zero fields of req take the
// configured defaults.
func (e *Engine) Search(ctx context.Context, req searcher.SearchRequest) (*searcher.SearchResponse, error) {
	s := e.cfg.Search
	if req.Limit == 0 {
		req.Limit = s.Limit
	}
	if len(req.Strategies) == 0 {
		req.Strategies = e.cfg.SearchStrategies()
	}
	if req.Weights == nil {
		req.Weights = e.cfg.StrategyWeights()
	}
	if req.GraphDepth == 0 {
		req.GraphDepth = s.GraphDepth
	}
	return e.searcher.Search(ctx, req)
}

// ContextResult is an assembled context with the search that fed it
type ContextResult struct {
	Context *types.AssembledContext
	Search  *searcher.SearchResponse
}

// AssembleOptions returns the configured assembly defaults
func (e *Engine) AssembleOptions() assembler.Options {
	c := e.cfg.Context
	return assembler.Options{
		MaxTokens:       c.MaxTokens,
		Format:          assembler.ParseFormat(c.Format),
		GroupByCategory: c.GroupByCategory,
		IncludeSources:  c.IncludeSources,
	}
}

// Context searches and assembles the results into a token-budgeted context
func (e *Engine) Context(ctx context.Context, req searcher.SearchRequest, opts assembler.Options) (*ContextResult, error) {
	resp, err := e.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	return &ContextResult{
		Context: e.assembler.Assemble(ctx, resp.Results, opts),
		Search:  resp,
	}, nil
}

// NeighborhoodResult is a neighborhood with its hydrated entities
type NeighborhoodResult struct {
	Center       *types.Entity
	Neighborhood *types.Neighborhood
	Entities     []*types.Entity
}

// Neighborhood resolves ref and expands its neighborhood
func (e *Engine) Neighborhood(ctx context.Context, ref string, opts graph.NeighborhoodOptions) (*NeighborhoodResult, error) {
	center, err := e.Entity(ctx, ref)
	if err != nil {
		return nil, err
	}
	n, err := e.graph.GetNeighborhood(ctx, center.ID, opts)
	if err != nil {
		return nil, err
	}
	entities, err := e.Entities(ctx, n.EntityIDs)
	if err != nil {
		return nil, err
	}
	return &NeighborhoodResult{Center: center, Neighborhood: n, Entities: entities}, nil
}

// Paths resolves both references and finds the paths between them
func (e *Engine) Paths(ctx context.Context, from, to string, opts graph.PathOptions) ([]*types.Path, error) {
	src, err := e.Entity(ctx, from)
	if err != nil {
		return nil, err
	}
	dst, err := e.Entity(ctx, to)
	if err != nil {
		return nil, err
	}
	return e.graph.FindPaths(ctx, src.ID, dst.ID, opts)
}

// GraphStats summarizes the relationship graph
func (e *Engine) GraphStats(ctx context.Context) (*types.GraphStats, error) {
	return e.graph.GetGraphStats(ctx)
}
