package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/ctxgraph/internal/assembler"
	"github.com/dshills/ctxgraph/internal/engine"
	"github.com/dshills/ctxgraph/internal/graph"
	"github.com/dshills/ctxgraph/internal/searcher"
	"github.com/dshills/ctxgraph/pkg/types"
)

const (
	maxGraphDepth       = 5
	maxPathDepth        = 10
	defaultPathLimit    = 5
	maxPathLimit        = 50
	defaultNeighborhood = 50
	maxReportedErrors   = 5
)

// handleIndexCodebase handles the index_codebase tool invocation
func (s *Server) handleIndexCodebase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	if _, err := s.engine.ResolveRoot(getStringDefault(args, "path", "")); err != nil {
		return nil, toMCPError("invalid path", err)
	}

	stats, err := s.engine.Index(ctx, engine.IndexOptions{
		IncludeTests:  getBoolPtr(args, "include_tests"),
		IncludeVendor: getBoolPtr(args, "include_vendor"),
		IncludeDocs:   getBoolPtr(args, "include_docs"),
		SkipEmbedding: getBoolPtr(args, "skip_embedding"),
	})
	if err != nil {
		return nil, toMCPError("indexing failed", err)
	}

	response := map[string]interface{}{
		"indexed":               true,
		"path":                  s.engine.Root(),
		"files_indexed":         stats.FilesIndexed,
		"files_skipped":         stats.FilesSkipped,
		"files_failed":          stats.FilesFailed,
		"files_removed":         stats.FilesRemoved,
		"entities_stored":       stats.EntitiesStored,
		"relationships_created": stats.RelationshipsCreated,
		"references_resolved":   stats.ReferencesResolved,
		"references_unresolved": stats.ReferencesUnresolved,
		"embeddings_generated":  stats.EmbeddingsGenerated,
		"duration_ms":           stats.Duration.Milliseconds(),
	}

	if errorCount := len(stats.ErrorMessages); errorCount > 0 {
		if errorCount > maxReportedErrors {
			response["errors"] = stats.ErrorMessages[:maxReportedErrors]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// searchRequest validates the arguments shared by search and assemble_context
func searchRequest(args map[string]interface{}) (searcher.SearchRequest, error) {
	query, ok := args["query"].(string)
	if !ok || query == "" {
		return searcher.SearchRequest{}, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	req := searcher.SearchRequest{
		Query:      query,
		UseCache:   true,
		SkipRerank: !getBoolDefault(args, "rerank", true),
	}

	var err error
	if _, set := args["limit"]; set {
		if req.Limit, err = intInRange(args, "limit", searcher.DefaultLimit, 1, searcher.MaxLimit); err != nil {
			return req, err
		}
	}
	if _, set := args["graph_depth"]; set {
		if req.GraphDepth, err = intInRange(args, "graph_depth", searcher.DefaultGraphDepth, 1, maxGraphDepth); err != nil {
			return req, err
		}
	}

	req.MinScore = getFloatDefault(args, "min_score", 0)
	if req.MinScore < 0 {
		return req, invalidParam("min_score", "must not be negative")
	}

	strategies, err := getStringSlice(args, "strategies")
	if err != nil {
		return req, err
	}
	for _, name := range strategies {
		st := types.Strategy(name)
		if !st.Valid() {
			return req, newMCPError(ErrorCodeInvalidParams, "invalid strategy", map[string]interface{}{
				"param":   "strategies",
				"value":   name,
				"allowed": strategyEnum,
			})
		}
		req.Strategies = append(req.Strategies, st)
	}

	entityTypes, err := getStringSlice(args, "entity_types")
	if err != nil {
		return req, err
	}
	for _, name := range entityTypes {
		req.EntityTypes = append(req.EntityTypes, types.ParseEntityType(name))
	}

	weights, err := getFloatMap(args, "weights")
	if err != nil {
		return req, err
	}
	if len(weights) > 0 {
		req.Weights = make(map[types.Strategy]float64, len(weights))
		for name, w := range weights {
			st := types.Strategy(name)
			if !st.Valid() || st == types.StrategyHybrid {
				return req, invalidParam("weights", fmt.Sprintf("unknown strategy %q", name))
			}
			if w < 0 {
				return req, invalidParam("weights", fmt.Sprintf("weight of %q must not be negative", name))
			}
			req.Weights[st] = w
		}
	}
	return req, nil
}

// handleSearch handles the search tool invocation
func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	req, err := searchRequest(args)
	if err != nil {
		return nil, err
	}

	resp, err := s.engine.Search(ctx, req)
	if err != nil {
		return nil, toMCPError("search failed", err)
	}

	results := make([]map[string]interface{}, 0, len(resp.Results))
	for i, r := range resp.Results {
		item := map[string]interface{}{
			"rank":   i + 1,
			"score":  r.Score,
			"source": r.Source,
			"entity": entityJSON(r.Entity, true),
		}
		if r.Match != nil && r.Match.Snippet != "" {
			item["snippet"] = r.Match.Snippet
		}
		results = append(results, item)
	}

	response := map[string]interface{}{
		"query":         req.Query,
		"results":       results,
		"total_results": resp.TotalResults,
		"intent":        resp.Parsed.Intent,
		"keywords":      resp.Parsed.Keywords,
		"strategies":    strategyReports(resp.Strategies),
		"weights":       resp.Weights,
		"cache_hit":     resp.CacheHit,
		"reranked":      resp.Reranked,
		"duration_ms":   resp.Duration.Milliseconds(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleAssembleContext handles the assemble_context tool invocation
func (s *Server) handleAssembleContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	req, err := searchRequest(args)
	if err != nil {
		return nil, err
	}

	opts := s.engine.AssembleOptions()
	if _, set := args["max_tokens"]; set {
		if opts.MaxTokens, err = intInRange(args, "max_tokens", opts.MaxTokens, 1, 1<<20); err != nil {
			return nil, err
		}
	}
	if format, ok := args["format"].(string); ok {
		switch assembler.Format(format) {
		case assembler.FormatStructured, assembler.FormatXML, assembler.FormatPlain:
			opts.Format = assembler.Format(format)
		default:
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid format", map[string]interface{}{
				"param":   "format",
				"value":   format,
				"allowed": formatEnum,
			})
		}
	}
	opts.GroupByCategory = getBoolDefault(args, "group_by_category", opts.GroupByCategory)
	opts.IncludeSources = getBoolDefault(args, "include_sources", opts.IncludeSources)

	result, err := s.engine.Context(ctx, req, opts)
	if err != nil {
		return nil, toMCPError("context assembly failed", err)
	}

	sources := make([]map[string]interface{}, 0, len(result.Context.Sources))
	for _, src := range result.Context.Sources {
		sources = append(sources, map[string]interface{}{
			"id":    src.EntityID,
			"name":  src.Name,
			"type":  src.Type,
			"file":  src.FilePath,
			"line":  src.Line,
			"score": src.Score,
		})
	}

	response := map[string]interface{}{
		"query":       req.Query,
		"context":     result.Context.Text,
		"token_count": result.Context.TokenCount,
		"max_tokens":  opts.MaxTokens,
		"truncated":   result.Context.Truncated,
		"sources":     sources,
		"candidates":  result.Search.TotalResults,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGraphNeighborhood handles the graph_neighborhood tool invocation
func (s *Server) handleGraphNeighborhood(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	ref, err := requireString(args, "entity")
	if err != nil {
		return nil, err
	}

	depth, err := intInRange(args, "depth", 1, 1, maxGraphDepth)
	if err != nil {
		return nil, err
	}
	limit := getIntDefault(args, "limit", defaultNeighborhood)
	if limit < 0 {
		return nil, invalidParam("limit", "must not be negative")
	}

	direction := types.Direction(getStringDefault(args, "direction", string(types.DirectionBoth)))
	switch direction {
	case types.DirectionOut, types.DirectionIn, types.DirectionBoth:
	default:
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid direction", map[string]interface{}{
			"param":   "direction",
			"value":   direction,
			"allowed": directionEnum,
		})
	}

	relTypes, err := getStringSlice(args, "relationship_types")
	if err != nil {
		return nil, err
	}

	result, err := s.engine.Neighborhood(ctx, ref, graph.NeighborhoodOptions{
		MaxDepth:          depth,
		Direction:         direction,
		RelationshipTypes: relTypes,
		MinWeight:         getFloatDefault(args, "min_weight", 0),
		Limit:             limit,
	})
	if err != nil {
		return nil, toMCPError("neighborhood query failed", err)
	}

	entities := make([]map[string]interface{}, 0, len(result.Entities))
	for _, e := range result.Entities {
		item := entityJSON(e, false)
		item["depth"] = result.Neighborhood.Depths[e.ID]
		entities = append(entities, item)
	}

	response := map[string]interface{}{
		"center":        entityJSON(result.Center, false),
		"entities":      entities,
		"relationships": relationshipsJSON(result.Neighborhood.Relationships),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGraphPaths handles the graph_paths tool invocation
func (s *Server) handleGraphPaths(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	from, err := requireString(args, "from")
	if err != nil {
		return nil, err
	}
	to, err := requireString(args, "to")
	if err != nil {
		return nil, err
	}

	maxDepth, err := intInRange(args, "max_depth", graph.DefaultPathDepth, 1, maxPathDepth)
	if err != nil {
		return nil, err
	}
	limit, err := intInRange(args, "limit", defaultPathLimit, 1, maxPathLimit)
	if err != nil {
		return nil, err
	}
	relTypes, err := getStringSlice(args, "relationship_types")
	if err != nil {
		return nil, err
	}

	paths, err := s.engine.Paths(ctx, from, to, graph.PathOptions{
		MaxDepth:          maxDepth,
		Limit:             limit,
		RelationshipTypes: relTypes,
	})
	if err != nil {
		return nil, toMCPError("path query failed", err)
	}

	out := make([]map[string]interface{}, 0, len(paths))
	for _, p := range paths {
		out = append(out, map[string]interface{}{
			"entities":      p.EntityIDs,
			"length":        p.Length,
			"total_weight":  p.TotalWeight,
			"relationships": relationshipsJSON(p.Relationships),
		})
	}

	response := map[string]interface{}{
		"from":  from,
		"to":    to,
		"found": len(out) > 0,
		"paths": out,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGraphStats handles the graph_stats tool invocation
func (s *Server) handleGraphStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if _, err := arguments(request); err != nil {
		return nil, err
	}

	stats, err := s.engine.GraphStats(ctx)
	if err != nil {
		return nil, toMCPError("graph stats failed", err)
	}

	response := map[string]interface{}{
		"entity_count":         stats.EntityCount,
		"relationship_count":   stats.RelationshipCount,
		"average_degree":       stats.AverageDegree,
		"connected_components": stats.ConnectedComponents,
		"relationship_types":   stats.RelationshipTypes,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	path, err := s.engine.ResolveRoot(getStringDefault(args, "path", ""))
	if err != nil {
		return nil, toMCPError("invalid path", err)
	}

	status, err := s.engine.Status(ctx)
	if errors.Is(err, engine.ErrNotIndexed) {
		response := map[string]interface{}{
			"indexed":  false,
			"indexing": s.engine.Indexing(),
			"path":     path,
			"message":  "Project not indexed. Use index_codebase tool to index this project.",
		}
		return mcp.NewToolResultText(formatJSON(response)), nil
	}
	if err != nil {
		return nil, toMCPError("failed to get status", err)
	}

	project := status.Project
	emb := s.engine.Embedder()
	response := map[string]interface{}{
		"indexed":  true,
		"indexing": s.engine.Indexing(),
		"project": map[string]interface{}{
			"path":            project.RootPath,
			"module_name":     project.ModuleName,
			"go_version":      project.GoVersion,
			"index_version":   project.IndexVersion,
			"last_indexed_at": project.LastIndexedAt.Format(time.RFC3339),
		},
		"statistics": map[string]interface{}{
			"files_count":         status.FilesCount,
			"entities_count":      status.EntitiesCount,
			"relationships_count": status.RelationshipsCount,
			"embeddings_count":    status.EmbeddingsCount,
			"index_size_mb":       fmt.Sprintf("%.2f", status.IndexSizeMB),
		},
		"embedder": map[string]interface{}{
			"provider":  emb.Provider(),
			"model":     emb.Model(),
			"dimension": emb.Dimension(),
		},
		"health": map[string]interface{}{
			"database_accessible":  status.Health.DatabaseAccessible,
			"embeddings_available": status.Health.EmbeddingsAvailable,
			"fts_indexes_built":    status.Health.FTSIndexesBuilt,
		},
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// entityJSON renders an entity; content is included only when asked for
func entityJSON(e *types.Entity, withContent bool) map[string]interface{} {
	out := map[string]interface{}{
		"id":             e.ID,
		"type":           e.Type,
		"name":           e.Name,
		"qualified_name": e.QualifiedName,
	}
	if e.FilePath != "" {
		out["file"] = map[string]interface{}{
			"path":       e.FilePath,
			"start_line": e.StartLine,
			"end_line":   e.EndLine,
		}
	}
	if e.Signature != "" {
		out["signature"] = e.Signature
	}
	if e.Summary != "" {
		out["summary"] = e.Summary
	}
	if withContent && e.Content != "" {
		out["content"] = e.Content
	}
	return out
}

func relationshipsJSON(rels []*types.Relationship) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(rels))
	for _, r := range rels {
		out = append(out, map[string]interface{}{
			"source": r.SourceID,
			"target": r.TargetID,
			"type":   r.Type,
			"weight": r.Weight,
		})
	}
	return out
}

func strategyReports(reports []searcher.StrategyReport) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(reports))
	for _, r := range reports {
		item := map[string]interface{}{
			"strategy":    r.Strategy,
			"results":     r.Results,
			"duration_ms": r.Duration.Milliseconds(),
		}
		if r.Error != "" {
			item["error"] = r.Error
		}
		out = append(out, item)
	}
	return out
}
