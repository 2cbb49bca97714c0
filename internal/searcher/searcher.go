package searcher

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/dshills/ctxgraph/internal/graph"
	"github.com/dshills/ctxgraph/internal/query"
	"github.com/dshills/ctxgraph/pkg/types"
)

const (
	DefaultLimit      = 10
	MaxLimit          = 100
	DefaultGraphDepth = 1

	DefaultCacheSize = 1000
	DefaultCacheTTL  = time.Hour

	// candidateFactor widens per-strategy fetches so filtering and
	// hydration misses still leave Limit results
	candidateFactor = 3
)

// EntityBackend looks up and searches entities
type EntityBackend interface {
	GetEntity(ctx context.Context, id string) (*types.Entity, error)
	GetEntityByName(ctx context.Context, name string) (*types.Entity, error)
	GetEntityByQualifiedName(ctx context.Context, qualifiedName string) (*types.Entity, error)
	SearchEntities(ctx context.Context, text string, opts types.EntitySearchOptions) ([]types.ScoredID, error)
}

// SemanticBackend returns entities similar to a text
type SemanticBackend interface {
	FindSimilar(ctx context.Context, text string, opts types.SimilarityOptions) ([]types.ScoredID, error)
}

// GraphBackend expands entities into their neighborhoods
type GraphBackend interface {
	GetNeighborhood(ctx context.Context, id string, opts graph.NeighborhoodOptions) (*types.Neighborhood, error)
}

// Reranker reorders hydrated results. Results it omits are dropped.
type Reranker interface {
	Rerank(ctx context.Context, query string, results []types.SearchResult) ([]types.SearchResult, error)
}

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	Query       string
	Strategies  []types.Strategy           // Empty means keyword + semantic
	Limit       int                        // Default 10, max 100
	EntityTypes []types.EntityType         // Empty means all types
	Weights     map[types.Strategy]float64 // Overrides defaults and adaptation
	MinScore    float64                    // Applied to fused scores
	GraphDepth  int                        // Default 1
	UseCache    bool
	SkipRerank  bool
}

// SearchResponse contains search results and metadata
type SearchResponse struct {
	Results      []types.SearchResult
	TotalResults int
	Parsed       *types.ParsedQuery
	Strategies   []StrategyReport
	Weights      map[types.Strategy]float64
	Duration     time.Duration
	CacheHit     bool
	Reranked     bool
}

// StrategyReport summarizes one strategy execution
type StrategyReport struct {
	Strategy types.Strategy
	Results  int
	Duration time.Duration
	Error    string `json:",omitempty"`
}

// Searcher runs query strategies concurrently and fuses their rankings
type Searcher struct {
	parser   *query.Parser
	entities EntityBackend
	semantic SemanticBackend
	graph    GraphBackend
	reranker Reranker
	logger   *slog.Logger
	cache    *expirable.LRU[[32]byte, *SearchResponse]
}

// Option configures a Searcher
type Option func(*Searcher)

// WithSemantic enables the semantic strategy
func WithSemantic(b SemanticBackend) Option {
	return func(s *Searcher) { s.semantic = b }
}

// WithGraph enables the graph strategy
func WithGraph(b GraphBackend) Option {
	return func(s *Searcher) { s.graph = b }
}

// WithReranker sets the reranker applied after fusion
func WithReranker(r Reranker) Option {
	return func(s *Searcher) { s.reranker = r }
}

// WithParser replaces the default query parser
func WithParser(p *query.Parser) Option {
	return func(s *Searcher) {
		if p != nil {
			s.parser = p
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCache sizes the response cache
func WithCache(size int, ttl time.Duration) Option {
	return func(s *Searcher) {
		if size <= 0 {
			size = DefaultCacheSize
		}
		if ttl <= 0 {
			ttl = DefaultCacheTTL
		}
		s.cache = expirable.NewLRU[[32]byte, *SearchResponse](size, nil, ttl)
	}
}

// New creates a searcher. The entity backend is required; it serves the
// keyword and structural strategies and hydration.
func New(entities EntityBackend, opts ...Option) *Searcher {
	s := &Searcher{
		parser:   query.New(),
		entities: entities,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = expirable.NewLRU[[32]byte, *SearchResponse](DefaultCacheSize, nil, DefaultCacheTTL)
	}
	return s
}

// Search parses the query, runs the enabled strategies concurrently, fuses
// their rankings with RRF and hydrates the top results. Strategy failures are
// logged and never fail the search.
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	start := time.Now()
	if strings.TrimSpace(req.Query) == "" {
		return nil, types.ErrEmptyQuery
	}
	normalizeRequest(&req)

	ctx, span := startSearchSpan(ctx, req)
	defer span.End()

	var key [32]byte
	if req.UseCache {
		key = cacheKey(req)
		if cached, ok := s.cache.Get(key); ok {
			resp := copySearchResponse(cached)
			resp.CacheHit = true
			resp.Duration = time.Since(start)
			setSearchSpanResult(span, len(resp.Results), true)
			recordSearchMetrics(ctx, resp.Duration, len(resp.Results), true)
			return resp, nil
		}
	}

	parsed := s.parser.Parse(req.Query)
	weights := AdaptWeights(parsed, req.Weights)
	strategies := s.selectStrategies(req.Strategies, parsed)

	outcomes := s.fanOut(ctx, strategies, parsed, req)

	lists := make(map[types.Strategy][]types.RawResult, len(outcomes))
	reports := make([]StrategyReport, 0, len(outcomes))
	for _, o := range outcomes {
		report := StrategyReport{Strategy: o.strategy, Results: len(o.results), Duration: o.duration}
		if o.err != nil {
			report.Error = o.err.Error()
			s.logger.Warn("search strategy failed", "strategy", o.strategy, "error", o.err)
		}
		reports = append(reports, report)
		lists[o.strategy] = DedupMax(o.results)
	}

	fused := Fuse(lists, weights)
	fused = filterMinScore(fused, req.MinScore)
	results := s.hydrate(ctx, fused, parsed, req)

	reranked := false
	if s.reranker != nil && !req.SkipRerank && len(results) > 1 {
		out, err := s.reranker.Rerank(ctx, req.Query, results)
		if err != nil {
			s.logger.Warn("rerank failed, keeping fused order", "error", err)
		} else {
			results = out
			reranked = true
		}
	}

	resp := &SearchResponse{
		Results:      results,
		TotalResults: len(results),
		Parsed:       parsed,
		Strategies:   reports,
		Weights:      weights,
		Duration:     time.Since(start),
		Reranked:     reranked,
	}

	if req.UseCache {
		s.cache.Add(key, copySearchResponse(resp))
	}

	setSearchSpanResult(span, len(results), false)
	recordSearchMetrics(ctx, resp.Duration, len(results), false)
	return resp, nil
}

// InvalidateCache drops every cached response. Call after re-indexing.
func (s *Searcher) InvalidateCache() {
	s.cache.Purge()
}

// CacheLen returns the number of cached responses
func (s *Searcher) CacheLen() int {
	return s.cache.Len()
}

// normalizeRequest applies defaults and bounds
func normalizeRequest(req *SearchRequest) {
	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}
	if req.GraphDepth <= 0 {
		req.GraphDepth = DefaultGraphDepth
	}
}

// selectStrategies expands hybrid, adds graph when mentions exist, drops
// strategies without a backend, and returns them in fusion order
func (s *Searcher) selectStrategies(requested []types.Strategy, parsed *types.ParsedQuery) []types.Strategy {
	if len(requested) == 0 {
		requested = []types.Strategy{types.StrategyKeyword, types.StrategySemantic}
	}

	enabled := make(map[types.Strategy]bool)
	for _, st := range requested {
		if st == types.StrategyHybrid {
			enabled[types.StrategyKeyword] = true
			enabled[types.StrategySemantic] = true
			enabled[types.StrategyGraph] = true
			continue
		}
		enabled[st] = true
	}
	if parsed.HasMentions() && s.graph != nil {
		enabled[types.StrategyGraph] = true
	}

	out := make([]types.Strategy, 0, len(enabled))
	for _, st := range fusionOrder {
		if !enabled[st] || !s.hasBackend(st) {
			continue
		}
		out = append(out, st)
	}
	return out
}

func (s *Searcher) hasBackend(st types.Strategy) bool {
	switch st {
	case types.StrategyKeyword, types.StrategyStructural:
		return s.entities != nil
	case types.StrategySemantic:
		return s.semantic != nil
	case types.StrategyGraph:
		return s.graph != nil
	}
	return false
}

// filterMinScore keeps fused results scoring at least minScore
func filterMinScore(fused []Fused, minScore float64) []Fused {
	if minScore <= 0 {
		return fused
	}
	out := fused[:0:0]
	for _, f := range fused {
		if f.Score >= minScore {
			out = append(out, f)
		}
	}
	return out
}

// cacheKey hashes every request field that changes the response
func cacheKey(req SearchRequest) [32]byte {
	var b strings.Builder
	b.WriteString(strings.Join(strings.Fields(strings.ToLower(req.Query)), " "))

	strategies := make([]string, len(req.Strategies))
	for i, st := range req.Strategies {
		strategies[i] = string(st)
	}
	sort.Strings(strategies)
	fmt.Fprintf(&b, "|s=%s", strings.Join(strategies, ","))

	entityTypes := make([]string, len(req.EntityTypes))
	for i, t := range req.EntityTypes {
		entityTypes[i] = string(t)
	}
	sort.Strings(entityTypes)
	fmt.Fprintf(&b, "|t=%s", strings.Join(entityTypes, ","))

	weightKeys := make([]string, 0, len(req.Weights))
	for st := range req.Weights {
		weightKeys = append(weightKeys, string(st))
	}
	sort.Strings(weightKeys)
	for _, k := range weightKeys {
		fmt.Fprintf(&b, "|w:%s=%g", k, req.Weights[types.Strategy(k)])
	}

	fmt.Fprintf(&b, "|l=%d|m=%g|d=%d|r=%t", req.Limit, req.MinScore, req.GraphDepth, req.SkipRerank)
	return sha256.Sum256([]byte(b.String()))
}

// copySearchResponse deep-copies the parts callers may mutate
func copySearchResponse(src *SearchResponse) *SearchResponse {
	dst := *src
	dst.Results = make([]types.SearchResult, len(src.Results))
	for i, r := range src.Results {
		r.Entity = r.Entity.Clone()
		if r.Match != nil {
			m := *r.Match
			m.Highlights = append([]types.Span(nil), r.Match.Highlights...)
			r.Match = &m
		}
		dst.Results[i] = r
	}
	dst.Strategies = append([]StrategyReport(nil), src.Strategies...)
	dst.Weights = make(map[types.Strategy]float64, len(src.Weights))
	for k, v := range src.Weights {
		dst.Weights[k] = v
	}
	return &dst
}
