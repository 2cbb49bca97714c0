// Package searcher answers natural-language queries by running several
// retrieval strategies concurrently and fusing their rankings.
//
// # Strategies
//
//   - keyword: full-text search over entity names, signatures, summaries and content
//   - semantic: embedding similarity to the query text
//   - graph: entities named in the query plus their graph neighborhoods
//   - structural: exact name and qualified-name lookups of named entities
//   - hybrid: shorthand for keyword, semantic and graph
//
// Keyword and semantic run by default. Graph is added automatically when the
// query names an entity and a graph backend is configured. A strategy
// without a backend is skipped.
//
// # Basic Usage
//
//	s := searcher.New(store,
//	    searcher.WithSemantic(semanticBackend),
//	    searcher.WithGraph(graphStore),
//	    searcher.WithLogger(logger),
//	)
//
//	resp, err := s.Search(ctx, searcher.SearchRequest{
//	    Query: "how does `Fuse` combine strategy rankings?",
//	    Limit: 10,
//	})
//	for _, r := range resp.Results {
//	    fmt.Printf("%-40s %.4f %s\n", r.Entity.QualifiedName, r.Score, r.Source)
//	}
//
// # Fusion
//
// Strategy lists are merged with Reciprocal Rank Fusion (k = 60). Weights
// default to keyword 0.6, semantic 1.0, graph 0.8 and structural 1.0 and
// are adapted to the query before fusion; see AdaptWeights. A failing
// strategy is logged and contributes nothing. If every strategy fails the
// result is empty, not an error.
//
// # Caching
//
// With UseCache set, responses are kept in an expiring LRU keyed by a
// sha256 of the normalized request. InvalidateCache purges it; the indexer
// calls it after every run.
package searcher
