package rerank

import (
	"context"
	"sort"

	"github.com/dshills/ctxgraph/pkg/types"
)

// Reranker reorders results for a query. Results it omits are dropped.
type Reranker interface {
	Rerank(ctx context.Context, query string, results []types.SearchResult) ([]types.SearchResult, error)
}

// sortByScore orders results by score descending, keeping input order on ties
func sortByScore(results []types.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}
