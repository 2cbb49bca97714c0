package graph

import (
	"context"
	"time"

	"github.com/dshills/ctxgraph/pkg/types"
)

// GetGraphStats summarizes the whole relationship graph. Nodes are the
// distinct relationship endpoints plus, with WithEntities, every listed
// entity, so isolated entities count as singleton components. Components
// are weakly connected.
func (s *Store) GetGraphStats(ctx context.Context) (*types.GraphStats, error) {
	ctx, span := startQuerySpan(ctx, "GetGraphStats", "")
	defer span.End()
	start := time.Now()

	rels, err := s.rels.ListRelationships(ctx, types.RelationshipFilter{})
	if err != nil {
		return nil, err
	}

	stats := &types.GraphStats{
		RelationshipCount: len(rels),
		RelationshipTypes: make(map[string]int),
	}

	uf := newUnionFind()
	for _, r := range rels {
		stats.RelationshipTypes[r.Type]++
		uf.union(r.SourceID, r.TargetID)
	}
	if s.entities != nil {
		ids, err := s.entities.ListEntityIDs(ctx)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			uf.find(id)
		}
	}

	stats.EntityCount = len(uf.parent)
	stats.ConnectedComponents = uf.components()
	if stats.EntityCount > 0 {
		stats.AverageDegree = 2 * float64(stats.RelationshipCount) / float64(stats.EntityCount)
	}

	setQuerySpanResult(span, stats.EntityCount, false)
	recordQueryMetrics(ctx, "stats", time.Since(start), stats.EntityCount, false)
	return stats, nil
}

// unionFind tracks weakly connected components with path halving and union by size
type unionFind struct {
	parent map[string]string
	size   map[string]int
}

func newUnionFind() *unionFind {
	return &unionFind{
		parent: make(map[string]string),
		size:   make(map[string]int),
	}
}

func (u *unionFind) find(x string) string {
	if _, ok := u.parent[x]; !ok {
		u.parent[x] = x
		u.size[x] = 1
		return x
	}
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b string) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if u.size[ra] < u.size[rb] {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	u.size[ra] += u.size[rb]
}

func (u *unionFind) components() int {
	n := 0
	for x, p := range u.parent {
		if x == p {
			n++
		}
	}
	return n
}
