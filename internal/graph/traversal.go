package graph

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/dshills/ctxgraph/pkg/types"
)

// NeighborhoodOptions bounds a neighborhood query
type NeighborhoodOptions struct {
	MaxDepth          int             // Hops from the center; default 1
	Direction         types.Direction // Default both
	RelationshipTypes []string        // Empty means all types
	MinWeight         float64
	Limit             int // Maximum entities returned; 0 means unbounded
}

// PathOptions bounds a path search
type PathOptions struct {
	MaxDepth          int // Maximum hops; default DefaultPathDepth
	Limit             int // Maximum paths returned; 0 means all
	RelationshipTypes []string
}

// adjacency memoizes edge lookups for the duration of one query
type adjacency struct {
	rels      RelationshipStore
	relTypes  []string
	minWeight float64
	out       map[string][]*types.Relationship
	in        map[string][]*types.Relationship
}

func newAdjacency(rels RelationshipStore, relTypes []string, minWeight float64) *adjacency {
	return &adjacency{
		rels:      rels,
		relTypes:  relTypes,
		minWeight: minWeight,
		out:       make(map[string][]*types.Relationship),
		in:        make(map[string][]*types.Relationship),
	}
}

// outgoing returns edges leaving id
func (a *adjacency) outgoing(ctx context.Context, id string) ([]*types.Relationship, error) {
	if rels, ok := a.out[id]; ok {
		return rels, nil
	}
	rels, err := a.rels.ListRelationships(ctx, types.RelationshipFilter{
		SourceID: id, Types: a.relTypes, MinWeight: a.minWeight,
	})
	if err != nil {
		return nil, err
	}
	a.out[id] = rels
	return rels, nil
}

// incoming returns edges arriving at id
func (a *adjacency) incoming(ctx context.Context, id string) ([]*types.Relationship, error) {
	if rels, ok := a.in[id]; ok {
		return rels, nil
	}
	rels, err := a.rels.ListRelationships(ctx, types.RelationshipFilter{
		TargetID: id, Types: a.relTypes, MinWeight: a.minWeight,
	})
	if err != nil {
		return nil, err
	}
	a.in[id] = rels
	return rels, nil
}

// step is one traversable edge seen from a node
type step struct {
	rel      *types.Relationship
	neighbor string
}

// steps returns the edges usable from id in the given direction
func (a *adjacency) steps(ctx context.Context, id string, direction types.Direction) ([]step, error) {
	var out []step
	if direction != types.DirectionIn {
		rels, err := a.outgoing(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, r := range rels {
			out = append(out, step{rel: r, neighbor: r.TargetID})
		}
	}
	if direction != types.DirectionOut {
		rels, err := a.incoming(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, r := range rels {
			out = append(out, step{rel: r, neighbor: r.SourceID})
		}
	}
	return out, nil
}

// GetNeighborhood returns the entities within MaxDepth hops of id, expanded
// level by level. The center is excluded. An unknown id yields an empty
// neighborhood.
func (s *Store) GetNeighborhood(ctx context.Context, id string, opts NeighborhoodOptions) (*types.Neighborhood, error) {
	ctx, span := startQuerySpan(ctx, "GetNeighborhood", id)
	defer span.End()
	start := time.Now()

	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 1
	}
	if opts.Direction == "" {
		opts.Direction = types.DirectionBoth
	}

	result, truncated, err := s.expand(ctx, id, opts)
	if err != nil {
		return nil, err
	}

	setQuerySpanResult(span, len(result.EntityIDs), truncated)
	recordQueryMetrics(ctx, "neighborhood", time.Since(start), len(result.EntityIDs), truncated)
	return result, nil
}

// expand runs the level-by-level BFS behind neighborhood and reachability
func (s *Store) expand(ctx context.Context, id string, opts NeighborhoodOptions) (*types.Neighborhood, bool, error) {
	result := &types.Neighborhood{
		CenterID:      id,
		EntityIDs:     make([]string, 0),
		Depths:        make(map[string]int),
		Relationships: make([]*types.Relationship, 0),
	}

	adj := newAdjacency(s.rels, opts.RelationshipTypes, opts.MinWeight)
	discovered := map[string]struct{}{id: {}}
	seenRels := make(map[string]struct{})
	frontier := []string{id}
	truncated := false

levels:
	for depth := 1; depth <= opts.MaxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, node := range frontier {
			if err := ctx.Err(); err != nil {
				truncated = true
				break levels
			}

			steps, err := adj.steps(ctx, node, opts.Direction)
			if err != nil {
				return nil, false, err
			}
			for _, st := range steps {
				if _, ok := discovered[st.neighbor]; !ok {
					if opts.Limit > 0 && len(result.EntityIDs) >= opts.Limit {
						truncated = true
						break levels
					}
					discovered[st.neighbor] = struct{}{}
					result.Depths[st.neighbor] = depth
					result.EntityIDs = append(result.EntityIDs, st.neighbor)
					next = append(next, st.neighbor)
				}
				if _, ok := seenRels[st.rel.ID]; !ok {
					seenRels[st.rel.ID] = struct{}{}
					result.Relationships = append(result.Relationships, st.rel)
				}
			}
		}
		sort.Strings(next)
		frontier = next
	}

	sort.SliceStable(result.EntityIDs, func(i, j int) bool {
		a, b := result.EntityIDs[i], result.EntityIDs[j]
		if result.Depths[a] != result.Depths[b] {
			return result.Depths[a] < result.Depths[b]
		}
		return a < b
	})
	return result, truncated, nil
}

// GetReachable returns the ids reachable from id over outgoing edges within
// maxDepth hops, ordered by depth then id. A non-positive maxDepth means no
// depth bound.
func (s *Store) GetReachable(ctx context.Context, id string, maxDepth int) ([]string, error) {
	ctx, span := startQuerySpan(ctx, "GetReachable", id)
	defer span.End()
	start := time.Now()

	if maxDepth <= 0 {
		maxDepth = int(^uint(0) >> 1)
	}
	result, truncated, err := s.expand(ctx, id, NeighborhoodOptions{
		MaxDepth:  maxDepth,
		Direction: types.DirectionOut,
	})
	if err != nil {
		return nil, err
	}

	setQuerySpanResult(span, len(result.EntityIDs), truncated)
	recordQueryMetrics(ctx, "reachable", time.Since(start), len(result.EntityIDs), truncated)
	return result.EntityIDs, nil
}

// pathItem is a partial path in the BFS queue. Each item carries its own
// visited set so sibling paths never share mutable state.
type pathItem struct {
	ids     []string
	rels    []*types.Relationship
	weight  float64
	visited map[string]struct{}
}

// extend returns a new item with one more hop
func (p *pathItem) extend(rel *types.Relationship, next string) *pathItem {
	ids := make([]string, len(p.ids), len(p.ids)+1)
	copy(ids, p.ids)
	rels := make([]*types.Relationship, len(p.rels), len(p.rels)+1)
	copy(rels, p.rels)

	visited := make(map[string]struct{}, len(p.visited)+1)
	for id := range p.visited {
		visited[id] = struct{}{}
	}
	visited[next] = struct{}{}

	return &pathItem{
		ids:     append(ids, next),
		rels:    append(rels, rel),
		weight:  p.weight + rel.Weight,
		visited: visited,
	}
}

func (p *pathItem) toPath() *types.Path {
	return &types.Path{
		EntityIDs:     p.ids,
		Relationships: p.rels,
		Length:        len(p.rels),
		TotalWeight:   p.weight,
	}
}

// FindPaths returns simple paths from → to over outgoing edges, ordered by
// length, then total weight, then ids. Multi-edges between the same ordered
// pair collapse to the lightest edge. from == to yields the single trivial
// path of length 0.
func (s *Store) FindPaths(ctx context.Context, from, to string, opts PathOptions) ([]*types.Path, error) {
	ctx, span := startQuerySpan(ctx, "FindPaths", from)
	defer span.End()
	start := time.Now()

	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultPathDepth
	}

	paths, truncated, err := s.findPaths(ctx, from, to, opts)
	if err != nil {
		return nil, err
	}

	setQuerySpanResult(span, len(paths), truncated)
	recordQueryMetrics(ctx, "paths", time.Since(start), len(paths), truncated)
	return paths, nil
}

// FindShortestPath returns the shortest (then lightest) path within maxDepth
// hops, or nil when none exists. A non-positive maxDepth uses DefaultPathDepth.
func (s *Store) FindShortestPath(ctx context.Context, from, to string, maxDepth int) (*types.Path, error) {
	ctx, span := startQuerySpan(ctx, "FindShortestPath", from)
	defer span.End()
	start := time.Now()

	if maxDepth <= 0 {
		maxDepth = DefaultPathDepth
	}

	paths, truncated, err := s.findPaths(ctx, from, to, PathOptions{MaxDepth: maxDepth, Limit: 1})
	if err != nil {
		return nil, err
	}

	setQuerySpanResult(span, len(paths), truncated)
	recordQueryMetrics(ctx, "shortest_path", time.Since(start), len(paths), truncated)
	if len(paths) == 0 {
		return nil, nil
	}
	return paths[0], nil
}

// findPaths is the BFS shared by FindPaths and FindShortestPath
func (s *Store) findPaths(ctx context.Context, from, to string, opts PathOptions) ([]*types.Path, bool, error) {
	paths := make([]*types.Path, 0)
	if from == "" || to == "" {
		return paths, false, nil
	}
	if from == to {
		return append(paths, &types.Path{EntityIDs: []string{from}, Relationships: []*types.Relationship{}}), false, nil
	}

	adj := newAdjacency(s.rels, opts.RelationshipTypes, 0)
	queue := []*pathItem{{ids: []string{from}, visited: map[string]struct{}{from: {}}}}
	cutoff := -1 // Path length at which Limit was reached
	expansions := 0
	truncated := false

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			truncated = true
			break
		}

		item := queue[0]
		queue = queue[1:]
		hops := len(item.rels)

		// BFS order: once Limit is met, longer paths can no longer qualify
		if cutoff >= 0 && hops >= cutoff {
			break
		}
		if hops >= opts.MaxDepth {
			continue
		}

		expansions++
		if expansions > s.maxExpansions {
			truncated = true
			s.logger.Warn("path search stopped at expansion bound",
				"from", from, "to", to, "max_expansions", s.maxExpansions)
			break
		}

		rels, err := adj.outgoing(ctx, item.ids[len(item.ids)-1])
		if err != nil {
			return nil, false, err
		}

		for _, rel := range collapseMultiEdges(rels) {
			next := rel.TargetID
			if _, seen := item.visited[next]; seen {
				continue
			}
			extended := item.extend(rel, next)
			if next == to {
				paths = append(paths, extended.toPath())
				if opts.Limit > 0 && len(paths) >= opts.Limit && cutoff < 0 {
					cutoff = hops + 1
				}
				continue
			}
			queue = append(queue, extended)
		}
	}

	sortPaths(paths)
	if opts.Limit > 0 && len(paths) > opts.Limit {
		paths = paths[:opts.Limit]
	}
	return paths, truncated, nil
}

// collapseMultiEdges keeps the lightest edge per target, preserving the order
// in which targets first appear. Ties keep the earlier edge.
func collapseMultiEdges(rels []*types.Relationship) []*types.Relationship {
	best := make(map[string]int, len(rels))
	out := make([]*types.Relationship, 0, len(rels))
	for _, r := range rels {
		if i, ok := best[r.TargetID]; ok {
			if r.Weight < out[i].Weight {
				out[i] = r
			}
			continue
		}
		best[r.TargetID] = len(out)
		out = append(out, r)
	}
	return out
}

// sortPaths orders paths by length, total weight, then joined ids
func sortPaths(paths []*types.Path) {
	sort.SliceStable(paths, func(i, j int) bool {
		a, b := paths[i], paths[j]
		if a.Length != b.Length {
			return a.Length < b.Length
		}
		if a.TotalWeight != b.TotalWeight {
			return a.TotalWeight < b.TotalWeight
		}
		return strings.Join(a.EntityIDs, "\x00") < strings.Join(b.EntityIDs, "\x00")
	})
}

// FindCommonNeighbors returns ids adjacent, in either direction, to both a and b
func (s *Store) FindCommonNeighbors(ctx context.Context, a, b string) ([]string, error) {
	ctx, span := startQuerySpan(ctx, "FindCommonNeighbors", a)
	defer span.End()

	adj := newAdjacency(s.rels, nil, 0)
	neighbors := func(id string) (map[string]struct{}, error) {
		steps, err := adj.steps(ctx, id, types.DirectionBoth)
		if err != nil {
			return nil, err
		}
		set := make(map[string]struct{}, len(steps))
		for _, st := range steps {
			set[st.neighbor] = struct{}{}
		}
		return set, nil
	}

	na, err := neighbors(a)
	if err != nil {
		return nil, err
	}
	nb, err := neighbors(b)
	if err != nil {
		return nil, err
	}

	common := make([]string, 0)
	for id := range na {
		if id == a || id == b {
			continue
		}
		if _, ok := nb[id]; ok {
			common = append(common, id)
		}
	}
	sort.Strings(common)
	setQuerySpanResult(span, len(common), false)
	return common, nil
}
