package searcher

import (
	"sort"

	"github.com/dshills/ctxgraph/pkg/types"
)

// RRFConstant is k in weight/(k + rank + 1)
const RRFConstant = 60

// fusionOrder fixes which strategy is recorded as an entity's source when
// several produce it
var fusionOrder = []types.Strategy{
	types.StrategyKeyword,
	types.StrategySemantic,
	types.StrategyGraph,
	types.StrategyStructural,
}

// DefaultWeights are the per-strategy fusion weights before adaptation
var DefaultWeights = map[types.Strategy]float64{
	types.StrategyKeyword:    0.6,
	types.StrategySemantic:   1.0,
	types.StrategyGraph:      0.8,
	types.StrategyStructural: 1.0,
}

// Fused is an entity id with its summed RRF score
type Fused struct {
	EntityID string
	Score    float64
	Source   types.Strategy
}

// DedupMax collapses results sharing an entity id into one carrying the
// maximum score, at the position of the first occurrence
func DedupMax(results []types.RawResult) []types.RawResult {
	index := make(map[string]int, len(results))
	out := make([]types.RawResult, 0, len(results))
	for _, r := range results {
		if i, ok := index[r.EntityID]; ok {
			if r.Score > out[i].Score {
				out[i].Score = r.Score
			}
			continue
		}
		index[r.EntityID] = len(out)
		out = append(out, r)
	}
	return out
}

// Fuse combines per-strategy lists with Reciprocal Rank Fusion. Each list is
// ranked by local score descending; the entity at zero-based rank r earns
// weight/(60+r+1). Contributions for one entity sum. Only rank matters, so
// local scores need not be comparable across strategies. Ties keep the order
// in which entities were first encountered.
func Fuse(lists map[types.Strategy][]types.RawResult, weights map[types.Strategy]float64) []Fused {
	index := make(map[string]int)
	var out []Fused

	for _, st := range fusionOrder {
		list := lists[st]
		if len(list) == 0 {
			continue
		}
		weight, ok := weights[st]
		if !ok {
			weight = DefaultWeights[st]
		}

		ranked := make([]types.RawResult, len(list))
		copy(ranked, list)
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].Score > ranked[j].Score
		})

		for r, res := range ranked {
			contribution := weight / float64(RRFConstant+r+1)
			if i, seen := index[res.EntityID]; seen {
				out[i].Score += contribution
				continue
			}
			index[res.EntityID] = len(out)
			out = append(out, Fused{EntityID: res.EntityID, Score: contribution, Source: st})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}
