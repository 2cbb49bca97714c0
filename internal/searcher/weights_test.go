package searcher

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dshills/ctxgraph/internal/query"
	"github.com/dshills/ctxgraph/pkg/types"
)

func TestAdaptWeights(t *testing.T) {
	p := query.New()

	tests := []struct {
		name      string
		query     string
		overrides map[types.Strategy]float64
		keyword   float64
		semantic  float64
	}{
		{name: "file name", query: "open internal/query/parser.go", keyword: 1.0, semantic: 0.1},
		{name: "file name with question mark", query: "where is config.yaml?", keyword: 1.0, semantic: 0.1},
		{name: "short with mention", query: "UserService methods", keyword: 0.9, semantic: 0.5},
		{name: "question", query: "why do retries back off exponentially", keyword: 0.6, semantic: 1.3},
		{name: "trailing question mark", query: "retries back off exponentially?", keyword: 0.6, semantic: 1.3},
		{name: "short mention and question", query: "what is `Fuse`", keyword: 0.9, semantic: 0.65},
		{name: "plain", query: "token budget for context assembly", keyword: 0.6, semantic: 1.0},
		{
			name:      "overrides are not adapted",
			query:     "UserService methods",
			overrides: map[types.Strategy]float64{types.StrategySemantic: 2, types.StrategyHybrid: 9},
			keyword:   0.9,
			semantic:  2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := AdaptWeights(p.Parse(tt.query), tt.overrides)
			assert.InDelta(t, tt.keyword, w[types.StrategyKeyword], 1e-9)
			assert.InDelta(t, tt.semantic, w[types.StrategySemantic], 1e-9)
			assert.InDelta(t, 0.8, w[types.StrategyGraph], 1e-9)
			assert.InDelta(t, 1.0, w[types.StrategyStructural], 1e-9)
			assert.NotContains(t, w, types.StrategyHybrid)
		})
	}

	// Defaults are never mutated
	assert.Equal(t, 0.6, DefaultWeights[types.StrategyKeyword])
}
