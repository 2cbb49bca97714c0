package searcher

import (
	"strings"

	"github.com/dshills/ctxgraph/internal/query"
	"github.com/dshills/ctxgraph/pkg/types"
)

var whWords = map[string]struct{}{
	"what": {}, "why": {}, "how": {}, "where": {}, "when": {}, "which": {}, "who": {},
}

// AdaptWeights derives fusion weights from the parsed query. A query ending
// in a file name becomes near-pure keyword. Otherwise a short query naming
// an entity favors keyword over semantic, and a question favors semantic.
// Overrides replace the adapted values and are not adapted themselves.
func AdaptWeights(parsed *types.ParsedQuery, overrides map[types.Strategy]float64) map[types.Strategy]float64 {
	w := make(map[types.Strategy]float64, len(DefaultWeights))
	for k, v := range DefaultWeights {
		w[k] = v
	}

	fields := strings.Fields(parsed.Original)
	switch {
	case len(fields) > 0 && query.HasKnownExtension(strings.TrimRight(fields[len(fields)-1], "?!.,;:)\"'`")):
		w[types.StrategyKeyword] = 1.0
		w[types.StrategySemantic] = 0.1
	default:
		if len(fields) <= 3 && parsed.HasMentions() {
			w[types.StrategyKeyword] *= 1.5
			w[types.StrategySemantic] *= 0.5
		}
		if isQuestion(parsed, fields) {
			w[types.StrategySemantic] *= 1.3
		}
	}

	for st, v := range overrides {
		if st == types.StrategyHybrid || !st.Valid() || v < 0 {
			continue
		}
		w[st] = v
	}
	return w
}

// isQuestion reports whether the query asks for an explanation
func isQuestion(parsed *types.ParsedQuery, fields []string) bool {
	switch parsed.Intent {
	case types.IntentExplain, types.IntentHow, types.IntentWhy:
		return true
	}
	if strings.HasSuffix(strings.TrimSpace(parsed.Original), "?") {
		return true
	}
	if len(fields) > 0 {
		_, ok := whWords[strings.ToLower(fields[0])]
		return ok
	}
	return false
}
