package rerank

import (
	"context"
	"strings"

	"github.com/dshills/ctxgraph/internal/query"
	"github.com/dshills/ctxgraph/pkg/types"
)

// DefaultLexicalBoost is the score multiplier gained when every keyword matches
const DefaultLexicalBoost = 0.5

// LexicalReranker multiplies each score by 1 + boost*coverage, where
// coverage is the fraction of query keywords found in the entity's name,
// qualified name, signature or summary. It never drops results.
type LexicalReranker struct {
	parser *query.Parser
	boost  float64
}

// NewLexicalReranker creates a lexical reranker. A non-positive boost uses DefaultLexicalBoost.
func NewLexicalReranker(parser *query.Parser, boost float64) *LexicalReranker {
	if parser == nil {
		parser = query.New()
	}
	if boost <= 0 {
		boost = DefaultLexicalBoost
	}
	return &LexicalReranker{parser: parser, boost: boost}
}

func (l *LexicalReranker) Rerank(_ context.Context, q string, results []types.SearchResult) ([]types.SearchResult, error) {
	keywords := l.parser.Parse(q).Keywords
	out := make([]types.SearchResult, len(results))
	copy(out, results)
	if len(keywords) == 0 {
		return out, nil
	}

	for i := range out {
		out[i].Score *= 1 + l.boost*coverage(out[i].Entity, keywords)
	}
	sortByScore(out)
	return out, nil
}

// coverage returns the fraction of keywords present in the entity's identifying fields
func coverage(e *types.Entity, keywords []string) float64 {
	if e == nil {
		return 0
	}
	haystack := strings.ToLower(strings.Join([]string{e.Name, e.QualifiedName, e.Signature, e.Summary}, " "))
	hits := 0
	for _, k := range keywords {
		if strings.Contains(haystack, strings.ToLower(k)) {
			hits++
		}
	}
	return float64(hits) / float64(len(keywords))
}
