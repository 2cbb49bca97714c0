package types

// Strategy identifies the retrieval strategy that produced a result
type Strategy string

const (
	StrategyKeyword    Strategy = "keyword"
	StrategySemantic   Strategy = "semantic"
	StrategyGraph      Strategy = "graph"
	StrategyStructural Strategy = "structural"
	StrategyHybrid     Strategy = "hybrid"
)

// Valid reports whether s is one of the known strategies
func (s Strategy) Valid() bool {
	switch s {
	case StrategyKeyword, StrategySemantic, StrategyGraph, StrategyStructural, StrategyHybrid:
		return true
	}
	return false
}

// RawResult is a single strategy-local hit before fusion.
// The meaning of Score depends on the strategy: rank based for keyword,
// similarity for semantic, inverse distance for graph.
type RawResult struct {
	EntityID string
	Score    float64
	Strategy Strategy
}

// Span is a half-open byte range
type Span struct {
	Start int
	End   int
}

// MatchInfo describes where a result matched the query
type MatchInfo struct {
	Snippet    string
	Field      string
	Highlights []Span
}

// SearchResult is a hydrated entity with its fused relevance score
type SearchResult struct {
	Entity *Entity
	Score  float64
	Source Strategy // First strategy that produced the entity
	Match  *MatchInfo
}

// ScoredID pairs an entity id with a backend score
type ScoredID struct {
	EntityID string
	Score    float64
}

// EntitySearchOptions narrows a keyword search
type EntitySearchOptions struct {
	Types []EntityType
	Limit int
}

// SimilarityOptions narrows a semantic search
type SimilarityOptions struct {
	Limit       int
	EntityTypes []EntityType
	MinScore    float64
}
