package types

// ContextSource attributes one entity included in an assembled context
type ContextSource struct {
	EntityID string
	Name     string
	Type     EntityType
	FilePath string
	Line     int
	Score    float64
}

// AssembledContext is a token-budgeted text artifact built from search results
type AssembledContext struct {
	Text       string
	Sources    []ContextSource
	TokenCount int
	Truncated  bool
}
