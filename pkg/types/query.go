package types

// Intent is the detected purpose of a query
type Intent string

const (
	IntentFind    Intent = "find"
	IntentExplain Intent = "explain"
	IntentList    Intent = "list"
	IntentCompare Intent = "compare"
	IntentHow     Intent = "how"
	IntentWhy     Intent = "why"
	IntentDebug   Intent = "debug"
	IntentGeneral Intent = "general"
)

// MentionKind classifies an entity mention found in query text
type MentionKind string

const (
	MentionFile     MentionKind = "file"
	MentionClass    MentionKind = "class"
	MentionFunction MentionKind = "function"
	MentionVariable MentionKind = "variable"
	MentionCode     MentionKind = "code"
)

// EntityMention is a span of the original query that names a code entity.
// Start and End are byte offsets into ParsedQuery.Original (End exclusive).
type EntityMention struct {
	Text  string
	Kind  MentionKind
	Start int
	End   int
}

// Overlaps reports whether two mention spans share at least one byte
func (m EntityMention) Overlaps(start, end int) bool {
	return m.Start < end && start < m.End
}

// ParsedQuery is the structured form of a raw query
type ParsedQuery struct {
	Original   string
	Normalized string

	Intent     Intent
	Confidence float64

	Keywords      []string
	Mentions      []EntityMention
	ExpandedTerms []string
}

// HasMentions reports whether any entity mention was found
func (q *ParsedQuery) HasMentions() bool {
	return q != nil && len(q.Mentions) > 0
}

// Terms returns keywords followed by expanded terms
func (q *ParsedQuery) Terms() []string {
	terms := make([]string, 0, len(q.Keywords)+len(q.ExpandedTerms))
	terms = append(terms, q.Keywords...)
	return append(terms, q.ExpandedTerms...)
}
