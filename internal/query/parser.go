package query

import (
	"strings"

	"github.com/dshills/ctxgraph/pkg/types"
)

// Parser turns raw query text into a ParsedQuery.
// A Parser is immutable after construction and safe for concurrent use.
type Parser struct {
	minKeywordLength int
	stopwords        map[string]struct{}
	synonyms         map[string][]string
	extraSynonyms    []map[string][]string
	rules            []intentRule
}

// Option configures a Parser
type Option func(*Parser)

// WithMinKeywordLength sets the shortest token kept as a keyword
func WithMinKeywordLength(n int) Option {
	return func(p *Parser) {
		if n > 0 {
			p.minKeywordLength = n
		}
	}
}

// WithSynonyms adds one-directional synonym entries to the seed table
func WithSynonyms(table map[string][]string) Option {
	return func(p *Parser) {
		if len(table) > 0 {
			p.extraSynonyms = append(p.extraSynonyms, table)
		}
	}
}

// WithStopwords adds words to the stopword list
func WithStopwords(words ...string) Option {
	return func(p *Parser) {
		for _, w := range words {
			p.stopwords[strings.ToLower(w)] = struct{}{}
		}
	}
}

// New creates a Parser with the built-in intent rules, stopwords and synonyms
func New(opts ...Option) *Parser {
	p := &Parser{
		minKeywordLength: DefaultMinKeywordLength,
		stopwords:        make(map[string]struct{}, len(defaultStopwords)),
		rules:            intentRules,
	}
	for _, w := range defaultStopwords {
		p.stopwords[w] = struct{}{}
	}

	for _, opt := range opts {
		opt(p)
	}

	tables := append([]map[string][]string{seedSynonyms}, p.extraSynonyms...)
	p.synonyms = symmetrize(tables...)
	p.extraSynonyms = nil

	return p
}

// Parse extracts intent, entity mentions, keywords and synonym expansions.
// It never fails: text without recognizable structure yields empty collections
// and the general intent.
func (p *Parser) Parse(q string) *types.ParsedQuery {
	normalized := strings.Join(strings.Fields(strings.ToLower(q)), " ")
	intent, confidence := detectIntent(normalized, p.rules)

	mentions := extractMentions(q)
	mentionTexts := make([]string, len(mentions))
	for i, m := range mentions {
		mentionTexts[i] = m.Text
	}

	keywords := p.extractKeywords(q, mentionTexts)

	return &types.ParsedQuery{
		Original:      q,
		Normalized:    normalized,
		Intent:        intent,
		Confidence:    confidence,
		Keywords:      keywords,
		Mentions:      mentions,
		ExpandedTerms: p.expand(keywords),
	}
}

// Synonyms returns the bidirectional synonyms of a term
func (p *Parser) Synonyms(term string) []string {
	syns := p.synonyms[strings.ToLower(term)]
	out := make([]string, len(syns))
	copy(out, syns)
	return out
}
