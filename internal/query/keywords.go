package query

import (
	"strings"
	"unicode"
)

// DefaultMinKeywordLength is the shortest token kept as a keyword
const DefaultMinKeywordLength = 2

// defaultStopwords are dropped from keywords unless they name a mention
var defaultStopwords = []string{
	"a", "about", "all", "also", "an", "and", "any", "are", "as", "at", "be", "been",
	"but", "by", "can", "could", "describe", "did", "do", "does", "doing", "explain",
	"find", "for", "from", "get", "had", "has", "have", "how", "i", "if", "in", "into",
	"is", "it", "its", "just", "list", "locate", "me", "my", "of", "on", "or", "our",
	"please", "show", "should", "so", "some", "tell", "than", "that", "the", "their",
	"them", "then", "there", "these", "they", "this", "those", "to", "us", "was", "we",
	"were", "what", "when", "where", "which", "who", "whom", "why", "will", "with",
	"would", "you", "your",
}

// tokenize splits text into lower-cased tokens on anything that is not a
// letter, digit or underscore
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}

// isNumeric reports whether a token consists only of digits
func isNumeric(tok string) bool {
	for _, r := range tok {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return tok != ""
}

// extractKeywords returns deduplicated keywords in first-seen order.
// Mention texts come first, verbatim, and are never filtered.
func (p *Parser) extractKeywords(text string, mentions []string) []string {
	keywords := make([]string, 0, 8)
	seen := make(map[string]struct{})
	mentionSet := make(map[string]struct{}, len(mentions))

	for _, m := range mentions {
		key := strings.ToLower(m)
		mentionSet[key] = struct{}{}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keywords = append(keywords, m)
	}

	for _, tok := range tokenize(text) {
		if _, dup := seen[tok]; dup {
			continue
		}
		if _, isMention := mentionSet[tok]; !isMention {
			if len(tok) < p.minKeywordLength {
				continue
			}
			if _, stop := p.stopwords[tok]; stop {
				continue
			}
			if isNumeric(tok) {
				continue
			}
		}
		seen[tok] = struct{}{}
		keywords = append(keywords, tok)
	}

	return keywords
}
