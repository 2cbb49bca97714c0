package query

import (
	"path"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/dshills/ctxgraph/pkg/types"
)

var (
	backtickPattern   = regexp.MustCompile("`([^`\n]+)`")
	pathTokenPattern  = regexp.MustCompile(`[\w.\-/]+`)
	pascalPattern     = regexp.MustCompile(`\b[A-Z][A-Za-z0-9]*[a-z][A-Za-z0-9]*\b`)
	camelCallPattern  = regexp.MustCompile(`\b([a-z][a-z0-9]*(?:[A-Z][a-z0-9]*)+)\(`)
	lowerCamelPattern = regexp.MustCompile(`^[a-z][a-z0-9]*(?:[A-Z][A-Za-z0-9]*)+$`)
	snakePattern      = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*(?:_[A-Za-z0-9]+)+$`)
)

// knownExtensions are file extensions recognized as file references
var knownExtensions = map[string]struct{}{
	"go": {}, "ts": {}, "tsx": {}, "js": {}, "jsx": {}, "mjs": {}, "py": {}, "rs": {},
	"java": {}, "kt": {}, "rb": {}, "php": {}, "cs": {}, "c": {}, "h": {}, "cc": {},
	"cpp": {}, "hpp": {}, "swift": {}, "scala": {}, "sh": {}, "sql": {}, "proto": {},
	"md": {}, "rst": {}, "txt": {}, "yaml": {}, "yml": {}, "json": {}, "toml": {},
	"mod": {}, "html": {}, "css": {},
}

// HasKnownExtension reports whether s ends in a recognized file extension
func HasKnownExtension(s string) bool {
	ext := path.Ext(s)
	if len(ext) < 2 || len(ext) == len(s) {
		return false
	}
	_, ok := knownExtensions[strings.ToLower(ext[1:])]
	return ok
}

// isPathLike reports whether a token looks like a file or directory path
func isPathLike(tok string) bool {
	if HasKnownExtension(tok) {
		return true
	}
	if strings.HasPrefix(tok, "./") || strings.HasPrefix(tok, "../") {
		return len(tok) > 3
	}
	if strings.Count(tok, "/") < 2 {
		return false
	}
	for _, seg := range strings.Split(strings.Trim(tok, "/"), "/") {
		if seg == "" {
			return false
		}
	}
	return true
}

// isMultiWordPascal reports whether s has at least two upper-case humps
func isMultiWordPascal(s string) bool {
	upper := 0
	for _, r := range s {
		if unicode.IsUpper(r) {
			upper++
		}
	}
	return upper >= 2
}

// classifyCode guesses the mention kind for text found between backticks
func classifyCode(text string) types.MentionKind {
	switch {
	case isPathLike(text):
		return types.MentionFile
	case strings.HasSuffix(text, "()"), strings.HasSuffix(text, "("):
		return types.MentionFunction
	case lowerCamelPattern.MatchString(text):
		return types.MentionFunction
	case pascalPattern.MatchString(text) && pascalPattern.FindString(text) == text:
		return types.MentionClass
	case snakePattern.MatchString(text):
		return types.MentionVariable
	default:
		return types.MentionCode
	}
}

// mentionSet accumulates non-overlapping mentions
type mentionSet struct {
	mentions []types.EntityMention
}

// add accepts a mention unless it overlaps an accepted one
func (s *mentionSet) add(text string, kind types.MentionKind, start, end int) bool {
	if text == "" || start >= end {
		return false
	}
	for _, m := range s.mentions {
		if m.Overlaps(start, end) {
			return false
		}
	}
	s.mentions = append(s.mentions, types.EntityMention{Text: text, Kind: kind, Start: start, End: end})
	return true
}

// sorted returns the mentions ordered by start offset
func (s *mentionSet) sorted() []types.EntityMention {
	out := make([]types.EntityMention, len(s.mentions))
	copy(out, s.mentions)
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// extractMentions runs the scanners in priority order over the original text
func extractMentions(q string) []types.EntityMention {
	set := &mentionSet{}

	// Backtick spans; offsets point at the inner text
	for _, loc := range backtickPattern.FindAllStringSubmatchIndex(q, -1) {
		start, end := loc[2], loc[3]
		inner := q[start:end]
		trimmed := strings.TrimSpace(inner)
		if trimmed == "" {
			continue
		}
		start += strings.Index(inner, trimmed)
		end = start + len(trimmed)
		set.add(trimmed, classifyCode(trimmed), start, end)
	}

	// Path-like tokens
	for _, loc := range pathTokenPattern.FindAllStringIndex(q, -1) {
		start, end := loc[0], loc[1]
		// Trailing sentence punctuation is not part of the path
		for end > start && strings.ContainsRune(".-/", rune(q[end-1])) {
			end--
		}
		tok := q[start:end]
		if isPathLike(tok) {
			set.add(tok, types.MentionFile, start, end)
		}
	}

	// PascalCase multi-word identifiers
	for _, loc := range pascalPattern.FindAllStringIndex(q, -1) {
		tok := q[loc[0]:loc[1]]
		if isMultiWordPascal(tok) {
			set.add(tok, types.MentionClass, loc[0], loc[1])
		}
	}

	// lowerCamelCase identifiers followed by a call paren
	for _, loc := range camelCallPattern.FindAllStringSubmatchIndex(q, -1) {
		set.add(q[loc[2]:loc[3]], types.MentionFunction, loc[2], loc[3])
	}

	return set.sorted()
}
