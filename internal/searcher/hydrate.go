package searcher

import (
	"context"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dshills/ctxgraph/pkg/types"
)

const maxSnippetLen = 200

// hydrate resolves fused ids into entities in score order until Limit
// results are collected. Missing entities and entities outside the
// requested types are skipped.
func (s *Searcher) hydrate(ctx context.Context, fused []Fused, parsed *types.ParsedQuery, req SearchRequest) []types.SearchResult {
	results := make([]types.SearchResult, 0, min(len(fused), req.Limit))
	terms := matchTerms(parsed)

	for _, f := range fused {
		if len(results) >= req.Limit || ctx.Err() != nil {
			break
		}

		e, err := s.entities.GetEntity(ctx, f.EntityID)
		if err != nil {
			s.logger.Debug("dropping unresolvable result", "entity_id", f.EntityID, "error", err)
			continue
		}
		if !typeAllowed(e.Type, req.EntityTypes) {
			continue
		}

		results = append(results, types.SearchResult{
			Entity: e,
			Score:  f.Score,
			Source: f.Source,
			Match:  buildMatch(e, terms),
		})
	}
	return results
}

func typeAllowed(t types.EntityType, allowed []types.EntityType) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == t {
			return true
		}
	}
	return false
}

// matchTerms returns the lower-cased keywords and mention texts to highlight
func matchTerms(parsed *types.ParsedQuery) []string {
	seen := make(map[string]struct{})
	var terms []string
	add := func(t string) {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			return
		}
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		terms = append(terms, t)
	}
	for _, m := range parsed.Mentions {
		add(mentionLookupText(m.Text))
	}
	for _, k := range parsed.Keywords {
		add(k)
	}
	return terms
}

// buildMatch finds the first field containing a query term and returns a
// snippet of it with every term occurrence highlighted
func buildMatch(e *types.Entity, terms []string) *types.MatchInfo {
	if len(terms) == 0 {
		return nil
	}

	fields := []struct {
		name  string
		value string
	}{
		{"name", e.Name},
		{"qualified_name", e.QualifiedName},
		{"signature", e.Signature},
		{"summary", e.Summary},
		{"content", e.Content},
	}

	for _, f := range fields {
		if f.value == "" {
			continue
		}
		first := -1
		for _, t := range terms {
			if i, _ := indexFold(f.value, t, 0); i >= 0 && (first < 0 || i < first) {
				first = i
			}
		}
		if first < 0 {
			continue
		}

		snippet := snippetAround(f.value, first)
		return &types.MatchInfo{
			Snippet:    snippet,
			Field:      f.name,
			Highlights: highlights(snippet, terms),
		}
	}
	return nil
}

// indexFold returns the byte span in s of the first case-insensitive
// occurrence of term at or after offset from, or -1. Spans always fall on
// rune boundaries of s.
func indexFold(s, term string, from int) (start, end int) {
	if term == "" {
		return -1, -1
	}
	for i := range s[from:] {
		if n, ok := prefixFold(s[from+i:], term); ok {
			return from + i, from + i + n
		}
	}
	return -1, -1
}

// prefixFold reports whether s starts with prefix under simple case folding
// and how many bytes of s the match covers
func prefixFold(s, prefix string) (int, bool) {
	n := 0
	for prefix != "" {
		if n == len(s) {
			return 0, false
		}
		r1, n1 := utf8.DecodeRuneInString(s[n:])
		r2, n2 := utf8.DecodeRuneInString(prefix)
		if r1 != r2 && !equalFoldRune(r1, r2) {
			return 0, false
		}
		n += n1
		prefix = prefix[n2:]
	}
	return n, true
}

func equalFoldRune(a, b rune) bool {
	for r := unicode.SimpleFold(a); r != a; r = unicode.SimpleFold(r) {
		if r == b {
			return true
		}
	}
	return false
}

// snippetAround returns the trimmed line containing byte offset at, capped
// at maxSnippetLen bytes on a rune boundary
func snippetAround(text string, at int) string {
	start := strings.LastIndexByte(text[:at], '\n') + 1
	end := len(text)
	if i := strings.IndexByte(text[at:], '\n'); i >= 0 {
		end = at + i
	}
	line := strings.TrimSpace(text[start:end])
	if len(line) > maxSnippetLen {
		line = strings.ToValidUTF8(line[:maxSnippetLen], "")
	}
	return line
}

// highlights returns the merged, sorted spans of every case-insensitive
// term occurrence in snippet
func highlights(snippet string, terms []string) []types.Span {
	var spans []types.Span
	for _, t := range terms {
		for offset := 0; offset < len(snippet); {
			start, end := indexFold(snippet, t, offset)
			if start < 0 {
				break
			}
			spans = append(spans, types.Span{Start: start, End: end})
			offset = end
		}
	}
	if len(spans) == 0 {
		return nil
	}

	sort.Slice(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		return spans[i].End > spans[j].End
	})
	merged := spans[:1]
	for _, sp := range spans[1:] {
		last := &merged[len(merged)-1]
		if sp.Start <= last.End {
			last.End = max(last.End, sp.End)
			continue
		}
		merged = append(merged, sp)
	}
	return merged
}
