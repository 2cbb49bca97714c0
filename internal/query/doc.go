// Package query parses natural-language retrieval queries.
//
// Parse produces a types.ParsedQuery holding:
//   - the detected intent and its confidence, from an ordered rule list
//   - entity mentions (backtick spans, paths, PascalCase types, camelCase calls)
//   - stopword-filtered keywords that always keep mentioned names
//   - synonym expansions from a bidirectional table
//
// # Basic Usage
//
//	p := query.New(query.WithMinKeywordLength(3))
//	parsed := p.Parse("how does `authenticateUser` work")
//	// parsed.Intent == types.IntentExplain
//	// parsed.Mentions[0].Kind == types.MentionFunction
//
// Custom synonyms can be loaded from YAML:
//
//	table, err := query.LoadSynonyms("synonyms.yaml")
//	if err != nil {
//	    return err
//	}
//	p := query.New(query.WithSynonyms(table))
package query
