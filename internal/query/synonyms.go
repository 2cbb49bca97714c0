package query

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// seedSynonyms is one-directional; the parser symmetrizes it at construction
var seedSynonyms = map[string][]string{
	"auth":      {"authentication", "authorization", "login"},
	"config":    {"configuration", "settings", "options"},
	"db":        {"database", "storage", "store"},
	"err":       {"error"},
	"error":     {"exception", "failure"},
	"func":      {"function"},
	"function":  {"method", "procedure"},
	"create":    {"add", "insert", "new"},
	"delete":    {"remove", "destroy"},
	"get":       {"fetch", "retrieve", "read", "load"},
	"update":    {"modify", "change", "edit"},
	"init":      {"initialize", "setup", "bootstrap"},
	"user":      {"account", "member"},
	"handler":   {"controller", "endpoint"},
	"request":   {"req", "http"},
	"response":  {"resp", "reply"},
	"test":      {"spec", "testing"},
	"cache":     {"memoize", "lru"},
	"search":    {"query", "lookup"},
	"parse":     {"parser", "decode"},
	"serialize": {"encode", "marshal"},
	"log":       {"logger", "logging"},
	"struct":    {"type", "class"},
}

// symmetrize builds a bidirectional synonym table from one-directional tables
func symmetrize(tables ...map[string][]string) map[string][]string {
	sets := make(map[string]map[string]struct{})
	link := func(a, b string) {
		if a == b {
			return
		}
		if sets[a] == nil {
			sets[a] = make(map[string]struct{})
		}
		sets[a][b] = struct{}{}
	}

	for _, table := range tables {
		for term, syns := range table {
			term = strings.ToLower(strings.TrimSpace(term))
			if term == "" {
				continue
			}
			for _, syn := range syns {
				syn = strings.ToLower(strings.TrimSpace(syn))
				if syn == "" {
					continue
				}
				link(term, syn)
				link(syn, term)
			}
		}
	}

	out := make(map[string][]string, len(sets))
	for term, set := range sets {
		list := make([]string, 0, len(set))
		for syn := range set {
			list = append(list, syn)
		}
		sort.Strings(list)
		out[term] = list
	}
	return out
}

// LoadSynonyms reads a YAML file mapping a term to its synonyms
func LoadSynonyms(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read synonyms file: %w", err)
	}

	var table map[string][]string
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse synonyms file: %w", err)
	}
	return table, nil
}

// expand returns synonyms of the keywords that are not keywords themselves
func (p *Parser) expand(keywords []string) []string {
	present := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		present[strings.ToLower(kw)] = struct{}{}
	}

	expanded := make([]string, 0)
	added := make(map[string]struct{})
	for _, kw := range keywords {
		for _, syn := range p.synonyms[strings.ToLower(kw)] {
			if _, ok := present[syn]; ok {
				continue
			}
			if _, ok := added[syn]; ok {
				continue
			}
			added[syn] = struct{}{}
			expanded = append(expanded, syn)
		}
	}
	return expanded
}
