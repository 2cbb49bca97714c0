package parser

import (
	"strings"

	"github.com/dshills/ctxgraph/pkg/types"
)

// Naming-pattern tags recorded under the "patterns" metadata key
const (
	PatternAggregateRoot = "aggregate_root"
	PatternEntity        = "entity"
	PatternValueObject   = "value_object"
	PatternRepository    = "repository"
	PatternService       = "service"
	PatternCommand       = "command"
	PatternQuery         = "query"
	PatternHandler       = "handler"
)

// entityIndicators mark domain nouns that usually name entities
var entityIndicators = []string{"Order", "User", "Product", "Account", "Customer", "Item"}

// DetectPatterns returns the design-pattern tags suggested by a type's name.
// Only type-like entities are tagged.
func DetectPatterns(name string, t types.EntityType) []string {
	if !t.IsClassLike() {
		return nil
	}

	var tags []string
	hasSuffix := func(suffixes ...string) bool {
		for _, s := range suffixes {
			if strings.HasSuffix(name, s) {
				return true
			}
		}
		return false
	}

	isEntity := false
	if hasSuffix("Aggregate", "AggregateRoot") {
		tags = append(tags, PatternAggregateRoot)
		isEntity = true
	}
	if !isEntity && hasSuffix("Entity") {
		isEntity = true
	}
	if !isEntity && !hasSuffix("Service", "Repository", "Handler") {
		for _, indicator := range entityIndicators {
			if strings.Contains(name, indicator) {
				isEntity = true
				break
			}
		}
	}
	if isEntity {
		tags = append(tags, PatternEntity)
	}

	if hasSuffix("VO", "ValueObject") {
		tags = append(tags, PatternValueObject)
	}
	if hasSuffix("Repository", "Repo") {
		tags = append(tags, PatternRepository)
	}
	if hasSuffix("Service") {
		tags = append(tags, PatternService)
	}
	if hasSuffix("Command", "Cmd") {
		tags = append(tags, PatternCommand)
	}
	if hasSuffix("Query") {
		tags = append(tags, PatternQuery)
	}
	if hasSuffix("Handler") {
		tags = append(tags, PatternHandler)
	}
	return tags
}

// IsEntityLikeStruct reports whether struct field names include an identifier field
func IsEntityLikeStruct(fields []string) bool {
	for _, field := range fields {
		lower := strings.ToLower(field)
		if lower == "id" || strings.HasSuffix(lower, "id") {
			return true
		}
	}
	return false
}

// addPattern appends tag to a comma separated tag list unless present
func addPattern(list, tag string) string {
	if list == "" {
		return tag
	}
	for _, existing := range strings.Split(list, ",") {
		if existing == tag {
			return list
		}
	}
	return list + "," + tag
}
