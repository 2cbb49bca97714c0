package query

import (
	"regexp"

	"github.com/dshills/ctxgraph/pkg/types"
)

// defaultIntentConfidence is reported when no rule matches
const defaultIntentConfidence = 0.3

// intentRule maps a pattern on the lower-cased query to an intent
type intentRule struct {
	pattern *regexp.Regexp
	intent  types.Intent
	weight  float64
}

// intentRules are evaluated in order; the highest weight wins and ties keep
// the earlier rule.
var intentRules = []intentRule{
	{regexp.MustCompile(`\bhow\b.*\b(does|do|is|are)\b.*\bwork`), types.IntentExplain, 0.9},
	{regexp.MustCompile(`\b(explain|describe)\b|\bwhat\s+(is|does|are|do)\b`), types.IntentExplain, 0.85},
	{regexp.MustCompile(`\b(compare|versus|vs)\b|\bdifference\s+between\b`), types.IntentCompare, 0.85},
	{regexp.MustCompile(`\b(find|where|locate)\b|\bsearch\s+for\b`), types.IntentFind, 0.8},
	{regexp.MustCompile(`\b(list|enumerate)\b|\bshow\s+(me\s+)?all\b`), types.IntentList, 0.8},
	{regexp.MustCompile(`\bwhy\b`), types.IntentWhy, 0.8},
	{regexp.MustCompile(`\bhow\s+(to|do|can|should|would)\b`), types.IntentHow, 0.75},
	{regexp.MustCompile(`\b(errors?|bugs?|fail(s|ed|ing|ure)?|crash(es|ed)?|panics?|debug|broken|fix)\b`), types.IntentDebug, 0.7},
}

// detectIntent returns the best matching intent and its confidence
func detectIntent(lower string, rules []intentRule) (types.Intent, float64) {
	intent := types.IntentGeneral
	confidence := 0.0

	for _, rule := range rules {
		if rule.weight <= confidence {
			continue
		}
		if rule.pattern.MatchString(lower) {
			intent = rule.intent
			confidence = rule.weight
		}
	}

	if confidence == 0 {
		return types.IntentGeneral, defaultIntentConfidence
	}
	return intent, confidence
}
