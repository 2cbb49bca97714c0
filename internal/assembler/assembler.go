package assembler

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/dshills/ctxgraph/pkg/types"
)

const (
	// DefaultMaxTokens is the token budget used when Options.MaxTokens is unset
	DefaultMaxTokens = 4000

	// DefaultFileCacheSize bounds the number of files whose lines are cached
	DefaultFileCacheSize = 100
)

// Format selects how entities are rendered
type Format string

const (
	FormatStructured Format = "structured" // Markdown sections with fenced code
	FormatXML        Format = "xml"
	FormatPlain      Format = "plain"
)

// ParseFormat converts a user supplied string to a Format, defaulting to structured
func ParseFormat(s string) Format {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatXML:
		return FormatXML
	case FormatPlain:
		return FormatPlain
	}
	return FormatStructured
}

// Options control one assembly
type Options struct {
	MaxTokens       int
	Format          Format
	GroupByCategory bool
	IncludeSources  bool   // Append a sources footer
	Suffix          string // Appended verbatim after everything else
}

// Category groups entity types for grouped output
type Category string

const (
	CategoryCode          Category = "code"
	CategoryDocumentation Category = "documentation"
	CategoryConversation  Category = "conversation"
	CategoryOther         Category = "other"
)

// categoryOrder is the fixed output order of grouped results
var categoryOrder = []Category{CategoryCode, CategoryDocumentation, CategoryConversation, CategoryOther}

// CategoryOf maps an entity type to its output group
func CategoryOf(t types.EntityType) Category {
	switch t {
	case types.EntityFunction, types.EntityMethod, types.EntityClass, types.EntityStruct,
		types.EntityInterface, types.EntityTypeDef, types.EntityVariable, types.EntityConstant,
		types.EntityField, types.EntityFile, types.EntityPackage, types.EntityModule:
		return CategoryCode
	case types.EntityDocument, types.EntitySection:
		return CategoryDocumentation
	case types.EntityConversation, types.EntityMessage:
		return CategoryConversation
	}
	return CategoryOther
}

// Assembler turns ranked search results into a token-budgeted context.
// Source lines read from disk are kept in a bounded LRU cache; the cache is
// safe for concurrent use, so one Assembler may serve concurrent requests.
type Assembler struct {
	files  *fileCache
	logger *slog.Logger
}

// Option configures an Assembler
type Option func(*Assembler)

// WithRoot resolves relative entity file paths against dir
func WithRoot(dir string) Option {
	return func(a *Assembler) { a.files.root = dir }
}

// WithFileCacheSize bounds the number of cached files
func WithFileCacheSize(n int) Option {
	return func(a *Assembler) { a.files = newFileCache(a.files.root, n) }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New creates an assembler
func New(opts ...Option) *Assembler {
	a := &Assembler{
		files:  newFileCache("", DefaultFileCacheSize),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ClearCache drops every cached file
func (a *Assembler) ClearCache() {
	a.files.clear()
}

// Assemble renders results into a context that fits opts.MaxTokens. It never
// fails: results that do not fit are left out and Truncated is set. Room for
// the suffix and for the sources footer of the included results is kept
// free. The first rendered entity is included over budget only when it
// alone exceeds MaxTokens.
func (a *Assembler) Assemble(ctx context.Context, results []types.SearchResult, opts Options) *types.AssembledContext {
	start := time.Now()
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.Format == "" {
		opts.Format = FormatStructured
	}
	f := formatterFor(opts.Format)

	ctx, span := startAssembleSpan(ctx, len(results), opts)
	defer span.End()

	candidates := a.orderCandidates(results, opts.GroupByCategory)

	suffix, truncated := fitSuffix(opts.Suffix, opts.MaxTokens)
	suffixCost := EstimateTokens(suffix)

	var (
		body     strings.Builder
		included []types.SearchResult
		used     int
		current  Category
	)

	for _, r := range candidates {
		if ctx.Err() != nil {
			truncated = true
			break
		}

		var text strings.Builder
		cat := CategoryOf(r.Entity.Type)
		if opts.GroupByCategory && (len(included) == 0 || cat != current) {
			if len(included) > 0 {
				text.WriteString(f.groupEnd(current))
			}
			text.WriteString(f.groupStart(cat))
		}
		text.WriteString(f.entity(r, a.content(r.Entity)))

		cost := EstimateTokens(text.String())
		closing := 0
		if opts.GroupByCategory {
			closing = EstimateTokens(f.groupEnd(cat))
		}
		footer := 0
		if opts.IncludeSources {
			footer = EstimateTokens(f.sources(sourcesOf(append(slices.Clip(included), r))))
		}

		over := used+cost+closing+footer+suffixCost > opts.MaxTokens
		if over {
			truncated = true
			if len(included) > 0 || cost+closing <= opts.MaxTokens {
				break
			}
			// a lone unit larger than the whole budget is irreducible
		}

		body.WriteString(text.String())
		included = append(included, r)
		current = cat
		used += cost
		if over {
			break
		}
	}
	if opts.GroupByCategory && len(included) > 0 {
		body.WriteString(f.groupEnd(current))
	}

	out := strings.TrimRight(body.String(), "\n")
	if out != "" {
		out += "\n"
	}
	sources := sourcesOf(included)
	if opts.IncludeSources && len(sources) > 0 {
		out += f.sources(sources)
	}
	out += suffix

	assembled := &types.AssembledContext{
		Text:       out,
		Sources:    sources,
		TokenCount: EstimateTokens(out),
		Truncated:  truncated,
	}

	a.logger.Debug("context assembled",
		"candidates", len(candidates),
		"included", len(sources),
		"tokens", assembled.TokenCount,
		"truncated", truncated,
	)
	setAssembleSpanResult(span, assembled)
	recordAssembleMetrics(ctx, time.Since(start), assembled)
	return assembled
}

// orderCandidates drops nil entities and file stubs shadowed by a result
// from the same file, then orders by score (and category when grouping)
func (a *Assembler) orderCandidates(results []types.SearchResult, group bool) []types.SearchResult {
	covered := make(map[string]struct{})
	for _, r := range results {
		if r.Entity != nil && r.Entity.Type != types.EntityFile && r.Entity.FilePath != "" {
			covered[r.Entity.FilePath] = struct{}{}
		}
	}

	out := make([]types.SearchResult, 0, len(results))
	for _, r := range results {
		if r.Entity == nil {
			continue
		}
		if r.Entity.Type == types.EntityFile {
			if _, ok := covered[r.Entity.FilePath]; ok {
				continue
			}
		}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if group {
		rank := make(map[Category]int, len(categoryOrder))
		for i, c := range categoryOrder {
			rank[c] = i
		}
		sort.SliceStable(out, func(i, j int) bool {
			return rank[CategoryOf(out[i].Entity.Type)] < rank[CategoryOf(out[j].Entity.Type)]
		})
	}
	return out
}

// content returns the entity text shrunk to its type budget
func (a *Assembler) content(e *types.Entity) string {
	text := e.Content
	if text == "" && e.FilePath != "" {
		lines, err := a.files.lines(e.FilePath)
		if err != nil {
			a.logger.Debug("source unavailable", "file", e.FilePath, "error", err)
		} else {
			text = sliceLines(lines, e.StartLine, e.EndLine)
		}
	}
	if text == "" {
		text = e.Signature
	}
	return Shrink(e.Type, text)
}

// sliceLines returns lines start..end (1-based, inclusive); zero bounds mean the file edge
func sliceLines(lines []string, start, end int) string {
	if start < 1 {
		start = 1
	}
	if end <= 0 || end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return ""
	}
	return strings.Join(lines[start-1:end], "\n")
}

func sourcesOf(results []types.SearchResult) []types.ContextSource {
	sources := make([]types.ContextSource, 0, len(results))
	for _, r := range results {
		sources = append(sources, types.ContextSource{
			EntityID: r.Entity.ID,
			Name:     displayName(r.Entity),
			Type:     r.Entity.Type,
			FilePath: r.Entity.FilePath,
			Line:     r.Entity.StartLine,
			Score:    r.Score,
		})
	}
	return sources
}

func displayName(e *types.Entity) string {
	if e.QualifiedName != "" {
		return e.QualifiedName
	}
	return e.Name
}

// fitSuffix cuts a suffix that alone exceeds maxTokens down to the budget on
// a rune boundary and reports whether it cut
func fitSuffix(suffix string, maxTokens int) (string, bool) {
	if EstimateTokens(suffix) <= maxTokens {
		return suffix, false
	}
	return strings.ToValidUTF8(suffix[:maxTokens*4], ""), true
}

// EstimateTokens approximates the token count of s as ceil(len/4)
func EstimateTokens(s string) int {
	return (len(s) + 3) / 4
}
