package parser

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"unicode"

	"github.com/dshills/ctxgraph/pkg/types"
)

// LanguageMarkdown is the Language recorded on markdown entities
const LanguageMarkdown = "markdown"

// MetaLevel records a section's heading level
const MetaLevel = "level"

var (
	atxHeading   = regexp.MustCompile(`^(#{1,6})[ \t]+(.*?)[ \t]*#*[ \t]*$`)
	markdownLink = regexp.MustCompile(`\[[^\]]*\]\(([^)\s]+)[^)]*\)`)
)

type heading struct {
	line  int // 0-based
	level int
	text  string
}

// ParseMarkdown turns a markdown file into a document entity with one section
// entity per heading. Sections are contained by the nearest enclosing heading
// or by the document. Links to other markdown files become RELATES_TO references.
func (p *Parser) ParseMarkdown(info FileInfo, src []byte) *types.ParseResult {
	result := &types.ParseResult{}
	lines := strings.Split(strings.ReplaceAll(string(src), "\r\n", "\n"), "\n")
	if n := len(lines); n > 1 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	headings := scanHeadings(lines)

	docID := FileID(info.RelPath)
	doc := types.Entity{
		ID:            docID,
		Type:          types.EntityDocument,
		Name:          baseName(info.RelPath),
		QualifiedName: info.RelPath,
		FilePath:      info.RelPath,
		StartLine:     1,
		EndLine:       max(len(lines), 1),
		Language:      LanguageMarkdown,
		Metadata:      map[string]string{},
	}
	for _, h := range headings {
		if h.level == 1 {
			doc.Name = h.text
			break
		}
	}
	preambleEnd := len(lines)
	if len(headings) > 0 {
		preambleEnd = headings[0].line
	}
	doc.Content = strings.TrimSpace(strings.Join(lines[:preambleEnd], "\n"))
	doc.Summary = firstParagraph(lines, 0, len(lines))
	result.Entities = append(result.Entities, doc)
	addLinks(result, docID, info.RelPath, lines[:preambleEnd])

	type open struct {
		level int
		id    string
	}
	var stack []open
	slugs := make(map[string]int)

	for i, h := range headings {
		end := len(lines)
		if i+1 < len(headings) {
			end = headings[i+1].line
		}

		slug := slugify(h.text)
		if slug == "" {
			slug = fmt.Sprintf("section-%d", h.line+1)
		}
		slugs[slug]++
		if n := slugs[slug]; n > 1 {
			slug = fmt.Sprintf("%s-%d", slug, n-1)
		}

		body := lines[h.line:end]
		content := strings.TrimRight(strings.Join(body, "\n"), "\n")
		sec := types.Entity{
			ID:            SymbolID(info.RelPath, slug),
			Type:          types.EntitySection,
			Name:          h.text,
			QualifiedName: info.RelPath + "#" + slug,
			FilePath:      info.RelPath,
			StartLine:     h.line + 1,
			EndLine:       h.line + 1 + strings.Count(content, "\n"),
			Language:      LanguageMarkdown,
			Content:       content,
			Summary:       firstParagraph(lines, h.line+1, end),
			Metadata:      map[string]string{MetaLevel: fmt.Sprint(h.level)},
		}
		if h.text == "" {
			sec.Name = slug
		}
		result.Entities = append(result.Entities, sec)

		for len(stack) > 0 && stack[len(stack)-1].level >= h.level {
			stack = stack[:len(stack)-1]
		}
		parent := docID
		if len(stack) > 0 {
			parent = stack[len(stack)-1].id
		}
		result.Relationships = append(result.Relationships, types.Relationship{
			SourceID: parent,
			TargetID: sec.ID,
			Type:     types.RelContains,
			Weight:   types.DefaultRelationshipWeight,
		})
		stack = append(stack, open{level: h.level, id: sec.ID})

		addLinks(result, sec.ID, info.RelPath, body)
	}
	return result
}

// scanHeadings finds ATX headings outside fenced code blocks
func scanHeadings(lines []string) []heading {
	var out []heading
	fence := ""
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if fence != "" {
			if strings.HasPrefix(trimmed, fence) {
				fence = ""
			}
			continue
		}
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			fence = trimmed[:3]
			continue
		}
		// more than three spaces of indent is a code block
		if indentOf(line) > 3 {
			continue
		}
		if m := atxHeading.FindStringSubmatch(trimmed); m != nil {
			out = append(out, heading{line: i, level: len(m[1]), text: strings.TrimSpace(m[2])})
		}
	}
	return out
}

// firstParagraph returns the first run of prose lines in lines[from:to],
// skipping headings and fenced code
func firstParagraph(lines []string, from, to int) string {
	var para []string
	fenced := false
	for i := from; i < to; i++ {
		t := strings.TrimSpace(lines[i])
		if strings.HasPrefix(t, "```") || strings.HasPrefix(t, "~~~") {
			if len(para) > 0 {
				break
			}
			fenced = !fenced
			continue
		}
		if fenced || strings.HasPrefix(t, "#") {
			if len(para) > 0 {
				break
			}
			continue
		}
		if t == "" {
			if len(para) > 0 {
				break
			}
			continue
		}
		para = append(para, t)
	}
	return strings.Join(para, " ")
}

// addLinks records RELATES_TO references for relative links to markdown files
func addLinks(result *types.ParseResult, sourceID, relPath string, lines []string) {
	seen := make(map[string]bool)
	for _, line := range lines {
		for _, m := range markdownLink.FindAllStringSubmatch(line, -1) {
			target := m[1]
			if strings.Contains(target, "://") || strings.HasPrefix(target, "mailto:") || strings.HasPrefix(target, "#") {
				continue
			}
			if i := strings.IndexByte(target, '#'); i >= 0 {
				target = target[:i]
			}
			if !IsMarkdown(target) {
				continue
			}
			resolved := path.Clean(path.Join(path.Dir(relPath), target))
			if strings.HasPrefix(resolved, "../") || resolved == relPath || seen[resolved] {
				continue
			}
			seen[resolved] = true
			result.References = append(result.References, types.RelationshipRef{
				SourceID:            sourceID,
				TargetQualifiedName: resolved,
				Type:                types.RelRelatesTo,
			})
		}
	}
}

// IsMarkdown reports whether a path names a markdown file
func IsMarkdown(p string) bool {
	ext := strings.ToLower(path.Ext(p))
	return ext == ".md" || ext == ".markdown"
}

// slugify lower-cases text, keeps letters and digits and joins words with hyphens
func slugify(text string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case (r == ' ' || r == '-' || r == '_') && b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func indentOf(line string) int {
	n := 0
	for _, r := range line {
		switch r {
		case ' ':
			n++
		case '\t':
			n += 4
		default:
			return n
		}
	}
	return n
}
