package assembler

import (
	"encoding/xml"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dshills/ctxgraph/pkg/types"
)

// formatter renders entities, group wrappers and the sources footer
type formatter interface {
	entity(r types.SearchResult, content string) string
	groupStart(c Category) string
	groupEnd(c Category) string
	sources(s []types.ContextSource) string
}

func formatterFor(f Format) formatter {
	switch f {
	case FormatXML:
		return xmlFormatter{}
	case FormatPlain:
		return plainFormatter{}
	}
	return structuredFormatter{}
}

var categoryTitles = map[Category]string{
	CategoryCode:          "Code",
	CategoryDocumentation: "Documentation",
	CategoryConversation:  "Conversation",
	CategoryOther:         "Other",
}

func location(e *types.Entity) string {
	switch {
	case e.FilePath == "":
		return ""
	case e.StartLine > 0:
		return fmt.Sprintf("%s:%d", e.FilePath, e.StartLine)
	}
	return e.FilePath
}

// languageExtensions maps file extensions to code fence languages
var languageExtensions = map[string]string{
	".go":    "go",
	".py":    "python",
	".js":    "javascript",
	".jsx":   "jsx",
	".ts":    "typescript",
	".tsx":   "tsx",
	".java":  "java",
	".rs":    "rust",
	".rb":    "ruby",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".cs":    "csharp",
	".php":   "php",
	".swift": "swift",
	".kt":    "kotlin",
	".sh":    "bash",
	".sql":   "sql",
	".md":    "markdown",
	".yaml":  "yaml",
	".yml":   "yaml",
	".json":  "json",
	".toml":  "toml",
}

func fenceLanguage(e *types.Entity) string {
	if e.Language != "" {
		return e.Language
	}
	return languageExtensions[strings.ToLower(filepath.Ext(e.FilePath))]
}

// structuredFormatter renders markdown sections
type structuredFormatter struct{}

func (structuredFormatter) entity(r types.SearchResult, content string) string {
	e := r.Entity
	var b strings.Builder
	fmt.Fprintf(&b, "### %s (%s)\n", displayName(e), e.Type)
	if loc := location(e); loc != "" {
		fmt.Fprintf(&b, "`%s`\n", loc)
	}
	if e.Summary != "" && !strings.Contains(content, e.Summary) {
		b.WriteString(strings.TrimSpace(e.Summary))
		b.WriteString("\n")
	}
	if content != "" {
		if CategoryOf(e.Type) == CategoryCode {
			fmt.Fprintf(&b, "```%s\n%s\n```\n", fenceLanguage(e), strings.TrimRight(content, "\n"))
		} else {
			b.WriteString(strings.TrimRight(content, "\n"))
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
	return b.String()
}

func (structuredFormatter) groupStart(c Category) string {
	return "## " + categoryTitles[c] + "\n\n"
}

func (structuredFormatter) groupEnd(Category) string { return "" }

func (structuredFormatter) sources(s []types.ContextSource) string {
	var b strings.Builder
	b.WriteString("\n## Sources\n\n")
	for i, src := range s {
		fmt.Fprintf(&b, "%d. %s (%s)", i+1, src.Name, src.Type)
		if src.FilePath != "" {
			fmt.Fprintf(&b, " %s", src.FilePath)
			if src.Line > 0 {
				fmt.Fprintf(&b, ":%d", src.Line)
			}
		}
		fmt.Fprintf(&b, " score=%.4f\n", src.Score)
	}
	return b.String()
}

// xmlFormatter renders tagged markup suited to prompt templates
type xmlFormatter struct{}

func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

func (xmlFormatter) entity(r types.SearchResult, content string) string {
	e := r.Entity
	var b strings.Builder
	fmt.Fprintf(&b, `<entity id="%s" type="%s" name="%s"`, escape(e.ID), escape(string(e.Type)), escape(displayName(e)))
	if e.FilePath != "" {
		fmt.Fprintf(&b, ` file="%s"`, escape(e.FilePath))
	}
	if e.StartLine > 0 {
		fmt.Fprintf(&b, ` line="%d"`, e.StartLine)
	}
	fmt.Fprintf(&b, ` score="%.4f">`+"\n", r.Score)
	if e.Summary != "" && !strings.Contains(content, e.Summary) {
		fmt.Fprintf(&b, "<summary>%s</summary>\n", escape(strings.TrimSpace(e.Summary)))
	}
	if content != "" {
		fmt.Fprintf(&b, "<content>\n%s\n</content>\n", escape(strings.TrimRight(content, "\n")))
	}
	b.WriteString("</entity>\n")
	return b.String()
}

func (xmlFormatter) groupStart(c Category) string {
	return fmt.Sprintf("<group category=\"%s\">\n", c)
}

func (xmlFormatter) groupEnd(Category) string {
	return "</group>\n"
}

func (xmlFormatter) sources(s []types.ContextSource) string {
	var b strings.Builder
	b.WriteString("<sources>\n")
	for _, src := range s {
		fmt.Fprintf(&b, `<source id="%s" name="%s" type="%s"`, escape(src.EntityID), escape(src.Name), escape(string(src.Type)))
		if src.FilePath != "" {
			fmt.Fprintf(&b, ` file="%s"`, escape(src.FilePath))
		}
		if src.Line > 0 {
			fmt.Fprintf(&b, ` line="%d"`, src.Line)
		}
		fmt.Fprintf(&b, ` score="%.4f"/>`+"\n", src.Score)
	}
	b.WriteString("</sources>\n")
	return b.String()
}

// plainFormatter renders undecorated text
type plainFormatter struct{}

func (plainFormatter) entity(r types.SearchResult, content string) string {
	e := r.Entity
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s]", displayName(e), e.Type)
	if loc := location(e); loc != "" {
		fmt.Fprintf(&b, " %s", loc)
	}
	b.WriteString("\n")
	if e.Summary != "" && !strings.Contains(content, e.Summary) {
		b.WriteString(strings.TrimSpace(e.Summary))
		b.WriteString("\n")
	}
	if content != "" {
		b.WriteString(strings.TrimRight(content, "\n"))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}

func (plainFormatter) groupStart(c Category) string {
	return "== " + categoryTitles[c] + " ==\n\n"
}

func (plainFormatter) groupEnd(Category) string { return "" }

func (plainFormatter) sources(s []types.ContextSource) string {
	var b strings.Builder
	b.WriteString("\nSources:\n")
	for _, src := range s {
		fmt.Fprintf(&b, "- %s (%s)", src.Name, src.Type)
		if src.FilePath != "" {
			fmt.Fprintf(&b, " %s", src.FilePath)
			if src.Line > 0 {
				fmt.Fprintf(&b, ":%d", src.Line)
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}
