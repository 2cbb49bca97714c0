package semantic

import (
	"strings"

	"github.com/dshills/ctxgraph/internal/parser"
	"github.com/dshills/ctxgraph/pkg/types"
)

// EntityText is the text embedded for an entity: a header naming its kind
// and qualified name, context lines for its file, receiver and naming
// patterns, then its signature, summary and content. The result is capped
// at MaxEmbedChars, preferring a line boundary near the cap.
func EntityText(e *types.Entity) string {
	if e == nil || e.Name == "" {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(string(e.Type))
	sb.WriteString(" ")
	if e.QualifiedName != "" {
		sb.WriteString(e.QualifiedName)
	} else {
		sb.WriteString(e.Name)
	}

	for _, line := range contextLines(e) {
		sb.WriteString("\n")
		sb.WriteString(line)
	}
	for _, part := range []string{e.Signature, e.Summary, e.Content} {
		if part == "" {
			continue
		}
		sb.WriteString("\n")
		sb.WriteString(part)
	}
	return truncateText(sb.String(), MaxEmbedChars)
}

// contextLines describes where an entity lives
func contextLines(e *types.Entity) []string {
	var lines []string
	if e.FilePath != "" && e.Type != types.EntityFile {
		lines = append(lines, "// file: "+e.FilePath)
	}
	if recv := e.Metadata[parser.MetaReceiver]; recv != "" {
		lines = append(lines, "// receiver: "+recv)
	}
	if patterns := e.Metadata[parser.MetaPatterns]; patterns != "" {
		lines = append(lines, "// patterns: "+patterns)
	}
	return lines
}

// truncateText cuts text to at most limit bytes. A newline in the last
// quarter of the window becomes the cut point; otherwise the cut drops any
// partial UTF-8 sequence.
func truncateText(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := text[:limit]
	if nl := strings.LastIndexByte(cut, '\n'); nl >= limit-limit/4 {
		return cut[:nl]
	}
	return strings.ToValidUTF8(cut, "")
}
