package assembler

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dshills/ctxgraph/pkg/types"
)

const ellipsis = "..."

// TypeBudgets is the token allowance for one entity's content, by type
var TypeBudgets = map[types.EntityType]int{
	types.EntityClass:     800,
	types.EntityInterface: 800,
	types.EntityStruct:    800,
	types.EntityFunction:  400,
	types.EntityMethod:    400,
	types.EntityVariable:  100,
	types.EntityConstant:  100,
	types.EntityField:     100,
	types.EntityFile:      600,
	types.EntityDocument:  500,
	types.EntitySection:   500,
}

// DefaultTypeBudget applies to types missing from TypeBudgets
const DefaultTypeBudget = 300

// BudgetFor returns the content token allowance for t
func BudgetFor(t types.EntityType) int {
	if b, ok := TypeBudgets[t]; ok {
		return b
	}
	return DefaultTypeBudget
}

// Shrink reduces content to the type's budget. Class-like content keeps its
// outline, function-like content keeps its signature, and whatever is still
// too long is cut at a line boundary.
func Shrink(t types.EntityType, content string) string {
	budget := BudgetFor(t)
	if EstimateTokens(content) <= budget {
		return content
	}

	switch {
	case t.IsClassLike():
		content = ClassOutline(content)
	case t.IsFunctionLike():
		content = FunctionSignature(content)
	}
	if EstimateTokens(content) <= budget {
		return content
	}
	return TruncateLines(content, budget)
}

// TruncateLines keeps whole leading lines plus an ellipsis line within
// budget tokens. A first line longer than the budget is cut mid-line.
func TruncateLines(content string, budget int) string {
	maxChars := budget*4 - len(ellipsis) - 1
	if maxChars <= 0 {
		return ellipsis
	}

	lines := strings.Split(content, "\n")
	var b strings.Builder
	kept := 0
	for _, line := range lines {
		extra := len(line)
		if kept > 0 {
			extra++
		}
		if b.Len()+extra > maxChars {
			break
		}
		if kept > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		kept++
	}
	if kept == 0 {
		cut := maxChars
		for cut > 0 && !utf8.RuneStart(lines[0][cut]) {
			cut--
		}
		return lines[0][:cut] + ellipsis
	}
	return b.String() + "\n" + ellipsis
}

func indentOf(line string) int {
	return len(line) - len(strings.TrimLeftFunc(line, unicode.IsSpace))
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

func isComment(line string) bool {
	t := strings.TrimSpace(line)
	for _, p := range []string{"//", "/*", "*", "#", `"""`, "'''", "--"} {
		if strings.HasPrefix(t, p) {
			// "#[" and "#!" are attributes, not comments
			return p != "#" || !(strings.HasPrefix(t, "#[") || strings.HasPrefix(t, "#!"))
		}
	}
	return false
}

// isClosing reports lines that only close a block
func isClosing(line string) bool {
	t := strings.TrimSpace(line)
	return t == "end" || strings.Trim(t, "})];,") == ""
}

// parenDelta returns the change in parenthesis depth over a line
func parenDelta(line string) int {
	return strings.Count(line, "(") - strings.Count(line, ")")
}

// ClassOutline keeps the leading doc comment, the declaration line,
// member-level property declarations, the constructor signature, public
// method signatures and the closing line. Member level is the indentation of
// the first line indented past the declaration; deeper lines are bodies.
func ClassOutline(content string) string {
	lines := strings.Split(content, "\n")

	decl := 0
	for decl < len(lines) && (isBlank(lines[decl]) || isComment(lines[decl])) {
		decl++
	}
	if decl == len(lines) {
		return content
	}

	out := append([]string(nil), lines[:decl+1]...)
	base := indentOf(lines[decl])

	member := -1
	for i := decl + 1; i < len(lines); i++ {
		if !isBlank(lines[i]) && indentOf(lines[i]) > base {
			member = indentOf(lines[i])
			break
		}
	}
	if member < 0 {
		return content
	}

	for i := decl + 1; i < len(lines); i++ {
		line := lines[i]
		if isBlank(line) {
			continue
		}
		ind := indentOf(line)
		if ind <= base {
			if isClosing(line) {
				out = append(out, line)
			}
			break
		}
		if ind != member || isComment(line) {
			continue
		}

		if !isMethodLine(line) {
			if !isClosing(line) {
				out = append(out, line)
			}
			continue
		}

		// gather a multi-line signature
		sig := []string{line}
		depth := parenDelta(line)
		for depth > 0 && i+1 < len(lines) {
			i++
			sig = append(sig, lines[i])
			depth += parenDelta(lines[i])
		}
		if isConstructor(line) || isPublicMethod(line) {
			out = append(out, stripBody(sig)...)
		}
	}
	return strings.Join(out, "\n")
}

// methodKeywords precede a method name in common languages
var methodKeywords = []string{"def ", "async def ", "func ", "fun ", "fn ", "function "}

// modifiers are skipped when locating a member's name
var modifiers = map[string]bool{
	"public": true, "private": true, "protected": true, "internal": true, "static": true,
	"async": true, "abstract": true, "override": true, "final": true, "virtual": true,
	"readonly": true, "export": true, "pub": true, "open": true, "suspend": true,
}

// isMethodLine reports member lines that declare a callable: a "(" that comes
// before any "=" or ":" type annotation
func isMethodLine(line string) bool {
	t := strings.TrimSpace(line)
	for _, k := range methodKeywords {
		if strings.HasPrefix(t, k) {
			return true
		}
	}
	paren := strings.Index(t, "(")
	if paren <= 0 {
		return false
	}
	if eq := strings.Index(t, "="); eq >= 0 && eq < paren {
		return false
	}
	if colon := strings.Index(t, ":"); colon >= 0 && colon < paren {
		return false
	}
	return true
}

// memberName returns the identifier a member line declares
func memberName(line string) string {
	t := strings.TrimSpace(line)
	for _, k := range methodKeywords {
		t = strings.TrimPrefix(t, k)
	}
	fields := strings.FieldsFunc(t, func(r rune) bool {
		return unicode.IsSpace(r) || r == '('
	})
	for _, f := range fields {
		if modifiers[f] {
			continue
		}
		return f
	}
	return ""
}

func isConstructor(line string) bool {
	name := memberName(line)
	return name == "constructor" || name == "__init__" || name == "init" || name == "initialize" ||
		strings.HasPrefix(name, "New")
}

func isPublicMethod(line string) bool {
	t := " " + strings.TrimSpace(line) + " "
	if strings.Contains(t, " private ") || strings.Contains(t, " protected ") {
		return false
	}
	name := memberName(line)
	return name != "" && !strings.HasPrefix(name, "_") && !strings.HasPrefix(name, "#")
}

// stripBody replaces an opening body on the signature's last line with an ellipsis
func stripBody(sig []string) []string {
	out := append([]string(nil), sig...)
	last := strings.TrimRight(out[len(out)-1], " \t")
	switch {
	case strings.HasSuffix(last, "{"):
		last += " " + ellipsis + " }"
	case strings.HasSuffix(last, ":"):
		last += " " + ellipsis
	}
	out[len(out)-1] = last
	return out
}

// FunctionSignature keeps leading comments and every line through the one
// that balances the signature's parentheses, then an ellipsis line in place
// of the body
func FunctionSignature(content string) string {
	lines := strings.Split(content, "\n")

	depth := 0
	opened := false
	for i, line := range lines {
		if !opened && (isBlank(line) || isComment(line)) {
			continue
		}
		if strings.Contains(line, "(") {
			opened = true
		}
		depth += parenDelta(line)
		if opened && depth <= 0 {
			if i == len(lines)-1 {
				return content
			}
			indent := line[:indentOf(line)]
			return strings.Join(lines[:i+1], "\n") + "\n" + indent + "    " + ellipsis
		}
	}
	return content
}
