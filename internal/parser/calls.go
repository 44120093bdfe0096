package parser

import (
	"regexp"
	"strings"

	"github.com/unicore-dev/uce/internal/model"
)

// callPattern matches `name(` or `receiver.name(` call sites. It is
// intentionally permissive (textual, not semantic) — call resolution
// against actual symbols happens in the knowledge graph builder, which
// tolerates unresolved callees via placeholder nodes.
var callPattern = regexp.MustCompile(`(?:([A-Za-z_][\w.]*)\.)?([A-Za-z_]\w*)\s*\(`)

// controlKeywords are identifiers that look like calls but are language
// control-flow constructs, not invocations.
var controlKeywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "catch": true,
	"return": true, "func": true, "function": true, "def": true,
	"elif": true, "else": true, "with": true, "except": true,
}

// extractCallReferences finds call sites and attributes each to the
// innermost enclosing symbol (by line-range containment), or leaves
// Caller empty when the call occurs at file scope.
func extractCallReferences(source []byte, symbols []*model.Symbol) []*model.CallReference {
	text := string(source)
	var refs []*model.CallReference

	for _, m := range callPattern.FindAllStringSubmatchIndex(text, -1) {
		name := text[m[4]:m[5]]
		if controlKeywords[name] {
			continue
		}

		line := strings.Count(text[:m[0]], "\n") + 1
		col := m[0] - strings.LastIndex(text[:m[0]], "\n") - 1

		var receiver string
		methodCall := m[2] != -1 && m[3] > m[2]
		if methodCall {
			receiver = text[m[2]:m[3]]
		}

		refs = append(refs, &model.CallReference{
			Callee:     name,
			Caller:     enclosingSymbol(symbols, line),
			Line:       line,
			Column:     col,
			MethodCall: methodCall,
			Receiver:   receiver,
			ArgCount:   countArgsAt(text, m[1]),
		})
	}

	return refs
}

// enclosingSymbol returns the name of the smallest function or method
// symbol whose line range contains line, or "" if no function or method
// contains it.
func enclosingSymbol(symbols []*model.Symbol, line int) string {
	var best *model.Symbol
	for _, s := range symbols {
		if s.Kind != model.SymbolKindFunction && s.Kind != model.SymbolKindMethod {
			continue
		}
		if line < s.StartLine || line > s.EndLine {
			continue
		}
		if best == nil || (s.EndLine-s.StartLine) < (best.EndLine-best.StartLine) {
			best = s
		}
	}
	if best == nil {
		return ""
	}
	return best.Name
}

// countArgsAt does a best-effort paren-depth scan from just past the
// opening "(" at offset to count top-level comma-separated arguments.
func countArgsAt(text string, openParenOffset int) int {
	depth := 1
	hasContent := false
	count := 0
	i := openParenOffset
	for i < len(text) && depth > 0 {
		switch text[i] {
		case '(', '[', '{':
			depth++
			hasContent = true
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 1 {
				count++
			}
			hasContent = true
		default:
			if depth == 1 && !isSpace(text[i]) {
				hasContent = true
			}
		}
		i++
	}
	if !hasContent {
		return 0
	}
	return count + 1
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
