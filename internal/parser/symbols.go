package parser

import (
	"bytes"
	"strings"

	"github.com/unicore-dev/uce/internal/model"
)

// maxDocAbsorbLines bounds the upward comment-absorption scan: at most 20
// lines, and the limit must be fixed before the loop starts, not
// recomputed against a moving start index.
const maxDocAbsorbLines = 20

// extractGrammarSymbols walks the syntax tree and produces enriched
// model.Symbol values: kind and name per the language's node-type
// classification, plus nesting (Parent), byte/column spans,
// exported/visibility, extends/implements, and docstrings.
func extractGrammarSymbols(tree *syntaxTree, source []byte, language string) []*model.Symbol {
	lg, ok := languageGrammarFor(language)
	if !ok || tree == nil || tree.root == nil {
		return nil
	}

	var symbols []*model.Symbol
	var stack []*model.Symbol

	var walk func(n *astNode)
	walk = func(n *astNode) {
		kind, matched := lg.symbolKinds[n.kind]
		var sym *model.Symbol
		if matched {
			if name := symbolName(n, source, language); name != "" {
				sym = &model.Symbol{
					Name:      name,
					Kind:      kind,
					StartLine: n.startRow + 1,
					EndLine:   n.endRow + 1,
					StartCol:  n.startCol,
					EndCol:    n.endCol,
					StartByte: n.startByte,
					EndByte:   n.endByte,
				}
				if len(stack) > 0 {
					sym.Parent = stack[len(stack)-1].Name
				}
				sym.Exported = isExported(name, language)
				sym.Visibility = visibilityFor(sym.Exported, name, language)
				doc, docLine := absorbDocstring(source, sym.StartLine, language)
				sym.Docstring = doc
				// The span must include the leading doc comment block.
				if docLine > 0 && docLine < sym.StartLine {
					sym.StartLine = docLine
					sym.StartCol = 0
					sym.StartByte = lineStartByte(source, docLine)
				}
				extends, implements := extractHeritage(n.text(source), language, kind)
				sym.Extends = extends
				sym.Implements = implements
				if language == "python" && kind == model.SymbolKindFunction && sym.Parent != "" {
					sym.Kind = model.SymbolKindMethod
				}

				symbols = append(symbols, sym)
				stack = append(stack, sym)
			}
		}

		for _, child := range n.children {
			walk(child)
		}

		if sym != nil {
			stack = stack[:len(stack)-1]
		}
	}
	walk(tree.root)

	return symbols
}

// symbolName locates the identifier child that names a symbol-declaring
// node, per language.
func symbolName(n *astNode, source []byte, language string) string {
	switch language {
	case "go":
		switch n.kind {
		case "function_declaration":
			if c := n.child("identifier"); c != nil {
				return c.text(source)
			}
		case "method_declaration":
			if c := n.child("field_identifier"); c != nil {
				return c.text(source)
			}
		case "type_declaration":
			for _, spec := range n.childrenOf("type_spec") {
				if c := spec.child("type_identifier"); c != nil {
					return c.text(source)
				}
			}
		case "const_declaration":
			for _, spec := range n.childrenOf("const_spec") {
				if c := spec.child("identifier"); c != nil {
					return c.text(source)
				}
			}
		case "var_declaration":
			for _, spec := range n.childrenOf("var_spec") {
				if c := spec.child("identifier"); c != nil {
					return c.text(source)
				}
			}
		}
	case "typescript", "tsx", "javascript", "jsx":
		if n.kind == "lexical_declaration" || n.kind == "variable_declaration" {
			for _, decl := range n.childrenOf("variable_declarator") {
				if c := decl.child("identifier"); c != nil {
					return c.text(source)
				}
			}
			return ""
		}
		if c := n.child("identifier"); c != nil {
			return c.text(source)
		}
		if c := n.child("type_identifier"); c != nil {
			return c.text(source)
		}
		if c := n.child("property_identifier"); c != nil {
			return c.text(source)
		}
	case "python":
		if c := n.child("identifier"); c != nil {
			return c.text(source)
		}
	}
	return ""
}

// isExported reports whether a symbol's name marks it as the language's
// public visibility: leading capital for Go, absence of the Python
// single-underscore convention. JS/TS exported-ness is decided at the
// export-statement level, not the declaration itself, so it returns true
// for every JS/TS symbol; the names a file exports are recorded only in
// the Export records built in imports.go, and Symbol.Exported is not
// updated from them.
func isExported(name, language string) bool {
	switch language {
	case "go":
		return len(name) > 0 && strings.ToUpper(name[:1]) == name[:1] && strings.ToLower(name[:1]) != name[:1]
	case "python":
		return !strings.HasPrefix(name, "_")
	default:
		return true
	}
}

func visibilityFor(exported bool, name, language string) model.Visibility {
	if language == "python" {
		switch {
		case strings.HasPrefix(name, "__") && !strings.HasSuffix(name, "__"):
			return model.VisibilityPrivate
		case strings.HasPrefix(name, "_"):
			return model.VisibilityProtected
		}
	}
	if exported {
		return model.VisibilityPublic
	}
	return model.VisibilityPrivate
}

// absorbDocstring scans upward from a symbol's first line, at most
// maxDocAbsorbLines lines, absorbing the contiguous comment block
// directly above it (blank lines between the block and the symbol are
// skipped; a blank above collected comments ends the block). The
// iteration bound is computed once before the loop runs. It returns the
// block's text and the 1-based line the block starts on (0 when there is
// none), so callers can widen the symbol's span to cover its docs.
func absorbDocstring(source []byte, startLine int, language string) (string, int) {
	lines := strings.Split(string(source), "\n")
	if startLine < 2 || startLine > len(lines)+1 {
		return "", 0
	}

	marker := lineCommentMarker(language)
	if marker == "" {
		return "", 0
	}

	limit := startLine - 1
	if limit > maxDocAbsorbLines {
		limit = maxDocAbsorbLines
	}

	var collected []string
	firstLine := 0
	idx := startLine - 2 // zero-indexed line before the symbol's first line
	for scanned := 0; scanned < limit && idx >= 0; scanned, idx = scanned+1, idx-1 {
		line := strings.TrimSpace(lines[idx])
		if line == "" {
			if len(collected) > 0 {
				break
			}
			continue
		}
		if !strings.HasPrefix(line, marker) {
			break
		}
		collected = append([]string{strings.TrimSpace(strings.TrimPrefix(line, marker))}, collected...)
		firstLine = idx + 1
	}

	return strings.Join(collected, "\n"), firstLine
}

// lineStartByte returns the byte offset where 1-based line n begins.
func lineStartByte(source []byte, n int) int {
	offset := 0
	for line := 1; line < n && offset < len(source); line++ {
		i := bytes.IndexByte(source[offset:], '\n')
		if i < 0 {
			return offset
		}
		offset += i + 1
	}
	return offset
}

func lineCommentMarker(language string) string {
	switch language {
	case "go", "typescript", "tsx", "javascript", "jsx":
		return "//"
	case "python":
		return "#"
	default:
		return ""
	}
}

// extractHeritage pulls extends/implements lists from a declaration's raw
// source. Only class/interface kinds carry heritage.
func extractHeritage(content, language string, kind model.SymbolKind) (extends, implements []string) {
	if kind != model.SymbolKindClass && kind != model.SymbolKindInterface {
		return nil, nil
	}
	firstLine := content
	if idx := strings.Index(content, "{"); idx != -1 {
		firstLine = content[:idx]
	} else if idx := strings.Index(content, ":"); idx != -1 && language == "python" {
		firstLine = content[:idx]
	}

	switch language {
	case "typescript", "tsx", "javascript", "jsx":
		if i := strings.Index(firstLine, "extends "); i != -1 {
			rest := firstLine[i+len("extends "):]
			rest = cutBefore(rest, "implements")
			extends = splitIdentList(rest)
		}
		if i := strings.Index(firstLine, "implements "); i != -1 {
			rest := firstLine[i+len("implements "):]
			implements = splitIdentList(rest)
		}
	case "python":
		if i := strings.Index(firstLine, "("); i != -1 {
			rest := firstLine[i+1:]
			if j := strings.LastIndex(rest, ")"); j != -1 {
				rest = rest[:j]
			}
			extends = splitIdentList(rest)
		}
	}
	return extends, implements
}

func cutBefore(s, sep string) string {
	if i := strings.Index(s, sep); i != -1 {
		return s[:i]
	}
	return s
}

func splitIdentList(s string) []string {
	parts := strings.Split(s, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
