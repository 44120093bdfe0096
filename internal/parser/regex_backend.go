package parser

import (
	"regexp"
	"strings"

	"github.com/unicore-dev/uce/internal/model"
)

// Regex-fallback declaration patterns, grouped per language. These are
// deliberately line-anchored and textual: when grammar-based parsing is
// unavailable the schema must stay identical, only metadata richness
// (parent chain precision, parameter types, decorators) may degrade.
var (
	goFuncDecl   = regexp.MustCompile(`^func\s+(?:\([^)]*\)\s*)?([A-Za-z_]\w*)\s*\(`)
	goTypeDecl   = regexp.MustCompile(`^type\s+([A-Za-z_]\w*)\s+(struct|interface)\b`)
	goConstDecl  = regexp.MustCompile(`^const\s+([A-Za-z_]\w*)\b`)
	goVarDecl    = regexp.MustCompile(`^var\s+([A-Za-z_]\w*)\b`)

	jsFuncDecl  = regexp.MustCompile(`^(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s*\*?\s*([A-Za-z_$]\w*)\s*\(`)
	jsClassDecl = regexp.MustCompile(`^(?:export\s+)?(?:default\s+)?class\s+([A-Za-z_$]\w*)`)
	jsMethodDecl = regexp.MustCompile(`^(?:public\s+|private\s+|protected\s+|static\s+|async\s+)*([A-Za-z_$]\w*)\s*\([^)]*\)\s*\{`)
	jsConstFunc  = regexp.MustCompile(`^(?:export\s+)?(?:const|let|var)\s+([A-Za-z_$]\w*)\s*=\s*(?:async\s*)?(?:\([^)]*\)|[A-Za-z_$]\w*)\s*=>`)

	pyFuncDecl  = regexp.MustCompile(`^(async\s+)?def\s+([A-Za-z_]\w*)\s*\(`)
	pyClassDecl = regexp.MustCompile(`^class\s+([A-Za-z_]\w*)`)
)

// extractRegexSymbols produces the same Symbol schema as the grammar
// backend using pure textual matching, with brace-depth (Go/JS/TS) or
// indentation (Python) nesting inference for Parent and EndLine.
func extractRegexSymbols(source []byte, language string) []*model.Symbol {
	switch language {
	case "go":
		return regexSymbolsBraceBased(source, language, goDeclMatcher)
	case "typescript", "tsx", "javascript", "jsx":
		return regexSymbolsBraceBased(source, language, jsDeclMatcher)
	case "python":
		return regexSymbolsIndentBased(source, language)
	default:
		return nil
	}
}

type declMatch struct {
	kind model.SymbolKind
	name string
}

func goDeclMatcher(trimmed string) (declMatch, bool) {
	if m := goFuncDecl.FindStringSubmatch(trimmed); m != nil {
		return declMatch{model.SymbolKindFunction, m[1]}, true
	}
	if m := goTypeDecl.FindStringSubmatch(trimmed); m != nil {
		kind := model.SymbolKindType
		if m[2] == "interface" {
			kind = model.SymbolKindInterface
		}
		return declMatch{kind, m[1]}, true
	}
	if m := goConstDecl.FindStringSubmatch(trimmed); m != nil {
		return declMatch{model.SymbolKindConstant, m[1]}, true
	}
	if m := goVarDecl.FindStringSubmatch(trimmed); m != nil {
		return declMatch{model.SymbolKindVariable, m[1]}, true
	}
	return declMatch{}, false
}

func jsDeclMatcher(trimmed string) (declMatch, bool) {
	if m := jsClassDecl.FindStringSubmatch(trimmed); m != nil {
		return declMatch{model.SymbolKindClass, m[1]}, true
	}
	if m := jsFuncDecl.FindStringSubmatch(trimmed); m != nil {
		return declMatch{model.SymbolKindFunction, m[1]}, true
	}
	if m := jsConstFunc.FindStringSubmatch(trimmed); m != nil {
		return declMatch{model.SymbolKindFunction, m[1]}, true
	}
	if m := jsMethodDecl.FindStringSubmatch(trimmed); m != nil {
		if controlKeywords[m[1]] {
			return declMatch{}, false
		}
		return declMatch{model.SymbolKindMethod, m[1]}, true
	}
	return declMatch{}, false
}

type stackEntry struct {
	sym       *model.Symbol
	openDepth int
}

// regexSymbolsBraceBased handles brace-delimited languages (Go, JS, TS):
// nesting is inferred from brace depth, not indentation.
func regexSymbolsBraceBased(source []byte, language string, matcher func(string) (declMatch, bool)) []*model.Symbol {
	lines := strings.Split(string(source), "\n")
	var symbols []*model.Symbol
	var stack []stackEntry
	depth := 0

	for i, raw := range lines {
		lineNo := i + 1
		trimmed := strings.TrimSpace(raw)

		if d, name, ok := matchAndGet(matcher, trimmed); ok {
			kind := d
			sym := &model.Symbol{
				Name:      name,
				Kind:      kind,
				StartLine: lineNo,
				EndLine:   lineNo,
				Exported:  isExported(name, language),
			}
			sym.Visibility = visibilityFor(sym.Exported, name, language)
			doc, docLine := absorbDocstring(source, lineNo, language)
			sym.Docstring = doc
			if docLine > 0 && docLine < sym.StartLine {
				sym.StartLine = docLine
			}
			if len(stack) > 0 {
				sym.Parent = stack[len(stack)-1].sym.Name
				if sym.Kind == model.SymbolKindFunction {
					sym.Kind = model.SymbolKindMethod
				}
			}
			symbols = append(symbols, sym)
			stack = append(stack, stackEntry{sym: sym, openDepth: depth})
		}

		depth += strings.Count(raw, "{") - strings.Count(raw, "}")

		for len(stack) > 0 && depth <= stack[len(stack)-1].openDepth {
			top := stack[len(stack)-1]
			top.sym.EndLine = lineNo
			stack = stack[:len(stack)-1]
		}
	}

	for _, e := range stack {
		e.sym.EndLine = len(lines)
	}

	return symbols
}

func matchAndGet(matcher func(string) (declMatch, bool), trimmed string) (model.SymbolKind, string, bool) {
	d, ok := matcher(trimmed)
	if !ok {
		return "", "", false
	}
	return d.kind, d.name, true
}

// regexSymbolsIndentBased handles Python: nesting is inferred from
// indentation level of "def"/"class" lines.
func regexSymbolsIndentBased(source []byte, language string) []*model.Symbol {
	lines := strings.Split(string(source), "\n")
	var symbols []*model.Symbol

	type indentEntry struct {
		sym    *model.Symbol
		indent int
	}
	var stack []indentEntry

	closeTo := func(indent int, lineNo int) {
		for len(stack) > 0 && stack[len(stack)-1].indent >= indent {
			stack[len(stack)-1].sym.EndLine = lineNo - 1
			stack = stack[:len(stack)-1]
		}
	}

	for i, raw := range lines {
		lineNo := i + 1
		trimmed := strings.TrimLeft(raw, " \t")
		if trimmed == "" {
			continue
		}
		indent := len(raw) - len(trimmed)

		var kind model.SymbolKind
		var name string
		if m := pyFuncDecl.FindStringSubmatch(trimmed); m != nil {
			kind, name = model.SymbolKindFunction, m[2]
		} else if m := pyClassDecl.FindStringSubmatch(trimmed); m != nil {
			kind, name = model.SymbolKindClass, m[1]
		} else {
			continue
		}

		// Widen the span over the leading comment block before closing
		// enclosing scopes, so a sibling's EndLine lands above the block
		// instead of inside it.
		doc, docLine := absorbDocstring(source, lineNo, language)
		startLine := lineNo
		if docLine > 0 && docLine < startLine {
			startLine = docLine
		}
		closeTo(indent, startLine)

		sym := &model.Symbol{
			Name:      name,
			Kind:      kind,
			StartLine: startLine,
			EndLine:   lineNo,
			Exported:  isExported(name, language),
			Docstring: doc,
		}
		if len(stack) > 0 {
			sym.Parent = stack[len(stack)-1].sym.Name
			if sym.Kind == model.SymbolKindFunction {
				sym.Kind = model.SymbolKindMethod
			}
		}
		sym.Visibility = visibilityFor(sym.Exported, name, language)

		symbols = append(symbols, sym)
		stack = append(stack, indentEntry{sym: sym, indent: indent})
	}

	closeTo(0, len(lines)+1)
	for _, e := range stack {
		e.sym.EndLine = len(lines)
	}

	return symbols
}
