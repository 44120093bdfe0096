package parser

import (
	"regexp"
	"strings"

	"github.com/unicore-dev/uce/internal/model"
)

// Import/export statements are simple enough lexically that a regex sweep
// over the raw source, rather than a full grammar walk, is sufficient for
// both the grammar and regex backends — keeping their schema and
// invariants identical regardless of which backend produced them.
var (
	goImportBlock  = regexp.MustCompile(`(?m)^import\s*\(\s*\n((?:.|\n)*?)\n\)`)
	goImportSingle = regexp.MustCompile(`(?m)^import\s+(?:(\w+)\s+)?"([^"]+)"`)
	goImportLine   = regexp.MustCompile(`(?m)^\s*(?:(\w+)\s+)?"([^"]+)"`)

	jsImportLine = regexp.MustCompile(`(?m)^import\s+(type\s+)?(?:(\*\s+as\s+\w+|\{[^}]*\}|\w+(?:\s*,\s*\{[^}]*\})?)\s+from\s+)?['"]([^'"]+)['"]`)

	jsExportNamedFrom = regexp.MustCompile(`(?m)^export\s+(type\s+)?\{([^}]*)\}\s+from\s+['"]([^'"]+)['"]`)
	jsExportStarFrom  = regexp.MustCompile(`(?m)^export\s+\*\s+from\s+['"]([^'"]+)['"]`)
	jsExportNamedList = regexp.MustCompile(`(?m)^export\s+(type\s+)?\{([^}]*)\}\s*;?\s*$`)
	jsExportDecl      = regexp.MustCompile(`(?m)^export\s+(default\s+)?(?:async\s+)?(class|function|interface|const|let|var)\s+(\w+)`)

	pyImportLine     = regexp.MustCompile(`(?m)^import\s+([\w.]+)(?:\s+as\s+(\w+))?`)
	pyFromImportLine = regexp.MustCompile(`(?m)^from\s+([\w.]+)\s+import\s+(.+)$`)
)

func extractImportsExports(source []byte, language string) ([]*model.Import, []*model.Export) {
	switch language {
	case "go":
		return extractGoImports(source), nil
	case "typescript", "tsx", "javascript", "jsx":
		return extractJSImports(source), extractJSExports(source)
	case "python":
		return extractPyImports(source), nil
	default:
		return nil, nil
	}
}

func extractGoImports(source []byte) []*model.Import {
	text := string(source)
	var imports []*model.Import

	lineOf := func(offset int) int {
		return strings.Count(text[:offset], "\n") + 1
	}

	if block := goImportBlock.FindStringSubmatchIndex(text); block != nil {
		body := text[block[2]:block[3]]
		for _, m := range goImportLine.FindAllStringSubmatchIndex(body, -1) {
			alias := ""
			if m[2] != -1 {
				alias = body[m[2]:m[3]]
			}
			path := body[m[4]:m[5]]
			imports = append(imports, &model.Import{
				Source: path,
				Kind:   model.ImportKindNamed,
				Names:  aliasName(alias),
				Line:   lineOf(block[2]) + strings.Count(body[:m[0]], "\n"),
			})
		}
		return imports
	}

	for _, m := range goImportSingle.FindAllStringSubmatchIndex(text, -1) {
		alias := ""
		if m[2] != -1 {
			alias = text[m[2]:m[3]]
		}
		path := text[m[4]:m[5]]
		imports = append(imports, &model.Import{
			Source: path,
			Kind:   model.ImportKindNamed,
			Names:  aliasName(alias),
			Line:   lineOf(m[0]),
		})
	}
	return imports
}

func aliasName(alias string) []model.ImportedName {
	if alias == "" {
		return nil
	}
	return []model.ImportedName{{Name: alias}}
}

func extractJSImports(source []byte) []*model.Import {
	text := string(source)
	var imports []*model.Import

	for _, m := range jsImportLine.FindAllStringSubmatchIndex(text, -1) {
		typeOnly := m[2] != -1 && m[3] > m[2]
		clause := ""
		if m[4] != -1 {
			clause = text[m[4]:m[5]]
		}
		source := text[m[6]:m[7]]
		line := strings.Count(text[:m[0]], "\n") + 1

		kind := model.ImportKindSideEffect
		var names []model.ImportedName
		switch {
		case clause == "":
			kind = model.ImportKindSideEffect
		case strings.HasPrefix(clause, "*"):
			kind = model.ImportKindNamespace
		case strings.HasPrefix(clause, "{"):
			kind = model.ImportKindNamed
			names = parseNamedList(clause)
		default:
			kind = model.ImportKindDefault
			names = []model.ImportedName{{Name: strings.TrimSpace(clause)}}
		}

		imports = append(imports, &model.Import{
			Source:   source,
			Kind:     kind,
			Names:    names,
			Line:     line,
			TypeOnly: typeOnly,
		})
	}
	return imports
}

func extractJSExports(source []byte) []*model.Export {
	text := string(source)
	var exports []*model.Export

	for _, m := range jsExportNamedFrom.FindAllStringSubmatchIndex(text, -1) {
		typeOnly := m[2] != -1 && m[3] > m[2]
		exports = append(exports, &model.Export{
			Source:   text[m[6]:m[7]],
			Kind:     model.ImportKindReExport,
			Names:    parseNamedList("{" + text[m[4]:m[5]] + "}"),
			Line:     strings.Count(text[:m[0]], "\n") + 1,
			TypeOnly: typeOnly,
		})
	}

	for _, m := range jsExportStarFrom.FindAllStringSubmatchIndex(text, -1) {
		exports = append(exports, &model.Export{
			Source: text[m[2]:m[3]],
			Kind:   model.ImportKindReExport,
			Line:   strings.Count(text[:m[0]], "\n") + 1,
		})
	}

	for _, m := range jsExportNamedList.FindAllStringSubmatchIndex(text, -1) {
		typeOnly := m[2] != -1 && m[3] > m[2]
		exports = append(exports, &model.Export{
			Kind:     model.ImportKindNamed,
			Names:    parseNamedList("{" + text[m[4]:m[5]] + "}"),
			Line:     strings.Count(text[:m[0]], "\n") + 1,
			TypeOnly: typeOnly,
		})
	}

	for _, m := range jsExportDecl.FindAllStringSubmatchIndex(text, -1) {
		exports = append(exports, &model.Export{
			Kind:  model.ImportKindDefault,
			Names: []model.ImportedName{{Name: text[m[6]:m[7]]}},
			Line:  strings.Count(text[:m[0]], "\n") + 1,
		})
	}

	return exports
}

func parseNamedList(clause string) []model.ImportedName {
	clause = strings.TrimPrefix(clause, "{")
	clause = strings.TrimSuffix(clause, "}")
	parts := strings.Split(clause, ",")
	var names []model.ImportedName
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if idx := strings.Index(p, " as "); idx != -1 {
			names = append(names, model.ImportedName{
				Name:  strings.TrimSpace(p[:idx]),
				Alias: strings.TrimSpace(p[idx+4:]),
			})
			continue
		}
		names = append(names, model.ImportedName{Name: p})
	}
	return names
}

func extractPyImports(source []byte) []*model.Import {
	text := string(source)
	var imports []*model.Import

	for _, m := range pyFromImportLine.FindAllStringSubmatchIndex(text, -1) {
		modPath := text[m[2]:m[3]]
		namesClause := text[m[4]:m[5]]
		line := strings.Count(text[:m[0]], "\n") + 1

		var names []model.ImportedName
		for _, n := range strings.Split(namesClause, ",") {
			n = strings.TrimSpace(n)
			if n == "" || n == "(" || n == ")" {
				continue
			}
			n = strings.Trim(n, "()")
			if idx := strings.Index(n, " as "); idx != -1 {
				names = append(names, model.ImportedName{
					Name:  strings.TrimSpace(n[:idx]),
					Alias: strings.TrimSpace(n[idx+4:]),
				})
				continue
			}
			names = append(names, model.ImportedName{Name: n})
		}

		imports = append(imports, &model.Import{
			Source: modPath,
			Kind:   model.ImportKindNamed,
			Names:  names,
			Line:   line,
		})
	}

	for _, m := range pyImportLine.FindAllStringSubmatchIndex(text, -1) {
		modPath := text[m[2]:m[3]]
		line := strings.Count(text[:m[0]], "\n") + 1
		var alias string
		if m[4] != -1 {
			alias = text[m[4]:m[5]]
		}
		imports = append(imports, &model.Import{
			Source: modPath,
			Kind:   model.ImportKindDefault,
			Names:  aliasName(alias),
			Line:   line,
		})
	}

	return imports
}
