package incindex

import (
	"path"
	"sort"
	"strings"

	"github.com/unicore-dev/uce/internal/model"
)

// relativeExtensions are probed, in order, against a relative import source
// that doesn't already carry a recognized extension.
var relativeExtensions = []string{"", ".ts", ".tsx", ".js", ".jsx", ".mts", ".cts", ".mjs", ".cjs", ".py", ".go"}

// relativeIndexNames are probed against a relative import source resolved
// as a directory.
var relativeIndexNames = []string{
	"index.ts", "index.tsx", "index.js", "index.jsx", "index.mjs",
	"__init__.py",
}

// resolveDependencies walks every file's imports, resolves relative sources
// against the importing file's directory (with extension probing and
// directory-index fallback), and records a DependencyEdge for every import
// that resolves to a file already present in idx. External packages — any
// source without a "." or "/" prefix — are ignored, per the
// indexer's dependency-resolution rule. It also populates FileIndex.ImportedBy.
func resolveDependencies(idx *model.ProjectIndex) {
	paths := make([]string, 0, len(idx.Files))
	for p := range idx.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var edges []model.DependencyEdge
	for _, p := range paths {
		fi := idx.Files[p]
		bySource := make(map[string][]string) // resolved target -> raw import strings
		var order []string

		for _, imp := range fi.Imports {
			if !isRelativeImport(imp.Source) {
				continue
			}
			target, ok := resolveImportSource(idx, p, imp.Source)
			if !ok {
				continue
			}
			if _, seen := bySource[target]; !seen {
				order = append(order, target)
			}
			bySource[target] = append(bySource[target], imp.Source)
		}

		for _, target := range order {
			edges = append(edges, model.DependencyEdge{
				From:    p,
				To:      target,
				Imports: bySource[target],
			})
			idx.Files[target].ImportedBy = append(idx.Files[target].ImportedBy, p)
		}
	}

	for _, p := range paths {
		sort.Strings(idx.Files[p].ImportedBy)
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	idx.Dependencies = edges
}

// isRelativeImport reports whether source names a path relative to the
// importing file rather than a package from an external registry.
func isRelativeImport(source string) bool {
	return strings.HasPrefix(source, ".") || strings.HasPrefix(source, "/")
}

// resolveImportSource resolves a relative import source against the
// directory of the importing file fromPath, probing known extensions and
// directory-index filenames, and returns the matching path already present
// in idx.Files.
func resolveImportSource(idx *model.ProjectIndex, fromPath, source string) (string, bool) {
	dir := path.Dir(fromPath)
	joined := path.Join(dir, source)
	joined = path.Clean(joined)

	if hasRecognizedExtension(joined) {
		if _, ok := idx.Files[joined]; ok {
			return joined, true
		}
	}

	for _, ext := range relativeExtensions {
		candidate := joined + ext
		if _, ok := idx.Files[candidate]; ok {
			return candidate, true
		}
	}

	for _, name := range relativeIndexNames {
		candidate := path.Join(joined, name)
		if _, ok := idx.Files[candidate]; ok {
			return candidate, true
		}
	}

	return "", false
}

func hasRecognizedExtension(p string) bool {
	ext := path.Ext(p)
	switch ext {
	case ".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs", ".mts", ".cts", ".py", ".go":
		return true
	default:
		return false
	}
}

// computeTotals recomputes IndexTotals and per-language LanguageStats from
// scratch over idx.Files.
func computeTotals(idx *model.ProjectIndex) {
	totals := model.IndexTotals{}
	languages := make(map[string]model.LanguageStats)

	for _, fi := range idx.Files {
		totals.Files++
		totals.Symbols += len(fi.Symbols)
		totals.Chunks += len(fi.Chunks)

		stats := languages[fi.Language]
		stats.Files++
		stats.Symbols += len(fi.Symbols)
		stats.Chunks += len(fi.Chunks)
		languages[fi.Language] = stats
	}

	idx.Totals = totals
	idx.Languages = languages
}
