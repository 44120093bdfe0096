package parser

import (
	"fmt"
	"sort"
	"strings"

	"github.com/unicore-dev/uce/internal/coreconfig"
	"github.com/unicore-dev/uce/internal/model"
)

// cAST chunking: recursively break source on semantic boundaries until
// every piece is under maxNonWhitespaceChars, then greedily merge adjacent
// siblings back together up to targetSize. Sizes are measured in
// non-whitespace characters, not bytes or tokens, so indentation-heavy
// code isn't penalized relative to dense code.

const gapMergeThreshold = 10 // non-whitespace chars allowed between merge candidates

type chunkUnit struct {
	startLine int
	endLine   int
	symbol    *model.Symbol
	symbols   []string
	partial   bool
	partIndex int
	logical   string
}

// buildChunks turns a flat symbol list plus raw source into SemanticChunks,
// per the recursive-break-then-merge algorithm above.
func buildChunks(path string, source []byte, language string, symbols []*model.Symbol, imports []*model.Import, cfg coreconfig.ChunkConfig) []*model.SemanticChunk {
	lines := strings.Split(string(source), "\n")
	if len(lines) == 0 {
		return nil
	}

	topLevel := childrenOf(symbols, "")
	sort.Slice(topLevel, func(i, j int) bool { return topLevel[i].StartLine < topLevel[j].StartLine })

	var units []chunkUnit

	firstSymbolLine := len(lines) + 1
	if len(topLevel) > 0 {
		firstSymbolLine = topLevel[0].StartLine
	}
	if firstSymbolLine > 1 {
		header := joinLines(lines, 1, firstSymbolLine-1)
		if nonWhitespaceCount(header) > 0 {
			units = append(units, chunkUnit{
				startLine: 1,
				endLine:   firstSymbolLine - 1,
				logical:   "imports",
			})
		}
	}

	for _, sym := range topLevel {
		units = append(units, breakSymbol(lines, symbols, sym, cfg)...)
	}
	units = append(units, gapUnits(lines, topLevel)...)

	groups := mergeUnits(lines, units, cfg)
	groups = foldTrivialTerminal(lines, groups, cfg)

	usedIDs := make(map[string]int)
	chunks := make([]*model.SemanticChunk, 0, len(groups))
	for _, g := range groups {
		c := buildChunk(path, lines, language, g, imports)
		c.ID = uniqueID(usedIDs, c.ID)
		chunks = append(chunks, c)
	}
	return chunks
}

// gapUnits covers the source no symbol span owns: module-level statements
// between declarations and anything trailing the last declaration. Without
// these, the chunk set would not cover every non-trivial line of the file.
func gapUnits(lines []string, topLevel []*model.Symbol) []chunkUnit {
	var units []chunkUnit
	emit := func(start, end int) {
		if start > end {
			return
		}
		if nonWhitespaceCount(joinLines(lines, start, end)) == 0 {
			return
		}
		units = append(units, chunkUnit{
			startLine: start,
			endLine:   end,
			logical:   fmt.Sprintf("block-%d", start),
		})
	}

	for i, sym := range topLevel {
		if i+1 < len(topLevel) {
			emit(sym.EndLine+1, topLevel[i+1].StartLine-1)
		} else {
			emit(sym.EndLine+1, len(lines))
		}
	}
	return units
}

// foldTrivialTerminal handles the one case mergeUnits' forward-only greedy
// pass can leave behind: a terminal group too small to satisfy
// MinNonWhitespaceChars on its own. It is folded into the previous group
// when that still respects the hard ceiling, else dropped as a trivial
// orphan (per the chunk-size invariant: a terminal partial chunk must
// still satisfy the lower bound).
func foldTrivialTerminal(lines []string, groups [][]chunkUnit, cfg coreconfig.ChunkConfig) [][]chunkUnit {
	if len(groups) < 2 {
		return groups
	}
	last := groups[len(groups)-1]
	if last[0].logical == "imports" {
		return groups
	}
	size := groupSize(lines, last)
	if size >= cfg.MinNonWhitespaceChars {
		return groups
	}

	prev := groups[len(groups)-2]
	merged := append(append([]chunkUnit{}, prev...), last...)
	if groupSize(lines, merged) <= cfg.MaxNonWhitespaceChars {
		out := append([][]chunkUnit{}, groups[:len(groups)-2]...)
		return append(out, merged)
	}
	return groups[:len(groups)-1]
}

func groupSize(lines []string, group []chunkUnit) int {
	start := group[0].startLine
	end := group[len(group)-1].endLine
	return nonWhitespaceCount(joinLines(lines, start, end))
}

// childrenOf returns symbols whose Parent equals parent, in declaration order.
func childrenOf(symbols []*model.Symbol, parent string) []*model.Symbol {
	var out []*model.Symbol
	for _, s := range symbols {
		if s.Parent == parent {
			out = append(out, s)
		}
	}
	return out
}

// breakSymbol recursively splits a single top-level symbol's span into
// units no larger than cfg.MaxNonWhitespaceChars.
func breakSymbol(lines []string, allSymbols []*model.Symbol, sym *model.Symbol, cfg coreconfig.ChunkConfig) []chunkUnit {
	content := joinLines(lines, sym.StartLine, sym.EndLine)
	if nonWhitespaceCount(content) <= cfg.MaxNonWhitespaceChars {
		return []chunkUnit{{
			startLine: sym.StartLine,
			endLine:   sym.EndLine,
			symbol:    sym,
			symbols:   []string{sym.Name},
		}}
	}

	children := childrenOf(allSymbols, sym.Name)
	sort.Slice(children, func(i, j int) bool { return children[i].StartLine < children[j].StartLine })

	if len(children) == 0 {
		return splitEvenly(sym.StartLine, sym.EndLine, cfg.MaxNonWhitespaceChars, lines, sym)
	}

	var units []chunkUnit
	if children[0].StartLine > sym.StartLine {
		units = append(units, chunkUnit{
			startLine: sym.StartLine,
			endLine:   children[0].StartLine - 1,
			symbol:    sym,
			symbols:   []string{sym.Name},
			partial:   true,
			logical:   sym.Name + ":header",
		})
	}
	for i, child := range children {
		end := sym.EndLine
		if i+1 < len(children) {
			end = children[i+1].StartLine - 1
		}
		childUnit := &model.Symbol{
			Name: child.Name, Kind: child.Kind,
			StartLine: child.StartLine, EndLine: end,
		}
		childContent := joinLines(lines, childUnit.StartLine, childUnit.EndLine)
		if nonWhitespaceCount(childContent) > cfg.MaxNonWhitespaceChars {
			units = append(units, splitEvenly(childUnit.StartLine, childUnit.EndLine, cfg.MaxNonWhitespaceChars, lines, child)...)
			continue
		}
		units = append(units, chunkUnit{
			startLine: childUnit.StartLine,
			endLine:   childUnit.EndLine,
			symbol:    child,
			symbols:   []string{child.Name},
		})
	}
	return units
}

// splitEvenly partitions [start,end] into consecutive pieces each under
// maxChars non-whitespace characters, used when a symbol has no nested
// children to break on (e.g. an oversized function body).
func splitEvenly(start, end, maxChars int, lines []string, sym *model.Symbol) []chunkUnit {
	var units []chunkUnit
	partIndex := 0
	curStart := start
	curNonWS := 0
	for line := start; line <= end; line++ {
		lw := nonWhitespaceCount(safeLine(lines, line))
		if curNonWS > 0 && curNonWS+lw > maxChars {
			units = append(units, chunkUnit{
				startLine: curStart, endLine: line - 1,
				symbol: sym, symbols: []string{sym.Name},
				partial: true, partIndex: partIndex,
			})
			partIndex++
			curStart = line
			curNonWS = 0
		}
		curNonWS += lw
	}
	units = append(units, chunkUnit{
		startLine: curStart, endLine: end,
		symbol: sym, symbols: []string{sym.Name},
		partial: true, partIndex: partIndex,
	})
	return units
}

// mergeUnits greedily extends a running group with the next unit in source
// order while the combined non-whitespace size stays within targetSize and
// the gap between them is small, per the cAST sibling-merge step.
func mergeUnits(lines []string, units []chunkUnit, cfg coreconfig.ChunkConfig) [][]chunkUnit {
	sort.Slice(units, func(i, j int) bool { return units[i].startLine < units[j].startLine })

	var groups [][]chunkUnit
	var current []chunkUnit
	currentSize := 0

	flush := func() {
		if len(current) > 0 {
			groups = append(groups, current)
			current = nil
			currentSize = 0
		}
	}

	for _, u := range units {
		size := nonWhitespaceCount(joinLines(lines, u.startLine, u.endLine))

		if len(current) == 0 {
			current = append(current, u)
			currentSize = size
			continue
		}

		last := current[len(current)-1]
		gap := nonWhitespaceCount(joinLines(lines, last.endLine+1, u.startLine-1))

		if currentSize+size <= cfg.TargetSize && gap < gapMergeThreshold {
			current = append(current, u)
			currentSize += size
			continue
		}

		flush()
		current = append(current, u)
		currentSize = size
	}
	flush()

	return groups
}

// buildChunk assembles a SemanticChunk from a merged group of units.
func buildChunk(path string, lines []string, language string, group []chunkUnit, imports []*model.Import) *model.SemanticChunk {
	start := group[0].startLine
	end := group[len(group)-1].endLine
	content := joinLines(lines, start, end)

	var symbolNames []string
	var symbolKinds []string
	var primary *model.Symbol
	partial := false
	label := ""
	for _, u := range group {
		if u.symbol != nil {
			symbolNames = append(symbolNames, u.symbol.Name)
			symbolKinds = append(symbolKinds, string(u.symbol.Kind))
			if primary == nil || (u.endLine-u.startLine) > (primary.EndLine-primary.StartLine) {
				primary = u.symbol
			}
		}
		if u.partial {
			partial = true
		}
		if label == "" {
			label = u.logical
		}
	}

	kind := model.ChunkKindMixed
	switch {
	case label == "imports":
		kind = model.ChunkKindModule
	case len(group) == 1 && group[0].symbol != nil:
		kind = symbolToChunkKind(group[0].symbol.Kind)
	case len(symbolNames) == 1:
		kind = symbolToChunkKind(model.SymbolKind(symbolKinds[0]))
	}

	id := chunkID(path, primary, label, group[0].partIndex)

	hasExports := false
	for _, u := range group {
		if u.symbol != nil && u.symbol.Exported {
			hasExports = true
			break
		}
	}
	var importSources []string
	for _, imp := range imports {
		if imp.Line >= start && imp.Line <= end {
			importSources = append(importSources, imp.Source)
		}
	}

	return &model.SemanticChunk{
		ID:                id,
		Content:           content,
		Kind:              kind,
		FilePath:          path,
		StartLine:         start,
		EndLine:           end,
		PrimarySymbol:     primary,
		SymbolNames:       dedupe(symbolNames),
		ImportSources:     importSources,
		TokenEstimate:     estimateTokens(content),
		NonWhitespaceSize: nonWhitespaceCount(content),
		Metadata: model.ChunkMetadata{
			Language:     language,
			SymbolKinds:  dedupe(symbolKinds),
			HasExports:   hasExports,
			Partial:      partial,
			PartIndex:    group[0].partIndex,
			LogicalBlock: label,
		},
	}
}

func symbolToChunkKind(kind model.SymbolKind) model.ChunkKind {
	switch kind {
	case model.SymbolKindFunction, model.SymbolKindMethod:
		return model.ChunkKindFunction
	case model.SymbolKindClass, model.SymbolKindInterface:
		return model.ChunkKindClass
	default:
		return model.ChunkKindMixed
	}
}

func chunkID(path string, primary *model.Symbol, label string, partIndex int) string {
	base := label
	if primary != nil {
		base = primary.Name
	}
	if base == "" {
		base = "block"
	}
	id := fmt.Sprintf("%s:%s", path, base)
	if partIndex > 0 {
		id = fmt.Sprintf("%s:%d", id, partIndex)
	}
	return id
}

func estimateTokens(content string) int {
	n := len(content)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}

func nonWhitespaceCount(s string) int {
	n := 0
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r':
		default:
			n++
		}
	}
	return n
}

func joinLines(lines []string, start, end int) string {
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return ""
	}
	return strings.Join(lines[start-1:end], "\n")
}

func safeLine(lines []string, n int) string {
	if n < 1 || n > len(lines) {
		return ""
	}
	return lines[n-1]
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
