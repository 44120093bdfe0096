package parser

import (
	"fmt"
	"strings"

	"github.com/unicore-dev/uce/internal/coreconfig"
	"github.com/unicore-dev/uce/internal/model"
)

// buildMarkdownChunks chunks a Markdown file by heading section rather
// than by the symbol-merge pass buildChunks runs for source files. YAML
// frontmatter becomes a module chunk; every heading opens a new section
// carrying its heading path as the logical block; sections below the size
// floor fold into their predecessor; sections above the ceiling split on
// blank-line boundaries into partial chunks.
func buildMarkdownChunks(path string, content []byte, cfg coreconfig.ChunkConfig) []*model.SemanticChunk {
	lines := strings.Split(string(content), "\n")

	var chunks []*model.SemanticChunk
	usedIDs := make(map[string]int)
	sections := splitMarkdownSections(lines)
	for _, sec := range sections {
		body := strings.Join(lines[sec.start:sec.end], "\n")
		size := nonWhitespaceCount(body)
		if size == 0 {
			continue
		}

		if sec.kind != model.ChunkKindModule && size < cfg.MinNonWhitespaceChars && len(chunks) > 0 {
			// Fold a trivial section into the previous chunk.
			prev := chunks[len(chunks)-1]
			prev.Content = prev.Content + "\n" + body
			prev.EndLine = sec.end
			prev.TokenEstimate = estimateTokens(prev.Content)
			prev.NonWhitespaceSize = nonWhitespaceCount(prev.Content)
			continue
		}

		parts := splitOversizedSection(lines, sec, cfg.MaxNonWhitespaceChars)
		for i, part := range parts {
			body := strings.Join(lines[part.start:part.end], "\n")
			c := &model.SemanticChunk{
				ID:                uniqueID(usedIDs, markdownChunkID(path, sec.label, i, len(parts))),
				Content:           body,
				Kind:              sec.kind,
				FilePath:          path,
				StartLine:         part.start + 1,
				EndLine:           part.end,
				TokenEstimate:     estimateTokens(body),
				NonWhitespaceSize: nonWhitespaceCount(body),
				Metadata: model.ChunkMetadata{
					Language:     "markdown",
					Partial:      len(parts) > 1,
					PartIndex:    i,
					LogicalBlock: sec.block,
				},
			}
			chunks = append(chunks, c)
		}
	}
	return chunks
}

// mdSection is one frontmatter block, preamble, or heading-to-heading span.
type mdSection struct {
	start int // line index, inclusive
	end   int // line index, exclusive
	label string
	block string // heading path, "Guide > Install"
	kind  model.ChunkKind
}

type mdSpan struct{ start, end int }

func splitMarkdownSections(lines []string) []mdSection {
	var sections []mdSection
	i := 0

	// YAML frontmatter: a leading "---" fence closed by another.
	if len(lines) > 0 && strings.TrimSpace(lines[0]) == "---" {
		for j := 1; j < len(lines); j++ {
			if strings.TrimSpace(lines[j]) == "---" {
				sections = append(sections, mdSection{
					start: 0, end: j + 1,
					label: "frontmatter", block: "frontmatter",
					kind: model.ChunkKindModule,
				})
				i = j + 1
				break
			}
		}
	}

	// headingPath[d] is the active heading text at depth d+1.
	var headingPath []string
	open := mdSection{start: i, label: "intro", kind: model.ChunkKindMixed}

	flush := func(end int) {
		if end > open.start {
			open.end = end
			sections = append(sections, open)
		}
	}

	for ; i < len(lines); i++ {
		level, title := headingLine(lines[i])
		if level == 0 {
			continue
		}
		flush(i)
		if level <= len(headingPath) {
			headingPath = headingPath[:level-1]
		}
		headingPath = append(headingPath, title)
		open = mdSection{
			start: i,
			label: title,
			block: strings.Join(headingPath, " > "),
			kind:  model.ChunkKindMixed,
		}
	}
	flush(len(lines))
	return sections
}

// headingLine reports an ATX heading's level and title, or 0 for any
// other line.
func headingLine(line string) (int, string) {
	trimmed := strings.TrimSpace(line)
	level := 0
	for level < len(trimmed) && trimmed[level] == '#' {
		level++
	}
	if level == 0 || level > 6 || level >= len(trimmed) || trimmed[level] != ' ' {
		return 0, ""
	}
	return level, strings.TrimSpace(trimmed[level:])
}

// splitOversizedSection cuts a section whose non-whitespace size exceeds
// maxChars at blank-line boundaries. A section with no internal blank
// line stays whole; prose that long is rare enough to observe rather
// than slice mid-paragraph.
func splitOversizedSection(lines []string, sec mdSection, maxChars int) []mdSpan {
	whole := mdSpan{start: sec.start, end: sec.end}
	if maxChars <= 0 || nonWhitespaceCount(strings.Join(lines[sec.start:sec.end], "\n")) <= maxChars {
		return []mdSpan{whole}
	}

	var parts []mdSpan
	cur := sec.start
	size := 0
	for i := sec.start; i < sec.end; i++ {
		lineSize := nonWhitespaceCount(lines[i])
		if size > 0 && size+lineSize > maxChars && i > cur && strings.TrimSpace(lines[i-1]) == "" {
			parts = append(parts, mdSpan{start: cur, end: i})
			cur = i
			size = 0
		}
		size += lineSize
	}
	if cur < sec.end {
		parts = append(parts, mdSpan{start: cur, end: sec.end})
	}
	if len(parts) == 0 {
		return []mdSpan{whole}
	}
	return parts
}

// uniqueID disambiguates repeated heading titles within one file, since
// two distinct chunks must never share an id within a generation.
func uniqueID(used map[string]int, id string) string {
	n := used[id]
	used[id] = n + 1
	if n == 0 {
		return id
	}
	return fmt.Sprintf("%s~%d", id, n)
}

func markdownChunkID(path, label string, part, total int) string {
	slug := strings.ToLower(strings.Join(strings.Fields(label), "-"))
	if slug == "" {
		slug = "section"
	}
	id := fmt.Sprintf("%s:%s", path, slug)
	if total > 1 {
		id = fmt.Sprintf("%s:%d", id, part)
	}
	return id
}
