package retriever

import (
	"fmt"
	"path"
	"strings"
)

// estimateTokens approximates token count the same way the chunker's
// TokenEstimate field does when a chunk arrives without one: roughly 4
// characters per token, which is close enough for budget packing (the
// retriever is not required to match any particular tokenizer exactly).
func estimateTokens(chunk *RetrievedChunk) int {
	if chunk.Chunk.TokenEstimate > 0 {
		return chunk.Chunk.TokenEstimate
	}
	return (len(chunk.Chunk.Content) + 3) / 4
}

// pack greedily fills maxTokens from candidates in score-descending order,
// after reordering any candidate whose file path matches one of the
// priority glob patterns to the front (priority chunks keep their relative
// order; so do the rest). Packing stops the moment the next candidate
// would overflow the budget — it does not truncate a chunk's content.
func pack(candidates []RetrievedChunk, priorityGlobs []string, maxTokens int) ([]RetrievedChunk, int, bool) {
	ordered := reorderByPriority(candidates, priorityGlobs)

	var packed []RetrievedChunk
	total := 0
	truncated := false
	for _, c := range ordered {
		t := estimateTokens(&c)
		if total+t > maxTokens {
			truncated = true
			break
		}
		packed = append(packed, c)
		total += t
	}
	return packed, total, truncated
}

func reorderByPriority(candidates []RetrievedChunk, globs []string) []RetrievedChunk {
	if len(globs) == 0 {
		return candidates
	}
	var priority, rest []RetrievedChunk
	for _, c := range candidates {
		if matchesAny(c.Chunk.FilePath, globs) {
			priority = append(priority, c)
		} else {
			rest = append(rest, c)
		}
	}
	return append(priority, rest...)
}

func matchesAny(filePath string, globs []string) bool {
	base := path.Base(filePath)
	for _, g := range globs {
		if ok, err := path.Match(g, filePath); err == nil && ok {
			return true
		}
		if ok, err := path.Match(g, base); err == nil && ok {
			return true
		}
	}
	return false
}

// format renders the packed chunks as the retriever's canonical context
// block: a "// File: <path>:<startLine>-<endLine>" header per chunk,
// chunks separated by a blank line.
func format(chunks []RetrievedChunk) string {
	if len(chunks) == 0 {
		return ""
	}
	var b strings.Builder
	for i, c := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "// File: %s:%d-%d\n", c.Chunk.FilePath, c.Chunk.StartLine, c.Chunk.EndLine)
		b.WriteString(c.Chunk.Content)
	}
	return b.String()
}
