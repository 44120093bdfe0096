package bm25

import (
	"strings"

	"github.com/unicore-dev/uce/internal/token"
)

// DefaultStopWords is the fixed stop-word list every Index applies:
// common English function words plus the code keywords that show up in
// nearly every chunk and would otherwise dominate term frequency.
var DefaultStopWords = []string{
	"the", "a", "an", "of", "to", "in", "is", "it", "on", "as", "by",
	"at", "be", "or", "and", "with", "this", "that", "from",
	"var", "let", "const", "func", "function", "def", "class",
	"return", "if", "else", "for", "while", "import", "export",
	"data", "result", "value", "item", "key", "err", "ctx", "tmp",
}

func stopWordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = struct{}{}
	}
	return set
}

// codeTokens runs the shared identifier-aware splitter: lowercase → split
// on non-alphanumeric → split each identifier by underscore, hyphen, and
// camel-case/letter-digit boundaries. Tokens shorter than 2 characters
// are dropped by the splitter; the caller applies the stop-word list and
// any stricter minimum length on top.
func codeTokens(text string) []string {
	return token.Split(text)
}
