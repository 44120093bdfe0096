// Package parser turns raw file content into the shared model types that
// feed the index, knowledge graph, BM25 index, and retriever: symbols,
// imports/exports, call references, and semantic chunks.
//
// Every file goes through a grammar-first, regex-fallback pipeline. The
// grammar backend (tree-sitter) is preferred for its
// richer metadata; the regex backend kicks in the moment a language's
// grammar fails to load or times out, and is memoized as unavailable for
// the rest of the process. Both backends emit the identical model.Symbol
// schema so downstream chunking and indexing never need to know which one
// ran.
package parser

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/unicore-dev/uce/internal/coreconfig"
	"github.com/unicore-dev/uce/internal/coreerrors"
	"github.com/unicore-dev/uce/internal/model"
)

// Parser is the top-level entry point for turning one file's content into
// a model.ParseResult.
type Parser struct {
	grammar  *grammarLoader
	chunkCfg coreconfig.ChunkConfig
}

// New builds a Parser with the given grammar-loading and chunking
// configuration.
func New(grammarCfg coreconfig.GrammarConfig, chunkCfg coreconfig.ChunkConfig) *Parser {
	return &Parser{
		grammar:  newGrammarLoader(grammarCfg),
		chunkCfg: chunkCfg,
	}
}

// Parse runs the grammar-first, regex-fallback pipeline over one file and
// assembles the full ParseResult: symbols, imports/exports, call
// references, semantic chunks, the file's leading description, and any
// diagnostics raised along the way. Parse itself never returns an error —
// parse failures on a single file degrade to diagnostics so a single bad
// file never aborts a project-wide index run.
func (p *Parser) Parse(ctx context.Context, path string, content []byte, language string) *model.ParseResult {
	var diagnostics []model.Diagnostic
	var symbols []*model.Symbol

	cacheKey := language + ":" + contentHash(content)
	tree, err := p.grammar.parse(cacheKey, content, language)
	switch {
	case err == nil && tree != nil:
		symbols = extractGrammarSymbols(tree, content, language)
		if tree.root != nil && tree.root.hasError {
			diagnostics = append(diagnostics, model.Diagnostic{
				Code:    coreerrors.ErrCodeParseFailed,
				Message: "grammar produced a partial/erroneous parse tree",
			})
		}
	default:
		symbols = extractRegexSymbols(content, language)
		diagnostics = append(diagnostics, model.Diagnostic{
			Code:    coreerrors.ErrCodeParseFailed,
			Message: "grammar unavailable, used regex fallback: " + errString(err),
		})
	}

	imports, exports := extractImportsExports(content, language)
	callRefs := extractCallReferences(content, symbols)

	var chunks []*model.SemanticChunk
	if language == "markdown" {
		chunks = buildMarkdownChunks(path, content, p.chunkCfg)
	} else {
		chunks = buildChunks(path, content, language, symbols, imports, p.chunkCfg)
	}
	description := extractDescription(content, language)

	return &model.ParseResult{
		Path:        path,
		Language:    language,
		Symbols:     symbols,
		Imports:     imports,
		Exports:     exports,
		CallRefs:    callRefs,
		Chunks:      chunks,
		Description: description,
		Diagnostics: diagnostics,
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// extractDescription returns the file's leading comment block, if any,
// using the same absorption rule as symbol docstrings but anchored at the
// top of the file instead of a symbol's start line.
func extractDescription(source []byte, language string) string {
	marker := lineCommentMarker(language)
	if marker == "" {
		return ""
	}
	lines := strings.Split(string(source), "\n")

	var collected []string
	for i := 0; i < len(lines) && i < maxDocAbsorbLines; i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			if len(collected) > 0 {
				break
			}
			continue
		}
		if !strings.HasPrefix(line, marker) {
			break
		}
		collected = append(collected, strings.TrimSpace(strings.TrimPrefix(line, marker)))
	}
	return strings.Join(collected, "\n")
}
