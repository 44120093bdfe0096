// Package coreconfig holds the plain configuration structs used to tune
// the retrieval engine's ambient concerns: chunking budgets, BM25 and RRF
// parameters, worker pool sizing, and cache layout. Every struct here is
// constructed with a Default* function; parsing these values from a
// project config file (.uce.yaml or similar) is a separate, outer-layer
// concern this package does not implement.
package coreconfig

import "runtime"

// ChunkConfig bounds the cAST chunker's recursive split/merge behavior.
type ChunkConfig struct {
	// MinNonWhitespaceChars is the non-whitespace size below which a file's
	// terminal chunk is folded into the previous one (or dropped when that
	// would break the ceiling). Earlier chunks are not checked against it:
	// the greedy merge pass only joins neighbours that fit TargetSize.
	MinNonWhitespaceChars int

	// MaxNonWhitespaceChars is the hard ceiling on a single chunk's
	// non-whitespace size; chunks above this are recursively split further.
	MaxNonWhitespaceChars int

	// TargetSize is the size the greedy sibling merge aims for.
	TargetSize int
}

// DefaultChunkConfig returns sensible defaults for the cAST chunker.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MinNonWhitespaceChars: 200,
		MaxNonWhitespaceChars: 1500,
		TargetSize:            1000,
	}
}

// BM25Config configures the Okapi BM25 scorer.
type BM25Config struct {
	// K1 is the term-frequency saturation parameter.
	K1 float64

	// B is the length-normalization parameter.
	B float64

	// MinTokenLength is the minimum token length to index.
	MinTokenLength int
}

// DefaultBM25Config returns the canonical Okapi BM25 defaults (k1=1.2, b=0.75).
func DefaultBM25Config() BM25Config {
	return BM25Config{
		K1:             1.2,
		B:              0.75,
		MinTokenLength: 2,
	}
}

// RetrieverConfig configures fusion and result-packing behavior.
type RetrieverConfig struct {
	// RRFConstant is the k smoothing parameter in 1/(k+rank).
	RRFConstant int

	// OverfetchLimit is how many results are pulled from each backend
	// before fusion, to give RRF enough candidates to rank well.
	OverfetchLimit int

	// HybridMinScore is the minimum fused score kept when both backends
	// are queried.
	HybridMinScore float64

	// BM25OnlyMinScore is the minimum score kept when only BM25 ran
	// (no vector backend available, or semantic search disabled).
	BM25OnlyMinScore float64

	// MaxTokens bounds the context budget packer's total output size.
	MaxTokens int
}

// DefaultRetrieverConfig returns sensible defaults for the retriever.
func DefaultRetrieverConfig() RetrieverConfig {
	return RetrieverConfig{
		RRFConstant:      60,
		OverfetchLimit:   50,
		HybridMinScore:   0.3,
		BM25OnlyMinScore: 0.1,
		MaxTokens:        8000,
	}
}

// IndexConfig configures the incremental indexer's worker pool and limits.
type IndexConfig struct {
	// Workers is the number of concurrent parse/chunk workers (0 = NumCPU).
	Workers int

	// MaxFiles caps the number of files a single index run will process.
	MaxFiles int

	// MaxFileSize is the maximum file size considered for indexing, in bytes.
	MaxFileSize int64

	// CacheDirName is the directory name (relative to project root) where
	// index snapshots and the parse cache are persisted.
	CacheDirName string
}

// DefaultIndexConfig returns sensible defaults for the incremental indexer.
func DefaultIndexConfig() IndexConfig {
	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}
	return IndexConfig{
		Workers:      workers,
		MaxFiles:     100000,
		MaxFileSize:  1 << 20,
		CacheDirName: ".uce",
	}
}

// SubmoduleConfig configures git submodule discovery during scanning.
type SubmoduleConfig struct {
	// Enabled enables submodule discovery (default: false, opt-in).
	Enabled bool

	// Recursive enables discovery of nested submodules.
	Recursive bool

	// Include specifies submodules to include (empty = all).
	Include []string

	// Exclude specifies submodules to exclude.
	Exclude []string
}

// DefaultSubmoduleConfig returns submodule discovery disabled, as it is opt-in.
func DefaultSubmoduleConfig() SubmoduleConfig {
	return SubmoduleConfig{
		Enabled:   false,
		Recursive: true,
	}
}

// GrammarConfig bounds tree-sitter grammar loading.
type GrammarConfig struct {
	// LoadTimeoutSeconds bounds each tree-sitter parse run of a file; when
	// one exceeds it, the language is marked unavailable and the parser
	// falls back to the regex-based extractor.
	LoadTimeoutSeconds int

	// CacheSize is the number of parsed syntax trees memoized in the LRU
	// cache.
	CacheSize int
}

// DefaultGrammarConfig returns sensible defaults for grammar loading.
func DefaultGrammarConfig() GrammarConfig {
	return GrammarConfig{
		LoadTimeoutSeconds: 10,
		CacheSize:          32,
	}
}
