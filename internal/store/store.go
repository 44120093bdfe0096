// Package store holds the pluggable persistence backends behind the
// retrieval engine: keyword indexes with their own on-disk formats (Bleve
// segment directories, SQLite FTS5 databases) and an HNSW vector store
// implementing the optional VectorStore capability. The native in-memory
// BM25 index lives in internal/bm25; this package is for deployments that
// want a persistent, incrementally-updated index instead of the
// rebuild-on-dirty one.
package store

import (
	"context"
	"fmt"
)

// Document is what a keyword backend indexes: one semantic chunk's
// content keyed by its chunk id, with enough metadata for filtering.
type Document struct {
	ID       string
	Content  string
	Path     string
	Language string
}

// KeywordHit is a single ranked hit from a keyword backend.
type KeywordHit struct {
	DocID string
	Score float64
}

// KeywordConfig tunes a keyword backend. The native index in internal/bm25
// shares the same parameter meanings.
type KeywordConfig struct {
	K1             float64
	B              float64
	MinTokenLength int
	StopWords      []string
}

// DefaultKeywordConfig returns the Okapi defaults with the code-aware
// stop-word list.
func DefaultKeywordConfig() KeywordConfig {
	return KeywordConfig{
		K1:             1.2,
		B:              0.75,
		MinTokenLength: 2,
		StopWords:      CodeStopWords,
	}
}

// CodeStopWords are terms so common in source text that they carry no
// ranking signal: English function words plus keywords shared across the
// indexed languages.
var CodeStopWords = []string{
	"the", "a", "an", "of", "to", "in", "is", "it", "on", "as", "by",
	"at", "be", "or", "and", "with", "this", "that", "from",
	"var", "let", "const", "func", "function", "def", "class",
	"return", "if", "else", "for", "while", "import", "export",
	"data", "result", "value", "item", "key", "err", "ctx", "tmp",
}

// KeywordIndex is the contract both persistent keyword backends satisfy.
// Unlike the native bm25.Index, implementations here own their durability:
// a write is on disk (or in the backend's own journal) when Index returns.
type KeywordIndex interface {
	Index(ctx context.Context, docs []*Document) error
	Search(ctx context.Context, query string, limit int) ([]KeywordHit, error)
	Delete(ctx context.Context, ids []string) error
	DocCount() int
	Close() error
}

// VectorEntry is one embedded chunk entering the vector store.
type VectorEntry struct {
	ID       string
	Vector   []float32
	Path     string
	Language string
}

// VectorHit is a single ranked hit from a vector search, with Score
// normalized to [0, 1] (1 = identical direction under cosine).
type VectorHit struct {
	ID    string
	Score float32
}

// VectorFilter narrows a vector search before ranking. Zero-valued fields
// do not filter.
type VectorFilter struct {
	Language   string
	PathPrefix string
}

// VectorStore is the optional capability the retriever consumes for dense
// ranking. Every method is safe for concurrent use.
type VectorStore interface {
	// Initialize prepares the store, loading any persisted state.
	Initialize(ctx context.Context) error

	// Add inserts entries, replacing any with the same id.
	Add(ctx context.Context, entries []VectorEntry) error

	// Search returns the k nearest entries to query, best first.
	Search(ctx context.Context, query []float32, k int, filter *VectorFilter) ([]VectorHit, error)

	// Count reports how many entries the store holds.
	Count() int

	// Clear drops every entry, including persisted state.
	Clear() error

	Close() error
}

// DimensionError reports a vector whose length does not match the store's
// configured dimensionality.
type DimensionError struct {
	Want int
	Got  int
}

func (e DimensionError) Error() string {
	return fmt.Sprintf("store: vector dimension %d, want %d", e.Got, e.Want)
}

var errClosed = fmt.Errorf("store: backend is closed")
