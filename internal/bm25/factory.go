package bm25

import (
	"context"
	"fmt"

	"github.com/unicore-dev/uce/internal/coreconfig"
	"github.com/unicore-dev/uce/internal/store"
)

// Backend selects which SearchIndex implementation NewIndex builds.
type Backend string

const (
	// BackendNative is the default in-process index. Its ToJSON/FromJSON
	// round-trip is what persists bm25.json.
	BackendNative Backend = "native"

	// BackendBleve delegates to a Bleve v2 index with the shared
	// code-aware analyzer, persisted as a segment directory instead of a
	// single JSON document.
	BackendBleve Backend = "bleve"

	// BackendSQLite delegates to a SQLite FTS5 database. FTS5's bm25()
	// fixes k1/b at the Okapi defaults, so cfg's tuning fields only apply
	// to tokenization.
	BackendSQLite Backend = "sqlite"
)

// NewIndex builds a SearchIndex for the requested backend. path is ignored
// for BackendNative; for the persistent backends it names the on-disk
// index location (empty path builds the index in memory).
func NewIndex(backend Backend, cfg coreconfig.BM25Config, path string) (SearchIndex, error) {
	switch backend {
	case BackendNative, "":
		return New(cfg), nil
	case BackendBleve:
		idx, err := store.NewBleveIndex(path)
		if err != nil {
			return nil, fmt.Errorf("bm25: build bleve backend: %w", err)
		}
		return &keywordAdapter{idx: idx}, nil
	case BackendSQLite:
		idx, err := store.NewSQLiteIndex(path, store.KeywordConfig{
			K1:             cfg.K1,
			B:              cfg.B,
			MinTokenLength: cfg.MinTokenLength,
			StopWords:      DefaultStopWords,
		})
		if err != nil {
			return nil, fmt.Errorf("bm25: build sqlite backend: %w", err)
		}
		return &keywordAdapter{idx: idx}, nil
	default:
		return nil, fmt.Errorf("bm25: unknown backend %q", backend)
	}
}

// keywordAdapter adapts store.KeywordIndex (persistent, *store.Document
// shaped) to this package's SearchIndex contract.
type keywordAdapter struct {
	idx store.KeywordIndex
}

func (a *keywordAdapter) AddDocuments(ctx context.Context, docs []Document) error {
	converted := make([]*store.Document, 0, len(docs))
	for _, d := range docs {
		converted = append(converted, &store.Document{ID: d.ID, Content: d.Content})
	}
	return a.idx.Index(ctx, converted)
}

func (a *keywordAdapter) Search(ctx context.Context, query string, topK int) ([]Result, error) {
	hits, err := a.idx.Search(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, Result{DocID: h.DocID, Score: h.Score})
	}
	return results, nil
}

func (a *keywordAdapter) Count() int {
	return a.idx.DocCount()
}

var _ SearchIndex = (*keywordAdapter)(nil)
