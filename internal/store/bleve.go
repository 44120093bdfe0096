package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"

	"github.com/unicore-dev/uce/internal/token"
)

// codeTokenizerName is the registry name of the identifier-aware
// tokenizer. Registration is global in Bleve, so the tokenizer carries the
// default stop list; per-index stop-word overrides apply only to the
// native and SQLite backends.
const (
	codeTokenizerName = "uce_code_tokens"
	codeAnalyzerName  = "uce_code"
)

func init() {
	_ = registry.RegisterTokenizer(codeTokenizerName, func(map[string]interface{}, *registry.Cache) (analysis.Tokenizer, error) {
		return codeTokenizer{stop: token.StopSet(CodeStopWords)}, nil
	})
}

// codeTokenizer adapts token.Split to Bleve's analysis chain, applying
// the stop list inline so the analyzer needs no separate filter stage.
type codeTokenizer struct {
	stop map[string]struct{}
}

func (t codeTokenizer) Tokenize(input []byte) analysis.TokenStream {
	terms := token.Split(string(input))
	stream := make(analysis.TokenStream, 0, len(terms))
	lower := strings.ToLower(string(input))

	pos := 1
	offset := 0
	for _, term := range terms {
		if _, isStop := t.stop[term]; isStop {
			continue
		}
		start := strings.Index(lower[offset:], term)
		if start < 0 {
			start = offset
		} else {
			start += offset
		}
		end := start + len(term)
		stream = append(stream, &analysis.Token{
			Term:     []byte(term),
			Start:    start,
			End:      end,
			Position: pos,
			Type:     analysis.AlphaNumeric,
		})
		pos++
		if end <= len(lower) {
			offset = end
		}
	}
	return stream
}

// bleveDoc is the indexed document shape; only the body is searchable.
type bleveDoc struct {
	Body string `json:"body"`
}

// BleveIndex is the Bleve-backed KeywordIndex. Durability is Bleve's: a
// disk-backed index persists each batch as it commits, so there is no
// separate save step. An empty path builds the index in memory.
type BleveIndex struct {
	mu     sync.RWMutex
	idx    bleve.Index
	path   string
	closed bool
}

// NewBleveIndex opens (or creates) a Bleve index at path. An index that
// fails to open is treated as corrupt: it is removed and recreated empty,
// and the caller is expected to re-index.
func NewBleveIndex(path string) (*BleveIndex, error) {
	m, err := codeMapping()
	if err != nil {
		return nil, err
	}

	if path == "" {
		idx, err := bleve.NewMemOnly(m)
		if err != nil {
			return nil, fmt.Errorf("store: create in-memory bleve index: %w", err)
		}
		return &BleveIndex{idx: idx}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: create bleve index dir: %w", err)
	}

	idx, err := bleve.Open(path)
	switch {
	case err == nil:
	case err == bleve.ErrorIndexPathDoesNotExist:
		idx, err = bleve.New(path, m)
		if err != nil {
			return nil, fmt.Errorf("store: create bleve index: %w", err)
		}
	default:
		slog.Warn("store: bleve index unreadable, recreating empty",
			slog.String("path", path), slog.String("error", err.Error()))
		if rmErr := os.RemoveAll(path); rmErr != nil {
			return nil, fmt.Errorf("store: remove unreadable bleve index: %w", rmErr)
		}
		idx, err = bleve.New(path, m)
		if err != nil {
			return nil, fmt.Errorf("store: recreate bleve index: %w", err)
		}
	}

	return &BleveIndex{idx: idx, path: path}, nil
}

func codeMapping() (*mapping.IndexMappingImpl, error) {
	m := bleve.NewIndexMapping()
	err := m.AddCustomAnalyzer(codeAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": codeTokenizerName,
	})
	if err != nil {
		return nil, fmt.Errorf("store: register code analyzer: %w", err)
	}
	m.DefaultAnalyzer = codeAnalyzerName
	return m, nil
}

func (b *BleveIndex) Index(ctx context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errClosed
	}

	batch := b.idx.NewBatch()
	for _, d := range docs {
		if err := batch.Index(d.ID, bleveDoc{Body: d.Content}); err != nil {
			return fmt.Errorf("store: stage document %s: %w", d.ID, err)
		}
	}
	if err := b.idx.Batch(batch); err != nil {
		return fmt.Errorf("store: commit bleve batch: %w", err)
	}
	return nil
}

func (b *BleveIndex) Search(ctx context.Context, query string, limit int) ([]KeywordHit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, errClosed
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	mq := bleve.NewMatchQuery(query)
	mq.SetField("body")
	req := bleve.NewSearchRequest(mq)
	req.Size = limit

	res, err := b.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("store: bleve search: %w", err)
	}

	hits := make([]KeywordHit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, KeywordHit{DocID: h.ID, Score: h.Score})
	}
	return hits, nil
}

func (b *BleveIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errClosed
	}

	batch := b.idx.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := b.idx.Batch(batch); err != nil {
		return fmt.Errorf("store: commit bleve delete batch: %w", err)
	}
	return nil
}

func (b *BleveIndex) DocCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0
	}
	n, _ := b.idx.DocCount()
	return int(n)
}

func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.idx.Close()
}

var _ KeywordIndex = (*BleveIndex)(nil)
