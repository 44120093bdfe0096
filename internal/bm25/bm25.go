// Package bm25 implements the Okapi BM25 inverted index over SemanticChunk
// content: tokenization, scoring, and a JSON round-trip that preserves the
// full vocabulary.
//
// NewIndex also exposes the persistent internal/store backends (Bleve,
// SQLite FTS5) behind the same SearchIndex contract for callers that want
// an on-disk index instead of a single JSON blob; those backends persist
// through their own storage, not ToJSON/FromJSON.
package bm25

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"sync"

	"github.com/unicore-dev/uce/internal/coreconfig"
)

// Document is one unit of retrievable content entering the BM25 index,
// keyed by chunk id (model.SemanticChunk.ID).
type Document struct {
	ID       string            `json:"id"`
	Content  string            `json:"-"`
	Metadata map[string]string `json:"-"`
}

// Result is a single ranked hit from Search.
type Result struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
}

// SearchIndex is the common contract every backend (native or alternate)
// satisfies, so the retriever and incremental indexer don't need to know
// which one is wired in.
type SearchIndex interface {
	AddDocuments(ctx context.Context, docs []Document) error
	Search(ctx context.Context, query string, topK int) ([]Result, error)
	Count() int
}

// storedDoc is the persisted, pre-tokenized form of a Document.
type storedDoc struct {
	ID     string   `json:"id"`
	Tokens []string `json:"tokens"`
	Length int      `json:"length"`
}

// Index is the native Okapi BM25 inverted index: idf(t) = ln((N-df+0.5)/
// (df+0.5)+1), doc score = sum over query tokens of idf(t)*(tf*(k1+1))/
// (tf+k1*(1-b+b*dl/avgdl)). Ties on score break on document id ascending.
type Index struct {
	mu    sync.RWMutex
	k1    float64
	b     float64
	minTL int
	stop  map[string]struct{}

	docs  map[string]*storedDoc
	order []string // insertion order, for stable iteration

	df          map[string]int
	totalLength int
}

// New builds an empty native Index from the given BM25 tuning config.
func New(cfg coreconfig.BM25Config) *Index {
	return &Index{
		k1:    cfg.K1,
		b:     cfg.B,
		minTL: cfg.MinTokenLength,
		stop:  stopWordSet(DefaultStopWords),
		docs:  make(map[string]*storedDoc),
		df:    make(map[string]int),
	}
}

// Tokenize lowercases, splits on non-alphanumeric boundaries, then splits
// identifiers by underscore/hyphen/camel-case/letter-digit boundary,
// dropping tokens shorter than the configured minimum and stop words.
// Invariant under repetition; output order equals input lexical order.
func (idx *Index) Tokenize(text string) []string {
	return tokenize(text, idx.minTL, idx.stop)
}

func tokenize(text string, minLen int, stop map[string]struct{}) []string {
	raw := codeTokens(text)
	tokens := make([]string, 0, len(raw))
	for _, t := range raw {
		if len(t) < minLen {
			continue
		}
		if _, isStop := stop[t]; isStop {
			continue
		}
		tokens = append(tokens, t)
	}
	return tokens
}

// AddDocuments tokenizes and inserts each document, replacing any existing
// document with the same id. Aggregate statistics (df, avgdl) are
// recomputed incrementally.
func (idx *Index) AddDocuments(_ context.Context, docs []Document) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, d := range docs {
		idx.removeLocked(d.ID)

		tokens := idx.Tokenize(d.Content)
		sd := &storedDoc{ID: d.ID, Tokens: tokens, Length: len(tokens)}
		idx.docs[d.ID] = sd
		idx.order = append(idx.order, d.ID)
		idx.totalLength += sd.Length

		seen := make(map[string]struct{}, len(tokens))
		for _, t := range tokens {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			idx.df[t]++
		}
	}
	return nil
}

// Remove deletes documents by id. A chunk's document leaves the index the
// moment its owning file is re-indexed.
func (idx *Index) Remove(ids []string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, id := range ids {
		idx.removeLocked(id)
	}
}

// removeLocked must be called with idx.mu held.
func (idx *Index) removeLocked(id string) {
	sd, ok := idx.docs[id]
	if !ok {
		return
	}
	delete(idx.docs, id)
	idx.totalLength -= sd.Length

	seen := make(map[string]struct{}, len(sd.Tokens))
	for _, t := range sd.Tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		idx.df[t]--
		if idx.df[t] <= 0 {
			delete(idx.df, t)
		}
	}

	for i, oid := range idx.order {
		if oid == id {
			idx.order = append(idx.order[:i], idx.order[i+1:]...)
			break
		}
	}
}

func (idx *Index) avgdl() float64 {
	if len(idx.docs) == 0 {
		return 0
	}
	return float64(idx.totalLength) / float64(len(idx.docs))
}

func (idx *Index) idf(term string) float64 {
	n := float64(len(idx.docs))
	df := float64(idx.df[term])
	return math.Log((n-df+0.5)/(df+0.5) + 1)
}

// Search tokenizes the query and scores every document containing at
// least one query token, returning the topK highest-scoring results in
// descending score order (ties break on document id ascending).
func (idx *Index) Search(_ context.Context, query string, topK int) ([]Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	qTokens := idx.Tokenize(query)
	if len(qTokens) == 0 || len(idx.docs) == 0 {
		return nil, nil
	}

	avgdl := idx.avgdl()
	idfs := make(map[string]float64, len(qTokens))
	for _, t := range qTokens {
		if _, ok := idfs[t]; !ok {
			idfs[t] = idx.idf(t)
		}
	}

	scores := make(map[string]float64)
	for _, id := range idx.order {
		sd := idx.docs[id]
		tf := termFrequencies(sd.Tokens)
		var score float64
		for _, t := range qTokens {
			f := float64(tf[t])
			if f == 0 {
				continue
			}
			num := f * (idx.k1 + 1)
			den := f + idx.k1*(1-idx.b+idx.b*float64(sd.Length)/avgdl)
			score += idfs[t] * (num / den)
		}
		if score > 0 {
			scores[id] = score
		}
	}

	results := make([]Result, 0, len(scores))
	for id, s := range scores {
		results = append(results, Result{DocID: id, Score: s})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].DocID < results[j].DocID
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func termFrequencies(tokens []string) map[string]int {
	tf := make(map[string]int, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}
	return tf
}

// DocIDs returns every indexed document id in insertion order.
func (idx *Index) DocIDs() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return append([]string(nil), idx.order...)
}

// Count returns the number of documents currently indexed.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}

// snapshot is the complete, vocabulary-preserving on-disk form of an Index.
type snapshot struct {
	Docs  []*storedDoc `json:"docs"`
	Order []string     `json:"order"`
	DF    map[string]int `json:"df"`
	N     int          `json:"n"`
	AvgDL float64      `json:"avgdl"`
	K1    float64      `json:"k1"`
	B     float64      `json:"b"`
}

// ToJSON serializes the complete index — documents, document frequencies,
// and tuning parameters — so FromJSON can reproduce identical scores
// without re-tokenizing the corpus.
func (idx *Index) ToJSON() ([]byte, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	docs := make([]*storedDoc, 0, len(idx.order))
	for _, id := range idx.order {
		docs = append(docs, idx.docs[id])
	}
	snap := snapshot{
		Docs:  docs,
		Order: append([]string(nil), idx.order...),
		DF:    idx.df,
		N:     len(idx.docs),
		AvgDL: idx.avgdl(),
		K1:    idx.k1,
		B:     idx.b,
	}
	return json.Marshal(snap)
}

// FromJSON replaces the index's contents with a previously serialized
// snapshot. Scores for any query are identical to the source index's.
func (idx *Index) FromJSON(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.docs = make(map[string]*storedDoc, len(snap.Docs))
	idx.totalLength = 0
	for _, d := range snap.Docs {
		idx.docs[d.ID] = d
		idx.totalLength += d.Length
	}
	idx.order = snap.Order
	idx.df = snap.DF
	if idx.df == nil {
		idx.df = make(map[string]int)
	}
	if snap.K1 != 0 {
		idx.k1 = snap.K1
	}
	if snap.B != 0 {
		idx.b = snap.B
	}
	return nil
}

var _ SearchIndex = (*Index)(nil)
