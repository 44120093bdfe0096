// Package retriever implements the hybrid retrieval engine: Reciprocal
// Rank Fusion over BM25 and (optionally) vector search, greedy
// token-budget packing of the fused results, and a deterministic keyword
// fallback for when neither backend can be queried. It never errors on an
// empty result set — degraded tiers are silent; a best-effort subsystem
// never blocks the caller.
package retriever

import (
	"context"
	"sort"
	"strings"

	"github.com/unicore-dev/uce/internal/bm25"
	"github.com/unicore-dev/uce/internal/coreconfig"
	"github.com/unicore-dev/uce/internal/model"
	"github.com/unicore-dev/uce/internal/store"
)

// EmbeddingProvider is the capability interface the retriever consumes for
// semantic search. The core ships no concrete embedding backend (an
// explicit non-goal); a caller wires in whichever model it likes.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ChunkSource resolves a chunk id to its full SemanticChunk, so the
// retriever can format context and apply file/language filters without
// owning the ProjectIndex itself.
type ChunkSource interface {
	GetChunk(id string) (*model.SemanticChunk, bool)
}

// Options narrows a single Retrieve call.
type Options struct {
	// MaxTokens bounds the packed context's total size (default from config).
	MaxTokens int

	// MinScore overrides the config's hybrid/BM25-only floor.
	MinScore float64

	// Files, when non-empty, are glob patterns (path.Match syntax) that
	// reorder matching chunks to the front of the packed result, without
	// excluding non-matching chunks.
	Files []string

	// Language restricts results to chunks from files of this language.
	Language string
}

// RetrievedChunk is one packed result, with its fused score.
type RetrievedChunk struct {
	Chunk *model.SemanticChunk
	Score float64
}

// RetrievedContext is the full result of a Retrieve call.
type RetrievedContext struct {
	Chunks       []RetrievedChunk
	FormattedText string
	Tier         Tier
	TotalTokens  int
	Truncated    bool
}

// Tier records which retrieval path actually produced the result, so a
// caller can tell a confident hybrid match from a last-resort fallback.
type Tier string

const (
	TierHybrid  Tier = "hybrid"
	TierBM25    Tier = "bm25"
	TierFallback Tier = "keyword-fallback"
	TierEmpty   Tier = "empty"
)

// Retriever fuses BM25 and optional vector search results into a single
// ranked, budget-packed context.
type Retriever struct {
	cfg      coreconfig.RetrieverConfig
	bm       bm25.SearchIndex
	vectors  store.VectorStore
	embedder EmbeddingProvider
	chunks   ChunkSource
}

// New builds a Retriever. vectors and embedder may both be nil, in which
// case every query runs BM25-only (or the keyword fallback if bm itself
// can't be queried).
func New(cfg coreconfig.RetrieverConfig, bm bm25.SearchIndex, vectors store.VectorStore, embedder EmbeddingProvider, chunks ChunkSource) *Retriever {
	return &Retriever{cfg: cfg, bm: bm, vectors: vectors, embedder: embedder, chunks: chunks}
}

// Retrieve runs the hybrid pipeline for query and packs the result into a
// token budget. An empty or whitespace-only query returns an empty,
// non-error result (spec: never throws on empty results).
func (r *Retriever) Retrieve(ctx context.Context, query string, opts Options) (*RetrievedContext, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return &RetrievedContext{Tier: TierEmpty}, nil
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = r.cfg.MaxTokens
	}
	if maxTokens <= 0 {
		maxTokens = 8000
	}

	fused, tier := r.fuse(ctx, query, opts.Language)
	minScore := opts.MinScore
	if minScore <= 0 {
		if tier == TierHybrid {
			minScore = r.cfg.HybridMinScore
		} else {
			minScore = r.cfg.BM25OnlyMinScore
		}
	}

	candidates := r.resolveAndFilter(fused, minScore, opts)
	if len(candidates) == 0 {
		candidates = r.keywordFallback(query, opts)
		if len(candidates) > 0 {
			tier = TierFallback
		} else {
			tier = TierEmpty
		}
	}

	packed, total, truncated := pack(candidates, opts.Files, maxTokens)

	return &RetrievedContext{
		Chunks:        packed,
		FormattedText: format(packed),
		Tier:          tier,
		TotalTokens:   total,
		Truncated:     truncated,
	}, nil
}

type scoredID struct {
	id    string
	score float64
}

// fuse runs BM25 (and, if wired, vector search) over overfetched top-K
// results from each backend and combines them via Reciprocal Rank Fusion:
// score(d) += 1/(k+rank(d)), summed across every backend that ranked d.
// language, when set, is forwarded to the vector store as a filter.
func (r *Retriever) fuse(ctx context.Context, query, language string) ([]scoredID, Tier) {
	k := r.cfg.RRFConstant
	if k <= 0 {
		k = 60
	}
	overfetch := r.cfg.OverfetchLimit
	if overfetch <= 0 {
		overfetch = 50
	}

	rrf := make(map[string]float64)
	ranked := false

	if r.bm != nil {
		hits, err := r.bm.Search(ctx, query, overfetch)
		if err == nil {
			for rank, h := range hits {
				rrf[h.DocID] += 1.0 / float64(k+rank+1)
			}
			ranked = true
		}
	}

	tier := TierBM25
	if r.vectors != nil && r.embedder != nil {
		var filter *store.VectorFilter
		if language != "" {
			filter = &store.VectorFilter{Language: language}
		}
		if vec, err := r.embedder.Embed(ctx, query); err == nil {
			if hits, err := r.vectors.Search(ctx, vec, overfetch, filter); err == nil && len(hits) > 0 {
				for rank, h := range hits {
					rrf[h.ID] += 1.0 / float64(k+rank+1)
				}
				tier = TierHybrid
				ranked = true
			}
		}
	}

	if !ranked {
		return nil, TierEmpty
	}

	out := make([]scoredID, 0, len(rrf))
	for id, score := range rrf {
		out = append(out, scoredID{id: id, score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].id < out[j].id
	})

	// Normalize against the top fused score: raw RRF magnitudes top out
	// near numBackends/(k+1), so the min-score floor is a cut relative to
	// the best hit, not an absolute RRF value. Order and ties are
	// unaffected.
	if len(out) > 0 && out[0].score > 0 {
		top := out[0].score
		for i := range out {
			out[i].score /= top
		}
	}
	return out, tier
}

func (r *Retriever) resolveAndFilter(fused []scoredID, minScore float64, opts Options) []RetrievedChunk {
	var out []RetrievedChunk
	for _, f := range fused {
		if f.score < minScore {
			continue
		}
		chunk, ok := r.chunks.GetChunk(f.id)
		if !ok {
			continue
		}
		if opts.Language != "" && chunk.Metadata.Language != opts.Language {
			continue
		}
		out = append(out, RetrievedChunk{Chunk: chunk, Score: f.score})
	}
	return out
}

// keywordFallback runs when the BM25/vector backends returned nothing
// usable (both unavailable, or every hit fell below the score floor). It
// scores every chunk the ChunkSource exposes by substring/symbol-name
// match: a direct symbol-name hit is worth +3, each other query-token
// occurrence in the content is worth +1, and a chunk whose metadata
// reports exported symbols gets a +0.5 tie-break nudge. This path never
// needs the index generation to be in a clean state, so it's also the
// degradation path when the real backends are simply unbuilt.
func (r *Retriever) keywordFallback(query string, opts Options) []RetrievedChunk {
	all := allChunks(r.chunks)
	if len(all) == 0 {
		return nil
	}

	tokens := bm25ishTokens(query)
	if len(tokens) == 0 {
		return nil
	}

	var out []RetrievedChunk
	for _, chunk := range all {
		if opts.Language != "" && chunk.Metadata.Language != opts.Language {
			continue
		}
		score := fallbackScore(chunk, tokens)
		if score <= 0 {
			continue
		}
		out = append(out, RetrievedChunk{Chunk: chunk, Score: score})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Chunk.ID < out[j].Chunk.ID
	})
	return out
}

func fallbackScore(chunk *model.SemanticChunk, tokens []string) float64 {
	var score float64
	lowerContent := strings.ToLower(chunk.Content)
	for _, t := range tokens {
		for _, name := range chunk.SymbolNames {
			if strings.EqualFold(name, t) {
				score += 3
			}
		}
		score += float64(strings.Count(lowerContent, t))
	}
	if chunk.Metadata.HasExports {
		score += 0.5
	}
	return score
}

func bm25ishTokens(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9' || r == '_')
	})
	var out []string
	for _, f := range fields {
		if len(f) >= 2 {
			out = append(out, f)
		}
	}
	return out
}

// allChunksSource lets ChunkSource implementations optionally expose a full
// enumeration for the keyword fallback path.
type allChunksSource interface {
	AllChunks() []*model.SemanticChunk
}

func allChunks(src ChunkSource) []*model.SemanticChunk {
	if a, ok := src.(allChunksSource); ok {
		return a.AllChunks()
	}
	return nil
}
