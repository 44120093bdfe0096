package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unicore-dev/uce/internal/bm25"
	"github.com/unicore-dev/uce/internal/coreconfig"
	"github.com/unicore-dev/uce/internal/model"
	"github.com/unicore-dev/uce/internal/store"
)

type fakeChunkSource struct {
	chunks map[string]*model.SemanticChunk
}

func (f *fakeChunkSource) GetChunk(id string) (*model.SemanticChunk, bool) {
	c, ok := f.chunks[id]
	return c, ok
}

func (f *fakeChunkSource) AllChunks() []*model.SemanticChunk {
	out := make([]*model.SemanticChunk, 0, len(f.chunks))
	for _, c := range f.chunks {
		out = append(out, c)
	}
	return out
}

func newFixtureSource() *fakeChunkSource {
	return &fakeChunkSource{chunks: map[string]*model.SemanticChunk{
		"auth.go:Login": {
			ID: "auth.go:Login", FilePath: "auth.go", StartLine: 1, EndLine: 10,
			Content:     "func Login(user string) error {\n\treturn validateCredentials(user)\n}",
			SymbolNames: []string{"Login"},
			Metadata:    model.ChunkMetadata{Language: "go", HasExports: true},
		},
		"widgets.go:ParseWidget": {
			ID: "widgets.go:ParseWidget", FilePath: "widgets.go", StartLine: 1, EndLine: 20,
			Content:     "func ParseWidget(raw []byte) (*Widget, error) {\n\treturn decode(raw)\n}",
			SymbolNames: []string{"ParseWidget"},
			Metadata:    model.ChunkMetadata{Language: "go", HasExports: true},
		},
	}}
}

func newBM25WithFixtures(t *testing.T, src *fakeChunkSource) bm25.SearchIndex {
	t.Helper()
	idx := bm25.New(coreconfig.DefaultBM25Config())
	var docs []bm25.Document
	for _, c := range src.chunks {
		docs = append(docs, bm25.Document{ID: c.ID, Content: c.Content})
	}
	require.NoError(t, idx.AddDocuments(context.Background(), docs))
	return idx
}

func TestRetrieve_EmptyQueryReturnsEmptyTier(t *testing.T) {
	src := newFixtureSource()
	r := New(coreconfig.DefaultRetrieverConfig(), newBM25WithFixtures(t, src), nil, nil, src)

	result, err := r.Retrieve(context.Background(), "   ", Options{})
	require.NoError(t, err)
	assert.Equal(t, TierEmpty, result.Tier)
	assert.Empty(t, result.Chunks)
}

func TestRetrieve_BM25OnlyFindsRelevantChunk(t *testing.T) {
	src := newFixtureSource()
	r := New(coreconfig.DefaultRetrieverConfig(), newBM25WithFixtures(t, src), nil, nil, src)

	result, err := r.Retrieve(context.Background(), "widget parsing", Options{})
	require.NoError(t, err)
	assert.Equal(t, TierBM25, result.Tier)
	require.NotEmpty(t, result.Chunks)
	assert.Equal(t, "widgets.go:ParseWidget", result.Chunks[0].Chunk.ID)
	assert.Contains(t, result.FormattedText, "// File: widgets.go:1-20")
}

func TestRetrieve_KeywordFallbackWhenBM25Unavailable(t *testing.T) {
	src := newFixtureSource()
	r := New(coreconfig.DefaultRetrieverConfig(), nil, nil, nil, src)

	result, err := r.Retrieve(context.Background(), "Login", Options{})
	require.NoError(t, err)
	assert.Equal(t, TierFallback, result.Tier)
	require.NotEmpty(t, result.Chunks)
	assert.Equal(t, "auth.go:Login", result.Chunks[0].Chunk.ID)
}

func TestRetrieve_RespectsTokenBudget(t *testing.T) {
	src := newFixtureSource()
	r := New(coreconfig.DefaultRetrieverConfig(), newBM25WithFixtures(t, src), nil, nil, src)

	result, err := r.Retrieve(context.Background(), "widget Login parse", Options{MaxTokens: 5})
	require.NoError(t, err)
	assert.True(t, result.TotalTokens <= 5)
}

func TestRetrieve_FiltersByLanguage(t *testing.T) {
	src := newFixtureSource()
	src.chunks["docs.md:intro"] = &model.SemanticChunk{
		ID: "docs.md:intro", FilePath: "docs.md", StartLine: 1, EndLine: 3,
		Content:  "widget usage guide",
		Metadata: model.ChunkMetadata{Language: "markdown"},
	}
	r := New(coreconfig.DefaultRetrieverConfig(), newBM25WithFixtures(t, src), nil, nil, src)

	result, err := r.Retrieve(context.Background(), "widget", Options{Language: "go"})
	require.NoError(t, err)
	for _, c := range result.Chunks {
		assert.Equal(t, "go", c.Chunk.Metadata.Language)
	}
}

func TestRetrieve_FilesPriorityReordersPackedResults(t *testing.T) {
	src := newFixtureSource()
	r := New(coreconfig.DefaultRetrieverConfig(), newBM25WithFixtures(t, src), nil, nil, src)

	result, err := r.Retrieve(context.Background(), "widget parse login credentials", Options{Files: []string{"auth.go"}})
	require.NoError(t, err)
	require.NotEmpty(t, result.Chunks)
	assert.Equal(t, "auth.go", result.Chunks[0].Chunk.FilePath)
}

type erroringEmbedder struct{}

func (erroringEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedding backend unavailable")
}

func TestRetrieve_DegradesToBM25WhenEmbedderFails(t *testing.T) {
	src := newFixtureSource()
	var vectors store.VectorStore // nil: no vector backend wired either
	r := New(coreconfig.DefaultRetrieverConfig(), newBM25WithFixtures(t, src), vectors, erroringEmbedder{}, src)

	result, err := r.Retrieve(context.Background(), "widget", Options{})
	require.NoError(t, err)
	assert.Equal(t, TierBM25, result.Tier)
}

// Fixed-ranking fakes for exercising the fusion math directly.

type fixedBM25 struct{ ranking []string }

func (f fixedBM25) AddDocuments(context.Context, []bm25.Document) error { return nil }
func (f fixedBM25) Count() int                                          { return len(f.ranking) }
func (f fixedBM25) Search(_ context.Context, _ string, topK int) ([]bm25.Result, error) {
	var out []bm25.Result
	for i, id := range f.ranking {
		if topK > 0 && i >= topK {
			break
		}
		out = append(out, bm25.Result{DocID: id, Score: float64(len(f.ranking) - i)})
	}
	return out, nil
}

type fixedVectors struct{ ranking []string }

func (f fixedVectors) Initialize(context.Context) error                 { return nil }
func (f fixedVectors) Add(context.Context, []store.VectorEntry) error   { return nil }
func (f fixedVectors) Count() int                                       { return len(f.ranking) }
func (f fixedVectors) Clear() error                                     { return nil }
func (f fixedVectors) Close() error                                     { return nil }
func (f fixedVectors) Search(_ context.Context, _ []float32, k int, _ *store.VectorFilter) ([]store.VectorHit, error) {
	var out []store.VectorHit
	for i, id := range f.ranking {
		if k > 0 && i >= k {
			break
		}
		out = append(out, store.VectorHit{ID: id, Score: float32(len(f.ranking)-i) * 0.1})
	}
	return out, nil
}

type fixedEmbedder struct{}

func (fixedEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func fusionSource(ids ...string) *fakeChunkSource {
	src := &fakeChunkSource{chunks: map[string]*model.SemanticChunk{}}
	for _, id := range ids {
		src.chunks[id] = &model.SemanticChunk{
			ID: id, FilePath: id + ".go", StartLine: 1, EndLine: 2,
			Content:  "func " + id + "() {}",
			Metadata: model.ChunkMetadata{Language: "go"},
		}
	}
	return src
}

// Sparse ranking [A B C] fused with dense ranking [B A D] at k=60: A and B
// tie on 1/61+1/62, C and D tie on 1/63; ties resolve lexicographically.
func TestRetrieve_HybridFusionOrdersAndBreaksTies(t *testing.T) {
	src := fusionSource("A", "B", "C", "D")
	r := New(coreconfig.DefaultRetrieverConfig(),
		fixedBM25{ranking: []string{"A", "B", "C"}},
		fixedVectors{ranking: []string{"B", "A", "D"}},
		fixedEmbedder{}, src)

	result, err := r.Retrieve(context.Background(), "anything", Options{})
	require.NoError(t, err)
	assert.Equal(t, TierHybrid, result.Tier)

	require.Len(t, result.Chunks, 4)
	got := make([]string, len(result.Chunks))
	for i, c := range result.Chunks {
		got[i] = c.Chunk.ID
	}
	assert.Equal(t, []string{"A", "B", "C", "D"}, got)
	assert.InDelta(t, result.Chunks[0].Score, result.Chunks[1].Score, 1e-9)
	assert.InDelta(t, result.Chunks[2].Score, result.Chunks[3].Score, 1e-9)
}

// A document that outranks another in both backends must outrank it in
// the fused result.
func TestRetrieve_FusionPreservesPairwiseDominance(t *testing.T) {
	src := fusionSource("A", "B", "C")
	r := New(coreconfig.DefaultRetrieverConfig(),
		fixedBM25{ranking: []string{"A", "C", "B"}},
		fixedVectors{ranking: []string{"A", "B", "C"}},
		fixedEmbedder{}, src)

	result, err := r.Retrieve(context.Background(), "anything", Options{})
	require.NoError(t, err)
	require.NotEmpty(t, result.Chunks)
	assert.Equal(t, "A", result.Chunks[0].Chunk.ID)
}
