package incindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unicore-dev/uce/internal/bm25"
	"github.com/unicore-dev/uce/internal/coreconfig"
	"github.com/unicore-dev/uce/internal/graph"
	"github.com/unicore-dev/uce/internal/model"
)

func snapshotIndexFixture() *model.ProjectIndex {
	idx := model.NewProjectIndex("proj", "/proj")
	idx.Files = map[string]*model.FileIndex{
		"src/auth.ts": {
			Path:     "src/auth.ts",
			Language: "typescript",
			Chunks: []*model.SemanticChunk{
				{ID: "src/auth.ts:AuthService", FilePath: "src/auth.ts", Content: "class AuthService {}"},
			},
		},
		"src/api.ts": {
			Path:     "src/api.ts",
			Language: "typescript",
			Chunks: []*model.SemanticChunk{
				{ID: "src/api.ts:handler", FilePath: "src/api.ts", Content: "function handler() {}"},
			},
		},
	}
	return idx
}

func TestBuildChunkIndexRejectsDuplicateIDs(t *testing.T) {
	idx := snapshotIndexFixture()
	idx.Files["src/api.ts"].Chunks[0].ID = "src/auth.ts:AuthService"

	_, err := buildChunkIndex(idx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate chunk id")
}

func TestBM25AgreesDetectsDrift(t *testing.T) {
	idx := snapshotIndexFixture()
	chunkIndex, err := buildChunkIndex(idx)
	require.NoError(t, err)

	b := bm25.New(coreconfig.DefaultBM25Config())
	require.NoError(t, b.AddDocuments(context.Background(), []bm25.Document{
		{ID: "src/auth.ts:AuthService", Content: "class AuthService {}"},
		{ID: "src/api.ts:handler", Content: "function handler() {}"},
	}))
	assert.True(t, bm25Agrees(b, chunkIndex))

	// An orphan document (its file was removed after the bm25 write).
	require.NoError(t, b.AddDocuments(context.Background(), []bm25.Document{
		{ID: "src/gone.ts:stale", Content: "ghost"},
	}))
	assert.False(t, bm25Agrees(b, chunkIndex))

	// A missing chunk.
	b.Remove([]string{"src/gone.ts:stale", "src/api.ts:handler"})
	assert.False(t, bm25Agrees(b, chunkIndex))
}

func TestGraphAgreesDetectsRemovedFile(t *testing.T) {
	idx := snapshotIndexFixture()

	g := graph.New()
	g.AddNode(&model.GraphNode{
		ID: graph.FileNodeID("src/auth.ts"), Type: model.NodeTypeFile,
		Name: "src/auth.ts", FilePath: "src/auth.ts",
	})
	assert.True(t, graphAgrees(g, idx))

	g.AddNode(&model.GraphNode{
		ID: graph.FileNodeID("src/gone.ts"), Type: model.NodeTypeFile,
		Name: "src/gone.ts", FilePath: "src/gone.ts",
	})
	assert.False(t, graphAgrees(g, idx))
}
