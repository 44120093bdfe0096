package incindex

import (
	"fmt"

	"github.com/unicore-dev/uce/internal/bm25"
	"github.com/unicore-dev/uce/internal/graph"
	"github.com/unicore-dev/uce/internal/model"
)

// Snapshot verification: a restored index.json is only trusted if its
// derived snapshots agree with it. A bm25.json or graph.json that drifted
// from the chunk set (a crash between the index write and the derived
// writes, or a hand-edited cache) is discarded and rebuilt from the
// restored ProjectIndex, which is exactly the recovery path the dirty
// flags already implement. Disagreement inside index.json itself —
// duplicate chunk ids across files — makes the whole snapshot unusable
// and forces a full re-index.

// buildChunkIndex collects every chunk across files, failing on a chunk id
// that appears twice within one generation.
func buildChunkIndex(idx *model.ProjectIndex) (map[string]*model.SemanticChunk, error) {
	chunkIndex := make(map[string]*model.SemanticChunk)
	for _, fi := range idx.Files {
		for _, c := range fi.Chunks {
			if prev, dup := chunkIndex[c.ID]; dup {
				return nil, fmt.Errorf("duplicate chunk id %q in %s and %s", c.ID, prev.FilePath, c.FilePath)
			}
			chunkIndex[c.ID] = c
		}
	}
	return chunkIndex, nil
}

// bm25Agrees reports whether the restored BM25 snapshot's document set is
// exactly the chunk set: no orphan documents, no missing chunks.
func bm25Agrees(idx *bm25.Index, chunkIndex map[string]*model.SemanticChunk) bool {
	ids := idx.DocIDs()
	if len(ids) != len(chunkIndex) {
		return false
	}
	for _, id := range ids {
		if _, ok := chunkIndex[id]; !ok {
			return false
		}
	}
	return true
}

// graphAgrees reports whether every file node in the restored graph still
// names a file in the index. Symbol and placeholder nodes hang off file
// nodes, so file-level agreement is sufficient to trust the restore.
func graphAgrees(g *graph.Graph, idx *model.ProjectIndex) bool {
	for _, n := range g.FindNodes(graph.NodeFilter{Type: model.NodeTypeFile}) {
		if _, ok := idx.Files[n.FilePath]; !ok {
			return false
		}
	}
	return true
}
