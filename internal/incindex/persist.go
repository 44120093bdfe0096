package incindex

import (
	"encoding/json"
	"log/slog"
	"path/filepath"

	"github.com/unicore-dev/uce/internal/cachefs"
	"github.com/unicore-dev/uce/internal/coreerrors"
	"github.com/unicore-dev/uce/internal/model"
)

func (ix *Indexer) indexPath() string { return filepath.Join(ix.cacheDir, "index.json") }
func (ix *Indexer) graphPath() string { return filepath.Join(ix.cacheDir, "graph.json") }
func (ix *Indexer) bm25Path() string  { return filepath.Join(ix.cacheDir, "bm25.json") }

// hashesSnapshot is the persisted wrapper around a ProjectIndex that also
// carries the content-hash map, so a restart can tell "unchanged since last
// run" from "new file" without re-reading and re-hashing every file that
// didn't change.
type hashesSnapshot struct {
	Index  *model.ProjectIndex `json:"index"`
	Hashes map[string]string   `json:"hashes"`
}

// persistIndex writes index.json under the cache directory's write lock.
func (ix *Indexer) persistIndex() error {
	if err := ix.lock.Lock(); err != nil {
		return err
	}
	defer func() { _ = ix.lock.Unlock() }()

	ix.mu.RLock()
	snap := hashesSnapshot{Index: ix.index, Hashes: ix.hashes}
	ix.mu.RUnlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return cachefs.WriteAtomic(ix.indexPath(), data)
}

// persistGraphLocked writes graph.json. Caller must hold ix.mu.
func (ix *Indexer) persistGraphLocked() error {
	if err := ix.lock.Lock(); err != nil {
		return err
	}
	defer func() { _ = ix.lock.Unlock() }()

	data, err := ix.g.ToJSON()
	if err != nil {
		return err
	}
	return cachefs.WriteAtomic(ix.graphPath(), data)
}

// persistBM25Locked writes bm25.json. Caller must hold ix.mu.
func (ix *Indexer) persistBM25Locked() error {
	if err := ix.lock.Lock(); err != nil {
		return err
	}
	defer func() { _ = ix.lock.Unlock() }()

	data, err := ix.b25.ToJSON()
	if err != nil {
		return err
	}
	return cachefs.WriteAtomic(ix.bm25Path(), data)
}

// loadSnapshot restores index.json (and, if present, graph.json/bm25.json)
// from the cache directory. A missing or corrupt index.json is reported but
// non-fatal: the caller falls back to a full re-index.
func (ix *Indexer) loadSnapshot() error {
	data, err := cachefs.ReadFile(ix.indexPath())
	if err != nil {
		return err
	}
	var snap hashesSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	if snap.Index == nil {
		return nil
	}

	chunkIndex, err := buildChunkIndex(snap.Index)
	if err != nil {
		return coreerrors.New(coreerrors.ErrCodeIndexCorrupted, "index snapshot is internally inconsistent", err)
	}

	ix.mu.Lock()
	ix.index = snap.Index
	ix.hashes = snap.Hashes
	if ix.hashes == nil {
		ix.hashes = make(map[string]string)
	}
	ix.chunkIndex = chunkIndex
	ix.mu.Unlock()

	// Derived snapshots are adopted only if they agree with the restored
	// index; a disagreeing one stays dirty and rebuilds on next access.
	if gdata, err := cachefs.ReadFile(ix.graphPath()); err == nil {
		g := ix.g
		if err := g.FromJSON(gdata); err == nil && graphAgrees(g, snap.Index) {
			ix.mu.Lock()
			ix.g = g
			ix.mu.Unlock()
		} else {
			slog.Warn("incindex: graph snapshot disagrees with index, will rebuild",
				slog.String("code", coreerrors.ErrCodeIndexCorrupted))
			ix.g.MarkDirty()
		}
	}

	if bdata, err := cachefs.ReadFile(ix.bm25Path()); err == nil {
		idx := newNativeFromConfig(ix.cfg)
		if err := idx.FromJSON(bdata); err == nil && bm25Agrees(idx, chunkIndex) {
			ix.mu.Lock()
			ix.b25 = idx
			ix.bm25Dirty = false
			ix.mu.Unlock()
		} else {
			slog.Warn("incindex: bm25 snapshot disagrees with index, will rebuild",
				slog.String("code", coreerrors.ErrCodeIndexCorrupted))
		}
	}

	return nil
}
