package incindex

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/unicore-dev/uce/internal/model"
)

// ChangeReport summarizes what an UpdateFiles call actually did: the
// affected file sets and the generation that now carries them. This is
// also the payload of the change events an external watcher layer relays.
type ChangeReport struct {
	Added      []string
	Modified   []string
	Removed    []string
	Generation int64
	Duration   time.Duration
}

// UpdateFiles runs a full Index pass, then reports how the given paths
// changed in the new generation. The pass is not narrowed to the given
// paths: every new or changed file in the tree is re-parsed and every
// removed file evicted, but only requested paths appear in the report.
// It is the entry point a file-watcher hook calls; Index is the
// full-tree entry point used on startup or when the cache is unusable.
// Requested paths whose content hash did not change appear in no set.
func (ix *Indexer) UpdateFiles(ctx context.Context, paths []string) (*ChangeReport, error) {
	started := time.Now()
	before := ix.GetIndex()
	newIdx, err := ix.Index(ctx)
	if err != nil {
		return nil, err
	}

	requested := make(map[string]bool, len(paths))
	for _, p := range paths {
		requested[p] = true
	}

	report := &ChangeReport{Generation: newIdx.Generation}
	for p := range requested {
		after, inNew := newIdx.Files[p]
		prior, inOld := before.Files[p]
		switch {
		case !inNew && inOld:
			report.Removed = append(report.Removed, p)
		case inNew && !inOld:
			report.Added = append(report.Added, p)
		case inNew && inOld && prior.ContentHash != after.ContentHash:
			report.Modified = append(report.Modified, p)
		}
	}
	sort.Strings(report.Added)
	sort.Strings(report.Modified)
	sort.Strings(report.Removed)
	report.Duration = time.Since(started)
	return report, nil
}

// SymbolSearchOptions narrows SearchSymbols.
type SymbolSearchOptions struct {
	Kind         model.SymbolKind
	ExportedOnly bool
	Limit        int
}

// SearchSymbols returns every symbol across the current generation whose
// name contains query (case-insensitive), narrowed by options, in
// repo-relative file order then declaration order.
func (ix *Indexer) SearchSymbols(query string, opts SymbolSearchOptions) []*model.Symbol {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	q := strings.ToLower(query)
	paths := make([]string, 0, len(ix.index.Files))
	for p := range ix.index.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var out []*model.Symbol
	for _, p := range paths {
		for _, sym := range ix.index.Files[p].Symbols {
			if q != "" && !strings.Contains(strings.ToLower(sym.Name), q) {
				continue
			}
			if opts.Kind != "" && sym.Kind != opts.Kind {
				continue
			}
			if opts.ExportedOnly && !sym.Exported {
				continue
			}
			out = append(out, sym)
			if opts.Limit > 0 && len(out) >= opts.Limit {
				return out
			}
		}
	}
	return out
}

// GetDependencies returns the repo-relative paths path depends on (its
// resolved relative imports), in ascending order.
func (ix *Indexer) GetDependencies(path string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var out []string
	for _, e := range ix.index.Dependencies {
		if e.From == path {
			out = append(out, e.To)
		}
	}
	sort.Strings(out)
	return out
}

// GetDependents returns the repo-relative paths that depend on path.
func (ix *Indexer) GetDependents(path string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if fi, ok := ix.index.Files[path]; ok {
		return append([]string(nil), fi.ImportedBy...)
	}
	return nil
}

// GetChunk resolves a chunk id against the current generation. It
// implements retriever.ChunkSource so a Retriever can be built directly
// over an Indexer without an intermediate lookup table.
func (ix *Indexer) GetChunk(id string) (*model.SemanticChunk, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	c, ok := ix.chunkIndex[id]
	return c, ok
}

// AllChunks implements the retriever's optional keyword-fallback
// enumeration hook.
func (ix *Indexer) AllChunks() []*model.SemanticChunk {
	return ix.GetAllChunks()
}
