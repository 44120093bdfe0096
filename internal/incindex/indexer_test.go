package incindex

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func newTestIndexer(t *testing.T, root string) *Indexer {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Index.Workers = 2
	ix, err := New(root, "fixture", cfg)
	require.NoError(t, err)
	require.NoError(t, ix.Initialize(context.Background()))
	return ix
}

func TestIndex_ParsesNewFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n\nfunc Hello() string {\n\treturn \"hi\"\n}\n")
	writeFile(t, root, "b.go", "package a\n\nfunc World() string {\n\treturn \"world\"\n}\n")

	ix := newTestIndexer(t, root)
	idx, err := ix.Index(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), idx.Generation)
	assert.Len(t, idx.Files, 2)
	assert.Contains(t, idx.Files, "a.go")
	assert.Contains(t, idx.Files, "b.go")
}

func TestIndex_SkipsUnchangedFilesOnRerun(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n\nfunc Hello() {}\n")

	ix := newTestIndexer(t, root)
	first, err := ix.Index(context.Background())
	require.NoError(t, err)

	firstFileIndex := first.Files["a.go"]

	second, err := ix.Index(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), second.Generation)
	assert.Same(t, firstFileIndex, second.Files["a.go"], "unchanged file should be carried over by pointer, not reparsed")
}

func TestIndex_ReparsesChangedFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n\nfunc Hello() {}\n")

	ix := newTestIndexer(t, root)
	first, err := ix.Index(context.Background())
	require.NoError(t, err)
	firstHash := first.Files["a.go"].ContentHash

	writeFile(t, root, "a.go", "package a\n\nfunc Hello() {}\n\nfunc Goodbye() {}\n")
	second, err := ix.Index(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, firstHash, second.Files["a.go"].ContentHash)
	assert.NotSame(t, first.Files["a.go"], second.Files["a.go"])
}

func TestIndex_EvictsRemovedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n")
	writeFile(t, root, "b.go", "package a\n")

	ix := newTestIndexer(t, root)
	_, err := ix.Index(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "b.go")))
	second, err := ix.Index(context.Background())
	require.NoError(t, err)

	assert.Contains(t, second.Files, "a.go")
	assert.NotContains(t, second.Files, "b.go")
}

func TestGraph_RebuildsOnDirty(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n\nfunc Hello() {}\n")

	ix := newTestIndexer(t, root)
	_, err := ix.Index(context.Background())
	require.NoError(t, err)

	g := ix.Graph()
	assert.False(t, g.Dirty())

	_, err = ix.Index(context.Background())
	require.NoError(t, err)
	assert.True(t, ix.g.Dirty(), "a republished generation should mark the graph dirty")

	g2 := ix.Graph()
	assert.False(t, g2.Dirty())
}

func TestBM25_RebuildsOnDirtyAndIsSearchable(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n\nfunc ParseWidget() {}\n")

	ix := newTestIndexer(t, root)
	_, err := ix.Index(context.Background())
	require.NoError(t, err)

	idx := ix.BM25()
	results, err := idx.Search(context.Background(), "widget", 10)
	require.NoError(t, err)
	if assert.NotEmpty(t, results) {
		assert.Contains(t, results[0].DocID, "a.go")
	}
}

func TestSearchSymbols_FiltersByNameAndExported(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n\nfunc PublicOne() {}\n\nfunc privateTwo() {}\n")

	ix := newTestIndexer(t, root)
	_, err := ix.Index(context.Background())
	require.NoError(t, err)

	results := ix.SearchSymbols("public", SymbolSearchOptions{ExportedOnly: true})
	require.Len(t, results, 1)
	assert.Equal(t, "PublicOne", results[0].Name)
}

func TestUpdateFiles_ReportsAddedModifiedRemoved(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n")
	writeFile(t, root, "b.go", "package a\n")

	ix := newTestIndexer(t, root)
	_, err := ix.Index(context.Background())
	require.NoError(t, err)

	writeFile(t, root, "a.go", "package a\n\nfunc X() {}\n")
	require.NoError(t, os.Remove(filepath.Join(root, "b.go")))

	writeFile(t, root, "c.go", "package a\n\nfunc Y() {}\n")

	report, err := ix.UpdateFiles(context.Background(), []string{"a.go", "b.go", "c.go"})
	require.NoError(t, err)

	assert.Equal(t, []string{"c.go"}, report.Added)
	assert.Equal(t, []string{"a.go"}, report.Modified)
	assert.Equal(t, []string{"b.go"}, report.Removed)
	assert.Greater(t, report.Duration, time.Duration(0))
}

func TestIndex_PersistsAndReloadsFromCache(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n\nfunc Hello() {}\n")

	ix := newTestIndexer(t, root)
	_, err := ix.Index(context.Background())
	require.NoError(t, err)

	reloaded := newTestIndexer(t, root)
	assert.Equal(t, int64(1), reloaded.GetIndex().Generation)
	assert.Contains(t, reloaded.GetIndex().Files, "a.go")
}
