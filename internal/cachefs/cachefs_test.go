package cachefs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unicore-dev/uce/internal/model"
)

func TestWriteAtomic_ReadBack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "index.json")

	require.NoError(t, WriteAtomic(path, []byte(`{"generation":1}`)))

	data, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"generation":1}`, string(data))

	// No leftover temp files after a successful write.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLock_ExclusiveAcquisition(t *testing.T) {
	dir := t.TempDir()

	l1 := NewLock(dir)
	require.NoError(t, l1.Lock())

	l2 := NewLock(dir)
	acquired, err := l2.TryLock()
	require.NoError(t, err)
	assert.False(t, acquired)

	require.NoError(t, l1.Unlock())

	acquired, err = l2.TryLock()
	require.NoError(t, err)
	assert.True(t, acquired)
	require.NoError(t, l2.Unlock())
}

func TestParseCache_PutThenGet(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewParseCache(dir, 8)
	require.NoError(t, err)

	pr := &model.ParseResult{Path: "a.go", Language: "go"}
	require.NoError(t, cache.Put("abc123", pr))

	got, ok := cache.Get("abc123")
	require.True(t, ok)
	assert.Equal(t, "a.go", got.Path)
}

func TestParseCache_MissReturnsFalse(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewParseCache(dir, 8)
	require.NoError(t, err)

	_, ok := cache.Get("nonexistent")
	assert.False(t, ok)
}

func TestParseCache_DiskFallbackAfterEviction(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewParseCache(dir, 1)
	require.NoError(t, err)

	require.NoError(t, cache.Put("a", &model.ParseResult{Path: "a.go"}))
	require.NoError(t, cache.Put("b", &model.ParseResult{Path: "b.go"})) // evicts "a" from memory

	got, ok := cache.Get("a")
	require.True(t, ok, "should fall back to disk after LRU eviction")
	assert.Equal(t, "a.go", got.Path)
}
