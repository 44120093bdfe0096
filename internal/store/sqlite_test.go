package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteIndex(t *testing.T, path string) *SQLiteIndex {
	t.Helper()
	idx, err := NewSQLiteIndex(path, DefaultKeywordConfig())
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestSQLiteIndexSearch(t *testing.T) {
	idx := newTestSQLiteIndex(t, "")
	ctx := context.Background()

	err := idx.Index(ctx, []*Document{
		{ID: "src/auth.ts:authenticate", Content: "func authenticateUser(token string) error"},
		{ID: "src/session.ts:logout", Content: "func logoutSession(id string) error"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, idx.DocCount())

	hits, err := idx.Search(ctx, "authenticate", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "src/auth.ts:authenticate", hits[0].DocID)
	assert.Greater(t, hits[0].Score, 0.0)
}

func TestSQLiteIndexReplaceByID(t *testing.T) {
	idx := newTestSQLiteIndex(t, "")
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []*Document{{ID: "a", Content: "original payload"}}))
	require.NoError(t, idx.Index(ctx, []*Document{{ID: "a", Content: "replacement payload"}}))
	require.Equal(t, 1, idx.DocCount())

	hits, err := idx.Search(ctx, "replacement", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	hits, err = idx.Search(ctx, "original", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSQLiteIndexStopWordsAndShortTokens(t *testing.T) {
	idx := newTestSQLiteIndex(t, "")
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []*Document{{ID: "a", Content: "the function returns a value"}}))

	// A query of nothing but stop words and one-char tokens matches nothing.
	hits, err := idx.Search(ctx, "the if a x", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSQLiteIndexPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bm25.db")
	ctx := context.Background()

	idx := newTestSQLiteIndex(t, path)
	require.NoError(t, idx.Index(ctx, []*Document{{ID: "x", Content: "durable chunk body"}}))
	require.NoError(t, idx.Close())

	reopened := newTestSQLiteIndex(t, path)
	assert.Equal(t, 1, reopened.DocCount())
	hits, err := reopened.Search(ctx, "durable", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "x", hits[0].DocID)
}

func TestSQLiteIndexDelete(t *testing.T) {
	idx := newTestSQLiteIndex(t, "")
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []*Document{
		{ID: "keep", Content: "retained"},
		{ID: "drop", Content: "discarded"},
	}))
	require.NoError(t, idx.Delete(ctx, []string{"drop"}))
	assert.Equal(t, 1, idx.DocCount())
}
