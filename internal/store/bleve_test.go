package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBleveIndexSearch(t *testing.T) {
	idx, err := NewBleveIndex("")
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	err = idx.Index(ctx, []*Document{
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

func TestBleveIndexIdentifierSplitting(t *testing.T) {
	idx, err := NewBleveIndex("")
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, []*Document{
		{ID: "a", Content: "getUserName returns the display name"},
		{ID: "b", Content: "parse HTTP headers"},
	}))

	// camelCase identifiers are searchable by their parts.
	hits, err := idx.Search(ctx, "user", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].DocID)
}

func TestBleveIndexEmptyQuery(t *testing.T) {
	idx, err := NewBleveIndex("")
	require.NoError(t, err)
	defer idx.Close()

	hits, err := idx.Search(context.Background(), "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestBleveIndexDelete(t *testing.T) {
	idx, err := NewBleveIndex("")
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, []*Document{
		{ID: "keep", Content: "retained document"},
		{ID: "drop", Content: "discarded document"},
	}))
	require.NoError(t, idx.Delete(ctx, []string{"drop"}))
	assert.Equal(t, 1, idx.DocCount())
}

func TestBleveIndexReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bleve")
	ctx := context.Background()

	idx, err := NewBleveIndex(path)
	require.NoError(t, err)
	require.NoError(t, idx.Index(ctx, []*Document{{ID: "x", Content: "persisted chunk body"}}))
	require.NoError(t, idx.Close())

	reopened, err := NewBleveIndex(path)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, 1, reopened.DocCount())

	hits, err := reopened.Search(ctx, "persisted", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "x", hits[0].DocID)
}

func TestBleveIndexClosed(t *testing.T) {
	idx, err := NewBleveIndex("")
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	require.ErrorIs(t, idx.Index(context.Background(), []*Document{{ID: "y"}}), errClosed)
	_, err = idx.Search(context.Background(), "q", 1)
	require.ErrorIs(t, err, errClosed)
	assert.Equal(t, 0, idx.DocCount())
}
