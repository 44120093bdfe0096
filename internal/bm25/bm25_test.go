package bm25

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unicore-dev/uce/internal/coreconfig"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	return New(coreconfig.DefaultBM25Config())
}

func TestSearch_RanksMatchingDocumentHigher(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.AddDocuments(ctx, []Document{
		{ID: "auth.ts:authenticate", Content: "function authenticate(user string, pass string) bool { return checkAuthenticate(user, pass) }"},
		{ID: "session.ts:logout", Content: "function logout(session string) { endSession(session) }"},
	}))

	results, err := idx.Search(ctx, "authenticate", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "auth.ts:authenticate", results[0].DocID)
	assert.Greater(t, results[0].Score, 0.0)
}

func TestSearch_EmptyQueryReturnsNoResults(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.AddDocuments(ctx, []Document{{ID: "a", Content: "func foo() {}"}}))

	results, err := idx.Search(ctx, "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestTokenize_SplitsCamelAndSnakeCase(t *testing.T) {
	idx := newTestIndex(t)
	tokens := idx.Tokenize("getUserName get_user_name XMLParser")
	assert.Equal(t, []string{"get", "user", "name", "get", "user", "name", "xml", "parser"}, tokens)
}

func TestTokenize_DeterministicUnderRepetition(t *testing.T) {
	idx := newTestIndex(t)
	text := "function authenticateUser(userName string) { return userName }"
	first := idx.Tokenize(text)
	second := idx.Tokenize(text)
	assert.Equal(t, first, second)
}

func TestRoundTrip_IdenticalScoresAfterFromJSON(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.AddDocuments(ctx, []Document{
		{ID: "a", Content: "function authenticate(user string) { validateCredentials(user) }"},
		{ID: "b", Content: "function logout(session string) { endSession(session) }"},
		{ID: "c", Content: "function authenticateAdmin(user string) { authenticate(user); checkAdmin(user) }"},
	}))

	before, err := idx.Search(ctx, "authenticate user", 10)
	require.NoError(t, err)

	data, err := idx.ToJSON()
	require.NoError(t, err)

	restored := New(coreconfig.DefaultBM25Config())
	require.NoError(t, restored.FromJSON(data))

	after, err := restored.Search(ctx, "authenticate user", 10)
	require.NoError(t, err)

	require.Equal(t, len(before), len(after))
	for i := range before {
		assert.Equal(t, before[i].DocID, after[i].DocID)
		assert.InDelta(t, before[i].Score, after[i].Score, 1e-9)
	}
}

func TestRemove_DropsDocumentFromSearch(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.AddDocuments(ctx, []Document{
		{ID: "a", Content: "function authenticate() {}"},
	}))
	idx.Remove([]string{"a"})

	results, err := idx.Search(ctx, "authenticate", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 0, idx.Count())
}

func TestSearch_TieBreaksOnDocumentID(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	// Identical content -> identical scores; results[0].DocID must be the
	// lexicographically smaller id.
	require.NoError(t, idx.AddDocuments(ctx, []Document{
		{ID: "zzz", Content: "function widget() { return widget }"},
		{ID: "aaa", Content: "function widget() { return widget }"},
	}))

	results, err := idx.Search(ctx, "widget", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "aaa", results[0].DocID)
	assert.Equal(t, "zzz", results[1].DocID)
	assert.InDelta(t, results[0].Score, results[1].Score, 1e-9)
}

func TestAddDocuments_ReplacesExistingID(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.AddDocuments(ctx, []Document{{ID: "a", Content: "function foo() {}"}}))
	require.NoError(t, idx.AddDocuments(ctx, []Document{{ID: "a", Content: "function authenticate() {}"}}))

	assert.Equal(t, 1, idx.Count())
	results, err := idx.Search(ctx, "authenticate", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)

	results, err = idx.Search(ctx, "foo", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}
