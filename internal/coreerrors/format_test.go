package coreerrors

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatJSONRoundTrips(t *testing.T) {
	err := RetrievalLowConfidence("no chunk scored above floor").
		WithDetail("query", "parse config").
		WithSuggestion("broaden the query or lower minScore")

	raw, marshalErr := FormatJSON(err)
	require.NoError(t, marshalErr)

	var decoded jsonError
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, ErrCodeRetrievalLowConfidence, decoded.Code)
	assert.Equal(t, string(CategoryRetrieval), decoded.Category)
	assert.Equal(t, "parse config", decoded.Details["query"])
	assert.Equal(t, "broaden the query or lower minScore", decoded.Suggestion)
}

func TestFormatJSONNilError(t *testing.T) {
	raw, err := FormatJSON(nil)
	require.NoError(t, err)
	assert.Equal(t, "null", string(raw))
}

func TestLogAttrsIncludesDetailsWithPrefix(t *testing.T) {
	err := ParseFailed("bad grammar", nil).WithDetail("language", "go")
	attrs := LogAttrs(err)
	assert.Equal(t, ErrCodeParseFailed, attrs["error_code"])
	assert.Equal(t, "go", attrs["detail_language"])
}
