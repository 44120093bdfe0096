package coreerrors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDerivesCategoryAndSeverity(t *testing.T) {
	tests := []struct {
		name         string
		code         string
		wantCategory Category
		wantSeverity Severity
		wantRetry    bool
	}{
		{"index not found", ErrCodeIndexNotFound, CategoryIndex, SeverityError, false},
		{"index corrupted is fatal", ErrCodeIndexCorrupted, CategoryIndex, SeverityFatal, false},
		{"parse failed", ErrCodeParseFailed, CategoryParse, SeverityError, false},
		{"filesystem permission denied", ErrCodeFileSystemPermissionDenied, CategoryFileSystem, SeverityError, false},
		{"retrieval timeout is retryable", ErrCodeRetrievalTimeout, CategoryRetrieval, SeverityWarning, true},
		{"retrieval query empty is informational", ErrCodeRetrievalQueryEmpty, CategoryRetrieval, SeverityInfo, false},
		{"internal", ErrCodeInternal, CategoryInternal, SeverityError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, "boom", nil)
			assert.Equal(t, tt.wantCategory, err.Category)
			assert.Equal(t, tt.wantSeverity, err.Severity)
			assert.Equal(t, tt.wantRetry, err.Retryable)
		})
	}
}

func TestErrorUnwrapAndIs(t *testing.T) {
	cause := stderrors.New("disk full")
	wrapped := Wrap(ErrCodeFileSystemNotFound, cause)
	require.NotNil(t, wrapped)
	assert.Equal(t, cause, wrapped.Unwrap())
	assert.True(t, stderrors.Is(wrapped, FileSystemNotFound("", nil)))
	assert.False(t, stderrors.Is(wrapped, IndexCorrupted("", nil)))
}

func TestWithDetailAndSuggestionChain(t *testing.T) {
	err := ParseFailed("could not parse file", nil).
		WithDetail("path", "main.go").
		WithSuggestion("check the file encoding")

	assert.Equal(t, "main.go", err.Details["path"])
	assert.Equal(t, "check the file encoding", err.Suggestion)
}

func TestConstructorHelpers(t *testing.T) {
	assert.Equal(t, ErrCodeIndexNotFound, Code(IndexNotFound("missing", nil)))
	assert.Equal(t, ErrCodeIndexCorrupted, Code(IndexCorrupted("bad json", nil)))
	assert.Equal(t, ErrCodeParseUnsupportedLanguage, Code(ParseUnsupportedLanguage("rust")))
	assert.Equal(t, ErrCodeRetrievalLowConfidence, Code(RetrievalLowConfidence("nothing relevant")))
	assert.True(t, IsRetryable(RetrievalTimeout("slow backend", nil)))
	assert.True(t, IsFatal(IndexCorrupted("bad json", nil)))
	assert.Equal(t, CategoryInternal, GetCategory(Internal("oops", nil)))
}

func TestIsRetryableAndIsFatalIgnorePlainErrors(t *testing.T) {
	plain := stderrors.New("plain")
	assert.False(t, IsRetryable(plain))
	assert.False(t, IsFatal(plain))
	assert.Equal(t, "", Code(plain))
	assert.Equal(t, Category(""), GetCategory(plain))
}
