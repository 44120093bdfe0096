package parser

import "github.com/unicore-dev/uce/internal/coreerrors"

var (
	errGrammarUnavailable = coreerrors.ParseFailed("grammar unavailable", nil)
	errGrammarTimeout     = coreerrors.ParseFailed("grammar load timed out", nil)
)
