package coreerrors

import "fmt"

// UCEError is the structured error type every package in this module
// returns. It carries enough shape for both structured logging and
// the machine-readable surface an external caller inspects per the
// error handling design.
type UCEError struct {
	// Code is the unique error code (e.g. "ERR_301_FILESYSTEM_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the taxonomy family (Index, Parse, FileSystem, ...).
	Category Category

	// Severity grades how the caller should react.
	Severity Severity

	// Details carries additional structured context.
	Details map[string]string

	// Cause is the underlying error, if any.
	Cause error

	// Retryable indicates the operation can be retried unchanged.
	Retryable bool

	// Suggestion is an actionable remediation hint.
	Suggestion string
}

func (e *UCEError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *UCEError) Unwrap() error {
	return e.Cause
}

// Is enables errors.Is(err, target) to match by code.
func (e *UCEError) Is(target error) bool {
	t, ok := target.(*UCEError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func (e *UCEError) WithDetail(key, value string) *UCEError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

func (e *UCEError) WithSuggestion(suggestion string) *UCEError {
	e.Suggestion = suggestion
	return e
}

// New builds a UCEError, deriving category/severity/retryable from code.
func New(code, message string, cause error) *UCEError {
	return &UCEError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap adapts a plain error into a UCEError under the given code.
func Wrap(code string, err error) *UCEError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// IndexNotFound reports a missing snapshot on disk.
func IndexNotFound(message string, cause error) *UCEError {
	return New(ErrCodeIndexNotFound, message, cause)
}

// IndexCorrupted reports a snapshot that failed to decode or validate.
func IndexCorrupted(message string, cause error) *UCEError {
	return New(ErrCodeIndexCorrupted, message, cause)
}

// ParseFailed reports a grammar/regex parse failure for one file.
func ParseFailed(message string, cause error) *UCEError {
	return New(ErrCodeParseFailed, message, cause)
}

// ParseUnsupportedLanguage reports a language with no registered backend.
func ParseUnsupportedLanguage(message string) *UCEError {
	return New(ErrCodeParseUnsupportedLanguage, message, nil)
}

// FileSystemNotFound reports a missing path during enumeration or load.
func FileSystemNotFound(message string, cause error) *UCEError {
	return New(ErrCodeFileSystemNotFound, message, cause)
}

// FileSystemPermissionDenied reports an unreadable path.
func FileSystemPermissionDenied(message string, cause error) *UCEError {
	return New(ErrCodeFileSystemPermissionDenied, message, cause)
}

// RetrievalQueryEmpty reports a blank or whitespace-only query string.
func RetrievalQueryEmpty(message string) *UCEError {
	return New(ErrCodeRetrievalQueryEmpty, message, nil)
}

// RetrievalLowConfidence reports a query that ran but found nothing worth
// returning above the confidence floor.
func RetrievalLowConfidence(message string) *UCEError {
	return New(ErrCodeRetrievalLowConfidence, message, nil)
}

// RetrievalTimeout reports a query that exceeded its deadline.
func RetrievalTimeout(message string, cause error) *UCEError {
	return New(ErrCodeRetrievalTimeout, message, cause)
}

// Internal reports an unexpected internal failure.
func Internal(message string, cause error) *UCEError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable reports whether err is a UCEError flagged as retryable.
func IsRetryable(err error) bool {
	ue, ok := err.(*UCEError)
	return ok && ue.Retryable
}

// IsFatal reports whether err is a UCEError with fatal severity.
func IsFatal(err error) bool {
	ue, ok := err.(*UCEError)
	return ok && ue.Severity == SeverityFatal
}

// Code extracts the error code, or "" if err is not a UCEError.
func Code(err error) string {
	if ue, ok := err.(*UCEError); ok {
		return ue.Code
	}
	return ""
}

// GetCategory extracts the category, or "" if err is not a UCEError.
func GetCategory(err error) Category {
	if ue, ok := err.(*UCEError); ok {
		return ue.Category
	}
	return ""
}
