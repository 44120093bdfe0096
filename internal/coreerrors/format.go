package coreerrors

import "encoding/json"

// jsonError is the wire representation of a UCEError.
type jsonError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Category   string            `json:"category"`
	Severity   string            `json:"severity"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
	Retryable  bool              `json:"retryable"`
}

// FormatJSON renders err as the machine-readable error object an external
// caller inspects (code, message, category, severity, detail, suggestion).
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}
	ue, ok := err.(*UCEError)
	if !ok {
		ue = Wrap(ErrCodeInternal, err)
	}
	je := jsonError{
		Code:       ue.Code,
		Message:    ue.Message,
		Category:   string(ue.Category),
		Severity:   string(ue.Severity),
		Details:    ue.Details,
		Suggestion: ue.Suggestion,
		Retryable:  ue.Retryable,
	}
	if ue.Cause != nil {
		je.Cause = ue.Cause.Error()
	}
	return json.Marshal(je)
}

// LogAttrs returns key-value pairs suitable for slog.Any/slog attribute
// expansion, used wherever a component logs a UCEError it is about to
// propagate as a diagnostic.
func LogAttrs(err error) map[string]any {
	if err == nil {
		return nil
	}
	ue, ok := err.(*UCEError)
	if !ok {
		return map[string]any{"error": err.Error()}
	}
	attrs := map[string]any{
		"error_code": ue.Code,
		"message":    ue.Message,
		"category":   string(ue.Category),
		"severity":   string(ue.Severity),
		"retryable":  ue.Retryable,
	}
	if ue.Cause != nil {
		attrs["cause"] = ue.Cause.Error()
	}
	if ue.Suggestion != "" {
		attrs["suggestion"] = ue.Suggestion
	}
	for k, v := range ue.Details {
		attrs["detail_"+k] = v
	}
	return attrs
}
