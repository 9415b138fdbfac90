package errors

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatForCLI renders an error for terminal output. Plain errors are
// presented as internal errors.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	ee, ok := As(err)
	if !ok {
		ee = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", ee.Message)
	if path, ok := ee.Details["path"]; ok {
		fmt.Fprintf(&sb, "  Path: %s\n", path)
	}
	if ee.Suggestion != "" {
		fmt.Fprintf(&sb, "  Hint: %s\n", ee.Suggestion)
	}
	fmt.Fprintf(&sb, "  Code: %s\n", ee.Code)
	return sb.String()
}

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

// FormatJSON is used by `--json` command output.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}

	ee, ok := As(err)
	if !ok {
		ee = Wrap(ErrCodeInternal, err)
	}

	je := jsonError{
		Code:       ee.Code,
		Message:    ee.Message,
		Category:   string(ee.Category),
		Severity:   string(ee.Severity),
		Details:    ee.Details,
		Suggestion: ee.Suggestion,
		Retryable:  ee.Retryable,
	}
	if ee.Cause != nil {
		je.Cause = ee.Cause.Error()
	}
	return json.Marshal(je)
}

// LogAttrs flattens an error into slog key-value pairs.
func LogAttrs(err error) []any {
	if err == nil {
		return nil
	}

	ee, ok := As(err)
	if !ok {
		return []any{"error", err.Error()}
	}

	attrs := []any{
		"error_code", ee.Code,
		"error", ee.Message,
		"category", string(ee.Category),
		"retryable", ee.Retryable,
	}
	for k, v := range ee.Details {
		attrs = append(attrs, "detail_"+k, v)
	}
	return attrs
}
