package errors

import (
	"errors"
	"fmt"
)

// EdmError is the structured error type shared by the crawler, the index
// adapters and the query engines.
type EdmError struct {
	// Code is the unique error code (e.g. "ERR_403_INVALID_QUERY").
	Code string

	Message  string
	Category Category
	Severity Severity

	// Details carries context such as the offending path or pattern.
	Details map[string]string

	Cause error

	// Retryable is true when repeating the same call may succeed.
	Retryable bool

	// Suggestion is shown to CLI users under the message.
	Suggestion string
}

func (e *EdmError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *EdmError) Unwrap() error {
	return e.Cause
}

// Is matches two EdmErrors by code so sentinel values work with errors.Is.
func (e *EdmError) Is(target error) bool {
	if t, ok := target.(*EdmError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail attaches a key-value pair and returns the receiver.
func (e *EdmError) WithDetail(key, value string) *EdmError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion sets an actionable hint and returns the receiver.
func (e *EdmError) WithSuggestion(suggestion string) *EdmError {
	e.Suggestion = suggestion
	return e
}

// New creates an EdmError. Category, severity and retryability derive from code.
func New(code string, message string, cause error) *EdmError {
	return &EdmError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an EdmError whose message is err's message. Nil in, nil out.
func Wrap(code string, err error) *EdmError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

func ConfigError(message string, cause error) *EdmError {
	return New(ErrCodeConfigInvalid, message, cause)
}

func IOError(message string, cause error) *EdmError {
	return New(ErrCodeFileNotFound, message, cause)
}

// IndexError reports a transient document index failure. It is retryable.
func IndexError(message string, cause error) *EdmError {
	return New(ErrCodeIndexUnavailable, message, cause)
}

func ValidationError(message string, cause error) *EdmError {
	return New(ErrCodeInvalidInput, message, cause)
}

// QueryError reports a malformed user search pattern.
func QueryError(message string, cause error) *EdmError {
	return New(ErrCodeInvalidQuery, message, cause)
}

func InternalError(message string, cause error) *EdmError {
	return New(ErrCodeInternal, message, cause)
}

// As returns the first EdmError in err's chain.
func As(err error) (*EdmError, bool) {
	var ee *EdmError
	if errors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}

// IsRetryable reports whether any EdmError in the chain is retryable.
func IsRetryable(err error) bool {
	ee, ok := As(err)
	return ok && ee.Retryable
}

// IsFatal reports whether the chain holds a fatal EdmError.
func IsFatal(err error) bool {
	ee, ok := As(err)
	return ok && ee.Severity == SeverityFatal
}

// GetCode returns the code of the first EdmError in the chain, or "".
func GetCode(err error) string {
	if ee, ok := As(err); ok {
		return ee.Code
	}
	return ""
}

func GetCategory(err error) Category {
	if ee, ok := As(err); ok {
		return ee.Category
	}
	return ""
}
