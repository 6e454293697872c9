package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is the structured error type for invsearch.
// It provides rich context for error handling, logging, and user presentation.
type AppError struct {
	// Code is the unique error code (e.g., "ERR_111_TEMPLATE_NOT_CONFIGURED").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Conflict, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This lets callers compare against the package sentinels with errors.Is.
func (e *AppError) Is(target error) bool {
	if t, ok := target.(*AppError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *AppError) WithSuggestion(suggestion string) *AppError {
	e.Suggestion = suggestion
	return e
}

// New creates a new AppError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an AppError from an existing error.
// The error's message becomes the AppError message.
func Wrap(code string, err error) *AppError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Sentinels for errors.Is comparisons. Matching is by code only.
var (
	ErrTemplateNotConfigured = New(ErrCodeTemplateNotConfigured, "custom ID template is not configured", nil)
	ErrSequenceNotConfigured = New(ErrCodeSequenceNotConfigured, "sequence counter is not configured", nil)
	ErrUnsupportedElement    = New(ErrCodeUnsupportedElement, "unsupported custom ID element", nil)
	ErrSerializationConflict = New(ErrCodeSerializationConflict, "serialization conflict", nil)
	ErrSequenceConflict      = New(ErrCodeSequenceConflict, "sequence allocation kept conflicting", nil)
	ErrDuplicateCustomID     = New(ErrCodeDuplicateCustomID, "custom ID already exists in inventory", nil)
	ErrOrderConflict         = New(ErrCodeOrderConflict, "element order already in use", nil)
	ErrIndexLocked           = New(ErrCodeIndexLocked, "index is locked by another writer", nil)
	ErrCustomIDMismatch      = New(ErrCodeCustomIDMismatch, "custom ID does not match template", nil)
	ErrNotFound              = New(ErrCodeNotFound, "not found", nil)
)

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *AppError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates a storage-related error.
func IOError(message string, cause error) *AppError {
	return New(ErrCodeStoreUnavailable, message, cause)
}

// ConflictError creates a retryable serialization conflict.
func ConflictError(message string, cause error) *AppError {
	return New(ErrCodeSerializationConflict, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *AppError {
	return New(ErrCodeInvalidInput, message, cause)
}

// NotFoundError creates a not-found error for the named entity.
func NotFoundError(entity, id string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s %s not found", entity, id), nil).
		WithDetail("entity", entity).
		WithDetail("id", id)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *AppError {
	return New(ErrCodeInternal, message, cause)
}

// As returns the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var ae *AppError
	if stderrors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable.
// Returns true if the chain contains an AppError with Retryable set.
func IsRetryable(err error) bool {
	if ae, ok := As(err); ok {
		return ae.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if ae, ok := As(err); ok {
		return ae.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from an AppError.
// Returns empty string if not an AppError.
func GetCode(err error) string {
	if ae, ok := As(err); ok {
		return ae.Code
	}
	return ""
}

// GetCategory extracts the category from an AppError.
// Returns empty string if not an AppError.
func GetCategory(err error) Category {
	if ae, ok := As(err); ok {
		return ae.Category
	}
	return ""
}
