// Package errors provides structured error handling for invsearch.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors (service config and per-inventory templates)
//   - 2XX: IO errors (index directory, database)
//   - 3XX: Conflict errors (transactions, uniqueness)
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates index, disk and database I/O errors.
	CategoryIO Category = "IO"
	// CategoryConflict indicates concurrent-write and uniqueness conflicts.
	CategoryConflict Category = "CONFLICT"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound        = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid         = "ERR_102_CONFIG_INVALID"
	ErrCodeTemplateNotConfigured = "ERR_111_TEMPLATE_NOT_CONFIGURED"
	ErrCodeSequenceNotConfigured = "ERR_112_SEQUENCE_NOT_CONFIGURED"
	ErrCodeUnsupportedElement    = "ERR_113_UNSUPPORTED_ELEMENT"

	// IO errors (200-299)
	ErrCodeFileNotFound     = "ERR_201_FILE_NOT_FOUND"
	ErrCodeCorruptIndex     = "ERR_205_CORRUPT_INDEX"
	ErrCodeIndexLocked      = "ERR_207_INDEX_LOCKED"
	ErrCodeStoreUnavailable = "ERR_208_STORE_UNAVAILABLE"

	// Conflict errors (300-399)
	ErrCodeSerializationConflict = "ERR_301_SERIALIZATION_CONFLICT"
	ErrCodeSequenceConflict      = "ERR_302_SEQUENCE_CONFLICT"
	ErrCodeDuplicateCustomID     = "ERR_303_DUPLICATE_CUSTOM_ID"
	ErrCodeOrderConflict         = "ERR_304_ORDER_CONFLICT"

	// Validation errors (400-499)
	ErrCodeInvalidInput     = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidQuery     = "ERR_403_INVALID_QUERY"
	ErrCodeCustomIDMismatch = "ERR_407_CUSTOM_ID_MISMATCH"
	ErrCodeNotFound         = "ERR_408_NOT_FOUND"

	// Internal errors (500-599)
	ErrCodeInternal     = "ERR_501_INTERNAL"
	ErrCodeSearchFailed = "ERR_503_SEARCH_FAILED"
	ErrCodeIndexFailed  = "ERR_505_INDEX_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "101" from "ERR_101_CONFIG_NOT_FOUND")
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryConflict
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex,
		ErrCodeTemplateNotConfigured,
		ErrCodeSequenceNotConfigured,
		ErrCodeUnsupportedElement,
		ErrCodeSequenceConflict:
		return SeverityFatal
	}

	// Retryable conflicts get warning severity
	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeSerializationConflict, ErrCodeIndexLocked:
		return true
	default:
		return false
	}
}
