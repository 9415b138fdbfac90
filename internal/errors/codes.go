// Package errors provides structured error handling for edm.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors (including exclusion patterns)
//   - 2XX: Filesystem errors
//   - 3XX: Document index and catalog errors
//   - 4XX: Validation and query errors
//   - 5XX: Internal errors
package errors

// Category classifies an error by the subsystem that raised it.
type Category string

const (
	CategoryConfig     Category = "CONFIG"
	CategoryIO         Category = "IO"
	CategoryIndex      Category = "INDEX"
	CategoryValidation Category = "VALIDATION"
	CategoryInternal   Category = "INTERNAL"
)

// Severity tells the caller whether it may continue after the error.
type Severity string

const (
	// SeverityFatal aborts the current crawl or command.
	SeverityFatal Severity = "FATAL"
	// SeverityError fails one unit of work (a file, a query) only.
	SeverityError Severity = "ERROR"
	// SeverityWarning is transient; the operation may be retried.
	SeverityWarning Severity = "WARNING"
)

const (
	// Config errors (100-199)
	ErrCodeConfigNotFound   = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    = "ERR_102_CONFIG_INVALID"
	ErrCodeConfigPermission = "ERR_103_CONFIG_PERMISSION"

	// Filesystem errors (200-299)
	ErrCodeFileNotFound   = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFilePermission = "ERR_202_FILE_PERMISSION"
	ErrCodeDiskFull       = "ERR_203_DISK_FULL"
	ErrCodeFileTooLarge   = "ERR_204_FILE_TOO_LARGE"
	ErrCodeCorruptIndex   = "ERR_205_CORRUPT_INDEX"
	ErrCodeListingFailed  = "ERR_206_LISTING_FAILED"

	// Index and catalog errors (300-399)
	ErrCodeIndexUnavailable   = "ERR_301_INDEX_UNAVAILABLE"
	ErrCodeIndexTimeout       = "ERR_302_INDEX_TIMEOUT"
	ErrCodeCatalogUnavailable = "ERR_303_CATALOG_UNAVAILABLE"

	// Validation errors (400-499)
	ErrCodeInvalidInput   = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidQuery   = "ERR_403_INVALID_QUERY"
	ErrCodeSourceNotFound = "ERR_404_SOURCE_NOT_FOUND"
	ErrCodeInvalidPath    = "ERR_406_INVALID_PATH"
	ErrCodeSyncInProgress = "ERR_407_SYNC_IN_PROGRESS"

	// Internal errors (500-599)
	ErrCodeInternal          = "ERR_501_INTERNAL"
	ErrCodeSearchFailed      = "ERR_503_SEARCH_FAILED"
	ErrCodeAggregationFailed = "ERR_504_AGGREGATION_FAILED"
	ErrCodeIndexFailed       = "ERR_505_INDEX_FAILED"
)

// categoryFromCode reads the hundreds digit of ERR_NNN_*.
func categoryFromCode(code string) Category {
	if len(code) < 7 || code[:4] != "ERR_" {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryIndex
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex, ErrCodeDiskFull, ErrCodeConfigInvalid, ErrCodeCatalogUnavailable:
		return SeverityFatal
	}
	if isRetryableCode(code) {
		return SeverityWarning
	}
	return SeverityError
}

func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeIndexUnavailable, ErrCodeIndexTimeout:
		return true
	default:
		return false
	}
}
