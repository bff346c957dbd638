package errors

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// StructureError is one problem met while structuring or extracting a
// document. Recoverable errors are reported as anomalies; the document
// pipeline continues past them.
type StructureError struct {
	Type        ErrorType `json:"type"`
	Message     string    `json:"message"`
	Context     string    `json:"context,omitempty"`
	Page        int       `json:"page,omitempty"` // 1-based, 0 when not page-scoped
	Extractor   string    `json:"extractor,omitempty"`
	Recoverable bool      `json:"recoverable"`
	Timestamp   time.Time `json:"timestamp"`
	cause       error
}

// ErrorType represents different categories of structuring errors
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeInvalidDocument
	ErrorTypeMalformedPage
	ErrorTypeMissingGeometry
	ErrorTypeMalformedOutline
	ErrorTypeInvalidMetadata
	ErrorTypeInvalidStructure
	ErrorTypeExtractorFailed
	ErrorTypeTimeout
	ErrorTypeCanceled
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity int

const (
	SeverityInfo ErrorSeverity = iota
	SeverityWarning
	SeverityError
	SeverityFatal
)

// Error implements the error interface
func (e *StructureError) Error() string {
	msg := e.Message
	if e.Extractor != "" {
		msg = e.Extractor + ": " + msg
	}
	if e.Page > 0 {
		msg = fmt.Sprintf("page %d: %s", e.Page, msg)
	}
	if e.Context != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Type.String(), msg, e.Context)
	}
	return fmt.Sprintf("[%s] %s", e.Type.String(), msg)
}

// Unwrap returns the wrapped cause, if any
func (e *StructureError) Unwrap() error {
	return e.cause
}

// String returns a string representation of the ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeInvalidDocument:
		return "INVALID_DOCUMENT"
	case ErrorTypeMalformedPage:
		return "MALFORMED_PAGE"
	case ErrorTypeMissingGeometry:
		return "MISSING_GEOMETRY"
	case ErrorTypeMalformedOutline:
		return "MALFORMED_OUTLINE"
	case ErrorTypeInvalidMetadata:
		return "INVALID_METADATA"
	case ErrorTypeInvalidStructure:
		return "INVALID_STRUCTURE"
	case ErrorTypeExtractorFailed:
		return "EXTRACTOR_FAILED"
	case ErrorTypeTimeout:
		return "TIMEOUT"
	case ErrorTypeCanceled:
		return "CANCELED"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the type by name in JSON output
func (et ErrorType) MarshalText() ([]byte, error) {
	return []byte(et.String()), nil
}

// GetSeverity returns the severity level for a given error type
func (et ErrorType) GetSeverity() ErrorSeverity {
	switch et {
	case ErrorTypeMalformedOutline, ErrorTypeMissingGeometry, ErrorTypeInvalidMetadata:
		return SeverityInfo
	case ErrorTypeMalformedPage:
		return SeverityWarning
	case ErrorTypeExtractorFailed, ErrorTypeTimeout, ErrorTypeCanceled, ErrorTypeInvalidStructure:
		return SeverityError
	case ErrorTypeInvalidDocument:
		return SeverityFatal
	default:
		return SeverityError
	}
}

// IsRecoverable determines if an error type allows the document to continue
func (et ErrorType) IsRecoverable() bool {
	switch et {
	case ErrorTypeInvalidDocument, ErrorTypeInvalidStructure:
		return false
	case ErrorTypeUnknown:
		return false
	default:
		return true
	}
}

// New creates a new StructureError
func New(errorType ErrorType, message string) *StructureError {
	return &StructureError{
		Type:        errorType,
		Message:     message,
		Recoverable: errorType.IsRecoverable(),
		Timestamp:   time.Now(),
	}
}

// Wrap wraps err as a StructureError of the given type
func Wrap(errorType ErrorType, err error) *StructureError {
	e := New(errorType, err.Error())
	e.cause = err
	return e
}

// WithContext adds context to an existing StructureError
func (e *StructureError) WithContext(context string) *StructureError {
	e.Context = context
	return e
}

// WithPage records the 0-based page index as a 1-based page number
func (e *StructureError) WithPage(index int) *StructureError {
	e.Page = index + 1
	return e
}

// WithExtractor records the extractor the error belongs to
func (e *StructureError) WithExtractor(name string) *StructureError {
	e.Extractor = name
	return e
}

// GetSeverity returns the severity of this specific error
func (e *StructureError) GetSeverity() ErrorSeverity {
	return e.Type.GetSeverity()
}

// IsFatal returns true if this error aborts the document
func (e *StructureError) IsFatal() bool {
	return e.GetSeverity() == SeverityFatal || !e.Recoverable
}

// TypeOf reports the ErrorType of err, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var se *StructureError
	if errors.As(err, &se) {
		return se.Type
	}
	return ErrorTypeUnknown
}

// ErrorCollection gathers errors from concurrent stages. The zero value is
// ready to use.
type ErrorCollection struct {
	mu       sync.Mutex
	errors   []*StructureError
	warnings []*StructureError
}

// NewErrorCollection creates a new error collection
func NewErrorCollection() *ErrorCollection {
	return &ErrorCollection{}
}

// Add adds an error to the appropriate list based on severity
func (ec *ErrorCollection) Add(err *StructureError) {
	if err == nil {
		return
	}
	ec.mu.Lock()
	defer ec.mu.Unlock()
	severity := err.GetSeverity()
	if severity == SeverityWarning || severity == SeverityInfo {
		ec.warnings = append(ec.warnings, err)
	} else {
		ec.errors = append(ec.errors, err)
	}
}

// Merge appends every entry of other
func (ec *ErrorCollection) Merge(other *ErrorCollection) {
	if other == nil || other == ec {
		return
	}
	for _, e := range other.All() {
		ec.Add(e)
	}
}

// Errors returns a copy of the error-level entries
func (ec *ErrorCollection) Errors() []*StructureError {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return append([]*StructureError(nil), ec.errors...)
}

// Warnings returns a copy of the warning-level entries
func (ec *ErrorCollection) Warnings() []*StructureError {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return append([]*StructureError(nil), ec.warnings...)
}

// All returns warnings followed by errors
func (ec *ErrorCollection) All() []*StructureError {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	out := make([]*StructureError, 0, len(ec.warnings)+len(ec.errors))
	out = append(out, ec.warnings...)
	return append(out, ec.errors...)
}

// HasFatalErrors returns true if any fatal errors exist
func (ec *ErrorCollection) HasFatalErrors() bool {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	for _, err := range ec.errors {
		if err.IsFatal() {
			return true
		}
	}
	return false
}

// Count returns the total number of errors and warnings
func (ec *ErrorCollection) Count() (errs, warnings int) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return len(ec.errors), len(ec.warnings)
}

// Summary returns a text summary of all errors and warnings
func (ec *ErrorCollection) Summary() string {
	errorCount, warningCount := ec.Count()
	if errorCount == 0 && warningCount == 0 {
		return "No errors or warnings"
	}

	summary := fmt.Sprintf("Found %d error(s) and %d warning(s)", errorCount, warningCount)

	if ec.HasFatalErrors() {
		summary += " (including fatal errors)"
	}

	return summary
}
