package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies application errors
type ErrorType string

const (
	// ErrTypeData marks errors caused by the input data itself: missing
	// columns, empty filtered results, no observable cells. Always fatal.
	ErrTypeData ErrorType = "DATA"
	// ErrTypeDependency marks errors caused by an unavailable external
	// capability (e.g. the gnuplot binary).
	ErrTypeDependency ErrorType = "DEPENDENCY"
	// ErrTypeConfig marks invalid run configuration.
	ErrTypeConfig ErrorType = "CONFIG"
	// ErrTypeParsing marks malformed input files.
	ErrTypeParsing ErrorType = "PARSING"
	// ErrTypeExport marks failures while persisting outputs.
	ErrTypeExport ErrorType = "EXPORT"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewDataError creates a data error
func NewDataError(message string, cause error) *AppError {
	return NewAppError(ErrTypeData, message, cause)
}

// NewDependencyError creates a dependency error
func NewDependencyError(message string, cause error) *AppError {
	return NewAppError(ErrTypeDependency, message, cause)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// NewParsingError creates a parsing error
func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

// NewExportError creates an export error
func NewExportError(message string, cause error) *AppError {
	return NewAppError(ErrTypeExport, message, cause)
}

// isType reports whether err or any error it wraps is an AppError of the
// given type.
func isType(err error, t ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == t
	}
	return false
}

// IsData reports whether err is a data error
func IsData(err error) bool { return isType(err, ErrTypeData) }

// IsDependency reports whether err is a dependency error
func IsDependency(err error) bool { return isType(err, ErrTypeDependency) }

// IsConfig reports whether err is a configuration error
func IsConfig(err error) bool { return isType(err, ErrTypeConfig) }
