package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
	Details map[string]any
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context, keeping the code of an inner AppError
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   err,
			Details: appErr.Details,
		}
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Cause:   err,
	}
}

// WithDetail attaches a context value to the error
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// Is and As re-export the standard library helpers for packages importing this one as errors
func Is(err, target error) bool { return stderrors.Is(err, target) }
func As(err error, target any) bool { return stderrors.As(err, target) }

// GetCode returns the error code if it's an AppError, otherwise returns "UNKNOWN"
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

// IsCode reports whether err carries the given code anywhere in its chain
func IsCode(err error, code string) bool {
	for err != nil {
		if appErr, ok := err.(*AppError); ok && appErr.Code == code {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// GetDetails returns the details of the outermost AppError in the chain
func GetDetails(err error) map[string]any {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Details
	}
	return nil
}

// HTTPStatus maps an error to the status code an API should answer with
func HTTPStatus(err error) int {
	switch GetCode(err) {
	case CodeNotFound, CodeWorksheetNotFound:
		return http.StatusNotFound
	case CodeUnauthorized, CodeAuthentication:
		return http.StatusUnauthorized
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeConnection:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Predefined error codes
const (
	CodeConfigInvalid     = "CONFIG_INVALID"
	CodeDatabaseError     = "DATABASE_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeInternalError     = "INTERNAL_ERROR"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeConnection        = "CONNECTION_ERROR"
	CodeAuthentication    = "AUTHENTICATION_ERROR"
	CodeWorksheetNotFound = "WORKSHEET_NOT_FOUND"
	CodeSync              = "SYNC_ERROR"
)

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func DatabaseError(message string, cause error) *AppError {
	return &AppError{Code: CodeDatabaseError, Message: message, Cause: cause}
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

func Unauthorized(message string) *AppError {
	return New(CodeUnauthorized, message)
}

func InternalError(message string) *AppError {
	return New(CodeInternalError, message)
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}

// ConnectionError reports a failure to fetch or parse a source document
func ConnectionError(message string, cause error) *AppError {
	return &AppError{Code: CodeConnection, Message: message, Cause: cause}
}

// AuthenticationError reports a failure to obtain credentials for the source
func AuthenticationError(cause error) *AppError {
	return &AppError{Code: CodeAuthentication, Message: "failed to acquire access token", Cause: cause}
}

// WorksheetNotFound reports a worksheet missing from the fetched workbook
func WorksheetNotFound(worksheet, table string) *AppError {
	return New(CodeWorksheetNotFound, fmt.Sprintf("worksheet %q not found in workbook", worksheet)).
		WithDetail("worksheet", worksheet).
		WithDetail("table", table)
}

func SyncError(message string, cause error) *AppError {
	return &AppError{Code: CodeSync, Message: message, Cause: cause}
}
