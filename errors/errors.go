package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// Validation errors
	ErrorTypeInvalid ErrorType = "invalid"

	// Lookup errors
	ErrorTypeNotFound ErrorType = "not_found"
	ErrorTypeConflict ErrorType = "conflict"

	// Module host errors
	ErrorTypeCandidateRejected ErrorType = "candidate_rejected"
	ErrorTypeDuplicateCommand  ErrorType = "duplicate_command"
	ErrorTypeConstruction      ErrorType = "construction"
	ErrorTypeLifecycle         ErrorType = "lifecycle"
	ErrorTypeInstall           ErrorType = "install"

	// Authorization errors
	ErrorTypeForbidden ErrorType = "forbidden"

	// System errors
	ErrorTypeStorage  ErrorType = "storage"
	ErrorTypeInternal ErrorType = "internal"
	ErrorTypeExternal ErrorType = "external"
	ErrorTypeUnknown  ErrorType = "unknown"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType      `json:"type"`
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	InnerError error          `json:"-"`
	Stack      []string       `json:"-"`
	HTTPStatus int            `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Type)
	}
	if e.InnerError != nil {
		return msg + ": " + e.InnerError.Error()
	}
	return msg
}

// Unwrap returns the inner error
func (e *AppError) Unwrap() error {
	return e.InnerError
}

// WithDetail adds a detail to the error
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithHTTPStatus sets the HTTP status code
func (e *AppError) WithHTTPStatus(status int) *AppError {
	e.HTTPStatus = status
	return e
}

// Is checks if this error is of a specific type
func (e *AppError) Is(target error) bool {
	if targetApp, ok := target.(*AppError); ok {
		return e.Type == targetApp.Type
	}
	return false
}

// New creates a new AppError
func New(errType ErrorType, message string) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Code:    string(errType),
	}
}

// FromError converts a standard error to AppError
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return &AppError{
		Type:       ErrorTypeUnknown,
		Code:       string(ErrorTypeUnknown),
		InnerError: err,
	}
}

// WrapWithType wraps an error with a specific type
func WrapWithType(err error, errType ErrorType, message string) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		InnerError: err,
		Code:       string(errType),
	}
}

// TypeOf returns the ErrorType of the first AppError in err's chain.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err's chain holds an AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	return errors.Is(err, &AppError{Type: errType})
}

// FromPanic converts a recovered panic value into an internal AppError.
// Call it from the deferred function itself, where recover() is valid.
func FromPanic(r any) *AppError {
	var inner error
	switch v := r.(type) {
	case error:
		inner = v
	case string:
		inner = errors.New(v)
	default:
		inner = fmt.Errorf("%v", v)
	}
	appErr := WrapWithType(inner, ErrorTypeInternal, "panic recovered")
	appErr.Stack = captureStack(4)
	return appErr
}

func NewInvalid(field string, value any, reason string) *AppError {
	return New(ErrorTypeInvalid, fmt.Sprintf("invalid value for %s: %v", field, value)).
		WithDetail("field", field).
		WithDetail("value", value).
		WithDetail("reason", reason).
		WithHTTPStatus(http.StatusBadRequest)
}

func NewNotFound(resource string, id any) *AppError {
	return New(ErrorTypeNotFound, fmt.Sprintf("%s not found", resource)).
		WithDetail("resource", resource).
		WithDetail("id", id).
		WithHTTPStatus(http.StatusNotFound)
}

func NewConflict(resource string, id any) *AppError {
	return New(ErrorTypeConflict, fmt.Sprintf("%s %v already exists", resource, id)).
		WithDetail("resource", resource).
		WithDetail("id", id).
		WithHTTPStatus(http.StatusConflict)
}

func NewForbidden(message string) *AppError {
	return New(ErrorTypeForbidden, message).WithHTTPStatus(http.StatusForbidden)
}

func NewStorage(err error, message string) *AppError {
	return WrapWithType(err, ErrorTypeStorage, message).WithHTTPStatus(http.StatusServiceUnavailable)
}

// Module host errors

// NewCandidateRejected reports a module candidate that failed validation.
func NewCandidateRejected(candidate string, reason error) *AppError {
	return WrapWithType(reason, ErrorTypeCandidateRejected, "not a valid module").
		WithDetail("candidate", candidate)
}

// NewDuplicateCommand reports a second registration of module:command.
func NewDuplicateCommand(moduleID, name string) *AppError {
	return New(ErrorTypeDuplicateCommand, fmt.Sprintf("duplicate command %s:%s", moduleID, name)).
		WithDetail("module", moduleID).
		WithDetail("command", name)
}

// NewConstruction reports an entry point that did not produce a usable module.
func NewConstruction(moduleID string, err error) *AppError {
	return WrapWithType(err, ErrorTypeConstruction, fmt.Sprintf("module %s could not be constructed", moduleID)).
		WithDetail("module", moduleID)
}

// NewLifecycle reports a failed lifecycle phase call.
func NewLifecycle(phase, moduleID string, err error) *AppError {
	return WrapWithType(err, ErrorTypeLifecycle, fmt.Sprintf("%s failed for module %s", phase, moduleID)).
		WithDetail("phase", phase).
		WithDetail("module", moduleID)
}

// NewInstall reports a dependency installer failure.
func NewInstall(path string, err error) *AppError {
	return WrapWithType(err, ErrorTypeInstall, "dependency installation failed").
		WithDetail("path", path)
}

// StatusOf returns the HTTP status for err, 500 when unknown.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.HTTPStatus > 0 {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// captureStack captures the call stack
func captureStack(skip int) []string {
	var stack []string
	for i := skip; i < skip+10; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		funcName := fn.Name()
		// Shorten function name
		if idx := strings.LastIndex(funcName, "/"); idx >= 0 {
			funcName = funcName[idx+1:]
		}

		stack = append(stack, fmt.Sprintf("%s:%d %s", file, line, funcName))
	}
	return stack
}
