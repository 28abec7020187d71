package errors

import "fmt"

// ErrorCode represents a pktvis error code.
type ErrorCode string

const (
	ErrInvalidRequest    ErrorCode = "INVALID_REQUEST"     // 400
	ErrNotFound          ErrorCode = "NOT_FOUND"           // 404
	ErrNameAlreadyExists ErrorCode = "NAME_ALREADY_EXISTS" // 409
	ErrNoTraceData       ErrorCode = "NO_TRACE_DATA"       // 422
	ErrFileNotFound      ErrorCode = "FILE_NOT_FOUND"      // 404
	ErrInternal          ErrorCode = "INTERNAL"            // 500
)

// PktvisError represents a structured error with code, status, and details.
type PktvisError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *PktvisError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *PktvisError {
	return &PktvisError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when a timeline cannot be found.
func NewNotFound(identifier string) *PktvisError {
	return &PktvisError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("timeline not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewNameAlreadyExists creates a 409 error for name collisions.
func NewNameAlreadyExists(name string) *PktvisError {
	return &PktvisError{
		Code:    ErrNameAlreadyExists,
		Status:  409,
		Message: fmt.Sprintf("timeline with name %q already exists", name),
		Details: map[string]any{"name": name},
	}
}

// NewNoTraceData creates a 422 error for trace input that yields zero
// usable lines. Distinct from a parse failure: the input was read fine,
// it just contained nothing recognizable.
func NewNoTraceData() *PktvisError {
	return &PktvisError{
		Code:    ErrNoTraceData,
		Status:  422,
		Message: "no trace data produced: input contained zero parseable trace lines",
	}
}

// NewFileNotFound creates a 404 error for a missing file path.
func NewFileNotFound(path string) *PktvisError {
	return &PktvisError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *PktvisError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &PktvisError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is a PktvisError with the given code.
func Is(err error, code ErrorCode) bool {
	if pErr, ok := err.(*PktvisError); ok {
		return pErr.Code == code
	}
	return false
}
