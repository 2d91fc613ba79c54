package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Chatbox error code.
type ErrorCode string

const (
	ErrInvalidRequest   ErrorCode = "INVALID_REQUEST"   // 400
	ErrNoProject        ErrorCode = "NO_PROJECT"        // 404
	ErrExportFailed     ErrorCode = "EXPORT_FAILED"     // 422
	ErrConfiguration    ErrorCode = "CONFIGURATION"     // 500
	ErrInternal         ErrorCode = "INTERNAL"          // 500
	ErrSchema           ErrorCode = "SCHEMA"            // 502, never reaches users directly
	ErrImageAbsent      ErrorCode = "IMAGE_ABSENT"      // 502
	ErrGenerationFailed ErrorCode = "GENERATION_FAILED" // 502
)

// User-visible messages. These are matched verbatim by clients and tests.
const (
	MsgImageAbsent      = "Image generation failed: the model did not return an image"
	MsgGenerationFailed = "Failed to generate project; the model may have returned an invalid response"
	MsgInvalidImageData = "Download failed: the generated image data is invalid"
)

// ChatboxError represents a structured error with code, status, and details.
// Err holds the underlying cause for logging; it is never rendered to users.
type ChatboxError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	Err     error
}

// Error implements the error interface.
func (e *ChatboxError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *ChatboxError) Unwrap() error {
	return e.Err
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *ChatboxError {
	return &ChatboxError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNoProject creates a 404 error for actions that need a generated project.
func NewNoProject() *ChatboxError {
	return &ChatboxError{
		Code:    ErrNoProject,
		Status:  404,
		Message: "no project has been generated yet",
	}
}

// NewConfiguration creates a 500 error for missing or invalid startup configuration.
func NewConfiguration(msg string) *ChatboxError {
	return &ChatboxError{
		Code:    ErrConfiguration,
		Status:  500,
		Message: msg,
	}
}

// NewSchema creates an error for a text response that does not match the project schema.
func NewSchema(msg string, cause error) *ChatboxError {
	return &ChatboxError{
		Code:    ErrSchema,
		Status:  502,
		Message: msg,
		Err:     cause,
	}
}

// NewImageAbsent creates the error returned when the image stage produced no image.
func NewImageAbsent() *ChatboxError {
	return &ChatboxError{
		Code:    ErrImageAbsent,
		Status:  502,
		Message: MsgImageAbsent,
	}
}

// NewGenerationFailed creates the generic generation error. The cause is kept
// for diagnostics only.
func NewGenerationFailed(cause error) *ChatboxError {
	return &ChatboxError{
		Code:    ErrGenerationFailed,
		Status:  502,
		Message: MsgGenerationFailed,
		Err:     cause,
	}
}

// NewInvalidImageData creates a 422 error for a schematic payload that cannot be decoded.
func NewInvalidImageData() *ChatboxError {
	return &ChatboxError{
		Code:    ErrExportFailed,
		Status:  422,
		Message: MsgInvalidImageData,
	}
}

// NewCancelled creates an error for an operation stopped by context cancellation.
func NewCancelled(op string) *ChatboxError {
	return &ChatboxError{
		Code:    ErrInternal,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *ChatboxError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &ChatboxError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		Err:     err,
	}
}

// Is checks if err, or any error it wraps, is a ChatboxError with the given code.
func Is(err error, code ErrorCode) bool {
	var cErr *ChatboxError
	if stderrors.As(err, &cErr) {
		return cErr.Code == code
	}
	return false
}

// As reports whether err is a ChatboxError and returns it.
func As(err error) (*ChatboxError, bool) {
	var cErr *ChatboxError
	if stderrors.As(err, &cErr) {
		return cErr, true
	}
	return nil, false
}
