package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestChatboxError_Error(t *testing.T) {
	err := &ChatboxError{
		Code:    ErrNoProject,
		Status:  404,
		Message: "no project has been generated yet",
	}

	expected := "NO_PROJECT: no project has been generated yet"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewInvalidRequest(t *testing.T) {
	err := NewInvalidRequest("unknown tab")

	if err.Code != ErrInvalidRequest {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidRequest)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Message != "unknown tab" {
		t.Errorf("Message = %q, want %q", err.Message, "unknown tab")
	}
}

func TestNewImageAbsent(t *testing.T) {
	err := NewImageAbsent()

	if err.Code != ErrImageAbsent {
		t.Errorf("Code = %q, want %q", err.Code, ErrImageAbsent)
	}
	if err.Message != "Image generation failed: the model did not return an image" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestNewGenerationFailed_KeepsCause(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")
	err := NewGenerationFailed(cause)

	if err.Message != MsgGenerationFailed {
		t.Errorf("Message = %q, want %q", err.Message, MsgGenerationFailed)
	}
	if !stderrors.Is(err, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
	if err.Status != 502 {
		t.Errorf("Status = %d, want 502", err.Status)
	}
}

func TestNewInvalidImageData(t *testing.T) {
	err := NewInvalidImageData()

	if err.Code != ErrExportFailed {
		t.Errorf("Code = %q, want %q", err.Code, ErrExportFailed)
	}
	if err.Status != 422 {
		t.Errorf("Status = %d, want 422", err.Status)
	}
	if err.Message != "Download failed: the generated image data is invalid" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestNewConfiguration(t *testing.T) {
	err := NewConfiguration("API_KEY environment variable not set")

	if err.Code != ErrConfiguration {
		t.Errorf("Code = %q, want %q", err.Code, ErrConfiguration)
	}
	if err.Status != 500 {
		t.Errorf("Status = %d, want 500", err.Status)
	}
}

func TestNewInternal(t *testing.T) {
	err := NewInternal(fmt.Errorf("boom"))
	if err.Message != "boom" {
		t.Errorf("Message = %q, want %q", err.Message, "boom")
	}

	nilErr := NewInternal(nil)
	if nilErr.Message != "internal error" {
		t.Errorf("Message = %q, want %q", nilErr.Message, "internal error")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{"matching code", NewNoProject(), ErrNoProject, true},
		{"different code", NewNoProject(), ErrInternal, false},
		{"wrapped", fmt.Errorf("outer: %w", NewImageAbsent()), ErrImageAbsent, true},
		{"plain error", fmt.Errorf("plain"), ErrInternal, false},
		{"nil", nil, ErrInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAs(t *testing.T) {
	cErr, ok := As(fmt.Errorf("wrap: %w", NewSchema("missing field", nil)))
	if !ok {
		t.Fatal("As() ok = false, want true")
	}
	if cErr.Code != ErrSchema {
		t.Errorf("Code = %q, want %q", cErr.Code, ErrSchema)
	}

	if _, ok := As(fmt.Errorf("plain")); ok {
		t.Error("As() ok = true for plain error")
	}
}
