package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestNewAndIs(t *testing.T) {
	err := New(ErrCodeInvalidPosition, "bad spec: %q", "1,2")

	if !Is(err, ErrCodeInvalidPosition) {
		t.Error("Is() does not match the error's own code")
	}
	if Is(err, ErrCodeInvalidThreshold) {
		t.Error("Is() matches a different code")
	}
	if got := GetCode(err); got != ErrCodeInvalidPosition {
		t.Errorf("GetCode() = %v, want INVALID_POSITION", got)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("disk on fire")
	err := Wrap(ErrCodeLoadModel, cause, "load %s", "model.yaml")

	if !stderrors.Is(err, cause) {
		t.Error("wrapped error lost its cause")
	}
	if !Is(err, ErrCodeLoadModel) {
		t.Error("wrapped error lost its code")
	}
	if got := err.Error(); got != "LOAD_MODEL_FAILED: load model.yaml: disk on fire" {
		t.Errorf("Error() = %q", got)
	}
}

func TestIsUnwrapsChains(t *testing.T) {
	inner := New(ErrCodeSinkFailed, "append failed")
	outer := fmt.Errorf("append page: %w", inner)

	if !Is(outer, ErrCodeSinkFailed) {
		t.Error("Is() does not see through fmt.Errorf wrapping")
	}
	if GetCode(outer) != ErrCodeSinkFailed {
		t.Error("GetCode() does not see through fmt.Errorf wrapping")
	}
}

func TestGetCodeNonStructured(t *testing.T) {
	if got := GetCode(stderrors.New("plain")); got != "" {
		t.Errorf("GetCode(plain error) = %q, want empty", got)
	}
}

func TestUserMessage(t *testing.T) {
	err := New(ErrCodeInvalidThreshold, "threshold 2 out of range")
	if got := UserMessage(err); got != "threshold 2 out of range" {
		t.Errorf("UserMessage() = %q", got)
	}
	plain := stderrors.New("plain failure")
	if got := UserMessage(plain); got != "plain failure" {
		t.Errorf("UserMessage(plain) = %q", got)
	}
}

func TestIsConfig(t *testing.T) {
	tests := []struct {
		code Code
		want bool
	}{
		{ErrCodeInvalidOption, true},
		{ErrCodeInvalidPosition, true},
		{ErrCodeInvalidThreshold, true},
		{ErrCodeInvalidCorrection, true},
		{ErrCodeInvalidIndex, true},
		{ErrCodeRenderFailed, false},
		{ErrCodeSinkFailed, false},
		{ErrCodeLoadModel, false},
	}
	for _, tt := range tests {
		if got := IsConfig(New(tt.code, "x")); got != tt.want {
			t.Errorf("IsConfig(%s) = %v, want %v", tt.code, got, tt.want)
		}
	}
}
