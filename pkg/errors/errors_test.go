package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeInvalidInput, "test message: %s", "value")

	if err.Code != ErrCodeInvalidInput {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidInput)
	}

	if err.Message != "test message: value" {
		t.Errorf("Message = %v, want %v", err.Message, "test message: value")
	}

	expected := "INVALID_INPUT: test message: value"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeNetwork, cause, "failed to call model")

	if err.Code != ErrCodeNetwork {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeNetwork)
	}

	if err.Cause != cause {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}

	unwrapped := errors.Unwrap(err)
	if unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
}

func TestWithDetails(t *testing.T) {
	details := []string{"zones.0.order: must be greater than or equal to 0", "nodes.0.type: must be one of app, service"}
	err := WithDetails(ErrCodeInvalidGraph, details, "graph validation failed")

	// Mutating the input must not leak into the error
	details[0] = "changed"

	got := Details(err)
	if len(got) != 2 {
		t.Fatalf("Details() len = %d, want 2", len(got))
	}
	if got[0] != "zones.0.order: must be greater than or equal to 0" {
		t.Errorf("Details()[0] = %q", got[0])
	}

	want := "INVALID_GRAPH: graph validation failed: zones.0.order: must be greater than or equal to 0; nodes.0.type: must be one of app, service"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestDetailsThroughWrapping(t *testing.T) {
	inner := WithDetails(ErrCodeInvalidGraph, []string{"nodes: at least 1 node(s) are required (found 0)"}, "normalization failed")
	wrapped := fmt.Errorf("normalize: %w", inner)

	if got := Details(wrapped); len(got) != 1 {
		t.Errorf("Details(wrapped) = %v, want one entry", got)
	}
	if !Is(wrapped, ErrCodeInvalidGraph) {
		t.Error("Is(wrapped, ErrCodeInvalidGraph) = false, want true")
	}

	outer := Wrap(ErrCodeInternal, inner, "pipeline")
	if got := Details(outer); len(got) != 1 {
		t.Errorf("Details(outer) = %v, want detail from cause", got)
	}

	if got := Details(errors.New("plain")); got != nil {
		t.Errorf("Details(plain) = %v, want nil", got)
	}
	if got := Details(nil); got != nil {
		t.Errorf("Details(nil) = %v, want nil", got)
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     Code
		expected bool
	}{
		{
			name:     "matching code",
			err:      New(ErrCodeInvalidInput, "test"),
			code:     ErrCodeInvalidInput,
			expected: true,
		},
		{
			name:     "non-matching code",
			err:      New(ErrCodeInvalidInput, "test"),
			code:     ErrCodeNetwork,
			expected: false,
		},
		{
			name:     "wrapped error",
			err:      Wrap(ErrCodeNetwork, New(ErrCodeInvalidInput, "inner"), "outer"),
			code:     ErrCodeNetwork,
			expected: true,
		},
		{
			name:     "invariant is not invalid graph",
			err:      New(ErrCodeInvariant, "node outside zone"),
			code:     ErrCodeInvalidGraph,
			expected: false,
		},
		{
			name:     "non-Error type",
			err:      errors.New("plain error"),
			code:     ErrCodeInvalidInput,
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			code:     ErrCodeInvalidInput,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.expected {
				t.Errorf("Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Code
	}{
		{
			name:     "Error type",
			err:      New(ErrCodeInvalidGraph, "test"),
			expected: ErrCodeInvalidGraph,
		},
		{
			name:     "plain error",
			err:      errors.New("plain"),
			expected: "",
		},
		{
			name:     "nil",
			err:      nil,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.expected {
				t.Errorf("GetCode() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "Error type",
			err:      New(ErrCodeInvalidInput, "friendly message"),
			expected: "friendly message",
		},
		{
			name:     "plain error",
			err:      errors.New("plain error"),
			expected: "plain error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.expected {
				t.Errorf("UserMessage() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestMessages(t *testing.T) {
	withDetails := WithDetails(ErrCodeInvalidGraph, []string{"a: x", "b: y"}, "failed")
	if got := Messages(withDetails); len(got) != 2 || got[1] != "b: y" {
		t.Errorf("Messages(withDetails) = %v", got)
	}

	plain := New(ErrCodeInternal, "boom")
	if got := Messages(plain); len(got) != 1 || got[0] != "boom" {
		t.Errorf("Messages(plain) = %v", got)
	}
}
