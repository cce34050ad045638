package util

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestValidationError(t *testing.T) {
	t.Run("single error", func(t *testing.T) {
		err := &ValidationError{Errors: []string{"sot.url is required"}}
		msg := err.Error()
		if !strings.Contains(msg, "sot.url is required") {
			t.Errorf("Error message should contain the error: %s", msg)
		}
		if !errors.Is(err, ErrValidationFailed) {
			t.Errorf("ValidationError should unwrap to ErrValidationFailed")
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		err := &ValidationError{Errors: []string{"first", "second"}}
		msg := err.Error()
		if !strings.Contains(msg, "first") || !strings.Contains(msg, "second") {
			t.Errorf("Error message should list every error: %s", msg)
		}
	})
}

func TestValidationBuilder(t *testing.T) {
	t.Run("no errors", func(t *testing.T) {
		vb := &ValidationBuilder{}
		vb.Add(true, "never added")
		if vb.HasErrors() {
			t.Error("HasErrors() = true, want false")
		}
		if err := vb.Build(); err != nil {
			t.Errorf("Build() = %v, want nil", err)
		}
	})

	t.Run("accumulates", func(t *testing.T) {
		vb := &ValidationBuilder{}
		vb.Add(false, "a").AddError("b").AddErrorf("c=%d", 3)
		err := vb.Build()
		if err == nil {
			t.Fatal("Build() = nil, want error")
		}
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("Build() error type = %T, want *ValidationError", err)
		}
		if len(ve.Errors) != 3 {
			t.Errorf("len(Errors) = %d, want 3", len(ve.Errors))
		}
		if ve.Errors[2] != "c=3" {
			t.Errorf("Errors[2] = %q, want %q", ve.Errors[2], "c=3")
		}
	})
}

func TestConfigError(t *testing.T) {
	t.Run("defaults to ErrInvalidConfig", func(t *testing.T) {
		err := NewConfigError("sw1", "defaults document missing", nil)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Error("ConfigError without cause should unwrap to ErrInvalidConfig")
		}
		if !strings.Contains(err.Error(), "sw1") {
			t.Errorf("Error() = %q, want device name", err.Error())
		}
	})

	t.Run("wraps cause", func(t *testing.T) {
		err := NewConfigError("sw1", "platform", NewUnknownPlatformError("junos"))
		if !errors.Is(err, ErrUnknownPlatform) {
			t.Error("ConfigError should unwrap to its cause")
		}
		if !strings.Contains(err.Error(), "junos") {
			t.Errorf("Error() = %q, want cause text", err.Error())
		}
	})
}

func TestUnknownPlatformError(t *testing.T) {
	tests := []struct {
		platform string
		want     string
	}{
		{"ios", "no plugin registered for platform 'ios'"},
		{"", "no platform configured"},
	}
	for _, tt := range tests {
		err := NewUnknownPlatformError(tt.platform)
		if err.Error() != tt.want {
			t.Errorf("Error() = %q, want %q", err.Error(), tt.want)
		}
		if !errors.Is(err, ErrUnknownPlatform) {
			t.Error("should unwrap to ErrUnknownPlatform")
		}
	}
}

func TestErrorsIsWrapping(t *testing.T) {
	wrapped := fmt.Errorf("onboarding sw1: %w", NewUnknownPlatformError("eos"))
	if !errors.Is(wrapped, ErrUnknownPlatform) {
		t.Error("errors.Is should see through fmt.Errorf wrapping")
	}
	var upe *UnknownPlatformError
	if !errors.As(wrapped, &upe) || upe.Platform != "eos" {
		t.Error("errors.As should extract *UnknownPlatformError")
	}
}
