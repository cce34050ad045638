// Package util provides utility functions and common error types.
package util

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared by the onboarding packages
var (
	ErrAlreadyExists    = errors.New("resource already exists")
	ErrNotFound         = errors.New("resource not found")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrValidationFailed = errors.New("validation failed")
	ErrUnknownPlatform  = errors.New("unknown platform")
	ErrUnknownDevice    = errors.New("unknown device")
	ErrConflict         = errors.New("conflicting resource")
	ErrParseFailed      = errors.New("device output could not be parsed")
	ErrNoPrimaryAddress = errors.New("no primary address")
)

// ValidationError represents one or more validation failures
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0]
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// ValidationBuilder helps accumulate validation errors
type ValidationBuilder struct {
	errors []string
}

// Add adds an error message if condition is false
func (v *ValidationBuilder) Add(condition bool, message string) *ValidationBuilder {
	if !condition {
		v.errors = append(v.errors, message)
	}
	return v
}

// AddError adds an error message unconditionally
func (v *ValidationBuilder) AddError(message string) *ValidationBuilder {
	v.errors = append(v.errors, message)
	return v
}

// AddErrorf adds a formatted error message
func (v *ValidationBuilder) AddErrorf(format string, args ...interface{}) *ValidationBuilder {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
	return v
}

// HasErrors returns true if there are validation errors
func (v *ValidationBuilder) HasErrors() bool {
	return len(v.errors) > 0
}

// Build returns the validation error or nil if no errors
func (v *ValidationBuilder) Build() error {
	if len(v.errors) == 0 {
		return nil
	}
	return &ValidationError{Errors: v.errors}
}

// ConfigError is a fatal configuration problem for one device: a missing
// defaults document, an unregistered platform, an unreadable mapping.
type ConfigError struct {
	Device string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := "configuration error"
	if e.Device != "" {
		msg += " for " + e.Device
	}
	msg += ": " + e.Reason
	if e.Err != nil && !errors.Is(e.Err, ErrInvalidConfig) {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidConfig
}

// NewConfigError creates a configuration error; err may be nil.
func NewConfigError(device, reason string, err error) *ConfigError {
	return &ConfigError{Device: device, Reason: reason, Err: err}
}

// UnknownPlatformError is returned when no plugin is registered for a platform
type UnknownPlatformError struct {
	Platform string
}

func (e *UnknownPlatformError) Error() string {
	if e.Platform == "" {
		return "no platform configured"
	}
	return fmt.Sprintf("no plugin registered for platform '%s'", e.Platform)
}

func (e *UnknownPlatformError) Unwrap() error {
	return ErrUnknownPlatform
}

// NewUnknownPlatformError creates an unknown platform error
func NewUnknownPlatformError(platform string) *UnknownPlatformError {
	return &UnknownPlatformError{Platform: platform}
}
