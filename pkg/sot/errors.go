package sot

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/newtron-network/sotboard/pkg/util"
)

// ErrorKind classifies a backend failure independently of the backend's
// wording.
type ErrorKind int

const (
	// KindUnknown is any failure not matched by a known pattern.
	KindUnknown ErrorKind = iota
	// KindAlreadyExists is a create rejected because the object exists.
	KindAlreadyExists
	// KindUniqueViolation is a create rejected by a unique-together rule.
	KindUniqueViolation
	// KindNotFound is a referenced object that does not exist.
	KindNotFound
	// KindNotAssigned is an address that is not assigned to the device.
	KindNotAssigned
	// KindInvalid is a request the backend rejected as malformed.
	KindInvalid
	// KindTransient is a timeout or an unavailable backend; safe to retry.
	KindTransient
)

func (k ErrorKind) String() string {
	switch k {
	case KindAlreadyExists:
		return "already-exists"
	case KindUniqueViolation:
		return "unique-violation"
	case KindNotFound:
		return "not-found"
	case KindNotAssigned:
		return "not-assigned"
	case KindInvalid:
		return "invalid"
	case KindTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// Error is the error type returned by every Client implementation.
type Error struct {
	Op      string // client method, e.g. "CreateDevice"
	Kind    ErrorKind
	Object  string // natural key of the object involved
	Message string // backend message
	Err     error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Object != "" {
		msg += " " + e.Object
	}
	msg += ": " + e.Kind.String()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	switch e.Kind {
	case KindAlreadyExists, KindUniqueViolation:
		return util.ErrAlreadyExists
	case KindNotFound:
		return util.ErrNotFound
	}
	return nil
}

// NewError creates a typed backend error.
func NewError(op string, kind ErrorKind, object, message string) *Error {
	return &Error{Op: op, Kind: kind, Object: object, Message: message}
}

// KindOf returns the kind of err, KindTransient for context deadline
// errors, or KindUnknown.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	return KindUnknown
}

// IsKind reports whether err has one of kinds.
func IsKind(err error, kinds ...ErrorKind) bool {
	if err == nil {
		return false
	}
	k := KindOf(err)
	for _, want := range kinds {
		if k == want {
			return true
		}
	}
	return false
}

// IsConflict reports whether err says the object already exists.
func IsConflict(err error) bool {
	return IsKind(err, KindAlreadyExists, KindUniqueViolation)
}

// Pattern maps backend messages matching Re to Kind.
type Pattern struct {
	Kind ErrorKind
	Re   *regexp.Regexp
}

// MustPattern compiles expr into a Pattern; it panics on a bad expression
// and is meant for package-level catalogues.
func MustPattern(kind ErrorKind, expr string) Pattern {
	return Pattern{Kind: kind, Re: regexp.MustCompile(expr)}
}

// Classifier turns free-text backend messages into error kinds. Patterns
// are tried in order; the first match wins and an unmatched message is
// KindUnknown.
type Classifier struct {
	patterns []Pattern
}

// NewClassifier creates a classifier over an ordered catalogue.
func NewClassifier(patterns ...Pattern) *Classifier {
	return &Classifier{patterns: patterns}
}

// Classify returns the kind of message.
func (c *Classifier) Classify(message string) ErrorKind {
	if c == nil {
		return KindUnknown
	}
	for _, p := range c.patterns {
		if p.Re.MatchString(message) {
			return p.Kind
		}
	}
	return KindUnknown
}

// Wrap builds an *Error for op from message using the catalogue.
func (c *Classifier) Wrap(op, object, message string) *Error {
	return NewError(op, c.Classify(message), object, message)
}

// Errorf is a convenience for backends building typed errors.
func Errorf(op string, kind ErrorKind, object, format string, args ...interface{}) *Error {
	return NewError(op, kind, object, fmt.Sprintf(format, args...))
}
