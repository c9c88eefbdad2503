// Package errors provides structured error handling for the tap.
//
// Every failure the extraction core can report is an *Error carrying an
// ErrorType. Callers branch on the type with IsType instead of matching
// message text:
//
//	if errors.IsType(err, errors.ErrorTypeTypeMismatch) {
//	    // the row did not match the discovered schema
//	}
package errors

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
)

// ErrorType classifies a failure.
type ErrorType string

const (
	ErrorTypeInternal   ErrorType = "internal"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeFile       ErrorType = "file"
	// ErrorTypeTimeout and ErrorTypeConnection are transient; see IsRetryable.
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeQuery is raised by a warehouse while running or reading a query.
	ErrorTypeQuery ErrorType = "query"
	// ErrorTypeSchemaInference means a sample gave nothing to infer from.
	ErrorTypeSchemaInference ErrorType = "schema_inference"
	// ErrorTypeTypeMismatch means a row value does not fit its declared type.
	ErrorTypeTypeMismatch ErrorType = "type_mismatch"
	// ErrorTypeOutput covers writes to the message stream.
	ErrorTypeOutput ErrorType = "output"
)

// Error is a typed failure with optional cause and key/value details.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	// Origin is the file:line that first raised the failure. Wrapping keeps
	// the innermost origin.
	Origin string
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return string(e.Type) + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// WithDetail records key=value on e and returns it for chaining.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = map[string]interface{}{}
	}
	e.Details[key] = value
	return e
}

// New returns an *Error of the given type.
func New(typ ErrorType, message string) *Error {
	return &Error{Type: typ, Message: message, Origin: origin(2)}
}

// Newf is New with a formatted message.
func Newf(typ ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: typ, Message: fmt.Sprintf(format, args...), Origin: origin(2)}
}

// Wrap attaches a type and message to err. A nil err yields nil.
func Wrap(err error, typ ErrorType, message string) *Error {
	if err == nil {
		return nil
	}
	w := &Error{Type: typ, Message: message, Cause: err}
	var inner *Error
	if errors.As(err, &inner) && inner.Origin != "" {
		w.Origin = inner.Origin
	} else {
		w.Origin = origin(2)
	}
	return w
}

// IsRetryable reports whether the outermost *Error in err is transient.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == ErrorTypeTimeout || e.Type == ErrorTypeConnection
}

// IsType reports whether any error in err's tree is an *Error of the given
// type. Joined errors are searched branch by branch.
func IsType(err error, errType ErrorType) bool {
	switch x := err.(type) {
	case nil:
		return false
	case *Error:
		return x.Type == errType || IsType(x.Cause, errType)
	case interface{ Unwrap() []error }:
		for _, e := range x.Unwrap() {
			if IsType(e, errType) {
				return true
			}
		}
		return false
	case interface{ Unwrap() error }:
		return IsType(x.Unwrap(), errType)
	default:
		return false
	}
}

// DetailOf returns the detail stored under key on the outermost *Error in
// err's chain.
func DetailOf(err error, key string) (interface{}, bool) {
	var e *Error
	if !errors.As(err, &e) || e.Details == nil {
		return nil, false
	}
	v, ok := e.Details[key]
	return v, ok
}

// Is, As and Join re-export the standard library helpers so callers need a
// single errors import.
var (
	Is   = errors.Is
	As   = errors.As
	Join = errors.Join
)

func origin(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}
