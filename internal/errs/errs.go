// Package errs provides coded errors shared across itemsync packages.
package errs

import (
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Item errors
	ErrCodeMissingID    ErrorCode = "MISSING_ID"
	ErrCodeDecodeFailed ErrorCode = "DECODE_FAILED"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"

	// Store errors
	ErrCodeStoreFailed     ErrorCode = "STORE_FAILED"
	ErrCodeSubscribeFailed ErrorCode = "SUBSCRIBE_FAILED"
	ErrCodeUnknownBackend  ErrorCode = "UNKNOWN_BACKEND"

	// General errors
	ErrCodeConfigInvalid ErrorCode = "CONFIG_INVALID"
	ErrCodeInvalidInput  ErrorCode = "INVALID_INPUT"
)

// Error is a structured error with context
type Error struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *Error) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new Error
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a code
func Wrap(err error, code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is checks if any error in err's chain carries the given code
func Is(err error, code ErrorCode) bool {
	return GetCode(err) == code && code != ""
}

// GetCode extracts the first error code from err's chain
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// MissingID is returned when a keyed operation gets an item without an id.
func MissingID(op string) *Error {
	return New(ErrCodeMissingID, op+": item has no id").WithDetail("op", op)
}

// NotFound is returned by lookups on ids absent from the snapshot.
func NotFound(id string) *Error {
	return New(ErrCodeNotFound, fmt.Sprintf("item not found: %s", id)).WithDetail("id", id)
}

// Decode wraps a document that could not be mapped to an item.
func Decode(id string, err error) *Error {
	return Wrap(err, ErrCodeDecodeFailed, fmt.Sprintf("decode document %s", id)).WithDetail("id", id)
}

// Store wraps a failed collection call.
func Store(op string, err error) *Error {
	return Wrap(err, ErrCodeStoreFailed, op+" failed").WithDetail("op", op)
}

// UnknownBackend is returned for backend names the factory does not know.
func UnknownBackend(name string) *Error {
	return New(ErrCodeUnknownBackend, fmt.Sprintf("unknown backend: %q", name)).WithDetail("backend", name)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *Error {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// InvalidInput creates an invalid input error
func InvalidInput(reason string) *Error {
	return New(ErrCodeInvalidInput, reason)
}
