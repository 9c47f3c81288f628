// Package errors defines the stable failure taxonomy for the miner.
//
// Most failures in this system are absorbed, not surfaced: task-local and
// store errors degrade the result instead of failing the request. The codes
// here exist so that the few errors that do cross a boundary carry a stable,
// loggable identity.
package errors

import (
	"errors"
	"fmt"
)

// Code represents stable error codes for all failure modes.
type Code string

const (
	// NotFound indicates identifier resolution found nothing.
	NotFound Code = "NOT_FOUND"
	// TaskTimeout indicates a single collection task exceeded its local bound.
	TaskTimeout Code = "TASK_TIMEOUT"
	// RequestTimeout indicates the overall request deadline was exceeded.
	RequestTimeout Code = "REQUEST_TIMEOUT"
	// PartialCollection indicates some tasks failed but enough succeeded to
	// proceed. Never surfaced to callers, only logged with the reduced count.
	PartialCollection Code = "PARTIAL_COLLECTION"
	// StoreUnavailable indicates a cache backend error. Reads treat this as a
	// miss; it never propagates to the caller.
	StoreUnavailable Code = "STORE_UNAVAILABLE"
	// PoolExhausted indicates no browser sessions could be acquired. Fatal
	// only when initialization yields zero sessions.
	PoolExhausted Code = "POOL_EXHAUSTED"
	// MalformedItem indicates an extracted item failed validation and was
	// dropped during normalization.
	MalformedItem Code = "MALFORMED_ITEM"
	// InvalidArgument indicates a malformed request parameter.
	InvalidArgument Code = "INVALID_ARGUMENT"
	// Unauthorized indicates a missing or invalid admin token.
	Unauthorized Code = "UNAUTHORIZED"
	// Internal indicates an unexpected error.
	Internal Code = "INTERNAL"
)

// MinerError is an error with a stable code, a human-readable message, and an
// optional cause.
type MinerError struct {
	Code    Code        `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	cause   error
}

// New creates a MinerError without a cause.
func New(code Code, message string) *MinerError {
	return &MinerError{Code: code, Message: message}
}

// Newf creates a MinerError with a formatted message.
func Newf(code Code, format string, args ...interface{}) *MinerError {
	return &MinerError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a MinerError wrapping an underlying cause.
func Wrap(code Code, message string, cause error) *MinerError {
	return &MinerError{Code: code, Message: message, cause: cause}
}

// Error implements the error interface.
func (e *MinerError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *MinerError) Unwrap() error {
	return e.cause
}

// WithDetails attaches structured details to the error.
func (e *MinerError) WithDetails(details interface{}) *MinerError {
	e.Details = details
	return e
}

// CodeOf extracts the code from an error chain. Unknown errors map to
// Internal; nil maps to the empty code.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var me *MinerError
	if errors.As(err, &me) {
		return me.Code
	}
	return Internal
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}
