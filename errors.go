package fastfair

import (
	"errors"
	"fmt"
)

// Error represents a fastfair error with an error code
type Error struct {
	Code    ErrorCode
	Message string
	Err     error // wrapped error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fastfair: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("fastfair: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode classifies fastfair errors
type ErrorCode int

const (
	// Success indicates the operation completed successfully
	Success ErrorCode = 0

	// ErrPoolUnavailable indicates the pool file cannot be created or opened
	ErrPoolUnavailable ErrorCode = -101

	// ErrOutOfSpace indicates the pool has no room for another allocation
	ErrOutOfSpace ErrorCode = -102

	// ErrNotFound indicates the key was not found
	ErrNotFound ErrorCode = -103

	// ErrInvalid indicates the file is not a valid fastfair pool
	ErrInvalid ErrorCode = -104

	// ErrVersionMismatch indicates the pool format version doesn't match
	// the library
	ErrVersionMismatch ErrorCode = -105

	// ErrCorrupted indicates the pool content is inconsistent
	ErrCorrupted ErrorCode = -106

	// ErrBadValue indicates a value outside the storable domain (zero is
	// reserved as the entry-array terminator)
	ErrBadValue ErrorCode = -107

	// ErrClosed indicates the tree handle has been closed
	ErrClosed ErrorCode = -108
)

// Error descriptions
var errorMessages = map[ErrorCode]string{
	Success:            "success",
	ErrPoolUnavailable: "pool cannot be created or opened",
	ErrOutOfSpace:      "pool out of space",
	ErrNotFound:        "key not found",
	ErrInvalid:         "file is not a valid fastfair pool",
	ErrVersionMismatch: "pool format version mismatch",
	ErrCorrupted:       "pool content is corrupted",
	ErrBadValue:        "value is outside the storable domain",
	ErrClosed:          "tree is closed",
}

// NewError creates a new Error with the given code
func NewError(code ErrorCode) *Error {
	msg, ok := errorMessages[code]
	if !ok {
		msg = fmt.Sprintf("unknown error code %d", code)
	}
	return &Error{Code: code, Message: msg}
}

// WrapError creates a new Error wrapping another error
func WrapError(code ErrorCode, err error) *Error {
	e := NewError(code)
	e.Err = err
	return e
}

// Code returns the error code from an error, or ErrCorrupted if the error
// is not a fastfair error
func Code(err error) ErrorCode {
	if err == nil {
		return Success
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCorrupted
}

// IsNotFound returns true if the error is ErrNotFound
func IsNotFound(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == ErrNotFound
	}
	return false
}

// IsOutOfSpace returns true if the error is ErrOutOfSpace
func IsOutOfSpace(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == ErrOutOfSpace
	}
	return false
}

// IsCorrupted returns true if the error indicates pool corruption
func IsCorrupted(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == ErrCorrupted || e.Code == ErrInvalid
	}
	return false
}
