package device

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("DeviceError (code %s): %s", e.Code, e.Msg)
}

// Is reports whether target is an *Error with the same code.
// This makes errors.Is(err, ErrRestart) work for every restart error.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new DeviceError with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// Errorf creates a new DeviceError with a formatted message.
func Errorf(code RetCode, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// CodeOf returns the code of err. nil maps to RetCSuccess and errors that
// are not of type *Error map to RetCInternalError.
func CodeOf(err error) RetCode {
	if err == nil {
		return RetCSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return RetCInternalError
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess          RetCode = iota // 0: Operation executed successfully.
	RetCInternalError                   // 1: Operation failed due to an internal error.
	RetCInvalidOperation                // 2: Invalid arguments or state.
	RetCRestart                         // 3: Lock acquisition was interrupted, the call may be restarted.
	RetCOutOfMemory                     // 4: A segment, slot array or quantum could not be allocated.
	RetCFault                           // 5: The copy primitive rejected the transfer.
	RetCNoDevice                        // 6: No device with the requested minor exists.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCRestart:
		return "Restart"
	case RetCOutOfMemory:
		return "OutOfMemory"
	case RetCFault:
		return "Fault"
	case RetCNoDevice:
		return "NoDevice"
	default:
		return "Unknown"
	}
}

// Sentinels for errors.Is
var (
	ErrRestart          = NewError(RetCRestart, "interrupted")
	ErrOutOfMemory      = NewError(RetCOutOfMemory, "out of memory")
	ErrFault            = NewError(RetCFault, "bad address")
	ErrInvalidOperation = NewError(RetCInvalidOperation, "invalid operation")
	ErrNoDevice         = NewError(RetCNoDevice, "no such device")
)
