// Package vmerrors defines the error kinds produced while executing a call tree.
//
// Every recoverable failure is an *Error carrying a Kind and the exit code that
// ends up in the receipt. Invariant violations inside the VM itself are not
// errors: they panic with a Fault and must never be recovered by actor code.
package vmerrors

import (
	"errors"
	"fmt"

	"github.com/filecoin-project/go-state-types/exitcode"
)

// Kind classifies a failure.
type Kind int

const (
	// Unknown is reported for errors that did not originate in the VM.
	Unknown Kind = iota
	// ActorNotFound means the recipient or sender does not exist.
	ActorNotFound
	// IllegalArgument is an invalid request, e.g. creating the zero address actor.
	IllegalArgument
	// OutOfGas means a charge exceeded the remaining gas.
	OutOfGas
	// StateInconsistent means the chain state is corrupt. It is fatal.
	StateInconsistent
	// SerializationError means parameters or results could not be encoded.
	SerializationError
	// ExecutionFault means the sandboxed code could not be instantiated or trapped.
	ExecutionFault
	// InsufficientFunds means the sender could not cover the transferred value.
	InsufficientFunds
	// ActorAborted means actor code exited with its own non-zero exit code.
	ActorAborted
)

var kindNames = map[Kind]string{
	Unknown:            "unknown",
	ActorNotFound:      "actor not found",
	IllegalArgument:    "illegal argument",
	OutOfGas:           "out of gas",
	StateInconsistent:  "state inconsistent",
	SerializationError: "serialization error",
	ExecutionFault:     "execution fault",
	InsufficientFunds:  "insufficient funds",
	ActorAborted:       "actor aborted",
}

// ExecutionFault takes reserved code 4, which later network versions name
// SysErrIllegalInstruction.
var kindCodes = map[Kind]exitcode.ExitCode{
	Unknown:            exitcode.SysErrReserved2,
	ActorNotFound:      exitcode.SysErrInvalidReceiver,
	IllegalArgument:    exitcode.ErrIllegalArgument,
	OutOfGas:           exitcode.SysErrOutOfGas,
	StateInconsistent:  exitcode.SysErrorIllegalActor,
	SerializationError: exitcode.ErrSerialization,
	ExecutionFault:     exitcode.SysErrReserved1,
	InsufficientFunds:  exitcode.SysErrInsufficientFunds,
	ActorAborted:       exitcode.ErrIllegalState,
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ExitCode returns the receipt exit code for the kind.
func (k Kind) ExitCode() exitcode.ExitCode {
	if code, ok := kindCodes[k]; ok {
		return code
	}
	return exitcode.SysErrReserved2
}

// Error is a typed VM failure.
type Error struct {
	kind  Kind
	code  exitcode.ExitCode
	msg   string
	cause error
}

// New creates an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Abortf is how actor code fails with a specific exit code.
func Abortf(code exitcode.ExitCode, format string, args ...interface{}) *Error {
	return &Error{kind: ActorAborted, code: code, msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to cause. A nil cause yields nil.
func Wrap(kind Kind, cause error, msg string) error {
	if cause == nil {
		return nil
	}
	return &Error{kind: kind, msg: msg, cause: cause}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(kind Kind, cause error, format string, args ...interface{}) error {
	if cause == nil {
		return nil
	}
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...), cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.kind, e.msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

// Kind returns the failure kind.
func (e *Error) Kind() Kind {
	return e.kind
}

// ExitCode returns the receipt exit code.
func (e *Error) ExitCode() exitcode.ExitCode {
	if e.kind == ActorAborted && e.code != exitcode.Ok {
		return e.code
	}
	return e.kind.ExitCode()
}

// Fatal reports whether the error means the chain state cannot be trusted.
func (e *Error) Fatal() bool {
	return e.kind == StateInconsistent
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches another *Error of the same kind, so callers can write
// errors.Is(err, vmerrors.New(vmerrors.OutOfGas, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.kind == e.kind && (t.msg == "" || t.msg == e.msg)
}

// KindOf returns the kind of the outermost *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var vmErr *Error
	if errors.As(err, &vmErr) {
		return vmErr.kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// ExitCodeOf maps err onto a receipt exit code. A nil error is exitcode.Ok.
func ExitCodeOf(err error) exitcode.ExitCode {
	if err == nil {
		return exitcode.Ok
	}
	var vmErr *Error
	if errors.As(err, &vmErr) {
		return vmErr.ExitCode()
	}
	return Unknown.ExitCode()
}

// IsFatal reports whether err means the state is corrupt and execution must stop.
func IsFatal(err error) bool {
	return Is(err, StateInconsistent)
}
