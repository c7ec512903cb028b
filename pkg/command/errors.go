package command

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a command request could not be completed.
type ErrorKind int

// Command error kinds, mirroring the driver package's Status/HailoError
// contract.
const (
	ErrKindNotSupported ErrorKind = iota
	ErrKindInvalidArgument
	ErrKindSerializationFailed
	ErrKindBufferTooSmall
	ErrKindNacked
	ErrKindTimeout
	ErrKindDispatchClosed
)

var errorKindMessages = map[ErrorKind]string{
	ErrKindNotSupported:       "command not supported",
	ErrKindInvalidArgument:    "invalid argument",
	ErrKindSerializationFailed: "serialization failed",
	ErrKindBufferTooSmall:     "buffer too small",
	ErrKindNacked:             "command nacked",
	ErrKindTimeout:            "command timed out",
	ErrKindDispatchClosed:     "dispatcher closed",
}

// String returns the error kind's human-readable message.
func (k ErrorKind) String() string {
	if msg, ok := errorKindMessages[k]; ok {
		return msg
	}
	return fmt.Sprintf("unknown command error (%d)", int(k))
}

// Error reports a failure to register, dispatch, or serialize a command.
type Error struct {
	Kind    ErrorKind
	ID      ID
	Context string
	Cause   error
}

func (e *Error) Error() string {
	prefix := fmt.Sprintf("%s[%s]", e.Kind.String(), e.ID)
	if e.Context != "" {
		prefix = fmt.Sprintf("%s: %s", prefix, e.Context)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", prefix, e.Cause)
	}
	return prefix
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on Kind, the same way driver.HailoError matches on Status.
func (e *Error) Is(target error) bool {
	var cmdErr *Error
	if errors.As(target, &cmdErr) {
		return e.Kind == cmdErr.Kind
	}
	return false
}

// NewError returns a command Error with no underlying cause.
func NewError(kind ErrorKind, id ID, context string) *Error {
	return &Error{Kind: kind, ID: id, Context: context}
}

// NewErrorWithCause returns a command Error wrapping cause.
func NewErrorWithCause(kind ErrorKind, id ID, context string, cause error) *Error {
	return &Error{Kind: kind, ID: id, Context: context, Cause: cause}
}
