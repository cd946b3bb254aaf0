// Package errs defines the sum type of error kinds the runtime can produce.
package errs

import "errors"

// Kind is one of the error kinds a runtime operation can fail with.
type Kind string

const (
	KindNotFound           Kind = "NotFound"
	KindValidation         Kind = "Validation"
	KindStorageUnavailable Kind = "StorageUnavailable"
	KindLlmTransport       Kind = "LlmTransport"
	KindLlmContentPolicy   Kind = "LlmContentPolicy"
	KindToolExecution      Kind = "ToolExecution"
	KindTimeout            Kind = "Timeout"
	KindTransferLoop       Kind = "TransferLoop"
	KindCancelled          Kind = "Cancelled"
	KindInternal           Kind = "Internal"
)

// Error carries a Kind, a message, and the invocation it happened in.
type Error struct {
	Kind         Kind
	Message      string
	InvocationID string
	Wrapped      error
}

func (e *Error) Error() string {
	if e.InvocationID != "" {
		return string(e.Kind) + ": " + e.Message + " (invocation " + e.InvocationID + ")"
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Wrapped }

// New builds an *Error of the given kind.
func New(kind Kind, invocationID, message string) *Error {
	return &Error{Kind: kind, Message: message, InvocationID: invocationID}
}

// Wrap builds an *Error of the given kind wrapping an underlying error.
func Wrap(kind Kind, invocationID string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: err.Error(), InvocationID: invocationID, Wrapped: err}
}

// KindOf extracts the Kind from err, or KindInternal if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Sentinel errors usable with errors.Is for the cases that don't need a message.
var (
	ErrNotFound     = New(KindNotFound, "", "not found")
	ErrCancelled    = New(KindCancelled, "", "cancelled")
	ErrTransferLoop = New(KindTransferLoop, "", "transfer loop detected")
)
