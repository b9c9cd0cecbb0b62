package nlq

import (
	"errors"
	"fmt"
)

// ErrorKind classifies turn failures so the transport layer can pick a
// status code and the caller can tell a bad question from a bad backend.
type ErrorKind string

const (
	KindInvalidInput           ErrorKind = "invalid_input"
	KindTransportError         ErrorKind = "transport_error"
	KindMalformedModelResponse ErrorKind = "malformed_model_response"
	KindUnsafeQuery            ErrorKind = "unsafe_query"
	KindUnknownSchemaReference ErrorKind = "unknown_schema_reference"
	KindQueryTimeout           ErrorKind = "query_timeout"
	KindExecutionError         ErrorKind = "execution_error"
)

type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the classification from err, or KindExecutionError when
// err carries none.
func KindOf(err error) ErrorKind {
	var turnErr *Error
	if errors.As(err, &turnErr) {
		return turnErr.Kind
	}
	return KindExecutionError
}

// MessageOf returns the user-facing message for err.
func MessageOf(err error) string {
	var turnErr *Error
	if errors.As(err, &turnErr) {
		return turnErr.Message
	}
	return "query processing failed"
}
