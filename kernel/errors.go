package kernel

import (
	"errors"
	"fmt"
)

// Sentinel errors the dispatch loop maps to JSON-RPC error codes. The
// wire message is the sentinel text followed by the offending name,
// e.g. "Tool not found: demo:nope".
var (
	ErrMethodNotFound   = errors.New("Method not found")
	ErrToolNotFound     = errors.New("Tool not found")
	ErrResourceNotFound = errors.New("Resource not found")
	ErrPromptNotFound   = errors.New("Prompt not found")
	ErrInvalidParams    = errors.New("Invalid params")
)

// Error wraps a dispatch-time failure with the JSON-RPC error code it
// should surface as.
type Error struct {
	Code int
	Msg  string
	Err  error
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Err }

func newError(code int, err error) *Error {
	return &Error{Code: code, Msg: err.Error(), Err: err}
}

// notFound builds the "{sentinel}: {name}" error surfaced when a
// method, tool, resource, or prompt lookup misses.
func notFound(code int, sentinel error, name string) *Error {
	return newError(code, fmt.Errorf("%w: %s", sentinel, name))
}
