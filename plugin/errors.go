package plugin

import "fmt"

// Error is raised synchronously from registration calls (duplicate
// plugin id, missing handler, malformed schema, uri collision) so that
// a misconfigured plugin prevents server start rather than failing a
// later request.
type Error struct {
	Op  string
	Msg string
}

func (e *Error) Error() string { return fmt.Sprintf("plugin %s: %s", e.Op, e.Msg) }

func newError(op, format string, args ...any) error {
	return &Error{Op: op, Msg: fmt.Sprintf(format, args...)}
}
