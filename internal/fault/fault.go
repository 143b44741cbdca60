// Package fault defines the unrecoverable-condition error type the taint
// engine panics with when an upstream collaborator (lifter or log capture)
// has produced an inconsistent stream. See taintcore.FaultError.
package fault

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error marks a contract violation that the engine treats as unrecoverable:
// a malformed op buffer, a misaligned dynamic log, or an out-of-range frame.
// Callers are expected to let it propagate (or recover it at their own
// boundary); the engine never recovers one internally.
type Error struct {
	msg   string
	cause error
}

func (e *Error) Error() string { return e.msg }
func (e *Error) Unwrap() error { return e.cause }

// Fatalf builds an *Error with a captured stack trace and panics with it.
// Every internal "contract violation" path in the engine calls this instead
// of returning an error, mirroring the abort()-on-assert design it replaces.
func Fatalf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	panic(&Error{msg: msg, cause: errors.New(msg)})
}
