// Package errors builds the error values used across the machine.
//
// Messages are formatted lazily, and an error built with New unwraps to its
// first error argument, so sentinel kinds can be passed as regular format
// arguments and still be matched with Is.
package errors

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

type err struct {
	msg  string
	args []interface{}
}

func (err err) Error() string {
	return fmt.Sprintf(err.msg, err.args...)
}

func (err err) Unwrap() error {
	for _, arg := range err.args {
		if wrapped, ok := arg.(error); ok {
			return wrapped
		}
	}
	return nil
}

// New returns an error formatted with msg and args.
func New(msg string, args ...interface{}) error {
	return err{msg, args}
}

// Kind is a sentinel error identified by its message.
type Kind string

func (k Kind) Error() string { return string(k) }

var (
	Is     = pkgerrors.Is
	As     = pkgerrors.As
	Wrap   = pkgerrors.Wrap
	Wrapf  = pkgerrors.Wrapf
	Cause  = pkgerrors.Cause
	Unwrap = pkgerrors.Unwrap
)
