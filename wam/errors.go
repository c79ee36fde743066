package wam

import (
	"fmt"

	"github.com/brunokim/wamstep/errors"
)

const (
	// ErrStackOverflow is returned when a register or slot index exceeds its bound.
	ErrStackOverflow = errors.Kind("stack overflow")
	// ErrStackUnderflow is returned when accessing or popping an environment that doesn't exist.
	ErrStackUnderflow = errors.Kind("stack underflow")
	// ErrUnknownProcedure is returned when calling a name absent from the symbol table.
	ErrUnknownProcedure = errors.Kind("unknown procedure")
	// ErrUnificationFailure is returned when the query fails and there are no alternatives left.
	ErrUnificationFailure = errors.Kind("unification failed")
	// ErrUnsetRegister is returned when reading a register that was never written.
	ErrUnsetRegister = errors.Kind("unset register")
	// ErrCodeOutOfRange is returned when the code pointer leaves the program.
	ErrCodeOutOfRange = errors.Kind("code address out of range")
	// ErrInvalidProgram is returned when loading a malformed program.
	ErrInvalidProgram = errors.Kind("invalid program")
	// ErrIterLimit is returned when a run exceeds the configured iteration limit.
	ErrIterLimit = errors.Kind("iteration limit reached")
)

var fatalKinds = []error{
	ErrStackOverflow,
	ErrStackUnderflow,
	ErrUnknownProcedure,
	ErrUnsetRegister,
	ErrCodeOutOfRange,
	ErrInvalidProgram,
}

// IsFatal returns whether err reports a malformed program, as opposed to a
// query without solutions.
func IsFatal(err error) bool {
	for _, kind := range fatalKinds {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

type unifyError struct {
	c1, c2 interface{}
}

func (err *unifyError) Error() string {
	return fmt.Sprintf("%v != %v", err.c1, err.c2)
}
