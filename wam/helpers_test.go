package wam_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brunokim/wamstep/internal/testutil"
	"github.com/brunokim/wamstep/wam"
)

type (
	functor  = wam.Functor
	reg      = wam.RegAddr
	stack    = wam.StackAddr
	constant = wam.Constant

	put_variable   = wam.PutVariable
	put_value      = wam.PutValue
	put_structure  = wam.PutStructure
	put_constant   = wam.PutConstant
	get_variable   = wam.GetVariable
	get_value      = wam.GetValue
	get_structure  = wam.GetStructure
	get_constant   = wam.GetConstant
	set_variable   = wam.SetVariable
	set_value      = wam.SetValue
	set_constant   = wam.SetConstant
	unify_variable = wam.UnifyVariable
	unify_value    = wam.UnifyValue
	unify_constant = wam.UnifyConstant
	call           = wam.Call
	proceed        = wam.Proceed
	allocate       = wam.Allocate
	deallocate     = wam.Deallocate
	fail           = wam.Fail
)

const (
	continuing = wam.Continuing
	succeeded  = wam.Succeeded
	failed     = wam.Failed
)

func atom(name string) constant {
	return constant{name}
}

type symbols = wam.SymbolTable

func newMachine(t testing.TB, code []wam.Instruction, syms symbols, opts ...wam.Option) *wam.Machine {
	t.Helper()
	prog, err := wam.NewProgram(code, syms)
	require.NoError(t, err)
	opts = append([]wam.Option{wam.WithLogger(testutil.Logger(t))}, opts...)
	m := wam.NewMachine(opts...)
	require.NoError(t, m.Load(prog, wam.Fresh))
	return m
}

// advance steps the machine n times, returning every outcome and the last error.
func advance(m *wam.Machine, n int) ([]wam.Outcome, error) {
	var outcomes []wam.Outcome
	var err error
	for i := 0; i < n; i++ {
		var outcome wam.Outcome
		outcome, err = m.Advance()
		outcomes = append(outcomes, outcome)
	}
	return outcomes, err
}

func term(t testing.TB, m *wam.Machine, addr wam.Addr) string {
	t.Helper()
	x, err := m.Register(addr)
	require.NoError(t, err)
	return m.FormatTerm(x)
}

var (
	// color(red). color(green). color(blue).
	colorCode = []wam.Instruction{
		get_constant{atom("red"), reg(0)},
		proceed{},
		get_constant{atom("green"), reg(0)},
		proceed{},
		get_constant{atom("blue"), reg(0)},
		proceed{},
	}
)

// withColors appends the color/1 clauses to a query, and returns the program symbols.
func withColors(query ...wam.Instruction) ([]wam.Instruction, symbols) {
	n := len(query)
	code := append(append([]wam.Instruction{}, query...), colorCode...)
	return code, symbols{"color": {n, n + 2, n + 4}}
}
