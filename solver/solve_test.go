package solver_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/brunokim/wamstep/asm"
	"github.com/brunokim/wamstep/errors"
	"github.com/brunokim/wamstep/internal/testutil"
	"github.com/brunokim/wamstep/solver"
	"github.com/brunokim/wamstep/test_helpers"
	"github.com/brunokim/wamstep/wam"
)

func newMachine(t testing.TB, text string) *wam.Machine {
	t.Helper()
	p, err := asm.ParseString(test_helpers.Dedent(text))
	require.NoError(t, err)
	m := wam.NewMachine(wam.WithLogger(testutil.Logger(t)))
	require.NoError(t, m.Load(p, wam.Fresh))
	return m
}

// nat(0).
// nat(s(X)) :- nat(X).
const natProgram = `
    put_variable X1, X0
    call nat
    proceed
    nat: get_constant 0, X0
         proceed
    nat: allocate 0
         get_structure s/1, X0
         unify_variable X0
         call nat
         deallocate
         proceed
`

func TestSolve(t *testing.T) {
	ctx := testutil.Context(t)
	m := newMachine(t, natProgram)
	// ?- nat(X).
	got, err := solver.Solve(ctx, m, []solver.Var{{"X", wam.RegAddr(1)}}, 4)
	require.NoError(t, err)
	want := []solver.Solution{
		{"X": "0"},
		{"X": "s(0)"},
		{"X": "s(s(0))"},
		{"X": "s(s(s(0)))"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want, +got)%s", diff)
	}
}

func TestSolve_All(t *testing.T) {
	ctx := testutil.Context(t)
	// add(0, S, S).
	// add(s(A), B, s(S)) :- add(A, B, S).
	m := newMachine(t, `
        % ?- add(X, Y, s(s(s(0)))).
        put_variable X3, X0
        put_variable X4, X1
        put_structure s/1, X7
        set_constant 0
        put_structure s/1, X6
        set_value X7
        put_structure s/1, X2
        set_value X6
        call add
        proceed
        add: get_constant 0, X0
             get_value X1, X2
             proceed
        add: allocate 0
             get_structure s/1, X0
             unify_variable X0
             get_structure s/1, X2
             unify_variable X2
             call add
             deallocate
             proceed
    `)
	vars := []solver.Var{{"X", wam.RegAddr(3)}, {"Y", wam.RegAddr(4)}}
	got, err := solver.Solve(ctx, m, vars, 0)
	require.NoError(t, err)
	want := []solver.Solution{
		{"X": "0", "Y": "s(s(s(0)))"},
		{"X": "s(0)", "Y": "s(s(0))"},
		{"X": "s(s(0))", "Y": "s(0)"},
		{"X": "s(s(s(0)))", "Y": "0"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want, +got)%s", diff)
	}
	require.Equal(t, wam.HaltedFailure, m.State())
}

func TestSolve_Fatal(t *testing.T) {
	ctx := testutil.Context(t)
	m := newMachine(t, `
        put_variable X1, X0
        call missing
        proceed
    `)
	_, err := solver.Solve(ctx, m, nil, 0)
	require.True(t, wam.IsFatal(err), "got err: %v", err)
	require.True(t, errors.Is(err, wam.ErrUnknownProcedure), "got err: %v", err)
}

func TestQuery(t *testing.T) {
	ctx := testutil.Context(t)
	m := newMachine(t, natProgram)
	solutions, cancel := solver.Query(ctx, m, solver.Var{"X", wam.RegAddr(1)})
	defer cancel()
	var got []string
	for i := 0; i < 3; i++ {
		result := <-solutions
		require.NoError(t, result.Err)
		got = append(got, result.Solution.String())
	}
	want := []string{"X = 0", "X = s(0)", "X = s(s(0))"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want, +got)%s", diff)
	}
}

func TestQuery_Exhausted(t *testing.T) {
	ctx := testutil.Context(t)
	m := newMachine(t, `
        put_variable X1, X0
        call color
        proceed
        color: get_constant red, X0
               proceed
        color: get_constant green, X0
               proceed
    `)
	solutions, cancel := solver.Query(ctx, m, solver.Var{"X", wam.RegAddr(1)})
	defer cancel()
	var got []string
	for result := range solutions {
		require.NoError(t, result.Err)
		got = append(got, result.Solution.String())
	}
	require.Equal(t, []string{"X = red", "X = green"}, got)
}

func TestQuery_Cancel(t *testing.T) {
	ctx := testutil.Context(t)
	// loop :- loop.
	m := newMachine(t, `
        call loop
        loop: call loop
    `)
	solutions, cancel := solver.Query(ctx, m)
	<-time.After(10 * time.Millisecond)
	cancel()
	// The stream either reports the interruption or is closed.
	for result := range solutions {
		require.True(t, errors.Is(result.Err, context.Canceled), "got err: %v", result.Err)
	}
	require.Greater(t, m.Steps(), 0)
}
