package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/brunokim/wamstep/internal/testutil"
	"github.com/brunokim/wamstep/solver"
	"github.com/brunokim/wamstep/wam"
)

func TestParseVars(t *testing.T) {
	got, err := parseVars("X=X3, Y = A4,,")
	require.NoError(t, err)
	want := []solver.Var{
		{Name: "X", Addr: wam.RegAddr(3)},
		{Name: "Y", Addr: wam.RegAddr(4)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want, +got)%s", diff)
	}

	_, err = parseVars("X")
	require.Error(t, err)
	_, err = parseVars("X=Z1")
	require.Error(t, err)
}

func TestReadProgram(t *testing.T) {
	p, err := readProgram("testdata/add.wam")
	require.NoError(t, err)
	m := wam.NewMachine(wam.WithLogger(testutil.Logger(t)))
	require.NoError(t, m.Load(p, wam.Fresh))
	vars, err := parseVars("X=X3,Y=X4")
	require.NoError(t, err)
	solutions, err := solver.Solve(testutil.Context(t), m, vars, 0)
	require.NoError(t, err)
	want := []solver.Solution{
		{"X": "0", "Y": "s(s(0))"},
		{"X": "s(0)", "Y": "s(0)"},
		{"X": "s(s(0))", "Y": "0"},
	}
	if diff := cmp.Diff(want, solutions); diff != "" {
		t.Errorf("(-want, +got)%s", diff)
	}
}
