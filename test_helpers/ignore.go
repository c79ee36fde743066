package test_helpers

import (
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/brunokim/wamstep/wam"
)

var (
	// EquateEmpty treats nil and empty slices and maps as equal, and compares
	// snapshots regardless of the formatted error.
	EquateEmpty = cmp.Options{
		cmpopts.EquateEmpty(),
		cmpopts.IgnoreFields(wam.Snapshot{}, "Err"),
	}
)
