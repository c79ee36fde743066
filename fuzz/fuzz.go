package fuzz

import (
	"github.com/brunokim/wamstep/asm"
	"github.com/brunokim/wamstep/wam"
)

// Fuzz parses data as assembly, and runs the program for a bounded number of
// steps. The machine must never panic, regardless of the program.
func Fuzz(data []byte) int {
	p, err := asm.ParseString(string(data))
	if err != nil {
		return 0
	}
	m := wam.NewMachine(wam.WithIterLimit(1000), wam.WithRegisters(8))
	if err := m.Load(p, wam.Fresh); err != nil {
		return 0
	}
	m.RunToCompletion()
	return 1
}
