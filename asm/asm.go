// Package asm reads and writes machine programs in a textual assembly.
//
// Each line holds at most one instruction, written as its mnemonic followed
// by comma-separated operands, exactly as wam.Instruction.String prints it.
// A line may start with a label "name:", that declares a clause of procedure
// "name" at the address of the next instruction. Repeating a label declares
// another clause of the same procedure, tried in text order. Comments start
// with % and run until the end of the line.
//
//	% ?- color(X).
//	    put_variable X1, X0
//	    call color
//	    proceed
//	color: get_constant red, X0
//	    proceed
//	color: get_constant 'light blue', X0
//	    proceed
//
// Execution starts at the first instruction.
package asm

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/brunokim/wamstep/errors"
	"github.com/brunokim/wamstep/wam"
)

// ErrSyntax is returned for malformed assembly.
const ErrSyntax = errors.Kind("syntax error")

// Parse reads an assembly program.
func Parse(r io.Reader) (*wam.Program, error) {
	var code []wam.Instruction
	symbols := make(wam.SymbolTable)
	s := bufio.NewScanner(r)
	lineno := 0
	for s.Scan() {
		lineno++
		l, err := parseLine(s.Text())
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", lineno)
		}
		if l.hasLabel {
			symbols.Add(l.label, len(code))
		}
		if l.instr != nil {
			code = append(code, l.instr)
		}
	}
	if err := s.Err(); err != nil {
		return nil, errors.Wrap(err, "read program")
	}
	return wam.NewProgram(code, symbols)
}

// ParseString reads an assembly program from a string.
func ParseString(text string) (*wam.Program, error) {
	return Parse(strings.NewReader(text))
}

// MustParse is like ParseString, but panics on error. Useful for tests and
// programs embedded in code.
func MustParse(text string) *wam.Program {
	p, err := ParseString(text)
	if err != nil {
		panic(err)
	}
	return p
}

// Format writes a program as assembly, one instruction per line. Labels are
// written before the instructions they point to, so clauses of a procedure
// are listed in code order.
func Format(w io.Writer, p *wam.Program) error {
	bw := bufio.NewWriter(w)
	for addr, instr := range p.Code {
		for _, label := range p.Labels(addr) {
			fmt.Fprintf(bw, "%v:\n", wam.Constant{Name: label})
		}
		fmt.Fprintf(bw, "\t%v\n", instr)
	}
	return bw.Flush()
}

// Listing returns the program with each instruction prefixed by its address.
func Listing(p *wam.Program) string {
	var b strings.Builder
	for addr, instr := range p.Code {
		for _, label := range p.Labels(addr) {
			fmt.Fprintf(&b, "%v:\n", wam.Constant{Name: label})
		}
		fmt.Fprintf(&b, "%4d\t%v\n", addr, instr)
	}
	return b.String()
}
