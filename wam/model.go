// Package wam implements a single-step interpreter for a Warren Abstract Machine.
//
// The WAM is an abstract design for a register-based Prolog machine,
// that enjoys good performance and ease of translation to machine code.
//
// Differently from a tree-walking machine, every term lives in a heap of
// addressable cells. An unbound variable is a cell that references itself,
// and binding it means overwriting the cell with a reference to another
// address. Bindings that must survive a failure are recorded in the trail,
// so that backtracking can restore them to unbound.
//
// The machine is composed of a fixed set of temporary registers and two
// stacks: the environment (or AND-)stack, that stores permanent variables of
// procedure calls, and the choicepoint (or OR-)stack, that stores the
// alternative clauses to try on failure. Both stacks are arenas addressed by
// index, so saving and restoring them is a matter of copying integers.
//
// The machine never runs on its own: a driver loads a Program and calls
// Advance to execute one instruction at a time, inspecting the machine state
// between steps.
//
// Learn more in "Warren’s Abstract Machine: A tutorial reconstrution", Hassan Aït-Kici
package wam

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
)

// ---- Address types

// Addr represents the address of a register operand.
type Addr interface {
	fmt.Stringer
	isAddr()
}

// RegAddr is the index of a temporary machine register.
type RegAddr int

// StackAddr is the index of a permanent variable in the current environment.
type StackAddr int

func (a RegAddr) isAddr()   {}
func (a StackAddr) isAddr() {}

func (a RegAddr) String() string   { return fmt.Sprintf("X%d", a) }
func (a StackAddr) String() string { return fmt.Sprintf("Y%d", a) }

// HeapAddr is the position of a cell within the heap.
type HeapAddr int

// NoAddr is held by registers and permanent variables that were never written.
const NoAddr HeapAddr = -1

func (a HeapAddr) String() string {
	if a == NoAddr {
		return "<unset>"
	}
	return fmt.Sprintf("@%d", int(a))
}

// NoCode is the code address of an absent continuation.
const NoCode = -1

// ---- Basic types

// Functor represents a functor's name and arity.
type Functor struct {
	Name  string
	Arity int
}

func (f Functor) String() string {
	return fmt.Sprintf("%s/%d", formatAtom(f.Name), f.Arity)
}

// ---- Heap cells

// Cell represents a term stored in the heap.
type Cell interface {
	fmt.Stringer
	isCell()
}

// Ref represents a variable. It is unbound when it references its own
// address; otherwise, it forwards to another heap cell.
type Ref struct {
	Addr HeapAddr
}

// Constant represents an atom.
type Constant struct {
	Name string
}

// Struct represents a compound term, with the addresses of its arguments.
type Struct struct {
	Name string
	Args []HeapAddr
}

func (c Ref) isCell()      {}
func (c Constant) isCell() {}
func (c Struct) isCell()   {}

// Functor returns the f/n notation of a struct.
func (c Struct) Functor() Functor {
	return Functor{c.Name, len(c.Args)}
}

func (c Ref) String() string {
	return fmt.Sprintf("ref %v", c.Addr)
}

func (c Constant) String() string {
	return formatAtom(c.Name)
}

func (c Struct) String() string {
	args := make([]string, len(c.Args))
	for i, arg := range c.Args {
		args[i] = arg.String()
	}
	return fmt.Sprintf("%s(%s)", formatAtom(c.Name), strings.Join(args, ", "))
}

// ---- Instructions

// Instruction represents an instruction of the abstract machine.
type Instruction interface {
	fmt.Stringer
	isInstruction()
}

// PutVariable instruction: put_variable <addr>, <addr arg>
type PutVariable struct {
	Addr    Addr
	ArgAddr Addr
}

// PutValue instruction: put_value <addr>, <addr arg>
type PutValue struct {
	Addr    Addr
	ArgAddr Addr
}

// PutStructure instruction: put_structure <f/n>, <addr arg>
type PutStructure struct {
	Functor Functor
	ArgAddr Addr
}

// PutConstant instruction: put_constant <const>, <addr arg>
type PutConstant struct {
	Constant Constant
	ArgAddr  Addr
}

// GetVariable instruction: get_variable <addr>, <addr arg>
type GetVariable struct {
	Addr    Addr
	ArgAddr Addr
}

// GetValue instruction: get_value <addr>, <addr arg>
type GetValue struct {
	Addr    Addr
	ArgAddr Addr
}

// GetStructure instruction: get_structure <f/n>, <addr arg>
type GetStructure struct {
	Functor Functor
	ArgAddr Addr
}

// GetConstant instruction: get_constant <const>, <addr arg>
type GetConstant struct {
	Constant Constant
	ArgAddr  Addr
}

// SetVariable instruction: set_variable <addr>
type SetVariable struct {
	Addr Addr
}

// SetValue instruction: set_value <addr>
type SetValue struct {
	Addr Addr
}

// SetConstant instruction: set_constant <const>
type SetConstant struct {
	Constant Constant
}

// UnifyVariable instruction: unify_variable <addr>
type UnifyVariable struct {
	Addr Addr
}

// UnifyValue instruction: unify_value <addr>
type UnifyValue struct {
	Addr Addr
}

// UnifyConstant instruction: unify_constant <const>
type UnifyConstant struct {
	Constant Constant
}

// Call instruction: call <name>
type Call struct {
	Name string
}

// Proceed instruction: proceed
type Proceed struct{}

// Allocate instruction: allocate <n>
type Allocate struct {
	NumVars int
}

// Deallocate instruction: deallocate
type Deallocate struct{}

// Fail instruction: fail
type Fail struct{}

func (i PutVariable) isInstruction()   {}
func (i PutValue) isInstruction()      {}
func (i PutStructure) isInstruction()  {}
func (i PutConstant) isInstruction()   {}
func (i GetVariable) isInstruction()   {}
func (i GetValue) isInstruction()      {}
func (i GetStructure) isInstruction()  {}
func (i GetConstant) isInstruction()   {}
func (i SetVariable) isInstruction()   {}
func (i SetValue) isInstruction()      {}
func (i SetConstant) isInstruction()   {}
func (i UnifyVariable) isInstruction() {}
func (i UnifyValue) isInstruction()    {}
func (i UnifyConstant) isInstruction() {}
func (i Call) isInstruction()          {}
func (i Proceed) isInstruction()       {}
func (i Allocate) isInstruction()      {}
func (i Deallocate) isInstruction()    {}
func (i Fail) isInstruction()          {}

func (i PutVariable) String() string {
	return fmt.Sprintf("put_variable %v, %v", i.Addr, i.ArgAddr)
}

func (i PutValue) String() string {
	return fmt.Sprintf("put_value %v, %v", i.Addr, i.ArgAddr)
}

func (i PutStructure) String() string {
	return fmt.Sprintf("put_structure %v, %v", i.Functor, i.ArgAddr)
}

func (i PutConstant) String() string {
	return fmt.Sprintf("put_constant %v, %v", i.Constant, i.ArgAddr)
}

func (i GetVariable) String() string {
	return fmt.Sprintf("get_variable %v, %v", i.Addr, i.ArgAddr)
}

func (i GetValue) String() string {
	return fmt.Sprintf("get_value %v, %v", i.Addr, i.ArgAddr)
}

func (i GetStructure) String() string {
	return fmt.Sprintf("get_structure %v, %v", i.Functor, i.ArgAddr)
}

func (i GetConstant) String() string {
	return fmt.Sprintf("get_constant %v, %v", i.Constant, i.ArgAddr)
}

func (i SetVariable) String() string {
	return fmt.Sprintf("set_variable %v", i.Addr)
}

func (i SetValue) String() string {
	return fmt.Sprintf("set_value %v", i.Addr)
}

func (i SetConstant) String() string {
	return fmt.Sprintf("set_constant %v", i.Constant)
}

func (i UnifyVariable) String() string {
	return fmt.Sprintf("unify_variable %v", i.Addr)
}

func (i UnifyValue) String() string {
	return fmt.Sprintf("unify_value %v", i.Addr)
}

func (i UnifyConstant) String() string {
	return fmt.Sprintf("unify_constant %v", i.Constant)
}

func (i Call) String() string {
	return fmt.Sprintf("call %s", formatAtom(i.Name))
}

func (i Proceed) String() string {
	return "proceed"
}

func (i Allocate) String() string {
	return fmt.Sprintf("allocate %d", i.NumVars)
}

func (i Deallocate) String() string {
	return "deallocate"
}

func (i Fail) String() string {
	return "fail"
}

// ---- Stack frames

// Env represents an AND-stack frame with the environment associated to a call.
type Env struct {
	// Index of the previous environment, or -1.
	Prev int
	// Code address to return to when the frame is popped.
	Continuation int
	// Permanent vars stored in stack to survive between calls.
	PermanentVars []HeapAddr
}

// ChoicePoint represents an OR-stack frame with the state associated to an alternative code path.
type ChoicePoint struct {
	// Procedure whose clauses are being tried.
	Procedure string
	// Addresses of the clauses not tried yet, in order.
	Alternatives []int

	// Machine state to restore.
	Args         []HeapAddr
	HeapSize     int
	TrailSize    int
	Env          int
	NumEnvs      int
	Continuation int
}

// NextAlternative returns the code address tried on the next failure.
func (cpt ChoicePoint) NextAlternative() int {
	return cpt.Alternatives[0]
}

// UnificationMode is an enum for the current machine's read or write unification approach.
type UnificationMode int

const (
	Read UnificationMode = iota
	Write
)

func (mode UnificationMode) String() string {
	switch mode {
	case Read:
		return "read"
	case Write:
		return "write"
	}
	return fmt.Sprintf("UnificationMode(%d)", int(mode))
}

// State is the lifecycle stage of a machine run.
type State int

const (
	// Ready means a program was loaded and no instruction executed yet.
	Ready State = iota
	// Running means some instructions were executed and the run didn't halt.
	Running
	// HaltedSuccess means the top-level query proceeded.
	HaltedSuccess
	// HaltedFailure means the query has no solutions, or the program is malformed.
	HaltedFailure
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case HaltedSuccess:
		return "halted_success"
	case HaltedFailure:
		return "halted_failure"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Outcome is the result of executing a single step.
type Outcome int

const (
	// Continuing means there are more instructions to execute.
	Continuing Outcome = iota
	// Succeeded means the run halted with a solution.
	Succeeded
	// Failed means the run halted without a solution. The accompanying
	// error tells whether the query failed or the machine errored.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Continuing:
		return "continuing"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Machine represents an abstract machine state.
type Machine struct {
	program *Program

	// Current instruction address.
	pc int

	// Location to return after call.
	cp int

	// Temporary registers.
	reg []HeapAddr

	heap []Cell

	// Addresses of bindings that need to be undone when backtracking.
	trail []HeapAddr

	// Environment arena and the index of the current frame.
	envs []Env
	env  int

	choices []ChoicePoint

	// Read or write mode for term unification.
	mode UnificationMode

	// Current compound being built or read, and the next arg position.
	compound HeapAddr
	arity    int
	argIndex int

	state State
	err   error
	steps int

	iterLimit int
	logger    *zap.Logger
	trace     io.Writer

	// Debugging info: annotate steps that failed.
	hasBacktracked bool
}
