package wam

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/brunokim/wamstep/errors"
)

// Advance executes a single instruction.
//
// It returns Continuing while the run didn't halt. Once halted, it keeps
// returning the same outcome without executing anything else. A Failed
// outcome carries an error that either wraps ErrUnificationFailure, if the
// query has no (more) solutions, or a fatal error for a malformed program.
func (m *Machine) Advance() (Outcome, error) {
	switch m.state {
	case HaltedSuccess:
		return Succeeded, nil
	case HaltedFailure:
		return Failed, m.err
	}
	if m.program == nil {
		return Failed, errors.New("advance: no program loaded: %v", ErrInvalidProgram)
	}
	m.state = Running
	m.hasBacktracked = false
	if m.pc < 0 || m.pc >= len(m.program.Code) {
		return m.halt(errors.New("@%d (did you miss a proceed at the end of a clause?): %v", m.pc, ErrCodeOutOfRange))
	}
	instr := m.program.Code[m.pc]
	if ce := m.logger.Check(zap.DebugLevel, "step"); ce != nil {
		ce.Write(zap.Int("pc", m.pc), zap.Stringer("instr", instr), zap.Int("heap", len(m.heap)))
	}
	nextInstr, err := m.execute(instr)
	m.steps++
	if err != nil {
		return m.halt(err)
	}
	if nextInstr == NoCode {
		return m.halt(nil)
	}
	m.pc = nextInstr
	m.writeTrace()
	return Continuing, nil
}

// RunToCompletion advances the machine until it halts.
//
// If the machine was configured with an iteration limit and it is exceeded,
// it returns ErrIterLimit while the machine is still running, and may be
// resumed with another call.
func (m *Machine) RunToCompletion() (Outcome, error) {
	for i := 0; m.iterLimit <= 0 || i < m.iterLimit; i++ {
		outcome, err := m.Advance()
		if outcome != Continuing {
			return outcome, err
		}
	}
	return Continuing, errors.New("run: %v: %d", ErrIterLimit, m.iterLimit)
}

// Redo looks for another solution after a successful run, by backtracking
// into the latest choice point. Execution must be resumed with Advance or
// RunToCompletion.
func (m *Machine) Redo() (Outcome, error) {
	if m.state != HaltedSuccess {
		return m.outcome(), errors.New("redo: machine is %v, not %v", m.state, HaltedSuccess)
	}
	nextInstr, err := m.backtrack(errors.New("redo"))
	if err != nil {
		m.state = Running
		return m.halt(err)
	}
	m.pc = nextInstr
	m.state = Running
	m.writeTrace()
	return Continuing, nil
}

func (m *Machine) outcome() Outcome {
	switch m.state {
	case HaltedSuccess:
		return Succeeded
	case HaltedFailure:
		return Failed
	}
	return Continuing
}

// halt finishes the run with success if err is nil, or failure otherwise.
func (m *Machine) halt(err error) (Outcome, error) {
	m.err = err
	if err == nil {
		m.state = HaltedSuccess
	} else {
		m.state = HaltedFailure
	}
	m.logger.Info("halted",
		zap.Stringer("state", m.state),
		zap.Int("pc", m.pc),
		zap.Int("steps", m.steps),
		zap.Bool("fatal", IsFatal(err)),
		zap.Error(err))
	m.writeTrace()
	return m.outcome(), err
}

func (m *Machine) writeTrace() {
	if m.trace == nil {
		return
	}
	data, err := json.Marshal(m.Snapshot())
	if err != nil {
		m.logger.Warn("failed to marshal snapshot", zap.Error(err))
		return
	}
	data = append(data, '\n')
	if _, err := m.trace.Write(data); err != nil {
		m.logger.Warn("failed to write trace", zap.Error(err))
	}
}

// ---- Register access

func (m *Machine) get(addr Addr) (HeapAddr, error) {
	switch a := addr.(type) {
	case RegAddr:
		if a < 0 || int(a) >= len(m.reg) {
			return NoAddr, errors.New("%v: %v (%d registers)", a, ErrStackOverflow, len(m.reg))
		}
		return m.reg[a], nil
	case StackAddr:
		if m.env < 0 {
			return NoAddr, errors.New("%v: %v (no environment)", a, ErrStackUnderflow)
		}
		vars := m.envs[m.env].PermanentVars
		if a < 0 || int(a) >= len(vars) {
			return NoAddr, errors.New("%v: %v (%d permanent vars)", a, ErrStackOverflow, len(vars))
		}
		return vars[a], nil
	default:
		panic(fmt.Sprintf("wam.Machine.get: unhandled type %T (%v)", addr, addr))
	}
}

// getValue returns the contents of a register that must have been written before.
func (m *Machine) getValue(addr Addr) (HeapAddr, error) {
	x, err := m.get(addr)
	if err != nil {
		return NoAddr, err
	}
	if x == NoAddr {
		return NoAddr, errors.New("%v: %v", addr, ErrUnsetRegister)
	}
	return x, nil
}

func (m *Machine) set(addr Addr, x HeapAddr) error {
	switch a := addr.(type) {
	case RegAddr:
		if a < 0 || int(a) >= len(m.reg) {
			return errors.New("%v: %v (%d registers)", a, ErrStackOverflow, len(m.reg))
		}
		m.reg[a] = x
	case StackAddr:
		if m.env < 0 {
			return errors.New("%v: %v (no environment)", a, ErrStackUnderflow)
		}
		vars := m.envs[m.env].PermanentVars
		if a < 0 || int(a) >= len(vars) {
			return errors.New("%v: %v (%d permanent vars)", a, ErrStackOverflow, len(vars))
		}
		vars[a] = x
	default:
		panic(fmt.Sprintf("wam.Machine.set: unhandled type %T (%v)", addr, addr))
	}
	return nil
}

// ---- Compound access

func (m *Machine) startCompound(addr HeapAddr, arity int, mode UnificationMode) {
	m.compound = addr
	m.arity = arity
	m.argIndex = 0
	m.mode = mode
}

// getCompoundArg returns the address of the next arg of the struct being read.
func (m *Machine) getCompoundArg() (HeapAddr, error) {
	if m.compound == NoAddr {
		return NoAddr, errors.New("no struct being read: %v", ErrInvalidProgram)
	}
	s, ok := m.heap[m.compound].(Struct)
	if !ok {
		return NoAddr, errors.New("no struct being read: %v", ErrInvalidProgram)
	}
	if m.argIndex >= len(s.Args) {
		return NoAddr, errors.New("arg #%d of %v: %v", m.argIndex, s.Functor(), ErrStackOverflow)
	}
	x := s.Args[m.argIndex]
	m.argIndex++
	return x, nil
}

// pushCompoundArg appends an arg to the struct being built.
func (m *Machine) pushCompoundArg(x HeapAddr) error {
	if m.compound == NoAddr {
		return errors.New("no struct being built: %v", ErrInvalidProgram)
	}
	s, ok := m.heap[m.compound].(Struct)
	if !ok {
		return errors.New("no struct being built: %v", ErrInvalidProgram)
	}
	if len(s.Args) >= m.arity {
		return errors.New("arg #%d of %s/%d: %v", len(s.Args), s.Name, m.arity, ErrStackOverflow)
	}
	s.Args = append(s.Args, x)
	m.heap[m.compound] = s
	m.argIndex++
	return nil
}

// ---- Frames

func (m *Machine) allocate(numVars int) {
	vars := make([]HeapAddr, numVars)
	clearRegisters(vars)
	m.envs = append(m.envs, Env{
		Prev:          m.env,
		Continuation:  m.cp,
		PermanentVars: vars,
	})
	m.env = len(m.envs) - 1
	m.cp = NoCode
}

// popEnv makes the previous environment current. The popped frame is kept in
// the arena while a choice point may restore it.
func (m *Machine) popEnv() {
	top := m.env
	m.env = m.envs[top].Prev
	if top != len(m.envs)-1 {
		return
	}
	if n := len(m.choices); n > 0 && m.choices[n-1].NumEnvs > top {
		return
	}
	m.envs = m.envs[:top]
}

func (m *Machine) pushChoicePoint(procedure string, alternatives []int) {
	m.choices = append(m.choices, ChoicePoint{
		Procedure:    procedure,
		Alternatives: alternatives,
		Args:         append([]HeapAddr(nil), m.reg...),
		HeapSize:     len(m.heap),
		TrailSize:    len(m.trail),
		Env:          m.env,
		NumEnvs:      len(m.envs),
		Continuation: m.cp,
	})
}

// ---- Execution

func (m *Machine) execute(instr Instruction) (int, error) {
	switch instr := instr.(type) {
	case PutVariable:
		// Place a fresh unbound var in both registers, e.g., for a new call argument.
		x := m.newVar()
		if err := m.set(instr.Addr, x); err != nil {
			return NoCode, err
		}
		if err := m.set(instr.ArgAddr, x); err != nil {
			return NoCode, err
		}
	case PutValue:
		// Move already-seen value to an argument register.
		x, err := m.getValue(instr.Addr)
		if err != nil {
			return NoCode, err
		}
		x, _ = m.Deref(x)
		if err := m.set(instr.ArgAddr, x); err != nil {
			return NoCode, err
		}
	case PutStructure:
		// Start building a struct in the heap, to be filled by set_* instructions.
		x := m.newStruct(instr.Functor)
		if err := m.set(instr.ArgAddr, x); err != nil {
			return NoCode, err
		}
		m.startCompound(x, instr.Functor.Arity, Write)
	case PutConstant:
		x := m.newConstant(instr.Constant)
		if err := m.set(instr.ArgAddr, x); err != nil {
			return NoCode, err
		}
	case GetVariable:
		// Move newly-seen clause param from argument register, without unification.
		x, err := m.getValue(instr.ArgAddr)
		if err != nil {
			return NoCode, err
		}
		if err := m.set(instr.Addr, x); err != nil {
			return NoCode, err
		}
	case GetValue:
		// Unify already-seen clause param with argument register.
		x1, err := m.getValue(instr.Addr)
		if err != nil {
			return NoCode, err
		}
		x2, err := m.getValue(instr.ArgAddr)
		if err != nil {
			return NoCode, err
		}
		if !m.unify(x1, x2) {
			return m.backtrack(&unifyError{m.FormatTerm(x1), m.FormatTerm(x2)})
		}
	case GetStructure:
		// Match a struct from register.
		// If already a struct, its args will be read by unify_* instructions.
		// If an unbound ref, a new struct is built in the heap and bound to it.
		x, err := m.getValue(instr.ArgAddr)
		if err != nil {
			return NoCode, err
		}
		addr, cell := m.Deref(x)
		switch c := cell.(type) {
		case Ref:
			s := m.newStruct(instr.Functor)
			m.bind(addr, s)
			m.startCompound(s, instr.Functor.Arity, Write)
		case Struct:
			if f := c.Functor(); f != instr.Functor {
				return m.backtrack(&unifyError{f, instr.Functor})
			}
			m.startCompound(addr, instr.Functor.Arity, Read)
		default:
			return m.backtrack(&unifyError{cell, instr.Functor})
		}
	case GetConstant:
		x, err := m.getValue(instr.ArgAddr)
		if err != nil {
			return NoCode, err
		}
		if !m.unifyConstant(x, instr.Constant) {
			return m.backtrack(&unifyError{m.FormatTerm(x), instr.Constant})
		}
	case SetVariable:
		// Place new unbound ref as the next struct arg.
		x := m.newVar()
		if err := m.pushCompoundArg(x); err != nil {
			return NoCode, err
		}
		if err := m.set(instr.Addr, x); err != nil {
			return NoCode, err
		}
	case SetValue:
		// Place already-seen value as the next struct arg.
		x, err := m.getValue(instr.Addr)
		if err != nil {
			return NoCode, err
		}
		x, _ = m.Deref(x)
		if err := m.pushCompoundArg(x); err != nil {
			return NoCode, err
		}
	case SetConstant:
		if err := m.pushCompoundArg(m.newConstant(instr.Constant)); err != nil {
			return NoCode, err
		}
	case UnifyVariable:
		// Unify newly-seen struct arg.
		// In read mode, place current struct arg into register.
		// In write mode, place unbound ref as the struct arg.
		switch m.mode {
		case Read:
			x, err := m.getCompoundArg()
			if err != nil {
				return NoCode, err
			}
			if err := m.set(instr.Addr, x); err != nil {
				return NoCode, err
			}
		case Write:
			x := m.newVar()
			if err := m.pushCompoundArg(x); err != nil {
				return NoCode, err
			}
			if err := m.set(instr.Addr, x); err != nil {
				return NoCode, err
			}
		}
	case UnifyValue:
		// Unify already-seen struct arg.
		// In read mode, unify the register with current struct arg.
		// In write mode, place register value as the struct arg.
		x, err := m.getValue(instr.Addr)
		if err != nil {
			return NoCode, err
		}
		switch m.mode {
		case Read:
			arg, err := m.getCompoundArg()
			if err != nil {
				return NoCode, err
			}
			if !m.unify(x, arg) {
				return m.backtrack(&unifyError{m.FormatTerm(x), m.FormatTerm(arg)})
			}
		case Write:
			x, _ = m.Deref(x)
			if err := m.pushCompoundArg(x); err != nil {
				return NoCode, err
			}
		}
	case UnifyConstant:
		switch m.mode {
		case Read:
			arg, err := m.getCompoundArg()
			if err != nil {
				return NoCode, err
			}
			if !m.unifyConstant(arg, instr.Constant) {
				return m.backtrack(&unifyError{m.FormatTerm(arg), instr.Constant})
			}
		case Write:
			if err := m.pushCompoundArg(m.newConstant(instr.Constant)); err != nil {
				return NoCode, err
			}
		}
	case Call:
		// Save instruction pointer, and jump to the procedure's first clause.
		// Remaining clauses are saved in a choice point.
		clauses, ok := m.program.Symbols[instr.Name]
		if !ok || len(clauses) == 0 {
			return NoCode, errors.New("call %s: %v", formatAtom(instr.Name), ErrUnknownProcedure)
		}
		m.cp = m.pc + 1
		if len(clauses) > 1 {
			m.pushChoicePoint(instr.Name, clauses[1:])
		}
		return clauses[0], nil
	case Proceed:
		// Jump to the continuation: the caller's next instruction, or the one
		// saved in the current environment.
		// Without either, the top-level query is finished.
		if m.cp != NoCode {
			nextInstr := m.cp
			m.cp = NoCode
			return nextInstr, nil
		}
		if m.env >= 0 {
			nextInstr := m.envs[m.env].Continuation
			m.popEnv()
			return nextInstr, nil
		}
		return NoCode, nil
	case Allocate:
		// Push a new environment frame.
		m.allocate(instr.NumVars)
	case Deallocate:
		// Pop the current environment, restoring its continuation.
		if m.env < 0 {
			return NoCode, errors.New("deallocate: %v (no environment)", ErrStackUnderflow)
		}
		m.cp = m.envs[m.env].Continuation
		m.popEnv()
	case Fail:
		return m.backtrack(errors.New("fail instruction"))
	default:
		panic(fmt.Sprintf("wam.Machine.execute: unhandled instruction %T (%v)", instr, instr))
	}
	return m.pc + 1, nil
}

// unifyConstant binds x to c if it's unbound, or compares it otherwise.
func (m *Machine) unifyConstant(x HeapAddr, c Constant) bool {
	addr, cell := m.Deref(x)
	switch cell := cell.(type) {
	case Ref:
		m.bind(addr, m.newConstant(c))
		return true
	case Constant:
		return cell.Name == c.Name
	default:
		return false
	}
}

// backtrack restores the machine to the latest choice point and returns the
// next alternative to execute. Without choice points, the query fails.
func (m *Machine) backtrack(reason error) (int, error) {
	m.hasBacktracked = true
	n := len(m.choices)
	if n == 0 {
		return NoCode, errors.New("%v: %v", ErrUnificationFailure, reason)
	}
	cpt := &m.choices[n-1]
	m.unwindTrail(cpt.TrailSize)
	m.heap = m.heap[:cpt.HeapSize]
	copy(m.reg, cpt.Args)
	m.env = cpt.Env
	m.envs = m.envs[:cpt.NumEnvs]
	m.cp = cpt.Continuation
	m.startCompound(NoAddr, 0, Read)
	nextInstr := cpt.NextAlternative()
	if len(cpt.Alternatives) == 1 {
		// Last alternative: "trust" it and discard the choice point.
		m.choices = m.choices[:n-1]
	} else {
		// "Retry": the choice point remains to try the other alternatives.
		cpt.Alternatives = cpt.Alternatives[1:]
	}
	if ce := m.logger.Check(zap.DebugLevel, "backtrack"); ce != nil {
		ce.Write(
			zap.String("procedure", cpt.Procedure),
			zap.Int("alternative", nextInstr),
			zap.Int("heap", len(m.heap)),
			zap.Int("trail", len(m.trail)),
			zap.NamedError("reason", reason))
	}
	return nextInstr, nil
}
