package wam

import (
	"io"
	"sort"

	"go.uber.org/zap"

	"github.com/brunokim/wamstep/errors"
)

// SymbolTable maps a procedure name to the code addresses of its clauses, in
// the order they are tried.
type SymbolTable map[string][]int

// Add appends a clause address to a procedure.
func (t SymbolTable) Add(name string, addr int) {
	t[name] = append(t[name], addr)
}

// Symbols builds a table where every procedure has a single clause.
func Symbols(entries map[string]int) SymbolTable {
	t := make(SymbolTable)
	for name, addr := range entries {
		t.Add(name, addr)
	}
	return t
}

// Program is a loaded instruction sequence and its symbol table. It must not be
// modified after creation, so that many machines may execute it.
type Program struct {
	Code    []Instruction
	Symbols SymbolTable
}

// MaxArity bounds struct arities and environment sizes.
const MaxArity = 1 << 16

// NewProgram validates the code and the symbol table and returns a program.
func NewProgram(code []Instruction, symbols SymbolTable) (*Program, error) {
	for i, instr := range code {
		switch instr := instr.(type) {
		case nil:
			return nil, errors.New("instruction #%d is nil: %v", i, ErrInvalidProgram)
		case Allocate:
			if instr.NumVars < 0 || instr.NumVars > MaxArity {
				return nil, errors.New("instruction #%d (%v): %v", i, instr, ErrInvalidProgram)
			}
		case PutStructure:
			if instr.Functor.Arity < 0 || instr.Functor.Arity > MaxArity {
				return nil, errors.New("instruction #%d (%v): %v", i, instr, ErrInvalidProgram)
			}
		case GetStructure:
			if instr.Functor.Arity < 0 || instr.Functor.Arity > MaxArity {
				return nil, errors.New("instruction #%d (%v): %v", i, instr, ErrInvalidProgram)
			}
		}
	}
	table := make(SymbolTable, len(symbols))
	for name, addrs := range symbols {
		if len(addrs) == 0 {
			return nil, errors.New("procedure %q has no clauses: %v", name, ErrInvalidProgram)
		}
		for _, addr := range addrs {
			if addr < 0 || addr >= len(code) {
				return nil, errors.New("procedure %q at address %d: %v", name, addr, ErrInvalidProgram)
			}
		}
		table[name] = append([]int(nil), addrs...)
	}
	p := &Program{
		Code:    append([]Instruction(nil), code...),
		Symbols: table,
	}
	return p, nil
}

// Procedures returns the names in the symbol table, sorted.
func (p *Program) Procedures() []string {
	names := make([]string, 0, len(p.Symbols))
	for name := range p.Symbols {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Labels returns the procedures that have a clause starting at addr, sorted.
func (p *Program) Labels(addr int) []string {
	var labels []string
	for _, name := range p.Procedures() {
		for _, clauseAddr := range p.Symbols[name] {
			if clauseAddr == addr {
				labels = append(labels, name)
				break
			}
		}
	}
	return labels
}

// ---- Machine construction

const defaultNumRegisters = 32

// Option configures a Machine.
type Option func(m *Machine)

// WithRegisters sets the number of temporary registers. The default is 32.
func WithRegisters(n int) Option {
	if n < 0 {
		n = 0
	}
	return func(m *Machine) {
		m.reg = make([]HeapAddr, n)
		clearRegisters(m.reg)
	}
}

// WithLogger sets the logger used to report steps, backtracks and halts.
func WithLogger(l *zap.Logger) Option {
	return func(m *Machine) { m.logger = l }
}

// WithIterLimit bounds the number of steps executed by RunToCompletion. Zero
// means no limit.
func WithIterLimit(n int) Option {
	return func(m *Machine) { m.iterLimit = n }
}

// WithTrace writes a JSON snapshot of the machine after every step, one per line.
func WithTrace(w io.Writer) Option {
	return func(m *Machine) { m.trace = w }
}

// NewMachine returns a machine without a program.
func NewMachine(opts ...Option) *Machine {
	m := &Machine{
		reg:      make([]HeapAddr, defaultNumRegisters),
		pc:       0,
		cp:       NoCode,
		env:      -1,
		compound: NoAddr,
		logger:   zap.NewNop(),
	}
	clearRegisters(m.reg)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func clearRegisters(reg []HeapAddr) {
	for i := range reg {
		reg[i] = NoAddr
	}
}

// LoadMode selects what happens to the machine memory when loading a program.
type LoadMode int

const (
	// Fresh discards the heap and the registers.
	Fresh LoadMode = iota
	// Reuse keeps the heap and the registers, so that terms built by a
	// previous program remain reachable.
	Reuse
)

// Load replaces the current program, and resets the code pointer to the first
// instruction.
//
// Environments, choice points and the trail are always cleared, since they
// point to code of the previous program.
func (m *Machine) Load(p *Program, mode LoadMode) error {
	if p == nil {
		return errors.New("load: nil program: %v", ErrInvalidProgram)
	}
	m.program = p
	m.pc = 0
	m.cp = NoCode
	m.envs = nil
	m.env = -1
	m.choices = nil
	m.trail = nil
	m.mode = Read
	m.compound = NoAddr
	m.arity = 0
	m.argIndex = 0
	m.state = Ready
	m.err = nil
	m.steps = 0
	m.hasBacktracked = false
	if mode == Fresh {
		m.heap = nil
		clearRegisters(m.reg)
	}
	m.logger.Debug("program loaded",
		zap.Int("instructions", len(p.Code)),
		zap.Int("procedures", len(p.Symbols)),
		zap.Bool("reuse", mode == Reuse))
	return nil
}

// ---- Introspection

// Program returns the loaded program, or nil.
func (m *Machine) Program() *Program { return m.program }

// PC returns the address of the next instruction to execute.
func (m *Machine) PC() int { return m.pc }

// Continuation returns the continuation register, or NoCode.
func (m *Machine) Continuation() int { return m.cp }

// State returns the lifecycle stage of the current run.
func (m *Machine) State() State { return m.state }

// Err returns the reason of a failed run.
func (m *Machine) Err() error { return m.err }

// IterLimit returns the iteration limit for a run, or zero if unbounded.
func (m *Machine) IterLimit() int { return m.iterLimit }

// Steps returns the number of instructions executed since loading.
func (m *Machine) Steps() int { return m.steps }

// Registers returns a copy of the temporary registers.
func (m *Machine) Registers() []HeapAddr {
	return append([]HeapAddr(nil), m.reg...)
}

// Register returns the heap address held by a temporary or permanent register.
func (m *Machine) Register(addr Addr) (HeapAddr, error) {
	return m.get(addr)
}

// Heap returns a copy of the heap cells.
func (m *Machine) Heap() []Cell {
	return append([]Cell(nil), m.heap...)
}

// HeapSize returns the number of cells in the heap.
func (m *Machine) HeapSize() int { return len(m.heap) }

// Trail returns a copy of the trailed addresses.
func (m *Machine) Trail() []HeapAddr {
	return append([]HeapAddr(nil), m.trail...)
}

// TrailLen returns the number of trailed addresses.
func (m *Machine) TrailLen() int { return len(m.trail) }

// ChoiceDepth returns the number of choice points.
func (m *Machine) ChoiceDepth() int { return len(m.choices) }

// ChoicePoints returns a copy of the choice point stack, oldest first.
func (m *Machine) ChoicePoints() []ChoicePoint {
	return append([]ChoicePoint(nil), m.choices...)
}

// EnvPos returns the index of the current environment, or -1 if there is none.
func (m *Machine) EnvPos() int { return m.env }

// EnvDepth returns the number of environments reachable from the current one.
func (m *Machine) EnvDepth() int {
	n := 0
	for env := m.env; env >= 0; env = m.envs[env].Prev {
		n++
	}
	return n
}
