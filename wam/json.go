package wam

import (
	"encoding/json"
)

func (a RegAddr) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a StackAddr) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (f Functor) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (mode UnificationMode) MarshalText() ([]byte, error) {
	return []byte(mode.String()), nil
}

// Snapshot is a serializable view of the machine state, meant for drivers
// that render it after each step.
type Snapshot struct {
	State        State
	PC           int
	Instr        string `json:",omitempty"`
	Continuation int
	Steps        int
	Registers    []RegisterView
	Heap         []string
	Trail        []HeapAddr
	EnvPos       int
	Envs         []EnvView
	ChoicePoints []ChoiceView
	Mode         UnificationMode
	Compound     HeapAddr
	ArgIndex     int
	Backtracked  bool
	Err          string `json:",omitempty"`
}

// RegisterView is a written register and the term it holds.
type RegisterView struct {
	Reg  string
	Addr HeapAddr
	Term string
}

// EnvView is an environment frame with its permanent vars resolved.
type EnvView struct {
	Pos          int
	PrevPos      int
	Continuation int
	Vars         []RegisterView
}

// ChoiceView is a choice point, as seen in a snapshot.
type ChoiceView struct {
	Procedure       string
	NextAlternative int
	Alternatives    []int
	HeapSize        int
	TrailSize       int
	EnvPos          int
	Continuation    int
}

func (m *Machine) registerViews(prefix func(int) Addr, addrs []HeapAddr) []RegisterView {
	var views []RegisterView
	for i, addr := range addrs {
		if addr == NoAddr {
			continue
		}
		views = append(views, RegisterView{
			Reg:  prefix(i).String(),
			Addr: addr,
			Term: m.FormatTerm(addr),
		})
	}
	return views
}

// Snapshot returns a copy of the current machine state.
func (m *Machine) Snapshot() Snapshot {
	s := Snapshot{
		State:        m.state,
		PC:           m.pc,
		Continuation: m.cp,
		Steps:        m.steps,
		Registers:    m.registerViews(func(i int) Addr { return RegAddr(i) }, m.reg),
		Heap:         make([]string, len(m.heap)),
		Trail:        append([]HeapAddr{}, m.trail...),
		EnvPos:       m.env,
		Mode:         m.mode,
		Compound:     m.compound,
		ArgIndex:     m.argIndex,
		Backtracked:  m.hasBacktracked,
	}
	if m.program != nil && m.pc >= 0 && m.pc < len(m.program.Code) {
		s.Instr = m.program.Code[m.pc].String()
	}
	for i, cell := range m.heap {
		s.Heap[i] = cell.String()
	}
	for pos := m.env; pos >= 0; pos = m.envs[pos].Prev {
		env := m.envs[pos]
		s.Envs = append(s.Envs, EnvView{
			Pos:          pos,
			PrevPos:      env.Prev,
			Continuation: env.Continuation,
			Vars:         m.registerViews(func(i int) Addr { return StackAddr(i) }, env.PermanentVars),
		})
	}
	for i := len(m.choices) - 1; i >= 0; i-- {
		cpt := m.choices[i]
		s.ChoicePoints = append(s.ChoicePoints, ChoiceView{
			Procedure:       cpt.Procedure,
			NextAlternative: cpt.NextAlternative(),
			Alternatives:    append([]int{}, cpt.Alternatives...),
			HeapSize:        cpt.HeapSize,
			TrailSize:       cpt.TrailSize,
			EnvPos:          cpt.Env,
			Continuation:    cpt.Continuation,
		})
	}
	if m.err != nil {
		s.Err = m.err.Error()
	}
	return s
}

func (m *Machine) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Snapshot())
}
