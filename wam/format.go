package wam

import (
	"fmt"
	"regexp"
	"strings"
)

var bareAtomRE = regexp.MustCompile(`^([a-z][a-zA-Z0-9_]*|[0-9]+|\[\]|\{\})$`)

// formatAtom returns the atom name, quoted if it's not a plain identifier or number.
func formatAtom(name string) string {
	if bareAtomRE.MatchString(name) {
		return name
	}
	var b strings.Builder
	b.WriteByte('\'')
	for _, ch := range name {
		switch ch {
		case '\'', '\\':
			b.WriteByte('\\')
		case '\n':
			b.WriteString(`\n`)
			continue
		}
		b.WriteRune(ch)
	}
	b.WriteByte('\'')
	return b.String()
}

// FormatTerm returns the term at addr with all bindings resolved. Unbound
// variables are named after their address, like _G3.
func (m *Machine) FormatTerm(addr HeapAddr) string {
	ctx := &formatCtx{
		m:       m,
		b:       new(strings.Builder),
		parents: make(map[HeapAddr]struct{}),
		loops:   make(map[HeapAddr]string),
	}
	ctx.formatTerm(addr)
	return ctx.b.String()
}

type formatCtx struct {
	m       *Machine
	b       *strings.Builder
	parents map[HeapAddr]struct{}
	loops   map[HeapAddr]string
	id      int
}

func (ctx *formatCtx) formatTerm(addr HeapAddr) {
	if addr == NoAddr {
		ctx.b.WriteString("<unset>")
		return
	}
	addr, cell := ctx.m.Deref(addr)
	switch c := cell.(type) {
	case nil:
		ctx.b.WriteString("<invalid>")
	case Ref:
		fmt.Fprintf(ctx.b, "_G%d", int(addr))
	case Constant:
		ctx.b.WriteString(c.String())
	case Struct:
		// Handle self-reference, possible without occurs check.
		if _, ok := ctx.parents[addr]; ok {
			label, ok := ctx.loops[addr]
			if !ok {
				ctx.id++
				label = fmt.Sprintf("_S%d", ctx.id)
				ctx.loops[addr] = label
			}
			ctx.b.WriteString(label)
			return
		}
		ctx.parents[addr] = struct{}{}
		defer delete(ctx.parents, addr)
		ctx.b.WriteString(formatAtom(c.Name))
		ctx.b.WriteString("(")
		for i, arg := range c.Args {
			ctx.formatTerm(arg)
			if i < len(c.Args)-1 {
				ctx.b.WriteString(", ")
			}
		}
		ctx.b.WriteString(")")
		// Annotate parents that loop.
		if label, ok := ctx.loops[addr]; ok {
			delete(ctx.loops, addr)
			fmt.Fprintf(ctx.b, "=%s", label)
		}
	}
}

func formatAddrs(m *Machine, prefix string, addrs []HeapAddr) string {
	var xs []string
	for i, addr := range addrs {
		if addr == NoAddr {
			continue
		}
		xs = append(xs, fmt.Sprintf("%s%d: %v = %s", prefix, i, addr, m.FormatTerm(addr)))
	}
	if len(xs) == 0 {
		return ""
	}
	return "\n\t" + strings.Join(xs, "\n\t")
}

func indent(s string) string {
	return "\t" + strings.ReplaceAll(s, "\n", "\n\t")
}

func (env Env) String() string {
	return fmt.Sprintf("prev: %d\ncontinuation: %d\nvars: %v", env.Prev, env.Continuation, env.PermanentVars)
}

func (cpt ChoicePoint) String() string {
	return fmt.Sprintf(`procedure: %s
alternatives: %v
env: %d
heap_size: %d
trail_size: %d
continuation: %d`,
		formatAtom(cpt.Procedure), cpt.Alternatives, cpt.Env, cpt.HeapSize, cpt.TrailSize, cpt.Continuation)
}

func (m *Machine) String() string {
	var instr string
	if m.program != nil && m.pc >= 0 && m.pc < len(m.program.Code) {
		instr = m.program.Code[m.pc].String()
	}
	// Heap
	cells := make([]string, len(m.heap))
	for i, cell := range m.heap {
		cells[i] = fmt.Sprintf("@%d: %v", i, cell)
	}
	heap := ""
	if len(cells) > 0 {
		heap = "\n\t" + strings.Join(cells, "\n\t")
	}
	// Environments
	var envs []string
	for env := m.env; env >= 0; env = m.envs[env].Prev {
		e := m.envs[env]
		envs = append(envs, indent(fmt.Sprintf("%% #%d\n%v%s", env, e, formatAddrs(m, "Y", e.PermanentVars))))
	}
	// Choice points
	var cpts []string
	for i := len(m.choices) - 1; i >= 0; i-- {
		cpts = append(cpts, indent(fmt.Sprintf("%% #%d\n%v", i, m.choices[i])))
	}
	return fmt.Sprintf(`state: %v
pc: %d	%s
continuation: %d
registers:%s
heap:%s
trail: %v
unification_mode: %v
compound: %v
arg_index: %d
environments:
%s
choice_points:
%s`,
		m.state, m.pc, instr, m.cp, formatAddrs(m, "X", m.reg), heap, m.trail, m.mode,
		m.compound, m.argIndex, strings.Join(envs, "\n"), strings.Join(cpts, "\n"))
}
