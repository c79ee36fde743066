package wam

import (
	"fmt"
)

// Deref walks the reference chain from addr until it finds a non-ref cell, or
// an unbound ref. It returns NoAddr and a nil cell if addr is not in the heap.
func (m *Machine) Deref(addr HeapAddr) (HeapAddr, Cell) {
	for {
		if addr < 0 || int(addr) >= len(m.heap) {
			return NoAddr, nil
		}
		cell := m.heap[addr]
		ref, ok := cell.(Ref)
		if !ok || ref.Addr == addr {
			return addr, cell
		}
		addr = ref.Addr
	}
}

func isUnbound(addr HeapAddr, cell Cell) bool {
	ref, ok := cell.(Ref)
	return ok && ref.Addr == addr
}

func (m *Machine) newVar() HeapAddr {
	addr := HeapAddr(len(m.heap))
	m.heap = append(m.heap, Ref{addr})
	return addr
}

func (m *Machine) newConstant(c Constant) HeapAddr {
	addr := HeapAddr(len(m.heap))
	m.heap = append(m.heap, c)
	return addr
}

// newStruct places an empty struct in the heap, to have its args pushed later.
func (m *Machine) newStruct(f Functor) HeapAddr {
	addr := HeapAddr(len(m.heap))
	m.heap = append(m.heap, Struct{f.Name, make([]HeapAddr, 0, f.Arity)})
	return addr
}

// bind points the unbound ref at addr to other.
func (m *Machine) bind(addr, other HeapAddr) {
	if !isUnbound(addr, m.heap[addr]) {
		panic(fmt.Sprintf("bind(%v, %v): %v is not an unbound ref", addr, other, m.heap[addr]))
	}
	m.heap[addr] = Ref{other}
	m.pushTrail(addr)
}

// If a var was created before the current choice point, then it's a conditional
// var that must be kept in the trail.
func (m *Machine) isConditional(addr HeapAddr) bool {
	n := len(m.choices)
	return n > 0 && int(addr) < m.choices[n-1].HeapSize
}

// Append bound address that need to be undone when backtracking.
// Those are the addresses that already existed before the current choice
// point, since the ones created after will be discarded when resetting.
func (m *Machine) pushTrail(addr HeapAddr) {
	if !m.isConditional(addr) {
		return
	}
	m.trail = append(m.trail, addr)
}

// Restore all conditional bindings since size back to unbound, and reset trail.
func (m *Machine) unwindTrail(size int) {
	for _, addr := range m.trail[size:] {
		if int(addr) < len(m.heap) {
			m.heap[addr] = Ref{addr}
		}
	}
	m.trail = m.trail[:size]
}

type addrPair [2]HeapAddr

// unify executes a depth-first traversal of cells, binding unbound refs to the other
// cell, or comparing them for equality. Args are visited from left to right, and the
// traversal stops at the first mismatch, leaving the bindings already made for the
// trail to undo.
func (m *Machine) unify(a1, a2 HeapAddr) bool {
	stack := []HeapAddr{a1, a2}
	// Struct pairs already unified; without occurs check, terms may be cyclic.
	var seen map[addrPair]struct{}
	for len(stack) > 0 {
		// Pop address pair from stack.
		n := len(stack)
		a1, a2 := stack[n-2], stack[n-1]
		stack = stack[:n-2]
		// Deref cells and compare them.
		d1, c1 := m.Deref(a1)
		d2, c2 := m.Deref(a2)
		if d1 == d2 {
			// 1. They are the same, nothing to do.
			continue
		}
		isVar1, isVar2 := isUnbound(d1, c1), isUnbound(d2, c2)
		switch {
		case isVar1 && isVar2:
			// 2. Both are unbound. Bind the newest to the oldest.
			if d1 < d2 {
				d1, d2 = d2, d1
			}
			m.bind(d1, d2)
			continue
		case isVar1:
			m.bind(d1, d2)
			continue
		case isVar2:
			m.bind(d2, d1)
			continue
		}
		switch t1 := c1.(type) {
		case Constant:
			// 3. If they are both constants, check that they are equal.
			t2, ok := c2.(Constant)
			if !(ok && t1.Name == t2.Name) {
				return false
			}
		case Struct:
			// 4. Check if they are both struct cells.
			t2, ok := c2.(Struct)
			if !ok {
				return false
			}
			// 5. Compare the functors, before looking into any arg.
			if t1.Functor() != t2.Functor() {
				return false
			}
			pair := addrPair{d1, d2}
			if _, ok := seen[pair]; ok {
				continue
			}
			if seen == nil {
				seen = make(map[addrPair]struct{})
			}
			seen[pair] = struct{}{}
			// 6. Push addresses of args pair-wise onto stack, so that the first is popped first.
			for i := len(t1.Args) - 1; i >= 0; i-- {
				stack = append(stack, t1.Args[i], t2.Args[i])
			}
		default:
			panic(fmt.Sprintf("wam.Machine.unify: unhandled type %T (%v)", c1, c1))
		}
	}
	return true
}
