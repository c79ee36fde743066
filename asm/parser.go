package asm

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/brunokim/wamstep/errors"
	"github.com/brunokim/wamstep/wam"
)

var (
	addrRE  = regexp.MustCompile(`^([XAY])(\d+)$`)
	arityRE = regexp.MustCompile(`^/(\d+)$`)
	intRE   = regexp.MustCompile(`^\d+$`)
)

type line struct {
	label    string
	hasLabel bool
	instr    wam.Instruction
}

func parseLine(text string) (line, error) {
	var l line
	body, err := stripComment(text)
	if err != nil {
		return l, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return l, nil
	}
	if name, rest, err := readAtom(body); err == nil {
		rest = strings.TrimLeft(rest, " \t")
		if strings.HasPrefix(rest, ":") {
			l.label, l.hasLabel = name, true
			body = strings.TrimSpace(rest[1:])
		}
	}
	if body == "" {
		return l, nil
	}
	mnemonic, args := body, ""
	if i := strings.IndexAny(body, " \t"); i >= 0 {
		mnemonic, args = body[:i], body[i+1:]
	}
	ops, err := splitOperands(args)
	if err != nil {
		return l, err
	}
	dec, ok := decoders[mnemonic]
	if !ok {
		return l, errors.New("unknown instruction %q: %v", mnemonic, ErrSyntax)
	}
	if len(ops) != dec.numOps {
		return l, errors.New("%s expects %d operands, got %d: %v", mnemonic, dec.numOps, len(ops), ErrSyntax)
	}
	l.instr, err = dec.decode(ops)
	if err != nil {
		return l, errors.Wrap(err, mnemonic)
	}
	return l, nil
}

// stripComment removes a % comment that is not within a quoted atom.
func stripComment(text string) (string, error) {
	inQuote, escaped := false, false
	for i, ch := range text {
		switch {
		case escaped:
			escaped = false
		case inQuote && ch == '\\':
			escaped = true
		case ch == '\'':
			inQuote = !inQuote
		case !inQuote && ch == '%':
			return text[:i], nil
		}
	}
	if inQuote {
		return "", errors.New("unterminated quoted atom: %v", ErrSyntax)
	}
	return text, nil
}

// splitOperands splits args on commas that are not within a quoted atom.
func splitOperands(args string) ([]string, error) {
	args = strings.TrimSpace(args)
	if args == "" {
		return nil, nil
	}
	var ops []string
	inQuote, escaped := false, false
	start := 0
	for i, ch := range args {
		switch {
		case escaped:
			escaped = false
		case inQuote && ch == '\\':
			escaped = true
		case ch == '\'':
			inQuote = !inQuote
		case !inQuote && ch == ',':
			ops = append(ops, strings.TrimSpace(args[start:i]))
			start = i + 1
		}
	}
	ops = append(ops, strings.TrimSpace(args[start:]))
	for _, op := range ops {
		if op == "" {
			return nil, errors.New("empty operand in %q: %v", args, ErrSyntax)
		}
	}
	return ops, nil
}

// readAtom reads a bare or quoted atom from the start of s, and returns the
// remaining text.
func readAtom(s string) (name, rest string, err error) {
	if s == "" {
		return "", "", errors.New("missing atom: %v", ErrSyntax)
	}
	if s[0] != '\'' {
		i := strings.IndexAny(s, " \t,:/'%")
		if i < 0 {
			i = len(s)
		}
		if i == 0 {
			return "", s, errors.New("missing atom at %q: %v", s, ErrSyntax)
		}
		return s[:i], s[i:], nil
	}
	var b strings.Builder
	escaped := false
	for i, ch := range s[1:] {
		switch {
		case escaped:
			if ch == 'n' {
				ch = '\n'
			}
			b.WriteRune(ch)
			escaped = false
		case ch == '\\':
			escaped = true
		case ch == '\'':
			return b.String(), s[i+2:], nil
		default:
			b.WriteRune(ch)
		}
	}
	return "", "", errors.New("unterminated quoted atom %s: %v", s, ErrSyntax)
}

func parseAtom(s string) (string, error) {
	name, rest, err := readAtom(s)
	if err != nil {
		return "", err
	}
	if rest != "" {
		return "", errors.New("trailing text %q after atom: %v", rest, ErrSyntax)
	}
	return name, nil
}

func parseConstant(s string) (wam.Constant, error) {
	name, err := parseAtom(s)
	return wam.Constant{Name: name}, err
}

func parseFunctor(s string) (wam.Functor, error) {
	name, rest, err := readAtom(s)
	if err != nil {
		return wam.Functor{}, err
	}
	m := arityRE.FindStringSubmatch(rest)
	if m == nil {
		return wam.Functor{}, errors.New("%q is not a functor like f/2: %v", s, ErrSyntax)
	}
	arity, err := strconv.Atoi(m[1])
	if err != nil {
		return wam.Functor{}, errors.New("invalid arity in %q: %v", s, ErrSyntax)
	}
	return wam.Functor{Name: name, Arity: arity}, nil
}

// ParseAddr parses a register operand, like X0 or Y1. A0 is an alias for X0.
func ParseAddr(s string) (wam.Addr, error) {
	m := addrRE.FindStringSubmatch(s)
	if m == nil {
		return nil, errors.New("%q is not a register like X0 or Y0: %v", s, ErrSyntax)
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return nil, errors.New("invalid register index in %q: %v", s, ErrSyntax)
	}
	if m[1] == "Y" {
		return wam.StackAddr(n), nil
	}
	return wam.RegAddr(n), nil
}

func parseInt(s string) (int, error) {
	if !intRE.MatchString(s) {
		return 0, errors.New("%q is not a number: %v", s, ErrSyntax)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New("%q is out of range: %v", s, ErrSyntax)
	}
	return n, nil
}

// ---- Decoders

type decoder struct {
	numOps int
	decode func(ops []string) (wam.Instruction, error)
}

func regPair(build func(addr, argAddr wam.Addr) wam.Instruction) decoder {
	return decoder{2, func(ops []string) (wam.Instruction, error) {
		addr, err := ParseAddr(ops[0])
		if err != nil {
			return nil, err
		}
		argAddr, err := ParseAddr(ops[1])
		if err != nil {
			return nil, err
		}
		return build(addr, argAddr), nil
	}}
}

func functorReg(build func(f wam.Functor, argAddr wam.Addr) wam.Instruction) decoder {
	return decoder{2, func(ops []string) (wam.Instruction, error) {
		f, err := parseFunctor(ops[0])
		if err != nil {
			return nil, err
		}
		argAddr, err := ParseAddr(ops[1])
		if err != nil {
			return nil, err
		}
		return build(f, argAddr), nil
	}}
}

func constantReg(build func(c wam.Constant, argAddr wam.Addr) wam.Instruction) decoder {
	return decoder{2, func(ops []string) (wam.Instruction, error) {
		c, err := parseConstant(ops[0])
		if err != nil {
			return nil, err
		}
		argAddr, err := ParseAddr(ops[1])
		if err != nil {
			return nil, err
		}
		return build(c, argAddr), nil
	}}
}

func reg(build func(addr wam.Addr) wam.Instruction) decoder {
	return decoder{1, func(ops []string) (wam.Instruction, error) {
		addr, err := ParseAddr(ops[0])
		if err != nil {
			return nil, err
		}
		return build(addr), nil
	}}
}

func constant(build func(c wam.Constant) wam.Instruction) decoder {
	return decoder{1, func(ops []string) (wam.Instruction, error) {
		c, err := parseConstant(ops[0])
		if err != nil {
			return nil, err
		}
		return build(c), nil
	}}
}

func nullary(instr wam.Instruction) decoder {
	return decoder{0, func([]string) (wam.Instruction, error) { return instr, nil }}
}

var decoders = map[string]decoder{
	"put_variable": regPair(func(addr, argAddr wam.Addr) wam.Instruction {
		return wam.PutVariable{Addr: addr, ArgAddr: argAddr}
	}),
	"put_value": regPair(func(addr, argAddr wam.Addr) wam.Instruction {
		return wam.PutValue{Addr: addr, ArgAddr: argAddr}
	}),
	"get_variable": regPair(func(addr, argAddr wam.Addr) wam.Instruction {
		return wam.GetVariable{Addr: addr, ArgAddr: argAddr}
	}),
	"get_value": regPair(func(addr, argAddr wam.Addr) wam.Instruction {
		return wam.GetValue{Addr: addr, ArgAddr: argAddr}
	}),
	"put_structure": functorReg(func(f wam.Functor, argAddr wam.Addr) wam.Instruction {
		return wam.PutStructure{Functor: f, ArgAddr: argAddr}
	}),
	"get_structure": functorReg(func(f wam.Functor, argAddr wam.Addr) wam.Instruction {
		return wam.GetStructure{Functor: f, ArgAddr: argAddr}
	}),
	"put_constant": constantReg(func(c wam.Constant, argAddr wam.Addr) wam.Instruction {
		return wam.PutConstant{Constant: c, ArgAddr: argAddr}
	}),
	"get_constant": constantReg(func(c wam.Constant, argAddr wam.Addr) wam.Instruction {
		return wam.GetConstant{Constant: c, ArgAddr: argAddr}
	}),
	"set_variable":   reg(func(addr wam.Addr) wam.Instruction { return wam.SetVariable{Addr: addr} }),
	"set_value":      reg(func(addr wam.Addr) wam.Instruction { return wam.SetValue{Addr: addr} }),
	"unify_variable": reg(func(addr wam.Addr) wam.Instruction { return wam.UnifyVariable{Addr: addr} }),
	"unify_value":    reg(func(addr wam.Addr) wam.Instruction { return wam.UnifyValue{Addr: addr} }),
	"set_constant":   constant(func(c wam.Constant) wam.Instruction { return wam.SetConstant{Constant: c} }),
	"unify_constant": constant(func(c wam.Constant) wam.Instruction { return wam.UnifyConstant{Constant: c} }),
	"call": {1, func(ops []string) (wam.Instruction, error) {
		name, err := parseAtom(ops[0])
		if err != nil {
			return nil, err
		}
		return wam.Call{Name: name}, nil
	}},
	"allocate": {1, func(ops []string) (wam.Instruction, error) {
		n, err := parseInt(ops[0])
		if err != nil {
			return nil, err
		}
		return wam.Allocate{NumVars: n}, nil
	}},
	"proceed":    nullary(wam.Proceed{}),
	"deallocate": nullary(wam.Deallocate{}),
	"fail":       nullary(wam.Fail{}),
}
