package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/brunokim/wamstep/asm"
	"github.com/brunokim/wamstep/solver"
	"github.com/brunokim/wamstep/wam"
)

const helpText = `commands:
  s, step [N]   execute the next N instructions (default 1)
  r, run        run until the machine halts
  n, next       look for another solution
  regs          print the temporary registers
  heap          print the heap cells
  state         print the whole machine state
  list          print the program, marking the next instruction
  reset         reload the program
  h, help       print this message
  q, quit       exit
An empty line repeats the last command.`

type repl struct {
	m    *wam.Machine
	vars []solver.Var
	rl   *readline.Instance
	last string
}

func newREPL(m *wam.Machine, vars []solver.Var, historyFile string) (*repl, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:                 "> ",
		HistoryFile:            historyFile,
		DisableAutoSaveHistory: true,
	})
	if err != nil {
		return nil, err
	}
	return &repl{m: m, vars: vars, rl: rl}, nil
}

func (r *repl) Close() error {
	return r.rl.Close()
}

func (r *repl) loop(ctx context.Context) error {
	fmt.Println(`type "help" for a list of commands`)
	for ctx.Err() == nil {
		r.rl.SetPrompt(fmt.Sprintf("[%v @%d] ", r.m.State(), r.m.PC()))
		line, err := r.rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err != nil {
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			line = r.last
		} else {
			r.rl.SaveHistory(line)
		}
		if line == "" {
			continue
		}
		r.last = line
		if isClose := r.exec(strings.Fields(line)); isClose {
			return nil
		}
	}
	return nil
}

func (r *repl) exec(args []string) bool {
	switch args[0] {
	case "s", "step":
		n := 1
		if len(args) > 1 {
			var err error
			if n, err = strconv.Atoi(args[1]); err != nil {
				fmt.Println("step: invalid count:", args[1])
				return false
			}
		}
		r.step(n)
	case "r", "run":
		r.printOutcome(r.m.RunToCompletion())
	case "n", "next":
		if r.m.State() != wam.HaltedSuccess {
			fmt.Println("next: no solution to retry, machine is", r.m.State())
			return false
		}
		if _, err := r.m.Redo(); err != nil {
			r.printOutcome(wam.Failed, err)
			return false
		}
		r.printOutcome(r.m.RunToCompletion())
	case "regs":
		for i, addr := range r.m.Registers() {
			if addr == wam.NoAddr {
				continue
			}
			fmt.Printf("%v\t%v\t%s\n", wam.RegAddr(i), addr, r.m.FormatTerm(addr))
		}
	case "heap":
		for i, cell := range r.m.Heap() {
			fmt.Printf("@%d\t%v\n", i, cell)
		}
	case "state":
		fmt.Println(r.m)
	case "list":
		r.list()
	case "reset":
		if err := r.m.Load(r.m.Program(), wam.Fresh); err != nil {
			fmt.Println("reset:", err)
		}
	case "h", "help":
		fmt.Println(helpText)
	case "q", "quit":
		return true
	default:
		fmt.Printf("unknown command %q, type \"help\" for a list of commands\n", args[0])
	}
	return false
}

func (r *repl) step(n int) {
	for i := 0; i < n; i++ {
		pc := r.m.PC()
		var instr wam.Instruction
		if code := r.m.Program().Code; pc >= 0 && pc < len(code) {
			instr = code[pc]
		}
		outcome, err := r.m.Advance()
		fmt.Printf("%4d\t%v\n", pc, instr)
		if outcome != wam.Continuing {
			r.printOutcome(outcome, err)
			return
		}
	}
}

func (r *repl) list() {
	lines := strings.Split(strings.TrimSuffix(asm.Listing(r.m.Program()), "\n"), "\n")
	pc := fmt.Sprintf("%4d\t", r.m.PC())
	for _, line := range lines {
		marker := "  "
		if strings.HasPrefix(line, pc) {
			marker = "=>"
		}
		fmt.Println(marker, line)
	}
}

func (r *repl) printOutcome(outcome wam.Outcome, err error) {
	switch {
	case outcome == wam.Succeeded:
		solution := make(solver.Solution, len(r.vars))
		for _, x := range r.vars {
			addr, err := r.m.Register(x.Addr)
			if err != nil {
				solution[x.Name] = err.Error()
				continue
			}
			solution[x.Name] = r.m.FormatTerm(addr)
		}
		printSolution(solution)
	case err != nil && wam.IsFatal(err):
		fmt.Println("error:", err)
	case outcome == wam.Failed:
		fmt.Println("false.")
	case err != nil:
		fmt.Println(err)
	}
}
