// Package solver enumerates the solutions of a query loaded into a machine.
package solver

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"

	"github.com/brunokim/wamstep/errors"
	"github.com/brunokim/wamstep/wam"
)

// ErrNoMoreSolutions is returned by Next when the query has no (more) solutions.
const ErrNoMoreSolutions = errors.Kind("no more solutions")

// checkInterval is the number of steps between context checks.
const checkInterval = 1024

// Var names a register that holds a query variable.
type Var struct {
	Name string
	Addr wam.Addr
}

// Solution maps query variables to their formatted terms.
type Solution map[string]string

func (s Solution) String() string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	xs := make([]string, len(names))
	for i, name := range names {
		xs[i] = fmt.Sprintf("%s = %s", name, s[name])
	}
	return strings.Join(xs, ", ")
}

type Solver struct {
	m    *wam.Machine
	vars []Var
}

// NewSolver returns a solver for the program loaded in m. The solver owns the
// machine until it's done.
func NewSolver(m *wam.Machine, vars ...Var) *Solver {
	return &Solver{m: m, vars: vars}
}

// Next runs the machine until the next solution.
func (s *Solver) Next(ctx context.Context) (Solution, error) {
	switch s.m.State() {
	case wam.HaltedSuccess:
		if _, err := s.m.Redo(); err != nil {
			return nil, s.failure(ctx, err)
		}
	case wam.HaltedFailure:
		return nil, s.failure(ctx, s.m.Err())
	}
	limit := s.m.IterLimit()
	for i := 1; ; i++ {
		if limit > 0 && i > limit {
			return nil, errors.New("solve: %v: %d", wam.ErrIterLimit, limit)
		}
		outcome, err := s.m.Advance()
		switch outcome {
		case wam.Succeeded:
			solution, err := s.solution()
			if err != nil {
				return nil, err
			}
			logctx.Debug(ctx, "solution", zap.Int("steps", s.m.Steps()), zap.Stringer("solution", solution))
			return solution, nil
		case wam.Failed:
			return nil, s.failure(ctx, err)
		}
		if i%checkInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, errors.Wrapf(err, "interrupted @ step %d", s.m.Steps())
			}
		}
	}
}

func (s *Solver) failure(ctx context.Context, err error) error {
	if wam.IsFatal(err) {
		logctx.Error(ctx, "machine error", zap.Error(err))
		return err
	}
	return errors.New("%v: %v", ErrNoMoreSolutions, err)
}

func (s *Solver) solution() (Solution, error) {
	solution := make(Solution, len(s.vars))
	for _, x := range s.vars {
		addr, err := s.m.Register(x.Addr)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", x.Name)
		}
		solution[x.Name] = s.m.FormatTerm(addr)
	}
	return solution, nil
}

// Solve returns up to limit solutions, or all of them if limit is zero.
func Solve(ctx context.Context, m *wam.Machine, vars []Var, limit int) ([]Solution, error) {
	s := NewSolver(m, vars...)
	var solutions []Solution
	for limit <= 0 || len(solutions) < limit {
		solution, err := s.Next(ctx)
		if errors.Is(err, ErrNoMoreSolutions) {
			break
		}
		if err != nil {
			return solutions, err
		}
		solutions = append(solutions, solution)
	}
	logctx.Info(ctx, "solved", zap.Int("solutions", len(solutions)), zap.Int("steps", m.Steps()))
	return solutions, nil
}

type Result struct {
	Solution Solution
	Err      error
}

// Query streams solutions until they are exhausted, an error is found, or
// the returned cancel function is called. The machine must not be used by
// anyone else until the stream is closed.
func Query(ctx context.Context, m *wam.Machine, vars ...Var) (<-chan Result, func()) {
	ctx, cancel := context.WithCancel(ctx)
	s := NewSolver(m, vars...)
	stream := make(chan Result)
	go func() {
		defer close(stream)
		for {
			solution, err := s.Next(ctx)
			if errors.Is(err, ErrNoMoreSolutions) {
				return
			}
			select {
			case stream <- Result{solution, err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return stream, cancel
}
