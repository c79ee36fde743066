package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"

	"github.com/brunokim/wamstep/asm"
	"github.com/brunokim/wamstep/errors"
	"github.com/brunokim/wamstep/internal/debugserver"
	"github.com/brunokim/wamstep/solver"
	"github.com/brunokim/wamstep/wam"
)

var (
	programFile  = flag.String("program", "", "Assembly file to load (required)")
	interactive  = flag.Bool("interactive", false, "Whether to step through the program interactively")
	traceFile    = flag.String("trace", "", "File to write a JSON snapshot after every step, one per line")
	serveAddr    = flag.String("serve", "", "Address to serve the debug HTTP API, like localhost:8080")
	iterLimit    = flag.Int("iter-limit", 0, "Maximum number of steps to find each solution (0 = unbounded)")
	numRegisters = flag.Int("registers", 32, "Number of temporary registers")
	queryVars    = flag.String("vars", "", "Comma-separated query variables to print, like X=X1,Y=X2")
	maxSolutions = flag.Int("solutions", 0, "Maximum number of solutions to print (0 = all)")
	historyFile  = flag.String("history", "/tmp/wamstep-history", "Readline history file")
	verbose      = flag.Bool("v", false, "Log every step")
)

func main() {
	flag.Parse()
	logger := newLogger(*verbose)
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx = logctx.NewContext(ctx, logger)

	if err := run(ctx, logger); err != nil {
		logctx.Error(ctx, "wamstep", zap.Error(err))
		os.Exit(1)
	}
}

func newLogger(verbose bool) *zap.Logger {
	var logger *zap.Logger
	var err error
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
		logger, err = cfg.Build()
	}
	if err != nil {
		panic(err)
	}
	return logger
}

func run(ctx context.Context, logger *zap.Logger) error {
	if *programFile == "" {
		return errors.New("-program is required")
	}
	p, err := readProgram(*programFile)
	if err != nil {
		return err
	}
	vars, err := parseVars(*queryVars)
	if err != nil {
		return err
	}
	opts := []wam.Option{
		wam.WithLogger(logger),
		wam.WithRegisters(*numRegisters),
		wam.WithIterLimit(*iterLimit),
	}
	if *traceFile != "" {
		f, err := os.Create(*traceFile)
		if err != nil {
			return errors.Wrap(err, "trace")
		}
		defer f.Close()
		opts = append(opts, wam.WithTrace(f))
	}
	m := wam.NewMachine(opts...)
	if err := m.Load(p, wam.Fresh); err != nil {
		return err
	}
	logctx.Info(ctx, "program loaded",
		zap.String("file", *programFile),
		zap.Int("instructions", len(p.Code)),
		zap.Strings("procedures", p.Procedures()))

	switch {
	case *serveAddr != "":
		l, err := net.Listen("tcp", *serveAddr)
		if err != nil {
			return errors.Wrap(err, "serve")
		}
		fmt.Printf("serving on http://%v\n", l.Addr())
		return debugserver.Serve(ctx, l, m)
	case *interactive:
		r, err := newREPL(m, vars, *historyFile)
		if err != nil {
			return err
		}
		defer r.Close()
		return r.loop(ctx)
	default:
		return solveAll(ctx, m, vars)
	}
}

func readProgram(filename string) (*wam.Program, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "program")
	}
	defer f.Close()
	p, err := asm.Parse(f)
	if err != nil {
		return nil, errors.Wrap(err, filename)
	}
	return p, nil
}

// parseVars parses a list like "X=X1,Y=X2".
func parseVars(text string) ([]solver.Var, error) {
	var vars []solver.Var
	for _, entry := range strings.Split(text, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, reg, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, errors.New("-vars: %q must be like X=X1", entry)
		}
		addr, err := asm.ParseAddr(strings.TrimSpace(reg))
		if err != nil {
			return nil, errors.Wrap(err, "-vars")
		}
		vars = append(vars, solver.Var{Name: strings.TrimSpace(name), Addr: addr})
	}
	return vars, nil
}

func solveAll(ctx context.Context, m *wam.Machine, vars []solver.Var) error {
	solutions, err := solver.Solve(ctx, m, vars, *maxSolutions)
	for _, solution := range solutions {
		printSolution(solution)
	}
	if err != nil {
		return err
	}
	if len(solutions) == 0 {
		fmt.Println("false.")
	}
	return nil
}

func printSolution(solution solver.Solution) {
	if len(solution) == 0 {
		fmt.Println("true.")
	} else {
		fmt.Println(solution)
	}
}
