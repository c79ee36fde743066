// Package debugserver exposes a machine over HTTP, so that a debugger can step
// through a program and render its state.
package debugserver

import (
	"context"
	"net"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/hashicorp/golang-lru/v2/simplelru"
	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/brunokim/wamstep/asm"
	"github.com/brunokim/wamstep/wam"
)

const programCacheSize = 32

// Response is the body of every route.
type Response struct {
	Outcome wam.Outcome  `json:"outcome"`
	Error   string       `json:"error,omitempty"`
	Fatal   bool         `json:"fatal,omitempty"`
	State   wam.Snapshot `json:"state"`
}

type Server struct {
	mu       sync.Mutex
	m        *wam.Machine
	programs *simplelru.LRU[string, *wam.Program]

	app   *fiber.App
	bgCtx context.Context
}

// New returns a server that drives m. The server owns the machine.
func New(ctx context.Context, m *wam.Machine) *Server {
	programs, err := simplelru.NewLRU[string, *wam.Program](programCacheSize, nil)
	if err != nil {
		panic(err)
	}
	s := &Server{m: m, programs: programs, bgCtx: ctx}
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(s.logRequest)
	app.Get("/state", s.state)
	app.Post("/step", s.step)
	app.Post("/run", s.run)
	app.Post("/redo", s.redo)
	app.Post("/reset", s.reset)
	app.Post("/load", s.load)
	s.app = app
	return s
}

// Serve creates a server for m and serves it on l until ctx is done.
func Serve(ctx context.Context, l net.Listener, m *wam.Machine) error {
	return New(ctx, m).Serve(ctx, l)
}

func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	logctx.Infof(ctx, "serving on %v", l.Addr())
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return s.app.Listener(l) })
	eg.Go(func() error {
		<-ctx.Done()
		return s.app.Shutdown()
	})
	return eg.Wait()
}

// App returns the HTTP handler.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) logRequest(c *fiber.Ctx) error {
	err := c.Next()
	logctx.Debug(s.bgCtx, "request",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", c.Response().StatusCode()),
		zap.Error(err))
	return err
}

func (s *Server) respond(c *fiber.Ctx, outcome wam.Outcome, err error) error {
	resp := Response{
		Outcome: outcome,
		State:   s.m.Snapshot(),
	}
	if err != nil {
		resp.Error = err.Error()
		resp.Fatal = wam.IsFatal(err)
	}
	return c.JSON(resp)
}

func (s *Server) state(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.respond(c, outcomeOf(s.m.State()), s.m.Err())
}

func (s *Server) step(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLoaded(); err != nil {
		return err
	}
	outcome, err := s.m.Advance()
	return s.respond(c, outcome, err)
}

func (s *Server) run(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLoaded(); err != nil {
		return err
	}
	outcome, err := s.m.RunToCompletion()
	return s.respond(c, outcome, err)
}

func (s *Server) redo(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m.State() != wam.HaltedSuccess {
		return fiber.NewError(fiber.StatusConflict, "redo requires a successful run, machine is "+s.m.State().String())
	}
	outcome, err := s.m.Redo()
	return s.respond(c, outcome, err)
}

func (s *Server) reset(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLoaded(); err != nil {
		return err
	}
	if err := s.m.Load(s.m.Program(), wam.Fresh); err != nil {
		return err
	}
	return s.respond(c, wam.Continuing, nil)
}

// load replaces the program with the assembly in the request body. With
// ?mode=reuse, the heap and registers are kept.
func (s *Server) load(c *fiber.Ctx) error {
	text := string(c.Body())
	mode := wam.Fresh
	if c.Query("mode") == "reuse" {
		mode = wam.Reuse
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.programs.Get(text)
	if !ok {
		var err error
		p, err = asm.ParseString(text)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		s.programs.Add(text, p)
	}
	if err := s.m.Load(p, mode); err != nil {
		return err
	}
	logctx.Info(s.bgCtx, "program loaded", zap.Int("instructions", len(p.Code)), zap.Bool("cached", ok))
	return s.respond(c, wam.Continuing, nil)
}

func (s *Server) checkLoaded() error {
	if s.m.Program() == nil {
		return fiber.NewError(fiber.StatusConflict, "no program loaded")
	}
	return nil
}

func outcomeOf(state wam.State) wam.Outcome {
	switch state {
	case wam.HaltedSuccess:
		return wam.Succeeded
	case wam.HaltedFailure:
		return wam.Failed
	}
	return wam.Continuing
}
