package sandbox

import (
	"context"

	"go.uber.org/zap"

	"github.com/wnxd/microsandbox/debug"
)

// DebugHooks are the frontends the driver hands control to in the debug
// modes. Tests swap them for scripted drivers.
type DebugHooks struct {
	Interactive func(ctx context.Context, s *Sandbox, start uint64) error
	Remote      func(ctx context.Context, s *Sandbox, start uint64, port int) error
}

func DefaultDebugHooks() DebugHooks {
	return DebugHooks{
		Interactive: runShell,
		Remote:      runServer,
	}
}

// SetDebugHooks replaces the debug frontends.
func (s *Sandbox) SetDebugHooks(h DebugHooks) {
	s.debug = h
}

// NewDebugSession builds a stepping session positioned at start.
func (s *Sandbox) NewDebugSession(start uint64) *debug.Session {
	return debug.NewSession(s.emu, s.policy.Profile.PC, start)
}

func (s *Sandbox) runInteractive(ctx context.Context, start uint64) error {
	if s.debug.Interactive == nil {
		return s.runLoop(ctx, start)
	}
	err := s.debug.Interactive(ctx, s, start)
	if fault, _ := s.takeOutcome(); fault != nil && err == nil {
		err = fault
	}
	return err
}

func (s *Sandbox) runRemote(ctx context.Context, start uint64) error {
	if s.debug.Remote == nil {
		return s.runLoop(ctx, start)
	}
	err := s.debug.Remote(ctx, s, start, s.cfg.GDBPort)
	if fault, _ := s.takeOutcome(); fault != nil && err == nil {
		err = fault
	}
	return err
}

func runShell(ctx context.Context, s *Sandbox, start uint64) error {
	session := s.NewDebugSession(start)
	defer session.Close()
	return debug.NewShell(session).Run(ctx)
}

func runServer(ctx context.Context, s *Sandbox, start uint64, port int) error {
	session := s.NewDebugSession(start)
	defer session.Close()
	srv := debug.NewServer(session, port)
	s.Logger().Info("remote debug listening", zap.String("addr", srv.Addr()))
	return srv.Serve(ctx)
}
