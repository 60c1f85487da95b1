package sandbox

import (
	"context"

	"go.uber.org/zap"

	"github.com/wnxd/microsandbox/emulator"
)

// Mode is how the driver runs the guest.
type Mode int

const (
	ModeContinuous Mode = iota
	ModeInteractiveDebug
	ModeRemoteDebug
)

func (m Mode) String() string {
	switch m {
	case ModeContinuous:
		return "continuous"
	case ModeInteractiveDebug:
		return "debug"
	case ModeRemoteDebug:
		return "remote"
	default:
		return "unknown"
	}
}

// Mode resolves the driving mode from configuration: a remote port wins
// over interactive debugging, which wins over continuous execution.
func (s *Sandbox) Mode() Mode {
	switch {
	case s.cfg.GDBPort != 0:
		return ModeRemoteDebug
	case s.cfg.Debugging:
		return ModeInteractiveDebug
	default:
		return ModeContinuous
	}
}

// resolveStart picks the run address: an explicit argument wins over the
// configured address override, which wins over the target's entry point.
func (s *Sandbox) resolveStart(addr uint64) (uint64, error) {
	if addr != emulator.NO_ADDRESS {
		return addr, nil
	}
	if s.address != emulator.NO_ADDRESS {
		return s.address, nil
	}
	if entry, ok := s.EntryPoint(); ok {
		return entry, nil
	}
	return 0, ErrNoStartAddress
}

// Run drives the guest from its resolved start address until it exits,
// faults, or ctx is done.
func (s *Sandbox) Run(ctx context.Context) error {
	return s.RunAt(ctx, emulator.NO_ADDRESS)
}

// RunAt is Run from an explicit address. NO_ADDRESS falls back to the
// resolution order of Run.
func (s *Sandbox) RunAt(ctx context.Context, addr uint64) error {
	if s.isClosed() {
		return ErrClosed
	}
	mode := s.Mode()
	start, err := s.resolveStart(addr)
	if err != nil {
		return &RunError{Pairing: s.policy.Pairing, Mode: mode, Addr: addr, Err: err}
	}
	s.Logger().Info("run",
		zap.Stringer("pairing", s.policy.Pairing),
		zap.Stringer("mode", mode),
		zap.Uint64("address", start),
	)
	switch mode {
	case ModeRemoteDebug:
		err = s.runRemote(ctx, start)
	case ModeInteractiveDebug:
		err = s.runInteractive(ctx, start)
	default:
		err = s.runLoop(ctx, start)
	}
	if err != nil {
		return &RunError{Pairing: s.policy.Pairing, Mode: mode, Addr: start, Err: err}
	}
	return nil
}

func (s *Sandbox) runLoop(ctx context.Context, start uint64) error {
	cancel := watchContext(ctx, s.emu)
	defer cancel()
	err := s.emu.Start(start, emulator.NO_ADDRESS)
	fault, exited := s.takeOutcome()
	switch {
	case fault != nil:
		return fault
	case err != nil:
		return err
	case ctx != nil && ctx.Err() != nil:
		return ctx.Err()
	}
	if exited {
		s.Logger().Debug("guest exited", zap.Uint64("address", start))
	}
	return nil
}

func (s *Sandbox) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// watchContext stops the engine when ctx is done. The returned cancel
// releases the watcher.
func watchContext(ctx context.Context, emu emulator.Emulator) func() {
	if ctx == nil || ctx.Done() == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			emu.Stop()
		case <-done:
		}
	}()
	return func() { close(done) }
}
