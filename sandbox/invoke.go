package sandbox

import (
	"context"

	"github.com/wnxd/microsandbox/emulator"
)

// PrepareFunc adjusts guest state right before a direct invocation:
// registers, globals, scratch memory.
type PrepareFunc func(s *Sandbox) error

// Invoke calls the guest function at addr and returns its result. The
// prepare callback runs first, then args are placed per the pairing's
// default convention with the return address parked at CallSentinel, and
// the engine runs until the function comes back.
func (s *Sandbox) Invoke(ctx context.Context, prepare PrepareFunc, addr uint64, args ...any) (uint64, error) {
	return s.invoke(ctx, nil, prepare, addr, args...)
}

// InvokeWith is Invoke under an explicit calling convention instead of
// the pairing's default.
func (s *Sandbox) InvokeWith(ctx context.Context, calling Calling, prepare PrepareFunc, addr uint64, args ...any) (uint64, error) {
	return s.invoke(ctx, calling, prepare, addr, args...)
}

// Call is Invoke without a prepare callback or cancellation.
func (s *Sandbox) Call(addr uint64, args ...any) (uint64, error) {
	return s.invoke(context.Background(), nil, nil, addr, args...)
}

// CallWith is Call under an explicit calling convention.
func (s *Sandbox) CallWith(calling Calling, addr uint64, args ...any) (uint64, error) {
	return s.invoke(context.Background(), calling, nil, addr, args...)
}

func (s *Sandbox) invoke(ctx context.Context, calling Calling, prepare PrepareFunc, addr uint64, args ...any) (uint64, error) {
	if s.isClosed() {
		return 0, ErrClosed
	}
	if calling == nil {
		calling = s.policy.Calling
	}
	if prepare != nil {
		if err := prepare(s); err != nil {
			return 0, err
		}
	}
	if err := calling.Prepare(s.machine, CallSentinel, args...); err != nil {
		return 0, err
	}
	var returned bool
	guard, err := s.AddBreakpoint(CallSentinel, func(s *Sandbox) bool {
		returned = true
		return false
	})
	if err != nil {
		return 0, err
	}
	defer s.RemoveBreakpoint(guard)
	cancel := watchContext(ctx, s.emu)
	defer cancel()
	err = s.emu.Start(addr, emulator.NO_ADDRESS)
	fault, exited := s.takeOutcome()
	switch {
	case fault != nil:
		return 0, fault
	case err != nil:
		return 0, err
	case ctx != nil && ctx.Err() != nil:
		return 0, ctx.Err()
	case returned:
		return s.RetVal()
	case exited:
		return 0, ErrGuestExited
	}
	return 0, emulator.ErrStopped
}
