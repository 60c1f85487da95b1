package sandbox

import (
	"github.com/wnxd/microsandbox/emulator"
)

// BreakpointFunc runs when execution reaches its address. Returning false
// stops the engine.
type BreakpointFunc func(s *Sandbox) bool

// AddBreakpoint installs fn at addr. The hook stays until removed or the
// sandbox closes.
func (s *Sandbox) AddBreakpoint(addr uint64, fn BreakpointFunc) (emulator.Hook, error) {
	var cb emulator.CodeCallback = func(_, _ uint64, _ any) {
		if !fn(s) {
			s.emu.Stop()
		}
	}
	h, err := s.emu.Hook(emulator.HOOK_TYPE_CODE, cb, nil, addr, addr)
	if err != nil {
		return nil, err
	}
	return s.track(h), nil
}

// RemoveBreakpoint detaches a hook installed through AddBreakpoint.
func (s *Sandbox) RemoveBreakpoint(h emulator.Hook) error {
	s.untrack(h)
	return h.Close()
}
