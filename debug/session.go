package debug

import (
	"slices"

	"github.com/wnxd/microsandbox/emulator"
)

// Session drives one engine instance instruction by instruction. It owns
// its breakpoint hooks and the program counter bookkeeping; the frontends
// in this package only translate user input into session calls. Not safe
// for concurrent use.
type Session struct {
	emu    emulator.Emulator
	pcReg  emulator.Reg
	pc     uint64
	resume uint64
	regs   []RegName
	bps    map[uint64]emulator.Hook
}

// NewSession prepares stepping from start. pcReg is the program counter
// register of the engine's architecture.
func NewSession(emu emulator.Emulator, pcReg emulator.Reg, start uint64) *Session {
	return &Session{
		emu:    emu,
		pcReg:  pcReg,
		pc:     start,
		resume: emulator.NO_ADDRESS,
		regs:   DisplayRegs(emu.Arch()),
		bps:    make(map[uint64]emulator.Hook),
	}
}

// PC is the next address the session will execute.
func (s *Session) PC() uint64 {
	return s.pc
}

// Step executes one instruction and returns the new program counter.
func (s *Session) Step() (uint64, error) {
	return s.run(1)
}

// Continue runs until a breakpoint, an engine stop or a fault.
func (s *Session) Continue() (uint64, error) {
	return s.run(0)
}

// run starts the engine at the saved pc. The resume marker lets the
// breakpoint sitting at that address fire once without stopping, so
// stepping or continuing off a breakpoint makes progress.
func (s *Session) run(count uint64) (uint64, error) {
	s.resume = s.pc
	var err error
	if count == 0 {
		err = s.emu.Start(s.pc, emulator.NO_ADDRESS)
	} else {
		err = s.emu.StartWithOptions(s.pc, emulator.NO_ADDRESS, &emulator.StartOptions{Count: count})
	}
	s.resume = emulator.NO_ADDRESS
	if err != nil {
		return s.pc, err
	}
	pc, err := s.emu.RegRead(s.pcReg)
	if err != nil {
		return s.pc, err
	}
	s.pc = pc
	return pc, nil
}

// AddBreakpoint arms addr. Adding an armed address is a no-op.
func (s *Session) AddBreakpoint(addr uint64) error {
	if _, ok := s.bps[addr]; ok {
		return nil
	}
	var cb emulator.CodeCallback = func(at, _ uint64, _ any) {
		if at == s.resume {
			s.resume = emulator.NO_ADDRESS
			return
		}
		s.emu.Stop()
	}
	h, err := s.emu.Hook(emulator.HOOK_TYPE_CODE, cb, nil, addr, addr)
	if err != nil {
		return err
	}
	s.bps[addr] = h
	return nil
}

// RemoveBreakpoint disarms addr. Unknown addresses are a no-op.
func (s *Session) RemoveBreakpoint(addr uint64) error {
	h, ok := s.bps[addr]
	if !ok {
		return nil
	}
	delete(s.bps, addr)
	return h.Close()
}

func (s *Session) Breakpoints() []uint64 {
	addrs := make([]uint64, 0, len(s.bps))
	for addr := range s.bps {
		addrs = append(addrs, addr)
	}
	slices.Sort(addrs)
	return addrs
}

// AtBreakpoint reports whether the session sits on an armed address.
func (s *Session) AtBreakpoint() bool {
	_, ok := s.bps[s.pc]
	return ok
}

// Regs reads the architecture's display set.
func (s *Session) Regs() ([]RegValue, error) {
	regs := make([]emulator.Reg, len(s.regs))
	for i, r := range s.regs {
		regs[i] = r.Reg
	}
	vals, err := s.emu.RegReadBatch(regs...)
	if err != nil {
		return nil, err
	}
	out := make([]RegValue, len(s.regs))
	for i, r := range s.regs {
		out[i] = RegValue{Name: r.Name, Value: vals[i]}
	}
	return out, nil
}

func (s *Session) ReadMem(addr, size uint64) ([]byte, error) {
	return s.emu.MemRead(addr, size)
}

// Close disarms every breakpoint the session installed.
func (s *Session) Close() error {
	for addr, h := range s.bps {
		delete(s.bps, addr)
		h.Close()
	}
	return nil
}
