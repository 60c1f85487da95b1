package abi

import (
	"github.com/wnxd/microsandbox/emulator"
)

// Machine wraps an engine handle with the width, byte order and stack
// geometry of one architecture profile.
type Machine struct {
	emu  emulator.Emulator
	prof *Profile
}

func NewMachine(emu emulator.Emulator, prof *Profile) *Machine {
	return &Machine{emu: emu, prof: prof}
}

func (m *Machine) Emulator() emulator.Emulator {
	return m.emu
}

func (m *Machine) Profile() *Profile {
	return m.prof
}

// MapStack maps the profile's stack region and points SP at its top.
func (m *Machine) MapStack() error {
	err := m.emu.MemMap(m.prof.StackBase, m.prof.StackSize, emulator.MEM_PROT_READ|emulator.MEM_PROT_WRITE)
	if err != nil {
		return err
	}
	return m.SetSP(m.prof.StackBase + m.prof.StackSize)
}

func (m *Machine) SP() (uint64, error) {
	return m.emu.RegRead(m.prof.SP)
}

func (m *Machine) SetSP(v uint64) error {
	return m.emu.RegWrite(m.prof.SP, v)
}

func (m *Machine) PC() (uint64, error) {
	return m.emu.RegRead(m.prof.PC)
}

func (m *Machine) SetPC(v uint64) error {
	return m.emu.RegWrite(m.prof.PC, v)
}

func (m *Machine) Push(v uint64) error {
	sp, err := m.SP()
	if err != nil {
		return err
	}
	sp -= uint64(m.prof.WordSize)
	err = m.PutWord(sp, v)
	if err != nil {
		return err
	}
	return m.SetSP(sp)
}

func (m *Machine) Pop() (uint64, error) {
	sp, err := m.SP()
	if err != nil {
		return 0, err
	}
	v, err := m.Word(sp)
	if err != nil {
		return 0, err
	}
	return v, m.SetSP(sp + uint64(m.prof.WordSize))
}

// PushBytes drops SP by exactly len(b) and writes b there, returning the
// address. No alignment is applied.
func (m *Machine) PushBytes(b []byte) (uint64, error) {
	sp, err := m.SP()
	if err != nil {
		return 0, err
	}
	sp -= uint64(len(b))
	err = m.emu.MemWrite(sp, b)
	if err != nil {
		return 0, err
	}
	return sp, m.SetSP(sp)
}

// PushString writes s with a trailing NUL onto the stack.
func (m *Machine) PushString(s string) (uint64, error) {
	return m.PushBytes(append([]byte(s), 0))
}

func (m *Machine) PutWord(addr, v uint64) error {
	return m.emu.MemWrite(addr, m.wordBytes(v))
}

func (m *Machine) Word(addr uint64) (uint64, error) {
	buf, err := m.emu.MemRead(addr, uint64(m.prof.WordSize))
	if err != nil {
		return 0, err
	}
	return m.wordValue(buf), nil
}

func (m *Machine) StackAlloc(size uint64) (emulator.Pointer, error) {
	size = emulator.Align(size, m.prof.StackAlign)
	sp, err := m.SP()
	if err != nil {
		return emulator.Pointer{}, err
	}
	sp -= size
	return m.Pointer(sp), m.SetSP(sp)
}

func (m *Machine) StackFree(size uint64) error {
	size = emulator.Align(size, m.prof.StackAlign)
	sp, err := m.SP()
	if err != nil {
		return err
	}
	return m.SetSP(sp + size)
}

func (m *Machine) Pointer(addr uint64) emulator.Pointer {
	return emulator.ToPointer(m.emu, addr)
}

func (m *Machine) wordBytes(v uint64) []byte {
	buf := make([]byte, m.prof.WordSize)
	if m.prof.WordSize == 4 {
		m.prof.Order.Order().PutUint32(buf, uint32(v))
	} else {
		m.prof.Order.Order().PutUint64(buf, v)
	}
	return buf
}

func (m *Machine) wordValue(buf []byte) uint64 {
	if m.prof.WordSize == 4 {
		return uint64(m.prof.Order.Order().Uint32(buf))
	}
	return m.prof.Order.Order().Uint64(buf)
}
