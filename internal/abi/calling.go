package abi

import (
	"github.com/wnxd/microsandbox/emulator"
	"github.com/wnxd/microsandbox/emulator/arm"
	"github.com/wnxd/microsandbox/emulator/arm64"
	"github.com/wnxd/microsandbox/emulator/x86"
	"github.com/wnxd/microsandbox/encoding"
)

// Calling places arguments for a direct call, extracts them inside an
// emulated API implementation, and performs the callee-side return.
type Calling interface {
	Name() string
	Prepare(m *Machine, ret uint64, args ...any) error
	Arg(m *Machine, i int) (uint64, error)
	Extract(m *Machine, args ...any) error
	Return(m *Machine, nargs int, value uint64) error
}

type conv struct {
	name        string
	argRegs     []emulator.Reg
	fltRegs     []emulator.Reg
	shadow      int
	calleeClean bool
}

var (
	Stdcall    Calling = &conv{name: "stdcall", calleeClean: true}
	Cdecl      Calling = &conv{name: "cdecl"}
	SystemVX86 Calling = &conv{name: "systemv"}
)

var StdcallX64 Calling = &conv{
	name:    "stdcall",
	argRegs: []emulator.Reg{x86.X86_REG_RCX, x86.X86_REG_RDX, x86.X86_REG_R8, x86.X86_REG_R9},
	fltRegs: []emulator.Reg{x86.X86_REG_XMM0, x86.X86_REG_XMM1, x86.X86_REG_XMM2, x86.X86_REG_XMM3},
	shadow:  0x20,
}

var SystemVAMD64 Calling = &conv{
	name:    "systemv",
	argRegs: []emulator.Reg{x86.X86_REG_RDI, x86.X86_REG_RSI, x86.X86_REG_RDX, x86.X86_REG_RCX, x86.X86_REG_R8, x86.X86_REG_R9},
	fltRegs: []emulator.Reg{x86.X86_REG_XMM0, x86.X86_REG_XMM1, x86.X86_REG_XMM2, x86.X86_REG_XMM3, x86.X86_REG_XMM4, x86.X86_REG_XMM5, x86.X86_REG_XMM6, x86.X86_REG_XMM7},
}

var SystemVARM Calling = &conv{
	name:    "systemv",
	argRegs: []emulator.Reg{arm.ARM_REG_R0, arm.ARM_REG_R1, arm.ARM_REG_R2, arm.ARM_REG_R3},
	fltRegs: []emulator.Reg{arm.ARM_REG_D0, arm.ARM_REG_D1, arm.ARM_REG_D2, arm.ARM_REG_D3, arm.ARM_REG_D4, arm.ARM_REG_D5, arm.ARM_REG_D6, arm.ARM_REG_D7},
}

var SystemVARM64 Calling = &conv{
	name:    "systemv",
	argRegs: []emulator.Reg{arm64.ARM64_REG_X0, arm64.ARM64_REG_X1, arm64.ARM64_REG_X2, arm64.ARM64_REG_X3, arm64.ARM64_REG_X4, arm64.ARM64_REG_X5, arm64.ARM64_REG_X6, arm64.ARM64_REG_X7},
	fltRegs: []emulator.Reg{arm64.ARM64_REG_D0, arm64.ARM64_REG_D1, arm64.ARM64_REG_D2, arm64.ARM64_REG_D3, arm64.ARM64_REG_D4, arm64.ARM64_REG_D5, arm64.ARM64_REG_D6, arm64.ARM64_REG_D7},
}

func (c *conv) Name() string {
	return c.name
}

func (c *conv) Prepare(m *Machine, ret uint64, args ...any) error {
	aw := newArgWriter(m, c.argRegs, c.fltRegs)
	for _, a := range args {
		err := encoding.Encode(aw, a)
		if err != nil {
			return err
		}
		aw.align()
	}
	err := aw.Flush(c.shadow)
	if err != nil {
		return err
	}
	if m.prof.LR != 0 {
		return m.emu.RegWrite(m.prof.LR, ret)
	}
	return m.Push(ret)
}

// spillBase is where stack arguments start when execution sits at the
// callee's entry: above the pushed return slot and any shadow space.
func (c *conv) spillBase(m *Machine) (uint64, error) {
	sp, err := m.SP()
	if err != nil {
		return 0, err
	}
	if m.prof.LR == 0 {
		sp += uint64(m.prof.WordSize)
	}
	return sp + uint64(c.shadow), nil
}

func (c *conv) Arg(m *Machine, i int) (uint64, error) {
	if i < len(c.argRegs) {
		return m.emu.RegRead(c.argRegs[i])
	}
	base, err := c.spillBase(m)
	if err != nil {
		return 0, err
	}
	return m.Word(base + uint64((i-len(c.argRegs))*m.prof.WordSize))
}

func (c *conv) Extract(m *Machine, args ...any) error {
	base, err := c.spillBase(m)
	if err != nil {
		return err
	}
	rs := newArgReader(m, c.argRegs, c.fltRegs, base)
	for _, a := range args {
		err := encoding.Decode(rs, a)
		if err != nil {
			return err
		}
		rs.align()
	}
	return nil
}

// Return performs the callee's side of the convention: resolve the
// return address, drop callee-cleaned stack arguments, set the result
// register and jump back.
func (c *conv) Return(m *Machine, nargs int, value uint64) error {
	var ret uint64
	var err error
	if m.prof.LR != 0 {
		ret, err = m.emu.RegRead(m.prof.LR)
		if err != nil {
			return err
		}
	} else {
		ret, err = m.Pop()
		if err != nil {
			return err
		}
		if c.calleeClean && nargs > 0 {
			sp, err := m.SP()
			if err != nil {
				return err
			}
			err = m.SetSP(sp + uint64(nargs*m.prof.WordSize))
			if err != nil {
				return err
			}
		}
	}
	err = m.emu.RegWrite(m.prof.Ret, value)
	if err != nil {
		return err
	}
	return m.SetPC(ret)
}
