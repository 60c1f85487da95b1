// Package emutest is a scripted engine backend. It keeps guest memory in
// host buffers and registers in a table, and replaces translation with a
// per-test exec function, so sandbox behavior can be driven without a
// real engine. It registers under the backend name "test".
package emutest

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/wnxd/microsandbox/emulator"
	"github.com/wnxd/microsandbox/emulator/arm"
	"github.com/wnxd/microsandbox/emulator/arm64"
	"github.com/wnxd/microsandbox/emulator/x86"
)

var _ = emulator.Register("test", func(arch emulator.Arch, order emulator.ByteOrder, opts ...emulator.Option) (emulator.Emulator, error) {
	return New(arch, order, opts...)
})

// ExecFunc emulates the instruction at pc and returns the next pc.
type ExecFunc func(e *Engine, pc uint64) (uint64, error)

type archRegs struct {
	sp, pc, lr emulator.Reg
	word       uint64
}

// Engine is the scripted backend. Exec defaults to Return: every
// instruction behaves like the architecture's return, so a started
// function immediately comes back through its planted return address.
// Engine reports one block per Start; only code, block and
// fetch-unmapped hooks fire.
type Engine struct {
	arch  emulator.Arch
	order emulator.ByteOrder
	regs  archRegs
	opts  *emulator.Options

	exec    ExecFunc
	stopped atomic.Bool

	mu      sync.Mutex
	vals    map[emulator.Reg]uint64
	regions []*region
	hooks   []*hook
	closed  bool
}

func New(arch emulator.Arch, order emulator.ByteOrder, opts ...emulator.Option) (*Engine, error) {
	regs, ok := regsFor(arch)
	if !ok {
		return nil, emulator.ErrArchUnsupported
	}
	e := &Engine{
		arch:  arch,
		order: order,
		regs:  regs,
		opts:  emulator.NewOptions(opts...),
		vals:  make(map[emulator.Reg]uint64),
	}
	e.exec = e.Return
	return e, nil
}

func regsFor(arch emulator.Arch) (archRegs, bool) {
	switch arch {
	case emulator.ARCH_X86:
		return archRegs{sp: x86.X86_REG_ESP, pc: x86.X86_REG_EIP, word: 4}, true
	case emulator.ARCH_X86_64:
		return archRegs{sp: x86.X86_REG_RSP, pc: x86.X86_REG_RIP, word: 8}, true
	case emulator.ARCH_ARM:
		return archRegs{sp: arm.ARM_REG_SP, pc: arm.ARM_REG_PC, lr: arm.ARM_REG_LR, word: 4}, true
	case emulator.ARCH_ARM64:
		return archRegs{sp: arm64.ARM64_REG_SP, pc: arm64.ARM64_REG_PC, lr: arm64.ARM64_REG_X30, word: 8}, true
	default:
		return archRegs{}, false
	}
}

// SetExec replaces the instruction semantics for the next runs.
func (e *Engine) SetExec(fn ExecFunc) {
	if fn == nil {
		fn = e.Return
	}
	e.exec = fn
}

// Return is the default ExecFunc: pop the return address where the
// architecture keeps it on the stack, or jump to the link register.
func (e *Engine) Return(_ *Engine, pc uint64) (uint64, error) {
	if e.regs.lr != 0 {
		return e.RegRead(e.regs.lr)
	}
	sp, err := e.RegRead(e.regs.sp)
	if err != nil {
		return 0, err
	}
	ret, err := e.word(sp)
	if err != nil {
		return 0, err
	}
	return ret, e.RegWrite(e.regs.sp, sp+e.regs.word)
}

func (e *Engine) word(addr uint64) (uint64, error) {
	buf, err := e.MemRead(addr, e.regs.word)
	if err != nil {
		return 0, err
	}
	var v uint64
	if e.order == emulator.BO_BIG_ENDIAN {
		for _, c := range buf {
			v = v<<8 | uint64(c)
		}
	} else {
		for i := len(buf) - 1; i >= 0; i-- {
			v = v<<8 | uint64(buf[i])
		}
	}
	return v, nil
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.regions = nil
	e.hooks = nil
	e.vals = make(map[emulator.Reg]uint64)
	return nil
}

func (e *Engine) Arch() emulator.Arch {
	return e.arch
}

func (e *Engine) ByteOrder() emulator.ByteOrder {
	return e.order
}

func (e *Engine) PageSize() uint64 {
	return 0x1000
}

func (e *Engine) RegRead(reg emulator.Reg) (uint64, error) {
	if reg == emulator.REG_INVALID {
		return 0, emulator.ErrRegInvalid
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vals[reg], nil
}

func (e *Engine) RegWrite(reg emulator.Reg, value uint64) error {
	if reg == emulator.REG_INVALID {
		return emulator.ErrRegInvalid
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vals[reg] = value
	return nil
}

func (e *Engine) RegReadPtr(reg emulator.Reg, ptr unsafe.Pointer) error {
	v, err := e.RegRead(reg)
	if err != nil {
		return err
	}
	*(*uint64)(ptr) = v
	return nil
}

func (e *Engine) RegWritePtr(reg emulator.Reg, ptr unsafe.Pointer) error {
	return e.RegWrite(reg, *(*uint64)(ptr))
}

func (e *Engine) RegReadBatch(regs ...emulator.Reg) ([]uint64, error) {
	vals := make([]uint64, len(regs))
	for i, reg := range regs {
		v, err := e.RegRead(reg)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

func (e *Engine) RegWriteBatch(regs []emulator.Reg, vals []uint64) error {
	for i, reg := range regs {
		if err := e.RegWrite(reg, vals[i]); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) Start(begin, until uint64) error {
	return e.StartWithOptions(begin, until, nil)
}

func (e *Engine) StartWithOptions(begin, until uint64, options *emulator.StartOptions) error {
	var limit uint64
	if options != nil {
		limit = options.Count
	}
	e.stopped.Store(false)
	pc := begin
	e.fireBlock(pc)
	var executed uint64
	for {
		if e.stopped.Load() {
			return nil
		}
		if until != emulator.NO_ADDRESS && pc == until {
			return nil
		}
		if err := e.RegWrite(e.regs.pc, pc); err != nil {
			return err
		}
		e.fireCode(pc)
		if e.stopped.Load() {
			return nil
		}
		cur, err := e.RegRead(e.regs.pc)
		if err != nil {
			return err
		}
		if cur != pc {
			pc = cur
			continue
		}
		if e.find(pc) == nil {
			if !e.fireFetchFault(pc) {
				return &emulator.MemFault{Type: emulator.HOOK_TYPE_MEM_FETCH_UNMAPPED, PC: pc, Addr: pc, Size: e.regs.word}
			}
			if e.find(pc) == nil {
				return &emulator.MemFault{Type: emulator.HOOK_TYPE_MEM_FETCH_UNMAPPED, PC: pc, Addr: pc, Size: e.regs.word}
			}
		}
		next, err := e.exec(e, pc)
		if err != nil {
			return err
		}
		executed++
		if err := e.RegWrite(e.regs.pc, next); err != nil {
			return err
		}
		pc = next
		if limit > 0 && executed == limit {
			return nil
		}
	}
}

func (e *Engine) Stop() error {
	e.stopped.Store(true)
	return nil
}
