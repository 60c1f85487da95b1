package emulator

import (
	"io"
	"time"
	"unsafe"
)

// Emulator is the contract a translation engine backend exposes to the
// sandbox. NO_ADDRESS as the until argument of Start runs until the engine
// is stopped or faults. Hooks fire for addresses inside [begin, end];
// begin greater than end hooks everywhere. Code hooks run before the
// fetch, so a hook may redirect or stop execution at an unmapped address
// without raising a fault.
type Emulator interface {
	io.Closer
	Arch() Arch
	ByteOrder() ByteOrder
	PageSize() uint64
	MemMap(addr, size uint64, prot MemProt) error
	MemUnmap(addr, size uint64) error
	MemProtect(addr, size uint64, prot MemProt) error
	MemRegions() ([]MemRegion, error)
	MemRead(addr, size uint64) ([]byte, error)
	MemWrite(addr uint64, data []byte) error
	MemReadPtr(addr, size uint64, ptr unsafe.Pointer) error
	MemWritePtr(addr, size uint64, ptr unsafe.Pointer) error
	RegisterContext
	Start(begin, until uint64) error
	StartWithOptions(begin, until uint64, options *StartOptions) error
	Stop() error
	Hook(typ HookType, callback any, data any, begin, end uint64) (Hook, error)
}

type RegisterContext interface {
	RegRead(reg Reg) (uint64, error)
	RegWrite(reg Reg, value uint64) error
	RegReadPtr(reg Reg, ptr unsafe.Pointer) error
	RegWritePtr(reg Reg, ptr unsafe.Pointer) error
	RegReadBatch(regs ...Reg) ([]uint64, error)
	RegWriteBatch(regs []Reg, vals []uint64) error
}

type StartOptions struct {
	Timeout time.Duration
	Count   uint64
}

const NO_ADDRESS = ^uint64(0)

type Options struct {
	Segments bool
}

type Option func(*Options)

func WithSegments() Option {
	return func(o *Options) { o.Segments = true }
}

func NewOptions(opts ...Option) *Options {
	o := new(Options)
	for _, opt := range opts {
		opt(o)
	}
	return o
}
