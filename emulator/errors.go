package emulator

import (
	"errors"
	"fmt"
)

var (
	ErrArchUnsupported = errors.New("architecture unsupported")
	ErrArchMismatch    = errors.New("architecture mismatch")
	ErrBackendUnknown  = errors.New("backend unknown")
	ErrRegInvalid      = errors.New("register invalid")
	ErrHookCallback    = errors.New("hook callback type exception")
	ErrStopped         = errors.New("emulator stop")
)

type MemFault struct {
	Type HookType
	PC   uint64
	Addr uint64
	Size uint64
}

func (e *MemFault) Error() string {
	return fmt.Sprintf("[MemFault] %s, pc: %016X, addr: %016X, size: %d", e.describe(), e.PC, e.Addr, e.Size)
}

func (e *MemFault) describe() string {
	switch {
	case e.Type&HOOK_TYPE_MEM_FETCH_UNMAPPED != 0:
		return "fetch unmapped"
	case e.Type&HOOK_TYPE_MEM_READ_UNMAPPED != 0:
		return "read unmapped"
	case e.Type&HOOK_TYPE_MEM_WRITE_UNMAPPED != 0:
		return "write unmapped"
	case e.Type&HOOK_TYPE_MEM_PROT != 0:
		return "protection"
	default:
		return "invalid"
	}
}
