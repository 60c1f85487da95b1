package emutest

import (
	"sort"
	"unsafe"

	"github.com/wnxd/microsandbox/emulator"
)

type region struct {
	addr, size uint64
	prot       emulator.MemProt
	data       []byte
}

func (r *region) contains(addr uint64) bool {
	return addr >= r.addr && addr < r.addr+r.size
}

func (r *region) covers(addr, size uint64) bool {
	return addr >= r.addr && addr+size <= r.addr+r.size
}

func (e *Engine) find(addr uint64) *region {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.regions {
		if r.contains(addr) {
			return r
		}
	}
	return nil
}

func (e *Engine) MemMap(addr, size uint64, prot emulator.MemProt) error {
	if size == 0 || addr%e.PageSize() != 0 || size%e.PageSize() != 0 {
		return ErrMemAlign
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.regions {
		if addr < r.addr+r.size && r.addr < addr+size {
			return ErrMemOverlap
		}
	}
	e.regions = append(e.regions, &region{addr: addr, size: size, prot: prot, data: make([]byte, size)})
	sort.Slice(e.regions, func(i, j int) bool { return e.regions[i].addr < e.regions[j].addr })
	return nil
}

func (e *Engine) MemUnmap(addr, size uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, r := range e.regions {
		if r.addr == addr && r.size == size {
			e.regions = append(e.regions[:i], e.regions[i+1:]...)
			return nil
		}
	}
	return ErrMemUnmapped
}

func (e *Engine) MemProtect(addr, size uint64, prot emulator.MemProt) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.regions {
		if r.covers(addr, size) {
			r.prot = prot
			return nil
		}
	}
	return ErrMemUnmapped
}

func (e *Engine) MemRegions() ([]emulator.MemRegion, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]emulator.MemRegion, len(e.regions))
	for i, r := range e.regions {
		out[i] = emulator.MemRegion{Addr: r.addr, Size: r.size, Prot: r.prot}
	}
	return out, nil
}

func (e *Engine) MemRead(addr, size uint64) ([]byte, error) {
	buf := make([]byte, size)
	err := e.MemReadPtr(addr, size, unsafe.Pointer(unsafe.SliceData(buf)))
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func (e *Engine) MemWrite(addr uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return e.MemWritePtr(addr, uint64(len(data)), unsafe.Pointer(unsafe.SliceData(data)))
}

func (e *Engine) MemReadPtr(addr, size uint64, ptr unsafe.Pointer) error {
	if size == 0 {
		return nil
	}
	r := e.find(addr)
	if r == nil || !r.covers(addr, size) {
		return e.memFault(emulator.HOOK_TYPE_MEM_READ_UNMAPPED, addr, size)
	}
	copy(unsafe.Slice((*byte)(ptr), size), r.data[addr-r.addr:])
	return nil
}

func (e *Engine) MemWritePtr(addr, size uint64, ptr unsafe.Pointer) error {
	if size == 0 {
		return nil
	}
	r := e.find(addr)
	if r == nil || !r.covers(addr, size) {
		return e.memFault(emulator.HOOK_TYPE_MEM_WRITE_UNMAPPED, addr, size)
	}
	copy(r.data[addr-r.addr:addr-r.addr+size], unsafe.Slice((*byte)(ptr), size))
	return nil
}

func (e *Engine) memFault(typ emulator.HookType, addr, size uint64) error {
	pc, _ := e.RegRead(e.regs.pc)
	return &emulator.MemFault{Type: typ, PC: pc, Addr: addr, Size: size}
}
