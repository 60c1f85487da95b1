package emulator

import (
	"slices"
	"unsafe"
)

type Pointer struct {
	emu  Emulator
	addr uint64
}

func ToPointer(emu Emulator, addr uint64) Pointer {
	return Pointer{emu, addr}
}

func (p Pointer) IsNil() bool {
	return p.addr == 0
}

func (p Pointer) Address() uint64 {
	return p.addr
}

func (p Pointer) Add(offset uint64) Pointer {
	return Pointer{p.emu, p.addr + offset}
}

func (p Pointer) Sub(offset uint64) Pointer {
	return Pointer{p.emu, p.addr - offset}
}

func (p Pointer) MemRead(size uint64) ([]byte, error) {
	return p.emu.MemRead(p.addr, size)
}

func (p Pointer) MemWrite(data []byte) error {
	return p.emu.MemWrite(p.addr, data)
}

func (p Pointer) MemReadString() (string, error) {
	var data []byte
	const size = 0x10
	for begin := p.addr; ; begin += size {
		buf, err := p.emu.MemRead(begin, size)
		if err != nil {
			return "", err
		}
		i := slices.Index(buf, 0)
		if i == -1 {
			data = append(data, buf...)
		} else {
			data = append(data, buf[:i]...)
			break
		}
	}
	return string(data), nil
}

func (p Pointer) MemReadPointer() (ptr Pointer, err error) {
	size := p.emu.Arch().PointerSize()
	if size == 0 {
		err = ErrArchUnsupported
		return
	}
	buf, err := p.MemRead(size)
	if err != nil {
		return
	}
	var addr uint64
	if size == 4 {
		addr = uint64(p.emu.ByteOrder().Order().Uint32(buf))
	} else {
		addr = p.emu.ByteOrder().Order().Uint64(buf)
	}
	ptr.emu, ptr.addr = p.emu, addr
	return
}

func (p Pointer) ReadAt(b []byte, off int64) (n int, err error) {
	return len(b), p.emu.MemReadPtr(p.addr+uint64(off), uint64(len(b)), unsafe.Pointer(unsafe.SliceData(b)))
}

func (p Pointer) WriteAt(b []byte, off int64) (n int, err error) {
	return len(b), p.emu.MemWritePtr(p.addr+uint64(off), uint64(len(b)), unsafe.Pointer(unsafe.SliceData(b)))
}
