package loader

import (
	"github.com/wnxd/microsandbox/emulator"
)

// Raw maps a flat binary read-write at a fixed base address. No parsing,
// no entry point, no imports.
type Raw struct {
	Base uint64
}

func (r Raw) Load(emu emulator.Emulator, data []byte, opts Options) (*Image, error) {
	if len(data) == 0 {
		return nil, &LoadError{Name: opts.Name, Err: ErrImageEmpty}
	}
	page := emu.PageSize()
	begin := emulator.AlignDown(r.Base, page)
	end := emulator.Align(r.Base+uint64(len(data)), page)
	err := emu.MemMap(begin, end-begin, emulator.MEM_PROT_READ|emulator.MEM_PROT_WRITE)
	if err != nil {
		return nil, &LoadError{Name: opts.Name, Err: err}
	}
	err = emu.MemWrite(r.Base, data)
	if err != nil {
		return nil, &LoadError{Name: opts.Name, Err: err}
	}
	return &Image{Name: opts.Name, Base: r.Base, Size: uint64(len(data))}, nil
}
