package sandbox

import (
	"go.uber.org/zap"

	"github.com/wnxd/microsandbox/debug"
	"github.com/wnxd/microsandbox/emulator"
)

// applyTrace installs the logging hooks the configuration asks for:
// dumpblocs logs every translated block, singlestep every instruction
// together with the register file.
func (s *Sandbox) applyTrace() error {
	log := s.Logger()
	if s.cfg.DumpBlocks {
		var cb emulator.CodeCallback = func(addr, size uint64, _ any) {
			log.Info("block", zap.Uint64("address", addr), zap.Uint64("size", size))
		}
		h, err := s.emu.Hook(emulator.HOOK_TYPE_BLOCK, cb, nil, 1, 0)
		if err != nil {
			return err
		}
		s.track(h)
	}
	if s.cfg.SingleStep {
		regs := debug.DisplayRegs(s.emu.Arch())
		ids := make([]emulator.Reg, len(regs))
		for i, r := range regs {
			ids[i] = r.Reg
		}
		var cb emulator.CodeCallback = func(addr, size uint64, _ any) {
			fields := make([]zap.Field, 0, len(regs)+2)
			fields = append(fields, zap.Uint64("address", addr), zap.Uint64("size", size))
			if values, err := s.emu.RegReadBatch(ids...); err == nil {
				for i, r := range regs {
					fields = append(fields, zap.Uint64(r.Name, values[i]))
				}
			}
			log.Info("step", fields...)
		}
		h, err := s.emu.Hook(emulator.HOOK_TYPE_CODE, cb, nil, 1, 0)
		if err != nil {
			return err
		}
		s.track(h)
	}
	return nil
}
