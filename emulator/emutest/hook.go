package emutest

import (
	"github.com/wnxd/microsandbox/emulator"
)

type hook struct {
	engine     *Engine
	typ        emulator.HookType
	cb         any
	data       any
	begin, end uint64
}

func (h *hook) Type() emulator.HookType {
	return h.typ
}

func (h *hook) Close() error {
	e := h.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, cur := range e.hooks {
		if cur == h {
			e.hooks = append(e.hooks[:i], e.hooks[i+1:]...)
			break
		}
	}
	return nil
}

func (h *hook) match(addr uint64) bool {
	if h.begin > h.end {
		return true
	}
	return addr >= h.begin && addr <= h.end
}

func (e *Engine) Hook(typ emulator.HookType, callback any, data any, begin, end uint64) (emulator.Hook, error) {
	switch typ {
	case emulator.HOOK_TYPE_CODE, emulator.HOOK_TYPE_BLOCK:
		if _, ok := callback.(emulator.CodeCallback); !ok {
			return nil, emulator.ErrHookCallback
		}
	case emulator.HOOK_TYPE_INTR:
		if _, ok := callback.(emulator.InterruptCallback); !ok {
			return nil, emulator.ErrHookCallback
		}
	case emulator.HOOK_TYPE_INSN_INVALID:
		if _, ok := callback.(emulator.InvalidInsnCallback); !ok {
			return nil, emulator.ErrHookCallback
		}
	default:
		if typ&emulator.HOOK_TYPE_MEM_INVALID != 0 {
			if _, ok := callback.(emulator.InvalidMemoryCallback); !ok {
				return nil, emulator.ErrHookCallback
			}
		} else if typ&emulator.HOOK_TYPE_MEM_VALID != 0 {
			if _, ok := callback.(emulator.MemoryCallback); !ok {
				return nil, emulator.ErrHookCallback
			}
		} else {
			return nil, emulator.ErrHookCallback
		}
	}
	h := &hook{engine: e, typ: typ, cb: callback, data: data, begin: begin, end: end}
	e.mu.Lock()
	e.hooks = append(e.hooks, h)
	e.mu.Unlock()
	return h, nil
}

// snapshot keeps hook iteration stable while callbacks add or remove
// hooks.
func (e *Engine) snapshot(typ emulator.HookType) []*hook {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []*hook
	for _, h := range e.hooks {
		if h.typ&typ != 0 {
			out = append(out, h)
		}
	}
	return out
}

func (e *Engine) fireCode(addr uint64) {
	for _, h := range e.snapshot(emulator.HOOK_TYPE_CODE) {
		if h.match(addr) {
			h.cb.(emulator.CodeCallback)(addr, e.regs.word, h.data)
		}
	}
}

func (e *Engine) fireBlock(addr uint64) {
	for _, h := range e.snapshot(emulator.HOOK_TYPE_BLOCK) {
		if h.match(addr) {
			h.cb.(emulator.CodeCallback)(addr, e.regs.word, h.data)
		}
	}
}

// fireFetchFault reports whether any invalid-memory hook handled the
// unmapped fetch.
func (e *Engine) fireFetchFault(addr uint64) bool {
	handled := false
	for _, h := range e.snapshot(emulator.HOOK_TYPE_MEM_FETCH_UNMAPPED) {
		if h.match(addr) {
			if h.cb.(emulator.InvalidMemoryCallback)(emulator.HOOK_TYPE_MEM_FETCH_UNMAPPED, addr, e.regs.word, 0, h.data) {
				handled = true
			}
		}
	}
	return handled
}
