package sandbox

import (
	"strings"

	"go.uber.org/zap"

	"github.com/wnxd/microsandbox/loader"
)

// APIFunc emulates one library function. It must leave the guest as the
// real function would: result placed and control returned through
// call.Ret, or an error to halt the run.
type APIFunc func(call *Call) error

// Table maps canonical API names to their emulations.
type Table map[string]APIFunc

// MergeTables flattens tables into one, later entries overriding earlier
// ones.
func MergeTables(tables ...Table) Table {
	merged := make(Table)
	for _, t := range tables {
		for name, fn := range t {
			merged[name] = fn
		}
	}
	return merged
}

// APIName canonicalizes an import to its dispatch key: the library name
// up to the first dot, lowercased, joined to the symbol with an
// underscore. msvcrt.dll/puts becomes msvcrt_puts.
func APIName(library, symbol string) string {
	base := strings.ToLower(library)
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	return base + "_" + symbol
}

// Call is one intercepted library call.
type Call struct {
	*Context
	Import loader.Import
}

// Context carries per-sandbox state across API emulations, replacing
// shared globals. Handlers stash OS objects and handles under keys of
// their choosing.
type Context struct {
	sandbox *Sandbox
	values  map[string]any
}

func newContext(s *Sandbox) *Context {
	return &Context{sandbox: s, values: make(map[string]any)}
}

func (c *Context) Sandbox() *Sandbox {
	return c.sandbox
}

func (c *Context) Set(key string, value any) {
	c.values[key] = value
}

func (c *Context) Value(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Arg reads the i-th integer argument of the current call per the
// pairing's convention.
func (c *Context) Arg(i int) (uint64, error) {
	s := c.sandbox
	return s.policy.Calling.Arg(s.machine, i)
}

// Args decodes the current call's arguments into the given pointers.
func (c *Context) Args(args ...any) error {
	s := c.sandbox
	return s.policy.Calling.Extract(s.machine, args...)
}

func (c *Context) ReadString(addr uint64) (string, error) {
	return c.sandbox.ReadString(addr)
}

// Ret performs the callee-side return: nargs stack arguments dropped
// where the convention demands it, value placed in the result register,
// control transferred to the caller.
func (c *Context) Ret(nargs int, value uint64) error {
	s := c.sandbox
	return s.policy.Calling.Return(s.machine, nargs, value)
}

// installDispatch plants a hook on every import stub of img, routing
// execution into the merged table.
func (s *Sandbox) installDispatch(img *loader.Image) error {
	for _, imp := range img.Imports {
		if imp.Stub == 0 {
			continue
		}
		imp := imp
		_, err := s.AddBreakpoint(imp.Stub, func(s *Sandbox) bool {
			return s.dispatch(imp)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Sandbox) dispatch(imp loader.Import) bool {
	name := APIName(imp.Library, imp.Symbol)
	pc, err := s.PC()
	if err != nil {
		s.fail(err)
		return false
	}
	fn, ok := s.table[name]
	if !ok {
		s.fail(&APIError{Name: name, PC: pc, Err: ErrUnknownAPI})
		return false
	}
	if !s.cfg.QuietFunctionCalls {
		s.Logger().Info("api call", zap.String("name", name), zap.Uint64("pc", pc))
	}
	err = fn(&Call{Context: s.ctx, Import: imp})
	if err != nil {
		s.fail(&APIError{Name: name, PC: pc, Err: err})
		return false
	}
	return true
}
