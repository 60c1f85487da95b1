package sandbox_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wnxd/microsandbox/emulator/emutest"
	"github.com/wnxd/microsandbox/loader"
	"github.com/wnxd/microsandbox/sandbox"
)

const stubAddr = imageBase + 0x80

func TestAPIName(t *testing.T) {
	tests := []struct {
		library, symbol, want string
	}{
		{"msvcrt.dll", "puts", "msvcrt_puts"},
		{"KERNEL32.DLL", "ExitProcess", "kernel32_ExitProcess"},
		{"libc.so.6", "printf", "libc_printf"},
		{"ws2_32", "send", "ws2_32_send"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sandbox.APIName(tt.library, tt.symbol))
	}
}

func TestMergeTables(t *testing.T) {
	var got string
	first := sandbox.Table{
		"msvcrt_puts": func(*sandbox.Call) error { got = "first"; return nil },
		"msvcrt_exit": func(*sandbox.Call) error { got = "exit"; return nil },
	}
	second := sandbox.Table{
		"msvcrt_puts": func(*sandbox.Call) error { got = "second"; return nil },
	}
	merged := sandbox.MergeTables(first, second)
	require.Len(t, merged, 2)
	require.NoError(t, merged["msvcrt_puts"](nil))
	assert.Equal(t, "second", got, "later tables override earlier ones")
}

func putsImport() loader.Import {
	return loader.Import{Library: "msvcrt.dll", Symbol: "puts", Stub: stubAddr}
}

func newDispatchSandbox(t *testing.T, cfg *sandbox.Config, table sandbox.Table) *sandbox.Sandbox {
	t.Helper()
	ldr := &fakeWinLoader{fakeLoader: fakeLoader{entry: imageBase, imports: []loader.Import{putsImport()}}}
	return newSandbox(t, sandbox.X86_32(), sandbox.Windows(ldr, table), cfg)
}

func TestDispatchEmulatedCall(t *testing.T) {
	logger, logs := observedLogger()
	cfg := testConfig(t, []byte{0xc3})
	cfg.Logger = logger

	var gotText string
	var gotSymbol string
	table := sandbox.Table{
		"msvcrt_puts": func(call *sandbox.Call) error {
			gotSymbol = call.Import.Symbol
			if err := call.Args(&gotText); err != nil {
				return err
			}
			return call.Ret(1, 7)
		},
	}
	s := newDispatchSandbox(t, cfg, table)
	executed := 0
	testEngine(t, s).SetExec(func(e *emutest.Engine, pc uint64) (uint64, error) {
		executed++
		return e.Return(e, pc)
	})

	ret, err := s.Call(stubAddr, "hello")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), ret)
	assert.Equal(t, "hello", gotText)
	assert.Equal(t, "puts", gotSymbol)
	assert.Zero(t, executed, "the emulation runs entirely inside the trap")

	calls := logs.FilterMessage("api call").All()
	require.Len(t, calls, 1)
	assert.Equal(t, "msvcrt_puts", calls[0].ContextMap()["name"])
}

func TestDispatchQuiet(t *testing.T) {
	logger, logs := observedLogger()
	cfg := testConfig(t, []byte{0xc3})
	cfg.Logger = logger
	cfg.QuietFunctionCalls = true

	table := sandbox.Table{
		"msvcrt_puts": func(call *sandbox.Call) error { return call.Ret(1, 0) },
	}
	s := newDispatchSandbox(t, cfg, table)

	_, err := s.Call(stubAddr, "hello")
	require.NoError(t, err)
	assert.Zero(t, logs.FilterMessage("api call").Len())
}

func TestDispatchAtEntryStub(t *testing.T) {
	// A target whose start address is itself an import stub runs the
	// emulation and returns straight into the boot guard.
	cfg := testConfig(t, []byte{0xc3})
	table := sandbox.Table{
		"msvcrt_puts": func(call *sandbox.Call) error { return call.Ret(0, 5) },
	}
	s := newDispatchSandbox(t, cfg, table)

	require.NoError(t, s.RunAt(context.Background(), stubAddr))
	ret, err := s.RetVal()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), ret)
}

func TestDispatchUnknownAPI(t *testing.T) {
	cfg := testConfig(t, []byte{0xc3})
	s := newDispatchSandbox(t, cfg, nil)

	err := s.RunAt(context.Background(), stubAddr)
	require.Error(t, err)
	assert.ErrorIs(t, err, sandbox.ErrUnknownAPI)
	var aerr *sandbox.APIError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "msvcrt_puts", aerr.Name)
	assert.Equal(t, uint64(stubAddr), aerr.PC)
}

func TestDispatchHandlerError(t *testing.T) {
	cfg := testConfig(t, []byte{0xc3})
	boom := errors.New("boom")
	table := sandbox.Table{
		"msvcrt_puts": func(call *sandbox.Call) error { return boom },
	}
	s := newDispatchSandbox(t, cfg, table)

	err := s.RunAt(context.Background(), stubAddr)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	var aerr *sandbox.APIError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "msvcrt_puts", aerr.Name)
}

func TestContextValues(t *testing.T) {
	cfg := testConfig(t, []byte{0xc3})
	var second any
	table := sandbox.Table{
		"msvcrt_puts": func(call *sandbox.Call) error {
			if v, ok := call.Value("handle"); ok {
				second = v
			} else {
				call.Set("handle", 0x20)
			}
			return call.Ret(1, 0)
		},
	}
	s := newDispatchSandbox(t, cfg, table)
	assert.Same(t, s, s.Context().Sandbox())

	_, err := s.Call(stubAddr, "a")
	require.NoError(t, err)
	assert.Nil(t, second)
	_, err = s.Call(stubAddr, "b")
	require.NoError(t, err)
	assert.Equal(t, 0x20, second, "handler state persists across calls")
}
