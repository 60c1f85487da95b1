package sandbox_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wnxd/microsandbox/emulator"
	"github.com/wnxd/microsandbox/emulator/emutest"
	"github.com/wnxd/microsandbox/sandbox"
)

func TestModePrecedence(t *testing.T) {
	tests := []struct {
		name      string
		debugging bool
		gdbPort   int
		want      sandbox.Mode
		str       string
	}{
		{"default", false, 0, sandbox.ModeContinuous, "continuous"},
		{"debugging", true, 0, sandbox.ModeInteractiveDebug, "debug"},
		{"remote", false, 5555, sandbox.ModeRemoteDebug, "remote"},
		{"remote wins over debugging", true, 5555, sandbox.ModeRemoteDebug, "remote"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t, []byte{0xc3})
			cfg.Debugging = tt.debugging
			cfg.GDBPort = tt.gdbPort
			s := newSandbox(t, sandbox.X86_32(), sandbox.Linux(&fakeLoader{entry: imageBase}), cfg)
			assert.Equal(t, tt.want, s.Mode())
			assert.Equal(t, tt.str, s.Mode().String())
		})
	}
}

// recordFirst wraps the default instruction semantics and records the
// first executed address.
func recordFirst(eng *emutest.Engine, first *uint64) {
	eng.SetExec(func(e *emutest.Engine, pc uint64) (uint64, error) {
		if *first == 0 {
			*first = pc
		}
		return e.Return(e, pc)
	})
}

func TestRunAddressPrecedence(t *testing.T) {
	t.Run("entry point", func(t *testing.T) {
		cfg := testConfig(t, []byte{0xc3})
		s := newSandbox(t, sandbox.X86_32(), sandbox.Linux(&fakeLoader{entry: imageBase}), cfg)
		var first uint64
		recordFirst(testEngine(t, s), &first)
		require.NoError(t, s.Run(context.Background()))
		assert.Equal(t, imageBase, first)
	})
	t.Run("config address over entry", func(t *testing.T) {
		cfg := testConfig(t, []byte{0xc3})
		cfg.Address = "0x400800"
		s := newSandbox(t, sandbox.X86_32(), sandbox.Linux(&fakeLoader{entry: imageBase}), cfg)
		var first uint64
		recordFirst(testEngine(t, s), &first)
		require.NoError(t, s.Run(context.Background()))
		assert.Equal(t, uint64(0x400800), first)
	})
	t.Run("explicit over config", func(t *testing.T) {
		cfg := testConfig(t, []byte{0xc3})
		cfg.Address = "0x400800"
		s := newSandbox(t, sandbox.X86_32(), sandbox.Linux(&fakeLoader{entry: imageBase}), cfg)
		var first uint64
		recordFirst(testEngine(t, s), &first)
		require.NoError(t, s.RunAt(context.Background(), 0x401000))
		assert.Equal(t, uint64(0x401000), first)
	})
}

func TestRunAtGuardExecutesNothing(t *testing.T) {
	cfg := testConfig(t, []byte{0xc3})
	s := newSandbox(t, sandbox.X86_32(), sandbox.Linux(&fakeLoader{entry: imageBase}), cfg)
	executed := 0
	testEngine(t, s).SetExec(func(e *emutest.Engine, pc uint64) (uint64, error) {
		executed++
		return e.Return(e, pc)
	})
	require.NoError(t, s.RunAt(context.Background(), sandbox.ExitSentinel))
	assert.Zero(t, executed, "the guard halts before any instruction runs")
}

func TestRunNoStartAddress(t *testing.T) {
	cfg := testConfig(t, []byte("abc"))
	cfg.LoadBaseAddr = "0x300000"
	s := newSandbox(t, sandbox.ARM(), sandbox.LinuxRaw(), cfg)
	err := s.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, sandbox.ErrNoStartAddress)
	var rerr *sandbox.RunError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, sandbox.ModeContinuous, rerr.Mode)
}

func TestRunRawExplicitAddress(t *testing.T) {
	cfg := testConfig(t, []byte("abc"))
	cfg.LoadBaseAddr = "0x300000"
	cfg.Address = "0x300000"
	s := newSandbox(t, sandbox.ARMBigEndian(), sandbox.LinuxRaw(), cfg)
	var first uint64
	recordFirst(testEngine(t, s), &first)
	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, uint64(0x300000), first, "link register carries the guard back out")
}

func TestRunContextCanceled(t *testing.T) {
	cfg := testConfig(t, []byte{0xc3})
	s := newSandbox(t, sandbox.X86_32(), sandbox.Linux(&fakeLoader{entry: imageBase}), cfg)
	testEngine(t, s).SetExec(func(e *emutest.Engine, pc uint64) (uint64, error) {
		return pc, nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	var rerr *sandbox.RunError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, imageBase, rerr.Addr)
}

func TestRunFaultsOnUnmappedStart(t *testing.T) {
	cfg := testConfig(t, []byte{0xc3})
	s := newSandbox(t, sandbox.X86_32(), sandbox.Linux(&fakeLoader{entry: imageBase}), cfg)
	err := s.RunAt(context.Background(), 0x900000)
	require.Error(t, err)
	var fault *emulator.MemFault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, emulator.HOOK_TYPE_MEM_FETCH_UNMAPPED, fault.Type)
	assert.Equal(t, uint64(0x900000), fault.PC)
	var rerr *sandbox.RunError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, uint64(0x900000), rerr.Addr)
}

func TestRunDispatchesDebugHooks(t *testing.T) {
	type calls struct {
		interactive bool
		remote      bool
		start       uint64
		port        int
	}
	newHooks := func(c *calls) sandbox.DebugHooks {
		return sandbox.DebugHooks{
			Interactive: func(ctx context.Context, s *sandbox.Sandbox, start uint64) error {
				c.interactive = true
				c.start = start
				return nil
			},
			Remote: func(ctx context.Context, s *sandbox.Sandbox, start uint64, port int) error {
				c.remote = true
				c.start = start
				c.port = port
				return nil
			},
		}
	}

	t.Run("interactive", func(t *testing.T) {
		cfg := testConfig(t, []byte{0xc3})
		cfg.Debugging = true
		s := newSandbox(t, sandbox.X86_32(), sandbox.Linux(&fakeLoader{entry: imageBase}), cfg)
		var c calls
		s.SetDebugHooks(newHooks(&c))
		require.NoError(t, s.Run(context.Background()))
		assert.True(t, c.interactive)
		assert.False(t, c.remote)
		assert.Equal(t, imageBase, c.start)
	})
	t.Run("remote wins", func(t *testing.T) {
		cfg := testConfig(t, []byte{0xc3})
		cfg.Debugging = true
		cfg.GDBPort = 5555
		s := newSandbox(t, sandbox.X86_32(), sandbox.Linux(&fakeLoader{entry: imageBase}), cfg)
		var c calls
		s.SetDebugHooks(newHooks(&c))
		require.NoError(t, s.Run(context.Background()))
		assert.True(t, c.remote)
		assert.False(t, c.interactive)
		assert.Equal(t, 5555, c.port)
	})
	t.Run("nil hook falls back to continuous", func(t *testing.T) {
		cfg := testConfig(t, []byte{0xc3})
		cfg.Debugging = true
		s := newSandbox(t, sandbox.X86_32(), sandbox.Linux(&fakeLoader{entry: imageBase}), cfg)
		s.SetDebugHooks(sandbox.DebugHooks{})
		require.NoError(t, s.Run(context.Background()))
	})
}
