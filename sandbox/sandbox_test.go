package sandbox_test

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wnxd/microsandbox/emulator"
	"github.com/wnxd/microsandbox/emulator/arm"
	"github.com/wnxd/microsandbox/emulator/emutest"
	"github.com/wnxd/microsandbox/loader"
	"github.com/wnxd/microsandbox/sandbox"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	imageBase uint64 = 0x400000
	imageSize uint64 = 0x2000
)

func writeTarget(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "program.bin")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func testConfig(t *testing.T, data []byte) *sandbox.Config {
	t.Helper()
	cfg := sandbox.NewConfig(writeTarget(t, data))
	cfg.Jitter = "test"
	return cfg
}

func newSandbox(t *testing.T, arch sandbox.ArchCapability, osl sandbox.OSLoaderCapability, cfg *sandbox.Config) *sandbox.Sandbox {
	t.Helper()
	s, err := sandbox.New(arch, osl, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testEngine(t *testing.T, s *sandbox.Sandbox) *emutest.Engine {
	t.Helper()
	eng, ok := s.Engine().(*emutest.Engine)
	require.True(t, ok, "engine is not the scripted backend")
	return eng
}

func engineWord(t *testing.T, eng *emutest.Engine, addr uint64, size int) uint64 {
	t.Helper()
	buf, err := eng.MemRead(addr, uint64(size))
	require.NoError(t, err)
	var v uint64
	for i := len(buf) - 1; i >= 0; i-- {
		v = v<<8 | uint64(buf[i])
	}
	return v
}

func observedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return zap.New(core), logs
}

// fakeLoader maps the raw target bytes read-write-exec at a fixed base,
// standing in for a format parser.
type fakeLoader struct {
	entry   uint64
	base    uint64
	imports []loader.Import
	loadErr error
}

func (f *fakeLoader) Load(emu emulator.Emulator, data []byte, opts loader.Options) (*loader.Image, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	base := f.base
	if base == 0 {
		base = imageBase
	}
	if err := emu.MemMap(base, imageSize, emulator.MEM_PROT_ALL); err != nil {
		return nil, err
	}
	if err := emu.MemWrite(base, data); err != nil {
		return nil, err
	}
	return &loader.Image{Name: opts.Name, Base: base, Size: imageSize, Entry: f.entry, Imports: f.imports}, nil
}

type fakeWinLoader struct {
	fakeLoader
	deps     bool
	libNames []string
	libDir   string
	seh      bool
}

func (f *fakeWinLoader) LoadDependencies(emu emulator.Emulator, data []byte, opts loader.Options) (*loader.Image, error) {
	f.deps = true
	return f.Load(emu, data, opts)
}

func (f *fakeWinLoader) LoadLibraries(emu emulator.Emulator, names []string, dir string) ([]*loader.Image, error) {
	f.libNames = names
	f.libDir = dir
	return []*loader.Image{{Name: names[0], Base: 0x500000, Size: 0x1000}}, nil
}

func (f *fakeWinLoader) InstallSEH(emu emulator.Emulator, img *loader.Image) error {
	f.seh = true
	return nil
}

func TestNewComposesLinuxSandbox(t *testing.T) {
	cfg := testConfig(t, []byte{0xc3})
	s := newSandbox(t, sandbox.X86_32(), sandbox.Linux(&fakeLoader{entry: imageBase}), cfg)

	assert.Equal(t, "linux/x86_32", s.Pairing().String())
	assert.Same(t, cfg, s.Config())
	assert.NotNil(t, s.Context())
	assert.NotNil(t, s.Logger())
	assert.Equal(t, "program.bin", s.Image().Name)

	entry, ok := s.EntryPoint()
	require.True(t, ok)
	assert.Equal(t, imageBase, entry)

	sp, err := s.SP()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x13fffc), sp, "boot pushes only the exit guard")
	eng := testEngine(t, s)
	assert.Equal(t, sandbox.ExitSentinel, engineWord(t, eng, sp, 4))
}

func TestNewWindowsComposition(t *testing.T) {
	cfg := testConfig(t, []byte{0xc3})
	cfg.Dependencies = true
	cfg.LoadBaseDLL = true
	cfg.UseSEH = true
	ldr := &fakeWinLoader{fakeLoader: fakeLoader{entry: imageBase}}
	s := newSandbox(t, sandbox.X86_32(), sandbox.Windows(ldr), cfg)

	assert.Equal(t, "windows/x86_32", s.Pairing().String())
	assert.True(t, ldr.deps, "dependencies flag routes through LoadDependencies")
	assert.True(t, ldr.seh)
	assert.Equal(t, sandbox.WindowsBaseDLLs, ldr.libNames)
	assert.Equal(t, sandbox.WindowsModulesDir, ldr.libDir)
	require.Len(t, s.Libraries(), 1)
	assert.Equal(t, "ntdll.dll", s.Libraries()[0].Name)

	sp, err := s.SP()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x13fff0), sp)
	eng := testEngine(t, s)
	assert.Equal(t, sandbox.ExitSentinel, engineWord(t, eng, sp, 4))
	assert.Equal(t, uint64(2), engineWord(t, eng, sp+12, 4))
}

func TestNewRawComposition(t *testing.T) {
	data := []byte("abc")
	cfg := testConfig(t, data)
	cfg.LoadBaseAddr = "0x300000"
	s := newSandbox(t, sandbox.ARM(), sandbox.LinuxRaw(), cfg)

	_, ok := s.EntryPoint()
	assert.False(t, ok, "flat binaries carry no entry point")
	assert.Equal(t, uint64(0x300000), s.Image().Base)

	eng := testEngine(t, s)
	buf, err := eng.MemRead(0x300000, uint64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, data, buf)

	sp, err := s.SP()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x200000), sp, "raw boot leaves the stack untouched")
	lr, err := s.RegRead(arm.ARM_REG_LR)
	require.NoError(t, err)
	assert.Equal(t, sandbox.ExitSentinel, lr)
}

func TestNewRawRequiresBaseAddress(t *testing.T) {
	cfg := testConfig(t, []byte("abc"))
	_, err := sandbox.New(sandbox.ARM(), sandbox.LinuxRaw(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, loader.ErrBaseAddrRequired)

	cfg = testConfig(t, []byte("abc"))
	cfg.LoadBaseAddr = "nope"
	_, err = sandbox.New(sandbox.ARM(), sandbox.LinuxRaw(), cfg)
	require.Error(t, err)
	var cerr *sandbox.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "load_base_addr", cerr.Option)
}

func TestNewRejectsUnsupportedPairing(t *testing.T) {
	cfg := testConfig(t, []byte{0xc3})
	_, err := sandbox.New(sandbox.X86_32(), sandbox.LinuxRaw(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, sandbox.ErrPairUnsupported)
	var cerr *sandbox.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "pairing", cerr.Option)
	assert.Equal(t, "raw/x86_32", cerr.Detail)
}

type conflictArch struct {
	sandbox.ArchCapability
}

func (conflictArch) Options() []sandbox.Option {
	return []sandbox.Option{{Name: "jitter", Kind: sandbox.OPT_BOOL}}
}

func TestNewRejectsConflictingOptions(t *testing.T) {
	cfg := testConfig(t, []byte{0xc3})
	_, err := sandbox.New(conflictArch{sandbox.X86_32()}, sandbox.Linux(&fakeLoader{}), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, sandbox.ErrOptionConflict)
}

func TestNewRejectsBadAddress(t *testing.T) {
	cfg := testConfig(t, []byte{0xc3})
	cfg.Address = "wat"
	_, err := sandbox.New(sandbox.X86_32(), sandbox.Linux(&fakeLoader{}), cfg)
	require.Error(t, err)
	var cerr *sandbox.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "address", cerr.Option)
	var nerr *strconv.NumError
	assert.ErrorAs(t, err, &nerr)
}

func TestNewUnknownBackend(t *testing.T) {
	cfg := testConfig(t, []byte{0xc3})
	cfg.Jitter = "turbo"
	_, err := sandbox.New(sandbox.X86_32(), sandbox.Linux(&fakeLoader{}), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, emulator.ErrBackendUnknown)
	var cerr *sandbox.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "jitter", cerr.Option)
	assert.Contains(t, cerr.Detail, "test", "detail lists the registered backends")
}

func TestNewMissingTarget(t *testing.T) {
	cfg := sandbox.NewConfig("")
	cfg.Jitter = "test"
	_, err := sandbox.New(sandbox.X86_32(), sandbox.Linux(&fakeLoader{}), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, sandbox.ErrTargetMissing)

	cfg = sandbox.NewConfig(filepath.Join(t.TempDir(), "missing.bin"))
	cfg.Jitter = "test"
	_, err = sandbox.New(sandbox.X86_32(), sandbox.Linux(&fakeLoader{}), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestNewMissingWindowsLoader(t *testing.T) {
	cfg := testConfig(t, []byte{0xc3})
	_, err := sandbox.New(sandbox.X86_32(), sandbox.Windows(nil), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, loader.ErrNoWindowsLoader)
}

func TestNewRejectsReachableSentinel(t *testing.T) {
	cfg := testConfig(t, []byte{0xc3})
	_, err := sandbox.New(sandbox.X86_32(), sandbox.Linux(&fakeLoader{base: 0x1337b000}), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, sandbox.ErrSentinelReachable)
	var serr *sandbox.SentinelError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, sandbox.ExitSentinel, serr.Addr)
}

type archRecorder struct {
	sandbox.ArchCapability
	log *[]string
}

func (a archRecorder) Init(s *sandbox.Sandbox) error {
	*a.log = append(*a.log, "arch")
	return a.ArchCapability.Init(s)
}

type osRecorder struct {
	sandbox.OSLoaderCapability
	log *[]string
}

func (o osRecorder) Init(s *sandbox.Sandbox) error {
	step := "os"
	if s.Engine() != nil {
		step = "os after engine"
	}
	*o.log = append(*o.log, step)
	return o.OSLoaderCapability.Init(s)
}

func TestNewInitOrder(t *testing.T) {
	var log []string
	cfg := testConfig(t, []byte{0xc3})
	newSandbox(t,
		archRecorder{sandbox.X86_32(), &log},
		osRecorder{sandbox.Linux(&fakeLoader{entry: imageBase}), &log},
		cfg,
	)
	assert.Equal(t, []string{"arch", "os after engine"}, log)
}

func TestTraceLogging(t *testing.T) {
	logger, logs := observedLogger()
	cfg := testConfig(t, []byte{0xc3})
	cfg.DumpBlocks = true
	cfg.SingleStep = true
	cfg.Logger = logger
	s := newSandbox(t, sandbox.X86_32(), sandbox.Linux(&fakeLoader{entry: imageBase}), cfg)

	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, 1, logs.FilterMessage("block").Len())
	steps := logs.FilterMessage("step").All()
	require.Len(t, steps, 2, "entry instruction plus the guard address")
	fields := steps[0].ContextMap()
	assert.EqualValues(t, imageBase, fields["address"])
	assert.Contains(t, fields, "eax")
	assert.Contains(t, fields, "eip")

	runs := logs.FilterMessage("run").All()
	require.Len(t, runs, 1)
	assert.Equal(t, "continuous", runs[0].ContextMap()["mode"])
	assert.Equal(t, 1, logs.FilterMessage("guest exited").Len())
}

func TestCloseGuards(t *testing.T) {
	cfg := testConfig(t, []byte{0xc3})
	s := newSandbox(t, sandbox.X86_32(), sandbox.Linux(&fakeLoader{entry: imageBase}), cfg)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	err := s.Run(context.Background())
	assert.ErrorIs(t, err, sandbox.ErrClosed)
	_, err = s.Call(imageBase)
	assert.ErrorIs(t, err, sandbox.ErrClosed)
}
