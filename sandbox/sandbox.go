package sandbox

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wnxd/microsandbox/emulator"
	"github.com/wnxd/microsandbox/internal/abi"
	"github.com/wnxd/microsandbox/loader"
)

// DefaultProgram is argv[0] of the mimicked environment.
const DefaultProgram = "./program"

// Sandbox is one guest program under one engine instance, prepared with
// the initial process state of the selected arch/OS pairing. It is not
// safe for concurrent use; Stop and Close may be called from other
// goroutines.
type Sandbox struct {
	cfg     *Config
	policy  *abi.Policy
	emu     emulator.Emulator
	machine *abi.Machine

	image    *loader.Image
	libs     []*loader.Image
	hasEntry bool
	address  uint64

	table Table
	ctx   *Context
	debug DebugHooks

	mu     sync.Mutex
	hooks  []emulator.Hook
	fault  error
	exited bool
	closed bool
}

// New composes a sandbox from an architecture capability, an OS loader
// capability and a configuration. The capabilities initialize in a fixed
// order: options are merged and checked, the pairing resolved, the engine
// and stack built, the target loaded, trace hooks applied, the initial
// register and stack state written, and the exit guard installed.
func New(arch ArchCapability, osl OSLoaderCapability, cfg *Config) (*Sandbox, error) {
	if cfg == nil {
		cfg = NewConfig("")
	}
	if _, err := NewOptionSet(BaseOptions(), arch.Options(), osl.Options()); err != nil {
		return nil, err
	}
	policy, ok := abi.Lookup(arch.ID(), osl.ID())
	if !ok {
		pair := Pairing{Arch: arch.ID(), OS: osl.ID()}
		return nil, &ConfigError{Option: "pairing", Detail: pair.String(), Err: ErrPairUnsupported}
	}
	s := &Sandbox{
		cfg:     cfg,
		policy:  policy,
		address: emulator.NO_ADDRESS,
		debug:   DefaultDebugHooks(),
	}
	if cfg.Address != "" {
		addr, err := ParseAddress(cfg.Address)
		if err != nil {
			return nil, &ConfigError{Option: "address", Detail: cfg.Address, Err: err}
		}
		s.address = addr
	}
	if err := s.init(arch, osl); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Sandbox) init(arch ArchCapability, osl OSLoaderCapability) error {
	if err := arch.Init(s); err != nil {
		return err
	}
	s.ctx = newContext(s)
	if err := osl.Init(s); err != nil {
		return err
	}
	if err := s.checkSentinels(); err != nil {
		return err
	}
	if err := s.applyTrace(); err != nil {
		return err
	}
	env := &abi.BootEnv{
		Mimic: s.cfg.MimicEnv,
		Argv:  append([]string{DefaultProgram}, s.cfg.CommandLine...),
		Envp:  s.cfg.EnvironmentVars,
	}
	if err := s.policy.Boot(s.machine, ExitSentinel, env); err != nil {
		return err
	}
	return s.installExitGuard()
}

// Close releases every hook the sandbox installed and the engine itself.
func (s *Sandbox) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	hooks := s.hooks
	s.hooks = nil
	s.mu.Unlock()
	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i].Close()
	}
	if s.emu == nil {
		return nil
	}
	return s.emu.Close()
}

func (s *Sandbox) Engine() emulator.Emulator {
	return s.emu
}

func (s *Sandbox) Pairing() Pairing {
	return s.policy.Pairing
}

// Image is the loaded target.
func (s *Sandbox) Image() *loader.Image {
	return s.image
}

// Libraries are the images preloaded alongside the target.
func (s *Sandbox) Libraries() []*loader.Image {
	return s.libs
}

func (s *Sandbox) Config() *Config {
	return s.cfg
}

func (s *Sandbox) Context() *Context {
	return s.ctx
}

func (s *Sandbox) Logger() *zap.Logger {
	return s.cfg.logger()
}

func (s *Sandbox) setImage(img *loader.Image, hasEntry bool) {
	s.image = img
	s.hasEntry = hasEntry
}

// EntryPoint reports the target's entry address, false when the target
// format carries none.
func (s *Sandbox) EntryPoint() (uint64, bool) {
	if s.image == nil || !s.hasEntry {
		return 0, false
	}
	return s.image.Entry, true
}

func (s *Sandbox) SP() (uint64, error) {
	return s.machine.SP()
}

func (s *Sandbox) SetSP(v uint64) error {
	return s.machine.SetSP(v)
}

func (s *Sandbox) PC() (uint64, error) {
	return s.machine.PC()
}

func (s *Sandbox) SetPC(v uint64) error {
	return s.machine.SetPC(v)
}

func (s *Sandbox) Push(v uint64) error {
	return s.machine.Push(v)
}

func (s *Sandbox) Pop() (uint64, error) {
	return s.machine.Pop()
}

func (s *Sandbox) RegRead(reg emulator.Reg) (uint64, error) {
	return s.emu.RegRead(reg)
}

func (s *Sandbox) RegWrite(reg emulator.Reg, value uint64) error {
	return s.emu.RegWrite(reg, value)
}

// RetVal reads the register the pairing's convention returns values in.
func (s *Sandbox) RetVal() (uint64, error) {
	return s.emu.RegRead(s.policy.Profile.Ret)
}

// ReadString reads the NUL-terminated guest string at addr.
func (s *Sandbox) ReadString(addr uint64) (string, error) {
	return s.machine.Pointer(addr).MemReadString()
}

func (s *Sandbox) track(h emulator.Hook) emulator.Hook {
	s.mu.Lock()
	s.hooks = append(s.hooks, h)
	s.mu.Unlock()
	return h
}

func (s *Sandbox) untrack(h emulator.Hook) {
	s.mu.Lock()
	for i, cur := range s.hooks {
		if cur == h {
			s.hooks = append(s.hooks[:i], s.hooks[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
}

// fail records the first error raised from inside a hook and stops the
// engine; Run surfaces it once Start returns.
func (s *Sandbox) fail(err error) {
	s.mu.Lock()
	if s.fault == nil {
		s.fault = err
	}
	s.mu.Unlock()
	s.emu.Stop()
}

func (s *Sandbox) markExited() {
	s.mu.Lock()
	s.exited = true
	s.mu.Unlock()
}

// takeOutcome returns and clears the result of the last engine run.
func (s *Sandbox) takeOutcome() (error, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	err, exited := s.fault, s.exited
	s.fault, s.exited = nil, false
	return err, exited
}
