package sandbox

import (
	"github.com/wnxd/microsandbox/emulator"
	"github.com/wnxd/microsandbox/internal/abi"
)

type archCap struct {
	id   ArchID
	opts []Option
	segs bool
}

var x86Options = []Option{
	{Name: "usesegm", Short: "s", Kind: OPT_BOOL, Usage: "enable segment handling"},
}

func X86_32() ArchCapability {
	return &archCap{id: abi.ARCH_X86_32, opts: x86Options, segs: true}
}

func X86_64() ArchCapability {
	return &archCap{id: abi.ARCH_X86_64, opts: x86Options, segs: true}
}

func ARM() ArchCapability {
	return &archCap{id: abi.ARCH_ARML}
}

func ARMBigEndian() ArchCapability {
	return &archCap{id: abi.ARCH_ARMB}
}

func AArch64() ArchCapability {
	return &archCap{id: abi.ARCH_AARCH64L}
}

func AArch64BigEndian() ArchCapability {
	return &archCap{id: abi.ARCH_AARCH64B}
}

func (a *archCap) ID() ArchID {
	return a.id
}

func (a *archCap) Options() []Option {
	return a.opts
}

// Init builds the engine through the backend registry, maps the stack
// region and points SP at its top.
func (a *archCap) Init(s *Sandbox) error {
	prof := s.policy.Profile
	var opts []emulator.Option
	if a.segs && s.cfg.UseSegments {
		opts = append(opts, emulator.WithSegments())
	}
	emu, err := emulator.New(s.cfg.Jitter, prof.Arch, prof.Order, opts...)
	if err != nil {
		return &ConfigError{Option: "jitter", Detail: backendDetail(), Err: err}
	}
	s.emu = emu
	s.machine = abi.NewMachine(emu, prof)
	return s.machine.MapStack()
}

func backendDetail() string {
	names := emulator.Backends()
	if len(names) == 0 {
		return "no backends registered"
	}
	detail := "registered:"
	for _, n := range names {
		detail += " " + n
	}
	return detail
}
