package abi

import (
	"github.com/wnxd/microsandbox/emulator"
	"github.com/wnxd/microsandbox/emulator/arm"
	"github.com/wnxd/microsandbox/emulator/arm64"
	"github.com/wnxd/microsandbox/emulator/x86"
)

type ArchID int

const (
	ARCH_INVALID ArchID = iota
	ARCH_X86_32
	ARCH_X86_64
	ARCH_ARML
	ARCH_ARMB
	ARCH_AARCH64L
	ARCH_AARCH64B
)

func (a ArchID) String() string {
	switch a {
	case ARCH_X86_32:
		return "x86_32"
	case ARCH_X86_64:
		return "x86_64"
	case ARCH_ARML:
		return "arml"
	case ARCH_ARMB:
		return "armb"
	case ARCH_AARCH64L:
		return "aarch64l"
	case ARCH_AARCH64B:
		return "aarch64b"
	default:
		return "invalid"
	}
}

type OSID int

const (
	OS_INVALID OSID = iota
	OS_WINDOWS
	OS_LINUX
	OS_RAW
)

func (o OSID) String() string {
	switch o {
	case OS_WINDOWS:
		return "windows"
	case OS_LINUX:
		return "linux"
	case OS_RAW:
		return "raw"
	default:
		return "invalid"
	}
}

type Pairing struct {
	Arch ArchID
	OS   OSID
}

func (p Pairing) String() string {
	return p.OS.String() + "/" + p.Arch.String()
}

// Profile fixes the machine-level constants of one architecture variant:
// stack geometry, word width, byte order and the registers the sandbox
// touches. LR is zero when the architecture keeps return addresses on the
// stack.
type Profile struct {
	Arch       emulator.Arch
	Order      emulator.ByteOrder
	WordSize   int
	StackBase  uint64
	StackSize  uint64
	StackAlign uint64
	SP, PC     emulator.Reg
	LR         emulator.Reg
	Ret        emulator.Reg
}

type BootEnv struct {
	Mimic bool
	Argv  []string
	Envp  []string
}

type BootFunc func(m *Machine, sentinel uint64, env *BootEnv) error

// Policy is one row of the pairing table: how to lay out the initial
// process state and which calling convention direct calls default to.
type Policy struct {
	Pairing Pairing
	Profile *Profile
	Boot    BootFunc
	Calling Calling
}

var (
	profileX86_32 = &Profile{
		Arch:       emulator.ARCH_X86,
		Order:      emulator.BO_LITTLE_ENDIAN,
		WordSize:   4,
		StackBase:  0x130000,
		StackSize:  0x10000,
		StackAlign: 4,
		SP:         x86.X86_REG_ESP,
		PC:         x86.X86_REG_EIP,
		Ret:        x86.X86_REG_EAX,
	}
	profileX86_64 = &Profile{
		Arch:       emulator.ARCH_X86_64,
		Order:      emulator.BO_LITTLE_ENDIAN,
		WordSize:   8,
		StackBase:  0x130000,
		StackSize:  0x10000,
		StackAlign: 8,
		SP:         x86.X86_REG_RSP,
		PC:         x86.X86_REG_RIP,
		Ret:        x86.X86_REG_RAX,
	}
	profileARML = &Profile{
		Arch:       emulator.ARCH_ARM,
		Order:      emulator.BO_LITTLE_ENDIAN,
		WordSize:   4,
		StackBase:  0x100000,
		StackSize:  0x100000,
		StackAlign: 8,
		SP:         arm.ARM_REG_SP,
		PC:         arm.ARM_REG_PC,
		LR:         arm.ARM_REG_LR,
		Ret:        arm.ARM_REG_R0,
	}
	profileARMB = &Profile{
		Arch:       emulator.ARCH_ARM,
		Order:      emulator.BO_BIG_ENDIAN,
		WordSize:   4,
		StackBase:  0x100000,
		StackSize:  0x100000,
		StackAlign: 8,
		SP:         arm.ARM_REG_SP,
		PC:         arm.ARM_REG_PC,
		LR:         arm.ARM_REG_LR,
		Ret:        arm.ARM_REG_R0,
	}
	profileAArch64L = &Profile{
		Arch:       emulator.ARCH_ARM64,
		Order:      emulator.BO_LITTLE_ENDIAN,
		WordSize:   8,
		StackBase:  0x100000,
		StackSize:  0x100000,
		StackAlign: 16,
		SP:         arm64.ARM64_REG_SP,
		PC:         arm64.ARM64_REG_PC,
		LR:         arm64.ARM64_REG_LR,
		Ret:        arm64.ARM64_REG_X0,
	}
	profileAArch64B = &Profile{
		Arch:       emulator.ARCH_ARM64,
		Order:      emulator.BO_BIG_ENDIAN,
		WordSize:   8,
		StackBase:  0x100000,
		StackSize:  0x100000,
		StackAlign: 16,
		SP:         arm64.ARM64_REG_SP,
		PC:         arm64.ARM64_REG_PC,
		LR:         arm64.ARM64_REG_LR,
		Ret:        arm64.ARM64_REG_X0,
	}
)

var policies = map[Pairing]*Policy{
	{ARCH_X86_32, OS_WINDOWS}: {Profile: profileX86_32, Boot: bootWinX86_32, Calling: Stdcall},
	{ARCH_X86_64, OS_WINDOWS}: {Profile: profileX86_64, Boot: bootWinX86_64, Calling: StdcallX64},

	{ARCH_X86_32, OS_LINUX}:   {Profile: profileX86_32, Boot: bootLinuxX86, Calling: SystemVX86},
	{ARCH_X86_64, OS_LINUX}:   {Profile: profileX86_64, Boot: bootLinuxX86, Calling: SystemVAMD64},
	{ARCH_ARML, OS_LINUX}:     {Profile: profileARML, Boot: bootLinuxARM, Calling: SystemVARM},
	{ARCH_ARMB, OS_LINUX}:     {Profile: profileARMB, Boot: bootLinuxARM, Calling: SystemVARM},
	{ARCH_AARCH64L, OS_LINUX}: {Profile: profileAArch64L, Boot: bootLinuxARM, Calling: SystemVARM64},
	{ARCH_AARCH64B, OS_LINUX}: {Profile: profileAArch64B, Boot: bootLinuxARM, Calling: SystemVARM64},

	{ARCH_ARML, OS_RAW}:     {Profile: profileARML, Boot: bootRaw, Calling: SystemVARM},
	{ARCH_ARMB, OS_RAW}:     {Profile: profileARMB, Boot: bootRaw, Calling: SystemVARM},
	{ARCH_AARCH64L, OS_RAW}: {Profile: profileAArch64L, Boot: bootRaw, Calling: SystemVARM64},
	{ARCH_AARCH64B, OS_RAW}: {Profile: profileAArch64B, Boot: bootRaw, Calling: SystemVARM64},
}

func Lookup(arch ArchID, os OSID) (*Policy, bool) {
	p, ok := policies[Pairing{arch, os}]
	if !ok {
		return nil, false
	}
	c := *p
	c.Pairing = Pairing{arch, os}
	return &c, true
}

func Pairings() []Pairing {
	keys := make([]Pairing, 0, len(policies))
	for k := range policies {
		keys = append(keys, k)
	}
	return keys
}
