package sandbox

import (
	"github.com/wnxd/microsandbox/internal/abi"
)

type (
	ArchID  = abi.ArchID
	OSID    = abi.OSID
	Pairing = abi.Pairing
)

const (
	ARCH_X86_32   = abi.ARCH_X86_32
	ARCH_X86_64   = abi.ARCH_X86_64
	ARCH_ARML     = abi.ARCH_ARML
	ARCH_ARMB     = abi.ARCH_ARMB
	ARCH_AARCH64L = abi.ARCH_AARCH64L
	ARCH_AARCH64B = abi.ARCH_AARCH64B

	OS_WINDOWS = abi.OS_WINDOWS
	OS_LINUX   = abi.OS_LINUX
	OS_RAW     = abi.OS_RAW
)

// ArchCapability contributes the architecture half of a sandbox: the
// engine instance, the stack mapping and any architecture-only options.
type ArchCapability interface {
	ID() ArchID
	Options() []Option
	Init(s *Sandbox) error
}

// OSLoaderCapability contributes the loader half: the guest image, the
// emulated-call dispatch table and the OS-only options. Init runs after
// the architecture capability; the engine is available.
type OSLoaderCapability interface {
	ID() OSID
	Options() []Option
	Init(s *Sandbox) error
}
