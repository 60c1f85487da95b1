package x86

import "github.com/wnxd/microsandbox/emulator"

const (
	X86_REG_EAX emulator.Reg = iota + 1
	X86_REG_EBX
	X86_REG_ECX
	X86_REG_EDX
	X86_REG_ESI
	X86_REG_EDI
	X86_REG_EBP
	X86_REG_ESP
	X86_REG_EIP
	X86_REG_EFLAGS

	X86_REG_RAX
	X86_REG_RBX
	X86_REG_RCX
	X86_REG_RDX
	X86_REG_RSI
	X86_REG_RDI
	X86_REG_RBP
	X86_REG_RSP
	X86_REG_RIP
	X86_REG_RFLAGS
	X86_REG_R8
	X86_REG_R9
	X86_REG_R10
	X86_REG_R11
	X86_REG_R12
	X86_REG_R13
	X86_REG_R14
	X86_REG_R15

	X86_REG_XMM0
	X86_REG_XMM1
	X86_REG_XMM2
	X86_REG_XMM3
	X86_REG_XMM4
	X86_REG_XMM5
	X86_REG_XMM6
	X86_REG_XMM7

	X86_REG_CS
	X86_REG_DS
	X86_REG_ES
	X86_REG_FS
	X86_REG_GS
	X86_REG_SS

	X86_REG_FS_BASE
	X86_REG_GS_BASE
)
