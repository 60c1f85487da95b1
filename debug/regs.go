package debug

import (
	"github.com/wnxd/microsandbox/emulator"
	"github.com/wnxd/microsandbox/emulator/arm"
	"github.com/wnxd/microsandbox/emulator/arm64"
	"github.com/wnxd/microsandbox/emulator/x86"
)

type RegName struct {
	Name string
	Reg  emulator.Reg
}

type RegValue struct {
	Name  string
	Value uint64
}

var (
	x86Regs = []RegName{
		{"eax", x86.X86_REG_EAX}, {"ebx", x86.X86_REG_EBX},
		{"ecx", x86.X86_REG_ECX}, {"edx", x86.X86_REG_EDX},
		{"esi", x86.X86_REG_ESI}, {"edi", x86.X86_REG_EDI},
		{"ebp", x86.X86_REG_EBP}, {"esp", x86.X86_REG_ESP},
		{"eip", x86.X86_REG_EIP}, {"eflags", x86.X86_REG_EFLAGS},
	}
	x64Regs = []RegName{
		{"rax", x86.X86_REG_RAX}, {"rbx", x86.X86_REG_RBX},
		{"rcx", x86.X86_REG_RCX}, {"rdx", x86.X86_REG_RDX},
		{"rsi", x86.X86_REG_RSI}, {"rdi", x86.X86_REG_RDI},
		{"rbp", x86.X86_REG_RBP}, {"rsp", x86.X86_REG_RSP},
		{"r8", x86.X86_REG_R8}, {"r9", x86.X86_REG_R9},
		{"r10", x86.X86_REG_R10}, {"r11", x86.X86_REG_R11},
		{"r12", x86.X86_REG_R12}, {"r13", x86.X86_REG_R13},
		{"r14", x86.X86_REG_R14}, {"r15", x86.X86_REG_R15},
		{"rip", x86.X86_REG_RIP}, {"rflags", x86.X86_REG_RFLAGS},
	}
	armRegs = []RegName{
		{"r0", arm.ARM_REG_R0}, {"r1", arm.ARM_REG_R1},
		{"r2", arm.ARM_REG_R2}, {"r3", arm.ARM_REG_R3},
		{"r4", arm.ARM_REG_R4}, {"r5", arm.ARM_REG_R5},
		{"r6", arm.ARM_REG_R6}, {"r7", arm.ARM_REG_R7},
		{"r8", arm.ARM_REG_R8}, {"r9", arm.ARM_REG_R9},
		{"r10", arm.ARM_REG_R10}, {"r11", arm.ARM_REG_R11},
		{"r12", arm.ARM_REG_R12}, {"sp", arm.ARM_REG_SP},
		{"lr", arm.ARM_REG_LR}, {"pc", arm.ARM_REG_PC},
		{"cpsr", arm.ARM_REG_CPSR},
	}
	arm64Regs = []RegName{
		{"x0", arm64.ARM64_REG_X0}, {"x1", arm64.ARM64_REG_X1},
		{"x2", arm64.ARM64_REG_X2}, {"x3", arm64.ARM64_REG_X3},
		{"x4", arm64.ARM64_REG_X4}, {"x5", arm64.ARM64_REG_X5},
		{"x6", arm64.ARM64_REG_X6}, {"x7", arm64.ARM64_REG_X7},
		{"x8", arm64.ARM64_REG_X8}, {"x9", arm64.ARM64_REG_X9},
		{"x10", arm64.ARM64_REG_X10}, {"x11", arm64.ARM64_REG_X11},
		{"x12", arm64.ARM64_REG_X12}, {"x13", arm64.ARM64_REG_X13},
		{"x14", arm64.ARM64_REG_X14}, {"x15", arm64.ARM64_REG_X15},
		{"x16", arm64.ARM64_REG_X16}, {"x17", arm64.ARM64_REG_X17},
		{"x18", arm64.ARM64_REG_X18}, {"x19", arm64.ARM64_REG_X19},
		{"x20", arm64.ARM64_REG_X20}, {"x21", arm64.ARM64_REG_X21},
		{"x22", arm64.ARM64_REG_X22}, {"x23", arm64.ARM64_REG_X23},
		{"x24", arm64.ARM64_REG_X24}, {"x25", arm64.ARM64_REG_X25},
		{"x26", arm64.ARM64_REG_X26}, {"x27", arm64.ARM64_REG_X27},
		{"x28", arm64.ARM64_REG_X28}, {"fp", arm64.ARM64_REG_X29},
		{"lr", arm64.ARM64_REG_X30}, {"sp", arm64.ARM64_REG_SP},
		{"pc", arm64.ARM64_REG_PC},
	}
)

// DisplayRegs is the register set shown for an architecture.
func DisplayRegs(arch emulator.Arch) []RegName {
	switch arch {
	case emulator.ARCH_X86:
		return x86Regs
	case emulator.ARCH_X86_64:
		return x64Regs
	case emulator.ARCH_ARM:
		return armRegs
	case emulator.ARCH_ARM64:
		return arm64Regs
	default:
		return nil
	}
}
