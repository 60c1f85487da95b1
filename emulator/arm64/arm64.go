package arm64

import "github.com/wnxd/microsandbox/emulator"

const (
	ARM64_REG_X0 emulator.Reg = iota + 1
	ARM64_REG_X1
	ARM64_REG_X2
	ARM64_REG_X3
	ARM64_REG_X4
	ARM64_REG_X5
	ARM64_REG_X6
	ARM64_REG_X7
	ARM64_REG_X8
	ARM64_REG_X9
	ARM64_REG_X10
	ARM64_REG_X11
	ARM64_REG_X12
	ARM64_REG_X13
	ARM64_REG_X14
	ARM64_REG_X15
	ARM64_REG_X16
	ARM64_REG_X17
	ARM64_REG_X18
	ARM64_REG_X19
	ARM64_REG_X20
	ARM64_REG_X21
	ARM64_REG_X22
	ARM64_REG_X23
	ARM64_REG_X24
	ARM64_REG_X25
	ARM64_REG_X26
	ARM64_REG_X27
	ARM64_REG_X28
	ARM64_REG_X29
	ARM64_REG_X30
	ARM64_REG_SP
	ARM64_REG_PC
	ARM64_REG_NZCV

	ARM64_REG_D0
	ARM64_REG_D1
	ARM64_REG_D2
	ARM64_REG_D3
	ARM64_REG_D4
	ARM64_REG_D5
	ARM64_REG_D6
	ARM64_REG_D7
)

const (
	ARM64_REG_FP = ARM64_REG_X29
	ARM64_REG_LR = ARM64_REG_X30
)
