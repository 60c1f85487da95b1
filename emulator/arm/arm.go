package arm

import "github.com/wnxd/microsandbox/emulator"

const (
	ARM_REG_R0 emulator.Reg = iota + 1
	ARM_REG_R1
	ARM_REG_R2
	ARM_REG_R3
	ARM_REG_R4
	ARM_REG_R5
	ARM_REG_R6
	ARM_REG_R7
	ARM_REG_R8
	ARM_REG_R9
	ARM_REG_R10
	ARM_REG_R11
	ARM_REG_R12
	ARM_REG_SP
	ARM_REG_LR
	ARM_REG_PC
	ARM_REG_CPSR

	ARM_REG_D0
	ARM_REG_D1
	ARM_REG_D2
	ARM_REG_D3
	ARM_REG_D4
	ARM_REG_D5
	ARM_REG_D6
	ARM_REG_D7
)

const (
	ARM_REG_FP = ARM_REG_R11
	ARM_REG_IP = ARM_REG_R12
)
