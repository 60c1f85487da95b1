package emulator

// Reg identifies a register within the backend's architecture namespace.
// The per-architecture constant packages define the values.
type Reg int

const REG_INVALID Reg = 0
