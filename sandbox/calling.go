package sandbox

import "github.com/wnxd/microsandbox/internal/abi"

// Calling places arguments and the synthetic return address for a direct
// call, and reads them back inside emulated API implementations.
type Calling = abi.Calling

// Conventions accepted by InvokeWith and CallWith. Each pairing already
// carries a default; these override it per call.
var (
	Stdcall      = abi.Stdcall
	StdcallX64   = abi.StdcallX64
	Cdecl        = abi.Cdecl
	SystemVX86   = abi.SystemVX86
	SystemVAMD64 = abi.SystemVAMD64
	SystemVARM   = abi.SystemVARM
	SystemVARM64 = abi.SystemVARM64
)

// DefaultCalling reports the pairing's default convention.
func (s *Sandbox) DefaultCalling() Calling {
	return s.policy.Calling
}
