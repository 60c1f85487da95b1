package sandbox

import (
	"errors"
	"fmt"

	"github.com/wnxd/microsandbox/internal/abi"
)

var (
	ErrOptionConflict    = errors.New("option conflict")
	ErrPairUnsupported   = errors.New("pairing unsupported")
	ErrNoStartAddress    = errors.New("no start address")
	ErrSentinelReachable = errors.New("sentinel address reachable")
	ErrTargetMissing     = errors.New("target missing")
	ErrUnknownAPI        = errors.New("unknown api")
	ErrGuestExited       = errors.New("guest exited")
	ErrClosed            = errors.New("sandbox closed")
)

// ConfigError reports a rejected option or an impossible composition.
type ConfigError struct {
	Option string
	Detail string
	Err    error
}

func (e *ConfigError) Error() string {
	switch {
	case e.Option != "" && e.Detail != "":
		return fmt.Sprintf("config %s: %s: %v", e.Option, e.Detail, e.Err)
	case e.Option != "":
		return fmt.Sprintf("config %s: %v", e.Option, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("config: %s: %v", e.Detail, e.Err)
	default:
		return fmt.Sprintf("config: %v", e.Err)
	}
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// SentinelError reports a guard address that fell inside mapped memory.
type SentinelError struct {
	Addr uint64
}

func (e *SentinelError) Error() string {
	return fmt.Sprintf("sentinel %#x inside mapped memory", e.Addr)
}

func (e *SentinelError) Unwrap() error {
	return ErrSentinelReachable
}

// RunError wraps an execution failure with the pairing, mode and address
// it happened under.
type RunError struct {
	Pairing abi.Pairing
	Mode    Mode
	Addr    uint64
	Err     error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run %s [%s] at %#x: %v", e.Pairing, e.Mode, e.Addr, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// APIError reports a failed or missing emulated library call.
type APIError struct {
	Name string
	PC   uint64
	Err  error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api %s at %#x: %v", e.Name, e.PC, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}
