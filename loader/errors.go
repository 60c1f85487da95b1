package loader

import (
	"errors"
	"fmt"
)

var (
	ErrImageEmpty       = errors.New("image empty")
	ErrFormatUnknown    = errors.New("format unknown")
	ErrNoWindowsLoader  = errors.New("no windows loader")
	ErrNoLinuxLoader    = errors.New("no linux loader")
	ErrSymbolNotFound   = errors.New("symbol not found")
	ErrLibraryNotFound  = errors.New("library not found")
	ErrRegionUnaligned  = errors.New("region unaligned")
	ErrBaseAddrRequired = errors.New("base address required")
)

type LoadError struct {
	Name string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("load: %v", e.Err)
	}
	return fmt.Sprintf("load %s: %v", e.Name, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
