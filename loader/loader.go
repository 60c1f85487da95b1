package loader

import (
	"github.com/wnxd/microsandbox/emulator"
)

type Options struct {
	Name           string
	LoadHeader     bool
	ParseResources bool
}

// Loader parses a guest binary and maps it into engine memory.
// Format parsers (PE, ELF) are supplied by the embedder; the raw loader
// below is the only implementation shipped here.
type Loader interface {
	Load(emu emulator.Emulator, data []byte, opts Options) (*Image, error)
}

type WindowsLoader interface {
	Loader
	LoadLibraries(emu emulator.Emulator, names []string, dir string) ([]*Image, error)
	LoadDependencies(emu emulator.Emulator, data []byte, opts Options) (*Image, error)
	InstallSEH(emu emulator.Emulator, img *Image) error
}

type LinuxLoader interface {
	Loader
}
