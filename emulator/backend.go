package emulator

import (
	"maps"
	"slices"
)

type Backend func(arch Arch, order ByteOrder, opts ...Option) (Emulator, error)

var backendMap = make(map[string]Backend)

func Register(name string, ctor Backend) bool {
	if _, ok := backendMap[name]; ok {
		return false
	}
	backendMap[name] = ctor
	return true
}

func New(name string, arch Arch, order ByteOrder, opts ...Option) (Emulator, error) {
	if ctor, ok := backendMap[name]; ok {
		return ctor(arch, order, opts...)
	}
	return nil, ErrBackendUnknown
}

func Backends() []string {
	return slices.Sorted(maps.Keys(backendMap))
}
