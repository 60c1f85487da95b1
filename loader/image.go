package loader

type Image struct {
	Name    string
	Base    uint64
	Size    uint64
	Entry   uint64
	Imports []Import
}

// Import is an external symbol resolved to a stub address inside the
// image. Executing the stub is expected to trap to the sandbox's
// dispatch table instead of running guest code.
type Import struct {
	Library string
	Symbol  string
	Stub    uint64
}

func (img *Image) Contains(addr uint64) bool {
	return addr >= img.Base && addr < img.Base+img.Size
}

func (img *Image) ImportAt(addr uint64) (Import, bool) {
	for _, imp := range img.Imports {
		if imp.Stub == addr {
			return imp, true
		}
	}
	return Import{}, false
}

func (img *Image) FindImport(library, symbol string) (Import, bool) {
	for _, imp := range img.Imports {
		if imp.Symbol == symbol && (library == "" || imp.Library == library) {
			return imp, true
		}
	}
	return Import{}, false
}
