package sandbox

import (
	"os"
	"path/filepath"

	"github.com/wnxd/microsandbox/loader"
)

// WindowsBaseDLLs lists the modules preloaded before the target when
// loadbasedll is set, in load order.
var WindowsBaseDLLs = []string{
	"ntdll.dll",
	"kernel32.dll",
	"user32.dll",
	"ole32.dll",
	"urlmon.dll",
	"ws2_32.dll",
	"advapi32.dll",
	"psapi.dll",
}

// WindowsModulesDir is the directory searched for base DLL images.
const WindowsModulesDir = "win_dll"

var winOptions = []Option{
	{Name: "load-hdr", Short: "o", Kind: OPT_BOOL, Usage: "load image headers"},
	{Name: "use-seh", Short: "y", Kind: OPT_BOOL, Usage: "install structured exception handling chain"},
	{Name: "loadbasedll", Short: "l", Kind: OPT_BOOL, Usage: "preload the base DLL set from " + WindowsModulesDir},
	{Name: "parse-resources", Short: "r", Kind: OPT_BOOL, Usage: "parse image resources"},
}

var linuxOptions = []Option{
	{Name: "command-line", Short: "c", Kind: OPT_STRING_LIST, Usage: "command line arguments"},
	{Name: "environment-vars", Kind: OPT_STRING_LIST, Usage: "environment variables"},
	{Name: "mimic-env", Kind: OPT_BOOL, Usage: "mimic the env of a command line executable"},
}

var rawOptions = []Option{
	{Name: "load_base_addr", Kind: OPT_POSITIONAL, Usage: "address the binary is mapped at"},
}

type winCap struct {
	ldr    loader.WindowsLoader
	tables []Table
}

// Windows builds the OS capability for PE targets. The loader performs the
// image mapping; tables supply the API handlers installed over the target's
// imports, later tables overriding earlier ones.
func Windows(ldr loader.WindowsLoader, tables ...Table) OSLoaderCapability {
	return &winCap{ldr: ldr, tables: tables}
}

func (w *winCap) ID() OSID { return OS_WINDOWS }

func (w *winCap) Options() []Option { return winOptions }

func (w *winCap) Init(s *Sandbox) error {
	cfg := s.cfg
	if w.ldr == nil {
		return &loader.LoadError{Name: cfg.Target, Err: loader.ErrNoWindowsLoader}
	}
	data, err := readTarget(cfg.Target)
	if err != nil {
		return err
	}
	opts := loader.Options{
		Name:           filepath.Base(cfg.Target),
		LoadHeader:     cfg.LoadHeader,
		ParseResources: cfg.ParseResources,
	}
	var img *loader.Image
	if cfg.Dependencies {
		img, err = w.ldr.LoadDependencies(s.emu, data, opts)
	} else {
		img, err = w.ldr.Load(s.emu, data, opts)
	}
	if err != nil {
		return &loader.LoadError{Name: opts.Name, Err: err}
	}
	if cfg.LoadBaseDLL {
		libs, err := w.ldr.LoadLibraries(s.emu, WindowsBaseDLLs, WindowsModulesDir)
		if err != nil {
			return err
		}
		s.libs = libs
	}
	s.table = MergeTables(w.tables...)
	if err := s.installDispatch(img); err != nil {
		return err
	}
	for _, lib := range s.libs {
		if err := s.installDispatch(lib); err != nil {
			return err
		}
	}
	if cfg.UseSEH {
		if err := w.ldr.InstallSEH(s.emu, img); err != nil {
			return &loader.LoadError{Name: opts.Name, Err: err}
		}
	}
	s.setImage(img, true)
	return nil
}

type linuxCap struct {
	ldr    loader.LinuxLoader
	tables []Table
}

// Linux builds the OS capability for ELF targets.
func Linux(ldr loader.LinuxLoader, tables ...Table) OSLoaderCapability {
	return &linuxCap{ldr: ldr, tables: tables}
}

func (l *linuxCap) ID() OSID { return OS_LINUX }

func (l *linuxCap) Options() []Option { return linuxOptions }

func (l *linuxCap) Init(s *Sandbox) error {
	cfg := s.cfg
	if l.ldr == nil {
		return &loader.LoadError{Name: cfg.Target, Err: loader.ErrNoLinuxLoader}
	}
	data, err := readTarget(cfg.Target)
	if err != nil {
		return err
	}
	opts := loader.Options{Name: filepath.Base(cfg.Target)}
	img, err := l.ldr.Load(s.emu, data, opts)
	if err != nil {
		return &loader.LoadError{Name: opts.Name, Err: err}
	}
	s.table = MergeTables(l.tables...)
	if err := s.installDispatch(img); err != nil {
		return err
	}
	s.setImage(img, true)
	return nil
}

type rawCap struct {
	tables []Table
}

// LinuxRaw builds the OS capability for flat binary blobs mapped at a fixed
// address. The target carries no entry point, so a run address must come
// from the address option or an explicit argument.
func LinuxRaw(tables ...Table) OSLoaderCapability {
	return &rawCap{tables: tables}
}

func (r *rawCap) ID() OSID { return OS_RAW }

func (r *rawCap) Options() []Option { return rawOptions }

func (r *rawCap) Init(s *Sandbox) error {
	cfg := s.cfg
	if cfg.LoadBaseAddr == "" {
		return &ConfigError{Option: "load_base_addr", Err: loader.ErrBaseAddrRequired}
	}
	base, err := ParseAddress(cfg.LoadBaseAddr)
	if err != nil {
		return &ConfigError{Option: "load_base_addr", Detail: cfg.LoadBaseAddr, Err: err}
	}
	data, err := readTarget(cfg.Target)
	if err != nil {
		return err
	}
	img, err := loader.Raw{Base: base}.Load(s.emu, data, loader.Options{Name: filepath.Base(cfg.Target)})
	if err != nil {
		return &loader.LoadError{Name: cfg.Target, Err: err}
	}
	s.table = MergeTables(r.tables...)
	s.setImage(img, false)
	return nil
}

func readTarget(name string) ([]byte, error) {
	if name == "" {
		return nil, &ConfigError{Option: "target", Err: ErrTargetMissing}
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, &loader.LoadError{Name: name, Err: err}
	}
	return data, nil
}
