package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/wnxd/microsandbox/sandbox"
)

var archs = map[string]func() sandbox.ArchCapability{
	"x86_32":   sandbox.X86_32,
	"x86_64":   sandbox.X86_64,
	"arm":      sandbox.ARM,
	"armb":     sandbox.ARMBigEndian,
	"aarch64":  sandbox.AArch64,
	"aarch64b": sandbox.AArch64BigEndian,
}

var oses = map[string]func() sandbox.OSLoaderCapability{
	"windows": func() sandbox.OSLoaderCapability { return sandbox.Windows(nil) },
	"linux":   func() sandbox.OSLoaderCapability { return sandbox.Linux(nil) },
	"raw":     func() sandbox.OSLoaderCapability { return sandbox.LinuxRaw() },
}

func main() {
	var (
		archSel = flag.String("arch", "x86_32", "guest architecture ("+keys(archs)+")")
		osSel   = flag.String("os", "raw", "guest container ("+keys(oses)+")")
		verbose = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if err := run(*archSel, *osSel, *verbose, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(archSel, osSel string, verbose bool, args []string) error {
	newArch, ok := archs[archSel]
	if !ok {
		return fmt.Errorf("unknown arch %q, want one of %s", archSel, keys(archs))
	}
	newOS, ok := oses[osSel]
	if !ok {
		return fmt.Errorf("unknown os %q, want one of %s", osSel, keys(oses))
	}
	arch, osl := newArch(), newOS()

	set, err := sandbox.NewOptionSet(sandbox.BaseOptions(), arch.Options(), osl.Options())
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("microsandbox", flag.ExitOnError)
	vals := set.Bind(fs)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: microsandbox [-arch A] [-os O] [options] <target>")
		if name, ok := vals.Positional(); ok {
			fmt.Fprintf(fs.Output(), " <%s>", name)
		}
		fmt.Fprintln(fs.Output())
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) < 1 {
		fs.Usage()
		return fmt.Errorf("missing target")
	}
	cfg := sandbox.NewConfig(rest[0]).FromValues(vals)
	if name, ok := vals.Positional(); ok {
		if len(rest) < 2 {
			fs.Usage()
			return fmt.Errorf("missing %s", name)
		}
		cfg.LoadBaseAddr = rest[1]
	}

	logger, err := buildLogger(verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()
	cfg.Logger = logger

	s, err := sandbox.New(arch, osl, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return s.Run(ctx)
}

func buildLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func keys[V any](m map[string]V) string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, "|")
}
