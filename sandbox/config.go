package sandbox

import (
	"strconv"

	"go.uber.org/zap"
)

// Config carries every resolved option. It is read-only once the sandbox
// is composed; capabilities only consume the fields their options
// declared.
type Config struct {
	Target  string
	Address string
	Jitter  string

	DumpBlocks         bool
	SingleStep         bool
	Debugging          bool
	GDBPort            int
	QuietFunctionCalls bool
	Dependencies       bool

	LoadHeader     bool
	UseSEH         bool
	LoadBaseDLL    bool
	ParseResources bool

	CommandLine     []string
	EnvironmentVars []string
	MimicEnv        bool

	LoadBaseAddr string

	UseSegments bool

	Logger *zap.Logger
}

func NewConfig(target string) *Config {
	return &Config{Target: target, Jitter: "gcc"}
}

func (c *Config) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// FromValues populates the config from parsed option values.
func (c *Config) FromValues(v *Values) *Config {
	c.Address = v.String("address")
	if j := v.String("jitter"); j != "" {
		c.Jitter = j
	}
	c.DumpBlocks = v.Bool("dumpblocs")
	c.SingleStep = v.Bool("singlestep")
	c.Debugging = v.Bool("debugging")
	c.GDBPort = v.Int("gdbserver")
	c.QuietFunctionCalls = v.Bool("quiet-function-calls")
	c.Dependencies = v.Bool("dependencies")
	c.LoadHeader = v.Bool("load-hdr")
	c.UseSEH = v.Bool("use-seh")
	c.LoadBaseDLL = v.Bool("loadbasedll")
	c.ParseResources = v.Bool("parse-resources")
	c.CommandLine = v.List("command-line")
	c.EnvironmentVars = v.List("environment-vars")
	c.MimicEnv = v.Bool("mimic-env")
	c.UseSegments = v.Bool("usesegm")
	return c
}

// ParseAddress accepts decimal, hex (0x), octal (0o or leading 0) and
// binary (0b) literals.
func ParseAddress(s string) (uint64, error) {
	return strconv.ParseUint(s, 0, 64)
}
