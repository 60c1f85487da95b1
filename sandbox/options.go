package sandbox

import (
	"flag"
	"fmt"
	"strings"
)

type OptionKind int

const (
	OPT_BOOL OptionKind = iota
	OPT_STRING
	OPT_INT
	OPT_STRING_LIST
	OPT_POSITIONAL
)

// Option is a static flag descriptor. Capabilities declare their options
// as data; the composer merges the declarations and rejects any flag
// declared twice with a different definition.
type Option struct {
	Name    string
	Short   string
	Kind    OptionKind
	Default string
	Usage   string
}

func (o Option) equal(other Option) bool {
	return o == other
}

type OptionSet struct {
	opts  []Option
	index map[string]int
}

func NewOptionSet(groups ...[]Option) (*OptionSet, error) {
	s := &OptionSet{index: make(map[string]int)}
	for _, group := range groups {
		err := s.Merge(group)
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *OptionSet) Merge(opts []Option) error {
	for _, opt := range opts {
		if i, ok := s.index[opt.Name]; ok {
			if !s.opts[i].equal(opt) {
				return &ConfigError{Option: opt.Name, Err: ErrOptionConflict}
			}
			continue
		}
		s.index[opt.Name] = len(s.opts)
		s.opts = append(s.opts, opt)
	}
	return nil
}

func (s *OptionSet) Options() []Option {
	return s.opts
}

// Values holds parsed option values keyed by long name.
type Values struct {
	bools   map[string]*bool
	strs    map[string]*string
	ints    map[string]*int
	lists   map[string]*listValue
	posName string
}

type listValue []string

func (l *listValue) String() string {
	return strings.Join(*l, ",")
}

func (l *listValue) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// Bind registers every non-positional option on fs, under both its long
// and short name.
func (s *OptionSet) Bind(fs *flag.FlagSet) *Values {
	v := &Values{
		bools: make(map[string]*bool),
		strs:  make(map[string]*string),
		ints:  make(map[string]*int),
		lists: make(map[string]*listValue),
	}
	for _, opt := range s.opts {
		switch opt.Kind {
		case OPT_BOOL:
			p := fs.Bool(opt.Name, opt.Default == "true", opt.Usage)
			if opt.Short != "" {
				fs.BoolVar(p, opt.Short, opt.Default == "true", opt.Usage)
			}
			v.bools[opt.Name] = p
		case OPT_STRING:
			p := fs.String(opt.Name, opt.Default, opt.Usage)
			if opt.Short != "" {
				fs.StringVar(p, opt.Short, opt.Default, opt.Usage)
			}
			v.strs[opt.Name] = p
		case OPT_INT:
			var def int
			if opt.Default != "" {
				fmt.Sscanf(opt.Default, "%d", &def)
			}
			p := fs.Int(opt.Name, def, opt.Usage)
			if opt.Short != "" {
				fs.IntVar(p, opt.Short, def, opt.Usage)
			}
			v.ints[opt.Name] = p
		case OPT_STRING_LIST:
			p := new(listValue)
			fs.Var(p, opt.Name, opt.Usage)
			if opt.Short != "" {
				fs.Var(p, opt.Short, opt.Usage)
			}
			v.lists[opt.Name] = p
		case OPT_POSITIONAL:
			v.posName = opt.Name
		}
	}
	return v
}

func (v *Values) Bool(name string) bool {
	if p, ok := v.bools[name]; ok {
		return *p
	}
	return false
}

func (v *Values) String(name string) string {
	if p, ok := v.strs[name]; ok {
		return *p
	}
	return ""
}

func (v *Values) Int(name string) int {
	if p, ok := v.ints[name]; ok {
		return *p
	}
	return 0
}

func (v *Values) List(name string) []string {
	if p, ok := v.lists[name]; ok {
		return *p
	}
	return nil
}

// Positional reports the name of the declared positional option, if any.
func (v *Values) Positional() (string, bool) {
	return v.posName, v.posName != ""
}

// BaseOptions are the driver options shared by every pairing.
func BaseOptions() []Option {
	return []Option{
		{Name: "address", Short: "a", Kind: OPT_STRING, Usage: "force start address"},
		{Name: "dumpblocs", Short: "b", Kind: OPT_BOOL, Usage: "log newly translated blocks"},
		{Name: "singlestep", Short: "z", Kind: OPT_BOOL, Usage: "log executed instructions"},
		{Name: "debugging", Short: "d", Kind: OPT_BOOL, Usage: "debug shell"},
		{Name: "gdbserver", Short: "g", Kind: OPT_INT, Default: "0", Usage: "serve remote debugging on port"},
		{Name: "jitter", Short: "j", Kind: OPT_STRING, Default: "gcc", Usage: "translation backend"},
		{Name: "quiet-function-calls", Short: "q", Kind: OPT_BOOL, Usage: "don't log emulated library calls"},
		{Name: "dependencies", Short: "i", Kind: OPT_BOOL, Usage: "load the target's dependencies"},
	}
}
