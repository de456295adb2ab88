package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Value is the storage behind a flag.
type Value interface {
	String() string
	Set(string) error
}

type stringValue string

func (v *stringValue) Set(s string) error { *v = stringValue(s); return nil }
func (v *stringValue) String() string     { return string(*v) }

type boolValue bool

func (v *boolValue) Set(s string) error {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("invalid boolean '%s'", s)
	}
	*v = boolValue(b)
	return nil
}
func (v *boolValue) String() string { return strconv.FormatBool(bool(*v)) }

type int64Value int64

func (v *int64Value) Set(s string) error {
	n, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return fmt.Errorf("invalid integer '%s'", s)
	}
	*v = int64Value(n)
	return nil
}
func (v *int64Value) String() string { return strconv.FormatInt(int64(*v), 10) }

// listValue collects every occurrence of a repeatable flag.
type listValue []string

func (v *listValue) Set(s string) error { *v = append(*v, s); return nil }
func (v *listValue) String() string     { return strings.Join(*v, ",") }

type Flag struct {
	Name        string
	Shorthand   string
	Usage       string
	Placeholder string
	Default     string
	Value       Value
}

func (fl *Flag) isBool() bool {
	_, ok := fl.Value.(*boolValue)
	return ok
}

// FlagGroupEntry describes one member of a switch family such as -W<name>.
// Enabled and Disabled are set when -<Prefix><Name> or -<Prefix>no-<Name>
// appears on the command line.
type FlagGroupEntry struct {
	Name     string
	Prefix   string
	Usage    string
	Enabled  *bool
	Disabled *bool
}

type FlagGroup struct {
	Name        string
	Description string
	Kind        string
	Header      string
	Entries     []FlagGroupEntry
}

type FlagSet struct {
	name    string
	long    map[string]*Flag
	short   map[string]*Flag
	members map[string]bool
	changed map[string]bool
	groups  []FlagGroup
	args    []string
}

func NewFlagSet(name string) *FlagSet {
	return &FlagSet{
		name:    name,
		long:    make(map[string]*Flag),
		short:   make(map[string]*Flag),
		members: make(map[string]bool),
		changed: make(map[string]bool),
	}
}

// Args returns the positional arguments left after Parse.
func (f *FlagSet) Args() []string { return f.args }

func (f *FlagSet) Lookup(name string) *Flag { return f.long[name] }

// Changed reports whether the last Parse set the named flag.
func (f *FlagSet) Changed(name string) bool { return f.changed[name] }

func (f *FlagSet) String(p *string, name, shorthand, value, usage, placeholder string) {
	*p = value
	f.Var((*stringValue)(p), name, shorthand, usage, placeholder)
}

func (f *FlagSet) Bool(p *bool, name, shorthand string, value bool, usage string) {
	*p = value
	f.Var((*boolValue)(p), name, shorthand, usage, "")
}

func (f *FlagSet) Int64(p *int64, name, shorthand string, value int64, usage, placeholder string) {
	*p = value
	f.Var((*int64Value)(p), name, shorthand, usage, placeholder)
}

func (f *FlagSet) List(p *[]string, name, shorthand, usage, placeholder string) {
	f.Var((*listValue)(p), name, shorthand, usage, placeholder)
}

// Var registers a flag. The current contents of value become its default.
func (f *FlagSet) Var(value Value, name, shorthand, usage, placeholder string) {
	if name == "" {
		panic("cli: flag name cannot be empty")
	}
	if _, dup := f.long[name]; dup {
		panic("cli: flag redefined: " + name)
	}
	fl := &Flag{Name: name, Shorthand: shorthand, Usage: usage, Placeholder: placeholder, Default: value.String(), Value: value}
	f.long[name] = fl
	if shorthand == "" {
		return
	}
	if _, dup := f.short[shorthand]; dup {
		panic("cli: shorthand redefined: " + shorthand)
	}
	f.short[shorthand] = fl
}

// AddFlagGroup registers -<Prefix><Name> and -<Prefix>no-<Name> for every
// entry and lists the family under its own heading in the help page.
func (f *FlagSet) AddFlagGroup(name, description, kind, header string, entries []FlagGroupEntry) {
	for _, e := range entries {
		on, off := e.Prefix+e.Name, e.Prefix+"no-"+e.Name
		if e.Enabled != nil {
			f.Bool(e.Enabled, on, "", *e.Enabled, e.Usage)
			f.members[on] = true
		}
		if e.Disabled != nil {
			f.Bool(e.Disabled, off, "", *e.Disabled, "Disable '"+e.Name+"'")
			f.members[off] = true
		}
	}
	f.groups = append(f.groups, FlagGroup{Name: name, Description: description, Kind: kind, Header: header, Entries: entries})
}

// options returns the flags that are not part of a group, sorted by name.
func (f *FlagSet) options() []*Flag {
	var out []*Flag
	for name, fl := range f.long {
		if !f.members[name] {
			out = append(out, fl)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Parse accepts --name, --name=value, --name value, -name (for long names
// such as group members), -x, -xvalue and -x value. Everything after "--"
// is positional.
func (f *FlagSet) Parse(arguments []string) error {
	f.args = f.args[:0]
	for i := 0; i < len(arguments); i++ {
		arg := arguments[i]
		switch {
		case arg == "--":
			f.args = append(f.args, arguments[i+1:]...)
			return nil
		case len(arg) < 2 || arg[0] != '-':
			f.args = append(f.args, arg)
		default:
			used, err := f.parseFlag(arg, arguments[i+1:])
			if err != nil {
				return err
			}
			i += used
		}
	}
	return nil
}

// parseFlag sets one flag and reports how many following arguments it used.
func (f *FlagSet) parseFlag(arg string, rest []string) (int, error) {
	isLong := strings.HasPrefix(arg, "--")
	body := strings.TrimPrefix(arg[1:], "-")
	name, value, hasValue := strings.Cut(body, "=")

	fl, ok := f.long[name]
	if !ok && !isLong && body != "" {
		if fl, ok = f.short[body[:1]]; ok && len(body) > 1 {
			if fl.isBool() {
				return 0, fmt.Errorf("flag -%s does not take a value", body[:1])
			}
			value, hasValue = strings.TrimPrefix(body[1:], "="), true
		}
	}
	if !ok {
		return 0, fmt.Errorf("unknown flag: %s", arg)
	}

	switch {
	case hasValue:
	case fl.isBool():
		value = "true"
	case len(rest) == 0:
		return 0, fmt.Errorf("flag needs an argument: %s", arg)
	default:
		if err := fl.Value.Set(rest[0]); err != nil {
			return 0, fmt.Errorf("%s: %w", arg, err)
		}
		f.changed[fl.Name] = true
		return 1, nil
	}
	if err := fl.Value.Set(value); err != nil {
		return 0, fmt.Errorf("%s: %w", arg, err)
	}
	f.changed[fl.Name] = true
	return 0, nil
}
