package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/xplshn/lumen/pkg/abi"
	"github.com/xplshn/lumen/pkg/cli"
	"modernc.org/libqbe"
)

type Warning int

const (
	WarnUnrecognizedEscape Warning = iota
	WarnOverflow
	WarnUnreachableCode
	WarnImplicitDecl
	WarnType
	WarnCodegen
	WarnPedantic
	WarnExtra
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

type Config struct {
	Warnings   map[Warning]Info
	WarningMap map[string]Warning

	Platform   abi.Platform
	HostTarget string
	GOOS       string
	GOARCH     string

	Seed        int64
	OutputName  string
	RuntimeLibs []string
	LinkerArgs  []string
}

func NewConfig() *Config {
	cfg := &Config{
		Warnings:   make(map[Warning]Info),
		WarningMap: make(map[string]Warning),
		Seed:       -1,
		OutputName: "",
	}

	warnings := map[Warning]Info{
		WarnUnrecognizedEscape: {"u-esc", true, "Warn on unrecognized character escape sequences."},
		WarnOverflow:           {"overflow", true, "Warn when an integer constant is out of range."},
		WarnUnreachableCode:    {"unreachable-code", true, "Warn about statements after return, break, continue or throw."},
		WarnImplicitDecl:       {"implicit-decl", true, "Warn when a function assigns to a name it never declared."},
		WarnType:               {"type", true, "Warn about obvious type mismatches in declarations and calls."},
		WarnCodegen:            {"codegen", false, "Warn when the code generator degrades an unresolved construct to zero."},
		WarnPedantic:           {"pedantic", false, "Issue every warning, including stylistic ones."},
		WarnExtra:              {"extra", true, "Enable extra miscellaneous warnings."},
	}

	cfg.Warnings = warnings
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}
	return cfg
}

// SetTarget selects the ABI. An empty name means the host, as reported by libqbe.
func (c *Config) SetTarget(goos, goarch, name string) error {
	c.GOOS, c.GOARCH = goos, goarch
	c.HostTarget = libqbe.DefaultTarget(goos, goarch)

	if name == "" {
		if goos == "windows" {
			c.Platform = abi.Win64
		} else {
			switch c.HostTarget {
			case "amd64_sysv", "amd64_apple":
				c.Platform = abi.SysV
			default:
				return fmt.Errorf("host target '%s' is not x86-64; pass --target sysv or --target win64", c.HostTarget)
			}
		}
		fmt.Fprintf(os.Stderr, "lumc: info: no target specified, defaulting to host target '%s' (%s)\n", c.HostTarget, c.Platform)
		return nil
	}

	p, err := abi.ParsePlatform(name)
	if err != nil {
		return err
	}
	c.Platform = p
	fmt.Fprintf(os.Stderr, "lumc: info: using specified target '%s'\n", c.Platform)
	return nil
}

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// SetAllWarnings toggles every warning; -Wall never turns on pedantic.
func (c *Config) SetAllWarnings(enabled bool) {
	for i := Warning(0); i < WarnCount; i++ {
		if i == WarnPedantic && enabled {
			continue
		}
		c.SetWarning(i, enabled)
	}
}

// SetupFlagGroups registers -W<name> and -Wno-<name> for every warning.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) []cli.FlagGroupEntry {
	entries := make([]cli.FlagGroupEntry, WarnCount)
	for i := Warning(0); i < WarnCount; i++ {
		info := c.Warnings[i]
		enabled, disabled := false, false
		entries[i] = cli.FlagGroupEntry{
			Name:     info.Name,
			Prefix:   "W",
			Usage:    info.Description,
			Enabled:  &enabled,
			Disabled: &disabled,
		}
	}
	fs.AddFlagGroup("Warning Flags", "Enable or disable specific warnings", "warning", "Available Warnings:", entries)
	return entries
}

// ApplyFlagGroups folds parsed -W flags back into the warning table.
func (c *Config) ApplyFlagGroups(entries []cli.FlagGroupEntry) {
	for i, entry := range entries {
		if entry.Enabled != nil && *entry.Enabled {
			c.SetWarning(Warning(i), true)
		}
		if entry.Disabled != nil && *entry.Disabled {
			c.SetWarning(Warning(i), false)
		}
	}
}

// ApplyWarningName handles "all", "no-all", "pedantic" and any table name with an optional "no-" prefix.
func (c *Config) ApplyWarningName(name string) error {
	enable := !strings.HasPrefix(name, "no-")
	name = strings.TrimPrefix(name, "no-")
	switch name {
	case "all":
		c.SetAllWarnings(enable)
		return nil
	case "pedantic":
		c.SetWarning(WarnPedantic, enable)
		return nil
	}
	w, ok := c.WarningMap[name]
	if !ok {
		return fmt.Errorf("unknown warning '%s'", name)
	}
	c.SetWarning(w, enable)
	return nil
}
