// Package abi describes the two x86-64 calling conventions the code generator targets.
package abi

import (
	"fmt"
	"strings"
)

type Platform int

const (
	SysV Platform = iota
	Win64
)

func (p Platform) String() string {
	switch p {
	case SysV:
		return "sysv"
	case Win64:
		return "win64"
	}
	return fmt.Sprintf("platform(%d)", int(p))
}

// ParsePlatform accepts the convention names and the OS aliases used on the command line.
func ParsePlatform(name string) (Platform, error) {
	switch strings.ToLower(name) {
	case "sysv", "linux", "elf64", "amd64_sysv":
		return SysV, nil
	case "win64", "windows":
		return Win64, nil
	}
	return SysV, fmt.Errorf("unsupported target '%s'. Supported: 'sysv' (linux), 'win64' (windows)", name)
}

// Convention is everything the backend needs to know about one ABI.
type Convention struct {
	Platform     Platform
	ArgRegs      []string
	ShadowSpace  int
	CalleeSaved  []string
	Accumulator  string
	Scratch      string
	ObjectFormat string
	ObjectExt    string
	ExeExt       string
	GNUStackNote bool
	NoPIE        bool
	LinkLibc     bool
}

var conventions = map[Platform]Convention{
	SysV: {
		Platform:     SysV,
		ArgRegs:      []string{"rdi", "rsi", "rdx", "rcx", "r8", "r9"},
		ShadowSpace:  0,
		CalleeSaved:  []string{"rbx", "rbp", "r12", "r13", "r14", "r15"},
		Accumulator:  "rax",
		Scratch:      "rbx",
		ObjectFormat: "elf64",
		ObjectExt:    ".o",
		ExeExt:       "",
		GNUStackNote: true,
		NoPIE:        true,
		LinkLibc:     true,
	},
	Win64: {
		Platform:     Win64,
		ArgRegs:      []string{"rcx", "rdx", "r8", "r9"},
		ShadowSpace:  32,
		CalleeSaved:  []string{"rbx", "rbp", "rdi", "rsi", "r12", "r13", "r14", "r15"},
		Accumulator:  "rax",
		Scratch:      "rbx",
		ObjectFormat: "win64",
		ObjectExt:    ".obj",
		ExeExt:       ".exe",
		GNUStackNote: false,
		NoPIE:        false,
		LinkLibc:     false,
	},
}

func Lookup(p Platform) (Convention, error) {
	c, ok := conventions[p]
	if !ok {
		return Convention{}, fmt.Errorf("no calling convention for %s", p)
	}
	return c, nil
}

// MustLookup is Lookup for platforms that came from ParsePlatform.
func MustLookup(p Platform) Convention {
	c, err := Lookup(p)
	if err != nil {
		panic(err)
	}
	return c
}

// ArgLocation reports where argument i travels: a register name, or, past the
// register count, an offset from rsp at the call (shadow space included).
func (c Convention) ArgLocation(i int) (reg string, stackOff int) {
	if i < len(c.ArgRegs) {
		return c.ArgRegs[i], 0
	}
	return "", c.ShadowSpace + 8*(i-len(c.ArgRegs))
}

// ParamOffset is where the callee finds stack argument i relative to rbp,
// after push rbp.
func (c Convention) ParamOffset(i int) int {
	return 16 + c.ShadowSpace + 8*(i-len(c.ArgRegs))
}

// OutgoingArea is the stack needed for calls with up to maxArgs arguments.
func (c Convention) OutgoingArea(maxArgs int) int {
	extra := maxArgs - len(c.ArgRegs)
	if extra < 0 {
		extra = 0
	}
	return c.ShadowSpace + 8*extra
}

// FrameSize is the amount subtracted from rsp after push rbp and push rbx so
// that rsp is 16-byte aligned at every call. Slot i lives at [rbp-16-8*i].
func (c Convention) FrameSize(slots, maxArgs int) int {
	body := 8*slots + c.OutgoingArea(maxArgs)
	return ((body+8+15)&^15) - 8
}

// SlotOffset is the rbp-relative displacement of frame slot i.
func SlotOffset(i int) int { return -16 - 8*i }
