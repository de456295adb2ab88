package toolchain

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/lumen/pkg/abi"
)

func TestAssemblerArgs(t *testing.T) {
	tests := []struct {
		platform abi.Platform
		want     []string
	}{
		{abi.SysV, []string{"-f", "elf64", "build/p.asm", "-o", "build/p.o"}},
		{abi.Win64, []string{"-f", "win64", "build/p.asm", "-o", "build/p.o"}},
	}
	for _, tt := range tests {
		got := AssemblerArgs(abi.MustLookup(tt.platform), "build/p.asm", "build/p.o")
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("%s: assembler args mismatch (-want +got):\n%s", tt.platform, diff)
		}
	}
}

func TestLinkerArgs(t *testing.T) {
	tests := []struct {
		platform abi.Platform
		want     []string
	}{
		{abi.SysV, []string{"-no-pie", "build/p.o", "liblumenrt.a", "-o", "bin/p", "-s", "-lc"}},
		{abi.Win64, []string{"build/p.obj", "liblumenrt.a", "-o", "bin/p.exe", "-s"}},
	}
	for _, tt := range tests {
		conv := abi.MustLookup(tt.platform)
		got := LinkerArgs(conv, "build/p"+conv.ObjectExt, "bin/p"+conv.ExeExt, []string{"liblumenrt.a"}, []string{"-s"})
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("%s: linker args mismatch (-want +got):\n%s", tt.platform, diff)
		}
	}
}

func TestStem(t *testing.T) {
	for in, want := range map[string]string{"hello.lm": "hello", "a/b/prog.lm": "prog", "noext": "noext"} {
		if got := Stem(in); got != want {
			t.Errorf("Stem(%q) = %q, want %q", in, got, want)
		}
	}
}

// fakeTools records every invocation and creates the file named after -o.
type fakeTools struct {
	calls  [][]string
	failOn string
}

func (f *fakeTools) run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if name == f.failOn {
		return []byte("boom"), errors.New("exit status 1")
	}
	for i, a := range args {
		if a == "-o" && i+1 < len(args) {
			if err := os.WriteFile(args[i+1], nil, 0o755); err != nil {
				return nil, err
			}
		}
	}
	return nil, nil
}

func newOptions(t *testing.T, p abi.Platform, tools *fakeTools) Options {
	dir := t.TempDir()
	return Options{
		Conv:     abi.MustLookup(p),
		BuildDir: filepath.Join(dir, "build"),
		BinDir:   filepath.Join(dir, "bin"),
		Run:      tools.run,
	}
}

func TestPackageStamp(t *testing.T) {
	tools := &fakeTools{}
	opts := newOptions(t, abi.SysV, tools)

	res, err := Package(context.Background(), "prog", "section .text\n", opts)
	if err != nil {
		t.Fatal(err)
	}
	if res.Cached || len(tools.calls) != 2 {
		t.Fatalf("first build: cached=%v calls=%d", res.Cached, len(tools.calls))
	}
	if tools.calls[0][0] != "nasm" || tools.calls[1][0] != "cc" {
		t.Errorf("unexpected tools: %v", tools.calls)
	}
	if !fileExists(res.ObjPath) {
		t.Error("SysV object file was removed")
	}

	res, err = Package(context.Background(), "prog", "section .text\n", opts)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Cached || len(tools.calls) != 2 {
		t.Errorf("unchanged text rebuilt: cached=%v calls=%d", res.Cached, len(tools.calls))
	}

	if _, err := Package(context.Background(), "prog", "section .data\n", opts); err != nil {
		t.Fatal(err)
	}
	if len(tools.calls) != 4 {
		t.Errorf("changed text did not rebuild: calls=%d", len(tools.calls))
	}
}

func TestPackageWin64RemovesObject(t *testing.T) {
	tools := &fakeTools{}
	opts := newOptions(t, abi.Win64, tools)
	res, err := Package(context.Background(), "prog", "x", opts)
	if err != nil {
		t.Fatal(err)
	}
	if fileExists(res.ObjPath) {
		t.Error("Win64 object file was kept")
	}
	if !strings.HasSuffix(res.BinPath, "prog.exe") {
		t.Errorf("BinPath = %q", res.BinPath)
	}
}

func TestPackageStageErrors(t *testing.T) {
	for _, tt := range []struct{ tool, stage string }{{"nasm", "assembler"}, {"cc", "linker"}} {
		tools := &fakeTools{failOn: tt.tool}
		opts := newOptions(t, abi.SysV, tools)
		_, err := Package(context.Background(), "prog", "x", opts)
		if err == nil || !strings.HasPrefix(err.Error(), tt.stage+": ") || !strings.Contains(err.Error(), "boom") {
			t.Errorf("%s failure: got %v", tt.tool, err)
		}
		if fileExists(filepath.Join(opts.BuildDir, "prog.stamp")) {
			t.Errorf("%s failure left a stamp", tt.tool)
		}
		if tt.tool == "cc" && fileExists(filepath.Join(opts.BinDir, "prog")) {
			t.Error("linker failure left a binary")
		}
	}
}
