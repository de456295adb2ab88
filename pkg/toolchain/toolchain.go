// Package toolchain turns generated NASM text into an executable by running
// the external assembler and C compiler driver.
package toolchain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/xplshn/lumen/pkg/abi"
)

// RunFunc runs one external command and returns its combined output.
type RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

type Options struct {
	Conv        abi.Convention
	BuildDir    string
	BinDir      string
	Output      string // explicit executable path; defaults to BinDir/<stem><ExeExt>
	RuntimeLibs []string
	LinkerArgs  []string
	Assembler   string
	Linker      string
	Force       bool // ignore the build stamp
	Run         RunFunc
}

type Result struct {
	AsmPath string
	ObjPath string
	BinPath string
	Cached  bool
}

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

func (o *Options) defaults() {
	if o.BuildDir == "" {
		o.BuildDir = "build"
	}
	if o.BinDir == "" {
		o.BinDir = "bin"
	}
	if o.Assembler == "" {
		o.Assembler = "nasm"
	}
	if o.Linker == "" {
		o.Linker = "cc"
	}
	if o.Run == nil {
		o.Run = execRun
	}
}

// AssemblerArgs builds the nasm command line for one translation unit.
func AssemblerArgs(conv abi.Convention, asmPath, objPath string) []string {
	return []string{"-f", conv.ObjectFormat, asmPath, "-o", objPath}
}

// LinkerArgs builds the cc command line. Runtime objects follow the program
// object so their symbols resolve the program's externs.
func LinkerArgs(conv abi.Convention, objPath, binPath string, runtimeLibs, extra []string) []string {
	var args []string
	if conv.NoPIE {
		args = append(args, "-no-pie")
	}
	args = append(args, objPath)
	args = append(args, runtimeLibs...)
	args = append(args, "-o", binPath)
	args = append(args, extra...)
	if conv.LinkLibc {
		args = append(args, "-lc")
	}
	return args
}

// Stem names build products after the source file: "src/hello.lm" gives "hello".
func Stem(source string) string {
	base := filepath.Base(source)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Fingerprint identifies packaged text together with everything that changes
// the produced binary.
func Fingerprint(text string, opts Options) string {
	h := xxhash.New()
	h.WriteString(opts.Conv.Platform.String())
	h.WriteString("\x00")
	h.WriteString(strings.Join(opts.RuntimeLibs, "\x00"))
	h.WriteString("\x00")
	h.WriteString(strings.Join(opts.LinkerArgs, "\x00"))
	h.WriteString("\x00")
	h.WriteString(text)
	return strconv.FormatUint(h.Sum64(), 16)
}

// Package writes text to BuildDir/<stem>.asm, assembles and links it. When
// the stamp from the previous run matches and the executable still exists,
// nothing is rebuilt.
func Package(ctx context.Context, stem, text string, opts Options) (*Result, error) {
	opts.defaults()
	conv := opts.Conv
	res := &Result{
		AsmPath: filepath.Join(opts.BuildDir, stem+".asm"),
		ObjPath: filepath.Join(opts.BuildDir, stem+conv.ObjectExt),
		BinPath: opts.Output,
	}
	if res.BinPath == "" {
		res.BinPath = filepath.Join(opts.BinDir, stem+conv.ExeExt)
	}
	stampPath := filepath.Join(opts.BuildDir, stem+".stamp")
	sum := Fingerprint(text, opts)

	if !opts.Force && stampMatches(stampPath, sum) && fileExists(res.BinPath) {
		res.Cached = true
		return res, nil
	}

	if err := os.MkdirAll(opts.BuildDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create build directory: %w", err)
	}
	if dir := filepath.Dir(res.BinPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	// A stale stamp must not outlive a failed build.
	os.Remove(stampPath)

	if err := os.WriteFile(res.AsmPath, []byte(text), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write assembly: %w", err)
	}

	if out, err := opts.Run(ctx, opts.Assembler, AssemblerArgs(conv, res.AsmPath, res.ObjPath)...); err != nil {
		return nil, stageError("assembler", opts.Assembler, err, out)
	}
	if out, err := opts.Run(ctx, opts.Linker, LinkerArgs(conv, res.ObjPath, res.BinPath, opts.RuntimeLibs, opts.LinkerArgs)...); err != nil {
		os.Remove(res.BinPath)
		return nil, stageError("linker", opts.Linker, err, out)
	}

	if conv.Platform == abi.Win64 {
		os.Remove(res.ObjPath)
	}
	if err := os.WriteFile(stampPath, []byte(sum+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write build stamp: %w", err)
	}
	return res, nil
}

func stageError(stage, tool string, err error, out []byte) error {
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return fmt.Errorf("%s: %s not found: %w", stage, tool, err)
	}
	msg := strings.TrimSpace(string(out))
	if msg == "" {
		return fmt.Errorf("%s: %s failed: %w", stage, tool, err)
	}
	return fmt.Errorf("%s: %s failed: %w\nOutput:\n%s", stage, tool, err, msg)
}

func stampMatches(path, sum string) bool {
	data, err := os.ReadFile(path)
	return err == nil && strings.TrimSpace(string(data)) == sum
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
