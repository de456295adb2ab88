package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

type Execution struct {
	Stdout         string        `json:"stdout"`
	Stderr         string        `json:"stderr"`
	ExitCode       int           `json:"exitCode"`
	Duration       time.Duration `json:"duration"`
	TimedOut       bool          `json:"timed_out"`
	UnstableOutput bool          `json:"unstable_output,omitempty"`
}

type TestRun struct {
	Name   string    `json:"name"`
	Input  string    `json:"input,omitempty"`
	Result Execution `json:"result"`
}

// RunResult is one compile of a source file and every case run against the
// produced binary.
type RunResult struct {
	BinaryPath string    `json:"binary_path,omitempty"`
	Compile    Execution `json:"compile"`
	Runs       []TestRun `json:"runs"`
}

func (r *RunResult) compileFailed() bool {
	return r.Compile.ExitCode != 0 || r.Compile.TimedOut
}

// Golden is the stored expectation for one source file.
type Golden struct {
	CompileFails bool      `json:"compile_fails,omitempty"`
	Runs         []TestRun `json:"runs,omitempty"`
}

func (r *RunResult) golden() *Golden {
	if r.compileFailed() {
		return &Golden{CompileFails: true}
	}
	return &Golden{Runs: r.Runs}
}

// testCase is one execution of a compiled program.
type testCase struct {
	name  string
	input string
}

// casesFor returns the no-input case plus one case per section of the
// optional <source>.in file. Sections are separated by a line holding "---".
func casesFor(sourceFile string) ([]testCase, error) {
	cases := []testCase{{name: "no_input"}}
	data, err := os.ReadFile(sourceFile + ".in")
	if os.IsNotExist(err) {
		return cases, nil
	}
	if err != nil {
		return nil, err
	}
	for i, section := range strings.Split(string(data), "\n---\n") {
		if !strings.HasSuffix(section, "\n") {
			section += "\n"
		}
		cases = append(cases, testCase{name: fmt.Sprintf("input_%02d", i+1), input: section})
	}
	return cases, nil
}

// executeCommand runs a command under ctx and captures its output, piping
// stdinData to it when non-empty.
func executeCommand(ctx context.Context, command, stdinData string, args ...string) Execution {
	start := time.Now()
	cmd := exec.CommandContext(ctx, command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdinData != "" {
		cmd.Stdin = strings.NewReader(stdinData)
	}

	err := cmd.Run()
	res := Execution{Stdout: stdout.String(), Stderr: stderr.String(), Duration: time.Since(start)}

	var exitErr *exec.ExitError
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.TimedOut = true
		res.ExitCode = -1
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	case err != nil:
		res.ExitCode = -2
		res.Stderr += "\nExecution error: " + err.Error()
	}
	return res
}

func (s *suite) compileAndRun(ctx context.Context, sourceFile, binaryHash string) (*RunResult, error) {
	binaryPath := filepath.Join(s.tempDir, binaryHash)
	args := []string{"-o", binaryPath, "--build-dir", filepath.Join(s.tempDir, "build-"+binaryHash)}
	args = append(args, s.compilerArgs...)
	args = append(args, sourceFile)

	compileCtx, cancel := context.WithTimeout(ctx, s.timeout)
	compile := executeCommand(compileCtx, s.compiler, "", args...)
	cancel()

	result := &RunResult{Compile: compile}
	if result.compileFailed() {
		return result, fmt.Errorf("compilation failed with exit code %d", compile.ExitCode)
	}
	if _, err := os.Stat(binaryPath); err != nil {
		return result, fmt.Errorf("compilation succeeded but binary was not created at %s", binaryPath)
	}
	result.BinaryPath = binaryPath

	cases, err := casesFor(sourceFile)
	if err != nil {
		return result, fmt.Errorf("failed to read inputs: %w", err)
	}
	for _, tc := range cases {
		run := s.runCase(ctx, binaryPath, tc)
		result.Runs = append(result.Runs, run)
		if ctx.Err() != nil {
			break
		}
	}
	return result, nil
}

// runCase runs the binary s.runs times and keeps the first result with the
// fastest duration. A run whose output differs from the first is reported
// as unstable.
func (s *suite) runCase(ctx context.Context, binaryPath string, tc testCase) TestRun {
	var first Execution
	var durations []time.Duration
	for i := 0; i < s.runs; i++ {
		runCtx, cancel := context.WithTimeout(ctx, s.timeout)
		res := executeCommand(runCtx, binaryPath, tc.input)
		cancel()

		if i == 0 {
			first = res
		} else if res.ExitCode != first.ExitCode ||
			filterOutput(res.Stdout, s.ignore) != filterOutput(first.Stdout, s.ignore) ||
			filterOutput(res.Stderr, s.ignore) != filterOutput(first.Stderr, s.ignore) {
			first.UnstableOutput = true
			break
		}
		if res.TimedOut {
			break
		}
		durations = append(durations, res.Duration)
	}
	if len(durations) > 0 {
		sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
		first.Duration = durations[0]
	}
	return TestRun{Name: tc.name, Input: tc.input, Result: first}
}

// filterOutput removes lines containing any of the given substrings.
func filterOutput(output string, ignored []string) string {
	if len(ignored) == 0 || output == "" {
		return output
	}
	lines := strings.Split(output, "\n")
	kept := lines[:0:0]
	for _, line := range lines {
		drop := false
		for _, sub := range ignored {
			if strings.Contains(line, sub) {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
