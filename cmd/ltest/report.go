package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/go-cmp/cmp"
)

type Status string

const (
	StatusPass  Status = "PASS"
	StatusFail  Status = "FAIL"
	StatusSkip  Status = "SKIP"
	StatusError Status = "ERROR"
)

type FileTestResult struct {
	File    string     `json:"file"`
	Status  Status     `json:"status"`
	Message string     `json:"message,omitempty"`
	Diff    string     `json:"diff,omitempty"`
	Result  *RunResult `json:"result,omitempty"`
}

type TestSuiteResults map[string]*FileTestResult

// binaryPlaceholder stands in for the binary's path in compared output, so a
// program printing its own name compares equal across temp directories.
const binaryPlaceholder = "__BINARY__"

func normalize(out, binaryPath string, ignored []string) string {
	out = filterOutput(out, ignored)
	if binaryPath == "" {
		return out
	}
	out = strings.ReplaceAll(out, binaryPath, binaryPlaceholder)
	return strings.ReplaceAll(out, filepath.Base(binaryPath), binaryPlaceholder)
}

// compareResults checks every golden run against the run of the same name.
func compareResults(file string, golden *Golden, got *RunResult, ignored []string) *FileTestResult {
	if golden.CompileFails {
		return &FileTestResult{File: file, Status: StatusFail, Message: "Compilation succeeded, but the golden file expected failure", Result: got}
	}

	byName := make(map[string]TestRun, len(got.Runs))
	for _, r := range got.Runs {
		byName[r.Name] = r
	}

	var diffs strings.Builder
	for _, want := range golden.Runs {
		have, ok := byName[want.Name]
		if !ok {
			fmt.Fprintf(&diffs, "Test run '%s' missing from results.\n", want.Name)
			continue
		}
		if want.Result.UnstableOutput != have.Result.UnstableOutput {
			fmt.Fprintf(&diffs, "Run '%s' output stability mismatch:\n  - Golden: %v\n  - Got:    %v\n", want.Name, want.Result.UnstableOutput, have.Result.UnstableOutput)
		}
		if want.Result.ExitCode != have.Result.ExitCode {
			fmt.Fprintf(&diffs, "Run '%s' exit code mismatch:\n  - Golden: %d\n  - Got:    %d\n", want.Name, want.Result.ExitCode, have.Result.ExitCode)
		}
		if normalize(want.Result.Stdout, "", ignored) != normalize(have.Result.Stdout, got.BinaryPath, ignored) {
			fmt.Fprintf(&diffs, "Run '%s' STDOUT mismatch:\n%s", want.Name, cmp.Diff(want.Result.Stdout, have.Result.Stdout))
		}
		if normalize(want.Result.Stderr, "", ignored) != normalize(have.Result.Stderr, got.BinaryPath, ignored) {
			fmt.Fprintf(&diffs, "Run '%s' STDERR mismatch:\n%s", want.Name, cmp.Diff(want.Result.Stderr, have.Result.Stderr))
		}
	}

	if diffs.Len() > 0 {
		return &FileTestResult{File: file, Status: StatusFail, Message: "Runtime output or exit code mismatch", Diff: diffs.String(), Result: got}
	}
	return &FileTestResult{File: file, Status: StatusPass, Message: "All test cases passed", Result: got}
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%6dus", d.Microseconds())
	}
	return fmt.Sprintf("%6dms", d.Milliseconds())
}

func printSummary(w io.Writer, results []*FileTestResult, verbose bool) {
	counts := make(map[Status]int)
	var totalCompile, totalRun time.Duration
	const rule = "----------------------------------------------------------------------"

	for _, r := range results {
		counts[r.Status]++
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "Testing %s%s%s...\n", cCyan, r.File, cNone)

		color := cGreen
		switch r.Status {
		case StatusFail, StatusError:
			color = cRed
		case StatusSkip:
			color = cYellow
		}
		fmt.Fprintf(w, "  [%s%s%s] %s\n", color, r.Status, cNone, r.Message)
		if r.Status == StatusFail {
			fmt.Fprintln(w, formatDiff(r.Diff))
		}

		if r.Result == nil {
			continue
		}
		totalCompile += r.Result.Compile.Duration
		var run time.Duration
		for _, tr := range r.Result.Runs {
			run += tr.Result.Duration
			if verbose {
				fmt.Fprintf(w, "    %-12s %s\n", tr.Name, formatDuration(tr.Result.Duration))
			}
		}
		totalRun += run
		if verbose {
			fmt.Fprintf(w, "    [compile: %s | run: %s]\n", formatDuration(r.Result.Compile.Duration), formatDuration(run))
		}
	}

	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "%sTest Summary:%s %s%d Passed%s, %s%d Failed%s, %s%d Skipped%s, %s%d Errored%s, %d Total\n",
		cBold, cNone, cGreen, counts[StatusPass], cNone, cRed, counts[StatusFail], cNone,
		cYellow, counts[StatusSkip], cNone, cRed, counts[StatusError], cNone, len(results))
	if totalCompile > 0 {
		fmt.Fprintf(w, "Total compile time %s, total run time %s.\n", totalCompile.Round(time.Millisecond), totalRun.Round(time.Microsecond))
	}
}

func formatDiff(diff string) string {
	if diff == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString("    --- Diff ---\n")
	for _, line := range strings.Split(diff, "\n") {
		switch t := strings.TrimSpace(line); {
		case strings.HasPrefix(t, "-"):
			b.WriteString(cRed)
		case strings.HasPrefix(t, "+"):
			b.WriteString(cGreen)
		}
		b.WriteString("    " + line + cNone + "\n")
	}
	return b.String()
}

func writeJSONReport(results []*FileTestResult, path string) TestSuiteResults {
	report := make(TestSuiteResults, len(results))
	for _, r := range results {
		report[r.File] = r
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Printf("%s[ERROR]%s Failed to marshal results to JSON: %v\n", cRed, cNone, err)
		return report
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Printf("%s[ERROR]%s Failed to create dir %s: %v\n", cRed, cNone, dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Printf("%s[ERROR]%s Failed to write JSON report to %s: %v\n", cRed, cNone, path, err)
	} else {
		fmt.Printf("Full test report saved to %s\n", path)
	}
	return report
}

func hasFailures(results TestSuiteResults) bool {
	for _, r := range results {
		if r.Status == StatusFail || r.Status == StatusError {
			return true
		}
	}
	return false
}
