// Command ltest compiles Lumen programs with lumc, runs them and compares
// what they print against golden JSON files kept next to the sources.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

var (
	compiler       = flag.String("compiler", "./lumc", "Path to the compiler under test.")
	compilerArgs   = flag.String("compiler-args", "--seed 42", "Extra compiler arguments (space-separated).")
	generateGolden = flag.String("generate-golden", "", "Write golden .json files for the given source files (space-separated).")
	testFiles      = flag.String("test-files", "tests/*.lm", "Glob pattern(s) for files to test (space-separated).")
	skipFiles      = flag.String("skip-files", "", "Files to skip (space-separated).")
	outputJSON     = flag.String("output", ".test_results.json", "Output file for the JSON test report.")
	timeout        = flag.Duration("timeout", 5*time.Second, "Timeout for each command execution.")
	jobs           = flag.Int("j", 4, "Number of parallel test jobs.")
	runs           = flag.Int("runs", 3, "Number of times to run each case to find the minimum duration.")
	verbose        = flag.Bool("v", false, "Print per-case timings.")
	jsonDir        = flag.String("dir", "", "Directory to store/read golden JSON files (defaults to source file dir).")
	ignoreLines    = flag.String("ignore-lines", "", "Comma-separated substrings to ignore during output comparison.")
)

const (
	cRed    = "\x1b[91m"
	cYellow = "\x1b[93m"
	cGreen  = "\x1b[92m"
	cCyan   = "\x1b[96m"
	cBold   = "\x1b[1m"
	cNone   = "\x1b[0m"
)

func main() {
	flag.Parse()
	log.SetFlags(0)

	tempDir, err := os.MkdirTemp("", "ltest-*")
	if err != nil {
		log.Fatalf("%s[ERROR]%s Failed to create temp directory: %v\n", cRed, cNone, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	s := &suite{
		compiler:     *compiler,
		compilerArgs: strings.Fields(*compilerArgs),
		timeout:      *timeout,
		runs:         max(*runs, 1),
		ignore:       splitNonEmpty(*ignoreLines, ","),
		jsonDir:      *jsonDir,
		tempDir:      tempDir,
	}

	code := 0
	if *generateGolden != "" {
		code = s.generate(ctx, strings.Fields(*generateGolden))
	} else {
		code = s.runSuite(ctx)
	}
	if ctx.Err() != nil {
		fmt.Printf("\n%s[INTERRUPT]%s Test run cancelled. Cleaning up...\n", cYellow, cNone)
		code = 1
	}
	stop()
	os.RemoveAll(tempDir)
	os.Exit(code)
}

// suite holds everything a test run needs; it is read-only once built so
// workers can share it.
type suite struct {
	compiler     string
	compilerArgs []string
	timeout      time.Duration
	runs         int
	ignore       []string
	jsonDir      string
	tempDir      string
}

func (s *suite) goldenPath(sourceFile string) string {
	name := "." + filepath.Base(sourceFile) + ".json"
	if s.jsonDir != "" {
		return filepath.Join(s.jsonDir, name)
	}
	return filepath.Join(filepath.Dir(sourceFile), name)
}

// hashFile computes the xxhash of a file's content.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum64()), nil
}

func (s *suite) generate(ctx context.Context, files []string) int {
	if s.jsonDir != "" {
		if err := os.MkdirAll(s.jsonDir, 0o755); err != nil {
			log.Printf("%s[ERROR]%s Failed to create directory %s: %v\n", cRed, cNone, s.jsonDir, err)
			return 1
		}
	}
	code := 0
	for _, file := range files {
		log.Printf("Generating golden file for %s...\n", file)
		fileHash, err := hashFile(file)
		if err != nil {
			log.Printf("%s[ERROR]%s Could not hash source file %s: %v\n", cRed, cNone, file, err)
			code = 1
			continue
		}
		result, err := s.compileAndRun(ctx, file, fileHash)
		if err != nil {
			if result == nil || !result.compileFailed() {
				log.Printf("%s[ERROR]%s Could not generate golden file for %s: %v\n", cRed, cNone, file, err)
				code = 1
				continue
			}
			log.Printf("%s[WARN]%s %s does not compile; recording the failure as expected\n%s", cYellow, cNone, file, result.Compile.Stderr)
		}
		data, err := json.MarshalIndent(result.golden(), "", "  ")
		if err != nil {
			log.Printf("%s[ERROR]%s Failed to marshal golden data: %v\n", cRed, cNone, err)
			code = 1
			continue
		}
		path := s.goldenPath(file)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			log.Printf("%s[ERROR]%s Failed to write golden file %s: %v\n", cRed, cNone, path, err)
			code = 1
			continue
		}
		log.Printf("%s[SUCCESS]%s Golden file created at %s\n", cGreen, cNone, path)
	}
	return code
}

func (s *suite) runSuite(ctx context.Context) int {
	files, err := expandGlobPatterns(*testFiles)
	if err != nil {
		log.Printf("%s[ERROR]%s Invalid glob pattern(s): %v\n", cRed, cNone, err)
		return 1
	}
	if len(files) == 0 {
		log.Println("No test files found matching the pattern(s).")
		return 0
	}
	skip := make(map[string]bool)
	for _, f := range strings.Fields(*skipFiles) {
		if abs, err := filepath.Abs(f); err == nil {
			skip[abs] = true
		}
	}

	type task struct{ file, hash string }
	tasks := make(chan task)
	results := make(chan *FileTestResult, len(files))
	var wg sync.WaitGroup
	for i := 0; i < max(*jobs, 1); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				results <- s.testFile(ctx, t.file, t.hash)
			}
		}()
	}

	// Identical sources are tested once.
	seen := make(map[string]string)
	for _, file := range files {
		if skip[file] {
			results <- &FileTestResult{File: file, Status: StatusSkip, Message: "Explicitly skipped"}
			continue
		}
		fileHash, err := hashFile(file)
		if err != nil {
			results <- &FileTestResult{File: file, Status: StatusError, Message: fmt.Sprintf("Failed to read file for hashing: %v", err)}
			continue
		}
		if orig, dup := seen[fileHash]; dup {
			results <- &FileTestResult{File: file, Status: StatusSkip, Message: fmt.Sprintf("Content is identical to %s", orig)}
			continue
		}
		seen[fileHash] = file
		tasks <- task{file, fileHash}
	}
	close(tasks)
	wg.Wait()
	close(results)

	var all []*FileTestResult
	for r := range results {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].File < all[j].File })

	printSummary(os.Stdout, all, *verbose)
	report := writeJSONReport(all, s.reportPath())
	if hasFailures(report) {
		return 1
	}
	return 0
}

func (s *suite) reportPath() string {
	if s.jsonDir != "" {
		return filepath.Join(s.jsonDir, *outputJSON)
	}
	return *outputJSON
}

func (s *suite) testFile(ctx context.Context, file, fileHash string) *FileTestResult {
	goldenFile := s.goldenPath(file)
	data, err := os.ReadFile(goldenFile)
	if os.IsNotExist(err) {
		return &FileTestResult{File: file, Status: StatusSkip, Message: "No golden file; run with -generate-golden first"}
	}
	if err != nil {
		return &FileTestResult{File: file, Status: StatusError, Message: fmt.Sprintf("Could not read golden file %s: %v", goldenFile, err)}
	}
	var golden Golden
	if err := json.Unmarshal(data, &golden); err != nil {
		return &FileTestResult{File: file, Status: StatusError, Message: fmt.Sprintf("Could not parse golden file %s: %v", goldenFile, err)}
	}

	result, err := s.compileAndRun(ctx, file, fileHash)
	if err != nil {
		if golden.CompileFails {
			return &FileTestResult{File: file, Status: StatusPass, Message: "Compilation failed as expected", Result: result}
		}
		return &FileTestResult{
			File:    file,
			Status:  StatusFail,
			Message: "Compilation failed, but the golden file expected success",
			Diff:    fmt.Sprintf("Compiler STDERR:\n%s", result.Compile.Stderr),
			Result:  result,
		}
	}
	return compareResults(file, &golden, result, s.ignore)
}

func splitNonEmpty(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func expandGlobPatterns(patterns string) ([]string, error) {
	var all []string
	seen := make(map[string]bool)
	for _, pattern := range strings.Fields(patterns) {
		files, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %s: %w", pattern, err)
		}
		for _, file := range files {
			abs, err := filepath.Abs(file)
			if err != nil || seen[abs] {
				continue
			}
			if info, err := os.Stat(abs); err == nil && info.Mode().IsRegular() {
				all = append(all, abs)
				seen[abs] = true
			}
		}
	}
	return all, nil
}
