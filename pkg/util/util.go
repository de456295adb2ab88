package util

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xplshn/lumen/pkg/config"
	"github.com/xplshn/lumen/pkg/token"
)

// SourceFileRecord tracks the name and content of a single source file.
type SourceFileRecord struct {
	Name    string
	Content []rune
}

var sourceFiles []SourceFileRecord

// diagOut is swapped by tests that want to inspect diagnostics.
var diagOut io.Writer = os.Stderr

// exit is swapped by tests so that Error does not terminate the test binary.
var exit = os.Exit

func SetSourceFiles(files []SourceFileRecord) { sourceFiles = files }

func SetOutput(w io.Writer) io.Writer {
	old := diagOut
	diagOut = w
	return old
}

// SetExit replaces the function Error uses to terminate. It returns the old one.
func SetExit(f func(int)) func(int) {
	old := exit
	exit = f
	return old
}

func sourceOf(tok token.Token) (SourceFileRecord, bool) {
	if tok.FileIndex < 0 || tok.FileIndex >= len(sourceFiles) {
		return SourceFileRecord{Name: "<input>"}, false
	}
	return sourceFiles[tok.FileIndex], true
}

// sourceLine returns the text of the line tok starts on.
func sourceLine(tok token.Token) (string, bool) {
	src, ok := sourceOf(tok)
	if !ok || tok.Line < 1 {
		return "", false
	}
	lines := strings.Split(string(src.Content), "\n")
	if tok.Line > len(lines) {
		return "", false
	}
	return strings.TrimSuffix(lines[tok.Line-1], "\r"), true
}

// report writes one diagnostic: the location, a colored label, the message,
// then the offending line with a caret under the token.
func report(label, color, suffix string, tok token.Token, format string, args []interface{}) {
	src, _ := sourceOf(tok)
	fmt.Fprintf(diagOut, "%s:%d:%d: \033[%sm%s:\033[0m %s%s\n",
		src.Name, tok.Line, tok.Column, color, label, fmt.Sprintf(format, args...), suffix)

	text, ok := sourceLine(tok)
	if !ok {
		return
	}
	pad := max(tok.Column-1, 0)
	underline := "^" + strings.Repeat("~", max(tok.Len-1, 0))
	fmt.Fprintf(diagOut, "  %s\n  %s\033[32m%s\033[0m\n", text, strings.Repeat(" ", pad), underline)
}

// Error prints a formatted error message pointing at tok and exits.
func Error(tok token.Token, format string, args ...interface{}) {
	report("error", "31", "", tok, format, args)
	exit(1)
}

// Warn prints a warning if wt is enabled in cfg.
func Warn(cfg *config.Config, wt config.Warning, tok token.Token, format string, args ...interface{}) {
	if cfg == nil || !cfg.IsWarningEnabled(wt) {
		return
	}
	report("warning", "33", " [-W"+cfg.Warnings[wt].Name+"]", tok, format, args)
}
