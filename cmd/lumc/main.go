package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"

	"github.com/xplshn/lumen/pkg/abi"
	"github.com/xplshn/lumen/pkg/ast"
	"github.com/xplshn/lumen/pkg/cli"
	"github.com/xplshn/lumen/pkg/codegen"
	"github.com/xplshn/lumen/pkg/config"
	"github.com/xplshn/lumen/pkg/lexer"
	"github.com/xplshn/lumen/pkg/parser"
	"github.com/xplshn/lumen/pkg/token"
	"github.com/xplshn/lumen/pkg/toolchain"
	"github.com/xplshn/lumen/pkg/typeChecker"
	"github.com/xplshn/lumen/pkg/util"
)

func main() {
	app := cli.NewApp("lumc")
	app.Usage = "[options] <input.lm> ..."
	app.Synopsis = "[options] <input.lm> ..."
	app.Description = "A compiler for the Lumen language. Source files are compiled together into one program, emitted as NASM assembly and packaged with nasm and cc."
	app.Authors = []string{"xplshn"}
	app.Repository = "<https://github.com/xplshn/lumen>"

	var (
		outFile     string
		target      string
		projectFile string
		buildDir    string
		seed        int64
		linkerArgs  []string
		runtimeLibs []string
		warnNames   []string
		dumpTokens  bool
		dumpAST     bool
		dumpAsm     bool
		force       bool
	)

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", "", "Place the executable into <file> instead of bin/<stem>.", "file")
	fs.String(&target, "target", "t", "", "Target ABI: sysv (linux) or win64 (windows). Defaults to the host.", "abi")
	fs.String(&projectFile, "config", "c", "", "Read defaults from a YAML project file.", "file")
	fs.String(&buildDir, "build-dir", "", "build", "Directory for the assembly, object and stamp files.", "dir")
	fs.Int64(&seed, "seed", "", -1, "Seed the random source with <n>; a negative value leaves it unseeded.", "n")
	fs.List(&linkerArgs, "linker-arg", "L", "Pass an argument to the linker.", "arg")
	fs.List(&runtimeLibs, "runtime", "r", "Link a runtime object or archive.", "file")
	fs.List(&warnNames, "warn", "", "Toggle warnings by name, including all and no-all.", "name")
	fs.Bool(&dumpTokens, "dump-tokens", "", false, "Print the token stream and exit.")
	fs.Bool(&dumpAST, "dump-ast", "", false, "Print the type-checked syntax tree and exit.")
	fs.Bool(&dumpAsm, "dump-asm", "S", false, "Print the generated assembly and exit.")
	fs.Bool(&force, "force", "f", false, "Rebuild even when the build stamp is current.")

	cfg := config.NewConfig()
	warningFlags := cfg.SetupFlagGroups(fs)

	app.Action = func(inputFiles []string) error {
		if len(inputFiles) == 0 {
			util.Error(token.Token{FileIndex: -1}, "no input files specified.")
		}

		// Project file first, so that command-line flags override it.
		projectTarget := ""
		if projectFile != "" {
			pf, err := config.LoadProjectFile(projectFile)
			if err != nil {
				util.Error(token.Token{FileIndex: -1}, "%v", err)
			}
			if projectTarget, err = pf.Apply(cfg); err != nil {
				util.Error(token.Token{FileIndex: -1}, "%v", err)
			}
		}
		for _, name := range warnNames {
			if err := cfg.ApplyWarningName(name); err != nil {
				util.Error(token.Token{FileIndex: -1}, "%v", err)
			}
		}
		cfg.ApplyFlagGroups(warningFlags)

		if fs.Changed("seed") {
			cfg.Seed = seed
		}
		if outFile != "" {
			cfg.OutputName = outFile
		}
		if target == "" {
			target = projectTarget
		}
		if err := cfg.SetTarget(runtime.GOOS, runtime.GOARCH, target); err != nil {
			util.Error(token.Token{FileIndex: -1}, "%v", err)
		}
		cfg.RuntimeLibs = append(cfg.RuntimeLibs, runtimeLibs...)
		cfg.LinkerArgs = append(cfg.LinkerArgs, linkerArgs...)

		// A dump owns stdout.
		var progress io.Writer = os.Stdout
		if dumpTokens || dumpAST || dumpAsm {
			progress = os.Stderr
		}

		fmt.Fprintln(progress, "----------------------")
		fmt.Fprintf(progress, "Tokenizing %d source file(s)...\n", len(inputFiles))
		records, allTokens := readAndTokenizeFiles(inputFiles, cfg)
		util.SetSourceFiles(records)
		if dumpTokens {
			printTokens(os.Stdout, records, allTokens)
			return nil
		}

		fmt.Fprintln(progress, "Parsing tokens into AST...")
		root := parser.NewParser(allTokens).Parse()

		fmt.Fprintln(progress, "Type checking...")
		tc := typeChecker.NewTypeChecker(cfg)
		tc.Check(root)
		if dumpAST {
			ast.Dump(os.Stdout, root)
			return nil
		}

		fmt.Fprintf(progress, "Generating code for '%s'...\n", cfg.Platform)
		prog, err := codegen.NewContext(cfg, tc.Hints()).Generate(root)
		if err != nil {
			util.Error(token.Token{FileIndex: -1}, "code generation failed: %v", err)
		}
		text, err := codegen.NewNASMBackend().Generate(prog, cfg)
		if err != nil {
			util.Error(token.Token{FileIndex: -1}, "backend code generation failed: %v", err)
		}

		if dumpAsm {
			fmt.Print(text.String())
			return nil
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		stem := toolchain.Stem(inputFiles[0])
		fmt.Fprintf(progress, "Linking to create '%s'...\n", outputName(cfg, stem))
		res, err := toolchain.Package(ctx, stem, text.String(), toolchain.Options{
			Conv:        abi.MustLookup(cfg.Platform),
			BuildDir:    buildDir,
			Output:      cfg.OutputName,
			RuntimeLibs: cfg.RuntimeLibs,
			LinkerArgs:  cfg.LinkerArgs,
			Force:       force,
		})
		if err != nil {
			util.Error(token.Token{FileIndex: -1}, "%v", err)
		}
		if res.Cached {
			fmt.Fprintf(progress, "'%s' is up to date.\n", res.BinPath)
		}

		fmt.Fprintln(progress, "----------------------")
		fmt.Fprintln(progress, "Done!")
		return nil
	}

	if err := app.Run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

func outputName(cfg *config.Config, stem string) string {
	if cfg.OutputName != "" {
		return cfg.OutputName
	}
	return "bin/" + stem + abi.MustLookup(cfg.Platform).ExeExt
}

// printTokens writes one token per line as file:line:col, kind and value.
func printTokens(w io.Writer, records []util.SourceFileRecord, toks []token.Token) {
	for _, tok := range toks {
		name := "<input>"
		if tok.FileIndex >= 0 && tok.FileIndex < len(records) {
			name = records[tok.FileIndex].Name
		}
		pos := fmt.Sprintf("%s:%d:%d", name, tok.Line, tok.Column)
		if tok.Value != "" {
			fmt.Fprintf(w, "%-24s %-12s %q\n", pos, tok.Type, tok.Value)
			continue
		}
		fmt.Fprintf(w, "%-24s %s\n", pos, tok.Type)
	}
}

// readAndTokenizeFiles lexes every file in order into one token stream that
// ends with a single EOF.
func readAndTokenizeFiles(paths []string, cfg *config.Config) ([]util.SourceFileRecord, []token.Token) {
	var records []util.SourceFileRecord
	var allTokens []token.Token

	for i, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			util.Error(token.Token{FileIndex: -1}, "could not read file '%s': %v", path, err)
			continue
		}
		runeContent := []rune(string(content))
		records = append(records, util.SourceFileRecord{Name: path, Content: runeContent})
		l := lexer.NewLexer(runeContent, i, cfg)
		for {
			tok := l.Next()
			if tok.Type == token.EOF {
				break
			}
			allTokens = append(allTokens, tok)
		}
	}
	allTokens = append(allTokens, token.Token{Type: token.EOF, FileIndex: max(len(paths)-1, 0)})
	return records, allTokens
}
