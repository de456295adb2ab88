package codegen

import (
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/lumen/pkg/abi"
	"github.com/xplshn/lumen/pkg/asm"
	"github.com/xplshn/lumen/pkg/ast"
	"github.com/xplshn/lumen/pkg/config"
	"github.com/xplshn/lumen/pkg/lexer"
	"github.com/xplshn/lumen/pkg/parser"
	"github.com/xplshn/lumen/pkg/typeChecker"
	"github.com/xplshn/lumen/pkg/util"
)

// compile runs the front end and the code generator over src.
func compile(t *testing.T, src string, cfg *config.Config) *asm.Program {
	t.Helper()
	if cfg == nil {
		cfg = config.NewConfig()
	}
	old := util.SetOutput(io.Discard)
	defer util.SetOutput(old)

	toks := lexer.NewLexer([]rune(src), 0, cfg).Tokenize()
	root := parser.NewParser(toks).Parse()
	tc := typeChecker.NewTypeChecker(cfg)
	tc.Check(root)
	prog, err := NewContext(cfg, tc.Hints()).Generate(root)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return prog
}

func emitNASM(t *testing.T, prog *asm.Program, p abi.Platform) string {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Platform = p
	buf, err := NewNASMBackend().Generate(prog, cfg)
	if err != nil {
		t.Fatalf("NASM backend: %v", err)
	}
	return buf.String()
}

func render(in asm.Instr) string {
	if len(in.Args) == 0 {
		return in.Op.String()
	}
	parts := make([]string, len(in.Args))
	for i, a := range in.Args {
		parts[i] = a.String()
	}
	return in.Op.String() + " " + strings.Join(parts, ", ")
}

func listing(t *testing.T, prog *asm.Program, fn string) []string {
	t.Helper()
	f := prog.FindFunc(fn)
	if f == nil {
		t.Fatalf("no routine %s", fn)
	}
	out := make([]string, len(f.Instrs))
	for i, in := range f.Instrs {
		out[i] = render(in)
	}
	return out
}

// hasSequence reports whether want occurs in lines in order, not necessarily
// adjacent. A pattern ending in '*' matches by prefix.
func hasSequence(lines, want []string) bool {
	i := 0
	for _, l := range lines {
		if i == len(want) {
			break
		}
		w := want[i]
		if l == w || (strings.HasSuffix(w, "*") && strings.HasPrefix(l, strings.TrimSuffix(w, "*"))) {
			i++
		}
	}
	return i == len(want)
}

func count(lines []string, want string) int {
	n := 0
	for _, l := range lines {
		if l == want {
			n++
		}
	}
	return n
}

func label(t *testing.T, prog *asm.Program, value string) string {
	t.Helper()
	l, ok := prog.StringLabel(value)
	if !ok {
		t.Fatalf("%q is not in the string pool", value)
	}
	return l
}

func TestStringPoolDedup(t *testing.T) {
	prog := compile(t, `
print("hi");
var s = "hi";
func f() { return "hi"; }
print(f());
`, nil)
	n := 0
	for _, s := range prog.Strings {
		if s.Value == "hi" {
			n++
		}
	}
	if n != 1 {
		t.Errorf("\"hi\" appears %d times in the pool", n)
	}
	seen := map[string]bool{}
	for _, s := range prog.Strings {
		if seen[s.Label] {
			t.Errorf("label %s used twice", s.Label)
		}
		seen[s.Label] = true
	}
}

func TestPrintLiteralVerbatim(t *testing.T) {
	prog := compile(t, `print("a\tb%d");`, nil)
	lbl := label(t, prog, "a\tb%d")
	if !hasSequence(listing(t, prog, "main"), []string{
		"lea rax, &" + lbl,
		"setarg arg0, &fmt_str",
		"setarg arg1, rax",
		"call printf",
		"setarg arg0, &newline",
		"call printf",
	}) {
		t.Errorf("literal is not printed through %%s:\n%s", strings.Join(listing(t, prog, "main"), "\n"))
	}
	if text := emitNASM(t, prog, abi.SysV); !strings.Contains(text, lbl+`: db "a", 9, "b%d", 0`) {
		t.Errorf("pool entry not emitted verbatim:\n%s", text)
	}
}

func TestStringOperators(t *testing.T) {
	prog := compile(t, `
var a = "x";
var b = "y";
var n = 1;
print(a + b);
print(a == b);
print(n + 2);
`, nil)
	main := listing(t, prog, "main")
	if count(main, "call lm_str_concat") != 1 {
		t.Errorf("expected one concatenation:\n%s", strings.Join(main, "\n"))
	}
	if count(main, "call strcmp") != 1 {
		t.Errorf("expected one strcmp:\n%s", strings.Join(main, "\n"))
	}
	if !hasSequence(main, []string{"mov rax, [gv_n]", "mov slot*", "mov rax, 2", "mov rbx, rax", "mov rax, slot*", "add rax, rbx"}) {
		t.Errorf("integer addition not emitted:\n%s", strings.Join(main, "\n"))
	}
}

func TestReturnRunsFinally(t *testing.T) {
	prog := compile(t, `
func f() {
    try { return 7; } finally { print("done"); }
}
print(f());
`, nil)
	fin := label(t, prog, "done")
	if !hasSequence(listing(t, prog, ast.FuncSymbol("f")), []string{
		"mov rax, 7",
		"mov slot0, rax",
		"lea rax, &" + fin,
		"call printf",
		"mov rax, slot0",
		"jmp Lret*",
	}) {
		t.Errorf("return does not keep its value across the finally block:\n%s",
			strings.Join(listing(t, prog, ast.FuncSymbol("f")), "\n"))
	}
}

func TestLoopExitsReplayFinally(t *testing.T) {
	finallyCopies := func(src string) int {
		prog := compile(t, src, nil)
		return count(listing(t, prog, "main"), "lea rax, &"+label(t, prog, "fin"))
	}
	base := finallyCopies(`while (true) { try { print(1); } finally { print("fin"); } break; }`)
	if base != 2 {
		t.Fatalf("a try/finally without early exits emits %d finally copies, want 2", base)
	}
	for _, src := range []string{
		`while (true) { try { break; } finally { print("fin"); } }`,
		`for (var i = 0; i < 3; i++) { try { continue; } finally { print("fin"); } }`,
		`do { try { break; } finally { print("fin"); } } while (true);`,
	} {
		if got := finallyCopies(src); got != base+1 {
			t.Errorf("%s: %d finally copies, want %d", src, got, base+1)
		}
	}

	// Leaving two try blocks runs the inner finally first.
	prog := compile(t, `while (true) { try { try { break; } finally { print("inner"); } } finally { print("outer"); } }`, nil)
	if !hasSequence(listing(t, prog, "main"), []string{
		"lea rax, &" + label(t, prog, "inner"),
		"lea rax, &" + label(t, prog, "outer"),
		"jmp Lendloop*",
	}) {
		t.Errorf("break does not replay both finally blocks in order:\n%s", strings.Join(listing(t, prog, "main"), "\n"))
	}

	// A switch inside a loop does not capture the loop's continue.
	prog = compile(t, `for (var i = 0; i < 2; i++) { switch (i) { case 0: continue; default: break; } }`, nil)
	main := listing(t, prog, "main")
	if !hasSequence(main, []string{"jmp Lforcont*", "jmp Lswitchend*"}) {
		t.Errorf("continue or break inside switch resolved wrongly:\n%s", strings.Join(main, "\n"))
	}
}

func TestExceptionDispatch(t *testing.T) {
	prog := compile(t, `
func risky(n) {
    if (n > 1) { throw ValueError("too big"); }
    throw "plain";
}
try { risky(2); } catch (ValueError e) { print(error_message(e)); } catch (e) { print(error_type(e)); }
`, nil)
	label(t, prog, "ValueError")
	label(t, prog, "Exception")

	main := listing(t, prog, "main")
	if !hasSequence(main, []string{"call fn_risky", "test rdx, rdx", "jnz Lcatch*"}) {
		t.Errorf("call inside try does not dispatch to the catch:\n%s", strings.Join(main, "\n"))
	}
	if !hasSequence(main, []string{"call lm_exception_type", "setarg arg1, &" + label(t, prog, "ValueError"), "call strcmp"}) {
		t.Errorf("typed catch does not compare the exception type:\n%s", strings.Join(main, "\n"))
	}
	risky := listing(t, prog, ast.FuncSymbol("risky"))
	if count(risky, "call lm_exception_new") != 2 {
		t.Errorf("expected two exception constructions:\n%s", strings.Join(risky, "\n"))
	}
	if !hasSequence(risky, []string{"call lm_exception_new", "mov rdx, rax", "jmp Lunwind*"}) {
		t.Errorf("throw does not leave through the unwind exit:\n%s", strings.Join(risky, "\n"))
	}
}

func TestCatchExitRunsFinallyOnce(t *testing.T) {
	// A throw inside the catch body leaves through the catch exit, runs the
	// finally once and goes on to the routine's unwind exit.
	prog := compile(t, `try { throw "x"; } catch (e) { throw e; } finally { print("fin"); }`, nil)
	main := listing(t, prog, "main")
	fin := "lea rax, &" + label(t, prog, "fin")
	if n := count(main, fin); n != 2 {
		t.Errorf("%d finally copies, want 2:\n%s", n, strings.Join(main, "\n"))
	}
	if !hasSequence(main, []string{"jmp Lcatchexit*", "label Lcatchexit*", fin, "mov rdx, slot*", "jmp Lunwind*"}) {
		t.Errorf("rethrow from catch does not run the finally before unwinding:\n%s", strings.Join(main, "\n"))
	}

	// Nested, the same path ends at the enclosing try's catch.
	prog = compile(t, `
try {
    try { throw "x"; } catch (e) { throw e; } finally { print("fin"); }
} catch (e) { print("outer"); }
`, nil)
	main = listing(t, prog, "main")
	fin = "lea rax, &" + label(t, prog, "fin")
	if n := count(main, fin); n != 2 {
		t.Errorf("nested: %d finally copies, want 2:\n%s", n, strings.Join(main, "\n"))
	}
	if !hasSequence(main, []string{"label Lcatchexit*", fin, "mov rdx, slot*", "jmp Lcatch*", "label Lfinally*", fin}) {
		t.Errorf("nested rethrow does not reach the outer catch:\n%s", strings.Join(main, "\n"))
	}
}

func TestUnmatchedCatchRethrows(t *testing.T) {
	prog := compile(t, `try { throw "x"; } catch (ValueError e) { print("v"); } finally { print("fin"); }`, nil)
	main := listing(t, prog, "main")
	fin := "lea rax, &" + label(t, prog, "fin")
	if n := count(main, fin); n != 2 {
		t.Errorf("%d finally copies, want 2:\n%s", n, strings.Join(main, "\n"))
	}
	if !hasSequence(main, []string{
		"call strcmp",
		"jnz Lnextcatch*",
		"label Lnextcatch*",
		"jmp Lrethrow*",
		"label Lrethrow*",
		fin,
		"mov rdx, slot*",
		"jmp Lunwind*",
	}) {
		t.Errorf("unmatched typed catch does not run the finally and re-raise:\n%s", strings.Join(main, "\n"))
	}
}

func TestClassSymbolsDistinct(t *testing.T) {
	prog := compile(t, `
class A {
    static var count: int = 0;
    static func count(): int { return 1; }
    func vtable() { return 2; }
    func static_count() { return 3; }
}
class A_B { func c() { return 4; } }
class A2 extends A { func B_c() { return 5; } }
print(A.count);
`, nil)
	syms := map[string]bool{}
	for _, s := range []string{
		ast.StaticFieldSymbol("A", "count"),
		ast.StaticMethodSymbol("A", "count"),
		ast.MethodSymbol("A", "vtable"),
		ast.VtableSymbol("A"),
		ast.MethodSymbol("A", "static_count"),
		ast.MethodSymbol("A_B", "c"),
		ast.MethodSymbol("A", "B_c"),
		ast.CtorSymbol("A", 0),
		ast.MethodSymbol("A", "constructor_0"),
	} {
		if syms[s] {
			t.Errorf("symbol %s is produced twice", s)
		}
		syms[s] = true
	}
	text := emitNASM(t, prog, abi.SysV)
	if dups := redefined(text); len(dups) > 0 {
		t.Errorf("labels defined more than once: %v\n%s", dups, text)
	}
	for _, want := range []string{
		ast.StaticFieldSymbol("A", "count") + ": dq 0",
		ast.StaticMethodSymbol("A", "count") + ":",
		ast.MethodSymbol("A", "vtable") + ":",
		ast.VtableSymbol("A") + ": dq 0",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output lacks %q", want)
		}
	}
}

func TestListLiteralKeepsHandle(t *testing.T) {
	main := listing(t, compile(t, `var xs = [1, 2, 3];`, nil), "main")
	if count(main, "call lm_array_push") != 3 {
		t.Fatalf("expected three pushes:\n%s", strings.Join(main, "\n"))
	}
	for i, l := range main {
		if l == "call lm_array_push" && i+1 < len(main) && strings.HasPrefix(main[i+1], "mov slot") && strings.HasSuffix(main[i+1], ", rax") {
			t.Errorf("push result is written back over the list handle:\n%s", strings.Join(main, "\n"))
			break
		}
	}

	main = listing(t, compile(t, `var xs = [1]; push(xs, 2); print(xs);`, nil), "main")
	if count(main, "mov [gv_xs], rax") != 1 {
		t.Errorf("push(xs, v) stores into xs; only the declaration should:\n%s", strings.Join(main, "\n"))
	}
}

func TestSuperResolvesStatically(t *testing.T) {
	prog := compile(t, `
class A { func m() { return 1; } }
class B extends A { override func m() { return super.m() + 1; } }
class C extends B { }
var c = new C();
print(c.m());
`, nil)
	key := label(t, prog, ast.SuperKey("B", "m"))
	if !hasSequence(listing(t, prog, ast.MethodSymbol("B", "m")), []string{
		"setarg arg1, &" + label(t, prog, ast.VtableKey),
		"call lm_map_get",
		"setarg arg1, &" + key,
		"call lm_map_get",
	}) {
		t.Errorf("super call does not look up %s:\n%s", ast.SuperKey("B", "m"),
			strings.Join(listing(t, prog, ast.MethodSymbol("B", "m")), "\n"))
	}
	// C's table maps super::B::m to A's implementation, not to B's.
	if !hasSequence(listing(t, prog, "main"), []string{
		"mov [" + ast.VtableSymbol("C") + "], rax",
		"setarg arg1, &" + key,
		"setarg arg2, &" + ast.MethodSymbol("A", "m"),
	}) {
		t.Errorf("super entry of C is wrong:\n%s", strings.Join(listing(t, prog, "main"), "\n"))
	}
}

func TestSeed(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Seed = 42
	if !hasSequence(listing(t, compile(t, `print(random(6));`, cfg), "main"), []string{"setarg arg0, 42", "call lm_seed", "call lm_random"}) {
		t.Error("seeded program does not call lm_seed first")
	}
	if count(listing(t, compile(t, `print(random(6));`, nil), "main"), "call lm_seed") != 0 {
		t.Error("unseeded program calls lm_seed")
	}
}

func TestPlatformInvariance(t *testing.T) {
	src := `
func add(a, b, c, d, e, f, g) { return a + g; }
print(add(1, 2, 3, 4, 5, 6, 7));
`
	sysvCfg, winCfg := config.NewConfig(), config.NewConfig()
	sysvCfg.Platform, winCfg.Platform = abi.SysV, abi.Win64
	sysvProg, winProg := compile(t, src, sysvCfg), compile(t, src, winCfg)
	if diff := cmp.Diff(sysvProg, winProg); diff != "" {
		t.Fatalf("instruction model depends on the target (-sysv +win64):\n%s", diff)
	}

	sysv, win := emitNASM(t, sysvProg, abi.SysV), emitNASM(t, winProg, abi.Win64)
	checks := []struct {
		text, want string
		present    bool
	}{
		{sysv, "section .note.GNU-stack", true},
		{win, "section .note.GNU-stack", false},
		{sysv, "; target: sysv", true},
		{win, "; target: win64", true},
		{sysv, "lea rdi, [fmt_int]", true},
		{win, "lea rcx, [fmt_int]", true},
		{sysv, "mov qword [rsp+0], r10", true},
		{win, "mov qword [rsp+32], r10", true},
		{sysv, "mov r10, qword [rbp+16]", true},
		{win, "mov r10, qword [rbp+48]", true},
	}
	for _, c := range checks {
		if strings.Contains(c.text, c.want) != c.present {
			t.Errorf("presence of %q should be %v", c.want, c.present)
		}
	}

	strip := func(s string) string {
		var keep []string
		for _, l := range strings.Split(s, "\n") {
			l = strings.TrimSpace(l)
			if strings.HasPrefix(l, "call ") || strings.HasSuffix(l, ":") || strings.HasPrefix(l, "j") {
				keep = append(keep, l)
			}
		}
		return strings.Join(keep, "\n")
	}
	if diff := cmp.Diff(strip(sysv), strip(win)); diff != "" {
		t.Errorf("control flow differs between targets (-sysv +win64):\n%s", diff)
	}
}

func TestNASMString(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "0"},
		{"hi", `"hi", 0`},
		{`say "x"`, `"say ", 34, "x", 34, 0`},
		{"a\nb", `"a", 10, "b", 0`},
		{"\t", "9, 0"},
		{"é", "195, 169, 0"},
	}
	for _, tt := range tests {
		if got := nasmString(tt.in); got != tt.want {
			t.Errorf("nasmString(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestMoveSplitting(t *testing.T) {
	prog := &asm.Program{Funcs: []*asm.Func{{Name: "main", Slots: 2}}}
	f := prog.Funcs[0]
	f.Emit(asm.OpPrologue)
	f.Emit(asm.OpMov, asm.Slot(0), asm.Slot(1))
	f.Emit(asm.OpMov, asm.Slot(1), asm.Imm(1<<40))
	f.Emit(asm.OpMov, asm.Global("gv_x"), asm.Addr("str0"))
	f.Emit(asm.OpAdd, asm.RAX, asm.Imm(1<<33))
	f.Emit(asm.OpEpilogue)
	text := emitNASM(t, prog, abi.SysV)
	for _, want := range []string{
		"sub rsp, 24",
		"mov r10, qword [rbp-24]\n    mov qword [rbp-16], r10",
		"mov r10, 1099511627776\n    mov qword [rbp-24], r10",
		"lea r10, [str0]\n    mov qword [gv_x], r10",
		"mov r10, 8589934592\n    add rax, r10",
		"lea rsp, [rbp-8]\n    pop rbx\n    pop rbp\n    ret",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in:\n%s", want, text)
		}
	}
}
