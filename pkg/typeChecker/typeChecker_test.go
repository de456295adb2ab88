package typeChecker

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/lumen/pkg/ast"
	"github.com/xplshn/lumen/pkg/config"
	"github.com/xplshn/lumen/pkg/lexer"
	"github.com/xplshn/lumen/pkg/parser"
	"github.com/xplshn/lumen/pkg/util"
)

type fatal struct{ code int }

// check runs the checker over src and returns the root, the checker and the
// diagnostics written. A call to util.Error aborts the check and sets failed.
func check(t *testing.T, src string) (root *ast.Node, tc *TypeChecker, diags string, failed bool) {
	t.Helper()
	var buf bytes.Buffer
	oldOut := util.SetOutput(&buf)
	oldExit := util.SetExit(func(code int) { panic(fatal{code}) })
	defer func() {
		util.SetOutput(oldOut)
		util.SetExit(oldExit)
		if r := recover(); r != nil {
			if _, ok := r.(fatal); !ok {
				panic(r)
			}
			failed = true
		}
		diags = buf.String()
	}()

	cfg := config.NewConfig()
	toks := lexer.NewLexer([]rune(src), 0, cfg).Tokenize()
	root = parser.NewParser(toks).Parse()
	tc = NewTypeChecker(cfg)
	tc.Check(root)
	return root, tc, "", false
}

const program = `
var names: list<string>;
var p = new Person("ada");
func greet(who: string, times: int): string { return who; }
class Person {
    var name: string;
    var age = 3;
    static var count: int = 0;
    constructor(n: string) { this.name = n; }
    func hello(x): string { return "hi " + this.name; }
    static func total(): int { return Person.count; }
}
print(p.name);
print(p.hello(1));
print(Person.total());
`

func TestHints(t *testing.T) {
	_, tc, diags, failed := check(t, program)
	if failed {
		t.Fatalf("check failed:\n%s", diags)
	}
	h := tc.Hints()

	if !h.Globals["names"] || !h.Globals["p"] {
		t.Errorf("globals: %v", h.Globals)
	}
	if got := h.GlobalTypes["names"]; got != ast.ListOf(ast.SigStr) {
		t.Errorf("names has type %s", got)
	}

	wantParams := map[string][]ast.Sigil{
		ast.FuncSymbol("greet"):                   {ast.StrSigil, ast.IntSigil},
		ast.CtorSymbol("Person", 1):               {ast.ObjectOf("Person"), ast.StrSigil},
		ast.MethodSymbol("Person", "hello"):       {ast.ObjectOf("Person"), ast.IntSigil},
		ast.StaticMethodSymbol("Person", "total"): nil,
	}
	if diff := cmp.Diff(wantParams, h.ParamTypes); diff != "" {
		t.Errorf("param types mismatch (-want +got):\n%s", diff)
	}

	wantReturns := map[string]ast.Sigil{
		ast.FuncSymbol("greet"):                   ast.StrSigil,
		ast.MethodSymbol("Person", "hello"):       ast.StrSigil,
		ast.StaticMethodSymbol("Person", "total"): ast.IntSigil,
	}
	if diff := cmp.Diff(wantReturns, h.ReturnTypes); diff != "" {
		t.Errorf("return types mismatch (-want +got):\n%s", diff)
	}
}

func TestAnnotations(t *testing.T) {
	root, _, diags, failed := check(t, program)
	if failed {
		t.Fatalf("check failed:\n%s", diags)
	}
	var prints []*ast.Node
	for _, s := range root.Data.(ast.BlockNode).Stmts {
		if s.Type == ast.Print {
			prints = append(prints, s.Data.(ast.PrintNode).Expr)
		}
	}
	want := []ast.Sigil{ast.StrSigil, ast.StrSigil, ast.IntSigil}
	var got []ast.Sigil
	for _, e := range prints {
		if e.Typ == nil {
			t.Fatalf("%s at line %d has no annotation", e.Type, e.Tok.Line)
		}
		got = append(got, *e.Typ)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("annotations mismatch (-want +got):\n%s", diff)
	}
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"undefined variable", "print(x);", "Undefined variable 'x'"},
		{"undefined function", "f(1);", "Call to undefined function 'f'"},
		{"arity", "func f(a) { return a; } f(1, 2);", "Function 'f' takes 1 arguments, got 2"},
		{"library arity", "print(len());", "Library function 'len' takes"},
		{"library redefinition", "func len(x) { return 0; }", "'len' is a library function"},
		{"break outside loop", "break;", "'break' outside of a loop or switch"},
		{"continue in switch", "switch (1) { case 1: continue; }", "'continue' outside of a loop"},
		{"unknown base", "class A extends B { }", "Class 'A' extends unknown class 'B'"},
		{"inheritance cycle", "class A extends B { } class B extends A { }", "Inheritance cycle"},
		{"this at top level", "print(this);", "'this' used outside of an instance method"},
		{"static through instance", "class A { static func s() { return 1; } } var a = new A(); a.s();", "called through an instance"},
		{"duplicate ctor", "class A { constructor(x) { } constructor(y) { } }", "already has a constructor taking 1 arguments"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, diags, failed := check(t, tt.src)
			if !failed {
				t.Fatalf("expected an error, diagnostics:\n%s", diags)
			}
			if !strings.Contains(diags, tt.want) {
				t.Errorf("diagnostics do not mention %q:\n%s", tt.want, diags)
			}
		})
	}
}

func TestWarnings(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unreachable", "func f() { return 1; print(2); }", "Unreachable code [-Wunreachable-code]"},
		{"string plus int", `var s = "a" + 1;`, "is integer addition; convert with str() [-Wtype]"},
		{"declared type mismatch", `var n: int = "x";`, "[-Wtype]"},
		{"missing method", "class A { } var a = new A(); a.go();", "Class 'A' has no method 'go'"},
		{"missing field", "class A { } var a = new A(); print(a.f);", "Class 'A' has no field 'f'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, diags, failed := check(t, tt.src)
			if failed {
				t.Fatalf("unexpected error:\n%s", diags)
			}
			if !strings.Contains(diags, tt.want) {
				t.Errorf("diagnostics do not mention %q:\n%s", tt.want, diags)
			}
		})
	}
}
