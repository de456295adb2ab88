package infer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/lumen/pkg/ast"
	"github.com/xplshn/lumen/pkg/config"
	"github.com/xplshn/lumen/pkg/lexer"
	"github.com/xplshn/lumen/pkg/parser"
)

func build(t *testing.T, src string, hints *Hints) (*ast.Node, *Table) {
	t.Helper()
	toks := lexer.NewLexer([]rune(src), 0, config.NewConfig()).Tokenize()
	root := parser.NewParser(toks).Parse()
	return root, Infer(root, hints)
}

// printed returns the sigils of the top-level print statements, in order.
func printed(root *ast.Node, tbl *Table) []ast.Sigil {
	var out []ast.Sigil
	for _, s := range root.Data.(ast.BlockNode).Stmts {
		if s.Type == ast.Print {
			out = append(out, tbl.Of(s.Data.(ast.PrintNode).Expr))
		}
	}
	return out
}

func TestLiteralUniformity(t *testing.T) {
	root, tbl := build(t, `
print([1, 2]);
print(["a", "b"]);
print([1, "a"]);
print([]);
print({"k": "v"});
print({"k": 1, "j": "v"});
`, nil)
	want := []ast.Sigil{
		ast.ListOf(ast.SigInt),
		ast.ListOf(ast.SigStr),
		ast.ListOf(ast.SigInt),
		ast.ListOf(ast.SigInt),
		ast.MapOf(ast.SigStr),
		ast.MapOf(ast.SigInt),
	}
	if diff := cmp.Diff(want, printed(root, tbl)); diff != "" {
		t.Errorf("literal sigils mismatch (-want +got):\n%s", diff)
	}
}

func TestExpressions(t *testing.T) {
	root, tbl := build(t, `
var s = "a";
var xs = ["x"];
var m = {"k": 1};
print(s + "b");
print(s + 1);
print(1 < 2 && s == "a");
print(!0);
print(xs[0]);
print(m["k"]);
print(true ? s : "c");
print(s == "a" ? s : 1);
print(i++);
`, nil)
	want := []ast.Sigil{
		ast.StrSigil, ast.IntSigil, ast.BoolSigil, ast.BoolSigil,
		ast.StrSigil, ast.IntSigil, ast.StrSigil, ast.IntSigil, ast.IntSigil,
	}
	if diff := cmp.Diff(want, printed(root, tbl)); diff != "" {
		t.Errorf("expression sigils mismatch (-want +got):\n%s", diff)
	}
}

func TestLibraryResults(t *testing.T) {
	root, tbl := build(t, `
var words = split("a b", " ");
var nums = [1, 2];
var m = {"a": "x"};
print(words);
print(pop(words));
print(pop(nums));
print(push(words, "c"));
print(keys(m));
print(values(m));
print(get_or(m, "b", "y"));
print(len(words));
print(contains(words, "a"));
print(str(3));
print(error_message(0));
`, nil)
	want := []ast.Sigil{
		ast.ListOf(ast.SigStr),
		ast.StrSigil,
		ast.IntSigil,
		ast.ListOf(ast.SigStr),
		ast.ListOf(ast.SigStr),
		ast.ListOf(ast.SigStr),
		ast.StrSigil,
		ast.IntSigil,
		ast.BoolSigil,
		ast.StrSigil,
		ast.StrSigil,
	}
	if diff := cmp.Diff(want, printed(root, tbl)); diff != "" {
		t.Errorf("library sigils mismatch (-want +got):\n%s", diff)
	}
}

func TestVariables(t *testing.T) {
	src := `
var g = "global";
var late;
late = [1];
func f(a, b) {
    var s;
    s = "x";
    var n = 3;
    return s;
}
class Base {
    static var tag = "base";
    static var hits: int = 0;
}
class Derived extends Base {
    func who(): string { return Derived.tag; }
}
`
	hints := NewHints()
	hints.ParamTypes[ast.FuncSymbol("f")] = []ast.Sigil{ast.StrSigil, ast.ListOf(ast.SigStr)}
	_, tbl := build(t, src, hints)

	tests := []struct {
		fn, name string
		want     ast.Sigil
	}{
		{ast.MainSymbol, "g", ast.StrSigil},
		{ast.MainSymbol, "late", ast.ListOf(ast.SigInt)},
		{ast.FuncSymbol("f"), "a", ast.StrSigil},
		{ast.FuncSymbol("f"), "b", ast.ListOf(ast.SigStr)},
		{ast.FuncSymbol("f"), "s", ast.StrSigil},
		{ast.FuncSymbol("f"), "n", ast.IntSigil},
		{ast.FuncSymbol("f"), "g", ast.StrSigil},
		{ast.FuncSymbol("f"), "missing", ast.IntSigil},
		{ast.MethodSymbol("Derived", "who"), "this", ast.ObjectOf("Derived")},
	}
	for _, tt := range tests {
		if got := tbl.Var(tt.fn, tt.name); got != tt.want {
			t.Errorf("Var(%s, %s) = %s, want %s", tt.fn, tt.name, got, tt.want)
		}
	}

	if got := tbl.Global("g"); got != ast.StrSigil {
		t.Errorf("Global(g) = %s", got)
	}
	if s, ok := tbl.StaticField("Derived", "tag"); !ok || s != ast.StrSigil {
		t.Errorf("StaticField(Derived, tag) = %s, %v", s, ok)
	}
	if s, ok := tbl.StaticField("Base", "hits"); !ok || s != ast.IntSigil {
		t.Errorf("StaticField(Base, hits) = %s, %v", s, ok)
	}
	if _, ok := tbl.StaticField("Derived", "nope"); ok {
		t.Error("StaticField found a field that does not exist")
	}
}

func TestHintedReturns(t *testing.T) {
	hints := NewHints()
	hints.ReturnTypes[ast.FuncSymbol("name")] = ast.StrSigil
	hints.ReturnTypes[ast.MethodSymbol("A", "items")] = ast.ListOf(ast.SigStr)
	hints.ReturnTypes[ast.StaticMethodSymbol("A", "make")] = ast.ObjectOf("A")
	root, tbl := build(t, `
func name() { return "n"; }
class A {
    func items() { return ["a"]; }
    static func make() { return new A(); }
}
class B extends A { }
var b = new B();
print(name());
print(b.items());
print(A.make());
print(b.unknown());
`, hints)
	want := []ast.Sigil{ast.StrSigil, ast.ListOf(ast.SigStr), ast.ObjectOf("A"), ast.IntSigil}
	if diff := cmp.Diff(want, printed(root, tbl)); diff != "" {
		t.Errorf("call sigils mismatch (-want +got):\n%s", diff)
	}
}
