package parser

import (
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/lumen/pkg/ast"
	"github.com/xplshn/lumen/pkg/config"
	"github.com/xplshn/lumen/pkg/lexer"
)

func parse(t *testing.T, src string) []*ast.Node {
	t.Helper()
	toks := lexer.NewLexer([]rune(src), 0, config.NewConfig()).Tokenize()
	root := NewParser(toks).Parse()
	return root.Data.(ast.BlockNode).Stmts
}

// shape renders an expression as a parenthesised string for comparison.
func shape(n *ast.Node) string {
	if n == nil {
		return "nil"
	}
	switch d := n.Data.(type) {
	case ast.NumberNode:
		return strconv.FormatInt(d.Value, 10)
	case ast.StringNode:
		return `"` + d.Value + `"`
	case ast.BoolNode:
		if d.Value {
			return "true"
		}
		return "false"
	case ast.IdentNode:
		return d.Name
	case ast.BinaryOpNode:
		return "(" + shape(d.Left) + " " + d.Op.String() + " " + shape(d.Right) + ")"
	case ast.UnaryOpNode:
		return "(" + d.Op.String() + shape(d.Expr) + ")"
	case ast.TernaryNode:
		return "(" + shape(d.Cond) + " ? " + shape(d.ThenExpr) + " : " + shape(d.ElseExpr) + ")"
	case ast.FuncCallNode:
		s := d.Name + "("
		for i, a := range d.Args {
			if i > 0 {
				s += ", "
			}
			s += shape(a)
		}
		return s + ")"
	case ast.MethodCallNode:
		return shape(d.Recv) + "." + d.Method + "(...)"
	case ast.MemberAccessNode:
		return shape(d.Expr) + "." + d.Member
	case ast.IndexNode:
		return shape(d.Expr) + "[" + shape(d.Index) + "]"
	case ast.IncDecNode:
		if d.Prefix {
			return d.Op.String() + shape(d.Target)
		}
		return shape(d.Target) + d.Op.String()
	case ast.SuperNode:
		return "super"
	case ast.NewNode:
		return "new " + d.Class
	case ast.FuncRefNode:
		return "&" + d.Name
	}
	return n.Type.String()
}

func TestPrecedence(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"x = a + b * c;", "(a + (b * c))"},
		{"x = a - b - c;", "((a - b) - c)"},
		{"x = a ^ b ^ c;", "(a ^ (b ^ c))"},
		{"x = -a ^ 2;", "(-(a ^ 2))"},
		{"x = a < b == c > d;", "((a < b) == (c > d))"},
		{"x = a || b && c;", "(a || (b && c))"},
		{"x = c ? a : b ? d : e;", "(c ? a : (b ? d : e))"},
		{"x = f(a, g(b))[0];", "f(a, g(b))[0]"},
		{"x = 2 * 3 + 4;", "10"},
		{"x = obj.m().f;", "obj.m(...).f"},
		{"x = i++ + --j;", "(i++ + --j)"},
		{"x = &add;", "&add"},
	}
	for _, tt := range tests {
		stmts := parse(t, tt.src)
		if len(stmts) != 1 || stmts[0].Type != ast.Assign {
			t.Fatalf("%s: expected one assignment, got %v", tt.src, stmts)
		}
		if got := shape(stmts[0].Data.(ast.AssignNode).Rhs); got != tt.want {
			t.Errorf("%s: got %s, want %s", tt.src, got, tt.want)
		}
	}
}

func TestCompoundAssignment(t *testing.T) {
	stmts := parse(t, "x += 2; xs[i] *= 3; this.n -= 1;")

	a := stmts[0].Data.(ast.AssignNode)
	if a.Name != "x" || shape(a.Rhs) != "(x + 2)" {
		t.Errorf("x += 2 became %s = %s", a.Name, shape(a.Rhs))
	}
	ia := stmts[1].Data.(ast.IndexAssignNode)
	if shape(ia.Target) != "xs" || shape(ia.Index) != "i" || shape(ia.Rhs) != "(xs[i] * 3)" {
		t.Errorf("xs[i] *= 3 became %s[%s] = %s", shape(ia.Target), shape(ia.Index), shape(ia.Rhs))
	}
	ma := stmts[2].Data.(ast.IndexAssignNode)
	if shape(ma.Target) != "this" || shape(ma.Index) != `"n"` || shape(ma.Rhs) != "(this.n - 1)" {
		t.Errorf("this.n -= 1 became %s[%s] = %s", shape(ma.Target), shape(ma.Index), shape(ma.Rhs))
	}
	if ia.Rhs.Data.(ast.BinaryOpNode).Left.Data.(ast.IndexNode).Expr == ia.Target {
		t.Error("compound assignment shares the target subtree with its right-hand side")
	}
}

func TestDeclarations(t *testing.T) {
	stmts := parse(t, `
func add(a: int, b: int): int { return a + b; }
class Dog extends Animal {
    var name: string = "rex";
    static var count: int = 0;
    constructor(n: string) { this.name = n; }
    override func speak(): string { return "woof " + super.speak(); }
    static func total(): int { return Dog.count; }
}
var xs: list<string>;
`)
	if len(stmts) != 3 {
		t.Fatalf("got %d top-level statements, want 3", len(stmts))
	}

	fn := stmts[0].Data.(ast.FuncDeclNode)
	wantParams := []ast.Param{{Name: "a", Type: ast.IntSigil.Ptr()}, {Name: "b", Type: ast.IntSigil.Ptr()}}
	if diff := cmp.Diff(wantParams, fn.Params); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}
	if fn.ReturnType == nil || *fn.ReturnType != ast.IntSigil {
		t.Errorf("return type %v", fn.ReturnType)
	}

	cls := stmts[1].Data.(ast.ClassDeclNode)
	if cls.Name != "Dog" || cls.Base != "Animal" || len(cls.Fields) != 2 || len(cls.Methods) != 2 || len(cls.Ctors) != 1 {
		t.Fatalf("class shape: %+v", cls)
	}
	if !cls.Fields[1].Data.(ast.FieldDeclNode).IsStatic {
		t.Error("count is not static")
	}
	speak := cls.Methods[0].Data.(ast.MethodDeclNode)
	if !speak.IsOverride || speak.IsStatic {
		t.Errorf("speak flags: override=%v static=%v", speak.IsOverride, speak.IsStatic)
	}
	if !cls.Methods[1].Data.(ast.MethodDeclNode).IsStatic {
		t.Error("total is not static")
	}

	vd := stmts[2].Data.(ast.VarDeclNode)
	if vd.Type == nil || *vd.Type != ast.ListOf(ast.SigStr) || vd.Init != nil {
		t.Errorf("var xs: %+v", vd)
	}
}

func TestStatements(t *testing.T) {
	stmts := parse(t, `
for (var i = 0; i < 3; i++) { if (i == 1) continue; }
do { x = x - 1; } while (x > 0);
switch (s) { case "a": print(1); break; case "b": default: print(0); }
try { throw ValueError("bad"); } catch (ValueError e) { print(e); } catch (e) { } finally { print(2); }
throw "plain";
`)
	want := []ast.NodeType{ast.For, ast.DoWhile, ast.Switch, ast.Try, ast.Throw}
	var got []ast.NodeType
	for _, s := range stmts {
		got = append(got, s.Type)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("statement kinds mismatch (-want +got):\n%s", diff)
	}

	sw := stmts[2].Data.(ast.SwitchNode)
	if len(sw.Cases) != 3 || sw.Cases[2].Type != ast.Default || len(sw.Cases[1].Data.(ast.CaseNode).Body) != 0 {
		t.Errorf("switch cases: %v", sw.Cases)
	}

	try := stmts[3].Data.(ast.TryNode)
	body := try.Body.Data.(ast.BlockNode).Stmts
	th := body[0].Data.(ast.ThrowNode)
	if th.Type != "ValueError" || shape(th.Expr) != `"bad"` {
		t.Errorf("typed throw: %+v", th)
	}
	c0, c1 := try.Catches[0].Data.(ast.CatchNode), try.Catches[1].Data.(ast.CatchNode)
	if c0.Type != "ValueError" || c0.Name != "e" || c1.Type != "" || c1.Name != "e" {
		t.Errorf("catches: %+v %+v", c0, c1)
	}
	if try.Finally == nil {
		t.Error("finally block missing")
	}

	if th := stmts[4].Data.(ast.ThrowNode); th.Type != "" {
		t.Errorf("untyped throw got type %q", th.Type)
	}
}

func TestLiterals(t *testing.T) {
	stmts := parse(t, `var m = {"a": 1, "b": 2}; var l = [1, 2, 3,]; var e = [];`)
	m := stmts[0].Data.(ast.VarDeclNode).Init.Data.(ast.MapLitNode)
	if len(m.Keys) != 2 || shape(m.Keys[1]) != `"b"` || shape(m.Values[1]) != "2" {
		t.Errorf("map literal: %+v", m)
	}
	if l := stmts[1].Data.(ast.VarDeclNode).Init.Data.(ast.ListLitNode); len(l.Elems) != 3 {
		t.Errorf("list literal has %d elements", len(l.Elems))
	}
	if l := stmts[2].Data.(ast.VarDeclNode).Init.Data.(ast.ListLitNode); len(l.Elems) != 0 {
		t.Errorf("empty list literal has %d elements", len(l.Elems))
	}
}
