package ast

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/lumen/pkg/token"
)

func num(v int64) *Node { return NewNumber(token.Token{}, v) }

func binop(op token.Type, l, r int64) *Node {
	return NewBinaryOp(token.Token{Type: op}, op, num(l), num(r))
}

// repeated multiplies base into 1 exp times, wrapping on overflow.
func repeated(base, exp int64) int64 {
	v := int64(1)
	for ; exp > 0; exp-- {
		v *= base
	}
	return v
}

func TestFoldConstants(t *testing.T) {
	cases := []struct {
		name string
		in   *Node
		want int64
	}{
		{"add", binop(token.Plus, 2, 3), 5},
		{"power", binop(token.Caret, 2, 10), 1024},
		{"zero exponent", binop(token.Caret, 3, 0), 1},
		{"negative base", binop(token.Caret, -2, 3), -8},
		{"power wraps", binop(token.Caret, 2, 64), 0},
		{"power wraps like multiplication", binop(token.Caret, 3, 41), repeated(3, 41)},
		{"division", binop(token.Slash, -7, 2), -3},
		{"remainder", binop(token.Rem, -7, 2), -1},
		{"MinInt64 by one", binop(token.Slash, math.MinInt64, 1), math.MinInt64},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := FoldConstants(tc.in)
			if got.Type != Number {
				t.Fatalf("not folded: %s", got.Type)
			}
			if v := got.Data.(NumberNode).Value; v != tc.want {
				t.Errorf("got %d, want %d", v, tc.want)
			}
		})
	}
}

func TestFoldLargeExponent(t *testing.T) {
	done := make(chan *Node, 1)
	go func() {
		done <- FoldConstants(binop(token.Caret, 1, 20000000000))
	}()
	select {
	case got := <-done:
		if got.Type != Number || got.Data.(NumberNode).Value != 1 {
			t.Errorf("1 ^ 20000000000 folded to %s", got.Type)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("folding 1 ^ 20000000000 did not finish")
	}

	if got := FoldConstants(binop(token.Caret, -1, math.MaxInt64)); got.Data.(NumberNode).Value != -1 {
		t.Errorf("-1 ^ MaxInt64 = %d, want -1", got.Data.(NumberNode).Value)
	}
}

func TestFoldLeavesTrappingOps(t *testing.T) {
	for _, n := range []*Node{
		binop(token.Slash, 1, 0),
		binop(token.Rem, 1, 0),
		binop(token.Slash, math.MinInt64, -1),
		binop(token.Rem, math.MinInt64, -1),
		binop(token.Caret, 2, -1),
	} {
		op := n.Data.(BinaryOpNode).Op
		if got := FoldConstants(n); got.Type != BinaryOp {
			t.Errorf("%s was folded to %s", op, got.Type)
		}
	}
}

func TestSymbolsDistinct(t *testing.T) {
	// Pairs of declarations that a flat underscore scheme would spell alike.
	syms := []struct{ what, sym string }{
		{"method A_B.c", MethodSymbol("A_B", "c")},
		{"method A.B_c", MethodSymbol("A", "B_c")},
		{"static field A.x", StaticFieldSymbol("A", "x")},
		{"static method A.x", StaticMethodSymbol("A", "x")},
		{"method A.x", MethodSymbol("A", "x")},
		{"method A.vtable", MethodSymbol("A", "vtable")},
		{"method A.class_", MethodSymbol("A", "class_")},
		{"vtable of A", VtableSymbol("A")},
		{"ctor A/1", CtorSymbol("A", 1)},
		{"method A.constructor_1", MethodSymbol("A", "constructor_1")},
		{"method A.static_x", MethodSymbol("A", "static_x")},
		{"method A_static.x", MethodSymbol("A_static", "x")},
		{"function A", FuncSymbol("A")},
		{"global A", GlobalSymbol("A")},
	}
	seen := map[string]string{}
	for _, s := range syms {
		if prev, dup := seen[s.sym]; dup {
			t.Errorf("%s and %s both map to %s", prev, s.what, s.sym)
		}
		seen[s.sym] = s.what
	}
}

func TestDump(t *testing.T) {
	field := NewMemberAccess(token.Token{}, NewIdent(token.Token{}, "p"), "x")
	field.Typ = IntSigil.Ptr()
	root := NewBlock(token.Token{}, []*Node{
		NewVarDecl(token.Token{}, "n", StrSigil.Ptr(), NewString(token.Token{}, "a\tb")),
		NewFuncDecl(token.Token{}, "f", []Param{{Name: "a", Type: IntSigil.Ptr()}, {Name: "b"}}, IntSigil.Ptr(),
			NewBlock(token.Token{}, []*Node{
				NewReturn(token.Token{}, NewBinaryOp(token.Token{}, token.Plus, field, num(1))),
			})),
	})

	var buf bytes.Buffer
	Dump(&buf, root)
	want := []string{
		"Block",
		"  VarDecl n: string",
		`    String "a\tb"`,
		"  FuncDecl f(a: int, b): int",
		"    Block",
		"      Return",
		"        BinaryOp +",
		"          MemberAccess .x : int",
		"            Ident p",
		"          Number 1",
	}
	if diff := cmp.Diff(want, strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")); diff != "" {
		t.Errorf("Dump mismatch (-want +got):\n%s", diff)
	}
}
