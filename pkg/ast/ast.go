// Package ast defines the types used to represent the Abstract Syntax Tree (AST)
package ast

import (
	"math"

	"github.com/xplshn/lumen/pkg/token"
)

// NodeType defines the kind of a node in the AST
type NodeType int

const (
	// Expressions
	Number NodeType = iota
	Bool
	String
	Ident
	BinaryOp
	UnaryOp
	Ternary
	ListLit
	MapLit
	Index
	MemberAccess
	FuncCall
	MethodCall
	New
	Super
	IncDec
	FuncRef

	// Statements
	Print
	ExprStmt
	Assign
	IndexAssign
	VarDecl
	Block
	If
	While
	DoWhile
	For
	Switch
	Case
	Default
	Break
	Continue
	Return
	Throw
	Try
	Catch
	FuncDecl
	ClassDecl
	FieldDecl
	MethodDecl
	CtorDecl
)

var nodeNames = [...]string{
	"Number", "Bool", "String", "Ident", "BinaryOp", "UnaryOp", "Ternary", "ListLit", "MapLit",
	"Index", "MemberAccess", "FuncCall", "MethodCall", "New", "Super", "IncDec", "FuncRef",
	"Print", "ExprStmt", "Assign", "IndexAssign", "VarDecl", "Block", "If", "While", "DoWhile",
	"For", "Switch", "Case", "Default", "Break", "Continue", "Return", "Throw", "Try", "Catch",
	"FuncDecl", "ClassDecl", "FieldDecl", "MethodDecl", "CtorDecl",
}

func (t NodeType) String() string {
	if int(t) < len(nodeNames) {
		return nodeNames[t]
	}
	return "Unknown"
}

// Node represents a node in the Abstract Syntax Tree
type Node struct {
	Type   NodeType
	Tok    token.Token
	Parent *Node
	Data   interface{}
	Typ    *Sigil // Set by the type checker on member accesses and method calls
}

// --- Node Data Structs ---
type NumberNode struct{ Value int64 }
type BoolNode struct{ Value bool }
type StringNode struct{ Value string }
type IdentNode struct{ Name string }
type BinaryOpNode struct{ Op token.Type; Left, Right *Node }
type UnaryOpNode struct{ Op token.Type; Expr *Node }
type TernaryNode struct{ Cond, ThenExpr, ElseExpr *Node }
type ListLitNode struct{ Elems []*Node }
type MapLitNode struct{ Keys, Values []*Node }
type IndexNode struct{ Expr, Index *Node }
type MemberAccessNode struct{ Expr *Node; Member string }
type FuncCallNode struct{ Name string; Args []*Node }
type MethodCallNode struct{ Recv *Node; Method string; Args []*Node }
type NewNode struct{ Class string; Args []*Node }
type SuperNode struct{}
type IncDecNode struct{ Op token.Type; Prefix bool; Target *Node }
type FuncRefNode struct{ Name string }

type PrintNode struct{ Expr *Node }
type ExprStmtNode struct{ Expr *Node }
type AssignNode struct{ Name string; Rhs *Node }
type IndexAssignNode struct{ Target, Index, Rhs *Node }
type VarDeclNode struct{ Name string; Type *Sigil; Init *Node }
type BlockNode struct{ Stmts []*Node }
type IfNode struct{ Cond, ThenBody, ElseBody *Node }
type WhileNode struct{ Cond, Body *Node }
type DoWhileNode struct{ Body, Cond *Node }
type ForNode struct{ Init, Cond, Post, Body *Node }
type SwitchNode struct{ Expr *Node; Cases []*Node }
type CaseNode struct{ Value *Node; Body []*Node }
type DefaultNode struct{ Body []*Node }
type BreakNode struct{}
type ContinueNode struct{}
type ReturnNode struct{ Expr *Node }
type ThrowNode struct{ Type string; Expr *Node }
type TryNode struct{ Body *Node; Catches []*Node; Finally *Node }
type CatchNode struct{ Type, Name string; Body *Node }

type Param struct {
	Name string
	Type *Sigil
}

type FuncDeclNode struct {
	Name       string
	Params     []Param
	ReturnType *Sigil
	Body       *Node
}

type ClassDeclNode struct {
	Name    string
	Base    string
	Fields  []*Node
	Methods []*Node
	Ctors   []*Node
}

type FieldDeclNode struct {
	Name     string
	Type     *Sigil
	Init     *Node
	IsStatic bool
}

type MethodDeclNode struct {
	Name       string
	Params     []Param
	ReturnType *Sigil
	Body       *Node
	IsStatic   bool
	IsOverride bool
}

type CtorDeclNode struct {
	Params []Param
	Body   *Node
}

// --- Node Constructors ---

func newNode(tok token.Token, nodeType NodeType, data interface{}, children ...*Node) *Node {
	node := &Node{Type: nodeType, Tok: tok, Data: data}
	for _, child := range children {
		if child != nil {
			child.Parent = node
		}
	}
	return node
}

func adopt(parent *Node, children []*Node) {
	for _, c := range children {
		if c != nil {
			c.Parent = parent
		}
	}
}

func NewNumber(tok token.Token, value int64) *Node {
	return newNode(tok, Number, NumberNode{Value: value})
}
func NewBool(tok token.Token, value bool) *Node {
	return newNode(tok, Bool, BoolNode{Value: value})
}
func NewString(tok token.Token, value string) *Node {
	return newNode(tok, String, StringNode{Value: value})
}
func NewIdent(tok token.Token, name string) *Node {
	return newNode(tok, Ident, IdentNode{Name: name})
}
func NewBinaryOp(tok token.Token, op token.Type, left, right *Node) *Node {
	return newNode(tok, BinaryOp, BinaryOpNode{Op: op, Left: left, Right: right}, left, right)
}
func NewUnaryOp(tok token.Token, op token.Type, expr *Node) *Node {
	return newNode(tok, UnaryOp, UnaryOpNode{Op: op, Expr: expr}, expr)
}
func NewTernary(tok token.Token, cond, thenExpr, elseExpr *Node) *Node {
	return newNode(tok, Ternary, TernaryNode{Cond: cond, ThenExpr: thenExpr, ElseExpr: elseExpr}, cond, thenExpr, elseExpr)
}
func NewListLit(tok token.Token, elems []*Node) *Node {
	node := newNode(tok, ListLit, ListLitNode{Elems: elems})
	adopt(node, elems)
	return node
}
func NewMapLit(tok token.Token, keys, values []*Node) *Node {
	node := newNode(tok, MapLit, MapLitNode{Keys: keys, Values: values})
	adopt(node, keys)
	adopt(node, values)
	return node
}
func NewIndex(tok token.Token, expr, index *Node) *Node {
	return newNode(tok, Index, IndexNode{Expr: expr, Index: index}, expr, index)
}
func NewMemberAccess(tok token.Token, expr *Node, member string) *Node {
	return newNode(tok, MemberAccess, MemberAccessNode{Expr: expr, Member: member}, expr)
}
func NewFuncCall(tok token.Token, name string, args []*Node) *Node {
	node := newNode(tok, FuncCall, FuncCallNode{Name: name, Args: args})
	adopt(node, args)
	return node
}
func NewMethodCall(tok token.Token, recv *Node, method string, args []*Node) *Node {
	node := newNode(tok, MethodCall, MethodCallNode{Recv: recv, Method: method, Args: args}, recv)
	adopt(node, args)
	return node
}
func NewNew(tok token.Token, class string, args []*Node) *Node {
	node := newNode(tok, New, NewNode{Class: class, Args: args})
	adopt(node, args)
	return node
}
func NewSuper(tok token.Token) *Node {
	return newNode(tok, Super, SuperNode{})
}
func NewIncDec(tok token.Token, op token.Type, prefix bool, target *Node) *Node {
	return newNode(tok, IncDec, IncDecNode{Op: op, Prefix: prefix, Target: target}, target)
}
func NewFuncRef(tok token.Token, name string) *Node {
	return newNode(tok, FuncRef, FuncRefNode{Name: name})
}

func NewPrint(tok token.Token, expr *Node) *Node {
	return newNode(tok, Print, PrintNode{Expr: expr}, expr)
}
func NewExprStmt(tok token.Token, expr *Node) *Node {
	return newNode(tok, ExprStmt, ExprStmtNode{Expr: expr}, expr)
}
func NewAssign(tok token.Token, name string, rhs *Node) *Node {
	return newNode(tok, Assign, AssignNode{Name: name, Rhs: rhs}, rhs)
}
func NewIndexAssign(tok token.Token, target, index, rhs *Node) *Node {
	return newNode(tok, IndexAssign, IndexAssignNode{Target: target, Index: index, Rhs: rhs}, target, index, rhs)
}
func NewVarDecl(tok token.Token, name string, typ *Sigil, init *Node) *Node {
	return newNode(tok, VarDecl, VarDeclNode{Name: name, Type: typ, Init: init}, init)
}
func NewBlock(tok token.Token, stmts []*Node) *Node {
	node := newNode(tok, Block, BlockNode{Stmts: stmts})
	adopt(node, stmts)
	return node
}
func NewIf(tok token.Token, cond, thenBody, elseBody *Node) *Node {
	return newNode(tok, If, IfNode{Cond: cond, ThenBody: thenBody, ElseBody: elseBody}, cond, thenBody, elseBody)
}
func NewWhile(tok token.Token, cond, body *Node) *Node {
	return newNode(tok, While, WhileNode{Cond: cond, Body: body}, cond, body)
}
func NewDoWhile(tok token.Token, body, cond *Node) *Node {
	return newNode(tok, DoWhile, DoWhileNode{Body: body, Cond: cond}, body, cond)
}
func NewFor(tok token.Token, init, cond, post, body *Node) *Node {
	return newNode(tok, For, ForNode{Init: init, Cond: cond, Post: post, Body: body}, init, cond, post, body)
}
func NewSwitch(tok token.Token, expr *Node, cases []*Node) *Node {
	node := newNode(tok, Switch, SwitchNode{Expr: expr, Cases: cases}, expr)
	adopt(node, cases)
	return node
}
func NewCase(tok token.Token, value *Node, body []*Node) *Node {
	node := newNode(tok, Case, CaseNode{Value: value, Body: body}, value)
	adopt(node, body)
	return node
}
func NewDefault(tok token.Token, body []*Node) *Node {
	node := newNode(tok, Default, DefaultNode{Body: body})
	adopt(node, body)
	return node
}
func NewBreak(tok token.Token) *Node {
	return newNode(tok, Break, BreakNode{})
}
func NewContinue(tok token.Token) *Node {
	return newNode(tok, Continue, ContinueNode{})
}
func NewReturn(tok token.Token, expr *Node) *Node {
	return newNode(tok, Return, ReturnNode{Expr: expr}, expr)
}
func NewThrow(tok token.Token, typeName string, expr *Node) *Node {
	return newNode(tok, Throw, ThrowNode{Type: typeName, Expr: expr}, expr)
}
func NewTry(tok token.Token, body *Node, catches []*Node, finally *Node) *Node {
	node := newNode(tok, Try, TryNode{Body: body, Catches: catches, Finally: finally}, body, finally)
	adopt(node, catches)
	return node
}
func NewCatch(tok token.Token, typeName, name string, body *Node) *Node {
	return newNode(tok, Catch, CatchNode{Type: typeName, Name: name, Body: body}, body)
}
func NewFuncDecl(tok token.Token, name string, params []Param, returnType *Sigil, body *Node) *Node {
	return newNode(tok, FuncDecl, FuncDeclNode{Name: name, Params: params, ReturnType: returnType, Body: body}, body)
}
func NewClassDecl(tok token.Token, name, base string, fields, methods, ctors []*Node) *Node {
	node := newNode(tok, ClassDecl, ClassDeclNode{Name: name, Base: base, Fields: fields, Methods: methods, Ctors: ctors})
	adopt(node, fields)
	adopt(node, methods)
	adopt(node, ctors)
	return node
}
func NewFieldDecl(tok token.Token, name string, typ *Sigil, init *Node, isStatic bool) *Node {
	return newNode(tok, FieldDecl, FieldDeclNode{Name: name, Type: typ, Init: init, IsStatic: isStatic}, init)
}
func NewMethodDecl(tok token.Token, d MethodDeclNode) *Node {
	return newNode(tok, MethodDecl, d, d.Body)
}
func NewCtorDecl(tok token.Token, params []Param, body *Node) *Node {
	return newNode(tok, CtorDecl, CtorDeclNode{Params: params, Body: body}, body)
}

// EnclosingClass walks up the parent chain to the class declaring n, if any.
func EnclosingClass(n *Node) *Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == ClassDecl {
			return p
		}
	}
	return nil
}

// FoldConstants performs compile-time constant evaluation on the AST
func FoldConstants(node *Node) *Node {
	if node == nil {
		return nil
	}

	switch d := node.Data.(type) {
	case BinaryOpNode:
		d.Left = FoldConstants(d.Left)
		d.Right = FoldConstants(d.Right)
		d.Left.Parent, d.Right.Parent = node, node
		node.Data = d
	case UnaryOpNode:
		d.Expr = FoldConstants(d.Expr)
		d.Expr.Parent = node
		node.Data = d
	case TernaryNode:
		d.Cond = FoldConstants(d.Cond)
		if d.Cond.Type == Bool {
			var picked *Node
			if d.Cond.Data.(BoolNode).Value {
				picked = FoldConstants(d.ThenExpr)
			} else {
				picked = FoldConstants(d.ElseExpr)
			}
			picked.Parent = node.Parent
			return picked
		}
		d.ThenExpr = FoldConstants(d.ThenExpr)
		d.ElseExpr = FoldConstants(d.ElseExpr)
		node.Data = d
	}

	switch node.Type {
	case BinaryOp:
		d := node.Data.(BinaryOpNode)
		if d.Left.Type != Number || d.Right.Type != Number {
			return node
		}
		l, r := d.Left.Data.(NumberNode).Value, d.Right.Data.(NumberNode).Value
		var res int64
		switch d.Op {
		case token.Plus: res = l + r
		case token.Minus: res = l - r
		case token.Star: res = l * r
		case token.Caret:
			if r < 0 {
				return node
			}
			res = ipow(l, r)
		case token.Slash:
			if r == 0 || (r == -1 && l == math.MinInt64) {
				return node
			}
			res = l / r
		case token.Rem:
			if r == 0 || (r == -1 && l == math.MinInt64) {
				return node
			}
			res = l % r
		case token.EqEq: return foldBool(node, l == r)
		case token.Neq: return foldBool(node, l != r)
		case token.Lt: return foldBool(node, l < r)
		case token.Gt: return foldBool(node, l > r)
		case token.Lte: return foldBool(node, l <= r)
		case token.Gte: return foldBool(node, l >= r)
		default:
			return node
		}
		folded := NewNumber(node.Tok, res)
		folded.Parent = node.Parent
		return folded
	case UnaryOp:
		d := node.Data.(UnaryOpNode)
		switch {
		case d.Expr.Type == Number && d.Op == token.Minus:
			folded := NewNumber(node.Tok, -d.Expr.Data.(NumberNode).Value)
			folded.Parent = node.Parent
			return folded
		case d.Expr.Type == Bool && d.Op == token.Not:
			return foldBool(node, !d.Expr.Data.(BoolNode).Value)
		}
	}
	return node
}

// ipow raises base to exp by squaring. Products wrap exactly as the repeated
// multiplication emitted for a run-time power does.
func ipow(base, exp int64) int64 {
	res := int64(1)
	for ; exp > 0; exp >>= 1 {
		if exp&1 == 1 {
			res *= base
		}
		base *= base
	}
	return res
}

func foldBool(node *Node, v bool) *Node {
	folded := NewBool(node.Tok, v)
	folded.Parent = node.Parent
	return folded
}
