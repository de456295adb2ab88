// Package infer decides, for every expression, which runtime representation it
// produces. It runs once over the whole program and records the result in a
// node to sigil table that the code generator consults.
package infer

import (
	"github.com/xplshn/lumen/pkg/ast"
	"github.com/xplshn/lumen/pkg/token"
)

// Hints are the semantic annotations produced by the type checker. Function
// maps are keyed by symbol name (see ast.FuncSymbol and friends); global maps
// by source name.
type Hints struct {
	Globals     map[string]bool
	ParamTypes  map[string][]ast.Sigil
	ReturnTypes map[string]ast.Sigil
	GlobalTypes map[string]ast.Sigil
}

func NewHints() *Hints {
	return &Hints{
		Globals:     make(map[string]bool),
		ParamTypes:  make(map[string][]ast.Sigil),
		ReturnTypes: make(map[string]ast.Sigil),
		GlobalTypes: make(map[string]ast.Sigil),
	}
}

type classIndex struct {
	base    string
	methods map[string]*ast.Node
	statics map[string]*ast.Node
}

type scope struct {
	params map[string]ast.Sigil
	locals map[string]ast.Sigil
	// declared without a type or initializer; typed by their first assignment
	pending map[string]bool
}

func newScope() *scope {
	return &scope{params: map[string]ast.Sigil{}, locals: map[string]ast.Sigil{}, pending: map[string]bool{}}
}

// Table holds the inferred sigils.
type Table struct {
	hints        *Hints
	sigils       map[*ast.Node]ast.Sigil
	scopes       map[string]*scope
	globals      map[string]ast.Sigil
	staticFields map[string]ast.Sigil
	classes      map[string]*classIndex

	fn    string
	class string
}

// Infer walks the program rooted at root: class static fields first, then the
// top-level statements, then every function, method and constructor body.
func Infer(root *ast.Node, hints *Hints) *Table {
	if hints == nil {
		hints = NewHints()
	}
	t := &Table{
		hints:        hints,
		sigils:       make(map[*ast.Node]ast.Sigil),
		scopes:       make(map[string]*scope),
		globals:      make(map[string]ast.Sigil),
		staticFields: make(map[string]ast.Sigil),
		classes:      make(map[string]*classIndex),
	}
	for name, s := range hints.GlobalTypes {
		t.globals[name] = s
	}
	if root == nil || root.Type != ast.Block {
		return t
	}
	stmts := root.Data.(ast.BlockNode).Stmts

	var classDecls, funcDecls []*ast.Node
	for _, s := range stmts {
		switch s.Type {
		case ast.ClassDecl:
			classDecls = append(classDecls, s)
			t.indexClass(s)
		case ast.FuncDecl:
			funcDecls = append(funcDecls, s)
		}
	}

	for _, c := range classDecls {
		d := c.Data.(ast.ClassDeclNode)
		t.enter(ast.MainSymbol, d.Name)
		for _, f := range d.Fields {
			fd := f.Data.(ast.FieldDeclNode)
			t.expr(fd.Init)
			if !fd.IsStatic {
				continue
			}
			s := ast.IntSigil
			switch {
			case fd.Type != nil:
				s = *fd.Type
			case fd.Init != nil:
				s = t.Of(fd.Init)
			}
			t.staticFields[ast.StaticFieldSymbol(d.Name, fd.Name)] = s
		}
	}

	t.enter(ast.MainSymbol, "")
	for _, s := range stmts {
		if s.Type != ast.ClassDecl && s.Type != ast.FuncDecl {
			t.stmt(s)
		}
	}

	for _, f := range funcDecls {
		d := f.Data.(ast.FuncDeclNode)
		t.function(ast.FuncSymbol(d.Name), "", d.Params, false, d.Body)
	}
	for _, c := range classDecls {
		d := c.Data.(ast.ClassDeclNode)
		for _, m := range d.Methods {
			md := m.Data.(ast.MethodDeclNode)
			if md.IsStatic {
				t.function(ast.StaticMethodSymbol(d.Name, md.Name), d.Name, md.Params, false, md.Body)
			} else {
				t.function(ast.MethodSymbol(d.Name, md.Name), d.Name, md.Params, true, md.Body)
			}
		}
		for _, ctor := range d.Ctors {
			cd := ctor.Data.(ast.CtorDeclNode)
			t.function(ast.CtorSymbol(d.Name, len(cd.Params)), d.Name, cd.Params, true, cd.Body)
		}
	}
	return t
}

func (t *Table) indexClass(n *ast.Node) {
	d := n.Data.(ast.ClassDeclNode)
	ci := &classIndex{base: d.Base, methods: map[string]*ast.Node{}, statics: map[string]*ast.Node{}}
	for _, m := range d.Methods {
		md := m.Data.(ast.MethodDeclNode)
		if md.IsStatic {
			ci.statics[md.Name] = m
		} else {
			ci.methods[md.Name] = m
		}
	}
	t.classes[d.Name] = ci
}

func (t *Table) enter(fn, class string) {
	t.fn, t.class = fn, class
	if _, ok := t.scopes[fn]; !ok {
		t.scopes[fn] = newScope()
	}
}

func (t *Table) function(sym, class string, params []ast.Param, hasThis bool, body *ast.Node) {
	t.enter(sym, class)
	sc := t.scopes[sym]
	hinted := t.hints.ParamTypes[sym]
	offset := 0
	if hasThis {
		sc.params["this"] = ast.ObjectOf(class)
		offset = 1
	}
	for i, p := range params {
		s := ast.IntSigil
		switch {
		case i+offset < len(hinted):
			s = hinted[i+offset]
		case p.Type != nil:
			s = *p.Type
		}
		sc.params[p.Name] = s
	}
	t.stmt(body)
}

// Of returns the sigil recorded for n, or Int.
func (t *Table) Of(n *ast.Node) ast.Sigil {
	if n == nil {
		return ast.IntSigil
	}
	if s, ok := t.sigils[n]; ok {
		return s
	}
	return ast.IntSigil
}

func (t *Table) ListElem(n *ast.Node) ast.Sigil { return t.Of(n).ElemSigil() }
func (t *Table) MapValue(n *ast.Node) ast.Sigil { return t.Of(n).ElemSigil() }

// Var resolves name as seen from inside function fn: parameter, then local,
// then global. Unknown names are Int.
func (t *Table) Var(fn, name string) ast.Sigil {
	if sc, ok := t.scopes[fn]; ok {
		if s, ok := sc.params[name]; ok {
			return s
		}
		if s, ok := sc.locals[name]; ok {
			return s
		}
	}
	if s, ok := t.globals[name]; ok {
		return s
	}
	return ast.IntSigil
}

// Global is the sigil of a global variable, including ones typed by their
// first top-level assignment.
func (t *Table) Global(name string) ast.Sigil {
	if s, ok := t.globals[name]; ok {
		return s
	}
	return ast.IntSigil
}

// StaticField is the sigil of class's static field, searched through its bases.
func (t *Table) StaticField(class, field string) (ast.Sigil, bool) {
	for c := class; c != ""; {
		if s, ok := t.staticFields[ast.StaticFieldSymbol(c, field)]; ok {
			return s, true
		}
		ci, ok := t.classes[c]
		if !ok {
			break
		}
		c = ci.base
	}
	return ast.IntSigil, false
}

func (t *Table) isClass(name string) bool {
	_, ok := t.classes[name]
	return ok
}

func (t *Table) isVariable(name string) bool {
	sc := t.scopes[t.fn]
	if sc != nil {
		if _, ok := sc.params[name]; ok {
			return true
		}
		if _, ok := sc.locals[name]; ok {
			return true
		}
		if sc.pending[name] {
			return true
		}
	}
	_, ok := t.globals[name]
	return ok || t.hints.Globals[name]
}

// declare records a variable declared in the current function. In main every
// declaration is global.
func (t *Table) declare(name string, typ *ast.Sigil, init *ast.Node) {
	var s ast.Sigil
	known := true
	switch {
	case typ != nil:
		s = *typ
	case init != nil:
		s = t.Of(init)
	default:
		known = false
	}

	if t.fn == ast.MainSymbol {
		if _, hinted := t.hints.GlobalTypes[name]; hinted {
			return
		}
		if _, seen := t.globals[name]; !seen && known {
			t.globals[name] = s
		}
		return
	}
	sc := t.scopes[t.fn]
	if _, seen := sc.locals[name]; seen {
		return
	}
	if known {
		sc.locals[name] = s
		delete(sc.pending, name)
	} else {
		sc.pending[name] = true
	}
}

func (t *Table) assigned(name string, rhs *ast.Node) {
	s := t.Of(rhs)
	if sc := t.scopes[t.fn]; sc != nil && sc.pending[name] {
		sc.locals[name] = s
		delete(sc.pending, name)
		return
	}
	if t.fn == ast.MainSymbol {
		if _, seen := t.globals[name]; !seen {
			t.globals[name] = s
		}
	}
}

func (t *Table) stmt(n *ast.Node) {
	if n == nil {
		return
	}
	switch d := n.Data.(type) {
	case ast.BlockNode:
		for _, s := range d.Stmts {
			t.stmt(s)
		}
	case ast.PrintNode:
		t.expr(d.Expr)
	case ast.ExprStmtNode:
		t.expr(d.Expr)
	case ast.AssignNode:
		t.expr(d.Rhs)
		t.assigned(d.Name, d.Rhs)
	case ast.IndexAssignNode:
		t.expr(d.Target)
		t.expr(d.Index)
		t.expr(d.Rhs)
	case ast.VarDeclNode:
		t.expr(d.Init)
		t.declare(d.Name, d.Type, d.Init)
	case ast.IfNode:
		t.expr(d.Cond)
		t.stmt(d.ThenBody)
		t.stmt(d.ElseBody)
	case ast.WhileNode:
		t.expr(d.Cond)
		t.stmt(d.Body)
	case ast.DoWhileNode:
		t.stmt(d.Body)
		t.expr(d.Cond)
	case ast.ForNode:
		t.stmt(d.Init)
		t.expr(d.Cond)
		t.stmt(d.Post)
		t.stmt(d.Body)
	case ast.SwitchNode:
		t.expr(d.Expr)
		for _, c := range d.Cases {
			t.stmt(c)
		}
	case ast.CaseNode:
		t.expr(d.Value)
		for _, s := range d.Body {
			t.stmt(s)
		}
	case ast.DefaultNode:
		for _, s := range d.Body {
			t.stmt(s)
		}
	case ast.ReturnNode:
		t.expr(d.Expr)
	case ast.ThrowNode:
		t.expr(d.Expr)
	case ast.TryNode:
		t.stmt(d.Body)
		for _, c := range d.Catches {
			t.stmt(c)
		}
		t.stmt(d.Finally)
	case ast.CatchNode:
		exc := ast.ObjectOf("")
		t.declare(d.Name, &exc, nil)
		t.stmt(d.Body)
	}
}

func (t *Table) record(n *ast.Node, s ast.Sigil) ast.Sigil {
	t.sigils[n] = s
	return s
}

// expr visits the children of n first and then records n's own sigil.
func (t *Table) expr(n *ast.Node) ast.Sigil {
	if n == nil {
		return ast.IntSigil
	}
	switch d := n.Data.(type) {
	case ast.NumberNode:
		return t.record(n, ast.IntSigil)
	case ast.BoolNode:
		return t.record(n, ast.BoolSigil)
	case ast.StringNode:
		return t.record(n, ast.StrSigil)
	case ast.IdentNode:
		if d.Name == "this" && t.class != "" {
			return t.record(n, ast.ObjectOf(t.class))
		}
		if !t.isVariable(d.Name) && t.isClass(d.Name) {
			return t.record(n, ast.ObjectOf(d.Name))
		}
		return t.record(n, t.Var(t.fn, d.Name))
	case ast.BinaryOpNode:
		l, r := t.expr(d.Left), t.expr(d.Right)
		switch d.Op {
		case token.Plus:
			if l.IsStr() && r.IsStr() {
				return t.record(n, ast.StrSigil)
			}
			return t.record(n, ast.IntSigil)
		case token.EqEq, token.Neq, token.Lt, token.Gt, token.Lte, token.Gte, token.AndAnd, token.OrOr:
			return t.record(n, ast.BoolSigil)
		}
		return t.record(n, ast.IntSigil)
	case ast.UnaryOpNode:
		t.expr(d.Expr)
		if d.Op == token.Not {
			return t.record(n, ast.BoolSigil)
		}
		return t.record(n, ast.IntSigil)
	case ast.TernaryNode:
		t.expr(d.Cond)
		a, b := t.expr(d.ThenExpr), t.expr(d.ElseExpr)
		if a == b {
			return t.record(n, a)
		}
		return t.record(n, ast.IntSigil)
	case ast.ListLitNode:
		return t.record(n, ast.ListOf(t.uniform(d.Elems)))
	case ast.MapLitNode:
		for _, k := range d.Keys {
			t.expr(k)
		}
		return t.record(n, ast.MapOf(t.uniform(d.Values)))
	case ast.IndexNode:
		base := t.expr(d.Expr)
		t.expr(d.Index)
		switch base.Kind {
		case ast.SigList, ast.SigMap:
			return t.record(n, base.ElemSigil())
		case ast.SigObject:
			return t.record(n, ast.StrSigil)
		}
		return t.record(n, ast.IntSigil)
	case ast.MemberAccessNode:
		recv := t.expr(d.Expr)
		if n.Typ != nil {
			return t.record(n, *n.Typ)
		}
		if d.Expr.Type == ast.Ident && recv.Kind == ast.SigObject && !t.isVariable(d.Expr.Data.(ast.IdentNode).Name) {
			if s, ok := t.StaticField(recv.Class, d.Member); ok {
				return t.record(n, s)
			}
		}
		return t.record(n, ast.StrSigil)
	case ast.FuncCallNode:
		for _, a := range d.Args {
			t.expr(a)
		}
		if lib, ok := Library[d.Name]; ok && !t.isVariable(d.Name) {
			return t.record(n, lib.result(t, d.Args))
		}
		if s, ok := t.hints.ReturnTypes[ast.FuncSymbol(d.Name)]; ok {
			return t.record(n, s)
		}
		return t.record(n, ast.IntSigil)
	case ast.MethodCallNode:
		recv := t.expr(d.Recv)
		for _, a := range d.Args {
			t.expr(a)
		}
		if n.Typ != nil {
			return t.record(n, *n.Typ)
		}
		static := d.Recv.Type == ast.Ident && !t.isVariable(d.Recv.Data.(ast.IdentNode).Name) && t.isClass(recv.Class)
		if s, ok := t.methodReturn(recv.Class, d.Method, static); ok {
			return t.record(n, s)
		}
		return t.record(n, ast.IntSigil)
	case ast.NewNode:
		for _, a := range d.Args {
			t.expr(a)
		}
		return t.record(n, ast.ObjectOf(d.Class))
	case ast.SuperNode:
		base := ""
		if ci, ok := t.classes[t.class]; ok {
			base = ci.base
		}
		return t.record(n, ast.ObjectOf(base))
	case ast.IncDecNode:
		t.expr(d.Target)
		return t.record(n, ast.IntSigil)
	case ast.FuncRefNode:
		return t.record(n, ast.IntSigil)
	}
	return ast.IntSigil
}

// uniform applies the collection literal rule: Str elements only when every
// element is Str.
func (t *Table) uniform(elems []*ast.Node) ast.SigilKind {
	allStr := len(elems) > 0
	for _, e := range elems {
		if !t.expr(e).IsStr() {
			allStr = false
		}
	}
	if allStr {
		return ast.SigStr
	}
	return ast.SigInt
}

// methodReturn finds the return hint of method through class's lineage.
func (t *Table) methodReturn(class, method string, static bool) (ast.Sigil, bool) {
	for c := class; c != ""; {
		ci, ok := t.classes[c]
		if !ok {
			return ast.IntSigil, false
		}
		if static {
			if _, ok := ci.statics[method]; ok {
				s, ok := t.hints.ReturnTypes[ast.StaticMethodSymbol(c, method)]
				return s, ok
			}
		} else if _, ok := ci.methods[method]; ok {
			s, ok := t.hints.ReturnTypes[ast.MethodSymbol(c, method)]
			return s, ok
		}
		c = ci.base
	}
	return ast.IntSigil, false
}
