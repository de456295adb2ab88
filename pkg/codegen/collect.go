package codegen

import (
	"github.com/xplshn/lumen/pkg/ast"
)

type fieldInfo struct {
	name string
	typ  *ast.Sigil
	init *ast.Node
}

type methodInfo struct {
	name   string
	symbol string
}

// classInfo is the read-only descriptor of one class declaration.
type classInfo struct {
	name    string
	base    string
	decl    *ast.Node
	fields  []fieldInfo // instance fields, declaration order
	statics []fieldInfo
	methods []*ast.Node
	ctors   map[int]*ast.Node
}

func (ctx *Context) collectClasses(stmts []*ast.Node) {
	for _, stmt := range stmts {
		if stmt.Type != ast.ClassDecl {
			continue
		}
		d := stmt.Data.(ast.ClassDeclNode)
		ci := &classInfo{name: d.Name, base: d.Base, decl: stmt, ctors: make(map[int]*ast.Node)}
		for _, f := range d.Fields {
			fd := f.Data.(ast.FieldDeclNode)
			info := fieldInfo{name: fd.Name, typ: fd.Type, init: fd.Init}
			if fd.IsStatic {
				ci.statics = append(ci.statics, info)
			} else {
				ci.fields = append(ci.fields, info)
			}
		}
		ci.methods = d.Methods
		for _, c := range d.Ctors {
			ci.ctors[len(c.Data.(ast.CtorDeclNode).Params)] = c
		}
		if _, dup := ctx.classes[d.Name]; !dup {
			ctx.classOrder = append(ctx.classOrder, d.Name)
		}
		ctx.classes[d.Name] = ci
	}
}

// lineage returns the base chain of name, oldest first. Unknown bases and
// cycles end the chain.
func (ctx *Context) lineage(name string) []*classInfo {
	var chain []*classInfo
	seen := make(map[string]bool)
	for c := name; c != "" && !seen[c]; {
		seen[c] = true
		ci, ok := ctx.classes[c]
		if !ok {
			break
		}
		chain = append([]*classInfo{ci}, chain...)
		c = ci.base
	}
	return chain
}

// flatFields is the instance field set of name. A derived field replaces the
// base field of the same name in place.
func (ctx *Context) flatFields(name string) []fieldInfo {
	var out []fieldInfo
	index := make(map[string]int)
	for _, ci := range ctx.lineage(name) {
		for _, f := range ci.fields {
			if i, ok := index[f.name]; ok {
				out[i] = f
				continue
			}
			index[f.name] = len(out)
			out = append(out, f)
		}
	}
	return out
}

// flatMethods is the instance method table of name, resolved to the most
// derived implementation.
func (ctx *Context) flatMethods(name string) []methodInfo {
	var out []methodInfo
	index := make(map[string]int)
	for _, ci := range ctx.lineage(name) {
		for _, m := range ci.methods {
			md := m.Data.(ast.MethodDeclNode)
			if md.IsStatic {
				continue
			}
			mi := methodInfo{name: md.Name, symbol: ast.MethodSymbol(ci.name, md.Name)}
			if i, ok := index[md.Name]; ok {
				out[i] = mi
				continue
			}
			index[md.Name] = len(out)
			out = append(out, mi)
		}
	}
	return out
}

// superEntries maps super::K::m to the base implementation of m for every
// class K of the lineage that has a base.
func (ctx *Context) superEntries(name string) []methodInfo {
	var out []methodInfo
	for _, ci := range ctx.lineage(name) {
		if _, ok := ctx.classes[ci.base]; !ok {
			continue
		}
		for _, m := range ctx.flatMethods(ci.base) {
			out = append(out, methodInfo{name: ast.SuperKey(ci.name, m.name), symbol: m.symbol})
		}
	}
	return out
}

// staticField finds the slot of a static field through the base chain.
func (ctx *Context) staticField(class, field string) (string, *fieldInfo, bool) {
	chain := ctx.lineage(class)
	for i := len(chain) - 1; i >= 0; i-- {
		for j := range chain[i].statics {
			if f := &chain[i].statics[j]; f.name == field {
				return ast.StaticFieldSymbol(chain[i].name, field), f, true
			}
		}
	}
	return "", nil, false
}

func (ctx *Context) staticMethod(class, method string) (string, bool) {
	chain := ctx.lineage(class)
	for i := len(chain) - 1; i >= 0; i-- {
		for _, m := range chain[i].methods {
			if md := m.Data.(ast.MethodDeclNode); md.IsStatic && md.Name == method {
				return ast.StaticMethodSymbol(chain[i].name, method), true
			}
		}
	}
	return "", false
}

// collectGlobals fills the global-storage table: declared and implicit
// globals, static field slots and method table slots.
func (ctx *Context) collectGlobals(stmts []*ast.Node) {
	for name := range ctx.hints.Globals {
		ctx.globals[ast.GlobalSymbol(name)] = true
	}
	for _, stmt := range stmts {
		switch stmt.Type {
		case ast.FuncDecl:
			ctx.funcs[stmt.Data.(ast.FuncDeclNode).Name] = true
		case ast.ClassDecl:
		default:
			walkAST(stmt, func(n *ast.Node) {
				switch d := n.Data.(type) {
				case ast.VarDeclNode:
					ctx.globals[ast.GlobalSymbol(d.Name)] = true
				case ast.AssignNode:
					ctx.globals[ast.GlobalSymbol(d.Name)] = true
				case ast.CatchNode:
					ctx.globals[ast.GlobalSymbol(d.Name)] = true
				}
			})
		}
	}
	for _, name := range ctx.classOrder {
		ci := ctx.classes[name]
		ctx.globals[ast.VtableSymbol(name)] = true
		for _, f := range ci.statics {
			ctx.globals[ast.StaticFieldSymbol(name, f.name)] = true
		}
	}
}

// collectStrings fills the literal pool in program order. Emission only reads
// the pool after this pass.
func (ctx *Context) collectStrings(root *ast.Node) {
	walkAST(root, func(n *ast.Node) {
		switch d := n.Data.(type) {
		case ast.StringNode:
			ctx.addString(d.Value)
		case ast.ClassDeclNode:
			ctx.addString(ast.VtableKey)
			for _, f := range ctx.flatFields(d.Name) {
				ctx.addString(f.name)
			}
			for _, m := range ctx.flatMethods(d.Name) {
				ctx.addString(m.name)
			}
			for _, s := range ctx.superEntries(d.Name) {
				ctx.addString(s.name)
			}
		case ast.MethodCallNode:
			if d.Recv.Type == ast.Super {
				if c := ast.EnclosingClass(n); c != nil {
					ctx.addString(ast.SuperKey(c.Data.(ast.ClassDeclNode).Name, d.Method))
				}
			} else if _, static := ctx.className(d.Recv); !static {
				ctx.addString(ast.VtableKey)
				ctx.addString(d.Method)
			}
		case ast.MemberAccessNode:
			ctx.addString(d.Member)
		case ast.ThrowNode:
			if d.Type != "" {
				ctx.addString(d.Type)
			} else if t := ctx.sigil(d.Expr); t.Kind != ast.SigObject {
				ctx.addString(defaultExceptionType)
			}
		case ast.CatchNode:
			if d.Type != "" {
				ctx.addString(d.Type)
			}
		case ast.VarDeclNode:
			if d.Init == nil && d.Type != nil && d.Type.IsStr() {
				ctx.addString("")
			}
		case ast.FieldDeclNode:
			if d.Init == nil && d.Type != nil && d.Type.IsStr() {
				ctx.addString("")
			}
		}
	})
}

// walkAST visits n and every node below it in source order.
func walkAST(node *ast.Node, visitor func(n *ast.Node)) {
	if node == nil {
		return
	}
	visitor(node)

	switch d := node.Data.(type) {
	case ast.BinaryOpNode:
		walkAST(d.Left, visitor)
		walkAST(d.Right, visitor)
	case ast.UnaryOpNode:
		walkAST(d.Expr, visitor)
	case ast.TernaryNode:
		walkAST(d.Cond, visitor)
		walkAST(d.ThenExpr, visitor)
		walkAST(d.ElseExpr, visitor)
	case ast.ListLitNode:
		walkList(d.Elems, visitor)
	case ast.MapLitNode:
		for i := range d.Keys {
			walkAST(d.Keys[i], visitor)
			walkAST(d.Values[i], visitor)
		}
	case ast.IndexNode:
		walkAST(d.Expr, visitor)
		walkAST(d.Index, visitor)
	case ast.MemberAccessNode:
		walkAST(d.Expr, visitor)
	case ast.FuncCallNode:
		walkList(d.Args, visitor)
	case ast.MethodCallNode:
		walkAST(d.Recv, visitor)
		walkList(d.Args, visitor)
	case ast.NewNode:
		walkList(d.Args, visitor)
	case ast.IncDecNode:
		walkAST(d.Target, visitor)
	case ast.PrintNode:
		walkAST(d.Expr, visitor)
	case ast.ExprStmtNode:
		walkAST(d.Expr, visitor)
	case ast.AssignNode:
		walkAST(d.Rhs, visitor)
	case ast.IndexAssignNode:
		walkAST(d.Target, visitor)
		walkAST(d.Index, visitor)
		walkAST(d.Rhs, visitor)
	case ast.VarDeclNode:
		walkAST(d.Init, visitor)
	case ast.BlockNode:
		walkList(d.Stmts, visitor)
	case ast.IfNode:
		walkAST(d.Cond, visitor)
		walkAST(d.ThenBody, visitor)
		walkAST(d.ElseBody, visitor)
	case ast.WhileNode:
		walkAST(d.Cond, visitor)
		walkAST(d.Body, visitor)
	case ast.DoWhileNode:
		walkAST(d.Body, visitor)
		walkAST(d.Cond, visitor)
	case ast.ForNode:
		walkAST(d.Init, visitor)
		walkAST(d.Cond, visitor)
		walkAST(d.Post, visitor)
		walkAST(d.Body, visitor)
	case ast.SwitchNode:
		walkAST(d.Expr, visitor)
		walkList(d.Cases, visitor)
	case ast.CaseNode:
		walkAST(d.Value, visitor)
		walkList(d.Body, visitor)
	case ast.DefaultNode:
		walkList(d.Body, visitor)
	case ast.ReturnNode:
		walkAST(d.Expr, visitor)
	case ast.ThrowNode:
		walkAST(d.Expr, visitor)
	case ast.TryNode:
		walkAST(d.Body, visitor)
		walkList(d.Catches, visitor)
		walkAST(d.Finally, visitor)
	case ast.CatchNode:
		walkAST(d.Body, visitor)
	case ast.FuncDeclNode:
		walkAST(d.Body, visitor)
	case ast.ClassDeclNode:
		walkList(d.Fields, visitor)
		walkList(d.Methods, visitor)
		walkList(d.Ctors, visitor)
	case ast.FieldDeclNode:
		walkAST(d.Init, visitor)
	case ast.MethodDeclNode:
		walkAST(d.Body, visitor)
	case ast.CtorDeclNode:
		walkAST(d.Body, visitor)
	}
}

func walkList(nodes []*ast.Node, visitor func(n *ast.Node)) {
	for _, n := range nodes {
		walkAST(n, visitor)
	}
}
