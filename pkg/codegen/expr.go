package codegen

import (
	"github.com/xplshn/lumen/pkg/asm"
	"github.com/xplshn/lumen/pkg/ast"
	"github.com/xplshn/lumen/pkg/infer"
	"github.com/xplshn/lumen/pkg/token"
)

// codegenExpr evaluates node into rax.
func (ctx *Context) codegenExpr(node *ast.Node) {
	if node == nil {
		ctx.zero()
		return
	}
	switch d := node.Data.(type) {
	case ast.NumberNode:
		ctx.emit(asm.OpMov, asm.RAX, asm.Imm(d.Value))
	case ast.BoolNode:
		if d.Value {
			ctx.emit(asm.OpMov, asm.RAX, asm.Imm(1))
		} else {
			ctx.zero()
		}
	case ast.StringNode:
		ctx.emit(asm.OpLea, asm.RAX, ctx.str(d.Value))
	case ast.IdentNode:
		ctx.codegenIdent(node, d.Name)
	case ast.BinaryOpNode:
		ctx.codegenBinaryOp(node, d)
	case ast.UnaryOpNode:
		ctx.codegenExpr(d.Expr)
		switch d.Op {
		case token.Minus:
			ctx.emit(asm.OpNeg, asm.RAX)
		case token.Not:
			ctx.setFlag(asm.OpSete)
		}
	case ast.TernaryNode:
		elseL, endL := ctx.newLabel("else"), ctx.newLabel("endif")
		ctx.codegenExpr(d.Cond)
		ctx.emit(asm.OpTest, asm.RAX, asm.RAX)
		ctx.emit(asm.OpJz, elseL)
		ctx.codegenExpr(d.ThenExpr)
		ctx.emit(asm.OpJmp, endL)
		ctx.label(elseL)
		ctx.codegenExpr(d.ElseExpr)
		ctx.label(endL)
	case ast.ListLitNode:
		// lm_array_push grows the list in place; the handle never moves.
		ctx.call("lm_array_new", asm.Imm(0))
		list := ctx.spill()
		for _, e := range d.Elems {
			ctx.codegenExpr(e)
			ctx.call("lm_array_push", list, asm.RAX)
		}
		ctx.emit(asm.OpMov, asm.RAX, list)
		ctx.fn.popTemp(1)
	case ast.MapLitNode:
		ctx.call("lm_map_new", asm.Imm(int64(len(d.Keys))))
		m := ctx.spill()
		for i, k := range d.Keys {
			ctx.codegenKey(k)
			key := ctx.spill()
			ctx.codegenExpr(d.Values[i])
			ctx.call("lm_map_set", m, key, asm.RAX, ctx.strFlag(d.Values[i]))
			ctx.fn.popTemp(1)
		}
		ctx.emit(asm.OpMov, asm.RAX, m)
		ctx.fn.popTemp(1)
	case ast.IndexNode:
		ctx.codegenIndex(node, d)
	case ast.MemberAccessNode:
		ctx.codegenMemberAccess(node, d)
	case ast.FuncCallNode:
		ctx.codegenFuncCall(node, d)
	case ast.MethodCallNode:
		ctx.codegenMethodCall(node, d)
	case ast.NewNode:
		ctx.codegenNew(node, d)
	case ast.SuperNode:
		ctx.codegenIdent(node, "this")
	case ast.IncDecNode:
		ctx.codegenIncDec(node, d)
	case ast.FuncRefNode:
		if !ctx.funcs[d.Name] {
			ctx.warn(node.Tok, "Reference to unknown function '%s' evaluates to 0", d.Name)
			ctx.zero()
			return
		}
		ctx.emit(asm.OpLea, asm.RAX, asm.Addr(ast.FuncSymbol(d.Name)))
	default:
		ctx.warn(node.Tok, "Unsupported expression %s evaluates to 0", node.Type)
		ctx.zero()
	}
}

func (ctx *Context) codegenIdent(node *ast.Node, name string) {
	if loc, ok := ctx.lookupVar(name); ok {
		ctx.emit(asm.OpMov, asm.RAX, loc)
		return
	}
	if ctx.funcs[name] {
		ctx.emit(asm.OpLea, asm.RAX, asm.Addr(ast.FuncSymbol(name)))
		return
	}
	ctx.warn(node.Tok, "Unknown variable '%s' evaluates to 0", name)
	ctx.zero()
}

// store writes rax to the variable name.
func (ctx *Context) store(node *ast.Node, name string) {
	if loc, ok := ctx.lookupVar(name); ok {
		ctx.emit(asm.OpMov, loc, asm.RAX)
		return
	}
	ctx.warn(node.Tok, "Assignment to unknown variable '%s' is dropped", name)
}

// setFlag turns the flags of the last test or cmp into 0 or 1 in rax.
func (ctx *Context) setFlag(op asm.Op) {
	if op == asm.OpSete {
		ctx.emit(asm.OpTest, asm.RAX, asm.RAX)
	}
	ctx.emit(op, asm.AL)
	ctx.emit(asm.OpMovzx, asm.RAX, asm.AL)
}

var compareOps = map[token.Type]asm.Op{
	token.EqEq: asm.OpSete,
	token.Neq:  asm.OpSetne,
	token.Lt:   asm.OpSetl,
	token.Gt:   asm.OpSetg,
	token.Lte:  asm.OpSetle,
	token.Gte:  asm.OpSetge,
}

func (ctx *Context) codegenBinaryOp(node *ast.Node, d ast.BinaryOpNode) {
	switch d.Op {
	case token.AndAnd, token.OrOr:
		ctx.codegenShortCircuit(d)
		return
	case token.Caret:
		ctx.codegenPower(d)
		return
	}

	bothStr := ctx.sigil(d.Left).IsStr() && ctx.sigil(d.Right).IsStr()
	ctx.codegenExpr(d.Left)
	left := ctx.spill()
	ctx.codegenExpr(d.Right)
	defer ctx.fn.popTemp(1)

	if bothStr {
		switch d.Op {
		case token.Plus:
			ctx.call("lm_str_concat", left, asm.RAX)
			return
		case token.EqEq, token.Neq:
			ctx.call("strcmp", left, asm.RAX)
			ctx.emit(asm.OpTest, asm.EAX, asm.EAX)
			ctx.emit(compareOps[d.Op], asm.AL)
			ctx.emit(asm.OpMovzx, asm.RAX, asm.AL)
			return
		}
	}

	ctx.emit(asm.OpMov, asm.RBX, asm.RAX)
	ctx.emit(asm.OpMov, asm.RAX, left)
	switch d.Op {
	case token.Plus:
		ctx.emit(asm.OpAdd, asm.RAX, asm.RBX)
	case token.Minus:
		ctx.emit(asm.OpSub, asm.RAX, asm.RBX)
	case token.Star:
		ctx.emit(asm.OpImul, asm.RAX, asm.RBX)
	case token.Slash, token.Rem:
		ctx.emit(asm.OpCqo)
		ctx.emit(asm.OpIdiv, asm.RBX)
		if d.Op == token.Rem {
			ctx.emit(asm.OpMov, asm.RAX, asm.RDX)
		}
	default:
		op, ok := compareOps[d.Op]
		if !ok {
			ctx.warn(node.Tok, "Unsupported operator '%s' evaluates to 0", token.TypeStrings[d.Op])
			ctx.zero()
			return
		}
		ctx.emit(asm.OpCmp, asm.RAX, asm.RBX)
		ctx.emit(op, asm.AL)
		ctx.emit(asm.OpMovzx, asm.RAX, asm.AL)
	}
}

// codegenShortCircuit evaluates the right operand of && and || only when the
// left one does not decide the result.
func (ctx *Context) codegenShortCircuit(d ast.BinaryOpNode) {
	base, jump := "scfalse", asm.OpJz
	if d.Op == token.OrOr {
		base, jump = "sctrue", asm.OpJnz
	}
	decided, end := ctx.newLabel(base), ctx.newLabel("scend")
	ctx.codegenExpr(d.Left)
	ctx.emit(asm.OpTest, asm.RAX, asm.RAX)
	ctx.emit(jump, decided)
	ctx.codegenExpr(d.Right)
	ctx.emit(asm.OpTest, asm.RAX, asm.RAX)
	ctx.emit(jump, decided)
	if d.Op == token.OrOr {
		ctx.zero()
	} else {
		ctx.emit(asm.OpMov, asm.RAX, asm.Imm(1))
	}
	ctx.emit(asm.OpJmp, end)
	ctx.label(decided)
	if d.Op == token.OrOr {
		ctx.emit(asm.OpMov, asm.RAX, asm.Imm(1))
	} else {
		ctx.zero()
	}
	ctx.label(end)
}

// codegenPower multiplies in a counted loop. A negative exponent yields 1.
func (ctx *Context) codegenPower(d ast.BinaryOpNode) {
	loop, end := ctx.newLabel("pow"), ctx.newLabel("powend")
	ctx.codegenExpr(d.Left)
	base := ctx.spill()
	ctx.codegenExpr(d.Right)
	ctx.emit(asm.OpMov, asm.RBX, asm.RAX)
	ctx.emit(asm.OpMov, asm.RAX, asm.Imm(1))
	ctx.label(loop)
	ctx.emit(asm.OpCmp, asm.RBX, asm.Imm(0))
	ctx.emit(asm.OpJle, end)
	ctx.emit(asm.OpImul, asm.RAX, base)
	ctx.emit(asm.OpSub, asm.RBX, asm.Imm(1))
	ctx.emit(asm.OpJmp, loop)
	ctx.label(end)
	ctx.fn.popTemp(1)
}

// codegenKey evaluates a map key into rax, converting non-strings.
func (ctx *Context) codegenKey(n *ast.Node) {
	ctx.codegenExpr(n)
	if n.Type == ast.String {
		return
	}
	if s := ctx.sigil(n); s.Kind == ast.SigInt || s.Kind == ast.SigBool {
		ctx.call("lm_to_string", asm.RAX)
	}
}

// strFlag is the is-string argument of lm_map_set for a stored value.
func (ctx *Context) strFlag(value *ast.Node) asm.Imm {
	if ctx.sigil(value).IsStr() {
		return 1
	}
	return 0
}

func (ctx *Context) codegenIndex(node *ast.Node, d ast.IndexNode) {
	if class, ok := ctx.className(d.Expr); ok && d.Index.Type == ast.String {
		ctx.loadStatic(node, class, d.Index.Data.(ast.StringNode).Value)
		return
	}
	base := ctx.sigil(d.Expr)
	ctx.codegenExpr(d.Expr)
	b := ctx.spill()
	switch base.Kind {
	case ast.SigMap, ast.SigObject:
		ctx.codegenKey(d.Index)
		ctx.call("lm_map_get", b, asm.RAX)
	default:
		ctx.codegenExpr(d.Index)
		ctx.call("lm_array_get", b, asm.RAX)
	}
	ctx.fn.popTemp(1)
}

func (ctx *Context) loadStatic(node *ast.Node, class, field string) {
	sym, _, ok := ctx.staticField(class, field)
	if !ok {
		ctx.warn(node.Tok, "Class '%s' has no static field '%s'", class, field)
		ctx.zero()
		return
	}
	ctx.emit(asm.OpMov, asm.RAX, asm.Global(sym))
}

func (ctx *Context) codegenMemberAccess(node *ast.Node, d ast.MemberAccessNode) {
	if class, ok := ctx.className(d.Expr); ok {
		ctx.loadStatic(node, class, d.Member)
		return
	}
	ctx.codegenExpr(d.Expr)
	ctx.call("lm_map_get", asm.RAX, ctx.str(d.Member))
}

// isLibraryCall reports whether a call by name reaches the built-in library
// rather than a variable holding a function address.
func (ctx *Context) isLibraryCall(name string) bool {
	return infer.IsLibrary(name) && !ctx.isVariable(name)
}

func (ctx *Context) codegenFuncCall(node *ast.Node, d ast.FuncCallNode) {
	if loc, ok := ctx.lookupVar(d.Name); ok {
		args := ctx.evalArgs(d.Args)
		ctx.setArgs(args)
		ctx.emit(asm.OpMov, asm.R11, loc)
		ctx.emit(asm.OpCall, asm.R11)
		ctx.checkException()
		ctx.fn.popTemp(len(args))
		return
	}
	if infer.IsLibrary(d.Name) {
		ctx.codegenLibraryCall(node, d, false)
		return
	}
	if !ctx.funcs[d.Name] {
		ctx.warn(node.Tok, "Call to unknown function '%s' evaluates to 0", d.Name)
		ctx.zero()
		return
	}
	args := ctx.evalArgs(d.Args)
	ctx.callUser(asm.Label(ast.FuncSymbol(d.Name)), args...)
	ctx.fn.popTemp(len(args))
}

// codegenIncDec updates an l-value by one and yields the old value for the
// postfix form and the new value for the prefix form.
func (ctx *Context) codegenIncDec(node *ast.Node, d ast.IncDecNode) {
	step := asm.OpAdd
	if d.Op == token.Dec {
		step = asm.OpSub
	}

	if d.Target.Type == ast.Ident {
		name := d.Target.Data.(ast.IdentNode).Name
		loc, ok := ctx.lookupVar(name)
		if !ok {
			ctx.warn(node.Tok, "Unknown variable '%s' evaluates to 0", name)
			ctx.zero()
			return
		}
		ctx.emit(asm.OpMov, asm.RAX, loc)
		ctx.emit(asm.OpMov, asm.RBX, asm.RAX)
		ctx.emit(step, asm.RBX, asm.Imm(1))
		ctx.emit(asm.OpMov, loc, asm.RBX)
		if d.Prefix {
			ctx.emit(asm.OpMov, asm.RAX, asm.RBX)
		}
		return
	}

	var base, key *ast.Node
	switch t := d.Target.Data.(type) {
	case ast.IndexNode:
		base, key = t.Expr, t.Index
	case ast.MemberAccessNode:
		base, key = t.Expr, ast.NewString(d.Target.Tok, t.Member)
	}
	if class, ok := ctx.className(base); ok && key.Type == ast.String {
		sym, _, found := ctx.staticField(class, key.Data.(ast.StringNode).Value)
		if !found {
			ctx.warn(node.Tok, "Class '%s' has no static field '%s'", class, key.Data.(ast.StringNode).Value)
			ctx.zero()
			return
		}
		ctx.emit(asm.OpMov, asm.RAX, asm.Global(sym))
		ctx.emit(asm.OpMov, asm.RBX, asm.RAX)
		ctx.emit(step, asm.RBX, asm.Imm(1))
		ctx.emit(asm.OpMov, asm.Global(sym), asm.RBX)
		if d.Prefix {
			ctx.emit(asm.OpMov, asm.RAX, asm.RBX)
		}
		return
	}

	isMap := ctx.sigil(base).Kind == ast.SigMap || ctx.sigil(base).Kind == ast.SigObject
	ctx.codegenExpr(base)
	b := ctx.spill()
	if isMap {
		ctx.codegenKey(key)
	} else {
		ctx.codegenExpr(key)
	}
	k := ctx.spill()
	if isMap {
		ctx.call("lm_map_get", b, k)
	} else {
		ctx.call("lm_array_get", b, k)
	}
	old := ctx.spill()
	ctx.emit(step, asm.RAX, asm.Imm(1))
	updated := ctx.spill()
	if isMap {
		ctx.call("lm_map_set", b, k, updated, asm.Imm(0))
	} else {
		ctx.call("lm_array_set", b, k, updated)
	}
	if d.Prefix {
		ctx.emit(asm.OpMov, asm.RAX, updated)
	} else {
		ctx.emit(asm.OpMov, asm.RAX, old)
	}
	ctx.fn.popTemp(4)
}
