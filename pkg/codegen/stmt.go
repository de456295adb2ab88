package codegen

import (
	"github.com/xplshn/lumen/pkg/asm"
	"github.com/xplshn/lumen/pkg/ast"
)

func (ctx *Context) codegenStmt(node *ast.Node) {
	if node == nil {
		return
	}
	switch d := node.Data.(type) {
	case ast.BlockNode:
		for _, s := range d.Stmts {
			ctx.codegenStmt(s)
		}
	case ast.PrintNode:
		ctx.codegenPrint(d.Expr)
	case ast.ExprStmtNode:
		ctx.codegenExpr(d.Expr)
	case ast.AssignNode:
		ctx.codegenValue(d.Rhs, ctx.types.Var(ctx.fn.sym, d.Name))
		ctx.store(node, d.Name)
	case ast.VarDeclNode:
		target := ctx.types.Var(ctx.fn.sym, d.Name)
		if d.Init != nil {
			ctx.codegenValue(d.Init, target)
		} else {
			ctx.defaultValue(d.Type)
		}
		ctx.store(node, d.Name)
	case ast.IndexAssignNode:
		ctx.codegenIndexAssign(node, d)
	case ast.IfNode:
		elseL, endL := ctx.newLabel("else"), ctx.newLabel("endif")
		ctx.codegenExpr(d.Cond)
		ctx.emit(asm.OpTest, asm.RAX, asm.RAX)
		ctx.emit(asm.OpJz, elseL)
		ctx.codegenStmt(d.ThenBody)
		ctx.emit(asm.OpJmp, endL)
		ctx.label(elseL)
		ctx.codegenStmt(d.ElseBody)
		ctx.label(endL)
	case ast.WhileNode:
		ctx.codegenWhile(d)
	case ast.DoWhileNode:
		ctx.codegenDoWhile(d)
	case ast.ForNode:
		ctx.codegenFor(d)
	case ast.SwitchNode:
		ctx.codegenSwitch(d)
	case ast.BreakNode:
		ctx.codegenBreak(node, false)
	case ast.ContinueNode:
		ctx.codegenBreak(node, true)
	case ast.ReturnNode:
		ctx.codegenReturn(d)
	case ast.ThrowNode:
		ctx.codegenThrow(d)
	case ast.TryNode:
		ctx.codegenTry(d)
	case ast.FuncDeclNode, ast.ClassDeclNode:
		ctx.warn(node.Tok, "Nested declaration is ignored")
	default:
		ctx.warn(node.Tok, "Unsupported statement %s is ignored", node.Type)
	}
}

// codegenValue evaluates an assigned value. input() reads a string when its
// destination holds strings.
func (ctx *Context) codegenValue(rhs *ast.Node, target ast.Sigil) {
	if rhs != nil && rhs.Type == ast.FuncCall {
		if d := rhs.Data.(ast.FuncCallNode); d.Name == "input" && ctx.isLibraryCall(d.Name) {
			ctx.codegenLibraryCall(rhs, d, target.IsStr())
			return
		}
	}
	ctx.codegenExpr(rhs)
}

func (ctx *Context) codegenIndexAssign(node *ast.Node, d ast.IndexAssignNode) {
	if class, ok := ctx.className(d.Target); ok && d.Index.Type == ast.String {
		field := d.Index.Data.(ast.StringNode).Value
		sym, _, found := ctx.staticField(class, field)
		if !found {
			ctx.warn(node.Tok, "Class '%s' has no static field '%s'", class, field)
			return
		}
		ctx.codegenValue(d.Rhs, ctx.sigil(d.Rhs))
		ctx.emit(asm.OpMov, asm.Global(sym), asm.RAX)
		return
	}

	base := ctx.sigil(d.Target)
	ctx.codegenExpr(d.Target)
	b := ctx.spill()
	switch base.Kind {
	case ast.SigMap, ast.SigObject:
		ctx.codegenKey(d.Index)
		k := ctx.spill()
		ctx.codegenValue(d.Rhs, base.ElemSigil())
		ctx.call("lm_map_set", b, k, asm.RAX, ctx.strFlag(d.Rhs))
	default:
		ctx.codegenExpr(d.Index)
		k := ctx.spill()
		ctx.codegenValue(d.Rhs, base.ElemSigil())
		ctx.call("lm_array_set", b, k, asm.RAX)
	}
	ctx.fn.popTemp(2)
}
