package codegen

import (
	"sort"

	"github.com/xplshn/lumen/pkg/asm"
	"github.com/xplshn/lumen/pkg/ast"
)

// codegenClass emits every method and constructor of ci.
func (ctx *Context) codegenClass(ci *classInfo) {
	for _, m := range ci.methods {
		md := m.Data.(ast.MethodDeclNode)
		if md.IsStatic {
			ctx.codegenRoutine(ast.StaticMethodSymbol(ci.name, md.Name), ci.name, false, md.Params, md.Body)
		} else {
			ctx.codegenRoutine(ast.MethodSymbol(ci.name, md.Name), ci.name, true, md.Params, md.Body)
		}
	}
	arities := make([]int, 0, len(ci.ctors))
	for n := range ci.ctors {
		arities = append(arities, n)
	}
	sort.Ints(arities)
	for _, arity := range arities {
		cd := ci.ctors[arity].Data.(ast.CtorDeclNode)
		ctx.codegenRoutine(ast.CtorSymbol(ci.name, arity), ci.name, true, cd.Params, cd.Body)
	}
}

// codegenVtable builds the method table of ci once, in main.
func (ctx *Context) codegenVtable(ci *classInfo) {
	methods := ctx.flatMethods(ci.name)
	supers := ctx.superEntries(ci.name)
	vt := asm.Global(ast.VtableSymbol(ci.name))

	ctx.call("lm_map_new", asm.Imm(int64(len(methods)+len(supers))))
	ctx.emit(asm.OpMov, vt, asm.RAX)
	for _, m := range append(methods, supers...) {
		ctx.call("lm_map_set", vt, ctx.str(m.name), asm.Addr(m.symbol), asm.Imm(0))
	}
}

func (ctx *Context) codegenStaticInit(ci *classInfo) {
	for _, f := range ci.statics {
		if f.init == nil {
			ctx.defaultValue(f.typ)
		} else {
			ctx.codegenExpr(f.init)
		}
		ctx.emit(asm.OpMov, asm.Global(ast.StaticFieldSymbol(ci.name, f.name)), asm.RAX)
	}
}

// defaultValue is the value of a declaration without initializer: empty
// collections and strings for those types, 0 otherwise.
func (ctx *Context) defaultValue(typ *ast.Sigil) {
	switch {
	case typ == nil:
		ctx.zero()
	case typ.Kind == ast.SigList:
		ctx.call("lm_array_new", asm.Imm(0))
	case typ.Kind == ast.SigMap:
		ctx.call("lm_map_new", asm.Imm(0))
	case typ.IsStr():
		ctx.emit(asm.OpLea, asm.RAX, ctx.str(""))
	default:
		ctx.zero()
	}
}

// codegenNew allocates an instance holding its method table reference and
// its instance fields, then runs the constructor of matching arity.
func (ctx *Context) codegenNew(node *ast.Node, d ast.NewNode) {
	ci, ok := ctx.classes[d.Class]
	if !ok {
		ctx.warn(node.Tok, "Unknown class '%s' in 'new' evaluates to null", d.Class)
		ctx.zero()
		return
	}
	fields := ctx.flatFields(ci.name)
	ctx.call("lm_map_new", asm.Imm(int64(len(fields)+1)))
	obj := ctx.spill()
	ctx.call("lm_map_set", obj, ctx.str(ast.VtableKey), asm.Global(ast.VtableSymbol(ci.name)), asm.Imm(0))
	for _, f := range fields {
		isStr := asm.Imm(0)
		if f.init != nil {
			ctx.codegenExpr(f.init)
			isStr = ctx.strFlag(f.init)
		} else {
			ctx.defaultValue(f.typ)
		}
		if f.typ != nil {
			isStr = 0
			if f.typ.IsStr() {
				isStr = 1
			}
		}
		ctx.call("lm_map_set", obj, ctx.str(f.name), asm.RAX, isStr)
	}

	if _, ok := ci.ctors[len(d.Args)]; ok {
		args := ctx.evalArgs(d.Args)
		ctx.callUser(asm.Label(ast.CtorSymbol(ci.name, len(d.Args))), append([]asm.Operand{obj}, args...)...)
		ctx.fn.popTemp(len(args))
	} else if len(d.Args) > 0 {
		ctx.warn(node.Tok, "Class '%s' has no constructor taking %d arguments", d.Class, len(d.Args))
	}
	ctx.emit(asm.OpMov, asm.RAX, obj)
	ctx.fn.popTemp(1)
}

func (ctx *Context) codegenMethodCall(node *ast.Node, d ast.MethodCallNode) {
	if d.Recv.Type == ast.Super {
		ctx.codegenSuperCall(node, d)
		return
	}
	if class, ok := ctx.className(d.Recv); ok {
		sym, found := ctx.staticMethod(class, d.Method)
		if !found {
			ctx.warn(node.Tok, "Class '%s' has no static method '%s'", class, d.Method)
			ctx.zero()
			return
		}
		args := ctx.evalArgs(d.Args)
		ctx.callUser(asm.Label(sym), args...)
		ctx.fn.popTemp(len(args))
		return
	}

	ctx.codegenExpr(d.Recv)
	recv := ctx.spill()
	args := ctx.evalArgs(d.Args)
	ctx.call("lm_map_get", recv, ctx.str(ast.VtableKey))
	ctx.call("lm_map_get", asm.RAX, ctx.str(d.Method))
	ctx.callMethod(recv, args)
	ctx.fn.popTemp(len(args) + 1)
}

// codegenSuperCall looks up the base implementation stored under the super
// key of the class whose body contains the call.
func (ctx *Context) codegenSuperCall(node *ast.Node, d ast.MethodCallNode) {
	this, ok := ctx.fn.locals["this"]
	if !ok || ctx.fn.class == "" {
		ctx.warn(node.Tok, "'super' used outside of an instance method evaluates to 0")
		ctx.zero()
		return
	}
	args := ctx.evalArgs(d.Args)
	ctx.call("lm_map_get", this, ctx.str(ast.VtableKey))
	ctx.call("lm_map_get", asm.RAX, ctx.str(ast.SuperKey(ctx.fn.class, d.Method)))
	ctx.callMethod(this, args)
	ctx.fn.popTemp(len(args))
}

// callMethod calls the code address in rax with recv prepended to args.
func (ctx *Context) callMethod(recv asm.Operand, args []asm.Operand) {
	fnAddr := ctx.spill()
	ctx.setArgs(append([]asm.Operand{recv}, args...))
	ctx.emit(asm.OpMov, asm.R11, fnAddr)
	ctx.emit(asm.OpCall, asm.R11)
	ctx.checkException()
	ctx.fn.popTemp(1)
}
