package codegen

import (
	"github.com/xplshn/lumen/pkg/asm"
	"github.com/xplshn/lumen/pkg/ast"
)

// defaultExceptionType tags exceptions thrown without a type name.
const defaultExceptionType = "Exception"

func (ctx *Context) pushLoop(brk, cont asm.Label, isSwitch bool) {
	fs := ctx.fn
	fs.loops = append(fs.loops, loopFrame{brk: brk, cont: cont, isSwitch: isSwitch, depth: len(fs.finallies)})
}

func (ctx *Context) popLoop() { ctx.fn.loops = ctx.fn.loops[:len(ctx.fn.loops)-1] }

func (ctx *Context) codegenWhile(d ast.WhileNode) {
	loop, cont, end := ctx.newLabel("loop"), ctx.newLabel("cont"), ctx.newLabel("endloop")
	ctx.label(loop)
	ctx.label(cont)
	ctx.codegenExpr(d.Cond)
	ctx.emit(asm.OpTest, asm.RAX, asm.RAX)
	ctx.emit(asm.OpJz, end)
	ctx.pushLoop(end, cont, false)
	ctx.codegenStmt(d.Body)
	ctx.popLoop()
	ctx.emit(asm.OpJmp, loop)
	ctx.label(end)
}

func (ctx *Context) codegenDoWhile(d ast.DoWhileNode) {
	loop, cont, end := ctx.newLabel("doloop"), ctx.newLabel("docont"), ctx.newLabel("doend")
	ctx.label(loop)
	ctx.pushLoop(end, cont, false)
	ctx.codegenStmt(d.Body)
	ctx.popLoop()
	ctx.label(cont)
	ctx.codegenExpr(d.Cond)
	ctx.emit(asm.OpTest, asm.RAX, asm.RAX)
	ctx.emit(asm.OpJnz, loop)
	ctx.label(end)
}

func (ctx *Context) codegenFor(d ast.ForNode) {
	loop, cont, end := ctx.newLabel("forloop"), ctx.newLabel("forcont"), ctx.newLabel("forend")
	ctx.codegenStmt(d.Init)
	ctx.label(loop)
	if d.Cond != nil {
		ctx.codegenExpr(d.Cond)
		ctx.emit(asm.OpTest, asm.RAX, asm.RAX)
		ctx.emit(asm.OpJz, end)
	}
	ctx.pushLoop(end, cont, false)
	ctx.codegenStmt(d.Body)
	ctx.popLoop()
	ctx.label(cont)
	ctx.codegenStmt(d.Post)
	ctx.emit(asm.OpJmp, loop)
	ctx.label(end)
}

// codegenSwitch compares the subject with each case in order; the first
// match wins. Bodies are laid out in order and fall through.
func (ctx *Context) codegenSwitch(d ast.SwitchNode) {
	end := ctx.newLabel("switchend")
	strSubject := ctx.sigil(d.Expr).IsStr()
	ctx.codegenExpr(d.Expr)
	subject := ctx.spill()

	bodies := make([]asm.Label, len(d.Cases))
	fallback := end
	for i, c := range d.Cases {
		cd, ok := c.Data.(ast.CaseNode)
		if !ok {
			bodies[i] = ctx.newLabel("defcase")
			fallback = bodies[i]
			continue
		}
		bodies[i] = ctx.newLabel("case")
		ctx.codegenExpr(cd.Value)
		if strSubject && ctx.sigil(cd.Value).IsStr() {
			ctx.call("strcmp", subject, asm.RAX)
			ctx.emit(asm.OpTest, asm.EAX, asm.EAX)
			ctx.emit(asm.OpJz, bodies[i])
			continue
		}
		ctx.emit(asm.OpCmp, asm.RAX, subject)
		ctx.emit(asm.OpJz, bodies[i])
	}
	ctx.emit(asm.OpJmp, fallback)

	ctx.pushLoop(end, "", true)
	for i, c := range d.Cases {
		ctx.label(bodies[i])
		var body []*ast.Node
		if cd, ok := c.Data.(ast.CaseNode); ok {
			body = cd.Body
		} else {
			body = c.Data.(ast.DefaultNode).Body
		}
		for _, s := range body {
			ctx.codegenStmt(s)
		}
	}
	ctx.popLoop()
	ctx.label(end)
	ctx.fn.popTemp(1)
}

// codegenBreak resolves break to the innermost loop or switch and continue to
// the innermost loop, replaying the finally blocks it leaves.
func (ctx *Context) codegenBreak(node *ast.Node, isContinue bool) {
	loops := ctx.fn.loops
	for i := len(loops) - 1; i >= 0; i-- {
		l := loops[i]
		if isContinue && l.isSwitch {
			continue
		}
		ctx.replayFinallies(l.depth)
		if isContinue {
			ctx.emit(asm.OpJmp, l.cont)
		} else {
			ctx.emit(asm.OpJmp, l.brk)
		}
		return
	}
	ctx.warn(node.Tok, "'break' or 'continue' outside of a loop is ignored")
}

// codegenReturn computes the value first, keeps it in the return slot while
// enclosing finally blocks run, then leaves through the routine's exit.
func (ctx *Context) codegenReturn(d ast.ReturnNode) {
	fs := ctx.fn
	if d.Expr != nil {
		ctx.codegenExpr(d.Expr)
	} else {
		ctx.zero()
	}
	if len(fs.finallies) > 0 {
		ctx.emit(asm.OpMov, fs.retSlot, asm.RAX)
		ctx.replayFinallies(0)
		ctx.emit(asm.OpMov, asm.RAX, fs.retSlot)
	}
	ctx.emit(asm.OpJmp, fs.retLabel)
}

// replayFinallies emits every finally body above depth, innermost first.
// Each body is emitted as if its own try had already been left.
func (ctx *Context) replayFinallies(depth int) {
	fs := ctx.fn
	savedFinallies, savedUnwind := fs.finallies, fs.unwind
	for i := len(savedFinallies) - 1; i >= depth; i-- {
		e := savedFinallies[i]
		fs.finallies = savedFinallies[:i:i]
		fs.unwind = savedUnwind[:e.unwindDepth:e.unwindDepth]
		ctx.codegenStmt(e.body)
	}
	fs.finallies, fs.unwind = savedFinallies, savedUnwind
}

// checkException follows a call to user code: a non-zero rdx is an exception
// for the innermost unwind target.
func (ctx *Context) checkException() {
	fs := ctx.fn
	tgt := fs.target()
	ctx.emit(asm.OpTest, asm.RDX, asm.RDX)
	if len(fs.finallies) <= tgt.depth {
		ctx.emit(asm.OpJnz, tgt.label)
		return
	}
	skip := ctx.newLabel("noexc")
	ctx.emit(asm.OpJz, skip)
	ctx.raise()
	ctx.label(skip)
}

// raise delivers the exception in rdx to the innermost unwind target after
// replaying the finally blocks that target does not run itself.
func (ctx *Context) raise() {
	fs := ctx.fn
	tgt := fs.target()
	if len(fs.finallies) > tgt.depth {
		exc := fs.pushTemp()
		ctx.emit(asm.OpMov, exc, asm.RDX)
		ctx.replayFinallies(tgt.depth)
		ctx.emit(asm.OpMov, asm.RDX, exc)
		fs.popTemp(1)
	}
	ctx.emit(asm.OpJmp, tgt.label)
}

// codegenThrow builds the exception object and raises it. Objects, such as a
// caught exception, are rethrown unchanged.
func (ctx *Context) codegenThrow(d ast.ThrowNode) {
	s := ctx.sigil(d.Expr)
	ctx.codegenExpr(d.Expr)
	if d.Type != "" || s.Kind != ast.SigObject {
		if !s.IsStr() {
			ctx.call("lm_to_string", asm.RAX)
		}
		typ := d.Type
		if typ == "" {
			typ = defaultExceptionType
		}
		ctx.call("lm_exception_new", ctx.str(typ), asm.RAX)
	}
	ctx.emit(asm.OpMov, asm.RDX, asm.RAX)
	ctx.raise()
}

// codegenTry lays out
//
//	body; jmp fin
//	catch: save exc; typed checks; catch bodies, each ending in jmp fin
//	catchexit: save exc
//	rethrow: finally; raise exc to the outer target
//	fin: finally
//
// so each path runs the finally exactly once.
func (ctx *Context) codegenTry(d ast.TryNode) {
	fs := ctx.fn
	catchL, catchExit := ctx.newLabel("catch"), ctx.newLabel("catchexit")
	rethrow, fin := ctx.newLabel("rethrow"), ctx.newLabel("finally")
	end := ctx.newLabel("endtry")
	exc := fs.pushTemp()

	outer := len(fs.unwind)
	depth := len(fs.finallies)
	if d.Finally != nil {
		depth++
	}
	fs.unwind = append(fs.unwind, unwindTarget{label: catchL, depth: depth})
	if d.Finally != nil {
		fs.finallies = append(fs.finallies, finallyEntry{body: d.Finally, unwindDepth: outer})
	}

	ctx.codegenStmt(d.Body)
	ctx.emit(asm.OpJmp, fin)

	fs.unwind[len(fs.unwind)-1] = unwindTarget{label: catchExit, depth: depth}
	ctx.label(catchL)
	ctx.emit(asm.OpMov, exc, asm.RDX)
	caughtAll := false
	for _, c := range d.Catches {
		cd := c.Data.(ast.CatchNode)
		next := ctx.newLabel("nextcatch")
		if cd.Type != "" {
			ctx.call("lm_exception_type", exc)
			ctx.call("strcmp", asm.RAX, ctx.str(cd.Type))
			ctx.emit(asm.OpTest, asm.EAX, asm.EAX)
			ctx.emit(asm.OpJnz, next)
		}
		ctx.emit(asm.OpMov, asm.RAX, exc)
		ctx.store(c, cd.Name)
		ctx.codegenStmt(cd.Body)
		ctx.emit(asm.OpJmp, fin)
		ctx.label(next)
		if cd.Type == "" {
			caughtAll = true
			break
		}
	}
	if !caughtAll {
		ctx.emit(asm.OpJmp, rethrow)
	}
	ctx.label(catchExit)
	ctx.emit(asm.OpMov, exc, asm.RDX)

	fs.unwind = fs.unwind[:outer]
	if d.Finally != nil {
		fs.finallies = fs.finallies[:len(fs.finallies)-1]
	}

	ctx.label(rethrow)
	ctx.codegenStmt(d.Finally)
	ctx.emit(asm.OpMov, asm.RDX, exc)
	ctx.raise()

	ctx.label(fin)
	ctx.codegenStmt(d.Finally)
	ctx.label(end)
	fs.popTemp(1)
}
