package codegen

import (
	"github.com/xplshn/lumen/pkg/asm"
	"github.com/xplshn/lumen/pkg/ast"
)

// Fixed data-section labels the emitter refers to.
const (
	fmtInt      = asm.Addr("fmt_int")
	fmtStr      = asm.Addr("fmt_str")
	fmtQuoted   = asm.Addr("fmt_quoted")
	fmtReadInt  = asm.Addr("fmt_read_int")
	fmtReadStr  = asm.Addr("fmt_read_str")
	fmtReadLine = asm.Addr("fmt_read_line")
	newline     = asm.Addr("newline")
	lbracket    = asm.Addr("lbracket")
	rbracket    = asm.Addr("rbracket")
	lbrace      = asm.Addr("lbrace")
	rbrace      = asm.Addr("rbrace")
	comma       = asm.Addr("comma")
	colon       = asm.Addr("colon")
	wordTrue    = asm.Addr("word_true")
	wordFalse   = asm.Addr("word_false")
	wordObject  = asm.Addr("word_object")
	inputVal    = asm.Global("input_val")
	inputBuf    = asm.Addr("input_buf")
)

// codegenPrint prints one value followed by a newline, choosing the format
// by the value's representation.
func (ctx *Context) codegenPrint(expr *ast.Node) {
	s := ctx.sigil(expr)
	switch {
	case expr != nil && expr.Type == ast.Index && ctx.sigil(expr.Data.(ast.IndexNode).Expr).Kind == ast.SigMap:
		ctx.printMapIndex(expr.Data.(ast.IndexNode))
	case s.Kind == ast.SigStr:
		ctx.codegenExpr(expr)
		ctx.call("printf", fmtStr, asm.RAX)
	case s.Kind == ast.SigBool:
		ctx.codegenExpr(expr)
		ctx.boolWord()
		ctx.call("printf", fmtStr, asm.RAX)
	case s.Kind == ast.SigList:
		ctx.codegenExpr(expr)
		ctx.printList(s)
	case s.Kind == ast.SigMap:
		ctx.codegenExpr(expr)
		ctx.printMap()
	case s.Kind == ast.SigObject:
		ctx.codegenExpr(expr)
		ctx.call("printf", fmtStr, wordObject)
	default:
		ctx.codegenExpr(expr)
		ctx.call("printf", fmtInt, asm.RAX)
	}
	ctx.call("printf", newline)
}

// boolWord replaces the truth value in rax by the address of its word.
func (ctx *Context) boolWord() {
	ctx.emit(asm.OpTest, asm.RAX, asm.RAX)
	ctx.emit(asm.OpLea, asm.RAX, wordFalse)
	ctx.emit(asm.OpLea, asm.RBX, wordTrue)
	ctx.emit(asm.OpCmovnz, asm.RAX, asm.RBX)
}

// printList prints the list in rax. The element format is chosen once from
// the static element sigil.
func (ctx *Context) printList(s ast.Sigil) {
	fs := ctx.fn
	loop, end, skip := ctx.newLabel("plist"), ctx.newLabel("plistend"), ctx.newLabel("nocomma")
	elemFmt := fmtInt
	if s.ElemSigil().IsStr() {
		elemFmt = fmtQuoted
	}

	list := ctx.spill()
	ctx.call("printf", lbracket)
	ctx.call("lm_array_length", list)
	n := ctx.spill()
	i := fs.pushTemp()
	ctx.emit(asm.OpMov, i, asm.Imm(0))
	ctx.label(loop)
	ctx.emit(asm.OpMov, asm.RAX, i)
	ctx.emit(asm.OpCmp, asm.RAX, n)
	ctx.emit(asm.OpJge, end)
	ctx.emit(asm.OpTest, asm.RAX, asm.RAX)
	ctx.emit(asm.OpJz, skip)
	ctx.call("printf", comma)
	ctx.label(skip)
	ctx.call("lm_array_get", list, i)
	ctx.call("printf", elemFmt, asm.RAX)
	ctx.increment(i)
	ctx.emit(asm.OpJmp, loop)
	ctx.label(end)
	ctx.call("printf", rbracket)
	fs.popTemp(3)
}

// printMap prints the map in rax, asking the runtime per entry whether the
// value is a string.
func (ctx *Context) printMap() {
	fs := ctx.fn
	loop, end, skip := ctx.newLabel("pmap"), ctx.newLabel("pmapend"), ctx.newLabel("nocomma")
	intVal, next := ctx.newLabel("pint"), ctx.newLabel("pnext")

	m := ctx.spill()
	ctx.call("printf", lbrace)
	ctx.call("lm_map_size", m)
	n := ctx.spill()
	i := fs.pushTemp()
	ctx.emit(asm.OpMov, i, asm.Imm(0))
	ctx.label(loop)
	ctx.emit(asm.OpMov, asm.RAX, i)
	ctx.emit(asm.OpCmp, asm.RAX, n)
	ctx.emit(asm.OpJge, end)
	ctx.emit(asm.OpTest, asm.RAX, asm.RAX)
	ctx.emit(asm.OpJz, skip)
	ctx.call("printf", comma)
	ctx.label(skip)
	ctx.call("lm_map_key_at", m, i)
	ctx.call("printf", fmtQuoted, asm.RAX)
	ctx.call("printf", colon)
	ctx.call("lm_map_value_is_string", m, i)
	ctx.emit(asm.OpTest, asm.RAX, asm.RAX)
	ctx.emit(asm.OpJz, intVal)
	ctx.call("lm_map_value_at", m, i)
	ctx.call("printf", fmtQuoted, asm.RAX)
	ctx.emit(asm.OpJmp, next)
	ctx.label(intVal)
	ctx.call("lm_map_value_at", m, i)
	ctx.call("printf", fmtInt, asm.RAX)
	ctx.label(next)
	ctx.increment(i)
	ctx.emit(asm.OpJmp, loop)
	ctx.label(end)
	ctx.call("printf", rbrace)
	fs.popTemp(3)
}

// printMapIndex prints m[k] with the format picked at run time.
func (ctx *Context) printMapIndex(d ast.IndexNode) {
	fs := ctx.fn
	intVal, done := ctx.newLabel("pint"), ctx.newLabel("pdone")
	ctx.codegenExpr(d.Expr)
	m := ctx.spill()
	ctx.codegenKey(d.Index)
	k := ctx.spill()
	ctx.call("lm_map_get", m, k)
	v := ctx.spill()
	ctx.call("lm_map_value_is_string_key", m, k)
	ctx.emit(asm.OpTest, asm.RAX, asm.RAX)
	ctx.emit(asm.OpJz, intVal)
	ctx.call("printf", fmtStr, v)
	ctx.emit(asm.OpJmp, done)
	ctx.label(intVal)
	ctx.call("printf", fmtInt, v)
	ctx.label(done)
	fs.popTemp(3)
}

func (ctx *Context) increment(slot asm.Slot) {
	ctx.emit(asm.OpMov, asm.RAX, slot)
	ctx.emit(asm.OpAdd, asm.RAX, asm.Imm(1))
	ctx.emit(asm.OpMov, slot, asm.RAX)
}
