package codegen

import (
	"github.com/xplshn/lumen/pkg/asm"
	"github.com/xplshn/lumen/pkg/ast"
	"github.com/xplshn/lumen/pkg/infer"
)

// runtimeFor maps library calls whose lowering does not depend on argument
// sigils straight to their runtime routine.
var runtimeFor = map[string]string{
	"join":          "lm_str_join",
	"split":         "lm_str_split",
	"trim":          "lm_str_trim",
	"replace":       "lm_str_replace",
	"push":          "lm_array_push",
	"pop":           "lm_array_pop",
	"remove_at":     "lm_array_remove_at",
	"array":         "lm_array_new",
	"keys":          "lm_map_keys",
	"values":        "lm_map_values",
	"random":        "lm_random",
	"error_type":    "lm_exception_type",
	"error_message": "lm_exception_message",
}

// codegenLibraryCall lowers a call to the built-in library. readStr selects
// the string form of input().
func (ctx *Context) codegenLibraryCall(node *ast.Node, d ast.FuncCallNode, readStr bool) {
	lib := infer.Library[d.Name]
	if len(d.Args) < lib.MinArgs || len(d.Args) > lib.MaxArgs {
		ctx.warn(node.Tok, "Wrong number of arguments to '%s' evaluates to 0", d.Name)
		ctx.zero()
		return
	}

	if routine, ok := runtimeFor[d.Name]; ok {
		args := ctx.evalArgs(d.Args)
		ctx.call(routine, args...)
		ctx.fn.popTemp(len(args))
		return
	}

	var arg ast.Sigil
	if len(d.Args) > 0 {
		arg = ctx.sigil(d.Args[0])
	}
	switch d.Name {
	case "len":
		ctx.codegenExpr(d.Args[0])
		switch arg.Kind {
		case ast.SigStr:
			ctx.call("strlen", asm.RAX)
		case ast.SigMap, ast.SigObject:
			ctx.call("lm_map_size", asm.RAX)
		default:
			ctx.call("lm_array_length", asm.RAX)
		}
	case "str":
		ctx.codegenExpr(d.Args[0])
		switch arg.Kind {
		case ast.SigStr:
		case ast.SigBool:
			ctx.boolWord()
		default:
			ctx.call("lm_to_string", asm.RAX)
		}
	case "num":
		ctx.codegenExpr(d.Args[0])
		if arg.IsStr() {
			ctx.call("lm_to_number", asm.RAX)
		}
	case "contains":
		ctx.codegenExpr(d.Args[0])
		c := ctx.spill()
		switch {
		case arg.IsStr():
			ctx.codegenExpr(d.Args[1])
			ctx.call("lm_str_contains", c, asm.RAX)
		case arg.Kind == ast.SigMap || arg.Kind == ast.SigObject:
			ctx.codegenKey(d.Args[1])
			ctx.call("lm_map_contains", c, asm.RAX)
		case arg.ElemSigil().IsStr():
			ctx.codegenExpr(d.Args[1])
			ctx.call("lm_array_contains_str", c, asm.RAX)
		default:
			ctx.codegenExpr(d.Args[1])
			ctx.call("lm_array_contains_int", c, asm.RAX)
		}
		ctx.fn.popTemp(1)
	case "delete", "get_or":
		ctx.codegenExpr(d.Args[0])
		m := ctx.spill()
		ctx.codegenKey(d.Args[1])
		if d.Name == "delete" {
			ctx.call("lm_map_delete", m, asm.RAX)
			ctx.fn.popTemp(1)
			return
		}
		k := ctx.spill()
		ctx.codegenExpr(d.Args[2])
		ctx.call("lm_map_get_default", m, k, asm.RAX)
		ctx.fn.popTemp(2)
	case "free":
		ctx.codegenExpr(d.Args[0])
		ctx.call("lm_array_free", asm.RAX)
		ctx.zero()
	case "input":
		if readStr {
			ctx.readString(fmtReadStr)
			return
		}
		ctx.call("scanf", fmtReadInt, asm.Addr(inputVal))
		ctx.emit(asm.OpMov, asm.RAX, inputVal)
	case "input_line":
		ctx.readString(fmtReadLine)
	default:
		ctx.warn(node.Tok, "Library call '%s' has no lowering and evaluates to 0", d.Name)
		ctx.zero()
	}
}

// readString reads into input_buf and returns a trimmed copy the program can
// keep.
func (ctx *Context) readString(format asm.Addr) {
	ctx.call("scanf", format, inputBuf)
	ctx.call("lm_str_trim", inputBuf)
}
