package infer

import "github.com/xplshn/lumen/pkg/ast"

// LibFunc describes one built-in library operation. The code generator keys
// its lowerings by the same names.
type LibFunc struct {
	Name    string
	MinArgs int
	MaxArgs int
	result  func(t *Table, args []*ast.Node) ast.Sigil
}

func constant(s ast.Sigil) func(*Table, []*ast.Node) ast.Sigil {
	return func(*Table, []*ast.Node) ast.Sigil { return s }
}

func argSigil(i int) func(*Table, []*ast.Node) ast.Sigil {
	return func(t *Table, args []*ast.Node) ast.Sigil {
		if i < len(args) {
			return t.Of(args[i])
		}
		return ast.IntSigil
	}
}

func elemOfArg(i int) func(*Table, []*ast.Node) ast.Sigil {
	return func(t *Table, args []*ast.Node) ast.Sigil {
		if i < len(args) {
			return t.Of(args[i]).ElemSigil()
		}
		return ast.IntSigil
	}
}

// Library is the fixed set of named operations the language provides.
var Library = map[string]LibFunc{
	"len":       {"len", 1, 1, constant(ast.IntSigil)},
	"str":       {"str", 1, 1, constant(ast.StrSigil)},
	"num":       {"num", 1, 1, constant(ast.IntSigil)},
	"join":      {"join", 2, 2, constant(ast.StrSigil)},
	"split":     {"split", 2, 2, constant(ast.ListOf(ast.SigStr))},
	"trim":      {"trim", 1, 1, constant(ast.StrSigil)},
	"replace":   {"replace", 3, 3, constant(ast.StrSigil)},
	"contains":  {"contains", 2, 2, constant(ast.BoolSigil)},
	"push":      {"push", 2, 2, argSigil(0)},
	"pop":       {"pop", 1, 1, elemOfArg(0)},
	"remove_at": {"remove_at", 2, 2, elemOfArg(0)},
	"array":     {"array", 1, 1, constant(ast.ListOf(ast.SigInt))},
	"free":      {"free", 1, 1, constant(ast.IntSigil)},
	"keys":      {"keys", 1, 1, constant(ast.ListOf(ast.SigStr))},
	"values": {"values", 1, 1, func(t *Table, args []*ast.Node) ast.Sigil {
		return ast.ListOf(elemOfArg(0)(t, args).Kind)
	}},
	"delete":        {"delete", 2, 2, constant(ast.BoolSigil)},
	"get_or":        {"get_or", 3, 3, elemOfArg(0)},
	"input":         {"input", 0, 0, constant(ast.IntSigil)},
	"input_line":    {"input_line", 0, 0, constant(ast.StrSigil)},
	"random":        {"random", 1, 1, constant(ast.IntSigil)},
	"error_type":    {"error_type", 1, 1, constant(ast.StrSigil)},
	"error_message": {"error_message", 1, 1, constant(ast.StrSigil)},
}

func IsLibrary(name string) bool {
	_, ok := Library[name]
	return ok
}
