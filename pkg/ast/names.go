package ast

import "fmt"

// Symbol names shared by the type checker, which keys hints by them, and the
// code generator, which emits them.

const VtableKey = "__vtable"

func FuncSymbol(name string) string   { return "fn_" + name }
func GlobalSymbol(name string) string { return "gv_" + name }

// Class symbols are dot-separated. Identifiers never contain '.', and the
// second component of every non-method symbol is a keyword, so no two kinds
// of symbol can spell the same name.

func MethodSymbol(class, method string) string {
	return fmt.Sprintf("__%s.%s", class, method)
}

func StaticMethodSymbol(class, method string) string {
	return fmt.Sprintf("__%s.static.%s", class, method)
}

func StaticFieldSymbol(class, field string) string {
	return fmt.Sprintf("__%s.var.%s", class, field)
}

func CtorSymbol(class string, arity int) string {
	return fmt.Sprintf("__%s.constructor.%d", class, arity)
}

func VtableSymbol(class string) string { return fmt.Sprintf("__%s.class", class) }

// SuperKey is the method-table key under which class's base implementation of
// method is stored.
func SuperKey(class, method string) string {
	return fmt.Sprintf("super::%s::%s", class, method)
}

// MainSymbol names the synthetic routine holding the top-level statements.
const MainSymbol = "main"
