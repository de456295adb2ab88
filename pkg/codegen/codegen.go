package codegen

import (
	"fmt"
	"sort"

	"github.com/xplshn/lumen/pkg/asm"
	"github.com/xplshn/lumen/pkg/ast"
	"github.com/xplshn/lumen/pkg/config"
	"github.com/xplshn/lumen/pkg/infer"
	"github.com/xplshn/lumen/pkg/token"
	"github.com/xplshn/lumen/pkg/util"
)

// loopFrame is one entry of the break/continue stack. Switches push a frame
// without a continue target.
type loopFrame struct {
	brk      asm.Label
	cont     asm.Label
	isSwitch bool
	depth    int // finally entries live when the construct was entered
}

// finallyEntry is a finally body that transfers of control must replay.
type finallyEntry struct {
	body        *ast.Node
	unwindDepth int // unwind targets live outside the owning try
}

// unwindTarget is where an exception in rdx is delivered. Its dispatch path
// runs every finally below depth itself.
type unwindTarget struct {
	label asm.Label
	depth int
}

type funcState struct {
	f      *asm.Func
	sym    string
	class  string
	isMain bool

	locals  map[string]asm.Slot
	nLocals int
	retSlot asm.Slot

	tempTop int
	tempMax int

	loops     []loopFrame
	finallies []finallyEntry
	unwind    []unwindTarget

	retLabel    asm.Label
	unwindLabel asm.Label
	epiLabel    asm.Label
}

func (fs *funcState) pushTemp() asm.Slot {
	s := asm.Slot(fs.nLocals + 1 + fs.tempTop)
	fs.tempTop++
	if fs.tempTop > fs.tempMax {
		fs.tempMax = fs.tempTop
	}
	return s
}

func (fs *funcState) popTemp(n int) { fs.tempTop -= n }

func (fs *funcState) target() unwindTarget { return fs.unwind[len(fs.unwind)-1] }

// Context owns all state of one code generation run. It must not be reused.
type Context struct {
	cfg   *config.Config
	hints *infer.Hints
	types *infer.Table
	prog  *asm.Program

	labelCount int
	strings    map[string]string
	globals    map[string]bool
	externs    map[string]bool
	funcs      map[string]bool
	classes    map[string]*classInfo
	classOrder []string

	fn *funcState
}

func NewContext(cfg *config.Config, hints *infer.Hints) *Context {
	if hints == nil {
		hints = infer.NewHints()
	}
	return &Context{
		cfg:     cfg,
		hints:   hints,
		prog:    &asm.Program{},
		strings: make(map[string]string),
		globals: make(map[string]bool),
		externs: make(map[string]bool),
		funcs:   make(map[string]bool),
		classes: make(map[string]*classInfo),
	}
}

// Generate lowers the program rooted at root.
func (ctx *Context) Generate(root *ast.Node) (*asm.Program, error) {
	if root == nil || root.Type != ast.Block {
		return nil, fmt.Errorf("codegen: expected a program block, got %v", root)
	}
	ctx.types = infer.Infer(root, ctx.hints)

	stmts := root.Data.(ast.BlockNode).Stmts
	ctx.collectClasses(stmts)
	ctx.collectGlobals(stmts)
	ctx.collectStrings(root)

	var topLevel []*ast.Node
	for _, stmt := range stmts {
		switch stmt.Type {
		case ast.FuncDecl:
			d := stmt.Data.(ast.FuncDeclNode)
			ctx.codegenRoutine(ast.FuncSymbol(d.Name), "", false, d.Params, d.Body)
		case ast.ClassDecl:
		default:
			topLevel = append(topLevel, stmt)
		}
	}
	for _, name := range ctx.classOrder {
		ctx.codegenClass(ctx.classes[name])
	}
	ctx.codegenMain(topLevel)

	for name := range ctx.externs {
		ctx.prog.Externs = append(ctx.prog.Externs, name)
	}
	sort.Strings(ctx.prog.Externs)
	for name := range ctx.globals {
		ctx.prog.Globals = append(ctx.prog.Globals, name)
	}
	sort.Strings(ctx.prog.Globals)
	return ctx.prog, nil
}

func (ctx *Context) newLabel(base string) asm.Label {
	l := asm.Label(fmt.Sprintf("L%s%d", base, ctx.labelCount))
	ctx.labelCount++
	return l
}

// addString returns the pool label of value, adding it if needed.
func (ctx *Context) addString(value string) string {
	if label, ok := ctx.strings[value]; ok {
		return label
	}
	label := fmt.Sprintf("str%d", len(ctx.prog.Strings))
	ctx.strings[value] = label
	ctx.prog.Strings = append(ctx.prog.Strings, asm.StringLit{Label: label, Value: value})
	return label
}

func (ctx *Context) str(value string) asm.Addr { return asm.Addr(ctx.addString(value)) }

func (ctx *Context) warn(tok token.Token, format string, args ...interface{}) {
	util.Warn(ctx.cfg, config.WarnCodegen, tok, format, args...)
}

func (ctx *Context) emit(op asm.Op, args ...asm.Operand) { ctx.fn.f.Emit(op, args...) }
func (ctx *Context) label(l asm.Label)                    { ctx.fn.f.Label(l) }

func (ctx *Context) sigil(n *ast.Node) ast.Sigil { return ctx.types.Of(n) }

// call places args with the platform convention and calls a runtime or libc
// routine.
func (ctx *Context) call(name string, args ...asm.Operand) {
	ctx.setArgs(args)
	if name == "printf" || name == "scanf" {
		ctx.emit(asm.OpXor, asm.EAX, asm.EAX)
	}
	ctx.externs[name] = true
	ctx.emit(asm.OpCall, asm.Label(name))
}

// callUser calls a routine written in the language and dispatches any
// exception it returns.
func (ctx *Context) callUser(target asm.Operand, args ...asm.Operand) {
	ctx.setArgs(args)
	ctx.emit(asm.OpCall, target)
	ctx.checkException()
}

func (ctx *Context) setArgs(args []asm.Operand) {
	for i, a := range args {
		ctx.emit(asm.OpSetArg, asm.Arg(i), a)
	}
	ctx.fn.f.NoteCall(len(args))
}

// evalArgs evaluates args left to right into fresh temporaries. The caller
// pops them.
func (ctx *Context) evalArgs(args []*ast.Node) []asm.Operand {
	ops := make([]asm.Operand, len(args))
	for i, a := range args {
		ctx.codegenExpr(a)
		t := ctx.fn.pushTemp()
		ctx.emit(asm.OpMov, t, asm.RAX)
		ops[i] = t
	}
	return ops
}

// spill stores rax in a new temporary.
func (ctx *Context) spill() asm.Slot {
	t := ctx.fn.pushTemp()
	ctx.emit(asm.OpMov, t, asm.RAX)
	return t
}

func (ctx *Context) zero() { ctx.emit(asm.OpXor, asm.EAX, asm.EAX) }

// lookupVar resolves a variable to its storage: a frame slot for locals, a
// data-section qword otherwise.
func (ctx *Context) lookupVar(name string) (asm.Operand, bool) {
	if ctx.fn != nil {
		if s, ok := ctx.fn.locals[name]; ok {
			return s, true
		}
	}
	if sym := ast.GlobalSymbol(name); ctx.globals[sym] {
		return asm.Global(sym), true
	}
	return nil, false
}

func (ctx *Context) isVariable(name string) bool {
	_, ok := ctx.lookupVar(name)
	return ok
}

// className reports whether n is a bare reference to a class.
func (ctx *Context) className(n *ast.Node) (string, bool) {
	if n == nil || n.Type != ast.Ident {
		return "", false
	}
	name := n.Data.(ast.IdentNode).Name
	if ctx.isVariable(name) {
		return "", false
	}
	_, ok := ctx.classes[name]
	return name, ok
}

func newFuncState(sym, class string) *funcState {
	return &funcState{
		f:      &asm.Func{Name: sym},
		sym:    sym,
		class:  class,
		locals: make(map[string]asm.Slot),
	}
}

func (fs *funcState) addLocal(name string) {
	if _, ok := fs.locals[name]; ok {
		return
	}
	fs.locals[name] = asm.Slot(fs.nLocals)
	fs.nLocals++
}

// codegenRoutine emits one function, method or constructor.
func (ctx *Context) codegenRoutine(sym, class string, hasThis bool, params []ast.Param, body *ast.Node) {
	fs := newFuncState(sym, class)
	var names []string
	if hasThis {
		names = append(names, "this")
	}
	for _, p := range params {
		names = append(names, p.Name)
	}
	for _, name := range names {
		fs.addLocal(name)
	}
	collectLocals(body, fs.addLocal)
	fs.retSlot = asm.Slot(fs.nLocals)

	ctx.fn = fs
	fs.f.Emit(asm.OpPrologue)
	for i, name := range names {
		fs.f.Emit(asm.OpLoadParam, asm.Arg(i), fs.locals[name])
	}
	ctx.beginTail()
	ctx.codegenStmt(body)
	ctx.endTail()
	ctx.finishRoutine()
}

func (ctx *Context) beginTail() {
	fs := ctx.fn
	fs.retLabel = ctx.newLabel("ret")
	fs.unwindLabel = ctx.newLabel("unwind")
	fs.epiLabel = ctx.newLabel("epi")
	fs.unwind = append(fs.unwind, unwindTarget{label: fs.unwindLabel})
}

// endTail emits the shared exits. Falling off the end returns 0; Lret clears
// rdx for a normal return; Lunwind returns with the exception still in rdx.
func (ctx *Context) endTail() {
	fs := ctx.fn
	if fs.isMain {
		ctx.label(fs.retLabel)
		ctx.zero()
		ctx.emit(asm.OpJmp, fs.epiLabel)
		ctx.label(fs.unwindLabel)
		ctx.call("lm_exception_uncaught", asm.RDX)
		ctx.emit(asm.OpMov, asm.RAX, asm.Imm(1))
	} else {
		ctx.zero()
		ctx.label(fs.retLabel)
		ctx.emit(asm.OpXor, asm.EDX, asm.EDX)
		ctx.emit(asm.OpJmp, fs.epiLabel)
		ctx.label(fs.unwindLabel)
		ctx.zero()
	}
	ctx.label(fs.epiLabel)
	ctx.emit(asm.OpEpilogue)
}

func (ctx *Context) finishRoutine() {
	fs := ctx.fn
	fs.f.Slots = fs.nLocals + 1 + fs.tempMax
	ctx.prog.Funcs = append(ctx.prog.Funcs, fs.f)
	ctx.fn = nil
}

// codegenMain emits the synthetic top-level routine: seeding, method tables,
// static fields, then the top-level statements.
func (ctx *Context) codegenMain(stmts []*ast.Node) {
	fs := newFuncState(ast.MainSymbol, "")
	fs.isMain = true
	fs.retSlot = 0
	ctx.fn = fs
	fs.f.Emit(asm.OpPrologue)
	ctx.beginTail()

	if ctx.cfg.Seed >= 0 {
		ctx.call("lm_seed", asm.Imm(ctx.cfg.Seed))
	}
	for _, name := range ctx.classOrder {
		ctx.codegenVtable(ctx.classes[name])
	}
	for _, name := range ctx.classOrder {
		ctx.codegenStaticInit(ctx.classes[name])
	}
	for _, stmt := range stmts {
		ctx.codegenStmt(stmt)
	}

	ctx.endTail()
	ctx.finishRoutine()
}

// collectLocals reports every name declared inside a routine body.
func collectLocals(n *ast.Node, add func(string)) {
	if n == nil {
		return
	}
	switch d := n.Data.(type) {
	case ast.VarDeclNode:
		add(d.Name)
	case ast.BlockNode:
		for _, s := range d.Stmts {
			collectLocals(s, add)
		}
	case ast.IfNode:
		collectLocals(d.ThenBody, add)
		collectLocals(d.ElseBody, add)
	case ast.WhileNode:
		collectLocals(d.Body, add)
	case ast.DoWhileNode:
		collectLocals(d.Body, add)
	case ast.ForNode:
		collectLocals(d.Init, add)
		collectLocals(d.Body, add)
	case ast.SwitchNode:
		for _, c := range d.Cases {
			collectLocals(c, add)
		}
	case ast.CaseNode:
		for _, s := range d.Body {
			collectLocals(s, add)
		}
	case ast.DefaultNode:
		for _, s := range d.Body {
			collectLocals(s, add)
		}
	case ast.TryNode:
		collectLocals(d.Body, add)
		for _, c := range d.Catches {
			collectLocals(c, add)
		}
		collectLocals(d.Finally, add)
	case ast.CatchNode:
		add(d.Name)
		collectLocals(d.Body, add)
	}
}
