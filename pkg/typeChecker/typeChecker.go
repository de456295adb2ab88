package typeChecker

import (
	"strconv"

	"github.com/xplshn/lumen/pkg/ast"
	"github.com/xplshn/lumen/pkg/config"
	"github.com/xplshn/lumen/pkg/infer"
	"github.com/xplshn/lumen/pkg/token"
	"github.com/xplshn/lumen/pkg/util"
)

type Symbol struct {
	Name string
	Type *ast.Sigil // nil when unknown
	Node *ast.Node
	Next *Symbol
}

type Scope struct {
	Symbols *Symbol
	Parent  *Scope
}

type classInfo struct {
	node    *ast.Node
	decl    ast.ClassDeclNode
	fields  map[string]ast.FieldDeclNode
	methods map[string]ast.MethodDeclNode
	ctors   map[int]bool
}

type funcInfo struct {
	node   *ast.Node
	params []ast.Param
}

type TypeChecker struct {
	currentScope *Scope
	globalScope  *Scope
	cfg          *config.Config
	hints        *infer.Hints

	funcs   map[string]funcInfo
	classes map[string]*classInfo

	currentSym   string // symbol of the routine being checked; "" at top level
	currentClass string
	isStatic     bool
	loopDepth    int
	switchDepth  int
}

func NewTypeChecker(cfg *config.Config) *TypeChecker {
	globalScope := newScope(nil)
	return &TypeChecker{
		currentScope: globalScope,
		globalScope:  globalScope,
		cfg:          cfg,
		hints:        infer.NewHints(),
		funcs:        make(map[string]funcInfo),
		classes:      make(map[string]*classInfo),
	}
}

func newScope(parent *Scope) *Scope { return &Scope{Parent: parent} }
func (tc *TypeChecker) enterScope() { tc.currentScope = newScope(tc.currentScope) }
func (tc *TypeChecker) exitScope() {
	if tc.currentScope.Parent != nil {
		tc.currentScope = tc.currentScope.Parent
	}
}

// Hints returns the annotations gathered by Check.
func (tc *TypeChecker) Hints() *infer.Hints { return tc.hints }

func (tc *TypeChecker) addSymbol(name string, typ *ast.Sigil, node *ast.Node) *Symbol {
	if existing := tc.findSymbolInCurrentScope(name); existing != nil {
		if existing.Type == nil {
			existing.Type = typ
		}
		return existing
	}
	sym := &Symbol{Name: name, Type: typ, Node: node, Next: tc.currentScope.Symbols}
	tc.currentScope.Symbols = sym
	return sym
}

func (tc *TypeChecker) findSymbol(name string) *Symbol {
	return tc.findSymbolInScopes(name, false)
}

func (tc *TypeChecker) findSymbolInCurrentScope(name string) *Symbol {
	return tc.findSymbolInScopes(name, true)
}

func (tc *TypeChecker) findSymbolInScopes(name string, currentOnly bool) *Symbol {
	for s := tc.currentScope; s != nil; s = s.Parent {
		for sym := s.Symbols; sym != nil; sym = sym.Next {
			if sym.Name == name {
				return sym
			}
		}
		if currentOnly {
			break
		}
	}
	return nil
}

// Check validates the program and fills in the hints.
func (tc *TypeChecker) Check(root *ast.Node) {
	if root == nil || root.Type != ast.Block {
		return
	}
	tc.collectDecls(root)
	tc.checkClassHierarchy()
	tc.collectGlobals(root)

	stmts := root.Data.(ast.BlockNode).Stmts
	tc.checkStmtList(stmts, func(n *ast.Node) bool { return n.Type != ast.FuncDecl && n.Type != ast.ClassDecl })
	for _, stmt := range stmts {
		switch stmt.Type {
		case ast.FuncDecl:
			tc.checkFuncDecl(stmt)
		case ast.ClassDecl:
			tc.checkClassDecl(stmt)
		}
	}
}

func (tc *TypeChecker) collectDecls(root *ast.Node) {
	for _, stmt := range root.Data.(ast.BlockNode).Stmts {
		switch stmt.Type {
		case ast.FuncDecl:
			d := stmt.Data.(ast.FuncDeclNode)
			if infer.IsLibrary(d.Name) {
				util.Error(stmt.Tok, "'%s' is a library function and cannot be redefined", d.Name)
			}
			if _, exists := tc.funcs[d.Name]; exists {
				util.Error(stmt.Tok, "Redefinition of function '%s'", d.Name)
			}
			tc.funcs[d.Name] = funcInfo{node: stmt, params: d.Params}
			sym := ast.FuncSymbol(d.Name)
			tc.hints.ParamTypes[sym] = paramSigils(nil, d.Params)
			if d.ReturnType != nil {
				tc.hints.ReturnTypes[sym] = *d.ReturnType
			}
		case ast.ClassDecl:
			d := stmt.Data.(ast.ClassDeclNode)
			if _, exists := tc.classes[d.Name]; exists {
				util.Error(stmt.Tok, "Redefinition of class '%s'", d.Name)
			}
			ci := &classInfo{
				node: stmt, decl: d,
				fields:  make(map[string]ast.FieldDeclNode),
				methods: make(map[string]ast.MethodDeclNode),
				ctors:   make(map[int]bool),
			}
			for _, f := range d.Fields {
				fd := f.Data.(ast.FieldDeclNode)
				if _, dup := ci.fields[fd.Name]; dup {
					util.Error(f.Tok, "Duplicate field '%s' in class '%s'", fd.Name, d.Name)
				}
				ci.fields[fd.Name] = fd
			}
			for _, m := range d.Methods {
				md := m.Data.(ast.MethodDeclNode)
				if _, dup := ci.methods[md.Name]; dup {
					util.Error(m.Tok, "Duplicate method '%s' in class '%s'", md.Name, d.Name)
				}
				ci.methods[md.Name] = md
				var sym string
				var this *ast.Sigil
				if md.IsStatic {
					sym = ast.StaticMethodSymbol(d.Name, md.Name)
				} else {
					sym = ast.MethodSymbol(d.Name, md.Name)
					this = ast.ObjectOf(d.Name).Ptr()
				}
				tc.hints.ParamTypes[sym] = paramSigils(this, md.Params)
				if md.ReturnType != nil {
					tc.hints.ReturnTypes[sym] = *md.ReturnType
				}
			}
			for _, c := range d.Ctors {
				cd := c.Data.(ast.CtorDeclNode)
				if ci.ctors[len(cd.Params)] {
					util.Error(c.Tok, "Class '%s' already has a constructor taking %d arguments", d.Name, len(cd.Params))
				}
				ci.ctors[len(cd.Params)] = true
				tc.hints.ParamTypes[ast.CtorSymbol(d.Name, len(cd.Params))] = paramSigils(ast.ObjectOf(d.Name).Ptr(), cd.Params)
			}
			tc.classes[d.Name] = ci
		}
	}
}

func paramSigils(this *ast.Sigil, params []ast.Param) []ast.Sigil {
	var out []ast.Sigil
	if this != nil {
		out = append(out, *this)
	}
	for _, p := range params {
		if p.Type != nil {
			out = append(out, *p.Type)
		} else {
			out = append(out, ast.IntSigil)
		}
	}
	return out
}

func (tc *TypeChecker) checkClassHierarchy() {
	for name, ci := range tc.classes {
		if _, clash := tc.funcs[name]; clash {
			util.Error(ci.node.Tok, "Class '%s' has the same name as a function", name)
		}
		seen := map[string]bool{name: true}
		for base := ci.decl.Base; base != ""; {
			bi, ok := tc.classes[base]
			if !ok {
				util.Error(ci.node.Tok, "Class '%s' extends unknown class '%s'", name, base)
				break
			}
			if seen[base] {
				util.Error(ci.node.Tok, "Inheritance cycle involving class '%s'", name)
				break
			}
			seen[base] = true
			base = bi.decl.Base
		}
		for _, m := range ci.decl.Methods {
			md := m.Data.(ast.MethodDeclNode)
			if md.IsOverride {
				if _, _, ok := tc.lookupMethod(ci.decl.Base, md.Name); !ok {
					util.Warn(tc.cfg, config.WarnExtra, m.Tok, "Method '%s' is marked override but no base class declares it", md.Name)
				}
			} else if !md.IsStatic {
				if _, _, ok := tc.lookupMethod(ci.decl.Base, md.Name); ok {
					util.Warn(tc.cfg, config.WarnPedantic, m.Tok, "Method '%s' shadows a base method without 'override'", md.Name)
				}
			}
		}
	}
}

// collectGlobals records every variable declared by the top-level statements.
func (tc *TypeChecker) collectGlobals(root *ast.Node) {
	var walk func(n *ast.Node)
	walk = func(n *ast.Node) {
		if n == nil {
			return
		}
		switch d := n.Data.(type) {
		case ast.VarDeclNode:
			tc.declareGlobal(d.Name, d.Type, n)
		case ast.CatchNode:
			tc.declareGlobal(d.Name, ast.ObjectOf("").Ptr(), n)
			walk(d.Body)
		case ast.BlockNode:
			for _, s := range d.Stmts {
				walk(s)
			}
		case ast.IfNode:
			walk(d.ThenBody)
			walk(d.ElseBody)
		case ast.WhileNode:
			walk(d.Body)
		case ast.DoWhileNode:
			walk(d.Body)
		case ast.ForNode:
			walk(d.Init)
			walk(d.Body)
		case ast.SwitchNode:
			for _, c := range d.Cases {
				walk(c)
			}
		case ast.CaseNode:
			for _, s := range d.Body {
				walk(s)
			}
		case ast.DefaultNode:
			for _, s := range d.Body {
				walk(s)
			}
		case ast.TryNode:
			walk(d.Body)
			for _, c := range d.Catches {
				walk(c)
			}
			walk(d.Finally)
		}
	}
	for _, stmt := range root.Data.(ast.BlockNode).Stmts {
		if stmt.Type != ast.FuncDecl && stmt.Type != ast.ClassDecl {
			walk(stmt)
		}
	}
}

func (tc *TypeChecker) declareGlobal(name string, typ *ast.Sigil, node *ast.Node) {
	if _, isClass := tc.classes[name]; isClass {
		util.Error(node.Tok, "Variable '%s' has the same name as a class", name)
	}
	tc.hints.Globals[name] = true
	sym := tc.findSymbolInScopes(name, true)
	if sym == nil {
		sym = &Symbol{Name: name, Node: node, Next: tc.globalScope.Symbols}
		tc.globalScope.Symbols = sym
	}
	if typ != nil && sym.Type == nil {
		sym.Type = typ
		tc.hints.GlobalTypes[name] = *typ
	}
}

func (tc *TypeChecker) checkFuncDecl(node *ast.Node) {
	d := node.Data.(ast.FuncDeclNode)
	tc.checkRoutine(ast.FuncSymbol(d.Name), "", false, d.Params, d.Body)
}

func (tc *TypeChecker) checkClassDecl(node *ast.Node) {
	d := node.Data.(ast.ClassDeclNode)
	prevClass := tc.currentClass
	tc.currentClass = d.Name
	defer func() { tc.currentClass = prevClass }()

	for _, f := range d.Fields {
		fd := f.Data.(ast.FieldDeclNode)
		if fd.Init == nil {
			continue
		}
		tc.isStatic = true
		got := tc.checkExpr(fd.Init)
		tc.isStatic = false
		tc.checkAssignable(f.Tok, fd.Type, got, "field '"+fd.Name+"'")
	}
	for _, m := range d.Methods {
		md := m.Data.(ast.MethodDeclNode)
		if md.IsStatic {
			tc.checkRoutine(ast.StaticMethodSymbol(d.Name, md.Name), d.Name, true, md.Params, md.Body)
		} else {
			tc.checkRoutine(ast.MethodSymbol(d.Name, md.Name), d.Name, false, md.Params, md.Body)
		}
	}
	for _, c := range d.Ctors {
		cd := c.Data.(ast.CtorDeclNode)
		tc.checkRoutine(ast.CtorSymbol(d.Name, len(cd.Params)), d.Name, false, cd.Params, cd.Body)
	}
}

func (tc *TypeChecker) checkRoutine(sym, class string, isStatic bool, params []ast.Param, body *ast.Node) {
	prevSym, prevStatic := tc.currentSym, tc.isStatic
	tc.currentSym, tc.isStatic = sym, isStatic
	defer func() { tc.currentSym, tc.isStatic = prevSym, prevStatic }()

	tc.enterScope()
	if class != "" && !isStatic {
		tc.addSymbol("this", ast.ObjectOf(class).Ptr(), body)
	}
	for _, p := range params {
		if tc.findSymbolInCurrentScope(p.Name) != nil {
			util.Error(body.Tok, "Duplicate parameter '%s'", p.Name)
		}
		tc.addSymbol(p.Name, p.Type, body)
	}
	tc.checkNode(body)
	tc.exitScope()
}

// checkStmtList checks statements in order and warns about code that follows
// an unconditional transfer of control.
func (tc *TypeChecker) checkStmtList(stmts []*ast.Node, include func(*ast.Node) bool) {
	terminated := false
	for _, stmt := range stmts {
		if include != nil && !include(stmt) {
			continue
		}
		if terminated {
			util.Warn(tc.cfg, config.WarnUnreachableCode, stmt.Tok, "Unreachable code")
			terminated = false
		}
		tc.checkNode(stmt)
		switch stmt.Type {
		case ast.Return, ast.Break, ast.Continue, ast.Throw:
			terminated = true
		}
	}
}

func (tc *TypeChecker) checkNode(node *ast.Node) {
	if node == nil {
		return
	}
	switch d := node.Data.(type) {
	case ast.BlockNode:
		tc.enterScope()
		tc.checkStmtList(d.Stmts, nil)
		tc.exitScope()
	case ast.PrintNode:
		tc.checkExpr(d.Expr)
	case ast.ExprStmtNode:
		tc.checkExpr(d.Expr)
	case ast.VarDeclNode:
		tc.checkVarDecl(node, d)
	case ast.AssignNode:
		got := tc.checkExpr(d.Rhs)
		sym := tc.findSymbol(d.Name)
		if sym == nil {
			if _, isClass := tc.classes[d.Name]; isClass {
				util.Error(node.Tok, "Cannot assign to class '%s'", d.Name)
			}
			util.Warn(tc.cfg, config.WarnImplicitDecl, node.Tok, "Assignment to undeclared variable '%s' creates a global", d.Name)
			tc.declareGlobal(d.Name, nil, node)
			return
		}
		if d.Name == "this" {
			util.Error(node.Tok, "Cannot assign to 'this'")
		}
		tc.checkAssignable(node.Tok, sym.Type, got, "'"+d.Name+"'")
		if sym.Type == nil && got != nil && tc.currentScope != tc.globalScope {
			sym.Type = got
		}
	case ast.IndexAssignNode:
		tc.checkIndexTarget(d.Target, d.Index)
		tc.checkExpr(d.Rhs)
	case ast.IfNode:
		tc.checkExpr(d.Cond)
		tc.checkNode(d.ThenBody)
		tc.checkNode(d.ElseBody)
	case ast.WhileNode:
		tc.checkExpr(d.Cond)
		tc.checkLoopBody(d.Body)
	case ast.DoWhileNode:
		tc.checkLoopBody(d.Body)
		tc.checkExpr(d.Cond)
	case ast.ForNode:
		tc.enterScope()
		tc.checkNode(d.Init)
		tc.checkExpr(d.Cond)
		tc.checkNode(d.Post)
		tc.checkLoopBody(d.Body)
		tc.exitScope()
	case ast.SwitchNode:
		subject := tc.checkExpr(d.Expr)
		tc.switchDepth++
		tc.enterScope()
		for _, c := range d.Cases {
			var body []*ast.Node
			if cd, ok := c.Data.(ast.CaseNode); ok {
				if cd.Value.Type != ast.Number && cd.Value.Type != ast.String && cd.Value.Type != ast.Bool {
					util.Warn(tc.cfg, config.WarnExtra, cd.Value.Tok, "Case value is not a constant")
				}
				val := tc.checkExpr(cd.Value)
				if subject != nil && val != nil && subject.IsStr() != val.IsStr() {
					util.Warn(tc.cfg, config.WarnType, cd.Value.Tok, "Case value of type '%s' compared with switch subject of type '%s'", val, subject)
				}
				body = cd.Body
			} else {
				body = c.Data.(ast.DefaultNode).Body
			}
			tc.checkStmtList(body, nil)
		}
		tc.exitScope()
		tc.switchDepth--
	case ast.BreakNode:
		if tc.loopDepth == 0 && tc.switchDepth == 0 {
			util.Error(node.Tok, "'break' outside of a loop or switch")
		}
	case ast.ContinueNode:
		if tc.loopDepth == 0 {
			util.Error(node.Tok, "'continue' outside of a loop")
		}
	case ast.ReturnNode:
		if tc.currentSym == "" && d.Expr != nil {
			util.Error(node.Tok, "Return with value used outside of a function")
		}
		got := tc.checkExpr(d.Expr)
		if want, ok := tc.hints.ReturnTypes[tc.currentSym]; ok && d.Expr != nil {
			tc.checkAssignable(node.Tok, &want, got, "return value")
		}
	case ast.ThrowNode:
		tc.checkExpr(d.Expr)
	case ast.TryNode:
		tc.checkNode(d.Body)
		for _, c := range d.Catches {
			cd := c.Data.(ast.CatchNode)
			tc.enterScope()
			tc.addSymbol(cd.Name, ast.ObjectOf("").Ptr(), c)
			tc.checkNode(cd.Body)
			tc.exitScope()
		}
		tc.checkNode(d.Finally)
	case ast.FuncDeclNode, ast.ClassDeclNode:
		util.Error(node.Tok, "Functions and classes can only be declared at the top level")
	}
}

func (tc *TypeChecker) checkLoopBody(body *ast.Node) {
	tc.loopDepth++
	prevSwitch := tc.switchDepth
	tc.switchDepth = 0
	tc.checkNode(body)
	tc.switchDepth = prevSwitch
	tc.loopDepth--
}

func (tc *TypeChecker) checkVarDecl(node *ast.Node, d ast.VarDeclNode) {
	var got *ast.Sigil
	if d.Init != nil {
		got = tc.checkExpr(d.Init)
		tc.checkAssignable(node.Tok, d.Type, got, "'"+d.Name+"'")
	}
	typ := d.Type
	if typ == nil {
		typ = got
	}
	if tc.currentSym == "" {
		// Top-level declarations are globals, collected up front.
		if sym := tc.findSymbol(d.Name); sym != nil && sym.Type == nil {
			sym.Type = typ
		}
		return
	}
	if existing := tc.findSymbolInCurrentScope(d.Name); existing != nil {
		util.Error(node.Tok, "Redefinition of '%s' in the same scope", d.Name)
	}
	tc.addSymbol(d.Name, typ, node)
}

// checkAssignable warns about obvious mismatches between scalar and string
// representations. Anything unknown is accepted.
func (tc *TypeChecker) checkAssignable(tok token.Token, want, got *ast.Sigil, what string) {
	if want == nil || got == nil {
		return
	}
	if want.Kind == got.Kind {
		return
	}
	if (want.Kind == ast.SigInt && got.Kind == ast.SigBool) || (want.Kind == ast.SigBool && got.Kind == ast.SigInt) {
		return
	}
	util.Warn(tc.cfg, config.WarnType, tok, "Assigning a value of type '%s' to %s of type '%s'", got, what, want)
}

func (tc *TypeChecker) checkIndexTarget(target, index *ast.Node) {
	if target.Type == ast.Ident && index.Type == ast.String {
		name := target.Data.(ast.IdentNode).Name
		if tc.findSymbol(name) == nil {
			if ci, isClass := tc.classes[name]; isClass {
				field := index.Data.(ast.StringNode).Value
				if fd, ok := tc.lookupField(ci.decl.Name, field); !ok || !fd.IsStatic {
					util.Error(index.Tok, "Class '%s' has no static field '%s'", name, field)
				}
				return
			}
		}
	}
	tc.checkExpr(target)
	tc.checkExpr(index)
}

// checkExpr checks an expression and returns its shallow type, or nil when
// it cannot tell.
func (tc *TypeChecker) checkExpr(node *ast.Node) *ast.Sigil {
	if node == nil {
		return nil
	}
	switch d := node.Data.(type) {
	case ast.NumberNode:
		return ast.IntSigil.Ptr()
	case ast.BoolNode:
		return ast.BoolSigil.Ptr()
	case ast.StringNode:
		return ast.StrSigil.Ptr()
	case ast.IdentNode:
		if d.Name == "this" {
			if tc.currentClass == "" || tc.isStatic {
				util.Error(node.Tok, "'this' used outside of an instance method")
			}
			return ast.ObjectOf(tc.currentClass).Ptr()
		}
		if sym := tc.findSymbol(d.Name); sym != nil {
			return sym.Type
		}
		if _, isClass := tc.classes[d.Name]; isClass {
			return ast.ObjectOf(d.Name).Ptr()
		}
		if _, isFunc := tc.funcs[d.Name]; isFunc {
			util.Error(node.Tok, "Function '%s' used as a value; take its address with '&%s'", d.Name, d.Name)
		}
		util.Error(node.Tok, "Undefined variable '%s'", d.Name)
		return nil
	case ast.BinaryOpNode:
		l, r := tc.checkExpr(d.Left), tc.checkExpr(d.Right)
		switch d.Op {
		case token.Plus:
			if l != nil && r != nil && l.IsStr() && r.IsStr() {
				return ast.StrSigil.Ptr()
			}
			if (l != nil && l.IsStr()) != (r != nil && r.IsStr()) && l != nil && r != nil {
				util.Warn(tc.cfg, config.WarnType, node.Tok, "'+' between '%s' and '%s' is integer addition; convert with str()", l, r)
			}
			return ast.IntSigil.Ptr()
		case token.EqEq, token.Neq, token.Lt, token.Gt, token.Lte, token.Gte, token.AndAnd, token.OrOr:
			return ast.BoolSigil.Ptr()
		}
		return ast.IntSigil.Ptr()
	case ast.UnaryOpNode:
		tc.checkExpr(d.Expr)
		if d.Op == token.Not {
			return ast.BoolSigil.Ptr()
		}
		return ast.IntSigil.Ptr()
	case ast.TernaryNode:
		tc.checkExpr(d.Cond)
		a, b := tc.checkExpr(d.ThenExpr), tc.checkExpr(d.ElseExpr)
		if a != nil && b != nil && *a == *b {
			return a
		}
		return nil
	case ast.ListLitNode:
		allStr := len(d.Elems) > 0
		for _, e := range d.Elems {
			if t := tc.checkExpr(e); t == nil || !t.IsStr() {
				allStr = false
			}
		}
		if allStr {
			return ast.ListOf(ast.SigStr).Ptr()
		}
		return ast.ListOf(ast.SigInt).Ptr()
	case ast.MapLitNode:
		for _, k := range d.Keys {
			if t := tc.checkExpr(k); t != nil && !t.IsStr() {
				util.Warn(tc.cfg, config.WarnType, k.Tok, "Map keys must be strings, got '%s'", t)
			}
		}
		allStr := len(d.Values) > 0
		for _, v := range d.Values {
			if t := tc.checkExpr(v); t == nil || !t.IsStr() {
				allStr = false
			}
		}
		if allStr {
			return ast.MapOf(ast.SigStr).Ptr()
		}
		return ast.MapOf(ast.SigInt).Ptr()
	case ast.IndexNode:
		base := tc.checkExpr(d.Expr)
		tc.checkExpr(d.Index)
		if base != nil && base.IsCollection() {
			return base.ElemSigil().Ptr()
		}
		return nil
	case ast.MemberAccessNode:
		return tc.checkMemberAccess(node, d)
	case ast.FuncCallNode:
		return tc.checkFuncCall(node, d)
	case ast.MethodCallNode:
		return tc.checkMethodCall(node, d)
	case ast.NewNode:
		for _, a := range d.Args {
			tc.checkExpr(a)
		}
		ci, ok := tc.classes[d.Class]
		if !ok {
			util.Warn(tc.cfg, config.WarnType, node.Tok, "Unknown class '%s' in 'new'; the value will be null", d.Class)
			return nil
		}
		if len(d.Args) > 0 && !ci.ctors[len(d.Args)] {
			util.Warn(tc.cfg, config.WarnExtra, node.Tok, "Class '%s' declares no constructor taking %d arguments; none will run", d.Class, len(d.Args))
		}
		return ast.ObjectOf(d.Class).Ptr()
	case ast.SuperNode:
		if tc.currentClass == "" || tc.isStatic || tc.classes[tc.currentClass].decl.Base == "" {
			util.Error(node.Tok, "'super' used outside of a method of a derived class")
		}
		return ast.ObjectOf(tc.classes[tc.currentClass].decl.Base).Ptr()
	case ast.IncDecNode:
		tc.checkExpr(d.Target)
		return ast.IntSigil.Ptr()
	case ast.FuncRefNode:
		if _, ok := tc.funcs[d.Name]; !ok {
			util.Error(node.Tok, "'&%s' does not name a function", d.Name)
		}
		return ast.IntSigil.Ptr()
	}
	return nil
}

func (tc *TypeChecker) checkMemberAccess(node *ast.Node, d ast.MemberAccessNode) *ast.Sigil {
	recv := tc.checkExpr(d.Expr)
	if recv == nil || recv.Kind != ast.SigObject || recv.Class == "" {
		return nil
	}
	isStaticRef := d.Expr.Type == ast.Ident && tc.findSymbol(d.Expr.Data.(ast.IdentNode).Name) == nil
	fd, ok := tc.lookupField(recv.Class, d.Member)
	if !ok {
		if _, known := tc.classes[recv.Class]; known {
			util.Warn(tc.cfg, config.WarnType, node.Tok, "Class '%s' has no field '%s'", recv.Class, d.Member)
		}
		return nil
	}
	if isStaticRef && !fd.IsStatic {
		util.Error(node.Tok, "'%s.%s' is not a static field", recv.Class, d.Member)
	}
	typ := fd.Type
	if typ == nil && fd.Init != nil {
		typ = tc.literalType(fd.Init)
	}
	if typ != nil {
		node.Typ = typ
	}
	return typ
}

// literalType is the type of a field initializer that needs no scope.
func (tc *TypeChecker) literalType(n *ast.Node) *ast.Sigil {
	switch n.Type {
	case ast.Number:
		return ast.IntSigil.Ptr()
	case ast.Bool:
		return ast.BoolSigil.Ptr()
	case ast.String:
		return ast.StrSigil.Ptr()
	case ast.New:
		return ast.ObjectOf(n.Data.(ast.NewNode).Class).Ptr()
	}
	return nil
}

func (tc *TypeChecker) lookupField(class, field string) (ast.FieldDeclNode, bool) {
	for c := class; c != ""; {
		ci, ok := tc.classes[c]
		if !ok {
			break
		}
		if fd, ok := ci.fields[field]; ok {
			return fd, true
		}
		c = ci.decl.Base
	}
	return ast.FieldDeclNode{}, false
}

func (tc *TypeChecker) lookupMethod(class, method string) (string, ast.MethodDeclNode, bool) {
	for c := class; c != ""; {
		ci, ok := tc.classes[c]
		if !ok {
			break
		}
		if md, ok := ci.methods[method]; ok {
			return c, md, true
		}
		c = ci.decl.Base
	}
	return "", ast.MethodDeclNode{}, false
}

func (tc *TypeChecker) checkFuncCall(node *ast.Node, d ast.FuncCallNode) *ast.Sigil {
	args := make([]*ast.Sigil, len(d.Args))
	for i, a := range d.Args {
		args[i] = tc.checkExpr(a)
	}
	if sym := tc.findSymbol(d.Name); sym != nil {
		// Indirect call through a variable holding a function address.
		return nil
	}
	if lib, ok := infer.Library[d.Name]; ok {
		if len(d.Args) < lib.MinArgs || len(d.Args) > lib.MaxArgs {
			util.Error(node.Tok, "Library function '%s' takes %s, got %d", d.Name, arity(lib.MinArgs, lib.MaxArgs), len(d.Args))
		}
		return nil
	}
	fi, ok := tc.funcs[d.Name]
	if !ok {
		if _, isClass := tc.classes[d.Name]; isClass {
			util.Error(node.Tok, "Use 'new %s(...)' to create an instance", d.Name)
		}
		util.Error(node.Tok, "Call to undefined function '%s'", d.Name)
		return nil
	}
	if len(d.Args) != len(fi.params) {
		util.Error(node.Tok, "Function '%s' takes %d arguments, got %d", d.Name, len(fi.params), len(d.Args))
	}
	for i, p := range fi.params {
		if i < len(args) {
			tc.checkAssignable(d.Args[i].Tok, p.Type, args[i], "parameter '"+p.Name+"'")
		}
	}
	if ret, ok := tc.hints.ReturnTypes[ast.FuncSymbol(d.Name)]; ok {
		return ret.Ptr()
	}
	return nil
}

func arity(min, max int) string {
	if min == max {
		if min == 1 {
			return "1 argument"
		}
		return strconv.Itoa(min) + " arguments"
	}
	return strconv.Itoa(min) + " to " + strconv.Itoa(max) + " arguments"
}

func (tc *TypeChecker) checkMethodCall(node *ast.Node, d ast.MethodCallNode) *ast.Sigil {
	recv := tc.checkExpr(d.Recv)
	for _, a := range d.Args {
		tc.checkExpr(a)
	}
	if recv == nil || recv.Kind != ast.SigObject || recv.Class == "" {
		return nil
	}

	isStaticRef := d.Recv.Type == ast.Ident && tc.findSymbol(d.Recv.Data.(ast.IdentNode).Name) == nil
	if isStaticRef {
		for c := recv.Class; c != ""; {
			ci, ok := tc.classes[c]
			if !ok {
				break
			}
			if md, ok := ci.methods[d.Method]; ok {
				if !md.IsStatic {
					util.Error(node.Tok, "'%s.%s' is not a static method", recv.Class, d.Method)
				}
				return tc.annotateCall(node, md, len(d.Args))
			}
			c = ci.decl.Base
		}
		util.Error(node.Tok, "Class '%s' has no static method '%s'", recv.Class, d.Method)
		return nil
	}

	_, md, ok := tc.lookupMethod(recv.Class, d.Method)
	if !ok {
		if _, known := tc.classes[recv.Class]; known {
			util.Warn(tc.cfg, config.WarnType, node.Tok, "Class '%s' has no method '%s'", recv.Class, d.Method)
		}
		return nil
	}
	if md.IsStatic {
		util.Error(node.Tok, "Static method '%s' called through an instance; use '%s.%s()'", d.Method, recv.Class, d.Method)
	}
	return tc.annotateCall(node, md, len(d.Args))
}

func (tc *TypeChecker) annotateCall(node *ast.Node, md ast.MethodDeclNode, nargs int) *ast.Sigil {
	if nargs != len(md.Params) {
		util.Error(node.Tok, "Method '%s' takes %d arguments, got %d", md.Name, len(md.Params), nargs)
	}
	if md.ReturnType != nil {
		node.Typ = md.ReturnType
	}
	return md.ReturnType
}
