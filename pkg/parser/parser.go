package parser

import (
	"strconv"
	"unicode"

	"github.com/xplshn/lumen/pkg/ast"
	"github.com/xplshn/lumen/pkg/token"
	"github.com/xplshn/lumen/pkg/util"
)

// Parser holds the state for the parsing process
type Parser struct {
	tokens   []token.Token
	pos      int
	current  token.Token
	previous token.Token
}

// NewParser creates and initializes a new Parser from a token stream
func NewParser(tokens []token.Token) *Parser {
	p := &Parser{tokens: tokens, pos: 0}
	if len(tokens) > 0 {
		p.current = p.tokens[0]
	}
	return p
}

// Parser helpers
func (p *Parser) advance() {
	if p.pos < len(p.tokens) {
		p.previous = p.current
		p.pos++
		if p.pos < len(p.tokens) {
			p.current = p.tokens[p.pos]
		}
	}
}

func (p *Parser) check(tokType token.Type) bool {
	return p.current.Type == tokType
}

func (p *Parser) match(tokType token.Type) bool {
	if !p.check(tokType) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) expect(tokType token.Type, message string) {
	if p.check(tokType) {
		p.advance()
		return
	}
	util.Error(p.current, message)
}

func (p *Parser) expectIdent(message string) string {
	p.expect(token.Ident, message)
	return p.previous.Value
}

func isLValue(node *ast.Node) bool {
	if node == nil {
		return false
	}
	switch node.Type {
	case ast.Ident, ast.Index, ast.MemberAccess:
		return true
	default:
		return false
	}
}

// Expression Parsing
func getBinaryOpPrecedence(op token.Type) int {
	switch op {
	case token.Star, token.Slash, token.Rem:
		return 6
	case token.Plus, token.Minus:
		return 5
	case token.Lt, token.Gt, token.Lte, token.Gte:
		return 4
	case token.EqEq, token.Neq:
		return 3
	case token.AndAnd:
		return 2
	case token.OrOr:
		return 1
	default:
		return -1
	}
}

func (p *Parser) parsePrimaryExpr() *ast.Node {
	tok := p.current
	switch {
	case p.match(token.Number):
		val, _ := strconv.ParseInt(p.previous.Value, 10, 64)
		return ast.NewNumber(tok, val)
	case p.match(token.String):
		return ast.NewString(tok, p.previous.Value)
	case p.match(token.True):
		return ast.NewBool(tok, true)
	case p.match(token.False):
		return ast.NewBool(tok, false)
	case p.match(token.Ident):
		return ast.NewIdent(tok, p.previous.Value)
	case p.match(token.This):
		return ast.NewIdent(tok, "this")
	case p.match(token.Super):
		if !p.check(token.Dot) {
			util.Error(tok, "'super' must be followed by a method call.")
		}
		return ast.NewSuper(tok)
	case p.match(token.New):
		class := p.expectIdent("Expected class name after 'new'.")
		p.expect(token.LParen, "Expected '(' after class name.")
		return ast.NewNew(tok, class, p.parseArgs())
	case p.match(token.Amp):
		name := p.expectIdent("Expected function name after '&'.")
		return ast.NewFuncRef(tok, name)
	case p.match(token.LParen):
		expr := p.parseExpr()
		p.expect(token.RParen, "Expected ')' after expression.")
		return expr
	case p.match(token.LBracket):
		var elems []*ast.Node
		for !p.check(token.RBracket) {
			elems = append(elems, p.parseExpr())
			if !p.match(token.Comma) {
				break
			}
		}
		p.expect(token.RBracket, "Expected ']' after list elements.")
		return ast.NewListLit(tok, elems)
	case p.match(token.LBrace):
		var keys, values []*ast.Node
		for !p.check(token.RBrace) {
			keys = append(keys, p.parseExpr())
			p.expect(token.Colon, "Expected ':' between map key and value.")
			values = append(values, p.parseExpr())
			if !p.match(token.Comma) {
				break
			}
		}
		p.expect(token.RBrace, "Expected '}' after map entries.")
		return ast.NewMapLit(tok, keys, values)
	}
	util.Error(tok, "Expected an expression.")
	return nil
}

// parseArgs reads a comma-separated argument list; the '(' is already consumed.
func (p *Parser) parseArgs() []*ast.Node {
	var args []*ast.Node
	for !p.check(token.RParen) {
		args = append(args, p.parseExpr())
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.RParen, "Expected ')' after arguments.")
	return args
}

func (p *Parser) parsePostfixExpr() *ast.Node {
	expr := p.parsePrimaryExpr()
	for {
		tok := p.current
		switch {
		case p.match(token.LParen):
			if expr.Type != ast.Ident {
				util.Error(tok, "Only named functions can be called.")
			}
			expr = ast.NewFuncCall(expr.Tok, expr.Data.(ast.IdentNode).Name, p.parseArgs())
		case p.match(token.Dot):
			name := p.expectIdent("Expected member name after '.'.")
			if p.match(token.LParen) {
				expr = ast.NewMethodCall(tok, expr, name, p.parseArgs())
			} else {
				if expr.Type == ast.Super {
					util.Error(tok, "'super' members can only be called.")
				}
				expr = ast.NewMemberAccess(tok, expr, name)
			}
		case p.match(token.LBracket):
			index := p.parseExpr()
			p.expect(token.RBracket, "Expected ']' after index.")
			expr = ast.NewIndex(tok, expr, index)
		case p.check(token.Inc) || p.check(token.Dec):
			if !isLValue(expr) {
				util.Error(tok, "Postfix '++' or '--' requires an l-value.")
			}
			p.advance()
			expr = ast.NewIncDec(tok, p.previous.Type, false, expr)
		default:
			return expr
		}
	}
}

func (p *Parser) parseUnaryExpr() *ast.Node {
	tok := p.current
	if p.match(token.Not) || p.match(token.Minus) || p.match(token.Plus) {
		op := p.previous.Type
		operand := p.parseUnaryExpr()
		if op == token.Plus {
			return operand
		}
		return ast.NewUnaryOp(tok, op, operand)
	}
	if p.match(token.Inc) || p.match(token.Dec) {
		op := p.previous.Type
		operand := p.parseUnaryExpr()
		if !isLValue(operand) {
			util.Error(tok, "Prefix '++' or '--' requires an l-value.")
		}
		return ast.NewIncDec(tok, op, true, operand)
	}
	return p.parsePowerExpr()
}

// parsePowerExpr binds '^' tighter than the multiplicative operators and to the right.
func (p *Parser) parsePowerExpr() *ast.Node {
	base := p.parsePostfixExpr()
	if p.check(token.Caret) {
		tok := p.current
		p.advance()
		exp := p.parseUnaryExpr()
		return ast.NewBinaryOp(tok, token.Caret, base, exp)
	}
	return base
}

func (p *Parser) parseBinaryExpr(minPrec int) *ast.Node {
	left := p.parseUnaryExpr()
	for {
		op := p.current.Type
		prec := getBinaryOpPrecedence(op)
		if prec < minPrec {
			return left
		}
		tok := p.current
		p.advance()
		right := p.parseBinaryExpr(prec + 1)
		left = ast.NewBinaryOp(tok, op, left, right)
	}
}

func (p *Parser) parseTernaryExpr() *ast.Node {
	cond := p.parseBinaryExpr(1)
	if p.check(token.Question) {
		tok := p.current
		p.advance()
		thenExpr := p.parseExpr()
		p.expect(token.Colon, "Expected ':' for ternary operator.")
		elseExpr := p.parseTernaryExpr()
		return ast.NewTernary(tok, cond, thenExpr, elseExpr)
	}
	return cond
}

func (p *Parser) parseExpr() *ast.Node {
	return ast.FoldConstants(p.parseTernaryExpr())
}

func isAssignmentOp(op token.Type) bool {
	return op >= token.Eq && op <= token.RemEq
}

var compoundOps = map[token.Type]token.Type{
	token.PlusEq: token.Plus, token.MinusEq: token.Minus, token.StarEq: token.Star,
	token.SlashEq: token.Slash, token.RemEq: token.Rem,
}

// parseSimpleStmt parses an assignment or expression statement without its ';'.
func (p *Parser) parseSimpleStmt() *ast.Node {
	tok := p.current
	lhs := p.parseExpr()
	if !isAssignmentOp(p.current.Type) {
		return ast.NewExprStmt(tok, lhs)
	}

	opTok := p.current
	p.advance()
	rhs := p.parseExpr()
	if binOp, ok := compoundOps[opTok.Type]; ok {
		rhs = ast.NewBinaryOp(opTok, binOp, p.cloneLValue(lhs), rhs)
	}

	switch lhs.Type {
	case ast.Ident:
		return ast.NewAssign(opTok, lhs.Data.(ast.IdentNode).Name, rhs)
	case ast.Index:
		d := lhs.Data.(ast.IndexNode)
		return ast.NewIndexAssign(opTok, d.Expr, d.Index, rhs)
	case ast.MemberAccess:
		d := lhs.Data.(ast.MemberAccessNode)
		return ast.NewIndexAssign(opTok, d.Expr, ast.NewString(lhs.Tok, d.Member), rhs)
	}
	util.Error(opTok, "Invalid target for assignment.")
	return nil
}

// cloneLValue copies an l-value so a compound assignment can read it as a
// separate subtree.
func (p *Parser) cloneLValue(n *ast.Node) *ast.Node {
	switch n.Type {
	case ast.Ident:
		return ast.NewIdent(n.Tok, n.Data.(ast.IdentNode).Name)
	case ast.Index:
		d := n.Data.(ast.IndexNode)
		return ast.NewIndex(n.Tok, p.cloneExpr(d.Expr), p.cloneExpr(d.Index))
	case ast.MemberAccess:
		d := n.Data.(ast.MemberAccessNode)
		return ast.NewMemberAccess(n.Tok, p.cloneExpr(d.Expr), d.Member)
	}
	return n
}

func (p *Parser) cloneExpr(n *ast.Node) *ast.Node {
	switch n.Type {
	case ast.Number:
		return ast.NewNumber(n.Tok, n.Data.(ast.NumberNode).Value)
	case ast.String:
		return ast.NewString(n.Tok, n.Data.(ast.StringNode).Value)
	case ast.Bool:
		return ast.NewBool(n.Tok, n.Data.(ast.BoolNode).Value)
	case ast.Ident, ast.Index, ast.MemberAccess:
		return p.cloneLValue(n)
	}
	util.Error(n.Tok, "Compound assignment target is too complex; assign through a variable.")
	return nil
}

func (p *Parser) parseType() *ast.Sigil {
	name := p.expectIdent("Expected a type name.")
	if p.match(token.Lt) {
		elem := p.expectIdent("Expected an element type.")
		p.expect(token.Gt, "Expected '>' after element type.")
		name += "<" + elem + ">"
	}
	return ast.ParseTypeName(name).Ptr()
}

func (p *Parser) parseOptionalType() *ast.Sigil {
	if p.match(token.Colon) {
		return p.parseType()
	}
	return nil
}

func (p *Parser) parseParams() []ast.Param {
	p.expect(token.LParen, "Expected '(' before parameter list.")
	var params []ast.Param
	for !p.check(token.RParen) {
		name := p.expectIdent("Expected parameter name.")
		params = append(params, ast.Param{Name: name, Type: p.parseOptionalType()})
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.RParen, "Expected ')' after parameters.")
	return params
}

func (p *Parser) parseBlockStmt() *ast.Node {
	tok := p.current
	p.expect(token.LBrace, "Expected '{' to start a block.")
	var stmts []*ast.Node
	for !p.check(token.RBrace) && !p.check(token.EOF) {
		stmts = append(stmts, p.parseStmt())
	}
	p.expect(token.RBrace, "Expected '}' after block.")
	return ast.NewBlock(tok, stmts)
}

func (p *Parser) parseVarDecl() *ast.Node {
	tok := p.previous
	name := p.expectIdent("Expected variable name after 'var'.")
	typ := p.parseOptionalType()
	var init *ast.Node
	if p.match(token.Eq) {
		init = p.parseExpr()
	}
	return ast.NewVarDecl(tok, name, typ, init)
}

func (p *Parser) parseStmt() *ast.Node {
	tok := p.current
	switch {
	case p.check(token.LBrace):
		return p.parseBlockStmt()
	case p.match(token.Var):
		decl := p.parseVarDecl()
		p.expect(token.Semi, "Expected ';' after variable declaration.")
		return decl
	case p.match(token.Print):
		p.expect(token.LParen, "Expected '(' after 'print'.")
		expr := p.parseExpr()
		p.expect(token.RParen, "Expected ')' after print argument.")
		p.expect(token.Semi, "Expected ';' after print statement.")
		return ast.NewPrint(tok, expr)
	case p.match(token.If):
		p.expect(token.LParen, "Expected '(' after 'if'.")
		cond := p.parseExpr()
		p.expect(token.RParen, "Expected ')' after if condition.")
		thenBody := p.parseStmt()
		var elseBody *ast.Node
		if p.match(token.Else) {
			elseBody = p.parseStmt()
		}
		return ast.NewIf(tok, cond, thenBody, elseBody)
	case p.match(token.While):
		p.expect(token.LParen, "Expected '(' after 'while'.")
		cond := p.parseExpr()
		p.expect(token.RParen, "Expected ')' after while condition.")
		body := p.parseStmt()
		return ast.NewWhile(tok, cond, body)
	case p.match(token.Do):
		body := p.parseStmt()
		p.expect(token.While, "Expected 'while' after do body.")
		p.expect(token.LParen, "Expected '(' after 'while'.")
		cond := p.parseExpr()
		p.expect(token.RParen, "Expected ')' after do-while condition.")
		p.expect(token.Semi, "Expected ';' after do-while statement.")
		return ast.NewDoWhile(tok, body, cond)
	case p.match(token.For):
		return p.parseFor(tok)
	case p.match(token.Switch):
		return p.parseSwitch(tok)
	case p.match(token.Break):
		p.expect(token.Semi, "Expected ';' after 'break'.")
		return ast.NewBreak(tok)
	case p.match(token.Continue):
		p.expect(token.Semi, "Expected ';' after 'continue'.")
		return ast.NewContinue(tok)
	case p.match(token.Return):
		var expr *ast.Node
		if !p.check(token.Semi) {
			expr = p.parseExpr()
		}
		p.expect(token.Semi, "Expected ';' after return statement.")
		return ast.NewReturn(tok, expr)
	case p.match(token.Throw):
		return p.parseThrow(tok)
	case p.match(token.Try):
		return p.parseTry(tok)
	case p.match(token.Semi):
		return ast.NewBlock(tok, nil)
	case p.check(token.Func), p.check(token.Class):
		util.Error(tok, "Functions and classes can only be declared at the top level.")
		return nil
	default:
		stmt := p.parseSimpleStmt()
		p.expect(token.Semi, "Expected ';' after statement.")
		return stmt
	}
}

func (p *Parser) parseFor(tok token.Token) *ast.Node {
	p.expect(token.LParen, "Expected '(' after 'for'.")
	var init, cond, post *ast.Node
	if !p.check(token.Semi) {
		if p.match(token.Var) {
			init = p.parseVarDecl()
		} else {
			init = p.parseSimpleStmt()
		}
	}
	p.expect(token.Semi, "Expected ';' after for initializer.")
	if !p.check(token.Semi) {
		cond = p.parseExpr()
	}
	p.expect(token.Semi, "Expected ';' after for condition.")
	if !p.check(token.RParen) {
		post = p.parseSimpleStmt()
	}
	p.expect(token.RParen, "Expected ')' after for clauses.")
	body := p.parseStmt()
	return ast.NewFor(tok, init, cond, post, body)
}

func (p *Parser) parseSwitch(tok token.Token) *ast.Node {
	p.expect(token.LParen, "Expected '(' after 'switch'.")
	expr := p.parseExpr()
	p.expect(token.RParen, "Expected ')' after switch expression.")
	p.expect(token.LBrace, "Expected '{' to start switch body.")

	var cases []*ast.Node
	seenDefault := false
	for !p.check(token.RBrace) && !p.check(token.EOF) {
		caseTok := p.current
		var value *ast.Node
		switch {
		case p.match(token.Case):
			value = p.parseExpr()
		case p.match(token.Default):
			if seenDefault {
				util.Error(caseTok, "Multiple 'default' labels in one switch.")
			}
			seenDefault = true
		default:
			util.Error(caseTok, "Expected 'case' or 'default' in switch body.")
		}
		p.expect(token.Colon, "Expected ':' after case label.")

		var body []*ast.Node
		for !p.check(token.Case) && !p.check(token.Default) && !p.check(token.RBrace) && !p.check(token.EOF) {
			body = append(body, p.parseStmt())
		}
		if value != nil {
			cases = append(cases, ast.NewCase(caseTok, value, body))
		} else {
			cases = append(cases, ast.NewDefault(caseTok, body))
		}
	}
	p.expect(token.RBrace, "Expected '}' after switch body.")
	return ast.NewSwitch(tok, expr, cases)
}

// parseThrow handles both 'throw expr;' and the typed form 'throw Name(msg);',
// which is recognised by a capitalised callee with a single argument.
func (p *Parser) parseThrow(tok token.Token) *ast.Node {
	expr := p.parseExpr()
	p.expect(token.Semi, "Expected ';' after throw statement.")
	if expr.Type == ast.FuncCall {
		d := expr.Data.(ast.FuncCallNode)
		if len(d.Args) == 1 && unicode.IsUpper([]rune(d.Name)[0]) {
			return ast.NewThrow(tok, d.Name, d.Args[0])
		}
	}
	return ast.NewThrow(tok, "", expr)
}

func (p *Parser) parseTry(tok token.Token) *ast.Node {
	body := p.parseBlockStmt()
	var catches []*ast.Node
	for p.check(token.Catch) {
		catchTok := p.current
		p.advance()
		p.expect(token.LParen, "Expected '(' after 'catch'.")
		typeName := ""
		name := p.expectIdent("Expected exception variable name in catch clause.")
		if p.check(token.Ident) {
			typeName = name
			name = p.current.Value
			p.advance()
		}
		p.expect(token.RParen, "Expected ')' after catch clause.")
		catches = append(catches, ast.NewCatch(catchTok, typeName, name, p.parseBlockStmt()))
	}
	var finally *ast.Node
	if p.match(token.Finally) {
		finally = p.parseBlockStmt()
	}
	if len(catches) == 0 && finally == nil {
		util.Error(tok, "'try' requires at least one 'catch' or a 'finally' block.")
	}
	return ast.NewTry(tok, body, catches, finally)
}

// Top-Level Parsing
func (p *Parser) parseFuncDecl() *ast.Node {
	tok := p.previous
	name := p.expectIdent("Expected function name after 'func'.")
	params := p.parseParams()
	ret := p.parseOptionalType()
	body := p.parseBlockStmt()
	return ast.NewFuncDecl(tok, name, params, ret, body)
}

func (p *Parser) parseClassDecl() *ast.Node {
	tok := p.previous
	name := p.expectIdent("Expected class name after 'class'.")
	base := ""
	if p.match(token.Extends) {
		base = p.expectIdent("Expected base class name after 'extends'.")
	}
	p.expect(token.LBrace, "Expected '{' to start class body.")

	var fields, methods, ctors []*ast.Node
	for !p.check(token.RBrace) && !p.check(token.EOF) {
		memberTok := p.current
		isStatic := p.match(token.Static)
		isOverride := !isStatic && p.match(token.Override)

		switch {
		case p.match(token.Var):
			if isOverride {
				util.Error(memberTok, "Fields cannot be marked 'override'.")
			}
			fieldName := p.expectIdent("Expected field name after 'var'.")
			typ := p.parseOptionalType()
			var init *ast.Node
			if p.match(token.Eq) {
				init = p.parseExpr()
			}
			p.expect(token.Semi, "Expected ';' after field declaration.")
			fields = append(fields, ast.NewFieldDecl(memberTok, fieldName, typ, init, isStatic))
		case p.match(token.Func):
			methodName := p.expectIdent("Expected method name after 'func'.")
			params := p.parseParams()
			ret := p.parseOptionalType()
			body := p.parseBlockStmt()
			methods = append(methods, ast.NewMethodDecl(memberTok, ast.MethodDeclNode{
				Name: methodName, Params: params, ReturnType: ret, Body: body,
				IsStatic: isStatic, IsOverride: isOverride,
			}))
		case p.match(token.Constructor):
			if isStatic || isOverride {
				util.Error(memberTok, "Constructors cannot be 'static' or 'override'.")
			}
			params := p.parseParams()
			ctors = append(ctors, ast.NewCtorDecl(memberTok, params, p.parseBlockStmt()))
		default:
			util.Error(p.current, "Expected a field, method or constructor in class body.")
		}
	}
	p.expect(token.RBrace, "Expected '}' after class body.")
	return ast.NewClassDecl(tok, name, base, fields, methods, ctors)
}

// Parse reads a whole program: declarations and top-level statements, in order.
func (p *Parser) Parse() *ast.Node {
	var stmts []*ast.Node
	tok := p.current
	for !p.check(token.EOF) {
		switch {
		case p.match(token.Semi):
			continue
		case p.match(token.Func):
			stmts = append(stmts, p.parseFuncDecl())
		case p.match(token.Class):
			stmts = append(stmts, p.parseClassDecl())
		default:
			stmts = append(stmts, p.parseStmt())
		}
	}
	return ast.NewBlock(tok, stmts)
}
