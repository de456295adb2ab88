package lexer

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/xplshn/lumen/pkg/config"
	"github.com/xplshn/lumen/pkg/token"
	"github.com/xplshn/lumen/pkg/util"
)

// mark is a position in the source.
type mark struct{ pos, line, col int }

type Lexer struct {
	source    []rune
	fileIndex int
	cur       mark
	start     mark
	cfg       *config.Config
}

func NewLexer(source []rune, fileIndex int, cfg *config.Config) *Lexer {
	return &Lexer{source: source, fileIndex: fileIndex, cur: mark{line: 1, col: 1}, cfg: cfg}
}

// Tokenize drains the lexer, EOF token included.
func (l *Lexer) Tokenize() []token.Token {
	var tokens []token.Token
	for {
		tok := l.Next()
		tokens = append(tokens, tok)
		if tok.Type == token.EOF {
			return tokens
		}
	}
}

// Single-rune punctuation that never starts a longer token.
var punct = map[rune]token.Type{
	'(': token.LParen, ')': token.RParen,
	'{': token.LBrace, '}': token.RBrace,
	'[': token.LBracket, ']': token.RBracket,
	';': token.Semi, ',': token.Comma, '?': token.Question,
	':': token.Colon, '.': token.Dot, '^': token.Caret,
}

// Operators that become a second token when followed by one more rune.
var pairs = map[rune]struct {
	next     rune
	two, one token.Type
}{
	'!': {'=', token.Neq, token.Not},
	'%': {'=', token.RemEq, token.Rem},
	'*': {'=', token.StarEq, token.Star},
	'/': {'=', token.SlashEq, token.Slash},
	'<': {'=', token.Lte, token.Lt},
	'>': {'=', token.Gte, token.Gt},
	'=': {'=', token.EqEq, token.Eq},
	'&': {'&', token.AndAnd, token.Amp},
}

func (l *Lexer) Next() token.Token {
	l.skipWhitespaceAndComments()
	l.start = l.cur
	if l.isAtEnd() {
		return l.emit(token.EOF, "")
	}

	ch := l.peek()
	switch {
	case unicode.IsLetter(ch) || ch == '_':
		return l.identifierOrKeyword()
	case unicode.IsDigit(ch):
		return l.numberLiteral()
	}

	l.advance()
	if typ, ok := punct[ch]; ok {
		return l.emit(typ, "")
	}
	if p, ok := pairs[ch]; ok {
		return l.matchThen(p.next, p.two, p.one)
	}
	switch ch {
	case '+':
		return l.doubled('+', token.Inc, token.PlusEq, token.Plus)
	case '-':
		return l.doubled('-', token.Dec, token.MinusEq, token.Minus)
	case '|':
		if l.match('|') {
			return l.emit(token.OrOr, "")
		}
	case '"':
		return l.stringLiteral()
	}

	tok := l.emit(token.EOF, "")
	util.Error(tok, "Unexpected character: '%c'", ch)
	return tok
}

// emit builds a token spanning from the start mark to the cursor.
func (l *Lexer) emit(typ token.Type, value string) token.Token {
	return l.tokenAt(l.start, typ, value)
}

func (l *Lexer) tokenAt(m mark, typ token.Type, value string) token.Token {
	return token.Token{
		Type: typ, Value: value, FileIndex: l.fileIndex,
		Line: m.line, Column: m.col, Len: l.cur.pos - m.pos,
	}
}

func (l *Lexer) peekAt(offset int) rune {
	if i := l.cur.pos + offset; i < len(l.source) {
		return l.source[i]
	}
	return 0
}

func (l *Lexer) peek() rune     { return l.peekAt(0) }
func (l *Lexer) isAtEnd() bool  { return l.cur.pos >= len(l.source) }
func (l *Lexer) lexeme() string { return string(l.source[l.start.pos:l.cur.pos]) }

func (l *Lexer) advance() rune {
	if l.isAtEnd() {
		return 0
	}
	ch := l.source[l.cur.pos]
	l.cur.pos++
	if ch == '\n' {
		l.cur.line++
		l.cur.col = 1
	} else {
		l.cur.col++
	}
	return ch
}

func (l *Lexer) match(expected rune) bool {
	if l.isAtEnd() || l.peek() != expected {
		return false
	}
	l.advance()
	return true
}

func (l *Lexer) matchThen(expected rune, then, otherwise token.Type) token.Token {
	if l.match(expected) {
		return l.emit(then, "")
	}
	return l.emit(otherwise, "")
}

// doubled lexes '+' and '-': the doubled rune, the compound assignment, or
// the bare operator.
func (l *Lexer) doubled(ch rune, twice, assign, bare token.Type) token.Token {
	if l.match(ch) {
		return l.emit(twice, "")
	}
	return l.matchThen('=', assign, bare)
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		switch c := l.peek(); {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			l.advance()
		case c == '/' && l.peekAt(1) == '/':
			for !l.isAtEnd() && l.peek() != '\n' {
				l.advance()
			}
		case c == '/' && l.peekAt(1) == '*':
			l.skipBlockComment()
		default:
			return
		}
	}
}

func (l *Lexer) skipBlockComment() {
	opened := l.cur
	l.advance()
	l.advance()
	for !l.isAtEnd() {
		if l.advance() == '*' && l.match('/') {
			return
		}
	}
	util.Error(l.tokenAt(opened, token.EOF, ""), "Unterminated block comment")
}

func isIdentRune(c rune) bool { return unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_' }

func (l *Lexer) identifierOrKeyword() token.Token {
	for isIdentRune(l.peek()) {
		l.advance()
	}
	word := l.lexeme()
	if kw, ok := token.KeywordMap[word]; ok {
		return l.emit(kw, "")
	}
	return l.emit(token.Ident, word)
}

func (l *Lexer) numberLiteral() token.Token {
	digit := func(c rune) bool { return unicode.IsDigit(c) }
	if l.peek() == '0' && (l.peekAt(1) == 'x' || l.peekAt(1) == 'X') {
		l.advance()
		l.advance()
		digit = isHexDigit
	}
	for digit(l.peek()) {
		l.advance()
	}

	text := l.lexeme()
	tok := l.emit(token.Number, "0")
	if c := l.peek(); unicode.IsLetter(c) || c == '_' {
		util.Error(tok, "Invalid number literal: %s%c", text, c)
	}

	n, err := strconv.ParseInt(text, 0, 64)
	switch {
	case err == nil:
		tok.Value = strconv.FormatInt(n, 10)
	case err.(*strconv.NumError).Err == strconv.ErrRange:
		util.Warn(l.cfg, config.WarnOverflow, tok, "Integer constant overflow: %s", text)
		u, _ := strconv.ParseUint(text, 0, 64)
		tok.Value = strconv.FormatInt(int64(u), 10)
	default:
		util.Error(tok, "Invalid number literal: %s", text)
	}
	return tok
}

func (l *Lexer) stringLiteral() token.Token {
	var sb strings.Builder
	for !l.isAtEnd() && l.peek() != '\n' {
		c := l.advance()
		switch c {
		case '"':
			return l.emit(token.String, sb.String())
		case '\\':
			sb.WriteRune(l.decodeEscape())
		default:
			sb.WriteRune(c)
		}
	}
	util.Error(l.emit(token.String, ""), "Unterminated string literal")
	return l.tokenAt(l.cur, token.EOF, "")
}

var escapes = map[rune]rune{
	'n': '\n', 't': '\t', 'r': '\r', '0': 0, 'a': '\a', 'b': '\b', 'e': 0x1b,
	'\\': '\\', '\'': '\'', '"': '"',
}

// decodeEscape decodes the escape after a backslash. \xHH takes exactly two
// hex digits; unknown escapes keep the escaped rune.
func (l *Lexer) decodeEscape() rune {
	if l.isAtEnd() {
		util.Error(l.tokenAt(l.cur, token.EOF, ""), "Unterminated escape sequence")
		return 0
	}
	c := l.advance()
	if c == 'x' {
		var v rune
		for i := 0; i < 2; i++ {
			if !isHexDigit(l.peek()) {
				util.Error(l.emit(token.String, ""), "Incomplete hex escape sequence '\\x' - expected 2 hex digits")
				return 0
			}
			d, _ := strconv.ParseUint(string(l.advance()), 16, 8)
			v = v*16 + rune(d)
		}
		return v
	}
	if v, ok := escapes[c]; ok {
		return v
	}
	util.Warn(l.cfg, config.WarnUnrecognizedEscape, l.emit(token.String, ""), "Unrecognized escape sequence '\\%c'", c)
	return c
}

func isHexDigit(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
