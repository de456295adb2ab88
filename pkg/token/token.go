package token

type Type int

const (
	EOF Type = iota
	Ident
	Number
	String

	// Keywords
	Var
	Func
	Class
	Extends
	Constructor
	Static
	Override
	New
	This
	Super
	If
	Else
	While
	Do
	For
	Switch
	Case
	Default
	Break
	Continue
	Return
	Throw
	Try
	Catch
	Finally
	Print
	True
	False

	// Punctuation
	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket
	Semi
	Comma
	Colon
	Question
	Dot

	// Operators
	Eq
	PlusEq
	MinusEq
	StarEq
	SlashEq
	RemEq
	Plus
	Minus
	Star
	Slash
	Rem
	Caret
	Amp
	EqEq
	Neq
	Lt
	Gt
	Gte
	Lte
	AndAnd
	OrOr
	Not
	Inc
	Dec
)

var KeywordMap = map[string]Type{
	"var":         Var,
	"func":        Func,
	"class":       Class,
	"extends":     Extends,
	"constructor": Constructor,
	"static":      Static,
	"override":    Override,
	"new":         New,
	"this":        This,
	"super":       Super,
	"if":          If,
	"else":        Else,
	"while":       While,
	"do":          Do,
	"for":         For,
	"switch":      Switch,
	"case":        Case,
	"default":     Default,
	"break":       Break,
	"continue":    Continue,
	"return":      Return,
	"throw":       Throw,
	"try":         Try,
	"catch":       Catch,
	"finally":     Finally,
	"print":       Print,
	"true":        True,
	"false":       False,
}

// Reverse mapping from Type to the keyword string
var TypeStrings = make(map[Type]string)

var symbolStrings = map[Type]string{
	EOF: "end of file", Ident: "identifier", Number: "number", String: "string",
	LParen: "(", RParen: ")", LBrace: "{", RBrace: "}", LBracket: "[", RBracket: "]",
	Semi: ";", Comma: ",", Colon: ":", Question: "?", Dot: ".",
	Eq: "=", PlusEq: "+=", MinusEq: "-=", StarEq: "*=", SlashEq: "/=", RemEq: "%=",
	Plus: "+", Minus: "-", Star: "*", Slash: "/", Rem: "%", Caret: "^", Amp: "&",
	EqEq: "==", Neq: "!=", Lt: "<", Gt: ">", Gte: ">=", Lte: "<=",
	AndAnd: "&&", OrOr: "||", Not: "!", Inc: "++", Dec: "--",
}

func init() {
	for str, typ := range KeywordMap {
		TypeStrings[typ] = str
	}
	for typ, str := range symbolStrings {
		TypeStrings[typ] = str
	}
}

func (t Type) String() string {
	if s, ok := TypeStrings[t]; ok {
		return s
	}
	return "unknown"
}

type Token struct {
	Type      Type
	Value     string
	FileIndex int
	Line      int
	Column    int
	Len       int
}
