package lexer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/lumen/pkg/config"
	"github.com/xplshn/lumen/pkg/token"
	"github.com/xplshn/lumen/pkg/util"
)

type tok struct {
	Type  token.Type
	Value string
}

func lex(t *testing.T, src string) []tok {
	t.Helper()
	var out []tok
	for _, tk := range NewLexer([]rune(src), 0, config.NewConfig()).Tokenize() {
		out = append(out, tok{tk.Type, tk.Value})
	}
	return out
}

func TestTokens(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []tok
	}{
		{
			name: "declaration",
			src:  `var xs: list<string> = ["a"];`,
			want: []tok{
				{token.Var, ""}, {token.Ident, "xs"}, {token.Colon, ""}, {token.Ident, "list"}, {token.Lt, ""},
				{token.Ident, "string"}, {token.Gt, ""}, {token.Eq, ""}, {token.LBracket, ""}, {token.String, "a"},
				{token.RBracket, ""}, {token.Semi, ""}, {token.EOF, ""},
			},
		},
		{
			name: "operators",
			src:  "a += b ^ 2 != c && !d || e-- >= ++f % &g",
			want: []tok{
				{token.Ident, "a"}, {token.PlusEq, ""}, {token.Ident, "b"}, {token.Caret, ""}, {token.Number, "2"},
				{token.Neq, ""}, {token.Ident, "c"}, {token.AndAnd, ""}, {token.Not, ""}, {token.Ident, "d"},
				{token.OrOr, ""}, {token.Ident, "e"}, {token.Dec, ""}, {token.Gte, ""}, {token.Inc, ""},
				{token.Ident, "f"}, {token.Rem, ""}, {token.Amp, ""}, {token.Ident, "g"}, {token.EOF, ""},
			},
		},
		{
			name: "keywords and comments",
			src:  "class A extends B { } // trailing\n/* block\n comment */ try catch finally throw",
			want: []tok{
				{token.Class, ""}, {token.Ident, "A"}, {token.Extends, ""}, {token.Ident, "B"}, {token.LBrace, ""},
				{token.RBrace, ""}, {token.Try, ""}, {token.Catch, ""}, {token.Finally, ""}, {token.Throw, ""},
				{token.EOF, ""},
			},
		},
		{
			name: "numbers",
			src:  "0 42 0x1F",
			want: []tok{{token.Number, "0"}, {token.Number, "42"}, {token.Number, "31"}, {token.EOF, ""}},
		},
		{
			name: "escapes",
			src:  `"tab\there\n\"q\"\x41"`,
			want: []tok{{token.String, "tab\there\n\"q\"A"}, {token.EOF, ""}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, lex(t, tt.src)); diff != "" {
				t.Errorf("tokens mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPositions(t *testing.T) {
	toks := NewLexer([]rune("var x\n  = 10;"), 3, config.NewConfig()).Tokenize()
	got := toks[2]
	if got.Type != token.Eq || got.Line != 2 || got.Column != 3 || got.FileIndex != 3 {
		t.Errorf("'=' token at %d:%d file %d, want 2:3 file 3", got.Line, got.Column, got.FileIndex)
	}
	if num := toks[3]; num.Len != 2 {
		t.Errorf("number token length %d, want 2", num.Len)
	}
}

func TestWarnings(t *testing.T) {
	var buf bytes.Buffer
	old := util.SetOutput(&buf)
	defer util.SetOutput(old)

	cfg := config.NewConfig()
	NewLexer([]rune(`"\q" 99999999999999999999`), 0, cfg).Tokenize()
	out := buf.String()
	for _, want := range []string{"[-Wu-esc]", "[-Woverflow]"} {
		if !strings.Contains(out, want) {
			t.Errorf("diagnostics lack %s:\n%s", want, out)
		}
	}

	buf.Reset()
	cfg.SetWarning(config.WarnUnrecognizedEscape, false)
	NewLexer([]rune(`"\q"`), 0, cfg).Tokenize()
	if buf.Len() != 0 {
		t.Errorf("disabled warning still printed:\n%s", buf.String())
	}
}

func TestUnexpectedCharacter(t *testing.T) {
	var buf bytes.Buffer
	oldOut := util.SetOutput(&buf)
	defer util.SetOutput(oldOut)
	code := 0
	oldExit := util.SetExit(func(c int) { code = c })
	defer util.SetExit(oldExit)

	NewLexer([]rune("a @ b"), 0, config.NewConfig()).Tokenize()
	if code != 1 || !strings.Contains(buf.String(), "Unexpected character: '@'") {
		t.Errorf("exit %d, output:\n%s", code, buf.String())
	}
}
