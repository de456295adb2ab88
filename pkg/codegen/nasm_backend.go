package codegen

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/xplshn/lumen/pkg/abi"
	"github.com/xplshn/lumen/pkg/asm"
	"github.com/xplshn/lumen/pkg/config"
)

// r10 is never handed out by the code generator; the backend uses it to
// split moves x86 cannot encode in one instruction.
const r10 = asm.Reg("r10")

type nasmBackend struct {
	out  *strings.Builder
	conv abi.Convention
	fn   *asm.Func
}

func NewNASMBackend() Backend { return &nasmBackend{} }

func (b *nasmBackend) Generate(prog *asm.Program, cfg *config.Config) (*bytes.Buffer, error) {
	conv, err := abi.Lookup(cfg.Platform)
	if err != nil {
		return nil, fmt.Errorf("nasm backend: %w", err)
	}
	var sb strings.Builder
	b.out = &sb
	b.conv = conv

	b.gen(prog)
	return bytes.NewBufferString(sb.String()), nil
}

var fixedData = []asm.StringLit{
	{Label: "fmt_int", Value: "%lld"},
	{Label: "fmt_str", Value: "%s"},
	{Label: "fmt_quoted", Value: "\"%s\""},
	{Label: "fmt_read_int", Value: "%lld"},
	{Label: "fmt_read_str", Value: "%255s"},
	{Label: "fmt_read_line", Value: " %255[^\n]"},
	{Label: "newline", Value: "\n"},
	{Label: "lbracket", Value: "["},
	{Label: "rbracket", Value: "]"},
	{Label: "lbrace", Value: "{"},
	{Label: "rbrace", Value: "}"},
	{Label: "comma", Value: ", "},
	{Label: "colon", Value: ": "},
	{Label: "word_true", Value: "true"},
	{Label: "word_false", Value: "false"},
	{Label: "word_object", Value: "<object>"},
}

func (b *nasmBackend) gen(prog *asm.Program) {
	fmt.Fprintf(b.out, "; target: %s\n", b.conv.Platform)
	b.out.WriteString("default rel\n\n")
	for _, name := range prog.Externs {
		fmt.Fprintf(b.out, "extern %s\n", name)
	}

	b.out.WriteString("\nsection .data\n")
	for _, s := range fixedData {
		fmt.Fprintf(b.out, "%s: db %s\n", s.Label, nasmString(s.Value))
	}
	b.out.WriteString("input_val: dq 0\n")
	b.out.WriteString("input_buf: times 256 db 0\n")
	for _, s := range prog.Strings {
		fmt.Fprintf(b.out, "%s: db %s\n", s.Label, nasmString(s.Value))
	}
	for _, g := range prog.Globals {
		fmt.Fprintf(b.out, "%s: dq 0\n", g)
	}

	b.out.WriteString("\nsection .text\nglobal main\n")
	for _, fn := range prog.Funcs {
		b.genFunc(fn)
	}

	if b.conv.GNUStackNote {
		b.out.WriteString("\nsection .note.GNU-stack noalloc noexec nowrite progbits\n")
	}
}

// nasmString renders s as db operands: printable runs are quoted verbatim,
// every other byte is written as a number, and a terminating 0 is appended.
func nasmString(s string) string {
	var parts []string
	var run strings.Builder
	flush := func() {
		if run.Len() > 0 {
			parts = append(parts, `"`+run.String()+`"`)
			run.Reset()
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x20 && c < 0x7f && c != '"' {
			run.WriteByte(c)
			continue
		}
		flush()
		parts = append(parts, strconv.Itoa(int(c)))
	}
	flush()
	parts = append(parts, "0")
	return strings.Join(parts, ", ")
}

func (b *nasmBackend) genFunc(fn *asm.Func) {
	b.fn = fn
	fmt.Fprintf(b.out, "\n%s:\n", fn.Name)
	for _, instr := range fn.Instrs {
		b.genInstr(instr)
	}
}

func (b *nasmBackend) line(format string, args ...interface{}) {
	fmt.Fprintf(b.out, "    "+format+"\n", args...)
}

func (b *nasmBackend) operand(o asm.Operand) string {
	switch v := o.(type) {
	case asm.Reg:
		return string(v)
	case asm.Imm:
		return strconv.FormatInt(int64(v), 10)
	case asm.Slot:
		return fmt.Sprintf("qword [rbp%+d]", abi.SlotOffset(int(v)))
	case asm.Global:
		return fmt.Sprintf("qword [%s]", string(v))
	case asm.Addr:
		return fmt.Sprintf("[%s]", string(v))
	case asm.Label:
		return string(v)
	case asm.Arg:
		return v.String()
	}
	return "?"
}

func isMemory(o asm.Operand) bool {
	switch o.(type) {
	case asm.Slot, asm.Global:
		return true
	}
	return false
}

func isWideImm(o asm.Operand) bool {
	v, ok := o.(asm.Imm)
	return ok && (int64(v) > math.MaxInt32 || int64(v) < math.MinInt32)
}

// move emits dst = src, splitting forms x86 cannot encode.
func (b *nasmBackend) move(dst, src asm.Operand) {
	switch {
	case isAddr(src) && isMemory(dst):
		b.line("lea r10, %s", b.operand(src))
		b.line("mov %s, r10", b.operand(dst))
	case isAddr(src):
		b.line("lea %s, %s", b.operand(dst), b.operand(src))
	case isMemory(dst) && (isMemory(src) || isWideImm(src)):
		b.line("mov r10, %s", b.operand(src))
		b.line("mov %s, r10", b.operand(dst))
	default:
		b.line("mov %s, %s", b.operand(dst), b.operand(src))
	}
}

func isAddr(o asm.Operand) bool {
	_, ok := o.(asm.Addr)
	return ok
}

func (b *nasmBackend) genInstr(in asm.Instr) {
	if in.Comment != "" {
		b.line("; %s", in.Comment)
	}
	switch in.Op {
	case asm.OpLabel:
		fmt.Fprintf(b.out, "%s:\n", b.operand(in.Args[0]))
	case asm.OpPrologue:
		b.line("push rbp")
		b.line("mov rbp, rsp")
		b.line("push rbx")
		b.line("sub rsp, %d", b.conv.FrameSize(b.fn.Slots, b.fn.MaxCallArgs))
	case asm.OpEpilogue:
		b.line("lea rsp, [rbp-8]")
		b.line("pop rbx")
		b.line("pop rbp")
		b.line("ret")
	case asm.OpSetArg:
		reg, off := b.conv.ArgLocation(int(in.Args[0].(asm.Arg)))
		if reg != "" {
			b.move(asm.Reg(reg), in.Args[1])
			return
		}
		b.move(r10, in.Args[1])
		b.line("mov qword [rsp+%d], r10", off)
	case asm.OpLoadParam:
		i := int(in.Args[0].(asm.Arg))
		reg, _ := b.conv.ArgLocation(i)
		if reg != "" {
			b.move(in.Args[1], asm.Reg(reg))
			return
		}
		b.line("mov r10, qword [rbp+%d]", b.conv.ParamOffset(i))
		b.move(in.Args[1], r10)
	case asm.OpMov:
		b.move(in.Args[0], in.Args[1])
	case asm.OpAdd, asm.OpSub, asm.OpImul, asm.OpCmp, asm.OpXor, asm.OpTest, asm.OpCmovnz, asm.OpLea, asm.OpMovzx:
		dst, src := in.Args[0], in.Args[1]
		if isWideImm(src) || (isMemory(dst) && isMemory(src)) {
			b.line("mov r10, %s", b.operand(src))
			src = r10
		}
		b.line("%s %s, %s", in.Op, b.operand(dst), b.operand(src))
	case asm.OpCqo:
		b.line("cqo")
	default:
		args := make([]string, len(in.Args))
		for i, a := range in.Args {
			args[i] = b.operand(a)
		}
		b.line("%s %s", in.Op, strings.Join(args, ", "))
	}
}
