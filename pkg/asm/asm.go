// Package asm is the platform-neutral instruction model produced by the code
// generator. Calling-convention details are left as pseudo-ops that a backend
// resolves for one ABI.
package asm

import "fmt"

type Op int

const (
	OpMov Op = iota
	OpLea
	OpAdd
	OpSub
	OpImul
	OpCqo
	OpIdiv
	OpNeg
	OpXor
	OpCmp
	OpTest
	OpSete
	OpSetne
	OpSetl
	OpSetg
	OpSetle
	OpSetge
	OpMovzx
	OpCmovnz
	OpJmp
	OpJz
	OpJnz
	OpJge
	OpJle
	OpCall

	// Pseudo-ops
	OpLabel     // Args: Label
	OpPrologue  // frame setup; size comes from Func.Slots and Func.MaxCallArgs
	OpEpilogue  // frame teardown and ret
	OpSetArg    // Args: Arg, source operand
	OpLoadParam // Args: Arg, destination Slot
)

var opNames = [...]string{
	"mov", "lea", "add", "sub", "imul", "cqo", "idiv", "neg", "xor", "cmp", "test",
	"sete", "setne", "setl", "setg", "setle", "setge", "movzx", "cmovnz",
	"jmp", "jz", "jnz", "jge", "jle", "call",
	"label", "prologue", "epilogue", "setarg", "loadparam",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// IsPseudo reports whether the backend must expand o.
func (o Op) IsPseudo() bool { return o >= OpLabel }

type Operand interface {
	isOperand()
	String() string
}

type Reg string    // a general-purpose register name
type Imm int64     // an immediate
type Slot int      // frame slot i, at [rbp-16-8*i]
type Global string // a qword in the data section
type Addr string   // the address of a data or code symbol
type Label string  // a jump or call target
type Arg int       // the i-th argument of a call or of the current routine

func (Reg) isOperand()    {}
func (Imm) isOperand()    {}
func (Slot) isOperand()   {}
func (Global) isOperand() {}
func (Addr) isOperand()   {}
func (Label) isOperand()  {}
func (Arg) isOperand()    {}

func (r Reg) String() string    { return string(r) }
func (i Imm) String() string    { return fmt.Sprintf("%d", int64(i)) }
func (s Slot) String() string   { return fmt.Sprintf("slot%d", int(s)) }
func (g Global) String() string { return "[" + string(g) + "]" }
func (a Addr) String() string   { return "&" + string(a) }
func (l Label) String() string  { return string(l) }
func (a Arg) String() string    { return fmt.Sprintf("arg%d", int(a)) }

// The registers the emitter relies on. RBX is callee-saved by every routine;
// R10 is reserved for the backend.
const (
	RAX Reg = "rax"
	RBX Reg = "rbx"
	RDX Reg = "rdx"
	R11 Reg = "r11"
	AL  Reg = "al"
	EAX Reg = "eax"
	EDX Reg = "edx"
)

type Instr struct {
	Op      Op
	Args    []Operand
	Comment string
}

type Func struct {
	Name        string
	Instrs      []Instr
	Slots       int
	MaxCallArgs int
}

func (f *Func) Emit(op Op, args ...Operand) {
	f.Instrs = append(f.Instrs, Instr{Op: op, Args: args})
}

func (f *Func) EmitComment(comment string, op Op, args ...Operand) {
	f.Instrs = append(f.Instrs, Instr{Op: op, Args: args, Comment: comment})
}

func (f *Func) Label(l Label) { f.Emit(OpLabel, l) }

// NoteCall widens the outgoing argument area for a call with n arguments.
func (f *Func) NoteCall(n int) {
	if n > f.MaxCallArgs {
		f.MaxCallArgs = n
	}
}

type StringLit struct {
	Label string
	Value string
}

type Program struct {
	Externs []string
	Strings []StringLit
	Globals []string
	Funcs   []*Func
}

func (p *Program) FindFunc(name string) *Func {
	for _, f := range p.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// StringLabel returns the pool label holding value.
func (p *Program) StringLabel(value string) (string, bool) {
	for _, s := range p.Strings {
		if s.Value == value {
			return s.Label, true
		}
	}
	return "", false
}
