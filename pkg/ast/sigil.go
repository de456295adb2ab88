package ast

// SigilKind is the runtime representation of a value.
type SigilKind int

const (
	SigInt SigilKind = iota
	SigBool
	SigStr
	SigList
	SigMap
	SigObject
)

// Sigil is an inferred representation. Elem is SigInt or SigStr for lists and
// maps; Class may name the class of an object.
type Sigil struct {
	Kind  SigilKind
	Elem  SigilKind
	Class string
}

var (
	IntSigil  = Sigil{Kind: SigInt}
	BoolSigil = Sigil{Kind: SigBool}
	StrSigil  = Sigil{Kind: SigStr}
)

func ListOf(elem SigilKind) Sigil   { return Sigil{Kind: SigList, Elem: uniformElem(elem)} }
func MapOf(elem SigilKind) Sigil    { return Sigil{Kind: SigMap, Elem: uniformElem(elem)} }
func ObjectOf(class string) Sigil   { return Sigil{Kind: SigObject, Class: class} }
func (s Sigil) IsStr() bool         { return s.Kind == SigStr }
func (s Sigil) IsCollection() bool  { return s.Kind == SigList || s.Kind == SigMap }
func (s Sigil) Ptr() *Sigil         { return &s }

// ElemSigil is the scalar sigil of a collection's elements.
func (s Sigil) ElemSigil() Sigil {
	if s.IsCollection() && s.Elem == SigStr {
		return StrSigil
	}
	return IntSigil
}

func uniformElem(k SigilKind) SigilKind {
	if k == SigStr {
		return SigStr
	}
	return SigInt
}

func (s Sigil) String() string {
	switch s.Kind {
	case SigInt:
		return "int"
	case SigBool:
		return "bool"
	case SigStr:
		return "string"
	case SigList:
		return "list<" + Sigil{Kind: s.Elem}.String() + ">"
	case SigMap:
		return "map<" + Sigil{Kind: s.Elem}.String() + ">"
	case SigObject:
		if s.Class != "" {
			return s.Class
		}
		return "object"
	}
	return "unknown"
}

// ParseTypeName maps a written type onto a sigil. Any other identifier is
// taken to be a class name.
func ParseTypeName(name string) Sigil {
	switch name {
	case "int":
		return IntSigil
	case "bool":
		return BoolSigil
	case "string":
		return StrSigil
	case "list", "list<int>":
		return ListOf(SigInt)
	case "list<string>":
		return ListOf(SigStr)
	case "map", "map<int>":
		return MapOf(SigInt)
	case "map<string>":
		return MapOf(SigStr)
	}
	return ObjectOf(name)
}
