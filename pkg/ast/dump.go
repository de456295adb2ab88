package ast

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Dump writes the tree under root to w, one node per line, children indented
// two spaces below their parent.
func Dump(w io.Writer, root *Node) {
	dump(w, root, 0)
}

func dump(w io.Writer, n *Node, depth int) {
	if n == nil {
		return
	}
	label, children := describe(n)
	line := n.Type.String()
	if label != "" {
		line += " " + label
	}
	if n.Typ != nil {
		line += " : " + n.Typ.String()
	}
	fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth), line)
	for _, c := range children {
		dump(w, c, depth+1)
	}
}

func params(ps []Param) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = p.Name
		if p.Type != nil {
			parts[i] += ": " + p.Type.String()
		}
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func typed(s *Sigil) string {
	if s == nil {
		return ""
	}
	return ": " + s.String()
}

// describe returns the inline detail of n and the nodes printed below it.
func describe(n *Node) (string, []*Node) {
	switch d := n.Data.(type) {
	case NumberNode:
		return strconv.FormatInt(d.Value, 10), nil
	case BoolNode:
		return strconv.FormatBool(d.Value), nil
	case StringNode:
		return strconv.Quote(d.Value), nil
	case IdentNode:
		return d.Name, nil
	case FuncRefNode:
		return "&" + d.Name, nil
	case BinaryOpNode:
		return d.Op.String(), []*Node{d.Left, d.Right}
	case UnaryOpNode:
		return d.Op.String(), []*Node{d.Expr}
	case IncDecNode:
		if d.Prefix {
			return "prefix " + d.Op.String(), []*Node{d.Target}
		}
		return "postfix " + d.Op.String(), []*Node{d.Target}
	case TernaryNode:
		return "", []*Node{d.Cond, d.ThenExpr, d.ElseExpr}
	case ListLitNode:
		return "", d.Elems
	case MapLitNode:
		var kv []*Node
		for i := range d.Keys {
			kv = append(kv, d.Keys[i], d.Values[i])
		}
		return "", kv
	case IndexNode:
		return "", []*Node{d.Expr, d.Index}
	case MemberAccessNode:
		return "." + d.Member, []*Node{d.Expr}
	case FuncCallNode:
		return d.Name, d.Args
	case MethodCallNode:
		return "." + d.Method, append([]*Node{d.Recv}, d.Args...)
	case NewNode:
		return d.Class, d.Args
	case PrintNode:
		return "", []*Node{d.Expr}
	case ExprStmtNode:
		return "", []*Node{d.Expr}
	case AssignNode:
		return d.Name, []*Node{d.Rhs}
	case IndexAssignNode:
		return "", []*Node{d.Target, d.Index, d.Rhs}
	case VarDeclNode:
		return d.Name + typed(d.Type), []*Node{d.Init}
	case BlockNode:
		return "", d.Stmts
	case IfNode:
		return "", []*Node{d.Cond, d.ThenBody, d.ElseBody}
	case WhileNode:
		return "", []*Node{d.Cond, d.Body}
	case DoWhileNode:
		return "", []*Node{d.Body, d.Cond}
	case ForNode:
		return "", []*Node{d.Init, d.Cond, d.Post, d.Body}
	case SwitchNode:
		return "", append([]*Node{d.Expr}, d.Cases...)
	case CaseNode:
		return "", append([]*Node{d.Value}, d.Body...)
	case DefaultNode:
		return "", d.Body
	case ReturnNode:
		return "", []*Node{d.Expr}
	case ThrowNode:
		return d.Type, []*Node{d.Expr}
	case TryNode:
		kids := append([]*Node{d.Body}, d.Catches...)
		return "", append(kids, d.Finally)
	case CatchNode:
		return strings.TrimSpace(d.Type + " " + d.Name), []*Node{d.Body}
	case FuncDeclNode:
		return d.Name + params(d.Params) + typed(d.ReturnType), []*Node{d.Body}
	case ClassDeclNode:
		label := d.Name
		if d.Base != "" {
			label += " extends " + d.Base
		}
		kids := append(append(append([]*Node{}, d.Fields...), d.Ctors...), d.Methods...)
		return label, kids
	case FieldDeclNode:
		label := d.Name + typed(d.Type)
		if d.IsStatic {
			label = "static " + label
		}
		return label, []*Node{d.Init}
	case MethodDeclNode:
		label := d.Name + params(d.Params) + typed(d.ReturnType)
		if d.IsOverride {
			label = "override " + label
		}
		if d.IsStatic {
			label = "static " + label
		}
		return label, []*Node{d.Body}
	case CtorDeclNode:
		return params(d.Params), []*Node{d.Body}
	}
	return "", nil
}
