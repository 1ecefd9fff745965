package compiler

import (
	"fmt"
	"strings"

	"github.com/chazu/libeval/vm"
)

// ---------------------------------------------------------------------------
// AST: binary-branching syntax tree
// ---------------------------------------------------------------------------

// NodeOp tags a syntax tree node.
type NodeOp int

const (
	NodeNumber     NodeOp = iota // Text: numeric literal; Left: optional NodeUnit
	NodeString                   // Text: literal contents
	NodeIdentifier               // Text: name
	NodeUnit                     // Unit: index into the unit table
	NodeStructRef                // Left: object identifier; Right: property identifier or NodeFuncCall
	NodeFuncCall                 // Left: function name identifier; Right: string argument

	NodeAdd
	NodeSub
	NodeMul
	NodeDiv
	NodeLess
	NodeGreater
	NodeLessEqual
	NodeGreaterEqual
	NodeEqual
	NodeNotEqual
	NodeAnd
	NodeOr
	NodeNot    // Left: operand
	NodeNegate // Left: operand
)

var nodeOpNames = map[NodeOp]string{
	NodeNumber:       "NUMERIC",
	NodeString:       "STRING",
	NodeIdentifier:   "ID",
	NodeUnit:         "UNIT",
	NodeStructRef:    "SREF",
	NodeFuncCall:     "CALL",
	NodeAdd:          "ADD",
	NodeSub:          "SUB",
	NodeMul:          "MUL",
	NodeDiv:          "DIV",
	NodeLess:         "LESS",
	NodeGreater:      "GREATER",
	NodeLessEqual:    "LESS_EQUAL",
	NodeGreaterEqual: "GREATER_EQUAL",
	NodeEqual:        "EQUAL",
	NodeNotEqual:     "NEQUAL",
	NodeAnd:          "AND",
	NodeOr:           "OR",
	NodeNot:          "NOT",
	NodeNegate:       "NEG",
}

func (op NodeOp) String() string {
	if name, ok := nodeOpNames[op]; ok {
		return name
	}
	return fmt.Sprintf("NodeOp(%d)", int(op))
}

// opcodes maps operator nodes to the instruction they compile to.
var opcodes = map[NodeOp]vm.Opcode{
	NodeAdd:          vm.OpAdd,
	NodeSub:          vm.OpSub,
	NodeMul:          vm.OpMul,
	NodeDiv:          vm.OpDiv,
	NodeLess:         vm.OpLess,
	NodeGreater:      vm.OpGreater,
	NodeLessEqual:    vm.OpLessEqual,
	NodeGreaterEqual: vm.OpGreaterEqual,
	NodeEqual:        vm.OpEqual,
	NodeNotEqual:     vm.OpNotEqual,
	NodeAnd:          vm.OpAnd,
	NodeOr:           vm.OpOr,
	NodeNot:          vm.OpNot,
	NodeNegate:       vm.OpNegate,
}

// Node is a syntax tree node with at most two children. Children are
// owned by their parent; the tree is acyclic.
type Node struct {
	Op     NodeOp
	Text   string
	Unit   int
	Offset int // byte offset of the token the node was built from

	Left  *Node
	Right *Node

	// codegen traversal state
	visited bool
	uop     *vm.Instruction
}

// Dump renders the tree, one node per line, indented by depth.
func (n *Node) Dump() string {
	var b strings.Builder
	n.dump(&b, 0)
	return b.String()
}

func (n *Node) dump(b *strings.Builder, depth int) {
	if n == nil {
		return
	}
	b.WriteString(strings.Repeat("  ", depth))
	switch n.Op {
	case NodeNumber, NodeString, NodeIdentifier:
		fmt.Fprintf(b, "%s: %s\n", n.Op, n.Text)
	case NodeUnit:
		fmt.Fprintf(b, "UNIT: %d\n", n.Unit)
	case NodeFuncCall:
		name := ""
		if n.Left != nil {
			name = n.Left.Text
		}
		fmt.Fprintf(b, "CALL '%s'\n", name)
		n.Right.dump(b, depth+1)
		return
	default:
		fmt.Fprintf(b, "%s\n", n.Op)
	}
	n.Left.dump(b, depth+1)
	n.Right.dump(b, depth+1)
}

// walk calls fn for n and every descendant, parents first.
func (n *Node) walk(fn func(*Node)) {
	if n == nil {
		return
	}
	fn(n)
	n.Left.walk(fn)
	n.Right.walk(fn)
}
