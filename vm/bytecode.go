package vm

import "fmt"

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode identifies a single instruction.
type Opcode byte

// Push and call operations
const (
	OpPushValue  Opcode = 0x01 // push literal value
	OpPushVar    Opcode = 0x02 // push current value of a host reference
	OpMethodCall Opcode = 0x03 // call host function bound to an object reference
)

// Arithmetic (pop 2, push 1)
const (
	OpAdd Opcode = 0x10
	OpSub Opcode = 0x11
	OpMul Opcode = 0x12
	OpDiv Opcode = 0x13
)

// Comparison (pop 2, push 1.0 or 0.0)
const (
	OpLess         Opcode = 0x20
	OpGreater      Opcode = 0x21
	OpLessEqual    Opcode = 0x22
	OpGreaterEqual Opcode = 0x23
	OpEqual        Opcode = 0x24
	OpNotEqual     Opcode = 0x25
)

// Boolean (pop 2, push 1.0 or 0.0)
const (
	OpAnd Opcode = 0x30
	OpOr  Opcode = 0x31
)

// Unary (pop 1, push 1)
const (
	OpNot    Opcode = 0x40
	OpNegate Opcode = 0x41
)

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name        string // mnemonic
	Operands    int    // values popped (method calls pop their own)
	StackEffect int    // net effect on stack depth
}

var opcodeTable = map[Opcode]OpcodeInfo{
	OpPushValue:  {"PUSH", 0, 1},
	OpPushVar:    {"PUSH_VAR", 0, 1},
	OpMethodCall: {"MCALL", 0, 0}, // pops its argument, pushes its result

	OpAdd: {"ADD", 2, -1},
	OpSub: {"SUB", 2, -1},
	OpMul: {"MUL", 2, -1},
	OpDiv: {"DIV", 2, -1},

	OpLess:         {"LESS", 2, -1},
	OpGreater:      {"GREATER", 2, -1},
	OpLessEqual:    {"LESS_EQUAL", 2, -1},
	OpGreaterEqual: {"GREATER_EQUAL", 2, -1},
	OpEqual:        {"EQUAL", 2, -1},
	OpNotEqual:     {"NEQUAL", 2, -1},

	OpAnd: {"AND", 2, -1},
	OpOr:  {"OR", 2, -1},

	OpNot:    {"NOT", 1, 0},
	OpNegate: {"NEG", 1, 0},
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", byte(op))}
}

// Name returns the mnemonic for an opcode.
func (op Opcode) Name() string {
	return op.Info().Name
}

// IsBinary reports whether op pops two operands and pushes one result.
func (op Opcode) IsBinary() bool {
	return op.Info().Operands == 2
}

// IsUnary reports whether op pops one operand and pushes one result.
func (op Opcode) IsUnary() bool {
	return op.Info().Operands == 1
}

// Valid reports whether op is a known opcode.
func (op Opcode) Valid() bool {
	_, ok := opcodeTable[op]
	return ok
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	return op.Name()
}
