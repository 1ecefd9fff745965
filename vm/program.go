package vm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Instruction
// ---------------------------------------------------------------------------

// Instruction is one stack-machine operation. Which payload is populated
// depends on Op: Value for OpPushValue, Ref for OpPushVar, Func and Ref for
// OpMethodCall, nothing for arithmetic, comparison and boolean ops.
//
// Object, Property and FuncName keep the symbolic names a reference or
// function was resolved from, for disassembly and program images.
type Instruction struct {
	Op    Opcode
	Value Value
	Ref   VarRef
	Func  Func

	Object   string
	Property string
	FuncName string
}

// Exec runs the instruction against ctx.
func (in *Instruction) Exec(ctx *Context) {
	switch in.Op {
	case OpPushValue:
		v := ctx.AllocValue()
		v.Set(in.Value)
		ctx.Push(v)
		return

	case OpPushVar:
		v := ctx.AllocValue()
		if in.Ref == nil {
			ctx.ReportError(fmt.Sprintf("unresolved reference '%s'", in.refName()))
		} else {
			v.Set(in.Ref.Value(ctx))
		}
		ctx.Push(v)
		return

	case OpMethodCall:
		if in.Func == nil {
			ctx.Pop()
			ctx.Push(ctx.AllocValue())
			ctx.ReportError(fmt.Sprintf("unresolved function '%s'", in.FuncName))
			return
		}
		in.Func(ctx, in.Ref)
		return
	}

	switch {
	case in.Op.IsBinary():
		arg2 := ctx.Pop()
		arg1 := ctx.Pop()
		r := ctx.AllocValue()
		r.SetNumber(binaryOp(in.Op, arg1, arg2))
		ctx.Push(r)

	case in.Op.IsUnary():
		arg := ctx.Pop()
		var x float64
		if arg != nil {
			x = arg.AsDouble()
		}
		r := ctx.AllocValue()
		switch in.Op {
		case OpNot:
			r.Set(Bool(x == 0))
		case OpNegate:
			r.SetNumber(-x)
		}
		ctx.Push(r)

	default:
		ctx.ReportError(fmt.Sprintf("invalid opcode %s", in.Op))
	}
}

// binaryOp evaluates a two-operand instruction. Missing operands coerce
// to 0. Division follows IEEE 754: x/0 yields ±Inf or NaN.
func binaryOp(op Opcode, arg1, arg2 *Value) float64 {
	var a, b float64
	if arg1 != nil {
		a = arg1.AsDouble()
	}
	if arg2 != nil {
		b = arg2.AsDouble()
	}

	switch op {
	case OpAdd:
		return a + b
	case OpSub:
		return a - b
	case OpMul:
		return a * b
	case OpDiv:
		return a / b
	case OpLess:
		return truth(a < b)
	case OpGreater:
		return truth(a > b)
	case OpLessEqual:
		return truth(a <= b)
	case OpGreaterEqual:
		return truth(a >= b)
	case OpEqual:
		return truth(arg1 != nil && arg2 != nil && arg1.EqualTo(*arg2))
	case OpNotEqual:
		return truth(!(arg1 != nil && arg2 != nil && arg1.EqualTo(*arg2)))
	case OpAnd:
		return truth(a != 0 && b != 0)
	case OpOr:
		return truth(a != 0 || b != 0)
	}
	return 0
}

func truth(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (in *Instruction) refName() string {
	if in.Property == "" {
		return in.Object
	}
	return in.Object + "." + in.Property
}

// Format renders the instruction for disassembly.
func (in *Instruction) Format() string {
	switch in.Op {
	case OpPushValue:
		switch in.Value.Type() {
		case TypeNumeric:
			return fmt.Sprintf("PUSH NUM [%.10f]", in.Value.AsDouble())
		case TypeString:
			return fmt.Sprintf("PUSH STR [%s]", in.Value.AsString())
		default:
			return "PUSH UNDEFINED"
		}
	case OpPushVar:
		return fmt.Sprintf("PUSH VAR [%s]", in.refName())
	case OpMethodCall:
		return fmt.Sprintf("MCALL %s.%s", in.Object, in.FuncName)
	}
	return in.Op.Name()
}

// ---------------------------------------------------------------------------
// Program
// ---------------------------------------------------------------------------

// Program is an ordered instruction sequence produced by the compiler. A
// Program is immutable once compiled and may be run any number of times,
// concurrently, provided each run uses its own Context.
type Program struct {
	code []*Instruction
}

// NewProgram creates an empty program.
func NewProgram() *Program {
	return &Program{}
}

// Emit appends an instruction. Only the compiler and image loader call
// Emit; a Program handed to callers is not modified again.
func (p *Program) Emit(in *Instruction) {
	p.code = append(p.code, in)
}

// Len returns the number of instructions.
func (p *Program) Len() int {
	return len(p.code)
}

// Instruction returns the i-th instruction.
func (p *Program) Instruction(i int) *Instruction {
	return p.code[i]
}

// Run executes every instruction against ctx and pops the result.
//
// A stack depth other than one after the last instruction means a
// compiler or host function broke the stack contract; Run reports it as
// ErrStackImbalance. Runtime errors raised by host functions stay pending
// on ctx and are also returned.
func (p *Program) Run(ctx *Context) (*Value, error) {
	for _, in := range p.code {
		in.Exec(ctx)
	}

	if sp := ctx.SP(); sp != 1 {
		return nil, fmt.Errorf("%w: %d values on stack after %d instructions", ErrStackImbalance, sp, len(p.code))
	}

	result := ctx.Pop()
	if e := ctx.LastError(); e != nil {
		return result, e
	}
	return result, nil
}

// Dump returns a disassembly listing, one instruction per line.
func (p *Program) Dump() string {
	var b strings.Builder
	for _, in := range p.code {
		b.WriteString(in.Format())
		b.WriteByte('\n')
	}
	return b.String()
}

// Equal reports whether two programs have identical instruction
// sequences: same opcodes, literals and symbolic names.
func (p *Program) Equal(other *Program) bool {
	if len(p.code) != len(other.code) {
		return false
	}
	for i, a := range p.code {
		b := other.code[i]
		if a.Op != b.Op || a.Object != b.Object || a.Property != b.Property || a.FuncName != b.FuncName {
			return false
		}
		if a.Value.Type() != b.Value.Type() || a.Value.AsString() != b.Value.AsString() {
			return false
		}
	}
	return true
}
