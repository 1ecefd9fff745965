package compiler

import (
	"fmt"

	"github.com/chazu/libeval/vm"
)

// ---------------------------------------------------------------------------
// Codegen: syntax tree to vm.Program
// ---------------------------------------------------------------------------

// generate walks the tree in post-order with an explicit stack and emits
// one instruction per terminal node. Codegen errors are recorded and the
// walk continues, so one compile reports every unresolved name.
func (c *Compiler) generate(preflight *vm.Context) *vm.Program {
	prog := vm.NewProgram()

	// The empty expression is true.
	if c.tree == nil {
		prog.Emit(&vm.Instruction{Op: vm.OpPushValue, Value: vm.NewNumber(1)})
		return prog
	}

	c.tree.walk(func(n *Node) {
		n.visited = false
		n.uop = nil
	})

	stack := []*Node{c.tree}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		terminal := true

		switch node.Op {
		case NodeFuncCall:
			// Method calls get their instruction from the enclosing
			// struct ref. Anything else is a call without an object.
			if node.uop == nil {
				c.reportError(vm.StageCodegen,
					fmt.Sprintf("Function '%s' must be called on an object", node.Text), node.Offset)
				node.uop = &vm.Instruction{Op: vm.OpMethodCall, FuncName: node.Text}
				if node.Left != nil {
					node.Left.visited = true
				}
			}
			terminal = node.Right == nil || node.Right.visited

		case NodeStructRef:
			if node.Right.Op == NodeFuncCall {
				c.genMethodCall(node, preflight)

				// Replace the struct ref with its call and the call's
				// argument, so the argument is pushed before the call runs.
				stack = stack[:len(stack)-1]
				stack = append(stack, node.Right, node.Right.Right)
				continue
			}
			c.genProperty(node)

		case NodeNumber:
			var v float64
			if unit := node.Left; unit != nil && unit.Op == NodeUnit {
				v = c.units.Convert(node.Text, unit.Unit)
				unit.visited = true
			} else {
				v = parseNumber(node.Text)
			}
			node.uop = &vm.Instruction{Op: vm.OpPushValue, Value: vm.NewNumber(v)}

		case NodeString:
			node.uop = &vm.Instruction{Op: vm.OpPushValue, Value: vm.NewString(node.Text)}

		case NodeIdentifier:
			ref := c.resolveVariable(node.Text, "")
			if ref == nil {
				c.reportError(vm.StageCodegen, fmt.Sprintf("Unrecognized item '%s'", node.Text), node.Offset)
			}
			node.uop = &vm.Instruction{Op: vm.OpPushVar, Ref: ref, Object: node.Text}

		case NodeUnit:
			// Only reachable as a number's child, which consumes it.

		default:
			op, ok := opcodes[node.Op]
			if !ok {
				c.reportError(vm.StageCodegen, fmt.Sprintf("Unsupported node %s", node.Op), node.Offset)
				break
			}
			node.uop = &vm.Instruction{Op: op}
			terminal = (node.Left == nil || node.Left.visited) && (node.Right == nil || node.Right.visited)
		}

		if !terminal {
			if node.Left != nil && !node.Left.visited {
				node.Left.visited = true
				stack = append(stack, node.Left)
			} else if node.Right != nil && !node.Right.visited {
				node.Right.visited = true
				stack = append(stack, node.Right)
			}
			continue
		}

		node.visited = true
		if node.uop != nil {
			prog.Emit(node.uop)
			node.uop = nil
		}
		stack = stack[:len(stack)-1]
	}

	return prog
}

// genProperty attaches a push-variable instruction for obj.prop.
func (c *Compiler) genProperty(node *Node) {
	obj, prop := node.Left, node.Right

	ref := c.resolveVariable(obj.Text, prop.Text)
	switch {
	case ref == nil:
		if c.resolveVariable(obj.Text, "") != nil {
			c.reportError(vm.StageCodegen, fmt.Sprintf("Unrecognized property '%s'", prop.Text), prop.Offset)
		} else {
			c.reportError(vm.StageCodegen, fmt.Sprintf("Unrecognized item '%s.%s'", obj.Text, prop.Text), obj.Offset)
		}
	case ref.Type() == vm.TypeParseError:
		c.reportError(vm.StageCodegen, fmt.Sprintf("Unrecognized property '%s'", prop.Text), prop.Offset)
	}

	obj.visited = true
	prop.visited = true
	node.uop = &vm.Instruction{Op: vm.OpPushVar, Ref: ref, Object: obj.Text, Property: prop.Text}
}

// genMethodCall resolves obj.f(arg), preflights the call and attaches a
// method-call instruction to the call node.
func (c *Compiler) genMethodCall(node *Node, preflight *vm.Context) {
	obj, call := node.Left, node.Right
	arg := call.Right

	ref := c.resolveVariable(obj.Text, "")
	if ref == nil {
		c.reportError(vm.StageCodegen, fmt.Sprintf("Unrecognized item '%s'", obj.Text), obj.Offset)
	}

	fn := c.resolveFunction(call.Text)
	if fn == nil {
		c.reportError(vm.StageCodegen, fmt.Sprintf("Unrecognized function '%s'", call.Text), call.Offset)
	} else {
		c.preflightCall(call.Text, fn, ref, arg, preflight)
	}

	obj.visited = true
	call.visited = true
	if call.Left != nil {
		call.Left.visited = true
	}
	arg.visited = true

	call.uop = &vm.Instruction{
		Op:       vm.OpMethodCall,
		Func:     fn,
		Ref:      ref,
		Object:   obj.Text,
		FuncName: call.Text,
	}
}

func (c *Compiler) resolveVariable(object, property string) vm.VarRef {
	if c.host == nil {
		return nil
	}
	return c.host.ResolveVariable(object, property)
}

func (c *Compiler) resolveFunction(name string) vm.Func {
	if c.host == nil {
		return nil
	}
	return c.host.ResolveFunction(name)
}
