// Package vm implements the rule-expression virtual machine.
//
// This package contains:
//   - the numeric/text Value tagged union
//   - the instruction set and its stack-machine semantics
//   - Program (compiled instruction sequence) and its execution
//   - Context (operand stack, value pool, error slot)
//   - the Host contracts the compiler and image loader resolve names through
//   - CBOR program images
package vm
