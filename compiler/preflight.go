package compiler

import (
	"github.com/chazu/libeval/vm"
)

// preflightCall invokes fn once at compile time with the call's literal
// argument, on a freshly reset ctx. An error the function reports becomes
// a codegen error at the argument. Panics are swallowed.
func (c *Compiler) preflightCall(name string, fn vm.Func, self vm.VarRef, arg *Node, ctx *vm.Context) {
	ctx.Reset()

	param := ctx.AllocValue()
	param.SetString(arg.Text)
	ctx.Push(param)

	func() {
		defer func() {
			if r := recover(); r != nil {
				c.log.Debugf("preflight of '%s' panicked: %v", name, r)
			}
		}()
		fn(ctx, self)
		ctx.Pop()
	}()

	if e := ctx.LastError(); e != nil {
		c.reportError(vm.StageCodegen, e.Message, arg.Offset)
	}
}
