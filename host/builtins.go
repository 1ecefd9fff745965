package host

import (
	"fmt"
	"path"

	"github.com/chazu/libeval/vm"
)

// ---------------------------------------------------------------------------
// Builtin methods
// ---------------------------------------------------------------------------

// Builtin methods are called as object.name('arg'). Each pops its string
// argument and pushes one result. Argument errors are reported on the
// context, so the compiler's preflight call rejects them at compile time.
//
//	A.has('width')      1 if A has the property
//	A.get('width')      the property value
//	A.isType('pad')     1 if A's type property equals the argument
//	A.matches('U*')     1 if A's name matches the glob pattern

// RegisterBuiltins binds the builtin methods in f.
func RegisterBuiltins(f *Funcs) {
	f.Register("has", builtinHas)
	f.Register("get", builtinGet)
	f.Register("isType", builtinIsType)
	f.Register("matches", builtinMatches)
}

func builtinHas(ctx *vm.Context, self vm.VarRef) {
	prop, ok := popArg(ctx, "has")
	if !ok {
		pushBool(ctx, false)
		return
	}
	rec, isRec := self.(Record)
	if !isRec {
		pushBool(ctx, false)
		return
	}
	_, found := rec.Lookup(prop)
	pushBool(ctx, found)
}

func builtinGet(ctx *vm.Context, self vm.VarRef) {
	prop, ok := popArg(ctx, "get")
	r := ctx.AllocValue()
	defer ctx.Push(r)
	if !ok {
		return
	}
	rec, isRec := self.(Record)
	if !isRec {
		return
	}
	v, found := rec.Lookup(prop)
	if !found {
		ctx.ReportError(fmt.Sprintf("get: '%s' has no property '%s'", rec.Name(), prop))
		return
	}
	r.Set(v)
}

func builtinIsType(ctx *vm.Context, self vm.VarRef) {
	want, ok := popArg(ctx, "isType")
	if !ok {
		pushBool(ctx, false)
		return
	}
	rec, isRec := self.(Record)
	if !isRec {
		pushBool(ctx, false)
		return
	}
	typ, found := rec.Lookup(TypeProperty)
	pushBool(ctx, found && typ.Type() == vm.TypeString && typ.AsString() == want)
}

func builtinMatches(ctx *vm.Context, self vm.VarRef) {
	pattern, ok := popArg(ctx, "matches")
	if !ok {
		pushBool(ctx, false)
		return
	}
	name := ""
	if rec, isRec := self.(Record); isRec {
		name = rec.Name()
	}
	matched, err := path.Match(pattern, name)
	if err != nil {
		ctx.ReportError(fmt.Sprintf("matches: invalid pattern '%s'", pattern))
		pushBool(ctx, false)
		return
	}
	pushBool(ctx, matched)
}

// popArg pops the string argument. An empty or missing argument is
// reported as an error.
func popArg(ctx *vm.Context, fn string) (string, bool) {
	v := ctx.Pop()
	if v == nil || v.AsString() == "" {
		ctx.ReportError(fmt.Sprintf("%s: missing argument", fn))
		return "", false
	}
	return v.AsString(), true
}

func pushBool(ctx *vm.Context, b bool) {
	r := ctx.AllocValue()
	r.Set(vm.Bool(b))
	ctx.Push(r)
}
