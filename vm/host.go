package vm

// ---------------------------------------------------------------------------
// Host contracts
// ---------------------------------------------------------------------------

// VarRef is a host-resolved handle that yields the current value of an
// object or one of its properties each time it is read.
type VarRef interface {
	// Type reports the kind of value the reference yields. TypeParseError
	// means the reference resolved but names nothing usable.
	Type() Type

	// Value reads the current value. Hosts report read failures through
	// ctx.ReportError.
	Value(ctx *Context) Value
}

// Func is a host callable bound to a method name. It pops its own
// argument from ctx and pushes exactly one result. self is the resolved
// object reference, which may be nil when the object did not resolve.
type Func func(ctx *Context, self VarRef)

// Host resolves identifiers for the compiler and for program images.
type Host interface {
	// ResolveVariable returns a reference to object.property, or nil if
	// the object is unknown. An empty property names the object itself.
	ResolveVariable(object, property string) VarRef

	// ResolveFunction returns the callable for name, or nil.
	ResolveFunction(name string) Func
}
