package vm

// ---------------------------------------------------------------------------
// Context: operand stack, value pool and error slot for one execution
// ---------------------------------------------------------------------------

const slabSize = 32

// Context is the execution state for running a Program or for the
// compiler's preflight calls. A Context is not safe for concurrent use;
// concurrent executions of one Program each need their own Context.
type Context struct {
	stack []*Value

	// Values are handed out from fixed-size slabs so pointers pushed on the
	// stack stay valid until Reset.
	slabs [][]Value
	used  int

	err     *Error
	onError func(*Error)
}

// NewContext creates an empty context.
func NewContext() *Context {
	return &Context{
		stack: make([]*Value, 0, 16),
	}
}

// SetErrorCallback installs fn to be called for every reported error.
func (c *Context) SetErrorCallback(fn func(*Error)) {
	c.onError = fn
}

// AllocValue returns a fresh undefined Value owned by the context.
func (c *Context) AllocValue() *Value {
	if len(c.slabs) == 0 || c.used == slabSize {
		c.slabs = append(c.slabs, make([]Value, slabSize))
		c.used = 0
	}
	v := &c.slabs[len(c.slabs)-1][c.used]
	c.used++
	return v
}

// Push pushes v onto the operand stack.
func (c *Context) Push(v *Value) {
	c.stack = append(c.stack, v)
}

// Pop removes and returns the top of the operand stack, or nil when the
// stack is empty.
func (c *Context) Pop() *Value {
	n := len(c.stack)
	if n == 0 {
		return nil
	}
	v := c.stack[n-1]
	c.stack[n-1] = nil
	c.stack = c.stack[:n-1]
	return v
}

// SP returns the operand stack depth.
func (c *Context) SP() int {
	return len(c.stack)
}

// ReportError raises a runtime error. The first error is kept as the
// context's pending error; the callback sees every report.
func (c *Context) ReportError(msg string) {
	e := &Error{Stage: StageRuntime, Message: msg, Offset: -1}
	if c.err == nil {
		c.err = e
	}
	if c.onError != nil {
		c.onError(e)
	}
}

// IsErrorPending reports whether an error was raised since the last
// ClearError or Reset.
func (c *Context) IsErrorPending() bool {
	return c.err != nil
}

// LastError returns the pending error, or nil.
func (c *Context) LastError() *Error {
	return c.err
}

// ClearError drops the pending error.
func (c *Context) ClearError() {
	c.err = nil
}

// Reset empties the stack, releases all allocated values and clears the
// pending error. The error callback is kept.
func (c *Context) Reset() {
	for i := range c.stack {
		c.stack[i] = nil
	}
	c.stack = c.stack[:0]
	c.slabs = nil
	c.used = 0
	c.err = nil
}
