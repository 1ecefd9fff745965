package compiler

import (
	"github.com/tliron/commonlog"

	"github.com/chazu/libeval/vm"
)

// ---------------------------------------------------------------------------
// Compiler: drives lexer and parser, then emits a Program
// ---------------------------------------------------------------------------

// Option configures a Compiler.
type Option func(*Compiler)

// WithUnits sets the unit table used for unit suffix matching and
// conversion. The default is DefaultUnits().
func WithUnits(units Units) Option {
	return func(c *Compiler) {
		c.units = units
	}
}

// WithDecimalSeparator sets the locale decimal separator accepted in
// numeric literals besides '.' and ','.
func WithDecimalSeparator(sep byte) Option {
	return func(c *Compiler) {
		c.sep = sep
	}
}

// WithLogger sets the logger for token, tree and bytecode traces.
func WithLogger(log commonlog.Logger) Option {
	return func(c *Compiler) {
		c.log = log
	}
}

// WithErrorCallback installs fn to be called for every parse and codegen
// error, with the message and the byte offset it refers to.
func WithErrorCallback(fn func(msg string, offset int)) Option {
	return func(c *Compiler) {
		c.onError = fn
	}
}

// Compiler compiles rule expressions to vm.Programs. A Compiler compiles
// one expression at a time and may be reused sequentially; it is not safe
// for concurrent use.
type Compiler struct {
	host    vm.Host
	units   Units
	sep     byte
	log     commonlog.Logger
	onError func(msg string, offset int)

	lexer  *Lexer
	parser *Parser

	// Per-compile state, reset by Clear.
	tree          *Node
	parseFinished bool
	status        *vm.Error
	errors        []*vm.Error

	preflight *vm.Context
}

// New creates a compiler resolving identifiers through host. A nil host
// resolves nothing.
func New(host vm.Host, opts ...Option) *Compiler {
	c := &Compiler{
		host:  host,
		units: DefaultUnits(),
		sep:   '.',
		log:   commonlog.GetLogger("libeval.compiler"),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.lexer = NewLexer("", c.units, c.sep)
	c.parser = NewParser(c)
	c.preflight = vm.NewContext()
	return c
}

// Units returns the compiler's unit table.
func (c *Compiler) Units() Units {
	return c.units
}

// Compile compiles text. On failure it returns nil and the first error
// raised; Errors lists all of them.
func (c *Compiler) Compile(text string) (*vm.Program, error) {
	return c.CompileWith(text, nil)
}

// CompileWith compiles text, running preflight calls against the given
// context. A nil context uses the compiler's own.
func (c *Compiler) CompileWith(text string, preflight *vm.Context) (*vm.Program, error) {
	c.Clear()
	if preflight == nil {
		preflight = c.preflight
	}

	if !c.parse(text) {
		return nil, c.status
	}

	if c.tree != nil && c.log.AllowLevel(commonlog.Debug) {
		c.log.Debugf("tree for %q:\n%s", text, c.tree.Dump())
	}

	prog := c.generate(preflight)
	if c.status != nil {
		return nil, c.status
	}

	if c.log.AllowLevel(commonlog.Debug) {
		c.log.Debugf("program for %q:\n%s", text, prog.Dump())
	}
	return prog, nil
}

// Clear drops the tree and all per-compile state. It is safe to call at
// any time, repeatedly.
func (c *Compiler) Clear() {
	c.tree = nil
	c.parseFinished = false
	c.status = nil
	c.errors = nil
	c.lexer.Restart("")
	c.parser.Reset()
}

// ErrorStatus returns the error that failed the last compile, or nil.
func (c *Compiler) ErrorStatus() *vm.Error {
	return c.status
}

// Errors returns every error raised during the last compile, in order.
func (c *Compiler) Errors() []*vm.Error {
	return c.errors
}

// Tree returns the syntax tree of the last successful parse. It is nil for
// the empty expression.
func (c *Compiler) Tree() *Node {
	return c.tree
}

// parse feeds tokens to the parser until it completes, fails, or the input
// is exhausted.
func (c *Compiler) parse(text string) bool {
	if text == "" {
		return true
	}

	c.lexer.Restart(text)
	for {
		tok := c.lexer.NextToken()
		c.log.Debugf("token %s at %d", tok, tok.Offset)

		if tok.Type == TokenError {
			c.ParseError(tok.Text, tok.Offset)
			return false
		}
		if !c.parser.Feed(tok) {
			return false
		}
		if c.parseFinished || tok.Type == TokenEnd {
			c.parser.Terminate()
			break
		}
	}
	return !c.parser.Failed()
}

// ---------------------------------------------------------------------------
// TreeBuilder implementation
// ---------------------------------------------------------------------------

// NewNode creates a node from a token.
func (c *Compiler) NewNode(op NodeOp, tok Token) *Node {
	return &Node{Op: op, Text: tok.Text, Unit: tok.Unit, Offset: tok.Offset}
}

// SetRoot records the completed tree.
func (c *Compiler) SetRoot(root *Node) {
	c.tree = root
}

// ParseError records a parse-stage error.
func (c *Compiler) ParseError(msg string, offset int) {
	c.reportError(vm.StageParse, msg, offset)
}

// ParseOK marks the parse as complete.
func (c *Compiler) ParseOK() {
	c.parseFinished = true
}

// reportError records an error. The first one becomes the compile's
// status; the callback and Errors see every one.
func (c *Compiler) reportError(stage vm.Stage, msg string, offset int) {
	e := &vm.Error{Stage: stage, Message: msg, Offset: offset}
	if c.status == nil {
		c.status = e
	}
	c.errors = append(c.errors, e)
	c.log.Debugf("%s", e)

	if c.onError != nil {
		c.onError(msg, offset)
	}
}
