package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Parser: push-driven operator-precedence parser
// ---------------------------------------------------------------------------

// TreeBuilder receives the parser's tree-construction callbacks.
type TreeBuilder interface {
	NewNode(op NodeOp, tok Token) *Node
	SetRoot(root *Node)
	ParseError(msg string, offset int)
	ParseOK()
}

// Binding strength, loosest first:
//
//	||   &&   == !=   < > <= >=   + -   * /   unary ! -   .
//
// All binary operators are left-associative.
var binaryOps = map[TokenType]struct {
	op   NodeOp
	prec int
}{
	TokenOr:           {NodeOr, 1},
	TokenAnd:          {NodeAnd, 2},
	TokenEqual:        {NodeEqual, 3},
	TokenNotEqual:     {NodeNotEqual, 3},
	TokenLess:         {NodeLess, 4},
	TokenGreater:      {NodeGreater, 4},
	TokenLessEqual:    {NodeLessEqual, 4},
	TokenGreaterEqual: {NodeGreaterEqual, 4},
	TokenPlus:         {NodeAdd, 5},
	TokenMinus:        {NodeSub, 5},
	TokenMult:         {NodeMul, 6},
	TokenDivide:       {NodeDiv, 6},
	TokenDot:          {NodeStructRef, 8},
}

const unaryPrec = 7

type frameKind int

const (
	frameBinary frameKind = iota
	frameUnary
	frameParen
	frameCall
)

// frame is a pending operator or open group on the parser stack.
type frame struct {
	kind frameKind
	op   NodeOp
	prec int
	tok  Token
	fn   *Node // frameCall: function name
	base int   // frameCall: operand depth when the call opened
}

// Parser consumes tokens one at a time and builds the tree through a
// TreeBuilder. It finishes on TokenEnd or ';', or when Terminate is
// called, and reports completion with ParseOK or failure with ParseError.
type Parser struct {
	b             TreeBuilder
	operands      []*Node
	frames        []frame
	expectOperand bool
	last          TokenType
	lastOffset    int
	done          bool
	failed        bool
}

// NewParser creates a parser that builds through b.
func NewParser(b TreeBuilder) *Parser {
	p := &Parser{b: b}
	p.Reset()
	return p
}

// Reset discards all parse state.
func (p *Parser) Reset() {
	p.operands = p.operands[:0]
	p.frames = p.frames[:0]
	p.expectOperand = true
	p.last = TokenError
	p.lastOffset = 0
	p.done = false
	p.failed = false
}

// Done reports whether the parser has accepted a complete expression.
func (p *Parser) Done() bool {
	return p.done
}

// Failed reports whether the parser has rejected its input.
func (p *Parser) Failed() bool {
	return p.failed
}

// Feed pushes the next token. It returns false once parsing has failed.
// Tokens fed after completion are ignored.
func (p *Parser) Feed(tok Token) bool {
	if p.failed {
		return false
	}
	if p.done {
		return true
	}

	if p.expectOperand {
		p.operand(tok)
	} else {
		p.operator(tok)
	}

	p.last = tok.Type
	p.lastOffset = tok.Offset
	return !p.failed
}

// Terminate delivers the end-of-input signal unless the parser already
// completed or failed.
func (p *Parser) Terminate() {
	if p.done || p.failed {
		return
	}
	p.Feed(Token{Type: TokenEnd, Offset: p.lastOffset})
}

func (p *Parser) operand(tok Token) {
	switch tok.Type {
	case TokenNumber:
		p.pushOperand(p.b.NewNode(NodeNumber, tok))
	case TokenString:
		p.pushOperand(p.b.NewNode(NodeString, tok))
	case TokenIdentifier:
		p.pushOperand(p.b.NewNode(NodeIdentifier, tok))

	case TokenLParen:
		p.frames = append(p.frames, frame{kind: frameParen, tok: tok})
	case TokenNot:
		p.frames = append(p.frames, frame{kind: frameUnary, op: NodeNot, prec: unaryPrec, tok: tok})
	case TokenMinus:
		p.frames = append(p.frames, frame{kind: frameUnary, op: NodeNegate, prec: unaryPrec, tok: tok})

	case TokenRParen:
		// f() has no operand between its parentheses.
		if top := p.top(); top != nil && top.kind == frameCall && len(p.operands) == top.base {
			p.closeCall(tok)
			return
		}
		p.fail("Unexpected ')'", tok.Offset)

	case TokenEnd, TokenSemicolon:
		if len(p.operands) == 0 && len(p.frames) == 0 {
			p.done = true
			p.b.SetRoot(nil)
			p.b.ParseOK()
			return
		}
		p.fail("Unexpected end of expression", tok.Offset)

	case TokenUnit:
		p.fail(fmt.Sprintf("Unit '%s' must follow a number", tok.Text), tok.Offset)

	default:
		p.fail(fmt.Sprintf("Unexpected '%s'", tok.Type), tok.Offset)
	}
}

func (p *Parser) operator(tok Token) {
	switch tok.Type {
	case TokenUnit:
		n := p.topOperand()
		if p.last != TokenNumber || n == nil || n.Op != NodeNumber || n.Left != nil {
			p.fail(fmt.Sprintf("Unit '%s' must follow a number", tok.Text), tok.Offset)
			return
		}
		n.Left = p.b.NewNode(NodeUnit, tok)

	case TokenLParen:
		n := p.topOperand()
		if p.last != TokenIdentifier || n == nil || n.Op != NodeIdentifier {
			p.fail("Unexpected '('", tok.Offset)
			return
		}
		p.operands = p.operands[:len(p.operands)-1]
		p.frames = append(p.frames, frame{kind: frameCall, tok: tok, fn: n, base: len(p.operands)})
		p.expectOperand = true

	case TokenRParen:
		p.closeGroup(tok)

	case TokenEnd, TokenSemicolon:
		p.finish(tok)

	default:
		info, ok := binaryOps[tok.Type]
		if !ok {
			p.fail(fmt.Sprintf("Unexpected %s", tok), tok.Offset)
			return
		}
		if !p.reduceWhile(info.prec) {
			return
		}
		p.frames = append(p.frames, frame{kind: frameBinary, op: info.op, prec: info.prec, tok: tok})
		p.expectOperand = true
	}
}

// closeGroup handles ')' after an operand: reduce to the innermost open
// parenthesis or call.
func (p *Parser) closeGroup(tok Token) {
	for {
		top := p.top()
		if top == nil {
			p.fail("Unbalanced ')'", tok.Offset)
			return
		}
		switch top.kind {
		case frameParen:
			p.frames = p.frames[:len(p.frames)-1]
			return
		case frameCall:
			p.closeCall(tok)
			return
		}
		if !p.reduce() {
			return
		}
	}
}

// closeCall builds a NodeFuncCall from the open call frame. A call
// without an argument receives an empty string argument.
func (p *Parser) closeCall(tok Token) {
	f := p.frames[len(p.frames)-1]
	p.frames = p.frames[:len(p.frames)-1]

	var arg *Node
	switch args := p.operands[f.base:]; len(args) {
	case 0:
		arg = p.b.NewNode(NodeString, Token{Type: TokenString, Offset: tok.Offset})
	case 1:
		arg = args[0]
		if arg.Op != NodeString {
			p.fail(fmt.Sprintf("Function '%s' expects a single string argument", f.fn.Text), arg.Offset)
			return
		}
	default:
		p.fail(fmt.Sprintf("Function '%s' expects a single string argument", f.fn.Text), args[1].Offset)
		return
	}
	p.operands = p.operands[:f.base]

	call := p.b.NewNode(NodeFuncCall, Token{Type: TokenIdentifier, Text: f.fn.Text, Offset: f.fn.Offset})
	call.Left = f.fn
	call.Right = arg
	p.pushOperand(call)
}

// finish reduces everything left on the stack and hands the root to the
// builder.
func (p *Parser) finish(tok Token) {
	for len(p.frames) > 0 {
		top := p.top()
		if top.kind == frameParen || top.kind == frameCall {
			p.fail("Missing ')'", top.tok.Offset)
			return
		}
		if !p.reduce() {
			return
		}
	}

	if len(p.operands) != 1 {
		p.fail("Malformed expression", tok.Offset)
		return
	}

	p.done = true
	p.b.SetRoot(p.operands[0])
	p.b.ParseOK()
}

// reduceWhile reduces pending operators that bind at least as tightly as
// prec.
func (p *Parser) reduceWhile(prec int) bool {
	for {
		top := p.top()
		if top == nil || (top.kind != frameBinary && top.kind != frameUnary) || top.prec < prec {
			return true
		}
		if !p.reduce() {
			return false
		}
	}
}

// reduce pops one operator frame and builds its node.
func (p *Parser) reduce() bool {
	f := p.frames[len(p.frames)-1]
	p.frames = p.frames[:len(p.frames)-1]

	switch f.kind {
	case frameUnary:
		x := p.popOperand()
		if x == nil {
			p.fail("Missing operand", f.tok.Offset)
			return false
		}
		n := p.b.NewNode(f.op, f.tok)
		n.Left = x
		p.pushOperand(n)

	case frameBinary:
		r := p.popOperand()
		l := p.popOperand()
		if l == nil || r == nil {
			p.fail("Missing operand", f.tok.Offset)
			return false
		}
		if f.op == NodeStructRef {
			if l.Op != NodeIdentifier || (r.Op != NodeIdentifier && r.Op != NodeFuncCall) {
				p.fail("Invalid member reference", f.tok.Offset)
				return false
			}
		}
		n := p.b.NewNode(f.op, f.tok)
		n.Left = l
		n.Right = r
		p.pushOperand(n)

	default:
		p.fail("Missing ')'", f.tok.Offset)
		return false
	}
	return true
}

func (p *Parser) top() *frame {
	if len(p.frames) == 0 {
		return nil
	}
	return &p.frames[len(p.frames)-1]
}

func (p *Parser) topOperand() *Node {
	if len(p.operands) == 0 {
		return nil
	}
	return p.operands[len(p.operands)-1]
}

func (p *Parser) pushOperand(n *Node) {
	p.operands = append(p.operands, n)
	p.expectOperand = false
}

func (p *Parser) popOperand() *Node {
	n := len(p.operands)
	if n == 0 {
		return nil
	}
	x := p.operands[n-1]
	p.operands = p.operands[:n-1]
	return x
}

func (p *Parser) fail(msg string, offset int) {
	p.failed = true
	p.b.ParseError(msg, offset)
}
