package compiler

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: tokenizer for rule expressions
// ---------------------------------------------------------------------------

type lexState int

const (
	lexDefault lexState = iota
	lexString
)

// Lexer tokenizes expression source text.
type Lexer struct {
	input string
	pos   int // byte offset of the next unread character
	state lexState
	units Units
	sep   byte // locale decimal separator, accepted besides '.' and ','
	start int  // offset of the quote that opened the current string
}

// NewLexer creates a lexer over input. sep is the locale decimal
// separator; '.' and ',' are always accepted as well.
func NewLexer(input string, units Units, sep byte) *Lexer {
	if sep == 0 {
		sep = '.'
	}
	return &Lexer{input: input, units: units, sep: sep}
}

// Restart resets the lexer to the start of a new input.
func (l *Lexer) Restart(input string) {
	l.input = input
	l.pos = 0
	l.state = lexDefault
}

// Pos returns the byte offset of the next unread character.
func (l *Lexer) Pos() int {
	return l.pos
}

// Done reports whether the input is exhausted.
func (l *Lexer) Done() bool {
	return l.pos >= len(l.input)
}

// NextToken returns the next token. After the input is exhausted every
// call returns TokenEnd.
func (l *Lexer) NextToken() Token {
	for {
		var tok Token
		var done bool
		switch l.state {
		case lexString:
			tok, done = l.lexString()
		default:
			tok, done = l.lexDefault()
		}
		if done {
			return tok
		}
	}
}

// lexString consumes the body of a string literal up to the closing quote.
func (l *Lexer) lexString() (Token, bool) {
	l.state = lexDefault

	end := strings.IndexByte(l.input[l.pos:], '\'')
	if end < 0 {
		l.pos = len(l.input)
		return Token{Type: TokenError, Text: "Unterminated string literal", Offset: l.start}, true
	}

	text := l.input[l.pos : l.pos+end]
	l.pos += end + 1
	return Token{Type: TokenString, Text: text, Offset: l.start}, true
}

func (l *Lexer) lexDefault() (Token, bool) {
	for l.pos < len(l.input) && l.input[l.pos] == ' ' {
		l.pos++
	}

	start := l.pos
	if l.pos >= len(l.input) {
		return Token{Type: TokenEnd, Offset: start}, true
	}

	ch := l.input[l.pos]

	if isDigit(ch) {
		return Token{Type: TokenNumber, Text: l.readNumber(), Offset: start}, true
	}

	if idx, n := l.units.Match(l.input, l.pos); idx >= 0 {
		l.pos += n
		return Token{Type: TokenUnit, Text: l.units[idx].Name, Unit: idx, Offset: start}, true
	}

	if ch == '\'' {
		l.state = lexString
		l.start = start
		l.pos++
		return Token{}, false
	}

	if isLetter(ch) || ch == '_' {
		for l.pos < len(l.input) && (isLetter(l.input[l.pos]) || isDigit(l.input[l.pos]) || l.input[l.pos] == '_') {
			l.pos++
		}
		return Token{Type: TokenIdentifier, Text: l.input[start:l.pos], Offset: start}, true
	}

	for _, op := range twoCharOps {
		if l.matchAhead(op.text) {
			l.pos += len(op.text)
			return Token{Type: op.typ, Offset: start}, true
		}
	}

	if typ, ok := singleCharOps[ch]; ok {
		l.pos++
		return Token{Type: typ, Offset: start}, true
	}

	r, size := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += size
	return Token{Type: TokenError, Text: fmt.Sprintf("Unrecognized character '%c'", r), Offset: start}, true
}

// readNumber consumes digits and at most one decimal separator, and
// returns the text with the separator normalized to '.'.
func (l *Lexer) readNumber() string {
	var sb strings.Builder
	haveSep := false
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if l.isSeparator(ch) {
			if haveSep {
				break
			}
			haveSep = true
			sb.WriteByte('.')
		} else if isDigit(ch) {
			sb.WriteByte(ch)
		} else {
			break
		}
		l.pos++
	}
	return sb.String()
}

// matchAhead reports whether op is at the cursor and the character after
// it would not extend the operator.
func (l *Lexer) matchAhead(op string) bool {
	if !strings.HasPrefix(l.input[l.pos:], op) {
		return false
	}
	next := l.pos + len(op)
	return next == len(l.input) || l.input[next] != op[len(op)-1]
}

func (l *Lexer) isSeparator(ch byte) bool {
	return ch == l.sep || ch == '.' || ch == ','
}

// Helper functions

func isLetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

// Tokenize returns all tokens from input, up to and including the first
// TokenEnd or TokenError.
func Tokenize(input string, units Units) []Token {
	l := NewLexer(input, units, '.')
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEnd || tok.Type == TokenError {
			break
		}
	}
	return tokens
}
