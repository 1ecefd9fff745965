package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the expression lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEnd TokenType = iota
	TokenError

	// Literals
	TokenNumber     // 42, 0.5, 1,25
	TokenString     // 'pad'
	TokenIdentifier // A, width, _x1
	TokenUnit       // mm, mil, in

	// Operators
	TokenPlus         // +
	TokenMinus        // -
	TokenMult         // *
	TokenDivide       // /
	TokenLess         // <
	TokenGreater      // >
	TokenLessEqual    // <=
	TokenGreaterEqual // >=
	TokenEqual        // ==
	TokenNotEqual     // !=
	TokenAnd          // &&
	TokenOr           // ||
	TokenNot          // !

	// Punctuation
	TokenLParen    // (
	TokenRParen    // )
	TokenSemicolon // ;
	TokenDot       // .
)

var tokenNames = map[TokenType]string{
	TokenEnd:          "END",
	TokenError:        "ERROR",
	TokenNumber:       "NUMBER",
	TokenString:       "STRING",
	TokenIdentifier:   "IDENTIFIER",
	TokenUnit:         "UNIT",
	TokenPlus:         "+",
	TokenMinus:        "-",
	TokenMult:         "*",
	TokenDivide:       "/",
	TokenLess:         "<",
	TokenGreater:      ">",
	TokenLessEqual:    "<=",
	TokenGreaterEqual: ">=",
	TokenEqual:        "==",
	TokenNotEqual:     "!=",
	TokenAnd:          "&&",
	TokenOr:           "||",
	TokenNot:          "!",
	TokenLParen:       "(",
	TokenRParen:       ")",
	TokenSemicolon:    ";",
	TokenDot:          ".",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token represents a lexical token.
type Token struct {
	Type   TokenType
	Text   string // number text (canonical '.' separator), string contents, identifier, or error message
	Unit   int    // index into the unit table for TokenUnit
	Offset int    // byte offset of the token start
}

func (t Token) String() string {
	switch t.Type {
	case TokenEnd:
		return "END"
	case TokenError:
		return fmt.Sprintf("ERROR(%s)", t.Text)
	case TokenUnit:
		return fmt.Sprintf("UNIT(%d)", t.Unit)
	case TokenNumber, TokenString, TokenIdentifier:
		if len(t.Text) > 20 {
			return fmt.Sprintf("%s(%q...)", t.Type, t.Text[:20])
		}
		return fmt.Sprintf("%s(%q)", t.Type, t.Text)
	}
	return t.Type.String()
}

// twoCharOps are matched before single-character tokens. A match only
// counts when the following character would not extend it.
var twoCharOps = []struct {
	text string
	typ  TokenType
}{
	{"==", TokenEqual},
	{"!=", TokenNotEqual},
	{"<=", TokenLessEqual},
	{">=", TokenGreaterEqual},
	{"&&", TokenAnd},
	{"||", TokenOr},
}

var singleCharOps = map[byte]TokenType{
	'+': TokenPlus,
	'-': TokenMinus,
	'*': TokenMult,
	'/': TokenDivide,
	'<': TokenLess,
	'>': TokenGreater,
	'!': TokenNot,
	'(': TokenLParen,
	')': TokenRParen,
	';': TokenSemicolon,
	'.': TokenDot,
}
