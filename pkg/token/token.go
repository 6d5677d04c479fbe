// Package token defines the lexical tokens of unit expressions.
package token

import "fmt"

// TokenType represents the type of a lexical token.
//
//nolint:revive // token.TokenType reads better at call sites than token.Type
type TokenType int

const (
	// Special tokens
	EOF TokenType = iota
	ILLEGAL

	// Literals
	NUMBER // 12, 0.5, 6.022e23
	NAME   // meter, delta_degC, [length], []

	// Operators
	PLUS   // +
	MINUS  // -
	STAR   // *
	SLASH  // /
	POW    // ** or ^
	LPAREN // (
	RPAREN // )
)

var names = map[TokenType]string{
	EOF:     "EOF",
	ILLEGAL: "ILLEGAL",
	NUMBER:  "NUMBER",
	NAME:    "NAME",
	PLUS:    "+",
	MINUS:   "-",
	STAR:    "*",
	SLASH:   "/",
	POW:     "**",
	LPAREN:  "(",
	RPAREN:  ")",
}

func (t TokenType) String() string {
	if s, ok := names[t]; ok {
		return s
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// Token is a single lexical token with its source position.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position
}

func (t Token) String() string {
	switch t.Type {
	case NUMBER, NAME, ILLEGAL:
		return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
	}
	return t.Type.String()
}

// StartsOperand reports whether a token of this type can begin an operand.
// The evaluator uses it to detect implicit multiplication by juxtaposition.
func (t TokenType) StartsOperand() bool {
	return t == NUMBER || t == NAME || t == LPAREN
}
