package parser

import "fmt"

// SyntaxError reports a malformed expression. Pos points into the
// expression itself; loaders add the file and line when they re-raise it.
type SyntaxError struct {
	Pos     Position
	Input   string
	Message string
}

func (e *SyntaxError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("syntax error at column %d in %q: %s", e.Pos.Column, e.Input, e.Message)
	}
	return fmt.Sprintf("syntax error in %q: %s", e.Input, e.Message)
}

// Common error messages
const (
	ErrUnexpectedToken  = "unexpected token %s"
	ErrUnexpectedEOF    = "unexpected end of expression"
	ErrUnmatchedParen   = "unmatched parenthesis"
	ErrIllegalCharacter = "illegal character %q"
	ErrInvalidNumber    = "invalid number literal %q"
	ErrNonNumericPower  = "exponent must be a plain number, got %s"
	ErrIncompatibleSum  = "cannot add or subtract %s and %s"
	ErrDivisionByZero   = "division by zero"
	ErrNameNotAllowed   = "name %q is not allowed in a numeric expression"
)
