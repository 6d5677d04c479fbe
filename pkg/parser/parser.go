// Package parser evaluates the restricted arithmetic used by unit
// definitions and unit expressions.
//
// # Grammar
//
//	expr     → term (("+" | "-") term)*
//	term     → unary (("*" | "/" | juxtaposition) unary)*
//	unary    → ("-" | "+") unary | power
//	power    → primary (("**" | "^") unary)?
//	primary  → NUMBER | NAME | "(" expr ")"
//
// Evaluation folds the expression into a Term: a numeric scale and a units
// container. Names become units with exponent 1 unless they are bound in
// the evaluation Env. Nothing else is ever evaluated.
package parser

import (
	"fmt"
	"math"
	"strconv"

	"github.com/leapstack-labs/leapunits/pkg/token"
	"github.com/leapstack-labs/leapunits/pkg/units"
)

// Position is re-exported for callers that only import parser.
type Position = token.Position

// Precedence levels, lowest to highest.
const (
	precedenceNone = iota
	precedenceAddition
	precedenceMultiply
	precedenceUnary
	precedencePower
)

// Term is the value of an evaluated expression.
type Term struct {
	Scale float64
	Units units.Container
}

// Number returns a dimensionless term.
func Number(x float64) Term {
	return Term{Scale: x}
}

// NameTerm returns the term for a bare unit name.
func NameTerm(name string) Term {
	return Term{Scale: 1, Units: units.Unit(name)}
}

// IsNumber reports whether the term carries no units.
func (t Term) IsNumber() bool {
	return t.Units.IsEmpty()
}

// Mul multiplies two terms.
func (t Term) Mul(o Term) Term {
	return Term{Scale: t.Scale * o.Scale, Units: t.Units.Mul(o.Units)}
}

// Div divides t by o.
func (t Term) Div(o Term) Term {
	return Term{Scale: t.Scale / o.Scale, Units: t.Units.Div(o.Units)}
}

// Pow raises t to a plain exponent.
func (t Term) Pow(exp float64) Term {
	return Term{Scale: math.Pow(t.Scale, exp), Units: t.Units.Pow(exp)}
}

// Equal compares scale and units.
func (t Term) Equal(o Term) bool {
	return t.Scale == o.Scale && t.Units.Equal(o.Units)
}

func (t Term) String() string {
	if t.IsNumber() {
		return strconv.FormatFloat(t.Scale, 'g', -1, 64)
	}
	return fmt.Sprintf("%s %s", strconv.FormatFloat(t.Scale, 'g', -1, 64), t.Units)
}

// Env binds names to values during evaluation.
type Env struct {
	// Vars maps a name to the term it evaluates to.
	Vars map[string]Term
	// NumbersOnly rejects any unbound name.
	NumbersOnly bool
}

// Parser evaluates one expression.
type Parser struct {
	input string
	lexer *Lexer
	token token.Token // current token
	env   Env
	err   *SyntaxError
}

// NewParser creates a parser for an already preprocessed expression.
func NewParser(input string, env Env) *Parser {
	p := &Parser{input: input, lexer: NewLexer(input), env: env}
	p.nextToken()
	return p
}

// Parse preprocesses and evaluates expr. An empty expression evaluates to
// the dimensionless number 1.
func Parse(expr string) (Term, error) {
	return ParseWith(expr, Env{})
}

// ParseWith is Parse with names bound by env.
func ParseWith(expr string, env Env) (Term, error) {
	return NewParser(Preprocess(expr), env).Evaluate()
}

// ParseNumber evaluates a purely numeric expression such as "1e-3" or
// "2**10". Any name is an error.
func ParseNumber(expr string) (float64, error) {
	t, err := NewParser(expr, Env{NumbersOnly: true}).Evaluate()
	if err != nil {
		return 0, err
	}
	return t.Scale, nil
}

// Evaluate consumes the whole input.
func (p *Parser) Evaluate() (Term, error) {
	if p.token.Type == token.EOF {
		return Number(1), nil
	}

	result := p.parseExpression(precedenceAddition)
	if p.err == nil && p.token.Type != token.EOF {
		if p.token.Type == token.RPAREN {
			p.fail(p.token.Pos, ErrUnmatchedParen)
		} else {
			p.fail(p.token.Pos, ErrUnexpectedToken, p.token)
		}
	}
	if p.err != nil {
		return Term{}, p.err
	}
	return result, nil
}

// ---------- Token Helpers ----------

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.token = p.lexer.NextToken()
	if p.token.Type == token.ILLEGAL && p.err == nil {
		p.fail(p.token.Pos, ErrIllegalCharacter, p.token.Literal)
	}
}

func (p *Parser) fail(pos Position, format string, args ...any) {
	if p.err != nil {
		return
	}
	p.err = &SyntaxError{Pos: pos, Input: p.input, Message: fmt.Sprintf(format, args...)}
}

// ---------- Expressions ----------

// parseExpression implements Pratt parsing over the operators above.
func (p *Parser) parseExpression(minPrecedence int) Term {
	left := p.parsePrefix()

	for p.err == nil {
		prec := p.infixPrecedence()
		if prec < minPrecedence || prec == precedenceNone {
			break
		}
		left = p.parseInfix(left, prec)
	}
	return left
}

// infixPrecedence returns the binding power of the current token when used
// as a binary operator. An operand directly after an operand is an implicit
// multiplication.
func (p *Parser) infixPrecedence() int {
	switch p.token.Type {
	case token.PLUS, token.MINUS:
		return precedenceAddition
	case token.STAR, token.SLASH:
		return precedenceMultiply
	case token.POW:
		return precedencePower
	}
	if p.token.Type.StartsOperand() {
		return precedenceMultiply
	}
	return precedenceNone
}

func (p *Parser) parseInfix(left Term, prec int) Term {
	op := p.token
	if op.Type.StartsOperand() {
		right := p.parseExpression(precedenceMultiply + 1)
		return left.Mul(right)
	}
	p.nextToken()

	switch op.Type {
	case token.POW:
		// Right associative, and the exponent may carry a sign.
		right := p.parseExpression(precedenceUnary)
		if p.err != nil {
			return left
		}
		if !right.IsNumber() {
			p.fail(op.Pos, ErrNonNumericPower, right)
			return left
		}
		return left.Pow(right.Scale)

	case token.STAR:
		return left.Mul(p.parseExpression(prec + 1))

	case token.SLASH:
		right := p.parseExpression(prec + 1)
		if p.err == nil && right.Scale == 0 {
			p.fail(op.Pos, ErrDivisionByZero)
			return left
		}
		return left.Div(right)

	case token.PLUS, token.MINUS:
		right := p.parseExpression(prec + 1)
		if p.err != nil {
			return left
		}
		if !left.Units.Equal(right.Units) {
			p.fail(op.Pos, ErrIncompatibleSum, left, right)
			return left
		}
		if op.Type == token.MINUS {
			right.Scale = -right.Scale
		}
		return Term{Scale: left.Scale + right.Scale, Units: left.Units}
	}

	p.fail(op.Pos, ErrUnexpectedToken, op)
	return left
}

// parsePrefix parses unary operators and primary expressions.
func (p *Parser) parsePrefix() Term {
	switch p.token.Type {
	case token.MINUS:
		p.nextToken()
		operand := p.parseExpression(precedenceUnary)
		operand.Scale = -operand.Scale
		return operand
	case token.PLUS:
		p.nextToken()
		return p.parseExpression(precedenceUnary)
	default:
		return p.parsePrimary()
	}
}

func (p *Parser) parsePrimary() Term {
	tok := p.token

	switch tok.Type {
	case token.NUMBER:
		p.nextToken()
		v, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			p.fail(tok.Pos, ErrInvalidNumber, tok.Literal)
			return Number(1)
		}
		return Number(v)

	case token.NAME:
		p.nextToken()
		if bound, ok := p.env.Vars[tok.Literal]; ok {
			return bound
		}
		if p.env.NumbersOnly {
			p.fail(tok.Pos, ErrNameNotAllowed, tok.Literal)
			return Number(1)
		}
		return NameTerm(tok.Literal)

	case token.LPAREN:
		p.nextToken()
		inner := p.parseExpression(precedenceAddition)
		if p.err != nil {
			return inner
		}
		if p.token.Type != token.RPAREN {
			p.fail(tok.Pos, ErrUnmatchedParen)
			return inner
		}
		p.nextToken()
		return inner

	case token.EOF:
		p.fail(tok.Pos, ErrUnexpectedEOF)
	default:
		p.fail(tok.Pos, ErrUnexpectedToken, tok)
	}
	return Number(1)
}
